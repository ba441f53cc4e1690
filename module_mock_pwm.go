package pwmio

// A mock PWM module used for unit testing.
import (
	"github.com/pkg/errors"
)

// One SetDuty call as seen by the mock.
type MockDutyWrite struct {
	Pin      Pin
	PeriodNs int64
	DutyNs   int64
}

type MockPWMModule struct {
	name        string
	definedPins PinMap
	enabled     bool
	pinEnabled  map[Pin]bool
	periods     map[Pin]int64
	duties      map[Pin]int64
	history     []MockDutyWrite
	failNext    error
}

func NewMockPWMModule(name string) *MockPWMModule {
	return &MockPWMModule{name: name, definedPins: MockPinMap()}
}

// Mock has a fixed set of hardcoded pins with different capabilities
func MockPinMap() PinMap {
	general := []Capability{CAP_OUTPUT}
	pwm := []Capability{CAP_OUTPUT, CAP_PWM}

	pinMap := make(PinMap)
	pinMap.Add(0, []string{"HWPin0"}, general)
	pinMap.Add(1, []string{"HWPin1", "PWM0"}, pwm)
	pinMap.Add(2, []string{"HWPin2", "PWM1"}, pwm)
	pinMap.Add(3, []string{"HWPin3"}, general)
	return pinMap
}

// Set options of the module. An optional "pins" PinMap replaces the hardcoded pins.
func (d *MockPWMModule) SetOptions(options map[string]interface{}) error {
	if v, ok := options["pins"]; ok {
		pins, ok := v.(PinMap)
		if !ok {
			return errors.Errorf("Module '%s' SetOptions() expected 'pins' to be PinMap, got %T", d.GetName(), v)
		}
		d.definedPins = pins
	}
	return nil
}

func (d *MockPWMModule) Enable() error {
	d.enabled = true
	return nil
}

func (d *MockPWMModule) Disable() error {
	d.enabled = false
	d.pinEnabled = nil
	return nil
}

func (d *MockPWMModule) GetName() string {
	return d.name
}

// Mock records whether the pin is enabled. Only pins with CAP_PWM are accepted.
func (d *MockPWMModule) EnablePin(pin Pin, enabled bool) error {
	if e := d.takeFailure(); e != nil {
		return e
	}
	pd := d.definedPins.GetDef(pin)
	if pd == nil || !pd.HasCapability(CAP_PWM) {
		return errors.Wrapf(ErrUnknownPin, "pin %d is not known as a PWM pin on module %s", pin, d.GetName())
	}
	d.getPinEnabled()[pin] = enabled
	return nil
}

func (d *MockPWMModule) SetPeriod(pin Pin, ns int64) error {
	if e := d.takeFailure(); e != nil {
		return e
	}
	if !d.getPinEnabled()[pin] {
		return errors.Wrapf(ErrPinNotEnabled, "pin %d on module %s", pin, d.GetName())
	}
	d.getPeriods()[pin] = ns
	return nil
}

func (d *MockPWMModule) SetDuty(pin Pin, ns int64) error {
	if e := d.takeFailure(); e != nil {
		return e
	}
	if !d.getPinEnabled()[pin] {
		return errors.Wrapf(ErrPinNotEnabled, "pin %d on module %s", pin, d.GetName())
	}
	d.getDuties()[pin] = ns
	d.history = append(d.history, MockDutyWrite{Pin: pin, PeriodNs: d.getPeriods()[pin], DutyNs: ns})
	return nil
}

// Make the next call on the module fail with e.
func (d *MockPWMModule) FailWith(e error) {
	d.failNext = e
}

func (d *MockPWMModule) takeFailure() error {
	e := d.failNext
	d.failNext = nil
	return e
}

func (d *MockPWMModule) getPinEnabled() map[Pin]bool {
	if d.pinEnabled == nil {
		d.pinEnabled = make(map[Pin]bool)
	}
	return d.pinEnabled
}

func (d *MockPWMModule) getPeriods() map[Pin]int64 {
	if d.periods == nil {
		d.periods = make(map[Pin]int64)
	}
	return d.periods
}

func (d *MockPWMModule) getDuties() map[Pin]int64 {
	if d.duties == nil {
		d.duties = make(map[Pin]int64)
	}
	return d.duties
}

func (d *MockPWMModule) MockIsEnabled() bool {
	return d.enabled
}

func (d *MockPWMModule) MockPinEnabled(pin Pin) bool {
	return d.getPinEnabled()[pin]
}

func (d *MockPWMModule) MockGetPeriod(pin Pin) int64 {
	return d.getPeriods()[pin]
}

func (d *MockPWMModule) MockGetDuty(pin Pin) int64 {
	return d.getDuties()[pin]
}

// All duty writes seen so far, oldest first.
func (d *MockPWMModule) MockHistory() []MockDutyWrite {
	return append([]MockDutyWrite(nil), d.history...)
}

func (d *MockPWMModule) MockResetHistory() {
	d.history = nil
}
