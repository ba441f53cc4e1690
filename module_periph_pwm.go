// Implementation of PWM module interface on top of periph.io. Pins are looked up in the periph gpio
// registry by their canonical name, e.g. "GPIO18" on a Raspberry Pi.

package pwmio

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var (
	periphInitOnce sync.Once
	periphInitErr  error
)

type PeriphPWMModule struct {
	name        string
	definedPins PinMap
	openPins    map[Pin]*periphOpenPin

	// lookup resolves a hardware name to a periph pin. Replaced in tests.
	lookup func(name string) gpio.PinIO
	// hostInit loads the periph host drivers. Replaced in tests.
	hostInit func() error
}

type periphOpenPin struct {
	pin      gpio.PinIO
	periodNs int64
	dutyNs   int64
}

func NewPeriphPWMModule(name string) *PeriphPWMModule {
	return &PeriphPWMModule{
		name:     name,
		openPins: make(map[Pin]*periphOpenPin),
		lookup:   gpioreg.ByName,
		hostInit: initPeriphHost,
	}
}

func initPeriphHost() error {
	periphInitOnce.Do(func() {
		_, periphInitErr = host.Init()
	})
	return periphInitErr
}

// Set options of the module. Parameters we look for include:
// - "pins" - a PinMap whose canonical names are periph pin names
func (module *PeriphPWMModule) SetOptions(options map[string]interface{}) error {
	v := options["pins"]
	if v == nil {
		return errors.Errorf("Module '%s' SetOptions() did not get 'pins' values", module.GetName())
	}
	pins, ok := v.(PinMap)
	if !ok {
		return errors.Errorf("Module '%s' SetOptions() expected 'pins' to be PinMap, got %T", module.GetName(), v)
	}
	module.definedPins = pins
	return nil
}

// Load the periph host drivers. This is done once per process.
func (module *PeriphPWMModule) Enable() error {
	if e := module.hostInit(); e != nil {
		return errors.Wrapf(e, "module %s: initialising periph host", module.GetName())
	}
	return nil
}

func (module *PeriphPWMModule) Disable() error {
	var e error
	for pin, op := range module.openPins {
		e = multierr.Append(e, op.halt())
		delete(module.openPins, pin)
	}
	return e
}

func (module *PeriphPWMModule) GetName() string {
	return module.name
}

func (module *PeriphPWMModule) EnablePin(pin Pin, enabled bool) error {
	pd := module.definedPins.GetDef(pin)
	if pd == nil || !pd.HasCapability(CAP_PWM) {
		return errors.Wrapf(ErrUnknownPin, "pin %d is not known as a PWM pin on module %s", pin, module.GetName())
	}

	op := module.openPins[pin]
	if !enabled {
		if op == nil {
			return nil
		}
		delete(module.openPins, pin)
		return op.halt()
	}
	if op != nil {
		return nil
	}

	p := module.lookup(pd.Name())
	if p == nil {
		return errors.Wrapf(ErrUnknownPin, "periph has no pin called %q", pd.Name())
	}
	module.openPins[pin] = &periphOpenPin{pin: p}
	return nil
}

// Set the period of this pin, in nanoseconds. periph takes period and duty together, so the
// current duty is re-applied at the new frequency.
func (module *PeriphPWMModule) SetPeriod(pin Pin, ns int64) error {
	op := module.openPins[pin]
	if op == nil {
		return errors.Wrapf(ErrPinNotEnabled, "pin %d on module %s", pin, module.GetName())
	}
	if ns <= 0 {
		return errors.Errorf("pin %d: period must be positive, got %dns", pin, ns)
	}
	op.periodNs = ns
	if op.dutyNs > ns {
		op.dutyNs = ns
	}
	return op.apply()
}

func (module *PeriphPWMModule) SetDuty(pin Pin, ns int64) error {
	op := module.openPins[pin]
	if op == nil {
		return errors.Wrapf(ErrPinNotEnabled, "pin %d on module %s", pin, module.GetName())
	}
	if op.periodNs == 0 {
		return errors.Errorf("pin %d: duty written before period", pin)
	}
	op.dutyNs = ns
	return op.apply()
}

func (op *periphOpenPin) apply() error {
	if op.dutyNs == 0 {
		return op.pin.Out(gpio.Low)
	}
	return op.pin.PWM(dutyFraction(op.dutyNs, op.periodNs), periodToFrequency(op.periodNs))
}

func (op *periphOpenPin) halt() error {
	return multierr.Combine(op.pin.Halt(), op.pin.Out(gpio.Low))
}

// Convert a duty time to periph's fixed point duty fraction.
func dutyFraction(dutyNs, periodNs int64) gpio.Duty {
	if dutyNs >= periodNs {
		return gpio.DutyMax
	}
	return gpio.Duty(uint64(dutyNs) * uint64(gpio.DutyMax) / uint64(periodNs))
}

func periodToFrequency(periodNs int64) physic.Frequency {
	return physic.Frequency(int64(physic.Hertz) * int64(time.Second) / periodNs)
}
