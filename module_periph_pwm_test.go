package pwmio

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
)

func newPeriphModule(t *testing.T, fake *gpiotest.Pin) *PeriphPWMModule {
	t.Helper()
	m := NewPeriphPWMModule("periph")
	m.hostInit = func() error { return nil }
	m.lookup = func(name string) gpio.PinIO {
		if name == fake.N {
			return fake
		}
		return nil
	}
	pins := make(PinMap)
	pins.Add(18, []string{fake.N}, CapabilitySet{CAP_OUTPUT, CAP_PWM})
	pins.Add(19, []string{"GPIO19"}, CapabilitySet{CAP_OUTPUT, CAP_PWM})
	pins.Add(4, []string{"GPIO4"}, CapabilitySet{CAP_OUTPUT})
	test.That(t, m.SetOptions(map[string]interface{}{"pins": pins}), test.ShouldBeNil)
	test.That(t, m.Enable(), test.ShouldBeNil)
	return m
}

func TestPeriphWrite(t *testing.T) {
	fake := &gpiotest.Pin{N: "GPIO18", Num: 18}
	m := newPeriphModule(t, fake)
	w := NewWriter(m, nil)

	test.That(t, w.Write(18, 20000, 0, MICROS), test.ShouldBeNil)
	test.That(t, fake.L, test.ShouldEqual, gpio.Low)

	test.That(t, w.Write(18, 20000, 1500, MICROS), test.ShouldBeNil)
	test.That(t, fake.F, test.ShouldEqual, 50*physic.Hertz)
	test.That(t, fake.D, test.ShouldEqual, gpio.Duty(uint64(gpio.DutyMax)*1500/20000))

	test.That(t, m.Disable(), test.ShouldBeNil)
	test.That(t, fake.L, test.ShouldEqual, gpio.Low)
}

func TestPeriphPinErrors(t *testing.T) {
	fake := &gpiotest.Pin{N: "GPIO18", Num: 18}
	m := newPeriphModule(t, fake)

	test.That(t, errors.Is(m.EnablePin(4, true), ErrUnknownPin), test.ShouldBeTrue)
	test.That(t, errors.Is(m.EnablePin(19, true), ErrUnknownPin), test.ShouldBeTrue)
	test.That(t, errors.Is(m.SetDuty(18, 1), ErrPinNotEnabled), test.ShouldBeTrue)

	test.That(t, m.EnablePin(18, true), test.ShouldBeNil)
	test.That(t, m.SetDuty(18, 1), test.ShouldNotBeNil)
	test.That(t, m.SetPeriod(18, 0), test.ShouldNotBeNil)
}

func TestPeriphEnableError(t *testing.T) {
	m := NewPeriphPWMModule("periph")
	m.hostInit = func() error { return errors.New("no host") }
	e := m.Enable()
	test.That(t, e, test.ShouldNotBeNil)
	test.That(t, e.Error(), test.ShouldContainSubstring, "no host")
}

func TestDutyFraction(t *testing.T) {
	test.That(t, dutyFraction(0, 20000000), test.ShouldEqual, gpio.Duty(0))
	test.That(t, dutyFraction(10000000, 20000000), test.ShouldEqual, gpio.DutyHalf)
	test.That(t, dutyFraction(30000000, 20000000), test.ShouldEqual, gpio.DutyMax)
	test.That(t, periodToFrequency(20000000), test.ShouldEqual, 50*physic.Hertz)
}
