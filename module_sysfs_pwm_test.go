package pwmio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

// Lay out a fake PWM class: pwmchip0 with channel 1 already exported, channel 0 not.
func fakeSysfs(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	chip := filepath.Join(root, "pwmchip0")
	test.That(t, os.MkdirAll(filepath.Join(chip, "pwm1"), 0o755), test.ShouldBeNil)
	for _, f := range []string{"export", "unexport", "pwm1/period", "pwm1/duty_cycle", "pwm1/enable"} {
		test.That(t, os.WriteFile(filepath.Join(chip, f), nil, 0o644), test.ShouldBeNil)
	}
	return root
}

func readSysfs(t *testing.T, root, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, "pwmchip0", name))
	test.That(t, err, test.ShouldBeNil)
	return string(b)
}

func newSysfsModule(t *testing.T, root string) *SysfsPWMModule {
	t.Helper()
	m := NewSysfsPWMModule("pwm")
	pins := SysfsPWMPinDefMap{
		1: NewSysfsPWMPinDef(1, 0, 1),
		2: NewSysfsPWMPinDef(2, 0, 0),
	}
	test.That(t, m.SetOptions(map[string]interface{}{"pins": pins, "root": root}), test.ShouldBeNil)
	test.That(t, m.Enable(), test.ShouldBeNil)
	return m
}

func TestSysfsOptions(t *testing.T) {
	m := NewSysfsPWMModule("pwm")
	test.That(t, m.SetOptions(map[string]interface{}{}), test.ShouldNotBeNil)
	test.That(t, m.SetOptions(map[string]interface{}{"pins": PinMap{}}), test.ShouldNotBeNil)

	test.That(t, m.SetOptions(map[string]interface{}{
		"pins": SysfsPWMPinDefMap{},
		"root": filepath.Join(t.TempDir(), "missing"),
	}), test.ShouldBeNil)
	test.That(t, m.Enable(), test.ShouldNotBeNil)
}

func TestSysfsWritePeriodAndDuty(t *testing.T) {
	root := fakeSysfs(t)
	m := newSysfsModule(t, root)

	test.That(t, errors.Is(m.SetDuty(1, 10), ErrPinNotEnabled), test.ShouldBeTrue)
	test.That(t, errors.Is(m.EnablePin(9, true), ErrUnknownPin), test.ShouldBeTrue)

	// the channel cannot run without a period, so enable waits for the first duty
	test.That(t, m.EnablePin(1, true), test.ShouldBeNil)
	test.That(t, readSysfs(t, root, "pwm1/enable"), test.ShouldEqual, "")
	// already exported, so the export file is untouched
	test.That(t, readSysfs(t, root, "export"), test.ShouldEqual, "")

	test.That(t, m.SetPeriod(1, 20000000), test.ShouldBeNil)
	test.That(t, readSysfs(t, root, "pwm1/enable"), test.ShouldEqual, "")
	test.That(t, m.SetDuty(1, 1500000), test.ShouldBeNil)
	test.That(t, readSysfs(t, root, "pwm1/period"), test.ShouldEqual, "20000000")
	test.That(t, readSysfs(t, root, "pwm1/duty_cycle"), test.ShouldEqual, "1500000")
	test.That(t, readSysfs(t, root, "pwm1/enable"), test.ShouldEqual, "1")

	// a period shorter than the duty lowers the duty first
	test.That(t, m.SetPeriod(1, 1000000), test.ShouldBeNil)
	test.That(t, readSysfs(t, root, "pwm1/duty_cycle"), test.ShouldEqual, "1000000")
	test.That(t, readSysfs(t, root, "pwm1/period"), test.ShouldEqual, "1000000")

	test.That(t, m.EnablePin(1, false), test.ShouldBeNil)
	test.That(t, readSysfs(t, root, "pwm1/enable"), test.ShouldEqual, "0")
}

func TestSysfsExportsMissingChannel(t *testing.T) {
	root := fakeSysfs(t)
	m := newSysfsModule(t, root)

	// nothing creates pwm0 in the fake tree, so the export is written but the channel never appears
	e := m.EnablePin(2, true)
	test.That(t, e, test.ShouldNotBeNil)
	test.That(t, e.Error(), test.ShouldContainSubstring, "did not appear")
	test.That(t, readSysfs(t, root, "export"), test.ShouldEqual, "0")
}

func TestSysfsDisable(t *testing.T) {
	root := fakeSysfs(t)
	m := newSysfsModule(t, root)

	w := NewWriter(m, nil)
	test.That(t, w.Write(1, 20000, 1500, MICROS), test.ShouldBeNil)
	test.That(t, readSysfs(t, root, "pwm1/duty_cycle"), test.ShouldEqual, "1500000")

	test.That(t, m.Disable(), test.ShouldBeNil)
	test.That(t, readSysfs(t, root, "pwm1/enable"), test.ShouldEqual, "0")
	test.That(t, readSysfs(t, root, "unexport"), test.ShouldEqual, "")
	test.That(t, errors.Is(m.SetDuty(1, 10), ErrPinNotEnabled), test.ShouldBeTrue)
}

// enable must never read 1 while period is still unset.
func TestSysfsNeverEnabledWithoutPeriod(t *testing.T) {
	root := fakeSysfs(t)
	m := newSysfsModule(t, root)
	w := NewWriter(m, nil)

	check := func() {
		if readSysfs(t, root, "pwm1/enable") == "1" {
			test.That(t, readSysfs(t, root, "pwm1/period"), test.ShouldNotEqual, "")
		}
	}

	test.That(t, m.EnablePin(1, true), test.ShouldBeNil)
	check()
	test.That(t, w.Write(1, 20000, 0, MICROS), test.ShouldBeNil)
	check()
	test.That(t, readSysfs(t, root, "pwm1/enable"), test.ShouldEqual, "1")
	test.That(t, readSysfs(t, root, "pwm1/period"), test.ShouldEqual, "20000000")

	// re-enabling after a disable waits for the next duty again
	test.That(t, w.Close(), test.ShouldBeNil)
	test.That(t, readSysfs(t, root, "pwm1/enable"), test.ShouldEqual, "0")
	test.That(t, w.Write(1, 20000, 1500, MICROS), test.ShouldBeNil)
	check()
	test.That(t, readSysfs(t, root, "pwm1/enable"), test.ShouldEqual, "1")
}

func TestSysfsStaleDutyIsLoweredBeforePeriod(t *testing.T) {
	root := fakeSysfs(t)
	// an earlier process left the channel at 20ms with a 15ms duty
	test.That(t, os.WriteFile(filepath.Join(root, "pwmchip0", "pwm1", "period"), []byte("20000000\n"), 0o644), test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(root, "pwmchip0", "pwm1", "duty_cycle"), []byte("15000000\n"), 0o644), test.ShouldBeNil)
	m := newSysfsModule(t, root)

	test.That(t, m.EnablePin(1, true), test.ShouldBeNil)
	test.That(t, m.SetPeriod(1, 10000000), test.ShouldBeNil)
	test.That(t, readSysfs(t, root, "pwm1/duty_cycle"), test.ShouldEqual, "10000000")
	test.That(t, readSysfs(t, root, "pwm1/period"), test.ShouldEqual, "10000000")
}
