// Implementation of PWM module interface for Linux systems exposing the generic PWM class in sysfs.
// A module instance can handle multiple pins, each mapped to a channel of a pwmchip.

// period = nanoseconds, 1,000,000,000 is a second
// duty_cycle = active time in nanoseconds, must not exceed period
// enable = 0: disable; 1: enabled

package pwmio

// References:
// - https://www.kernel.org/doc/Documentation/pwm.txt

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Where the kernel exposes PWM chips.
const DefaultSysfsRoot = "/sys/class/pwm"

type SysfsPWMModule struct {
	name        string
	root        string
	definedPins SysfsPWMPinDefMap
	openPins    map[Pin]*SysfsPWMOpenPin
}

type SysfsPWMPinDef struct {
	pin     Pin
	chip    int // N in pwmchipN
	channel int // M in pwmchipN/pwmM
}

func NewSysfsPWMPinDef(pin Pin, chip, channel int) *SysfsPWMPinDef {
	return &SysfsPWMPinDef{pin: pin, chip: chip, channel: channel}
}

type SysfsPWMPinDefMap map[Pin]*SysfsPWMPinDef

type SysfsPWMOpenPin struct {
	pin        Pin
	chipDir    string
	channel    int
	periodFile string
	dutyFile   string
	enableFile string
	exported   bool // true if this module exported the channel and should unexport it

	// mirrors the kernel's view of the channel
	periodNs int64
	dutyNs   int64

	wantRun bool // EnablePin(true) was called
	running bool // enable=1 has been written
}

func (pinDef SysfsPWMPinDef) chipDir(root string) string {
	return filepath.Join(root, "pwmchip"+strconv.Itoa(pinDef.chip))
}

func (pinDef SysfsPWMPinDef) channelDir(root string) string {
	return filepath.Join(pinDef.chipDir(root), "pwm"+strconv.Itoa(pinDef.channel))
}

func NewSysfsPWMModule(name string) (result *SysfsPWMModule) {
	result = &SysfsPWMModule{name: name, root: DefaultSysfsRoot}
	result.openPins = make(map[Pin]*SysfsPWMOpenPin)
	return result
}

// Set options of the module. Parameters we look for include:
// - "pins" - an object of type SysfsPWMPinDefMap
// - "root" - optional string overriding the sysfs PWM class directory
func (module *SysfsPWMModule) SetOptions(options map[string]interface{}) error {
	v := options["pins"]
	if v == nil {
		return errors.Errorf("Module '%s' SetOptions() did not get 'pins' values", module.GetName())
	}
	pins, ok := v.(SysfsPWMPinDefMap)
	if !ok {
		return errors.Errorf("Module '%s' SetOptions() expected 'pins' to be SysfsPWMPinDefMap, got %T", module.GetName(), v)
	}
	module.definedPins = pins

	if r, ok := options["root"].(string); ok && r != "" {
		module.root = r
	}
	return nil
}

// Enable the module. Pins are not opened until EnablePin is called, but the PWM class must be present.
func (module *SysfsPWMModule) Enable() error {
	if _, e := os.Stat(module.root); e != nil {
		return errors.Wrapf(e, "module %s: no PWM support at %s", module.GetName(), module.root)
	}
	return nil
}

// disables module and release any pins assigned.
func (module *SysfsPWMModule) Disable() error {
	var e error
	for pin, openPin := range module.openPins {
		e = multierr.Append(e, openPin.closePin())
		delete(module.openPins, pin)
	}
	return e
}

func (module *SysfsPWMModule) GetName() string {
	return module.name
}

// Enable a specific PWM pin. The channel is exported on first use, but the kernel refuses to run a channel
// without a period, so enable is only written by the first SetDuty once a period is known.
func (module *SysfsPWMModule) EnablePin(pin Pin, enabled bool) error {
	if module.definedPins[pin] == nil {
		return errors.Wrapf(ErrUnknownPin, "pin %d is not known as a PWM pin on module %s", pin, module.GetName())
	}

	openPin := module.openPins[pin]
	if enabled {
		if openPin == nil {
			p, e := module.makeOpenPin(pin)
			if e != nil {
				return e
			}
			openPin = p
		}
		openPin.wantRun = true
		return nil
	}
	// disable the pin if enabled
	if openPin != nil {
		return openPin.enabled(false)
	}
	return nil
}

// Set the period of this pin, in nanoseconds
func (module *SysfsPWMModule) SetPeriod(pin Pin, ns int64) error {
	openPin := module.openPins[pin]
	if openPin == nil {
		return errors.Wrapf(ErrPinNotEnabled, "pin %d on module %s", pin, module.GetName())
	}

	return openPin.setPeriod(ns)
}

// Set the duty time, the amount of time during each period that that output is HIGH.
func (module *SysfsPWMModule) SetDuty(pin Pin, ns int64) error {
	openPin := module.openPins[pin]
	if openPin == nil {
		return errors.Wrapf(ErrPinNotEnabled, "pin %d on module %s", pin, module.GetName())
	}

	return openPin.setDuty(ns)
}

// create an openPin object and put it in the map.
func (module *SysfsPWMModule) makeOpenPin(pin Pin) (*SysfsPWMOpenPin, error) {
	p := module.definedPins[pin]
	if p == nil {
		return nil, errors.Wrapf(ErrUnknownPin, "pin %d is not known to PWM module %s", pin, module.GetName())
	}

	result := &SysfsPWMOpenPin{pin: pin, chipDir: p.chipDir(module.root), channel: p.channel}

	dir := p.channelDir(module.root)
	if _, e := os.Stat(dir); os.IsNotExist(e) {
		if e := writeStringToFile(filepath.Join(result.chipDir, "export"), strconv.Itoa(p.channel)); e != nil {
			return nil, errors.Wrapf(e, "exporting channel %d of %s", p.channel, result.chipDir)
		}
		result.exported = true
		if _, e := os.Stat(dir); e != nil {
			return nil, errors.Wrapf(e, "channel %d of %s did not appear after export", p.channel, result.chipDir)
		}
	}

	result.periodFile = filepath.Join(dir, "period")
	result.dutyFile = filepath.Join(dir, "duty_cycle")
	result.enableFile = filepath.Join(dir, "enable")

	// a channel left configured by an earlier user keeps its period and duty
	result.periodNs = readInt64File(result.periodFile)
	result.dutyNs = readInt64File(result.dutyFile)

	module.openPins[pin] = result
	return result, nil
}

// Disable the channel and give it back to the kernel if we exported it.
func (op *SysfsPWMOpenPin) closePin() error {
	e := op.enabled(false)
	if op.exported {
		e = multierr.Append(e, writeStringToFile(filepath.Join(op.chipDir, "unexport"), strconv.Itoa(op.channel)))
	}
	return e
}

// Set the period in nanoseconds. The kernel refuses a period shorter than the current duty, so the duty is
// lowered first in that case.
func (op *SysfsPWMOpenPin) setPeriod(ns int64) error {
	if op.dutyNs > ns {
		if e := op.setDuty(ns); e != nil {
			return e
		}
	}
	if e := writeStringToFile(op.periodFile, strconv.FormatInt(ns, 10)); e != nil {
		return e
	}
	op.periodNs = ns
	return nil
}

func (op *SysfsPWMOpenPin) setDuty(ns int64) error {
	if e := writeStringToFile(op.dutyFile, strconv.FormatInt(ns, 10)); e != nil {
		return e
	}
	op.dutyNs = ns
	if op.wantRun && !op.running && op.periodNs > 0 {
		return op.enabled(true)
	}
	return nil
}

func (op *SysfsPWMOpenPin) enabled(e bool) error {
	if e {
		if err := writeStringToFile(op.enableFile, "1"); err != nil {
			return err
		}
		op.running = true
		return nil
	}
	op.wantRun = false
	op.running = false
	return writeStringToFile(op.enableFile, "0")
}

// Read an integer attribute, 0 if it is missing or unset.
func readInt64File(filename string) int64 {
	b, e := os.ReadFile(filename)
	if e != nil {
		return 0
	}
	v, e := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if e != nil {
		return 0
	}
	return v
}

// Write a string to a file and close it again.
func writeStringToFile(filename string, value string) error {
	f, e := os.OpenFile(filename, os.O_WRONLY|os.O_TRUNC, 0o666)
	if e != nil {
		return e
	}
	if _, e = f.WriteString(value); e != nil {
		f.Close()
		return e
	}
	return f.Close()
}
