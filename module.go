// Defines generic types and behaviours for modules. A given platform will typically support one or more
// PWM modules, each handling a set of pins.

package pwmio

import (
	"sort"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Generic interface type for all modules.
type Module interface {
	// Set parameters require to initialise the module. Generally should be called before Enable() is called,
	// but this may depend on the module.
	SetOptions(map[string]interface{}) error

	// enables the module for use.
	Enable() error

	// disables module and releases pins.
	Disable() error

	// Return the module name so it can be used for error reporting
	GetName() string
}

type PWMModule interface {
	Module

	EnablePin(pin Pin, enabled bool) error

	// Set the period of this pin, in nanoseconds
	SetPeriod(pin Pin, ns int64) error

	// Set the duty time, the amount of time during each period that that output is HIGH.
	SetDuty(pin Pin, ns int64) error
}

// PWMWriter is the single primitive servo style actuators need: set the named output to a signal with
// the given period and high time, both expressed as counts of unit.
type PWMWriter interface {
	Write(pin Pin, period, pulseWidth int, unit time.Duration) error
}

// ModuleWriter adapts a PWMModule to the PWMWriter primitive. Pins are enabled on first write, and the
// period is only pushed to the module when it changes. Every Write results in exactly one SetDuty.
type ModuleWriter struct {
	module  PWMModule
	logger  golog.Logger
	periods map[Pin]int64 // last period written per enabled pin, in ns
}

var _ PWMWriter = (*ModuleWriter)(nil)

func NewWriter(module PWMModule, logger golog.Logger) *ModuleWriter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ModuleWriter{module: module, logger: logger, periods: make(map[Pin]int64)}
}

func (w *ModuleWriter) Write(pin Pin, period, pulseWidth int, unit time.Duration) error {
	if period <= 0 {
		return errors.Errorf("pin %d: period must be positive, got %d", pin, period)
	}
	if pulseWidth < 0 || pulseWidth > period {
		return errors.Errorf("pin %d: pulse width %d outside [0, %d]", pin, pulseWidth, period)
	}
	periodNs := int64(period) * int64(unit)
	dutyNs := int64(pulseWidth) * int64(unit)

	last, enabled := w.periods[pin]
	if !enabled {
		if e := w.module.EnablePin(pin, true); e != nil {
			return errors.Wrapf(e, "enabling pin %d on %s", pin, w.module.GetName())
		}
	}
	if !enabled || last != periodNs {
		if e := w.module.SetPeriod(pin, periodNs); e != nil {
			return errors.Wrapf(e, "setting period of pin %d on %s", pin, w.module.GetName())
		}
		w.periods[pin] = periodNs
	}

	w.logger.Debugw("pwm write", "module", w.module.GetName(), "pin", pin, "period_ns", periodNs, "duty_ns", dutyNs)
	if e := w.module.SetDuty(pin, dutyNs); e != nil {
		return errors.Wrapf(e, "setting duty of pin %d on %s", pin, w.module.GetName())
	}
	return nil
}

// Disable every pin this writer enabled. Errors from individual pins are combined.
func (w *ModuleWriter) Close() error {
	var e error
	for _, pin := range w.enabledPins() {
		e = multierr.Append(e, w.module.EnablePin(pin, false))
		delete(w.periods, pin)
	}
	return e
}

func (w *ModuleWriter) enabledPins() []Pin {
	pins := make([]Pin, 0, len(w.periods))
	for p := range w.periods {
		pins = append(pins, p)
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i] < pins[j] })
	return pins
}
