/*
Package pwmio implements a small interface for driving pulse width modulated
outputs, with configurable backends depending on the device. It is the layer
that servo and similar actuators write through.
*/
package pwmio

import (
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Time unit used by servo style callers, pulse widths and periods in microseconds.
const MICROS = time.Microsecond

// Names of the backends that NewModule understands.
const (
	BackendSysfs  = "sysfs"
	BackendPeriph = "periph"
	BackendMock   = "mock"
)

var (
	// ErrUnknownPin is returned when a pin is not defined by a module.
	ErrUnknownPin = errors.New("unknown pin")

	// ErrPinNotEnabled is returned when a pin is written before EnablePin was called.
	ErrPinNotEnabled = errors.New("PWM pin is being written but is not enabled")
)

// Create an unconfigured module for the named backend. The caller still has to call SetOptions and Enable.
func NewModule(backend string, name string) (PWMModule, error) {
	switch backend {
	case BackendSysfs:
		return NewSysfsPWMModule(name), nil
	case BackendPeriph:
		return NewPeriphPWMModule(name), nil
	case BackendMock:
		return NewMockPWMModule(name), nil
	}
	return nil, errors.Errorf("unknown PWM backend %q", backend)
}

// Work out a backend from the environment. Linux hosts with a PWM class in sysfs
// get the sysfs backend, everything else falls back to periph.io.
func DefaultBackend() string {
	if _, e := os.Stat(DefaultSysfsRoot); e == nil {
		return BackendSysfs
	}
	return BackendPeriph
}

// Map x from the range [inMin, inMax] to [outMin, outMax]. x is clamped to the input range first, so the
// result always lies within the output range. No rounding is applied; callers choose their own. A degenerate
// input range maps everything to outMin.
func MapRange(x, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin {
		return outMin
	}
	x = Clamp(x, math.Min(inMin, inMax), math.Max(inMin, inMax))
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

// Clamp v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
