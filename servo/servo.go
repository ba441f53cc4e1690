// Package servo drives hobby servo motors through a PWM output, addressing them by pulse width or by angle.
package servo

import (
	"fmt"
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mrmorphic/pwmio"
)

const (
	MinDegree = 0.0
	MaxDegree = 180.0
)

var (
	// ErrInvalidConfig is returned by New and Config.Validate for unusable pulse ranges.
	ErrInvalidConfig = errors.New("invalid servo config")

	// ErrInvalidPosition is returned for positions that cannot be clamped, i.e. NaN.
	ErrInvalidPosition = errors.New("invalid servo position")
)

// State tells whether the servo signal is currently driven.
type State int

const (
	Detached State = iota
	Attached
)

func (s State) String() string {
	switch s {
	case Detached:
		return "detached"
	case Attached:
		return "attached"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Servo is not safe for concurrent use, and no two Servos may share a pin.
type Servo struct {
	pwm    pwmio.PWMWriter
	pin    pwmio.Pin
	logger golog.Logger

	minWidth        int // min pulse width in microseconds
	maxWidth        int // max pulse width in microseconds
	defaultPosition int // pulse width written by Attach
	currentPosition int // last pulse width written
	period          int // PWM period in microseconds
	state           State
}

// Create a new servo on pin. The PWM output is immediately set to 0, leaving the servo detached until Attach or a
// move is called. A DefaultWidth outside the configured range is clamped into it.
func New(pwm pwmio.PWMWriter, pin pwmio.Pin, cfg Config, logger golog.Logger) (*Servo, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	def := cfg.DefaultWidth
	if def < cfg.MinWidth || def > cfg.MaxWidth {
		clamped := int(pwmio.Clamp(float64(def), float64(cfg.MinWidth), float64(cfg.MaxWidth)))
		logger.Warnw("default width outside servo range, clamping",
			"pin", pin, "default_width_us", def, "clamped_us", clamped)
		def = clamped
	}

	result := &Servo{
		pwm:             pwm,
		pin:             pin,
		logger:          logger,
		minWidth:        cfg.MinWidth,
		maxWidth:        cfg.MaxWidth,
		defaultPosition: def,
		currentPosition: def,
		period:          cfg.Period,
		state:           Detached,
	}

	if err := result.write(0); err != nil {
		return nil, errors.Wrap(err, "couldn't initialise servo output")
	}
	return result, nil
}

// Write the default pulse width, enabling the motor and moving it to its default position.
func (servo *Servo) Attach() error {
	if err := servo.write(servo.defaultPosition); err != nil {
		return errors.Wrap(err, "couldn't attach servo")
	}
	servo.currentPosition = servo.defaultPosition
	servo.state = Attached
	return nil
}

// Write a pulse width of 0, disabling the motor. The last position is kept and still reported by
// CurrentPulseWidth.
func (servo *Servo) Detach() error {
	if err := servo.write(0); err != nil {
		return errors.Wrap(err, "couldn't detach servo")
	}
	servo.state = Detached
	return nil
}

// Move to the given angle. Angles outside 0-180 are clamped. The angle maps linearly onto the pulse range and is
// rounded down to a whole microsecond.
func (servo *Servo) MoveToDegree(degree float64) error {
	if math.IsNaN(degree) {
		return errors.Wrap(ErrInvalidPosition, "degree is NaN")
	}
	width := math.Floor(pwmio.MapRange(degree, MinDegree, MaxDegree, float64(servo.minWidth), float64(servo.maxWidth)))
	return servo.moveTo(int(width))
}

// Move to the given pulse width in microseconds. Widths outside the configured range are clamped, and fractions
// are truncated.
func (servo *Servo) MoveToPulseWidth(width float64) error {
	if math.IsNaN(width) {
		return errors.Wrap(ErrInvalidPosition, "pulse width is NaN")
	}
	width = pwmio.Clamp(width, float64(servo.minWidth), float64(servo.maxWidth))
	return servo.moveTo(int(width))
}

// Writes are skipped when the servo is attached and already at width.
func (servo *Servo) moveTo(width int) error {
	if width == servo.currentPosition && servo.state == Attached {
		return nil
	}
	if err := servo.write(width); err != nil {
		return errors.Wrap(err, "couldn't move the servo")
	}
	servo.currentPosition = width
	servo.state = Attached
	return nil
}

func (servo *Servo) write(width int) error {
	servo.logger.Debugw("servo write", "pin", servo.pin, "period_us", servo.period, "width_us", width)
	return servo.pwm.Write(servo.pin, servo.period, width, pwmio.MICROS)
}

// Return the last pulse width written, in microseconds.
func (servo *Servo) CurrentPulseWidth() int {
	return servo.currentPosition
}

// Return the current position in degrees, mapped back from the pulse width without rounding.
func (servo *Servo) CurrentDegree() float64 {
	return pwmio.MapRange(float64(servo.currentPosition), float64(servo.minWidth), float64(servo.maxWidth), MinDegree, MaxDegree)
}

func (servo *Servo) State() State {
	return servo.state
}

func (servo *Servo) Attached() bool {
	return servo.state == Attached
}

func (servo *Servo) Pin() pwmio.Pin {
	return servo.pin
}

// Return the configured range as a Config.
func (servo *Servo) Config() Config {
	return Config{
		MinWidth:     servo.minWidth,
		MaxWidth:     servo.maxWidth,
		DefaultWidth: servo.defaultPosition,
		Period:       servo.period,
	}
}

func (servo *Servo) String() string {
	return fmt.Sprintf("servo on pin %d [%d-%dus, %s, at %dus]",
		servo.pin, servo.minWidth, servo.maxWidth, servo.state, servo.currentPosition)
}
