// Package main is a command line tool for positioning a servo on a PWM output.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/mrmorphic/pwmio"
	"github.com/mrmorphic/pwmio/servo"
)

const (
	flagConfig    = "config"
	flagBackend   = "backend"
	flagPin       = "pin"
	flagSysfsRoot = "sysfs-root"
	flagRelease   = "release"
	flagDebug     = "debug"

	flagDegree   = "degree"
	flagWidth    = "width"
	flagFrom     = "from"
	flagTo       = "to"
	flagStep     = "step"
	flagInterval = "interval"
)

func main() {
	var logger golog.Logger

	app := &cli.App{
		Name:            "servoctl",
		Usage:           "position a servo on a PWM output",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load servo configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  flagBackend,
				Value: pwmio.DefaultBackend(),
				Usage: "PWM backend: sysfs, periph or mock",
			},
			&cli.StringFlag{
				Name:     flagPin,
				Aliases:  []string{"p"},
				Required: true,
				Usage:    "output pin, CHIP:CHANNEL for sysfs or a pin name for periph and mock",
			},
			&cli.PathFlag{
				Name:  flagSysfsRoot,
				Value: pwmio.DefaultSysfsRoot,
				Usage: "sysfs PWM class directory",
			},
			&cli.BoolFlag{
				Name:  flagRelease,
				Usage: "detach the servo and release the pin before exiting",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = golog.NewDebugLogger("servoctl")
			} else {
				logger = golog.NewLogger("servoctl")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "attach",
				Usage: "move the servo to its default position",
				Action: func(c *cli.Context) error {
					return withServo(c, logger, func(s *servo.Servo) error {
						return s.Attach()
					})
				},
			},
			{
				Name:  "detach",
				Usage: "stop driving the servo",
				Action: func(c *cli.Context) error {
					return withServo(c, logger, func(s *servo.Servo) error {
						return s.Detach()
					})
				},
			},
			{
				Name:  "move",
				Usage: "move the servo to an angle or pulse width",
				Flags: []cli.Flag{
					&cli.Float64Flag{
						Name:  flagDegree,
						Usage: "target angle, 0-180",
					},
					&cli.Float64Flag{
						Name:  flagWidth,
						Usage: "target pulse width in microseconds",
					},
				},
				Action: func(c *cli.Context) error {
					if c.IsSet(flagDegree) == c.IsSet(flagWidth) {
						return errors.Errorf("exactly one of --%s or --%s is required", flagDegree, flagWidth)
					}
					return withServo(c, logger, func(s *servo.Servo) error {
						if c.IsSet(flagDegree) {
							return s.MoveToDegree(c.Float64(flagDegree))
						}
						return s.MoveToPulseWidth(c.Float64(flagWidth))
					})
				},
			},
			{
				Name:  "sweep",
				Usage: "step the servo between two angles until done or interrupted",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: flagFrom, Value: servo.MinDegree, Usage: "start angle"},
					&cli.Float64Flag{Name: flagTo, Value: servo.MaxDegree, Usage: "end angle"},
					&cli.Float64Flag{Name: flagStep, Value: 10, Usage: "degrees per step"},
					&cli.DurationFlag{Name: flagInterval, Value: 100 * time.Millisecond, Usage: "time between steps"},
				},
				Action: func(c *cli.Context) error {
					ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
					defer stop()
					return withServo(c, logger, func(s *servo.Servo) error {
						return sweep(ctx, s, c.Float64(flagFrom), c.Float64(flagTo), c.Float64(flagStep), c.Duration(flagInterval), logger)
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Build the servo from the global flags, run fn on it and report where it ended up.
func withServo(c *cli.Context, logger golog.Logger, fn func(s *servo.Servo) error) (err error) {
	cfg := servo.DefaultConfig()
	if path := c.Path(flagConfig); path != "" {
		if cfg, err = servo.ReadConfig(path); err != nil {
			return err
		}
	}

	module, pin, err := openModule(c.String(flagBackend), c.String(flagPin), c.Path(flagSysfsRoot))
	if err != nil {
		return err
	}
	writer := pwmio.NewWriter(module, logger)

	s, err := servo.New(writer, pin, cfg, logger)
	if err != nil {
		return multierr.Combine(err, module.Disable())
	}
	if c.Bool(flagRelease) {
		defer func() {
			err = multierr.Combine(err, s.Detach(), writer.Close(), module.Disable())
		}()
	}

	if err := fn(s); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %dus, %.2f degrees\n", s, s.CurrentPulseWidth(), s.CurrentDegree())
	return nil
}

// Create and enable the backend module, with a single pin definition built from the pin flag.
func openModule(backend, pinFlag, sysfsRoot string) (pwmio.PWMModule, pwmio.Pin, error) {
	module, err := pwmio.NewModule(backend, backend)
	if err != nil {
		return nil, 0, err
	}

	pin := pwmio.Pin(0)
	options := map[string]interface{}{}
	switch backend {
	case pwmio.BackendSysfs:
		chip, channel, err := parseSysfsPin(pinFlag)
		if err != nil {
			return nil, 0, err
		}
		options["pins"] = pwmio.SysfsPWMPinDefMap{pin: pwmio.NewSysfsPWMPinDef(pin, chip, channel)}
		options["root"] = sysfsRoot
	case pwmio.BackendPeriph:
		pins := make(pwmio.PinMap)
		pins.Add(pin, []string{pinFlag}, pwmio.CapabilitySet{pwmio.CAP_OUTPUT, pwmio.CAP_PWM})
		options["pins"] = pins
	case pwmio.BackendMock:
		if pin, err = pwmio.MockPinMap().GetPin(pinFlag); err != nil {
			return nil, 0, err
		}
	}

	if err := module.SetOptions(options); err != nil {
		return nil, 0, err
	}
	if err := module.Enable(); err != nil {
		return nil, 0, err
	}
	return module, pin, nil
}

// Parse CHIP:CHANNEL, e.g. "0:1" for /sys/class/pwm/pwmchip0/pwm1.
func parseSysfsPin(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("sysfs pin %q should be CHIP:CHANNEL", s)
	}
	chip, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "sysfs pin %q: bad chip", s)
	}
	channel, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, errors.Wrapf(err, "sysfs pin %q: bad channel", s)
	}
	if chip < 0 || channel < 0 {
		return 0, 0, errors.Errorf("sysfs pin %q: chip and channel must not be negative", s)
	}
	return chip, channel, nil
}
