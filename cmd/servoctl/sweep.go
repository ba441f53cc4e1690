package main

import (
	"context"
	"math"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/mrmorphic/pwmio/servo"
)

// Step from one angle to another, waiting interval between steps. The final angle is always visited.
func sweep(ctx context.Context, s *servo.Servo, from, to, step float64, interval time.Duration, logger golog.Logger) error {
	if step <= 0 || math.IsNaN(step) {
		return errors.Errorf("sweep step must be positive, have %v", step)
	}
	for _, v := range []float64{from, to} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Errorf("sweep angles must be finite, have %v to %v", from, to)
		}
	}
	if interval <= 0 {
		return errors.Errorf("sweep interval must be positive, have %v", interval)
	}
	if to < from {
		step = -step
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for deg := from; ; deg += step {
		if (step > 0 && deg > to) || (step < 0 && deg < to) {
			deg = to
		}
		if err := s.MoveToDegree(deg); err != nil {
			return err
		}
		logger.Debugw("sweep step", "degree", deg, "width_us", s.CurrentPulseWidth())
		if deg == to {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
