package servo

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

const (
	// defaults for servo pulse width, in microseconds
	DefaultMinWidth     = 500
	DefaultMaxWidth     = 2500
	DefaultDefaultWidth = 1500

	// default servo period, in microseconds
	DefaultPeriod = 20000
)

// Config describes one physical servo. All values are in microseconds. A zero field takes its default, and this
// includes a field explicitly set to 0 in JSON: "min_width_us": 0 means a 500us minimum. No zero value is a usable
// pulse width or period, so there is no way, or need, to express one.
type Config struct {
	MinWidth     int `json:"min_width_us,omitempty"`
	MaxWidth     int `json:"max_width_us,omitempty"`
	DefaultWidth int `json:"default_width_us,omitempty"`
	Period       int `json:"period_us,omitempty"`
}

// DefaultConfig returns the widest commonly used range, 500-2500us at 50Hz, centred at 1500us.
func DefaultConfig() Config {
	return Config{
		MinWidth:     DefaultMinWidth,
		MaxWidth:     DefaultMaxWidth,
		DefaultWidth: DefaultDefaultWidth,
		Period:       DefaultPeriod,
	}
}

func (cfg Config) withDefaults() Config {
	if cfg.MinWidth == 0 {
		cfg.MinWidth = DefaultMinWidth
	}
	if cfg.MaxWidth == 0 {
		cfg.MaxWidth = DefaultMaxWidth
	}
	if cfg.DefaultWidth == 0 {
		cfg.DefaultWidth = DefaultDefaultWidth
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	return cfg
}

// Validate ensures the pulse range is usable. DefaultWidth is not checked here, New clamps it.
func (cfg Config) Validate() error {
	if cfg.Period <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "period_us must be positive, have %d", cfg.Period)
	}
	if cfg.MinWidth <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "min_width_us must be positive, have %d", cfg.MinWidth)
	}
	if cfg.MinWidth >= cfg.MaxWidth {
		return errors.Wrapf(ErrInvalidConfig, "min_width_us (%d) must be lower than max_width_us (%d)", cfg.MinWidth, cfg.MaxWidth)
	}
	if cfg.MaxWidth > cfg.Period {
		return errors.Wrapf(ErrInvalidConfig, "max_width_us (%d) cannot be higher than period_us (%d)", cfg.MaxWidth, cfg.Period)
	}
	return nil
}

// ReadConfig loads a JSON config file. Missing fields take their defaults.
func ReadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "reading servo config")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing servo config %s", path)
	}
	cfg = cfg.withDefaults()
	return cfg, cfg.Validate()
}
