// Package ramp implements the slew-rate limited velocity ramp. The rising and
// falling directions use independent rates and per-tick coefficients so the
// ramp can rise quickly and fall slowly.
package ramp

import (
	"math"

	"codeberg.org/mutker/rampctl/internal/errors"
)

const (
	ErrInvalidRate        = errors.ErrorCode("ramp_invalid_rate")
	ErrInvalidCoefficient = errors.ErrorCode("ramp_invalid_coefficient")
)

// Config holds the ramp parameters. Rates are in RPM per second; the
// coefficients scale a rate into the step applied on one tick.
type Config struct {
	RateUp          float64 `mapstructure:"rate_up"`
	RateDown        float64 `mapstructure:"rate_down"`
	UpCoefficient   float64 `mapstructure:"up_coefficient"`
	DownCoefficient float64 `mapstructure:"down_coefficient"`
	TickScale       float64 `mapstructure:"tick_scale"`
	ResetOnEnable   bool    `mapstructure:"reset_on_enable"`
}

// DefaultConfig returns a fast-rise, slow-fall ramp: 10 RPM up and 1 RPM
// down per tick.
func DefaultConfig() Config {
	return Config{
		RateUp:          50,
		RateDown:        50,
		UpCoefficient:   0.2,
		DownCoefficient: 0.02,
		TickScale:       1,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	for name, v := range map[string]float64{"rate_up": c.RateUp, "rate_down": c.RateDown} {
		if !(v > 0) || math.IsInf(v, 0) {
			return errFactory.WithData(ErrInvalidRate, name)
		}
	}

	for name, v := range map[string]float64{
		"up_coefficient":   c.UpCoefficient,
		"down_coefficient": c.DownCoefficient,
		"tick_scale":       c.TickScale,
	} {
		if !(v > 0) || math.IsInf(v, 0) {
			return errFactory.WithData(ErrInvalidCoefficient, name)
		}
	}

	return nil
}

// UpStep returns the RPM added on one rising tick
func (c Config) UpStep() float64 {
	return c.RateUp * c.UpCoefficient
}

// DownStep returns the RPM removed on one falling tick
func (c Config) DownStep() float64 {
	return c.RateDown * c.DownCoefficient
}

// Advance moves current one tick toward target. The step never overshoots:
// the final step lands exactly on target.
func Advance(current, target, rateUp, rateDown, dtScale float64) float64 {
	switch {
	case current < target:
		return math.Min(current+rateUp*dtScale, target)
	case current > target:
		return math.Max(current-rateDown*dtScale, target)
	default:
		return current
	}
}

// Controller owns the ramp state between ticks. It is not safe for
// concurrent use; the tick goroutine is its only caller.
type Controller struct {
	cfg     Config
	current float64
}

func New(cfg Config) *Controller {
	return &Controller{cfg: cfg}
}

// Step advances the ramp one tick toward target and returns the new velocity
func (c *Controller) Step(target float64) float64 {
	c.current = Advance(c.current, target, c.cfg.UpStep(), c.cfg.DownStep(), c.cfg.TickScale)
	return c.current
}

func (c *Controller) Current() float64 {
	return c.current
}

// Reset returns the ramp to standstill
func (c *Controller) Reset() {
	c.current = 0
}

// ResetOnEnable reports whether the ramp restarts from zero on every enable
func (c *Controller) ResetOnEnable() bool {
	return c.cfg.ResetOnEnable
}

// StepsToReach returns how many ticks the ramp needs to arrive at target
// from its current value.
func (c *Controller) StepsToReach(target float64) int {
	diff := target - c.current
	switch {
	case diff > 0:
		return int(math.Ceil(diff / (c.cfg.UpStep() * c.cfg.TickScale)))
	case diff < 0:
		return int(math.Ceil(-diff / (c.cfg.DownStep() * c.cfg.TickScale)))
	default:
		return 0
	}
}
