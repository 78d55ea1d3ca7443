package ramp_test

import (
	"math"
	"testing"

	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/ramp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceConvergesWithoutOvershoot(t *testing.T) {
	tests := []struct {
		name             string
		current, target  float64
		rateUp, rateDown float64
		dtScale          float64
		wantCalls        int
	}{
		{"up exact multiple", 0, 3000, 50, 5, 0.2, 300},
		{"up with remainder", 0, 95, 2.5, 1, 4, 10},
		{"up from negative", -20, 12, 0.5, 1, 4, 16},
		{"down exact multiple", 300, 0, 5, 2.5, 0.4, 300},
		{"down with remainder", 10, 0.5, 1, 0.75, 4, 4},
		{"down to negative", 0, -7, 1, 0.5, 2, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := tt.rateUp * tt.dtScale
			if tt.target < tt.current {
				step = tt.rateDown * tt.dtScale
			}
			want := int(math.Ceil(math.Abs(tt.target-tt.current) / step))
			require.Equal(t, tt.wantCalls, want)

			current := tt.current
			calls := 0
			for current != tt.target {
				next := ramp.Advance(current, tt.target, tt.rateUp, tt.rateDown, tt.dtScale)
				if tt.target > tt.current {
					require.LessOrEqual(t, next, tt.target, "overshoot at call %d", calls+1)
					require.Greater(t, next, current)
				} else {
					require.GreaterOrEqual(t, next, tt.target, "overshoot at call %d", calls+1)
					require.Less(t, next, current)
				}
				current = next
				calls++
				require.LessOrEqual(t, calls, tt.wantCalls)
			}

			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.target, current)
		})
	}
}

func TestAdvanceIdempotentAtTarget(t *testing.T) {
	for _, v := range []float64{0, 1500, -42.5} {
		assert.Equal(t, v, ramp.Advance(v, v, 50, 50, 1))
		assert.Equal(t, v, ramp.Advance(ramp.Advance(v, v, 3, 7, 0.1), v, 3, 7, 0.1))
	}
}

func TestAdvanceUsesDirectionalRate(t *testing.T) {
	assert.Equal(t, 10.0, ramp.Advance(0, 100, 10, 1, 1))
	assert.Equal(t, 99.0, ramp.Advance(100, 0, 10, 1, 1))
}

func TestControllerRampUpScenario(t *testing.T) {
	c := ramp.New(ramp.DefaultConfig())

	assert.InDelta(t, 10.0, c.Step(3000), 1e-9)

	for i := 0; i < 1000; i++ {
		v := c.Step(3000)
		require.LessOrEqual(t, v, 3000.0)
	}
	assert.Equal(t, 3000.0, c.Current())
}

func TestControllerRampDownScenario(t *testing.T) {
	cfg := ramp.DefaultConfig()
	c := ramp.New(cfg)
	for c.Current() < 3000 {
		c.Step(3000)
	}

	assert.InDelta(t, 2999.0, c.Step(0), 1e-9)

	up := cfg.UpStep()
	down := cfg.DownStep()
	assert.InDelta(t, 10.0, up/down, 1e-9, "ramp-down should be ten times slower")
}

func TestStepsToReach(t *testing.T) {
	c := ramp.New(ramp.DefaultConfig())

	assert.Equal(t, 300, c.StepsToReach(3000))
	assert.Equal(t, 1, c.StepsToReach(5))
	assert.Equal(t, 0, c.StepsToReach(0))

	for c.Current() < 100 {
		c.Step(100)
	}
	assert.Equal(t, 100, c.StepsToReach(0))
}

func TestReset(t *testing.T) {
	c := ramp.New(ramp.DefaultConfig())
	c.Step(500)
	require.NotZero(t, c.Current())

	c.Reset()
	assert.Zero(t, c.Current())
	assert.False(t, c.ResetOnEnable())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, ramp.DefaultConfig().Validate())

	cfg := ramp.DefaultConfig()
	cfg.RateDown = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ramp.ErrInvalidRate))

	cfg = ramp.DefaultConfig()
	cfg.UpCoefficient = math.NaN()
	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ramp.ErrInvalidCoefficient))

	cfg = ramp.DefaultConfig()
	cfg.TickScale = -1
	assert.True(t, errors.HasCode(cfg.Validate(), ramp.ErrInvalidCoefficient))
}
