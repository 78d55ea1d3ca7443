package actuator

import (
	"math"
	"sync"
	"time"

	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/logger"
)

const (
	defaultTimeConstant = 250 * time.Millisecond
	coastFactor         = 8
	maxSlot             = 3
)

// Simulated models a motor whose measured velocity follows the command as a
// first-order lag. In neutral the rotor coasts down with a longer time
// constant.
type Simulated struct {
	mu         sync.Mutex
	tau        time.Duration
	now        func() time.Time
	gains      Gains
	configured bool
	neutral    bool
	commanded  float64
	measured   float64
	lastUpdate time.Time
	closed     bool
	logger     logger.Logger
}

// SimOption customizes a Simulated actuator
type SimOption func(*Simulated)

// WithClock replaces the time source. Used by tests.
func WithClock(now func() time.Time) SimOption {
	return func(s *Simulated) {
		s.now = now
	}
}

func NewSimulated(tau time.Duration, log logger.Logger, opts ...SimOption) *Simulated {
	if tau <= 0 {
		tau = defaultTimeConstant
	}

	s := &Simulated{
		tau:     tau,
		now:     time.Now,
		neutral: true,
		logger:  log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastUpdate = s.now()

	return s
}

func (s *Simulated) Configure(gains Gains) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New().New(ErrClosed)
	}

	s.gains = gains
	s.configured = true
	s.logger.Debug().
		Float64("kv", gains.KV).
		Float64("kp", gains.KP).
		Float64("ki", gains.KI).
		Float64("kd", gains.KD).
		Msg("Simulated actuator configured")

	return nil
}

func (s *Simulated) SetVelocity(rps float64, slot int) error {
	errFactory := errors.New()
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return errFactory.New(ErrClosed)
	case !s.configured:
		return errFactory.New(ErrNotConfigured)
	case slot < 0 || slot > maxSlot:
		return errFactory.WithData(ErrInvalidSlot, slot)
	case math.IsNaN(rps) || math.IsInf(rps, 0):
		return errFactory.WithData(ErrSetVelocity, rps)
	}

	s.advance()
	s.commanded = rps
	s.neutral = false

	return nil
}

func (s *Simulated) SetNeutral() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New().New(ErrClosed)
	}

	s.advance()
	s.commanded = 0
	s.neutral = true

	return nil
}

func (s *Simulated) Velocity() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New().New(ErrClosed)
	}

	s.advance()

	return s.measured, nil
}

func (s *Simulated) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

// advance integrates the lag model up to now
func (s *Simulated) advance() {
	now := s.now()
	dt := now.Sub(s.lastUpdate)
	s.lastUpdate = now
	if dt <= 0 {
		return
	}

	tau := s.tau
	if s.neutral {
		tau *= coastFactor
	}

	alpha := 1 - math.Exp(-dt.Seconds()/tau.Seconds())
	s.measured += (s.commanded - s.measured) * alpha
}
