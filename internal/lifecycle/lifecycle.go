// Package lifecycle maps the host's init, enabled and disabled callbacks onto
// the control loop.
package lifecycle

import (
	"context"

	"codeberg.org/mutker/rampctl/internal/actuator"
	"codeberg.org/mutker/rampctl/internal/control"
	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/logger"
	"codeberg.org/mutker/rampctl/internal/metrics"
	"codeberg.org/mutker/rampctl/internal/ramp"
)

type State int

const (
	StateInit State = iota
	StateDisabled
	StateAwaitingTarget
	StateEnabled
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDisabled:
		return "disabled"
	case StateAwaitingTarget:
		return "awaiting_target"
	case StateEnabled:
		return "enabled"
	default:
		return "unknown"
	}
}

// TargetSource supplies the operator's velocity target without blocking the
// tick. Cancel withdraws an open request so a late answer is not taken by the
// next one.
type TargetSource interface {
	Request()
	Poll() (float64, bool)
	Cancel()
}

// Loop is the part of the control coordinator the lifecycle drives
type Loop interface {
	BeginSession(ctx context.Context, target float64)
	Tick(ctx context.Context, target float64) control.Result
	Neutral()
	Ramp() *ramp.Controller
}

// Adapter is called from the host goroutine only
type Adapter struct {
	act      actuator.Actuator
	gains    actuator.Gains
	loop     Loop
	targets  TargetSource
	observer metrics.Observer
	logger   logger.Logger

	state        State
	target       float64
	warnedUninit bool
}

type Option func(*Adapter)

func WithObserver(o metrics.Observer) Option {
	return func(a *Adapter) { a.observer = o }
}

func New(
	act actuator.Actuator, gains actuator.Gains, loop Loop, targets TargetSource, log logger.Logger, opts ...Option,
) *Adapter {
	a := &Adapter{
		act:      act,
		gains:    gains,
		loop:     loop,
		targets:  targets,
		observer: metrics.Noop(),
		logger:   log,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// OnInit configures the actuator gains. It succeeds at most once.
func (a *Adapter) OnInit(_ context.Context) error {
	errFactory := errors.New()

	if a.state != StateInit {
		return errFactory.New(ErrAlreadyInitialized)
	}

	if err := a.act.Configure(a.gains); err != nil {
		return errFactory.Wrap(ErrConfigureFailed, err)
	}
	a.state = StateDisabled

	a.logger.Info().
		Float64("kv", a.gains.KV).
		Float64("kp", a.gains.KP).
		Float64("ki", a.gains.KI).
		Float64("kd", a.gains.KD).
		Msg("Actuator configured")

	return nil
}

// OnEnabledTick runs one enabled period. Until a target is known it keeps
// the actuator in neutral.
func (a *Adapter) OnEnabledTick(ctx context.Context) {
	switch a.state {
	case StateInit:
		a.uninitializedTick()
		return
	case StateDisabled:
		a.state = StateAwaitingTarget
		a.targets.Request()
		a.logger.Info().Msg("Control enabled, awaiting target")
	case StateAwaitingTarget, StateEnabled:
	}

	if a.state == StateAwaitingTarget {
		target, ok := a.targets.Poll()
		if !ok {
			a.loop.Neutral()
			return
		}
		a.enable(ctx, target)
	}

	a.loop.Tick(ctx, a.target)
}

// OnDisabledTick keeps the actuator in neutral
func (a *Adapter) OnDisabledTick(_ context.Context) {
	if a.state == StateInit {
		a.uninitializedTick()
		return
	}

	if a.state != StateDisabled {
		if a.state == StateAwaitingTarget {
			a.targets.Cancel()
		}
		a.state = StateDisabled
		a.observer.SetEnabled(false)
		a.logger.Info().Msg("Control disabled")
	}

	a.loop.Neutral()
}

func (a *Adapter) State() State {
	return a.state
}

// Target returns the target of the current or most recent session
func (a *Adapter) Target() float64 {
	return a.target
}

func (a *Adapter) enable(ctx context.Context, target float64) {
	a.target = target

	r := a.loop.Ramp()
	if r.ResetOnEnable() {
		r.Reset()
	}

	a.loop.BeginSession(ctx, target)
	a.observer.SetEnabled(true)
	a.state = StateEnabled

	a.logger.Info().
		Float64("target_rpm", target).
		Float64("start_rpm", r.Current()).
		Int("steps", r.StepsToReach(target)).
		Msg("Target accepted")
}

func (a *Adapter) uninitializedTick() {
	if !a.warnedUninit {
		a.logger.Warn().Msg("Tick before initialization, holding neutral")
		a.warnedUninit = true
	}
	a.loop.Neutral()
}
