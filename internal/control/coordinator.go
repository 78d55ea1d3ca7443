// Package control runs one control tick: ramp the commanded velocity toward
// the target, command the actuator, read back the measurement and record it.
package control

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/mutker/rampctl/internal/actuator"
	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/logger"
	"codeberg.org/mutker/rampctl/internal/metrics"
	"codeberg.org/mutker/rampctl/internal/ramp"
	"codeberg.org/mutker/rampctl/internal/store"
	"codeberg.org/mutker/rampctl/internal/telemetry"
	"golang.org/x/time/rate"
)

const ErrTickPanic = errors.ErrorCode("control_tick_panic")

// faultLogInterval bounds how often a recurring fault is logged
const faultLogInterval = time.Second

// SampleSink receives one telemetry sample per tick
type SampleSink interface {
	Append(s telemetry.Sample) error
}

// StatusRenderer shows the operator the latest measurement
type StatusRenderer interface {
	Render(measuredRPM, elapsed float64)
}

// Result describes one tick
type Result struct {
	Target    float64
	Commanded float64
	Measured  float64
	Elapsed   float64
	Sampled   bool
	Faults    int
}

// Coordinator owns everything a tick touches. It is driven from a single
// goroutine.
type Coordinator struct {
	act      actuator.Actuator
	ramp     *ramp.Controller
	slot     int
	sink     SampleSink
	recorder store.Recorder
	observer metrics.Observer
	status   StatusRenderer
	clock    *Clock
	logger   logger.Logger

	session      store.Session
	seq          int
	lastMeasured float64
	faultLimiter *rate.Limiter
	suppressed   int
}

// Option customizes a Coordinator
type Option func(*Coordinator)

func WithRecorder(r store.Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

func WithObserver(o metrics.Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

func WithStatus(s StatusRenderer) Option {
	return func(c *Coordinator) { c.status = s }
}

func WithClock(clock *Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func NewCoordinator(
	act actuator.Actuator, r *ramp.Controller, slot int, sink SampleSink, log logger.Logger, opts ...Option,
) *Coordinator {
	c := &Coordinator{
		act:          act,
		ramp:         r,
		slot:         slot,
		sink:         sink,
		observer:     metrics.Noop(),
		logger:       log,
		faultLimiter: rate.NewLimiter(rate.Every(faultLogInterval), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = NewClock()
	}

	return c
}

// BeginSession starts a recorded session for a new target. A store failure
// is logged and leaves the loop without a recorded session.
func (c *Coordinator) BeginSession(ctx context.Context, target float64) {
	c.seq = 0
	c.session = store.Session{}

	if c.recorder == nil {
		return
	}

	session, err := c.recorder.BeginSession(ctx, target)
	if err != nil {
		c.fault(metrics.FaultStore, err, "Failed to start session record")
		return
	}
	c.session = session

	c.logger.Info().Str("session", session.ID).Float64("target_rpm", target).Msg("Control session started")
}

// Ramp exposes the ramp state for lifecycle decisions
func (c *Coordinator) Ramp() *ramp.Controller {
	return c.ramp
}

// Tick runs one control period. It never fails and never panics: every
// fault is logged and the next tick proceeds from the last known state.
func (c *Coordinator) Tick(ctx context.Context, target float64) (res Result) {
	res.Target = target

	defer func() {
		if r := recover(); r != nil {
			res.Faults++
			c.fault(metrics.FaultPanic, errors.New().WithData(ErrTickPanic, fmt.Sprint(r)), "Recovered from panic in control tick")
		}
	}()

	res.Commanded = c.ramp.Step(target)

	if err := c.act.SetVelocity(actuator.RPMToRPS(res.Commanded), c.slot); err != nil {
		res.Faults++
		c.fault(metrics.FaultCommand, err, "Failed to command velocity")
	}

	res.Measured = c.lastMeasured
	native, err := c.act.Velocity()
	if err != nil {
		res.Faults++
		c.fault(metrics.FaultRead, err, "Failed to read velocity")
	} else {
		res.Measured = actuator.RPSToRPM(native)
		c.lastMeasured = res.Measured
	}

	res.Elapsed = c.clock.Elapsed()

	if err == nil {
		res.Sampled = true
		if err := c.sink.Append(telemetry.Sample{Elapsed: res.Elapsed, MeasuredRPM: res.Measured}); err != nil {
			res.Faults++
			c.fault(metrics.FaultTelemetry, err, "Failed to write telemetry sample")
		}
		c.record(ctx, &res)
	}

	c.observer.ObserveTick(target, res.Commanded, res.Measured, res.Elapsed)

	if c.status != nil {
		c.status.Render(res.Measured, res.Elapsed)
	}

	c.logger.Debug().
		Float64("target_rpm", target).
		Float64("commanded_rpm", res.Commanded).
		Float64("measured_rpm", res.Measured).
		Float64("elapsed", res.Elapsed).
		Msg("Tick")

	return res
}

// Neutral issues the fail-safe stop command. Failures are logged.
func (c *Coordinator) Neutral() {
	if err := c.act.SetNeutral(); err != nil {
		c.fault(metrics.FaultNeutral, err, "Failed to command neutral")
	}
}

func (c *Coordinator) record(ctx context.Context, res *Result) {
	if c.recorder == nil || c.session.ID == "" {
		return
	}

	c.seq++
	err := c.recorder.Record(ctx, &store.Snapshot{
		SessionID:    c.session.ID,
		Seq:          c.seq,
		Elapsed:      res.Elapsed,
		TargetRPM:    res.Target,
		CommandedRPM: res.Commanded,
		MeasuredRPM:  res.Measured,
	})
	if err != nil {
		res.Faults++
		c.fault(metrics.FaultStore, err, "Failed to record snapshot")
	}
}

// fault counts every fault and logs at most one per faultLogInterval
func (c *Coordinator) fault(kind string, err error, msg string) {
	c.observer.Fault(kind)

	if !c.faultLimiter.Allow() {
		c.suppressed++
		return
	}

	event := c.logger.Warn().Err(err).Str("kind", kind)
	if c.suppressed > 0 {
		event = event.Int("suppressed", c.suppressed)
		c.suppressed = 0
	}
	event.Msg(msg)
}
