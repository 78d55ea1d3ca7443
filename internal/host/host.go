// Package host drives the lifecycle callbacks at a fixed period and hands
// shutdown requests to the finalizer from the ticking goroutine.
package host

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/logger"
)

const DefaultPeriod = 20 * time.Millisecond

const ErrInvalidPeriod = errors.ErrorCode("host_invalid_period")

// Callbacks are invoked from the host goroutine only
type Callbacks interface {
	OnInit(ctx context.Context) error
	OnEnabledTick(ctx context.Context)
	OnDisabledTick(ctx context.Context)
}

// Enabler reports whether the loop should run this period
type Enabler interface {
	Enabled() bool
}

// Supervisor signals a pending shutdown and performs it
type Supervisor interface {
	Requested() <-chan struct{}
	Finalize()
}

// Host owns the ticking goroutine
type Host struct {
	period     time.Duration
	callbacks  Callbacks
	enabler    Enabler
	supervisor Supervisor
	logger     logger.Logger
	ticks      atomic.Uint64
}

func New(period time.Duration, callbacks Callbacks, enabler Enabler, supervisor Supervisor, log logger.Logger) *Host {
	return &Host{
		period:     period,
		callbacks:  callbacks,
		enabler:    enabler,
		supervisor: supervisor,
		logger:     log,
	}
}

// Run initializes the callbacks and ticks until ctx is done or a shutdown is
// requested. A requested shutdown is finalized before Run returns.
func (h *Host) Run(ctx context.Context) error {
	errFactory := errors.New()

	if h.period <= 0 {
		return errFactory.WithData(ErrInvalidPeriod, h.period)
	}

	if err := h.callbacks.OnInit(ctx); err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	var requested <-chan struct{}
	if h.supervisor != nil {
		requested = h.supervisor.Requested()
	}

	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	h.logger.Info().Dur("period", h.period).Msg("Control loop started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-requested:
			h.logger.Info().Uint64("ticks", h.ticks.Load()).Msg("Shutdown requested, finalizing")
			h.supervisor.Finalize()
			return nil
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

// Ticks returns the number of periods run so far
func (h *Host) Ticks() uint64 {
	return h.ticks.Load()
}

func (h *Host) tick(ctx context.Context) {
	h.ticks.Add(1)

	if h.enabler.Enabled() {
		h.callbacks.OnEnabledTick(ctx)
	} else {
		h.callbacks.OnDisabledTick(ctx)
	}
}

// Toggle is an Enabler flipped by the operator
type Toggle struct {
	enabled atomic.Bool
	logger  logger.Logger
}

func NewToggle(enabled bool, log logger.Logger) *Toggle {
	t := &Toggle{logger: log}
	t.enabled.Store(enabled)
	return t
}

func (t *Toggle) Enabled() bool {
	return t.enabled.Load()
}

func (t *Toggle) Set(enabled bool) {
	t.enabled.Store(enabled)
}

// Flip inverts the flag and returns the new value
func (t *Toggle) Flip() bool {
	for {
		old := t.enabled.Load()
		if t.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// WatchSignal flips the toggle on every SIGUSR1 until ctx is done
func (t *Toggle) WatchSignal(ctx context.Context) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				enabled := t.Flip()
				t.logger.Info().Bool("enabled", enabled).Msg("Received SIGUSR1, toggled control")
			}
		}
	}()
}
