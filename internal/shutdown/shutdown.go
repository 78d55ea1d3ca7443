// Package shutdown turns a termination signal into an orderly exit: pending
// telemetry is flushed, the post-processing command runs, and the process
// exits with the signal number.
package shutdown

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/logger"
	"github.com/google/shlex"
	"github.com/tebeka/atexit"
)

const DefaultCommand = "python3 graph.py"

type State int32

const (
	StateRunning State = iota
	StateFinalizing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFinalizing:
		return "finalizing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type Config struct {
	// Command runs after telemetry is flushed. Empty disables it.
	Command string `mapstructure:"command"`
}

func DefaultConfig() Config {
	return Config{Command: DefaultCommand}
}

// Flusher persists buffered data before the post-processing command reads it
type Flusher interface {
	Flush() error
}

// Runner executes the post-processing command and waits for it
type Runner func(ctx context.Context, argv []string) error

// Handler is safe to trigger from any goroutine. Finalize belongs to the
// goroutine that owns the flushers.
type Handler struct {
	argv     []string
	flushers []Flusher
	run      Runner
	exit     func(code int)
	logger   logger.Logger

	state     atomic.Int32
	code      atomic.Int32
	requested chan struct{}
	trigger   sync.Once
	finalize  sync.Once
}

type Option func(*Handler)

// WithRunner replaces command execution
func WithRunner(r Runner) Option {
	return func(h *Handler) { h.run = r }
}

// WithExit replaces the process exit
func WithExit(exit func(code int)) Option {
	return func(h *Handler) { h.exit = exit }
}

func New(cfg Config, log logger.Logger, flushers []Flusher, opts ...Option) (*Handler, error) {
	argv, err := shlex.Split(cfg.Command)
	if err != nil {
		return nil, errors.New().Wrap(ErrInvalidCommand, err)
	}

	h := &Handler{
		argv:      argv,
		flushers:  flushers,
		run:       execRunner,
		exit:      atexit.Exit,
		logger:    log,
		requested: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// Install routes SIGINT and SIGTERM to Trigger until ctx is done
func (h *Handler) Install(ctx context.Context) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigs:
				code := 1
				if s, ok := sig.(syscall.Signal); ok {
					code = int(s)
				}
				h.logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
				h.Trigger(code)
			}
		}
	}()
}

// Trigger requests shutdown with the given exit code. Only the first call
// takes effect; it reports whether this call was the one.
func (h *Handler) Trigger(code int) bool {
	accepted := false
	h.trigger.Do(func() {
		h.code.Store(int32(code))
		close(h.requested)
		accepted = true
	})

	if !accepted {
		h.logger.Debug().Int("code", code).Msg("Shutdown already requested, ignoring")
	}

	return accepted
}

// Requested is closed once shutdown has been triggered
func (h *Handler) Requested() <-chan struct{} {
	return h.requested
}

func (h *Handler) Code() int {
	return int(h.code.Load())
}

func (h *Handler) State() State {
	return State(h.state.Load())
}

// Finalize flushes, runs the post-processing command and exits. Failures
// are logged and never stop the exit. Only the first call does anything.
func (h *Handler) Finalize() {
	h.finalize.Do(func() {
		h.state.Store(int32(StateFinalizing))
		code := h.Code()

		for _, f := range h.flushers {
			if err := f.Flush(); err != nil {
				h.logger.Error().Err(errors.New().Wrap(ErrFlushFailed, err)).Msg("Failed to flush before exit")
			}
		}

		if len(h.argv) > 0 {
			h.logger.Info().Strs("command", h.argv).Msg("Running post-processing command")
			if err := h.run(context.Background(), h.argv); err != nil {
				h.logger.Error().Err(errors.New().Wrap(ErrCommandFailed, err)).Strs("command", h.argv).
					Msg("Post-processing command failed")
			}
		}

		h.state.Store(int32(StateTerminated))
		h.logger.Info().Int("code", code).Msg("Exiting")
		h.exit(code)
	})
}

func execRunner(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
