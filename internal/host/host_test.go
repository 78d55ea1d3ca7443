package host_test

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/host"
	"codeberg.org/mutker/rampctl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetOutput(io.Discard)
}

type countingCallbacks struct {
	initErr  error
	inits    atomic.Int32
	enabled  atomic.Int32
	disabled atomic.Int32
}

func (c *countingCallbacks) OnInit(context.Context) error {
	c.inits.Add(1)
	return c.initErr
}

func (c *countingCallbacks) OnEnabledTick(context.Context)  { c.enabled.Add(1) }
func (c *countingCallbacks) OnDisabledTick(context.Context) { c.disabled.Add(1) }

type fakeSupervisor struct {
	requested chan struct{}
	once      sync.Once
	finalized atomic.Int32
}

func newFakeSupervisor() *fakeSupervisor {
	return &fakeSupervisor{requested: make(chan struct{})}
}

func (s *fakeSupervisor) Requested() <-chan struct{} { return s.requested }
func (s *fakeSupervisor) Finalize()                  { s.finalized.Add(1) }
func (s *fakeSupervisor) trigger()                   { s.once.Do(func() { close(s.requested) }) }

func TestRunDispatchesByEnabler(t *testing.T) {
	cb := &countingCallbacks{}
	toggle := host.NewToggle(true, logger.Default())
	h := host.New(time.Millisecond, cb, toggle, nil, logger.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool { return cb.enabled.Load() >= 3 }, time.Second, time.Millisecond)
	toggle.Set(false)
	require.Eventually(t, func() bool { return cb.disabled.Load() >= 3 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), cb.inits.Load())
	assert.GreaterOrEqual(t, h.Ticks(), uint64(6))
}

func TestRunFinalizesOnRequest(t *testing.T) {
	cb := &countingCallbacks{}
	sup := newFakeSupervisor()
	h := host.New(time.Millisecond, cb, host.NewToggle(false, logger.Default()), sup, logger.Default())

	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background()) }()

	require.Eventually(t, func() bool { return cb.disabled.Load() >= 1 }, time.Second, time.Millisecond)
	sup.trigger()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("host did not stop after shutdown request")
	}
	assert.Equal(t, int32(1), sup.finalized.Load())
}

func TestRunInitFailure(t *testing.T) {
	cb := &countingCallbacks{initErr: errors.New().New(errors.ErrUnavailable)}
	h := host.New(time.Millisecond, cb, host.NewToggle(true, logger.Default()), nil, logger.Default())

	err := h.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInitApp))
	assert.Zero(t, cb.enabled.Load())
}

func TestRunInvalidPeriod(t *testing.T) {
	h := host.New(0, &countingCallbacks{}, host.NewToggle(true, logger.Default()), nil, logger.Default())

	err := h.Run(context.Background())
	assert.True(t, errors.HasCode(err, host.ErrInvalidPeriod))
}

func TestToggleFlip(t *testing.T) {
	toggle := host.NewToggle(false, logger.Default())

	assert.True(t, toggle.Flip())
	assert.True(t, toggle.Enabled())
	assert.False(t, toggle.Flip())
	assert.False(t, toggle.Enabled())
}

func TestToggleWatchSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	toggle := host.NewToggle(false, logger.Default())
	toggle.WatchSignal(ctx)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))
	require.Eventually(t, toggle.Enabled, time.Second, time.Millisecond)
}
