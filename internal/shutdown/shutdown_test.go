package shutdown_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/logger"
	"codeberg.org/mutker/rampctl/internal/shutdown"
	"codeberg.org/mutker/rampctl/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetOutput(io.Discard)
}

type recorder struct {
	calls    [][]string
	contents []string
	path     string
	err      error
}

func (r *recorder) run(_ context.Context, argv []string) error {
	r.calls = append(r.calls, argv)
	if r.path != "" {
		data, _ := os.ReadFile(r.path)
		r.contents = append(r.contents, string(data))
	}
	return r.err
}

type failingFlusher struct{ calls int }

func (f *failingFlusher) Flush() error {
	f.calls++
	return errors.New().New(errors.ErrUnavailable)
}

func TestFinalizeFlushesRunsCommandAndExits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rpm_data.csv")
	log, err := telemetry.Create(path)
	require.NoError(t, err)
	defer log.Close()

	for i := 1; i <= 3; i++ {
		require.NoError(t, log.Append(telemetry.Sample{Elapsed: float64(i) * 0.02, MeasuredRPM: float64(i) * 10}))
	}

	rec := &recorder{path: path}
	var exitCodes []int
	h, err := shutdown.New(shutdown.DefaultConfig(), logger.Default(), []shutdown.Flusher{log},
		shutdown.WithRunner(rec.run),
		shutdown.WithExit(func(code int) { exitCodes = append(exitCodes, code) }),
	)
	require.NoError(t, err)

	assert.True(t, h.Trigger(int(syscall.SIGINT)))
	assert.False(t, h.Trigger(int(syscall.SIGTERM)), "second signal is ignored")

	select {
	case <-h.Requested():
	default:
		t.Fatal("shutdown not marked requested")
	}

	h.Finalize()
	h.Finalize()

	require.Len(t, rec.calls, 1)
	assert.Equal(t, []string{"python3", "graph.py"}, rec.calls[0])
	assert.Equal(t, []int{2}, exitCodes)
	assert.Equal(t, shutdown.StateTerminated, h.State())

	content := rec.contents[0]
	assert.True(t, strings.HasSuffix(content, "\n"), "telemetry ends with a whole line")
	samples, err := telemetry.Read(strings.NewReader(content))
	require.NoError(t, err)
	assert.Len(t, samples, 3)
}

func TestFinalizeContinuesPastFailures(t *testing.T) {
	flusher := &failingFlusher{}
	rec := &recorder{err: errors.New().New(errors.ErrUnavailable)}
	exitCode := -1

	h, err := shutdown.New(shutdown.Config{Command: "plot --out 'run 1.png'"}, logger.Default(),
		[]shutdown.Flusher{flusher},
		shutdown.WithRunner(rec.run),
		shutdown.WithExit(func(code int) { exitCode = code }),
	)
	require.NoError(t, err)

	h.Trigger(int(syscall.SIGTERM))
	h.Finalize()

	assert.Equal(t, 1, flusher.calls)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, []string{"plot", "--out", "run 1.png"}, rec.calls[0])
	assert.Equal(t, int(syscall.SIGTERM), exitCode)
}

func TestEmptyCommandSkipsPostProcessing(t *testing.T) {
	rec := &recorder{}
	exited := false

	h, err := shutdown.New(shutdown.Config{}, logger.Default(), nil,
		shutdown.WithRunner(rec.run),
		shutdown.WithExit(func(int) { exited = true }),
	)
	require.NoError(t, err)

	h.Trigger(2)
	h.Finalize()

	assert.Empty(t, rec.calls)
	assert.True(t, exited)
}

func TestInvalidCommand(t *testing.T) {
	_, err := shutdown.New(shutdown.Config{Command: `python3 "graph.py`}, logger.Default(), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, shutdown.ErrInvalidCommand))
}

func TestInstallRecordsSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, err := shutdown.New(shutdown.Config{}, logger.Default(), nil, shutdown.WithExit(func(int) {}))
	require.NoError(t, err)
	h.Install(ctx)

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-h.Requested():
	case <-time.After(time.Second):
		t.Fatal("signal not delivered")
	}
	assert.Equal(t, int(syscall.SIGTERM), h.Code())
	assert.Equal(t, shutdown.StateRunning, h.State(), "the signal path never finalizes")
}
