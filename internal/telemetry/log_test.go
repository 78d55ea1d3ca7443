package telemetry_test

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"codeberg.org/mutker/rampctl/internal/errors"
	"codeberg.org/mutker/rampctl/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyWriter struct {
	buf   bytes.Buffer
	fails int
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fails > 0 {
		w.fails--
		return 0, io.ErrShortWrite
	}
	return w.buf.Write(p)
}

func TestAppendPreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	log := telemetry.New(&buf)

	want := make([]telemetry.Sample, 0, 500)
	for i := 0; i < 500; i++ {
		want = append(want, telemetry.Sample{
			Elapsed:     float64(i) * 0.02,
			MeasuredRPM: float64(i%37) * 13.25,
		})
	}

	for _, s := range want {
		require.NoError(t, log.Append(s))
	}
	require.NoError(t, log.Flush())
	assert.Equal(t, len(want), log.Count())

	got, err := telemetry.Read(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	assert.Equal(t, want, got)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Elapsed, got[i-1].Elapsed)
	}
}

func TestRecordFormat(t *testing.T) {
	var buf bytes.Buffer
	log := telemetry.New(&buf)

	require.NoError(t, log.Append(telemetry.Sample{Elapsed: 0.5, MeasuredRPM: 1200}))
	require.NoError(t, log.Append(telemetry.Sample{Elapsed: 1234567.25, MeasuredRPM: -3.125}))
	require.NoError(t, log.Close())

	assert.Equal(t, "0.5,1200\n1234567.25,-3.125\n", buf.String())
}

func TestCreateTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "rpm_data.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale,line\n"), 0o600))

	log, err := telemetry.Create(path)
	require.NoError(t, err)
	require.NoError(t, log.Append(telemetry.Sample{Elapsed: 1, MeasuredRPM: 2}))
	require.NoError(t, log.Close())
	require.NoError(t, log.Close(), "close is idempotent")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1,2\n", string(data))
}

func TestCreateRejectsEmptyPath(t *testing.T) {
	_, err := telemetry.Create("")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrInvalidPath))
}

func TestAppendAfterClose(t *testing.T) {
	log := telemetry.New(io.Discard)
	require.NoError(t, log.Close())

	err := log.Append(telemetry.Sample{Elapsed: 1})
	assert.True(t, errors.HasCode(err, telemetry.ErrClosed))
	assert.NoError(t, log.Flush())
}

func TestAppendRejectsInvalidSample(t *testing.T) {
	log := telemetry.New(io.Discard)

	for _, s := range []telemetry.Sample{
		{Elapsed: -1, MeasuredRPM: 0},
		{Elapsed: math.NaN(), MeasuredRPM: 0},
		{Elapsed: 1, MeasuredRPM: math.Inf(1)},
	} {
		err := log.Append(s)
		assert.True(t, errors.HasCode(err, telemetry.ErrInvalidSample), "%+v", s)
	}
	assert.Zero(t, log.Count())
}

func TestFlushFailureKeepsPendingSamples(t *testing.T) {
	w := &flakyWriter{fails: 1}
	log := telemetry.New(w)

	require.NoError(t, log.Append(telemetry.Sample{Elapsed: 0.1, MeasuredRPM: 10}))
	require.NoError(t, log.Append(telemetry.Sample{Elapsed: 0.2, MeasuredRPM: 20}))

	err := log.Flush()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrStorageFlush))
	assert.Empty(t, w.buf.String())

	require.NoError(t, log.Append(telemetry.Sample{Elapsed: 0.3, MeasuredRPM: 30}))
	require.NoError(t, log.Flush())

	samples, err := telemetry.Read(strings.NewReader(w.buf.String()))
	require.NoError(t, err)
	assert.Equal(t, []telemetry.Sample{
		{Elapsed: 0.1, MeasuredRPM: 10},
		{Elapsed: 0.2, MeasuredRPM: 20},
		{Elapsed: 0.3, MeasuredRPM: 30},
	}, samples)
}

// tornWriter accepts the first accept bytes of the first write, then fails
// every write while broken is set.
type tornWriter struct {
	buf    bytes.Buffer
	accept int
	broken bool
	torn   bool
}

func (w *tornWriter) Write(p []byte) (int, error) {
	if !w.broken {
		return w.buf.Write(p)
	}
	if w.torn {
		return 0, syscall.ENOSPC
	}
	w.torn = true
	n := min(w.accept, len(p))
	w.buf.Write(p[:n])
	return n, syscall.ENOSPC
}

func TestShortWriteCompletesTornRecord(t *testing.T) {
	w := &tornWriter{accept: 3, broken: true}
	log := telemetry.New(w)

	require.NoError(t, log.Append(telemetry.Sample{Elapsed: 0.1, MeasuredRPM: 10}))
	err := log.Flush()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrStorageFlush))
	assert.Equal(t, "0.1", w.buf.String())

	w.broken = false
	require.NoError(t, log.Append(telemetry.Sample{Elapsed: 0.2, MeasuredRPM: 20}))
	require.NoError(t, log.Flush())

	assert.Equal(t, "0.1,10\n0.2,20\n", w.buf.String())
	samples, err := telemetry.Read(strings.NewReader(w.buf.String()))
	require.NoError(t, err)
	assert.Len(t, samples, 2)
}

func TestPersistentFailureShedsWholeRecords(t *testing.T) {
	w := &tornWriter{accept: 3, broken: true}
	log := telemetry.New(w)

	var lastErr error
	for i := 0; i < 20000; i++ {
		if err := log.Append(telemetry.Sample{Elapsed: float64(i) * 0.02, MeasuredRPM: 1234.5}); err != nil {
			lastErr = err
		}
	}
	require.Error(t, lastErr)
	assert.True(t, errors.HasCode(lastErr, telemetry.ErrStorageWrite))
	assert.Positive(t, log.Dropped())

	w.broken = false
	require.NoError(t, log.Flush())

	out := w.buf.String()
	assert.True(t, strings.HasPrefix(out, "0,1234.5\n"), "the torn first record is completed")
	samples, err := telemetry.Read(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, log.Count()-log.Dropped(), len(samples))
	for i := 1; i < len(samples); i++ {
		assert.Greater(t, samples[i].Elapsed, samples[i-1].Elapsed)
	}
}

func TestReadMalformed(t *testing.T) {
	_, err := telemetry.Read(strings.NewReader("1,2\nbroken\n"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrMalformedLine))

	_, err = telemetry.Read(strings.NewReader("1,x\n"))
	assert.True(t, errors.HasCode(err, telemetry.ErrMalformedLine))
}
