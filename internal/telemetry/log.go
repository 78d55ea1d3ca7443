// Package telemetry records the measured velocity of every control tick as
// `elapsed_seconds,measured_rpm` lines.
package telemetry

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/mutker/rampctl/internal/errors"
)

const (
	defaultDirPerm    = 0o755
	defaultFilePerm   = 0o644
	defaultBufferSize = 4096
	maxPending        = 16 * defaultBufferSize
)

// Log is an append-only telemetry sink. Records are buffered and written in
// order. When a write stops partway through a record, the unwritten rest
// stays at the head of the buffer and the next write completes that line
// before anything else, so records are never fused or interleaved. While the
// writer keeps failing, pending records beyond maxPending are dropped whole.
type Log struct {
	mu      sync.Mutex
	dst     io.Writer
	closer  io.Closer
	pending []byte
	// torn is set when dst ends inside a record whose remainder heads pending
	torn    bool
	scratch []byte
	count   int
	dropped int
	closed  bool
}

// Create truncates or creates the telemetry file at path
func Create(path string) (*Log, error) {
	errFactory := errors.New()

	if path == "" {
		return nil, errFactory.New(ErrInvalidPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFilePerm)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	l := New(f)
	l.closer = f

	return l, nil
}

// New wraps an arbitrary writer. Close flushes it but does not close it.
func New(w io.Writer) *Log {
	return &Log{
		dst:     w,
		pending: make([]byte, 0, defaultBufferSize),
		scratch: make([]byte, 0, 64),
	}
}

// Append buffers one sample, writing the buffer out first when it is full.
// A write error is returned but the sample is kept and retried with the
// next write.
func (l *Log) Append(s Sample) error {
	errFactory := errors.New()

	if err := s.validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return errFactory.New(ErrClosed)
	}

	l.scratch = appendRecord(l.scratch[:0], s)

	var writeErr error
	if len(l.pending)+len(l.scratch) > defaultBufferSize {
		writeErr = l.write()
	}

	if len(l.pending)+len(l.scratch) > maxPending {
		l.shed()
	}

	l.pending = append(l.pending, l.scratch...)
	l.count++

	if writeErr != nil {
		return errFactory.Wrap(ErrStorageWrite, writeErr)
	}

	return nil
}

// Flush pushes buffered samples to the underlying writer and, for files,
// syncs them to disk.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	return l.flush()
}

func (l *Log) flush() error {
	errFactory := errors.New()

	if err := l.write(); err != nil {
		return errFactory.Wrap(ErrStorageFlush, err)
	}

	if f, ok := l.closer.(*os.File); ok {
		if err := f.Sync(); err != nil {
			return errFactory.Wrap(ErrStorageFlush, err)
		}
	}

	return nil
}

// write hands the pending bytes to dst and keeps whatever it did not accept
func (l *Log) write() error {
	if len(l.pending) == 0 {
		return nil
	}

	n, err := l.dst.Write(l.pending)
	if n > 0 && n <= len(l.pending) {
		l.torn = l.pending[n-1] != '\n'
		l.pending = append(l.pending[:0], l.pending[n:]...)
	}

	if err == nil && len(l.pending) > 0 {
		err = io.ErrShortWrite
	}

	return err
}

// shed drops every pending record except the remainder of a torn one
func (l *Log) shed() {
	keep := 0
	if l.torn {
		keep = bytes.IndexByte(l.pending, '\n') + 1
	}

	l.dropped += bytes.Count(l.pending[keep:], []byte{'\n'})
	l.pending = l.pending[:keep]
}

// Close flushes and releases the sink. It is safe to call more than once.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	flushErr := l.flush()

	if l.closer != nil {
		if err := l.closer.Close(); err != nil {
			return errors.New().Wrap(ErrStorageClose, err)
		}
	}

	return flushErr
}

// Dropped returns the number of accepted samples discarded because the
// writer kept failing
func (l *Log) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Count returns the number of samples accepted so far
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
