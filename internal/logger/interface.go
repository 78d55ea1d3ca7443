package logger

import "codeberg.org/mutker/rampctl/internal/errors"

// Logger defines the interface for logging operations. Components take a
// Logger so tests can route their output to a buffer.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	ErrorWithCode(err errors.Error) *LogEvent
}
