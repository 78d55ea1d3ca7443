package shutdown

import "codeberg.org/mutker/rampctl/internal/errors"

const (
	ErrInvalidCommand = errors.ErrorCode("shutdown_invalid_command")
	ErrCommandFailed  = errors.ErrorCode("shutdown_command_failed")
	ErrFlushFailed    = errors.ErrorCode("shutdown_flush_failed")
)
