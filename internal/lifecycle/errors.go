package lifecycle

import "codeberg.org/mutker/rampctl/internal/errors"

const (
	ErrAlreadyInitialized = errors.ErrorCode("lifecycle_already_initialized")
	ErrConfigureFailed    = errors.ErrorCode("lifecycle_configure_failed")
)
