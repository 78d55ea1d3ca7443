package telemetry

import "codeberg.org/mutker/rampctl/internal/errors"

const (
	ErrInvalidPath   = errors.ErrorCode("telemetry_invalid_path")
	ErrStorageInit   = errors.ErrorCode("telemetry_storage_init_failed")
	ErrStorageWrite  = errors.ErrorCode("telemetry_storage_write_failed")
	ErrStorageFlush  = errors.ErrorCode("telemetry_storage_flush_failed")
	ErrStorageClose  = errors.ErrorCode("telemetry_storage_close_failed")
	ErrClosed        = errors.ErrorCode("telemetry_log_closed")
	ErrInvalidSample = errors.ErrorCode("telemetry_invalid_sample")
	ErrMalformedLine = errors.ErrorCode("telemetry_malformed_line")
)
