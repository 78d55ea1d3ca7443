package store

import "codeberg.org/mutker/rampctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("store_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("store_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("store_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("store_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("store_transaction_failed")

	// Storage Errors
	ErrStorageAccess = errors.ErrorCode("store_storage_access_failed")
	ErrStorageInit   = errors.ErrInitFailed
	ErrStorageClose  = errors.ErrShutdownFailed

	// Recording Errors
	ErrNoSession       = errors.ErrorCode("store_no_session")
	ErrInvalidSnapshot = errors.ErrorCode("store_invalid_snapshot")
	ErrClosed          = errors.ErrorCode("store_closed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
)
