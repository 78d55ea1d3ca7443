package actuator

import "codeberg.org/mutker/rampctl/internal/errors"

const (
	// Initialization and Lifecycle Errors
	ErrNotConfigured = errors.ErrorCode("actuator_not_configured")
	ErrInitFailed    = errors.ErrorCode("actuator_init_failed")
	ErrUnknownKind   = errors.ErrorCode("actuator_unknown_kind")
	ErrClosed        = errors.ErrorCode("actuator_closed")

	// Command Errors
	ErrConfigureFailed = errors.ErrorCode("actuator_configure_failed")
	ErrSetVelocity     = errors.ErrorCode("actuator_set_velocity_failed")
	ErrSetNeutral      = errors.ErrorCode("actuator_set_neutral_failed")
	ErrInvalidSlot     = errors.ErrorCode("actuator_invalid_slot")

	// Measurement Errors
	ErrReadVelocity = errors.ErrorCode("actuator_read_velocity_failed")

	// Transport Errors
	ErrTransport      = errors.ErrorCode("actuator_transport_failed")
	ErrDeviceRejected = errors.ErrorCode("actuator_device_rejected")
	ErrBadResponse    = errors.ErrorCode("actuator_bad_response")
)
