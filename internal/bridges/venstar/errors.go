package venstar

import "errors"

// Domain errors for the Venstar bridge package.
var (
	// ErrWriteRejected is returned when the controller answers a control
	// request with {"error": true}.
	ErrWriteRejected = errors.New("venstar: device rejected write")

	// ErrStopped is returned by a controller that has been torn down.
	ErrStopped = errors.New("venstar: controller stopped")

	// ErrUnknownDevice is returned when a device ID is not configured.
	ErrUnknownDevice = errors.New("venstar: unknown device")
)
