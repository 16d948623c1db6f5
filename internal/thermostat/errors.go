package thermostat

import "errors"

// Domain errors for the thermostat package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, thermostat.ErrUnsupportedInMode) {
//	    // use a threshold command instead
//	}
var (
	// ErrNetwork is returned when a fetch or write to the controller fails
	// at the connection level (refused, reset, timeout, non-2xx).
	ErrNetwork = errors.New("thermostat: network error")

	// ErrMalformedSnapshot is returned when the controller's reply cannot be
	// parsed or is missing a required field.
	ErrMalformedSnapshot = errors.New("thermostat: malformed snapshot")

	// ErrUnsupportedInMode is returned when a command is not valid for the
	// device's current mode, e.g. a target temperature write in AUTO.
	ErrUnsupportedInMode = errors.New("thermostat: unsupported in current mode")

	// ErrInvalidCommand is returned for unknown commands and out-of-range values.
	ErrInvalidCommand = errors.New("thermostat: invalid command")
)
