package registration

import "errors"

var (
	// ErrDeviceNotFound is returned when a location or endpoint name does not
	// resolve to a live registration. Callers treat it as routine.
	ErrDeviceNotFound = errors.New("registration: device not found")

	// ErrMissingEndpoint is returned by Register when no endpoint name is given.
	ErrMissingEndpoint = errors.New("registration: missing endpoint name")

	// ErrInvalidParams is returned by ParamsFromQuery for malformed values.
	ErrInvalidParams = errors.New("registration: invalid parameters")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("registration: sweep already started")
)
