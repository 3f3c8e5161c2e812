package store

import "errors"

// Domain errors for the store package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, store.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device name does not exist.
	ErrDeviceNotFound = errors.New("store: device not found")

	// ErrPinNotFound is returned when a (device, pin) pair does not exist.
	ErrPinNotFound = errors.New("store: pin not found")

	// ErrVariableNotFound is returned when a variable name does not exist.
	ErrVariableNotFound = errors.New("store: variable not found")

	// ErrVariableExists is returned when creating a variable that already exists.
	ErrVariableExists = errors.New("store: variable already exists")

	// ErrInvalidModulo is returned when toggling a variable with a
	// non-positive modulo.
	ErrInvalidModulo = errors.New("store: modulo must be positive")

	// ErrInvalidEdge is returned when an edge value is not rising, falling
	// or both.
	ErrInvalidEdge = errors.New("store: invalid edge")

	// ErrInvalidPinKind is returned when a pin kind is not input or output.
	ErrInvalidPinKind = errors.New("store: invalid pin kind")
)
