package sensor

import "errors"

// Domain-specific errors for sensor operations.
var (
	// ErrSensorNotFound is returned when a sensor ID is not registered.
	ErrSensorNotFound = errors.New("sensor: not found")

	// ErrSensorExists is returned when registering a duplicate sensor ID.
	ErrSensorExists = errors.New("sensor: already registered")

	// ErrWrongKind is returned by the typed getters when the sensor is a
	// different variant.
	ErrWrongKind = errors.New("sensor: wrong kind")

	// ErrInvalidPayload is returned when a state payload cannot be parsed.
	ErrInvalidPayload = errors.New("sensor: invalid payload")

	// ErrUnknownKind is returned when building a sensor of an unknown type.
	ErrUnknownKind = errors.New("sensor: unknown kind")
)
