package telemetry

import "errors"

// Domain-specific errors for telemetry operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTransport wraps every failed write: network errors, timeouts and
	// non-2xx responses alike.
	ErrTransport = errors.New("telemetry: transport failure")

	// ErrNoReadings is returned by Render when no field has a reading.
	ErrNoReadings = errors.New("telemetry: no sensor readings")

	// ErrMissingReadings is returned by Render under the require_all policy
	// when at least one field has no reading.
	ErrMissingReadings = errors.New("telemetry: sensor readings missing")

	// ErrForeignMeasurement is returned when a measurement is published
	// through a publisher that did not create it.
	ErrForeignMeasurement = errors.New("telemetry: measurement belongs to another publisher")

	// ErrMeasurementNotFound is returned when a measurement ID is unknown.
	ErrMeasurementNotFound = errors.New("telemetry: measurement not found")

	// ErrMeasurementExists is returned when adding a duplicate measurement ID.
	ErrMeasurementExists = errors.New("telemetry: measurement already exists")

	// ErrInvalidMeasurement is returned when a measurement definition is incomplete.
	ErrInvalidMeasurement = errors.New("telemetry: invalid measurement")

	// ErrInvalidOptions is returned by NewPublisher for unusable options.
	ErrInvalidOptions = errors.New("telemetry: invalid publisher options")
)
