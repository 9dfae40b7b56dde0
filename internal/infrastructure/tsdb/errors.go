package tsdb

import (
	"errors"
	"fmt"
)

// Sentinel errors for line-protocol writes.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, tsdb.ErrWriteFailed) {
//	    // Request did not reach InfluxDB or was rejected
//	}
var (
	// ErrWriteFailed indicates a write request failed or was rejected.
	ErrWriteFailed = errors.New("tsdb: write failed")

	// ErrInvalidConfig indicates the client could not be built from config.
	ErrInvalidConfig = errors.New("tsdb: invalid configuration")
)

// StatusError is returned when InfluxDB answers with a non-2xx status.
// It wraps ErrWriteFailed.
type StatusError struct {
	Code int

	// Message is the "message" field of the JSON error body, or the raw
	// body when it is not JSON.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tsdb: write failed: HTTP %d", e.Code)
	}
	return fmt.Sprintf("tsdb: write failed: HTTP %d: %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrWriteFailed }
