package sensor

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseNumeric parses a numeric payload. "nan" is accepted and yields a
// sensor with state but no publishable reading.
func ParseNumeric(payload []byte) (float64, error) {
	s := strings.TrimSpace(string(payload))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPayload, s)
	}
	return v, nil
}

// ParseBinary parses ON/OFF, true/false and 1/0, case-insensitively.
func ParseBinary(payload []byte) (bool, error) {
	s := strings.TrimSpace(string(payload))
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q is not a binary state", ErrInvalidPayload, s)
	}
}
