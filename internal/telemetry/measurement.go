package telemetry

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Policy decides what happens when some fields have no reading.
type Policy int

const (
	// PolicyOmitMissing writes whatever fields have readings and leaves the
	// rest out. A line with no fields at all is still skipped.
	PolicyOmitMissing Policy = iota

	// PolicyRequireAll skips the whole line unless every field has a reading.
	PolicyRequireAll
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	if p == PolicyRequireAll {
		return "require_all"
	}
	return "omit_missing"
}

// MeasurementDef describes a measurement to add to a Publisher.
type MeasurementDef struct {
	ID     string
	Bucket string
	Name   string
	Tags   []Tag
	Policy Policy
	Fields []Field
}

// Measurement renders one line of line protocol from a fixed set of fields.
//
// A Measurement is created by Publisher.AddMeasurement and is immutable
// afterwards. It refers back to its publisher by handle only.
type Measurement struct {
	id     string
	owner  uint64
	bucket string
	url    string
	prefix string
	policy Policy
	fields []Field
}

// ID returns the measurement identifier.
func (m *Measurement) ID() string { return m.id }

// Bucket returns the target bucket.
func (m *Measurement) Bucket() string { return m.bucket }

// URL returns the full write URL, bucket included.
func (m *Measurement) URL() string { return m.url }

// Prefix returns the precomputed "name,tag=value" part of the line.
func (m *Measurement) Prefix() string { return m.prefix }

// Policy returns the missing-reading policy.
func (m *Measurement) Policy() Policy { return m.policy }

// FieldKeys returns the escaped key of every field in output order.
func (m *Measurement) FieldKeys() []string {
	keys := make([]string, len(m.fields))
	for i, f := range m.fields {
		keys[i] = f.Key()
	}
	return keys
}

// Render produces one newline-terminated line. The timestamp, in seconds,
// is appended only when withTimestamp is true.
//
// Returns:
//   - string: The line, e.g. "env,room=kitchen temp=21.5,flag=true 1700000000\n"
//   - error: ErrNoReadings or ErrMissingReadings when the line is skipped
func (m *Measurement) Render(ts int64, withTimestamp bool) (string, error) {
	var sb strings.Builder
	sb.WriteString(m.prefix)

	sep := byte(' ')
	written := 0
	for _, f := range m.fields {
		frag, ok := f.Encode()
		if !ok {
			if m.policy == PolicyRequireAll {
				return "", fmt.Errorf("%w: field %s of %s", ErrMissingReadings, f.Key(), m.id)
			}
			continue
		}
		sb.WriteByte(sep)
		sb.WriteString(frag)
		sep = ','
		written++
	}

	if written == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoReadings, m.id)
	}

	if withTimestamp {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(ts, 10))
	}
	sb.WriteByte('\n')

	return sb.String(), nil
}

// writeURL builds the organisation-level write endpoint.
func writeURL(base, org string) string {
	return strings.TrimRight(base, "/") + "/api/v2/write?org=" + url.QueryEscape(org) + "&precision=s"
}

// bucketURL appends the bucket to a write endpoint.
func bucketURL(writeURL, bucket string) string {
	return writeURL + "&bucket=" + url.QueryEscape(bucket)
}
