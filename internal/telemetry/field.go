package telemetry

import (
	"math"
	"strconv"
	"strings"
)

// NumericSource is a sensor exposing a reported and a raw float reading.
// The second return value is false until the sensor has a reading.
type NumericSource interface {
	State() (float64, bool)
	RawState() (float64, bool)
	ObjectID() string
}

// BinarySource is a sensor exposing an on/off reading.
type BinarySource interface {
	State() (bool, bool)
	ObjectID() string
}

// TextSource is a sensor exposing a reported and a raw string reading.
type TextSource interface {
	State() (string, bool)
	RawState() (string, bool)
	ObjectID() string
}

// NumberFormat selects how a numeric field is written.
type NumberFormat int

// Numeric field formats.
const (
	FormatFloat NumberFormat = iota
	FormatInteger
	FormatUnsignedInteger
)

// BinaryFormat selects how a binary field is written.
type BinaryFormat int

// Binary field formats.
const (
	BinaryBoolean BinaryFormat = iota // true / false
	BinaryInteger                     // 1i / 0i
)

// DefaultAccuracyDecimals is used for float fields without an explicit accuracy.
const DefaultAccuracyDecimals = 4

// Field is one field of a measurement. The set of implementations is
// closed: NumericField, BinaryField and TextField.
type Field interface {
	// Key returns the escaped field key.
	Key() string

	// Encode returns "key=value" and true, or false if the source has no
	// usable reading.
	Encode() (string, bool)

	isField()
}

// fieldKey picks the override name or falls back to the sensor's object ID.
func fieldKey(name, objectID string) string {
	if name != "" {
		return EscapeIdentifier(name)
	}
	return EscapeIdentifier(objectID)
}

// NumericField writes a numeric sensor as a float, integer or unsigned integer.
type NumericField struct {
	source   NumericSource
	name     string
	format   NumberFormat
	accuracy int
	raw      bool
}

// NumericFieldOptions configures a NumericField.
type NumericFieldOptions struct {
	Name             string
	Format           NumberFormat
	AccuracyDecimals *int
	RawState         bool
}

// NewNumericField creates a numeric field reading from src.
func NewNumericField(src NumericSource, opts NumericFieldOptions) *NumericField {
	acc := DefaultAccuracyDecimals
	if opts.AccuracyDecimals != nil {
		acc = *opts.AccuracyDecimals
	}
	return &NumericField{
		source:   src,
		name:     opts.Name,
		format:   opts.Format,
		accuracy: acc,
		raw:      opts.RawState,
	}
}

func (*NumericField) isField() {}

// Key returns the escaped field key.
func (f *NumericField) Key() string { return fieldKey(f.name, f.source.ObjectID()) }

// Bounds of the integer formats as float64: 2^63 and 2^64.
const (
	maxInt64Float  = 1 << 63
	maxUint64Float = 1 << 64
)

// Encode renders the field. NaN, infinite and out-of-range integer
// readings count as missing.
func (f *NumericField) Encode() (string, bool) {
	var v float64
	var ok bool
	if f.raw {
		v, ok = f.source.RawState()
	} else {
		v, ok = f.source.State()
	}
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return "", false
	}

	var value string
	switch f.format {
	case FormatInteger:
		r := math.Round(v)
		if r >= maxInt64Float || r < -maxInt64Float {
			return "", false
		}
		value = strconv.FormatInt(int64(r), 10) + "i"
	case FormatUnsignedInteger:
		r := math.Round(math.Abs(v))
		if r >= maxUint64Float {
			return "", false
		}
		value = strconv.FormatUint(uint64(r), 10) + "u"
	default:
		value = formatFloat(v, f.accuracy)
	}
	return f.Key() + "=" + value, true
}

// formatFloat renders v with a fixed number of decimals and never
// produces a negative zero.
func formatFloat(v float64, decimals int) string {
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if strings.HasPrefix(s, "-") && strings.Trim(s, "-0.") == "" {
		s = s[1:]
	}
	return s
}

// BinaryField writes a binary sensor as a boolean or an integer.
type BinaryField struct {
	source BinarySource
	name   string
	format BinaryFormat
}

// NewBinaryField creates a binary field reading from src.
func NewBinaryField(src BinarySource, name string, format BinaryFormat) *BinaryField {
	return &BinaryField{source: src, name: name, format: format}
}

func (*BinaryField) isField() {}

// Key returns the escaped field key.
func (f *BinaryField) Key() string { return fieldKey(f.name, f.source.ObjectID()) }

// Encode renders the field.
func (f *BinaryField) Encode() (string, bool) {
	v, ok := f.source.State()
	if !ok {
		return "", false
	}

	var value string
	switch {
	case f.format == BinaryInteger && v:
		value = "1i"
	case f.format == BinaryInteger:
		value = "0i"
	default:
		value = strconv.FormatBool(v)
	}
	return f.Key() + "=" + value, true
}

// TextField writes a text sensor as a quoted string.
type TextField struct {
	source TextSource
	name   string
	raw    bool
}

// NewTextField creates a text field reading from src.
func NewTextField(src TextSource, name string, raw bool) *TextField {
	return &TextField{source: src, name: name, raw: raw}
}

func (*TextField) isField() {}

// Key returns the escaped field key.
func (f *TextField) Key() string { return fieldKey(f.name, f.source.ObjectID()) }

// Encode renders the field.
func (f *TextField) Encode() (string, bool) {
	var v string
	var ok bool
	if f.raw {
		v, ok = f.source.RawState()
	} else {
		v, ok = f.source.State()
	}
	if !ok {
		return "", false
	}
	return f.Key() + "=" + quoteString(v), true
}
