package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Transport values for influxdb.transport.
const (
	TransportHTTP   = "http"
	TransportClient = "client"
)

// Sensor types.
const (
	SensorNumeric = "numeric"
	SensorBinary  = "binary"
	SensorText    = "text"
)

// Numeric field formats.
const (
	FormatFloat           = "float"
	FormatInteger         = "integer"
	FormatUnsignedInteger = "unsigned_integer"
)

// Binary field formats.
const (
	BinaryFormatBoolean = "boolean"
	BinaryFormatInteger = "integer"
)

// Measurement publish policies.
const (
	PolicyOmitMissing = "omit_missing"
	PolicyRequireAll  = "require_all"
)

// Backlog limits.
const (
	MinBacklogDepth = 1
	MaxBacklogDepth = 200
	MinDrainBatch   = 1
	MaxDrainBatch   = 20
)

// Text sensor filters.
const (
	FilterToUpper = "to_upper"
	FilterToLower = "to_lower"
	FilterTrim    = "trim"
)

func isTextFilter(f string) bool {
	return f == FilterToUpper || f == FilterToLower || f == FilterTrim
}

// Tag is a single key/value pair of a line-protocol tag set.
type Tag struct {
	Key   string
	Value string
}

// TagList is a tag map that keeps the order it was written in.
// Line-protocol output follows this order, so a plain map will not do.
type TagList []Tag

// UnmarshalYAML decodes a YAML mapping into an ordered tag list.
func (t *TagList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: tags must be a mapping", node.Line)
	}

	tags := make(TagList, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: tag %q must have a scalar value", v.Line, k.Value)
		}
		tags = append(tags, Tag{Key: k.Value, Value: v.Value})
	}

	*t = tags
	return nil
}

// Map returns the tags as an unordered map.
func (t TagList) Map() map[string]string {
	m := make(map[string]string, len(t))
	for _, tag := range t {
		m[tag.Key] = tag.Value
	}
	return m
}

func (t TagList) validate(prefix string) []string {
	var errs []string
	seen := make(map[string]bool, len(t))
	for _, tag := range t {
		if err := ValidIdentifier(tag.Key); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
		}
		if seen[tag.Key] {
			errs = append(errs, fmt.Sprintf("%s: tag %q is duplicated", prefix, tag.Key))
		}
		seen[tag.Key] = true
		switch {
		case tag.Value == "":
			errs = append(errs, fmt.Sprintf("%s: tag %q has an empty value", prefix, tag.Key))
		case strings.ContainsAny(tag.Value, "\r\n"):
			errs = append(errs, fmt.Sprintf("%s: tag %q value must not contain a line break", prefix, tag.Key))
		}
	}
	return errs
}

// UnmarshalYAML accepts either a bare sensor id or a full mapping.
func (f *SensorFieldConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = SensorFieldConfig{SensorID: node.Value}
		return nil
	}
	type plain SensorFieldConfig
	return node.Decode((*plain)(f))
}

// UnmarshalYAML accepts either a bare sensor id or a full mapping.
func (f *BinaryFieldConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = BinaryFieldConfig{SensorID: node.Value}
		return nil
	}
	type plain BinaryFieldConfig
	return node.Decode((*plain)(f))
}

// UnmarshalYAML accepts either a bare sensor id or a full mapping.
func (f *TextFieldConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = TextFieldConfig{SensorID: node.Value}
		return nil
	}
	type plain TextFieldConfig
	return node.Decode((*plain)(f))
}

// ErrInvalidIdentifier is returned by ValidIdentifier.
var ErrInvalidIdentifier = errors.New("config: invalid identifier")

// ValidIdentifier checks a measurement name, tag key, or field name.
// Names starting with an underscore are reserved by InfluxDB.
func ValidIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidIdentifier)
	}
	if name[0] == '_' {
		return fmt.Errorf("%w: %q must not start with an underscore", ErrInvalidIdentifier, name)
	}
	if strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("%w: %q must not contain a line break", ErrInvalidIdentifier, name)
	}
	return nil
}

// ObjectID derives the implicit field name from a sensor display name.
// It lowercases, turns spaces into underscores, and replaces anything
// outside [a-z0-9_-] with an underscore.
func ObjectID(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// objectID is the field key a sensor gets when a field names no key.
func (s SensorConfig) objectID() string {
	if s.Name != "" {
		return ObjectID(s.Name)
	}
	return ObjectID(s.ID)
}
