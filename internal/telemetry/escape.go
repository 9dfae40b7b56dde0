package telemetry

import "strings"

var (
	identifierEscaper = strings.NewReplacer(`\`, `\\`, " ", `\ `, ",", `\,`, "=", `\=`)
	stringEscaper     = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r\n", " ", "\n", " ", "\r", " ")
)

// EscapeIdentifier escapes a measurement name, tag key, tag value or field
// key for line protocol by prefixing space, comma, equals and backslash
// with a backslash.
func EscapeIdentifier(s string) string {
	return identifierEscaper.Replace(s)
}

// quoteString renders a string field value. Line protocol has no escape
// for line breaks, so each one becomes a single space.
func quoteString(s string) string {
	return `"` + stringEscaper.Replace(s) + `"`
}

// Tag is one key/value pair of a line-protocol tag set.
type Tag struct {
	Key   string
	Value string
}

// linePrefix builds "name,k=v,k=v" from a measurement name and tag sets,
// in the order given.
func linePrefix(name string, tagSets ...[]Tag) string {
	var sb strings.Builder
	sb.WriteString(EscapeIdentifier(name))
	for _, tags := range tagSets {
		for _, t := range tags {
			sb.WriteByte(',')
			sb.WriteString(EscapeIdentifier(t.Key))
			sb.WriteByte('=')
			sb.WriteString(EscapeIdentifier(t.Value))
		}
	}
	return sb.String()
}

func hasLineBreak(name string, tags []Tag) bool {
	if strings.ContainsAny(name, "\r\n") {
		return true
	}
	for _, t := range tags {
		if strings.ContainsAny(t.Key, "\r\n") || strings.ContainsAny(t.Value, "\r\n") {
			return true
		}
	}
	return false
}
