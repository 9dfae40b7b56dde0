package telemetry

import (
	"math"
	"testing"
)

func intp(v int) *int { return &v }

func TestEscapeIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"kitchen", "kitchen"},
		{"a,b=c", `a\,b\=c`},
		{"living room", `living\ room`},
		{`back\slash`, `back\\slash`},
		{`x "quoted"`, `x\ "quoted"`},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := EscapeIdentifier(tt.input); got != tt.want {
				t.Errorf("EscapeIdentifier(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNumericField_Encode(t *testing.T) {
	tests := []struct {
		name   string
		src    *numSource
		opts   NumericFieldOptions
		want   string
		wantOK bool
	}{
		{
			name:   "float default accuracy",
			src:    newNum("temp", 21.5),
			want:   "temp=21.5000",
			wantOK: true,
		},
		{
			name:   "float one decimal",
			src:    newNum("temp", 21.54),
			opts:   NumericFieldOptions{AccuracyDecimals: intp(1)},
			want:   "temp=21.5",
			wantOK: true,
		},
		{
			name:   "float negative zero normalised",
			src:    newNum("temp", -0.004),
			opts:   NumericFieldOptions{AccuracyDecimals: intp(2)},
			want:   "temp=0.00",
			wantOK: true,
		},
		{
			name:   "integer rounds half away from zero",
			src:    newNum("count", 2.5),
			opts:   NumericFieldOptions{Format: FormatInteger},
			want:   "count=3i",
			wantOK: true,
		},
		{
			name:   "negative integer",
			src:    newNum("count", -2.5),
			opts:   NumericFieldOptions{Format: FormatInteger},
			want:   "count=-3i",
			wantOK: true,
		},
		{
			name:   "unsigned uses absolute value",
			src:    newNum("level", -7.4),
			opts:   NumericFieldOptions{Format: FormatUnsignedInteger},
			want:   "level=7u",
			wantOK: true,
		},
		{
			name:   "override name escaped",
			src:    newNum("t", 1),
			opts:   NumericFieldOptions{Name: "air temp", Format: FormatInteger},
			want:   `air\ temp=1i`,
			wantOK: true,
		},
		{
			name:   "raw state",
			src:    &numSource{id: "t", state: 20, raw: 19.87, has: true},
			opts:   NumericFieldOptions{RawState: true, AccuracyDecimals: intp(2)},
			want:   "t=19.87",
			wantOK: true,
		},
		{
			name: "no reading",
			src:  &numSource{id: "t"},
		},
		{
			name: "nan",
			src:  newNum("t", nan),
		},
		{
			name: "infinite",
			src:  newNum("t", math.Inf(1)),
		},
		{
			name: "integer above int64 range",
			src:  newNum("x", 1e20),
			opts: NumericFieldOptions{Format: FormatInteger},
		},
		{
			name: "integer below int64 range",
			src:  newNum("x", -1e20),
			opts: NumericFieldOptions{Format: FormatInteger},
		},
		{
			name:   "integer at int64 minimum",
			src:    newNum("x", -(1 << 63)),
			opts:   NumericFieldOptions{Format: FormatInteger},
			want:   "x=-9223372036854775808i",
			wantOK: true,
		},
		{
			name: "integer at 2^63",
			src:  newNum("x", 1<<63),
			opts: NumericFieldOptions{Format: FormatInteger},
		},
		{
			name: "unsigned above uint64 range",
			src:  newNum("x", -1e20),
			opts: NumericFieldOptions{Format: FormatUnsignedInteger},
		},
		{
			name:   "unsigned large in range",
			src:    newNum("x", 1e19),
			opts:   NumericFieldOptions{Format: FormatUnsignedInteger},
			want:   "x=10000000000000000000u",
			wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewNumericField(tt.src, tt.opts).Encode()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Encode() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBinaryField_Encode(t *testing.T) {
	tests := []struct {
		name   string
		src    *binSource
		format BinaryFormat
		want   string
		wantOK bool
	}{
		{"boolean true", &binSource{id: "flag", v: true, has: true}, BinaryBoolean, "flag=true", true},
		{"boolean false", &binSource{id: "flag", has: true}, BinaryBoolean, "flag=false", true},
		{"integer true", &binSource{id: "flag", v: true, has: true}, BinaryInteger, "flag=1i", true},
		{"integer false", &binSource{id: "flag", has: true}, BinaryInteger, "flag=0i", true},
		{"no reading", &binSource{id: "flag"}, BinaryBoolean, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewBinaryField(tt.src, "", tt.format).Encode()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Encode() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestTextField_Encode(t *testing.T) {
	src := &textSource{id: "mode", state: `say "hi" \o/`, raw: "RAW", has: true}

	got, ok := NewTextField(src, "", false).Encode()
	if !ok || got != `mode="say \"hi\" \\o/"` {
		t.Errorf("Encode() = %q, %v", got, ok)
	}

	got, ok = NewTextField(src, "m", true).Encode()
	if !ok || got != `m="RAW"` {
		t.Errorf("Encode(raw) = %q, %v", got, ok)
	}

	if _, ok := NewTextField(&textSource{id: "x"}, "", false).Encode(); ok {
		t.Error("Encode() without reading reported ok")
	}

	multi := &textSource{id: "note", state: "line one\nline two\r\nthree\rfour", has: true}
	got, ok = NewTextField(multi, "", false).Encode()
	if !ok || got != `note="line one line two three four"` {
		t.Errorf("Encode(multi-line) = %q, %v", got, ok)
	}
}
