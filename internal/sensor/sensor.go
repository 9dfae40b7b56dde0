package sensor

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
)

// Kind identifies the sensor variant.
type Kind string

// Sensor kinds.
const (
	KindNumeric Kind = "numeric"
	KindBinary  Kind = "binary"
	KindText    Kind = "text"
)

// Sensor is the behaviour shared by all sensor variants.
type Sensor interface {
	ID() string
	Name() string
	ObjectID() string
	Kind() Kind
	Topic() string
	HasState() bool

	// Update parses a raw state payload and stores it.
	Update(payload []byte) error

	// Snapshot returns a JSON-friendly view of the current state.
	Snapshot() Snapshot
}

// Snapshot is a point-in-time view of a sensor for the API.
type Snapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Topic     string    `json:"topic,omitempty"`
	HasState  bool      `json:"has_state"`
	State     any       `json:"state,omitempty"`
	RawState  any       `json:"raw_state,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// base carries identity and the update timestamp for every variant.
type base struct {
	id       string
	name     string
	objectID string
	topic    string

	mu        sync.RWMutex
	hasState  bool
	updatedAt time.Time
}

func newBase(id, name, topic string) base {
	if name == "" {
		name = id
	}
	return base{
		id:       id,
		name:     name,
		objectID: ObjectID(name),
		topic:    topic,
	}
}

func (b *base) ID() string       { return b.id }
func (b *base) Name() string     { return b.name }
func (b *base) ObjectID() string { return b.objectID }
func (b *base) Topic() string    { return b.topic }

// HasState reports whether the sensor has received at least one reading.
func (b *base) HasState() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hasState
}

// ObjectID derives the implicit field name from a display name.
// See config.ObjectID, which validation uses to check the same key.
func ObjectID(name string) string {
	return config.ObjectID(name)
}

// Numeric is a floating-point sensor with an optional linear calibration
// and display rounding.
//
// RawState is the reading as received. State is the reading after
// multiply, offset and accuracy rounding have been applied.
type Numeric struct {
	base

	multiply float64
	offset   float64
	accuracy int // -1 means no rounding

	raw   float64
	state float64
}

// NumericOptions configures a Numeric sensor.
type NumericOptions struct {
	Multiply         *float64
	Offset           float64
	AccuracyDecimals *int
}

// NewNumeric creates a numeric sensor.
func NewNumeric(id, name, topic string, opts NumericOptions) *Numeric {
	n := &Numeric{
		base:     newBase(id, name, topic),
		multiply: 1,
		offset:   opts.Offset,
		accuracy: -1,
		raw:      math.NaN(),
		state:    math.NaN(),
	}
	if opts.Multiply != nil {
		n.multiply = *opts.Multiply
	}
	if opts.AccuracyDecimals != nil {
		n.accuracy = *opts.AccuracyDecimals
	}
	return n
}

// Kind returns KindNumeric.
func (n *Numeric) Kind() Kind { return KindNumeric }

// AccuracyDecimals returns the display precision, if one is configured.
func (n *Numeric) AccuracyDecimals() (int, bool) {
	return n.accuracy, n.accuracy >= 0
}

// Set records a raw reading and derives the reported state.
func (n *Numeric) Set(raw float64) {
	state := raw*n.multiply + n.offset
	if n.accuracy >= 0 {
		p := math.Pow10(n.accuracy)
		state = math.Round(state*p) / p
	}

	n.mu.Lock()
	n.raw = raw
	n.state = state
	n.hasState = true
	n.updatedAt = time.Now()
	n.mu.Unlock()
}

// State returns the reported value and whether one has been received.
func (n *Numeric) State() (float64, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state, n.hasState
}

// RawState returns the unprocessed reading and whether one has been received.
func (n *Numeric) RawState() (float64, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.raw, n.hasState
}

// Update parses a numeric payload.
func (n *Numeric) Update(payload []byte) error {
	v, err := ParseNumeric(payload)
	if err != nil {
		return err
	}
	n.Set(v)
	return nil
}

// Snapshot returns the current state.
func (n *Numeric) Snapshot() Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	s := Snapshot{ID: n.id, Name: n.name, Kind: KindNumeric, Topic: n.topic, HasState: n.hasState, UpdatedAt: n.updatedAt}
	if n.hasState && !math.IsNaN(n.state) && !math.IsInf(n.state, 0) {
		s.State = n.state
		s.RawState = n.raw
	}
	return s
}

// Binary is an on/off sensor.
type Binary struct {
	base

	invert bool
	state  bool
}

// NewBinary creates a binary sensor. When invert is set the stored state
// is the logical negation of the received payload.
func NewBinary(id, name, topic string, invert bool) *Binary {
	return &Binary{
		base:   newBase(id, name, topic),
		invert: invert,
	}
}

// Kind returns KindBinary.
func (b *Binary) Kind() Kind { return KindBinary }

// Set records a reading.
func (b *Binary) Set(v bool) {
	b.mu.Lock()
	b.state = v != b.invert
	b.hasState = true
	b.updatedAt = time.Now()
	b.mu.Unlock()
}

// State returns the current value and whether one has been received.
func (b *Binary) State() (bool, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state, b.hasState
}

// Update parses a binary payload.
func (b *Binary) Update(payload []byte) error {
	v, err := ParseBinary(payload)
	if err != nil {
		return err
	}
	b.Set(v)
	return nil
}

// Snapshot returns the current state.
func (b *Binary) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{ID: b.id, Name: b.name, Kind: KindBinary, Topic: b.topic, HasState: b.hasState, UpdatedAt: b.updatedAt}
	if b.hasState {
		s.State = b.state
	}
	return s
}

// Text is a string sensor with an optional filter chain.
type Text struct {
	base

	filters []func(string) string
	raw     string
	state   string
}

// NewText creates a text sensor. Filters are applied in order; unknown
// names are ignored (configuration validation rejects them earlier).
func NewText(id, name, topic string, filters []string) *Text {
	t := &Text{base: newBase(id, name, topic)}
	for _, f := range filters {
		switch f {
		case "to_upper":
			t.filters = append(t.filters, strings.ToUpper)
		case "to_lower":
			t.filters = append(t.filters, strings.ToLower)
		case "trim":
			t.filters = append(t.filters, strings.TrimSpace)
		}
	}
	return t
}

// Kind returns KindText.
func (t *Text) Kind() Kind { return KindText }

// Set records a reading.
func (t *Text) Set(raw string) {
	state := raw
	for _, f := range t.filters {
		state = f(state)
	}

	t.mu.Lock()
	t.raw = raw
	t.state = state
	t.hasState = true
	t.updatedAt = time.Now()
	t.mu.Unlock()
}

// State returns the filtered value and whether one has been received.
func (t *Text) State() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state, t.hasState
}

// RawState returns the unfiltered value and whether one has been received.
func (t *Text) RawState() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.raw, t.hasState
}

// Update stores the payload as-is.
func (t *Text) Update(payload []byte) error {
	t.Set(string(payload))
	return nil
}

// Snapshot returns the current state.
func (t *Text) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Snapshot{ID: t.id, Name: t.name, Kind: KindText, Topic: t.topic, HasState: t.hasState, UpdatedAt: t.updatedAt}
	if t.hasState {
		s.State = t.state
		s.RawState = t.raw
	}
	return s
}
