package sensor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
)

// Registry holds all configured sensors, keyed by ID.
//
// All public methods are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	sensors map[string]Sensor
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sensors: make(map[string]Sensor),
	}
}

// FromConfig builds a registry from the sensors section of the config.
//
// Parameters:
//   - cfgs: Validated sensor declarations
//
// Returns:
//   - *Registry: Registry holding one sensor per declaration
//   - error: ErrUnknownKind or ErrSensorExists on bad input
func FromConfig(cfgs []config.SensorConfig) (*Registry, error) {
	r := NewRegistry()
	for _, c := range cfgs {
		var s Sensor
		switch c.Type {
		case config.SensorNumeric:
			s = NewNumeric(c.ID, c.Name, c.Topic, NumericOptions{
				Multiply:         c.Multiply,
				Offset:           c.Offset,
				AccuracyDecimals: c.AccuracyDecimals,
			})
		case config.SensorBinary:
			s = NewBinary(c.ID, c.Name, c.Topic, c.Invert)
		case config.SensorText:
			s = NewText(c.ID, c.Name, c.Topic, c.Filters)
		default:
			return nil, fmt.Errorf("%w: %q for sensor %q", ErrUnknownKind, c.Type, c.ID)
		}
		if err := r.Add(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a sensor. Returns ErrSensorExists for a duplicate ID.
func (r *Registry) Add(s Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sensors[s.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrSensorExists, s.ID())
	}
	r.sensors[s.ID()] = s
	r.order = append(r.order, s.ID())
	return nil
}

// Get returns a sensor by ID.
func (r *Registry) Get(id string) (Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sensors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSensorNotFound, id)
	}
	return s, nil
}

// Numeric returns a numeric sensor by ID.
func (r *Registry) Numeric(id string) (*Numeric, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	n, ok := s.(*Numeric)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want numeric", ErrWrongKind, id, s.Kind())
	}
	return n, nil
}

// Binary returns a binary sensor by ID.
func (r *Registry) Binary(id string) (*Binary, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	b, ok := s.(*Binary)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want binary", ErrWrongKind, id, s.Kind())
	}
	return b, nil
}

// Text returns a text sensor by ID.
func (r *Registry) Text(id string) (*Text, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	t, ok := s.(*Text)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s, want text", ErrWrongKind, id, s.Kind())
	}
	return t, nil
}

// List returns all sensors in registration order.
func (r *Registry) List() []Sensor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Sensor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sensors[id])
	}
	return out
}

// Snapshots returns the state of every sensor, sorted by ID.
func (r *Registry) Snapshots() []Snapshot {
	sensors := r.List()
	out := make([]Snapshot, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, s.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered sensors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sensors)
}
