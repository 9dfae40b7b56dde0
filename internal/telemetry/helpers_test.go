package telemetry

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
)

type numSource struct {
	id    string
	state float64
	raw   float64
	has   bool
}

func (s *numSource) State() (float64, bool)    { return s.state, s.has }
func (s *numSource) RawState() (float64, bool) { return s.raw, s.has }
func (s *numSource) ObjectID() string          { return s.id }

func newNum(id string, v float64) *numSource {
	return &numSource{id: id, state: v, raw: v, has: true}
}

type binSource struct {
	id  string
	v   bool
	has bool
}

func (s *binSource) State() (bool, bool) { return s.v, s.has }
func (s *binSource) ObjectID() string    { return s.id }

type textSource struct {
	id    string
	state string
	raw   string
	has   bool
}

func (s *textSource) State() (string, bool)    { return s.state, s.has }
func (s *textSource) RawState() (string, bool) { return s.raw, s.has }
func (s *textSource) ObjectID() string         { return s.id }

var errDown = errors.New("connection refused")

// fakeTransport records requests and fails when fail returns an error.
type fakeTransport struct {
	mu       sync.Mutex
	requests []WriteRequest
	fail     func(req WriteRequest) error
}

func (f *fakeTransport) Write(_ context.Context, req WriteRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.fail != nil {
		return f.fail(req)
	}
	return nil
}

func (f *fakeTransport) setFail(fn func(WriteRequest) error) {
	f.mu.Lock()
	f.fail = fn
	f.mu.Unlock()
}

func (f *fakeTransport) bodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = string(r.Body)
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	f.requests = nil
	f.mu.Unlock()
}

func failAll(WriteRequest) error { return errDown }

// failBodyContaining fails any request whose body contains marker.
func failBodyContaining(marker string) func(WriteRequest) error {
	return func(req WriteRequest) error {
		if strings.Contains(string(req.Body), marker) {
			return errDown
		}
		return nil
	}
}

// newTestPublisher returns a publisher with a valid clock at 1700000000.
func newTestPublisher(t *testing.T, depth, batch int) (*Publisher, *fakeTransport, *ManualClock) {
	t.Helper()
	tr := &fakeTransport{}
	clk := NewManualClock()
	clk.Set(1700000000)
	p, err := NewPublisher(Options{
		URL:               "http://influx:8086/",
		Organization:      "home",
		Token:             "secret",
		Transport:         tr,
		Clock:             clk,
		BacklogMaxDepth:   depth,
		BacklogDrainBatch: batch,
	})
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	return p, tr, clk
}

// addValueMeasurement adds a measurement with one integer field so that
// each line is identifiable by its value.
func addValueMeasurement(t *testing.T, p *Publisher, id, bucket string, src *numSource) *Measurement {
	t.Helper()
	m, err := p.AddMeasurement(MeasurementDef{
		ID:     id,
		Bucket: bucket,
		Name:   id,
		Fields: []Field{NewNumericField(src, NumericFieldOptions{Name: "v", Format: FormatInteger})},
	})
	if err != nil {
		t.Fatalf("AddMeasurement(%s) error = %v", id, err)
	}
	return m
}

func backlogLines(p *Publisher) []string {
	var out []string
	for _, e := range p.SnapshotBacklog() {
		out = append(out, strings.Fields(e.Line)[0])
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var nan = math.NaN()
