package sensor

import (
	"errors"
	"math"
	"testing"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/mqtt"
)

func TestObjectID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Kitchen Temp", "kitchen_temp"},
		{"living-room", "living-room"},
		{"CO2 (ppm)", "co2__ppm_"},
		{"Außen", "au_en"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ObjectID(tt.input); got != tt.want {
				t.Errorf("ObjectID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNumeric_StateAndRawState(t *testing.T) {
	mult := 2.0
	dec := 1
	n := NewNumeric("t", "Temp", "s/t", NumericOptions{Multiply: &mult, Offset: 0.5, AccuracyDecimals: &dec})

	if _, ok := n.State(); ok {
		t.Fatal("State() reported a value before any update")
	}
	if n.HasState() {
		t.Fatal("HasState() = true before any update")
	}

	if err := n.Update([]byte(" 10.37 ")); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	raw, ok := n.RawState()
	if !ok || raw != 10.37 {
		t.Errorf("RawState() = %v, %v; want 10.37, true", raw, ok)
	}
	state, ok := n.State()
	if !ok || state != 21.2 {
		t.Errorf("State() = %v, %v; want 21.2, true", state, ok)
	}
	if acc, ok := n.AccuracyDecimals(); !ok || acc != 1 {
		t.Errorf("AccuracyDecimals() = %d, %v; want 1, true", acc, ok)
	}
	if n.ObjectID() != "temp" {
		t.Errorf("ObjectID() = %q, want temp", n.ObjectID())
	}
}

func TestNumeric_NaNPayload(t *testing.T) {
	n := NewNumeric("t", "", "", NumericOptions{})
	if err := n.Update([]byte("nan")); err != nil {
		t.Fatalf("Update(nan) error = %v", err)
	}
	v, ok := n.State()
	if !ok || !math.IsNaN(v) {
		t.Errorf("State() = %v, %v; want NaN, true", v, ok)
	}
	if snap := n.Snapshot(); snap.State != nil {
		t.Errorf("Snapshot().State = %v, want nil for NaN", snap.State)
	}
}

func TestNumeric_InvalidPayload(t *testing.T) {
	n := NewNumeric("t", "", "", NumericOptions{})
	err := n.Update([]byte("warm"))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Update(warm) error = %v, want ErrInvalidPayload", err)
	}
	if n.HasState() {
		t.Error("HasState() = true after rejected payload")
	}
}

func TestBinary_ParseAndInvert(t *testing.T) {
	tests := []struct {
		payload string
		invert  bool
		want    bool
		wantErr bool
	}{
		{"ON", false, true, false},
		{"off", false, false, false},
		{"true", false, true, false},
		{"0", false, false, false},
		{"1", true, false, false},
		{"OFF", true, true, false},
		{"open", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			b := NewBinary("b", "Window", "s/b", tt.invert)
			err := b.Update([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Update(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got, ok := b.State()
			if !ok || got != tt.want {
				t.Errorf("State() = %v, %v; want %v, true", got, ok, tt.want)
			}
		})
	}
}

func TestText_Filters(t *testing.T) {
	tx := NewText("x", "Mode", "s/x", []string{"trim", "to_upper"})
	tx.Set("  auto ")

	state, _ := tx.State()
	raw, _ := tx.RawState()
	if state != "AUTO" {
		t.Errorf("State() = %q, want AUTO", state)
	}
	if raw != "  auto " {
		t.Errorf("RawState() = %q, want unfiltered", raw)
	}
}

func TestRegistry_FromConfig(t *testing.T) {
	r, err := FromConfig([]config.SensorConfig{
		{ID: "t", Type: config.SensorNumeric, Topic: "s/t"},
		{ID: "b", Type: config.SensorBinary, Topic: "s/b"},
		{ID: "x", Type: config.SensorText},
	})
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	if _, err := r.Numeric("t"); err != nil {
		t.Errorf("Numeric(t) error = %v", err)
	}
	if _, err := r.Binary("t"); !errors.Is(err, ErrWrongKind) {
		t.Errorf("Binary(t) error = %v, want ErrWrongKind", err)
	}
	if _, err := r.Text("missing"); !errors.Is(err, ErrSensorNotFound) {
		t.Errorf("Text(missing) error = %v, want ErrSensorNotFound", err)
	}

	ids := []string{}
	for _, s := range r.List() {
		ids = append(ids, s.ID())
	}
	if len(ids) != 3 || ids[0] != "t" || ids[2] != "x" {
		t.Errorf("List() order = %v, want registration order", ids)
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	_, err := FromConfig([]config.SensorConfig{
		{ID: "t", Type: config.SensorNumeric},
		{ID: "t", Type: config.SensorText},
	})
	if !errors.Is(err, ErrSensorExists) {
		t.Errorf("FromConfig() error = %v, want ErrSensorExists", err)
	}
}

func TestRegistry_UnknownKind(t *testing.T) {
	_, err := FromConfig([]config.SensorConfig{{ID: "t", Type: "analog"}})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("FromConfig() error = %v, want ErrUnknownKind", err)
	}
}

type fakeSubscriber struct {
	handlers     map[string]mqtt.MessageHandler
	fail         error
	unsubscribed []string
}

func (f *fakeSubscriber) Unsubscribe(topic string) error {
	f.unsubscribed = append(f.unsubscribed, topic)
	delete(f.handlers, topic)
	return f.fail
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if f.fail != nil {
		return f.fail
	}
	if f.handlers == nil {
		f.handlers = make(map[string]mqtt.MessageHandler)
	}
	f.handlers[topic] = handler
	return nil
}

func TestIngester_RoutesPayloads(t *testing.T) {
	r := NewRegistry()
	temp := NewNumeric("t", "Temp", "s/kitchen", NumericOptions{})
	mode := NewText("x", "Mode", "s/kitchen", nil)
	win := NewBinary("b", "Window", "s/window", false)
	silent := NewText("y", "Manual", "", nil)
	for _, s := range []Sensor{temp, mode, win, silent} {
		if err := r.Add(s); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	sub := &fakeSubscriber{}
	in := NewIngester(r, 1)
	if err := in.Start(sub); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(sub.handlers) != 2 {
		t.Fatalf("subscribed to %d topics, want 2", len(sub.handlers))
	}

	if err := sub.handlers["s/window"]("s/window", []byte("ON")); err != nil {
		t.Errorf("window handler error = %v", err)
	}
	if v, _ := win.State(); !v {
		t.Error("window state not updated")
	}

	// One sensor on the shared topic accepts the payload, the other rejects it.
	err := sub.handlers["s/kitchen"]("s/kitchen", []byte("21.5"))
	if err != nil {
		t.Errorf("kitchen handler error = %v, want nil for numeric text payload", err)
	}
	if v, _ := temp.State(); v != 21.5 {
		t.Errorf("temp state = %v, want 21.5", v)
	}
	if v, _ := mode.State(); v != "21.5" {
		t.Errorf("mode state = %q, want 21.5", v)
	}

	err = sub.handlers["s/kitchen"]("s/kitchen", []byte("eco"))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("kitchen handler error = %v, want ErrInvalidPayload", err)
	}
	if v, _ := mode.State(); v != "eco" {
		t.Errorf("mode state = %q, want eco", v)
	}
}

func TestIngester_StopUnsubscribes(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(NewBinary("b", "", "s/b", false))
	_ = r.Add(NewNumeric("t", "", "s/t", NumericOptions{}))
	_ = r.Add(NewNumeric("t2", "", "s/t", NumericOptions{}))

	sub := &fakeSubscriber{}
	in := NewIngester(r, 1)
	if err := in.Start(sub); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := in.Stop(sub); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(sub.unsubscribed) != 2 || len(sub.handlers) != 0 {
		t.Errorf("unsubscribed %v, handlers left %d, want both topics once", sub.unsubscribed, len(sub.handlers))
	}

	// A second Stop has nothing left to drop.
	if err := in.Stop(sub); err != nil || len(sub.unsubscribed) != 2 {
		t.Errorf("second Stop() = %v, unsubscribed %v", err, sub.unsubscribed)
	}
}

func TestIngester_StopReportsFailures(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(NewBinary("b", "", "s/b", false))
	sub := &fakeSubscriber{}
	in := NewIngester(r, 0)
	if err := in.Start(sub); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sub.fail = mqtt.ErrNotConnected
	if err := in.Stop(sub); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Stop() error = %v, want ErrNotConnected", err)
	}
}

func TestIngester_SubscribeFailure(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(NewBinary("b", "", "s/b", false))
	in := NewIngester(r, 0)
	err := in.Start(&fakeSubscriber{fail: mqtt.ErrNotConnected})
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}
