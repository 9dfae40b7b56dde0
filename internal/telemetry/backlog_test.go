package telemetry

import (
	"fmt"
	"math/rand"
	"testing"
)

func entry(name string) Entry {
	return Entry{Measurement: name, Bucket: "b", Line: name + " v=1i\n"}
}

func names(es []Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Measurement
	}
	return out
}

func TestBacklog_EvictsOldest(t *testing.T) {
	b := NewBacklog(3)
	for _, n := range []string{"A", "B", "C"} {
		if ev := b.Enqueue(entry(n)); ev != 0 {
			t.Fatalf("Enqueue(%s) evicted %d, want 0", n, ev)
		}
	}
	if ev := b.Enqueue(entry("D")); ev != 1 {
		t.Errorf("Enqueue(D) evicted %d, want 1", ev)
	}

	if got := names(b.Snapshot()); !equalStrings(got, []string{"B", "C", "D"}) {
		t.Errorf("Snapshot() = %v, want [B C D]", got)
	}
	if st := b.Stats(); st.Enqueued != 4 || st.Evicted != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestBacklog_Drain(t *testing.T) {
	tests := []struct {
		n, k      int
		wantTaken int
	}{
		{5, 2, 2},
		{2, 5, 2},
		{0, 3, 0},
		{4, 0, 0},
		{3, 3, 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d,k=%d", tt.n, tt.k), func(t *testing.T) {
			b := NewBacklog(10)
			for i := 0; i < tt.n; i++ {
				b.Enqueue(entry(fmt.Sprint(i)))
			}
			got := b.Drain(tt.k)
			if len(got) != tt.wantTaken {
				t.Fatalf("Drain(%d) returned %d entries, want %d", tt.k, len(got), tt.wantTaken)
			}
			for i, e := range got {
				if e.Measurement != fmt.Sprint(i) {
					t.Errorf("Drain()[%d] = %s, want %d", i, e.Measurement, i)
				}
			}
			if b.Len() != tt.n-tt.wantTaken {
				t.Errorf("Len() = %d, want %d", b.Len(), tt.n-tt.wantTaken)
			}
		})
	}
}

func TestBacklog_RequeuePreservesOrder(t *testing.T) {
	b := NewBacklog(5)
	for _, n := range []string{"B", "C", "D"} {
		b.Enqueue(entry(n))
	}

	taken := b.Drain(2)
	if dropped := b.Requeue(taken[1:]); dropped != 0 {
		t.Errorf("Requeue() dropped %d, want 0", dropped)
	}
	if got := names(b.Snapshot()); !equalStrings(got, []string{"C", "D"}) {
		t.Errorf("Snapshot() = %v, want [C D]", got)
	}

	if got := names(b.Drain(5)); !equalStrings(got, []string{"C", "D"}) {
		t.Errorf("Drain() = %v, want [C D]", got)
	}
}

func TestBacklog_RequeueWhenFullDropsRequeued(t *testing.T) {
	b := NewBacklog(3)
	for _, n := range []string{"A", "B", "C"} {
		b.Enqueue(entry(n))
	}
	taken := b.Drain(2) // A, B
	b.Enqueue(entry("D"))
	b.Enqueue(entry("E")) // C, D, E

	dropped := b.Requeue(taken)
	if dropped != 2 {
		t.Errorf("Requeue() dropped %d, want 2", dropped)
	}
	if got := names(b.Snapshot()); !equalStrings(got, []string{"C", "D", "E"}) {
		t.Errorf("Snapshot() = %v, want [C D E]", got)
	}

	b2 := NewBacklog(3)
	b2.Enqueue(entry("X"))
	b2.Enqueue(entry("Y"))
	if dropped := b2.Requeue([]Entry{entry("V"), entry("W")}); dropped != 1 {
		t.Errorf("partial Requeue() dropped %d, want 1", dropped)
	}
	if got := names(b2.Snapshot()); !equalStrings(got, []string{"W", "X", "Y"}) {
		t.Errorf("Snapshot() = %v, want [W X Y]", got)
	}
}

func TestBacklog_NeverExceedsDepth(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const depth = 7
	b := NewBacklog(depth)
	var model []string
	seq := 0

	for i := 0; i < 2000; i++ {
		switch rng.Intn(3) {
		case 0, 1:
			name := fmt.Sprint(seq)
			seq++
			b.Enqueue(entry(name))
			model = append(model, name)
			if len(model) > depth {
				model = model[1:]
			}
		case 2:
			k := rng.Intn(4)
			got := names(b.Drain(k))
			if k > len(model) {
				k = len(model)
			}
			if !equalStrings(got, model[:k]) {
				t.Fatalf("step %d: Drain(%d) = %v, want %v", i, k, got, model[:k])
			}
			model = model[k:]
		}
		if b.Len() > depth {
			t.Fatalf("step %d: Len() = %d exceeds depth", i, b.Len())
		}
		if b.Len() != len(model) {
			t.Fatalf("step %d: Len() = %d, want %d", i, b.Len(), len(model))
		}
	}
}

func TestNewBacklog_MinimumDepth(t *testing.T) {
	if got := NewBacklog(0).Cap(); got != 1 {
		t.Errorf("NewBacklog(0).Cap() = %d, want 1", got)
	}
}
