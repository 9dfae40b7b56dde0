package telemetry

import (
	"sync"
	"time"
)

// Entry is a rendered line waiting to be written.
// Entries are values and are never modified once enqueued.
type Entry struct {
	Measurement string    `json:"measurement"`
	Bucket      string    `json:"bucket"`
	URL         string    `json:"url"`
	Line        string    `json:"line"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// BacklogStats are running totals since the backlog was created.
type BacklogStats struct {
	Enqueued uint64 `json:"enqueued"`
	Evicted  uint64 `json:"evicted"`
	Drained  uint64 `json:"drained"`
	Requeued uint64 `json:"requeued"`
}

// Backlog is a bounded FIFO of unsent entries.
//
// When full, adding an entry evicts the oldest one. It never blocks and
// never grows past its capacity.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Backlog struct {
	mu    sync.Mutex
	buf   []Entry
	head  int
	size  int
	stats BacklogStats
}

// NewBacklog creates a backlog holding at most depth entries.
// A depth below 1 is treated as 1.
func NewBacklog(depth int) *Backlog {
	if depth < 1 {
		depth = 1
	}
	return &Backlog{buf: make([]Entry, depth)}
}

// Enqueue appends e at the tail, evicting from the head if full.
//
// Returns:
//   - int: Number of entries evicted (0 or 1)
func (b *Backlog) Enqueue(e Entry) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := 0
	if b.size == len(b.buf) {
		b.buf[b.head] = Entry{}
		b.head = (b.head + 1) % len(b.buf)
		b.size--
		evicted = 1
	}

	b.buf[(b.head+b.size)%len(b.buf)] = e
	b.size++

	b.stats.Enqueued++
	b.stats.Evicted += uint64(evicted)
	return evicted
}

// Drain removes and returns up to k entries from the head, oldest first.
func (b *Backlog) Drain(k int) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if k > b.size {
		k = b.size
	}
	if k <= 0 {
		return nil
	}

	out := make([]Entry, k)
	for i := range out {
		out[i] = b.buf[b.head]
		b.buf[b.head] = Entry{}
		b.head = (b.head + 1) % len(b.buf)
	}
	b.size -= k
	b.stats.Drained += uint64(k)
	return out
}

// Requeue puts entries back at the head, keeping their order, so that the
// next Drain returns them first. Entries that no longer fit are dropped;
// since they are older than anything queued, the earliest go first.
//
// Returns:
//   - int: Number of entries dropped for lack of room
func (b *Backlog) Requeue(entries []Entry) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	returned := len(entries)
	dropped := 0
	if free := len(b.buf) - b.size; len(entries) > free {
		dropped = len(entries) - free
		entries = entries[dropped:]
	}

	for i := len(entries) - 1; i >= 0; i-- {
		b.head = (b.head - 1 + len(b.buf)) % len(b.buf)
		b.buf[b.head] = entries[i]
		b.size++
	}

	b.stats.Requeued += uint64(len(entries))
	if n := uint64(returned); b.stats.Drained >= n {
		b.stats.Drained -= n
	} else {
		b.stats.Drained = 0
	}
	b.stats.Evicted += uint64(dropped)
	return dropped
}

// Len returns the number of queued entries.
func (b *Backlog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the maximum depth.
func (b *Backlog) Cap() int {
	return len(b.buf)
}

// Snapshot returns a copy of the queued entries, oldest first.
func (b *Backlog) Snapshot() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, b.size)
	for i := range out {
		out[i] = b.buf[(b.head+i)%len(b.buf)]
	}
	return out
}

// Stats returns the running totals.
func (b *Backlog) Stats() BacklogStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
