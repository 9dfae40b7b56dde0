package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Logger defines the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// WriteRequest is one line-protocol POST.
type WriteRequest struct {
	// URL is the full write endpoint including org, precision and bucket.
	URL          string
	Organization string
	Bucket       string
	Token        string
	Body         []byte
}

// Transport delivers line protocol to InfluxDB. Any error, including a
// non-2xx status, is a failed write. Timeouts belong to the transport.
type Transport interface {
	Write(ctx context.Context, req WriteRequest) error
}

// Options configures a Publisher.
type Options struct {
	URL          string
	Organization string
	Token        string

	// Tags are written on every measurement, before its own tags.
	Tags []Tag

	Transport Transport

	// Clock is optional. Without one, lines carry no timestamp and the
	// backlog stays disabled for the life of the publisher.
	Clock Clock

	// BacklogMaxDepth of 0 disables the backlog. Otherwise 1-200.
	BacklogMaxDepth int

	// BacklogDrainBatch is how many entries each successful publish
	// drains (1-20). Defaults to 1.
	BacklogDrainBatch int

	Logger  Logger
	Metrics *Metrics
}

// Status is the outcome of publishing one measurement.
type Status string

// Publish outcomes.
const (
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusRejected  Status = "rejected"
)

// Result describes one measurement's publish.
type Result struct {
	Measurement string `json:"measurement"`
	Bucket      string `json:"bucket"`
	Status      Status `json:"status"`
	Line        string `json:"line,omitempty"`

	// Backlogged is true when a failed line was kept for a later retry.
	Backlogged bool `json:"backlogged"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// OK reports whether the line was written.
func (r Result) OK() bool { return r.Status == StatusPublished }

func (r *Result) fail(status Status, err error) {
	r.Status = status
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// DrainResult describes one pass over the backlog.
type DrainResult struct {
	Attempted int `json:"attempted"`
	Drained   int `json:"drained"`
	Requeued  int `json:"requeued"`
	Dropped   int `json:"dropped"`
	Remaining int `json:"remaining"`

	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// PublishResult is the outcome of Publish.
type PublishResult struct {
	Result
	Drain DrainResult `json:"drain"`
}

// BatchResult is the outcome of PublishBatch. Results are in input order.
type BatchResult struct {
	Results  []Result    `json:"results"`
	Requests int         `json:"requests"`
	Drain    DrainResult `json:"drain"`
}

// Published returns how many measurements were written.
func (b BatchResult) Published() int {
	n := 0
	for _, r := range b.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// BacklogStatus is a point-in-time view of the backlog.
type BacklogStatus struct {
	Configured bool         `json:"configured"`
	Enabled    bool         `json:"enabled"`
	Depth      int          `json:"depth"`
	Capacity   int          `json:"capacity"`
	DrainBatch int          `json:"drain_batch"`
	Stats      BacklogStats `json:"stats"`
}

var publisherSeq atomic.Uint64

// Publisher writes measurements to one InfluxDB organisation and keeps a
// backlog of failed lines once the clock is available.
//
// Publish, PublishBatch and DrainBacklog are serialised: at most one write
// sequence is in flight, so backlog order is never disturbed by a
// concurrent drain.
//
// Thread Safety:
//   - All public methods are safe for concurrent use.
type Publisher struct {
	handle     uint64
	writeURL   string
	org        string
	token      string
	tags       []Tag
	transport  Transport
	clock      Clock
	drainBatch int

	// backlog is nil when no clock or no depth was configured.
	backlog *Backlog
	enabled atomic.Bool

	// mu serialises every write sequence.
	mu sync.Mutex

	measMu       sync.RWMutex
	measurements map[string]*Measurement
	order        []string

	logger  Logger
	metrics *Metrics

	cbMu      sync.RWMutex
	onPublish func(Result)
}

// NewPublisher creates a Publisher.
//
// Parameters:
//   - opts: Target, transport, clock and backlog settings
//
// Returns:
//   - *Publisher: Ready to accept measurements
//   - error: ErrInvalidOptions if the target or transport is missing
func NewPublisher(opts Options) (*Publisher, error) {
	if opts.URL == "" || opts.Organization == "" {
		return nil, fmt.Errorf("%w: url and organization are required", ErrInvalidOptions)
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrInvalidOptions)
	}
	if opts.BacklogMaxDepth < 0 || opts.BacklogDrainBatch < 0 {
		return nil, fmt.Errorf("%w: backlog settings cannot be negative", ErrInvalidOptions)
	}
	if hasLineBreak("", opts.Tags) {
		return nil, fmt.Errorf("%w: tags must not contain a line break", ErrInvalidOptions)
	}

	p := &Publisher{
		handle:       publisherSeq.Add(1),
		writeURL:     writeURL(opts.URL, opts.Organization),
		org:          opts.Organization,
		token:        opts.Token,
		tags:         append([]Tag(nil), opts.Tags...),
		transport:    opts.Transport,
		clock:        opts.Clock,
		drainBatch:   opts.BacklogDrainBatch,
		measurements: make(map[string]*Measurement),
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
	if p.logger == nil {
		p.logger = noopLogger{}
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	if p.drainBatch == 0 {
		p.drainBatch = 1
	}

	switch {
	case opts.BacklogMaxDepth == 0:
	case opts.Clock == nil:
		p.logger.Warn("backlog requires a clock, leaving it disabled", "max_depth", opts.BacklogMaxDepth)
	default:
		p.backlog = NewBacklog(opts.BacklogMaxDepth)
	}

	return p, nil
}

// SetLogger sets the logger for the publisher.
func (p *Publisher) SetLogger(logger Logger) {
	p.logger = logger
}

// SetOnPublish registers a callback invoked after each measurement
// publish, outside any publisher lock.
func (p *Publisher) SetOnPublish(fn func(Result)) {
	p.cbMu.Lock()
	defer p.cbMu.Unlock()
	p.onPublish = fn
}

// WriteURL returns the organisation-level write endpoint.
func (p *Publisher) WriteURL() string { return p.writeURL }

// AddMeasurement creates a measurement owned by this publisher.
// The publisher's tags precede the measurement's own tags in the prefix.
//
// Returns:
//   - *Measurement: The new measurement
//   - error: ErrInvalidMeasurement or ErrMeasurementExists
func (p *Publisher) AddMeasurement(def MeasurementDef) (*Measurement, error) {
	switch {
	case def.ID == "":
		return nil, fmt.Errorf("%w: id is required", ErrInvalidMeasurement)
	case def.Name == "":
		return nil, fmt.Errorf("%w: %s: name is required", ErrInvalidMeasurement, def.ID)
	case def.Bucket == "":
		return nil, fmt.Errorf("%w: %s: bucket is required", ErrInvalidMeasurement, def.ID)
	case len(def.Fields) == 0:
		return nil, fmt.Errorf("%w: %s: at least one field is required", ErrInvalidMeasurement, def.ID)
	case hasLineBreak(def.Name, def.Tags):
		return nil, fmt.Errorf("%w: %s: name and tags must not contain a line break", ErrInvalidMeasurement, def.ID)
	}

	m := &Measurement{
		id:     def.ID,
		owner:  p.handle,
		bucket: def.Bucket,
		url:    bucketURL(p.writeURL, def.Bucket),
		prefix: linePrefix(def.Name, p.tags, def.Tags),
		policy: def.Policy,
		fields: append([]Field(nil), def.Fields...),
	}

	p.measMu.Lock()
	defer p.measMu.Unlock()
	if _, ok := p.measurements[m.id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrMeasurementExists, m.id)
	}
	p.measurements[m.id] = m
	p.order = append(p.order, m.id)

	return m, nil
}

// Measurement returns a measurement by ID.
func (p *Publisher) Measurement(id string) (*Measurement, error) {
	p.measMu.RLock()
	defer p.measMu.RUnlock()
	m, ok := p.measurements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMeasurementNotFound, id)
	}
	return m, nil
}

// Measurements returns all measurements in the order they were added.
func (p *Publisher) Measurements() []*Measurement {
	p.measMu.RLock()
	defer p.measMu.RUnlock()
	out := make([]*Measurement, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.measurements[id])
	}
	return out
}

// Publish renders m and writes it.
//
// On success, up to the drain batch of backlog entries are written after
// it. On failure, the line goes to the backlog if the backlog is enabled
// and is discarded otherwise. No error escapes: the outcome is in the
// returned result.
func (p *Publisher) Publish(ctx context.Context, m *Measurement) PublishResult {
	res := p.publish(ctx, m)
	p.notify(res.Result)
	return res
}

func (p *Publisher) publish(ctx context.Context, m *Measurement) PublishResult {
	res := PublishResult{Result: Result{Measurement: m.id, Bucket: m.bucket}}
	if m.owner != p.handle {
		res.fail(StatusRejected, fmt.Errorf("%w: %s", ErrForeignMeasurement, m.id))
		p.metrics.Publishes.WithLabelValues(string(StatusRejected)).Inc()
		return res
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ts, withTS := p.now()
	line, err := m.Render(ts, withTS)
	if err != nil {
		p.logger.Debug("skipping measurement", "measurement", m.id, "reason", err)
		res.fail(StatusSkipped, err)
		p.metrics.Publishes.WithLabelValues(string(StatusSkipped)).Inc()
		return res
	}
	res.Line = line

	if err := p.write(ctx, m.url, m.bucket, []byte(line)); err != nil {
		res.fail(StatusFailed, err)
		res.Backlogged = p.enqueue(Entry{Measurement: m.id, Bucket: m.bucket, URL: m.url, Line: line}, withTS)
		p.metrics.Publishes.WithLabelValues(string(StatusFailed)).Inc()
		return res
	}

	res.Status = StatusPublished
	p.metrics.Publishes.WithLabelValues(string(StatusPublished)).Inc()
	res.Drain = p.drainLocked(ctx)
	return res
}

type bucketGroup struct {
	url     string
	bucket  string
	indices []int
	lines   []string
}

// PublishBatch publishes several measurements with one shared timestamp.
//
// Lines for the same bucket are combined into one request; each bucket
// gets its own request, in order of first appearance. A failed request
// fails every measurement in it, and each of their lines is backlogged as
// a separate entry. The backlog is drained once if any request succeeded.
func (p *Publisher) PublishBatch(ctx context.Context, ms []*Measurement) BatchResult {
	res := p.publishBatch(ctx, ms)
	for _, r := range res.Results {
		p.notify(r)
	}
	return res
}

func (p *Publisher) publishBatch(ctx context.Context, ms []*Measurement) BatchResult {
	res := BatchResult{Results: make([]Result, len(ms))}
	if len(ms) == 0 {
		return res
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ts, withTS := p.now()

	var groups []*bucketGroup
	byURL := make(map[string]*bucketGroup)

	for i, m := range ms {
		r := &res.Results[i]
		r.Measurement, r.Bucket = m.id, m.bucket

		if m.owner != p.handle {
			r.fail(StatusRejected, fmt.Errorf("%w: %s", ErrForeignMeasurement, m.id))
			p.metrics.Publishes.WithLabelValues(string(StatusRejected)).Inc()
			continue
		}

		line, err := m.Render(ts, withTS)
		if err != nil {
			r.fail(StatusSkipped, err)
			p.metrics.Publishes.WithLabelValues(string(StatusSkipped)).Inc()
			continue
		}
		r.Line = line

		g, ok := byURL[m.url]
		if !ok {
			g = &bucketGroup{url: m.url, bucket: m.bucket}
			byURL[m.url] = g
			groups = append(groups, g)
		}
		g.indices = append(g.indices, i)
		g.lines = append(g.lines, line)
	}

	anySuccess := false
	for _, g := range groups {
		res.Requests++
		err := p.write(ctx, g.url, g.bucket, []byte(strings.Join(g.lines, "")))
		for j, idx := range g.indices {
			r := &res.Results[idx]
			if err != nil {
				r.fail(StatusFailed, err)
				r.Backlogged = p.enqueue(Entry{Measurement: r.Measurement, Bucket: g.bucket, URL: g.url, Line: g.lines[j]}, withTS)
				p.metrics.Publishes.WithLabelValues(string(StatusFailed)).Inc()
				continue
			}
			r.Status = StatusPublished
			p.metrics.Publishes.WithLabelValues(string(StatusPublished)).Inc()
		}
		if err == nil {
			anySuccess = true
		}
	}

	if anySuccess {
		res.Drain = p.drainLocked(ctx)
	}
	return res
}

// PublishIDs looks up measurements by ID and publishes them: a single ID
// as a plain publish, several as a batch.
//
// Returns:
//   - BatchResult: One result per ID
//   - error: ErrMeasurementNotFound if any ID is unknown; nothing is published then
func (p *Publisher) PublishIDs(ctx context.Context, ids []string) (BatchResult, error) {
	ms := make([]*Measurement, 0, len(ids))
	for _, id := range ids {
		m, err := p.Measurement(id)
		if err != nil {
			return BatchResult{}, err
		}
		ms = append(ms, m)
	}

	if len(ms) == 1 {
		r := p.Publish(ctx, ms[0])
		out := BatchResult{Results: []Result{r.Result}, Drain: r.Drain}
		if r.Status == StatusPublished || r.Status == StatusFailed {
			out.Requests = 1
		}
		return out, nil
	}
	return p.PublishBatch(ctx, ms), nil
}

// DrainBacklog writes one drain batch from the backlog without publishing
// anything new. It does nothing while the backlog is disabled.
func (p *Publisher) DrainBacklog(ctx context.Context) DrainResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Give the clock a chance to enable the backlog.
	p.now()
	return p.drainLocked(ctx)
}

// drainLocked takes up to drainBatch entries and writes them one at a time.
// At the first failure, that entry and any not yet tried go back to the
// head of the backlog. Caller must hold p.mu.
func (p *Publisher) drainLocked(ctx context.Context) DrainResult {
	var dr DrainResult
	if !p.BacklogEnabled() {
		return dr
	}

	batch := p.backlog.Drain(p.drainBatch)
	dr.Attempted = len(batch)

	for i, e := range batch {
		if err := p.write(ctx, e.URL, e.Bucket, []byte(e.Line)); err != nil {
			rest := batch[i:]
			dr.Dropped = p.backlog.Requeue(rest)
			dr.Requeued = len(rest) - dr.Dropped
			dr.Err = err
			dr.Error = err.Error()
			p.metrics.BacklogRequeued.Add(float64(dr.Requeued))
			p.metrics.BacklogEvicted.Add(float64(dr.Dropped))
			p.logger.Warn("backlog drain stopped", "drained", dr.Drained, "requeued", dr.Requeued, "error", err)
			break
		}
		dr.Drained++
		p.metrics.BacklogDrained.Inc()
	}

	dr.Remaining = p.backlog.Len()
	p.metrics.BacklogDepth.Set(float64(dr.Remaining))
	if dr.Drained > 0 {
		p.logger.Debug("drained backlog", "drained", dr.Drained, "remaining", dr.Remaining)
	}
	return dr
}

// enqueue keeps a failed line if the backlog is enabled.
func (p *Publisher) enqueue(e Entry, stamped bool) bool {
	if !p.BacklogEnabled() {
		p.metrics.BacklogDiscarded.Inc()
		p.logger.Debug("write failed, backlog disabled", "measurement", e.Measurement)
		return false
	}
	if !stamped {
		p.metrics.BacklogDiscarded.Inc()
		p.logger.Warn("write failed, line has no timestamp so it is not backlogged", "measurement", e.Measurement)
		return false
	}

	e.EnqueuedAt = time.Now()
	if p.backlog.Enqueue(e) > 0 {
		p.metrics.BacklogEvicted.Inc()
		p.logger.Warn("backlog is full, dropped oldest entry", "max_depth", p.backlog.Cap())
	}
	p.metrics.BacklogEnqueued.Inc()

	depth := p.backlog.Len()
	p.metrics.BacklogDepth.Set(float64(depth))
	p.logger.Debug("write failed, added to backlog", "measurement", e.Measurement, "depth", depth)
	return true
}

// now reads the clock and latches the backlog on the first valid reading.
func (p *Publisher) now() (int64, bool) {
	if p.clock == nil {
		return 0, false
	}
	ts, ok := p.clock.Now()
	if ok && p.backlog != nil && p.enabled.CompareAndSwap(false, true) {
		p.metrics.BacklogEnabled.Set(1)
		p.logger.Info("clock available, backlog enabled", "max_depth", p.backlog.Cap(), "drain_batch", p.drainBatch)
	}
	return ts, ok
}

// write sends one request and wraps any failure in ErrTransport.
func (p *Publisher) write(ctx context.Context, url, bucket string, body []byte) error {
	start := time.Now()
	err := p.transport.Write(ctx, WriteRequest{
		URL:          url,
		Organization: p.org,
		Bucket:       bucket,
		Token:        p.token,
		Body:         body,
	})
	p.metrics.observeWrite(start, err)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func (p *Publisher) notify(r Result) {
	p.cbMu.RLock()
	fn := p.onPublish
	p.cbMu.RUnlock()
	if fn != nil {
		fn(r)
	}
}

// BacklogEnabled reports whether failed lines are being kept.
// Once true it stays true.
func (p *Publisher) BacklogEnabled() bool {
	return p.backlog != nil && p.enabled.Load()
}

// BacklogStatus returns the current backlog state.
func (p *Publisher) BacklogStatus() BacklogStatus {
	st := BacklogStatus{
		Configured: p.backlog != nil,
		Enabled:    p.BacklogEnabled(),
		DrainBatch: p.drainBatch,
	}
	if p.backlog != nil {
		st.Depth = p.backlog.Len()
		st.Capacity = p.backlog.Cap()
		st.Stats = p.backlog.Stats()
	}
	return st
}

// SnapshotBacklog returns the queued entries, oldest first.
func (p *Publisher) SnapshotBacklog() []Entry {
	if p.backlog == nil {
		return nil
	}
	return p.backlog.Snapshot()
}

// RestoreBacklog loads previously saved entries, oldest first. If there
// are more than the backlog holds, the oldest are evicted as usual.
//
// Returns:
//   - int: Number of entries now queued
func (p *Publisher) RestoreBacklog(entries []Entry) int {
	if p.backlog == nil {
		if len(entries) > 0 {
			p.logger.Warn("discarding saved backlog, backlog not configured", "entries", len(entries))
		}
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range entries {
		if e.EnqueuedAt.IsZero() {
			e.EnqueuedAt = time.Now()
		}
		p.backlog.Enqueue(e)
	}
	depth := p.backlog.Len()
	p.metrics.BacklogDepth.Set(float64(depth))
	return depth
}
