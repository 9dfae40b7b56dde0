package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Schedule publishes a fixed set of measurements every Interval.
type Schedule struct {
	Interval     time.Duration
	Measurements []string
}

// Scheduler drives periodic publishes and, optionally, periodic backlog
// drains for one Publisher.
type Scheduler struct {
	publisher     *Publisher
	schedules     []Schedule
	drainInterval time.Duration
	logger        Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. A drainInterval of 0 disables the
// periodic drain; backlog entries then only go out after a successful publish.
func NewScheduler(p *Publisher, schedules []Schedule, drainInterval time.Duration) *Scheduler {
	return &Scheduler{
		publisher:     p,
		schedules:     schedules,
		drainInterval: drainInterval,
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// Start launches one goroutine per schedule plus one for draining.
// It fails without starting anything if a schedule names an unknown
// measurement.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	resolved := make([][]*Measurement, len(s.schedules))
	for i, sc := range s.schedules {
		if sc.Interval <= 0 {
			return fmt.Errorf("schedule %d: interval must be positive", i)
		}
		for _, id := range sc.Measurements {
			m, err := s.publisher.Measurement(id)
			if err != nil {
				return fmt.Errorf("schedule %d: %w", i, err)
			}
			resolved[i] = append(resolved[i], m)
		}
	}

	s.done = make(chan struct{})
	for i, sc := range s.schedules {
		s.wg.Add(1)
		go s.publishLoop(ctx, sc.Interval, resolved[i])
	}
	if s.drainInterval > 0 {
		s.wg.Add(1)
		go s.drainLoop(ctx)
	}
	s.running = true

	s.logger.Info("scheduler started", "schedules", len(s.schedules), "drain_interval", s.drainInterval)
	return nil
}

// Stop signals all loops to exit and waits for them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.done)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) publishLoop(ctx context.Context, interval time.Duration, ms []*Measurement) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.tick(ctx, ms)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, ms []*Measurement) {
	if len(ms) == 1 {
		res := s.publisher.Publish(ctx, ms[0])
		if res.Status == StatusFailed {
			s.logger.Warn("scheduled publish failed", "measurement", res.Measurement, "backlogged", res.Backlogged, "error", res.Err)
		}
		return
	}

	res := s.publisher.PublishBatch(ctx, ms)
	for _, r := range res.Results {
		if r.Status == StatusFailed {
			s.logger.Warn("scheduled publish failed", "measurement", r.Measurement, "backlogged", r.Backlogged, "error", r.Err)
		}
	}
}

func (s *Scheduler) drainLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if s.publisher.BacklogStatus().Depth == 0 {
				continue
			}
			s.publisher.DrainBacklog(ctx)
		}
	}
}
