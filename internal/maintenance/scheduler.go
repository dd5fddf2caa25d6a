// Package maintenance runs periodic housekeeping for a long-lived engine:
// window snapshots and profile compaction.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/rcliao/lattice-memory/internal/metrics"
)

// Job is a named unit of periodic work.
type Job interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules. A job never overlaps itself: a tick
// that arrives while the previous run is in flight is skipped.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    []Job
	locks   map[string]*sync.Mutex
	logger  *slog.Logger
	metrics *metrics.Metrics
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler. Jobs must be registered before Start.
func NewScheduler(logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		locks:   make(map[string]*sync.Mutex),
		logger:  logger,
		metrics: m,
	}
}

// Register adds a job. Names must be unique.
func (s *Scheduler) Register(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.locks[j.Name()]; exists {
		return fmt.Errorf("maintenance: duplicate job name %q", j.Name())
	}
	s.locks[j.Name()] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start validates every schedule and begins running jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s.cron = cron.New(cron.WithParser(parser))

	for _, j := range s.jobs {
		j := j
		if _, err := s.cron.AddFunc(j.Schedule(), func() { s.run(ctx, j) }); err != nil {
			cancel()
			return fmt.Errorf("maintenance: invalid schedule for job %q: %w", j.Name(), err)
		}
	}

	s.cron.Start()
	s.logger.Debug("maintenance scheduler started", "jobs", len(s.jobs))
	return nil
}

// RunNow runs the named job once, outside its schedule. It returns false if
// the job is unknown or already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	var job Job
	for _, j := range s.jobs {
		if j.Name() == name {
			job = j
		}
	}
	s.mu.Unlock()
	if job == nil {
		return false, nil
	}
	return s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, j Job) (bool, error) {
	lock := s.locks[j.Name()]
	if !lock.TryLock() {
		s.logger.Warn("maintenance job still running, skipping tick", "job", j.Name())
		return false, nil
	}
	defer lock.Unlock()

	err := j.Run(ctx)
	s.metrics.Maintenance(j.Name(), err)
	if err != nil {
		s.logger.Error("maintenance job failed", "job", j.Name(), "err", err)
		return true, err
	}
	s.logger.Debug("maintenance job completed", "job", j.Name())
	return true, nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}
}
