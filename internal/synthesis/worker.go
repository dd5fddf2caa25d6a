package synthesis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rcliao/lattice-memory/internal/facts"
	"github.com/rcliao/lattice-memory/internal/metrics"
	"github.com/rcliao/lattice-memory/internal/model"
	"github.com/rcliao/lattice-memory/internal/store"
)

const (
	DefaultQueueSize = 64
	jobTimeout       = 2 * time.Minute
)

// Synthesis outcomes recorded in metrics.
const (
	OutcomeApplied   = "applied"
	OutcomeNoFacts   = "no_facts"
	OutcomeDropped   = "dropped"
	OutcomeFailed    = "failed"
	OutcomeCompacted = "compacted"
)

type job struct {
	turn    model.Turn
	compact bool
}

// WorkerConfig wires a Worker. FactLog and Store may be nil.
type WorkerConfig struct {
	Extractor facts.Extractor
	FactLog   store.FactLog
	Manager   *Manager
	Store     ProfileStore
	QueueSize int
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Worker owns the profile. A single goroutine consumes a buffered queue so
// the profile has exactly one writer; readers get copies.
type Worker struct {
	cfg  WorkerConfig
	jobs chan job
	done chan struct{}

	mu      sync.RWMutex
	profile UserProfile

	closeMu sync.RWMutex
	closed  bool
}

// NewWorker loads the stored profile and starts the consumer.
func NewWorker(ctx context.Context, cfg WorkerConfig) (*Worker, error) {
	if cfg.Extractor == nil {
		cfg.Extractor = facts.Nop{}
	}
	if cfg.Manager == nil {
		cfg.Manager = NewManager(ManagerConfig{Logger: cfg.Logger})
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	w := &Worker{
		cfg:  cfg,
		jobs: make(chan job, cfg.QueueSize),
		done: make(chan struct{}),
	}
	if cfg.Store != nil {
		p, err := cfg.Store.Load(ctx)
		if err != nil {
			return nil, err
		}
		w.profile = p
	}
	go w.run()
	return w, nil
}

// Profile returns a copy of the current profile.
func (w *Worker) Profile() UserProfile {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.profile.clone()
}

// ExtractorOnline reports whether facts are actually being extracted.
func (w *Worker) ExtractorOnline() bool { return facts.Online(w.cfg.Extractor) }

// SummarizerOnline reports whether compaction uses the reasoning service.
func (w *Worker) SummarizerOnline() bool { return w.cfg.Manager.SummarizerOnline() }

// Enqueue schedules a turn for fact extraction without blocking. It reports
// false when the queue is full or the worker is closed; the turn is dropped.
func (w *Worker) Enqueue(turn model.Turn) bool {
	return w.submit(job{turn: turn})
}

// RequestCompaction schedules a compaction pass through the same queue.
func (w *Worker) RequestCompaction() bool {
	return w.submit(job{compact: true})
}

func (w *Worker) submit(j job) bool {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.jobs <- j:
		return true
	default:
		w.cfg.Logger.Warn("synthesis queue full, dropping job", "turn", j.turn.ID, "compact", j.compact)
		w.cfg.Metrics.Synthesis(OutcomeDropped)
		return false
	}
}

// Close stops accepting jobs and waits for the queue to drain or ctx to end.
func (w *Worker) Close(ctx context.Context) error {
	w.closeMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.closeMu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) run() {
	defer close(w.done)
	for j := range w.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		if j.compact {
			w.compact(ctx)
		} else {
			w.process(ctx, j.turn)
		}
		cancel()
	}
}

func (w *Worker) process(ctx context.Context, turn model.Turn) {
	log := w.cfg.Logger.With("turn", turn.ID)

	extracted, err := w.cfg.Extractor.Extract(ctx, turn)
	if err != nil {
		log.Warn("fact extraction failed", "err", err)
		w.cfg.Metrics.Synthesis(OutcomeFailed)
		return
	}
	if len(extracted) == 0 {
		w.cfg.Metrics.Synthesis(OutcomeNoFacts)
		return
	}

	if w.cfg.FactLog != nil {
		if err := w.cfg.FactLog.AppendFacts(ctx, extracted); err != nil {
			log.Warn("append facts failed", "err", err)
			w.cfg.Metrics.Synthesis(OutcomeFailed)
			return
		}
	}

	current := w.Profile()
	next, err := w.cfg.Manager.Apply(ctx, current, extracted)
	if err != nil {
		log.Warn("apply facts failed", "err", err)
		w.cfg.Metrics.Synthesis(OutcomeFailed)
		return
	}
	if next.Version == current.Version {
		w.cfg.Metrics.Synthesis(OutcomeNoFacts)
		return
	}
	w.commit(ctx, next, OutcomeApplied)
	log.Debug("profile updated", "version", next.Version, "facts", len(next.Facts))
}

func (w *Worker) compact(ctx context.Context) {
	current := w.Profile()
	next := w.cfg.Manager.Compact(ctx, current)
	if len(next.Facts) == len(current.Facts) && next.Summary == current.Summary {
		return
	}
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	w.commit(ctx, next, OutcomeCompacted)
}

func (w *Worker) commit(ctx context.Context, p UserProfile, outcome string) {
	if w.cfg.Store != nil {
		if err := w.cfg.Store.Save(ctx, p); err != nil {
			w.cfg.Logger.Warn("save profile failed", "err", err)
			w.cfg.Metrics.Synthesis(OutcomeFailed)
			return
		}
	}
	w.mu.Lock()
	w.profile = p
	w.mu.Unlock()
	w.cfg.Metrics.Synthesis(outcome)
}
