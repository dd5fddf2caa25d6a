package maintenance

import (
	"context"
	"errors"
)

// Job names.
const (
	JobWindowSnapshot    = "window_snapshot"
	JobProfileCompaction = "profile_compaction"
)

// ErrQueueFull is returned when a compaction request could not be queued.
var ErrQueueFull = errors.New("maintenance: synthesis queue full")

// FuncJob adapts a function to Job.
type FuncJob struct {
	JobName     string
	JobSchedule string
	Fn          func(ctx context.Context) error
}

func (f FuncJob) Name() string                  { return f.JobName }
func (f FuncJob) Schedule() string              { return f.JobSchedule }
func (f FuncJob) Run(ctx context.Context) error { return f.Fn(ctx) }

// WindowSaver persists the sliding window.
type WindowSaver interface {
	SaveWindow() error
}

// WindowSnapshot saves the window so a crash loses at most one interval.
func WindowSnapshot(schedule string, w WindowSaver) Job {
	return FuncJob{
		JobName:     JobWindowSnapshot,
		JobSchedule: schedule,
		Fn:          func(context.Context) error { return w.SaveWindow() },
	}
}

// Compactor accepts compaction requests; the synthesis worker is one.
type Compactor interface {
	RequestCompaction() bool
}

// ProfileCompaction asks the synthesis worker to compact the profile. The
// work happens on the worker so the profile keeps a single writer.
func ProfileCompaction(schedule string, c Compactor) Job {
	return FuncJob{
		JobName:     JobProfileCompaction,
		JobSchedule: schedule,
		Fn: func(context.Context) error {
			if !c.RequestCompaction() {
				return ErrQueueFull
			}
			return nil
		},
	}
}
