package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/lattice-memory/internal/metrics"
)

const testSchedule = "*/5 * * * *"

type saverFunc func() error

func (f saverFunc) SaveWindow() error { return f() }

type compactor struct {
	accept bool
	calls  int
}

func (c *compactor) RequestCompaction() bool {
	c.calls++
	return c.accept
}

func TestRegister_Duplicate(t *testing.T) {
	s := NewScheduler(nil, nil)
	job := FuncJob{JobName: "a", JobSchedule: "* * * * *", Fn: func(context.Context) error { return nil }}
	require.NoError(t, s.Register(job))
	assert.Error(t, s.Register(job))
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := NewScheduler(nil, nil)
	require.NoError(t, s.Register(FuncJob{JobName: "bad", JobSchedule: "every tuesday", Fn: func(context.Context) error { return nil }}))
	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(nil, nil)
	require.NoError(t, s.Register(WindowSnapshot(testSchedule, saverFunc(func() error { return nil }))))
	require.NoError(t, s.Start())
	s.Stop()
	s.Stop()
}

func TestRunNow_RecordsOutcome(t *testing.T) {
	m := metrics.New()
	s := NewScheduler(nil, m)

	var saves atomic.Int32
	require.NoError(t, s.Register(WindowSnapshot(testSchedule, saverFunc(func() error {
		saves.Add(1)
		return nil
	}))))
	c := &compactor{accept: false}
	require.NoError(t, s.Register(ProfileCompaction(testSchedule, c)))

	ran, err := s.RunNow(context.Background(), JobWindowSnapshot)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int32(1), saves.Load())

	ran, err = s.RunNow(context.Background(), JobProfileCompaction)
	assert.True(t, ran)
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Equal(t, 1, c.calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MaintenanceRuns.WithLabelValues(JobWindowSnapshot, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MaintenanceRuns.WithLabelValues(JobProfileCompaction, "failed")))

	ran, err = s.RunNow(context.Background(), "unknown")
	assert.False(t, ran)
	assert.NoError(t, err)
}

func TestRun_SkipsOverlappingRuns(t *testing.T) {
	s := NewScheduler(nil, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, s.Register(FuncJob{JobName: "slow", JobSchedule: testSchedule, Fn: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))

	done := make(chan bool)
	go func() {
		ran, _ := s.RunNow(context.Background(), "slow")
		done <- ran
	}()
	<-started

	ran, err := s.RunNow(context.Background(), "slow")
	assert.NoError(t, err)
	assert.False(t, ran, "second run skipped while first in flight")

	close(release)
	assert.True(t, <-done)
}
