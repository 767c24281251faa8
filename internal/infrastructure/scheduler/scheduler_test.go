package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gamekeys/backend/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingObserver struct {
	mu   sync.Mutex
	runs map[string][]JobStatus
}

func (o *recordingObserver) ObserveJobRun(job string, status JobStatus, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.runs == nil {
		o.runs = make(map[string][]JobStatus)
	}
	o.runs[job] = append(o.runs[job], status)
}

func (o *recordingObserver) get(job string) []JobStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]JobStatus(nil), o.runs[job]...)
}

func newTestScheduler(opts ...Option) *Scheduler {
	return NewScheduler(Config{Enabled: true, JobTimeout: time.Second, LockTTL: time.Second},
		cache.NewLocalLocker(), zap.NewNop(), opts...)
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler()
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Register(Job{Name: "a", Interval: time.Second, Run: noop}))

	tests := []struct {
		name string
		job  Job
	}{
		{"missing name", Job{Interval: time.Second, Run: noop}},
		{"missing run", Job{Name: "b", Interval: time.Second}},
		{"zero interval", Job{Name: "c", Run: noop}},
		{"duplicate", Job{Name: "a", Interval: time.Second, Run: noop}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.Register(tt.job), ErrInvalidConfig)
		})
	}

	states := s.States()
	require.Len(t, states, 1)
	assert.Equal(t, JobStatusPending, states[0].Status)
}

func TestScheduler_RunsJobsPeriodically(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestScheduler(WithObserver(obs))

	var runs atomic.Int32
	require.NoError(t, s.Register(Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after stop")

	states := s.States()
	require.Len(t, states, 1)
	assert.Equal(t, JobStatusSuccess, states[0].Status)
	assert.GreaterOrEqual(t, states[0].Runs, int64(3))
	assert.NotEmpty(t, obs.get("tick"))

	// Stop is idempotent
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_RunNow(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestScheduler(WithObserver(obs))

	boom := errors.New("provider down")
	require.NoError(t, s.Register(Job{Name: "fail", Interval: time.Hour, Run: func(context.Context) error { return boom }}))
	require.NoError(t, s.Register(Job{Name: "panic", Interval: time.Hour, Run: func(context.Context) error { panic("bad") }}))
	require.NoError(t, s.Register(Job{Name: "deadline", Interval: time.Hour, Run: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	}}))

	ctx := context.Background()

	assert.ErrorIs(t, s.RunNow(ctx, "fail"), boom)
	assert.ErrorContains(t, s.RunNow(ctx, "panic"), "panicked")
	assert.NoError(t, s.RunNow(ctx, "deadline"))
	assert.ErrorIs(t, s.RunNow(ctx, "missing"), ErrJobNotFound)

	byName := map[string]JobState{}
	for _, st := range s.States() {
		byName[st.Name] = st
	}
	assert.Equal(t, JobStatusFailed, byName["fail"].Status)
	assert.Equal(t, "provider down", byName["fail"].Error)
	assert.Equal(t, int64(1), byName["fail"].Failures)
	assert.Equal(t, JobStatusFailed, byName["panic"].Status)
	assert.Equal(t, JobStatusSuccess, byName["deadline"].Status)
	assert.Equal(t, []JobStatus{JobStatusFailed}, obs.get("fail"))
}

func TestScheduler_SkipsWhenLockHeld(t *testing.T) {
	locker := cache.NewLocalLocker()
	s := NewScheduler(Config{Enabled: true, JobTimeout: time.Second}, locker, zap.NewNop())

	var runs atomic.Int32
	require.NoError(t, s.Register(Job{Name: "reconcile", Interval: time.Hour, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}))

	release, err := locker.Acquire(context.Background(), "job:reconcile", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, s.RunNow(context.Background(), "reconcile"), ErrJobSkipped)
	assert.Zero(t, runs.Load())
	assert.Equal(t, JobStatusSkipped, s.States()[0].Status)

	require.NoError(t, release(context.Background()))
	assert.NoError(t, s.RunNow(context.Background(), "reconcile"))
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_Disabled(t *testing.T) {
	s := NewScheduler(Config{Enabled: false}, nil, nil)
	var runs atomic.Int32
	require.NoError(t, s.Register(Job{Name: "tick", Interval: time.Millisecond, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, runs.Load())
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_RegisterWhileRunning(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	err := s.Register(Job{Name: "late", Interval: time.Second, Run: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
