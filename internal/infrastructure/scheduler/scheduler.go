package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gamekeys/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// JobStatus represents the outcome of a job run
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
	JobStatusSkipped JobStatus = "SKIPPED"
)

// Job is a task run every Interval
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// JobState is the last known run of a job
type JobState struct {
	Name        string        `json:"name"`
	Interval    time.Duration `json:"interval"`
	Status      JobStatus     `json:"status"`
	Error       string        `json:"error,omitempty"`
	Runs        int64         `json:"runs"`
	Failures    int64         `json:"failures"`
	LastStarted *time.Time    `json:"last_started,omitempty"`
	LastElapsed time.Duration `json:"last_elapsed"`
}

// Observer receives the outcome of each run, typically for metrics
type Observer interface {
	ObserveJobRun(job string, status JobStatus, duration time.Duration)
}

// Config holds scheduler configuration
type Config struct {
	Enabled    bool
	JobTimeout time.Duration
	LockTTL    time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		JobTimeout: 2 * time.Minute,
		LockTTL:    5 * time.Minute,
	}
}

// Scheduler runs periodic jobs. Each run takes a named lock so that only one
// server instance executes a job at a time; runs that find the lock taken
// are skipped.
type Scheduler struct {
	config   Config
	locker   cache.Locker
	logger   *zap.Logger
	observer Observer

	mu        sync.Mutex
	jobs      map[string]*Job
	states    map[string]*JobState
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
}

// Option configures the scheduler
type Option func(*Scheduler)

// WithObserver reports job runs to an observer
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config Config, locker cache.Locker, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}
	if config.LockTTL < config.JobTimeout {
		config.LockTTL = config.JobTimeout
	}

	s := &Scheduler{
		config: config,
		locker: locker,
		logger: logger,
		jobs:   make(map[string]*Job),
		states: make(map[string]*JobState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job. Jobs must be registered before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil || job.Interval <= 0 {
		return fmt.Errorf("%w: job needs a name, a run func and a positive interval", ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("%w: cannot register %s while running", ErrInvalidConfig, job.Name)
	}
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("%w: duplicate job %s", ErrInvalidConfig, job.Name)
	}

	s.jobs[job.Name] = &job
	s.states[job.Name] = &JobState{Name: job.Name, Interval: job.Interval, Status: JobStatusPending}
	return nil
}

// Start launches one ticker loop per job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info("Scheduler disabled")
		return nil
	}
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	names := make([]string, 0, len(s.jobs))
	for name, job := range s.jobs {
		names = append(names, name)
		g.Go(func() error {
			s.loop(gctx, job)
			return nil
		})
	}

	done := s.done
	go func() {
		_ = g.Wait()
		close(done)
	}()

	sort.Strings(names)
	s.logger.Info("Scheduler started",
		zap.Strings("jobs", names),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels the loops and waits for running jobs, bounded by ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// RunNow executes a job immediately on the caller's goroutine
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, job)
}

// States returns a snapshot of all job states ordered by name
func (s *Scheduler) States() []JobState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) loop(ctx context.Context, job *Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	s.logger.Debug("Job loop started", zap.String("job", job.Name), zap.Duration("interval", job.Interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.execute(ctx, job); err != nil && !errors.Is(err, ErrJobSkipped) {
				s.logger.Error("Job failed", zap.String("job", job.Name), zap.Error(err))
			}
		}
	}
}

// execute runs a job once under its lock and timeout
func (s *Scheduler) execute(ctx context.Context, job *Job) (err error) {
	release, err := s.locker.Acquire(ctx, "job:"+job.Name, s.config.LockTTL)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			s.record(job.Name, JobStatusSkipped, time.Now(), 0, nil)
			return ErrJobSkipped
		}
		return fmt.Errorf("acquire lock for %s: %w", job.Name, err)
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			s.logger.Warn("Failed to release job lock", zap.String("job", job.Name), zap.Error(rerr))
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	start := time.Now()
	s.record(job.Name, JobStatusRunning, start, 0, nil)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
		status := JobStatusSuccess
		if err != nil {
			status = JobStatusFailed
		}
		s.record(job.Name, status, start, time.Since(start), err)
	}()

	return job.Run(jobCtx)
}

func (s *Scheduler) record(name string, status JobStatus, started time.Time, elapsed time.Duration, err error) {
	s.mu.Lock()
	st, ok := s.states[name]
	if ok {
		st.Status = status
		switch status {
		case JobStatusRunning:
			st.LastStarted = &started
			st.Error = ""
		case JobStatusSuccess, JobStatusFailed:
			st.Runs++
			st.LastElapsed = elapsed
			if err != nil {
				st.Failures++
				st.Error = err.Error()
			}
		}
	}
	s.mu.Unlock()

	if s.observer != nil && status != JobStatusRunning {
		s.observer.ObserveJobRun(name, status, elapsed)
	}
}
