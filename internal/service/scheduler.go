package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/veloplan/sync-service/internal/domain"
	"go.uber.org/zap"
)

// ErrJobNotFound is returned when a trigger names an unregistered job.
var ErrJobNotFound = errors.New("job not registered")

// ErrJobBusy is returned when a manual trigger finds the job lock held
// by a scheduled or concurrent run.
var ErrJobBusy = errors.New("job is already running")

// JobFunc is one batch routine executed by the scheduler.
type JobFunc func(ctx context.Context) (*domain.JobRun, error)

// RunGuard serializes job executions. Implemented by SyncGuard; faked
// in tests.
type RunGuard interface {
	Acquire(ctx context.Context, jobName string) (bool, error)
	Release(ctx context.Context, jobName string) error
}

type scheduledJob struct {
	name     string
	spec     string
	schedule cron.Schedule
	fn       JobFunc
	armed    bool
}

// JobStatus is the admin view of one registered job.
type JobStatus struct {
	Name     string      `json:"name"`
	Spec     string      `json:"spec"`
	Armed    bool        `json:"armed"`
	NextRuns []time.Time `json:"next_runs"`
}

// Scheduler is an explicit registry of named recurring jobs. Jobs are
// registered disarmed; a cron trigger fires only while its job is
// armed, and manual triggers work regardless of arming. Every
// execution path goes through the distributed run guard, so a cron
// fire and a manual trigger can never run the same job concurrently.
type Scheduler struct {
	cron   *cron.Cron
	guard  RunGuard
	logger *zap.Logger

	mu      sync.Mutex
	jobs    map[string]*scheduledJob
	running bool
}

// NewScheduler creates a job scheduler in the given time zone
func NewScheduler(loc *time.Location, guard RunGuard, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		guard:  guard,
		logger: logger,
		jobs:   make(map[string]*scheduledJob),
	}
}

// Register adds a named job with its cron expression. Registering the
// same name twice is an error.
func (s *Scheduler) Register(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q is already registered", name)
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for job %q: %w", spec, name, err)
	}

	job := &scheduledJob{name: name, spec: spec, schedule: schedule, fn: fn}
	s.jobs[name] = job

	s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.mu.Lock()
		armed := job.armed
		s.mu.Unlock()
		if !armed {
			return
		}

		if _, err := s.execute(context.Background(), job); err != nil {
			if errors.Is(err, ErrJobBusy) {
				s.logger.Info("scheduled run skipped, lock held elsewhere", zap.String("job", name))
				return
			}
			s.logger.Error("scheduled run failed", zap.String("job", name), zap.Error(err))
		}
	}))

	s.logger.Info("job registered", zap.String("job", name), zap.String("spec", spec))

	return nil
}

// Start runs the cron engine. Individual jobs still fire only once
// armed.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop halts the cron engine and waits for in-flight scheduled runs to
// finish. Registered jobs stay triggerable manually.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// StartJob arms the named job's trigger. In-flight executions are not
// affected.
func (s *Scheduler) StartJob(name string) error {
	return s.setArmed(name, true)
}

// StopJob disarms the named job's trigger. An in-flight execution
// completes on its own.
func (s *Scheduler) StopJob(name string) error {
	return s.setArmed(name, false)
}

func (s *Scheduler) setArmed(name string, armed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %q: %w", name, ErrJobNotFound)
	}

	job.armed = armed
	s.logger.Info("job trigger toggled", zap.String("job", name), zap.Bool("armed", armed))

	return nil
}

// StartAll arms every registered job.
func (s *Scheduler) StartAll() {
	s.setAllArmed(true)
}

// StopAll disarms every registered job.
func (s *Scheduler) StopAll() {
	s.setAllArmed(false)
}

func (s *Scheduler) setAllArmed(armed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		job.armed = armed
	}
	s.logger.Info("all job triggers toggled", zap.Bool("armed", armed), zap.Int("jobs", len(s.jobs)))
}

// RunNow triggers the named job immediately, whether or not the
// scheduler is armed. Returns ErrJobBusy when the job lock is held.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*domain.JobRun, error) {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()

	if !exists {
		return nil, fmt.Errorf("job %q: %w", name, ErrJobNotFound)
	}

	return s.execute(ctx, job)
}

// Status reports every registered job with its next few fire times.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		status := JobStatus{
			Name:  job.name,
			Spec:  job.spec,
			Armed: job.armed,
		}

		next := time.Now()
		for i := 0; i < 3; i++ {
			next = job.schedule.Next(next)
			status.NextRuns = append(status.NextRuns, next)
		}

		statuses = append(statuses, status)
	}

	return statuses
}

// execute runs one job under the distributed guard.
func (s *Scheduler) execute(ctx context.Context, job *scheduledJob) (*domain.JobRun, error) {
	acquired, err := s.guard.Acquire(ctx, job.name)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("job %q: %w", job.name, ErrJobBusy)
	}
	defer func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), job.name); err != nil {
			s.logger.Warn("failed to release job lock", zap.String("job", job.name), zap.Error(err))
		}
	}()

	s.logger.Info("job execution started", zap.String("job", job.name))

	run, err := s.invoke(ctx, job)
	if err != nil {
		return nil, err
	}

	s.logger.Info("job execution finished",
		zap.String("job", job.name),
		zap.String("run_id", run.ID),
		zap.String("status", run.Status),
	)

	return run, nil
}

// invoke runs the task and contains its panics, so a broken job can
// never take down the scheduler process.
func (s *Scheduler) invoke(ctx context.Context, job *scheduledJob) (run *domain.JobRun, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", zap.String("job", job.name), zap.Any("panic", r))
			err = fmt.Errorf("job %q panicked: %v", job.name, r)
		}
	}()

	return job.fn(ctx)
}
