// Package scheduler drives the periodic collection jobs on fixed
// intervals, guaranteeing at most one running instance per job and a
// bounded drain window at shutdown.
package scheduler

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one schedulable unit of work. Run should respect ctx cancellation.
type Job struct {
	ID      string
	Name    string
	Spec    string // cron expression, e.g. "@every 5m"
	Run     func(ctx context.Context) error

	// RunAtStartup additionally fires the job once, outside its cron
	// cadence, StartupDelay after Start is called.
	RunAtStartup bool
	StartupDelay time.Duration

	running atomic.Bool
}

// Scheduler wraps robfig/cron with a per-job single-instance guard, since
// cron itself happily overlaps runs of a slow job with its own next tick.
type Scheduler struct {
	cron *cron.Cron
	jobs []*Job

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds an empty Scheduler. Register jobs with Add before Start.
func New() *Scheduler {
	return &Scheduler{cron: cron.New(), ctx: context.Background()}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(j *Job) error {
	job := j
	_, err := s.cron.AddFunc(job.Spec, func() {
		s.runGuarded(job)
	})
	if err != nil {
		return err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// runGuarded enforces "max 1 instance" semantics: if the job is already
// running, this tick is skipped rather than queued.
func (s *Scheduler) runGuarded(j *Job) {
	if !j.running.CompareAndSwap(false, true) {
		log.Printf("scheduler: skipping tick for %q, previous run still in progress", j.ID)
		return
	}
	defer j.running.Store(false)

	start := time.Now()
	if err := j.Run(s.jobContext()); err != nil {
		log.Printf("scheduler: job %q failed after %s: %v", j.ID, time.Since(start), err)
		return
	}
	log.Printf("scheduler: job %q completed in %s", j.ID, time.Since(start))
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Start launches the cron scheduler. Every job context is cancelled when
// ctx is cancelled or Shutdown is called.
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.ctx = runCtx
	s.cancel = cancel
	s.mu.Unlock()

	s.cron.Start()
	log.Printf("scheduler: started with %d jobs", len(s.jobs))

	for _, j := range s.jobs {
		if !j.RunAtStartup {
			continue
		}
		job := j
		go func() {
			if job.StartupDelay > 0 {
				select {
				case <-time.After(job.StartupDelay):
				case <-runCtx.Done():
					return
				}
			}
			s.runGuarded(job)
		}()
	}
}

// Shutdown signals cancellation to in-flight jobs and waits up to drain
// for the cron scheduler's own stop to complete, then returns regardless.
func (s *Scheduler) Shutdown(drain time.Duration) {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(drain):
		log.Printf("scheduler: drain window elapsed before all jobs finished")
	}
}
