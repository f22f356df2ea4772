// Package scheduler runs the ingest and enrichment cycles on a timer.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Job is one scheduled cycle. Errors are logged, not fatal; the next tick
// runs regardless.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration // per-run context timeout; defaults to the interval
	Run      func(ctx context.Context) error
}

// Scheduler runs jobs at fixed intervals on UTC wall time.
type Scheduler struct {
	scheduler *gocron.Scheduler
	jobs      []Job
}

// New creates a scheduler for the given jobs.
func New(jobs []Job) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		jobs:      jobs,
	}
}

// Start schedules every job and starts the underlying scheduler. Each job
// also runs once immediately so a fresh daemon has data before the first
// interval elapses.
func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		job := job
		timeout := job.Timeout
		if timeout <= 0 {
			timeout = job.Interval
		}

		run := func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			start := time.Now()
			if err := job.Run(ctx); err != nil {
				log.Printf("scheduler: %s failed after %v: %v", job.Name, time.Since(start).Round(time.Millisecond), err)
				return
			}
			log.Printf("scheduler: %s completed in %v", job.Name, time.Since(start).Round(time.Millisecond))
		}

		if _, err := s.scheduler.Every(job.Interval).StartImmediately().Do(run); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
