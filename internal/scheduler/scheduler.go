// Package scheduler runs the periodic jobs that operate on the persisted
// store independently of the ingestion path: the offline monitor, the
// retention reaper and the daily fuel summary.
package scheduler

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Job is one scheduled task. A returned error counts as a failed tick: it is
// logged and the job runs again on its next tick, never crashing the process.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler drives jobs on independent timers. Jobs take point-in-time
// snapshots and commit per vehicle, so they never hold ingestion locks.
type Scheduler struct {
	wg sync.WaitGroup
}

// Every runs the job on a fixed interval until the context is canceled. The
// first run happens after one interval, not immediately.
func (s *Scheduler) Every(ctx context.Context, interval time.Duration, job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx, job)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Daily runs the job once per day at midnight UTC.
func (s *Scheduler) Daily(ctx context.Context, job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			wait := time.Until(nextMidnightUTC(time.Now().UTC()))
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
				s.runOnce(ctx, job)
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.WithFields(log.Fields{"job": job.Name}).WithError(err).Error("Scheduled job failed")
		return
	}
	log.WithFields(log.Fields{"job": job.Name, "took": time.Since(start)}).Debug("Scheduled job finished")
}

// Wait blocks until all job loops have observed cancellation.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func nextMidnightUTC(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return next
}
