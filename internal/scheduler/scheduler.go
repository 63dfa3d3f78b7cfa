// Package scheduler runs recurring background jobs, one at a time, from a
// single goroutine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rc4lifting/rc4-facilities-bot/internal/logging"
)

// Schedule yields the next run time strictly after the given instant.
type Schedule interface {
	Next(after time.Time) time.Time
}

// Weekly fires once a week at Hour:Minute on Day, in Location.
type Weekly struct {
	Day      time.Weekday
	Hour     int
	Minute   int
	Location *time.Location
}

// Next implements Schedule.
func (w Weekly) Next(after time.Time) time.Time {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}

	local := after.In(loc)
	offset := (int(w.Day) - int(local.Weekday()) + 7) % 7
	next := time.Date(local.Year(), local.Month(), local.Day()+offset, w.Hour, w.Minute, 0, 0, loc)
	if !next.After(after) {
		next = time.Date(local.Year(), local.Month(), local.Day()+offset+7, w.Hour, w.Minute, 0, 0, loc)
	}
	return next
}

type every time.Duration

// Every fires at a fixed period measured from the previous run.
func Every(d time.Duration) Schedule {
	return every(d)
}

func (e every) Next(after time.Time) time.Time {
	return after.Add(time.Duration(e))
}

// Job is a named unit of recurring work.
type Job struct {
	Name     string
	Schedule Schedule
	Run      func(ctx context.Context) error
}

type timerFunc func(d time.Duration) (<-chan time.Time, func())

// Scheduler runs registered jobs sequentially; a job never overlaps another.
type Scheduler struct {
	jobs   []Job
	now    func() time.Time
	timer  timerFunc
	logger *logrus.Entry
}

// New constructs an empty Scheduler.
func New(logger *logrus.Entry) *Scheduler {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Scheduler{
		now:    time.Now,
		timer:  realTimer,
		logger: logger,
	}
}

// Add registers a job. It must be called before Run.
func (s *Scheduler) Add(job Job) error {
	if s == nil {
		return errors.New("scheduler is not initialized")
	}
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Schedule == nil || job.Run == nil {
		return fmt.Errorf("job %s: schedule and run are required", job.Name)
	}
	if e, ok := job.Schedule.(every); ok && e <= 0 {
		return fmt.Errorf("job %s: period must be positive", job.Name)
	}

	s.jobs = append(s.jobs, job)
	return nil
}

// Run blocks, firing jobs when due, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s == nil {
		return errors.New("scheduler is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if len(s.jobs) == 0 {
		<-ctx.Done()
		return nil
	}

	start := s.now()
	next := make([]time.Time, len(s.jobs))
	for i, job := range s.jobs {
		next[i] = job.Schedule.Next(start)
		s.logger.WithFields(logging.Fields{
			"event":    "job_scheduled",
			"job":      job.Name,
			"next_run": next[i].UTC().Format(time.RFC3339),
		}).Info("scheduled job")
	}

	for {
		i := earliest(next)
		wait := next[i].Sub(s.now())
		if wait < 0 {
			wait = 0
		}

		fired, stop := s.timer(wait)
		select {
		case <-ctx.Done():
			stop()
			s.logger.WithField("event", "scheduler_stopped").Info("scheduler stopped")
			return nil
		case <-fired:
		}
		if ctx.Err() != nil {
			s.logger.WithField("event", "scheduler_stopped").Info("scheduler stopped")
			return nil
		}

		s.run(ctx, s.jobs[i])

		from := s.now()
		if next[i].After(from) {
			from = next[i]
		}
		next[i] = s.jobs[i].Schedule.Next(from)
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	logger := s.logger.WithField("job", job.Name)
	started := s.now()

	defer func() {
		if r := recover(); r != nil {
			logger.WithFields(logging.Fields{
				"event": "job_panicked",
				"panic": fmt.Sprint(r),
			}).Error("job panicked")
		}
	}()

	if err := job.Run(ctx); err != nil {
		logger.WithField("event", "job_failed").WithError(err).Error("job failed")
		return
	}

	logger.WithFields(logging.Fields{
		"event":       "job_finished",
		"duration_ms": s.now().Sub(started).Milliseconds(),
	}).Debug("job finished")
}

func earliest(times []time.Time) int {
	best := 0
	for i := 1; i < len(times); i++ {
		if times[i].Before(times[best]) {
			best = i
		}
	}
	return best
}

func realTimer(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}
