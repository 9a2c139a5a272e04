package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"shala/internal/model"
)

// Job is a named daily trigger. Run receives the target lesson date:
// today plus OffsetDays in the studio timezone.
type Job struct {
	Name       string
	Hour       int
	Minute     int
	OffsetDays int
	Run        func(ctx context.Context, date string) error
}

// Scheduler fires jobs once per day at their configured wall-clock time. A
// minute tick plus a per-job last-run date keeps jobs from double-firing
// and survives ticks landing a few seconds late.
type Scheduler struct {
	loc      *time.Location
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu      sync.Mutex
	jobs    []*scheduledJob
	running bool
	stopCh  chan struct{}
}

type scheduledJob struct {
	Job
	lastRunDate string // YYYY-MM-DD of last run
}

func NewScheduler(loc *time.Location, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		loc:      loc,
		interval: time.Minute,
		now:      time.Now,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// AddJob registers a trigger. Not safe to call after Start.
func (s *Scheduler) AddJob(j Job) {
	s.jobs = append(s.jobs, &scheduledJob{Job: j})
}

// Start runs the scheduler loop until the context is cancelled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.log.Info().
		Str("timezone", s.loc.String()).
		Int("jobs", len(s.jobs)).
		Msg("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped by context")
			return
		case <-s.stopCh:
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx, s.now())
		}
	}
}

// Stop halts the loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	now = now.In(s.loc)
	today := model.DateOf(now)

	for _, j := range s.jobs {
		if j.lastRunDate == today {
			continue
		}
		if now.Hour() != j.Hour || now.Minute() != j.Minute {
			continue
		}
		j.lastRunDate = today

		target := model.DateOf(now.AddDate(0, 0, j.OffsetDays))
		s.log.Info().
			Str("job", j.Name).
			Str("target_date", target).
			Msg("trigger fired")

		// Failures are logged and abandoned: the next day's trigger is the
		// retry, and the retention sweep backstops missed cleanups.
		if err := j.Run(ctx, target); err != nil {
			s.log.Error().Err(err).Str("job", j.Name).Msg("trigger failed")
		}
	}
}
