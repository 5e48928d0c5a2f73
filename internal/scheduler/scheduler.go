package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/route-weather/internal/weather"
)

// Fetcher runs the forecast pipeline. *weather.Service satisfies it.
type Fetcher interface {
	FetchWeather(ctx context.Context, queries []string, days int) (weather.Report, error)
}

// Purger drops expired entries from a cache. *store.MemoryStore satisfies it.
type Purger interface {
	Purge()
}

// Scheduler periodically runs the pipeline for a fixed place list so the
// forecast response cache stays warm for common requests.
type Scheduler struct {
	scheduler *gocron.Scheduler
	fetcher   Fetcher
	cache     Purger
	places    []string
	days      int
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler.
func New(places []string, days int, interval time.Duration, fetcher Fetcher) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		fetcher:   fetcher,
		places:    places,
		days:      days,
		interval:  interval,
		timeout:   time.Minute,
	}
}

// WithCache makes every warm-up pass purge expired entries from c first.
func (s *Scheduler) WithCache(c Purger) *Scheduler {
	s.cache = c
	return s
}

// Start schedules the warm-up job and starts the underlying scheduler. The first
// run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.places) == 0 {
		slog.Info("scheduler: no warm-up places configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	_, err := s.scheduler.Every(interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.Warm(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Warm runs one warm-up pass. Failures are logged, never returned.
func (s *Scheduler) Warm(ctx context.Context) {
	slog.InfoContext(ctx, "scheduler: running warm-up", "places", len(s.places), "days", s.days)

	if s.cache != nil {
		s.cache.Purge()
	}

	report, err := s.fetcher.FetchWeather(ctx, s.places, s.days)
	if err != nil {
		slog.WarnContext(ctx, "scheduler: warm-up failed", "error", err)
		return
	}

	missing := 0
	for _, p := range report.Points {
		if !p.Resolved {
			missing++
		}
	}
	slog.InfoContext(ctx, "scheduler: warm-up completed",
		"run_id", report.RunID, "cities", len(report.Cities), "unresolved", missing)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
