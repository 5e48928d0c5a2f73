package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/route-weather/internal/store"
	"github.com/i474232898/route-weather/internal/weather"
)

var _ Purger = (*store.MemoryStore)(nil)

type recordingFetcher struct {
	mu    sync.Mutex
	calls int
	days  []int
	err   error
	ran   chan struct{}
}

func (f *recordingFetcher) FetchWeather(_ context.Context, queries []string, days int) (weather.Report, error) {
	f.mu.Lock()
	f.calls++
	f.days = append(f.days, days)
	f.mu.Unlock()

	if f.ran != nil {
		select {
		case f.ran <- struct{}{}:
		default:
		}
	}
	if f.err != nil {
		return weather.Report{}, f.err
	}
	return weather.Report{
		RunID:  "run",
		Points: []weather.MapPoint{{Query: queries[0], Resolved: true}},
	}, nil
}

func TestWarmCallsPipeline(t *testing.T) {
	f := &recordingFetcher{}
	s := New([]string{"Tokyo", "Paris"}, 3, time.Hour, f)

	s.Warm(context.Background())

	if f.calls != 1 || f.days[0] != 3 {
		t.Fatalf("expected one call with 3 days, got %d calls %v", f.calls, f.days)
	}
}

type countingPurger struct{ purges int }

func (p *countingPurger) Purge() { p.purges++ }

func TestWarmPurgesCache(t *testing.T) {
	f := &recordingFetcher{}
	cache := &countingPurger{}
	s := New([]string{"Tokyo"}, 1, time.Hour, f).WithCache(cache)

	s.Warm(context.Background())
	s.Warm(context.Background())

	if cache.purges != 2 || f.calls != 2 {
		t.Fatalf("expected a purge per warm-up, got %d purges for %d calls", cache.purges, f.calls)
	}
}

func TestWarmSwallowsErrors(t *testing.T) {
	f := &recordingFetcher{err: errors.New("upstream down")}
	s := New([]string{"Tokyo"}, 1, time.Hour, f)

	s.Warm(context.Background())

	if f.calls != 1 {
		t.Fatalf("expected one call, got %d", f.calls)
	}
}

func TestStartWithoutPlaces(t *testing.T) {
	f := &recordingFetcher{}
	s := New(nil, 3, time.Hour, f)

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()

	if f.calls != 0 {
		t.Fatalf("expected no runs, got %d", f.calls)
	}
}

func TestStartRunsImmediately(t *testing.T) {
	f := &recordingFetcher{ran: make(chan struct{}, 1)}
	s := New([]string{"Tokyo"}, 2, time.Hour, f)

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	select {
	case <-f.ran:
	case <-time.After(5 * time.Second):
		t.Fatalf("warm-up job did not run")
	}
}
