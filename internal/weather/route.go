package weather

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/route-weather/internal/common"
	"github.com/i474232898/route-weather/internal/metrics"
)

// RouteReport compares current conditions at both ends of a route.
type RouteReport struct {
	Start      Conditions `json:"start"`
	End        Conditions `json:"end"`
	StartBad   bool       `json:"startBad"`
	EndBad     bool       `json:"endBad"`
	Unsuitable bool       `json:"unsuitable"`
}

// RouteService checks whether the weather at either end of a route is bad.
type RouteService struct {
	provider ConditionsProvider
}

// NewRouteService creates a new RouteService.
func NewRouteService(provider ConditionsProvider) *RouteService {
	return &RouteService{provider: provider}
}

// Provider returns the name of the conditions provider in use.
func (s *RouteService) Provider() string {
	return s.provider.Name()
}

// Compare fetches both endpoints concurrently. Unlike the forecast pipeline,
// a failure at either end fails the comparison.
func (s *RouteService) Compare(ctx context.Context, start, end string) (RouteReport, error) {
	start, end = common.NormalizePlace(start), common.NormalizePlace(end)
	if start == "" || end == "" {
		return RouteReport{}, ErrNoPlaces
	}

	var report RouteReport

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.provider.CurrentConditions(gctx, start)
		if err != nil {
			return fmt.Errorf("start %q: %w", start, err)
		}
		report.Start = c
		return nil
	})
	g.Go(func() error {
		c, err := s.provider.CurrentConditions(gctx, end)
		if err != nil {
			return fmt.Errorf("end %q: %w", end, err)
		}
		report.End = c
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.WarnContext(ctx, "route comparison failed", "provider", s.provider.Name(), "error", err)
		return RouteReport{}, err
	}

	report.StartBad = IsBadWeather(report.Start.Sample())
	report.EndBad = IsBadWeather(report.End.Sample())
	report.Unsuitable = report.StartBad || report.EndBad

	verdict := "suitable"
	if report.Unsuitable {
		verdict = "unsuitable"
	}
	metrics.RouteVerdictsTotal.WithLabelValues(verdict).Inc()

	return report, nil
}
