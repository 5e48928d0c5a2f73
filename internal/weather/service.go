package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/route-weather/internal/metrics"
)

const (
	MinDays = 1
	MaxDays = 7

	// TimezoneAuto asks the forecast provider to infer the zone per coordinate.
	TimezoneAuto = "auto"
)

// Service turns a list of free-text places into a per-city hourly forecast.
type Service struct {
	geocoder    Geocoder
	forecast    ForecastClient
	concurrency int
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithGeocodeConcurrency bounds how many geocoding lookups run at once.
// Values below 1 mean sequential lookups.
func WithGeocodeConcurrency(n int) Option {
	return func(s *Service) {
		if n < 1 {
			n = 1
		}
		s.concurrency = n
	}
}

// WithClock overrides the clock used to stamp reports.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new Service.
func NewService(geocoder Geocoder, forecast ForecastClient, opts ...Option) *Service {
	s := &Service{
		geocoder:    geocoder,
		forecast:    forecast,
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchWeather geocodes every query, fetches one batched hourly forecast for all
// of them and assembles the per-city report.
//
// Queries that cannot be geocoded are kept in place as "Location not found"
// entries at (0, 0) with an empty series. Cities are keyed by display name and a
// later query overwrites an earlier one that resolved to the same name. A failed
// forecast call fails the whole run; no partial report is returned.
func (s *Service) FetchWeather(ctx context.Context, queries []string, days int) (Report, error) {
	if len(queries) == 0 {
		return Report{}, ErrNoPlaces
	}
	if days < MinDays || days > MaxDays {
		return Report{}, fmt.Errorf("%w: got %d", ErrInvalidDays, days)
	}

	started := time.Now()
	defer func() { metrics.PipelineDuration.Observe(time.Since(started).Seconds()) }()

	runID := uuid.NewString()
	slog.DebugContext(ctx, "fetching weather", "run_id", runID, "places", len(queries), "days", days)

	geo := s.geocodeAll(ctx, queries)
	// Lookups all fail once ctx is done; that is not "not found".
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	report := Report{
		RunID:       runID,
		Days:        days,
		GeneratedAt: s.now().UTC(),
		Cities:      make(map[string]CityWeatherResult, len(geo)),
		Names:       make([]string, len(geo)),
		Points:      make([]MapPoint, len(geo)),
	}

	coords := make([]Coordinate, len(geo))
	skip := make([]bool, len(geo))
	resolved := 0
	for i, g := range geo {
		coord, ok := g.Coordinate()
		if ok {
			resolved++
		}
		coords[i] = coord
		skip[i] = !ok
		report.Names[i] = g.DisplayName()
		report.Points[i] = MapPoint{
			Query:       queries[i],
			DisplayName: g.DisplayName(),
			Coordinate:  coord,
			Resolved:    ok,
		}
	}

	var forecasts []HourlyForecast
	if resolved > 0 {
		var err error
		forecasts, err = s.fetchForecasts(ctx, coords, skip, days)
		if err != nil {
			return Report{}, err
		}
	} else {
		slog.InfoContext(ctx, "no place resolved; skipping forecast call", "run_id", runID)
	}

	for i, g := range geo {
		if !g.IsResolved() {
			report.Cities[NotFoundName] = MissingCity(g.Reason())
			continue
		}

		series, err := buildSeries(i, forecasts[i])
		if err != nil {
			return Report{}, err
		}
		report.Cities[g.DisplayName()] = FoundCity(g.DisplayName(), series)
	}

	slog.InfoContext(ctx, "weather fetched",
		"run_id", runID, "places", len(queries), "resolved", resolved, "cities", len(report.Cities))
	return report, nil
}

// geocodeAll resolves the queries with bounded concurrency. Results are stored
// by index so they follow input order regardless of completion order.
func (s *Service) geocodeAll(ctx context.Context, queries []string) []GeoResult {
	results := make([]GeoResult, len(queries))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			results[i] = Resolve(ctx, s.geocoder, q)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// fetchForecasts requests every position, placeholders included, so response
// rows stay aligned with the input. Rows flagged in skip are never read.
func (s *Service) fetchForecasts(ctx context.Context, coords []Coordinate, skip []bool, days int) ([]HourlyForecast, error) {
	req := ForecastRequest{
		Coordinates: coords,
		Variables:   HourlyVariables,
		Days:        days,
		Timezone:    TimezoneAuto,
		Skip:        skip,
	}

	forecasts, err := s.forecast.HourlyForecast(ctx, req)
	if err != nil {
		var fe *ForecastError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &ForecastError{Provider: s.forecast.Name(), Reason: "request failed", Err: err}
	}

	if len(forecasts) != len(coords) {
		return nil, &ForecastError{
			Provider: s.forecast.Name(),
			Reason:   fmt.Sprintf("expected %d locations in response, got %d", len(coords), len(forecasts)),
		}
	}

	return forecasts, nil
}

// buildSeries lays the forecast columns onto the half-open time axis
// [Start, End) stepped by Interval. Every requested variable must be present
// and have exactly one value per timestamp.
func buildSeries(pos int, h HourlyForecast) (HourlySeries, error) {
	if h.Interval <= 0 {
		return HourlySeries{}, &SeriesError{Position: pos, Reason: fmt.Sprintf("invalid interval %s", h.Interval)}
	}
	if !h.End.After(h.Start) {
		return HourlySeries{}, &SeriesError{Position: pos, Reason: "empty time range"}
	}

	var times []time.Time
	for t := h.Start.UTC(); t.Before(h.End); t = t.Add(h.Interval) {
		times = append(times, t)
	}

	columns := make(map[Variable][]float64, len(HourlyVariables))
	for _, v := range HourlyVariables {
		values, err := h.Values(v)
		if err != nil {
			return HourlySeries{}, &SeriesError{Position: pos, Variable: v, Reason: err.Error()}
		}
		if len(values) != len(times) {
			return HourlySeries{}, &SeriesError{
				Position: pos,
				Variable: v,
				Reason:   fmt.Sprintf("%d values for %d timestamps", len(values), len(times)),
			}
		}
		columns[v] = values
	}

	samples := make([]Sample, len(times))
	for i, t := range times {
		samples[i] = Sample{
			Time:                     t,
			Temperature:              columns[Temperature][i],
			RelativeHumidity:         columns[RelativeHumidity][i],
			PrecipitationProbability: columns[PrecipitationProbability][i],
			CloudCover:               columns[CloudCover][i],
			WindSpeed:                columns[WindSpeed][i],
		}
	}

	return HourlySeries{
		Start:    h.Start.UTC(),
		End:      h.End.UTC(),
		Interval: h.Interval,
		Samples:  samples,
	}, nil
}
