package weather

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

var testStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type fakeGeocoder struct {
	mu      sync.Mutex
	places  map[string]Place
	failing map[string]error
	calls   []string
}

func (f *fakeGeocoder) Name() string { return "fake" }

func (f *fakeGeocoder) Lookup(_ context.Context, q string) (Place, error) {
	f.mu.Lock()
	f.calls = append(f.calls, q)
	f.mu.Unlock()

	if err, ok := f.failing[q]; ok {
		return Place{}, err
	}
	p, ok := f.places[q]
	if !ok {
		return Place{}, ErrPlaceNotFound
	}
	return p, nil
}

// fakeForecast answers every coordinate with days*24 hourly values. The value of
// variable j at hour i for coordinate c is lat*1000 + j*100 + i.
type fakeForecast struct {
	requests []ForecastRequest
	err      error
	drop     Variable
}

func (f *fakeForecast) Name() string { return "fake-forecast" }

func (f *fakeForecast) HourlyForecast(_ context.Context, req ForecastRequest) ([]HourlyForecast, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}

	hours := req.Days * 24
	out := make([]HourlyForecast, len(req.Coordinates))
	for ci, c := range req.Coordinates {
		hf := HourlyForecast{
			Coordinate: c,
			Start:      testStart,
			End:        testStart.Add(time.Duration(hours) * time.Hour),
			Interval:   time.Hour,
		}
		// Reverse request order so lookups by position would be caught.
		for j := len(req.Variables) - 1; j >= 0; j-- {
			v := req.Variables[j]
			if v == f.drop {
				continue
			}
			vals := make([]float64, hours)
			for i := range vals {
				vals[i] = c.Latitude*1000 + float64(j*100+i)
			}
			hf.Variables = append(hf.Variables, VariableValues{Variable: v, Values: vals})
		}
		out[ci] = hf
	}
	return out, nil
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func testGeocoder() *fakeGeocoder {
	return &fakeGeocoder{places: map[string]Place{
		"Moscow, Us": {
			Coordinate:  Coordinate{Latitude: 46.73, Longitude: -117.0},
			DisplayName: "Moscow, Latah County, Idaho, United States",
		},
		"Moscow, Russia": {
			Coordinate:  Coordinate{Latitude: 55.75, Longitude: 37.62},
			DisplayName: "Moscow, Central Federal District, Russia",
		},
		"Tokyo": {
			Coordinate:  Coordinate{Latitude: 35.68, Longitude: 139.76},
			DisplayName: "Tokyo, Japan",
		},
	}}
}

func TestFetchWeatherThreeCities(t *testing.T) {
	geo := testGeocoder()
	fc := &fakeForecast{}
	svc := NewService(geo, fc)

	report, err := svc.FetchWeather(context.Background(), []string{"Moscow, US", "Moscow, Russia", "Tokyo"}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Cities) != 3 {
		t.Fatalf("expected 3 cities, got %d", len(report.Cities))
	}
	for name, city := range report.Cities {
		if !city.Found {
			t.Fatalf("%s: expected found", name)
		}
		if city.Series.Len() != 72 {
			t.Fatalf("%s: expected 72 samples, got %d", name, city.Series.Len())
		}
	}

	wantNames := []string{
		"Moscow, Latah County, Idaho, United States",
		"Moscow, Central Federal District, Russia",
		"Tokyo, Japan",
	}
	if len(report.Names) != 3 || len(report.Points) != 3 {
		t.Fatalf("expected 3 aligned names and points, got %d/%d", len(report.Names), len(report.Points))
	}
	for i, want := range wantNames {
		if report.Names[i] != want || report.Points[i].DisplayName != want {
			t.Fatalf("position %d: expected %q, got %q", i, want, report.Names[i])
		}
	}
	if lat := report.Latitudes(); lat[0] != 46.73 || lat[1] != 55.75 || lat[2] != 35.68 {
		t.Fatalf("unexpected latitudes %v", lat)
	}
	if report.Points[0].Query != "Moscow, US" {
		t.Fatalf("expected original query to be kept, got %q", report.Points[0].Query)
	}
	if report.RunID == "" {
		t.Fatalf("expected a run id")
	}

	if len(fc.requests) != 1 {
		t.Fatalf("expected one batched forecast call, got %d", len(fc.requests))
	}
	req := fc.requests[0]
	if len(req.Coordinates) != 3 || req.Days != 3 || req.Timezone != TimezoneAuto {
		t.Fatalf("unexpected forecast request %+v", req)
	}
	for i, v := range HourlyVariables {
		if req.Variables[i] != v {
			t.Fatalf("variable %d: expected %s, got %s", i, v, req.Variables[i])
		}
	}
}

func TestFetchWeatherMapsColumnsByName(t *testing.T) {
	svc := NewService(testGeocoder(), &fakeForecast{})

	report, err := svc.FetchWeather(context.Background(), []string{"Tokyo"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := report.Cities["Tokyo, Japan"].Series.Samples[5]
	base := 35.68 * 1000
	checks := map[Variable]float64{
		Temperature:              base + 5,
		RelativeHumidity:         base + 105,
		PrecipitationProbability: base + 205,
		CloudCover:               base + 305,
		WindSpeed:                base + 405,
	}
	for v, want := range checks {
		if got := s.Value(v); !near(got, want) {
			t.Fatalf("%s: expected %v, got %v", v, want, got)
		}
	}
}

func TestFetchWeatherTimeAxis(t *testing.T) {
	svc := NewService(testGeocoder(), &fakeForecast{})

	report, err := svc.FetchWeather(context.Background(), []string{"Tokyo"}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	series := report.Cities["Tokyo, Japan"].Series
	times := series.Times()
	if !times[0].Equal(series.Start) {
		t.Fatalf("first sample must be at start, got %s", times[0])
	}
	for i := 1; i < len(times); i++ {
		if times[i].Sub(times[i-1]) != time.Hour {
			t.Fatalf("samples %d and %d are %s apart", i-1, i, times[i].Sub(times[i-1]))
		}
	}
	if last := times[len(times)-1]; !last.Before(series.End) || series.End.Sub(last) != time.Hour {
		t.Fatalf("end must be exclusive and one interval after the last sample, got last %s end %s", last, series.End)
	}
}

func TestFetchWeatherNonexistentPlace(t *testing.T) {
	fc := &fakeForecast{}
	svc := NewService(testGeocoder(), fc)

	report, err := svc.FetchWeather(context.Background(), []string{"Nonexistent Place XYZ"}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Cities) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(report.Cities))
	}
	city, ok := report.Cities[NotFoundName]
	if !ok {
		t.Fatalf("expected %q entry, got %v", NotFoundName, report.Cities)
	}
	if city.Found || !city.Series.Empty() {
		t.Fatalf("expected empty not-found series, got %+v", city)
	}
	if city.Reason != "Location not found for Nonexistent Place Xyz" {
		t.Fatalf("unexpected reason %q", city.Reason)
	}
	if p := report.Points[0]; p.Coordinate != (Coordinate{}) || p.Resolved {
		t.Fatalf("unresolved point must sit at (0, 0), got %+v", p)
	}
	if len(fc.requests) != 0 {
		t.Fatalf("forecast must not be called when nothing resolved, got %d calls", len(fc.requests))
	}
}

func TestFetchWeatherMixedResolution(t *testing.T) {
	geo := testGeocoder()
	geo.failing = map[string]error{"Paris": errors.New("connection reset")}
	fc := &fakeForecast{}
	svc := NewService(geo, fc)

	report, err := svc.FetchWeather(context.Background(), []string{"Atlantis", "Tokyo", "Paris"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Cities) != 2 {
		t.Fatalf("expected Tokyo plus one not-found entry, got %d", len(report.Cities))
	}
	missing := report.Cities[NotFoundName]
	if !missing.Series.Empty() {
		t.Fatalf("not-found entry must not borrow another city's data")
	}
	// Later unresolved entries overwrite earlier ones.
	if missing.Reason != "Error while acquiring Paris coordinates: connection reset" {
		t.Fatalf("unexpected reason %q", missing.Reason)
	}

	tokyo := report.Cities["Tokyo, Japan"]
	if got := tokyo.Series.Samples[0].Temperature; !near(got, 35.68*1000) {
		t.Fatalf("Tokyo got another position's data: %v", got)
	}

	req := fc.requests[0]
	if len(req.Coordinates) != 3 {
		t.Fatalf("expected positions to be kept aligned, got %d coordinates", len(req.Coordinates))
	}
	if req.Coordinates[0] != (Coordinate{}) || req.Coordinates[2] != (Coordinate{}) {
		t.Fatalf("unresolved positions must be sent as (0, 0), got %v", req.Coordinates)
	}
	if len(req.Skip) != 3 || !req.Skip[0] || req.Skip[1] || !req.Skip[2] {
		t.Fatalf("expected placeholder positions to be flagged, got %v", req.Skip)
	}
	if report.Names[0] != NotFoundName || report.Names[1] != "Tokyo, Japan" || report.Names[2] != NotFoundName {
		t.Fatalf("unexpected names %v", report.Names)
	}
}

// placeholderForecast returns a garbage row wherever the request flags a
// placeholder, and a valid one elsewhere.
type placeholderForecast struct{ fakeForecast }

func (f *placeholderForecast) HourlyForecast(ctx context.Context, req ForecastRequest) ([]HourlyForecast, error) {
	out, err := f.fakeForecast.HourlyForecast(ctx, req)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if req.Skipped(i) {
			out[i] = HourlyForecast{}
		}
	}
	return out, nil
}

func TestFetchWeatherIgnoresPlaceholderRows(t *testing.T) {
	svc := NewService(testGeocoder(), &placeholderForecast{})

	report, err := svc.FetchWeather(context.Background(), []string{"Atlantis", "Tokyo"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Cities["Tokyo, Japan"].Found {
		t.Fatalf("expected Tokyo in report, got %+v", report.Cities)
	}
	if missing, ok := report.Cities[NotFoundName]; !ok || missing.Found {
		t.Fatalf("expected not-found entry, got %+v", missing)
	}
}

func TestFetchWeatherCancelledDuringGeocoding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	geo := &fakeGeocoder{failing: map[string]error{
		"Tokyo": context.Canceled,
		"Paris": context.Canceled,
	}}
	fc := &fakeForecast{}
	svc := NewService(geo, fc)

	report, err := svc.FetchWeather(ctx, []string{"Tokyo", "Paris"}, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v (report %+v)", err, report)
	}
	if len(fc.requests) != 0 {
		t.Fatalf("expected no forecast call, got %d", len(fc.requests))
	}
}

func TestFetchWeatherDuplicateDisplayNames(t *testing.T) {
	geo := &fakeGeocoder{places: map[string]Place{
		"Springfield":     {Coordinate: Coordinate{Latitude: 39.8, Longitude: -89.6}, DisplayName: "Springfield"},
		"Springfield, Mo": {Coordinate: Coordinate{Latitude: 37.2, Longitude: -93.3}, DisplayName: "Springfield"},
	}}
	svc := NewService(geo, &fakeForecast{})

	report, err := svc.FetchWeather(context.Background(), []string{"Springfield", "Springfield, MO"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Cities) != 1 {
		t.Fatalf("expected colliding names to collapse, got %d", len(report.Cities))
	}
	if got := report.Cities["Springfield"].Series.Samples[0].Temperature; !near(got, 37.2*1000) {
		t.Fatalf("expected last write to win, got %v", got)
	}
	if len(report.Points) != 2 {
		t.Fatalf("points must keep every position, got %d", len(report.Points))
	}
}

func TestFetchWeatherForecastFailure(t *testing.T) {
	fc := &fakeForecast{err: errors.New("upstream unavailable")}
	svc := NewService(testGeocoder(), fc)

	_, err := svc.FetchWeather(context.Background(), []string{"Tokyo"}, 1)
	var fe *ForecastError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForecastError, got %v", err)
	}
	if fe.Provider != "fake-forecast" {
		t.Fatalf("unexpected provider %q", fe.Provider)
	}
}

func TestFetchWeatherMissingVariable(t *testing.T) {
	svc := NewService(testGeocoder(), &fakeForecast{drop: CloudCover})

	_, err := svc.FetchWeather(context.Background(), []string{"Tokyo"}, 1)
	var se *SeriesError
	if !errors.As(err, &se) {
		t.Fatalf("expected SeriesError, got %v", err)
	}
	if se.Variable != CloudCover || se.Position != 0 {
		t.Fatalf("unexpected error %+v", se)
	}
}

func TestFetchWeatherValidation(t *testing.T) {
	svc := NewService(testGeocoder(), &fakeForecast{})

	if _, err := svc.FetchWeather(context.Background(), nil, 3); !errors.Is(err, ErrNoPlaces) {
		t.Fatalf("expected ErrNoPlaces, got %v", err)
	}
	for _, days := range []int{0, -1, 8} {
		if _, err := svc.FetchWeather(context.Background(), []string{"Tokyo"}, days); !errors.Is(err, ErrInvalidDays) {
			t.Fatalf("days=%d: expected ErrInvalidDays, got %v", days, err)
		}
	}
	for _, days := range []int{MinDays, MaxDays} {
		report, err := svc.FetchWeather(context.Background(), []string{"Tokyo"}, days)
		if err != nil {
			t.Fatalf("days=%d: unexpected error: %v", days, err)
		}
		if n := report.Cities["Tokyo, Japan"].Series.Len(); n != days*24 {
			t.Fatalf("days=%d: expected %d samples, got %d", days, days*24, n)
		}
	}
}

func TestFetchWeatherConcurrentGeocodingKeepsOrder(t *testing.T) {
	geo := testGeocoder()
	svc := NewService(geo, &fakeForecast{}, WithGeocodeConcurrency(3))

	queries := []string{"Tokyo", "Moscow, Russia", "Moscow, US", "Tokyo"}
	report, err := svc.FetchWeather(context.Background(), queries, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Tokyo, Japan", "Moscow, Central Federal District, Russia", "Moscow, Latah County, Idaho, United States", "Tokyo, Japan"}
	for i := range want {
		if report.Names[i] != want[i] {
			t.Fatalf("position %d: expected %q, got %q", i, want[i], report.Names[i])
		}
	}
	if len(geo.calls) != len(queries) {
		t.Fatalf("expected %d lookups, got %d", len(queries), len(geo.calls))
	}
}

func TestFetchWeatherClock(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewService(testGeocoder(), &fakeForecast{}, WithClock(func() time.Time { return fixed }))

	report, err := svc.FetchWeather(context.Background(), []string{"Tokyo"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.GeneratedAt.Equal(fixed) {
		t.Fatalf("expected %s, got %s", fixed, report.GeneratedAt)
	}
}

func TestBuildSeriesLengthMismatch(t *testing.T) {
	h := HourlyForecast{
		Start:    testStart,
		End:      testStart.Add(3 * time.Hour),
		Interval: time.Hour,
	}
	for _, v := range HourlyVariables {
		h.Variables = append(h.Variables, VariableValues{Variable: v, Values: []float64{1, 2, 3}})
	}
	h.Variables[1].Values = []float64{1, 2}

	_, err := buildSeries(4, h)
	var se *SeriesError
	if !errors.As(err, &se) {
		t.Fatalf("expected SeriesError, got %v", err)
	}
	if se.Position != 4 || se.Variable != RelativeHumidity {
		t.Fatalf("unexpected error %+v", se)
	}
}

func TestBuildSeriesRejectsBadAxis(t *testing.T) {
	if _, err := buildSeries(0, HourlyForecast{Start: testStart, End: testStart.Add(time.Hour)}); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := buildSeries(0, HourlyForecast{Start: testStart, End: testStart, Interval: time.Hour}); err == nil {
		t.Fatalf("expected error for empty range")
	}
}
