package weather

import (
	"encoding/json"
	"math"
	"time"
)

// NotFoundName is the display name given to places the geocoder could not resolve.
const NotFoundName = "Location not found"

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate lies within the WGS84 bounds.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Place is what a geocoding backend returns for a successful lookup.
type Place struct {
	Coordinate
	DisplayName string
}

// GeoResult is the outcome of resolving one place query. It is either resolved
// (coordinate + display name) or unresolved (reason). Build it with Resolved or
// Unresolved; the zero value is an unresolved result with no reason.
type GeoResult struct {
	query       string
	resolved    bool
	coord       Coordinate
	displayName string
	reason      string
	err         error
}

// Resolved builds a successful GeoResult.
func Resolved(query string, coord Coordinate, displayName string) GeoResult {
	return GeoResult{query: query, resolved: true, coord: coord, displayName: displayName}
}

// Unresolved builds a GeoResult for a query the geocoder found nothing for.
func Unresolved(query, reason string) GeoResult {
	return GeoResult{query: query, reason: reason}
}

// Failed builds an unresolved GeoResult for a lookup that could not complete.
func Failed(query, reason string, err error) GeoResult {
	return GeoResult{query: query, reason: reason, err: err}
}

func (g GeoResult) Query() string    { return g.query }
func (g GeoResult) IsResolved() bool { return g.resolved }

// Coordinate returns the resolved coordinate and true, or the zero coordinate and
// false for unresolved results.
func (g GeoResult) Coordinate() (Coordinate, bool) {
	return g.coord, g.resolved
}

// DisplayName returns the geocoder's name for the place, or NotFoundName.
func (g GeoResult) DisplayName() string {
	if !g.resolved {
		return NotFoundName
	}
	return g.displayName
}

// Reason is empty for resolved results.
func (g GeoResult) Reason() string { return g.reason }

// Err is nil for resolved results and ErrPlaceNotFound when nothing matched.
// A lookup that failed returns its own error.
func (g GeoResult) Err() error {
	switch {
	case g.resolved:
		return nil
	case g.err != nil:
		return g.err
	default:
		return ErrPlaceNotFound
	}
}

// Variable names an hourly forecast variable as the forecast API spells it.
type Variable string

const (
	Temperature              Variable = "temperature_2m"
	RelativeHumidity         Variable = "relative_humidity_2m"
	PrecipitationProbability Variable = "precipitation_probability"
	CloudCover               Variable = "cloud_cover"
	WindSpeed                Variable = "wind_speed_10m"
)

// HourlyVariables is the variable set requested for every forecast, in request order.
var HourlyVariables = []Variable{
	Temperature,
	RelativeHumidity,
	PrecipitationProbability,
	CloudCover,
	WindSpeed,
}

// Sample is one hourly observation of the forecast variables.
type Sample struct {
	Time                     time.Time `json:"time"`                     // UTC
	Temperature              float64   `json:"temperatureC"`             // °C
	RelativeHumidity         float64   `json:"relativeHumidity"`         // %
	PrecipitationProbability float64   `json:"precipitationProbability"` // %
	CloudCover               float64   `json:"cloudCover"`               // %
	WindSpeed                float64   `json:"windSpeedMs"`              // m/s
}

// Value returns the sample's value for v, or NaN for an unknown variable.
func (s Sample) Value(v Variable) float64 {
	switch v {
	case Temperature:
		return s.Temperature
	case RelativeHumidity:
		return s.RelativeHumidity
	case PrecipitationProbability:
		return s.PrecipitationProbability
	case CloudCover:
		return s.CloudCover
	case WindSpeed:
		return s.WindSpeed
	default:
		return math.NaN()
	}
}

// MarshalJSON encodes missing (NaN) values as null.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time                     time.Time `json:"time"`
		Temperature              *float64  `json:"temperatureC"`
		RelativeHumidity         *float64  `json:"relativeHumidity"`
		PrecipitationProbability *float64  `json:"precipitationProbability"`
		CloudCover               *float64  `json:"cloudCover"`
		WindSpeed                *float64  `json:"windSpeedMs"`
	}{
		Time:                     s.Time,
		Temperature:              nullable(s.Temperature),
		RelativeHumidity:         nullable(s.RelativeHumidity),
		PrecipitationProbability: nullable(s.PrecipitationProbability),
		CloudCover:               nullable(s.CloudCover),
		WindSpeed:                nullable(s.WindSpeed),
	})
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// HourlySeries is a contiguous, evenly spaced run of samples covering [Start, End).
type HourlySeries struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Interval time.Duration `json:"-"`
	Samples  []Sample      `json:"samples"`
}

// MarshalJSON reports the interval in whole seconds.
func (s HourlySeries) MarshalJSON() ([]byte, error) {
	type plain HourlySeries
	samples := s.Samples
	if samples == nil {
		samples = []Sample{}
	}
	p := plain(s)
	p.Samples = samples
	return json.Marshal(struct {
		plain
		IntervalSeconds int64 `json:"intervalSeconds"`
	}{plain: p, IntervalSeconds: int64(s.Interval / time.Second)})
}

func (s HourlySeries) Len() int    { return len(s.Samples) }
func (s HourlySeries) Empty() bool { return len(s.Samples) == 0 }

// Times returns the sample timestamps in order.
func (s HourlySeries) Times() []time.Time {
	out := make([]time.Time, len(s.Samples))
	for i, smp := range s.Samples {
		out[i] = smp.Time
	}
	return out
}

// Column returns the values of one variable across the series.
func (s HourlySeries) Column(v Variable) []float64 {
	out := make([]float64, len(s.Samples))
	for i, smp := range s.Samples {
		out[i] = smp.Value(v)
	}
	return out
}

// CityWeatherResult pairs a display name with its forecast. Found results carry
// a populated series; not-found results carry an empty series and the geocoder's
// reason.
type CityWeatherResult struct {
	DisplayName string        `json:"displayName"`
	Found       bool          `json:"found"`
	Reason      string        `json:"reason,omitempty"`
	Series      HourlySeries  `json:"series"`
	Summary     SeriesSummary `json:"summary"`
}

// FoundCity builds a result for a resolved place.
func FoundCity(displayName string, series HourlySeries) CityWeatherResult {
	return CityWeatherResult{
		DisplayName: displayName,
		Found:       true,
		Series:      series,
		Summary:     Summarize(series),
	}
}

// MissingCity builds the placeholder result for an unresolved place.
func MissingCity(reason string) CityWeatherResult {
	return CityWeatherResult{
		DisplayName: NotFoundName,
		Reason:      reason,
		Summary:     Summarize(HourlySeries{}),
	}
}

// MapPoint is one plotted route point. Unresolved points sit at (0, 0).
type MapPoint struct {
	Query       string     `json:"query"`
	DisplayName string     `json:"displayName"`
	Coordinate  Coordinate `json:"coordinate"`
	Resolved    bool       `json:"resolved"`
}

// Report is the output of one pipeline run.
type Report struct {
	RunID       string                       `json:"runId"`
	Days        int                          `json:"days"`
	GeneratedAt time.Time                    `json:"generatedAt"`
	Cities      map[string]CityWeatherResult `json:"cities"`

	// Names and Points are aligned with the input query order.
	Names  []string   `json:"names"`
	Points []MapPoint `json:"points"`
}

// Latitudes returns the point latitudes in input order.
func (r Report) Latitudes() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Coordinate.Latitude
	}
	return out
}

// Longitudes returns the point longitudes in input order.
func (r Report) Longitudes() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Coordinate.Longitude
	}
	return out
}
