package weather

import (
	"context"
	"fmt"
	"time"
)

// Geocoder abstracts a place-name resolution service (e.g. Nominatim, Google).
// Lookup returns ErrPlaceNotFound when the query matched nothing; any other
// error is a lookup failure.
type Geocoder interface {
	Name() string
	Lookup(ctx context.Context, query string) (Place, error)
}

// ForecastRequest describes one batched hourly forecast call.
type ForecastRequest struct {
	Coordinates []Coordinate
	Variables   []Variable // order-significant
	Days        int
	Timezone    string // "auto" infers the zone per coordinate

	// Skip marks placeholder positions. Their rows still occupy a slot in the
	// response but are not decoded; the matching HourlyForecast is left zero.
	Skip []bool
}

// Skipped reports whether position i is a placeholder.
func (r ForecastRequest) Skipped(i int) bool {
	return i < len(r.Skip) && r.Skip[i]
}

// VariableValues is one decoded hourly column.
type VariableValues struct {
	Variable Variable
	Values   []float64
}

// HourlyForecast is the provider's answer for one requested coordinate. The time
// axis covers [Start, End) in steps of Interval.
type HourlyForecast struct {
	Coordinate Coordinate
	Timezone   string
	UTCOffset  time.Duration
	Start      time.Time
	End        time.Time
	Interval   time.Duration
	Variables  []VariableValues
}

// Values returns the column decoded for v. Columns are looked up by name so a
// change in the requested variable order cannot shift values between variables.
func (h HourlyForecast) Values(v Variable) ([]float64, error) {
	for _, col := range h.Variables {
		if col.Variable == v {
			return col.Values, nil
		}
	}
	return nil, fmt.Errorf("variable %q not present in response", v)
}

// ForecastClient fetches hourly forecasts for many coordinates in one call.
// Results are returned in request order, one per coordinate.
type ForecastClient interface {
	Name() string
	HourlyForecast(ctx context.Context, req ForecastRequest) ([]HourlyForecast, error)
}

// Conditions is a current-conditions reading used by the route comparison.
type Conditions struct {
	Location         string    `json:"location"`
	ObservedAt       time.Time `json:"observedAt"`
	Text             string    `json:"text"`
	TemperatureC     float64   `json:"temperatureC"`
	RelativeHumidity float64   `json:"relativeHumidity"`
	WindSpeedKph     float64   `json:"windSpeedKph"`
	PrecipitationMM  float64   `json:"precipitationMm"`
	Provider         string    `json:"provider"`
}

// ConditionsProvider returns current conditions for a free-text place.
type ConditionsProvider interface {
	Name() string
	CurrentConditions(ctx context.Context, place string) (Conditions, error)
}
