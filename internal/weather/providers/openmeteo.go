package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/route-weather/internal/metrics"
	"github.com/i474232898/route-weather/internal/weather"
	"github.com/sony/gobreaker"
)

const (
	openMeteoForecastURL = "https://api.open-meteo.com/v1/forecast"
	defaultInterval      = time.Hour
)

// ResponseCache stores raw provider bodies keyed by request URL.
type ResponseCache interface {
	Get(key string) ([]byte, error)
	Save(key string, body []byte)
}

// OpenMeteoProvider implements weather.ForecastClient for Open-Meteo. It also
// serves current conditions for the route comparison.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	cache   ResponseCache
}

// OpenMeteoOption configures an OpenMeteoProvider.
type OpenMeteoOption func(*OpenMeteoProvider)

// WithOpenMeteoURL overrides the forecast endpoint.
func WithOpenMeteoURL(u string) OpenMeteoOption {
	return func(p *OpenMeteoProvider) { p.baseURL = u }
}

// WithOpenMeteoBackoff overrides the retry policy.
func WithOpenMeteoBackoff(b BackoffConfig) OpenMeteoOption {
	return func(p *OpenMeteoProvider) { p.httpCfg.Backoff = b }
}

// WithResponseCache serves repeated identical requests from c.
func WithResponseCache(c ResponseCache) OpenMeteoOption {
	return func(p *OpenMeteoProvider) { p.cache = c }
}

func NewOpenMeteoProvider(client *http.Client, opts ...OpenMeteoOption) *OpenMeteoProvider {
	p := &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: openMeteoForecastURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("openmeteo"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// HourlyForecast issues one request for every coordinate in req and decodes the
// hourly columns by variable name.
func (p *OpenMeteoProvider) HourlyForecast(ctx context.Context, req weather.ForecastRequest) ([]weather.HourlyForecast, error) {
	if len(req.Coordinates) == 0 {
		return nil, &weather.ForecastError{Provider: p.name, Reason: "no coordinates requested"}
	}
	if len(req.Variables) == 0 {
		return nil, &weather.ForecastError{Provider: p.name, Reason: "no variables requested"}
	}

	lats := make([]string, len(req.Coordinates))
	lons := make([]string, len(req.Coordinates))
	for i, c := range req.Coordinates {
		lats[i] = formatCoord(c.Latitude)
		lons[i] = formatCoord(c.Longitude)
	}
	vars := make([]string, len(req.Variables))
	for i, v := range req.Variables {
		vars[i] = string(v)
	}

	tz := req.Timezone
	if tz == "" {
		tz = weather.TimezoneAuto
	}

	values := url.Values{}
	values.Set("latitude", strings.Join(lats, ","))
	values.Set("longitude", strings.Join(lons, ","))
	values.Set("hourly", strings.Join(vars, ","))
	values.Set("forecast_days", strconv.Itoa(req.Days))
	values.Set("timezone", tz)
	values.Set("timeformat", "unixtime")
	values.Set("wind_speed_unit", "ms")

	body, cached, err := p.get(ctx, values)
	if err != nil {
		metrics.ForecastRequestsTotal.WithLabelValues(p.name, "error").Inc()
		return nil, err
	}

	payloads, err := decodeHourlyBody(body)
	if err != nil {
		metrics.ForecastRequestsTotal.WithLabelValues(p.name, "error").Inc()
		return nil, &weather.ForecastError{Provider: p.name, Reason: "decode response", Err: err}
	}
	if len(payloads) != len(req.Coordinates) {
		metrics.ForecastRequestsTotal.WithLabelValues(p.name, "error").Inc()
		return nil, &weather.ForecastError{
			Provider: p.name,
			Reason:   fmt.Sprintf("requested %d locations, response has %d", len(req.Coordinates), len(payloads)),
		}
	}

	out := make([]weather.HourlyForecast, len(payloads))
	for i, pl := range payloads {
		if req.Skipped(i) {
			continue
		}
		hf, err := pl.toHourlyForecast(req.Variables)
		if err != nil {
			metrics.ForecastRequestsTotal.WithLabelValues(p.name, "error").Inc()
			return nil, &weather.ForecastError{Provider: p.name, Reason: fmt.Sprintf("location %d", i), Err: err}
		}
		out[i] = hf
	}

	if cached {
		metrics.ForecastRequestsTotal.WithLabelValues(p.name, "cached").Inc()
		return out, nil
	}
	if p.cache != nil {
		p.cache.Save(p.requestURL(values), body)
	}
	metrics.ForecastRequestsTotal.WithLabelValues(p.name, "ok").Inc()
	return out, nil
}

// CurrentConditions returns the latest reading at coord with wind in km/h.
func (p *OpenMeteoProvider) CurrentConditions(ctx context.Context, coord weather.Coordinate) (weather.Conditions, error) {
	values := url.Values{}
	values.Set("latitude", formatCoord(coord.Latitude))
	values.Set("longitude", formatCoord(coord.Longitude))
	values.Set("current", "temperature_2m,relative_humidity_2m,precipitation,wind_speed_10m,weather_code")
	values.Set("timezone", weather.TimezoneAuto)
	values.Set("timeformat", "unixtime")
	values.Set("wind_speed_unit", "kmh")

	body, cached, err := p.get(ctx, values)
	if err != nil {
		return weather.Conditions{}, err
	}

	var payload struct {
		Current struct {
			Time             int64    `json:"time"`
			Temperature      *float64 `json:"temperature_2m"`
			RelativeHumidity *float64 `json:"relative_humidity_2m"`
			Precipitation    *float64 `json:"precipitation"`
			WindSpeed        *float64 `json:"wind_speed_10m"`
			WeatherCode      int      `json:"weather_code"`
		} `json:"current"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Conditions{}, &weather.ForecastError{Provider: p.name, Reason: "decode current conditions", Err: err}
	}
	if payload.Current.Temperature == nil || payload.Current.WindSpeed == nil {
		return weather.Conditions{}, &weather.ForecastError{Provider: p.name, Reason: "current conditions incomplete"}
	}

	if p.cache != nil && !cached {
		p.cache.Save(p.requestURL(values), body)
	}

	return weather.Conditions{
		ObservedAt:       time.Unix(payload.Current.Time, 0).UTC(),
		Text:             describeOpenMeteoCode(payload.Current.WeatherCode),
		TemperatureC:     *payload.Current.Temperature,
		RelativeHumidity: valueOr(payload.Current.RelativeHumidity, 0),
		WindSpeedKph:     *payload.Current.WindSpeed,
		PrecipitationMM:  valueOr(payload.Current.Precipitation, 0),
		Provider:         p.name,
	}, nil
}

func (p *OpenMeteoProvider) requestURL(values url.Values) string {
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

// get returns the body for values, from the cache when a fresh copy exists.
// Callers save fetched bodies back once they have decoded cleanly.
func (p *OpenMeteoProvider) get(ctx context.Context, values url.Values) ([]byte, bool, error) {
	u := p.requestURL(values)

	if p.cache != nil {
		if body, err := p.cache.Get(u); err == nil {
			metrics.ForecastCacheTotal.WithLabelValues("hit").Inc()
			return body, true, nil
		}
		metrics.ForecastCacheTotal.WithLabelValues("miss").Inc()
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, false, p.toForecastError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &weather.ForecastError{Provider: p.name, StatusCode: resp.StatusCode, Reason: "read body", Err: err}
	}
	return body, false, nil
}

// toForecastError surfaces Open-Meteo's {"error":true,"reason":"..."} payloads.
func (p *OpenMeteoProvider) toForecastError(err error) error {
	var se *statusError
	if errors.As(err, &se) {
		var apiErr struct {
			Error  bool   `json:"error"`
			Reason string `json:"reason"`
		}
		if json.Unmarshal(se.Body, &apiErr) == nil && apiErr.Error && apiErr.Reason != "" {
			return &weather.ForecastError{Provider: p.name, StatusCode: se.StatusCode, Reason: apiErr.Reason}
		}
		return &weather.ForecastError{Provider: p.name, StatusCode: se.StatusCode, Reason: "unexpected status", Err: err}
	}
	return &weather.ForecastError{Provider: p.name, Reason: "request failed", Err: err}
}

type openMeteoHourlyPayload struct {
	Latitude         float64                    `json:"latitude"`
	Longitude        float64                    `json:"longitude"`
	Timezone         string                     `json:"timezone"`
	UTCOffsetSeconds int                        `json:"utc_offset_seconds"`
	Hourly           map[string]json.RawMessage `json:"hourly"`
}

// decodeHourlyBody accepts both response shapes: an array (several locations)
// or a single object (one location).
func decodeHourlyBody(body []byte) ([]openMeteoHourlyPayload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}

	if trimmed[0] == '[' {
		var many []openMeteoHourlyPayload
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return nil, err
		}
		return many, nil
	}

	var one openMeteoHourlyPayload
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []openMeteoHourlyPayload{one}, nil
}

func (pl openMeteoHourlyPayload) toHourlyForecast(vars []weather.Variable) (weather.HourlyForecast, error) {
	rawTime, ok := pl.Hourly["time"]
	if !ok {
		return weather.HourlyForecast{}, errors.New("hourly time axis missing")
	}
	var times []int64
	if err := json.Unmarshal(rawTime, &times); err != nil {
		return weather.HourlyForecast{}, fmt.Errorf("hourly time axis: %w", err)
	}
	if len(times) == 0 {
		return weather.HourlyForecast{}, errors.New("hourly time axis empty")
	}

	interval := defaultInterval
	if len(times) > 1 {
		interval = time.Duration(times[1]-times[0]) * time.Second
	}
	if interval <= 0 {
		return weather.HourlyForecast{}, fmt.Errorf("non-increasing time axis at index 1")
	}
	step := int64(interval / time.Second)
	for i := 1; i < len(times); i++ {
		if times[i]-times[i-1] != step {
			return weather.HourlyForecast{}, fmt.Errorf("uneven time axis at index %d", i)
		}
	}

	hf := weather.HourlyForecast{
		Coordinate: weather.Coordinate{Latitude: pl.Latitude, Longitude: pl.Longitude},
		Timezone:   pl.Timezone,
		UTCOffset:  time.Duration(pl.UTCOffsetSeconds) * time.Second,
		Start:      time.Unix(times[0], 0).UTC(),
		End:        time.Unix(times[len(times)-1], 0).UTC().Add(interval),
		Interval:   interval,
		Variables:  make([]weather.VariableValues, 0, len(vars)),
	}

	for _, v := range vars {
		raw, ok := pl.Hourly[string(v)]
		if !ok {
			return weather.HourlyForecast{}, fmt.Errorf("hourly variable %q missing", v)
		}
		var column []*float64
		if err := json.Unmarshal(raw, &column); err != nil {
			return weather.HourlyForecast{}, fmt.Errorf("hourly variable %q: %w", v, err)
		}
		vals := make([]float64, len(column))
		for i, x := range column {
			vals[i] = valueOr(x, math.NaN())
		}
		hf.Variables = append(hf.Variables, weather.VariableValues{Variable: v, Values: vals})
	}

	return hf, nil
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// describeOpenMeteoCode maps WMO weather codes to a short description (simplified).
func describeOpenMeteoCode(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code >= 1 && code <= 3:
		return "Cloudy"
	case code == 45 || code == 48:
		return "Fog"
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return "Rain"
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return "Snow"
	case code >= 95:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
