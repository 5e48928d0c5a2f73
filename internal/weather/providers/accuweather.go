package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/i474232898/route-weather/internal/weather"
	"github.com/sony/gobreaker"
)

const accuWeatherBaseURL = "http://dataservice.accuweather.com"

// AccuWeatherProvider implements weather.ConditionsProvider for AccuWeather.
// A lookup is two calls: city search for a location key, then current
// conditions for that key. Wind is reported in km/h.
type AccuWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewAccuWeatherProvider(client *http.Client, apiKey, baseURL string) *AccuWeatherProvider {
	if baseURL == "" {
		baseURL = accuWeatherBaseURL
	}
	return &AccuWeatherProvider{
		name:    "accuweather",
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newCircuitBreaker("accuweather"),
	}
}

func (p *AccuWeatherProvider) Name() string {
	return p.name
}

func (p *AccuWeatherProvider) CurrentConditions(ctx context.Context, place string) (weather.Conditions, error) {
	if p.apiKey == "" {
		return weather.Conditions{}, fmt.Errorf("accuweather api key is not configured")
	}

	key, name, err := p.locationKey(ctx, place)
	if err != nil {
		return weather.Conditions{}, err
	}

	var payload []struct {
		EpochTime        int64   `json:"EpochTime"`
		WeatherText      string  `json:"WeatherText"`
		RelativeHumidity float64 `json:"RelativeHumidity"`
		Temperature      struct {
			Metric struct {
				Value float64 `json:"Value"`
			} `json:"Metric"`
		} `json:"Temperature"`
		Wind struct {
			Speed struct {
				Metric struct {
					Value float64 `json:"Value"`
				} `json:"Metric"`
			} `json:"Speed"`
		} `json:"Wind"`
		PrecipitationSummary *struct {
			Precipitation *struct {
				Metric *struct {
					Value float64 `json:"Value"`
				} `json:"Metric"`
			} `json:"Precipitation"`
		} `json:"PrecipitationSummary"`
	}

	values := url.Values{}
	values.Set("apikey", p.apiKey)
	values.Set("language", "en-us")
	values.Set("details", "true")
	values.Set("metric", "true")

	if err := p.getJSON(ctx, "/currentconditions/v1/"+url.PathEscape(key), values, &payload); err != nil {
		return weather.Conditions{}, fmt.Errorf("accuweather conditions: %w", err)
	}
	if len(payload) == 0 {
		return weather.Conditions{}, errors.New("accuweather conditions: no weather data found")
	}

	cur := payload[0]

	// Missing precipitation summary counts as no precipitation.
	var precip float64
	if s := cur.PrecipitationSummary; s != nil && s.Precipitation != nil && s.Precipitation.Metric != nil {
		precip = s.Precipitation.Metric.Value
	}

	observed := time.Unix(cur.EpochTime, 0).UTC()
	if cur.EpochTime == 0 {
		observed = time.Now().UTC()
	}

	return weather.Conditions{
		Location:         name,
		ObservedAt:       observed,
		Text:             cur.WeatherText,
		TemperatureC:     cur.Temperature.Metric.Value,
		RelativeHumidity: cur.RelativeHumidity,
		WindSpeedKph:     cur.Wind.Speed.Metric.Value,
		PrecipitationMM:  precip,
		Provider:         p.name,
	}, nil
}

// locationKey returns the first matching location key and a readable name.
func (p *AccuWeatherProvider) locationKey(ctx context.Context, place string) (string, string, error) {
	var payload []struct {
		Key           string `json:"Key"`
		LocalizedName string `json:"LocalizedName"`
		Country       struct {
			LocalizedName string `json:"LocalizedName"`
		} `json:"Country"`
	}

	values := url.Values{}
	values.Set("apikey", p.apiKey)
	values.Set("q", place)

	if err := p.getJSON(ctx, "/locations/v1/cities/search", values, &payload); err != nil {
		return "", "", fmt.Errorf("accuweather location search: %w", err)
	}
	if len(payload) == 0 || payload[0].Key == "" {
		return "", "", fmt.Errorf("accuweather: %q: %w", place, weather.ErrPlaceNotFound)
	}

	name := payload[0].LocalizedName
	if c := payload[0].Country.LocalizedName; c != "" {
		name = fmt.Sprintf("%s, %s", name, c)
	}
	return payload[0].Key, name, nil
}

func (p *AccuWeatherProvider) getJSON(ctx context.Context, path string, values url.Values, out any) error {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}
