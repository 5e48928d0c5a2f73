package providers

import (
	"context"
	"fmt"

	"github.com/i474232898/route-weather/internal/weather"
)

// GeocodedConditions implements weather.ConditionsProvider without an API key:
// the place is geocoded first and current conditions come from Open-Meteo.
type GeocodedConditions struct {
	geocoder weather.Geocoder
	forecast *OpenMeteoProvider
}

func NewGeocodedConditions(geocoder weather.Geocoder, forecast *OpenMeteoProvider) *GeocodedConditions {
	return &GeocodedConditions{geocoder: geocoder, forecast: forecast}
}

func (c *GeocodedConditions) Name() string {
	return c.forecast.Name() + "+" + c.geocoder.Name()
}

func (c *GeocodedConditions) CurrentConditions(ctx context.Context, place string) (weather.Conditions, error) {
	geo := weather.Resolve(ctx, c.geocoder, place)
	coord, ok := geo.Coordinate()
	if !ok {
		// Only a place the geocoder found nothing for wraps ErrPlaceNotFound.
		return weather.Conditions{}, fmt.Errorf("geocode %q: %w", geo.Query(), geo.Err())
	}

	cond, err := c.forecast.CurrentConditions(ctx, coord)
	if err != nil {
		return weather.Conditions{}, err
	}
	cond.Location = geo.DisplayName()
	cond.Provider = c.Name()
	return cond, nil
}
