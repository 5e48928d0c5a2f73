package providers

import (
	"context"
	"strings"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/route-weather/internal/common"
	"github.com/i474232898/route-weather/internal/weather"
)

// GoogleGeocoder implements weather.Geocoder with the Google Geocoding API via
// github.com/kelvins/geocoder. The library keeps its API key in a package
// variable, so only one key can be active per process.
type GoogleGeocoder struct {
	name    string
	geocode func(geocoder.Address) (geocoder.Location, error)
	reverse func(geocoder.Location) ([]geocoder.Address, error)
}

func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{
		name:    "google",
		geocode: geocoder.Geocoding,
		reverse: geocoder.GeocodingReverse,
	}
}

func (g *GoogleGeocoder) Name() string {
	return g.name
}

type googleResult struct {
	place weather.Place
	err   error
}

// Lookup resolves query and reverse-geocodes the hit for a formatted address.
// The underlying library is blocking and ignores contexts, so the call runs in
// its own goroutine and Lookup returns early when ctx is done.
func (g *GoogleGeocoder) Lookup(ctx context.Context, query string) (weather.Place, error) {
	if err := ctx.Err(); err != nil {
		return weather.Place{}, err
	}

	done := make(chan googleResult, 1)
	go func() {
		done <- g.lookup(query)
	}()

	select {
	case <-ctx.Done():
		return weather.Place{}, ctx.Err()
	case r := <-done:
		return r.place, r.err
	}
}

func (g *GoogleGeocoder) lookup(query string) googleResult {
	loc, err := g.geocode(geocoder.Address{City: query})
	if err != nil {
		if isGoogleNotFound(err) {
			return googleResult{err: weather.ErrPlaceNotFound}
		}
		return googleResult{err: err}
	}

	name := query
	if addrs, err := g.reverse(loc); err == nil && len(addrs) > 0 && addrs[0].FormattedAddress != "" {
		name = addrs[0].FormattedAddress
	}

	return googleResult{place: weather.Place{
		Coordinate:  weather.Coordinate{Latitude: loc.Latitude, Longitude: loc.Longitude},
		DisplayName: name,
	}}
}

func isGoogleNotFound(err error) bool {
	return common.HasAny(strings.ToLower(err.Error()), "zero_results", "empty results", "no results", "not found")
}
