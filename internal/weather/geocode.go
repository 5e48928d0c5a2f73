package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/i474232898/route-weather/internal/common"
	"github.com/i474232898/route-weather/internal/metrics"
)

// Resolve normalizes query and looks it up with g. It never fails: a query that
// matches nothing, a lookup error and an out-of-range answer all come back as an
// unresolved result with a reason, so one bad place cannot abort a batch.
// GeoResult.Err tells a missing place apart from a failed lookup.
func Resolve(ctx context.Context, g Geocoder, query string) GeoResult {
	q := common.NormalizePlace(query)
	if q == "" {
		metrics.GeocodeLookupsTotal.WithLabelValues(g.Name(), metrics.OutcomeNotFound).Inc()
		return Failed(query, "Empty place name", ErrNoPlaces)
	}

	place, err := g.Lookup(ctx, q)
	switch {
	case errors.Is(err, ErrPlaceNotFound):
		metrics.GeocodeLookupsTotal.WithLabelValues(g.Name(), metrics.OutcomeNotFound).Inc()
		slog.InfoContext(ctx, "place not found", "query", q, "provider", g.Name())
		return Unresolved(q, fmt.Sprintf("Location not found for %s", q))

	case err != nil:
		metrics.GeocodeLookupsTotal.WithLabelValues(g.Name(), metrics.OutcomeError).Inc()
		slog.WarnContext(ctx, "geocoding failed", "query", q, "provider", g.Name(), "error", err)
		return Failed(q, fmt.Sprintf("Error while acquiring %s coordinates: %v", q, err), err)

	case !place.Coordinate.Valid():
		metrics.GeocodeLookupsTotal.WithLabelValues(g.Name(), metrics.OutcomeError).Inc()
		slog.WarnContext(ctx, "geocoder returned invalid coordinate",
			"query", q, "provider", g.Name(), "lat", place.Latitude, "lon", place.Longitude)
		err := fmt.Errorf("invalid coordinate (%g, %g)", place.Latitude, place.Longitude)
		return Failed(q, fmt.Sprintf("Error while acquiring %s coordinates: %v", q, err), err)
	}

	name := place.DisplayName
	if name == "" {
		name = q
	}

	metrics.GeocodeLookupsTotal.WithLabelValues(g.Name(), metrics.OutcomeResolved).Inc()
	return Resolved(q, place.Coordinate, name)
}
