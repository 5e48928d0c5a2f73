package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GeocodeLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routeweather_geocode_lookups_total",
			Help: "Total geocoding lookups by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	ForecastRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routeweather_forecast_requests_total",
			Help: "Total batched forecast calls by provider and status",
		},
		[]string{"provider", "status"},
	)

	ForecastCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routeweather_forecast_cache_total",
			Help: "Forecast response cache lookups by result (hit or miss)",
		},
		[]string{"result"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "routeweather_pipeline_duration_seconds",
			Help:    "Duration of a full place list to forecast pipeline run",
			Buckets: prometheus.DefBuckets,
		},
	)

	RouteVerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routeweather_route_verdicts_total",
			Help: "Route comparisons by verdict",
		},
		[]string{"verdict"},
	)
)

const (
	OutcomeResolved = "resolved"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)
