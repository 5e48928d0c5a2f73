package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/route-weather/internal/api/http"
	"github.com/i474232898/route-weather/internal/config"
	"github.com/i474232898/route-weather/internal/scheduler"
	"github.com/i474232898/route-weather/internal/store"
	"github.com/i474232898/route-weather/internal/weather"
	"github.com/i474232898/route-weather/internal/weather/providers"
)

type cli struct {
	Serve  serveCmd  `cmd:"" default:"1" help:"Run the HTTP API and the cache warm-up scheduler."`
	Lookup lookupCmd `cmd:"" help:"Fetch the hourly forecast for one or more places and print a summary."`
	Route  routeCmd  `cmd:"" help:"Check whether current weather at either end of a route is bad."`
}

// services is the wired application shared by every subcommand.
type services struct {
	cfg      *config.AppConfig
	cache    *store.MemoryStore
	forecast *weather.Service
	route    *weather.RouteService
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	var c cli
	ctx := kong.Parse(&c,
		kong.Name("route-weather"),
		kong.Description("Hourly forecasts for a list of places, and a bad-weather check for routes."),
		kong.UsageOnError(),
	)

	err = ctx.Run(newServices(cfg))
	ctx.FatalIfErrorf(err)
}

func newServices(cfg *config.AppConfig) *services {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	cache := store.NewMemoryStore(cfg.ForecastCacheMaxLen, cfg.ForecastCacheTTL)

	openMeteo := providers.NewOpenMeteoProvider(httpClient,
		providers.WithOpenMeteoURL(cfg.OpenMeteoURL),
		providers.WithOpenMeteoBackoff(providers.BackoffConfig{
			MaxRetries:      cfg.ForecastRetries,
			InitialInterval: cfg.ForecastBackoff,
			MaxInterval:     providers.DefaultBackoff.MaxInterval,
		}),
		providers.WithResponseCache(cache),
	)

	var geocoder weather.Geocoder
	switch cfg.Geocoder {
	case config.GeocoderGoogle:
		geocoder = providers.NewGoogleGeocoder(cfg.GoogleGeocoderKey)
	default:
		geocoder = providers.NewNominatimGeocoder(httpClient, cfg.NominatimURL, cfg.NominatimUserAgent)
	}

	// AccuWeather needs a key; without one current conditions come from Open-Meteo.
	var conditions weather.ConditionsProvider = providers.NewGeocodedConditions(geocoder, openMeteo)
	if cfg.AccuWeatherAPIKey != "" {
		conditions = providers.NewAccuWeatherProvider(httpClient, cfg.AccuWeatherAPIKey, cfg.AccuWeatherURL)
	}

	slog.Debug("providers configured",
		"geocoder", geocoder.Name(), "forecast", openMeteo.Name(), "conditions", conditions.Name())

	return &services{
		cfg:      cfg,
		cache:    cache,
		forecast: weather.NewService(geocoder, openMeteo, weather.WithGeocodeConcurrency(cfg.GeocodeConcurrency)),
		route:    weather.NewRouteService(conditions),
	}
}

type serveCmd struct{}

func (*serveCmd) Run(s *services) error {
	// Scheduler that keeps the forecast cache warm for configured places.
	sched := scheduler.New(s.cfg.WarmCities, s.cfg.WarmDays, s.cfg.WarmInterval, s.forecast).WithCache(s.cache)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	// A 7-day batch behind sequential geocoding can take a while to write.
	app := fiber.New(fiber.Config{
		AppName:               "route-weather",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          60 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "ok",
			"service":    "route-weather",
			"conditions": s.route.Provider(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, s.forecast, s.route)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "port", s.cfg.Port)
		errCh <- app.Listen(":" + s.cfg.Port)
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}
	return nil
}

type lookupCmd struct {
	Days    int           `short:"d" default:"3" help:"Forecast horizon in days (1-7)."`
	JSON    bool          `help:"Print the full report as JSON."`
	Timeout time.Duration `default:"2m" help:"Overall deadline for the lookup."`
	Places  []string      `arg:"" name:"place" help:"Place names, e.g. \"Moscow, Russia\" Tokyo."`
}

func (l *lookupCmd) Run(s *services) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.Timeout)
	defer cancel()

	report, err := s.forecast.FetchWeather(ctx, l.Places, l.Days)
	if err != nil {
		return err
	}
	if l.JSON {
		return printJSON(os.Stdout, report)
	}
	return printReport(os.Stdout, report)
}

type routeCmd struct {
	From    string        `required:"" help:"Start of the route."`
	To      string        `required:"" help:"End of the route."`
	JSON    bool          `help:"Print the comparison as JSON."`
	Timeout time.Duration `default:"1m" help:"Overall deadline for the check."`
}

func (r *routeCmd) Run(s *services) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()

	report, err := s.route.Compare(ctx, r.From, r.To)
	if err != nil {
		return err
	}
	if r.JSON {
		return printJSON(os.Stdout, report)
	}
	return printRoute(os.Stdout, report)
}
