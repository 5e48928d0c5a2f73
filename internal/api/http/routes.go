package httpapi

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/route-weather/internal/weather"
)

var validate = validator.New()

// ForecastService runs the place list to forecast pipeline.
type ForecastService interface {
	FetchWeather(ctx context.Context, queries []string, days int) (weather.Report, error)
}

// RouteService compares current conditions at two places.
type RouteService interface {
	Compare(ctx context.Context, start, end string) (weather.RouteReport, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, forecast ForecastService, route RouteService) {
	v1 := app.Group("/api/v1")

	v1.Post("/forecast", func(c *fiber.Ctx) error {
		var req forecastRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		return serveForecast(c, forecast, req)
	})

	v1.Get("/forecast", func(c *fiber.Ctx) error {
		req, err := parseForecastQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return serveForecast(c, forecast, req)
	})

	v1.Get("/route", func(c *fiber.Ctx) error {
		req := routeQuery{Start: c.Query("start"), End: c.Query("end")}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := route.Compare(c.UserContext(), req.Start, req.End)
		if err != nil {
			switch {
			case errors.Is(err, weather.ErrPlaceNotFound):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			case errors.Is(err, weather.ErrNoPlaces):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			case errors.Is(err, context.DeadlineExceeded):
				return fiber.NewError(fiber.StatusGatewayTimeout, "weather provider timed out")
			}
			return fiber.NewError(fiber.StatusBadGateway, "failed to fetch current conditions")
		}

		return c.JSON(report)
	})
}

// ErrorHandler renders every error as a JSON body with the matching status.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// forecastRequest is the pipeline input: a place list and a horizon in days.
type forecastRequest struct {
	Cities []string `json:"cities" validate:"required,min=1,max=10,dive,required"`
	Days   int      `json:"days" validate:"required,min=1,max=7"`
}

// forecastResponse adds the parallel coordinate arrays used for map plotting.
type forecastResponse struct {
	weather.Report
	Latitudes  []float64 `json:"latitudes"`
	Longitudes []float64 `json:"longitudes"`
}

func parseForecastQuery(c *fiber.Ctx) (forecastRequest, error) {
	var req forecastRequest

	for _, city := range c.Context().QueryArgs().PeekMulti("city") {
		req.Cities = append(req.Cities, string(city))
	}

	daysStr := c.Query("days")
	if daysStr == "" {
		return req, errors.New("days query parameter is required")
	}
	days, err := strconv.Atoi(daysStr)
	if err != nil {
		return req, errors.New("days must be an integer")
	}
	req.Days = days

	return req, nil
}

func serveForecast(c *fiber.Ctx, forecast ForecastService, req forecastRequest) error {
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	report, err := forecast.FetchWeather(c.UserContext(), req.Cities, req.Days)
	if err != nil {
		var fe *weather.ForecastError
		var se *weather.SeriesError
		switch {
		case errors.Is(err, weather.ErrNoPlaces), errors.Is(err, weather.ErrInvalidDays):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return fiber.NewError(fiber.StatusGatewayTimeout, "forecast provider timed out")
		case errors.As(err, &fe), errors.As(err, &se):
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}

	return c.JSON(forecastResponse{
		Report:     report,
		Latitudes:  report.Latitudes(),
		Longitudes: report.Longitudes(),
	})
}

// routeQuery holds the two endpoints of a route comparison.
type routeQuery struct {
	Start string `validate:"required"`
	End   string `validate:"required"`
}
