package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ryanbastic/go-dashboard/internal/favicon"
	"github.com/ryanbastic/go-dashboard/internal/metrics"
	"github.com/ryanbastic/go-dashboard/internal/weather"
)

type WeatherInput struct {
	City string `query:"city" doc:"City name" required:"true" minLength:"1"`
	Unit string `query:"unit" doc:"Temperature unit" enum:"metric,imperial,kelvin" default:"metric"`
}

type WeatherOutput struct {
	Body weather.Conditions
}

type FaviconInput struct {
	URL string `query:"url" doc:"Page URL or bare host" required:"true" minLength:"1"`
}

type FaviconResponse struct {
	URL  string `json:"url" doc:"Requested URL"`
	Icon string `json:"icon" doc:"Icon URL"`
}

type FaviconOutput struct {
	Body FaviconResponse
}

// LookupHandler serves the data weather and link widgets render.
type LookupHandler struct {
	weather  weather.Provider
	favicons *favicon.Resolver
	logger   *slog.Logger
}

func NewLookupHandler(provider weather.Provider, favicons *favicon.Resolver, logger *slog.Logger) *LookupHandler {
	return &LookupHandler{weather: provider, favicons: favicons, logger: logger}
}

func registerLookupRoutes(api huma.API, h *LookupHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "get-weather",
		Method:      http.MethodGet,
		Path:        "/v1/weather",
		Summary:     "Current weather for a city",
		Tags:        []string{"lookups"},
	}, h.Weather)

	huma.Register(api, huma.Operation{
		OperationID: "get-favicon",
		Method:      http.MethodGet,
		Path:        "/v1/favicon",
		Summary:     "Icon URL for a link",
		Tags:        []string{"lookups"},
	}, h.Favicon)
}

func (h *LookupHandler) Weather(ctx context.Context, input *WeatherInput) (*WeatherOutput, error) {
	c, err := h.weather.Current(ctx, input.City, input.Unit)
	if err != nil {
		metrics.RecordWeatherLookup(lookupOutcome(err))
		return nil, toHumaError(h.logger, "weather lookup failed", err, "city", input.City)
	}
	metrics.RecordWeatherLookup("ok")
	return &WeatherOutput{Body: *c}, nil
}

func lookupOutcome(err error) string {
	switch {
	case errors.Is(err, weather.ErrCityNotFound):
		return "not_found"
	case errors.Is(err, weather.ErrUnavailable):
		return "unavailable"
	}
	return "error"
}

func (h *LookupHandler) Favicon(_ context.Context, input *FaviconInput) (*FaviconOutput, error) {
	icon, err := h.favicons.Resolve(input.URL)
	if err != nil {
		return nil, toHumaError(h.logger, "favicon lookup failed", err)
	}
	return &FaviconOutput{Body: FaviconResponse{URL: input.URL, Icon: icon}}, nil
}
