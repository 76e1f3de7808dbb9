package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ryanbastic/go-dashboard/internal/auth"
	"github.com/ryanbastic/go-dashboard/internal/circuitbreaker"
	"github.com/ryanbastic/go-dashboard/internal/favicon"
	"github.com/ryanbastic/go-dashboard/internal/metrics"
	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/weather"
)

// Deps are the collaborators the HTTP server is built from.
type Deps struct {
	Store    storage.Store
	Verifier *auth.Verifier
	Weather  weather.Provider
	Favicons *favicon.Resolver
	Backends map[string]Pinger
	Breakers map[string]*circuitbreaker.Breaker
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(logger *slog.Logger, deps Deps) http.Handler {
	mux := chi.NewRouter()

	mux.Use(RequestID)
	mux.Use(Logging(logger))
	mux.Use(Recovery(logger))
	mux.Use(metrics.Metrics)

	health := NewHealthHandler(deps.Backends, deps.Breakers, logger)
	mux.Get("/v1/livez", health.Livez)
	mux.Get("/v1/readyz", health.Readyz)
	mux.Get("/v1/health", health.Readyz)
	mux.Handle("/metrics", promhttp.Handler())

	config := huma.DefaultConfig("Dashboard API", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
	}
	api := humachi.New(mux, config)

	authed := huma.Middlewares{RequireActor(api, deps.Verifier, logger)}
	registerDashboardRoutes(api, NewDashboardHandler(deps.Store, logger), authed)

	favicons := deps.Favicons
	if favicons == nil {
		favicons = favicon.NewResolver("")
	}
	provider := deps.Weather
	if provider == nil {
		provider = weather.StaticProvider{}
	}
	registerLookupRoutes(api, NewLookupHandler(provider, favicons, logger))

	return mux
}
