package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vindiesel/vin-engine/cmd/vin-engine-api/handlers"
	"github.com/vindiesel/vin-engine/cmd/vin-engine-api/middleware"
	"github.com/vindiesel/vin-engine/internal/api/connectapi"
	"github.com/vindiesel/vin-engine/internal/config"
	"github.com/vindiesel/vin-engine/internal/observability"
)

// Dependencies are the services the router wires into handlers.
type Dependencies struct {
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Decoder   handlers.Decoder
	Extractor handlers.Extractor
	Cache     handlers.Pinger
	Version   string
}

// NewRouter creates the API router with all routes configured.
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))

	health := handlers.NewHealthHandler(cfg.Observability.ServiceName, deps.Version, deps.Cache)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", deps.Metrics.Handler())

	auth := middleware.APIKey(middleware.AuthConfig{
		Enabled: cfg.Auth.Enabled,
		APIKeys: cfg.Auth.APIKeys,
	})

	vinHandler := handlers.NewVINHandler(deps.Logger, deps.Decoder, deps.Metrics)
	scanHandler := handlers.NewScanHandler(deps.Logger, deps.Extractor, deps.Decoder, cfg.Server.MaxUploadBytes)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth)

		r.Route("/vin", func(r chi.Router) {
			r.Post("/normalize", vinHandler.Normalize)
			r.Post("/validate", vinHandler.Validate)
			r.Post("/extract", vinHandler.Extract)
			r.Post("/decode", vinHandler.Decode)
			r.Post("/scan", scanHandler.Scan)
			r.Get("/{vin}", vinHandler.Get)
		})
	})

	connectSvc := connectapi.NewVINService(deps.Decoder, deps.Logger)
	r.Group(func(r chi.Router) {
		r.Use(auth)
		for path, h := range connectSvc.Handlers() {
			r.Handle(path, h)
		}
	})

	return r
}
