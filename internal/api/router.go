package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/devconn/devconn/internal/auth"
	"github.com/devconn/devconn/internal/config"
	"github.com/devconn/devconn/internal/endpoints"
	"github.com/devconn/devconn/internal/middleware"
)

// NewRouter creates and configures the API router
func NewRouter(cfg *config.Config, authService *auth.Service, service DeviceService, registry *endpoints.Registry, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	// CORS (if enabled)
	if cfg.CORS.Enabled {
		r.Use(middleware.CORS(
			cfg.CORS.AllowedOrigins,
			cfg.CORS.AllowedMethods,
			cfg.CORS.AllowedHeaders,
			cfg.CORS.MaxAgeSeconds,
		))
	}

	// Initialize handlers
	healthHandler := NewHealthHandler()
	authHandler := NewAuthHandler(authService)
	deviceHandler := NewDeviceHandler(service)
	endpointHandler := NewEndpointHandler(registry)

	// Public routes (no auth required)
	r.Get("/health", healthHandler.Health)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoint
		r.Post("/auth/login", authHandler.Login)

		// Protected routes (require JWT)
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(authService))

			r.Route("/devices", func(r chi.Router) {
				r.Post("/{id}/connect", deviceHandler.Connect)
				r.Post("/{id}/command", deviceHandler.ExecuteCommand)
				r.Post("/{id}/configuration", deviceHandler.DeployConfiguration)
				r.Get("/{id}/connectivity", deviceHandler.TestConnectivity)
				r.Post("/configuration/batch", deviceHandler.DeployBatch)
			})

			r.Get("/endpoints", endpointHandler.List)
		})
	})

	return r
}
