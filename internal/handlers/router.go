package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"mindmap-backend/internal/middleware"
	"mindmap-backend/internal/render"
	"mindmap-backend/pkg/api"
	"mindmap-backend/pkg/auth"
)

// RouterConfig holds everything the router mounts.
type RouterConfig struct {
	Views        *ViewHandler
	Health       *HealthHandler
	Metrics      http.Handler
	HTTPRecorder middleware.HTTPRecorder
	Validator    *auth.JWTValidator
	PublicRoleID int
	CORSOrigins  []string
	AssetDir     string
	AssetVersion string
	Logger       *zap.Logger
}

// SetupRouter creates and configures the HTTP router with all routes and middleware.
func SetupRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	if cfg.HTTPRecorder != nil {
		r.Use(middleware.Metrics(cfg.HTTPRecorder))
	}
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Get("/api/openapi", api.OpenAPIHandler())
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	if cfg.AssetDir != "" {
		prefix := render.AssetPath + cfg.AssetVersion
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.AssetDir))))
	}

	r.Route("/view/{viewName}", func(r chi.Router) {
		r.Use(middleware.Authenticate(cfg.Validator, cfg.PublicRoleID, cfg.Logger))
		cfg.Views.Routes(r)
	})

	return r
}
