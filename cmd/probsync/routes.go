package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/probsync/probsync/internal/config"
	"github.com/probsync/probsync/internal/handler"
	"github.com/probsync/probsync/internal/kv"
	"github.com/probsync/probsync/internal/service/metrics"
	"github.com/probsync/probsync/internal/service/ratelimit"
	"github.com/probsync/probsync/pkg/logger"
	"github.com/probsync/probsync/pkg/tracing"
)

// RouterDeps contains dependencies for router setup.
type RouterDeps struct {
	Config          *config.Config
	Metrics         *metrics.Metrics
	TracerProvider  *tracing.TracerProvider
	Store           kv.Store
	AuthHandler     *handler.AuthHandler
	UserDataHandler *handler.UserDataHandler
	HealthHandler   *handler.HealthHandler
	AuthLimiter     *ratelimit.Limiter
	DataLimiter     *ratelimit.Limiter
}

// Close releases resources held by the dependency graph.
func (d *RouterDeps) Close() {
	if err := d.Store.Close(); err != nil {
		logger.Warn("failed to close kv store")
	}
}

// SetupRouter creates and configures chi router with all middleware and routes.
func SetupRouter(deps *RouterDeps) chi.Router {
	// Rate limit rejections feed the endpoint-labelled counter.
	deps.AuthLimiter = withLimitMetric(deps.AuthLimiter, deps, "auth")
	deps.DataLimiter = withLimitMetric(deps.DataLimiter, deps, "data")

	r := chi.NewRouter()

	applyGlobalMiddleware(r, deps)

	registerAPIRoutes(r, deps)
	registerHealthRoutes(r, deps)
	registerMetricsRoutes(r, deps)
	registerAdminRoutes(r, deps)

	return r
}

// withLimitMetric rebuilds a limiter with the rejection counter wired
// in.
func withLimitMetric(l *ratelimit.Limiter, deps *RouterDeps, endpoint string) *ratelimit.Limiter {
	cfg := l.Config()
	cfg.OnLimited = func() {
		deps.Metrics.RateLimitedTotal.WithLabelValues(endpoint).Inc()
	}
	return ratelimit.NewLimiter(deps.Store, cfg)
}

// applyGlobalMiddleware applies middleware stack to router.
func applyGlobalMiddleware(r chi.Router, deps *RouterDeps) {
	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	// Tracing middleware
	if deps.TracerProvider != nil {
		r.Use(tracing.Middleware)
	}

	// Logging middleware
	r.Use(logger.RequestLogger)
	r.Use(logger.RecoveryLogger)
	r.Use(chimw.CleanPath)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(deps.Metrics.Middleware)
}

// registerAPIRoutes registers the protocol endpoints with their
// per-group rate limits.
func registerAPIRoutes(r chi.Router, deps *RouterDeps) {
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(deps.AuthLimiter.Middleware())
			r.Get("/auth", deps.AuthHandler.HandleAuth)
		})

		r.Group(func(r chi.Router) {
			// Credentialed CORS: the wildcard origin is not allowed,
			// so the request origin is reflected back. Preflights pass
			// through to the 204 handler.
			r.Use(cors.Handler(cors.Options{
				AllowOriginFunc: func(r *http.Request, origin string) bool {
					return origin != ""
				},
				AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:     []string{"Accept", "Authorization", "Content-Type", handler.CSRFHeader},
				AllowCredentials:   true,
				MaxAge:             300,
				OptionsPassthrough: true,
			}))
			r.Use(deps.DataLimiter.Middleware())
			r.Get("/user", deps.UserDataHandler.HandleGet)
			r.Post("/user", deps.UserDataHandler.HandlePost)
			r.Options("/user", deps.UserDataHandler.HandleOptions)
		})
	})
}

// registerHealthRoutes registers health check endpoints (no auth).
func registerHealthRoutes(r chi.Router, deps *RouterDeps) {
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReady)
}

// registerMetricsRoutes registers metrics endpoint if enabled.
func registerMetricsRoutes(r chi.Router, deps *RouterDeps) {
	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
}

// registerAdminRoutes registers dev-mode-only admin endpoints.
func registerAdminRoutes(r chi.Router, deps *RouterDeps) {
	if !deps.Config.DevMode {
		return
	}

	r.Route("/admin", func(r chi.Router) {
		r.Handle("/log/level", logger.LevelHandler())
		r.Get("/info", makeInfoHandler(deps.Config))
	})
}

// makeInfoHandler creates a handler that returns app info.
func makeInfoHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		info := map[string]interface{}{
			"version":    Version,
			"build_time": BuildTime,
			"kv_type":    cfg.KV.Type,
			"dev_mode":   cfg.DevMode,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	}
}
