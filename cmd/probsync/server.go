package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/probsync/probsync/internal/config"
	"github.com/probsync/probsync/internal/handler"
	"github.com/probsync/probsync/internal/kv"
	"github.com/probsync/probsync/internal/service/csrf"
	"github.com/probsync/probsync/internal/service/idp"
	"github.com/probsync/probsync/internal/service/metrics"
	"github.com/probsync/probsync/internal/service/ratelimit"
	"github.com/probsync/probsync/internal/service/session"
	"github.com/probsync/probsync/internal/service/state"
	"github.com/probsync/probsync/internal/service/userdata"
	"github.com/probsync/probsync/internal/ui"
	"github.com/probsync/probsync/pkg/logger"
	"github.com/probsync/probsync/pkg/tracing"
)

// NewServer creates a new HTTP server with chi router and all handlers.
func NewServer(cfg *config.Config, m *metrics.Metrics, tp *tracing.TracerProvider) (*http.Server, *RouterDeps, error) {
	deps, err := createDependencies(cfg, m, tp)
	if err != nil {
		return nil, nil, err
	}

	router := SetupRouter(deps)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, deps, nil
}

// createDependencies initializes all server dependencies.
func createDependencies(cfg *config.Config, m *metrics.Metrics, tp *tracing.TracerProvider) (*RouterDeps, error) {
	store, err := createStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kv store: %w", err)
	}
	logger.Info("kv store created", zap.String("type", store.Name()))

	renderer, err := ui.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	sessions, err := session.NewManager(session.Config{
		CookieName: cfg.Session.CookieName,
		CookiePath: cfg.Server.AppRoot,
		Secure:     cfg.Session.Secure && !cfg.DevMode,
	}, cfg.Auth.SigningKey, "probsync")
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	provider, err := createProvider(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("identity provider created", zap.String("provider", provider.Name()))

	states := state.NewService(store)
	csrfSvc := csrf.NewService(store)
	documents := userdata.NewStore(store)

	return &RouterDeps{
		Config:          cfg,
		Metrics:         m,
		TracerProvider:  tp,
		Store:           store,
		AuthHandler:     handler.NewAuthHandler(provider, sessions, states, csrfSvc, documents, renderer, m, cfg.Server.AppRoot),
		UserDataHandler: handler.NewUserDataHandler(sessions, csrfSvc, documents, m),
		HealthHandler:   handler.NewHealthHandler(store),
		AuthLimiter:     ratelimit.NewLimiter(store, ratelimit.Config{Max: cfg.RateLimit.Auth.Max, Window: cfg.RateLimit.Auth.Window}),
		DataLimiter:     ratelimit.NewLimiter(store, ratelimit.Config{Max: cfg.RateLimit.Data.Max, Window: cfg.RateLimit.Data.Window}),
	}, nil
}

// createStore creates the shared KV store from configuration.
func createStore(cfg *config.Config) (kv.Store, error) {
	switch cfg.KV.Type {
	case "redis":
		return kv.NewRedisStore(kv.RedisConfig{
			Addresses:    cfg.KV.Redis.Addresses,
			Password:     cfg.KV.Redis.Password,
			DB:           cfg.KV.Redis.DB,
			MasterName:   cfg.KV.Redis.MasterName,
			PoolSize:     cfg.KV.Redis.PoolSize,
			MinIdleConns: cfg.KV.Redis.MinIdleConns,
			KeyPrefix:    cfg.KV.Redis.KeyPrefix,
		})

	case "memory":
		return kv.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown kv store type: %s", cfg.KV.Type)
	}
}

// createProvider creates the identity provider, mocked in dev mode.
func createProvider(cfg *config.Config) (idp.Provider, error) {
	if cfg.DevMode {
		return idp.NewMockProvider(), nil
	}

	provider, err := idp.NewOIDCProvider(idp.Config{
		IssuerURL:    cfg.Auth.Provider.IssuerURL,
		ClientID:     cfg.Auth.Provider.ClientID,
		ClientSecret: cfg.Auth.Provider.ClientSecret,
		RedirectURL:  cfg.Auth.Provider.RedirectURL,
		Scopes:       cfg.Auth.Provider.Scopes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create identity provider: %w", err)
	}
	return provider, nil
}

// initTracing initializes OpenTelemetry tracing if enabled.
func initTracing(cfg *config.Config) *tracing.TracerProvider {
	if !cfg.Observability.Tracing.Enabled {
		return nil
	}

	tracingCfg := tracing.Config{
		Enabled:        true,
		ServiceName:    "probsync",
		ServiceVersion: Version,
		Environment:    getEnvironment(cfg.DevMode),
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		Protocol:       cfg.Observability.Tracing.Protocol,
		Insecure:       cfg.Observability.Tracing.Insecure,
		SamplingRatio:  cfg.Observability.Tracing.SamplingRatio,
	}

	tp, err := tracing.Init(context.Background(), tracingCfg)
	if err != nil {
		logger.Error("failed to initialize tracing", zap.Error(err))
		return nil
	}

	logger.Info("tracing initialized",
		zap.String("endpoint", tracingCfg.Endpoint),
		zap.String("protocol", tracingCfg.Protocol),
	)

	return tp
}

// startHTTPServer starts HTTP server and handles errors.
func startHTTPServer(srv *http.Server, port int) {
	logger.Info("starting HTTP server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown.
func waitForShutdown(srv *http.Server, deps *RouterDeps, tp *tracing.TracerProvider) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Mark as not ready
	deps.HealthHandler.SetReady(false)

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	// Shutdown tracing
	if tp != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}
