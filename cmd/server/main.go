package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devconn/devconn/internal/api"
	"github.com/devconn/devconn/internal/audit"
	"github.com/devconn/devconn/internal/auth"
	"github.com/devconn/devconn/internal/config"
	"github.com/devconn/devconn/internal/connector"
	"github.com/devconn/devconn/internal/database"
	"github.com/devconn/devconn/internal/endpoints"
	"github.com/devconn/devconn/internal/inventory"
	"github.com/devconn/devconn/internal/manager"
	"github.com/devconn/devconn/internal/routing"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger
	logger := initLogger(cfg.Logging)
	logger.Info("Starting device connection server",
		"version", "1.0.0",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("DB init failed: %v", err)
	}
	defer pool.Close()

	// Run embedded migrations (compiled into the binary)
	if err := database.RunMigrations(cfg); err != nil {
		log.Fatalf("Migrations failed: %v", err)
	}

	// Initialize authentication service
	authService, err := auth.NewService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AdminUsername,
		cfg.Auth.AdminPassword,
		cfg.Auth.GetJWTExpiry(),
	)
	if err != nil {
		log.Fatalf("Failed to initialize auth service: %v", err)
	}

	// Discover which centralized management APIs are configured
	registry := endpoints.Load(endpoints.EnvSource{}, logger)

	gateway := inventory.NewPostgresGateway(pool)

	// Build a connector per configured endpoint
	centralized := make(map[string]connector.Connector)
	checkers := make(map[string]connector.InventoryChecker)
	for _, summary := range registry.List() {
		ep := registry.Get(summary.Name)
		c := connectorFor(ep, gateway, logger)
		if c == nil {
			logger.Warn("No connector implementation for endpoint, devices routed to it will use direct connection",
				"endpoint", ep.Name,
				"kind", string(ep.Kind),
			)
			continue
		}
		centralized[ep.Name] = c
		if checker, ok := c.(connector.InventoryChecker); ok {
			checkers[ep.Name] = checker
		}
	}

	direct := connector.NewDirect(gateway, cfg.Direct, logger)
	policy := routing.NewPolicy(gateway, registry, checkers, logger)
	recorder := audit.NewStore(pool, logger)

	mgr := manager.New(policy, centralized, direct, recorder, logger, cfg.Manager)

	// Create API router
	router := api.NewRouter(cfg, authService, mgr, registry, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped gracefully")
}

// connectorFor maps an endpoint kind to its connector implementation.
// Returns nil for kinds that are configurable but not yet implemented.
func connectorFor(ep *endpoints.Endpoint, gateway inventory.Gateway, logger *slog.Logger) connector.Connector {
	switch ep.Kind {
	case endpoints.KindCatalystCenter:
		return connector.NewCatalystCenter(ep, gateway, logger)
	case endpoints.KindMistCloud:
		return connector.NewMistCloud(ep, gateway, logger)
	case endpoints.KindAristaCVP:
		return connector.NewAristaCVP(ep, gateway, logger)
	case endpoints.KindFortiManager:
		return connector.NewFortiManager(ep, gateway, logger)
	case endpoints.KindPanorama:
		return connector.NewPanorama(ep, gateway, logger)
	default:
		return nil
	}
}

func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
