package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"shoppersense/internal/app"
	"shoppersense/internal/config"
	"shoppersense/internal/middleware"
	"shoppersense/internal/observability"
	"shoppersense/internal/server"
	"shoppersense/internal/services"
	"shoppersense/internal/ui/templates"
)

const (
	version          = "1.0.0"
	renderTimeout    = 10 * time.Second
	startupTimeout   = 2 * time.Minute
	limiterSweep     = time.Minute
	dashboardCaching = "public, max-age=300"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", dashboardCaching)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// newHandler mounts the routes behind the middleware chain.
func newHandler(ctx context.Context, analytics *services.Analytics, cfg *config.Config, logger *slog.Logger) http.Handler {
	srv := server.NewServer(analytics, logger, &server.TemplateHandlers{
		Dashboard: handleDashboard,
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)
	go rateLimiter.Run(ctx, limiterSweep)

	chain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)
	return chain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"addr", cfg.Address(),
		"store_driver", cfg.Store.Driver,
		"insights_provider", cfg.Insights.Provider,
	)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("application stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	start := time.Now()
	analytics, repo, err := app.NewAnalytics(startCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("transaction store ready", "driver", cfg.Store.Driver, "duration", time.Since(start))

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(ctx, analytics, cfg, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)
	gracefulServer.RegisterShutdownHook("transaction store", func(context.Context) error {
		logger.Info("closing transaction store")
		return repo.Close()
	})

	return gracefulServer.ListenAndServe(ctx)
}
