package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/example/attendgate/internal/auth"
	"github.com/example/attendgate/internal/gateway"
	"github.com/example/attendgate/internal/httpapi"
	"github.com/example/attendgate/internal/observability"
	"github.com/example/attendgate/internal/persistence/sqlite"
	"github.com/example/attendgate/internal/upstream"
	"github.com/example/attendgate/pkg/config"
	"github.com/example/attendgate/pkg/logging"
	"github.com/example/attendgate/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := logging.New(logging.LevelDebug)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	verifier := auth.NewJWTVerifier(cfg.Server.Auth.JWTSecret)
	authSvc := auth.NewService(store, cfg.Server.Auth.JWTSecret, cfg.Server.Auth.TokenTTL, logger)

	var wg sync.WaitGroup
	gw := gateway.New(
		logger,
		verifier,
		gateway.NewInMemoryRegistry(logger),
		gateway.RepositoryHandlers(store),
		metrics,
		transport.ConnectionConfig(cfg.Transport),
		&wg,
	)

	connector := upstream.NewConnector(logger, upstream.Config{
		URL:            cfg.Upstream.URL,
		ReconnectDelay: cfg.Upstream.ReconnectDelay,
	}, store, gw, metrics)
	go connector.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws", httpapi.Chain(
		http.HandlerFunc(gw.Accept),
		httpapi.RequestMetadataMiddleware(),
		httpapi.NewRequestLogger(logger),
	))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	httpapi.NewAPI(logger, store, authSvc).Mount(mux)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
		BaseContext: func(l net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("Server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Closing all active connections...")
	gw.CloseAll()
	wg.Wait()

	logger.Info("Server shut down gracefully.")
	return nil
}
