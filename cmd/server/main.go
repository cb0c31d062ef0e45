package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"watch-progress/internal/platform/config"
	"watch-progress/internal/platform/events"
	"watch-progress/internal/platform/httpserver"
	"watch-progress/internal/platform/logger"
	"watch-progress/internal/platform/metrics"
	"watch-progress/internal/tracker"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	repo, closeStore, err := openRepository(cfg)
	if err != nil {
		log.Error("store init failed", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	pub, err := events.New(cfg.NATSURL, log)
	if err != nil {
		log.Error("nats init failed", "error", err)
		os.Exit(1)
	}
	defer pub.Close()

	svc := tracker.NewService(repo, cfg.CompletionPercent, pub)
	met := metrics.New()
	h := tracker.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	httpserver.SetupRouter(r, cfg.AllowedOrigins)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			if n, err := repo.ActiveSessionCount(); err == nil {
				met.SetActiveSessions(n)
			}
		}).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"store_driver", cfg.StoreDriver,
		"completion_percent", cfg.CompletionPercent,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return
	}

	log.Info("server stopped")
}

// openRepository builds the session repository for the configured store driver.
// The returned func releases the store.
func openRepository(cfg config.Config) (*tracker.StoreRepository, func(), error) {
	switch cfg.StoreDriver {
	case "", "memory":
		return tracker.NewInMemoryRepository(), func() {}, nil
	case "sqlite":
		store, err := tracker.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return tracker.NewRepositoryWithStore(store), func() { _ = store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
