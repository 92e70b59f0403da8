package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"image-drop/internal/config"
	"image-drop/internal/logger"
	"image-drop/internal/server"
	"image-drop/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "err", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.Env)

	// Acquire storage before accepting any request.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := openStorage(ctx, cfg.Storage)
	cancel()
	if err != nil {
		log.Error("storage_unavailable", "driver", cfg.Storage.Driver, "err", err)
		os.Exit(1)
	}

	srv := server.New(server.Config{
		Addr:               cfg.Addr(),
		PublicBaseURL:      cfg.PublicBaseURL,
		CORSOrigin:         cfg.CORSOrigin,
		MaxUploadBytes:     cfg.Upload.MaxBytes,
		RateLimitPerMinute: cfg.Upload.RateLimitPerMinute,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
		Storage:            store,
	})

	// Start the HTTP server in a background goroutine so we can wait on signals.
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting", "addr", cfg.Addr(), "driver", cfg.Storage.Driver, "env", cfg.Env)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting_down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("shutdown_error", "err", err)
			os.Exit(1)
		}
		log.Info("shutdown_complete")
	case err := <-errCh:
		if err != nil {
			log.Error("server_error", "err", err)
			os.Exit(1)
		}
	}
}

// openStorage builds the backend selected by the configuration.
func openStorage(ctx context.Context, cfg config.Storage) (storage.Storage, error) {
	switch cfg.Driver {
	case config.DriverLocal:
		return storage.NewLocal(cfg.Dir)
	case config.DriverMinio:
		return storage.NewMinio(ctx, storage.MinioOptions{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
