package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fjod/med_store/internal/auth"
	"github.com/fjod/med_store/internal/cart"
	"github.com/fjod/med_store/internal/catalog"
	"github.com/fjod/med_store/internal/events"
	"github.com/fjod/med_store/internal/metrics"
	"github.com/fjod/med_store/internal/shutdown"
	"github.com/fjod/med_store/internal/upload"
	"github.com/spf13/cobra"

	h "github.com/fjod/med_store/internal/http"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func serve(parent context.Context, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := shutdown.WithSignals(parent)
	defer stop()

	var closer shutdown.Closer
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		closer.Close(closeCtx, func(name string, err error) {
			logger.Error("shutdown step failed", "step", name, "error", err)
		})
	}()

	backend, closeBackend, err := openBackend(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open cart storage: %w", err)
	}
	closer.Add("cart storage", closeBackend)
	logger.Info("cart storage ready", "backend", cfg.Storage.Backend)

	repo, err := catalog.NewRepository(cfg.Catalog.DSN)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	closer.Add("catalog", func(context.Context) error { return repo.Close() })
	if err := repo.RunMigrations(); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}

	m := metrics.New()
	manager := cart.NewManager(backend, cart.ManagerConfig{
		MaxStores: cfg.Storage.CacheSize,
		IdleTTL:   cfg.Storage.CacheIdleTTL,
	}, cart.WithLogger(logger))
	manager.Subscribe(m.ObserveCart)

	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewPublisher(cfg.Kafka.Topic, logger, cfg.Kafka.Brokers...)
		flushed := make(chan struct{})
		go func() {
			defer close(flushed)
			publisher.Run(ctx)
		}()
		manager.Subscribe(publisher.Handle)
		closer.Add("kafka publisher", func(closeCtx context.Context) error {
			select {
			case <-flushed:
			case <-closeCtx.Done():
			}
			publisher.Close()
			return nil
		})
		logger.Info("publishing cart events", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}

	uploader := upload.NewClient(upload.Config{
		BaseURL:      cfg.Upload.BaseURL,
		CloudName:    cfg.Upload.CloudName,
		UploadPreset: cfg.Upload.UploadPreset,
		Timeout:      cfg.Upload.Timeout,
	}, nil)

	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN is not set, admin routes will reject every request")
	}

	router := h.NewRouter(h.RouterConfig{
		Carts:              manager,
		Catalog:            repo,
		Uploader:           uploader,
		Verifier:           auth.NewStaticVerifier(cfg.AdminToken),
		Metrics:            m,
		MetricsHandler:     m.Handler(),
		RequestTimeout:     cfg.HTTP.RequestTimeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.RequestTimeout,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("storefront starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited", "open_carts", manager.Len())
	return nil
}
