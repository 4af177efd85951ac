package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qbwc-webhook-adapter/internal/api"
	"qbwc-webhook-adapter/internal/archive"
	"qbwc-webhook-adapter/internal/auth"
	"qbwc-webhook-adapter/internal/config"
	"qbwc-webhook-adapter/internal/entity"
	"qbwc-webhook-adapter/internal/middleware"
	"qbwc-webhook-adapter/internal/queue"
	"qbwc-webhook-adapter/internal/scheduler"
	"qbwc-webhook-adapter/internal/session"
	"qbwc-webhook-adapter/internal/soap"
	"qbwc-webhook-adapter/internal/webhooks"
	"qbwc-webhook-adapter/internal/worker"
)

const shutdownTimeout = 30 * time.Second

// app is the wired adapter; close releases what openQueue acquired.
type app struct {
	router http.Handler
	pool   *worker.Pool
	close  func() error
}

func serve(ctx context.Context) error {
	a, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("Server failed to start", "error", err)
		a.pool.Stop()
		return err
	}
	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Answers accepted before shutdown are still archived and dispatched.
	a.pool.Stop()

	logger.Info("Server exited gracefully")
	return nil
}

// build wires every component from cfg and starts the worker pool.
func build(cfg *config.Config, logger *slog.Logger) (*app, error) {
	registry, err := entity.NewRegistry(entity.DefaultKinds()...)
	if err != nil {
		return nil, fmt.Errorf("entity registry: %w", err)
	}

	q, closeQueue, err := openQueue(cfg.Queue)
	if err != nil {
		return nil, err
	}

	archiveWriter := archive.NewWriter(cfg.Archive.Dir)
	deadLetters := webhooks.NewDeadLetters(cfg.DeadLetter.Dir)
	dispatcher := webhooks.NewDispatcher(webhooks.Config{
		URL:     cfg.Webhook.URL,
		Secret:  cfg.Webhook.Secret,
		Timeout: cfg.Webhook.Timeout,
	}, deadLetters, logger)
	if cfg.Webhook.URL == "" {
		logger.Warn("webhook.url is not set, normalized records will not be delivered")
	}

	pipeline := worker.NewPipeline(registry, archiveWriter, dispatcher, logger)
	pool := worker.NewPool(cfg.Pipeline.Buffer, logger, pipeline)
	pool.Start(cfg.Pipeline.Workers)

	connectorCreds := auth.Credentials{
		Username:     cfg.Connector.Username,
		Password:     cfg.Connector.Password,
		PasswordHash: cfg.Connector.PasswordHash,
	}
	if !connectorCreds.Enabled() {
		logger.Warn("connector credentials are not set, every authenticate call will be rejected")
	}
	sched := scheduler.New(q, registry, cfg.Scheduler.MaxReturned, logger)
	controller := session.NewController(session.Config{
		ServerVersion: cfg.Connector.ServerVersion,
		ClientVersion: cfg.Connector.ClientVersion,
	}, connectorCreds, sched, pool, logger)

	apiHandler := api.NewHandler(logger, registry, q, archiveWriter, cfg.Scheduler.MaxReturned)
	apiCreds := auth.Credentials{
		Username:     cfg.API.Username,
		Password:     cfg.API.Password,
		PasswordHash: cfg.API.PasswordHash,
	}
	limiter := middleware.NewLimiter(cfg.API.RateLimitRPS, cfg.API.RateLimitBurst, 0)

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))

	router.Get("/healthz", api.Health)
	router.Handle("/metrics", promhttp.Handler())
	router.Method(http.MethodGet, "/soap", soap.NewHandler(controller, logger))
	router.Method(http.MethodPost, "/soap", soap.NewHandler(controller, logger))
	router.Route("/api/v1", func(r chi.Router) {
		apiHandler.Routes(r, logger, apiCreds, limiter)
	})

	return &app{router: router, pool: pool, close: closeQueue}, nil
}

func openQueue(qc config.QueueConfig) (queue.Queue, func() error, error) {
	switch qc.Backend {
	case config.QueueBackendRedis:
		rq, err := queue.NewRedisQueue(qc.RedisURL, qc.RedisKey)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis queue: %w", err)
		}
		return rq, rq.Close, nil
	default:
		fq, err := queue.NewFileQueue(qc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open file queue: %w", err)
		}
		return fq, func() error { return nil }, nil
	}
}
