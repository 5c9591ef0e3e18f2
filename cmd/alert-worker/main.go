// Command alert-worker consumes budget alerts from the broker and logs each
// distinct alert once.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expensebook/internal/amqp"
	"expensebook/internal/cache"
	"expensebook/internal/cli"
	"expensebook/internal/log"
	"expensebook/internal/notify"
	"expensebook/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required by the alert worker")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewAlertWorker(worker.Config{
		DedupWindow: cfg.AlertDedupWindow,
		MaxAge:      cfg.AlertMaxAge,
	}, notify.NewLog(logger), logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(w.Collectors()...)
	metricsSrv := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		_ = metricsSrv.Shutdown(ctx)
	})

	caches := cache.NewManager(logger)
	caches.Register("alert_dedup", w.Cache())
	go caches.Run(ctx, time.Minute)

	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server error", log.FieldError, err.Error())
		}
	}()

	logger.Info("Starting alert worker", "queue", cfg.AMQPQueue, "metrics", cfg.WorkerMetricsAddr)
	if err := client.ConsumeAlerts(ctx, w.HandleAlert); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	<-done
	logger.Info("Alert worker stopped")
}
