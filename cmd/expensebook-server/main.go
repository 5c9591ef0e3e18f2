// Command expensebook-server runs the expense API backed by SQLite.
package main

import (
	"context"
	"os"

	"expensebook/internal/cli"
	apphttp "expensebook/internal/http"
	"expensebook/internal/log"
	"expensebook/internal/notify"
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

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		os.Exit(1)
	}
	defer repo.Close()

	var notifier notify.Notifier = notify.NewLog(logger)
	closeNotifier := func() error { return nil }
	if cfg.AMQPEnabled() {
		n, closeFn, err := cli.AlertNotifier(cfg, logger)
		if err != nil {
			// Alerts still reach the log and the create response.
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		} else {
			notifier, closeNotifier = n, closeFn
			logger.Info("Publishing budget alerts", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	defer closeNotifier()

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		TokenTTL:       cfg.TokenTTL,
		TokenCacheSize: cfg.TokenCacheSize,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         logger,
		Notifier:       notifier,
	}, repo)
	if err != nil {
		logger.Error("Failed to create server", log.FieldError, err.Error())
		os.Exit(1)
	}

	_, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting expensebook server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
