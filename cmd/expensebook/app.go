package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"expensebook/internal/auth"
	"expensebook/internal/budgets"
	"expensebook/internal/cli"
	"expensebook/internal/config"
	"expensebook/internal/log"
	"expensebook/internal/notify"
	"expensebook/internal/reconcile"
	"expensebook/internal/records"
	"expensebook/internal/remote"
	"expensebook/internal/session"
)

// app is the object graph behind every command. It is built once, on the
// first command that needs it.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	sessions session.Store
	client   *remote.Client
	auth     *auth.Service
	budgets  *budgets.Repository
	engine   *reconcile.Engine

	out     io.Writer
	closers []func() error
	once    sync.Once
}

func (a *app) ready() bool {
	return a.engine != nil
}

// init wires config, session store, remote client, repositories and engine.
func (a *app) init(out io.Writer) error {
	a.out = out
	if a.ready() {
		return nil
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger, err := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, nil)
	if err != nil {
		return err
	}
	sessions, closeSessions, err := cli.OpenSessionStore(cfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeSessions)

	notifier, closeNotifier, err := cli.AlertNotifier(cfg, logger)
	if err != nil {
		// The broker is a side channel; keep working without it.
		logger.Warn("Alert publishing disabled", log.FieldError, err.Error())
		notifier, closeNotifier = notify.NewLog(logger), func() error { return nil }
	}
	a.closers = append(a.closers, closeNotifier)

	return a.wire(cfg, logger, sessions, notifier)
}

func (a *app) wire(cfg *config.Config, logger *log.Logger, sessions session.Store, notifier notify.Notifier) error {
	client, err := remote.NewClient(remote.ClientConfig{
		BaseURL:            cfg.APIBaseURL,
		Timeout:            cfg.APITimeout,
		BreakerMaxFailures: uint32(cfg.BreakerMaxFailures),
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
		Token:              session.Token(sessions),
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	alerts := notify.Multi{notifier, notify.NotifierFunc(a.printAlert)}
	a.cfg = cfg
	a.logger = logger
	a.sessions = sessions
	a.client = client
	a.auth = auth.NewService(client, sessions, logger)
	a.budgets = budgets.NewRepository(client, logger)
	a.engine = reconcile.NewEngine(sessions,
		records.NewRepository(client, alerts, logger),
		a.budgets,
		alerts,
		logger)
	return nil
}

func (a *app) printAlert(_ context.Context, alert notify.Alert) error {
	if a.out == nil {
		return nil
	}
	_, err := fmt.Fprintf(a.out, "! %s\n", alert.Message)
	return err
}

func (a *app) close() {
	a.once.Do(func() {
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil && a.logger != nil {
				a.logger.Warn("Cleanup failed", log.FieldError, err.Error())
			}
		}
	})
}
