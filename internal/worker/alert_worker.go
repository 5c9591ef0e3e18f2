// Package worker consumes budget alerts published by the API and the clients.
package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"expensebook/internal/amqp"
	"expensebook/internal/cache"
	"expensebook/internal/log"
	"expensebook/internal/notify"
)

const (
	DefaultDedupWindow = 10 * time.Minute
	DefaultMaxAge      = 24 * time.Hour
	dedupCapacity      = 10000
)

// Config tunes an AlertWorker. Zero values take the defaults.
type Config struct {
	// DedupWindow suppresses repeats of the same alert for the same user.
	DedupWindow time.Duration
	// MaxAge drops alerts raised longer ago than this, e.g. after an outage.
	MaxAge time.Duration
}

// AlertWorker forwards each distinct alert to a sink once.
type AlertWorker struct {
	sink   notify.Notifier
	seen   *cache.LRUCache[time.Time]
	maxAge time.Duration
	logger *log.Logger
	now    func() time.Time

	processed *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

func NewAlertWorker(cfg Config, sink notify.Notifier, logger *log.Logger) *AlertWorker {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &AlertWorker{
		sink:   sink,
		seen:   cache.NewLRUCache[time.Time](dedupCapacity, cfg.DedupWindow),
		maxAge: cfg.MaxAge,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expensebook_alerts_processed_total",
			Help: "Alerts forwarded by the worker, by source.",
		}, []string{"source"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "expensebook_alerts_dropped_total",
			Help: "Alerts not forwarded, by reason.",
		}, []string{"reason"}),
	}
}

// Collectors returns the worker metrics for registration.
func (w *AlertWorker) Collectors() []prometheus.Collector {
	return []prometheus.Collector{w.processed, w.dropped}
}

// Cache exposes the dedup cache so a cache.Manager can sweep it.
func (w *AlertWorker) Cache() cache.Cleaner {
	return w.seen
}

// HandleAlert is the amqp consumer callback. Returning an error requeues the
// message, so only sink failures do.
func (w *AlertWorker) HandleAlert(ctx context.Context, msg *amqp.AlertMessage) error {
	alert := msg.Alert()
	fields := log.NewFields().WithUser(alert.Email).WithOperation(log.OpConsume)
	fields["source"] = alert.Source

	if !alert.At.IsZero() && w.now().Sub(alert.At) > w.maxAge {
		w.dropped.WithLabelValues("stale").Inc()
		w.logger.InfoContext(ctx, "Dropping stale alert", fields.ToSlice()...)
		return nil
	}

	key := dedupKey(alert)
	if _, dup := w.seen.Get(key); dup {
		w.dropped.WithLabelValues("duplicate").Inc()
		w.logger.DebugContext(ctx, "Dropping duplicate alert", fields.ToSlice()...)
		return nil
	}

	if err := w.sink.Notify(ctx, alert); err != nil {
		return fmt.Errorf("forward alert: %w", err)
	}
	w.seen.Set(key, w.now())
	w.processed.WithLabelValues(alert.Source).Inc()
	return nil
}

// dedupKey identifies an alert by its kind when it has one, so server alerts
// that embed changing totals still collapse. Untyped alerts fall back to the
// message text.
func dedupKey(a notify.Alert) string {
	what := a.Kind
	if what == "" {
		what = "msg:" + a.Message
	}
	return strings.ToLower(a.Email) + "|" + a.Source + "|" + what
}
