package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebook/internal/amqp"
	"expensebook/internal/notify"
)

type recordingSink struct {
	mu     sync.Mutex
	alerts []notify.Alert
	err    error
}

func (s *recordingSink) Notify(_ context.Context, a notify.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

var now = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

func newWorker(sink notify.Notifier) *AlertWorker {
	w := NewAlertWorker(Config{}, sink, nil)
	w.now = func() time.Time { return now }
	return w
}

func message(email, text string, at time.Time) *amqp.AlertMessage {
	return &amqp.AlertMessage{Email: email, Message: text, Source: notify.SourceServer, RaisedAt: at, Timestamp: at}
}

func counterValue(t *testing.T, w *AlertWorker, name, label string) float64 {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(w.Collectors()...)
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestHandleAlert_ForwardsOnce(t *testing.T) {
	sink := &recordingSink{}
	w := newWorker(sink)
	ctx := context.Background()

	require.NoError(t, w.HandleAlert(ctx, message("a@b.co", "Budget exceeded", now)))
	require.NoError(t, w.HandleAlert(ctx, message("A@B.co", "Budget exceeded", now)))
	require.NoError(t, w.HandleAlert(ctx, message("c@d.co", "Budget exceeded", now)))

	assert.Equal(t, 2, sink.count())
	assert.Equal(t, float64(2), counterValue(t, w, "expensebook_alerts_processed_total", notify.SourceServer))
	assert.Equal(t, float64(1), counterValue(t, w, "expensebook_alerts_dropped_total", "duplicate"))
}

func TestHandleAlert_DedupsByKind(t *testing.T) {
	sink := &recordingSink{}
	w := newWorker(sink)
	ctx := context.Background()

	first := message("a@b.co", "Budget exceeded: spent 120.00 of 100.00", now)
	first.Kind = notify.KindBudgetExceeded
	second := message("a@b.co", "Budget exceeded: spent 135.50 of 100.00", now)
	second.Kind = notify.KindBudgetExceeded

	require.NoError(t, w.HandleAlert(ctx, first))
	require.NoError(t, w.HandleAlert(ctx, second))
	assert.Equal(t, 1, sink.count(), "a growing total is the same alert")

	// Alerts without a kind are still told apart by their text.
	require.NoError(t, w.HandleAlert(ctx, message("a@b.co", "spent 1", now)))
	require.NoError(t, w.HandleAlert(ctx, message("a@b.co", "spent 2", now)))
	assert.Equal(t, 3, sink.count())
}

func TestHandleAlert_DropsStale(t *testing.T) {
	sink := &recordingSink{}
	w := newWorker(sink)

	require.NoError(t, w.HandleAlert(context.Background(), message("a@b.co", "old", now.Add(-48*time.Hour))))
	assert.Zero(t, sink.count())
	assert.Equal(t, float64(1), counterValue(t, w, "expensebook_alerts_dropped_total", "stale"))
}

func TestHandleAlert_SinkFailureRequeues(t *testing.T) {
	sink := &recordingSink{err: errors.New("down")}
	w := newWorker(sink)
	msg := message("a@b.co", "Budget exceeded", now)

	err := w.HandleAlert(context.Background(), msg)
	assert.ErrorContains(t, err, "forward alert")

	// A failed delivery is not remembered as seen.
	sink.err = nil
	require.NoError(t, w.HandleAlert(context.Background(), msg))
	assert.Equal(t, 1, sink.count())
}

func TestCacheSweepable(t *testing.T) {
	w := newWorker(&recordingSink{})
	require.NoError(t, w.HandleAlert(context.Background(), message("a@b.co", "x", now)))
	assert.Equal(t, 0, w.Cache().CleanExpired())
}
