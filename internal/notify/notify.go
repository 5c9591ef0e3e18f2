// Package notify carries informational alerts out of band. Alerts are never
// errors: a failing or full notifier must not fail the operation that raised
// the alert.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"expensebook/internal/log"
)

const (
	SourceServer    = "server"
	SourceDashboard = "dashboard"
)

// KindBudgetExceeded marks alerts raised when spending passes the budget.
const KindBudgetExceeded = "budget_exceeded"

// Alert is a user facing notice such as a budget threshold crossing. Kind
// names the condition independently of the message text, which may carry
// amounts.
type Alert struct {
	Email   string    `json:"email_address"`
	Kind    string    `json:"kind,omitempty"`
	Message string    `json:"message"`
	Source  string    `json:"source"`
	At      time.Time `json:"at"`
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, alert Alert) error

func (f NotifierFunc) Notify(ctx context.Context, alert Alert) error {
	return f(ctx, alert)
}

// Discard drops every alert.
var Discard Notifier = NotifierFunc(func(context.Context, Alert) error { return nil })

// Channel buffers alerts for an in-process consumer, such as a test or a
// program embedding the engine. The binaries deliver through Log and amqp.
type Channel struct {
	ch     chan Alert
	logger *log.Logger

	mu     sync.Mutex
	closed bool
}

func NewChannel(size int, logger *log.Logger) *Channel {
	if size <= 0 {
		size = 16
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Channel{ch: make(chan Alert, size), logger: logger.WithComponent(log.ComponentNotify)}
}

// Notify enqueues the alert, dropping it when the buffer is full.
func (c *Channel) Notify(ctx context.Context, alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("notify: channel closed")
	}
	select {
	case c.ch <- alert:
	default:
		c.logger.WarnContext(ctx, "Alert dropped, buffer full", log.FieldUser, alert.Email)
	}
	return nil
}

// Alerts is the receive side.
func (c *Channel) Alerts() <-chan Alert {
	return c.ch
}

// Drain returns the alerts currently buffered without blocking. After Close
// it returns what was left in the buffer.
func (c *Channel) Drain() []Alert {
	var out []Alert
	for {
		select {
		case a, ok := <-c.ch:
			if !ok {
				return out
			}
			out = append(out, a)
		default:
			return out
		}
	}
}

func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Log writes alerts to a logger.
type Log struct {
	logger *log.Logger
}

func NewLog(logger *log.Logger) *Log {
	return &Log{logger: logger.WithComponent(log.ComponentNotify)}
}

func (l *Log) Notify(ctx context.Context, alert Alert) error {
	l.logger.WarnContext(ctx, "Alert",
		log.FieldUser, alert.Email,
		"message", alert.Message,
		"source", alert.Source)
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
