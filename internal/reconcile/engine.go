// Package reconcile owns the dashboard snapshot: the records and the latest
// budget of the signed-in user plus the comparison derived from them.
//
// Refresh is the only path that changes the snapshot. Mutations go through
// the repositories and end with a Refresh, so the snapshot always reflects
// server truth rather than locally patched collections.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"expensebook/internal/budgets"
	"expensebook/internal/core"
	"expensebook/internal/log"
	"expensebook/internal/notify"
	"expensebook/internal/records"
	"expensebook/internal/session"
)

// ExceededMessage is the alert raised when spending crosses the budget.
const ExceededMessage = "budget exceeded"

// Records is the record repository as the engine uses it.
type Records interface {
	List(ctx context.Context, identity string) ([]core.ExpenseRecord, error)
	Create(ctx context.Context, identity string, f records.Fields) error
	Update(ctx context.Context, identity string, id int64, f records.Fields) error
	Delete(ctx context.Context, identity string, id int64) error
}

// Budgets is the budget repository as the engine uses it.
type Budgets interface {
	Create(ctx context.Context, identity string, f budgets.Fields) (core.Budget, error)
	Latest(ctx context.Context, identity string) (core.Budget, bool, error)
}

// Snapshot is what the dashboard renders.
type Snapshot struct {
	Identity string
	Records  []core.ExpenseRecord
	// Budget is nil when the user has no budget.
	Budget *core.Budget

	TotalSpent decimal.Decimal
	// Skipped counts records left out of TotalSpent for a malformed amount.
	Skipped int

	// Comparison is nil when no budget exists or when records and budget
	// were not loaded by the same refresh.
	Comparison *core.Comparison
	// Degraded is set while records and budget come from different refreshes.
	Degraded bool

	// Seq is the refresh that last changed the snapshot; 0 means never loaded.
	Seq         uint64
	RefreshedAt time.Time
}

// Loaded reports whether any refresh has been applied.
func (s Snapshot) Loaded() bool {
	return s.Seq > 0
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Records != nil {
		out.Records = append([]core.ExpenseRecord(nil), s.Records...)
	}
	if s.Budget != nil {
		b := *s.Budget
		out.Budget = &b
	}
	if s.Comparison != nil {
		c := *s.Comparison
		out.Comparison = &c
	}
	return out
}

// Engine reconciles the two independently updated resources.
type Engine struct {
	sessions session.Store
	records  Records
	budgets  Budgets
	notifier notify.Notifier
	logger   *log.Logger
	now      func() time.Time

	nextSeq atomic.Uint64

	mu         sync.Mutex
	snap       Snapshot
	recordsSeq uint64
	budgetSeq  uint64
	exceeded   bool
}

func NewEngine(sessions session.Store, recs Records, buds Budgets, notifier notify.Notifier, logger *log.Logger) *Engine {
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Engine{
		sessions: sessions,
		records:  recs,
		budgets:  buds,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentReconcile),
		now:      time.Now,
		snap:     Snapshot{TotalSpent: decimal.Zero},
	}
}

// Snapshot returns a copy of the current snapshot.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.clone()
}

// Reset discards the snapshot, as when the view is left. Refreshes still in
// flight cannot resurrect it.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	seq := e.nextSeq.Load()
	e.snap = Snapshot{TotalSpent: decimal.Zero}
	e.recordsSeq, e.budgetSeq = seq, seq
	e.exceeded = false
}

type fetchResult struct {
	records   []core.ExpenseRecord
	budget    core.Budget
	hasBudget bool
	recErr    error
	budErr    error
}

// Refresh fetches records and the latest budget concurrently and applies
// whatever loaded. A failed fetch keeps the previous value of that resource.
// Failures are reported once, joined; the returned snapshot is the current
// one in every case.
func (e *Engine) Refresh(ctx context.Context) (Snapshot, error) {
	identity, err := session.Identity(ctx, e.sessions)
	if err != nil {
		return e.Snapshot(), err
	}

	seq := e.nextSeq.Add(1)
	start := e.now()
	res := e.fetch(ctx, identity)

	snap, alert, err := e.apply(seq, identity, res)
	if alert != nil {
		if nerr := e.notifier.Notify(ctx, *alert); nerr != nil {
			e.logger.WarnContext(ctx, "Failed to deliver alert", log.FieldError, nerr.Error())
		}
	}

	fields := log.NewFields().
		WithOperation(log.OpRefresh).
		WithUser(identity)
	fields[log.FieldRefreshSeq] = seq
	fields[log.FieldRecordCount] = len(snap.Records)
	fields[log.FieldSkipped] = snap.Skipped
	fields[log.FieldDuration] = e.now().Sub(start).Milliseconds()
	if err != nil {
		fields[log.FieldErrorKind] = core.KindOf(err).String()
		e.logger.WarnContext(ctx, "Refresh incomplete", fields.WithError(err).ToSlice()...)
	} else {
		e.logger.DebugContext(ctx, "Refresh applied", fields.ToSlice()...)
	}
	return snap, err
}

func (e *Engine) fetch(ctx context.Context, identity string) fetchResult {
	var (
		res fetchResult
		g   errgroup.Group
	)
	// Plain Group: one failing fetch must not cancel the other.
	g.Go(func() error {
		res.records, res.recErr = e.records.List(ctx, identity)
		return nil
	})
	g.Go(func() error {
		res.budget, res.hasBudget, res.budErr = e.budgets.Latest(ctx, identity)
		return nil
	})
	_ = g.Wait()
	return res
}

func (e *Engine) apply(seq uint64, identity string, res fetchResult) (Snapshot, *notify.Alert, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.snap.Identity != identity {
		if seq <= e.recordsSeq || seq <= e.budgetSeq {
			// Loaded for a previous identity and already superseded.
			return e.snap.clone(), nil, nil
		}
		e.snap = Snapshot{Identity: identity, TotalSpent: decimal.Zero}
		e.exceeded = false
	}

	var errs []error
	changed := false

	if res.recErr != nil {
		if seq > e.recordsSeq {
			errs = append(errs, fmt.Errorf("refresh records: %w", res.recErr))
		}
	} else if seq > e.recordsSeq {
		e.snap.Records = res.records
		e.recordsSeq = seq
		changed = true
	}

	if res.budErr != nil {
		if seq > e.budgetSeq {
			errs = append(errs, fmt.Errorf("refresh budget: %w", res.budErr))
		}
	} else if seq > e.budgetSeq {
		e.snap.Budget = nil
		if res.hasBudget {
			b := res.budget
			e.snap.Budget = &b
		}
		e.budgetSeq = seq
		changed = true
	}

	var alert *notify.Alert
	if changed {
		alert = e.derive(seq, identity)
	}
	return e.snap.clone(), alert, errors.Join(errs...)
}

// derive recomputes every derived value from scratch. Callers hold e.mu.
func (e *Engine) derive(seq uint64, identity string) *notify.Alert {
	e.snap.Identity = identity
	e.snap.Seq = seq
	e.snap.RefreshedAt = e.now().UTC()
	e.snap.TotalSpent, e.snap.Skipped = core.Total(e.snap.Records)

	consistent := e.recordsSeq == e.budgetSeq
	e.snap.Degraded = !consistent
	e.snap.Comparison = nil
	if !consistent || e.snap.Budget == nil {
		return nil
	}

	cmp := core.Compare(e.snap.TotalSpent, *e.snap.Budget)
	e.snap.Comparison = &cmp

	wasExceeded := e.exceeded
	e.exceeded = cmp.Exceeded
	if !cmp.Exceeded || wasExceeded {
		return nil
	}
	return &notify.Alert{
		Email:   identity,
		Kind:    notify.KindBudgetExceeded,
		Message: ExceededMessage,
		Source:  notify.SourceDashboard,
		At:      e.snap.RefreshedAt,
	}
}

// AddExpense creates a record and refreshes. On failure the snapshot is left
// untouched.
func (e *Engine) AddExpense(ctx context.Context, f records.Fields) (Snapshot, error) {
	return e.mutate(ctx, func(identity string) error {
		return e.records.Create(ctx, identity, f)
	})
}

// EditExpense replaces the fields of record id and refreshes.
func (e *Engine) EditExpense(ctx context.Context, id int64, f records.Fields) (Snapshot, error) {
	return e.mutate(ctx, func(identity string) error {
		return e.records.Update(ctx, identity, id, f)
	})
}

// DeleteExpense removes record id and refreshes.
func (e *Engine) DeleteExpense(ctx context.Context, id int64) (Snapshot, error) {
	return e.mutate(ctx, func(identity string) error {
		return e.records.Delete(ctx, identity, id)
	})
}

// SetBudget stores a budget and refreshes.
func (e *Engine) SetBudget(ctx context.Context, f budgets.Fields) (Snapshot, error) {
	return e.mutate(ctx, func(identity string) error {
		_, err := e.budgets.Create(ctx, identity, f)
		return err
	})
}

func (e *Engine) mutate(ctx context.Context, call func(identity string) error) (Snapshot, error) {
	identity, err := session.Identity(ctx, e.sessions)
	if err != nil {
		return e.Snapshot(), err
	}
	if err := call(identity); err != nil {
		return e.Snapshot(), err
	}
	return e.Refresh(ctx)
}
