// Package budgets is the client side repository for spending limits.
package budgets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensebook/internal/core"
	"expensebook/internal/log"
)

// Doer is the subset of the remote client the repository needs.
type Doer interface {
	Do(ctx context.Context, method, path string, query url.Values, body, out any) error
}

// Fields are the budget values as entered by the user.
type Fields struct {
	Budget string
	Month  string
	Year   string
}

type Repository struct {
	client Doer
	logger *log.Logger
}

func NewRepository(client Doer, logger *log.Logger) *Repository {
	if logger == nil {
		logger = log.Discard()
	}
	return &Repository{client: client, logger: logger.WithComponent(log.ComponentBudgets)}
}

// wireBudget is a budget as the API serialises it.
type wireBudget struct {
	ID        int64       `json:"id"`
	Budget    core.Amount `json:"budget"`
	Month     periodLabel `json:"month"`
	Year      periodLabel `json:"year"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// periodLabel is a month or year sent either as text or as a number.
type periodLabel string

func (p *periodLabel) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*p = ""
	case string:
		*p = periodLabel(t)
	case float64:
		*p = periodLabel(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		return fmt.Errorf("period label must be text or a number, got %s", b)
	}
	return nil
}

func (w wireBudget) toBudget(op, identity string) (core.Budget, error) {
	limit, ok := w.Budget.Value()
	if !ok {
		return core.Budget{}, core.BadResponseError(op, fmt.Errorf("malformed budget amount %q", w.Budget.Raw()))
	}
	return core.Budget{
		ID:           w.ID,
		Limit:        limit,
		Month:        string(w.Month),
		Year:         string(w.Year),
		EmailAddress: identity,
		UpdatedAt:    w.UpdatedAt,
	}, nil
}

// Create stores the limit for a month and year. The backend keeps one budget
// per period and makes the stored one the latest.
func (r *Repository) Create(ctx context.Context, identity string, f Fields) (core.Budget, error) {
	const op = "budgets.create"
	if strings.TrimSpace(identity) == "" {
		return core.Budget{}, core.AuthError(op, "you are not signed in, please log in first")
	}
	limit, err := f.Validate()
	if err != nil {
		return core.Budget{}, core.ValidationError(op, err.Error(), err)
	}

	body := map[string]string{
		"budget":        limit.StringFixed(2),
		"month":         strings.TrimSpace(f.Month),
		"year":          strings.TrimSpace(f.Year),
		"email_address": identity,
	}
	var resp wireBudget
	if err := r.client.Do(ctx, http.MethodPost, "/budgets/create/", nil, body, &resp); err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	b, err := resp.toBudget(op, identity)
	if err != nil {
		return core.Budget{}, err
	}

	r.logger.InfoContext(ctx, "Budget saved",
		log.FieldUser, identity, log.FieldMonth, b.Month, log.FieldYear, b.Year,
		log.FieldBudgetLimit, b.Limit.StringFixed(2))
	return b, nil
}

// Latest returns the most recently updated budget. ok is false when the user
// never set one; that is not an error.
func (r *Repository) Latest(ctx context.Context, identity string) (b core.Budget, ok bool, err error) {
	const op = "budgets.latest"
	if strings.TrimSpace(identity) == "" {
		return core.Budget{}, false, core.AuthError(op, "you are not signed in, please log in first")
	}

	var resp *wireBudget
	err = r.client.Do(ctx, http.MethodGet, "/budgets/last-update/",
		url.Values{"email_address": {identity}}, nil, &resp)
	if errors.Is(err, core.ErrNotFound) {
		return core.Budget{}, false, nil
	}
	if err != nil {
		return core.Budget{}, false, fmt.Errorf("latest budget: %w", err)
	}
	if resp == nil {
		return core.Budget{}, false, nil
	}
	b, err = resp.toBudget(op, identity)
	if err != nil {
		return core.Budget{}, false, err
	}
	return b, true, nil
}

// Validate parses the limit and checks the period labels.
func (f Fields) Validate() (decimal.Decimal, error) {
	limit, err := core.ParseAmount(f.Budget)
	if err != nil {
		return decimal.Zero, err
	}
	if err := core.ValidatePeriod(f.Month, f.Year); err != nil {
		return decimal.Zero, err
	}
	return limit, nil
}
