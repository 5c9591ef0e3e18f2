// Package records is the client side repository for expense records.
//
// No operation returns data meant to patch local state: after every mutation
// the caller lists again to observe server truth.
package records

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expensebook/internal/core"
	"expensebook/internal/log"
	"expensebook/internal/notify"
)

// Doer is the subset of the remote client the repository needs.
type Doer interface {
	Do(ctx context.Context, method, path string, query url.Values, body, out any) error
}

// Fields are the editable values of a record as entered by the user.
type Fields struct {
	Category string
	Note     string
	Amount   string
	Time     string
	Date     string
}

// Repository lists and mutates the records of one identity.
type Repository struct {
	client   Doer
	notifier notify.Notifier
	logger   *log.Logger
}

func NewRepository(client Doer, notifier notify.Notifier, logger *log.Logger) *Repository {
	if notifier == nil {
		notifier = notify.Discard
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Repository{
		client:   client,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentRecords),
	}
}

// wireRecord is a record as the API serialises it.
type wireRecord struct {
	ID         int64          `json:"id"`
	User       any            `json:"user,omitempty"`
	RecordType string         `json:"record_type"`
	Category   string         `json:"category"`
	Note       string         `json:"note"`
	Amount     core.Amount    `json:"amount"`
	Time       core.TimeOfDay `json:"time"`
	Date       core.Date      `json:"date"`
}

// payload is the request body for create and update.
type payload struct {
	RecordType   string `json:"recordType"`
	Category     string `json:"category"`
	Note         string `json:"note"`
	Amount       string `json:"amount"`
	Time         string `json:"time"`
	Date         string `json:"date"`
	EmailAddress string `json:"email_address"`
}

type mutationResponse struct {
	Message string `json:"message"`
	Alert   string `json:"alert"`
}

// List returns every record owned by identity, in server order. Entries that
// cannot be decoded are skipped; entries with a malformed amount are kept
// with an invalid amount.
func (r *Repository) List(ctx context.Context, identity string) ([]core.ExpenseRecord, error) {
	const op = "records.list"
	if err := requireIdentity(op, identity); err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := r.client.Do(ctx, http.MethodPost, "/records/list/", nil,
		map[string]string{"email_address": identity}, &raw); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := make([]core.ExpenseRecord, 0, len(raw))
	for i, item := range raw {
		var w wireRecord
		if err := json.Unmarshal(item, &w); err != nil {
			r.logger.WarnContext(ctx, "Skipping undecodable record",
				log.FieldOperation, log.OpList, "index", i, log.FieldError, err.Error())
			continue
		}
		out = append(out, core.ExpenseRecord{
			ID:           w.ID,
			RecordType:   core.RecordType(w.RecordType),
			Category:     w.Category,
			Note:         w.Note,
			Amount:       w.Amount,
			Time:         w.Time,
			Date:         w.Date,
			EmailAddress: identity,
		})
	}
	return out, nil
}

// Create validates fields locally and stores a new record. An alert in the
// response is forwarded to the notifier; it never fails the call.
func (r *Repository) Create(ctx context.Context, identity string, f Fields) error {
	const op = "records.create"
	if err := requireIdentity(op, identity); err != nil {
		return err
	}
	body, err := f.payload(op, identity)
	if err != nil {
		return err
	}

	var resp mutationResponse
	if err := r.client.Do(ctx, http.MethodPost, "/records/create/", nil, body, &resp); err != nil {
		return fmt.Errorf("create record: %w", err)
	}

	r.logger.InfoContext(ctx, "Expense record created",
		log.NewFields().WithUser(identity).WithRecord(0, body.Category, body.Amount).ToSlice()...)

	if resp.Alert != "" {
		alert := notify.Alert{
			Email:   identity,
			Kind:    notify.KindBudgetExceeded,
			Message: resp.Alert,
			Source:  notify.SourceServer,
			At:      time.Now().UTC(),
		}
		if err := r.notifier.Notify(ctx, alert); err != nil {
			r.logger.WarnContext(ctx, "Failed to deliver alert", log.FieldError, err.Error())
		}
	}
	return nil
}

// Update replaces every editable field of record id.
func (r *Repository) Update(ctx context.Context, identity string, id int64, f Fields) error {
	const op = "records.update"
	if err := requireIdentity(op, identity); err != nil {
		return err
	}
	if id <= 0 {
		return core.ValidationError(op, "record id is required", nil)
	}
	body, err := f.payload(op, identity)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/records/update/%d/", id)
	if err := r.client.Do(ctx, http.MethodPut, path, nil, body, nil); err != nil {
		return fmt.Errorf("update record %d: %w", id, err)
	}
	r.logger.InfoContext(ctx, "Expense record updated",
		log.NewFields().WithUser(identity).WithRecord(id, body.Category, body.Amount).ToSlice()...)
	return nil
}

// Delete removes record id. Missing and foreign ids fail with a not found error.
func (r *Repository) Delete(ctx context.Context, identity string, id int64) error {
	const op = "records.delete"
	if err := requireIdentity(op, identity); err != nil {
		return err
	}
	if id <= 0 {
		return core.ValidationError(op, "record id is required", nil)
	}

	body := struct {
		EmailAddress string `json:"email_address"`
		ID           int64  `json:"id"`
	}{identity, id}
	if err := r.client.Do(ctx, http.MethodDelete, "/records/delete/", nil, body, nil); err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	r.logger.InfoContext(ctx, "Expense record deleted", log.FieldUser, identity, log.FieldRecordID, id)
	return nil
}

// Validate parses every field, returning the normalised record.
func (f Fields) Validate() (core.ExpenseRecord, error) {
	rec := core.ExpenseRecord{
		RecordType: core.RecordTypeExpense,
		Category:   strings.TrimSpace(f.Category),
		Note:       strings.TrimSpace(f.Note),
	}
	if err := core.ValidateCategory(rec.Category); err != nil {
		return rec, err
	}
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return rec, err
	}
	rec.Amount = core.NewAmount(amount)
	if rec.Time, err = core.ParseTimeOfDay(f.Time); err != nil {
		return rec, err
	}
	if rec.Date, err = core.ParseDate(f.Date); err != nil {
		return rec, err
	}
	return rec, nil
}

func (f Fields) payload(op, identity string) (payload, error) {
	rec, err := f.Validate()
	if err != nil {
		return payload{}, core.ValidationError(op, err.Error(), err)
	}
	return payload{
		RecordType:   string(rec.RecordType),
		Category:     rec.Category,
		Note:         rec.Note,
		Amount:       rec.Amount.String(),
		Time:         rec.Time.String(),
		Date:         rec.Date.String(),
		EmailAddress: identity,
	}, nil
}

func requireIdentity(op, identity string) error {
	if strings.TrimSpace(identity) == "" {
		return core.AuthError(op, "you are not signed in, please log in first")
	}
	return nil
}
