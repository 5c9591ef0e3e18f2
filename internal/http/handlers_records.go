package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"expensebook/internal/core"
	"expensebook/internal/log"
	"expensebook/internal/notify"
	"expensebook/internal/storage"
)

// recordRequest is the body of create and update. Fields are strings so that
// missing values can be told apart from zero ones.
type recordRequest struct {
	RecordType   string `json:"recordType"`
	Category     string `json:"category"`
	Note         string `json:"note"`
	Amount       any    `json:"amount"`
	Time         string `json:"time"`
	Date         string `json:"date"`
	EmailAddress string `json:"email_address"`
}

// recordResponse mirrors how records are listed.
type recordResponse struct {
	ID         int64          `json:"id"`
	RecordType string         `json:"record_type"`
	Category   string         `json:"category"`
	Note       string         `json:"note"`
	Amount     core.Amount    `json:"amount"`
	Time       core.TimeOfDay `json:"time"`
	Date       core.Date      `json:"date"`
}

type emailRequest struct {
	EmailAddress string `json:"email_address"`
}

// toRecord validates the request, naming the first offending field.
func (in recordRequest) toRecord() (core.ExpenseRecord, error) {
	amount := scalar(in.Amount)
	required := []struct{ name, value string }{
		{"recordType", in.RecordType},
		{"category", in.Category},
		{"amount", amount},
		{"time", in.Time},
		{"date", in.Date},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return core.ExpenseRecord{}, fmt.Errorf("missing required field: %s", f.name)
		}
	}

	rec := core.ExpenseRecord{
		RecordType:   core.RecordType(strings.TrimSpace(in.RecordType)),
		Category:     sanitizeInput(in.Category),
		Note:         sanitizeInput(in.Note),
		EmailAddress: in.EmailAddress,
	}
	d, err := core.ParseAmount(amount)
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("amount: %w", err)
	}
	rec.Amount = core.NewAmount(d)
	if rec.Time, err = core.ParseTimeOfDay(in.Time); err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("time: %w", err)
	}
	if rec.Date, err = core.ParseDate(in.Date); err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("date: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}
	return rec, nil
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	g, ok := s.authorize(w, r, strings.TrimSpace(in.EmailAddress))
	if !ok {
		return
	}

	recs, err := s.store.ListRecords(r.Context(), g.UserID, g.Email)
	if err != nil {
		writeInternal(w, r, "Failed to list records", err)
		return
	}

	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordResponse{
			ID:         rec.ID,
			RecordType: string(rec.RecordType),
			Category:   rec.Category,
			Note:       rec.Note,
			Amount:     rec.Amount,
			Time:       rec.Time,
			Date:       rec.Date,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var in recordRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	g, ok := s.authorize(w, r, strings.TrimSpace(in.EmailAddress))
	if !ok {
		return
	}
	rec, err := in.toRecord()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	id, err := s.store.CreateRecord(r.Context(), g.UserID, rec)
	if err != nil {
		writeInternal(w, r, "Failed to create record", err)
		return
	}
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogRecordCreated(r.Context(), g.Email, id, rec.Category, rec.Amount.String())

	if msg := s.budgetAlert(r.Context(), g); msg != "" {
		alert := notify.Alert{
			Email:   g.Email,
			Kind:    notify.KindBudgetExceeded,
			Message: msg,
			Source:  notify.SourceServer,
			At:      time.Now().UTC(),
		}
		if err := s.notifier.Notify(r.Context(), alert); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to publish alert", log.FieldError, err.Error())
		}
		writeJSON(w, http.StatusCreated, map[string]string{"alert": msg})
		return
	}
	writeMessage(w, http.StatusCreated, "Record created successfully")
}

// budgetAlert returns the alert text when the user's total now exceeds the
// latest budget. Lookup failures only suppress the alert.
func (s *Server) budgetAlert(ctx context.Context, g grant) string {
	budget, err := s.store.LatestBudget(ctx, g.UserID, g.Email)
	if err != nil {
		if !errors.Is(err, storage.ErrBudgetNotFound) {
			log.FromContext(ctx).WarnContext(ctx, "Budget lookup failed", log.FieldError, err.Error())
		}
		return ""
	}
	recs, err := s.store.ListRecords(ctx, g.UserID, g.Email)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Total lookup failed", log.FieldError, err.Error())
		return ""
	}
	total, _ := core.Total(recs)
	cmp := core.Compare(total, budget)
	if !cmp.Exceeded {
		return ""
	}
	return fmt.Sprintf("Budget exceeded: spent %s of %s", cmp.TotalSpent.StringFixed(2), cmp.BudgetLimit.StringFixed(2))
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeDetail(w, http.StatusNotFound, "Record not found")
		return
	}

	var in recordRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	g, ok := s.authorize(w, r, strings.TrimSpace(in.EmailAddress))
	if !ok {
		return
	}
	rec, err := in.toRecord()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rec.ID = id

	err = s.store.UpdateRecord(r.Context(), g.UserID, rec)
	if errors.Is(err, storage.ErrRecordNotFound) {
		writeDetail(w, http.StatusNotFound, "Record not found")
		return
	}
	if err != nil {
		writeInternal(w, r, "Failed to update record", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense record updated",
		log.NewFields().WithUser(g.Email).WithRecord(id, rec.Category, rec.Amount.String()).WithOperation(log.OpUpdate).ToSlice()...)
	writeMessage(w, http.StatusOK, "Record updated successfully")
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	var in struct {
		EmailAddress string `json:"email_address"`
		ID           int64  `json:"id"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	g, ok := s.authorize(w, r, strings.TrimSpace(in.EmailAddress))
	if !ok {
		return
	}
	if in.ID <= 0 {
		writeDetail(w, http.StatusBadRequest, "Record ID missing")
		return
	}

	err := s.store.DeleteRecord(r.Context(), g.UserID, in.ID)
	if errors.Is(err, storage.ErrRecordNotFound) {
		writeDetail(w, http.StatusNotFound, "Record not found")
		return
	}
	if err != nil {
		writeInternal(w, r, "Failed to delete record", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Expense record deleted",
		log.FieldUser, g.Email, log.FieldRecordID, in.ID, log.FieldOperation, log.OpDelete)
	writeMessage(w, http.StatusOK, "Record deleted successfully")
}
