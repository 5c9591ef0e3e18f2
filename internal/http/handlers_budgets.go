package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"expensebook/internal/core"
	"expensebook/internal/log"
	"expensebook/internal/storage"
)

type budgetResponse struct {
	ID        int64     `json:"id"`
	Budget    string    `json:"budget"`
	Month     string    `json:"month"`
	Year      string    `json:"year"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:        b.ID,
		Budget:    b.Limit.StringFixed(2),
		Month:     b.Month,
		Year:      b.Year,
		UpdatedAt: b.UpdatedAt,
	}
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Budget       any    `json:"budget"`
		Month        any    `json:"month"`
		Year         any    `json:"year"`
		EmailAddress string `json:"email_address"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	g, ok := s.authorize(w, r, strings.TrimSpace(in.EmailAddress))
	if !ok {
		return
	}

	fieldErrors := map[string][]string{}
	limit, err := core.ParseAmount(scalar(in.Budget))
	if err != nil {
		fieldErrors["budget"] = []string{"A valid number is required."}
	}
	month, year := sanitizeInput(scalar(in.Month)), sanitizeInput(scalar(in.Year))
	if err := core.ValidatePeriod(month, year); err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyMonth), errors.Is(err, core.ErrMonthTooLong):
			fieldErrors["month"] = []string{err.Error()}
		default:
			fieldErrors["year"] = []string{err.Error()}
		}
	}
	if len(fieldErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, fieldErrors)
		return
	}

	b, err := s.store.UpsertBudget(r.Context(), g.UserID, core.Budget{Limit: limit, Month: month, Year: year, EmailAddress: g.Email})
	if err != nil {
		writeInternal(w, r, "Failed to save budget", err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Budget saved",
		log.FieldUser, g.Email, log.FieldMonth, month, log.FieldYear, year,
		log.FieldBudgetLimit, b.Limit.StringFixed(2))
	writeJSON(w, http.StatusOK, newBudgetResponse(b))
}

func (s *Server) handleLatestBudget(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email_address"))
	g, ok := s.authorize(w, r, email)
	if !ok {
		return
	}

	b, err := s.store.LatestBudget(r.Context(), g.UserID, g.Email)
	if errors.Is(err, storage.ErrBudgetNotFound) {
		writeDetail(w, http.StatusNotFound, "No budgets found")
		return
	}
	if err != nil {
		writeInternal(w, r, "Failed to load latest budget", err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetResponse(b))
}

// scalar renders a JSON string or number as text.
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
