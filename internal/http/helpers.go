package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"expensebook/internal/log"
)

const maxBodyBytes = 1 << 20

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes the {"detail": msg} body the client reads errors from.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeInternal logs err and answers 500 without leaking it.
func writeInternal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log.NewStructuredLogger(log.FromContext(r.Context())).
		LogError(r.Context(), msg, err, r.Pattern, nil)
	writeDetail(w, http.StatusInternalServerError, "Internal server error.")
}

// decodeJSON reads a single JSON object into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeDetail(w, http.StatusRequestEntityTooLarge, "Request body too large.")
		case errors.Is(err, io.EOF):
			writeDetail(w, http.StatusBadRequest, "Request body is required.")
		default:
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Malformed JSON: %v", err))
		}
		return false
	}
	return true
}

// authorize checks the bearer token and that it belongs to email. It writes
// 401 or 403 and returns false when the caller may not act for email.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, email string) (grant, bool) {
	token := bearerToken(r)
	if token == "" {
		writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return grant{}, false
	}
	g, ok := s.tokens.access(token)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired.")
		return grant{}, false
	}
	if email == "" {
		writeDetail(w, http.StatusBadRequest, "email_address is required.")
		return grant{}, false
	}
	if !strings.EqualFold(g.Email, email) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Token used for another user",
			log.FieldUser, g.Email, "requested", email)
		writeDetail(w, http.StatusForbidden, "You do not have permission to perform this action.")
		return grant{}, false
	}
	return g, true
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
