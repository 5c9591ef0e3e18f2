package remote

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"expensebook/internal/core"
)

// ErrorResponse is the structured error body the API answers with. Field
// validation failures arrive as a map of field name to messages instead.
type ErrorResponse struct {
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseError(op string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message, structured := errorMessage(data)

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if message == "" {
			message = "the request was rejected"
		}
		return core.ValidationError(op, message, nil)
	case http.StatusUnauthorized, http.StatusForbidden:
		if message == "" {
			message = "you are not allowed to do this, please log in again"
		}
		return core.AuthError(op, message)
	case http.StatusNotFound:
		if message == "" {
			message = "not found"
		}
		return core.NotFoundError(op, message)
	}

	cause := fmt.Errorf("unexpected status %d", resp.StatusCode)
	if structured {
		cause = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, message)
	}
	return core.NetworkError(op, cause)
}

// errorMessage extracts a human readable message and reports whether the body
// was a recognised JSON error document.
func errorMessage(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	var er ErrorResponse
	if err := json.Unmarshal(data, &er); err == nil {
		for _, m := range []string{er.Detail, er.Error, er.Message} {
			if m != "" {
				return m, true
			}
		}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || len(fields) == 0 {
		return "", false
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		var msgs []string
		if err := json.Unmarshal(fields[name], &msgs); err == nil && len(msgs) > 0 {
			parts = append(parts, name+": "+strings.Join(msgs, ", "))
			continue
		}
		var msg string
		if err := json.Unmarshal(fields[name], &msg); err == nil && msg != "" {
			parts = append(parts, name+": "+msg)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "; "), true
}
