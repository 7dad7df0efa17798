// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and encode; business rules live below.
package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "sigil/pkg/domain-errors"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError centralizes domain error translation to HTTP responses so every
// handler emits the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	message := "internal error"
	var dErr *dErrors.Error
	if errors.As(err, &dErr) && status < http.StatusInternalServerError {
		message = dErr.Message
	}
	writeJSON(w, status, map[string]string{
		"error":   string(code),
		"message": message,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return false
	}
	return true
}
