// Package requesttime pins one "now" per HTTP request. All ledger decisions
// within a request (expiry checks, scan-window math, timestamps written to
// state) observe the same instant.
package requesttime

import (
	"net/http"
	"time"

	"sigil/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
