package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"sigil/pkg/requestcontext"
)

// Claims is the validated identity the middleware hands to handlers.
// Principal is the caller's account UUID; which role it plays (registry
// admin, brand owner) is decided by the service the handler calls.
type Claims struct {
	Principal uuid.UUID
	JTI       string
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":%q,"error_description":%q}`, errCode, errDesc))
}

// RequirePrincipal rejects requests without a valid bearer token and puts
// the authenticated principal into the request context. Mutating ledger
// routes sit behind this; read routes stay open so any party can query.
func RequirePrincipal(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			ctx := requestcontext.WithPrincipal(r.Context(), claims.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
