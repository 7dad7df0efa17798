package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	dErrors "sigil/pkg/domain-errors"
)

// TokenIssuer mints bearer tokens for a principal.
type TokenIssuer interface {
	GeneratePrincipalToken(principal uuid.UUID, expiresIn time.Duration) (string, error)
}

const tokenLifetime = time.Hour

// TokenHandler issues principal tokens. There is no credential exchange
// here: callers bring their account UUID and get a token bound to it, which
// is enough because authorization is ownership based (only the registry
// owner can register brands, only a store owner can mint into it). Deployers
// fronting this with real identity put their own issuer in place.
type TokenHandler struct {
	issuer TokenIssuer
	logger *slog.Logger
}

func NewTokenHandler(issuer TokenIssuer, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{issuer: issuer, logger: logger}
}

type tokenRequest struct {
	Principal string `json:"principal"`
}

func (h *TokenHandler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	principal, err := uuid.Parse(req.Principal)
	if err != nil || principal == uuid.Nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "principal must be a non-nil UUID"))
		return
	}

	token, err := h.issuer.GeneratePrincipalToken(principal, tokenLifetime)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue token", "error", err)
		writeError(w, dErrors.New(dErrors.CodeInternal, "failed to issue token"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(tokenLifetime.Seconds()),
	})
}
