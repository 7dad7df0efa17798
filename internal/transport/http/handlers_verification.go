package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sigil/internal/verification"
	id "sigil/pkg/domain"
	"sigil/pkg/requestcontext"
)

// Verifier defines the verification engine operations the transport needs.
type Verifier interface {
	Scan(ctx context.Context, caller id.BrandID, certID id.CertificateID) (bool, error)
	VerifyAuthenticity(ctx context.Context, brand id.BrandID, certID id.CertificateID) (verification.Verdict, error)
	Consume(ctx context.Context, caller id.BrandID, certID id.CertificateID) (bool, error)
}

// VerificationHandler serves scan, spot-check, and consume routes. Scan and
// spot-check are open so consumers and third parties can verify; consume is
// authenticated and bound to the caller's own store.
type VerificationHandler struct {
	verifier Verifier
	logger   *slog.Logger
}

func NewVerificationHandler(verifier Verifier, logger *slog.Logger) *VerificationHandler {
	return &VerificationHandler{verifier: verifier, logger: logger}
}

type scanRequest struct {
	Brand         string `json:"brand"`
	CertificateID string `json:"certificate_id"`
}

// handleScan is the consumer scan: records the first scan when this is one,
// and answers whether the certificate verifies right now.
func (h *VerificationHandler) handleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req scanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	brand, certID, ok := parseScanTarget(w, req)
	if !ok {
		return
	}

	valid, err := h.verifier.Scan(ctx, brand, certID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// handleVerify is the pure spot check. It never mutates scan state.
func (h *VerificationHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand, err := id.ParseBrandID(chi.URLParam(r, "brand"))
	if err != nil {
		writeError(w, err)
		return
	}
	certID, err := id.ParseCertificateID(chi.URLParam(r, "certificateID"))
	if err != nil {
		writeError(w, err)
		return
	}

	verdict, err := h.verifier.VerifyAuthenticity(ctx, brand, certID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

type consumeRequest struct {
	CertificateID string `json:"certificate_id"`
}

// handleConsume marks a certificate in the authenticated brand's store as
// used. Responds with whether consumption happened.
func (h *VerificationHandler) handleConsume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand := id.BrandID(requestcontext.Principal(ctx))

	var req consumeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	certID, err := id.ParseCertificateID(req.CertificateID)
	if err != nil {
		writeError(w, err)
		return
	}

	consumed, err := h.verifier.Consume(ctx, brand, certID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"consumed": consumed})
}

func parseScanTarget(w http.ResponseWriter, req scanRequest) (id.BrandID, id.CertificateID, bool) {
	brand, err := id.ParseBrandID(req.Brand)
	if err != nil {
		writeError(w, err)
		return id.BrandID{}, "", false
	}
	certID, err := id.ParseCertificateID(req.CertificateID)
	if err != nil {
		writeError(w, err)
		return id.BrandID{}, "", false
	}
	return brand, certID, true
}
