package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sigil/internal/certificate/models"
	"sigil/internal/certificate/service"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/requestcontext"
)

// CertificateService defines the certificate store operations the transport
// needs.
type CertificateService interface {
	InitStore(ctx context.Context, caller id.BrandID) error
	MintBatch(ctx context.Context, caller id.BrandID, registryAdmin id.AdminID, input service.MintBatchInput) ([]id.CertificateID, error)
	GetCertificate(ctx context.Context, brand id.BrandID, certID id.CertificateID) (*models.Certificate, error)
	GetTimeUntilExpiry(ctx context.Context, brand id.BrandID, certID id.CertificateID) (time.Duration, error)
	ListIDs(ctx context.Context, brand id.BrandID, offset, limit int) ([]id.CertificateID, error)
	GetBatchInfo(ctx context.Context, brand id.BrandID, batchCode string) (*models.Batch, error)
	ListBatchCodes(ctx context.Context, brand id.BrandID) ([]string, error)
	GetExpiredIDs(ctx context.Context, brand id.BrandID) ([]id.CertificateID, error)
	GetIDsExpiringWithin(ctx context.Context, brand id.BrandID, window time.Duration) ([]id.CertificateID, error)
	VerifyIntegrity(ctx context.Context, brand id.BrandID, certID id.CertificateID) (bool, error)
}

// CertificateHandler serves the certificate store routes.
type CertificateHandler struct {
	certs  CertificateService
	logger *slog.Logger
}

func NewCertificateHandler(certs CertificateService, logger *slog.Logger) *CertificateHandler {
	return &CertificateHandler{certs: certs, logger: logger}
}

type mintBatchRequest struct {
	RegistryAdmin string    `json:"registry_admin"`
	ProductName   string    `json:"product_name"`
	Origin        string    `json:"origin"`
	BatchCode     string    `json:"batch_code"`
	MintDate      time.Time `json:"mint_date"`
	ExpiryDate    time.Time `json:"expiry_date"`
	Quantity      uint64    `json:"quantity"`
	Capacity      uint64    `json:"capacity,omitempty"`
}

type certificateResponse struct {
	ID             string     `json:"id"`
	ProductName    string     `json:"product_name"`
	Origin         string     `json:"origin"`
	BatchCode      string     `json:"batch_code"`
	MintDate       time.Time  `json:"mint_date"`
	ExpiryDate     time.Time  `json:"expiry_date"`
	SequenceNumber uint64     `json:"sequence_number"`
	Used           bool       `json:"used"`
	FirstScannedAt *time.Time `json:"first_scanned_at,omitempty"`
}

// handleInitStore creates a certificate store for the authenticated brand.
func (h *CertificateHandler) handleInitStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand := id.BrandID(requestcontext.Principal(ctx))

	if err := h.certs.InitStore(ctx, brand); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"brand": brand.String()})
}

// handleMintBatch mints certificates into the authenticated brand's store.
func (h *CertificateHandler) handleMintBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand := id.BrandID(requestcontext.Principal(ctx))

	var req mintBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	registryAdmin, err := id.ParseAdminID(req.RegistryAdmin)
	if err != nil {
		writeError(w, err)
		return
	}

	ids, err := h.certs.MintBatch(ctx, brand, registryAdmin, service.MintBatchInput{
		ProductName: req.ProductName,
		Origin:      req.Origin,
		BatchCode:   req.BatchCode,
		MintDate:    req.MintDate,
		ExpiryDate:  req.ExpiryDate,
		Quantity:    req.Quantity,
		Capacity:    req.Capacity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"batch_code":      req.BatchCode,
		"certificate_ids": ids,
	})
}

func (h *CertificateHandler) handleGetCertificate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand, certID, ok := h.pathIdentity(w, r)
	if !ok {
		return
	}

	cert, err := h.certs.GetCertificate(ctx, brand, certID)
	if err != nil {
		writeError(w, err)
		return
	}
	if cert == nil {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "certificate not found"))
		return
	}
	writeJSON(w, http.StatusOK, certificateResponse{
		ID:             string(cert.ID),
		ProductName:    cert.ProductName,
		Origin:         cert.Origin,
		BatchCode:      cert.BatchCode,
		MintDate:       cert.MintDate,
		ExpiryDate:     cert.ExpiryDate,
		SequenceNumber: cert.SequenceNumber,
		Used:           cert.Used,
		FirstScannedAt: cert.FirstScannedAt,
	})
}

func (h *CertificateHandler) handleGetExpiry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand, certID, ok := h.pathIdentity(w, r)
	if !ok {
		return
	}

	cert, err := h.certs.GetCertificate(ctx, brand, certID)
	if err != nil {
		writeError(w, err)
		return
	}
	if cert == nil {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "certificate not found"))
		return
	}
	remaining, err := h.certs.GetTimeUntilExpiry(ctx, brand, certID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"expiry_date":       cert.ExpiryDate,
		"expired":           !requestcontext.Now(ctx).Before(cert.ExpiryDate),
		"remaining_seconds": int64(remaining.Seconds()),
	})
}

func (h *CertificateHandler) handleVerifyIntegrity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand, certID, ok := h.pathIdentity(w, r)
	if !ok {
		return
	}

	intact, err := h.certs.VerifyIntegrity(ctx, brand, certID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"intact": intact})
}

// handleListCertificates pages through a store's certificate IDs in mint order.
func (h *CertificateHandler) handleListCertificates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand, err := id.ParseBrandID(chi.URLParam(r, "brand"))
	if err != nil {
		writeError(w, err)
		return
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 100)

	ids, err := h.certs.ListIDs(ctx, brand, offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"certificate_ids": ids,
		"offset":          offset,
		"count":           len(ids),
	})
}

func (h *CertificateHandler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand, err := id.ParseBrandID(chi.URLParam(r, "brand"))
	if err != nil {
		writeError(w, err)
		return
	}
	code := chi.URLParam(r, "code")

	batch, err := h.certs.GetBatchInfo(ctx, brand, code)
	if err != nil {
		writeError(w, err)
		return
	}
	if batch == nil {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "batch not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batch_code":      batch.Code,
		"capacity":        batch.Capacity,
		"current_count":   batch.CurrentCount,
		"remaining":       batch.Remaining(),
		"expiry_date":     batch.ExpiryDate,
		"certificate_ids": batch.MemberIDs,
	})
}

func (h *CertificateHandler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand, err := id.ParseBrandID(chi.URLParam(r, "brand"))
	if err != nil {
		writeError(w, err)
		return
	}

	codes, err := h.certs.ListBatchCodes(ctx, brand)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batch_codes": codes})
}

// handleExpiryReport returns expired IDs, or IDs expiring within the
// optional ?within= duration.
func (h *CertificateHandler) handleExpiryReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	brand, err := id.ParseBrandID(chi.URLParam(r, "brand"))
	if err != nil {
		writeError(w, err)
		return
	}

	if raw := r.URL.Query().Get("within"); raw != "" {
		window, err := time.ParseDuration(raw)
		if err != nil || window <= 0 {
			writeError(w, dErrors.New(dErrors.CodeInvalidInput, "within must be a positive duration"))
			return
		}
		ids, err := h.certs.GetIDsExpiringWithin(ctx, brand, window)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"certificate_ids": ids, "within": raw})
		return
	}

	ids, err := h.certs.GetExpiredIDs(ctx, brand)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"certificate_ids": ids})
}

func (h *CertificateHandler) pathIdentity(w http.ResponseWriter, r *http.Request) (id.BrandID, id.CertificateID, bool) {
	brand, err := id.ParseBrandID(chi.URLParam(r, "brand"))
	if err != nil {
		writeError(w, err)
		return id.BrandID{}, "", false
	}
	certID, err := id.ParseCertificateID(chi.URLParam(r, "certificateID"))
	if err != nil {
		writeError(w, err)
		return id.BrandID{}, "", false
	}
	return brand, certID, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
