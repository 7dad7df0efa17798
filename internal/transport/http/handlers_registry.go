package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sigil/internal/brand/models"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/requestcontext"
)

// RegistryService defines the registry operations the transport needs.
type RegistryService interface {
	InitRegistry(ctx context.Context, admin id.AdminID) error
	RegisterBrand(ctx context.Context, caller, registryAdmin id.AdminID, brand id.BrandID, displayName string) (*models.BrandRecord, error)
	GetBrandInfo(ctx context.Context, admin id.AdminID, brand id.BrandID) (*models.BrandRecord, error)
	GetBrandAddress(ctx context.Context, admin id.AdminID, name string) (id.BrandID, bool, error)
}

// RegistryHandler serves the brand registry routes. Mutations require an
// authenticated principal; queries are open.
type RegistryHandler struct {
	registry RegistryService
	logger   *slog.Logger
}

func NewRegistryHandler(registry RegistryService, logger *slog.Logger) *RegistryHandler {
	return &RegistryHandler{registry: registry, logger: logger}
}

type registerBrandRequest struct {
	BrandID     string `json:"brand_id"`
	DisplayName string `json:"display_name"`
}

type brandResponse struct {
	BrandID      string    `json:"brand_id"`
	DisplayName  string    `json:"display_name"`
	RegisteredAt time.Time `json:"registered_at"`
}

func toBrandResponse(brand id.BrandID, record *models.BrandRecord) brandResponse {
	return brandResponse{
		BrandID:      brand.String(),
		DisplayName:  record.DisplayName,
		RegisteredAt: record.RegisteredAt,
	}
}

// handleInitRegistry creates a registry owned by the authenticated principal.
func (h *RegistryHandler) handleInitRegistry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin := id.AdminID(requestcontext.Principal(ctx))

	if err := h.registry.InitRegistry(ctx, admin); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"admin": admin.String()})
}

// handleRegisterBrand registers a brand in the registry named by the path.
// The service rejects callers other than the registry owner.
func (h *RegistryHandler) handleRegisterBrand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := id.AdminID(requestcontext.Principal(ctx))

	registryAdmin, err := id.ParseAdminID(chi.URLParam(r, "admin"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req registerBrandRequest
	if !decodeBody(w, r, &req) {
		return
	}
	brand, err := id.ParseBrandID(req.BrandID)
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.registry.RegisterBrand(ctx, caller, registryAdmin, brand, req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBrandResponse(brand, record))
}

func (h *RegistryHandler) handleGetBrand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, err := id.ParseAdminID(chi.URLParam(r, "admin"))
	if err != nil {
		writeError(w, err)
		return
	}
	brand, err := id.ParseBrandID(chi.URLParam(r, "brand"))
	if err != nil {
		writeError(w, err)
		return
	}

	record, err := h.registry.GetBrandInfo(ctx, admin, brand)
	if err != nil {
		writeError(w, err)
		return
	}
	if record == nil {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "brand is not registered"))
		return
	}
	writeJSON(w, http.StatusOK, toBrandResponse(brand, record))
}

// handleResolveBrand looks a brand up by display name.
func (h *RegistryHandler) handleResolveBrand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, err := id.ParseAdminID(chi.URLParam(r, "admin"))
	if err != nil {
		writeError(w, err)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "name query parameter is required"))
		return
	}

	brand, found, err := h.registry.GetBrandAddress(ctx, admin, name)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, dErrors.New(dErrors.CodeNotFound, "no brand with that name"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"brand_id": brand.String()})
}
