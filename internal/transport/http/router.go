package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sigil/internal/audit"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	authmw "sigil/pkg/platform/middleware/auth"
	"sigil/pkg/platform/middleware/requesttime"
	"sigil/pkg/requestcontext"
)

// Deps are the services the router wires routes onto.
type Deps struct {
	Logger       *slog.Logger
	Registry     RegistryService
	Certificates CertificateService
	Verifier     Verifier
	Tokens       TokenIssuer
	Validator    authmw.TokenValidator
	Audit        *audit.Publisher
}

// NewRouter wires all public endpoints. Mutating routes require a bearer
// token; query routes are open so any party can verify a product.
func NewRouter(deps Deps) http.Handler {
	registry := NewRegistryHandler(deps.Registry, deps.Logger)
	certs := NewCertificateHandler(deps.Certificates, deps.Logger)
	verify := NewVerificationHandler(deps.Verifier, deps.Logger)
	tokens := NewTokenHandler(deps.Tokens, deps.Logger)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestID)
	r.Use(requesttime.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/auth/token", tokens.handleIssueToken)

	requireAuth := authmw.RequirePrincipal(deps.Validator, deps.Logger)

	// Brand registry.
	r.Route("/registry", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", registry.handleInitRegistry)
			r.Post("/{admin}/brands", registry.handleRegisterBrand)
		})
		r.Get("/{admin}/brands/{brand}", registry.handleGetBrand)
		r.Get("/{admin}/brands", registry.handleResolveBrand)
	})

	// Certificate stores.
	r.Route("/stores", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", certs.handleInitStore)
			r.Post("/batches", certs.handleMintBatch)
		})
		r.Get("/{brand}/certificates", certs.handleListCertificates)
		r.Get("/{brand}/certificates/{certificateID}", certs.handleGetCertificate)
		r.Get("/{brand}/certificates/{certificateID}/expiry", certs.handleGetExpiry)
		r.Get("/{brand}/certificates/{certificateID}/integrity", certs.handleVerifyIntegrity)
		r.Get("/{brand}/batches", certs.handleListBatches)
		r.Get("/{brand}/batches/{code}", certs.handleGetBatch)
		r.Get("/{brand}/expiry-report", certs.handleExpiryReport)
		r.Get("/{brand}/audit", auditTrailHandler(deps.Audit))
	})

	// Verification.
	r.Post("/verify/scan", verify.handleScan)
	r.Get("/verify/{brand}/{certificateID}", verify.handleVerify)
	r.With(requireAuth).Post("/verify/consume", verify.handleConsume)

	return r
}

// requestID honors an inbound X-Request-ID and otherwise assigns one, so
// log lines and audit events correlate across services.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func auditTrailHandler(publisher *audit.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		brand, err := id.ParseBrandID(chi.URLParam(r, "brand"))
		if err != nil {
			writeError(w, err)
			return
		}
		events, err := publisher.List(r.Context(), brand.String())
		if err != nil {
			writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	}
}
