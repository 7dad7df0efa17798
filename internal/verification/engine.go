// Package verification implements the scan-window state machine over
// certificate facts.
//
// Per certificate the states are Fresh (never scanned), FirstScanned
// (scan recorded, window open), and WindowExpired (scan recorded, window
// elapsed); orthogonally a certificate can be Used (consumed, terminal) or
// Expired (past its expiry date, terminal). Scan drives the single
// Fresh→FirstScanned transition; Consume drives the Used transition; every
// other entry point is a pure function of facts and the request time.
package verification

import (
	"context"
	"log/slog"
	"time"

	"sigil/internal/audit"
	"sigil/internal/verification/metrics"
	"sigil/internal/verification/ports"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/requestcontext"
)

// ScanWindow is how long after the first scan repeated scans still verify.
// A product decision, fixed for all brands and batches.
const ScanWindow = 24 * time.Hour

// Reason explains a verdict. The strings are part of the API surface:
// clients display them verbatim.
type Reason string

const (
	ReasonAlreadyUsed   Reason = "already used"
	ReasonExpired       Reason = "expired"
	ReasonNotFound      Reason = "not found"
	ReasonFirstScan     Reason = "first scan"
	ReasonWithinWindow  Reason = "within window"
	ReasonWindowExpired Reason = "window expired"
)

// Verdict is the engine's answer for one certificate at one instant.
type Verdict struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason"`
}

// FactsCache is an optional read-through cache of certificate facts for
// third-party spot checks. Facts are cached rather than verdicts because a
// verdict depends on the request time: a cached verdict would replay as
// valid past the expiry or window boundary, while cached facts are
// re-evaluated at every request's now. Cache failures never fail a
// verification.
type FactsCache interface {
	Get(ctx context.Context, brand id.BrandID, certID id.CertificateID) (*ports.CertificateFacts, error)
	Set(ctx context.Context, brand id.BrandID, certID id.CertificateID, facts ports.CertificateFacts) error
	Invalidate(ctx context.Context, brand id.BrandID, certID id.CertificateID) error
}

// Engine answers validity questions and performs the scan/consume
// transitions. It holds no certificate state.
type Engine struct {
	reader  ports.CertificateReader
	writer  ports.CertificateWriter
	cache   FactsCache
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   *audit.Publisher
}

// EngineOption configures optional engine dependencies.
type EngineOption func(*Engine)

func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func WithAuditPublisher(p *audit.Publisher) EngineOption {
	return func(e *Engine) { e.audit = p }
}

// WithFactsCache enables the read-through facts cache on the pure
// verification paths.
func WithFactsCache(c FactsCache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

func NewEngine(reader ports.CertificateReader, writer ports.CertificateWriter, opts ...EngineOption) *Engine {
	e := &Engine{reader: reader, writer: writer}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// evaluate computes the verdict from facts at now. Check order is fixed:
// used wins over expired, both win over scan-window state.
func evaluate(facts *ports.CertificateFacts, now time.Time) Verdict {
	switch {
	case facts == nil:
		return Verdict{Valid: false, Reason: ReasonNotFound}
	case facts.Used:
		return Verdict{Valid: false, Reason: ReasonAlreadyUsed}
	case !now.Before(facts.ExpiryDate):
		return Verdict{Valid: false, Reason: ReasonExpired}
	case facts.FirstScannedAt == nil:
		return Verdict{Valid: true, Reason: ReasonFirstScan}
	case now.Sub(*facts.FirstScannedAt) <= ScanWindow:
		return Verdict{Valid: true, Reason: ReasonWithinWindow}
	default:
		return Verdict{Valid: false, Reason: ReasonWindowExpired}
	}
}

// Scan verifies a certificate and records the first scan if this is one.
// Returns true while the certificate verifies: on the recording scan and on
// every repeat scan inside the window. Only the very first valid scan
// mutates state.
func (e *Engine) Scan(ctx context.Context, caller id.BrandID, certID id.CertificateID) (bool, error) {
	now := requestcontext.Now(ctx)
	facts, err := e.reader.Facts(ctx, caller, certID)
	if err != nil {
		return false, err
	}
	verdict := evaluate(facts, now)
	e.observe("scan", verdict)

	if verdict.Reason == ReasonFirstScan {
		if err := e.writer.RecordFirstScan(ctx, caller, certID, now); err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record first scan")
		}
		e.invalidate(ctx, caller, certID)
		e.audit.Emit(ctx, audit.Event{
			Action:        audit.ActionCertificateScanned,
			Brand:         caller.String(),
			CertificateID: string(certID),
		})
		e.logger.InfoContext(ctx, "first scan recorded",
			"brand", caller.String(),
			"certificate_id", string(certID),
		)
	}
	return verdict.Valid, nil
}

// IsValid answers the same question as Scan without mutating anything.
// Third-party spot checks use this so they cannot burn the first-scan
// transition.
func (e *Engine) IsValid(ctx context.Context, brand id.BrandID, certID id.CertificateID) (bool, error) {
	verdict, err := e.VerifyAuthenticity(ctx, brand, certID)
	if err != nil {
		return false, err
	}
	return verdict.Valid, nil
}

// VerifyAuthenticity returns the full verdict, pure. Cached facts still go
// through evaluate at this request's time, so a hit can never outlive the
// expiry date or the scan window.
func (e *Engine) VerifyAuthenticity(ctx context.Context, brand id.BrandID, certID id.CertificateID) (Verdict, error) {
	now := requestcontext.Now(ctx)

	if e.cache != nil {
		if cached, err := e.cache.Get(ctx, brand, certID); err != nil {
			e.logger.WarnContext(ctx, "facts cache read failed", "error", err)
		} else if cached != nil {
			verdict := evaluate(cached, now)
			e.observe("verify_cached", verdict)
			return verdict, nil
		}
	}

	facts, err := e.reader.Facts(ctx, brand, certID)
	if err != nil {
		return Verdict{}, err
	}
	verdict := evaluate(facts, now)
	e.observe("verify", verdict)

	if e.cache != nil && facts != nil {
		if err := e.cache.Set(ctx, brand, certID, *facts); err != nil {
			e.logger.WarnContext(ctx, "facts cache write failed", "error", err)
		}
	}
	return verdict, nil
}

// Consume irreversibly marks the certificate used if and only if it is
// currently valid. Returns whether consumption happened; an invalid
// certificate is left untouched. The writer's transition is the arbiter
// under concurrency: when two Consume calls race past the verdict check,
// the transition admits one and the loser reports false.
func (e *Engine) Consume(ctx context.Context, caller id.BrandID, certID id.CertificateID) (bool, error) {
	now := requestcontext.Now(ctx)
	facts, err := e.reader.Facts(ctx, caller, certID)
	if err != nil {
		return false, err
	}
	verdict := evaluate(facts, now)
	if !verdict.Valid {
		e.observe("consume_rejected", verdict)
		return false, nil
	}

	if err := e.writer.Consume(ctx, caller, certID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeAlreadyUsed) {
			e.observe("consume_rejected", Verdict{Valid: false, Reason: ReasonAlreadyUsed})
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume certificate")
	}
	e.invalidate(ctx, caller, certID)
	e.observe("consume", verdict)
	if e.metrics != nil {
		e.metrics.Consumed.Inc()
	}
	e.audit.Emit(ctx, audit.Event{
		Action:        audit.ActionCertificateConsumed,
		Brand:         caller.String(),
		CertificateID: string(certID),
	})
	e.logger.InfoContext(ctx, "certificate consumed",
		"brand", caller.String(),
		"certificate_id", string(certID),
	)
	return true, nil
}

func (e *Engine) invalidate(ctx context.Context, brand id.BrandID, certID id.CertificateID) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, brand, certID); err != nil {
		e.logger.WarnContext(ctx, "facts cache invalidation failed", "error", err)
	}
}

func (e *Engine) observe(op string, verdict Verdict) {
	if e.metrics != nil {
		e.metrics.Verdicts.WithLabelValues(op, string(verdict.Reason)).Inc()
	}
}
