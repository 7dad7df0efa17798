package verification_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"sigil/internal/audit"
	"sigil/internal/certificate/service"
	"sigil/internal/certificate/store"
	"sigil/internal/verification"
	"sigil/internal/verification/adapters"
	"sigil/internal/verification/ports"
	id "sigil/pkg/domain"
	"sigil/pkg/testutil"
)

type allowAllRegistry struct{}

func (allowAllRegistry) IsRegistered(context.Context, id.AdminID, id.BrandID) (bool, error) {
	return true, nil
}

// EngineSuite drives the scan-window state machine through the real
// certificate service so the transitions it records are the ones reads see.
type EngineSuite struct {
	suite.Suite
	engine   *verification.Engine
	certs    *service.CertificateService
	auditLog *audit.InMemoryStore
	brand    id.BrandID
	cid      id.CertificateID
	minted   time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.auditLog = audit.NewInMemoryStore()
	s.certs = service.NewCertificateService(store.NewInMemory(), allowAllRegistry{})
	adapter := adapters.NewCertificateAdapter(s.certs)
	s.engine = verification.NewEngine(adapter, adapter,
		verification.WithAuditPublisher(audit.NewPublisher(s.auditLog)),
	)

	s.brand = id.BrandID(uuid.New())
	s.minted = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ctx := s.at(s.minted)
	s.Require().NoError(s.certs.InitStore(ctx, s.brand))
	ids, err := s.certs.MintBatch(ctx, s.brand, id.AdminID(uuid.New()), service.MintBatchInput{
		ProductName: "Reserve Port 2019",
		Origin:      "Douro Valley",
		BatchCode:   "LOT-1",
		MintDate:    s.minted,
		ExpiryDate:  s.minted.AddDate(1, 0, 0),
		Quantity:    1,
	})
	s.Require().NoError(err)
	s.cid = ids[0]
}

func (s *EngineSuite) at(t time.Time) context.Context {
	return testutil.ContextAt(t)
}

// TestScanWindow walks one certificate through first scan, a repeat scan
// inside the window, and a scan after the window has elapsed.
func (s *EngineSuite) TestScanWindow() {
	firstScan := s.minted.Add(24 * time.Hour)

	s.Run("first scan verifies and records the instant", func() {
		valid, err := s.engine.Scan(s.at(firstScan), s.brand, s.cid)
		s.Require().NoError(err)
		s.True(valid)

		recorded, err := s.certs.GetFirstScannedAt(s.at(firstScan), s.brand, s.cid)
		s.Require().NoError(err)
		s.Require().NotNil(recorded)
		s.True(recorded.Equal(firstScan))
	})

	s.Run("repeat scan inside the window verifies", func() {
		at := firstScan.Add(verification.ScanWindow - time.Minute)
		valid, err := s.engine.Scan(s.at(at), s.brand, s.cid)
		s.Require().NoError(err)
		s.True(valid)
	})

	s.Run("the window boundary itself still verifies", func() {
		valid, err := s.engine.Scan(s.at(firstScan.Add(verification.ScanWindow)), s.brand, s.cid)
		s.Require().NoError(err)
		s.True(valid)
	})

	s.Run("scan after the window fails", func() {
		at := firstScan.Add(verification.ScanWindow + time.Second)
		valid, err := s.engine.Scan(s.at(at), s.brand, s.cid)
		s.Require().NoError(err)
		s.False(valid)
	})

	s.Run("repeat scans never move the recorded instant", func() {
		recorded, err := s.certs.GetFirstScannedAt(s.at(firstScan), s.brand, s.cid)
		s.Require().NoError(err)
		s.Require().NotNil(recorded)
		s.True(recorded.Equal(firstScan))
	})

	s.Run("only the first scan is audited", func() {
		scans := 0
		for _, e := range s.auditLog.All() {
			if e.Action == audit.ActionCertificateScanned {
				scans++
			}
		}
		s.Equal(1, scans)
	})
}

// TestConsume covers point-of-sale consumption: a valid certificate is
// consumed exactly once, and every later check reads "already used".
func (s *EngineSuite) TestConsume() {
	saleTime := s.minted.Add(48 * time.Hour)

	s.Run("valid certificate consumes", func() {
		consumed, err := s.engine.Consume(s.at(saleTime), s.brand, s.cid)
		s.Require().NoError(err)
		s.True(consumed)
	})

	s.Run("consumed certificate no longer verifies", func() {
		verdict, err := s.engine.VerifyAuthenticity(s.at(saleTime.Add(time.Minute)), s.brand, s.cid)
		s.Require().NoError(err)
		s.False(verdict.Valid)
		s.Equal(verification.ReasonAlreadyUsed, verdict.Reason)
	})

	s.Run("second consume is refused without error", func() {
		consumed, err := s.engine.Consume(s.at(saleTime.Add(time.Minute)), s.brand, s.cid)
		s.Require().NoError(err)
		s.False(consumed)
	})

	s.Run("scan of a consumed certificate fails", func() {
		valid, err := s.engine.Scan(s.at(saleTime.Add(time.Minute)), s.brand, s.cid)
		s.Require().NoError(err)
		s.False(valid)
	})

	s.Run("exactly one consume event is audited", func() {
		consumes := 0
		for _, e := range s.auditLog.All() {
			if e.Action == audit.ActionCertificateConsumed {
				consumes++
			}
		}
		s.Equal(1, consumes)
	})
}

func (s *EngineSuite) TestVerdicts() {
	s.Run("fresh certificate reads first scan without mutating", func() {
		verdict, err := s.engine.VerifyAuthenticity(s.at(s.minted.Add(time.Hour)), s.brand, s.cid)
		s.Require().NoError(err)
		s.True(verdict.Valid)
		s.Equal(verification.ReasonFirstScan, verdict.Reason)

		recorded, err := s.certs.GetFirstScannedAt(s.at(s.minted), s.brand, s.cid)
		s.NoError(err)
		s.Nil(recorded, "pure verification must not record a scan")
	})

	s.Run("unknown certificate reads not found", func() {
		verdict, err := s.engine.VerifyAuthenticity(s.at(s.minted), s.brand, "ZZZZZZZZ")
		s.Require().NoError(err)
		s.False(verdict.Valid)
		s.Equal(verification.ReasonNotFound, verdict.Reason)
	})

	s.Run("expired certificate reads expired", func() {
		at := s.minted.AddDate(1, 0, 1)
		verdict, err := s.engine.VerifyAuthenticity(s.at(at), s.brand, s.cid)
		s.Require().NoError(err)
		s.False(verdict.Valid)
		s.Equal(verification.ReasonExpired, verdict.Reason)
	})

	s.Run("scanned certificate reads within window then window expired", func() {
		scanAt := s.minted.Add(time.Hour)
		valid, err := s.engine.Scan(s.at(scanAt), s.brand, s.cid)
		s.Require().NoError(err)
		s.Require().True(valid)

		verdict, err := s.engine.VerifyAuthenticity(s.at(scanAt.Add(time.Hour)), s.brand, s.cid)
		s.Require().NoError(err)
		s.True(verdict.Valid)
		s.Equal(verification.ReasonWithinWindow, verdict.Reason)

		verdict, err = s.engine.VerifyAuthenticity(s.at(scanAt.Add(verification.ScanWindow+time.Second)), s.brand, s.cid)
		s.Require().NoError(err)
		s.False(verdict.Valid)
		s.Equal(verification.ReasonWindowExpired, verdict.Reason)
	})

	s.Run("used wins over expired", func() {
		s.Require().NoError(s.certs.MarkUsed(s.at(s.minted.Add(time.Hour)), s.brand, s.cid))

		at := s.minted.AddDate(2, 0, 0)
		verdict, err := s.engine.VerifyAuthenticity(s.at(at), s.brand, s.cid)
		s.Require().NoError(err)
		s.Equal(verification.ReasonAlreadyUsed, verdict.Reason)
	})
}

func (s *EngineSuite) TestExpiredCertificateCannotConsumeOrScan() {
	at := s.minted.AddDate(1, 0, 1)

	valid, err := s.engine.Scan(s.at(at), s.brand, s.cid)
	s.Require().NoError(err)
	s.False(valid)

	recorded, err := s.certs.GetFirstScannedAt(s.at(at), s.brand, s.cid)
	s.NoError(err)
	s.Nil(recorded, "failed scan must not record a first-scan instant")

	consumed, err := s.engine.Consume(s.at(at), s.brand, s.cid)
	s.Require().NoError(err)
	s.False(consumed)

	used, err := s.certs.IsUsed(s.at(at), s.brand, s.cid)
	s.NoError(err)
	s.False(used)
}

// TestConcurrentConsumeAdmitsOne races consume calls per certificate and
// checks the store transition admits exactly one winner; the losers report
// false without error.
func (s *EngineSuite) TestConcurrentConsumeAdmitsOne() {
	ctx := s.at(s.minted)
	ids, err := s.certs.MintBatch(ctx, s.brand, id.AdminID(uuid.New()), service.MintBatchInput{
		ProductName: "Reserve Port 2019",
		Origin:      "Douro Valley",
		BatchCode:   "LOT-2",
		MintDate:    s.minted,
		ExpiryDate:  s.minted.AddDate(1, 0, 0),
		Quantity:    50,
	})
	s.Require().NoError(err)

	const callers = 8
	saleTime := s.minted.Add(time.Hour)
	for _, cid := range ids {
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			consumed int
		)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.engine.Consume(s.at(saleTime), s.brand, cid)
				s.NoError(err)
				if ok {
					mu.Lock()
					consumed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		s.Equal(1, consumed, "certificate %s consumed more than once", cid)
	}
}

// TestConcurrentFirstScansKeepOneInstant races scans with different request
// times; the recorded first-scan instant must be one of them and must not
// move afterwards.
func (s *EngineSuite) TestConcurrentFirstScansKeepOneInstant() {
	early := s.minted.Add(time.Hour)
	late := early.Add(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		at := early
		if i%2 == 1 {
			at = late
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			valid, err := s.engine.Scan(s.at(at), s.brand, s.cid)
			s.NoError(err)
			s.True(valid)
		}()
	}
	wg.Wait()

	recorded, err := s.certs.GetFirstScannedAt(s.at(late), s.brand, s.cid)
	s.Require().NoError(err)
	s.Require().NotNil(recorded)
	s.True(recorded.Equal(early) || recorded.Equal(late))
	pinned := *recorded

	_, err = s.engine.Scan(s.at(late.Add(time.Hour)), s.brand, s.cid)
	s.Require().NoError(err)
	recorded, err = s.certs.GetFirstScannedAt(s.at(late), s.brand, s.cid)
	s.Require().NoError(err)
	s.Require().NotNil(recorded)
	s.True(recorded.Equal(pinned), "later scans must not move the first-scan instant")
}

// mapFactsCache is a deterministic in-process cache for exercising the
// engine's read-through path.
type mapFactsCache struct {
	mu      sync.Mutex
	entries map[string]ports.CertificateFacts
	hits    int
}

func newMapFactsCache() *mapFactsCache {
	return &mapFactsCache{entries: make(map[string]ports.CertificateFacts)}
}

func (c *mapFactsCache) key(brand id.BrandID, certID id.CertificateID) string {
	return brand.String() + "/" + string(certID)
}

func (c *mapFactsCache) Get(_ context.Context, brand id.BrandID, certID id.CertificateID) (*ports.CertificateFacts, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	facts, ok := c.entries[c.key(brand, certID)]
	if !ok {
		return nil, nil
	}
	c.hits++
	return &facts, nil
}

func (c *mapFactsCache) Set(_ context.Context, brand id.BrandID, certID id.CertificateID, facts ports.CertificateFacts) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(brand, certID)] = facts
	return nil
}

func (c *mapFactsCache) Invalidate(_ context.Context, brand id.BrandID, certID id.CertificateID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, c.key(brand, certID))
	return nil
}

func (c *mapFactsCache) hitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// TestCachedFactsReevaluateAtRequestTime pins the cache poisoning case: a
// hit cached while the certificate was valid must still read invalid once
// the request time crosses the expiry or the scan-window boundary.
func (s *EngineSuite) TestCachedFactsReevaluateAtRequestTime() {
	factsCache := newMapFactsCache()
	adapter := adapters.NewCertificateAdapter(s.certs)
	cached := verification.NewEngine(adapter, adapter,
		verification.WithFactsCache(factsCache),
	)

	s.Run("window boundary", func() {
		scanAt := s.minted.Add(time.Hour)
		valid, err := cached.Scan(s.at(scanAt), s.brand, s.cid)
		s.Require().NoError(err)
		s.Require().True(valid)

		justBefore := scanAt.Add(verification.ScanWindow)
		verdict, err := cached.VerifyAuthenticity(s.at(justBefore), s.brand, s.cid)
		s.Require().NoError(err)
		s.True(verdict.Valid)

		justAfter := scanAt.Add(verification.ScanWindow + time.Second)
		verdict, err = cached.VerifyAuthenticity(s.at(justAfter), s.brand, s.cid)
		s.Require().NoError(err)
		s.False(verdict.Valid)
		s.Equal(verification.ReasonWindowExpired, verdict.Reason)
		s.Positive(factsCache.hitCount(), "the second verify must be served from the cache")
	})

	s.Run("expiry boundary", func() {
		beforeExpiry := s.minted.AddDate(1, 0, 0).Add(-time.Minute)
		_, err := cached.VerifyAuthenticity(s.at(beforeExpiry), s.brand, s.cid)
		s.Require().NoError(err)

		afterExpiry := s.minted.AddDate(1, 0, 0)
		verdict, err := cached.VerifyAuthenticity(s.at(afterExpiry), s.brand, s.cid)
		s.Require().NoError(err)
		s.False(verdict.Valid)
		s.Equal(verification.ReasonExpired, verdict.Reason)
	})

	s.Run("consume invalidates the entry", func() {
		saleTime := s.minted.Add(2 * time.Hour)
		consumed, err := cached.Consume(s.at(saleTime), s.brand, s.cid)
		s.Require().NoError(err)
		s.Require().True(consumed)

		entry, err := factsCache.Get(context.Background(), s.brand, s.cid)
		s.Require().NoError(err)
		s.Nil(entry)

		verdict, err := cached.VerifyAuthenticity(s.at(saleTime.Add(time.Minute)), s.brand, s.cid)
		s.Require().NoError(err)
		s.Equal(verification.ReasonAlreadyUsed, verdict.Reason)
	})
}

func (s *EngineSuite) TestIsValidMatchesVerifyAuthenticity() {
	at := s.minted.Add(time.Hour)

	valid, err := s.engine.IsValid(s.at(at), s.brand, s.cid)
	s.Require().NoError(err)
	verdict, err := s.engine.VerifyAuthenticity(s.at(at), s.brand, s.cid)
	s.Require().NoError(err)
	s.Equal(verdict.Valid, valid)
}
