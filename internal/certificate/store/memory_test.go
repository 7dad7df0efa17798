package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"sigil/internal/certificate/models"
	"sigil/internal/certificate/store"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	store  *store.InMemory
	brand  id.BrandID
	expiry time.Time
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = store.NewInMemory()
	s.brand = id.BrandID(uuid.New())
	s.expiry = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.CreateStore(context.Background(), s.brand))
}

func (s *InMemorySuite) cert(cid string, seq uint64) *models.Certificate {
	return &models.Certificate{
		ID:             id.CertificateID(cid),
		ProductName:    "Widget",
		Origin:         "Lisbon",
		BatchCode:      "B1",
		MintDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiryDate:     s.expiry,
		SequenceNumber: seq,
	}
}

func (s *InMemorySuite) spec(code string, capacity uint64) models.BatchSpec {
	return models.BatchSpec{Code: code, Capacity: capacity, ExpiryDate: s.expiry}
}

func (s *InMemorySuite) TestCreateStore() {
	ctx := context.Background()

	s.Run("double create conflicts", func() {
		s.ErrorIs(s.store.CreateStore(ctx, s.brand), sentinel.ErrConflict)
	})

	s.Run("exists reflects creation", func() {
		exists, err := s.store.StoreExists(ctx, s.brand)
		s.NoError(err)
		s.True(exists)

		exists, err = s.store.StoreExists(ctx, id.BrandID(uuid.New()))
		s.NoError(err)
		s.False(exists)
	})
}

func (s *InMemorySuite) TestNextNonce() {
	ctx := context.Background()

	first, err := s.store.NextNonce(ctx, s.brand)
	s.Require().NoError(err)
	second, err := s.store.NextNonce(ctx, s.brand)
	s.Require().NoError(err)
	s.Equal(first+1, second)

	_, err = s.store.NextNonce(ctx, id.BrandID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestAppendBatch() {
	ctx := context.Background()

	s.Run("commit lands certs, ids, and batch together", func() {
		err := s.store.AppendBatch(ctx, s.brand, s.spec("B1", 10),
			[]*models.Certificate{s.cert("AAAAAAA1", 1), s.cert("AAAAAAA2", 2)})
		s.Require().NoError(err)

		has, err := s.store.HasCertificate(ctx, s.brand, "AAAAAAA1")
		s.NoError(err)
		s.True(has)

		ids, err := s.store.AllIDs(ctx, s.brand)
		s.NoError(err)
		s.Equal([]id.CertificateID{"AAAAAAA1", "AAAAAAA2"}, ids)

		batch, err := s.store.FindBatch(ctx, s.brand, "B1")
		s.Require().NoError(err)
		s.Equal(uint64(10), batch.Capacity)
		s.Equal(uint64(2), batch.CurrentCount)
		s.Equal(uint64(8), batch.Remaining())
		s.Equal(ids, batch.MemberIDs)
	})

	s.Run("append into existing batch accumulates", func() {
		err := s.store.AppendBatch(ctx, s.brand, s.spec("B1", 10),
			[]*models.Certificate{s.cert("AAAAAAA3", 3)})
		s.Require().NoError(err)

		batch, err := s.store.FindBatch(ctx, s.brand, "B1")
		s.Require().NoError(err)
		s.Equal(uint64(3), batch.CurrentCount)
	})

	s.Run("over capacity rejected atomically", func() {
		certs := make([]*models.Certificate, 8)
		for i := range certs {
			certs[i] = s.cert(fmt.Sprintf("AAAAAB%02d", i), uint64(4+i))
		}
		err := s.store.AppendBatch(ctx, s.brand, s.spec("B1", 10), certs)
		s.ErrorIs(err, sentinel.ErrConflict)

		batch, findErr := s.store.FindBatch(ctx, s.brand, "B1")
		s.Require().NoError(findErr)
		s.Equal(uint64(3), batch.CurrentCount, "rejected append must not partially land")
	})

	s.Run("duplicate id rejected", func() {
		err := s.store.AppendBatch(ctx, s.brand, s.spec("B2", 10),
			[]*models.Certificate{s.cert("AAAAAAA1", 1)})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("duplicate id within one call rejected", func() {
		err := s.store.AppendBatch(ctx, s.brand, s.spec("B2", 10),
			[]*models.Certificate{s.cert("AAAAAAB1", 1), s.cert("AAAAAAB1", 2)})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing store rejected", func() {
		err := s.store.AppendBatch(ctx, id.BrandID(uuid.New()), s.spec("B1", 10),
			[]*models.Certificate{s.cert("AAAAAAC1", 1)})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemorySuite) TestExecute() {
	ctx := context.Background()
	s.Require().NoError(s.store.AppendBatch(ctx, s.brand, s.spec("B1", 5),
		[]*models.Certificate{s.cert("AAAAAAA1", 1)}))

	s.Run("apply mutates and returns a copy", func() {
		out, err := s.store.Execute(ctx, s.brand, "AAAAAAA1",
			func(*models.Certificate) error { return nil },
			func(c *models.Certificate) { c.Used = true },
		)
		s.Require().NoError(err)
		s.True(out.Used)

		stored, err := s.store.FindCertificate(ctx, s.brand, "AAAAAAA1")
		s.Require().NoError(err)
		s.True(stored.Used)
	})

	s.Run("validate failure leaves state untouched", func() {
		_, err := s.store.Execute(ctx, s.brand, "AAAAAAA1",
			func(*models.Certificate) error { return sentinel.ErrExpired },
			func(c *models.Certificate) { c.Used = false },
		)
		s.ErrorIs(err, sentinel.ErrExpired)

		stored, findErr := s.store.FindCertificate(ctx, s.brand, "AAAAAAA1")
		s.Require().NoError(findErr)
		s.True(stored.Used)
	})

	s.Run("missing certificate", func() {
		_, err := s.store.Execute(ctx, s.brand, "ZZZZZZZZ",
			func(*models.Certificate) error { return nil },
			func(*models.Certificate) {},
		)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemorySuite) TestListIDs() {
	ctx := context.Background()
	certs := make([]*models.Certificate, 5)
	for i := range certs {
		certs[i] = s.cert(fmt.Sprintf("AAAAAAA%d", i+1), uint64(i+1))
	}
	s.Require().NoError(s.store.AppendBatch(ctx, s.brand, s.spec("B1", 10), certs))

	s.Run("middle page", func() {
		ids, err := s.store.ListIDs(ctx, s.brand, 1, 2)
		s.NoError(err)
		s.Equal([]id.CertificateID{"AAAAAAA2", "AAAAAAA3"}, ids)
	})

	s.Run("page past the end is clamped", func() {
		ids, err := s.store.ListIDs(ctx, s.brand, 3, 10)
		s.NoError(err)
		s.Len(ids, 2)
	})

	s.Run("offset beyond range is empty", func() {
		ids, err := s.store.ListIDs(ctx, s.brand, 99, 10)
		s.NoError(err)
		s.Empty(ids)
	})
}

func (s *InMemorySuite) TestBatchCodesAndSnapshot() {
	ctx := context.Background()
	s.Require().NoError(s.store.AppendBatch(ctx, s.brand, s.spec("B1", 5),
		[]*models.Certificate{s.cert("AAAAAAA1", 1)}))
	s.Require().NoError(s.store.AppendBatch(ctx, s.brand, s.spec("B2", 5),
		[]*models.Certificate{s.cert("AAAAAAA2", 1)}))

	codes, err := s.store.ListBatchCodes(ctx, s.brand)
	s.NoError(err)
	s.Equal([]string{"B1", "B2"}, codes)

	snapshot, err := s.store.Snapshot(ctx, s.brand)
	s.NoError(err)
	s.Require().Len(snapshot, 2)
	s.Equal(id.CertificateID("AAAAAAA1"), snapshot[0].ID)

	// Mutating the snapshot must not leak back into the store.
	snapshot[0].Used = true
	stored, err := s.store.FindCertificate(ctx, s.brand, "AAAAAAA1")
	s.Require().NoError(err)
	s.False(stored.Used)
}

func (s *InMemorySuite) TestReadsOnMissingStore() {
	ctx := context.Background()
	ghost := id.BrandID(uuid.New())

	has, err := s.store.HasCertificate(ctx, ghost, "AAAAAAA1")
	s.NoError(err)
	s.False(has)

	ids, err := s.store.AllIDs(ctx, ghost)
	s.NoError(err)
	s.Empty(ids)

	_, err = s.store.FindCertificate(ctx, ghost, "AAAAAAA1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindBatch(ctx, ghost, "B1")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
