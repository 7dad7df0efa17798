package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"sigil/internal/brand/models"
	"sigil/internal/brand/store"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	store *store.InMemory
	admin id.AdminID
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = store.NewInMemory()
	s.admin = id.AdminID(uuid.New())
}

func (s *InMemorySuite) record(name string) *models.BrandRecord {
	s.T().Helper()
	record, err := models.NewBrandRecord(id.BrandID(uuid.New()), name, time.Now())
	s.Require().NoError(err)
	return record
}

func (s *InMemorySuite) TestCreateRegistry() {
	ctx := context.Background()

	s.Run("first create succeeds", func() {
		s.NoError(s.store.CreateRegistry(ctx, s.admin))

		exists, err := s.store.RegistryExists(ctx, s.admin)
		s.NoError(err)
		s.True(exists)
	})

	s.Run("second create conflicts", func() {
		err := s.store.CreateRegistry(ctx, s.admin)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown admin does not exist", func() {
		exists, err := s.store.RegistryExists(ctx, id.AdminID(uuid.New()))
		s.NoError(err)
		s.False(exists)
	})
}

func (s *InMemorySuite) TestRegisterBrand() {
	ctx := context.Background()
	s.Require().NoError(s.store.CreateRegistry(ctx, s.admin))

	record := s.record("Acme")
	s.Require().NoError(s.store.RegisterBrand(ctx, s.admin, record))

	s.Run("lookup by id", func() {
		found, err := s.store.FindBrand(ctx, s.admin, record.ID)
		s.Require().NoError(err)
		s.Equal(record.DisplayName, found.DisplayName)
	})

	s.Run("lookup by name", func() {
		found, err := s.store.FindBrandByName(ctx, s.admin, "Acme")
		s.Require().NoError(err)
		s.Equal(record.ID, found.ID)
	})

	s.Run("name lookup is case insensitive", func() {
		found, err := s.store.FindBrandByName(ctx, s.admin, "aCmE")
		s.Require().NoError(err)
		s.Equal(record.ID, found.ID)
	})

	s.Run("duplicate brand id conflicts", func() {
		dup, err := models.NewBrandRecord(record.ID, "Other Name", time.Now())
		s.Require().NoError(err)
		s.ErrorIs(s.store.RegisterBrand(ctx, s.admin, dup), sentinel.ErrConflict)
	})

	s.Run("duplicate display name conflicts", func() {
		s.ErrorIs(s.store.RegisterBrand(ctx, s.admin, s.record("acme")), sentinel.ErrConflict)
	})

	s.Run("missing registry rejects", func() {
		err := s.store.RegisterBrand(ctx, id.AdminID(uuid.New()), s.record("Lonely"))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemorySuite) TestRegistriesAreIsolated() {
	ctx := context.Background()
	other := id.AdminID(uuid.New())
	s.Require().NoError(s.store.CreateRegistry(ctx, s.admin))
	s.Require().NoError(s.store.CreateRegistry(ctx, other))

	record := s.record("Acme")
	s.Require().NoError(s.store.RegisterBrand(ctx, s.admin, record))

	s.Run("brand invisible in the other registry", func() {
		_, err := s.store.FindBrand(ctx, other, record.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("same name usable in the other registry", func() {
		s.NoError(s.store.RegisterBrand(ctx, other, s.record("Acme")))
	})
}

func (s *InMemorySuite) TestFindOnMissingRegistry() {
	ctx := context.Background()

	_, err := s.store.FindBrand(ctx, s.admin, id.BrandID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindBrandByName(ctx, s.admin, "Nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
