//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"sigil/internal/verification/cache"
	"sigil/internal/verification/ports"
	id "sigil/pkg/domain"
	"sigil/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisCache
	brand id.BrandID
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = cache.NewRedisCache(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.brand = id.BrandID(uuid.New())
}

func (s *RedisCacheSuite) facts() ports.CertificateFacts {
	scanned := time.Now().UTC().Truncate(time.Millisecond)
	return ports.CertificateFacts{
		ExpiryDate:     scanned.Add(365 * 24 * time.Hour),
		FirstScannedAt: &scanned,
	}
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	facts := s.facts()

	s.Require().NoError(s.cache.Set(ctx, s.brand, "AAAAAAA1", facts))

	got, err := s.cache.Get(ctx, s.brand, "AAAAAAA1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(facts.Used, got.Used)
	s.True(got.ExpiryDate.Equal(facts.ExpiryDate))
	s.Require().NotNil(got.FirstScannedAt)
	s.True(got.FirstScannedAt.Equal(*facts.FirstScannedAt))
}

func (s *RedisCacheSuite) TestNilScanTimeSurvives() {
	ctx := context.Background()
	facts := ports.CertificateFacts{ExpiryDate: time.Now().UTC().Add(time.Hour)}

	s.Require().NoError(s.cache.Set(ctx, s.brand, "AAAAAAA1", facts))

	got, err := s.cache.Get(ctx, s.brand, "AAAAAAA1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Nil(got.FirstScannedAt)
}

func (s *RedisCacheSuite) TestMissReturnsNil() {
	got, err := s.cache.Get(context.Background(), s.brand, "MISSING1")
	s.NoError(err)
	s.Nil(got)
}

func (s *RedisCacheSuite) TestInvalidate() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, s.brand, "AAAAAAA1", s.facts()))

	s.Require().NoError(s.cache.Invalidate(ctx, s.brand, "AAAAAAA1"))

	got, err := s.cache.Get(ctx, s.brand, "AAAAAAA1")
	s.NoError(err)
	s.Nil(got)

	s.Run("invalidating a missing key is fine", func() {
		s.NoError(s.cache.Invalidate(ctx, s.brand, "AAAAAAA1"))
	})
}

func (s *RedisCacheSuite) TestEntriesExpire() {
	ctx := context.Background()
	short := cache.NewRedisCache(s.redis.Client, 100*time.Millisecond)
	s.Require().NoError(short.Set(ctx, s.brand, "AAAAAAA1", s.facts()))

	s.Require().Eventually(func() bool {
		got, err := short.Get(ctx, s.brand, "AAAAAAA1")
		return err == nil && got == nil
	}, 2*time.Second, 50*time.Millisecond)
}

func (s *RedisCacheSuite) TestKeysAreScopedPerBrand() {
	ctx := context.Background()
	other := id.BrandID(uuid.New())
	s.Require().NoError(s.cache.Set(ctx, s.brand, "AAAAAAA1", s.facts()))

	got, err := s.cache.Get(ctx, other, "AAAAAAA1")
	s.NoError(err)
	s.Nil(got)
}
