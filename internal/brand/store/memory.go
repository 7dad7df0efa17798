// Package store persists brand registries. State is partitioned by the
// admin principal that owns each registry: no operation can touch another
// admin's partition, which preserves the no-cross-account-interference
// invariant without global locking.
package store

import (
	"context"
	"strings"
	"sync"

	"sigil/internal/brand/models"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// registryPartition is one admin's registry: brand records plus the reverse
// name index, kept in lockstep.
type registryPartition struct {
	brands map[id.BrandID]models.BrandRecord
	names  map[string]id.BrandID
}

// InMemory implements the registry store with per-admin map partitions.
// The default wiring; the Postgres store is the durable alternative.
type InMemory struct {
	mu         sync.RWMutex
	registries map[id.AdminID]*registryPartition
}

func NewInMemory() *InMemory {
	return &InMemory{registries: make(map[id.AdminID]*registryPartition)}
}

// CreateRegistry initializes an empty registry for admin.
// Returns sentinel.ErrConflict if one already exists.
func (s *InMemory) CreateRegistry(_ context.Context, admin id.AdminID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registries[admin]; ok {
		return sentinel.ErrConflict
	}
	s.registries[admin] = &registryPartition{
		brands: make(map[id.BrandID]models.BrandRecord),
		names:  make(map[string]id.BrandID),
	}
	return nil
}

// RegistryExists reports whether admin has initialized a registry.
func (s *InMemory) RegistryExists(_ context.Context, admin id.AdminID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.registries[admin]
	return ok, nil
}

// RegisterBrand inserts a brand record and its name-index entry atomically:
// both land or neither does. Returns sentinel.ErrNotFound if the registry
// does not exist and sentinel.ErrConflict if the brand principal or the
// display name (case-insensitive) is already registered.
func (s *InMemory) RegisterBrand(_ context.Context, admin id.AdminID, record *models.BrandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registries[admin]
	if !ok {
		return sentinel.ErrNotFound
	}
	if _, exists := reg.brands[record.ID]; exists {
		return sentinel.ErrConflict
	}
	nameKey := strings.ToLower(record.DisplayName)
	if _, taken := reg.names[nameKey]; taken {
		return sentinel.ErrConflict
	}

	reg.brands[record.ID] = *record
	reg.names[nameKey] = record.ID
	return nil
}

// FindBrand returns the record for a brand principal.
// Returns sentinel.ErrNotFound if the registry or the record is absent.
func (s *InMemory) FindBrand(_ context.Context, admin id.AdminID, brand id.BrandID) (*models.BrandRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.registries[admin]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	record, ok := reg.brands[brand]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

// FindBrandByName resolves a display name (case-insensitive) through the
// reverse index. Returns sentinel.ErrNotFound if absent.
func (s *InMemory) FindBrandByName(_ context.Context, admin id.AdminID, name string) (*models.BrandRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.registries[admin]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	brandID, ok := reg.names[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	record := reg.brands[brandID]
	return &record, nil
}
