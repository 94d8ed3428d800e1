// Package memory provides map-backed stores for tests and dev runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
)

type CredentialStore struct {
	mu   sync.RWMutex
	data map[string]store.CredentialRecord
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{data: make(map[string]store.CredentialRecord)}
}

func (s *CredentialStore) ActiveCredential(_ context.Context, tenantID string) (store.CredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[tenantID]
	if !ok || !rec.IsActive {
		return store.CredentialRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *CredentialStore) UpsertCredential(_ context.Context, rec store.CredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	s.data[rec.TenantID] = rec
	return nil
}

type TokenStore struct {
	mu    sync.RWMutex
	data  map[string]store.TokenRecord
	saves int
}

func NewTokenStore() *TokenStore {
	return &TokenStore{data: make(map[string]store.TokenRecord)}
}

func (s *TokenStore) SaveToken(_ context.Context, rec store.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	s.data[rec.TenantID] = rec
	s.saves++
	return nil
}

func (s *TokenStore) LatestToken(_ context.Context, tenantID string) (store.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[tenantID]
	if !ok {
		return store.TokenRecord{}, store.ErrNotFound
	}
	return rec, nil
}

// Saves reports how many times SaveToken was called.  Test-only helper.
func (s *TokenStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
