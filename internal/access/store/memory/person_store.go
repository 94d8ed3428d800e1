package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
)

type mappingKey struct{ member, tenant string }

type PersonMappingStore struct {
	mu   sync.RWMutex
	data map[mappingKey]store.PersonMapping
}

func NewPersonMappingStore() *PersonMappingStore {
	return &PersonMappingStore{data: make(map[mappingKey]store.PersonMapping)}
}

func (s *PersonMappingStore) GetMapping(_ context.Context, memberID, tenantID string) (store.PersonMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[mappingKey{memberID, tenantID}]
	if !ok {
		return store.PersonMapping{}, store.ErrNotFound
	}
	m.Privileges = slices.Clone(m.Privileges)
	return m, nil
}

func (s *PersonMappingStore) FindByPersonID(_ context.Context, tenantID, personID string) (store.PersonMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.data {
		if m.TenantID == tenantID && m.PersonID == personID {
			m.Privileges = slices.Clone(m.Privileges)
			return m, nil
		}
	}
	return store.PersonMapping{}, store.ErrNotFound
}

func (s *PersonMappingStore) SaveMapping(_ context.Context, m store.PersonMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}
	m.Privileges = slices.Clone(m.Privileges)
	s.data[mappingKey{m.MemberID, m.TenantID}] = m
	return nil
}
