package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
)

// MembershipStore stands in for the membership domain.  Tests populate it
// with PutMember and PutBranch.
type MembershipStore struct {
	mu       sync.RWMutex
	members  map[string]store.MemberRecord
	branches map[string]store.BranchRecord
}

func NewMembershipStore() *MembershipStore {
	return &MembershipStore{
		members:  make(map[string]store.MemberRecord),
		branches: make(map[string]store.BranchRecord),
	}
}

func (s *MembershipStore) PutMember(m store.MemberRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *MembershipStore) PutBranch(b store.BranchRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.Doors = slices.Clone(b.Doors)
	s.branches[b.ID] = b
}

func (s *MembershipStore) GetMember(_ context.Context, memberID string) (store.MemberRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.members[memberID]
	if !ok {
		return store.MemberRecord{}, store.ErrNotFound
	}
	return m, nil
}

func (s *MembershipStore) GetBranch(_ context.Context, branchID string) (store.BranchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.branches[branchID]
	if !ok {
		return store.BranchRecord{}, store.ErrNotFound
	}
	b.Doors = slices.Clone(b.Doors)
	return b, nil
}

func (s *MembershipStore) ListBranchMembers(_ context.Context, branchID string) ([]store.MemberRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.MemberRecord
	for _, m := range s.members {
		if m.BranchID == branchID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
