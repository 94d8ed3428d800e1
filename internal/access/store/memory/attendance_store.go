package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
)

type AttendanceStore struct {
	mu       sync.Mutex
	sessions []store.AttendanceSession
}

func NewAttendanceStore() *AttendanceStore {
	return &AttendanceStore{}
}

func (s *AttendanceStore) OpenSession(_ context.Context, tenantID, personID string) (store.AttendanceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := -1
	for i, ss := range s.sessions {
		if ss.TenantID != tenantID || ss.PersonID != personID || ss.CheckOut != nil {
			continue
		}
		if found < 0 || !ss.CheckIn.Before(s.sessions[found].CheckIn) {
			found = i
		}
	}
	if found < 0 {
		return store.AttendanceSession{}, store.ErrNotFound
	}
	return s.sessions[found], nil
}

func (s *AttendanceStore) StartSession(_ context.Context, ss store.AttendanceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, ss)
	return nil
}

func (s *AttendanceStore) CloseSession(_ context.Context, sessionID string, checkOut time.Time, exitEventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			out := checkOut.UTC()
			s.sessions[i].CheckOut = &out
			s.sessions[i].ExitEventID = exitEventID
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *AttendanceStore) ListSessions(_ context.Context, tenantID, personID string) ([]store.AttendanceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.AttendanceSession
	for _, ss := range s.sessions {
		if ss.TenantID == tenantID && ss.PersonID == personID {
			out = append(out, ss)
		}
	}
	return out, nil
}
