package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
)

type eventKey struct{ tenant, event string }

// AccessEventStore keeps events in insertion order, keyed by
// (tenant, event id).
type AccessEventStore struct {
	mu     sync.Mutex
	events []store.AccessEventRecord
	index  map[eventKey]int
}

func NewAccessEventStore() *AccessEventStore {
	return &AccessEventStore{index: make(map[eventKey]int)}
}

func (s *AccessEventStore) InsertEvent(_ context.Context, rec store.AccessEventRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := eventKey{rec.TenantID, rec.EventID}
	if _, ok := s.index[k]; ok {
		return false, nil
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	s.index[k] = len(s.events)
	s.events = append(s.events, rec)
	return true, nil
}

func (s *AccessEventStore) ListUnprocessed(_ context.Context, tenantID string, limit int) ([]store.AccessEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.AccessEventRecord
	for _, ev := range s.events {
		if ev.TenantID == tenantID && !ev.Processed && !ev.DeadLettered {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AccessEventStore) MarkProcessed(_ context.Context, tenantID, eventID, anomaly string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[eventKey{tenantID, eventID}]
	if !ok {
		return store.ErrNotFound
	}
	at = at.UTC()
	s.events[i].Processed = true
	s.events[i].ProcessedAt = &at
	s.events[i].Anomaly = anomaly
	return nil
}

func (s *AccessEventStore) RecordFailure(_ context.Context, tenantID, eventID, reason string, maxAttempts int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[eventKey{tenantID, eventID}]
	if !ok {
		return false, store.ErrNotFound
	}
	ev := &s.events[i]
	ev.Attempts++
	ev.LastError = reason
	if maxAttempts > 0 && ev.Attempts >= maxAttempts {
		ev.DeadLettered = true
	}
	return ev.DeadLettered, nil
}

func (s *AccessEventStore) GetEvent(_ context.Context, tenantID, eventID string) (store.AccessEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[eventKey{tenantID, eventID}]
	if !ok {
		return store.AccessEventRecord{}, store.ErrNotFound
	}
	return s.events[i], nil
}

func (s *AccessEventStore) PendingTenants(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var out []string
	for _, ev := range s.events {
		if ev.Processed || ev.DeadLettered {
			continue
		}
		if _, ok := seen[ev.TenantID]; !ok {
			seen[ev.TenantID] = struct{}{}
			out = append(out, ev.TenantID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Events returns a copy of all stored events.  Test-only helper.
func (s *AccessEventStore) Events() []store.AccessEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AccessEventRecord, len(s.events))
	copy(out, s.events)
	return out
}
