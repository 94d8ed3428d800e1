package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
)

type deviceKey struct{ tenant, device string }

type DeviceStore struct {
	mu   sync.RWMutex
	data map[deviceKey]store.DeviceRecord
}

func NewDeviceStore() *DeviceStore {
	return &DeviceStore{data: make(map[deviceKey]store.DeviceRecord)}
}

func (s *DeviceStore) MarkSeen(_ context.Context, tenantID, deviceID, name string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := deviceKey{tenantID, deviceID}
	rec := s.data[k]
	rec.TenantID, rec.DeviceID = tenantID, deviceID
	if name != "" {
		rec.Name = name
	}
	if t.After(rec.LastSeen) {
		rec.LastSeen = t.UTC()
	}
	s.data[k] = rec
	return nil
}

func (s *DeviceStore) ListDevices(_ context.Context, tenantID string) ([]store.DeviceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.DeviceRecord
	for _, rec := range s.data {
		if rec.TenantID == tenantID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}
