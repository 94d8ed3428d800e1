package service

import (
	"context"
	"strings"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
)

// DeviceRegistry remembers which access-control devices report events for
// each branch.
type DeviceRegistry struct {
	store store.DeviceStore
	now   func() time.Time
}

func NewDeviceRegistry(st store.DeviceStore) *DeviceRegistry {
	return &DeviceRegistry{store: st, now: time.Now}
}

func (r *DeviceRegistry) NoteSeen(ctx context.Context, tenantID, deviceID, name string) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, tenantID, deviceID, strings.TrimSpace(name), r.now().UTC())
}

func (r *DeviceRegistry) Devices(ctx context.Context, tenantID string) ([]store.DeviceRecord, error) {
	return r.store.ListDevices(ctx, tenantID)
}
