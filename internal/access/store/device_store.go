package store

import (
	"context"
	"time"
)

type DeviceRecord struct {
	TenantID string
	DeviceID string
	Name     string
	LastSeen time.Time
}

type DeviceStore interface {
	MarkSeen(ctx context.Context, tenantID, deviceID, name string, t time.Time) error
	ListDevices(ctx context.Context, tenantID string) ([]DeviceRecord, error)
}
