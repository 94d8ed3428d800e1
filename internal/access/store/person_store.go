package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
)

// PersonMapping links a member to the device-side person at one branch.
// Privileges is the authoritative door list last pushed to the device.
type PersonMapping struct {
	MemberID     string
	TenantID     string
	PersonID     string
	Privileges   []string
	State        types.SyncState
	LastSyncedAt *time.Time
	LastError    string
	UpdatedAt    time.Time
}

type PersonMappingStore interface {
	GetMapping(ctx context.Context, memberID, tenantID string) (PersonMapping, error)
	FindByPersonID(ctx context.Context, tenantID, personID string) (PersonMapping, error)
	SaveMapping(ctx context.Context, m PersonMapping) error
}
