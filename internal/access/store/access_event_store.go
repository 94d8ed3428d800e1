package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
)

// AccessEventRecord is one device-reported event. (TenantID, EventID) is the
// idempotency key.
type AccessEventRecord struct {
	TenantID     string
	EventID      string
	MsgID        string
	Topic        string
	EventType    types.EventType
	RawEventType string
	EventTime    time.Time
	PersonID     string
	PersonName   string
	DoorID       string
	DoorName     string
	DeviceID     string
	DeviceName   string
	CardNo       string
	FaceID       string
	ReceivedAt   time.Time

	Processed    bool
	ProcessedAt  *time.Time
	Anomaly      string
	Attempts     int
	LastError    string
	DeadLettered bool
}

type AccessEventStore interface {
	// InsertEvent stores rec unless the tenant already has an event with the
	// same EventID. inserted is false for such a redelivery.
	InsertEvent(ctx context.Context, rec AccessEventRecord) (inserted bool, err error)

	// ListUnprocessed returns unprocessed, non-dead-lettered events of the
	// tenant ordered by EventTime ascending. limit <= 0 means no limit.
	ListUnprocessed(ctx context.Context, tenantID string, limit int) ([]AccessEventRecord, error)

	// MarkProcessed flags the event processed and records an optional anomaly code.
	MarkProcessed(ctx context.Context, tenantID, eventID, anomaly string, at time.Time) error

	// RecordFailure bumps the attempt counter. Once attempts reach maxAttempts
	// (when > 0) the event is dead-lettered and deadLettered is true.
	RecordFailure(ctx context.Context, tenantID, eventID, reason string, maxAttempts int) (deadLettered bool, err error)

	GetEvent(ctx context.Context, tenantID, eventID string) (AccessEventRecord, error)

	// PendingTenants lists tenants that still have events to process.
	PendingTenants(ctx context.Context) ([]string, error)
}
