package store

import (
	"context"
	"time"
)

// AttendanceSession is an entry/exit pair for one person at one branch.
// CheckOut is nil while the session is open.
type AttendanceSession struct {
	ID           string
	TenantID     string
	MemberID     string
	PersonID     string
	CheckIn      time.Time
	CheckOut     *time.Time
	EntryEventID string
	ExitEventID  string
}

type AttendanceStore interface {
	// OpenSession returns the most recent open session of the person, or ErrNotFound.
	OpenSession(ctx context.Context, tenantID, personID string) (AttendanceSession, error)
	StartSession(ctx context.Context, s AttendanceSession) error
	CloseSession(ctx context.Context, sessionID string, checkOut time.Time, exitEventID string) error
	ListSessions(ctx context.Context, tenantID, personID string) ([]AttendanceSession, error)
}
