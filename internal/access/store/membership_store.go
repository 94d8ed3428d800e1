package store

import (
	"context"
	"time"
)

// MemberRecord is the membership domain's view of a member, read-only here.
type MemberRecord struct {
	ID        string
	Name      string
	BranchID  string
	Status    string // "active", "expired", "frozen", "cancelled"
	PlanTier  string
	ExpiresAt *time.Time
}

type BranchRecord struct {
	ID    string
	Name  string
	Doors []string // standard door set
}

type MembershipStore interface {
	GetMember(ctx context.Context, memberID string) (MemberRecord, error)
	GetBranch(ctx context.Context, branchID string) (BranchRecord, error)
	ListBranchMembers(ctx context.Context, branchID string) ([]MemberRecord, error)
}
