package types

import "time"

// SyncState tracks a person mapping through unsynced → synced → revoked.
type SyncState string

const (
	SyncUnsynced SyncState = "unsynced"
	SyncSynced   SyncState = "synced"
	SyncRevoked  SyncState = "revoked"
)

type SyncRequest struct {
	MemberID string `json:"memberId"`
	BranchID string `json:"branchId"`
}

type SyncResponse struct {
	Message  string `json:"message"`
	MemberID string `json:"memberId,omitempty"`
	BranchID string `json:"branchId,omitempty"`
	Success  bool   `json:"success"`
}

type BranchSyncReport struct {
	BranchID  string   `json:"branchId"`
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failedMemberIds,omitempty"`
}

// TokenStatus is the observable part of a persisted vendor token. The token
// value itself is never exposed.
type TokenStatus struct {
	TenantID  string    `json:"tenantId"`
	TokenType string    `json:"tokenType"`
	Scope     string    `json:"scope,omitempty"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Valid     bool      `json:"valid"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
