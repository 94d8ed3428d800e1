// Package service holds the access-control integration logic: vendor token
// management, webhook ingestion, attendance processing and person sync.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means the tenant has no active integration credential.
	ErrNotConfigured = errors.New("access control not configured")

	ErrValidation      = errors.New("validation failed")
	ErrInvalidBranchID = errors.New("branch id is required")
	ErrMemberNotFound  = errors.New("member not found")
	ErrBranchNotFound  = errors.New("branch not found")
	ErrUnknownPerson   = errors.New("unknown person")
)

// Anomaly codes stored on processed events.
const (
	AnomalyDuplicateEntry = "duplicate_entry"
	AnomalyOrphanExit     = "orphan_exit"
)

// AuthenticationError is a failed token exchange.  Code and Message carry
// the vendor's reply when there was one.
type AuthenticationError struct {
	TenantID string
	Code     string
	Message  string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for tenant %s: code=%s msg=%s", e.TenantID, e.Code, e.Message)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
