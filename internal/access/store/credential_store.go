package store

import (
	"context"
	"time"
)

// CredentialRecord holds one tenant's vendor connection settings.
type CredentialRecord struct {
	TenantID  string
	BaseURL   string
	AppKey    string
	AppSecret string
	IsActive  bool
	UpdatedAt time.Time
}

type CredentialStore interface {
	// ActiveCredential returns ErrNotFound when the tenant has no credential
	// or it is inactive.
	ActiveCredential(ctx context.Context, tenantID string) (CredentialRecord, error)
	UpsertCredential(ctx context.Context, rec CredentialRecord) error
}
