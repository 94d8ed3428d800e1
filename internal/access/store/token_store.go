package store

import (
	"context"
	"time"
)

// TokenRecord is the persisted copy of the latest vendor token per tenant.
type TokenRecord struct {
	TenantID     string
	AccessToken  string
	ExpiresIn    int64 // seconds, as reported by the vendor
	TokenType    string
	Scope        string
	RefreshToken string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

type TokenStore interface {
	// SaveToken supersedes any previous token of the tenant.
	SaveToken(ctx context.Context, rec TokenRecord) error
	LatestToken(ctx context.Context, tenantID string) (TokenRecord, error)
}
