package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	dbpkg "github.com/BrandonDHaskell/gymaccess/internal/db"
)

type TokenStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewTokenStore(db *sql.DB, writer *dbpkg.Worker) *TokenStore {
	return &TokenStore{db: db, writer: writer}
}

func (s *TokenStore) SaveToken(ctx context.Context, rec store.TokenRecord) error {
	issuedMs := toMs(rec.IssuedAt)
	expireMs := toMs(rec.ExpiresAt)
	updatedMs := toMs(rec.UpdatedAt)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_tokens(
  tenant_id, access_token, expires_in, expire_time_ms, token_type,
  scope, refresh_token, issued_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(tenant_id) DO UPDATE SET
  access_token   = excluded.access_token,
  expires_in     = excluded.expires_in,
  expire_time_ms = excluded.expire_time_ms,
  token_type     = excluded.token_type,
  scope          = excluded.scope,
  refresh_token  = excluded.refresh_token,
  issued_at_ms   = excluded.issued_at_ms,
  updated_at_ms  = excluded.updated_at_ms;
`,
			rec.TenantID, rec.AccessToken, rec.ExpiresIn, expireMs, rec.TokenType,
			rec.Scope, rec.RefreshToken, issuedMs, updatedMs,
		); err != nil {
			return fmt.Errorf("SaveToken: %w", err)
		}
		return nil
	})
}

func (s *TokenStore) LatestToken(ctx context.Context, tenantID string) (store.TokenRecord, error) {
	var (
		rec                           store.TokenRecord
		expireMs, issuedMs, updatedMs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT tenant_id, access_token, expires_in, expire_time_ms, token_type,
       scope, refresh_token, issued_at_ms, updated_at_ms
FROM access_tokens
WHERE tenant_id = ?;
`, tenantID).Scan(
		&rec.TenantID, &rec.AccessToken, &rec.ExpiresIn, &expireMs, &rec.TokenType,
		&rec.Scope, &rec.RefreshToken, &issuedMs, &updatedMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return store.TokenRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.TokenRecord{}, fmt.Errorf("LatestToken: %w", err)
	}
	rec.ExpiresAt = fromMs(expireMs)
	rec.IssuedAt = fromMs(issuedMs)
	rec.UpdatedAt = fromMs(updatedMs)
	return rec, nil
}
