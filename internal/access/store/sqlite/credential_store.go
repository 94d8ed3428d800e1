package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	dbpkg "github.com/BrandonDHaskell/gymaccess/internal/db"
)

type CredentialStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewCredentialStore(db *sql.DB, writer *dbpkg.Worker) *CredentialStore {
	return &CredentialStore{db: db, writer: writer}
}

func (s *CredentialStore) ActiveCredential(ctx context.Context, tenantID string) (store.CredentialRecord, error) {
	var (
		rec       store.CredentialRecord
		updatedMs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT tenant_id, base_url, app_key, app_secret, updated_at_ms
FROM integration_credentials
WHERE tenant_id = ? AND is_active = 1;
`, tenantID).Scan(&rec.TenantID, &rec.BaseURL, &rec.AppKey, &rec.AppSecret, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return store.CredentialRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.CredentialRecord{}, fmt.Errorf("ActiveCredential: %w", err)
	}
	rec.IsActive = true
	rec.UpdatedAt = fromMs(updatedMs)
	return rec, nil
}

func (s *CredentialStore) UpsertCredential(ctx context.Context, rec store.CredentialRecord) error {
	updatedMs := toMs(rec.UpdatedAt)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO integration_credentials(tenant_id, base_url, app_key, app_secret, is_active, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(tenant_id) DO UPDATE SET
  base_url      = excluded.base_url,
  app_key       = excluded.app_key,
  app_secret    = excluded.app_secret,
  is_active     = excluded.is_active,
  updated_at_ms = excluded.updated_at_ms;
`, rec.TenantID, rec.BaseURL, rec.AppKey, rec.AppSecret, boolInt(rec.IsActive), updatedMs); err != nil {
			return fmt.Errorf("UpsertCredential: %w", err)
		}
		return nil
	})
}
