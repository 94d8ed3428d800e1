package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
	dbpkg "github.com/BrandonDHaskell/gymaccess/internal/db"
)

type PersonMappingStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewPersonMappingStore(db *sql.DB, writer *dbpkg.Worker) *PersonMappingStore {
	return &PersonMappingStore{db: db, writer: writer}
}

const mappingColumns = `
  member_id, tenant_id, person_id, privileges, state, last_synced_at_ms,
  last_error, updated_at_ms`

func (s *PersonMappingStore) GetMapping(ctx context.Context, memberID, tenantID string) (store.PersonMapping, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT`+mappingColumns+`
FROM person_mappings
WHERE member_id = ? AND tenant_id = ?;
`, memberID, tenantID)
	return scanMapping(row, "GetMapping")
}

func (s *PersonMappingStore) FindByPersonID(ctx context.Context, tenantID, personID string) (store.PersonMapping, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT`+mappingColumns+`
FROM person_mappings
WHERE tenant_id = ? AND person_id = ?;
`, tenantID, personID)
	return scanMapping(row, "FindByPersonID")
}

func (s *PersonMappingStore) SaveMapping(ctx context.Context, m store.PersonMapping) error {
	privileges := m.Privileges
	if privileges == nil {
		privileges = []string{}
	}
	raw, err := json.Marshal(privileges)
	if err != nil {
		return fmt.Errorf("SaveMapping encode privileges: %w", err)
	}
	state := m.State
	if state == "" {
		state = types.SyncUnsynced
	}
	syncedMs := nullMs(m.LastSyncedAt)
	updatedMs := toMs(m.UpdatedAt)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO person_mappings(`+mappingColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(member_id, tenant_id) DO UPDATE SET
  person_id         = excluded.person_id,
  privileges        = excluded.privileges,
  state             = excluded.state,
  last_synced_at_ms = excluded.last_synced_at_ms,
  last_error        = excluded.last_error,
  updated_at_ms     = excluded.updated_at_ms;
`,
			m.MemberID, m.TenantID, m.PersonID, string(raw), string(state), syncedMs,
			m.LastError, updatedMs,
		); err != nil {
			return fmt.Errorf("SaveMapping: %w", err)
		}
		return nil
	})
}

func scanMapping(sc scanner, op string) (store.PersonMapping, error) {
	var (
		m          store.PersonMapping
		raw, state string
		syncedMs   sql.NullInt64
		updatedMs  int64
	)
	err := sc.Scan(
		&m.MemberID, &m.TenantID, &m.PersonID, &raw, &state, &syncedMs,
		&m.LastError, &updatedMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return store.PersonMapping{}, store.ErrNotFound
	}
	if err != nil {
		return store.PersonMapping{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal([]byte(raw), &m.Privileges); err != nil {
		return store.PersonMapping{}, fmt.Errorf("%s decode privileges: %w", op, err)
	}
	m.State = types.SyncState(state)
	m.LastSyncedAt = ptrFromNull(syncedMs)
	m.UpdatedAt = fromMs(updatedMs)
	return m, nil
}
