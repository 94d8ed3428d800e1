package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	dbpkg "github.com/BrandonDHaskell/gymaccess/internal/db"
)

type AttendanceStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAttendanceStore(db *sql.DB, writer *dbpkg.Worker) *AttendanceStore {
	return &AttendanceStore{db: db, writer: writer}
}

const sessionColumns = `
  session_id, tenant_id, member_id, person_id, check_in_ms, check_out_ms,
  entry_event_id, exit_event_id`

func (s *AttendanceStore) OpenSession(ctx context.Context, tenantID, personID string) (store.AttendanceSession, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT`+sessionColumns+`
FROM attendance_sessions
WHERE tenant_id = ? AND person_id = ? AND check_out_ms IS NULL
ORDER BY check_in_ms DESC
LIMIT 1;
`, tenantID, personID)

	ss, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.AttendanceSession{}, store.ErrNotFound
	}
	if err != nil {
		return store.AttendanceSession{}, fmt.Errorf("OpenSession: %w", err)
	}
	return ss, nil
}

func (s *AttendanceStore) StartSession(ctx context.Context, ss store.AttendanceSession) error {
	checkInMs := toMs(ss.CheckIn)
	checkOutMs := nullMs(ss.CheckOut)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO attendance_sessions(`+sessionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			ss.ID, ss.TenantID, ss.MemberID, ss.PersonID, checkInMs, checkOutMs,
			ss.EntryEventID, ss.ExitEventID,
		); err != nil {
			return fmt.Errorf("StartSession: %w", err)
		}
		return nil
	})
}

func (s *AttendanceStore) CloseSession(ctx context.Context, sessionID string, checkOut time.Time, exitEventID string) error {
	checkOutMs := toMs(checkOut)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE attendance_sessions
SET check_out_ms = ?, exit_event_id = ?
WHERE session_id = ?;
`, checkOutMs, exitEventID, sessionID)
		if err != nil {
			return fmt.Errorf("CloseSession: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("CloseSession rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *AttendanceStore) ListSessions(ctx context.Context, tenantID, personID string) ([]store.AttendanceSession, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT`+sessionColumns+`
FROM attendance_sessions
WHERE tenant_id = ? AND person_id = ?
ORDER BY check_in_ms ASC;
`, tenantID, personID)
	if err != nil {
		return nil, fmt.Errorf("ListSessions: %w", err)
	}
	defer rows.Close()

	var out []store.AttendanceSession
	for rows.Next() {
		ss, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("ListSessions scan: %w", err)
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

func scanSession(sc scanner) (store.AttendanceSession, error) {
	var (
		ss         store.AttendanceSession
		checkInMs  int64
		checkOutMs sql.NullInt64
	)
	if err := sc.Scan(
		&ss.ID, &ss.TenantID, &ss.MemberID, &ss.PersonID, &checkInMs, &checkOutMs,
		&ss.EntryEventID, &ss.ExitEventID,
	); err != nil {
		return store.AttendanceSession{}, err
	}
	ss.CheckIn = fromMs(checkInMs)
	ss.CheckOut = ptrFromNull(checkOutMs)
	return ss, nil
}
