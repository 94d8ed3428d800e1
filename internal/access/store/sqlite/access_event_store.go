package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
	dbpkg "github.com/BrandonDHaskell/gymaccess/internal/db"
)

type AccessEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessEventStore(db *sql.DB, writer *dbpkg.Worker) *AccessEventStore {
	return &AccessEventStore{db: db, writer: writer}
}

const eventColumns = `
  tenant_id, event_id, msg_id, topic, event_type, raw_event_type, event_time_ms,
  person_id, person_name, door_id, door_name, device_id, device_name, card_no,
  face_id, processed, processed_at_ms, anomaly, attempts, last_error,
  dead_lettered, received_at_ms`

func (s *AccessEventStore) InsertEvent(ctx context.Context, rec store.AccessEventRecord) (bool, error) {
	receivedMs := toMs(rec.ReceivedAt)
	eventMs := toMs(rec.EventTime)

	var inserted bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// The unique (tenant_id, event_id) constraint turns a redelivery
		// into a no-op.
		res, err := tx.ExecContext(ctx, `
INSERT INTO access_events(
  tenant_id, event_id, msg_id, topic, event_type, raw_event_type, event_time_ms,
  person_id, person_name, door_id, door_name, device_id, device_name, card_no,
  face_id, received_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(tenant_id, event_id) DO NOTHING;
`,
			rec.TenantID, rec.EventID, rec.MsgID, rec.Topic, string(rec.EventType), rec.RawEventType, eventMs,
			rec.PersonID, rec.PersonName, rec.DoorID, rec.DoorName, rec.DeviceID, rec.DeviceName, rec.CardNo,
			rec.FaceID, receivedMs,
		)
		if err != nil {
			return fmt.Errorf("InsertEvent: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("InsertEvent rows affected: %w", err)
		}
		inserted = n == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *AccessEventStore) ListUnprocessed(ctx context.Context, tenantID string, limit int) ([]store.AccessEventRecord, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT`+eventColumns+`
FROM access_events
WHERE tenant_id = ? AND processed = 0 AND dead_lettered = 0
ORDER BY event_time_ms ASC, id ASC
LIMIT ?;
`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListUnprocessed: %w", err)
	}
	defer rows.Close()

	var out []store.AccessEventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListUnprocessed scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListUnprocessed rows: %w", err)
	}
	return out, nil
}

func (s *AccessEventStore) MarkProcessed(ctx context.Context, tenantID, eventID, anomaly string, at time.Time) error {
	atMs := toMs(at)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE access_events
SET processed = 1, processed_at_ms = ?, anomaly = ?
WHERE tenant_id = ? AND event_id = ?;
`, atMs, anomaly, tenantID, eventID)
		if err != nil {
			return fmt.Errorf("MarkProcessed: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("MarkProcessed rows affected: %w", err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *AccessEventStore) RecordFailure(ctx context.Context, tenantID, eventID, reason string, maxAttempts int) (bool, error) {
	var dead bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var attempts int
		err := tx.QueryRowContext(ctx, `
UPDATE access_events
SET attempts = attempts + 1, last_error = ?
WHERE tenant_id = ? AND event_id = ?
RETURNING attempts;
`, reason, tenantID, eventID).Scan(&attempts)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("RecordFailure: %w", err)
		}

		if maxAttempts > 0 && attempts >= maxAttempts {
			if _, err := tx.ExecContext(ctx, `
UPDATE access_events SET dead_lettered = 1
WHERE tenant_id = ? AND event_id = ?;
`, tenantID, eventID); err != nil {
				return fmt.Errorf("RecordFailure dead-letter: %w", err)
			}
			dead = true
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return dead, nil
}

func (s *AccessEventStore) GetEvent(ctx context.Context, tenantID, eventID string) (store.AccessEventRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT`+eventColumns+`
FROM access_events
WHERE tenant_id = ? AND event_id = ?;
`, tenantID, eventID)

	rec, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.AccessEventRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.AccessEventRecord{}, fmt.Errorf("GetEvent: %w", err)
	}
	return rec, nil
}

func (s *AccessEventStore) PendingTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT tenant_id
FROM access_events
WHERE processed = 0 AND dead_lettered = 0
ORDER BY tenant_id;
`)
	if err != nil {
		return nil, fmt.Errorf("PendingTenants: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("PendingTenants scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc scanner) (store.AccessEventRecord, error) {
	var (
		rec                     store.AccessEventRecord
		eventType               string
		eventMs, receivedMs     int64
		processed, deadLettered int
		processedMs             sql.NullInt64
	)
	err := sc.Scan(
		&rec.TenantID, &rec.EventID, &rec.MsgID, &rec.Topic, &eventType, &rec.RawEventType, &eventMs,
		&rec.PersonID, &rec.PersonName, &rec.DoorID, &rec.DoorName, &rec.DeviceID, &rec.DeviceName, &rec.CardNo,
		&rec.FaceID, &processed, &processedMs, &rec.Anomaly, &rec.Attempts, &rec.LastError,
		&deadLettered, &receivedMs,
	)
	if err != nil {
		return store.AccessEventRecord{}, err
	}
	rec.EventType = types.EventType(eventType)
	rec.EventTime = fromMs(eventMs)
	rec.ReceivedAt = fromMs(receivedMs)
	rec.Processed = processed == 1
	rec.ProcessedAt = ptrFromNull(processedMs)
	rec.DeadLettered = deadLettered == 1
	return rec, nil
}
