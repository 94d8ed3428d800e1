package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	dbpkg "github.com/BrandonDHaskell/gymaccess/internal/db"
)

type DeviceStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDeviceStore(db *sql.DB, writer *dbpkg.Worker) *DeviceStore {
	return &DeviceStore{db: db, writer: writer}
}

// MarkSeen upserts the device.  last_seen only moves forward and an empty
// name keeps the stored one.
func (s *DeviceStore) MarkSeen(ctx context.Context, tenantID, deviceID, name string, t time.Time) error {
	seenMs := toMs(t)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO devices(tenant_id, device_id, name, last_seen_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(tenant_id, device_id) DO UPDATE SET
  name            = CASE WHEN excluded.name <> '' THEN excluded.name ELSE devices.name END,
  last_seen_at_ms = MAX(devices.last_seen_at_ms, excluded.last_seen_at_ms);
`, tenantID, deviceID, name, seenMs); err != nil {
			return fmt.Errorf("MarkSeen: %w", err)
		}
		return nil
	})
}

func (s *DeviceStore) ListDevices(ctx context.Context, tenantID string) ([]store.DeviceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT tenant_id, device_id, name, last_seen_at_ms
FROM devices
WHERE tenant_id = ?
ORDER BY device_id;
`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("ListDevices: %w", err)
	}
	defer rows.Close()

	var out []store.DeviceRecord
	for rows.Next() {
		var (
			rec    store.DeviceRecord
			seenMs int64
		)
		if err := rows.Scan(&rec.TenantID, &rec.DeviceID, &rec.Name, &seenMs); err != nil {
			return nil, fmt.Errorf("ListDevices scan: %w", err)
		}
		rec.LastSeen = fromMs(seenMs)
		out = append(out, rec)
	}
	return out, rows.Err()
}
