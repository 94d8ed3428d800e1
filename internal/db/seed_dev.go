package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedDev inserts a demo branch with its standard doors, two members and an
// inactive integration credential. Existing rows are left untouched.
func SeedDev(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC().UnixMilli()

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO branches(branch_id, name, created_at_ms)
VALUES ('branch-main', 'Main Street Gym', ?);`, now); err != nil {
		return fmt.Errorf("seed branches: %w", err)
	}

	for _, door := range []string{"door-entrance", "door-gym-floor"} {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO branch_doors(branch_id, door_id) VALUES ('branch-main', ?);`, door); err != nil {
			return fmt.Errorf("seed branch door %s: %w", door, err)
		}
	}

	expires := time.Now().UTC().AddDate(0, 6, 0).UnixMilli()
	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO members(member_id, name, branch_id, status, plan_tier, expires_at_ms, updated_at_ms)
VALUES
  ('member-001', 'Dev Active Member', 'branch-main', 'active', 'premium', ?, ?),
  ('member-002', 'Dev Expired Member', 'branch-main', 'expired', 'basic', NULL, ?);
`, expires, now, now); err != nil {
		return fmt.Errorf("seed members: %w", err)
	}

	// Inactive until an administrator fills in real vendor credentials.
	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO integration_credentials(tenant_id, base_url, app_key, app_secret, is_active, updated_at_ms)
VALUES ('branch-main', 'http://127.0.0.1:9443', 'dev-app-key', 'dev-app-secret', 0, ?);`, now); err != nil {
		return fmt.Errorf("seed credential: %w", err)
	}

	return nil
}
