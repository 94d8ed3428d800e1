package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
)

// MembershipStore reads the membership tables.  They are owned by the
// membership domain, so there are no write methods here.
type MembershipStore struct {
	db *sql.DB
}

func NewMembershipStore(db *sql.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

func (s *MembershipStore) GetMember(ctx context.Context, memberID string) (store.MemberRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT member_id, name, branch_id, status, plan_tier, expires_at_ms
FROM members
WHERE member_id = ?;
`, memberID)

	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.MemberRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.MemberRecord{}, fmt.Errorf("GetMember: %w", err)
	}
	return m, nil
}

func (s *MembershipStore) GetBranch(ctx context.Context, branchID string) (store.BranchRecord, error) {
	var b store.BranchRecord
	err := s.db.QueryRowContext(ctx, `
SELECT branch_id, name FROM branches WHERE branch_id = ?;
`, branchID).Scan(&b.ID, &b.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return store.BranchRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.BranchRecord{}, fmt.Errorf("GetBranch: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT door_id FROM branch_doors WHERE branch_id = ? ORDER BY door_id;
`, branchID)
	if err != nil {
		return store.BranchRecord{}, fmt.Errorf("GetBranch doors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var door string
		if err := rows.Scan(&door); err != nil {
			return store.BranchRecord{}, fmt.Errorf("GetBranch doors scan: %w", err)
		}
		b.Doors = append(b.Doors, door)
	}
	if err := rows.Err(); err != nil {
		return store.BranchRecord{}, fmt.Errorf("GetBranch doors rows: %w", err)
	}
	return b, nil
}

func (s *MembershipStore) ListBranchMembers(ctx context.Context, branchID string) ([]store.MemberRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT member_id, name, branch_id, status, plan_tier, expires_at_ms
FROM members
WHERE branch_id = ?
ORDER BY member_id;
`, branchID)
	if err != nil {
		return nil, fmt.Errorf("ListBranchMembers: %w", err)
	}
	defer rows.Close()

	var out []store.MemberRecord
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("ListBranchMembers scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMember(sc scanner) (store.MemberRecord, error) {
	var (
		m         store.MemberRecord
		expiresMs sql.NullInt64
	)
	if err := sc.Scan(&m.ID, &m.Name, &m.BranchID, &m.Status, &m.PlanTier, &expiresMs); err != nil {
		return store.MemberRecord{}, err
	}
	m.ExpiresAt = ptrFromNull(expiresMs)
	return m, nil
}
