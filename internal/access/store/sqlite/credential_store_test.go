package sqlite_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	sqlitestore "github.com/BrandonDHaskell/gymaccess/internal/access/store/sqlite"
	"github.com/BrandonDHaskell/gymaccess/internal/db"
)

// ═══════════════════════════════════════════════════════════════════════════
// Credentials
// ═══════════════════════════════════════════════════════════════════════════

func TestCredentialStore_UpsertThenActive(t *testing.T) {
	conn := openTestDB(t)
	cs := sqlitestore.NewCredentialStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	updated := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, cs.UpsertCredential(ctx, store.CredentialRecord{
		TenantID: "branch-1", BaseURL: "https://hik.example", AppKey: "k1", AppSecret: "s1",
		IsActive: true, UpdatedAt: updated,
	}))

	got, err := cs.ActiveCredential(ctx, "branch-1")
	require.NoError(t, err)
	assert.Equal(t, store.CredentialRecord{
		TenantID: "branch-1", BaseURL: "https://hik.example", AppKey: "k1", AppSecret: "s1",
		IsActive: true, UpdatedAt: updated,
	}, got)

	// Rotating the key overwrites the row.
	require.NoError(t, cs.UpsertCredential(ctx, store.CredentialRecord{
		TenantID: "branch-1", BaseURL: "https://hik.example", AppKey: "k2", AppSecret: "s2", IsActive: true,
	}))
	got, err = cs.ActiveCredential(ctx, "branch-1")
	require.NoError(t, err)
	assert.Equal(t, "k2", got.AppKey)
}

func TestCredentialStore_InactiveOrMissingIsNotFound(t *testing.T) {
	conn := openTestDB(t)
	cs := sqlitestore.NewCredentialStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	require.NoError(t, cs.UpsertCredential(ctx, store.CredentialRecord{
		TenantID: "branch-off", BaseURL: "https://hik.example", AppKey: "k", AppSecret: "s",
	}))

	_, err := cs.ActiveCredential(ctx, "branch-off")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = cs.ActiveCredential(ctx, "branch-none")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCredentialStore_QueryErrorIsWrapped(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	boom := errors.New("disk I/O error")
	mock.ExpectQuery(regexp.QuoteMeta("FROM integration_credentials")).
		WithArgs("branch-1").
		WillReturnError(boom)

	cs := sqlitestore.NewCredentialStore(conn, nil)
	_, err = cs.ActiveCredential(context.Background(), "branch-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialStore_UpsertRollsBackOnExecError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO integration_credentials")).
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	w := db.NewWorker(conn)
	defer w.Close()

	cs := sqlitestore.NewCredentialStore(conn, w)
	err = cs.UpsertCredential(context.Background(), store.CredentialRecord{TenantID: "branch-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "UpsertCredential")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ═══════════════════════════════════════════════════════════════════════════
// Tokens
// ═══════════════════════════════════════════════════════════════════════════

func TestTokenStore_SaveSupersedesPrevious(t *testing.T) {
	conn := openTestDB(t)
	ts := sqlitestore.NewTokenStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, ts.SaveToken(ctx, store.TokenRecord{
		TenantID: "branch-1", AccessToken: "tok-1", ExpiresIn: 7200, TokenType: "Bearer",
		IssuedAt: issued, ExpiresAt: issued.Add(2 * time.Hour),
	}))
	require.NoError(t, ts.SaveToken(ctx, store.TokenRecord{
		TenantID: "branch-1", AccessToken: "tok-2", ExpiresIn: 3600, TokenType: "Bearer", Scope: "all",
		IssuedAt: issued.Add(time.Hour), ExpiresAt: issued.Add(2 * time.Hour),
	}))

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM access_tokens WHERE tenant_id = 'branch-1'`).Scan(&n))
	assert.Equal(t, 1, n)

	got, err := ts.LatestToken(ctx, "branch-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.AccessToken)
	assert.Equal(t, int64(3600), got.ExpiresIn)
	assert.Equal(t, "all", got.Scope)
	assert.Equal(t, issued.Add(time.Hour), got.IssuedAt)
	assert.Equal(t, issued.Add(2*time.Hour), got.ExpiresAt)
}

func TestTokenStore_LatestToken_NotFound(t *testing.T) {
	conn := openTestDB(t)
	ts := sqlitestore.NewTokenStore(conn, newTestWriter(t, conn))

	_, err := ts.LatestToken(context.Background(), "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
