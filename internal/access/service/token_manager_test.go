package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/gymaccess/internal/access/service"
	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	"github.com/BrandonDHaskell/gymaccess/internal/access/store/memory"
	"github.com/BrandonDHaskell/gymaccess/internal/hikvision"
	"github.com/BrandonDHaskell/gymaccess/internal/logging"
)

// ── Safety margin ───────────────────────────────────────────────────────────

func TestGetToken_WithinMarginTriggersExchange(t *testing.T) {
	f := newTokenFixture()
	ctx := context.Background()
	require.NoError(t, f.creds.UpsertCredential(ctx, activeCredential("b1")))

	first, err := f.mgr.GetToken(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", first.Value)
	assert.Equal(t, t0.Add(time.Hour), first.ExpiresAt)

	// 4 minutes left, inside the 5 minute margin.
	f.clock.Advance(56 * time.Minute)

	second, err := f.mgr.GetToken(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", second.Value)
	assert.Equal(t, 2, f.ex.Calls())
}

func TestGetToken_OutsideMarginReturnsCached(t *testing.T) {
	f := newTokenFixture()
	ctx := context.Background()
	require.NoError(t, f.creds.UpsertCredential(ctx, activeCredential("b1")))

	_, err := f.mgr.GetToken(ctx, "b1")
	require.NoError(t, err)

	// 10 minutes left.
	f.clock.Advance(50 * time.Minute)

	tok, err := f.mgr.GetToken(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.Value)
	assert.Equal(t, "https://hik.example", tok.BaseURL)
	assert.Equal(t, 1, f.ex.Calls())
}

// ── Failure semantics ───────────────────────────────────────────────────────

func TestGetToken_NoCredentialIsNotConfigured(t *testing.T) {
	f := newTokenFixture()
	ctx := context.Background()

	_, err := f.mgr.GetToken(ctx, "b1")
	assert.ErrorIs(t, err, service.ErrNotConfigured)

	// An inactive credential counts as none.
	inactive := activeCredential("b1")
	inactive.IsActive = false
	require.NoError(t, f.creds.UpsertCredential(ctx, inactive))

	_, err = f.mgr.GetToken(ctx, "b1")
	assert.ErrorIs(t, err, service.ErrNotConfigured)
	assert.Zero(t, f.ex.Calls(), "no network call without an active credential")
}

func TestGetToken_ExchangeFailureIsAuthenticationError(t *testing.T) {
	f := newTokenFixture()
	ctx := context.Background()
	require.NoError(t, f.creds.UpsertCredential(ctx, activeCredential("b1")))
	f.ex.err = &hikvision.APIError{Status: 200, Code: "0x0101", Message: "appKey invalid"}

	_, err := f.mgr.GetToken(ctx, "b1")

	var authErr *service.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "b1", authErr.TenantID)
	assert.Equal(t, "0x0101", authErr.Code)
	assert.Equal(t, "appKey invalid", authErr.Message)
	assert.Equal(t, 1, f.ex.Calls(), "no hidden retry")

	_, err = f.tokens.LatestToken(ctx, "b1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Nothing was cached: the next call exchanges again and now succeeds.
	f.ex.err = nil
	tok, err := f.mgr.GetToken(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok.Value)
}

func TestGetToken_NetworkFailureCode(t *testing.T) {
	f := newTokenFixture()
	ctx := context.Background()
	require.NoError(t, f.creds.UpsertCredential(ctx, activeCredential("b1")))
	f.ex.err = errors.New("dial tcp: connection refused")

	_, err := f.mgr.GetToken(ctx, "b1")

	var authErr *service.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "network_error", authErr.Code)
}

func TestGetToken_CanceledExchangeCode(t *testing.T) {
	f := newTokenFixture()
	ctx := context.Background()
	require.NoError(t, f.creds.UpsertCredential(ctx, activeCredential("b1")))
	f.ex.err = fmt.Errorf("hikvision: request /api/v1/oauth/token: %w", context.Canceled)

	_, err := f.mgr.GetToken(ctx, "b1")

	var authErr *service.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "canceled", authErr.Code)
}

func TestGetToken_ExchangeTimeout(t *testing.T) {
	f := newTokenFixture()
	ctx := context.Background()
	require.NoError(t, f.creds.UpsertCredential(ctx, activeCredential("b1")))
	f.ex.block = make(chan struct{}) // never released

	start := time.Now()
	_, err := f.mgr.GetToken(ctx, "b1")

	var authErr *service.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "timeout", authErr.Code)
	assert.Less(t, time.Since(start), 5*time.Second)
}

// ── Invalidation ────────────────────────────────────────────────────────────

func TestInvalidate_ForcesExchange(t *testing.T) {
	f := newTokenFixture()
	ctx := context.Background()
	require.NoError(t, f.creds.UpsertCredential(ctx, activeCredential("b1")))

	_, err := f.mgr.GetToken(ctx, "b1")
	require.NoError(t, err)

	f.mgr.Invalidate("b1")
	tok, err := f.mgr.GetToken(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok.Value)

	tok, err = f.mgr.Refresh(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "tok-3", tok.Value)
}

func TestGetToken_CredentialChangeDiscardsCache(t *testing.T) {
	f := newTokenFixture()
	ctx := context.Background()
	require.NoError(t, f.creds.UpsertCredential(ctx, activeCredential("b1")))

	_, err := f.mgr.GetToken(ctx, "b1")
	require.NoError(t, err)

	rotated := activeCredential("b1")
	rotated.AppSecret = "rotated"
	require.NoError(t, f.creds.UpsertCredential(ctx, rotated))

	tok, err := f.mgr.GetToken(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok.Value)

	// Deactivating stops the cached token from being served.
	rotated.IsActive = false
	require.NoError(t, f.creds.UpsertCredential(ctx, rotated))
	_, err = f.mgr.GetToken(ctx, "b1")
	assert.ErrorIs(t, err, service.ErrNotConfigured)
}

func TestGetToken_TenantsAreIndependent(t *testing.T) {
	f := newTokenFixture()
	ctx := context.Background()
	require.NoError(t, f.creds.UpsertCredential(ctx, activeCredential("b1")))
	require.NoError(t, f.creds.UpsertCredential(ctx, activeCredential("b2")))

	a, err := f.mgr.GetToken(ctx, "b1")
	require.NoError(t, err)
	b, err := f.mgr.GetToken(ctx, "b2")
	require.NoError(t, err)
	assert.NotEqual(t, a.Value, b.Value)

	f.mgr.Invalidate("b1")
	again, err := f.mgr.GetToken(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, b.Value, again.Value)
}

// ── Concurrency ─────────────────────────────────────────────────────────────

func TestGetToken_ConcurrentCallsShareOneExchange(t *testing.T) {
	f := newTokenFixture()
	ctx := context.Background()
	require.NoError(t, f.creds.UpsertCredential(ctx, activeCredential("b1")))
	f.ex.block = make(chan struct{})

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := f.mgr.GetToken(ctx, "b1")
			if err == nil {
				results[i] = tok.Value
			}
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(f.ex.block)
	wg.Wait()

	assert.Equal(t, 1, f.ex.Calls())
	for _, v := range results {
		assert.Equal(t, "tok-1", v)
	}
}

func TestGetToken_CancelledCallerDoesNotFailOthers(t *testing.T) {
	f := newTokenFixture()
	require.NoError(t, f.creds.UpsertCredential(context.Background(), activeCredential("b1")))
	f.ex.block = make(chan struct{})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := f.mgr.GetToken(leaderCtx, "b1")
		leaderErr <- err
	}()
	time.Sleep(50 * time.Millisecond)

	type result struct {
		tok service.Token
		err error
	}
	follower := make(chan result, 1)
	go func() {
		tok, err := f.mgr.GetToken(context.Background(), "b1")
		follower <- result{tok, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelLeader()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
		var authErr *service.AuthenticationError
		assert.False(t, errors.As(err, &authErr), "caller cancellation is not an auth failure")
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(f.ex.block)
	select {
	case r := <-follower:
		require.NoError(t, r.err)
		assert.Equal(t, "tok-1", r.tok.Value)
	case <-time.After(time.Second):
		t.Fatal("follower did not return")
	}
	assert.Equal(t, 1, f.ex.Calls())
}

// ── Persistence ─────────────────────────────────────────────────────────────

func TestGetToken_PersistsMetadata(t *testing.T) {
	f := newTokenFixture()
	ctx := context.Background()
	require.NoError(t, f.creds.UpsertCredential(ctx, activeCredential("b1")))

	_, err := f.mgr.GetToken(ctx, "b1")
	require.NoError(t, err)

	rec, err := f.tokens.LatestToken(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", rec.AccessToken)
	assert.Equal(t, int64(3600), rec.ExpiresIn)
	assert.Equal(t, "Bearer", rec.TokenType)
	assert.Equal(t, "acs", rec.Scope)
	assert.Equal(t, t0, rec.IssuedAt)
	assert.Equal(t, t0.Add(time.Hour), rec.ExpiresAt)

	status, err := f.mgr.TokenStatus(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, status.Valid)
	assert.Equal(t, "Bearer", status.TokenType)

	f.clock.Advance(58 * time.Minute)
	status, err = f.mgr.TokenStatus(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, status.Valid)
}

type failingTokenStore struct{ store.TokenStore }

func (failingTokenStore) SaveToken(context.Context, store.TokenRecord) error {
	return errors.New("disk full")
}

func TestGetToken_PersistFailureStillReturnsToken(t *testing.T) {
	creds := memory.NewCredentialStore()
	ctx := context.Background()
	require.NoError(t, creds.UpsertCredential(ctx, activeCredential("b1")))
	ex := &fakeExchanger{}

	mgr := service.NewTokenManager(creds, failingTokenStore{memory.NewTokenStore()}, ex, nil,
		service.TokenManagerConfig{}, logging.Discard())

	tok, err := mgr.GetToken(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.Value)

	// And the cache still serves it.
	_, err = mgr.GetToken(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, ex.Calls())
}
