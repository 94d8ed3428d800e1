package service_test

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/service"
	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	"github.com/BrandonDHaskell/gymaccess/internal/access/store/memory"
	"github.com/BrandonDHaskell/gymaccess/internal/hikvision"
	"github.com/BrandonDHaskell/gymaccess/internal/logging"
)

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

// fakeClock is a settable clock shared by the components under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeExchanger hands out tok-1, tok-2, ... unless err is set.
type fakeExchanger struct {
	mu        sync.Mutex
	calls     int
	expiresIn int64
	err       error
	block     chan struct{} // when non-nil, every call waits on it
}

func (f *fakeExchanger) ExchangeToken(ctx context.Context, baseURL, appKey, appSecret string) (hikvision.TokenResponse, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return hikvision.TokenResponse{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return hikvision.TokenResponse{}, f.err
	}
	exp := f.expiresIn
	if exp == 0 {
		exp = 7200
	}
	return hikvision.TokenResponse{
		AccessToken: "tok-" + strconv.Itoa(f.calls),
		ExpiresIn:   exp,
		TokenType:   "Bearer",
		Scope:       "acs",
	}, nil
}

func (f *fakeExchanger) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePusher records every push and replays scripted errors in order.
type fakePusher struct {
	mu     sync.Mutex
	errs   []error
	pushes []pushCall
}

type pushCall struct {
	BaseURL string
	Token   string
	Req     hikvision.PersonPrivilegeRequest
}

func (f *fakePusher) PushPersonPrivileges(_ context.Context, baseURL, token string, req hikvision.PersonPrivilegeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, pushCall{BaseURL: baseURL, Token: token, Req: req})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func (f *fakePusher) Pushes() []pushCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushCall(nil), f.pushes...)
}

func activeCredential(tenant string) store.CredentialRecord {
	return store.CredentialRecord{
		TenantID:  tenant,
		BaseURL:   "https://hik.example",
		AppKey:    "app-key",
		AppSecret: "app-secret",
		IsActive:  true,
	}
}

type tokenFixture struct {
	mgr    *service.TokenManager
	creds  *memory.CredentialStore
	tokens *memory.TokenStore
	ex     *fakeExchanger
	clock  *fakeClock
}

func newTokenFixture() *tokenFixture {
	f := &tokenFixture{
		creds:  memory.NewCredentialStore(),
		tokens: memory.NewTokenStore(),
		ex:     &fakeExchanger{expiresIn: 3600},
		clock:  newFakeClock(t0),
	}
	f.mgr = service.NewTokenManager(f.creds, f.tokens, f.ex, service.NewMemoryTokenCache(),
		service.TokenManagerConfig{SafetyMargin: 5 * time.Minute, ExchangeTimeout: time.Second, Now: f.clock.Now},
		logging.Discard())
	return f
}
