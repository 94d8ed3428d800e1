package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
	"github.com/BrandonDHaskell/gymaccess/internal/hikvision"
	"github.com/BrandonDHaskell/gymaccess/internal/logging"
)

const DefaultSafetyMargin = 5 * time.Minute

// TokenExchanger performs the vendor credential-for-token exchange.
type TokenExchanger interface {
	ExchangeToken(ctx context.Context, baseURL, appKey, appSecret string) (hikvision.TokenResponse, error)
}

// CachedToken is one cache entry.  Fingerprint identifies the credential the
// token was issued for.
type CachedToken struct {
	Value       string
	Type        string
	BaseURL     string
	Fingerprint string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type TokenCache interface {
	Get(tenantID string) (CachedToken, bool)
	Set(tenantID string, t CachedToken)
	Delete(tenantID string)
}

type MemoryTokenCache struct {
	mu sync.RWMutex
	m  map[string]CachedToken
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{m: make(map[string]CachedToken)}
}

func (c *MemoryTokenCache) Get(tenantID string) (CachedToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.m[tenantID]
	return t, ok
}

func (c *MemoryTokenCache) Set(tenantID string, t CachedToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[tenantID] = t
}

func (c *MemoryTokenCache) Delete(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, tenantID)
}

// Token is what callers get back: enough to call the tenant's vendor API.
type Token struct {
	Value     string
	Type      string
	BaseURL   string
	ExpiresAt time.Time
}

type TokenManagerConfig struct {
	SafetyMargin    time.Duration
	ExchangeTimeout time.Duration
	Now             func() time.Time
}

// TokenManager hands out vendor access tokens per tenant, exchanging
// credentials only when the cached token is missing or about to expire.
type TokenManager struct {
	creds     store.CredentialStore
	tokens    store.TokenStore
	exchanger TokenExchanger
	cache     TokenCache
	margin    time.Duration
	timeout   time.Duration
	now       func() time.Time
	log       logging.Logger

	group singleflight.Group
}

func NewTokenManager(
	creds store.CredentialStore,
	tokens store.TokenStore,
	exchanger TokenExchanger,
	cache TokenCache,
	cfg TokenManagerConfig,
	log logging.Logger,
) *TokenManager {
	if cache == nil {
		cache = NewMemoryTokenCache()
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = DefaultSafetyMargin
	}
	if cfg.ExchangeTimeout <= 0 {
		cfg.ExchangeTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenManager{
		creds:     creds,
		tokens:    tokens,
		exchanger: exchanger,
		cache:     cache,
		margin:    cfg.SafetyMargin,
		timeout:   cfg.ExchangeTimeout,
		now:       cfg.Now,
		log:       log.With("component", "token_manager"),
	}
}

// GetToken returns a cached token that is still outside the safety margin,
// or exchanges the tenant's active credential for a new one.
//
// No active credential yields ErrNotConfigured without any network call.
// A failed exchange yields *AuthenticationError and caches nothing.
func (m *TokenManager) GetToken(ctx context.Context, tenantID string) (Token, error) {
	cred, err := m.activeCredential(ctx, tenantID)
	if err != nil {
		return Token{}, err
	}

	if t, ok := m.cachedToken(tenantID, fingerprint(cred)); ok {
		return t, nil
	}

	ch := m.group.DoChan(tenantID, func() (any, error) {
		// A concurrent flight may have filled the cache meanwhile.
		if t, ok := m.cachedToken(tenantID, fingerprint(cred)); ok {
			return t, nil
		}
		// Shared by every waiter: detached from the starting caller's
		// cancellation, bounded by m.timeout inside exchange.
		return m.exchange(context.WithoutCancel(ctx), tenantID, cred)
	})

	select {
	case <-ctx.Done():
		return Token{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

// Invalidate drops the cached token so the next GetToken exchanges again.
func (m *TokenManager) Invalidate(tenantID string) {
	m.cache.Delete(tenantID)
	m.log.Debug(context.Background(), "token invalidated", "tenant_id", tenantID)
}

// Refresh invalidates and re-acquires unconditionally.
func (m *TokenManager) Refresh(ctx context.Context, tenantID string) (Token, error) {
	m.Invalidate(tenantID)
	m.group.Forget(tenantID)
	return m.GetToken(ctx, tenantID)
}

// TokenStatus reports the persisted metadata of the tenant's latest token.
func (m *TokenManager) TokenStatus(ctx context.Context, tenantID string) (types.TokenStatus, error) {
	rec, err := m.tokens.LatestToken(ctx, tenantID)
	if err != nil {
		return types.TokenStatus{}, err
	}
	return types.TokenStatus{
		TenantID:  rec.TenantID,
		TokenType: rec.TokenType,
		Scope:     rec.Scope,
		IssuedAt:  rec.IssuedAt,
		ExpiresAt: rec.ExpiresAt,
		Valid:     m.now().Add(m.margin).Before(rec.ExpiresAt),
	}, nil
}

func (m *TokenManager) activeCredential(ctx context.Context, tenantID string) (store.CredentialRecord, error) {
	cred, err := m.creds.ActiveCredential(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		// Deactivated credentials must not keep serving a cached token.
		m.cache.Delete(tenantID)
		return store.CredentialRecord{}, fmt.Errorf("%w: tenant %s", ErrNotConfigured, tenantID)
	}
	if err != nil {
		return store.CredentialRecord{}, fmt.Errorf("load credential: %w", err)
	}
	return cred, nil
}

func (m *TokenManager) cachedToken(tenantID, fp string) (Token, bool) {
	c, ok := m.cache.Get(tenantID)
	if !ok {
		return Token{}, false
	}
	if c.Fingerprint != fp {
		m.cache.Delete(tenantID)
		return Token{}, false
	}
	if !m.now().Add(m.margin).Before(c.ExpiresAt) {
		return Token{}, false
	}
	return Token{Value: c.Value, Type: c.Type, BaseURL: c.BaseURL, ExpiresAt: c.ExpiresAt}, true
}

func (m *TokenManager) exchange(ctx context.Context, tenantID string, cred store.CredentialRecord) (Token, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.exchanger.ExchangeToken(ctx, cred.BaseURL, cred.AppKey, cred.AppSecret)
	if err != nil {
		authErr := newAuthenticationError(tenantID, err)
		m.log.Warn(ctx, "token exchange failed",
			"tenant_id", tenantID, "code", authErr.Code, "msg", authErr.Message)
		return Token{}, authErr
	}

	issued := m.now().UTC()
	expires := issued.Add(time.Duration(resp.ExpiresIn) * time.Second)

	m.cache.Set(tenantID, CachedToken{
		Value:       resp.AccessToken,
		Type:        resp.TokenType,
		BaseURL:     cred.BaseURL,
		Fingerprint: fingerprint(cred),
		IssuedAt:    issued,
		ExpiresAt:   expires,
	})

	if err := m.tokens.SaveToken(ctx, store.TokenRecord{
		TenantID:     tenantID,
		AccessToken:  resp.AccessToken,
		ExpiresIn:    resp.ExpiresIn,
		TokenType:    resp.TokenType,
		Scope:        resp.Scope,
		RefreshToken: resp.RefreshToken,
		IssuedAt:     issued,
		ExpiresAt:    expires,
		UpdatedAt:    issued,
	}); err != nil {
		m.log.Error(ctx, "persist token metadata", "tenant_id", tenantID, "err", err)
	}

	m.log.Info(ctx, "token exchanged", "tenant_id", tenantID, "expires_at", expires)
	return Token{Value: resp.AccessToken, Type: resp.TokenType, BaseURL: cred.BaseURL, ExpiresAt: expires}, nil
}

func newAuthenticationError(tenantID string, err error) *AuthenticationError {
	e := &AuthenticationError{TenantID: tenantID, Err: err}

	var apiErr *hikvision.APIError
	switch {
	case errors.As(err, &apiErr):
		e.Code, e.Message = apiErr.Code, apiErr.Message
		if e.Code == "" {
			e.Code = fmt.Sprintf("http_%d", apiErr.Status)
		}
	case errors.Is(err, context.DeadlineExceeded):
		e.Code, e.Message = "timeout", "token exchange timed out"
	case errors.Is(err, context.Canceled):
		e.Code, e.Message = "canceled", "token exchange canceled"
	default:
		e.Code, e.Message = "network_error", err.Error()
	}
	return e
}

// fingerprint changes whenever any part of the credential does.  The secret
// is hashed so it never sits in the cache in clear.
func fingerprint(c store.CredentialRecord) string {
	sum := sha256.Sum256([]byte(c.BaseURL + "\x00" + c.AppKey + "\x00" + c.AppSecret))
	return hex.EncodeToString(sum[:])
}
