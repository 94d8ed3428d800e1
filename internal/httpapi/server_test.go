package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/gymaccess/internal/access/service"
	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	"github.com/BrandonDHaskell/gymaccess/internal/access/store/memory"
	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
	"github.com/BrandonDHaskell/gymaccess/internal/auth"
	"github.com/BrandonDHaskell/gymaccess/internal/hikvision"
	"github.com/BrandonDHaskell/gymaccess/internal/httpapi"
	"github.com/BrandonDHaskell/gymaccess/internal/logging"
)

var secret = []byte("test-secret")

type stubExchanger struct{}

func (stubExchanger) ExchangeToken(context.Context, string, string, string) (hikvision.TokenResponse, error) {
	return hikvision.TokenResponse{AccessToken: "tok", ExpiresIn: 7200, TokenType: "Bearer"}, nil
}

type stubPusher struct {
	mu  sync.Mutex
	err error
	n   int
}

func (p *stubPusher) PushPersonPrivileges(context.Context, string, string, hikvision.PersonPrivilegeRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
	return p.err
}

func (p *stubPusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

func (p *stubPusher) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

type fixture struct {
	ts       *httptest.Server
	events   *memory.AccessEventStore
	mappings *memory.PersonMappingStore
	sessions *memory.AttendanceStore
	pusher   *stubPusher
}

// newTestServer wires the full dependency graph over in-memory stores.
func newTestServer(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logging.Discard()

	f := &fixture{
		events:   memory.NewAccessEventStore(),
		mappings: memory.NewPersonMappingStore(),
		sessions: memory.NewAttendanceStore(),
		pusher:   &stubPusher{},
	}

	creds := memory.NewCredentialStore()
	require.NoError(t, creds.UpsertCredential(ctx, store.CredentialRecord{
		TenantID: "b1", BaseURL: "https://hik.example", AppKey: "k", AppSecret: "s", IsActive: true,
	}))
	members := memory.NewMembershipStore()
	members.PutBranch(store.BranchRecord{ID: "b1", Doors: []string{"door-1"}})
	members.PutMember(store.MemberRecord{ID: "m-1", Name: "Ana", BranchID: "b1", Status: "active"})

	tokens := service.NewTokenManager(creds, memory.NewTokenStore(), stubExchanger{}, nil, service.TokenManagerConfig{}, log)
	registry := service.NewDeviceRegistry(memory.NewDeviceStore())
	proc := service.NewEventProcessor(f.events, f.sessions, f.mappings, service.EventProcessorConfig{MaxAttempts: 5}, log)
	ingest := service.NewIngestService(f.events, registry, proc, log)
	syncSvc := service.NewSyncService(members, f.mappings, tokens, f.pusher, nil, ingest, service.SyncServiceConfig{}, log)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:    log,
		Addr:      ":0",
		JWTSecret: secret,
		Ingester:  ingest,
		Processor: proc,
		Syncer:    syncSvc,
		Tokens:    tokens,
		Devices:   registry,
	})

	f.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(f.ts.Close)
	return f
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := auth.GenerateToken("user-1", role, secret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(t *testing.T, method, url, authz, contentType string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

const webhookBody = `{
  "msgId": "m-1",
  "topic": "acs/event",
  "timestamp": 1777629600000,
  "data": {
    "eventId": "E1",
    "eventType": "access_granted_door1",
    "eventTime": "2026-05-01T10:00:00Z",
    "personId": "p-1",
    "deviceId": "dev-1",
    "deviceName": "Turnstile"
  }
}`

// ── Webhook ──────────────────────────────────────────────────────────────────

func TestWebhook_SameEventTwice_OneRowBoth200(t *testing.T) {
	f := newTestServer(t)
	url := f.ts.URL + "/v1/hikvision/webhook/b1"

	first := do(t, http.MethodPost, url, "", "application/json", []byte(webhookBody))
	require.Equal(t, http.StatusOK, first.StatusCode)
	body := decode[types.IngestResponse](t, first)
	assert.Equal(t, "E1", body.EventID)
	assert.Equal(t, types.EventEntry, body.EventType)
	assert.False(t, body.Duplicate)
	assert.NotEmpty(t, body.Message)

	second := do(t, http.MethodPost, url, "", "application/json", []byte(webhookBody))
	require.Equal(t, http.StatusOK, second.StatusCode)
	assert.True(t, decode[types.IngestResponse](t, second).Duplicate)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "E1", events[0].EventID)
}

func TestWebhook_BadRequests(t *testing.T) {
	f := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"no branch", "/v1/hikvision/webhook", webhookBody},
		{"trailing slash", "/v1/hikvision/webhook/", webhookBody},
		{"missing data", "/v1/hikvision/webhook/b1", `{"msgId":"m"}`},
		{"missing eventId", "/v1/hikvision/webhook/b1", `{"data":{"eventType":"entry"}}`},
		{"missing eventType", "/v1/hikvision/webhook/b1", `{"data":{"eventId":"E9"}}`},
		{"malformed json", "/v1/hikvision/webhook/b1", `{"data":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, f.ts.URL+tt.path, "", "application/json", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, decode[types.ErrorResponse](t, resp).Message)
		})
	}
	assert.Empty(t, f.events.Events())
}

func TestWebhook_WrongMethodIs405(t *testing.T) {
	f := newTestServer(t)

	resp := do(t, http.MethodGet, f.ts.URL+"/v1/hikvision/webhook/b1", "", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebhook_ProtobufStructBody(t *testing.T) {
	f := newTestServer(t)

	st, err := structpb.NewStruct(map[string]any{
		"msgId":     "m-2",
		"topic":     "acs/event",
		"timestamp": float64(1777629600000),
		"data": map[string]any{
			"eventId":   "E2",
			"eventType": "exit_gate_B",
			"personId":  "p-1",
		},
	})
	require.NoError(t, err)
	raw, err := proto.Marshal(st)
	require.NoError(t, err)

	resp := do(t, http.MethodPost, f.ts.URL+"/v1/hikvision/webhook/b1", "", "application/x-protobuf", raw)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.EventExit, decode[types.IngestResponse](t, resp).EventType)

	ev, err := f.events.GetEvent(context.Background(), "b1", "E2")
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1777629600000).UTC(), ev.EventTime)
}

func TestWebhook_ProcessesSynchronously(t *testing.T) {
	f := newTestServer(t)
	require.NoError(t, f.mappings.SaveMapping(context.Background(), store.PersonMapping{
		MemberID: "m-1", TenantID: "b1", PersonID: "p-1",
	}))

	resp := do(t, http.MethodPost, f.ts.URL+"/v1/hikvision/webhook/b1", "", "application/json", []byte(webhookBody))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[types.IngestResponse](t, resp).Processed)

	_, err := f.sessions.OpenSession(context.Background(), "b1", "p-1")
	assert.NoError(t, err)
}

type brokenIngester struct{}

func (brokenIngester) Ingest(context.Context, string, types.WebhookEnvelope) (types.IngestResult, error) {
	return types.IngestResult{}, errors.New("sqlite: database is locked; secret=app-secret")
}

func TestWebhook_InternalErrorIsGeneric(t *testing.T) {
	srv := httpapi.NewServer(httpapi.Dependencies{Logger: logging.Discard(), Ingester: brokenIngester{}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp := do(t, http.MethodPost, ts.URL+"/v1/hikvision/webhook/b1", "", "application/json", []byte(webhookBody))
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decode[types.ErrorResponse](t, resp)
	assert.Equal(t, "internal_error", body.Error)
	assert.NotContains(t, body.Message, "secret")
}

// ── Sync trigger ─────────────────────────────────────────────────────────────

func TestSync_Authorization(t *testing.T) {
	f := newTestServer(t)
	url := f.ts.URL + "/v1/hikvision/sync"
	body := []byte(`{"memberId":"m-1","branchId":"b1"}`)

	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodPost, url, "", "application/json", body).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodPost, url, "Bearer garbage", "application/json", body).StatusCode)
	assert.Equal(t, http.StatusForbidden, do(t, http.MethodPost, url, bearer(t, auth.RoleMember), "application/json", body).StatusCode)
	assert.Zero(t, f.pusher.count())

	resp := do(t, http.MethodPost, url, bearer(t, auth.RoleStaff), "application/json", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[types.SyncResponse](t, resp).Success)
	assert.Equal(t, 1, f.pusher.count())

	resp = do(t, http.MethodPost, url, bearer(t, auth.RoleAdmin), "application/json", body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSync_StatusCodes(t *testing.T) {
	f := newTestServer(t)
	url := f.ts.URL + "/v1/hikvision/sync"
	admin := bearer(t, auth.RoleAdmin)

	resp := do(t, http.MethodPost, url, admin, "application/json", []byte(`{"memberId":"ghost","branchId":"b1"}`))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, url, admin, "application/json", []byte(`{"memberId":"m-1","branchId":"nowhere"}`))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, url, admin, "application/json", []byte(`{"memberId":"m-1"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.pusher.fail(errors.New("device offline"))
	resp = do(t, http.MethodPost, url, admin, "application/json", []byte(`{"memberId":"m-1","branchId":"b1"}`))
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "sync_failed", decode[types.ErrorResponse](t, resp).Error)
}

// ── Branch admin ─────────────────────────────────────────────────────────────

func TestBranchEndpoints(t *testing.T) {
	f := newTestServer(t)
	admin := bearer(t, auth.RoleAdmin)
	base := f.ts.URL + "/v1/hikvision/branches/b1"

	resp := do(t, http.MethodGet, base+"/token", admin, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/sync", admin, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[types.BranchSyncReport](t, resp)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Succeeded)

	resp = do(t, http.MethodGet, base+"/token", admin, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[types.TokenStatus](t, resp)
	assert.True(t, status.Valid)
	assert.Equal(t, "Bearer", status.TokenType)

	// Staff may process but not simulate.
	resp = do(t, http.MethodPost, base+"/simulate", bearer(t, auth.RoleStaff), "application/json",
		[]byte(`{"personId":"p-1","eventType":"entry"}`))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/simulate", admin, "application/json",
		[]byte(`{"personId":"p-1","eventType":"entry"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sim := decode[types.IngestResponse](t, resp)
	assert.True(t, strings.HasPrefix(sim.EventID, "sim-"))
	assert.Zero(t, sim.Processed, "p-1 has no mapping yet")

	require.NoError(t, f.mappings.SaveMapping(context.Background(), store.PersonMapping{
		MemberID: "m-x", TenantID: "b1", PersonID: "p-1",
	}))

	resp = do(t, http.MethodPost, base+"/process", bearer(t, auth.RoleStaff), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[types.ProcessResponse](t, resp).Processed)

	resp = do(t, http.MethodGet, base+"/devices", admin, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	devices := decode[map[string]any](t, resp)
	assert.Len(t, devices["devices"], 1)
}

func TestHealthz(t *testing.T) {
	f := newTestServer(t)

	resp := do(t, http.MethodGet, f.ts.URL+"/healthz", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger: logging.Discard(),
		Ping:   func(context.Context) error { return errors.New("db gone") },
	})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
