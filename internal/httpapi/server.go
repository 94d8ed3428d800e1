package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
	"github.com/BrandonDHaskell/gymaccess/internal/auth"
	"github.com/BrandonDHaskell/gymaccess/internal/logging"
)

// Ingester accepts one webhook event for a branch.
type Ingester interface {
	Ingest(ctx context.Context, branchID string, env types.WebhookEnvelope) (types.IngestResult, error)
}

type Processor interface {
	ProcessEvents(ctx context.Context, tenantID string) (int, error)
}

type Syncer interface {
	SyncMemberAccess(ctx context.Context, memberID, branchID string) (bool, error)
	SyncBranch(ctx context.Context, branchID string) (types.BranchSyncReport, error)
	SimulateEvent(ctx context.Context, branchID string, req types.SimulateRequest) (types.IngestResult, error)
}

type TokenStatusReader interface {
	TokenStatus(ctx context.Context, tenantID string) (types.TokenStatus, error)
}

type DeviceLister interface {
	Devices(ctx context.Context, tenantID string) ([]store.DeviceRecord, error)
}

type Dependencies struct {
	Logger    logging.Logger
	Addr      string
	JWTSecret []byte

	Ingester  Ingester
	Processor Processor
	Syncer    Syncer
	Tokens    TokenStatusReader
	Devices   DeviceLister

	// Ping reports database health for /healthz.  Optional.
	Ping func(ctx context.Context) error
}

type Server struct {
	httpServer *http.Server
	log        logging.Logger
	mux        *http.ServeMux
	secret     []byte

	ingester  Ingester
	processor Processor
	syncer    Syncer
	tokens    TokenStatusReader
	devices   DeviceLister
	ping      func(ctx context.Context) error
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		log:       d.Logger.With("component", "httpapi"),
		mux:       mux,
		secret:    d.JWTSecret,
		ingester:  d.Ingester,
		processor: d.Processor,
		syncer:    d.Syncer,
		tokens:    d.Tokens,
		devices:   d.Devices,
		ping:      d.Ping,
	}

	mux.HandleFunc("POST /v1/hikvision/webhook/{branchID}", s.handleWebhook)
	mux.HandleFunc("POST /v1/hikvision/webhook", s.handleWebhookNoBranch)
	mux.HandleFunc("POST /v1/hikvision/webhook/{$}", s.handleWebhookNoBranch)

	mux.Handle("POST /v1/hikvision/sync",
		s.requireRole(http.HandlerFunc(s.handleSyncMember), auth.RoleAdmin, auth.RoleStaff))
	mux.Handle("POST /v1/hikvision/branches/{branchID}/sync",
		s.requireRole(http.HandlerFunc(s.handleSyncBranch), auth.RoleAdmin))
	mux.Handle("POST /v1/hikvision/branches/{branchID}/process",
		s.requireRole(http.HandlerFunc(s.handleProcess), auth.RoleAdmin, auth.RoleStaff))
	mux.Handle("POST /v1/hikvision/branches/{branchID}/simulate",
		s.requireRole(http.HandlerFunc(s.handleSimulate), auth.RoleAdmin))
	mux.Handle("GET /v1/hikvision/branches/{branchID}/token",
		s.requireRole(http.HandlerFunc(s.handleTokenStatus), auth.RoleAdmin))
	mux.Handle("GET /v1/hikvision/branches/{branchID}/devices",
		s.requireRole(http.HandlerFunc(s.handleDevices), auth.RoleAdmin, auth.RoleStaff))

	mux.HandleFunc("GET /healthz", s.handleHealth)

	handler := loggingMiddleware(s.log, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.log.Error(r.Context(), "health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
