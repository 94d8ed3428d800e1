package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/service"
	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
)

// ── Webhook ──────────────────────────────────────────────────────────────────

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	branchID := strings.TrimSpace(r.PathValue("branchID"))
	if branchID == "" {
		writeError(w, http.StatusBadRequest, "invalid_branch_id", service.ErrInvalidBranchID.Error())
		return
	}

	env, err := decodeEnvelope(r)
	if err != nil {
		s.log.Debug(r.Context(), "bad webhook body", "branch_id", branchID, "err", err)
		writeError(w, http.StatusBadRequest, "bad_body", "invalid request body")
		return
	}

	res, err := s.ingester.Ingest(r.Context(), branchID, env)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidBranchID):
			writeError(w, http.StatusBadRequest, "invalid_branch_id", err.Error())
		case errors.Is(err, service.ErrValidation):
			writeError(w, http.StatusBadRequest, "invalid_event", err.Error())
		default:
			s.log.Error(r.Context(), "webhook ingest failed", "branch_id", branchID, "err", err)
			writeInternal(w)
		}
		return
	}

	msg := "event received"
	if res.Duplicate {
		msg = "duplicate event ignored"
	}
	writeJSON(w, http.StatusOK, types.IngestResponse{Message: msg, IngestResult: res})
}

func (s *Server) handleWebhookNoBranch(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusBadRequest, "invalid_branch_id", service.ErrInvalidBranchID.Error())
}

// ── Sync ─────────────────────────────────────────────────────────────────────

func (s *Server) handleSyncMember(w http.ResponseWriter, r *http.Request) {
	var req types.SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	ok, err := s.syncer.SyncMemberAccess(r.Context(), req.MemberID, req.BranchID)
	if err != nil {
		s.writeServiceError(w, r, "sync member", err)
		return
	}
	if !ok {
		writeError(w, http.StatusInternalServerError, "sync_failed", "access sync failed, see server logs")
		return
	}

	writeJSON(w, http.StatusOK, types.SyncResponse{
		Message:  "member access synced",
		MemberID: req.MemberID,
		BranchID: req.BranchID,
		Success:  true,
	})
}

func (s *Server) handleSyncBranch(w http.ResponseWriter, r *http.Request) {
	report, err := s.syncer.SyncBranch(r.Context(), r.PathValue("branchID"))
	if err != nil {
		s.writeServiceError(w, r, "sync branch", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ── Processing ───────────────────────────────────────────────────────────────

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	branchID := r.PathValue("branchID")

	n, err := s.processor.ProcessEvents(r.Context(), branchID)
	if err != nil {
		s.log.Error(r.Context(), "process events", "branch_id", branchID, "err", err)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, types.ProcessResponse{Message: "processing pass complete", BranchID: branchID, Processed: n})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req types.SimulateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	res, err := s.syncer.SimulateEvent(r.Context(), r.PathValue("branchID"), req)
	if err != nil {
		s.writeServiceError(w, r, "simulate event", err)
		return
	}
	writeJSON(w, http.StatusOK, types.IngestResponse{Message: "simulated event ingested", IngestResult: res})
}

// ── Observability ────────────────────────────────────────────────────────────

func (s *Server) handleTokenStatus(w http.ResponseWriter, r *http.Request) {
	branchID := r.PathValue("branchID")

	st, err := s.tokens.TokenStatus(r.Context(), branchID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no_token", "no token has been issued for this branch")
		return
	}
	if err != nil {
		s.log.Error(r.Context(), "token status", "branch_id", branchID, "err", err)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	branchID := r.PathValue("branchID")

	devices, err := s.devices.Devices(r.Context(), branchID)
	if err != nil {
		s.log.Error(r.Context(), "list devices", "branch_id", branchID, "err", err)
		writeInternal(w)
		return
	}

	type device struct {
		DeviceID string `json:"deviceId"`
		Name     string `json:"name,omitempty"`
		LastSeen string `json:"lastSeen"`
	}
	out := make([]device, 0, len(devices))
	for _, d := range devices {
		out = append(out, device{DeviceID: d.DeviceID, Name: d.Name, LastSeen: d.LastSeen.Format(time.RFC3339)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"branchId": branchID, "devices": out})
}

func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, service.ErrMemberNotFound):
		writeError(w, http.StatusNotFound, "member_not_found", err.Error())
	case errors.Is(err, service.ErrBranchNotFound):
		writeError(w, http.StatusNotFound, "branch_not_found", err.Error())
	case errors.Is(err, service.ErrInvalidBranchID), errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrNotConfigured):
		writeError(w, http.StatusConflict, "not_configured", "Access control not configured")
	default:
		s.log.Error(r.Context(), op+" failed", "err", err)
		writeInternal(w)
	}
}
