package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
	"github.com/BrandonDHaskell/gymaccess/internal/hikvision"
	"github.com/BrandonDHaskell/gymaccess/internal/logging"
)

// TokenSource is the part of TokenManager the sync service needs.
type TokenSource interface {
	GetToken(ctx context.Context, tenantID string) (Token, error)
	Invalidate(tenantID string)
}

type PrivilegePusher interface {
	PushPersonPrivileges(ctx context.Context, baseURL, token string, req hikvision.PersonPrivilegeRequest) error
}

type EventIngester interface {
	Ingest(ctx context.Context, branchID string, env types.WebhookEnvelope) (types.IngestResult, error)
}

type SyncServiceConfig struct {
	PushTimeout time.Duration
	Now         func() time.Time
}

// SyncService keeps device-side person records in line with membership.
type SyncService struct {
	members  store.MembershipStore
	mappings store.PersonMappingStore
	tokens   TokenSource
	pusher   PrivilegePusher
	policy   *DoorPolicy
	ingester EventIngester
	timeout  time.Duration
	now      func() time.Time
	log      logging.Logger
}

func NewSyncService(
	members store.MembershipStore,
	mappings store.PersonMappingStore,
	tokens TokenSource,
	pusher PrivilegePusher,
	policy *DoorPolicy,
	ingester EventIngester,
	cfg SyncServiceConfig,
	log logging.Logger,
) *SyncService {
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SyncService{
		members:  members,
		mappings: mappings,
		tokens:   tokens,
		pusher:   pusher,
		policy:   policy,
		ingester: ingester,
		timeout:  cfg.PushTimeout,
		now:      cfg.Now,
		log:      log.With("component", "sync"),
	}
}

// SyncMemberAccess re-derives the member's door set for branchID and pushes
// it in full to the device side.
//
// The returned error is reserved for bad input and unknown member or branch.
// Downstream failures are logged, recorded on the mapping and reported as
// false.
func (s *SyncService) SyncMemberAccess(ctx context.Context, memberID, branchID string) (bool, error) {
	memberID = strings.TrimSpace(memberID)
	branchID = strings.TrimSpace(branchID)
	if memberID == "" {
		return false, validationError("memberId is required")
	}
	if branchID == "" {
		return false, ErrInvalidBranchID
	}

	member, err := s.members.GetMember(ctx, memberID)
	if errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	if err != nil {
		return false, fmt.Errorf("load member: %w", err)
	}
	branch, err := s.members.GetBranch(ctx, branchID)
	if errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("%w: %s", ErrBranchNotFound, branchID)
	}
	if err != nil {
		return false, fmt.Errorf("load branch: %w", err)
	}

	log := s.log.With("member_id", memberID, "branch_id", branchID)

	mapping, err := s.mappings.GetMapping(ctx, memberID, branchID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		mapping = store.PersonMapping{
			MemberID: memberID,
			TenantID: branchID,
			PersonID: newPersonID(),
			State:    types.SyncUnsynced,
		}
	case err != nil:
		log.Error(ctx, "load person mapping", "err", err)
		return false, nil
	}

	now := s.now().UTC()
	active := isActive(member, branchID, now)

	target := []string{}
	if active {
		target = s.policy.Doors(branchID, member.PlanTier, branch.Doors)
	}

	req := hikvision.PersonPrivilegeRequest{
		PersonID:   mapping.PersonID,
		PersonName: member.Name,
		Doors:      target,
	}
	if active {
		req.ValidFrom = now.Format(time.RFC3339)
		if member.ExpiresAt != nil {
			req.ValidTo = member.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}

	if err := s.push(ctx, branchID, req); err != nil {
		log.Warn(ctx, "privilege push failed", "person_id", mapping.PersonID, "err", err)
		mapping.LastError = err.Error()
		mapping.UpdatedAt = now
		if serr := s.mappings.SaveMapping(ctx, mapping); serr != nil {
			log.Error(ctx, "save person mapping", "err", serr)
		}
		return false, nil
	}

	from := mapping.State
	mapping.Privileges = target
	mapping.LastSyncedAt = &now
	mapping.LastError = ""
	mapping.UpdatedAt = now
	if active {
		mapping.State = types.SyncSynced
	} else {
		mapping.State = types.SyncRevoked
	}

	if err := s.mappings.SaveMapping(ctx, mapping); err != nil {
		log.Error(ctx, "save person mapping", "err", err)
		return false, nil
	}

	log.Info(ctx, "member access synced",
		"person_id", mapping.PersonID, "from", from, "to", mapping.State, "doors", len(target))
	return true, nil
}

// SyncBranch syncs every member assigned to branchID.  A failing member
// never stops the batch.
func (s *SyncService) SyncBranch(ctx context.Context, branchID string) (types.BranchSyncReport, error) {
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return types.BranchSyncReport{}, ErrInvalidBranchID
	}
	if _, err := s.members.GetBranch(ctx, branchID); errors.Is(err, store.ErrNotFound) {
		return types.BranchSyncReport{}, fmt.Errorf("%w: %s", ErrBranchNotFound, branchID)
	} else if err != nil {
		return types.BranchSyncReport{}, fmt.Errorf("load branch: %w", err)
	}

	members, err := s.members.ListBranchMembers(ctx, branchID)
	if err != nil {
		return types.BranchSyncReport{}, fmt.Errorf("list branch members: %w", err)
	}

	report := types.BranchSyncReport{BranchID: branchID, Total: len(members)}
	for _, m := range members {
		ok, err := s.SyncMemberAccess(ctx, m.ID, branchID)
		if err != nil || !ok {
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, m.ID)
			continue
		}
		report.Succeeded++
	}

	s.log.Info(ctx, "branch sync done",
		"branch_id", branchID, "total", report.Total, "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// SimulateEvent feeds a synthetic device event through the normal ingestion
// path.  Used to test a branch setup without hardware.
func (s *SyncService) SimulateEvent(ctx context.Context, branchID string, req types.SimulateRequest) (types.IngestResult, error) {
	if s.ingester == nil {
		return types.IngestResult{}, errors.New("simulation unavailable")
	}
	if strings.TrimSpace(req.PersonID) == "" {
		return types.IngestResult{}, validationError("personId is required")
	}
	if strings.TrimSpace(req.EventType) == "" {
		return types.IngestResult{}, validationError("eventType is required")
	}

	now := s.now().UTC()
	env := types.WebhookEnvelope{
		MsgID:     uuid.NewString(),
		Topic:     "simulated",
		Timestamp: now.UnixMilli(),
		Data: &types.WebhookData{
			EventID:    "sim-" + uuid.NewString(),
			EventType:  req.EventType,
			EventTime:  now.Format(time.RFC3339Nano),
			PersonID:   req.PersonID,
			DoorID:     req.DoorID,
			DeviceID:   "simulator",
			DeviceName: "Simulator",
		},
	}
	return s.ingester.Ingest(ctx, branchID, env)
}

// push sends req with the tenant's current token.  A rejected token is
// invalidated and the push retried exactly once with a fresh one.
func (s *SyncService) push(ctx context.Context, tenantID string, req hikvision.PersonPrivilegeRequest) error {
	err := s.pushOnce(ctx, tenantID, req)
	if !errors.Is(err, hikvision.ErrTokenRejected) {
		return err
	}

	s.log.Info(ctx, "token rejected, retrying with fresh token", "tenant_id", tenantID)
	s.tokens.Invalidate(tenantID)
	return s.pushOnce(ctx, tenantID, req)
}

func (s *SyncService) pushOnce(ctx context.Context, tenantID string, req hikvision.PersonPrivilegeRequest) error {
	tok, err := s.tokens.GetToken(ctx, tenantID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.pusher.PushPersonPrivileges(ctx, tok.BaseURL, tok.Value, req)
}

func isActive(m store.MemberRecord, branchID string, now time.Time) bool {
	if m.Status != "active" || m.BranchID != branchID {
		return false
	}
	return m.ExpiresAt == nil || now.Before(*m.ExpiresAt)
}

// newPersonID returns a 32-char hex id, short enough for a device employee number.
func newPersonID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
