package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
	"github.com/BrandonDHaskell/gymaccess/internal/logging"
)

const DefaultMaxProcessAttempts = 5

type EventProcessorConfig struct {
	// MaxAttempts is how many failed passes an event survives before it is
	// dead-lettered.  0 means never.
	MaxAttempts int
	Now         func() time.Time
}

// EventProcessor turns pending access events into attendance sessions.
type EventProcessor struct {
	events      store.AccessEventStore
	sessions    store.AttendanceStore
	mappings    store.PersonMappingStore
	maxAttempts int
	now         func() time.Time
	log         logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEventProcessor(
	es store.AccessEventStore,
	as store.AttendanceStore,
	ms store.PersonMappingStore,
	cfg EventProcessorConfig,
	log logging.Logger,
) *EventProcessor {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &EventProcessor{
		events:      es,
		sessions:    as,
		mappings:    ms,
		maxAttempts: cfg.MaxAttempts,
		now:         cfg.Now,
		log:         log.With("component", "event_processor"),
		locks:       make(map[string]*sync.Mutex),
	}
}

// ProcessEvents applies every pending event of the tenant in event-time
// order and returns how many were marked processed.  A failing event is
// logged, counted as an attempt and skipped; it never aborts the pass.
func (p *EventProcessor) ProcessEvents(ctx context.Context, tenantID string) (int, error) {
	lock := p.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	pending, err := p.events.ListUnprocessed(ctx, tenantID, 0)
	if err != nil {
		return 0, fmt.Errorf("list unprocessed: %w", err)
	}

	processed := 0
	for _, ev := range pending {
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		anomaly, err := p.apply(ctx, ev)
		if err == nil {
			err = p.events.MarkProcessed(ctx, tenantID, ev.EventID, anomaly, p.now().UTC())
		}
		if err != nil {
			p.fail(ctx, ev, err)
			continue
		}
		processed++
	}

	if processed > 0 || len(pending) > 0 {
		p.log.Info(ctx, "processing pass done",
			"tenant_id", tenantID, "pending", len(pending), "processed", processed)
	}
	return processed, nil
}

func (p *EventProcessor) apply(ctx context.Context, ev store.AccessEventRecord) (string, error) {
	switch ev.EventType {
	case types.EventDenied:
		return "", nil
	case types.EventEntry:
		return p.applyEntry(ctx, ev)
	case types.EventExit:
		return p.applyExit(ctx, ev)
	default:
		return "", fmt.Errorf("unknown event type %q", ev.EventType)
	}
}

func (p *EventProcessor) applyEntry(ctx context.Context, ev store.AccessEventRecord) (string, error) {
	m, err := p.resolvePerson(ctx, ev)
	if err != nil {
		return "", err
	}

	open, err := p.sessions.OpenSession(ctx, ev.TenantID, ev.PersonID)
	switch {
	case err == nil:
		p.log.Warn(ctx, "duplicate entry ignored",
			"tenant_id", ev.TenantID, "event_id", ev.EventID, "person_id", ev.PersonID, "open_session", open.ID)
		return AnomalyDuplicateEntry, nil
	case !errors.Is(err, store.ErrNotFound):
		return "", fmt.Errorf("lookup open session: %w", err)
	}

	if err := p.sessions.StartSession(ctx, store.AttendanceSession{
		ID:           uuid.NewString(),
		TenantID:     ev.TenantID,
		MemberID:     m.MemberID,
		PersonID:     ev.PersonID,
		CheckIn:      ev.EventTime,
		EntryEventID: ev.EventID,
	}); err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return "", nil
}

func (p *EventProcessor) applyExit(ctx context.Context, ev store.AccessEventRecord) (string, error) {
	if _, err := p.resolvePerson(ctx, ev); err != nil {
		return "", err
	}

	open, err := p.sessions.OpenSession(ctx, ev.TenantID, ev.PersonID)
	if errors.Is(err, store.ErrNotFound) {
		p.log.Warn(ctx, "exit without open session",
			"tenant_id", ev.TenantID, "event_id", ev.EventID, "person_id", ev.PersonID)
		return AnomalyOrphanExit, nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup open session: %w", err)
	}
	// A late exit that predates the open check-in belongs to no session.
	if ev.EventTime.Before(open.CheckIn) {
		p.log.Warn(ctx, "exit before open session check-in",
			"tenant_id", ev.TenantID, "event_id", ev.EventID, "person_id", ev.PersonID,
			"open_session", open.ID, "check_in", open.CheckIn, "event_time", ev.EventTime)
		return AnomalyOrphanExit, nil
	}

	if err := p.sessions.CloseSession(ctx, open.ID, ev.EventTime, ev.EventID); err != nil {
		return "", fmt.Errorf("close session: %w", err)
	}
	return "", nil
}

func (p *EventProcessor) resolvePerson(ctx context.Context, ev store.AccessEventRecord) (store.PersonMapping, error) {
	if ev.PersonID == "" {
		return store.PersonMapping{}, fmt.Errorf("%w: event has no person id", ErrUnknownPerson)
	}
	m, err := p.mappings.FindByPersonID(ctx, ev.TenantID, ev.PersonID)
	if errors.Is(err, store.ErrNotFound) {
		return store.PersonMapping{}, fmt.Errorf("%w: %s", ErrUnknownPerson, ev.PersonID)
	}
	if err != nil {
		return store.PersonMapping{}, fmt.Errorf("resolve person: %w", err)
	}
	return m, nil
}

func (p *EventProcessor) fail(ctx context.Context, ev store.AccessEventRecord, cause error) {
	p.log.Warn(ctx, "event processing failed",
		"tenant_id", ev.TenantID, "event_id", ev.EventID, "attempt", ev.Attempts+1, "err", cause)

	dead, err := p.events.RecordFailure(ctx, ev.TenantID, ev.EventID, cause.Error(), p.maxAttempts)
	if err != nil {
		p.log.Error(ctx, "record processing failure", "tenant_id", ev.TenantID, "event_id", ev.EventID, "err", err)
		return
	}
	if dead {
		p.log.Error(ctx, "event dead-lettered",
			"tenant_id", ev.TenantID, "event_id", ev.EventID, "attempts", ev.Attempts+1, "last_error", cause)
	}
}

func (p *EventProcessor) tenantLock(tenantID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[tenantID] = l
	}
	return l
}
