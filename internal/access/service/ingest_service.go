package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	"github.com/BrandonDHaskell/gymaccess/internal/access/types"
	"github.com/BrandonDHaskell/gymaccess/internal/logging"
)

// Processor runs a processing pass over one tenant's pending events.
type Processor interface {
	ProcessEvents(ctx context.Context, tenantID string) (int, error)
}

type IngestService struct {
	events    store.AccessEventStore
	registry  *DeviceRegistry
	processor Processor
	now       func() time.Time
	log       logging.Logger
}

func NewIngestService(es store.AccessEventStore, reg *DeviceRegistry, p Processor, log logging.Logger) *IngestService {
	return &IngestService{
		events:    es,
		registry:  reg,
		processor: p,
		now:       time.Now,
		log:       log.With("component", "ingest"),
	}
}

// Ingest stores one webhook event for branchID and then runs a processing
// pass for the branch before returning.
//
// A redelivered eventId is accepted and reported as Duplicate.  Processing
// errors are logged and never returned: the stored event stays pending for
// the next pass.
func (s *IngestService) Ingest(ctx context.Context, branchID string, env types.WebhookEnvelope) (types.IngestResult, error) {
	branchID = strings.TrimSpace(branchID)
	if branchID == "" {
		return types.IngestResult{}, ErrInvalidBranchID
	}
	if env.Data == nil {
		return types.IngestResult{}, validationError("data is required")
	}
	d := env.Data
	eventID := strings.TrimSpace(d.EventID)
	if eventID == "" {
		return types.IngestResult{}, validationError("data.eventId is required")
	}
	if strings.TrimSpace(d.EventType) == "" {
		return types.IngestResult{}, validationError("data.eventType is required")
	}

	now := s.now().UTC()
	eventType := ClassifyEventType(d.EventType)

	rec := store.AccessEventRecord{
		TenantID:     branchID,
		EventID:      eventID,
		MsgID:        env.MsgID,
		Topic:        env.Topic,
		EventType:    eventType,
		RawEventType: d.EventType,
		EventTime:    s.eventTime(ctx, branchID, eventID, d.EventTime, env.Timestamp, now),
		PersonID:     strings.TrimSpace(d.PersonID),
		PersonName:   d.PersonName,
		DoorID:       d.DoorID,
		DoorName:     d.DoorName,
		DeviceID:     d.DeviceID,
		DeviceName:   d.DeviceName,
		CardNo:       d.CardNo,
		FaceID:       d.FaceID,
		ReceivedAt:   now,
	}

	inserted, err := s.events.InsertEvent(ctx, rec)
	if err != nil {
		return types.IngestResult{}, fmt.Errorf("store event: %w", err)
	}

	res := types.IngestResult{EventID: eventID, EventType: eventType, Duplicate: !inserted}

	if inserted {
		s.log.Info(ctx, "event ingested",
			"branch_id", branchID, "event_id", eventID, "event_type", eventType, "raw_type", d.EventType)
		if s.registry != nil {
			if err := s.registry.NoteSeen(ctx, branchID, d.DeviceID, d.DeviceName); err != nil {
				s.log.Warn(ctx, "note device seen", "branch_id", branchID, "device_id", d.DeviceID, "err", err)
			}
		}
	} else {
		s.log.Debug(ctx, "duplicate event delivery", "branch_id", branchID, "event_id", eventID)
	}

	if s.processor != nil {
		n, err := s.processor.ProcessEvents(ctx, branchID)
		if err != nil {
			s.log.Error(ctx, "processing pass failed", "branch_id", branchID, "err", err)
		}
		res.Processed = n
	}

	return res, nil
}

// eventTime prefers the device-reported time, then the envelope timestamp,
// then the receipt time.
func (s *IngestService) eventTime(ctx context.Context, branchID, eventID, raw string, envelopeMs int64, received time.Time) time.Time {
	if raw = strings.TrimSpace(raw); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err == nil {
			return t.UTC()
		}
		s.log.Warn(ctx, "unparseable eventTime, falling back",
			"branch_id", branchID, "event_id", eventID, "event_time", raw, "err", err)
	}
	if envelopeMs > 0 {
		return time.UnixMilli(envelopeMs).UTC()
	}
	return received
}
