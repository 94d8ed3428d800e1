package service

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/store"
	"github.com/BrandonDHaskell/gymaccess/internal/logging"
)

// ProcessingSweeper periodically re-runs processing for every tenant with
// pending events, picking up anything a webhook-triggered pass left behind.
//
// An interval of 0 disables it.
type ProcessingSweeper struct {
	events    store.AccessEventStore
	processor Processor
	interval  time.Duration
	log       logging.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewProcessingSweeper creates a sweeper but does not start it.
func NewProcessingSweeper(es store.AccessEventStore, p Processor, interval time.Duration, log logging.Logger) *ProcessingSweeper {
	return &ProcessingSweeper{
		events:    es,
		processor: p,
		interval:  interval,
		log:       log.With("component", "processing_sweeper"),
		done:      make(chan struct{}),
	}
}

// Start runs one sweep immediately, then repeats on the interval until ctx
// is cancelled or Stop is called.
func (s *ProcessingSweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info(ctx, "processing sweeper disabled")
		close(s.done)
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)

	s.log.Info(ctx, "processing sweeper started", "interval", s.interval.String())
}

// Stop signals the sweeper to exit and waits for it.
func (s *ProcessingSweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *ProcessingSweeper) loop(ctx context.Context) {
	defer close(s.done)

	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce processes every pending tenant once and returns the total
// number of events processed.
func (s *ProcessingSweeper) SweepOnce(ctx context.Context) int {
	tenants, err := s.events.PendingTenants(ctx)
	if err != nil {
		s.log.Error(ctx, "list pending tenants", "err", err)
		return 0
	}

	total := 0
	for _, tenantID := range tenants {
		n, err := s.processor.ProcessEvents(ctx, tenantID)
		if err != nil {
			s.log.Error(ctx, "sweep tenant", "tenant_id", tenantID, "err", err)
		}
		total += n
	}
	if total > 0 {
		s.log.Info(ctx, "sweep done", "tenants", len(tenants), "processed", total)
	}
	return total
}
