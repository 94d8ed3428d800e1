package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/gymaccess/internal/access/service"
	sqlitestore "github.com/BrandonDHaskell/gymaccess/internal/access/store/sqlite"
	"github.com/BrandonDHaskell/gymaccess/internal/config"
	"github.com/BrandonDHaskell/gymaccess/internal/db"
	"github.com/BrandonDHaskell/gymaccess/internal/hikvision"
)

// app is the wired dependency graph shared by serve, process and sync.
type app struct {
	db     *sql.DB
	writer *db.Worker

	creds     *sqlitestore.CredentialStore
	events    *sqlitestore.AccessEventStore
	tokens    *service.TokenManager
	registry  *service.DeviceRegistry
	processor *service.EventProcessor
	ingest    *service.IngestService
	sync      *service.SyncService
}

func buildApp(ctx context.Context, opts *options) (*app, error) {
	cfg := opts.cfg

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	writer := db.NewWorker(conn)

	policy, err := service.LoadDoorPolicy(cfg.DoorPolicyFile)
	if err != nil {
		writer.Close()
		_ = conn.Close()
		return nil, err
	}

	a := &app{
		db:     conn,
		writer: writer,
		creds:  sqlitestore.NewCredentialStore(conn, writer),
		events: sqlitestore.NewAccessEventStore(conn, writer),
	}

	client := hikvision.NewClient(vendorClientTimeout(cfg))

	a.tokens = service.NewTokenManager(
		a.creds,
		sqlitestore.NewTokenStore(conn, writer),
		client,
		service.NewMemoryTokenCache(),
		service.TokenManagerConfig{SafetyMargin: cfg.TokenSafetyMargin, ExchangeTimeout: cfg.ExchangeTimeout},
		opts.log,
	)
	a.registry = service.NewDeviceRegistry(sqlitestore.NewDeviceStore(conn, writer))
	mappings := sqlitestore.NewPersonMappingStore(conn, writer)
	a.processor = service.NewEventProcessor(
		a.events,
		sqlitestore.NewAttendanceStore(conn, writer),
		mappings,
		service.EventProcessorConfig{MaxAttempts: cfg.MaxProcessAttempts},
		opts.log,
	)
	a.ingest = service.NewIngestService(a.events, a.registry, a.processor, opts.log)
	a.sync = service.NewSyncService(
		sqlitestore.NewMembershipStore(conn),
		mappings,
		a.tokens,
		client,
		policy,
		a.ingest,
		service.SyncServiceConfig{PushTimeout: cfg.PushTimeout},
		opts.log,
	)

	return a, nil
}

// vendorClientTimeout caps the shared vendor HTTP client.  Token exchanges
// and privilege pushes each apply their own tighter deadline.
func vendorClientTimeout(cfg config.Config) time.Duration {
	return max(cfg.ExchangeTimeout, cfg.PushTimeout)
}

func (a *app) Close() {
	a.writer.Close()
	_ = a.db.Close()
}
