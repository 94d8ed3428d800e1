package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/gymaccess/internal/access/service"
	"github.com/BrandonDHaskell/gymaccess/internal/healthsrv"
	"github.com/BrandonDHaskell/gymaccess/internal/httpapi"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the gRPC health server and the processing sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *options) error {
	cfg := opts.cfg
	log := opts.log

	if len(cfg.JWTSecret) == 0 {
		log.Warn(ctx, "GYMACCESS_JWT_SECRET is empty; admin endpoints will reject every request")
	}

	a, err := buildApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:    log,
		Addr:      cfg.HTTPAddr,
		JWTSecret: []byte(cfg.JWTSecret),
		Ingester:  a.ingest,
		Processor: a.processor,
		Syncer:    a.sync,
		Tokens:    a.tokens,
		Devices:   a.registry,
		Ping:      a.db.PingContext,
	})

	sweeper := service.NewProcessingSweeper(a.events, a.processor, cfg.ProcessInterval, log)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	health := healthsrv.New(cfg.GRPCAddr, a.db.PingContext, 0, log)
	go func() {
		if err := health.Run(ctx); err != nil {
			log.Error(ctx, "grpc health server error", "err", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		log.Error(ctx, "http server error", "err", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
	return err
}
