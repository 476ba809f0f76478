package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/mnshuhailey/ppa-sap/internal/config"
	"github.com/mnshuhailey/ppa-sap/internal/database"
	"github.com/mnshuhailey/ppa-sap/internal/flatfile"
	sapHttp "github.com/mnshuhailey/ppa-sap/internal/http"
	jobHandler "github.com/mnshuhailey/ppa-sap/internal/http/job"
	"github.com/mnshuhailey/ppa-sap/internal/inbound"
	"github.com/mnshuhailey/ppa-sap/internal/ledger"
	ledgerStore "github.com/mnshuhailey/ppa-sap/internal/ledger/store"
	"github.com/mnshuhailey/ppa-sap/internal/outbound"
	"github.com/mnshuhailey/ppa-sap/internal/reconcile"
	"github.com/mnshuhailey/ppa-sap/internal/sap"
	"github.com/mnshuhailey/ppa-sap/internal/scheduler"
	sourceStore "github.com/mnshuhailey/ppa-sap/internal/source/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("sapsync failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	templates, err := flatfile.DefaultSet()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	dial, err := newDialer(cfg)
	if err != nil {
		return err
	}

	db, err := database.New(ctx, cfg.ConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	var (
		sources       = sourceStore.New(db)
		ledgerService = ledger.NewService(ledgerStore.New(db))
		mapper        = reconcile.NewMapper(sources)
	)

	var (
		outboundService = outbound.NewService(sources, ledgerService, dial, templates, outbound.Config{
			OutgoingDir: cfg.Transfer.OutgoingDir,
			Sender:      cfg.SAP.Sender,
			ChunkSize:   cfg.SAP.ChunkSize,
			Location:    loc,
		}, logger)
		inboundService = inbound.NewService(ledgerService, mapper, dial, inbound.Config{
			StatusDir:  cfg.Transfer.StatusDir,
			InboundDir: cfg.Transfer.InboundDir,
			Lookback:   cfg.SAP.InboundLookback,
		}, logger)
	)

	jobs := append(
		scheduler.DocJobs("outbound", outbound.Docs(), func(ctx context.Context, doc sap.DocType) error {
			_, err := outboundService.Run(ctx, doc)
			return err
		}),
		scheduler.DocJobs("inbound", inbound.Docs(), func(ctx context.Context, doc sap.DocType) error {
			_, err := inboundService.Run(ctx, doc)
			return err
		})...,
	)

	jobs, err = scheduler.Enabled(jobs, cfg.App.Jobs)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(cfg.App.Interval, logger, jobs...)
	if err != nil {
		return err
	}

	if cfg.App.Mode == config.ModeOnce {
		return sched.RunAll(ctx)
	}

	router := sapHttp.New(jobHandler.NewHandler(sched), db)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "port", srv.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		if err := sched.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 30*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.App.LogLevel)); err != nil {
		return nil, fmt.Errorf("parsing LOG_LEVEL: %w", err)
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.App.LogJSON {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h).With("app", cfg.App.Name), nil
}
