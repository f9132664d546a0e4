package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tokamint/tokamint/internal/audit"
	"github.com/tokamint/tokamint/internal/config"
	"github.com/tokamint/tokamint/internal/infra"
	"github.com/tokamint/tokamint/internal/ledger"
	"github.com/tokamint/tokamint/internal/logging"
	"github.com/tokamint/tokamint/internal/principal"
	"github.com/tokamint/tokamint/internal/server"
	"github.com/tokamint/tokamint/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	owner, err := principal.FromText(cfg.OwnerPrincipal)
	if err != nil {
		logger.Error("parse owner principal", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var db *pgxpool.Pool
	var notifier audit.Notifier = audit.NewLoggerNotifier(logger)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		notifier = audit.NewPostgresNotifier(db)
	} else if !cfg.IsDev() {
		logger.Warn("no DATABASE_URL set, audit events go to the log only")
	}
	recorder := audit.NewRecorder(notifier, logger, 256)

	var cache *redis.Client
	var snapStore snapshot.Store
	if cfg.RedisURL != "" {
		var err error
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		snapStore = snapshot.NewRedis(cache, cfg.SnapshotKey)
	} else {
		logger.Warn("no REDIS_URL set, ledger state will not survive restarts")
		snapStore = snapshot.NewMemory()
	}

	l := ledger.New(ledger.Options{
		Name:          cfg.TokenName,
		Symbol:        cfg.TokenSymbol,
		Logo:          cfg.TokenLogo,
		Decimals:      cfg.TokenDecimals,
		Fee:           cfg.TransferFee,
		Owner:         owner,
		InitialSupply: cfg.InitialSupply,
		TxWindow:      cfg.TxWindow,
		Drift:         cfg.PermittedDrift,
		Audit:         recorder,
	})

	if blob, err := snapStore.Load(ctx); err == nil {
		var snap ledger.Snapshot
		if err := json.Unmarshal(blob, &snap); err != nil {
			logger.Error("decode snapshot", "error", err)
			os.Exit(1)
		}
		if err := l.Restore(snap); err != nil {
			logger.Error("restore snapshot", "error", err)
			os.Exit(1)
		}
		logger.Info("ledger state restored", "supply", l.TotalSupply())
	} else if !errors.Is(err, snapshot.ErrNotFound) {
		logger.Error("load snapshot", "error", err)
		os.Exit(1)
	} else {
		logger.Info("starting from genesis", "supply", cfg.InitialSupply)
	}

	srv, err := server.New(cfg, l, db, cache, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Persist the ledger state after the HTTP surface has quiesced so the
	// snapshot reflects the final committed operation.
	blob, err := json.Marshal(l.Export())
	if err != nil {
		logger.Error("encode snapshot", "error", err)
	} else if err := snapStore.Save(shutdownCtx, blob); err != nil {
		logger.Error("save snapshot", "error", err)
	} else {
		logger.Info("ledger snapshot saved")
	}

	recorder.Close()
	logger.Info("server exited cleanly")
}
