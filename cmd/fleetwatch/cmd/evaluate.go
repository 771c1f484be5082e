package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/engine"
	"github.com/fleetwatch/fleetwatch/internal/store"
	"github.com/fleetwatch/fleetwatch/pkg/logger"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run a single evaluation pass and heartbeat sweep, then exit",
	RunE:  runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewPostgresStore(ctx, cfg.Database.DSN(),
		store.WithPoolSize(cfg.Database.PoolSize),
		store.WithQueryTimeout(cfg.Database.QueryTimeout),
	)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer st.Close()

	eng := engine.NewEngine(st, buildNotifier(cfg, log),
		engine.WithLogger(log),
		engine.WithSnapshotLookback(cfg.Evaluation.SnapshotLookback),
		engine.WithDeviceConcurrency(cfg.Evaluation.DeviceConcurrency),
		engine.WithBatchThreshold(cfg.Dispatch.BatchThreshold),
		engine.WithRateLimit(cfg.Dispatch.RatePerSecond, cfg.Dispatch.RateBurst),
	)

	sched, err := engine.NewScheduler(eng, st, cfg.Heartbeat.SweepInterval, cfg.Heartbeat.StaleAfter, log)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	if err := sched.RunOnce(ctx); err != nil {
		return fmt.Errorf("running evaluation: %w", err)
	}

	log.Info("evaluation pass complete")
	return nil
}
