package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/fleetwatch/fleetwatch/internal/api/handlers"
	"github.com/fleetwatch/fleetwatch/internal/api/middleware"
	"github.com/fleetwatch/fleetwatch/internal/config"
	"github.com/fleetwatch/fleetwatch/internal/engine"
	"github.com/fleetwatch/fleetwatch/internal/ingest"
	"github.com/fleetwatch/fleetwatch/internal/notify"
	"github.com/fleetwatch/fleetwatch/internal/store"
	"github.com/fleetwatch/fleetwatch/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the evaluator, scheduler, ingest consumer, and API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
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

	notifier := buildNotifier(cfg, log)

	engineOpts := []engine.EngineOption{
		engine.WithLogger(log),
		engine.WithPollInterval(cfg.Evaluation.PollInterval),
		engine.WithSnapshotLookback(cfg.Evaluation.SnapshotLookback),
		engine.WithDeviceConcurrency(cfg.Evaluation.DeviceConcurrency),
		engine.WithBatchThreshold(cfg.Dispatch.BatchThreshold),
		engine.WithRateLimit(cfg.Dispatch.RatePerSecond, cfg.Dispatch.RateBurst),
	}

	// LISTEN/NOTIFY wakeups are an optimization on top of the poll loop:
	// the evaluator still polls even when the listener is down.
	if cfg.Evaluation.ListenEnabled {
		listener := store.NewListener(cfg.Database.DSN(), cfg.Evaluation.ListenChannel, log)
		go func() {
			if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("notify listener stopped", "error", err)
			}
		}()
		engineOpts = append(engineOpts, engine.WithWakeChannel(listener.Wake()))
	}

	eng := engine.NewEngine(st, notifier, engineOpts...)
	go func() {
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("evaluation loop stopped", "error", err)
		}
	}()

	sched, err := engine.NewScheduler(eng, st, cfg.Heartbeat.SweepInterval, cfg.Heartbeat.StaleAfter, log)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Kafka.Enabled {
		if err := startIngest(ctx, cfg, st, log); err != nil {
			return err
		}
	}

	e := buildServer(cfg, st, eng, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("starting server", "addr", addr)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func buildNotifier(cfg *config.Config, log *slog.Logger) notify.Notifier {
	switch {
	case cfg.Notifications.Discord.Enabled:
		return notify.NewDiscordNotifier(cfg.Notifications.Discord.WebhookURL)
	case cfg.Notifications.Webhook.Enabled:
		return notify.NewWebhookNotifier(
			cfg.Notifications.Webhook.URL,
			notify.WithWebhookHeaders(cfg.Notifications.Webhook.Headers),
		)
	default:
		return notify.NewNoOpNotifier(log)
	}
}

func startIngest(ctx context.Context, cfg *config.Config, st store.Store, log *slog.Logger) error {
	writer := ingest.NewWriter(st,
		ingest.WithWriterLogger(log),
		ingest.WithBatchSize(cfg.Kafka.BatchSize),
		ingest.WithFlushInterval(cfg.Kafka.FlushInterval),
		ingest.WithNotifyChannel(cfg.Evaluation.ListenChannel),
	)
	go func() {
		if err := writer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("telemetry writer stopped", "error", err)
		}
	}()

	consumer, err := ingest.NewConsumer(
		cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID,
		writer,
		ingest.WithConsumerLogger(log),
	)
	if err != nil {
		return fmt.Errorf("creating kafka consumer: %w", err)
	}
	go func() {
		defer consumer.Close()
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("kafka consumer stopped", "error", err)
		}
	}()

	return nil
}

func buildServer(cfg *config.Config, st store.Store, eng *engine.Engine, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLog(log))
	e.Use(middleware.Metrics())
	e.Use(middleware.Recovery(log))

	healthH := handlers.NewHealthHandler(st)
	e.GET("/healthz", healthH.Healthz)
	e.GET("/readyz", healthH.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := humaecho.New(e, huma.DefaultConfig("fleetwatch API", Version))
	handlers.RegisterAlertRoutes(api, handlers.NewAlertsHandler(st))
	handlers.RegisterRuleRoutes(api, handlers.NewRulesHandler(st))
	handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(st))
	handlers.RegisterSystemStateRoutes(api, handlers.NewSystemStateHandler(st))
	handlers.RegisterTriggerRoutes(
		api,
		handlers.NewEvaluateHandler(eng),
		handlers.NewHeartbeatSweepHandler(eng, cfg.Heartbeat.StaleAfter),
	)

	return e
}
