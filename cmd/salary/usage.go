package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/usage"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/middleware"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Aggregate prediction usage events from Kafka",
	Long: "Consumes prediction events published by `serve`, aggregates them in memory and " +
		"serves GET /api/v1/usage. With PostgreSQL enabled, stats are snapshotted periodically " +
		"and served on GET /api/v1/usage/snapshots.",
	RunE: runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, _ []string) error {
	topic := cfg.Kafka.Topics.PredictionEvents
	slog.Info("starting usage service", "port", cfg.Usage.Port, "topic", topic)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()
	checker.Register("kafka", health.SoftCheck(func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}))

	agg := usage.NewKafkaAggregator(cfg.Kafka, topic)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return agg.Start(gctx)
	})

	var history usage.History
	db, err := openPostgres(cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		store := usage.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating usage store: %w", err)
		}
		store.StartPeriodicSave(gctx, agg, cfg.Usage.SnapshotInterval)
		history = store
		checker.Register("postgres", health.PingCheck(db.Ping))
	}

	h := usage.NewHandler(agg, history)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/usage", h.Stats)
	mux.HandleFunc("GET /api/v1/usage/snapshots", h.Snapshots)
	mux.Handle("GET /health/live", checker.LiveHandler())
	mux.Handle("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Usage.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.Go(func() error {
		return serveHTTP(gctx, server, cfg.Server.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("usage service stopped")
	return nil
}
