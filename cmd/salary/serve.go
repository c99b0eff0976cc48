package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/app"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/reference"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/session"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/usage"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/web"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/resilience"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the salary form and JSON API",
	Long: "Loads the reference dataset, then serves the HTML form, the session API, " +
		"market insights and health probes. Failing to load the dataset at startup is fatal.",
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	slog.Info("starting salary web service",
		"port", cfg.Server.Port,
		"dataset_source", cfg.Dataset.Source,
		"predictor_mode", cfg.Predictor.Mode,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()

	// PostgreSQL is optional unless the dataset lives there.
	db, err := openPostgres(cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		checker.Register("postgres", health.PingCheck(db.Ping))
	}

	source, err := datasetSource(cfg.Dataset, db)
	if err != nil {
		return err
	}
	holder := reference.NewHolder(source, m)
	snap, err := holder.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading reference dataset: %w", err)
	}
	slog.Info("reference dataset loaded", "rows", snap.Table.Len(), "version", snap.Version)

	g, gctx := errgroup.WithContext(ctx)

	// Sessions: Redis when enabled, otherwise in-process.
	var sessions session.Store
	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rc.Close()
		checker.Register("redis", health.PingCheck(rc.Ping))
		sessions = session.NewRedisStore(rc, cfg.Session.TTL)
		slog.Info("session store: redis", "addr", cfg.Redis.Addr)
	} else {
		mem := session.NewMemoryStore(cfg.Session.TTL)
		sessions = mem
		g.Go(func() error {
			sweepSessions(gctx, mem, time.Minute)
			return nil
		})
		slog.Info("session store: memory", "ttl", cfg.Session.TTL)
	}

	gateway, gatewayName := buildGateway(holder, m, checker)

	// Usage events go to Kafka when enabled; otherwise they are aggregated
	// in-process and served on /api/v1/usage.
	var (
		tracker      usage.Tracker
		usageHandler http.Handler
		collector    *usage.BatchCollector
		producer     *kafka.Producer
	)
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PredictionEvents)
		collector = usage.NewBatchCollector(producer, cfg.Usage.BatchSize, cfg.Usage.FlushInterval)
		collector.OnPublish(func(status string, n int) {
			m.UsageEventsTotal.WithLabelValues(status).Add(float64(n))
		})
		collector.Start(gctx)
		tracker = collector
		checker.Register("kafka", health.SoftCheck(func(ctx context.Context) error {
			return kafka.Ping(ctx, cfg.Kafka.Brokers)
		}))
	} else {
		agg := usage.NewAggregator(nil)
		tracker = agg
		usageHandler = http.HandlerFunc(usage.NewHandler(agg, nil).Stats)
	}

	svc := app.NewService(app.Deps{
		Snapshots:   holder,
		Sessions:    sessions,
		Gateway:     gateway,
		GatewayName: gatewayName,
		Tracker:     tracker,
		Metrics:     m,
	})
	checker.Register("dataset", health.RowsCheck(svc.RowCount))

	limiter := ratelimit.New(cfg.RateLimit.PredictPerMinute, time.Minute)
	defer limiter.Stop()

	router := web.NewRouter(web.RouterConfig{
		API: web.NewHandler(svc),
		Form: web.NewFormHandler(svc, web.FormConfig{
			CookieName:  cfg.Session.CookieName,
			CookieTTL:   cfg.Session.TTL,
			FeedbackURL: cfg.UI.FeedbackURL,
		}),
		Health:     checker,
		Metrics:    m,
		Limiter:    limiter,
		Usage:      usageHandler,
		AdminToken: cfg.Server.AdminToken,
		Timeout:    cfg.Server.RequestTimeout,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	g.Go(func() error {
		return serveHTTP(gctx, server, cfg.Server.ShutdownTimeout)
	})

	err = g.Wait()

	// The collector's final flush runs once gctx is done; wait for it before
	// closing the producer.
	if collector != nil {
		collector.Close()
	}
	if producer != nil {
		if cerr := producer.Close(); cerr != nil {
			slog.Error("closing kafka producer", "error", cerr)
		}
	}
	if err != nil {
		return err
	}
	slog.Info("salary web service stopped")
	return nil
}

// buildGateway returns the configured prediction gateway and its metric label.
func buildGateway(holder *reference.Holder, m *metrics.Metrics, checker *health.Checker) (predictor.Gateway, string) {
	if cfg.Predictor.Mode != "rpc" {
		return predictor.NewTableEstimator(holder), "table"
	}
	breakerGauge := m.CircuitBreakerState.WithLabelValues("predictor")
	breakerGauge.Set(float64(resilience.StateClosed))
	remote := predictor.NewRemoteGateway(cfg.Predictor.Addr, predictor.RemoteConfig{
		Timeout:          cfg.Predictor.Timeout,
		FailureThreshold: cfg.Predictor.FailureThreshold,
		ResetTimeout:     cfg.Predictor.ResetTimeout,
		OnBreakerChange: func(_ string, _, to resilience.State) {
			breakerGauge.Set(float64(to))
		},
	})
	checker.Register("predictor", health.SoftCheck(func(ctx context.Context) error {
		_, err := remote.Health(ctx)
		return err
	}))
	slog.Info("prediction gateway: rpc", "addr", cfg.Predictor.Addr, "timeout", cfg.Predictor.Timeout)
	return remote, "rpc"
}

func sweepSessions(ctx context.Context, store *session.MemoryStore, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				slog.Debug("expired sessions swept", "count", n, "remaining", store.Len())
			}
		case <-ctx.Done():
			return
		}
	}
}
