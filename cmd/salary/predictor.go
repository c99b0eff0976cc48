package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/reference"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/rpc"
)

var predictorCmd = &cobra.Command{
	Use:   "predictor",
	Short: "Serve salary predictions over RPC",
	Long: "Runs the prediction service used by `serve` in rpc mode. Estimates come from " +
		"experience-banded quantiles of the reference dataset. SIGHUP reloads the dataset.",
	RunE: runPredictor,
}

var predictorListen string

func init() {
	predictorCmd.Flags().StringVar(&predictorListen, "listen", "", "listen address (overrides predictor.listenAddr)")
	rootCmd.AddCommand(predictorCmd)
}

func runPredictor(cmd *cobra.Command, _ []string) error {
	addr := cfg.Predictor.ListenAddr
	if predictorListen != "" {
		addr = predictorListen
	}
	slog.Info("starting predictor service", "addr", addr, "dataset_source", cfg.Dataset.Source)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openPostgres(cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	source, err := datasetSource(cfg.Dataset, db)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	holder := reference.NewHolder(source, m)
	if _, err := holder.Load(ctx); err != nil {
		return fmt.Errorf("loading reference dataset: %w", err)
	}
	go reloadOnHangup(ctx, holder)

	server := rpc.NewServer()
	predictor.Register(server, predictor.NewTableEstimator(holder))

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutdown signal received")
	server.Stop()
	slog.Info("predictor service stopped")
	return nil
}

// reloadOnHangup reloads the reference dataset on SIGHUP. A failed reload
// keeps the previous snapshot.
func reloadOnHangup(ctx context.Context, holder *reference.Holder) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-hup:
			if snap, err := holder.Reload(ctx); err != nil {
				slog.Error("reference reload failed", "error", err)
			} else {
				slog.Info("reference dataset reloaded", "rows", snap.Table.Len(), "version", snap.Version)
			}
		case <-ctx.Done():
			return
		}
	}
}
