package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/postgres"
)

// openPostgres connects when postgres is enabled and returns nil otherwise.
func openPostgres(c config.PostgresConfig) (*postgres.Client, error) {
	if !c.Enabled {
		return nil, nil
	}
	db, err := postgres.New(c)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	slog.Info("connected to postgres", "host", c.Host, "database", c.Database)
	return db, nil
}

func datasetSource(c config.DatasetConfig, db *postgres.Client) (dataset.Source, error) {
	switch c.Source {
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("dataset source postgres needs a database connection")
		}
		src, err := dataset.NewPostgresSource(db, c.Table)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return dataset.FileSource{Path: c.Path}, nil
	}
}

// serveHTTP runs server until ctx is done, then shuts it down gracefully.
func serveHTTP(ctx context.Context, server *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received", "addr", server.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return <-errCh
}
