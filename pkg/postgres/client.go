// Package postgres opens the lib/pq connection pool shared by the reference
// table source and the usage snapshot store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/config"
)

const connectTimeout = 5 * time.Second

// Client is a verified connection pool.
type Client struct {
	*sql.DB
	target string
}

// New opens a pool sized from cfg and fails unless the server answers a
// ping within connectTimeout.
func New(cfg config.PostgresConfig) (*Client, error) {
	target := fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres %s: %w", target, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres %s: %w", target, err)
	}
	return &Client{DB: db, target: target}, nil
}

// Ping checks the pool can still reach the server.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres %s: %w", c.target, err)
	}
	return nil
}

// QuoteIdentifier quotes a table or column name for interpolation. A
// schema-qualified name has each part quoted on its own.
func QuoteIdentifier(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// IsUndefinedTable reports whether err is the server's "relation does not
// exist" error (SQLSTATE 42P01).
func IsUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42P01"
}
