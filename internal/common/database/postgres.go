// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"feed-sync/internal/common/config"

	_ "github.com/lib/pq"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresClient wraps the SQL database connection holding device push tokens.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// ValidIdentifier reports whether name is safe to splice into SQL as a table name.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// EnsureTokenTable creates the push token table if it does not exist.
func (c *PostgresClient) EnsureTokenTable(ctx context.Context, table string) error {
	if !ValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	_, err := c.DB.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		uid        TEXT PRIMARY KEY,
		push_token TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, table))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", table, err)
	}
	return nil
}

// UpsertToken records the latest push endpoint for a user.
func (c *PostgresClient) UpsertToken(ctx context.Context, table, uid, token string) error {
	if !ValidIdentifier(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	_, err := c.DB.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (uid, push_token, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (uid) DO UPDATE SET push_token = EXCLUDED.push_token, updated_at = NOW()`, table),
		uid, token)
	return err
}
