package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/intellbee/internal/config"
	"github.com/markdave123-py/intellbee/internal/core"
)

// DatabaseClient stores each document as one JSONB row.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Two small documents; a handful of connections is plenty.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return newWithDB(db), nil
}

func newWithDB(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) ReadDocument(ctx context.Context, name string) ([]byte, error) {
	const q = `SELECT body FROM documents WHERE name = $1`
	var body []byte
	err := c.db.QueryRowContext(ctx, q, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document %s: %w", name, err)
	}
	return body, nil
}

func (c *DatabaseClient) WriteDocument(ctx context.Context, name string, body []byte) error {
	const q = `
		INSERT INTO documents (name, body, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
	`
	if _, err := c.db.ExecContext(ctx, q, name, string(body)); err != nil {
		return fmt.Errorf("upsert document %s: %w", name, err)
	}
	return nil
}

var _ core.DocumentStore = (*DatabaseClient)(nil)
