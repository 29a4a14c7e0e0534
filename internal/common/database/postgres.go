package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agency-assistant/internal/common/config"

	_ "github.com/lib/pq"
)

// ArtifactsDDL creates the table backing the artifact store.
const ArtifactsDDL = `CREATE TABLE IF NOT EXISTS artifacts (
	ref        TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgres opens the connection pool and applies the artifacts schema.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables the application needs.
func Migrate(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, ArtifactsDDL); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
