// SPDX-License-Identifier: MIT

// Package store is the adapter for the relational system of record. All
// entities live in the `mls` schema; the search index and object store hold
// projections derived from rows written here.
package store

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/openestate/resosync/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the postgres connection pool with typed operations for every
// core entity. One Store instance serves both the sync drivers and the media
// worker; the pool handles concurrency.
type Store struct {
	db     *sqlx.DB
	system string
	logger zerolog.Logger
}

// Open connects to postgres and verifies the connection.
func Open(ctx context.Context, dsn, originatingSystem string) (*Store, error) {
	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{
		db:     db,
		system: originatingSystem,
		logger: log.WithComponent("store"),
	}, nil
}

// Migrate applies embedded goose migrations. Runs before anything else at
// startup; failure is fatal.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Ping reports connection health for the ops endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// TruncateAll empties every mls-owned table. Used only by the full reset.
func (s *Store) TruncateAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		TRUNCATE mls.properties, mls.media, mls.rooms, mls.unit_types,
		         mls.open_houses, mls.offices, mls.members, mls.lookups,
		         mls.sync_state, mls.progress_history, mls.rate_limit_events,
		         mls.problematic_properties`)
	if err != nil {
		return fmt.Errorf("truncate mls tables: %w", err)
	}
	return nil
}
