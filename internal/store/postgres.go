// Package store provides storage backends for diagnostic session state.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/Apiverde/ApiverdeDemo/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.PostgresDSN != "")

	dsn := cfg.PostgresDSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// SaveSession stores or replaces the snapshot for a session.
func (s *PostgresStore) SaveSession(snap models.SessionSnapshot) error {
	avoidancesJSON, err := marshalAvoidances(snap.Constraints)
	if err != nil {
		slog.Error("PostgresStore SaveSession marshal failed", "error", err, "sessionID", snap.SessionID)
		return err
	}

	query := `
		INSERT INTO diagnostic_sessions
			(session_id, phase, primary_choice, secondary_choice, freeform_context, avoidances, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			primary_choice = EXCLUDED.primary_choice,
			secondary_choice = EXCLUDED.secondary_choice,
			freeform_context = EXCLUDED.freeform_context,
			avoidances = EXCLUDED.avoidances,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query, snap.SessionID, string(snap.Phase),
		nilIfEmpty(snap.PrimaryChoice), nilIfEmpty(snap.SecondaryChoice),
		nilIfEmpty(snap.FreeformContext), nilIfEmpty(avoidancesJSON),
		nilIfEmpty(snap.LastError), snap.CreatedAt, snap.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", snap.SessionID)
		return fmt.Errorf("failed to save session %s: %w", snap.SessionID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "sessionID", snap.SessionID, "phase", snap.Phase)
	return nil
}

// GetSession retrieves the snapshot for a session, or (nil, nil) when absent.
func (s *PostgresStore) GetSession(sessionID string) (*models.SessionSnapshot, error) {
	query := `SELECT session_id, phase, primary_choice, secondary_choice, freeform_context, avoidances, last_error, created_at, updated_at
			  FROM diagnostic_sessions WHERE session_id = $1`
	snap, err := scanSession(s.db.QueryRow(query, sessionID))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSession not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	slog.Debug("PostgresStore GetSession found", "sessionID", sessionID, "phase", snap.Phase)
	return snap, nil
}

// DeleteSession removes the snapshot for a session.
func (s *PostgresStore) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM diagnostic_sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "sessionID", sessionID)
		return err
	}
	slog.Debug("PostgresStore DeleteSession succeeded", "sessionID", sessionID)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
