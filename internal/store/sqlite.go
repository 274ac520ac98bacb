// Package store provides storage backends for diagnostic session state.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/Apiverde/ApiverdeDemo/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.SQLiteDSN != "")

	dsn := cfg.SQLiteDSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveSession stores or replaces the snapshot for a session.
func (s *SQLiteStore) SaveSession(snap models.SessionSnapshot) error {
	avoidancesJSON, err := marshalAvoidances(snap.Constraints)
	if err != nil {
		slog.Error("SQLiteStore SaveSession marshal failed", "error", err, "sessionID", snap.SessionID)
		return err
	}

	query := `
		INSERT OR REPLACE INTO diagnostic_sessions
			(session_id, phase, primary_choice, secondary_choice, freeform_context, avoidances, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, snap.SessionID, string(snap.Phase),
		nilIfEmpty(snap.PrimaryChoice), nilIfEmpty(snap.SecondaryChoice),
		nilIfEmpty(snap.FreeformContext), nilIfEmpty(avoidancesJSON),
		nilIfEmpty(snap.LastError), snap.CreatedAt, snap.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "sessionID", snap.SessionID)
		return fmt.Errorf("failed to save session %s: %w", snap.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "sessionID", snap.SessionID, "phase", snap.Phase)
	return nil
}

// GetSession retrieves the snapshot for a session, or (nil, nil) when absent.
func (s *SQLiteStore) GetSession(sessionID string) (*models.SessionSnapshot, error) {
	query := `SELECT session_id, phase, primary_choice, secondary_choice, freeform_context, avoidances, last_error, created_at, updated_at
			  FROM diagnostic_sessions WHERE session_id = ?`
	snap, err := scanSession(s.db.QueryRow(query, sessionID))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSession not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	slog.Debug("SQLiteStore GetSession found", "sessionID", sessionID, "phase", snap.Phase)
	return snap, nil
}

// DeleteSession removes the snapshot for a session.
func (s *SQLiteStore) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM diagnostic_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "sessionID", sessionID)
		return err
	}
	slog.Debug("SQLiteStore DeleteSession succeeded", "sessionID", sessionID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}

func marshalAvoidances(avoidances []string) (string, error) {
	if len(avoidances) == 0 {
		return "", nil
	}
	jsonBytes, err := json.Marshal(avoidances)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}
