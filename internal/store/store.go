// Package store provides storage backends for diagnostic session state.
//
// Only transient flow state is kept: the phase, the selected choices, and
// the failure message for retryable runs. Diagnostic results are never
// written to a backend. The in-memory store is the default; SQLite and
// PostgreSQL backends let the service survive restarts.
package store

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/Apiverde/ApiverdeDemo/internal/models"
)

// Store persists session snapshots keyed by session ID.
type Store interface {
	// SaveSession inserts or replaces the snapshot for its session ID.
	SaveSession(snap models.SessionSnapshot) error
	// GetSession returns the stored snapshot, or (nil, nil) when no row
	// exists for the ID.
	GetSession(sessionID string) (*models.SessionSnapshot, error)
	// DeleteSession removes the snapshot for the ID. Deleting a missing
	// session is not an error.
	DeleteSession(sessionID string) error
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration for store constructors.
type Opts struct {
	// PostgresDSN is the connection URL for the Postgres backend.
	PostgresDSN string
	// SQLiteDSN is the database file path for the SQLite backend.
	SQLiteDSN string
}

// Option configures a store constructor.
type Option func(*Opts)

// WithPostgresDSN selects the Postgres backend with the given connection URL.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.PostgresDSN = dsn
	}
}

// WithSQLiteDSN selects the SQLite backend with the given database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.SQLiteDSN = dsn
	}
}

// DetectDSNType classifies a DSN string as "postgres" or "sqlite".
// Connection URLs and key=value connection strings are Postgres; anything
// else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewStore builds the backend selected by the options: Postgres when a
// Postgres DSN is set, SQLite when a SQLite DSN is set, in-memory otherwise.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.PostgresDSN != "":
		return NewPostgresStore(opts...)
	case cfg.SQLiteDSN != "":
		return NewSQLiteStore(opts...)
	default:
		slog.Debug("NewStore: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
}

// InMemoryStore keeps session snapshots in a map. It is the default backend
// and the one used in tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionSnapshot
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.SessionSnapshot)}
}

func (s *InMemoryStore) SaveSession(snap models.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[snap.SessionID] = snap
	return nil
}

func (s *InMemoryStore) GetSession(sessionID string) (*models.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *InMemoryStore) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
