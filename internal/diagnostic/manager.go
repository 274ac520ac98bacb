package diagnostic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Apiverde/ApiverdeDemo/internal/models"
	"github.com/Apiverde/ApiverdeDemo/internal/store"
)

// SessionManager hosts diagnostic sessions behind server-issued IDs. Live
// sessions are held in memory; snapshots of in-progress runs go to the
// store so a session survives a restart. A finished run leaves no row
// behind: Succeeded and Reset both delete the stored snapshot, and a Failed
// snapshot carries the retry message but never the result.
type SessionManager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	completer Completer
	st        store.Store
}

// NewSessionManager creates a manager backed by the given completer and store.
func NewSessionManager(completer Completer, st store.Store) *SessionManager {
	return &SessionManager{
		sessions:  make(map[string]*Session),
		completer: completer,
		st:        st,
	}
}

// CreateSession starts a new session and returns it with a fresh ID.
func (m *SessionManager) CreateSession() (*Session, error) {
	id := uuid.NewString()
	sess := NewSession(id, m.completer)

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	if err := m.st.SaveSession(sess.Snapshot()); err != nil {
		slog.Error("SessionManager.CreateSession: failed to persist new session", "sessionID", id, "error", err)
		return nil, err
	}
	slog.Info("SessionManager.CreateSession: session created", "sessionID", id)
	return sess, nil
}

// GetSession returns the live session for the ID, rehydrating from the
// store when the process has restarted since the session was created.
func (m *SessionManager) GetSession(id string) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	snap, err := m.st.GetSession(id)
	if err != nil {
		slog.Error("SessionManager.GetSession: store lookup failed", "sessionID", id, "error", err)
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent request may have rehydrated the session already.
	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}
	sess := NewSession(id, m.completer)
	sess.restoreFromSnapshot(*snap)
	m.sessions[id] = sess
	slog.Info("SessionManager.GetSession: session rehydrated", "sessionID", id, "phase", sess.Phase())
	return sess, nil
}

// SelectPrimary applies the first-question choice to the session.
func (m *SessionManager) SelectPrimary(id, choice string) error {
	sess, err := m.GetSession(id)
	if err != nil {
		return err
	}
	if err := sess.SelectPrimary(choice); err != nil {
		return err
	}
	m.persist(sess)
	return nil
}

// SelectSecondary applies the second-question choice to the session.
func (m *SessionManager) SelectSecondary(id, choice string) error {
	sess, err := m.GetSession(id)
	if err != nil {
		return err
	}
	if err := sess.SelectSecondary(choice); err != nil {
		return err
	}
	m.persist(sess)
	return nil
}

// SubmitContext applies the freeform context to the session. Empty text is
// allowed and treated as a skip.
func (m *SessionManager) SubmitContext(id, text string) error {
	sess, err := m.GetSession(id)
	if err != nil {
		return err
	}
	if err := sess.SubmitContext(text); err != nil {
		return err
	}
	m.persist(sess)
	return nil
}

// ToggleConstraint toggles the avoidance label on the session.
func (m *SessionManager) ToggleConstraint(id, label string) error {
	sess, err := m.GetSession(id)
	if err != nil {
		return err
	}
	if err := sess.ToggleConstraint(label); err != nil {
		return err
	}
	m.persist(sess)
	return nil
}

// Submit runs the completion exchange for the session. On success the
// stored snapshot is deleted; results live only in process memory. On
// failure a retryable snapshot without the result is stored.
func (m *SessionManager) Submit(ctx context.Context, id string) error {
	sess, err := m.GetSession(id)
	if err != nil {
		return err
	}

	submitErr := sess.Submit(ctx)

	switch sess.Phase() {
	case models.PhaseSucceeded:
		if err := m.st.DeleteSession(id); err != nil {
			slog.Error("SessionManager.Submit: failed to delete finished session", "sessionID", id, "error", err)
		}
	case models.PhaseFailed:
		m.persist(sess)
	}
	return submitErr
}

// Reset returns the session to the initial phase and removes its stored
// snapshot.
func (m *SessionManager) Reset(id string) error {
	sess, err := m.GetSession(id)
	if err != nil {
		return err
	}
	sess.Reset()
	if err := m.st.DeleteSession(id); err != nil {
		slog.Error("SessionManager.Reset: failed to delete session snapshot", "sessionID", id, "error", err)
	}
	return nil
}

// Snapshot returns the current state of the session.
func (m *SessionManager) Snapshot(id string) (models.SessionSnapshot, error) {
	sess, err := m.GetSession(id)
	if err != nil {
		return models.SessionSnapshot{}, err
	}
	return sess.Snapshot(), nil
}

// persist writes the session snapshot without the result. Store failures
// are logged and swallowed; the live session stays authoritative.
func (m *SessionManager) persist(sess *Session) {
	snap := sess.Snapshot()
	snap.Result = nil
	if err := m.st.SaveSession(snap); err != nil {
		slog.Error("SessionManager: failed to persist session snapshot", "sessionID", sess.ID(), "error", err)
	}
}
