package diagnostic

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Apiverde/ApiverdeDemo/internal/content"
	"github.com/Apiverde/ApiverdeDemo/internal/models"
)

// FailedSubmissionMessage is the generic user-facing message stored when a
// submission fails at the gateway or parse stage. Full detail goes to logs.
const FailedSubmissionMessage = "Something went wrong. Please try again."

// Completer performs the completion exchange for a submission. The gateway
// client is the production implementation.
type Completer interface {
	Complete(ctx context.Context, payload models.PromptPayload) (models.CompletionEnvelope, error)
}

// Session drives one user's run through the diagnostic flow. Transitions are
// strictly sequential; out-of-phase calls fail with models.ErrInvalidState
// and invalid choices with models.ErrInvalidInput, neither of which changes
// the session.
//
// A Session is safe for concurrent use, but it is designed for a single
// logical caller; the Submitting phase acts as the mutual-exclusion flag
// that rejects a second in-flight submission.
type Session struct {
	mu        sync.Mutex
	id        string
	completer Completer

	phase           models.Phase
	primaryChoice   string
	secondaryChoice string
	freeformContext string
	constraints     []string
	result          *models.DiagnosticResult
	lastError       string

	// generation is bumped by Reset so that a completion arriving for an
	// abandoned run is discarded instead of mutating the fresh session.
	generation uint64

	createdAt time.Time
	updatedAt time.Time
}

// NewSession creates a session in the initial phase.
func NewSession(id string, completer Completer) *Session {
	now := time.Now()
	return &Session{
		id:        id,
		completer: completer,
		phase:     models.PhaseAwaitingPrimaryChoice,
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Phase returns the current state machine phase.
func (s *Session) Phase() models.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// PrimaryChoice returns the selected first-question option id, if any.
func (s *Session) PrimaryChoice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primaryChoice
}

// SecondaryChoice returns the selected second-question option id, if any.
func (s *Session) SecondaryChoice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secondaryChoice
}

// FreeformContext returns the recorded freeform context text.
func (s *Session) FreeformContext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freeformContext
}

// Snapshot returns a point-in-time copy of the session.
func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() models.SessionSnapshot {
	snap := models.SessionSnapshot{
		SessionID:       s.id,
		Phase:           s.phase,
		PrimaryChoice:   s.primaryChoice,
		SecondaryChoice: s.secondaryChoice,
		FreeformContext: s.freeformContext,
		LastError:       s.lastError,
		CreatedAt:       s.createdAt,
		UpdatedAt:       s.updatedAt,
	}
	if len(s.constraints) > 0 {
		snap.Constraints = make([]string, len(s.constraints))
		copy(snap.Constraints, s.constraints)
	}
	if s.result != nil {
		resultCopy := *s.result
		snap.Result = &resultCopy
	}
	return snap
}

// SelectPrimary records the first-question choice and advances to the
// secondary question.
func (s *Session) SelectPrimary(choice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != models.PhaseAwaitingPrimaryChoice {
		return fmt.Errorf("%w: SelectPrimary not valid in phase %s", models.ErrInvalidState, s.phase)
	}
	if _, ok := content.PrimaryOption(choice); !ok {
		return fmt.Errorf("%w: unknown primary choice %q", models.ErrInvalidInput, choice)
	}

	s.primaryChoice = choice
	s.setPhaseLocked(models.PhaseAwaitingSecondaryChoice)
	return nil
}

// SelectSecondary records the second-question choice. The valid option set
// is fully determined by the stored primary choice.
func (s *Session) SelectSecondary(choice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != models.PhaseAwaitingSecondaryChoice {
		return fmt.Errorf("%w: SelectSecondary not valid in phase %s", models.ErrInvalidState, s.phase)
	}
	if _, ok := content.SecondaryOption(s.primaryChoice, choice); !ok {
		return fmt.Errorf("%w: unknown secondary choice %q for primary %q", models.ErrInvalidInput, choice, s.primaryChoice)
	}

	s.secondaryChoice = choice
	s.setPhaseLocked(models.PhaseAwaitingFreeformContext)
	return nil
}

// SubmitContext stores the freeform context, normalized so that empty or
// whitespace-only input becomes the placeholder, and advances to constraint
// selection.
func (s *Session) SubmitContext(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != models.PhaseAwaitingFreeformContext {
		return fmt.Errorf("%w: SubmitContext not valid in phase %s", models.ErrInvalidState, s.phase)
	}

	s.freeformContext = NormalizeContext(text)
	s.setPhaseLocked(models.PhaseAwaitingConstraintSelection)
	return nil
}

// SkipContext advances past the freeform context step without input.
func (s *Session) SkipContext() error {
	return s.SubmitContext("")
}

// ToggleConstraint adds the label to the avoidance constraints if absent and
// removes it if present. Display order follows selection order. The phase
// does not change.
func (s *Session) ToggleConstraint(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != models.PhaseAwaitingConstraintSelection {
		return fmt.Errorf("%w: ToggleConstraint not valid in phase %s", models.ErrInvalidState, s.phase)
	}

	for i, existing := range s.constraints {
		if existing == label {
			s.constraints = append(s.constraints[:i], s.constraints[i+1:]...)
			s.updatedAt = time.Now()
			return nil
		}
	}
	s.constraints = append(s.constraints, label)
	s.updatedAt = time.Now()
	return nil
}

// Constraints returns the selected avoidance labels in selection order.
func (s *Session) Constraints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.constraints))
	copy(out, s.constraints)
	return out
}

// Submit assembles the prompt, performs the completion exchange, and lands
// the session in Succeeded or Failed. Valid from constraint selection or
// from Failed (user-triggered retry); a submission already in flight is
// rejected rather than doubled.
//
// On failure the accumulated answers are preserved so a retry does not
// require re-entering them.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != models.PhaseAwaitingConstraintSelection && s.phase != models.PhaseFailed {
		defer s.mu.Unlock()
		return fmt.Errorf("%w: Submit not valid in phase %s", models.ErrInvalidState, s.phase)
	}

	payload, err := BuildPayload(s.primaryChoice, s.secondaryChoice, s.freeformContext, s.constraints)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.lastError = ""
	s.result = nil
	s.setPhaseLocked(models.PhaseSubmitting)
	generation := s.generation
	s.mu.Unlock()

	envelope, completeErr := s.completer.Complete(ctx, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		// The session was reset while the call was in flight; the reply
		// belongs to an abandoned run.
		slog.Debug("Session.Submit: discarding stale completion", "sessionID", s.id)
		return nil
	}

	if completeErr != nil {
		slog.Error("Session.Submit: completion exchange failed", "sessionID", s.id, "error", completeErr)
		s.failLocked(FailedSubmissionMessage)
		return completeErr
	}

	result, parseErr := ParseResult(envelope)
	if parseErr != nil {
		slog.Error("Session.Submit: response parsing failed", "sessionID", s.id, "error", parseErr)
		s.failLocked(FailedSubmissionMessage)
		return parseErr
	}

	s.result = result
	s.lastError = ""
	s.setPhaseLocked(models.PhaseSucceeded)
	slog.Info("Session.Submit: diagnostic succeeded", "sessionID", s.id, "profileType", result.ProfileType)
	return nil
}

// Reset clears all accumulated state and returns the session to the initial
// phase. It is valid from any phase and never partially resets.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.primaryChoice = ""
	s.secondaryChoice = ""
	s.freeformContext = ""
	s.constraints = nil
	s.result = nil
	s.lastError = ""
	s.setPhaseLocked(models.PhaseAwaitingPrimaryChoice)
	slog.Debug("Session.Reset: session cleared", "sessionID", s.id)
}

// Result returns the validated diagnostic result, present only after a
// successful submission.
func (s *Session) Result() *models.DiagnosticResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	resultCopy := *s.result
	return &resultCopy
}

// LastError returns the user-facing failure message, present only in the
// Failed phase.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

func (s *Session) failLocked(message string) {
	s.result = nil
	s.lastError = message
	s.setPhaseLocked(models.PhaseFailed)
}

func (s *Session) setPhaseLocked(phase models.Phase) {
	slog.Debug("Session: phase transition", "sessionID", s.id, "from", s.phase, "to", phase)
	s.phase = phase
	s.updatedAt = time.Now()
}

// restoreFromSnapshot rehydrates session fields from a stored snapshot. A
// snapshot captured mid-submission lands in Failed with a retryable message,
// since the in-flight exchange did not survive.
func (s *Session) restoreFromSnapshot(snap models.SessionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.primaryChoice = snap.PrimaryChoice
	s.secondaryChoice = snap.SecondaryChoice
	s.freeformContext = snap.FreeformContext
	if len(snap.Constraints) > 0 {
		s.constraints = make([]string, len(snap.Constraints))
		copy(s.constraints, snap.Constraints)
	}
	s.lastError = snap.LastError
	if !snap.CreatedAt.IsZero() {
		s.createdAt = snap.CreatedAt
	}

	phase := snap.Phase
	if phase == models.PhaseSubmitting {
		phase = models.PhaseFailed
		s.lastError = FailedSubmissionMessage
	}
	s.setPhaseLocked(phase)
}
