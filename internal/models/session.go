// Package models defines session state structures for the diagnostic flow.
package models

import "time"

// Phase represents the current state of a diagnostic session's state machine.
type Phase string

const (
	PhaseAwaitingPrimaryChoice       Phase = "AWAITING_PRIMARY_CHOICE"
	PhaseAwaitingSecondaryChoice     Phase = "AWAITING_SECONDARY_CHOICE"
	PhaseAwaitingFreeformContext     Phase = "AWAITING_FREEFORM_CONTEXT"
	PhaseAwaitingConstraintSelection Phase = "AWAITING_CONSTRAINT_SELECTION"
	PhaseSubmitting                  Phase = "SUBMITTING"
	PhaseSucceeded                   Phase = "SUCCEEDED"
	PhaseFailed                      Phase = "FAILED"
)

// IsValidPhase checks if the given phase is one of the defined machine states.
func IsValidPhase(p Phase) bool {
	switch p {
	case PhaseAwaitingPrimaryChoice, PhaseAwaitingSecondaryChoice,
		PhaseAwaitingFreeformContext, PhaseAwaitingConstraintSelection,
		PhaseSubmitting, PhaseSucceeded, PhaseFailed:
		return true
	default:
		return false
	}
}

// SessionSnapshot is a point-in-time copy of a diagnostic session, used both
// as the API read model and as the storage record for rehydration. The
// Result field is present only in the SUCCEEDED phase and LastError only in
// the FAILED phase; they are never both set.
type SessionSnapshot struct {
	SessionID       string            `json:"session_id"`
	Phase           Phase             `json:"phase"`
	PrimaryChoice   string            `json:"primary_choice,omitempty"`
	SecondaryChoice string            `json:"secondary_choice,omitempty"`
	FreeformContext string            `json:"freeform_context,omitempty"`
	Constraints     []string          `json:"constraints,omitempty"`
	Result          *DiagnosticResult `json:"result,omitempty"`
	LastError       string            `json:"last_error,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
