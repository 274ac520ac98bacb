package diagnostic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Apiverde/ApiverdeDemo/internal/gateway"
	"github.com/Apiverde/ApiverdeDemo/internal/models"
)

// fakeCompleter returns a canned envelope or error and records payloads.
type fakeCompleter struct {
	envelope models.CompletionEnvelope
	err      error
	payloads []models.PromptPayload

	// block, when set, is closed-upon to release an in-flight Complete call.
	block chan struct{}
}

func (c *fakeCompleter) Complete(ctx context.Context, payload models.PromptPayload) (models.CompletionEnvelope, error) {
	c.payloads = append(c.payloads, payload)
	if c.block != nil {
		<-c.block
	}
	if c.err != nil {
		return models.CompletionEnvelope{}, c.err
	}
	return c.envelope, nil
}

func successCompleter(t *testing.T) *fakeCompleter {
	t.Helper()
	result := models.DiagnosticResult{
		ProfileType:              models.ProfileCircadianMisaligned,
		ProfileSummary:           "Your internal clock has drifted from your schedule.",
		CannabinoidName:          "CBN",
		CannabinoidReasoning:     "CBN supports sleep onset without residual sedation.",
		LifestyleRecommendations: []string{"Morning light exposure", "Fixed wake time", "No late caffeine"},
		PersonalNote:             "Shift work makes this harder, and your answers reflect that.",
	}
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatal(err)
	}
	return &fakeCompleter{
		envelope: models.CompletionEnvelope{
			Content: []models.ContentBlock{{Type: models.ContentBlockTypeText, Text: string(data)}},
		},
	}
}

// advance drives a fresh session to constraint selection.
func advance(t *testing.T, s *Session) {
	t.Helper()
	if err := s.SelectPrimary("a"); err != nil {
		t.Fatalf("SelectPrimary: %v", err)
	}
	if err := s.SelectSecondary("a1"); err != nil {
		t.Fatalf("SelectSecondary: %v", err)
	}
	if err := s.SubmitContext("shift work, irregular hours"); err != nil {
		t.Fatalf("SubmitContext: %v", err)
	}
}

func TestSessionHappyPath(t *testing.T) {
	completer := successCompleter(t)
	s := NewSession("test-session", completer)

	if s.Phase() != models.PhaseAwaitingPrimaryChoice {
		t.Fatalf("initial phase = %q", s.Phase())
	}

	advance(t, s)
	if s.Phase() != models.PhaseAwaitingConstraintSelection {
		t.Fatalf("phase after answers = %q", s.Phase())
	}
	if s.PrimaryChoice() != "a" || s.SecondaryChoice() != "a1" {
		t.Fatalf("choices = %q/%q", s.PrimaryChoice(), s.SecondaryChoice())
	}
	if s.FreeformContext() != "shift work, irregular hours" {
		t.Fatalf("FreeformContext = %q", s.FreeformContext())
	}

	if err := s.ToggleConstraint("Morning grogginess"); err != nil {
		t.Fatalf("ToggleConstraint: %v", err)
	}

	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if s.Phase() != models.PhaseSucceeded {
		t.Fatalf("phase after submit = %q", s.Phase())
	}
	result := s.Result()
	if result == nil {
		t.Fatal("expected result after successful submit")
	}
	if result.ProfileType != models.ProfileCircadianMisaligned {
		t.Errorf("ProfileType = %q", result.ProfileType)
	}
	if s.LastError() != "" {
		t.Errorf("LastError = %q, want empty", s.LastError())
	}

	// The dispatched prompt carries the answers and the constraint.
	if len(completer.payloads) != 1 {
		t.Fatalf("completer called %d times, want 1", len(completer.payloads))
	}
	userMsg := completer.payloads[0].UserMessage
	if !strings.Contains(userMsg, "shift work, irregular hours") {
		t.Error("prompt missing freeform context")
	}
	if !strings.Contains(userMsg, "Morning grogginess") {
		t.Error("prompt missing constraint")
	}
}

func TestSessionPhaseGuards(t *testing.T) {
	s := NewSession("test-session", successCompleter(t))

	tests := []struct {
		name string
		call func() error
	}{
		{name: "secondary before primary", call: func() error { return s.SelectSecondary("a1") }},
		{name: "context before primary", call: func() error { return s.SubmitContext("ctx") }},
		{name: "constraint before primary", call: func() error { return s.ToggleConstraint("THC") }},
		{name: "submit before primary", call: func() error { return s.Submit(context.Background()) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, models.ErrInvalidState) {
				t.Errorf("expected ErrInvalidState, got %v", err)
			}
			if s.Phase() != models.PhaseAwaitingPrimaryChoice {
				t.Errorf("phase changed to %q on rejected call", s.Phase())
			}
		})
	}

	// A completed answer step cannot be repeated out of order.
	if err := s.SelectPrimary("a"); err != nil {
		t.Fatal(err)
	}
	if err := s.SelectPrimary("b"); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on repeated primary, got %v", err)
	}
}

func TestSessionInvalidChoices(t *testing.T) {
	s := NewSession("test-session", successCompleter(t))

	if err := s.SelectPrimary("nope"); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if s.Phase() != models.PhaseAwaitingPrimaryChoice {
		t.Errorf("phase advanced on invalid primary: %q", s.Phase())
	}

	if err := s.SelectPrimary("a"); err != nil {
		t.Fatal(err)
	}
	// b1 exists but belongs to primary b.
	if err := s.SelectSecondary("b1"); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if s.Phase() != models.PhaseAwaitingSecondaryChoice {
		t.Errorf("phase advanced on invalid secondary: %q", s.Phase())
	}
}

func TestSessionSkipContext(t *testing.T) {
	s := NewSession("test-session", successCompleter(t))
	if err := s.SelectPrimary("c"); err != nil {
		t.Fatal(err)
	}
	if err := s.SelectSecondary("c2"); err != nil {
		t.Fatal(err)
	}
	if err := s.SkipContext(); err != nil {
		t.Fatalf("SkipContext: %v", err)
	}
	snap := s.Snapshot()
	if snap.FreeformContext != NoContextPlaceholder {
		t.Errorf("FreeformContext = %q, want placeholder", snap.FreeformContext)
	}
}

func TestSessionToggleConstraint(t *testing.T) {
	s := NewSession("test-session", successCompleter(t))
	advance(t, s)

	for _, label := range []string{"THC", "Morning grogginess", "Habit formation"} {
		if err := s.ToggleConstraint(label); err != nil {
			t.Fatal(err)
		}
	}
	// Toggling an existing label removes it, keeping selection order.
	if err := s.ToggleConstraint("Morning grogginess"); err != nil {
		t.Fatal(err)
	}
	got := s.Constraints()
	want := []string{"THC", "Habit formation"}
	if len(got) != len(want) {
		t.Fatalf("Constraints() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Constraints() = %v, want %v", got, want)
		}
	}

	// Re-adding appends at the end.
	if err := s.ToggleConstraint("THC"); err != nil {
		t.Fatal(err)
	}
	if err := s.ToggleConstraint("THC"); err != nil {
		t.Fatal(err)
	}
	got = s.Constraints()
	if len(got) != 1 || got[0] != "Habit formation" {
		t.Fatalf("Constraints() after double toggle = %v", got)
	}
	if s.Phase() != models.PhaseAwaitingConstraintSelection {
		t.Errorf("toggling changed phase to %q", s.Phase())
	}
}

func TestSessionSubmitFailurePreservesAnswers(t *testing.T) {
	completer := successCompleter(t)
	completer.err = &gateway.GatewayError{Op: "complete", StatusCode: 500, Err: fmt.Errorf("boom")}
	s := NewSession("test-session", completer)
	advance(t, s)
	if err := s.ToggleConstraint("THC"); err != nil {
		t.Fatal(err)
	}

	err := s.Submit(context.Background())
	if err == nil {
		t.Fatal("expected submit error")
	}
	if s.Phase() != models.PhaseFailed {
		t.Fatalf("phase = %q, want FAILED", s.Phase())
	}
	if s.Result() != nil {
		t.Error("failed submit must not leave a result")
	}
	if s.LastError() != FailedSubmissionMessage {
		t.Errorf("LastError = %q, want generic message", s.LastError())
	}

	snap := s.Snapshot()
	if snap.PrimaryChoice != "a" || snap.SecondaryChoice != "a1" {
		t.Error("failure must preserve accumulated answers")
	}
	if len(snap.Constraints) != 1 {
		t.Error("failure must preserve constraints")
	}

	// Retry from FAILED without re-entering answers.
	completer.err = nil
	if err := s.Submit(context.Background()); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if s.Phase() != models.PhaseSucceeded {
		t.Fatalf("phase after retry = %q", s.Phase())
	}
	if s.LastError() != "" {
		t.Errorf("LastError after success = %q", s.LastError())
	}
}

func TestSessionSubmitMalformedResponse(t *testing.T) {
	completer := &fakeCompleter{
		envelope: models.CompletionEnvelope{
			Content: []models.ContentBlock{{Type: models.ContentBlockTypeText, Text: "not json"}},
		},
	}
	s := NewSession("test-session", completer)
	advance(t, s)

	err := s.Submit(context.Background())
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
	if s.Phase() != models.PhaseFailed {
		t.Fatalf("phase = %q, want FAILED", s.Phase())
	}
	// The raw model text never becomes the user-facing message.
	if strings.Contains(s.LastError(), "not json") {
		t.Error("raw response text leaked into the user-facing message")
	}
}

func TestSessionReset(t *testing.T) {
	s := NewSession("test-session", successCompleter(t))
	advance(t, s)
	if err := s.ToggleConstraint("THC"); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}

	s.Reset()
	snap := s.Snapshot()
	if snap.Phase != models.PhaseAwaitingPrimaryChoice {
		t.Errorf("phase after reset = %q", snap.Phase)
	}
	if snap.PrimaryChoice != "" || snap.SecondaryChoice != "" || snap.FreeformContext != "" {
		t.Error("reset left answers behind")
	}
	if len(snap.Constraints) != 0 || snap.Result != nil || snap.LastError != "" {
		t.Error("reset left derived state behind")
	}
}

func TestSessionResetDiscardsInFlightCompletion(t *testing.T) {
	completer := successCompleter(t)
	completer.block = make(chan struct{})
	s := NewSession("test-session", completer)
	advance(t, s)

	done := make(chan error, 1)
	go func() {
		done <- s.Submit(context.Background())
	}()

	// Wait for the submission to enter the completer.
	deadline := time.After(2 * time.Second)
	for s.Phase() != models.PhaseSubmitting {
		select {
		case <-deadline:
			t.Fatal("session never entered SUBMITTING")
		case <-time.After(time.Millisecond):
		}
	}

	s.Reset()
	close(completer.block)

	if err := <-done; err != nil {
		t.Fatalf("discarded submit returned error: %v", err)
	}
	if s.Phase() != models.PhaseAwaitingPrimaryChoice {
		t.Errorf("late completion mutated the reset session: phase %q", s.Phase())
	}
	if s.Result() != nil {
		t.Error("late completion attached a result to the reset session")
	}
}

func TestSessionSubmitWhileSubmitting(t *testing.T) {
	completer := successCompleter(t)
	completer.block = make(chan struct{})
	s := NewSession("test-session", completer)
	advance(t, s)

	done := make(chan error, 1)
	go func() {
		done <- s.Submit(context.Background())
	}()

	deadline := time.After(2 * time.Second)
	for s.Phase() != models.PhaseSubmitting {
		select {
		case <-deadline:
			t.Fatal("session never entered SUBMITTING")
		case <-time.After(time.Millisecond):
		}
	}

	if err := s.Submit(context.Background()); !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState for concurrent submit, got %v", err)
	}

	close(completer.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if s.Phase() != models.PhaseSucceeded {
		t.Errorf("phase = %q, want SUCCEEDED", s.Phase())
	}
	if len(completer.payloads) != 1 {
		t.Errorf("completer called %d times, want 1", len(completer.payloads))
	}
}
