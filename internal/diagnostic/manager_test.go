package diagnostic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Apiverde/ApiverdeDemo/internal/models"
	"github.com/Apiverde/ApiverdeDemo/internal/store"
)

func TestSessionManagerLifecycle(t *testing.T) {
	st := store.NewInMemoryStore()
	mgr := NewSessionManager(successCompleter(t), st)

	sess, err := mgr.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	id := sess.ID()
	if id == "" {
		t.Fatal("expected non-empty session ID")
	}

	if err := mgr.SelectPrimary(id, "a"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.SelectSecondary(id, "a2"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.SubmitContext(id, "red-eye flights twice a month"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.ToggleConstraint(id, "THC"); err != nil {
		t.Fatal(err)
	}

	// In-progress state is stored without a result.
	stored, err := st.GetSession(id)
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil {
		t.Fatal("expected stored snapshot for in-progress session")
	}
	if stored.Phase != models.PhaseAwaitingConstraintSelection {
		t.Errorf("stored phase = %q", stored.Phase)
	}
	if stored.Result != nil {
		t.Error("stored snapshot must never carry a result")
	}

	if err := mgr.Submit(context.Background(), id); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Success removes the stored row; the result lives only in memory.
	stored, err = st.GetSession(id)
	if err != nil {
		t.Fatal(err)
	}
	if stored != nil {
		t.Error("succeeded session should leave no stored snapshot")
	}
	snap, err := mgr.Snapshot(id)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Phase != models.PhaseSucceeded || snap.Result == nil {
		t.Errorf("snapshot = phase %q, result %v", snap.Phase, snap.Result)
	}
}

func TestSessionManagerUnknownSession(t *testing.T) {
	mgr := NewSessionManager(successCompleter(t), store.NewInMemoryStore())
	_, err := mgr.GetSession("no-such-id")
	if !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if err := mgr.SelectPrimary("no-such-id", "a"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionManagerRehydratesFromStore(t *testing.T) {
	st := store.NewInMemoryStore()
	now := time.Now()
	seed := models.SessionSnapshot{
		SessionID:       "restored",
		Phase:           models.PhaseAwaitingConstraintSelection,
		PrimaryChoice:   "b",
		SecondaryChoice: "b1",
		FreeformContext: "late meals most nights",
		Constraints:     []string{"THC"},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := st.SaveSession(seed); err != nil {
		t.Fatal(err)
	}

	mgr := NewSessionManager(successCompleter(t), st)
	sess, err := mgr.GetSession("restored")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	snap := sess.Snapshot()
	if snap.Phase != models.PhaseAwaitingConstraintSelection {
		t.Errorf("rehydrated phase = %q", snap.Phase)
	}
	if snap.PrimaryChoice != "b" || snap.SecondaryChoice != "b1" {
		t.Error("rehydrated answers lost")
	}

	// The restored session can finish the flow.
	if err := mgr.Submit(context.Background(), "restored"); err != nil {
		t.Fatalf("Submit after rehydrate: %v", err)
	}
}

func TestSessionManagerRehydratesSubmittingAsFailed(t *testing.T) {
	st := store.NewInMemoryStore()
	now := time.Now()
	seed := models.SessionSnapshot{
		SessionID:       "interrupted",
		Phase:           models.PhaseSubmitting,
		PrimaryChoice:   "a",
		SecondaryChoice: "a1",
		FreeformContext: "stress at work",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := st.SaveSession(seed); err != nil {
		t.Fatal(err)
	}

	mgr := NewSessionManager(successCompleter(t), st)
	snap, err := mgr.Snapshot("interrupted")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Phase != models.PhaseFailed {
		t.Errorf("interrupted submission rehydrated as %q, want FAILED", snap.Phase)
	}
	if snap.LastError == "" {
		t.Error("rehydrated failure needs a retryable message")
	}

	// FAILED is re-enterable: the retry goes straight to submit.
	if err := mgr.Submit(context.Background(), "interrupted"); err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
}

func TestSessionManagerReset(t *testing.T) {
	st := store.NewInMemoryStore()
	mgr := NewSessionManager(successCompleter(t), st)

	sess, err := mgr.CreateSession()
	if err != nil {
		t.Fatal(err)
	}
	id := sess.ID()
	if err := mgr.SelectPrimary(id, "d"); err != nil {
		t.Fatal(err)
	}

	if err := mgr.Reset(id); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	stored, err := st.GetSession(id)
	if err != nil {
		t.Fatal(err)
	}
	if stored != nil {
		t.Error("reset should delete the stored snapshot")
	}
	snap, err := mgr.Snapshot(id)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Phase != models.PhaseAwaitingPrimaryChoice {
		t.Errorf("phase after reset = %q", snap.Phase)
	}
}
