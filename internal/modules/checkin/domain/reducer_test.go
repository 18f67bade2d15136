package domain

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

func boolPtr(v bool) *bool    { return &v }
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func sessionState(categories ...string) *State {
	return &State{Session: NewSession("sess-1", "couple-1", categories, testNow)}
}

func TestNewSessionInitialShape(t *testing.T) {
	t.Parallel()
	session := NewSession("sess-1", "couple-1", []string{"communication", "intimacy"}, testNow)
	if len(session.CategoryProgress) != 2 {
		t.Fatalf("expected 2 category progress entries, got %d", len(session.CategoryProgress))
	}
	if session.Progress.Percentage != 0 || session.Progress.CurrentStep != StepWelcome {
		t.Fatalf("unexpected initial progress: %+v", session.Progress)
	}
	if session.Progress.TotalSteps != TotalSteps {
		t.Fatalf("expected total steps %d, got %d", TotalSteps, session.Progress.TotalSteps)
	}
	if len(session.DraftNotes) != 0 {
		t.Fatalf("expected no draft notes, got %d", len(session.DraftNotes))
	}
	if session.BaseCheckIn.Status != StatusInProgress || session.BaseCheckIn.CoupleID != "couple-1" {
		t.Fatalf("unexpected base check-in: %+v", session.BaseCheckIn)
	}
}

func TestNewSessionDropsDuplicateCategories(t *testing.T) {
	t.Parallel()
	session := NewSession("sess-1", "couple-1", []string{"trust", " trust", "", "money"}, testNow)
	if len(session.SelectedCategories) != 2 || len(session.CategoryProgress) != 2 {
		t.Fatalf("expected one entry per distinct category, got %v", session.SelectedCategories)
	}
}

func TestCompleteStepWelcomeAdvances(t *testing.T) {
	t.Parallel()
	state := Reduce(sessionState("communication", "intimacy"), CompleteStep{Step: StepWelcome}, testNow)
	progress := state.Session.Progress
	if progress.CurrentStep != StepCategorySelection {
		t.Fatalf("expected category-selection, got %s", progress.CurrentStep)
	}
	if len(progress.CompletedSteps) != 1 || progress.CompletedSteps[0] != StepWelcome {
		t.Fatalf("unexpected completed steps %v", progress.CompletedSteps)
	}
	if progress.Percentage != 14 {
		t.Fatalf("expected 14%%, got %d", progress.Percentage)
	}
}

func TestCompleteStepNeverDuplicatesAndTracksPercentage(t *testing.T) {
	t.Parallel()
	state := sessionState("communication")
	sequence := []Step{StepWelcome, StepWelcome, StepWarmUp, StepCategorySelection, StepWarmUp, StepReflection, StepCompletion, StepCompletion}
	for _, step := range sequence {
		state = Reduce(state, CompleteStep{Step: step}, testNow)
		seen := map[Step]bool{}
		for _, done := range state.Session.Progress.CompletedSteps {
			if seen[done] {
				t.Fatalf("duplicate completed step %s", done)
			}
			seen[done] = true
		}
		if want := percentage(len(seen)); state.Session.Progress.Percentage != want {
			t.Fatalf("expected %d%%, got %d", want, state.Session.Progress.Percentage)
		}
	}
	if got := state.Session.Progress.Percentage; got != 71 {
		t.Fatalf("expected 5/7 -> 71%%, got %d", got)
	}
}

func TestCompleteStepTerminalIsIdempotent(t *testing.T) {
	t.Parallel()
	state := Reduce(sessionState("communication"), GoToStep{Step: StepCompletion}, testNow)
	state = Reduce(state, CompleteStep{Step: StepCompletion}, testNow)
	state = Reduce(state, CompleteStep{Step: StepCompletion}, testNow)
	if state.Session.Progress.CurrentStep != StepCompletion {
		t.Fatalf("expected to stay on completion, got %s", state.Session.Progress.CurrentStep)
	}
	if len(state.Session.Progress.CompletedSteps) != 1 {
		t.Fatalf("expected a single completed step, got %v", state.Session.Progress.CompletedSteps)
	}
}

func TestCompleteStepIgnoresUnknownStep(t *testing.T) {
	t.Parallel()
	state := sessionState("communication")
	if next := Reduce(state, CompleteStep{Step: "nope"}, testNow); next != state {
		t.Fatalf("unknown step should be a no-op")
	}
}

func TestGoToStepIsUnconditional(t *testing.T) {
	t.Parallel()
	state := Reduce(sessionState("communication"), GoToStep{Step: StepActionItems}, testNow)
	if state.Session.Progress.CurrentStep != StepActionItems {
		t.Fatalf("expected jump to action-items, got %s", state.Session.Progress.CurrentStep)
	}
}

func TestSetCategoryProgressTouchesOnlyTarget(t *testing.T) {
	t.Parallel()
	before := sessionState("communication", "intimacy")
	later := testNow.Add(time.Minute)
	after := Reduce(before, SetCategoryProgress{
		CategoryID: "communication",
		Update:     CategoryProgressUpdate{IsCompleted: boolPtr(true), TimeSpent: intPtr(120)},
	}, later)

	comm, _ := after.Session.CategoryProgressFor("communication")
	if !comm.IsCompleted || comm.TimeSpent != 120 || !comm.LastUpdated.Equal(later) {
		t.Fatalf("unexpected communication progress: %+v", comm)
	}
	intimacy, _ := after.Session.CategoryProgressFor("intimacy")
	if intimacy != before.Session.CategoryProgress[1] {
		t.Fatalf("intimacy entry changed: %+v", intimacy)
	}
	if intimacy.IsCompleted || intimacy.TimeSpent != 0 {
		t.Fatalf("expected untouched intimacy entry, got %+v", intimacy)
	}
	if orig := before.Session.CategoryProgress[0]; orig.IsCompleted {
		t.Fatalf("input state was mutated")
	}
}

func TestSetCategoryProgressTimeSpentIsMonotonic(t *testing.T) {
	t.Parallel()
	state := Reduce(sessionState("trust"), SetCategoryProgress{CategoryID: "trust", Update: CategoryProgressUpdate{TimeSpent: intPtr(300)}}, testNow)
	state = Reduce(state, SetCategoryProgress{CategoryID: "trust", Update: CategoryProgressUpdate{TimeSpent: intPtr(60), Notes: strPtr("short")}}, testNow)
	cp, _ := state.Session.CategoryProgressFor("trust")
	if cp.TimeSpent != 300 {
		t.Fatalf("time spent went backwards: %d", cp.TimeSpent)
	}
	if cp.Notes != "short" {
		t.Fatalf("expected notes merged, got %q", cp.Notes)
	}
}

func TestSetCategoryProgressUnknownCategoryIsNoop(t *testing.T) {
	t.Parallel()
	state := sessionState("trust")
	if next := Reduce(state, SetCategoryProgress{CategoryID: "money"}, testNow); next != state {
		t.Fatalf("unknown category should return the same state")
	}
}

func TestDraftNoteLifecycle(t *testing.T) {
	t.Parallel()
	state := sessionState("trust")
	state = Reduce(state, AddDraftNote{Note: DraftNote{ID: "n1", Content: "hello", Privacy: PrivacyShared, CategoryID: "trust"}}, testNow)
	state = Reduce(state, AddDraftNote{Note: DraftNote{ID: "n2", Content: "mine", Privacy: PrivacyPrivate, CategoryID: "trust"}}, testNow)
	if len(state.Session.DraftNotes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(state.Session.DraftNotes))
	}

	later := testNow.Add(time.Hour)
	state = Reduce(state, UpdateDraftNote{ID: "n1", Update: DraftNoteUpdate{Content: strPtr("hello again")}}, later)
	if note := state.Session.DraftNotes[0]; note.Content != "hello again" || !note.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected updated note: %+v", note)
	}

	state = Reduce(state, RemoveDraftNote{ID: "n2"}, testNow)
	if len(state.Session.DraftNotes) != 1 || state.Session.DraftNotes[0].ID != "n1" {
		t.Fatalf("unexpected notes after removal: %+v", state.Session.DraftNotes)
	}
}

func TestAddDraftNoteReplacesSameID(t *testing.T) {
	t.Parallel()
	state := sessionState("trust")
	state = Reduce(state, AddDraftNote{Note: DraftNote{ID: "n1", Content: "a"}}, testNow)
	state = Reduce(state, AddDraftNote{Note: DraftNote{ID: "n1", Content: "b"}}, testNow)
	if len(state.Session.DraftNotes) != 1 || state.Session.DraftNotes[0].Content != "b" {
		t.Fatalf("expected idempotent add by id, got %+v", state.Session.DraftNotes)
	}
}

func TestSessionScopedActionsAreNoopsWithoutSession(t *testing.T) {
	t.Parallel()
	state := &State{}
	actions := []Action{
		GoToStep{Step: StepWarmUp},
		CompleteStep{Step: StepWelcome},
		SetCategoryProgress{CategoryID: "trust"},
		AddDraftNote{Note: DraftNote{ID: "n1"}},
		UpdateDraftNote{ID: "n1", Update: DraftNoteUpdate{Content: strPtr("x")}},
		RemoveDraftNote{ID: "n1"},
		AddActionItem{Item: ActionItem{ID: "a1"}},
		UpdateActionItem{ID: "a1"},
		RemoveActionItem{ID: "a1"},
		ToggleActionItem{ID: "a1"},
		SaveSession{},
		CompleteCheckIn{},
		AbandonCheckIn{},
	}
	for _, action := range actions {
		if next := Reduce(state, action, testNow); next != state {
			t.Fatalf("%s returned a new state without a session", action.Kind())
		}
	}
}

func TestTimestampActionsTouchOnlyLastSaved(t *testing.T) {
	t.Parallel()
	later := testNow.Add(5 * time.Minute)
	for _, action := range []Action{AddActionItem{}, UpdateActionItem{}, RemoveActionItem{}, ToggleActionItem{}, SaveSession{}} {
		before := sessionState("trust")
		after := Reduce(before, action, later)
		if !after.Session.LastSavedAt.Equal(later) {
			t.Fatalf("%s did not stamp last saved", action.Kind())
		}
		if after.Session.Progress.CurrentStep != before.Session.Progress.CurrentStep || len(after.Session.DraftNotes) != 0 {
			t.Fatalf("%s changed more than last saved", action.Kind())
		}
	}
}

func TestCompleteAndAbandonClearSession(t *testing.T) {
	t.Parallel()
	for _, action := range []Action{CompleteCheckIn{}, AbandonCheckIn{}} {
		state := Reduce(sessionState("trust"), action, testNow)
		if state.Session != nil {
			t.Fatalf("%s should clear the session", action.Kind())
		}
	}
}

func TestRestoreSessionReplacesAndClearsFlags(t *testing.T) {
	t.Parallel()
	state := Reduce(InitialState(), SetError{Message: "boom"}, testNow)
	state = Reduce(state, SetLoading{Loading: true}, testNow)
	restored := NewSession("sess-9", "couple-1", []string{"trust"}, testNow)
	state = Reduce(state, RestoreSession{Session: restored}, testNow)
	if state.IsLoading || state.Error != "" {
		t.Fatalf("restore should clear flags, got %+v", state)
	}
	if state.Session == nil || state.Session.ID != "sess-9" {
		t.Fatalf("expected restored session, got %+v", state.Session)
	}
	if state.Session == restored {
		t.Fatalf("restore should not alias the caller's session")
	}

	cleared := Reduce(state, RestoreSession{}, testNow)
	if cleared.Session != nil || cleared.IsLoading {
		t.Fatalf("restore with nil should leave no session and no loading flag")
	}
}

func TestSetLoadingSameValueIsNoop(t *testing.T) {
	t.Parallel()
	state := InitialState()
	if next := Reduce(state, SetLoading{Loading: true}, testNow); next != state {
		t.Fatalf("same loading value should return the same state")
	}
}
