package usecase_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	checkinout "qc/internal/modules/checkin/adapter/out"
	checkindto "qc/internal/modules/checkin/dto"
	checkinin "qc/internal/modules/checkin/port/in"
	"qc/internal/modules/checkin/service"
	"qc/internal/modules/checkin/usecase"
	"qc/internal/platform/clock"
	apperrors "qc/internal/platform/errors"
	"qc/internal/platform/id"
	"qc/internal/platform/logging"
)

type fixture struct {
	uc         checkinin.Usecase
	engine     *service.Engine
	summaryDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	feed := checkinout.NewMemoryFeed()
	gateway, err := checkinout.NewSQLiteGateway(filepath.Join(dir, ".qc", "qc.db"), id.UUID{}, clock.SystemClock{}, feed, logging.Discard())
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	t.Cleanup(func() { _ = gateway.Close() })

	engine := service.NewEngine(
		service.Identity{CoupleID: "couple-1", UserID: "user-a"},
		gateway,
		feed,
		service.WithSessionCache(checkinout.NewFileSessionCache(filepath.Join(dir, ".qc", "active-session.json"))),
		service.WithLogger(logging.Discard()),
	)
	t.Cleanup(func() { _ = engine.Close() })
	if err := engine.Open(context.Background()); err != nil {
		t.Fatalf("open engine: %v", err)
	}
	summaryDir := filepath.Join(dir, "check-ins")
	uc := usecase.NewInteractor(engine, checkinout.NewVaultSummaryStore(summaryDir), clock.SystemClock{}, 20*time.Millisecond)
	return fixture{uc: uc, engine: engine, summaryDir: summaryDir}
}

func TestCheckInLifecycleWritesSummary(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.uc.Start(ctx, checkindto.StartInput{Categories: []string{"communication", " ", "finances"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.SessionID == "" || len(started.Categories) != 2 {
		t.Fatalf("unexpected session: %+v", started)
	}
	if started.CurrentStep != "welcome" {
		t.Fatalf("expected welcome step, got %s", started.CurrentStep)
	}

	if _, err := f.uc.CompleteStep(ctx, checkindto.StepInput{Step: "welcome"}); err != nil {
		t.Fatalf("complete step: %v", err)
	}
	if _, err := f.uc.AddNote(ctx, checkindto.NoteInput{CategoryID: "communication", Content: "Listen before fixing"}); err != nil {
		t.Fatalf("add shared note: %v", err)
	}
	if _, err := f.uc.AddNote(ctx, checkindto.NoteInput{CategoryID: "communication", Content: "I felt unheard on Tuesday", Privacy: "private"}); err != nil {
		t.Fatalf("add private note: %v", err)
	}
	item, err := f.uc.AddActionItem(ctx, checkindto.ActionItemInput{Title: "Phone-free dinner", AssignedTo: "user-b"})
	if err != nil {
		t.Fatalf("add action item: %v", err)
	}
	if err := f.uc.ToggleActionItem(ctx, item.ID); err != nil {
		t.Fatalf("toggle action item: %v", err)
	}
	items, err := f.uc.ListActionItems(ctx)
	if err != nil || len(items) != 1 || !items[0].Completed {
		t.Fatalf("expected one completed item, got %+v, %v", items, err)
	}

	done := true
	spent := 600
	status, err := f.uc.UpdateCategory(ctx, checkindto.CategoryProgressInput{CategoryID: "communication", Completed: &done, TimeSpent: &spent})
	if err != nil {
		t.Fatalf("update category: %v", err)
	}
	if !status.Categories[0].Completed || status.Categories[0].TimeSpent != 600 {
		t.Fatalf("category progress not applied: %+v", status.Categories[0])
	}

	out, err := f.uc.Complete(ctx)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !out.Persisted || out.SummaryPath == "" {
		t.Fatalf("expected persisted summary, got %+v", out)
	}
	raw, err := os.ReadFile(out.SummaryPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	summary := string(raw)
	if !strings.Contains(summary, "Listen before fixing") || !strings.Contains(summary, "- [x] Phone-free dinner (user-b)") {
		t.Fatalf("summary missing shared content:\n%s", summary)
	}
	if strings.Contains(summary, "unheard") {
		t.Fatalf("private note leaked into summary:\n%s", summary)
	}

	if _, err := f.uc.Status(ctx); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("expected no active session after complete, got %v", err)
	}
	history, err := f.uc.History(ctx)
	if err != nil || len(history) != 1 || history[0].CheckInID != out.SessionID || history[0].Status != "completed" {
		t.Fatalf("unexpected history: %+v, %v", history, err)
	}
}

func TestStartValidatesInputAndRejectsSecondSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.uc.Start(ctx, checkindto.StartInput{Categories: []string{"  "}}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := f.uc.Start(ctx, checkindto.StartInput{Categories: []string{"intimacy"}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.uc.Start(ctx, checkindto.StartInput{Categories: []string{"goals"}}); !errors.Is(err, apperrors.ErrActiveSessionExists) {
		t.Fatalf("expected active session error, got %v", err)
	}
}

func TestCommandsWithoutSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.uc.GoToStep(ctx, checkindto.StepInput{Step: "reflection"}); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("expected no active session, got %v", err)
	}
	if _, err := f.uc.AddNote(ctx, checkindto.NoteInput{CategoryID: "communication", Content: "hi"}); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("expected no active session, got %v", err)
	}
	if _, err := f.uc.Complete(ctx); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("expected no active session, got %v", err)
	}
	if _, err := f.uc.Abandon(ctx); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("expected no active session, got %v", err)
	}
	if err := f.uc.ToggleActionItem(ctx, "item-from-last-week"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found without a loaded check-in, got %v", err)
	}
	history, err := f.uc.History(ctx)
	if err != nil || len(history) != 0 {
		t.Fatalf("expected empty history, got %+v, %v", history, err)
	}
}

func TestInputErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.uc.Start(ctx, checkindto.StartInput{Categories: []string{"communication"}}); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := f.uc.GoToStep(ctx, checkindto.StepInput{Step: "dessert"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid step, got %v", err)
	}
	if _, err := f.uc.AddNote(ctx, checkindto.NoteInput{CategoryID: "communication", Content: "x", Privacy: "public"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid privacy, got %v", err)
	}
	if _, err := f.uc.AddNote(ctx, checkindto.NoteInput{CategoryID: "communication", Content: "   "}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected empty content rejected, got %v", err)
	}
	if _, err := f.uc.AddActionItem(ctx, checkindto.ActionItemInput{Title: ""}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected empty title rejected, got %v", err)
	}
	if _, err := f.uc.UpdateCategory(ctx, checkindto.CategoryProgressInput{CategoryID: "finances"}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected unknown category, got %v", err)
	}
	if err := f.uc.RemoveNote(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected unknown note, got %v", err)
	}
	if err := f.uc.ToggleActionItem(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected unknown item, got %v", err)
	}
	if _, err := f.uc.OpenComposer(ctx, "finances"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected unknown category for composer, got %v", err)
	}
}

func TestNoteUpdateAndRemove(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.uc.Start(ctx, checkindto.StartInput{Categories: []string{"communication"}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	note, err := f.uc.AddNote(ctx, checkindto.NoteInput{CategoryID: "communication", Content: "first", Tags: []string{"listening"}})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	content := "second"
	private := "private"
	if err := f.uc.UpdateNote(ctx, checkindto.UpdateNoteInput{NoteID: note.ID, Content: &content, Privacy: &private}); err != nil {
		t.Fatalf("update note: %v", err)
	}
	status, _ := f.uc.Status(ctx)
	if len(status.Notes) != 1 || status.Notes[0].Content != "second" || status.Notes[0].Privacy != "private" {
		t.Fatalf("unexpected notes: %+v", status.Notes)
	}
	if err := f.uc.RemoveNote(ctx, note.ID); err != nil {
		t.Fatalf("remove note: %v", err)
	}
	status, _ = f.uc.Status(ctx)
	if len(status.Notes) != 0 {
		t.Fatalf("expected no notes, got %+v", status.Notes)
	}
}

func TestNotesMustBelongToSelectedCategory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.uc.Start(ctx, checkindto.StartInput{Categories: []string{"communication"}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, category := range []string{"comunication", ""} {
		if _, err := f.uc.AddNote(ctx, checkindto.NoteInput{CategoryID: category, Content: "lost note"}); !errors.Is(err, apperrors.ErrNotFound) {
			t.Fatalf("add note to %q: expected ErrNotFound, got %v", category, err)
		}
	}

	note, err := f.uc.AddNote(ctx, checkindto.NoteInput{CategoryID: "communication", Content: "kept note"})
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	moved := "finances"
	if err := f.uc.UpdateNote(ctx, checkindto.UpdateNoteInput{NoteID: note.ID, CategoryID: &moved}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("move note to unselected category: expected ErrNotFound, got %v", err)
	}

	status, _ := f.uc.Status(ctx)
	if len(status.Notes) != 1 || status.Notes[0].CategoryID != "communication" {
		t.Fatalf("unexpected notes: %+v", status.Notes)
	}

	out, err := f.uc.Complete(ctx)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	raw, err := os.ReadFile(out.SummaryPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if !strings.Contains(string(raw), "kept note") || strings.Contains(string(raw), "lost note") {
		t.Fatalf("summary body mismatch:\n%s", raw)
	}
}

func TestComposerAutosavesThroughUsecase(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.uc.Start(ctx, checkindto.StartInput{Categories: []string{"communication"}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	composer, err := f.uc.OpenComposer(ctx, "communication")
	if err != nil {
		t.Fatalf("open composer: %v", err)
	}
	defer composer.Close()

	composer.SetText("shared", "We both want more walks")
	composer.SetText("private", "Work stress is the real issue")
	if !composer.Pending("shared") || !composer.Pending("private") {
		t.Fatalf("expected both lanes pending")
	}
	composer.Flush()

	status, _ := f.uc.Status(ctx)
	if len(status.Notes) != 2 {
		t.Fatalf("expected one note per lane, got %+v", status.Notes)
	}
	privacies := map[string]string{}
	for _, note := range status.Notes {
		privacies[note.Privacy] = note.Content
	}
	if privacies["shared"] != "We both want more walks" || privacies["private"] != "Work stress is the real issue" {
		t.Fatalf("lanes mixed up: %+v", privacies)
	}
	if composer.Text("shared") != "We both want more walks" {
		t.Fatalf("expected saved shared text, got %q", composer.Text("shared"))
	}
}

func TestAbandonClearsSessionWithoutSummary(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	started, err := f.uc.Start(ctx, checkindto.StartInput{Categories: []string{"communication"}})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	out, err := f.uc.Abandon(ctx)
	if err != nil || !out.Persisted || out.SessionID != started.SessionID {
		t.Fatalf("unexpected abandon result: %+v, %v", out, err)
	}
	if _, err := os.Stat(f.summaryDir); !os.IsNotExist(err) {
		t.Fatalf("abandon must not write a summary, stat err %v", err)
	}
}

func TestWatchReceivesStateChanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	states := make(chan checkindto.StateOutput, 16)
	cancel := f.uc.Watch(func(state checkindto.StateOutput) {
		select {
		case states <- state:
		default:
		}
	})
	defer cancel()

	if _, err := f.uc.Start(ctx, checkindto.StartInput{Categories: []string{"communication"}}); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case state := <-states:
			if state.Active && state.Session.SessionID != "" {
				return
			}
		case <-deadline:
			t.Fatalf("expected an active state notification")
		}
	}
}
