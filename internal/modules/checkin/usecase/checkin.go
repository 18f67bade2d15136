package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"qc/internal/modules/checkin/domain"
	checkindto "qc/internal/modules/checkin/dto"
	checkinin "qc/internal/modules/checkin/port/in"
	checkinout "qc/internal/modules/checkin/port/out"
	"qc/internal/modules/checkin/service"
	"qc/internal/platform/clock"
	apperrors "qc/internal/platform/errors"
)

type Interactor struct {
	engine        *service.Engine
	summary       checkinout.SummaryStore
	clock         clock.Clock
	autosaveDelay time.Duration
}

func NewInteractor(engine *service.Engine, summary checkinout.SummaryStore, clk clock.Clock, autosaveDelay time.Duration) checkinin.Usecase {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Interactor{engine: engine, summary: summary, clock: clk, autosaveDelay: autosaveDelay}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func (i *Interactor) activeSession() (*domain.Session, error) {
	session := i.engine.Snapshot().Session
	if session == nil {
		return nil, apperrors.ErrNoActiveSession
	}
	return session, nil
}

// requireCategory rejects notes for categories outside the session's
// selection, which the summary would never show.
func requireCategory(session *domain.Session, categoryID string) error {
	if _, ok := session.CategoryProgressFor(categoryID); !ok {
		return fmt.Errorf("category %q: %w", categoryID, apperrors.ErrNotFound)
	}
	return nil
}

func (i *Interactor) Start(ctx context.Context, input checkindto.StartInput) (checkindto.SessionOutput, error) {
	categories := make([]string, 0, len(input.Categories))
	for _, category := range input.Categories {
		if category = strings.TrimSpace(category); category != "" {
			categories = append(categories, category)
		}
	}
	if len(categories) == 0 {
		return checkindto.SessionOutput{}, invalid("at least one category is required")
	}
	if _, err := i.activeSession(); err == nil {
		return checkindto.SessionOutput{}, apperrors.ErrActiveSessionExists
	}
	session, ok := i.engine.StartCheckIn(ctx, categories)
	if !ok {
		return checkindto.SessionOutput{}, fmt.Errorf("start check-in: %w", apperrors.ErrWriteFailed)
	}
	return toSessionOutput(session), nil
}

func (i *Interactor) Status(context.Context) (checkindto.SessionOutput, error) {
	session, err := i.activeSession()
	if err != nil {
		return checkindto.SessionOutput{}, err
	}
	return toSessionOutput(session), nil
}

func (i *Interactor) GoToStep(ctx context.Context, input checkindto.StepInput) (checkindto.SessionOutput, error) {
	step, err := domain.ParseStep(input.Step)
	if err != nil {
		return checkindto.SessionOutput{}, invalid("%v", err)
	}
	if _, err := i.activeSession(); err != nil {
		return checkindto.SessionOutput{}, err
	}
	i.engine.GoToStep(step)
	return i.Status(ctx)
}

func (i *Interactor) CompleteStep(ctx context.Context, input checkindto.StepInput) (checkindto.SessionOutput, error) {
	step, err := domain.ParseStep(input.Step)
	if err != nil {
		return checkindto.SessionOutput{}, invalid("%v", err)
	}
	if _, err := i.activeSession(); err != nil {
		return checkindto.SessionOutput{}, err
	}
	i.engine.CompleteStep(step)
	return i.Status(ctx)
}

func (i *Interactor) UpdateCategory(ctx context.Context, input checkindto.CategoryProgressInput) (checkindto.SessionOutput, error) {
	if input.TimeSpent != nil && *input.TimeSpent < 0 {
		return checkindto.SessionOutput{}, invalid("time spent must be non-negative")
	}
	session, err := i.activeSession()
	if err != nil {
		return checkindto.SessionOutput{}, err
	}
	if _, ok := session.CategoryProgressFor(input.CategoryID); !ok {
		return checkindto.SessionOutput{}, fmt.Errorf("category %q: %w", input.CategoryID, apperrors.ErrNotFound)
	}
	i.engine.UpdateCategoryProgress(input.CategoryID, domain.CategoryProgressUpdate{
		IsCompleted: input.Completed,
		Notes:       input.Notes,
		TimeSpent:   input.TimeSpent,
	})
	return i.Status(ctx)
}

// Complete closes the check-in and writes its summary. The local session is
// gone afterwards even when the backend write failed.
func (i *Interactor) Complete(ctx context.Context) (checkindto.CompleteOutput, error) {
	snapshot := i.engine.Snapshot()
	if snapshot.Session == nil {
		return checkindto.CompleteOutput{}, apperrors.ErrNoActiveSession
	}
	session := snapshot.Session
	out := checkindto.CompleteOutput{
		SessionID:  session.ID,
		Percentage: session.Progress.Percentage,
	}
	out.Persisted = i.engine.CompleteCheckIn(ctx)
	if !out.Persisted {
		return out, fmt.Errorf("complete check-in %s: %w", session.ID, apperrors.ErrWriteFailed)
	}

	summary := domain.NewSummary(session, domain.StatusCompleted, snapshot.ActionItems, i.clock.Now())
	out.DurationMin = int(summary.Duration().Minutes())
	if i.summary == nil {
		return out, nil
	}
	path, err := i.summary.Save(ctx, summary)
	if err != nil {
		return out, fmt.Errorf("write summary: %w", err)
	}
	out.SummaryPath = path
	return out, nil
}

func (i *Interactor) Abandon(ctx context.Context) (checkindto.AbandonOutput, error) {
	session, err := i.activeSession()
	if err != nil {
		return checkindto.AbandonOutput{}, err
	}
	out := checkindto.AbandonOutput{SessionID: session.ID, Persisted: i.engine.AbandonCheckIn(ctx)}
	if !out.Persisted {
		return out, fmt.Errorf("abandon check-in %s: %w", session.ID, apperrors.ErrWriteFailed)
	}
	return out, nil
}

func (i *Interactor) AddNote(ctx context.Context, input checkindto.NoteInput) (checkindto.NoteOutput, error) {
	if strings.TrimSpace(input.Content) == "" {
		return checkindto.NoteOutput{}, invalid("note content is required")
	}
	privacy := domain.PrivacyShared
	if input.Privacy != "" {
		parsed, err := domain.ParsePrivacy(input.Privacy)
		if err != nil {
			return checkindto.NoteOutput{}, invalid("%v", err)
		}
		privacy = parsed
	}
	session, err := i.activeSession()
	if err != nil {
		return checkindto.NoteOutput{}, err
	}
	if err := requireCategory(session, input.CategoryID); err != nil {
		return checkindto.NoteOutput{}, err
	}
	note, ok := i.engine.AddDraftNote(ctx, service.NoteDraft{
		CategoryID: input.CategoryID,
		Content:    input.Content,
		Privacy:    privacy,
		Tags:       input.Tags,
	})
	if !ok {
		return checkindto.NoteOutput{}, fmt.Errorf("add note: %w", apperrors.ErrWriteFailed)
	}
	return toNoteOutput(note), nil
}

func (i *Interactor) UpdateNote(ctx context.Context, input checkindto.UpdateNoteInput) error {
	update := domain.DraftNoteUpdate{Content: input.Content, Tags: input.Tags, CategoryID: input.CategoryID}
	if input.Privacy != nil {
		privacy, err := domain.ParsePrivacy(*input.Privacy)
		if err != nil {
			return invalid("%v", err)
		}
		update.Privacy = &privacy
	}
	if err := i.requireNote(input.NoteID); err != nil {
		return err
	}
	if input.CategoryID != nil {
		session, err := i.activeSession()
		if err != nil {
			return err
		}
		if err := requireCategory(session, *input.CategoryID); err != nil {
			return err
		}
	}
	if !i.engine.UpdateDraftNote(ctx, input.NoteID, update) {
		return fmt.Errorf("update note %s: %w", input.NoteID, apperrors.ErrWriteFailed)
	}
	return nil
}

func (i *Interactor) RemoveNote(ctx context.Context, noteID string) error {
	if err := i.requireNote(noteID); err != nil {
		return err
	}
	if !i.engine.RemoveDraftNote(ctx, noteID) {
		return fmt.Errorf("remove note %s: %w", noteID, apperrors.ErrWriteFailed)
	}
	return nil
}

func (i *Interactor) requireNote(noteID string) error {
	session, err := i.activeSession()
	if err != nil {
		return err
	}
	for _, note := range session.DraftNotes {
		if note.ID == noteID {
			return nil
		}
	}
	return fmt.Errorf("note %q: %w", noteID, apperrors.ErrNotFound)
}

func (i *Interactor) AddActionItem(ctx context.Context, input checkindto.ActionItemInput) (checkindto.ActionItemOutput, error) {
	if strings.TrimSpace(input.Title) == "" {
		return checkindto.ActionItemOutput{}, invalid("action item title is required")
	}
	item, ok := i.engine.AddActionItem(ctx, service.ActionItemDraft{
		Title:       input.Title,
		Description: input.Description,
		AssignedTo:  input.AssignedTo,
		DueDate:     input.DueDate,
	})
	if !ok {
		return checkindto.ActionItemOutput{}, fmt.Errorf("add action item: %w", apperrors.ErrWriteFailed)
	}
	return toActionItemOutput(item), nil
}

func (i *Interactor) UpdateActionItem(ctx context.Context, input checkindto.UpdateActionItemInput) error {
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return invalid("action item title cannot be empty")
	}
	update := domain.ActionItemUpdate{
		Title:        input.Title,
		Description:  input.Description,
		AssignedTo:   input.AssignedTo,
		DueDate:      input.DueDate,
		ClearDueDate: input.ClearDueDate,
	}
	if !i.engine.UpdateActionItem(ctx, input.ItemID, update) {
		return fmt.Errorf("update action item %s: %w", input.ItemID, apperrors.ErrWriteFailed)
	}
	return nil
}

func (i *Interactor) ToggleActionItem(ctx context.Context, itemID string) error {
	known := false
	for _, item := range i.engine.ActionItems() {
		if item.ID == itemID {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("action item %q: %w", itemID, apperrors.ErrNotFound)
	}
	if !i.engine.ToggleActionItem(ctx, itemID) {
		return fmt.Errorf("toggle action item %s: %w", itemID, apperrors.ErrWriteFailed)
	}
	return nil
}

func (i *Interactor) RemoveActionItem(ctx context.Context, itemID string) error {
	if !i.engine.RemoveActionItem(ctx, itemID) {
		return fmt.Errorf("remove action item %s: %w", itemID, apperrors.ErrWriteFailed)
	}
	return nil
}

func (i *Interactor) ListActionItems(context.Context) ([]checkindto.ActionItemOutput, error) {
	items := i.engine.ActionItems()
	out := make([]checkindto.ActionItemOutput, 0, len(items))
	for _, item := range items {
		out = append(out, toActionItemOutput(item))
	}
	return out, nil
}

func (i *Interactor) History(ctx context.Context) ([]checkindto.SummaryOutput, error) {
	if i.summary == nil {
		return nil, nil
	}
	records, err := i.summary.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]checkindto.SummaryOutput, 0, len(records))
	for _, record := range records {
		out = append(out, checkindto.SummaryOutput{
			CheckInID:   record.CheckInID,
			Path:        record.Path,
			Status:      string(record.Status),
			StartedAt:   record.StartedAt,
			DurationMin: record.DurationMin,
			Percentage:  record.Percentage,
			Categories:  record.Categories,
		})
	}
	return out, nil
}

func (i *Interactor) OpenComposer(ctx context.Context, categoryID string) (checkinin.Composer, error) {
	session, err := i.activeSession()
	if err != nil {
		return nil, err
	}
	if _, ok := session.CategoryProgressFor(categoryID); !ok {
		return nil, fmt.Errorf("category %q: %w", categoryID, apperrors.ErrNotFound)
	}
	return laneComposer{service.NewComposer(ctx, i.engine, categoryID, i.autosaveDelay, i.clock)}, nil
}

// laneComposer exposes lanes by name.
type laneComposer struct {
	*service.Composer
}

func (c laneComposer) Text(lane string) string { return c.Composer.Text(domain.Lane(lane)) }
func (c laneComposer) SetText(lane, text string) { c.Composer.SetText(domain.Lane(lane), text) }
func (c laneComposer) Pending(lane string) bool { return c.Composer.Pending(domain.Lane(lane)) }

func (i *Interactor) Watch(fn func(checkindto.StateOutput)) func() {
	return i.engine.Subscribe(func(snapshot service.Snapshot) {
		fn(toStateOutput(snapshot))
	})
}

func toStateOutput(snapshot service.Snapshot) checkindto.StateOutput {
	out := checkindto.StateOutput{
		Active:  snapshot.Session != nil,
		Loading: snapshot.IsLoading,
		Error:   snapshot.Error,
	}
	if snapshot.Session != nil {
		out.Session = toSessionOutput(snapshot.Session)
	}
	for _, item := range snapshot.ActionItems {
		out.ActionItems = append(out.ActionItems, toActionItemOutput(item))
	}
	return out
}

func toSessionOutput(session *domain.Session) checkindto.SessionOutput {
	out := checkindto.SessionOutput{
		SessionID:   session.ID,
		CurrentStep: string(session.Progress.CurrentStep),
		Percentage:  session.Progress.Percentage,
		StartedAt:   session.StartedAt,
		LastSavedAt: session.LastSavedAt,
	}
	for _, step := range session.Progress.CompletedSteps {
		out.CompletedSteps = append(out.CompletedSteps, string(step))
	}
	for _, cp := range session.CategoryProgress {
		out.Categories = append(out.Categories, checkindto.CategoryOutput{
			CategoryID: cp.CategoryID,
			Completed:  cp.IsCompleted,
			Notes:      cp.Notes,
			TimeSpent:  cp.TimeSpent,
		})
	}
	for _, note := range session.DraftNotes {
		out.Notes = append(out.Notes, toNoteOutput(note))
	}
	return out
}

func toNoteOutput(note domain.DraftNote) checkindto.NoteOutput {
	return checkindto.NoteOutput{
		ID:         note.ID,
		CategoryID: note.CategoryID,
		Content:    note.Content,
		Privacy:    string(note.Privacy),
		Tags:       note.Tags,
		UpdatedAt:  note.UpdatedAt,
	}
}

func toActionItemOutput(item domain.ActionItem) checkindto.ActionItemOutput {
	return checkindto.ActionItemOutput{
		ID:          item.ID,
		CheckInID:   item.CheckInID,
		Title:       item.Title,
		Description: item.Description,
		AssignedTo:  item.AssignedTo,
		DueDate:     item.DueDate,
		Completed:   item.Completed,
	}
}
