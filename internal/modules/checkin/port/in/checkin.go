package in

import (
	"context"

	"qc/internal/modules/checkin/dto"
)

type Usecase interface {
	Start(ctx context.Context, input dto.StartInput) (dto.SessionOutput, error)
	Status(ctx context.Context) (dto.SessionOutput, error)
	GoToStep(ctx context.Context, input dto.StepInput) (dto.SessionOutput, error)
	CompleteStep(ctx context.Context, input dto.StepInput) (dto.SessionOutput, error)
	UpdateCategory(ctx context.Context, input dto.CategoryProgressInput) (dto.SessionOutput, error)
	Complete(ctx context.Context) (dto.CompleteOutput, error)
	Abandon(ctx context.Context) (dto.AbandonOutput, error)

	AddNote(ctx context.Context, input dto.NoteInput) (dto.NoteOutput, error)
	UpdateNote(ctx context.Context, input dto.UpdateNoteInput) error
	RemoveNote(ctx context.Context, noteID string) error

	AddActionItem(ctx context.Context, input dto.ActionItemInput) (dto.ActionItemOutput, error)
	UpdateActionItem(ctx context.Context, input dto.UpdateActionItemInput) error
	ToggleActionItem(ctx context.Context, itemID string) error
	RemoveActionItem(ctx context.Context, itemID string) error
	ListActionItems(ctx context.Context) ([]dto.ActionItemOutput, error)

	History(ctx context.Context) ([]dto.SummaryOutput, error)
	OpenComposer(ctx context.Context, categoryID string) (Composer, error)
	Watch(fn func(dto.StateOutput)) (cancel func())
}

// Composer edits one category's notes. Lanes are "shared" and "private".
type Composer interface {
	CategoryID() string
	Text(lane string) string
	SetText(lane, text string)
	Pending(lane string) bool
	Flush()
	Complete()
	Close()
}
