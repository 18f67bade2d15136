package in

import (
	"context"
	"fmt"
	"strings"
	"time"

	checkindto "qc/internal/modules/checkin/dto"
	checkinin "qc/internal/modules/checkin/port/in"
)

const dueDateLayout = "2006-01-02"

type CLIHandler struct {
	usecase checkinin.Usecase
}

func NewCLIHandler(usecase checkinin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Start(ctx context.Context, categories []string) (checkindto.SessionOutput, error) {
	return h.usecase.Start(ctx, checkindto.StartInput{Categories: categories})
}

func (h CLIHandler) Status(ctx context.Context) (checkindto.SessionOutput, error) {
	return h.usecase.Status(ctx)
}

func (h CLIHandler) GoToStep(ctx context.Context, step string) (checkindto.SessionOutput, error) {
	return h.usecase.GoToStep(ctx, checkindto.StepInput{Step: step})
}

func (h CLIHandler) CompleteStep(ctx context.Context, step string) (checkindto.SessionOutput, error) {
	return h.usecase.CompleteStep(ctx, checkindto.StepInput{Step: step})
}

// DiscussCategory marks a category done and records the minutes spent on it.
func (h CLIHandler) DiscussCategory(ctx context.Context, categoryID string, minutes int, done bool) (checkindto.SessionOutput, error) {
	input := checkindto.CategoryProgressInput{CategoryID: categoryID, Completed: &done}
	if minutes > 0 {
		seconds := minutes * 60
		input.TimeSpent = &seconds
	}
	return h.usecase.UpdateCategory(ctx, input)
}

func (h CLIHandler) Complete(ctx context.Context) (checkindto.CompleteOutput, error) {
	return h.usecase.Complete(ctx)
}

func (h CLIHandler) Abandon(ctx context.Context) (checkindto.AbandonOutput, error) {
	return h.usecase.Abandon(ctx)
}

func (h CLIHandler) AddNote(ctx context.Context, categoryID, content, privacy string, tags []string) (checkindto.NoteOutput, error) {
	return h.usecase.AddNote(ctx, checkindto.NoteInput{
		CategoryID: categoryID,
		Content:    content,
		Privacy:    privacy,
		Tags:       tags,
	})
}

// UpdateNote applies only the non-empty fields.
func (h CLIHandler) UpdateNote(ctx context.Context, noteID, content, privacy string) error {
	input := checkindto.UpdateNoteInput{NoteID: noteID}
	if content != "" {
		input.Content = &content
	}
	if privacy != "" {
		input.Privacy = &privacy
	}
	return h.usecase.UpdateNote(ctx, input)
}

func (h CLIHandler) RemoveNote(ctx context.Context, noteID string) error {
	return h.usecase.RemoveNote(ctx, noteID)
}

func (h CLIHandler) AddActionItem(ctx context.Context, title, description, assignee, due string) (checkindto.ActionItemOutput, error) {
	dueDate, err := parseDueDate(due)
	if err != nil {
		return checkindto.ActionItemOutput{}, err
	}
	return h.usecase.AddActionItem(ctx, checkindto.ActionItemInput{
		Title:       title,
		Description: description,
		AssignedTo:  assignee,
		DueDate:     dueDate,
	})
}

// UpdateActionItem applies only the non-empty fields. A due value of "none"
// clears the due date.
func (h CLIHandler) UpdateActionItem(ctx context.Context, itemID, title, assignee, due string) error {
	input := checkindto.UpdateActionItemInput{ItemID: itemID}
	if title != "" {
		input.Title = &title
	}
	if assignee != "" {
		input.AssignedTo = &assignee
	}
	if strings.EqualFold(due, "none") {
		input.ClearDueDate = true
	} else {
		dueDate, err := parseDueDate(due)
		if err != nil {
			return err
		}
		input.DueDate = dueDate
	}
	return h.usecase.UpdateActionItem(ctx, input)
}

func (h CLIHandler) ToggleActionItem(ctx context.Context, itemID string) error {
	return h.usecase.ToggleActionItem(ctx, itemID)
}

func (h CLIHandler) RemoveActionItem(ctx context.Context, itemID string) error {
	return h.usecase.RemoveActionItem(ctx, itemID)
}

func (h CLIHandler) ListActionItems(ctx context.Context) ([]checkindto.ActionItemOutput, error) {
	return h.usecase.ListActionItems(ctx)
}

func (h CLIHandler) History(ctx context.Context) ([]checkindto.SummaryOutput, error) {
	return h.usecase.History(ctx)
}

func (h CLIHandler) OpenComposer(ctx context.Context, categoryID string) (checkinin.Composer, error) {
	return h.usecase.OpenComposer(ctx, categoryID)
}

func (h CLIHandler) Watch(fn func(checkindto.StateOutput)) func() {
	return h.usecase.Watch(fn)
}

func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	due, err := time.Parse(dueDateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("due date must look like %s: %w", dueDateLayout, err)
	}
	return &due, nil
}
