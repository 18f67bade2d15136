package dto

import "time"

type StartInput struct {
	Categories []string
}

type StepInput struct {
	Step string
}

type CategoryProgressInput struct {
	CategoryID string
	Completed  *bool
	Notes      *string
	TimeSpent  *int
}

type NoteInput struct {
	CategoryID string
	Content    string
	Privacy    string
	Tags       []string
}

type UpdateNoteInput struct {
	NoteID     string
	Content    *string
	Privacy    *string
	Tags       []string
	CategoryID *string
}

type ActionItemInput struct {
	Title       string
	Description string
	AssignedTo  string
	DueDate     *time.Time
}

type UpdateActionItemInput struct {
	ItemID       string
	Title        *string
	Description  *string
	AssignedTo   *string
	DueDate      *time.Time
	ClearDueDate bool
}

type CategoryOutput struct {
	CategoryID string
	Completed  bool
	Notes      string
	TimeSpent  int
}

type NoteOutput struct {
	ID         string
	CategoryID string
	Content    string
	Privacy    string
	Tags       []string
	UpdatedAt  time.Time
}

type SessionOutput struct {
	SessionID      string
	CurrentStep    string
	CompletedSteps []string
	Percentage     int
	Categories     []CategoryOutput
	Notes          []NoteOutput
	StartedAt      time.Time
	LastSavedAt    time.Time
}

type ActionItemOutput struct {
	ID          string
	CheckInID   string
	Title       string
	Description string
	AssignedTo  string
	DueDate     *time.Time
	Completed   bool
}

type CompleteOutput struct {
	SessionID   string
	Persisted   bool
	SummaryPath string
	DurationMin int
	Percentage  int
}

type AbandonOutput struct {
	SessionID string
	Persisted bool
}

// StateOutput is pushed to watchers after every engine change.
type StateOutput struct {
	Active      bool
	Loading     bool
	Error       string
	Session     SessionOutput
	ActionItems []ActionItemOutput
}

type SummaryOutput struct {
	CheckInID   string
	Path        string
	Status      string
	StartedAt   time.Time
	DurationMin int
	Percentage  int
	Categories  []string
}
