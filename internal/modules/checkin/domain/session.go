package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

type CheckInStatus string

const (
	StatusInProgress CheckInStatus = "in-progress"
	StatusCompleted  CheckInStatus = "completed"
	StatusAbandoned  CheckInStatus = "abandoned"
)

func ParseStatus(raw string) (CheckInStatus, error) {
	switch status := CheckInStatus(strings.TrimSpace(raw)); status {
	case StatusInProgress, StatusCompleted, StatusAbandoned:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
}

// CheckIn is the persisted record behind a session.
type CheckIn struct {
	ID          string        `json:"id"`
	CoupleID    string        `json:"couple_id"`
	Status      CheckInStatus `json:"status"`
	Categories  []string      `json:"categories"`
	MoodBefore  *int          `json:"mood_before,omitempty"`
	MoodAfter   *int          `json:"mood_after,omitempty"`
	Reflection  string        `json:"reflection,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

type Progress struct {
	CurrentStep    Step   `json:"current_step"`
	CompletedSteps []Step `json:"completed_steps"`
	TotalSteps     int    `json:"total_steps"`
	Percentage     int    `json:"percentage"`
}

func (p Progress) HasCompleted(step Step) bool {
	return slices.Contains(p.CompletedSteps, step)
}

func percentage(completed int) int {
	return int(math.Round(100 * float64(completed) / float64(TotalSteps)))
}

type CategoryProgress struct {
	CategoryID  string    `json:"category_id"`
	IsCompleted bool      `json:"is_completed"`
	Notes       string    `json:"notes,omitempty"`
	TimeSpent   int       `json:"time_spent"`
	LastUpdated time.Time `json:"last_updated"`
}

// CategoryProgressUpdate is a partial merge; nil fields are left alone.
type CategoryProgressUpdate struct {
	IsCompleted *bool
	Notes       *string
	TimeSpent   *int
}

func (u CategoryProgressUpdate) applyTo(cp CategoryProgress, now time.Time) CategoryProgress {
	if u.IsCompleted != nil {
		cp.IsCompleted = *u.IsCompleted
	}
	if u.Notes != nil {
		cp.Notes = *u.Notes
	}
	// time spent never goes backwards
	if u.TimeSpent != nil && *u.TimeSpent > cp.TimeSpent {
		cp.TimeSpent = *u.TimeSpent
	}
	cp.LastUpdated = now
	return cp
}

type Privacy string

const (
	PrivacyPrivate Privacy = "private"
	PrivacyShared  Privacy = "shared"
	PrivacyDraft   Privacy = "draft"
)

func ParsePrivacy(raw string) (Privacy, error) {
	switch privacy := Privacy(strings.TrimSpace(raw)); privacy {
	case PrivacyPrivate, PrivacyShared, PrivacyDraft:
		return privacy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPrivacy, raw)
	}
}

// Lane groups privacy values for display. Draft and private share a lane.
type Lane string

const (
	LanePrivate Lane = "private"
	LaneShared  Lane = "shared"
)

func (p Privacy) Lane() Lane {
	if p == PrivacyShared {
		return LaneShared
	}
	return LanePrivate
}

type DraftNote struct {
	ID       string `json:"id"`
	CoupleID string `json:"couple_id"`
	AuthorID string `json:"author_id"`
	// CheckInID is empty until the owning check-in is persisted.
	CheckInID  string    `json:"check_in_id,omitempty"`
	Content    string    `json:"content"`
	Privacy    Privacy   `json:"privacy"`
	Tags       []string  `json:"tags,omitempty"`
	CategoryID string    `json:"category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type DraftNoteUpdate struct {
	Content    *string
	Privacy    *Privacy
	Tags       []string
	CategoryID *string
}

// Apply merges the set fields into note and stamps UpdatedAt.
func (u DraftNoteUpdate) Apply(note DraftNote, now time.Time) DraftNote {
	if u.Content != nil {
		note.Content = *u.Content
	}
	if u.Privacy != nil {
		note.Privacy = *u.Privacy
	}
	if u.Tags != nil {
		note.Tags = slices.Clone(u.Tags)
	}
	if u.CategoryID != nil {
		note.CategoryID = *u.CategoryID
	}
	note.UpdatedAt = now
	return note
}

// ActionItem belongs to the couple and outlives any single session.
type ActionItem struct {
	ID          string     `json:"id"`
	CoupleID    string     `json:"couple_id"`
	CheckInID   string     `json:"check_in_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type ActionItemUpdate struct {
	Title        *string
	Description  *string
	AssignedTo   *string
	DueDate      *time.Time
	ClearDueDate bool
}

func (u ActionItemUpdate) Apply(item ActionItem, now time.Time) ActionItem {
	if u.Title != nil {
		item.Title = *u.Title
	}
	if u.Description != nil {
		item.Description = *u.Description
	}
	if u.AssignedTo != nil {
		item.AssignedTo = *u.AssignedTo
	}
	switch {
	case u.ClearDueDate:
		item.DueDate = nil
	case u.DueDate != nil:
		due := *u.DueDate
		item.DueDate = &due
	}
	item.UpdatedAt = now
	return item
}

// Toggled flips completion and keeps CompletedAt in step with it.
func (item ActionItem) Toggled(now time.Time) ActionItem {
	item.Completed = !item.Completed
	if item.Completed {
		item.CompletedAt = &now
	} else {
		item.CompletedAt = nil
	}
	item.UpdatedAt = now
	return item
}

// Session is the live, in-memory state of one check-in attempt.
type Session struct {
	ID                 string             `json:"id"`
	BaseCheckIn        CheckIn            `json:"base_check_in"`
	Progress           Progress           `json:"progress"`
	SelectedCategories []string           `json:"selected_categories"`
	CategoryProgress   []CategoryProgress `json:"category_progress"`
	DraftNotes         []DraftNote        `json:"draft_notes"`
	StartedAt          time.Time          `json:"started_at"`
	LastSavedAt        time.Time          `json:"last_saved_at"`
}

// NewSession builds a fresh session on the welcome step with one progress
// entry per distinct category.
func NewSession(id, coupleID string, categories []string, now time.Time) *Session {
	selected := make([]string, 0, len(categories))
	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category == "" || slices.Contains(selected, category) {
			continue
		}
		selected = append(selected, category)
	}
	progress := make([]CategoryProgress, 0, len(selected))
	for _, category := range selected {
		progress = append(progress, CategoryProgress{CategoryID: category, LastUpdated: now})
	}
	return &Session{
		ID: id,
		BaseCheckIn: CheckIn{
			ID:         id,
			CoupleID:   coupleID,
			Status:     StatusInProgress,
			Categories: slices.Clone(selected),
			StartedAt:  now,
		},
		Progress: Progress{
			CurrentStep:    StepWelcome,
			CompletedSteps: []Step{},
			TotalSteps:     TotalSteps,
			Percentage:     0,
		},
		SelectedCategories: selected,
		CategoryProgress:   progress,
		DraftNotes:         []DraftNote{},
		StartedAt:          now,
		LastSavedAt:        now,
	}
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.BaseCheckIn = s.BaseCheckIn.clone()
	out.Progress.CompletedSteps = slices.Clone(s.Progress.CompletedSteps)
	out.SelectedCategories = slices.Clone(s.SelectedCategories)
	out.CategoryProgress = slices.Clone(s.CategoryProgress)
	out.DraftNotes = make([]DraftNote, len(s.DraftNotes))
	for i, note := range s.DraftNotes {
		note.Tags = slices.Clone(note.Tags)
		out.DraftNotes[i] = note
	}
	return &out
}

func (c CheckIn) clone() CheckIn {
	c.Categories = slices.Clone(c.Categories)
	if c.MoodBefore != nil {
		v := *c.MoodBefore
		c.MoodBefore = &v
	}
	if c.MoodAfter != nil {
		v := *c.MoodAfter
		c.MoodAfter = &v
	}
	if c.CompletedAt != nil {
		v := *c.CompletedAt
		c.CompletedAt = &v
	}
	return c
}

func (s *Session) categoryIndex(categoryID string) int {
	for i, cp := range s.CategoryProgress {
		if cp.CategoryID == categoryID {
			return i
		}
	}
	return -1
}

func (s *Session) noteIndex(noteID string) int {
	for i, note := range s.DraftNotes {
		if note.ID == noteID {
			return i
		}
	}
	return -1
}

func (s *Session) CategoryProgressFor(categoryID string) (CategoryProgress, bool) {
	if s == nil {
		return CategoryProgress{}, false
	}
	idx := s.categoryIndex(categoryID)
	if idx < 0 {
		return CategoryProgress{}, false
	}
	return s.CategoryProgress[idx], true
}

// CurrentCategoryProgress is the first selected category still under
// discussion.
func (s *Session) CurrentCategoryProgress() (CategoryProgress, bool) {
	if s == nil {
		return CategoryProgress{}, false
	}
	for _, cp := range s.CategoryProgress {
		if !cp.IsCompleted {
			return cp, true
		}
	}
	return CategoryProgress{}, false
}

// LatestNote finds the most recently updated note for a category lane.
// Later entries win ties.
func (s *Session) LatestNote(categoryID string, lane Lane) (DraftNote, bool) {
	if s == nil {
		return DraftNote{}, false
	}
	var (
		found  DraftNote
		exists bool
	)
	for _, note := range s.DraftNotes {
		if note.CategoryID != categoryID || note.Privacy.Lane() != lane {
			continue
		}
		if !exists || !note.UpdatedAt.Before(found.UpdatedAt) {
			found = note
			exists = true
		}
	}
	return found, exists
}
