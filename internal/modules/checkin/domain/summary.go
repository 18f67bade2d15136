package domain

import (
	"fmt"
	"slices"
	"time"
)

// Summary is the record written when a session ends. Private lane notes
// never appear in it.
type Summary struct {
	CheckInID   string
	CoupleID    string
	Status      CheckInStatus
	StartedAt   time.Time
	EndedAt     time.Time
	Percentage  int
	Completed   []Step
	Categories  []CategoryProgress
	SharedNotes []DraftNote
	ActionItems []ActionItem
}

func NewSummary(session *Session, status CheckInStatus, items []ActionItem, endedAt time.Time) Summary {
	summary := Summary{
		CheckInID:  session.ID,
		CoupleID:   session.BaseCheckIn.CoupleID,
		Status:     status,
		StartedAt:  session.StartedAt,
		EndedAt:    endedAt,
		Percentage: session.Progress.Percentage,
		Completed:  slices.Clone(session.Progress.CompletedSteps),
		Categories: slices.Clone(session.CategoryProgress),
	}
	for _, note := range session.DraftNotes {
		if note.Privacy == PrivacyShared {
			summary.SharedNotes = append(summary.SharedNotes, note)
		}
	}
	for _, item := range items {
		if item.CheckInID == session.ID {
			summary.ActionItems = append(summary.ActionItems, item)
		}
	}
	return summary
}

func (s Summary) Duration() time.Duration {
	if s.EndedAt.Before(s.StartedAt) {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

func (s Summary) Title() string {
	return fmt.Sprintf("Check-in %s", s.StartedAt.UTC().Format("2006-01-02 15:04"))
}

// NotesFor returns shared notes for one category in insertion order.
func (s Summary) NotesFor(categoryID string) []DraftNote {
	var out []DraftNote
	for _, note := range s.SharedNotes {
		if note.CategoryID == categoryID {
			out = append(out, note)
		}
	}
	return out
}

// SummaryRecord is the header of a stored summary.
type SummaryRecord struct {
	CheckInID   string
	Path        string
	Status      CheckInStatus
	StartedAt   time.Time
	DurationMin int
	Percentage  int
	Categories  []string
}
