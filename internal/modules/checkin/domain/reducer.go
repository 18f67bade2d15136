package domain

import (
	"slices"
	"time"
)

// State is everything Reduce owns. Action items are deliberately absent;
// they live in a separate list fed only by the change feed.
type State struct {
	Session   *Session
	IsLoading bool
	Error     string
}

// InitialState is the state before the first load resolves.
func InitialState() *State {
	return &State{IsLoading: true}
}

// Reduce applies action to state and returns the next state. When the action
// has nothing to change (including any session-scoped action while no
// session exists) the same pointer is returned, so callers may compare
// references to detect no-ops. The input state is never mutated.
func Reduce(state *State, action Action, now time.Time) *State {
	if state == nil {
		state = &State{}
	}
	if action == nil {
		return state
	}
	return action.reduce(state, now)
}

// withSession copies state and its session, then lets fn edit the copy.
func withSession(state *State, fn func(s *Session)) *State {
	if state.Session == nil {
		return state
	}
	next := *state
	next.Session = state.Session.Clone()
	fn(next.Session)
	return &next
}

func (a GoToStep) reduce(state *State, _ time.Time) *State {
	return withSession(state, func(s *Session) {
		s.Progress.CurrentStep = a.Step
	})
}

func (a CompleteStep) reduce(state *State, _ time.Time) *State {
	if !a.Step.Valid() {
		return state
	}
	return withSession(state, func(s *Session) {
		if !s.Progress.HasCompleted(a.Step) {
			s.Progress.CompletedSteps = append(s.Progress.CompletedSteps, a.Step)
		}
		s.Progress.CurrentStep = a.Step.Next()
		s.Progress.TotalSteps = TotalSteps
		s.Progress.Percentage = percentage(len(s.Progress.CompletedSteps))
	})
}

func (a SetCategoryProgress) reduce(state *State, now time.Time) *State {
	if state.Session == nil || state.Session.categoryIndex(a.CategoryID) < 0 {
		return state
	}
	return withSession(state, func(s *Session) {
		idx := s.categoryIndex(a.CategoryID)
		s.CategoryProgress[idx] = a.Update.applyTo(s.CategoryProgress[idx], now)
	})
}

func (a AddDraftNote) reduce(state *State, _ time.Time) *State {
	return withSession(state, func(s *Session) {
		note := a.Note
		note.Tags = slices.Clone(note.Tags)
		// keyed by id so a repeated add replaces instead of duplicating
		if idx := s.noteIndex(note.ID); note.ID != "" && idx >= 0 {
			s.DraftNotes[idx] = note
			return
		}
		s.DraftNotes = append(s.DraftNotes, note)
	})
}

func (a UpdateDraftNote) reduce(state *State, now time.Time) *State {
	if state.Session == nil || state.Session.noteIndex(a.ID) < 0 {
		return state
	}
	return withSession(state, func(s *Session) {
		idx := s.noteIndex(a.ID)
		s.DraftNotes[idx] = a.Update.Apply(s.DraftNotes[idx], now)
	})
}

func (a RemoveDraftNote) reduce(state *State, _ time.Time) *State {
	if state.Session == nil || state.Session.noteIndex(a.ID) < 0 {
		return state
	}
	return withSession(state, func(s *Session) {
		s.DraftNotes = slices.DeleteFunc(s.DraftNotes, func(note DraftNote) bool {
			return note.ID == a.ID
		})
	})
}

func touchSaved(state *State, now time.Time) *State {
	return withSession(state, func(s *Session) {
		s.LastSavedAt = now
	})
}

func (AddActionItem) reduce(state *State, now time.Time) *State    { return touchSaved(state, now) }
func (UpdateActionItem) reduce(state *State, now time.Time) *State { return touchSaved(state, now) }
func (RemoveActionItem) reduce(state *State, now time.Time) *State { return touchSaved(state, now) }
func (ToggleActionItem) reduce(state *State, now time.Time) *State { return touchSaved(state, now) }
func (SaveSession) reduce(state *State, now time.Time) *State      { return touchSaved(state, now) }

func clearSession(state *State) *State {
	if state.Session == nil {
		return state
	}
	next := *state
	next.Session = nil
	return &next
}

func (CompleteCheckIn) reduce(state *State, _ time.Time) *State { return clearSession(state) }
func (AbandonCheckIn) reduce(state *State, _ time.Time) *State  { return clearSession(state) }

func (a RestoreSession) reduce(_ *State, _ time.Time) *State {
	return &State{Session: a.Session.Clone()}
}

func (a SetLoading) reduce(state *State, _ time.Time) *State {
	if state.IsLoading == a.Loading {
		return state
	}
	next := *state
	next.IsLoading = a.Loading
	return &next
}

func (a SetError) reduce(state *State, _ time.Time) *State {
	next := *state
	next.Error = a.Message
	next.IsLoading = false
	return &next
}
