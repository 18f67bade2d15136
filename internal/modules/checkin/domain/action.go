package domain

import "time"

type ActionKind string

const (
	KindGoToStep            ActionKind = "GO_TO_STEP"
	KindCompleteStep        ActionKind = "COMPLETE_STEP"
	KindSetCategoryProgress ActionKind = "SET_CATEGORY_PROGRESS"
	KindAddDraftNote        ActionKind = "ADD_DRAFT_NOTE"
	KindUpdateDraftNote     ActionKind = "UPDATE_DRAFT_NOTE"
	KindRemoveDraftNote     ActionKind = "REMOVE_DRAFT_NOTE"
	KindAddActionItem       ActionKind = "ADD_ACTION_ITEM"
	KindUpdateActionItem    ActionKind = "UPDATE_ACTION_ITEM"
	KindRemoveActionItem    ActionKind = "REMOVE_ACTION_ITEM"
	KindToggleActionItem    ActionKind = "TOGGLE_ACTION_ITEM"
	KindSaveSession         ActionKind = "SAVE_SESSION"
	KindCompleteCheckIn     ActionKind = "COMPLETE_CHECKIN"
	KindAbandonCheckIn      ActionKind = "ABANDON_CHECKIN"
	KindRestoreSession      ActionKind = "RESTORE_SESSION"
	KindSetLoading          ActionKind = "SET_LOADING"
	KindSetError            ActionKind = "SET_ERROR"
)

// Action is the closed set of transitions. The unexported reduce method
// keeps implementations inside this package, so every kind carries its own
// transition and a new kind cannot compile without one.
type Action interface {
	Kind() ActionKind
	reduce(state *State, now time.Time) *State
}

type GoToStep struct{ Step Step }

type CompleteStep struct{ Step Step }

type SetCategoryProgress struct {
	CategoryID string
	Update     CategoryProgressUpdate
}

type AddDraftNote struct{ Note DraftNote }

type UpdateDraftNote struct {
	ID     string
	Update DraftNoteUpdate
}

type RemoveDraftNote struct{ ID string }

type AddActionItem struct{ Item ActionItem }

type UpdateActionItem struct{ ID string }

type RemoveActionItem struct{ ID string }

type ToggleActionItem struct{ ID string }

type SaveSession struct{}

type CompleteCheckIn struct{}

type AbandonCheckIn struct{}

type RestoreSession struct{ Session *Session }

type SetLoading struct{ Loading bool }

type SetError struct{ Message string }

func (GoToStep) Kind() ActionKind            { return KindGoToStep }
func (CompleteStep) Kind() ActionKind        { return KindCompleteStep }
func (SetCategoryProgress) Kind() ActionKind { return KindSetCategoryProgress }
func (AddDraftNote) Kind() ActionKind        { return KindAddDraftNote }
func (UpdateDraftNote) Kind() ActionKind     { return KindUpdateDraftNote }
func (RemoveDraftNote) Kind() ActionKind     { return KindRemoveDraftNote }
func (AddActionItem) Kind() ActionKind       { return KindAddActionItem }
func (UpdateActionItem) Kind() ActionKind    { return KindUpdateActionItem }
func (RemoveActionItem) Kind() ActionKind    { return KindRemoveActionItem }
func (ToggleActionItem) Kind() ActionKind    { return KindToggleActionItem }
func (SaveSession) Kind() ActionKind         { return KindSaveSession }
func (CompleteCheckIn) Kind() ActionKind     { return KindCompleteCheckIn }
func (AbandonCheckIn) Kind() ActionKind      { return KindAbandonCheckIn }
func (RestoreSession) Kind() ActionKind      { return KindRestoreSession }
func (SetLoading) Kind() ActionKind          { return KindSetLoading }
func (SetError) Kind() ActionKind            { return KindSetError }
