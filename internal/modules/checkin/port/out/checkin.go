package out

import (
	"context"
	"time"

	"qc/internal/modules/checkin/domain"
)

type CheckInInsert struct {
	LocalID    string
	CoupleID   string
	StartedAt  time.Time
	Categories []string
}

type NoteInsert struct {
	CoupleID   string
	AuthorID   string
	CheckInID  string
	Content    string
	Privacy    domain.Privacy
	Tags       []string
	CategoryID string
}

type ActionItemInsert struct {
	CoupleID    string
	CheckInID   string
	Title       string
	Description string
	AssignedTo  string
	DueDate     *time.Time
}

// PersistenceGateway is the backing store for check-ins, notes and action
// items. FetchActiveCheckIn returns (nil, nil) when the couple has no
// in-progress check-in.
type PersistenceGateway interface {
	FetchActiveCheckIn(ctx context.Context, coupleID string) (*domain.CheckIn, error)
	InsertCheckIn(ctx context.Context, input CheckInInsert) (string, error)
	UpdateCheckInStatus(ctx context.Context, checkInID string, status domain.CheckInStatus) error

	InsertNote(ctx context.Context, input NoteInsert) (domain.DraftNote, error)
	UpdateNote(ctx context.Context, noteID string, update domain.DraftNoteUpdate) error
	DeleteNote(ctx context.Context, noteID string) error

	InsertActionItem(ctx context.Context, input ActionItemInsert) (domain.ActionItem, error)
	UpdateActionItem(ctx context.Context, itemID string, update domain.ActionItemUpdate) error
	DeleteActionItem(ctx context.Context, itemID string) error
	ToggleActionItem(ctx context.Context, itemID string, currentCompleted bool) error
	FetchCheckInActionItems(ctx context.Context, checkInID, coupleID string) ([]domain.ActionItem, error)
}

type Table string

const (
	TableCheckIns    Table = "check_ins"
	TableNotes       Table = "notes"
	TableActionItems Table = "action_items"
)

type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// RowEvent is one row-level change notification. Exactly one of the record
// fields is set for inserts and updates; deletes carry only RowID.
type RowEvent struct {
	Table      Table              `json:"table"`
	Kind       ChangeKind         `json:"kind"`
	CoupleID   string             `json:"couple_id"`
	RowID      string             `json:"row_id"`
	CheckIn    *domain.CheckIn    `json:"check_in,omitempty"`
	Note       *domain.DraftNote  `json:"note,omitempty"`
	ActionItem *domain.ActionItem `json:"action_item,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

type ChangeHandlers struct {
	OnInsert func(event RowEvent)
	OnUpdate func(event RowEvent)
	OnDelete func(event RowEvent)
}

// Dispatch routes an event to the handler for its kind.
func (h ChangeHandlers) Dispatch(event RowEvent) {
	var fn func(RowEvent)
	switch event.Kind {
	case ChangeInsert:
		fn = h.OnInsert
	case ChangeUpdate:
		fn = h.OnUpdate
	case ChangeDelete:
		fn = h.OnDelete
	}
	if fn != nil {
		fn(event)
	}
}

type Subscription interface {
	Unsubscribe() error
}

// ChangeFeed delivers row events for one couple. Delivery is at-least-once,
// unordered, and includes echoes of the local client's own writes.
type ChangeFeed interface {
	Subscribe(ctx context.Context, table Table, coupleID string, handlers ChangeHandlers) (Subscription, error)
}

type ChangePublisher interface {
	Publish(ctx context.Context, event RowEvent) error
}

// SessionCache keeps the live wizard state across process restarts.
// Load returns (nil, nil) when nothing is cached.
type SessionCache interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Clear(ctx context.Context) error
}

// SummaryStore keeps one document per finished check-in. List is newest
// first.
type SummaryStore interface {
	Save(ctx context.Context, summary domain.Summary) (string, error)
	List(ctx context.Context) ([]domain.SummaryRecord, error)
}

type Metrics interface {
	WriteFailed(op string)
	FeedEvent(table, kind string)
	StaleWriteDropped(op string)
	StepCompleted(step string)
}
