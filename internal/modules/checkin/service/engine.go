package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"qc/internal/modules/checkin/domain"
	checkinout "qc/internal/modules/checkin/port/out"
	"qc/internal/platform/clock"
	"qc/internal/platform/id"
	"qc/internal/platform/metrics"
)

// Identity is the couple and member this engine acts for.
type Identity struct {
	CoupleID string
	UserID   string
}

// Snapshot is a detached copy of the engine state.
type Snapshot struct {
	Session     *domain.Session
	IsLoading   bool
	Error       string
	ActionItems []domain.ActionItem
}

type NoteDraft struct {
	CategoryID string
	Content    string
	Privacy    domain.Privacy
	Tags       []string
}

type ActionItemDraft struct {
	Title       string
	Description string
	AssignedTo  string
	DueDate     *time.Time
}

type Option func(*Engine)

func WithSessionCache(cache checkinout.SessionCache) Option {
	return func(e *Engine) { e.cache = cache }
}

func WithMetrics(m checkinout.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

func WithIDGenerator(g id.Generator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

type mutation struct {
	fn   func()
	done chan struct{}
}

// Engine owns one couple's live check-in. All state lives on a single loop
// goroutine; commands and feed handlers hand it closures through the
// mailbox and wait for them to run. Gateway calls happen off the loop.
//
// Listeners registered with Subscribe run on the loop goroutine and must
// not call back into the Engine.
type Engine struct {
	identity Identity
	gateway  checkinout.PersistenceGateway
	feed     checkinout.ChangeFeed
	cache    checkinout.SessionCache
	metrics  checkinout.Metrics
	clock    clock.Clock
	ids      id.Generator
	logger   *slog.Logger

	mailbox chan mutation
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once

	subsMu sync.Mutex
	subs   []checkinout.Subscription

	// loop-owned
	state          *domain.State
	items          actionItemList
	generation     uint64
	changed        bool
	sessionChanged bool
	notifiedItems  uint64
	listeners      map[int]func(Snapshot)
	nextListener   int
}

func NewEngine(identity Identity, gateway checkinout.PersistenceGateway, feed checkinout.ChangeFeed, opts ...Option) *Engine {
	e := &Engine{
		identity:  identity,
		gateway:   gateway,
		feed:      feed,
		metrics:   metrics.Noop{},
		clock:     clock.SystemClock{},
		ids:       id.UUID{},
		logger:    slog.Default(),
		mailbox:   make(chan mutation),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		state:     domain.InitialState(),
		listeners: map[int]func(Snapshot){},
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.run()
	return e
}

func (e *Engine) run() {
	defer close(e.stopped)
	for {
		select {
		case <-e.quit:
			return
		case m := <-e.mailbox:
			m.fn()
			e.flush()
			close(m.done)
		}
	}
}

// submit runs fn on the loop and waits for it. It reports false when the
// engine is closed.
func (e *Engine) submit(fn func()) bool {
	m := mutation{fn: fn, done: make(chan struct{})}
	select {
	case e.mailbox <- m:
	case <-e.quit:
		return false
	}
	<-m.done
	return true
}

func (e *Engine) dispatch(action domain.Action) {
	before := e.state
	e.state = domain.Reduce(before, action, e.clock.Now())
	if e.state == before {
		return
	}
	e.changed = true
	if e.state.Session != before.Session || action.Kind() == domain.KindRestoreSession {
		e.sessionChanged = true
	}
	switch action.(type) {
	case domain.RestoreSession, domain.CompleteCheckIn, domain.AbandonCheckIn:
		e.generation++
	}
}

func (e *Engine) flush() {
	if e.items.version != e.notifiedItems {
		e.notifiedItems = e.items.version
		e.changed = true
	}
	if e.sessionChanged {
		e.sessionChanged = false
		e.persistSession()
	}
	if !e.changed {
		return
	}
	e.changed = false
	if len(e.listeners) == 0 {
		return
	}
	snapshot := e.snapshot()
	for _, fn := range e.listeners {
		fn(snapshot)
	}
}

func (e *Engine) persistSession() {
	if e.cache == nil {
		return
	}
	ctx := context.Background()
	if e.state.Session == nil {
		if err := e.cache.Clear(ctx); err != nil {
			e.logger.Warn("clear session cache failed", "error", err)
		}
		return
	}
	if err := e.cache.Save(ctx, e.state.Session); err != nil {
		e.logger.Warn("save session cache failed", "session_id", e.state.Session.ID, "error", err)
	}
}

func (e *Engine) snapshot() Snapshot {
	return Snapshot{
		Session:     e.state.Session.Clone(),
		IsLoading:   e.state.IsLoading,
		Error:       e.state.Error,
		ActionItems: e.items.snapshot(),
	}
}

// sessionRef captures the current generation and session id.
func (e *Engine) sessionRef() (generation uint64, sessionID string) {
	e.submit(func() {
		generation = e.generation
		if e.state.Session != nil {
			sessionID = e.state.Session.ID
		}
	})
	return generation, sessionID
}

func (e *Engine) writeFailed(op string, err error, attrs ...any) {
	e.metrics.WriteFailed(op)
	e.logger.Warn("persistence write failed", append([]any{"op", op, "error", err}, attrs...)...)
}

func (e *Engine) staleDropped(op string, attrs ...any) {
	e.metrics.StaleWriteDropped(op)
	e.logger.Debug("dropped stale write", append([]any{"op", op}, attrs...)...)
}

// Open subscribes to the check-in and action item feeds.
func (e *Engine) Open(ctx context.Context) error {
	if e.feed == nil {
		return nil
	}
	checkIns, err := e.feed.Subscribe(ctx, checkinout.TableCheckIns, e.identity.CoupleID, checkinout.ChangeHandlers{
		OnUpdate: e.onCheckInUpdate,
	})
	if err != nil {
		return fmt.Errorf("subscribe check-ins: %w", err)
	}
	items, err := e.feed.Subscribe(ctx, checkinout.TableActionItems, e.identity.CoupleID, checkinout.ChangeHandlers{
		OnInsert: e.onActionItemUpsert,
		OnUpdate: e.onActionItemUpsert,
		OnDelete: e.onActionItemDelete,
	})
	if err != nil {
		_ = checkIns.Unsubscribe()
		return fmt.Errorf("subscribe action items: %w", err)
	}
	e.subsMu.Lock()
	e.subs = append(e.subs, checkIns, items)
	e.subsMu.Unlock()
	return nil
}

// Close releases feed subscriptions and stops the loop. Commands issued
// afterwards are ignored.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		e.subsMu.Lock()
		subs := e.subs
		e.subs = nil
		e.subsMu.Unlock()
		for _, sub := range subs {
			err = errors.Join(err, sub.Unsubscribe())
		}
		close(e.quit)
		<-e.stopped
	})
	return err
}

// Initialize loads the couple's in-progress check-in, if any. Load failures
// are logged and leave the engine with no session.
func (e *Engine) Initialize(ctx context.Context) {
	var generation uint64
	e.submit(func() {
		generation = e.generation
		e.items.beginLoad()
		e.dispatch(domain.SetLoading{Loading: true})
	})
	session, items := e.loadActive(ctx)
	e.submit(func() {
		if e.generation != generation {
			e.items.abortLoad()
			e.staleDropped("initialize")
			e.dispatch(domain.SetLoading{Loading: false})
			return
		}
		e.items.finishLoad(items)
		e.dispatch(domain.RestoreSession{Session: session})
	})
}

func (e *Engine) loadActive(ctx context.Context) (*domain.Session, []domain.ActionItem) {
	record, err := e.gateway.FetchActiveCheckIn(ctx, e.identity.CoupleID)
	if err != nil {
		e.logger.Warn("load active check-in failed", "error", err)
		return nil, nil
	}
	if record == nil {
		return nil, nil
	}
	session := e.sessionFromRecord(ctx, *record)
	items, err := e.gateway.FetchCheckInActionItems(ctx, record.ID, e.identity.CoupleID)
	if err != nil {
		e.logger.Warn("load action items failed", "check_in_id", record.ID, "error", err)
	}
	return session, items
}

// sessionFromRecord prefers the cached wizard state for the same check-in
// and otherwise rebuilds a fresh one from the record.
func (e *Engine) sessionFromRecord(ctx context.Context, record domain.CheckIn) *domain.Session {
	if record.CoupleID == "" {
		record.CoupleID = e.identity.CoupleID
	}
	if record.Status == "" {
		record.Status = domain.StatusInProgress
	}
	if e.cache != nil {
		cached, err := e.cache.Load(ctx)
		switch {
		case err != nil:
			e.logger.Warn("load session cache failed", "error", err)
		case cached != nil && cached.ID == record.ID:
			record.Categories = slices.Clone(cached.SelectedCategories)
			cached.BaseCheckIn = record
			return cached
		}
	}
	session := domain.NewSession(record.ID, record.CoupleID, record.Categories, record.StartedAt)
	record.Categories = slices.Clone(session.SelectedCategories)
	session.BaseCheckIn = record
	return session
}

// StartCheckIn persists a new check-in and makes it the live session. The
// returned session is nil when the insert failed or another session
// replaced this one first.
func (e *Engine) StartCheckIn(ctx context.Context, categories []string) (*domain.Session, bool) {
	generation, _ := e.sessionRef()
	now := e.clock.Now()
	session := domain.NewSession(e.ids.New(), e.identity.CoupleID, categories, now)
	checkInID, err := e.gateway.InsertCheckIn(ctx, checkinout.CheckInInsert{
		LocalID:    session.ID,
		CoupleID:   e.identity.CoupleID,
		StartedAt:  now,
		Categories: slices.Clone(session.SelectedCategories),
	})
	if err != nil {
		e.writeFailed("insert_check_in", err)
		return nil, false
	}
	if checkInID != "" {
		session.ID = checkInID
		session.BaseCheckIn.ID = checkInID
	}
	applied := false
	e.submit(func() {
		if e.generation != generation {
			e.staleDropped("insert_check_in", "check_in_id", session.ID)
			return
		}
		e.dispatch(domain.RestoreSession{Session: session})
		applied = true
	})
	if !applied {
		return nil, false
	}
	e.logger.Info("check-in started", "check_in_id", session.ID, "categories", len(session.SelectedCategories))
	return session, true
}

func (e *Engine) GoToStep(step domain.Step) {
	e.submit(func() { e.dispatch(domain.GoToStep{Step: step}) })
}

func (e *Engine) CompleteStep(step domain.Step) {
	e.submit(func() {
		session := e.state.Session
		if session == nil {
			return
		}
		already := session.Progress.HasCompleted(step)
		e.dispatch(domain.CompleteStep{Step: step})
		if !already && step.Valid() {
			e.metrics.StepCompleted(string(step))
		}
	})
}

func (e *Engine) UpdateCategoryProgress(categoryID string, update domain.CategoryProgressUpdate) {
	e.submit(func() {
		e.dispatch(domain.SetCategoryProgress{CategoryID: categoryID, Update: update})
	})
}

// AddDraftNote persists a note for the live session and then adds the
// stored row locally. Nothing is written when there is no session.
func (e *Engine) AddDraftNote(ctx context.Context, draft NoteDraft) (domain.DraftNote, bool) {
	generation, sessionID := e.sessionRef()
	if sessionID == "" {
		e.logger.Debug("draft note ignored without active session")
		return domain.DraftNote{}, false
	}
	note, err := e.gateway.InsertNote(ctx, checkinout.NoteInsert{
		CoupleID:   e.identity.CoupleID,
		AuthorID:   e.identity.UserID,
		CheckInID:  sessionID,
		Content:    draft.Content,
		Privacy:    draft.Privacy,
		Tags:       slices.Clone(draft.Tags),
		CategoryID: draft.CategoryID,
	})
	if err != nil {
		e.writeFailed("insert_note", err, "check_in_id", sessionID)
		return domain.DraftNote{}, false
	}
	applied := false
	e.submit(func() {
		if e.generation != generation {
			e.staleDropped("insert_note", "note_id", note.ID)
			return
		}
		e.dispatch(domain.AddDraftNote{Note: note})
		applied = true
	})
	return note, applied
}

// UpdateDraftNote applies the edit locally first, then persists it. A failed
// write leaves the local edit in place.
func (e *Engine) UpdateDraftNote(ctx context.Context, noteID string, update domain.DraftNoteUpdate) bool {
	e.submit(func() { e.dispatch(domain.UpdateDraftNote{ID: noteID, Update: update}) })
	if err := e.gateway.UpdateNote(ctx, noteID, update); err != nil {
		e.writeFailed("update_note", err, "note_id", noteID)
		return false
	}
	return true
}

func (e *Engine) RemoveDraftNote(ctx context.Context, noteID string) bool {
	e.submit(func() { e.dispatch(domain.RemoveDraftNote{ID: noteID}) })
	if err := e.gateway.DeleteNote(ctx, noteID); err != nil {
		e.writeFailed("delete_note", err, "note_id", noteID)
		return false
	}
	return true
}

// AddActionItem persists a new item. The local action item list only learns
// about it from the change feed.
func (e *Engine) AddActionItem(ctx context.Context, draft ActionItemDraft) (domain.ActionItem, bool) {
	generation, sessionID := e.sessionRef()
	item, err := e.gateway.InsertActionItem(ctx, checkinout.ActionItemInsert{
		CoupleID:    e.identity.CoupleID,
		CheckInID:   sessionID,
		Title:       draft.Title,
		Description: draft.Description,
		AssignedTo:  draft.AssignedTo,
		DueDate:     draft.DueDate,
	})
	if err != nil {
		e.writeFailed("insert_action_item", err)
		return domain.ActionItem{}, false
	}
	e.touch(generation, domain.AddActionItem{Item: item})
	return item, true
}

func (e *Engine) UpdateActionItem(ctx context.Context, itemID string, update domain.ActionItemUpdate) bool {
	generation, _ := e.sessionRef()
	if err := e.gateway.UpdateActionItem(ctx, itemID, update); err != nil {
		e.writeFailed("update_action_item", err, "item_id", itemID)
		return false
	}
	e.touch(generation, domain.UpdateActionItem{ID: itemID})
	return true
}

func (e *Engine) RemoveActionItem(ctx context.Context, itemID string) bool {
	generation, _ := e.sessionRef()
	if err := e.gateway.DeleteActionItem(ctx, itemID); err != nil {
		e.writeFailed("delete_action_item", err, "item_id", itemID)
		return false
	}
	e.touch(generation, domain.RemoveActionItem{ID: itemID})
	return true
}

// ToggleActionItem flips completion based on the item's state in the local
// list. Unknown items are not written.
func (e *Engine) ToggleActionItem(ctx context.Context, itemID string) bool {
	var (
		generation uint64
		item       domain.ActionItem
		found      bool
	)
	e.submit(func() {
		generation = e.generation
		item, found = e.items.find(itemID)
	})
	if !found {
		e.logger.Warn("toggle ignored for unknown action item", "item_id", itemID)
		return false
	}
	if err := e.gateway.ToggleActionItem(ctx, itemID, item.Completed); err != nil {
		e.writeFailed("toggle_action_item", err, "item_id", itemID)
		return false
	}
	e.touch(generation, domain.ToggleActionItem{ID: itemID})
	return true
}

// touch records a save timestamp unless the session changed meanwhile.
func (e *Engine) touch(generation uint64, action domain.Action) {
	e.submit(func() {
		if e.generation == generation {
			e.dispatch(action)
		}
	})
}

func (e *Engine) SaveSession() {
	e.submit(func() { e.dispatch(domain.SaveSession{}) })
}

// CompleteCheckIn marks the check-in completed in the backend and clears
// the local session even when that write fails.
func (e *Engine) CompleteCheckIn(ctx context.Context) bool {
	return e.finish(ctx, domain.StatusCompleted, domain.CompleteCheckIn{}, "complete_check_in")
}

func (e *Engine) AbandonCheckIn(ctx context.Context) bool {
	return e.finish(ctx, domain.StatusAbandoned, domain.AbandonCheckIn{}, "abandon_check_in")
}

func (e *Engine) finish(ctx context.Context, status domain.CheckInStatus, action domain.Action, op string) bool {
	generation, sessionID := e.sessionRef()
	if sessionID == "" {
		return false
	}
	persisted := true
	if err := e.gateway.UpdateCheckInStatus(ctx, sessionID, status); err != nil {
		e.writeFailed(op, err, "check_in_id", sessionID)
		persisted = false
	}
	e.submit(func() {
		if e.generation != generation {
			// the feed echo may already have cleared this session
			if e.state.Session != nil {
				e.staleDropped(op, "check_in_id", sessionID)
			}
			return
		}
		e.dispatch(action)
	})
	e.logger.Info("check-in closed", "check_in_id", sessionID, "status", status, "persisted", persisted)
	return persisted
}

func (e *Engine) onCheckInUpdate(event checkinout.RowEvent) {
	e.metrics.FeedEvent(string(event.Table), string(event.Kind))
	record := event.CheckIn
	if record == nil || !e.owns(event) {
		return
	}
	e.submit(func() {
		session := e.state.Session
		if session == nil || session.ID != record.ID || record.Status == domain.StatusInProgress {
			return
		}
		e.logger.Info("check-in closed on another device", "check_in_id", record.ID, "status", record.Status)
		e.dispatch(domain.CompleteCheckIn{})
	})
}

func (e *Engine) onActionItemUpsert(event checkinout.RowEvent) {
	e.metrics.FeedEvent(string(event.Table), string(event.Kind))
	if event.ActionItem == nil || !e.owns(event) {
		return
	}
	item := *event.ActionItem
	e.submit(func() { e.items.upsert(item) })
}

func (e *Engine) onActionItemDelete(event checkinout.RowEvent) {
	e.metrics.FeedEvent(string(event.Table), string(event.Kind))
	if !e.owns(event) {
		return
	}
	rowID := event.RowID
	if rowID == "" && event.ActionItem != nil {
		rowID = event.ActionItem.ID
	}
	e.submit(func() { e.items.remove(rowID) })
}

func (e *Engine) owns(event checkinout.RowEvent) bool {
	return event.CoupleID == "" || event.CoupleID == e.identity.CoupleID
}

func (e *Engine) Snapshot() Snapshot {
	var snapshot Snapshot
	e.submit(func() { snapshot = e.snapshot() })
	return snapshot
}

func (e *Engine) ActionItems() []domain.ActionItem {
	var items []domain.ActionItem
	e.submit(func() { items = e.items.snapshot() })
	return items
}

// CanGoToStep reports whether target is at most one step past the current
// one. Navigation itself is never blocked.
func (e *Engine) CanGoToStep(target domain.Step) bool {
	allowed := false
	e.submit(func() {
		if e.state.Session != nil {
			allowed = domain.CanGoToStep(e.state.Session.Progress.CurrentStep, target)
		}
	})
	return allowed
}

func (e *Engine) IsStepCompleted(step domain.Step) bool {
	completed := false
	e.submit(func() {
		completed = e.state.Session != nil && e.state.Session.Progress.HasCompleted(step)
	})
	return completed
}

func (e *Engine) CurrentCategoryProgress() (domain.CategoryProgress, bool) {
	var (
		progress domain.CategoryProgress
		ok       bool
	)
	e.submit(func() { progress, ok = e.state.Session.CurrentCategoryProgress() })
	return progress, ok
}

// Subscribe registers fn for a snapshot after every state change. The
// returned func removes it.
func (e *Engine) Subscribe(fn func(Snapshot)) func() {
	key := -1
	e.submit(func() {
		key = e.nextListener
		e.nextListener++
		e.listeners[key] = fn
	})
	return func() {
		e.submit(func() { delete(e.listeners, key) })
	}
}
