package service_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"qc/internal/modules/checkin/domain"
	checkinout "qc/internal/modules/checkin/port/out"
)

var errBackend = errors.New("backend unavailable")

type fakeGateway struct {
	mu sync.Mutex

	active   *domain.CheckIn
	fetchErr error
	items    []domain.ActionItem
	fail     map[string]error
	nextID   int

	notes        map[string]domain.DraftNote
	noteInserts  int
	noteUpdates  int
	statuses     map[string]domain.CheckInStatus
	toggled      map[string]bool
	actionWrites []string

	// when set, InsertNote signals entered and waits for release
	noteEntered chan struct{}
	noteRelease chan struct{}
	// runs while FetchCheckInActionItems is in flight
	onFetchItems func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		fail:     map[string]error{},
		notes:    map[string]domain.DraftNote{},
		statuses: map[string]domain.CheckInStatus{},
		toggled:  map[string]bool{},
	}
}

func (g *fakeGateway) failOn(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[op] = err
}

func (g *fakeGateway) id(prefix string) string {
	g.nextID++
	return fmt.Sprintf("%s-%d", prefix, g.nextID)
}

func (g *fakeGateway) FetchActiveCheckIn(context.Context, string) (*domain.CheckIn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	if g.active == nil {
		return nil, nil
	}
	record := *g.active
	return &record, nil
}

func (g *fakeGateway) InsertCheckIn(_ context.Context, input checkinout.CheckInInsert) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["insert_check_in"]; err != nil {
		return "", err
	}
	checkInID := g.id("checkin")
	g.statuses[checkInID] = domain.StatusInProgress
	return checkInID, nil
}

func (g *fakeGateway) UpdateCheckInStatus(_ context.Context, checkInID string, status domain.CheckInStatus) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["update_status"]; err != nil {
		return err
	}
	g.statuses[checkInID] = status
	return nil
}

func (g *fakeGateway) InsertNote(_ context.Context, input checkinout.NoteInsert) (domain.DraftNote, error) {
	g.mu.Lock()
	entered, release := g.noteEntered, g.noteRelease
	g.mu.Unlock()
	if entered != nil {
		close(entered)
		<-release
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["insert_note"]; err != nil {
		return domain.DraftNote{}, err
	}
	now := time.Now().UTC()
	note := domain.DraftNote{
		ID:         g.id("note"),
		CoupleID:   input.CoupleID,
		AuthorID:   input.AuthorID,
		CheckInID:  input.CheckInID,
		Content:    input.Content,
		Privacy:    input.Privacy,
		Tags:       slices.Clone(input.Tags),
		CategoryID: input.CategoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	g.notes[note.ID] = note
	g.noteInserts++
	return note, nil
}

func (g *fakeGateway) UpdateNote(_ context.Context, noteID string, update domain.DraftNoteUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["update_note"]; err != nil {
		return err
	}
	note, ok := g.notes[noteID]
	if !ok {
		return errors.New("note not found")
	}
	if update.Content != nil {
		note.Content = *update.Content
	}
	g.notes[noteID] = note
	g.noteUpdates++
	return nil
}

func (g *fakeGateway) DeleteNote(_ context.Context, noteID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["delete_note"]; err != nil {
		return err
	}
	delete(g.notes, noteID)
	return nil
}

func (g *fakeGateway) InsertActionItem(_ context.Context, input checkinout.ActionItemInsert) (domain.ActionItem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["insert_action_item"]; err != nil {
		return domain.ActionItem{}, err
	}
	now := time.Now().UTC()
	item := domain.ActionItem{
		ID:        g.id("item"),
		CoupleID:  input.CoupleID,
		CheckInID: input.CheckInID,
		Title:     input.Title,
		DueDate:   input.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	g.actionWrites = append(g.actionWrites, "insert:"+item.ID)
	return item, nil
}

func (g *fakeGateway) UpdateActionItem(_ context.Context, itemID string, _ domain.ActionItemUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["update_action_item"]; err != nil {
		return err
	}
	g.actionWrites = append(g.actionWrites, "update:"+itemID)
	return nil
}

func (g *fakeGateway) DeleteActionItem(_ context.Context, itemID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.actionWrites = append(g.actionWrites, "delete:"+itemID)
	return nil
}

func (g *fakeGateway) ToggleActionItem(_ context.Context, itemID string, currentCompleted bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.toggled[itemID] = currentCompleted
	return nil
}

func (g *fakeGateway) FetchCheckInActionItems(context.Context, string, string) ([]domain.ActionItem, error) {
	g.mu.Lock()
	items, hook := slices.Clone(g.items), g.onFetchItems
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return items, nil
}

func (g *fakeGateway) status(checkInID string) domain.CheckInStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statuses[checkInID]
}

func (g *fakeGateway) counts() (inserts, updates int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.noteInserts, g.noteUpdates
}

func (g *fakeGateway) storedNotes() []domain.DraftNote {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.DraftNote, 0, len(g.notes))
	for _, note := range g.notes {
		out = append(out, note)
	}
	return out
}

type fakeFeed struct {
	mu       sync.Mutex
	handlers map[checkinout.Table]checkinout.ChangeHandlers
	err      error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{handlers: map[checkinout.Table]checkinout.ChangeHandlers{}}
}

type fakeSubscription struct {
	feed  *fakeFeed
	table checkinout.Table
}

func (s fakeSubscription) Unsubscribe() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	delete(s.feed.handlers, s.table)
	return nil
}

func (f *fakeFeed) Subscribe(_ context.Context, table checkinout.Table, _ string, handlers checkinout.ChangeHandlers) (checkinout.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.handlers[table] = handlers
	return fakeSubscription{feed: f, table: table}, nil
}

func (f *fakeFeed) emit(event checkinout.RowEvent) {
	f.mu.Lock()
	handlers, ok := f.handlers[event.Table]
	f.mu.Unlock()
	if ok {
		handlers.Dispatch(event)
	}
}

func (f *fakeFeed) subscribed(table checkinout.Table) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[table]
	return ok
}

type fakeCache struct {
	mu      sync.Mutex
	session *domain.Session
	saves   int
	clears  int
}

func (c *fakeCache) Load(context.Context) (*domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone(), nil
}

func (c *fakeCache) Save(_ context.Context, session *domain.Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session.Clone()
	c.saves++
	return nil
}

func (c *fakeCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
	c.clears++
	return nil
}

func (c *fakeCache) current() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

type fakeMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{counts: map[string]int{}}
}

func (m *fakeMetrics) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
}

func (m *fakeMetrics) WriteFailed(op string)        { m.inc("write_failed:" + op) }
func (m *fakeMetrics) FeedEvent(table, kind string) { m.inc("feed:" + table + ":" + kind) }
func (m *fakeMetrics) StaleWriteDropped(op string)  { m.inc("stale:" + op) }
func (m *fakeMetrics) StepCompleted(step string)    { m.inc("step:" + step) }

func (m *fakeMetrics) count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("local-%d", s.n)
}
