package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"qc/internal/modules/checkin/domain"
	"qc/internal/platform/clock"
)

// ComposerEngine is the slice of Engine a Composer writes through.
type ComposerEngine interface {
	Snapshot() Snapshot
	AddDraftNote(ctx context.Context, draft NoteDraft) (domain.DraftNote, bool)
	UpdateDraftNote(ctx context.Context, noteID string, update domain.DraftNoteUpdate) bool
	UpdateCategoryProgress(categoryID string, update domain.CategoryProgressUpdate)
	CompleteStep(step domain.Step)
}

const DefaultAutosaveDelay = 1500 * time.Millisecond

var laneOrder = []domain.Lane{domain.LaneShared, domain.LanePrivate}

type laneDraft struct {
	text  string
	dirty bool
	timer *time.Timer
	// serializes saves so a lane never inserts twice
	save sync.Mutex
}

// Composer edits the shared and private notes of one category and saves
// them after the text has been idle for the autosave delay.
type Composer struct {
	ctx        context.Context
	engine     ComposerEngine
	categoryID string
	delay      time.Duration
	clock      clock.Clock
	openedAt   time.Time

	mu     sync.Mutex
	lanes  map[domain.Lane]*laneDraft
	closed bool
}

func NewComposer(ctx context.Context, engine ComposerEngine, categoryID string, delay time.Duration, clk clock.Clock) *Composer {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Composer{
		ctx:        ctx,
		engine:     engine,
		categoryID: categoryID,
		delay:      delay,
		clock:      clk,
		openedAt:   clk.Now(),
		lanes:      map[domain.Lane]*laneDraft{},
	}
}

func (c *Composer) CategoryID() string {
	return c.categoryID
}

func (c *Composer) lane(lane domain.Lane) *laneDraft {
	d, ok := c.lanes[lane]
	if !ok {
		d = &laneDraft{}
		c.lanes[lane] = d
	}
	return d
}

// Text is the unsaved edit for lane, or the latest stored note when there
// is none.
func (c *Composer) Text(lane domain.Lane) string {
	c.mu.Lock()
	if d, ok := c.lanes[lane]; ok && d.dirty {
		text := d.text
		c.mu.Unlock()
		return text
	}
	c.mu.Unlock()
	if note, ok := c.engine.Snapshot().Session.LatestNote(c.categoryID, lane); ok {
		return note.Content
	}
	return ""
}

// SetText replaces the lane text and restarts its autosave timer.
func (c *Composer) SetText(lane domain.Lane, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	d := c.lane(lane)
	d.text = text
	d.dirty = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(c.delay, func() { c.saveLane(lane) })
}

// Pending reports whether lane has text not yet stored.
func (c *Composer) Pending(lane domain.Lane) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.lanes[lane]
	return ok && d.dirty
}

func (c *Composer) saveLane(lane domain.Lane) {
	c.mu.Lock()
	d := c.lane(lane)
	c.mu.Unlock()

	d.save.Lock()
	defer d.save.Unlock()

	c.mu.Lock()
	text, dirty := d.text, d.dirty
	c.mu.Unlock()
	if !dirty || strings.TrimSpace(text) == "" {
		return
	}
	if !c.persist(lane, text) {
		return
	}
	c.mu.Lock()
	if d.text == text {
		d.dirty = false
	}
	c.mu.Unlock()
}

// persist updates the latest note in the lane or creates the first one.
func (c *Composer) persist(lane domain.Lane, text string) bool {
	existing, ok := c.engine.Snapshot().Session.LatestNote(c.categoryID, lane)
	if ok {
		if existing.Content == text {
			return true
		}
		return c.engine.UpdateDraftNote(c.ctx, existing.ID, domain.DraftNoteUpdate{Content: &text})
	}
	_, added := c.engine.AddDraftNote(c.ctx, NoteDraft{
		CategoryID: c.categoryID,
		Content:    text,
		Privacy:    privacyFor(lane),
	})
	return added
}

func privacyFor(lane domain.Lane) domain.Privacy {
	if lane == domain.LaneShared {
		return domain.PrivacyShared
	}
	return domain.PrivacyPrivate
}

// Flush saves every pending lane now.
func (c *Composer) Flush() {
	c.mu.Lock()
	for _, d := range c.lanes {
		if d.timer != nil {
			d.timer.Stop()
			d.timer = nil
		}
	}
	c.mu.Unlock()
	for _, lane := range laneOrder {
		c.saveLane(lane)
	}
}

// Complete flushes pending text before marking the category and the
// discussion step complete.
func (c *Composer) Complete() {
	elapsed := int(c.clock.Now().Sub(c.openedAt).Seconds())
	c.Flush()
	completed := true
	c.engine.UpdateCategoryProgress(c.categoryID, domain.CategoryProgressUpdate{
		IsCompleted: &completed,
		TimeSpent:   &elapsed,
	})
	c.engine.CompleteStep(domain.StepCategoryDiscussion)
}

// Close saves pending text and stops accepting edits.
func (c *Composer) Close() {
	c.Flush()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
