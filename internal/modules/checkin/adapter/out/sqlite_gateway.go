package out

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"qc/internal/modules/checkin/domain"
	checkinout "qc/internal/modules/checkin/port/out"
	"qc/internal/platform/clock"
	apperrors "qc/internal/platform/errors"
	"qc/internal/platform/id"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// SQLiteGateway stores check-ins, notes and action items in one SQLite
// file. Every successful write is announced on the publisher, when set.
type SQLiteGateway struct {
	db        *sql.DB
	ids       id.Generator
	clock     clock.Clock
	publisher checkinout.ChangePublisher
	logger    *slog.Logger
}

func NewSQLiteGateway(dbPath string, ids id.Generator, clk clock.Clock, publisher checkinout.ChangePublisher, logger *slog.Logger) (*SQLiteGateway, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single connection serializes writers
	db.SetMaxOpenConns(1)
	if logger == nil {
		logger = slog.Default()
	}
	gateway := &SQLiteGateway{db: db, ids: ids, clock: clk, publisher: publisher, logger: logger}
	if err := gateway.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return gateway, nil
}

func (g *SQLiteGateway) Close() error {
	return g.db.Close()
}

func (g *SQLiteGateway) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS check_ins (
  id TEXT PRIMARY KEY,
  couple_id TEXT NOT NULL,
  status TEXT NOT NULL,
  categories TEXT NOT NULL,
  mood_before INTEGER,
  mood_after INTEGER,
  reflection TEXT NOT NULL DEFAULT '',
  started_at TEXT NOT NULL,
  completed_at TEXT
);
CREATE INDEX IF NOT EXISTS check_ins_couple_status ON check_ins (couple_id, status);

CREATE TABLE IF NOT EXISTS notes (
  id TEXT PRIMARY KEY,
  couple_id TEXT NOT NULL,
  author_id TEXT NOT NULL,
  check_in_id TEXT,
  content TEXT NOT NULL,
  privacy TEXT NOT NULL,
  tags TEXT NOT NULL,
  category_id TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS action_items (
  id TEXT PRIMARY KEY,
  couple_id TEXT NOT NULL,
  check_in_id TEXT,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  assigned_to TEXT NOT NULL DEFAULT '',
  due_date TEXT,
  completed INTEGER NOT NULL DEFAULT 0,
  completed_at TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS action_items_check_in ON action_items (couple_id, check_in_id);
`
	if _, err := g.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create check-in schema: %w", err)
	}
	return nil
}

func (g *SQLiteGateway) publish(ctx context.Context, event checkinout.RowEvent) {
	if g.publisher == nil {
		return
	}
	event.OccurredAt = g.clock.Now()
	if err := g.publisher.Publish(ctx, event); err != nil {
		g.logger.Warn("publish change failed", "table", event.Table, "kind", event.Kind, "row_id", event.RowID, "error", err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

const checkInColumns = `id, couple_id, status, categories, mood_before, mood_after, reflection, started_at, completed_at`

func scanCheckIn(row rowScanner) (domain.CheckIn, error) {
	var (
		record      domain.CheckIn
		status      string
		categories  string
		moodBefore  sql.NullInt64
		moodAfter   sql.NullInt64
		startedAt   string
		completedAt sql.NullString
	)
	if err := row.Scan(&record.ID, &record.CoupleID, &status, &categories, &moodBefore, &moodAfter, &record.Reflection, &startedAt, &completedAt); err != nil {
		return domain.CheckIn{}, err
	}
	parsed, err := domain.ParseStatus(status)
	if err != nil {
		return domain.CheckIn{}, err
	}
	record.Status = parsed
	if err := json.Unmarshal([]byte(categories), &record.Categories); err != nil {
		return domain.CheckIn{}, fmt.Errorf("decode categories: %w", err)
	}
	record.MoodBefore = nullableInt(moodBefore)
	record.MoodAfter = nullableInt(moodAfter)
	if record.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return domain.CheckIn{}, fmt.Errorf("parse started_at: %w", err)
	}
	if record.CompletedAt, err = nullableTime(completedAt); err != nil {
		return domain.CheckIn{}, fmt.Errorf("parse completed_at: %w", err)
	}
	return record, nil
}

func (g *SQLiteGateway) FetchActiveCheckIn(ctx context.Context, coupleID string) (*domain.CheckIn, error) {
	row := g.db.QueryRowContext(ctx,
		`SELECT `+checkInColumns+` FROM check_ins WHERE couple_id = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		coupleID, string(domain.StatusInProgress))
	record, err := scanCheckIn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch active check-in: %w", err)
	}
	return &record, nil
}

func (g *SQLiteGateway) fetchCheckIn(ctx context.Context, checkInID string) (domain.CheckIn, error) {
	row := g.db.QueryRowContext(ctx, `SELECT `+checkInColumns+` FROM check_ins WHERE id = ?`, checkInID)
	record, err := scanCheckIn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CheckIn{}, fmt.Errorf("check-in %s: %w", checkInID, apperrors.ErrNotFound)
	}
	if err != nil {
		return domain.CheckIn{}, fmt.Errorf("fetch check-in: %w", err)
	}
	return record, nil
}

// InsertCheckIn assigns a fresh id; the caller's local id is only logged.
func (g *SQLiteGateway) InsertCheckIn(ctx context.Context, input checkinout.CheckInInsert) (string, error) {
	categories, err := json.Marshal(nonNil(input.Categories))
	if err != nil {
		return "", fmt.Errorf("encode categories: %w", err)
	}
	record := domain.CheckIn{
		ID:         g.ids.New(),
		CoupleID:   input.CoupleID,
		Status:     domain.StatusInProgress,
		Categories: nonNil(input.Categories),
		StartedAt:  input.StartedAt.UTC(),
	}
	_, err = g.db.ExecContext(ctx,
		`INSERT INTO check_ins (id, couple_id, status, categories, started_at) VALUES (?, ?, ?, ?, ?)`,
		record.ID, record.CoupleID, string(record.Status), string(categories), record.StartedAt.Format(timeLayout))
	if err != nil {
		return "", fmt.Errorf("insert check-in: %w", err)
	}
	g.logger.Debug("check-in inserted", "check_in_id", record.ID, "local_id", input.LocalID)
	g.publish(ctx, checkinout.RowEvent{
		Table:    checkinout.TableCheckIns,
		Kind:     checkinout.ChangeInsert,
		CoupleID: record.CoupleID,
		RowID:    record.ID,
		CheckIn:  &record,
	})
	return record.ID, nil
}

func (g *SQLiteGateway) UpdateCheckInStatus(ctx context.Context, checkInID string, status domain.CheckInStatus) error {
	var completedAt any
	if status != domain.StatusInProgress {
		completedAt = g.clock.Now().UTC().Format(timeLayout)
	}
	result, err := g.db.ExecContext(ctx,
		`UPDATE check_ins SET status = ?, completed_at = ? WHERE id = ?`,
		string(status), completedAt, checkInID)
	if err != nil {
		return fmt.Errorf("update check-in status: %w", err)
	}
	if err := requireAffected(result, "check-in", checkInID); err != nil {
		return err
	}
	record, err := g.fetchCheckIn(ctx, checkInID)
	if err != nil {
		return err
	}
	g.publish(ctx, checkinout.RowEvent{
		Table:    checkinout.TableCheckIns,
		Kind:     checkinout.ChangeUpdate,
		CoupleID: record.CoupleID,
		RowID:    record.ID,
		CheckIn:  &record,
	})
	return nil
}

const noteColumns = `id, couple_id, author_id, check_in_id, content, privacy, tags, category_id, created_at, updated_at`

func scanNote(row rowScanner) (domain.DraftNote, error) {
	var (
		note       domain.DraftNote
		checkInID  sql.NullString
		privacy    string
		tags       string
		categoryID sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&note.ID, &note.CoupleID, &note.AuthorID, &checkInID, &note.Content, &privacy, &tags, &categoryID, &createdAt, &updatedAt); err != nil {
		return domain.DraftNote{}, err
	}
	parsed, err := domain.ParsePrivacy(privacy)
	if err != nil {
		return domain.DraftNote{}, err
	}
	note.Privacy = parsed
	note.CheckInID = checkInID.String
	note.CategoryID = categoryID.String
	if err := json.Unmarshal([]byte(tags), &note.Tags); err != nil {
		return domain.DraftNote{}, fmt.Errorf("decode tags: %w", err)
	}
	if note.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return domain.DraftNote{}, fmt.Errorf("parse created_at: %w", err)
	}
	if note.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return domain.DraftNote{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return note, nil
}

func (g *SQLiteGateway) fetchNote(ctx context.Context, noteID string) (domain.DraftNote, error) {
	note, err := scanNote(g.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, noteID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DraftNote{}, fmt.Errorf("note %s: %w", noteID, apperrors.ErrNotFound)
	}
	if err != nil {
		return domain.DraftNote{}, fmt.Errorf("fetch note: %w", err)
	}
	return note, nil
}

func (g *SQLiteGateway) writeNote(ctx context.Context, note domain.DraftNote) error {
	tags, err := json.Marshal(nonNil(note.Tags))
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	const stmt = `
INSERT INTO notes (id, couple_id, author_id, check_in_id, content, privacy, tags, category_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  content=excluded.content,
  privacy=excluded.privacy,
  tags=excluded.tags,
  category_id=excluded.category_id,
  updated_at=excluded.updated_at;
`
	_, err = g.db.ExecContext(ctx, stmt,
		note.ID,
		note.CoupleID,
		note.AuthorID,
		nullableString(note.CheckInID),
		note.Content,
		string(note.Privacy),
		string(tags),
		nullableString(note.CategoryID),
		note.CreatedAt.Format(timeLayout),
		note.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("write note: %w", err)
	}
	return nil
}

func (g *SQLiteGateway) InsertNote(ctx context.Context, input checkinout.NoteInsert) (domain.DraftNote, error) {
	now := g.clock.Now().UTC()
	note := domain.DraftNote{
		ID:         g.ids.New(),
		CoupleID:   input.CoupleID,
		AuthorID:   input.AuthorID,
		CheckInID:  input.CheckInID,
		Content:    input.Content,
		Privacy:    input.Privacy,
		Tags:       nonNil(input.Tags),
		CategoryID: input.CategoryID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := g.writeNote(ctx, note); err != nil {
		return domain.DraftNote{}, err
	}
	g.publish(ctx, checkinout.RowEvent{Table: checkinout.TableNotes, Kind: checkinout.ChangeInsert, CoupleID: note.CoupleID, RowID: note.ID, Note: &note})
	return note, nil
}

func (g *SQLiteGateway) UpdateNote(ctx context.Context, noteID string, update domain.DraftNoteUpdate) error {
	note, err := g.fetchNote(ctx, noteID)
	if err != nil {
		return err
	}
	note = update.Apply(note, g.clock.Now().UTC())
	if err := g.writeNote(ctx, note); err != nil {
		return err
	}
	g.publish(ctx, checkinout.RowEvent{Table: checkinout.TableNotes, Kind: checkinout.ChangeUpdate, CoupleID: note.CoupleID, RowID: note.ID, Note: &note})
	return nil
}

func (g *SQLiteGateway) DeleteNote(ctx context.Context, noteID string) error {
	note, err := g.fetchNote(ctx, noteID)
	if err != nil {
		return err
	}
	if _, err := g.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, noteID); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	g.publish(ctx, checkinout.RowEvent{Table: checkinout.TableNotes, Kind: checkinout.ChangeDelete, CoupleID: note.CoupleID, RowID: noteID})
	return nil
}

const actionItemColumns = `id, couple_id, check_in_id, title, description, assigned_to, due_date, completed, completed_at, created_at, updated_at`

func scanActionItem(row rowScanner) (domain.ActionItem, error) {
	var (
		item        domain.ActionItem
		checkInID   sql.NullString
		dueDate     sql.NullString
		completedAt sql.NullString
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&item.ID, &item.CoupleID, &checkInID, &item.Title, &item.Description, &item.AssignedTo, &dueDate, &item.Completed, &completedAt, &createdAt, &updatedAt); err != nil {
		return domain.ActionItem{}, err
	}
	item.CheckInID = checkInID.String
	var err error
	if item.DueDate, err = nullableTime(dueDate); err != nil {
		return domain.ActionItem{}, fmt.Errorf("parse due_date: %w", err)
	}
	if item.CompletedAt, err = nullableTime(completedAt); err != nil {
		return domain.ActionItem{}, fmt.Errorf("parse completed_at: %w", err)
	}
	if item.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return domain.ActionItem{}, fmt.Errorf("parse created_at: %w", err)
	}
	if item.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return domain.ActionItem{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return item, nil
}

func (g *SQLiteGateway) fetchActionItem(ctx context.Context, itemID string) (domain.ActionItem, error) {
	item, err := scanActionItem(g.db.QueryRowContext(ctx, `SELECT `+actionItemColumns+` FROM action_items WHERE id = ?`, itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ActionItem{}, fmt.Errorf("action item %s: %w", itemID, apperrors.ErrNotFound)
	}
	if err != nil {
		return domain.ActionItem{}, fmt.Errorf("fetch action item: %w", err)
	}
	return item, nil
}

func (g *SQLiteGateway) writeActionItem(ctx context.Context, item domain.ActionItem) error {
	const stmt = `
INSERT INTO action_items (id, couple_id, check_in_id, title, description, assigned_to, due_date, completed, completed_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  title=excluded.title,
  description=excluded.description,
  assigned_to=excluded.assigned_to,
  due_date=excluded.due_date,
  completed=excluded.completed,
  completed_at=excluded.completed_at,
  updated_at=excluded.updated_at;
`
	_, err := g.db.ExecContext(ctx, stmt,
		item.ID,
		item.CoupleID,
		nullableString(item.CheckInID),
		item.Title,
		item.Description,
		item.AssignedTo,
		formatNullable(item.DueDate),
		item.Completed,
		formatNullable(item.CompletedAt),
		item.CreatedAt.Format(timeLayout),
		item.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("write action item: %w", err)
	}
	return nil
}

func (g *SQLiteGateway) InsertActionItem(ctx context.Context, input checkinout.ActionItemInsert) (domain.ActionItem, error) {
	now := g.clock.Now().UTC()
	item := domain.ActionItem{
		ID:          g.ids.New(),
		CoupleID:    input.CoupleID,
		CheckInID:   input.CheckInID,
		Title:       input.Title,
		Description: input.Description,
		AssignedTo:  input.AssignedTo,
		DueDate:     input.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := g.writeActionItem(ctx, item); err != nil {
		return domain.ActionItem{}, err
	}
	g.publishItem(ctx, checkinout.ChangeInsert, item)
	return item, nil
}

func (g *SQLiteGateway) UpdateActionItem(ctx context.Context, itemID string, update domain.ActionItemUpdate) error {
	item, err := g.fetchActionItem(ctx, itemID)
	if err != nil {
		return err
	}
	item = update.Apply(item, g.clock.Now().UTC())
	if err := g.writeActionItem(ctx, item); err != nil {
		return err
	}
	g.publishItem(ctx, checkinout.ChangeUpdate, item)
	return nil
}

// ToggleActionItem stores the opposite of currentCompleted.
func (g *SQLiteGateway) ToggleActionItem(ctx context.Context, itemID string, currentCompleted bool) error {
	item, err := g.fetchActionItem(ctx, itemID)
	if err != nil {
		return err
	}
	item.Completed = currentCompleted
	item = item.Toggled(g.clock.Now().UTC())
	if err := g.writeActionItem(ctx, item); err != nil {
		return err
	}
	g.publishItem(ctx, checkinout.ChangeUpdate, item)
	return nil
}

func (g *SQLiteGateway) DeleteActionItem(ctx context.Context, itemID string) error {
	item, err := g.fetchActionItem(ctx, itemID)
	if err != nil {
		return err
	}
	if _, err := g.db.ExecContext(ctx, `DELETE FROM action_items WHERE id = ?`, itemID); err != nil {
		return fmt.Errorf("delete action item: %w", err)
	}
	g.publish(ctx, checkinout.RowEvent{Table: checkinout.TableActionItems, Kind: checkinout.ChangeDelete, CoupleID: item.CoupleID, RowID: itemID})
	return nil
}

func (g *SQLiteGateway) publishItem(ctx context.Context, kind checkinout.ChangeKind, item domain.ActionItem) {
	g.publish(ctx, checkinout.RowEvent{
		Table:      checkinout.TableActionItems,
		Kind:       kind,
		CoupleID:   item.CoupleID,
		RowID:      item.ID,
		ActionItem: &item,
	})
}

func (g *SQLiteGateway) FetchCheckInActionItems(ctx context.Context, checkInID, coupleID string) ([]domain.ActionItem, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT `+actionItemColumns+` FROM action_items WHERE couple_id = ? AND check_in_id = ? ORDER BY created_at, id`,
		coupleID, checkInID)
	if err != nil {
		return nil, fmt.Errorf("query action items: %w", err)
	}
	defer rows.Close()
	out := []domain.ActionItem{}
	for rows.Next() {
		item, err := scanActionItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action items: %w", err)
	}
	return out, nil
}

func requireAffected(result sql.Result, kind, rowID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", kind, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", kind, rowID, apperrors.ErrNotFound)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

func nullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	parsed, err := time.Parse(timeLayout, value.String)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func formatNullable(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeLayout)
}
