package out

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"qc/internal/modules/checkin/domain"
	"qc/internal/platform/markdown"
	"qc/internal/platform/slug"
)

const summarySchemaVersion = 1

type summaryHeader struct {
	SchemaVersion  int      `yaml:"schema_version"`
	ID             string   `yaml:"id"`
	CoupleID       string   `yaml:"couple_id"`
	Status         string   `yaml:"status"`
	StartedAt      string   `yaml:"started_at"`
	EndedAt        string   `yaml:"ended_at"`
	DurationMin    int      `yaml:"duration_minutes"`
	Percentage     int      `yaml:"percentage"`
	Categories     []string `yaml:"categories"`
	CompletedSteps []string `yaml:"completed_steps"`
}

// VaultSummaryStore writes one markdown file per finished check-in under
// <dir>/<year>/<month>/.
type VaultSummaryStore struct {
	dir string
}

func NewVaultSummaryStore(dir string) *VaultSummaryStore {
	return &VaultSummaryStore{dir: dir}
}

func (s *VaultSummaryStore) Save(_ context.Context, summary domain.Summary) (string, error) {
	started := summary.StartedAt.UTC()
	dir := filepath.Join(s.dir, started.Format("2006"), started.Format("01"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create summary dir: %w", err)
	}
	categories := make([]string, 0, len(summary.Categories))
	for _, cp := range summary.Categories {
		categories = append(categories, cp.CategoryID)
	}
	name := fmt.Sprintf("%s-%s.md", started.Format("20060102-150405"), slug.Join(categories...))
	path := filepath.Join(dir, name)

	header := summaryHeader{
		SchemaVersion: summarySchemaVersion,
		ID:            summary.CheckInID,
		CoupleID:      summary.CoupleID,
		Status:        string(summary.Status),
		StartedAt:     started.Format(time.RFC3339),
		EndedAt:       summary.EndedAt.UTC().Format(time.RFC3339),
		DurationMin:   int(summary.Duration().Minutes()),
		Percentage:    summary.Percentage,
		Categories:    categories,
	}
	for _, step := range summary.Completed {
		header.CompletedSteps = append(header.CompletedSteps, string(step))
	}
	rendered, err := markdown.Render(header, renderSummaryBody(summary, header.DurationMin))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

func renderSummaryBody(summary domain.Summary, durationMin int) string {
	var doc markdown.Document
	doc.Heading(1, summary.Title())
	doc.Bullet("Status: %s", summary.Status)
	doc.Bullet("Duration: %d minutes", durationMin)
	doc.Bullet("Progress: %d%%", summary.Percentage)

	doc.Heading(2, "Categories")
	for _, cp := range summary.Categories {
		doc.Heading(3, slug.Humanize(cp.CategoryID))
		state := "open"
		if cp.IsCompleted {
			state = "discussed"
		}
		doc.Bullet("%s, %d minutes", state, cp.TimeSpent/60)
		for _, note := range summary.NotesFor(cp.CategoryID) {
			doc.Paragraph(note.Content)
		}
	}

	if len(summary.ActionItems) > 0 {
		doc.Heading(2, "Action items")
		for _, item := range summary.ActionItems {
			text := item.Title
			if item.AssignedTo != "" {
				text += " (" + item.AssignedTo + ")"
			}
			if item.DueDate != nil {
				text += ", due " + item.DueDate.Format("2006-01-02")
			}
			doc.Task(item.Completed, text)
		}
	}
	return doc.String()
}

func (s *VaultSummaryStore) List(_ context.Context) ([]domain.SummaryRecord, error) {
	records := []domain.SummaryRecord{}
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == s.dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		record, err := readSummaryRecord(path)
		if err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

func readSummaryRecord(path string) (domain.SummaryRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.SummaryRecord{}, fmt.Errorf("read summary %s: %w", path, err)
	}
	var header summaryHeader
	if _, err := markdown.Decode(string(content), &header); err != nil {
		return domain.SummaryRecord{}, fmt.Errorf("decode summary %s: %w", path, err)
	}
	started, err := time.Parse(time.RFC3339, header.StartedAt)
	if err != nil {
		return domain.SummaryRecord{}, fmt.Errorf("summary %s started_at: %w", path, err)
	}
	return domain.SummaryRecord{
		CheckInID:   header.ID,
		Path:        path,
		Status:      domain.CheckInStatus(header.Status),
		StartedAt:   started,
		DurationMin: header.DurationMin,
		Percentage:  header.Percentage,
		Categories:  header.Categories,
	}, nil
}
