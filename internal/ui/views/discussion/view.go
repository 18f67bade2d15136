package discussion

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"qc/internal/platform/slug"
	"qc/internal/ui/theme"
)

const (
	laneShared  = "shared"
	lanePrivate = "private"
)

// Composer is the per-category draft editor the view writes through.
type Composer interface {
	CategoryID() string
	Text(lane string) string
	SetText(lane, text string)
	Pending(lane string) bool
	Complete()
	Close()
}

// DiscussedMsg is emitted once a category has been flushed and marked done.
type DiscussedMsg struct {
	CategoryID string
}

type Model struct {
	composer Composer
	shared   textarea.Model
	private  textarea.Model
	focus    string
	width    int
	height   int
}

func newArea(placeholder string) textarea.Model {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = false
	ta.CharLimit = 4000
	return ta
}

// New opens the editor on a composer. A nil composer renders an empty view.
func New(composer Composer) Model {
	m := Model{
		composer: composer,
		shared:   newArea("What you want to say together…"),
		private:  newArea("Only you will see this…"),
		focus:    laneShared,
	}
	if composer != nil {
		m.shared.SetValue(composer.Text(laneShared))
		m.private.SetValue(composer.Text(lanePrivate))
	}
	m.shared.Focus()
	return m
}

func (m Model) CategoryID() string {
	if m.composer == nil {
		return ""
	}
	return m.composer.CategoryID()
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	half := max((width-6)/2, 10)
	m.shared.SetWidth(half)
	m.private.SetWidth(half)
	m.shared.SetHeight(max(height-6, 3))
	m.private.SetHeight(max(height-6, 3))
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.composer == nil {
		return m, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab":
			m.switchLane()
			return m, nil
		case "ctrl+d":
			return m, m.completeCmd()
		}
	}

	var cmd tea.Cmd
	if m.focus == laneShared {
		before := m.shared.Value()
		m.shared, cmd = m.shared.Update(msg)
		if after := m.shared.Value(); after != before {
			m.composer.SetText(laneShared, after)
		}
	} else {
		before := m.private.Value()
		m.private, cmd = m.private.Update(msg)
		if after := m.private.Value(); after != before {
			m.composer.SetText(lanePrivate, after)
		}
	}
	return m, cmd
}

// Close flushes pending edits. It blocks on the backend write.
func (m Model) Close() {
	if m.composer != nil {
		m.composer.Close()
	}
}

func (m *Model) switchLane() {
	if m.focus == laneShared {
		m.focus = lanePrivate
		m.shared.Blur()
		m.private.Focus()
		return
	}
	m.focus = laneShared
	m.private.Blur()
	m.shared.Focus()
}

func (m Model) completeCmd() tea.Cmd {
	composer := m.composer
	return func() tea.Msg {
		composer.Complete()
		return DiscussedMsg{CategoryID: composer.CategoryID()}
	}
}

func (m Model) View() string {
	if m.composer == nil {
		return theme.Muted.Render("No category left to discuss")
	}
	title := theme.Title.Render(slug.Humanize(m.composer.CategoryID()))
	left := m.renderLane("Shared", laneShared, m.shared)
	right := m.renderLane("Private", lanePrivate, m.private)
	panes := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	hint := theme.Muted.Render("tab: switch lane  ctrl+d: mark discussed")
	return strings.Join([]string{title, panes, hint}, "\n")
}

func (m Model) renderLane(label, lane string, area textarea.Model) string {
	style := theme.Pane
	if m.focus == lane {
		style = theme.PaneActive
	}
	header := theme.LaneStyle(lane).Render(label)
	if m.composer.Pending(lane) {
		header += theme.Muted.Render(" (saving…)")
	}
	return style.Render(fmt.Sprintf("%s\n%s", header, area.View()))
}
