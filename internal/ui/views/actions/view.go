package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	checkindto "qc/internal/modules/checkin/dto"
	"qc/internal/ui/theme"
)

type ActionItemPort interface {
	AddActionItem(ctx context.Context, title, description, assignee, due string) (checkindto.ActionItemOutput, error)
	ToggleActionItem(ctx context.Context, itemID string) error
}

// ResultMsg reports the outcome of an add or toggle.
type ResultMsg struct {
	Status string
	Err    error
}

type actionItem struct {
	item checkindto.ActionItemOutput
}

func (i actionItem) Title() string {
	mark := "[ ]"
	if i.item.Completed {
		mark = "[x]"
	}
	return mark + " " + i.item.Title
}

func (i actionItem) Description() string {
	var parts []string
	if i.item.AssignedTo != "" {
		parts = append(parts, "for "+i.item.AssignedTo)
	}
	if i.item.DueDate != nil {
		parts = append(parts, "due "+i.item.DueDate.Format("2006-01-02"))
	}
	if len(parts) == 0 {
		return "unassigned"
	}
	return strings.Join(parts, ", ")
}

func (i actionItem) FilterValue() string { return i.item.Title }

type Model struct {
	port   ActionItemPort
	list   list.Model
	input  textinput.Model
	adding bool
	width  int
	height int
}

func New(port ActionItemPort) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Action items"
	l.Styles.Title = theme.Title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	ti := textinput.New()
	ti.Placeholder = "title | assignee | YYYY-MM-DD"
	ti.CharLimit = 200

	return Model{port: port, list: l, input: ti}
}

// SetItems replaces the list with the engine's current items.
func (m *Model) SetItems(items []checkindto.ActionItemOutput) tea.Cmd {
	listed := make([]list.Item, len(items))
	for i, item := range items {
		listed[i] = actionItem{item: item}
	}
	return m.list.SetItems(listed)
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-3, 1))
	m.input.Width = max(width-4, 10)
}

// Editing reports whether the add form holds the keyboard.
func (m Model) Editing() bool { return m.adding }

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, isKey := msg.(tea.KeyMsg)
	if m.adding {
		if isKey {
			switch key.String() {
			case "esc":
				m.adding = false
				m.input.Blur()
				return m, nil
			case "enter":
				raw := m.input.Value()
				m.adding = false
				m.input.Blur()
				m.input.SetValue("")
				return m, m.addCmd(raw)
			}
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if isKey {
		switch key.String() {
		case "a":
			m.adding = true
			cmd := m.input.Focus()
			return m, cmd
		case " ", "x":
			if selected, ok := m.list.SelectedItem().(actionItem); ok {
				return m, m.toggleCmd(selected.item.ID)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	footer := theme.Muted.Render("a: add  space: toggle  enter: continue")
	if m.adding {
		footer = "+ " + m.input.View()
	}
	body := m.list.View()
	if len(m.list.Items()) == 0 {
		body = theme.Title.Render("Action items") + "\n\n" + theme.Muted.Render("Nothing agreed yet")
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

// parseForm splits "title | assignee | due" into its fields.
func parseForm(raw string) (title, assignee, due string) {
	parts := strings.Split(raw, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	title = parts[0]
	if len(parts) > 1 {
		assignee = parts[1]
	}
	if len(parts) > 2 {
		due = parts[2]
	}
	return title, assignee, due
}

func (m Model) addCmd(raw string) tea.Cmd {
	title, assignee, due := parseForm(raw)
	if title == "" {
		return nil
	}
	return func() tea.Msg {
		item, err := m.port.AddActionItem(context.Background(), title, "", assignee, due)
		if err != nil {
			return ResultMsg{Err: err}
		}
		return ResultMsg{Status: fmt.Sprintf("added %q", item.Title)}
	}
}

func (m Model) toggleCmd(itemID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.port.ToggleActionItem(context.Background(), itemID); err != nil {
			return ResultMsg{Err: err}
		}
		return ResultMsg{Status: "toggled"}
	}
}
