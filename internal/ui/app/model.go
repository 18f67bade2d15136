package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	checkindto "qc/internal/modules/checkin/dto"
	checkinin "qc/internal/modules/checkin/port/in"
	apperrors "qc/internal/platform/errors"
	"qc/internal/platform/slug"
	"qc/internal/ui/components"
	"qc/internal/ui/theme"
	actionsview "qc/internal/ui/views/actions"
	discussionview "qc/internal/ui/views/discussion"
)

// ─── port ────────────────────────────────────────────────────────────────────

type checkinPort interface {
	actionsview.ActionItemPort
	Status(ctx context.Context) (checkindto.SessionOutput, error)
	Start(ctx context.Context, categories []string) (checkindto.SessionOutput, error)
	GoToStep(ctx context.Context, step string) (checkindto.SessionOutput, error)
	CompleteStep(ctx context.Context, step string) (checkindto.SessionOutput, error)
	Complete(ctx context.Context) (checkindto.CompleteOutput, error)
	Abandon(ctx context.Context) (checkindto.AbandonOutput, error)
	ListActionItems(ctx context.Context) ([]checkindto.ActionItemOutput, error)
	OpenComposer(ctx context.Context, categoryID string) (checkinin.Composer, error)
	Watch(fn func(checkindto.StateOutput)) func()
}

// ─── wizard copy ─────────────────────────────────────────────────────────────

var wizardSteps = []string{
	"welcome",
	"category-selection",
	"warm-up",
	"category-discussion",
	"reflection",
	"action-items",
	"completion",
}

var stepPrompts = map[string]string{
	"welcome":            "Find a quiet spot together. This check-in is a chance to listen, not to win.",
	"category-selection": "These are the topics you picked for today.",
	"warm-up":            "Each of you share one thing you appreciated about the other this week.",
	"reflection":         "What stood out? Is there anything you want to say before moving on?",
	"completion":         "You are done. Press enter to save the check-in and write its summary.",
}

// ─── async messages ──────────────────────────────────────────────────────────

type stateMsg checkindto.StateOutput

type statusLoadedMsg struct {
	session checkindto.SessionOutput
	items   []checkindto.ActionItemOutput
	err     error
}

type sessionMsg struct {
	verb    string
	session checkindto.SessionOutput
	err     error
}

type composerOpenedMsg struct {
	composer checkinin.Composer
	err      error
}

type completedMsg struct {
	out checkindto.CompleteOutput
	err error
}

type abandonedMsg struct {
	out checkindto.AbandonOutput
	err error
}

// ─── key bindings ────────────────────────────────────────────────────────────

type keyMap struct {
	Next    key.Binding
	Help    key.Binding
	Palette key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Next:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "next step")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette: key.NewBinding(key.WithKeys(":", "ctrl+p"), key.WithHelp("ctrl+p", "palette")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Help, k.Palette, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Palette}, {k.Help, k.Quit}}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model walks one couple through the check-in wizard. Engine state arrives
// through Watch and is never mutated here.
type Model struct {
	port        checkinPort
	updates     chan checkindto.StateOutput
	cancelWatch func()

	state       checkindto.StateOutput
	categories  textinput.Model
	discussion  discussionview.Model
	actionsView actionsview.Model

	keys     keyMap
	help     help.Model
	showHelp bool
	palette  components.Palette
	status   string
	summary  string
	width    int
	height   int
}

func NewModel(port checkinPort) Model {
	ti := textinput.New()
	ti.Placeholder = "communication, finances, intimacy"
	ti.CharLimit = 256
	ti.Focus()

	updates := make(chan checkindto.StateOutput, 1)
	cancel := port.Watch(func(state checkindto.StateOutput) {
		// keep only the newest state when the UI lags behind
		select {
		case updates <- state:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- state:
			default:
			}
		}
	})

	return Model{
		port:        port,
		updates:     updates,
		cancelWatch: cancel,
		categories:  ti,
		discussion:  discussionview.New(nil),
		actionsView: actionsview.New(port),
		keys:        defaultKeys(),
		help:        help.New(),
		palette:     components.NewPalette(),
		status:      "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForState(), m.loadStatusCmd())
}

// Close stops watching and flushes any open draft.
func (m Model) Close() {
	m.discussion.Close()
	if m.cancelWatch != nil {
		m.cancelWatch()
	}
}

// ─── update ──────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.palette.Visible() {
		var cmd tea.Cmd
		m.palette, cmd = m.palette.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.discussion.SetSize(m.width-4, m.bodyHeight())
		m.actionsView.SetSize(m.width-4, m.bodyHeight())
		return m, nil

	case stateMsg:
		cmds := []tea.Cmd{m.waitForState()}
		cmds = append(cmds, m.applyState(checkindto.StateOutput(msg))...)
		return m, tea.Batch(cmds...)

	case statusLoadedMsg:
		if msg.err != nil {
			if !errors.Is(msg.err, apperrors.ErrNoActiveSession) {
				m.status = "status: " + msg.err.Error()
			}
			return m, nil
		}
		state := checkindto.StateOutput{Active: true, Session: msg.session, ActionItems: msg.items}
		m.status = "check-in recovered"
		return m, tea.Batch(m.applyState(state)...)

	case sessionMsg:
		if msg.err != nil {
			m.status = msg.verb + ": " + msg.err.Error()
		} else {
			m.status = msg.verb
		}
		return m, nil

	case composerOpenedMsg:
		if msg.err != nil {
			m.status = "open notes: " + msg.err.Error()
			return m, nil
		}
		previous := m.discussion
		m.discussion = discussionview.New(msg.composer)
		m.discussion.SetSize(m.width-4, m.bodyHeight())
		return m, closeDiscussionCmd(previous)

	case discussionview.DiscussedMsg:
		m.status = slug.Humanize(msg.CategoryID) + " discussed"
		if next, ok := nextOpenCategory(&m.state.Session, msg.CategoryID); ok {
			return m, tea.Batch(m.gotoCmd("category-discussion"), m.openComposerCmd(next))
		}
		return m, nil

	case actionsview.ResultMsg:
		if msg.Err != nil {
			m.status = "action item: " + msg.Err.Error()
		} else {
			m.status = msg.Status
		}
		return m, nil

	case completedMsg:
		if msg.err != nil {
			m.status = "complete: " + msg.err.Error()
			return m, nil
		}
		m.summary = msg.out.SummaryPath
		m.status = fmt.Sprintf("check-in saved (%d min, %d%%)", msg.out.DurationMin, msg.out.Percentage)
		return m, nil

	case abandonedMsg:
		if msg.err != nil {
			m.status = "abandon: " + msg.err.Error()
		} else {
			m.status = "check-in abandoned"
		}
		return m, nil

	case components.PaletteSubmitMsg:
		return m.runPalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+p":
			cmd := m.openPalette()
			return m, cmd
		}
		if !m.state.Active {
			return m.updateStart(msg)
		}
		return m.updateStep(msg)
	}

	return m.forward(msg)
}

func (m Model) updateStart(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "enter":
		categories := splitCategories(m.categories.Value())
		if len(categories) == 0 {
			m.status = "name at least one category"
			return m, nil
		}
		m.summary = ""
		return m, m.startCmd(categories)
	}
	var cmd tea.Cmd
	m.categories, cmd = m.categories.Update(msg)
	return m, cmd
}

func (m Model) updateStep(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	step := m.state.Session.CurrentStep
	switch step {
	case "category-discussion":
		var cmd tea.Cmd
		m.discussion, cmd = m.discussion.Update(msg)
		return m, cmd
	case "action-items":
		if !m.actionsView.Editing() && msg.String() == "enter" {
			return m, m.completeStepCmd(step)
		}
		var cmd tea.Cmd
		m.actionsView, cmd = m.actionsView.Update(msg)
		return m, cmd
	case "completion":
		if msg.String() == "enter" {
			return m, m.completeCmd()
		}
	default:
		if msg.String() == "enter" {
			return m, m.completeStepCmd(step)
		}
	}
	switch msg.String() {
	case "?":
		m.showHelp = !m.showHelp
	case ":":
		cmd := m.openPalette()
		return m, cmd
	}
	return m, nil
}

// forward hands non-key messages such as cursor blinks to the live view.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case !m.state.Active:
		m.categories, cmd = m.categories.Update(msg)
	case m.state.Session.CurrentStep == "category-discussion":
		m.discussion, cmd = m.discussion.Update(msg)
	case m.state.Session.CurrentStep == "action-items":
		m.actionsView, cmd = m.actionsView.Update(msg)
	}
	return m, cmd
}

// applyState adopts an engine snapshot and opens the notes editor when the
// wizard enters the discussion step.
func (m *Model) applyState(state checkindto.StateOutput) []tea.Cmd {
	wasActive := m.state.Active
	m.state = state
	cmds := []tea.Cmd{m.actionsView.SetItems(state.ActionItems)}
	if state.Error != "" {
		m.status = state.Error
	}
	if !state.Active {
		if wasActive && m.summary == "" {
			m.status = "check-in ended"
		}
		previous := m.discussion
		m.discussion = discussionview.New(nil)
		return append(cmds, closeDiscussionCmd(previous))
	}
	if state.Session.CurrentStep == "category-discussion" && m.discussion.CategoryID() == "" {
		if next, ok := nextOpenCategory(&state.Session, ""); ok {
			cmds = append(cmds, m.openComposerCmd(next))
		}
	}
	return cmds
}

// openPalette refreshes argument completions from the current session.
func (m *Model) openPalette() tea.Cmd {
	m.palette.SetArguments("goto", wizardSteps)
	var categories []string
	for _, c := range m.state.Session.Categories {
		categories = append(categories, c.CategoryID)
	}
	m.palette.SetArguments("discuss", categories)
	return m.palette.Open()
}

func (m Model) runPalette(input string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return m, nil
	}
	if fields[0] == "quit" {
		return m, tea.Quit
	}
	if !m.state.Active {
		m.status = "no check-in in progress"
		return m, nil
	}
	switch fields[0] {
	case "goto":
		if len(fields) < 2 {
			m.status = "usage: goto <step>"
			return m, nil
		}
		return m, m.gotoCmd(fields[1])
	case "done":
		return m, m.completeStepCmd(m.state.Session.CurrentStep)
	case "complete":
		return m, m.completeCmd()
	case "abandon":
		return m, m.abandonCmd()
	case "discuss":
		if len(fields) < 2 {
			m.status = "usage: discuss <category>"
			return m, nil
		}
		return m, tea.Batch(m.gotoCmd("category-discussion"), m.openComposerCmd(fields[1]))
	default:
		m.status = "unknown command: " + fields[0]
		return m, nil
	}
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	header := m.renderSteps()
	status := m.renderStatusBar()
	var body string
	switch {
	case m.showHelp:
		body = m.help.FullHelpView(m.keys.FullHelp())
	case !m.state.Active:
		body = m.renderStart()
	default:
		body = m.renderStep()
	}
	if m.palette.Visible() {
		body = lipgloss.JoinVertical(lipgloss.Left, body, m.palette.View())
	}
	return theme.App.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", status))
}

func (m Model) renderSteps() string {
	if !m.state.Active {
		return theme.Title.Render("Quality check-in")
	}
	session := m.state.Session
	done := map[string]bool{}
	for _, step := range session.CompletedSteps {
		done[step] = true
	}
	parts := make([]string, 0, len(wizardSteps))
	for _, step := range wizardSteps {
		label := slug.Humanize(step)
		switch {
		case step == session.CurrentStep:
			parts = append(parts, theme.StepCurrent.Render(label))
		case done[step]:
			parts = append(parts, theme.StepDone.Render("✓ "+label))
		default:
			parts = append(parts, theme.StepAhead.Render(label))
		}
	}
	return strings.Join(parts, theme.Muted.Render(" › ")) + "  " + theme.Hot.Render(fmt.Sprintf("%d%%", session.Percentage))
}

func (m Model) renderStart() string {
	var sb strings.Builder
	if m.summary != "" {
		sb.WriteString(theme.StepDone.Render("Summary written to "+m.summary) + "\n\n")
	}
	sb.WriteString("What do you want to talk about today?\n\n")
	sb.WriteString(m.categories.View() + "\n\n")
	sb.WriteString(theme.Muted.Render("enter: start  esc: quit"))
	return sb.String()
}

func (m Model) renderStep() string {
	session := m.state.Session
	switch session.CurrentStep {
	case "category-discussion":
		return m.discussion.View()
	case "action-items":
		return m.actionsView.View()
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(slug.Humanize(session.CurrentStep)) + "\n\n")
	sb.WriteString(stepPrompts[session.CurrentStep] + "\n")
	if session.CurrentStep == "category-selection" || session.CurrentStep == "completion" {
		sb.WriteString("\n")
		for _, category := range session.Categories {
			mark := "•"
			if category.Completed {
				mark = theme.StepDone.Render("✓")
			}
			sb.WriteString(fmt.Sprintf("  %s %s\n", mark, slug.Humanize(category.CategoryID)))
		}
	}
	sb.WriteString("\n" + theme.Muted.Render("enter: continue  ctrl+p: palette  ?: help"))
	return sb.String()
}

func (m Model) renderStatusBar() string {
	left := m.status
	if m.state.Loading {
		left = "loading…"
	}
	if m.state.Active && !m.state.Session.LastSavedAt.IsZero() {
		left += theme.Muted.Render("  saved " + m.state.Session.LastSavedAt.Local().Format("15:04:05"))
	}
	return left + "  " + m.help.ShortHelpView(m.keys.ShortHelp())
}

func (m Model) bodyHeight() int {
	return max(m.height-8, 5)
}

// ─── commands ────────────────────────────────────────────────────────────────

func (m Model) waitForState() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		return stateMsg(<-updates)
	}
}

func (m Model) loadStatusCmd() tea.Cmd {
	return func() tea.Msg {
		session, err := m.port.Status(context.Background())
		if err != nil {
			return statusLoadedMsg{err: err}
		}
		items, err := m.port.ListActionItems(context.Background())
		return statusLoadedMsg{session: session, items: items, err: err}
	}
}

func (m Model) startCmd(categories []string) tea.Cmd {
	return func() tea.Msg {
		session, err := m.port.Start(context.Background(), categories)
		return sessionMsg{verb: "check-in started", session: session, err: err}
	}
}

func (m Model) gotoCmd(step string) tea.Cmd {
	return func() tea.Msg {
		session, err := m.port.GoToStep(context.Background(), step)
		return sessionMsg{verb: "moved to " + step, session: session, err: err}
	}
}

func (m Model) completeStepCmd(step string) tea.Cmd {
	return func() tea.Msg {
		session, err := m.port.CompleteStep(context.Background(), step)
		return sessionMsg{verb: slug.Humanize(step) + " done", session: session, err: err}
	}
}

func (m Model) openComposerCmd(categoryID string) tea.Cmd {
	return func() tea.Msg {
		composer, err := m.port.OpenComposer(context.Background(), categoryID)
		return composerOpenedMsg{composer: composer, err: err}
	}
}

func (m Model) completeCmd() tea.Cmd {
	discussion := m.discussion
	return func() tea.Msg {
		discussion.Close()
		out, err := m.port.Complete(context.Background())
		return completedMsg{out: out, err: err}
	}
}

func (m Model) abandonCmd() tea.Cmd {
	return func() tea.Msg {
		out, err := m.port.Abandon(context.Background())
		return abandonedMsg{out: out, err: err}
	}
}

func closeDiscussionCmd(view discussionview.Model) tea.Cmd {
	if view.CategoryID() == "" {
		return nil
	}
	return func() tea.Msg {
		view.Close()
		return nil
	}
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func splitCategories(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, slug.Make(part))
		}
	}
	return out
}

// nextOpenCategory is the first undiscussed category other than skip.
func nextOpenCategory(session *checkindto.SessionOutput, skip string) (string, bool) {
	if session == nil {
		return "", false
	}
	for _, category := range session.Categories {
		if !category.Completed && category.CategoryID != skip {
			return category.CategoryID, true
		}
	}
	return "", false
}
