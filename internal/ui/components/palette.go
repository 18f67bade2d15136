package components

import (
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"qc/internal/ui/theme"
)

// PaletteSubmitMsg carries the confirmed command line.
type PaletteSubmitMsg struct{ Input string }

type PaletteCancelMsg struct{}

const maxSuggestions = 6

var (
	paletteStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Peach).
			Background(theme.Mantle).
			Foreground(theme.Text).
			Padding(0, 1)

	suggestionStyle = lipgloss.NewStyle().Foreground(theme.Subtext0)
	selectedStyle   = lipgloss.NewStyle().Foreground(theme.Lavender).Bold(true)
)

// Commands known to app/model.go runPalette. The bool marks commands that
// take one argument completed from SetArguments.
var paletteCommands = []struct {
	name  string
	takes bool
}{
	{"goto", true},
	{"discuss", true},
	{"done", false},
	{"complete", false},
	{"abandon", false},
	{"quit", false},
}

// Palette is a one-line command prompt with completion for command names and
// their single argument.
type Palette struct {
	input     textinput.Model
	visible   bool
	width     int
	arguments map[string][]string
	cursor    int
}

func NewPalette() Palette {
	ti := textinput.New()
	ti.Placeholder = "goto reflection, discuss money, done…"
	ti.CharLimit = 128
	return Palette{input: ti, arguments: map[string][]string{}}
}

func (p Palette) Visible() bool { return p.visible }

// SetArguments replaces the completions offered after command.
func (p *Palette) SetArguments(command string, values []string) {
	if p.arguments == nil {
		p.arguments = map[string][]string{}
	}
	p.arguments[command] = slices.Clone(values)
}

func (p *Palette) Open() tea.Cmd {
	p.visible = true
	p.cursor = 0
	p.input.SetValue("")
	return p.input.Focus()
}

func (p *Palette) SetWidth(w int) { p.width = w }

// Suggestions lists completions for the current input, commands first and
// then arguments once a command and a space have been typed.
func (p Palette) Suggestions() []string {
	return p.suggest(p.input.Value())
}

func (p Palette) suggest(raw string) []string {
	raw = strings.ToLower(strings.TrimLeft(raw, " "))
	command, arg, hasArg := strings.Cut(raw, " ")
	var out []string
	if !hasArg {
		for _, c := range paletteCommands {
			if strings.HasPrefix(c.name, command) {
				out = append(out, c.name)
			}
		}
		return out
	}
	arg = strings.TrimSpace(arg)
	for _, v := range p.arguments[command] {
		if strings.HasPrefix(strings.ToLower(v), arg) {
			out = append(out, command+" "+v)
		}
	}
	return out
}

func (p Palette) Update(msg tea.Msg) (Palette, tea.Cmd) {
	if !p.visible {
		return p, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		suggestions := p.Suggestions()
		switch key.String() {
		case "esc":
			p.close()
			return p, func() tea.Msg { return PaletteCancelMsg{} }
		case "enter":
			val := strings.TrimSpace(p.input.Value())
			p.close()
			return p, func() tea.Msg { return PaletteSubmitMsg{Input: val} }
		case "up":
			if p.cursor > 0 {
				p.cursor--
			}
			return p, nil
		case "down":
			if p.cursor < min(len(suggestions), maxSuggestions)-1 {
				p.cursor++
			}
			return p, nil
		case "tab":
			if len(suggestions) > 0 {
				p.complete(suggestions[min(p.cursor, len(suggestions)-1)])
			}
			return p, nil
		}
	}
	before := p.input.Value()
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	if p.input.Value() != before {
		p.cursor = 0
	}
	return p, cmd
}

// complete fills the input with a suggestion, leaving a trailing space after
// commands that still need their argument.
func (p *Palette) complete(suggestion string) {
	value := suggestion
	for _, c := range paletteCommands {
		if c.name == suggestion && c.takes {
			value += " "
		}
	}
	p.input.SetValue(value)
	p.input.CursorEnd()
	p.cursor = 0
}

func (p *Palette) close() {
	p.visible = false
	p.input.Blur()
}

func (p Palette) View() string {
	if !p.visible {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render("Command") + "\n")
	sb.WriteString(": " + p.input.View() + "\n")
	suggestions := p.Suggestions()
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	if len(suggestions) > 0 {
		sb.WriteString("\n")
	}
	for i, s := range suggestions {
		if i == p.cursor {
			sb.WriteString(selectedStyle.Render("› "+s) + "\n")
			continue
		}
		sb.WriteString(suggestionStyle.Render("  "+s) + "\n")
	}
	sb.WriteString(theme.Muted.Render("tab: complete  enter: run  esc: close"))

	w := p.width
	if w < 20 {
		w = 64
	}
	return paletteStyle.Width(w - 2).Render(sb.String())
}
