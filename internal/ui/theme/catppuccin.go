package theme

import "github.com/charmbracelet/lipgloss"

var (
	Base     = lipgloss.Color("#1e1e2e")
	Mantle   = lipgloss.Color("#181825")
	Surface0 = lipgloss.Color("#313244")
	Surface1 = lipgloss.Color("#45475a")
	Text     = lipgloss.Color("#cdd6f4")
	Subtext0 = lipgloss.Color("#a6adc8")
	Lavender = lipgloss.Color("#b4befe")
	Sapphire = lipgloss.Color("#74c7ec")
	Green    = lipgloss.Color("#a6e3a1")
	Peach    = lipgloss.Color("#fab387")
	Pink     = lipgloss.Color("#f5c2e7")
	Red      = lipgloss.Color("#f38ba8")

	App = lipgloss.NewStyle().
		Background(Base).
		Foreground(Text).
		Padding(1, 2)

	Pane = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Background(Mantle).
		Foreground(Text).
		Padding(0, 1)

	PaneActive = Pane.BorderForeground(Lavender)

	Title = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted = lipgloss.NewStyle().Foreground(Subtext0)
	Hot   = lipgloss.NewStyle().Foreground(Peach).Bold(true)
	Error = lipgloss.NewStyle().Foreground(Red)

	StepDone    = lipgloss.NewStyle().Foreground(Green)
	StepCurrent = lipgloss.NewStyle().Foreground(Base).Background(Lavender).Bold(true).Padding(0, 1)
	StepAhead   = lipgloss.NewStyle().Foreground(Surface1)

	sharedLane  = lipgloss.NewStyle().Foreground(Green).Bold(true)
	privateLane = lipgloss.NewStyle().Foreground(Pink).Bold(true)
)

// LaneStyle colours a note lane header. Unknown lanes render muted.
func LaneStyle(lane string) lipgloss.Style {
	switch lane {
	case "shared":
		return sharedLane
	case "private":
		return privateLane
	default:
		return Muted
	}
}
