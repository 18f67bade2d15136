package components

import (
	"slices"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestPaletteSuggestions(t *testing.T) {
	t.Parallel()

	p := NewPalette()
	p.SetArguments("goto", []string{"warm-up", "reflection", "action-items"})
	p.SetArguments("discuss", []string{"money", "chores"})

	cases := []struct {
		input string
		want  []string
	}{
		{"", []string{"goto", "discuss", "done", "complete", "abandon", "quit"}},
		{"d", []string{"discuss", "done"}},
		{"goto r", []string{"goto reflection"}},
		{"discuss ", []string{"discuss money", "discuss chores"}},
		{"done x", nil},
	}
	for _, tc := range cases {
		got := p.suggest(tc.input)
		if !slices.Equal(got, tc.want) {
			t.Fatalf("suggest(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestPaletteTabCompletesCommandAndArgument(t *testing.T) {
	t.Parallel()

	p := NewPalette()
	p.SetArguments("goto", []string{"reflection"})
	p.Open()
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("go")})
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := p.input.Value(); got != "goto " {
		t.Fatalf("after first tab = %q", got)
	}
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := p.input.Value(); got != "goto reflection" {
		t.Fatalf("after second tab = %q", got)
	}

	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if p.Visible() {
		t.Fatal("palette should close on enter")
	}
	msg, ok := cmd().(PaletteSubmitMsg)
	if !ok || msg.Input != "goto reflection" {
		t.Fatalf("submit msg = %#v", msg)
	}
}
