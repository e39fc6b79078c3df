package viz

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/pxwrap/internal/lifecycle"
)

// Palette colors lifecycle states and handle events.
type Palette struct {
	Name string

	Ready      lipgloss.Color // a usable handle set
	Transition lipgloss.Color // initializing or shutting down
	Idle       lipgloss.Color // uninitialized, empty slots

	Create  lipgloss.Color
	Release lipgloss.Color
	Failure lipgloss.Color
}

var (
	PaletteTerminal = Palette{
		Name:       "terminal",
		Ready:      lipgloss.Color("82"),
		Transition: lipgloss.Color("214"),
		Idle:       lipgloss.Color("242"),
		Create:     lipgloss.Color("86"),
		Release:    lipgloss.Color("111"),
		Failure:    lipgloss.Color("203"),
	}

	// PaletteLight keeps contrast on light backgrounds.
	PaletteLight = Palette{
		Name:       "light",
		Ready:      lipgloss.Color("#1a7f37"),
		Transition: lipgloss.Color("#9a6700"),
		Idle:       lipgloss.Color("#6e7781"),
		Create:     lipgloss.Color("#0969da"),
		Release:    lipgloss.Color("#8250df"),
		Failure:    lipgloss.Color("#cf222e"),
	}

	// PaletteSignal only marks failures; everything else stays neutral.
	PaletteSignal = Palette{
		Name:       "signal",
		Ready:      lipgloss.Color("252"),
		Transition: lipgloss.Color("248"),
		Idle:       lipgloss.Color("240"),
		Create:     lipgloss.Color("252"),
		Release:    lipgloss.Color("248"),
		Failure:    lipgloss.Color("196"),
	}

	CurrentTheme = PaletteTerminal

	Themes = []Palette{PaletteTerminal, PaletteLight, PaletteSignal}
)

// ForState returns the color for a manager state.
func (p Palette) ForState(s lifecycle.State) lipgloss.Color {
	switch s {
	case lifecycle.StateReady:
		return p.Ready
	case lifecycle.StateInitializing, lifecycle.StateShuttingDown:
		return p.Transition
	default:
		return p.Idle
	}
}

// GetTheme returns the named palette, falling back to terminal.
func GetTheme(name string) Palette {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return PaletteTerminal
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
