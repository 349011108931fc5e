package theme

import (
	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	On       rune // ● switch on
	Off      rune // ○ switch off
	Cursor   rune // ▶ selected row
	Learning rune // ◎ waiting for a controller
	Diverged rune // ! output rejected
	Link     rune // ⇄ connected
	NoLink   rune // × disconnected
}

func New(palette *Palette) *Theme {
	if palette == nil || len(palette.Colors) == 0 {
		palette = Stage()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			On:       '●',
			Off:      '○',
			Cursor:   '▶',
			Learning: '◎',
			Diverged: '!',
			Link:     '⇄',
			NoLink:   '×',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG       = 0.0
	RoleSurface  = 0.1
	RoleMuted    = 0.25
	RoleFG       = 0.45
	RoleAccent   = 0.55
	RoleOn       = 0.65
	RoleLearning = 0.75
	RoleWarning  = 0.85
	RoleError    = 1.0
)

func (t *Theme) BG() lipgloss.Color {
	return t.Color(RoleBG)
}

func (t *Theme) Surface() lipgloss.Color {
	return t.Color(RoleSurface)
}

func (t *Theme) FG() lipgloss.Color {
	return t.Color(RoleFG)
}

func (t *Theme) Accent() lipgloss.Color {
	return t.Color(RoleAccent)
}

func (t *Theme) Muted() lipgloss.Color {
	return t.Color(RoleMuted)
}

func (t *Theme) On() lipgloss.Color {
	return t.Color(RoleOn)
}

func (t *Theme) Learning() lipgloss.Color {
	return t.Color(RoleLearning)
}

func (t *Theme) Warning() lipgloss.Color {
	return t.Color(RoleWarning)
}

func (t *Theme) Error() lipgloss.Color {
	return t.Color(RoleError)
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return lipgloss.Color(t.Palette.Lookup(norm).Hex())
}
