package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"mvave-bridge/theme"
)

// SwitchRow is the display form of one switch. Labels are already
// localized by the caller.
type SwitchRow struct {
	Label    string
	Input    string
	Output   string
	Mode     string
	On       bool
	Selected bool
	Learning bool // the learn session is aimed at this row
	Diverged bool
}

// RenderLamp renders a single colored state lamp
func RenderLamp(color lipgloss.Color, symbol rune) string {
	return lipgloss.NewStyle().Foreground(color).Render(string(symbol))
}

// RenderSwitchRow renders "▶ ● SW 1   in 20   out 30   toggle".
func RenderSwitchRow(th *theme.Theme, row SwitchRow) string {
	cursor := " "
	if row.Selected {
		cursor = RenderLamp(th.Accent(), th.Symbols.Cursor)
	}

	lamp := RenderLamp(th.Muted(), th.Symbols.Off)
	switch {
	case row.Learning:
		lamp = RenderLamp(th.Learning(), th.Symbols.Learning)
	case row.On:
		lamp = RenderLamp(th.On(), th.Symbols.On)
	}

	text := lipgloss.NewStyle().Foreground(th.FG())
	if row.Selected {
		text = text.Bold(true)
	}
	line := fmt.Sprintf("%-8s %-8s %-8s %s", row.Label, row.Input, row.Output, row.Mode)

	var out strings.Builder
	out.WriteString(cursor)
	out.WriteString(" ")
	out.WriteString(lamp)
	out.WriteString(" ")
	out.WriteString(text.Render(line))
	if row.Diverged {
		out.WriteString(" ")
		out.WriteString(RenderLamp(th.Error(), th.Symbols.Diverged))
	}
	return out.String()
}

// RenderSwitchTable renders a header line followed by one row per switch.
func RenderSwitchTable(th *theme.Theme, header [4]string, rows []SwitchRow) string {
	head := lipgloss.NewStyle().Foreground(th.Muted()).
		Render(fmt.Sprintf("    %-8s %-8s %-8s %s", header[0], header[1], header[2], header[3]))
	lines := []string{head}
	for _, r := range rows {
		lines = append(lines, RenderSwitchRow(th, r))
	}
	return strings.Join(lines, "\n")
}

// RenderLegendItem renders a single legend item: "● description"
func RenderLegendItem(color lipgloss.Color, symbol rune, desc string) string {
	return fmt.Sprintf("  %s %s", RenderLamp(color, symbol), desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
