package widgets

import (
	"strings"
	"testing"

	"mvave-bridge/theme"
)

func TestRenderSwitchRow(t *testing.T) {
	th := theme.New(nil)
	tests := []struct {
		name string
		row  SwitchRow
		has  []string
	}{
		{
			name: "off",
			row:  SwitchRow{Label: "SW 1", Input: "20", Output: "30", Mode: "toggle"},
			has:  []string{"○", "SW 1", "20", "30", "toggle"},
		},
		{
			name: "on and selected",
			row:  SwitchRow{Label: "SW 2", Input: "-", Output: "11", Mode: "momentary", On: true, Selected: true},
			has:  []string{"▶", "●", "SW 2", "momentary"},
		},
		{
			name: "learning wins over state",
			row:  SwitchRow{Label: "SW 3", On: true, Learning: true},
			has:  []string{"◎"},
		},
		{
			name: "diverged",
			row:  SwitchRow{Label: "SW 4", Diverged: true},
			has:  []string{"!"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderSwitchRow(th, tt.row)
			for _, s := range tt.has {
				if !strings.Contains(got, s) {
					t.Errorf("row %q missing %q", got, s)
				}
			}
		})
	}
}

func TestRenderSwitchTable(t *testing.T) {
	th := theme.New(nil)
	got := RenderSwitchTable(th, [4]string{"switch", "in", "out", "mode"}, []SwitchRow{
		{Label: "SW 1"}, {Label: "SW 2"},
	})
	if lines := strings.Split(got, "\n"); len(lines) != 3 {
		t.Errorf("got %d lines, want 3", len(lines))
	}
}

func TestRenderKeyHelp(t *testing.T) {
	got := RenderKeyHelp([]KeySection{
		{Title: "Commands", Keys: []KeyBinding{{Key: "list", Desc: "show ports"}}},
	})
	want := "Commands\n  list         show ports"
	if got != want {
		t.Errorf("RenderKeyHelp() = %q, want %q", got, want)
	}
}
