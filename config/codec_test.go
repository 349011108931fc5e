package config

import (
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"mvave-bridge/midi"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	in := SwitchFile{
		Language:   "es",
		InputPort:  "FootCtrl-bt",
		OutputPort: "mwave_midi",
		Switches: []SwitchConfig{
			{ID: "btn_0", Index: 0, InputCC: 20, OutputCC: 30, Mode: ModeToggle, State: true},
			{ID: "btn_1", Index: 1, InputCC: midi.NoCC, OutputCC: 11, Mode: ModeMomentary},
			{ID: "btn_2", Index: 2, InputCC: 0, OutputCC: 127, Mode: ModeToggle},
			{ID: "btn_10", Index: 10, InputCC: 22, OutputCC: 20, Mode: ModeMomentary, State: true},
		},
	}

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, warnings, err := Decode(data, 2, 12)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("round trip mismatch\n got %+v\nwant %+v", out, in)
	}
}

func TestEncode_NotAssignedMarker(t *testing.T) {
	data, err := Encode(SwitchFile{Switches: []SwitchConfig{DefaultSwitch(0)}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), `"input_cc": "not_assigned"`) {
		t.Errorf("expected not_assigned marker in %s", data)
	}
	if !strings.Contains(string(data), `"output_cc": 10`) {
		t.Errorf("expected integer output_cc in %s", data)
	}
}

func TestDecode_Tolerant(t *testing.T) {
	doc := `{
  "switches": {
    "btn_0": {"input_cc": "20", "output_cc": 30, "mode": "momentary", "state": true},
    "btn_1": {"input_cc": "abc", "output_cc": "not_assigned"},
    "btn_2": {"input_cc": 200},
    "btn_3": {},
    "pedal": {"input_cc": 1},
    "btn_4": {"mode": "latch"}
  }
}`

	f, warnings, err := Decode([]byte(doc), 2, 12)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := []SwitchConfig{
		{ID: "btn_0", Index: 0, InputCC: 20, OutputCC: 30, Mode: ModeMomentary, State: true},
		{ID: "btn_1", Index: 1, InputCC: midi.NoCC, OutputCC: midi.NoCC, Mode: ModeToggle},
		{ID: "btn_2", Index: 2, InputCC: midi.NoCC, OutputCC: 12, Mode: ModeToggle},
		{ID: "btn_3", Index: 3, InputCC: midi.NoCC, OutputCC: 13, Mode: ModeToggle},
		{ID: "btn_4", Index: 4, InputCC: midi.NoCC, OutputCC: 14, Mode: ModeToggle},
	}
	if !reflect.DeepEqual(f.Switches, want) {
		t.Errorf("Switches\n got %+v\nwant %+v", f.Switches, want)
	}
	// abc, 200, pedal and latch are each reported
	if len(warnings) != 4 {
		t.Errorf("warnings = %v, want 4", warnings)
	}
}

func TestDecode_RecreatesDefaultsAndDropsExtras(t *testing.T) {
	doc := `{"switches": {
		"btn_7": {"input_cc": 1},
		"btn_9": {"input_cc": 2},
		"btn_8": {"input_cc": 3}
	}}`

	f, warnings, err := Decode([]byte(doc), 2, 4)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	var ids []string
	for _, sw := range f.Switches {
		ids = append(ids, sw.ID)
	}
	want := []string{"btn_0", "btn_1", "btn_7", "btn_8"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "btn_9") {
		t.Errorf("warnings = %v, want one about btn_9", warnings)
	}
}

func TestDecode_InvalidDocument(t *testing.T) {
	if _, _, err := Decode([]byte("not json"), 1, 4); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"), 1, 4)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("LoadFile() error = %v, want fs.ErrNotExist", err)
	}
}

func TestSaveFile_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "switches.json")
	in := SwitchFile{Switches: []SwitchConfig{DefaultSwitch(0)}}

	if err := SaveFile(path, in); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	out, _, err := LoadFile(path, 1, 4)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestSwitchIndex(t *testing.T) {
	tests := []struct {
		id   string
		want int
		ok   bool
	}{
		{id: "btn_0", want: 0, ok: true},
		{id: "btn_12", want: 12, ok: true},
		{id: "btn_", ok: false},
		{id: "btn_-1", ok: false},
		{id: "switch_1", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := SwitchIndex(tt.id)
			if ok != tt.ok || (ok && got != tt.want) {
				t.Errorf("SwitchIndex(%q) = (%d, %v), want (%d, %v)", tt.id, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestDefaultOutputCC(t *testing.T) {
	if got := DefaultOutputCC(0); got != 10 {
		t.Errorf("DefaultOutputCC(0) = %d, want 10", got)
	}
	if got := DefaultOutputCC(500); got != midi.MaxCC {
		t.Errorf("DefaultOutputCC(500) = %d, want %d", got, midi.MaxCC)
	}
	if got := DefaultOutputCC(math.MaxInt); got != midi.MaxCC {
		t.Errorf("DefaultOutputCC(MaxInt) = %d, want %d", got, midi.MaxCC)
	}
}

func TestDecode_DuplicateSpellingsAreDeterministic(t *testing.T) {
	doc := `{"switches": {
		"btn_05": {"input_cc": 2},
		"btn_5": {"input_cc": 1},
		"btn_005": {"input_cc": 3}
	}}`

	for range 50 {
		f, warnings, err := Decode([]byte(doc), 1, 12)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if len(f.Switches) != 2 {
			t.Fatalf("got %d switches, want 2", len(f.Switches))
		}
		sw := f.Switches[1]
		if sw.ID != "btn_5" || sw.InputCC != 1 {
			t.Fatalf("switch = %s input %v, want btn_5 input 1", sw.ID, sw.InputCC)
		}
		want := []string{
			`skipping duplicate switch id "btn_005"`,
			`skipping duplicate switch id "btn_05"`,
		}
		if !reflect.DeepEqual(warnings, want) {
			t.Fatalf("warnings = %v, want %v", warnings, want)
		}
	}
}

func TestDecode_OrdersLargeIndices(t *testing.T) {
	big := strconv.Itoa(math.MaxInt)
	doc := `{"switches": {"btn_` + big + `": {}, "btn_3": {}, "btn_1": {}}}`

	f, _, err := Decode([]byte(doc), 1, 12)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var ids []string
	for _, sw := range f.Switches {
		ids = append(ids, sw.ID)
	}
	want := []string{"btn_0", "btn_1", "btn_3", "btn_" + big}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
	if last := f.Switches[len(f.Switches)-1]; last.OutputCC != midi.MaxCC {
		t.Errorf("output of the last switch = %v, want %v", last.OutputCC, midi.MaxCC)
	}
}
