package config

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"mvave-bridge/midi"
)

// NotAssigned is written for an unassigned controller number.
const NotAssigned = "not_assigned"

// Mode names as stored on disk.
const (
	ModeToggle    = "toggle"
	ModeMomentary = "momentary"
)

const switchPrefix = "btn_"

// SwitchFile is the persisted switch layout plus the port and language
// choices that travel with it.
type SwitchFile struct {
	Language   string
	InputPort  string
	OutputPort string
	Switches   []SwitchConfig // ordered by Index
}

// SwitchConfig is one persisted switch.
type SwitchConfig struct {
	ID       string
	Index    int
	InputCC  midi.CC
	OutputCC midi.CC
	Mode     string
	State    bool
}

// SwitchID builds the control id for index n.
func SwitchID(n int) string {
	return switchPrefix + strconv.Itoa(n)
}

// SwitchIndex parses the numeric suffix of a control id.
func SwitchIndex(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, switchPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// DefaultOutputCC is the output controller a new switch starts with.
// Indices past the 7-bit range share the top controller.
func DefaultOutputCC(n int) midi.CC {
	if n >= int(midi.MaxCC)-10 {
		return midi.MaxCC
	}
	return midi.CC(10 + n)
}

// DefaultSwitch returns switch n with every field at its default.
func DefaultSwitch(n int) SwitchConfig {
	return SwitchConfig{
		ID:       SwitchID(n),
		Index:    n,
		InputCC:  midi.NoCC,
		OutputCC: DefaultOutputCC(n),
		Mode:     ModeToggle,
	}
}

type fileJSON struct {
	Language   string                     `json:"language,omitempty"`
	InputPort  string                     `json:"input_port,omitempty"`
	OutputPort string                     `json:"output_port,omitempty"`
	Switches   map[string]json.RawMessage `json:"switches"`
}

type switchJSON struct {
	InputCC  ccValue `json:"input_cc"`
	OutputCC ccValue `json:"output_cc"`
	Mode     string  `json:"mode"`
	State    bool    `json:"state"`
}

// ccValue encodes NoCC as NotAssigned. Decoding never fails: anything
// that is not a controller number becomes NoCC with bad set.
type ccValue struct {
	cc  midi.CC
	set bool // field was present
	bad bool // present but malformed
}

func (v ccValue) MarshalJSON() ([]byte, error) {
	if !v.cc.Valid() {
		return json.Marshal(NotAssigned)
	}
	return []byte(strconv.Itoa(int(v.cc))), nil
}

func (v *ccValue) UnmarshalJSON(data []byte) error {
	v.cc, v.set, v.bad = midi.NoCC, true, false
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == NotAssigned || s == "" {
			return nil
		}
		cc, err := midi.ParseCC(strings.TrimSpace(s))
		v.cc, v.bad = cc, err != nil
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		v.bad = true
		return nil
	}
	cc, err := midi.CheckCC(n)
	v.cc, v.bad = cc, err != nil
	return nil
}

// Encode renders the layout as indented JSON.
func Encode(f SwitchFile) ([]byte, error) {
	out := fileJSON{
		Language:   f.Language,
		InputPort:  f.InputPort,
		OutputPort: f.OutputPort,
		Switches:   make(map[string]json.RawMessage, len(f.Switches)),
	}
	for _, sw := range f.Switches {
		mode := sw.Mode
		if mode != ModeMomentary {
			mode = ModeToggle
		}
		raw, err := json.Marshal(switchJSON{
			InputCC:  ccValue{cc: sw.InputCC},
			OutputCC: ccValue{cc: sw.OutputCC},
			Mode:     mode,
			State:    sw.State,
		})
		if err != nil {
			return nil, err
		}
		out.Switches[sw.ID] = raw
	}
	return json.MarshalIndent(out, "", "  ")
}

// Decode parses a layout. Only a document that is not a JSON object fails;
// every other problem is repaired and reported in warnings:
//   - missing or malformed fields take their defaults
//   - ids that are not btn_<n> are skipped
//   - switches 0..nDefault-1 are recreated when absent
//   - switches beyond nMax (in index order) are dropped
func Decode(data []byte, nDefault, nMax int) (SwitchFile, []string, error) {
	var doc fileJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return SwitchFile{}, nil, fmt.Errorf("parsing switch file: %w", err)
	}

	var warnings []string
	warnf := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	byIndex := make(map[int]SwitchConfig, len(doc.Switches))
	for _, id := range slices.SortedFunc(maps.Keys(doc.Switches), compareIDs) {
		raw := doc.Switches[id]
		n, ok := SwitchIndex(id)
		if !ok {
			warnf("skipping switch with unrecognised id %q", id)
			continue
		}
		if _, dup := byIndex[n]; dup {
			warnf("skipping duplicate switch id %q", id)
			continue
		}

		sw := DefaultSwitch(n)
		var sj switchJSON
		if err := json.Unmarshal(raw, &sj); err != nil {
			warnf("switch %s is malformed, using defaults: %v", id, err)
			byIndex[n] = sw
			continue
		}

		if sj.InputCC.bad {
			warnf("switch %s: input_cc is not a controller number, treating as unassigned", id)
		}
		if sj.InputCC.set {
			sw.InputCC = sj.InputCC.cc
		}

		switch {
		case !sj.OutputCC.set:
		case sj.OutputCC.bad:
			warnf("switch %s: output_cc is not a controller number", id)
			sw.OutputCC = midi.NoCC
		default:
			sw.OutputCC = sj.OutputCC.cc
		}

		switch strings.ToLower(sj.Mode) {
		case ModeToggle, "":
			sw.Mode = ModeToggle
		case ModeMomentary:
			sw.Mode = ModeMomentary
		default:
			warnf("switch %s: unknown mode %q, using toggle", id, sj.Mode)
		}
		sw.State = sj.State
		byIndex[n] = sw
	}

	for n := range nDefault {
		if _, ok := byIndex[n]; !ok {
			byIndex[n] = DefaultSwitch(n)
		}
	}

	switches := make([]SwitchConfig, 0, len(byIndex))
	for _, sw := range byIndex {
		switches = append(switches, sw)
	}
	slices.SortFunc(switches, func(a, b SwitchConfig) int { return cmp.Compare(a.Index, b.Index) })
	if len(switches) > nMax {
		for _, sw := range switches[nMax:] {
			warnf("dropping switch %s: at most %d switches", sw.ID, nMax)
		}
		switches = switches[:nMax]
	}

	return SwitchFile{
		Language:   doc.Language,
		InputPort:  doc.InputPort,
		OutputPort: doc.OutputPort,
		Switches:   switches,
	}, warnings, nil
}

// compareIDs orders ids so that when two spellings name the same switch
// ("btn_5", "btn_05") the canonical one is decoded first and wins.
func compareIDs(a, b string) int {
	ca, cb := isCanonicalID(a), isCanonicalID(b)
	if ca != cb {
		if ca {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isCanonicalID(id string) bool {
	n, ok := SwitchIndex(id)
	return ok && id == SwitchID(n)
}

// LoadFile reads and decodes a layout. A missing file is reported with an
// error satisfying errors.Is(err, fs.ErrNotExist).
func LoadFile(path string, nDefault, nMax int) (SwitchFile, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SwitchFile{}, nil, err
	}
	return Decode(data, nDefault, nMax)
}

// SaveFile encodes and writes a layout, creating the directory if needed.
func SaveFile(path string, f SwitchFile) error {
	data, err := Encode(f)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}
