package midi

import (
	"reflect"
	"testing"
)

func feedAll(p *Parser, in []byte) []Event {
	var out []Event
	for _, b := range in {
		if e, ok := p.Feed(b); ok {
			out = append(out, e)
		}
	}
	return out
}

func TestParser_Feed(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []Event
	}{
		{
			name: "control change",
			in:   []byte{0xB0, 20, 127},
			want: []Event{ControlChange{Channel: 0, Control: 20, Value: 127}},
		},
		{
			name: "running status",
			in:   []byte{0xB1, 20, 127, 20, 0},
			want: []Event{
				ControlChange{Channel: 1, Control: 20, Value: 127},
				ControlChange{Channel: 1, Control: 20, Value: 0},
			},
		},
		{
			name: "realtime inside message",
			in:   []byte{0xB0, 20, 0xF8, 127},
			want: []Event{
				Other{Raw: []byte{0xF8}},
				ControlChange{Channel: 0, Control: 20, Value: 127},
			},
		},
		{
			name: "note on and off",
			in:   []byte{0x92, 60, 100, 0x82, 60, 0},
			want: []Event{
				NoteOn{Channel: 2, Note: 60, Velocity: 100},
				NoteOff{Channel: 2, Note: 60, Velocity: 0},
			},
		},
		{
			name: "pitch bend extremes",
			in:   []byte{0xE0, 0x00, 0x00, 0x00, 0x40, 0x7F, 0x7F},
			want: []Event{
				PitchBend{Channel: 0, Value: -8192},
				PitchBend{Channel: 0, Value: 0},
				PitchBend{Channel: 0, Value: 8191},
			},
		},
		{
			name: "program change uses one data byte",
			in:   []byte{0xC0, 5, 6},
			want: []Event{
				Other{Raw: []byte{0xC0, 5}},
				Other{Raw: []byte{0xC0, 6}},
			},
		},
		{
			name: "sysex collected",
			in:   []byte{0xF0, 0x7E, 0x01, 0xF7},
			want: []Event{Other{Raw: []byte{0xF0, 0x7E, 0x01, 0xF7}}},
		},
		{
			name: "sysex cancels running status",
			in:   []byte{0xB0, 20, 127, 0xF0, 0x01, 0xF7, 20, 0},
			want: []Event{
				ControlChange{Channel: 0, Control: 20, Value: 127},
				Other{Raw: []byte{0xF0, 0x01, 0xF7}},
			},
		},
		{
			name: "data without status ignored",
			in:   []byte{20, 127},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Parser
			got := feedAll(&p, tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Feed(% X) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParser_MatchesEncoder(t *testing.T) {
	events := []Event{
		ControlChange{Channel: 3, Control: 30, Value: 127},
		NoteOn{Channel: 0, Note: 63, Velocity: 127},
		NoteOff{Channel: 0, Note: 63, Velocity: 64},
		PitchBend{Channel: 5, Value: 4096},
		PitchBend{Channel: 5, Value: -1},
	}

	var p Parser
	for _, e := range events {
		got := feedAll(&p, ToMessage(e))
		if len(got) != 1 || !reflect.DeepEqual(got[0], e) {
			t.Errorf("parse(ToMessage(%v)) = %v", e, got)
		}
	}
}

func sysex(dataLen int) []byte {
	msg := make([]byte, 0, dataLen+2)
	msg = append(msg, 0xF0)
	for i := range dataLen {
		msg = append(msg, byte(i%0x80))
	}
	return append(msg, 0xF7)
}

func TestParser_SysExBound(t *testing.T) {
	t.Run("largest message kept", func(t *testing.T) {
		var p Parser
		msg := sysex(MaxSysEx - 2)
		got := feedAll(&p, msg)
		if len(got) != 1 || !reflect.DeepEqual(got[0], Other{Raw: msg}) {
			t.Fatalf("got %d events, want the %d-byte message", len(got), len(msg))
		}
	})

	t.Run("oversized message dropped", func(t *testing.T) {
		var p Parser
		in := append(sysex(10*MaxSysEx), 0xB0, 20, 127)
		got := feedAll(&p, in)
		want := []Event{ControlChange{Channel: 0, Control: 20, Value: 127}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v, want only the control change", got)
		}
		if cap(p.sysex) > MaxSysEx {
			t.Errorf("sysex buffer grew to %d bytes", cap(p.sysex))
		}
	})

	t.Run("unterminated message stays bounded", func(t *testing.T) {
		var p Parser
		in := sysex(20 * MaxSysEx)
		feedAll(&p, in[:len(in)-1])
		if cap(p.sysex) > MaxSysEx {
			t.Errorf("sysex buffer grew to %d bytes", cap(p.sysex))
		}
		if got := feedAll(&p, sysex(2)); len(got) != 1 {
			t.Errorf("next message after overflow: got %v", got)
		}
	})
}
