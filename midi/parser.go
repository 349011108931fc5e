package midi

// MaxSysEx bounds a collected system exclusive message. Longer messages are
// discarded up to their terminating 0xF7.
const MaxSysEx = 4096

// Parser decodes a raw DIN-MIDI byte stream, honouring running status.
// Realtime bytes are reported as Other without disturbing a message in
// progress. System exclusive is collected up to the terminating 0xF7.
type Parser struct {
	status byte
	data   [2]byte
	n      int
	sysex  []byte
	inSyx  bool
	skip   bool // oversized sysex being discarded
}

// Feed consumes one byte and returns an event when a message is complete.
func (p *Parser) Feed(b byte) (Event, bool) {
	switch {
	case b >= 0xF8:
		return Other{Raw: []byte{b}}, true

	case b == 0xF0:
		p.status, p.n = 0, 0
		p.inSyx, p.skip = true, false
		if p.sysex == nil {
			p.sysex = make([]byte, 0, MaxSysEx)
		}
		p.sysex = append(p.sysex[:0], b)
		return nil, false

	case b == 0xF7:
		if !p.inSyx {
			return nil, false
		}
		p.inSyx = false
		if p.skip {
			p.skip = false
			return nil, false
		}
		raw := append(append([]byte(nil), p.sysex...), b)
		p.sysex = p.sysex[:0]
		return Other{Raw: raw}, true

	case b >= 0xF1:
		// system common cancels running status; only tune request is bare
		p.status, p.n = 0, 0
		p.inSyx = false
		if b == 0xF6 {
			return Other{Raw: []byte{b}}, true
		}
		return nil, false

	case b >= 0x80:
		p.status, p.n = b, 0
		p.inSyx = false
		return nil, false
	}

	if p.inSyx {
		if p.skip {
			return nil, false
		}
		if len(p.sysex)+1 >= MaxSysEx {
			// keep the terminator within the bound
			p.skip = true
			p.sysex = p.sysex[:0]
			return nil, false
		}
		p.sysex = append(p.sysex, b)
		return nil, false
	}
	if p.status == 0 {
		return nil, false
	}

	p.data[p.n] = b
	p.n++
	if p.n < dataLen(p.status) {
		return nil, false
	}
	p.n = 0
	return decode(p.status, p.data), true
}

func dataLen(status byte) int {
	switch status & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	}
	return 2
}

func decode(status byte, d [2]byte) Event {
	ch := status & 0x0F
	switch status & 0xF0 {
	case 0x80:
		return NoteOff{Channel: ch, Note: d[0], Velocity: d[1]}
	case 0x90:
		return NoteOn{Channel: ch, Note: d[0], Velocity: d[1]}
	case 0xB0:
		return ControlChange{Channel: ch, Control: d[0], Value: d[1]}
	case 0xE0:
		return PitchBend{Channel: ch, Value: int16(int(d[0])|int(d[1])<<7) - 8192}
	case 0xC0, 0xD0:
		return Other{Raw: []byte{status, d[0]}}
	}
	return Other{Raw: []byte{status, d[0], d[1]}}
}
