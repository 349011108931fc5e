package theme

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

type RGB [3]uint8

// Hex formats the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

type Palette struct {
	Name   string
	Colors []RGB
}

// Stage is the built-in gradient: dark slate through teal and amber to a
// hot red, dark roles at the low end.
func Stage() *Palette {
	return &Palette{
		Name: "stage",
		Colors: []RGB{
			{0x1b, 0x1d, 0x2a},
			{0x2c, 0x31, 0x45},
			{0x5a, 0x62, 0x7d},
			{0x9a, 0xa3, 0xbf},
			{0xd8, 0xdc, 0xe8},
			{0x3f, 0xc1, 0xc9},
			{0x5b, 0xd1, 0x7a},
			{0xf2, 0xc1, 0x4e},
			{0xf2, 0x84, 0x3a},
			{0xe8, 0x4a, 0x5f},
		},
	}
}

// LoadGPL reads a GIMP palette file.
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, fmt.Errorf("palette %s: %w", path, err)
	}
	return p, nil
}

// ParseGPL parses GIMP palette text: a header, optional Name: and
// Columns: lines, then one "R G B [name]" row per color.
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if name, ok := strings.CutPrefix(line, "Name:"); ok {
			p.Name = strings.TrimSpace(name)
			continue
		}
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "GIMP") || strings.HasPrefix(line, "Columns") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		var c RGB
		ok := true
		for i := range 3 {
			v, err := strconv.Atoi(fields[i])
			if err != nil || v < 0 || v > 255 {
				ok = false
				break
			}
			c[i] = uint8(v)
		}
		if ok {
			p.Colors = append(p.Colors, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("no colors found")
	}
	return p, nil
}

// LoadOrStage loads path when set and falls back to the built-in palette.
// The returned error explains a fallback and is informational.
func LoadOrStage(path string) (*Palette, error) {
	if path == "" {
		return Stage(), nil
	}
	p, err := LoadGPL(path)
	if err != nil {
		return Stage(), err
	}
	return p, nil
}

// Lookup returns interpolated color for normalized value 0-1
func (p *Palette) Lookup(norm float64) RGB {
	if norm <= 0 || len(p.Colors) == 1 {
		return p.Colors[0]
	}
	if norm >= 1 {
		return p.Colors[len(p.Colors)-1]
	}

	pos := norm * float64(len(p.Colors)-1)
	i := int(pos)
	frac := pos - float64(i)

	c0 := p.Colors[i]
	c1 := p.Colors[i+1]

	return RGB{
		lerp(c0[0], c1[0], frac),
		lerp(c0[1], c1[1], frac),
		lerp(c0[2], c1[2], frac),
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}

// Index returns color at specific index (no interpolation)
func (p *Palette) Index(i int) RGB {
	if i < 0 {
		return p.Colors[0]
	}
	if i >= len(p.Colors) {
		return p.Colors[len(p.Colors)-1]
	}
	return p.Colors[i]
}
