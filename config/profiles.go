package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const stampLayout = "2006-01-02_15-04-05"

// ProfileSave is one timestamped snapshot inside a profile
type ProfileSave struct {
	Filename  string
	Name      string // parsed from filename (empty if unnamed)
	Timestamp time.Time
}

// Profiles stores switch layouts as timestamped JSON files, one folder per
// profile.
type Profiles struct {
	Dir string
	now func() time.Time
}

// NewProfiles uses dir, or ConfigDir/profiles when dir is empty.
func NewProfiles(dir string) (*Profiles, error) {
	if dir == "" {
		base, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "profiles")
	}
	return &Profiles{Dir: dir, now: time.Now}, nil
}

func (p *Profiles) profileDir(profile string) (string, error) {
	if profile == "" {
		profile = "default"
	}
	safe := sanitizeFilename(profile)
	if safe == "" || safe == "." || safe == ".." {
		return "", fmt.Errorf("invalid profile name %q", profile)
	}
	return filepath.Join(p.Dir, safe), nil
}

// List returns all profile folder names
func (p *Profiles) List() ([]string, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Saves returns the snapshots of a profile, newest first
func (p *Profiles) Saves(profile string) ([]ProfileSave, error) {
	dir, err := p.profileDir(profile)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ProfileSave{}, nil
		}
		return nil, err
	}

	var saves []ProfileSave
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if s, ok := parseSaveName(entry.Name()); ok {
			saves = append(saves, s)
		}
	}
	sort.Slice(saves, func(i, j int) bool {
		if saves[i].Timestamp.Equal(saves[j].Timestamp) {
			return saves[i].Filename > saves[j].Filename
		}
		return saves[i].Timestamp.After(saves[j].Timestamp)
	})
	return saves, nil
}

// parseSaveName accepts 2006-01-02_15-04-05.json and
// 2006-01-02_15-04-05_name.json.
func parseSaveName(filename string) (ProfileSave, bool) {
	base, ok := strings.CutSuffix(filename, ".json")
	if !ok || len(base) < len(stampLayout) {
		return ProfileSave{}, false
	}
	ts, err := time.ParseInLocation(stampLayout, base[:len(stampLayout)], time.Local)
	if err != nil {
		return ProfileSave{}, false
	}
	name := ""
	if rest := base[len(stampLayout):]; len(rest) > 1 && rest[0] == '_' {
		name = rest[1:]
	}
	return ProfileSave{Filename: filename, Name: name, Timestamp: ts}, true
}

// Save writes a new snapshot and returns its filename.
func (p *Profiles) Save(profile, name string, f SwitchFile) (string, error) {
	dir, err := p.profileDir(profile)
	if err != nil {
		return "", err
	}
	filename := p.now().Format(stampLayout)
	if safe := sanitizeFilename(name); safe != "" {
		filename += "_" + safe
	}
	filename += ".json"
	if err := SaveFile(filepath.Join(dir, filename), f); err != nil {
		return "", err
	}
	return filename, nil
}

// Load decodes a snapshot; an empty filename selects the newest one.
func (p *Profiles) Load(profile, filename string, nDefault, nMax int) (SwitchFile, []string, error) {
	dir, err := p.profileDir(profile)
	if err != nil {
		return SwitchFile{}, nil, err
	}
	if filename == "" {
		saves, err := p.Saves(profile)
		if err != nil {
			return SwitchFile{}, nil, err
		}
		if len(saves) == 0 {
			return SwitchFile{}, nil, fmt.Errorf("no saves found in profile %s: %w", profile, os.ErrNotExist)
		}
		filename = saves[0].Filename
	}
	if filepath.Base(filename) != filename {
		return SwitchFile{}, nil, fmt.Errorf("invalid save filename %q", filename)
	}
	return LoadFile(filepath.Join(dir, filename), nDefault, nMax)
}

// Rename changes the name part of a snapshot, keeping its timestamp.
func (p *Profiles) Rename(profile, oldFilename, newName string) (string, error) {
	dir, err := p.profileDir(profile)
	if err != nil {
		return "", err
	}
	save, ok := parseSaveName(oldFilename)
	if !ok || filepath.Base(oldFilename) != oldFilename {
		return "", errors.New("invalid save filename")
	}

	newFilename := save.Timestamp.Format(stampLayout)
	if safe := sanitizeFilename(newName); safe != "" {
		newFilename += "_" + safe
	}
	newFilename += ".json"
	if err := os.Rename(filepath.Join(dir, oldFilename), filepath.Join(dir, newFilename)); err != nil {
		return "", err
	}
	return newFilename, nil
}

// Delete removes one snapshot.
func (p *Profiles) Delete(profile, filename string) error {
	dir, err := p.profileDir(profile)
	if err != nil {
		return err
	}
	if filepath.Base(filename) != filename {
		return fmt.Errorf("invalid save filename %q", filename)
	}
	return os.Remove(filepath.Join(dir, filename))
}

// DeleteProfile removes a profile folder with all its snapshots.
func (p *Profiles) DeleteProfile(profile string) error {
	dir, err := p.profileDir(profile)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// sanitizeFilename removes/replaces characters that are problematic in filenames
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer(
		" ", "-",
		"/", "-",
		"\\", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	).Replace(name)
	return name
}
