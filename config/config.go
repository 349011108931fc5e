// Package config holds the application settings (YAML) and the persisted
// switch layout (JSON).
package config

import (
	"errors"
	"os"
	"path/filepath"
)

// AppName names the configuration directory.
const AppName = "mvave-bridge"

// ErrInvalid wraps every settings validation failure.
var ErrInvalid = errors.New("config: invalid settings")

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	if dir := os.Getenv("MVAVE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

// SettingsPath returns the full path to settings.yaml
func SettingsPath() (string, error) {
	return inConfigDir("settings.yaml")
}

// SwitchesPath returns the default location of the switch layout.
func SwitchesPath() (string, error) {
	return inConfigDir("switches.json")
}

// LogPath returns the debug log location used while the TUI owns the terminal.
func LogPath() (string, error) {
	return inConfigDir("debug.log")
}

// HistoryPath returns the default SQLite history database location.
func HistoryPath() (string, error) {
	return inConfigDir("history.db")
}

func inConfigDir(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// writeFile creates the parent directory, then writes through a temporary
// file in the same directory and renames it over path, so a crash leaves
// either the old or the new content.
func writeFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
