package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSettings_Valid(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
	if s.Bridge.ReleaseDelay != 200*time.Millisecond {
		t.Errorf("ReleaseDelay = %v, want 200ms", s.Bridge.ReleaseDelay)
	}
	if s.Bridge.VirtualOutput != "mwave_midi" {
		t.Errorf("VirtualOutput = %q", s.Bridge.VirtualOutput)
	}
}

func TestLoadSettings_MissingFileGivesDefaults(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.Bridge.DefaultSwitches != DefaultSettings().Bridge.DefaultSwitches {
		t.Errorf("DefaultSwitches = %d", s.Bridge.DefaultSwitches)
	}
}

func TestLoadSettings_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	yamlDoc := `
bridge:
  mode: simple
  default_switches: 2
  max_switches: 6
  release_delay: 150ms
  input_port: "FootCtrl-bt"
simple:
  toggle_ccs: [4, 5]
  pitch_ranges:
    - {name: low, min: -8192, max: -1, note: 48}
mqtt:
  enabled: true
  host: broker.local
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}

	if s.Bridge.Mode != ModeSimple {
		t.Errorf("Mode = %q", s.Bridge.Mode)
	}
	if s.Bridge.ReleaseDelay != 150*time.Millisecond {
		t.Errorf("ReleaseDelay = %v", s.Bridge.ReleaseDelay)
	}
	if s.Bridge.MaxSwitches != 6 || s.Bridge.DefaultSwitches != 2 {
		t.Errorf("switch bounds = %d..%d", s.Bridge.DefaultSwitches, s.Bridge.MaxSwitches)
	}
	if len(s.Simple.PitchRanges) != 1 || s.Simple.PitchRanges[0].Note != 48 {
		t.Errorf("PitchRanges = %+v", s.Simple.PitchRanges)
	}
	// untouched sections keep defaults
	if s.MQTT.Port != 1883 {
		t.Errorf("MQTT.Port = %d, want 1883", s.MQTT.Port)
	}
	if s.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", s.Logging.Level)
	}
}

func TestLoadSettings_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("bridge:\n  mode: sideways\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadSettings(path)
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("LoadSettings() error = %v, want ErrInvalid", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	s := DefaultSettings()

	t.Setenv("MVAVE_INPUT_PORT", "Chocolate")
	t.Setenv("MVAVE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("MVAVE_MQTT_PORT", "8883")
	t.Setenv("MVAVE_MQTT_ENABLED", "true")
	t.Setenv("MVAVE_HISTORY_ENABLED", "1")

	if err := applyEnvOverrides(s); err != nil {
		t.Fatalf("applyEnvOverrides: %v", err)
	}

	if s.Bridge.InputPort != "Chocolate" {
		t.Errorf("InputPort = %q", s.Bridge.InputPort)
	}
	if s.MQTT.Host != "mqtt.example.com" || s.MQTT.Port != 8883 || !s.MQTT.Enabled {
		t.Errorf("MQTT = %+v", s.MQTT)
	}
	if !s.History.Enabled {
		t.Error("History.Enabled should be set")
	}
}

func TestApplyEnvOverrides_BadPort(t *testing.T) {
	t.Setenv("MVAVE_MQTT_PORT", "eighty")
	if err := applyEnvOverrides(DefaultSettings()); !errors.Is(err, ErrInvalid) {
		t.Errorf("applyEnvOverrides() error = %v, want ErrInvalid", err)
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr bool
	}{
		{name: "defaults", mutate: func(s *Settings) {}},
		{name: "max below default", mutate: func(s *Settings) { s.Bridge.MaxSwitches = 1 }, wantErr: true},
		{name: "no default switches", mutate: func(s *Settings) { s.Bridge.DefaultSwitches = 0 }, wantErr: true},
		{name: "unknown gateway", mutate: func(s *Settings) { s.Bridge.Gateway = "bluetooth" }, wantErr: true},
		{name: "serial without port", mutate: func(s *Settings) { s.Bridge.Gateway = GatewaySerial }, wantErr: true},
		{name: "toggle cc out of range", mutate: func(s *Settings) { s.Simple.ToggleCCs = []int{128} }, wantErr: true},
		{name: "overlapping pitch ranges", mutate: func(s *Settings) {
			s.Simple.PitchRanges[1].Min = -5000
		}, wantErr: true},
		{name: "zero release delay", mutate: func(s *Settings) { s.Bridge.ReleaseDelay = 0 }, wantErr: true},
		{name: "bad mqtt qos", mutate: func(s *Settings) {
			s.MQTT.Enabled = true
			s.MQTT.QoS = 3
		}, wantErr: true},
		{name: "bad log output", mutate: func(s *Settings) { s.Logging.Output = "syslog" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigDir_EnvOverride(t *testing.T) {
	t.Setenv("MVAVE_CONFIG_DIR", "/tmp/mvave-test")
	dir, err := ConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/tmp/mvave-test" {
		t.Errorf("ConfigDir() = %q", dir)
	}
	path, _ := SwitchesPath()
	if path != filepath.Join("/tmp/mvave-test", "switches.json") {
		t.Errorf("SwitchesPath() = %q", path)
	}
}
