package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mvave-bridge/midi"
	"mvave-bridge/pitchbend"
)

// Settings is the root application configuration.
// Loaded from YAML; MVAVE_* environment variables override file values.
type Settings struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	Simple   SimpleConfig   `yaml:"simple"`
	Serial   SerialConfig   `yaml:"serial"`
	Logging  LoggingConfig  `yaml:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	History  HistoryConfig  `yaml:"history"`
	UI       UIConfig       `yaml:"ui"`
}

// Bridge modes.
const (
	ModeSwitches = "switches"
	ModeSimple   = "simple"
)

// Gateway kinds.
const (
	GatewayRtMidi   = "rtmidi"
	GatewaySerial   = "serial"
	GatewayLoopback = "loopback"
)

// BridgeConfig controls the switch engine and port selection.
type BridgeConfig struct {
	Mode            string        `yaml:"mode"`
	Gateway         string        `yaml:"gateway"`
	DefaultSwitches int           `yaml:"default_switches"`
	MaxSwitches     int           `yaml:"max_switches"`
	ReleaseDelay    time.Duration `yaml:"release_delay"`
	InputPort       string        `yaml:"input_port"`
	OutputPort      string        `yaml:"output_port"`
	SearchKeys      []string      `yaml:"search_keys"`
	VirtualOutput   string        `yaml:"virtual_output"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	SwitchesFile    string        `yaml:"switches_file"` // empty = ConfigDir/switches.json
	AutoLoad        bool          `yaml:"auto_load"`
	AutoConnect     bool          `yaml:"auto_connect"`
	PitchBendMap    bool          `yaml:"pitch_bend_map"` // translate bends in switch mode too
	FallbackToggles bool          `yaml:"fallback_toggles"` // latch simple.toggle_ccs no switch listens on
}

// SimpleConfig controls the single-surface bridge.
type SimpleConfig struct {
	ToggleCCs    []int             `yaml:"toggle_ccs"`
	PitchRanges  []pitchbend.Range `yaml:"pitch_ranges"`
	FallbackCC   int               `yaml:"fallback_cc"`
	StartupBurst bool              `yaml:"startup_burst"`
	StartupCCs   []int             `yaml:"startup_ccs"`
	StartupValue int               `yaml:"startup_value"`
}

// SerialConfig configures the DIN-MIDI UART gateway.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"` // stdout, stderr or file
	File   string `yaml:"file"`   // used when Output is "file"
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	TLS         bool   `yaml:"tls"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	QoS         int    `yaml:"qos"`
	TopicPrefix string `yaml:"topic_prefix"`
	Commands    bool   `yaml:"commands"` // accept remote commands
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // milliseconds
}

// HistoryConfig controls the SQLite transition history.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"` // empty = ConfigDir/history.db
	BusyTimeout int    `yaml:"busy_timeout"`
	Retention   int    `yaml:"retention_days"`
}

// UIConfig stores terminal UI preferences
type UIConfig struct {
	Palette  string `yaml:"palette"` // optional GIMP .gpl file
	Language string `yaml:"language"`
}

// DefaultSettings returns settings with sensible defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Bridge: BridgeConfig{
			Mode:            ModeSwitches,
			Gateway:         GatewayRtMidi,
			DefaultSwitches: 4,
			MaxSwitches:     12,
			ReleaseDelay:    200 * time.Millisecond,
			SearchKeys:      slices.Clone(midi.DefaultSearchKeys),
			VirtualOutput:   "mwave_midi",
			PollInterval:    time.Second,
			AutoLoad:        true,
			AutoConnect:     true,
		},
		Simple: SimpleConfig{
			ToggleCCs:    []int{4, 17, 18, 19},
			PitchRanges:  pitchbend.DefaultRanges(),
			FallbackCC:   int(pitchbend.DefaultFallbackCC),
			StartupBurst: true,
			StartupCCs:   []int{20, 21, 22, 23},
			StartupValue: 127,
		},
		Serial: SerialConfig{
			Baud: midi.DINBaud,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		MQTT: MQTTConfig{
			Host:        "localhost",
			Port:        1883,
			ClientID:    AppName,
			QoS:         1,
			TopicPrefix: "mvave",
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "mvave",
			BatchSize:     100,
			FlushInterval: 1000,
		},
		History: HistoryConfig{
			BusyTimeout: 5,
			Retention:   30,
		},
		UI: UIConfig{
			Language: "en",
		},
	}
}

// LoadSettings reads settings from a YAML file and applies environment
// variable overrides. A missing file yields the defaults.
//
// Loading order:
//  1. Default values
//  2. YAML file values
//  3. MVAVE_SECTION_KEY environment variables
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parsing settings file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	if err := applyEnvOverrides(s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validating settings: %w", err)
	}
	return s, nil
}

// Save writes the settings as YAML.
func (s *Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func applyEnvOverrides(s *Settings) error {
	str := map[string]*string{
		"MVAVE_BRIDGE_MODE":    &s.Bridge.Mode,
		"MVAVE_BRIDGE_GATEWAY": &s.Bridge.Gateway,
		"MVAVE_INPUT_PORT":     &s.Bridge.InputPort,
		"MVAVE_OUTPUT_PORT":    &s.Bridge.OutputPort,
		"MVAVE_SERIAL_PORT":    &s.Serial.Port,
		"MVAVE_LOG_LEVEL":      &s.Logging.Level,
		"MVAVE_MQTT_HOST":      &s.MQTT.Host,
		"MVAVE_MQTT_USERNAME":  &s.MQTT.Username,
		"MVAVE_MQTT_PASSWORD":  &s.MQTT.Password,
		"MVAVE_INFLUXDB_URL":   &s.InfluxDB.URL,
		"MVAVE_INFLUXDB_TOKEN": &s.InfluxDB.Token,
		"MVAVE_HISTORY_PATH":   &s.History.Path,
		"MVAVE_UI_LANGUAGE":    &s.UI.Language,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("MVAVE_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: MVAVE_MQTT_PORT=%q", ErrInvalid, v)
		}
		s.MQTT.Port = port
	}
	if v := os.Getenv("MVAVE_MQTT_ENABLED"); v != "" {
		s.MQTT.Enabled = parseBool(v)
	}
	if v := os.Getenv("MVAVE_INFLUXDB_ENABLED"); v != "" {
		s.InfluxDB.Enabled = parseBool(v)
	}
	if v := os.Getenv("MVAVE_HISTORY_ENABLED"); v != "" {
		s.History.Enabled = parseBool(v)
	}
	return nil
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Validate checks that the settings are usable.
func (s *Settings) Validate() error {
	b := s.Bridge
	if b.Mode != ModeSwitches && b.Mode != ModeSimple {
		return fmt.Errorf("%w: bridge.mode %q", ErrInvalid, b.Mode)
	}
	switch b.Gateway {
	case GatewayRtMidi, GatewaySerial, GatewayLoopback:
	default:
		return fmt.Errorf("%w: bridge.gateway %q", ErrInvalid, b.Gateway)
	}
	if b.DefaultSwitches < 1 || b.MaxSwitches < b.DefaultSwitches {
		return fmt.Errorf("%w: switch bounds %d..%d", ErrInvalid, b.DefaultSwitches, b.MaxSwitches)
	}
	if b.ReleaseDelay <= 0 {
		return fmt.Errorf("%w: bridge.release_delay must be positive", ErrInvalid)
	}
	if b.Gateway == GatewaySerial && s.Serial.Port == "" {
		return fmt.Errorf("%w: serial.port is required for the serial gateway", ErrInvalid)
	}

	if _, err := s.ToggleCCs(); err != nil {
		return fmt.Errorf("%w: simple.toggle_ccs: %w", ErrInvalid, err)
	}
	if _, err := s.StartupCCs(); err != nil {
		return fmt.Errorf("%w: simple.startup_ccs: %w", ErrInvalid, err)
	}
	if s.Simple.StartupValue < 0 || s.Simple.StartupValue > 127 {
		return fmt.Errorf("%w: simple.startup_value %d", ErrInvalid, s.Simple.StartupValue)
	}
	if _, err := s.PitchMapper(); err != nil {
		return fmt.Errorf("%w: simple.pitch_ranges: %w", ErrInvalid, err)
	}

	switch strings.ToLower(s.Logging.Output) {
	case "stdout", "stderr", "file":
	default:
		return fmt.Errorf("%w: logging.output %q", ErrInvalid, s.Logging.Output)
	}

	if s.MQTT.Enabled {
		if s.MQTT.Port < 1 || s.MQTT.Port > 65535 {
			return fmt.Errorf("%w: mqtt.port %d", ErrInvalid, s.MQTT.Port)
		}
		if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
			return fmt.Errorf("%w: mqtt.qos %d", ErrInvalid, s.MQTT.QoS)
		}
		if s.MQTT.TopicPrefix == "" {
			return fmt.Errorf("%w: mqtt.topic_prefix is empty", ErrInvalid)
		}
	}
	if s.InfluxDB.Enabled && (s.InfluxDB.URL == "" || s.InfluxDB.Bucket == "") {
		return fmt.Errorf("%w: influxdb.url and influxdb.bucket are required", ErrInvalid)
	}
	return nil
}

// ToggleCCs converts the toggle table to controller numbers.
func (s *Settings) ToggleCCs() ([]midi.CC, error) {
	return checkCCs(s.Simple.ToggleCCs)
}

// StartupCCs converts the startup burst list to controller numbers.
func (s *Settings) StartupCCs() ([]midi.CC, error) {
	return checkCCs(s.Simple.StartupCCs)
}

// PitchMapper builds the pitch-bend mapper described by the simple section.
func (s *Settings) PitchMapper() (*pitchbend.Mapper, error) {
	cc, err := midi.CheckCC(s.Simple.FallbackCC)
	if err != nil {
		return nil, err
	}
	return pitchbend.NewMapper(s.Simple.PitchRanges, cc)
}

// SwitchesFile resolves the switch layout path.
func (s *Settings) SwitchesFile() (string, error) {
	if s.Bridge.SwitchesFile != "" {
		return s.Bridge.SwitchesFile, nil
	}
	return SwitchesPath()
}

// HistoryFile resolves the history database path.
func (s *Settings) HistoryFile() (string, error) {
	if s.History.Path != "" {
		return s.History.Path, nil
	}
	return HistoryPath()
}

func checkCCs(ns []int) ([]midi.CC, error) {
	out := make([]midi.CC, 0, len(ns))
	for _, n := range ns {
		cc, err := midi.CheckCC(n)
		if err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, nil
}
