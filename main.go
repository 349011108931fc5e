// mvave-bridge turns an M-VAVE Chocolate foot controller into a
// configurable MIDI switch surface.
//
// Incoming controller messages are matched against learned switches and
// re-emitted on the output port as toggle or momentary states. The terminal
// UI edits the layout; -headless runs the bridge alone.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"mvave-bridge/bridge"
	"mvave-bridge/config"
	"mvave-bridge/history"
	"mvave-bridge/logging"
	"mvave-bridge/midi"
	"mvave-bridge/telemetry"
	"mvave-bridge/theme"
	"mvave-bridge/tui"
)

// Version information, set at build time via ldflags:
// go build -ldflags "-X main.version=1.0.0"
var version = "dev"

const (
	demoInput     = "M-VAVE Chocolate (demo)"
	pruneInterval = 24 * time.Hour
)

type options struct {
	configPath string
	headless   bool
	simple     bool
	demo       bool
	in, out    string
	history    bool
	profile    string
}

func main() {
	var opts options
	var showVersion bool
	flag.StringVar(&opts.configPath, "config", "", "settings file (default ~/.config/mvave-bridge/settings.yaml)")
	flag.BoolVar(&opts.headless, "headless", false, "run without the terminal UI")
	flag.BoolVar(&opts.simple, "simple", false, "simple bridge: toggle table and pitch map, no switches (implies -headless)")
	flag.BoolVar(&opts.demo, "demo", false, "use an in-memory port pair instead of real MIDI")
	flag.StringVar(&opts.in, "in", "", "input port name")
	flag.StringVar(&opts.out, "out", "", "output port name")
	flag.BoolVar(&opts.history, "history", false, "record switch transitions to the SQLite history")
	flag.StringVar(&opts.profile, "profile", "", "save and load layouts as snapshots of this profile")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(config.AppName, version)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	path := opts.configPath
	if path == "" {
		p, err := config.SettingsPath()
		if err != nil {
			return err
		}
		path = p
	}
	settings, err := config.LoadSettings(path)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	applyFlags(settings, opts)

	// the terminal belongs to the UI
	if settings.Bridge.Mode == config.ModeSwitches && !opts.headless {
		settings.Logging.Output = "file"
	}
	log := logging.New(settings.Logging, version)
	defer log.Close()
	log.Info("starting", "settings", path, "mode", settings.Bridge.Mode, "gateway", settings.Bridge.Gateway)

	gw, closeGateway, err := openGateway(settings, log)
	if err != nil {
		return fmt.Errorf("opening MIDI: %w", err)
	}
	defer closeGateway()

	var (
		engine *bridge.Engine
		r      router
	)
	if settings.Bridge.Mode == config.ModeSimple {
		simple, err := newSimpleRouter(settings, log)
		if err != nil {
			return err
		}
		r = simple
	} else {
		engine, err = newEngine(settings, log)
		if err != nil {
			return err
		}
		r = engine
	}

	profiles, err := config.NewProfiles("")
	if err != nil {
		return err
	}
	app := &App{
		ctx:       ctx,
		settings:  settings,
		gw:        gw,
		engine:    engine,
		session:   bridge.NewSession(gw, r, log),
		devices:   midi.NewDeviceManager(gw, settings.Bridge.PollInterval, log.Category("devices")),
		profiles:  profiles,
		profile:   opts.profile,
		logger:    log.Category("app"),
		preferIn:  opts.in,
		preferOut: opts.out,
	}
	language := settings.UI.Language
	if engine != nil && settings.Bridge.AutoLoad {
		_, lang, _, err := app.Load()
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Info("no saved layout, using defaults")
		case err != nil:
			log.Warn("auto-load failed", "error", err)
		case lang != "":
			language = lang
		}
	}

	closeObservers := attachObservers(ctx, settings, r, engine, log)
	defer closeObservers()

	var updates *tui.Updates
	headless := opts.headless || engine == nil
	if !headless {
		updates = tui.NewUpdates()
		r.AddObserver(updates)
	}

	stop := app.start(ctx)
	// runs before closeObservers so the sinks see the final disconnect
	defer func() {
		if err := stop(); err != nil {
			log.Warn("disconnect", "error", err)
		}
	}()

	if settings.Bridge.AutoConnect {
		if err := app.Connect(); err != nil {
			log.Info("not connected yet", "error", err)
		}
	}

	if headless {
		log.Info("running headless, interrupt to stop")
		<-ctx.Done()
		return nil
	}

	palette, err := theme.LoadOrStage(settings.UI.Palette)
	if err != nil {
		log.Warn("palette", "error", err)
	}
	model := tui.NewModel(tui.Options{
		Engine:   engine,
		Actions:  app,
		Updates:  updates,
		Theme:    theme.New(palette),
		Language: language,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func applyFlags(s *config.Settings, opts options) {
	if opts.simple {
		s.Bridge.Mode = config.ModeSimple
	}
	if opts.demo {
		s.Bridge.Gateway = config.GatewayLoopback
	}
	if opts.history {
		s.History.Enabled = true
	}
}

// openGateway selects the MIDI backend. The loopback gateway offers a fake
// controller input and the virtual output so the UI can be tried without
// hardware.
func openGateway(s *config.Settings, log *logging.Logger) (midi.Gateway, func(), error) {
	mlog := log.Category("midi")
	switch s.Bridge.Gateway {
	case config.GatewayLoopback:
		out := s.Bridge.VirtualOutput
		if out == "" {
			out = "mwave_midi"
		}
		return midi.NewLoopback([]string{demoInput}, []string{out}), func() {}, nil
	case config.GatewaySerial:
		return midi.NewSerialGateway(s.Serial.Baud, mlog), func() {}, nil
	default:
		gw, err := midi.NewPortGateway(s.Bridge.VirtualOutput, mlog)
		if err != nil {
			return nil, nil, err
		}
		return gw, func() {
			if err := gw.Close(); err != nil {
				log.Warn("closing MIDI driver", "error", err)
			}
		}, nil
	}
}

func newEngine(s *config.Settings, log *logging.Logger) (*bridge.Engine, error) {
	reg, err := bridge.NewRegistry(s.Bridge.DefaultSwitches, s.Bridge.MaxSwitches)
	if err != nil {
		return nil, fmt.Errorf("switch registry: %w", err)
	}
	opts := bridge.Options{
		ReleaseDelay: s.Bridge.ReleaseDelay,
		Logger:       log,
	}
	if s.Bridge.PitchBendMap {
		if opts.Mapper, err = s.PitchMapper(); err != nil {
			return nil, fmt.Errorf("pitch map: %w", err)
		}
	}
	if s.Bridge.FallbackToggles {
		ccs, err := s.ToggleCCs()
		if err != nil {
			return nil, fmt.Errorf("toggle table: %w", err)
		}
		if opts.Toggles, err = bridge.NewToggleTable(ccs); err != nil {
			return nil, fmt.Errorf("toggle table: %w", err)
		}
	}
	return bridge.NewEngine(reg, opts), nil
}

func newSimpleRouter(s *config.Settings, log *logging.Logger) (*bridge.SimpleRouter, error) {
	toggles, err := s.ToggleCCs()
	if err != nil {
		return nil, fmt.Errorf("toggle table: %w", err)
	}
	mapper, err := s.PitchMapper()
	if err != nil {
		return nil, fmt.Errorf("pitch map: %w", err)
	}
	opts := bridge.SimpleOptions{Toggles: toggles, Mapper: mapper, Logger: log}
	if s.Simple.StartupBurst {
		ccs, err := s.StartupCCs()
		if err != nil {
			return nil, fmt.Errorf("startup burst: %w", err)
		}
		opts.Startup = bridge.StartupBurst(ccs, uint8(s.Simple.StartupValue))
	}
	return bridge.NewSimpleRouter(opts)
}

// attachObservers connects the optional sinks. Each one that fails to
// start is logged and skipped. The returned func closes them in reverse.
func attachObservers(ctx context.Context, s *config.Settings, r router, engine *bridge.Engine, log *logging.Logger) func() {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if client, err := telemetry.Connect(s.MQTT, log); err == nil {
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				log.Warn("closing MQTT", "error", err)
			}
		})
		pub := telemetry.NewPublisher(client, s.MQTT.TopicPrefix, log)
		closers = append(closers, pub.Close)
		r.AddObserver(pub)
		if engine != nil {
			pub.Snapshot(engine.Switches())
			if s.MQTT.Commands {
				cmds := telemetry.NewCommandListener(engine, s.MQTT.TopicPrefix, log)
				if err := cmds.Start(client); err != nil {
					log.Warn("MQTT commands unavailable", "error", err)
				}
			}
		}
	} else if !errors.Is(err, telemetry.ErrDisabled) {
		log.Warn("MQTT unavailable", "error", err)
	}

	if rec, err := telemetry.ConnectInflux(s.InfluxDB, log); err == nil {
		closers = append(closers, func() {
			if err := rec.Close(); err != nil {
				log.Warn("closing InfluxDB", "error", err)
			}
		})
		r.AddObserver(rec)
	} else if !errors.Is(err, telemetry.ErrDisabled) {
		log.Warn("InfluxDB unavailable", "error", err)
	}

	if s.History.Enabled {
		if store, err := openHistory(ctx, s, log); err != nil {
			log.Warn("history unavailable", "error", err)
		} else {
			closers = append(closers, func() {
				if err := store.Close(); err != nil {
					log.Warn("closing history", "error", err)
				}
			})
			rec := history.NewRecorder(store, log)
			closers = append(closers, rec.Close)
			r.AddObserver(rec)
		}
	}
	return closeAll
}

func openHistory(ctx context.Context, s *config.Settings, log *logging.Logger) (*history.Store, error) {
	path, err := s.HistoryFile()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(path, s.History.BusyTimeout)
	if err != nil {
		return nil, err
	}
	log.Info("history opened", "path", path)

	if s.History.Retention > 0 {
		retention := time.Duration(s.History.Retention) * 24 * time.Hour
		prune := func() {
			n, err := store.Prune(ctx, retention)
			if err != nil {
				log.Warn("history prune", "error", err)
				return
			}
			if n > 0 {
				log.Info("history pruned", "removed", n)
			}
		}
		prune()
		go func() {
			t := time.NewTicker(pruneInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					prune()
				}
			}
		}()
	}
	return store, nil
}
