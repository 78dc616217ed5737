package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"stenotap/internal/capture"
	"stenotap/internal/config"
	"stenotap/internal/device"
	"stenotap/internal/emitter"
	"stenotap/internal/layout"
)

func main() {
	if err := run(); err != nil {
		var detection device.DetectionError
		if errors.As(err, &detection) {
			fmt.Fprintf(os.Stderr, "stenotap: %s\n", detection.Message)
		} else {
			fmt.Fprintf(os.Stderr, "stenotap: %v\n", err)
		}
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	devices      []string
	layoutName   string
	delayMs      int
	emergencyKey string
	listLayouts  bool
	listDevices  bool
	verbose      bool
	typeText     string
	backspaces   int
}

func parseFlags() (options, error) {
	var opts options
	fs := flag.NewFlagSet("stenotap", flag.ContinueOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to ini configuration file")
	fs.StringArrayVarP(&opts.devices, "device", "d", nil, "event node to grab (repeatable, default autodetect)")
	fs.StringVarP(&opts.layoutName, "layout", "l", "", "emission layout (see --list-layouts)")
	fs.IntVar(&opts.delayMs, "delay-ms", -1, "milliseconds between synthetic key events")
	fs.StringVar(&opts.emergencyKey, "emergency-key", "", "key that aborts capture, e.g. pause")
	fs.BoolVar(&opts.listLayouts, "list-layouts", false, "print bundled layouts and exit")
	fs.BoolVar(&opts.listDevices, "list-devices", false, "print detected keyboards and exit")
	fs.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	fs.StringVar(&opts.typeText, "type", "", "type the given text through the synthetic device and exit")
	fs.IntVar(&opts.backspaces, "backspaces", 0, "send the given number of backspaces and exit")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return opts, err
	}
	return opts, nil
}

func run() error {
	opts, err := parseFlags()
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if opts.listLayouts {
		for _, name := range layout.Names() {
			fmt.Println(name)
		}
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.layoutName != "" {
		cfg.Layout = opts.layoutName
	}
	if opts.delayMs >= 0 {
		cfg.DelayMs = opts.delayMs
	}
	if opts.emergencyKey != "" {
		cfg.EmergencyKey = opts.emergencyKey
	}
	if len(opts.devices) > 0 {
		cfg.Devices = opts.devices
	}

	if opts.listDevices {
		return listDevices(log)
	}

	table := layout.Load(cfg.Layout, log)

	out, err := emitter.OpenUInput()
	if err != nil {
		return err
	}
	defer out.Close()

	delay := func() {}
	if cfg.DelayMs > 0 {
		pause := time.Duration(cfg.DelayMs) * time.Millisecond
		delay = func() { time.Sleep(pause) }
	}
	emulator := emitter.NewEmulator(out, table, emitter.ParserFunc(emitter.ParseCombo), delay, log)

	if opts.typeText != "" {
		return emulator.SendString(opts.typeText)
	}
	if opts.backspaces > 0 {
		return emulator.SendBackspaces(opts.backspaces)
	}

	devices, err := openDevices(cfg, log)
	if err != nil {
		return err
	}
	defer closeDevices(devices)
	for _, dev := range devices {
		log.Info("using keyboard", "path", dev.Path(), "name", dev.Name())
	}

	capt, err := capture.New(asCaptureDevices(devices), out, table, &loggingConsumer{log: log}, log)
	if err != nil {
		return err
	}
	defer capt.Close()

	if cfg.EmergencyKey != "" {
		info, ok := table.Resolve(cfg.EmergencyKey)
		if !ok {
			return fmt.Errorf("emergency key %q is not in layout %s", cfg.EmergencyKey, table.Name())
		}
		capt.SetEmergencyKey(info.Code)
		log.Info("emergency release key armed", "key", cfg.EmergencyKey)
	}

	if err := capt.Start(); err != nil {
		return err
	}
	defer capt.Cancel()

	monitor, err := device.NewMonitor(log)
	if err != nil {
		log.Warn("hotplug monitoring unavailable", "error", err)
	} else {
		defer monitor.Close()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	log.Info("capture running", "layout", table.Name(), "devices", len(devices))

	for {
		var changes <-chan device.Change
		if monitor != nil {
			changes = monitor.Changes()
		}
		select {
		case sig := <-signals:
			log.Info("shutting down", "signal", sig.String())
			return nil
		case change, ok := <-changes:
			if !ok {
				monitor = nil
				continue
			}
			logDeviceChange(log, change)
		}
	}
}

func logDeviceChange(log *slog.Logger, change device.Change) {
	switch change.Kind {
	case device.Added:
		log.Info("input device added, restart to capture it", "path", change.Path)
	case device.Removed:
		log.Info("input device removed", "path", change.Path)
	}
}

func openDevices(cfg config.Config, log *slog.Logger) ([]*device.Device, error) {
	if len(cfg.Devices) > 0 {
		return device.OpenPaths(cfg.Devices)
	}
	return device.List(device.Options{
		ReservedName: emitter.DeviceName,
		Logger:       log,
	})
}

func listDevices(log *slog.Logger) error {
	devices, err := device.List(device.Options{
		ReservedName: emitter.DeviceName,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	defer closeDevices(devices)
	for _, dev := range devices {
		fmt.Printf("%s\t%s\n", dev.Path(), dev.Name())
	}
	return nil
}

func closeDevices(devices []*device.Device) {
	for _, dev := range devices {
		dev.Close()
	}
}

func asCaptureDevices(devices []*device.Device) []capture.Device {
	wrapped := make([]capture.Device, len(devices))
	for i, dev := range devices {
		wrapped[i] = dev
	}
	return wrapped
}

// loggingConsumer is the default event sink when no steno engine is attached:
// it makes captured transitions visible under --verbose.
type loggingConsumer struct {
	log *slog.Logger
}

func (c *loggingConsumer) KeyDown(key string) { c.log.Debug("key down", "key", key) }
func (c *loggingConsumer) KeyUp(key string)   { c.log.Debug("key up", "key", key) }
