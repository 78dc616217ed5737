// Package config loads the stenotap ini configuration. A missing file is not
// an error: every setting has a usable default.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	ini "gopkg.in/ini.v1"

	"stenotap/internal/layout"
)

type Config struct {
	// Layout names the emission key map. Classification always uses the
	// physical qwerty positions regardless of this setting.
	Layout string
	// DelayMs paces synthetic output. Zero emits as fast as the consumer
	// will take it.
	DelayMs int
	// EmergencyKey names a key that aborts capture from the keyboard
	// itself. Empty disables it.
	EmergencyKey string
	// Devices pins explicit event nodes. Empty means autodetect.
	Devices []string
}

const defaultDelayMs = 2

func Default() Config {
	return Config{
		Layout:  layout.DefaultName,
		DelayMs: defaultDelayMs,
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: %w", err)
	}
	if info.IsDir() {
		return cfg, fmt.Errorf("config: %s is a directory", path)
	}

	file, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	cfg.Layout = file.Section("layout").Key("name").MustString(cfg.Layout)
	if file.Section("output").HasKey("delay_ms") {
		delay, err := file.Section("output").Key("delay_ms").Int()
		if err != nil {
			return cfg, fmt.Errorf("config: delay_ms: %w", err)
		}
		cfg.DelayMs = delay
	}
	cfg.EmergencyKey = file.Section("capture").Key("emergency_key").MustString(cfg.EmergencyKey)
	if file.Section("devices").HasKey("path") {
		cfg.Devices = file.Section("devices").Key("path").ValueWithShadows()
	}

	if cfg.DelayMs < 0 {
		return cfg, fmt.Errorf("config: delay_ms must not be negative, got %d", cfg.DelayMs)
	}
	return cfg, nil
}
