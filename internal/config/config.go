package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	DBPath       string `json:"db_path"`
	Timezone     string `json:"timezone"`
	MaxLanes     int    `json:"max_lanes"`
	HolidayState string `json:"holiday_state"`
	WebEnabled   bool   `json:"web_enabled"`
	WebPort      int    `json:"web_port"`
	LogPath      string `json:"log_path"`
}

func Default() Config {
	return Config{
		MaxLanes:     3,
		HolidayState: "BY",
		WebPort:      8080,
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lazycal", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return Config{}, err
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if config.MaxLanes <= 0 {
		config.MaxLanes = Default().MaxLanes
	}
	return config, nil
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

// Location resolves the configured display timezone, falling back to
// the local zone when unset or invalid.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
