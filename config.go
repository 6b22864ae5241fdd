package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

var errConfig = errors.New("invalid config")

// Config is read from config.yaml. Zero values in the file fall back to the
// defaults below.
type Config struct {
	Prefix           string        `yaml:"prefix"`
	PresentInterval  time.Duration `yaml:"present_interval"`
	AbsentInterval   time.Duration `yaml:"absent_interval"`
	EnumerateTimeout time.Duration `yaml:"enumerate_timeout"`
	Adapter          string        `yaml:"adapter"`  // e.g. "hci0"; empty means every adapter
	IconDir          string        `yaml:"icon_dir"` // empty means the embedded icons
	Log              LogConfig     `yaml:"log"`
}

func defaultConfig() Config {
	return Config{
		Prefix:           "HHKB-Hybrid_",
		PresentInterval:  10 * time.Second,
		AbsentInterval:   500 * time.Millisecond,
		EnumerateTimeout: 2 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Output: "stderr",
		},
	}
}

func configPath() string {
	if p := os.Getenv("HHKBTRAY_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "hhkbtray", "config.yaml")
}

// loadConfig reads path on top of the defaults. A missing file is not an
// error.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Prefix == "":
		return fmt.Errorf("%w: prefix must not be empty", errConfig)
	case c.PresentInterval <= 0:
		return fmt.Errorf("%w: present_interval must be positive, got %s", errConfig, c.PresentInterval)
	case c.AbsentInterval <= 0:
		return fmt.Errorf("%w: absent_interval must be positive, got %s", errConfig, c.AbsentInterval)
	case c.EnumerateTimeout <= 0:
		return fmt.Errorf("%w: enumerate_timeout must be positive, got %s", errConfig, c.EnumerateTimeout)
	}
	return nil
}
