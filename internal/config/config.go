package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"pracstore/internal/backend"
	"pracstore/internal/logging"
)

// DefaultPath is read when Load is given no path and the file exists.
const DefaultPath = "~/.pracstore/config.toml"

type Config struct {
	Storage StorageConfig `toml:"storage"`
	Logging LoggingConfig `toml:"logging"`
}

type StorageConfig struct {
	// DataLocation selects the backend, e.g. "local#~/.pracstore" or
	// "postgres#host=db user=prac dbname=prac".
	DataLocation string `toml:"data_location" env:"PRACSTORE_DATA_LOCATION"`
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"PRACSTORE_LOG_LEVEL"`
	Format string `toml:"format" env:"PRACSTORE_LOG_FORMAT"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Storage: StorageConfig{
			DataLocation: "local#~/.pracstore",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a TOML config file over the defaults, then applies
// environment overrides. If path is empty, DefaultPath is used when present.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = ExpandHome(DefaultPath)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// Location parses the data location, expanding a leading ~/ for the
// file-based backends.
func (c *Config) Location() (backend.Location, error) {
	loc, err := backend.ParseLocation(c.Storage.DataLocation)
	if err != nil {
		return backend.Location{}, err
	}
	if loc.Kind != backend.KindPostgres {
		loc.Target = ExpandHome(loc.Target)
	}
	return loc, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("storage.data_location: %w", err))
	}
	if err := validateLogLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if err := logging.ValidateFormat(c.Logging.Format); err != nil {
		errs = append(errs, fmt.Errorf("logging.format: %w", err))
	}
	return errors.Join(errs...)
}

func validateLogLevel(level string) error {
	_, err := logging.ParseLevel(level)
	return err
}

// ExpandHome resolves a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
