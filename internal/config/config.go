// Package config handles reading and writing <data_dir>/config.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for config.yaml.
type Config struct {
	Version int           `yaml:"version" validate:"min=1"`
	Storage StorageConfig `yaml:"storage"`
	Session SessionConfig `yaml:"session"`
	Sharing SharingConfig `yaml:"sharing"`
	Logging LoggingConfig `yaml:"logging"`
	History HistoryConfig `yaml:"history"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	DBFile string `yaml:"db_file" validate:"required"` // relative to the data dir unless absolute
}

// SessionConfig controls the in-progress session lifecycle.
type SessionConfig struct {
	TimeoutDays int  `yaml:"timeout_days" validate:"min=1,max=3650"`
	AutoResume  bool `yaml:"auto_resume"`
}

// SharingConfig controls where anonymized results are published.
type SharingConfig struct {
	Endpoint  string `yaml:"endpoint" validate:"omitempty,url"`
	TimeoutMS int    `yaml:"timeout_ms" validate:"min=100,max=60000"`
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// HistoryConfig controls pruning of archived sessions by "gauge clean".
type HistoryConfig struct {
	MaxAgeDays int `yaml:"max_age_days" validate:"min=0"` // 0 keeps everything
}

const configFile = "config.yaml"

var validate = newValidator()

// newValidator reports fields by their yaml names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ReadConfig reads config.yaml from dir, the data directory. A missing file
// yields DefaultConfig. Fields absent from the file keep their defaults.
func ReadConfig(dir string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteConfig validates cfg and writes it to config.yaml in dir.
// Creates dir if it does not exist.
func WriteConfig(dir string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, configFile), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{DBFile: "gauge.db"},
		Session: SessionConfig{TimeoutDays: 30},
		Sharing: SharingConfig{TimeoutMS: 5000},
		Logging: LoggingConfig{Level: "warn"},
	}
}

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, formatFieldError(e))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return field + " must be a URL"
	default:
		return field + " is invalid"
	}
}

// DBPath resolves the database file against the data directory.
func (c *Config) DBPath(dataDir string) string {
	if c.Storage.DBFile == ":memory:" || filepath.IsAbs(c.Storage.DBFile) {
		return c.Storage.DBFile
	}
	return filepath.Join(dataDir, c.Storage.DBFile)
}

// SessionTimeout returns the inactivity window as a duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutDays) * 24 * time.Hour
}

// SharingTimeout returns the publish request timeout.
func (c *Config) SharingTimeout() time.Duration {
	return time.Duration(c.Sharing.TimeoutMS) * time.Millisecond
}

// DefaultDataDir returns $HOME/.gauge.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".gauge"), nil
}
