// Package config loads the control panel configuration from a YAML file,
// an optional .env file and SRVDRV_* environment variables, in that order
// of increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	yaml "go.yaml.in/yaml/v3"

	"github.com/axondata/go-srvdrv"
)

// Environment variables that override the file
const (
	EnvStartStopTimeout     = "SRVDRV_START_STOP_TIMEOUT"
	EnvPauseContinueTimeout = "SRVDRV_PAUSE_CONTINUE_TIMEOUT"
	EnvPollInterval         = "SRVDRV_POLL_INTERVAL"
	EnvRefreshTimeout       = "SRVDRV_REFRESH_TIMEOUT"
	EnvEnumerateTimeout     = "SRVDRV_ENUMERATE_TIMEOUT"
	EnvShowServices         = "SRVDRV_SHOW_SERVICES"
	EnvShowDrivers          = "SRVDRV_SHOW_DRIVERS"
	EnvSearch               = "SRVDRV_SEARCH"
	EnvLogLevel             = "SRVDRV_LOG_LEVEL"
	EnvLogFormat            = "SRVDRV_LOG_FORMAT"
	EnvLogFile              = "SRVDRV_LOG_FILE"
	EnvStateFile            = "SRVDRV_STATE_FILE"
	EnvDemo                 = "SRVDRV_DEMO"
)

// Config is the resolved configuration
type Config struct {
	StartStopTimeout     time.Duration
	PauseContinueTimeout time.Duration
	PollInterval         time.Duration
	RefreshTimeout       time.Duration
	EnumerateTimeout     time.Duration

	// Criteria are the initial filter criteria
	Criteria srvdrv.Criteria

	LogLevel  string
	LogFormat string
	LogFile   string

	// StateFile persists the filter criteria and selection between runs
	StateFile string

	// Demo uses the in-memory simulator instead of the OS
	Demo bool
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		StartStopTimeout:     srvdrv.DefaultStartStopTimeout,
		PauseContinueTimeout: srvdrv.DefaultPauseContinueTimeout,
		PollInterval:         srvdrv.DefaultPollInterval,
		RefreshTimeout:       srvdrv.DefaultRefreshTimeout,
		EnumerateTimeout:     srvdrv.DefaultEnumerateTimeout,
		Criteria:             srvdrv.DefaultCriteria(),
		LogLevel:             "info",
		LogFormat:            "console",
	}
}

// file mirrors the YAML layout. Durations stay strings until validated.
type file struct {
	Timeouts struct {
		StartStop     string `yaml:"start_stop"`
		PauseContinue string `yaml:"pause_continue"`
		PollInterval  string `yaml:"poll_interval"`
		Refresh       string `yaml:"refresh"`
		Enumerate     string `yaml:"enumerate"`
	} `yaml:"timeouts"`
	Filter struct {
		ShowServices *bool  `yaml:"show_services"`
		ShowDrivers  *bool  `yaml:"show_drivers"`
		Search       string `yaml:"search"`
	} `yaml:"filter"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
	StateFile string `yaml:"state_file"`
	Demo      bool   `yaml:"demo"`
}

// Load reads path (skipped when empty or missing), then the .env files
// (the working directory's .env when none are given), then the environment.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := loadDotenv(envFiles...); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotenv(envFiles ...string) error {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv.Load never overrides variables already set
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w", path, err)
	}

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"timeouts.start_stop", f.Timeouts.StartStop, &c.StartStopTimeout},
		{"timeouts.pause_continue", f.Timeouts.PauseContinue, &c.PauseContinueTimeout},
		{"timeouts.poll_interval", f.Timeouts.PollInterval, &c.PollInterval},
		{"timeouts.refresh", f.Timeouts.Refresh, &c.RefreshTimeout},
		{"timeouts.enumerate", f.Timeouts.Enumerate, &c.EnumerateTimeout},
	}
	for _, d := range durations {
		v, err := ParseDurationOrDefault(d.field, d.raw, *d.dst)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		*d.dst = v
	}

	if f.Filter.ShowServices != nil {
		c.Criteria.ShowServices = *f.Filter.ShowServices
	}
	if f.Filter.ShowDrivers != nil {
		c.Criteria.ShowDrivers = *f.Filter.ShowDrivers
	}
	c.Criteria.SearchText = f.Filter.Search

	setString(&c.LogLevel, f.Log.Level)
	setString(&c.LogFormat, f.Log.Format)
	setString(&c.LogFile, f.Log.File)
	setString(&c.StateFile, f.StateFile)
	c.Demo = c.Demo || f.Demo
	return nil
}

func (c *Config) applyEnv() error {
	durations := []struct {
		env string
		dst *time.Duration
	}{
		{EnvStartStopTimeout, &c.StartStopTimeout},
		{EnvPauseContinueTimeout, &c.PauseContinueTimeout},
		{EnvPollInterval, &c.PollInterval},
		{EnvRefreshTimeout, &c.RefreshTimeout},
		{EnvEnumerateTimeout, &c.EnumerateTimeout},
	}
	for _, d := range durations {
		v, err := ParseDurationOrDefault(d.env, os.Getenv(d.env), *d.dst)
		if err != nil {
			return err
		}
		*d.dst = v
	}

	bools := []struct {
		env string
		dst *bool
	}{
		{EnvShowServices, &c.Criteria.ShowServices},
		{EnvShowDrivers, &c.Criteria.ShowDrivers},
		{EnvDemo, &c.Demo},
	}
	for _, b := range bools {
		raw := strings.TrimSpace(os.Getenv(b.env))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", b.env, raw)
		}
		*b.dst = v
	}

	if v, ok := os.LookupEnv(EnvSearch); ok {
		c.Criteria.SearchText = v
	}
	setString(&c.LogLevel, os.Getenv(EnvLogLevel))
	setString(&c.LogFormat, os.Getenv(EnvLogFormat))
	setString(&c.LogFile, os.Getenv(EnvLogFile))
	setString(&c.StateFile, os.Getenv(EnvStateFile))
	return nil
}

// Validate checks the log settings and that the poll interval fits inside
// the shorter wait budget
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log.format: must be console or json, got %q", c.LogFormat)
	}
	if c.PollInterval >= c.PauseContinueTimeout || c.PollInterval >= c.StartStopTimeout {
		return fmt.Errorf("timeouts.poll_interval: %s must be shorter than every wait budget", c.PollInterval)
	}
	return nil
}

// ControllerOptions returns the options for srvdrv.NewController
func (c *Config) ControllerOptions(log zerolog.Logger) []srvdrv.Option {
	return []srvdrv.Option{
		srvdrv.WithStartStopTimeout(c.StartStopTimeout),
		srvdrv.WithPauseContinueTimeout(c.PauseContinueTimeout),
		srvdrv.WithPollInterval(c.PollInterval),
		srvdrv.WithRefreshTimeout(c.RefreshTimeout),
		srvdrv.WithLogger(log),
	}
}

// Apply updates a running controller's budgets
func (c *Config) Apply(ctl *srvdrv.Controller) {
	ctl.Reconfigure(
		srvdrv.WithStartStopTimeout(c.StartStopTimeout),
		srvdrv.WithPauseContinueTimeout(c.PauseContinueTimeout),
		srvdrv.WithPollInterval(c.PollInterval),
		srvdrv.WithRefreshTimeout(c.RefreshTimeout),
	)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// ParseDurationField parses a non-negative duration. An empty value is zero.
func ParseDurationField(field, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", field)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero values
func ParseDurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(field, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
