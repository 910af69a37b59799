package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"configtrack/internal/capture"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "configtrack.yaml"

// Config holds all configtrack configuration.
type Config struct {
	// Profile selects one of the built-in capture profiles.
	Profile string `yaml:"profile"`

	// Target is the tutorial page, a local path or a URL.
	Target string `yaml:"target"`

	// Destination receives session logs and downloaded files. It must exist.
	Destination string `yaml:"destination"`

	Browser BrowserConfig `yaml:"browser"`
	Session SessionConfig `yaml:"session"`
	Logging LoggingConfig `yaml:"logging"`
	Archive ArchiveConfig `yaml:"archive"`
}

// BrowserConfig configures the controlled Chrome instance.
type BrowserConfig struct {
	DebuggerURL       string   `yaml:"debugger_url"` // attach instead of launching
	Bin               string   `yaml:"bin"`
	Flags             []string `yaml:"flags"` // extra launch flags, "--name=value"
	Headless          bool     `yaml:"headless"`
	ViewportWidth     int      `yaml:"viewport_width"`
	ViewportHeight    int      `yaml:"viewport_height"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
	IdleWindow        string   `yaml:"idle_window"` // quiet period that counts as network idle
}

// SessionConfig configures the capture session.
type SessionConfig struct {
	PollInterval    string `yaml:"poll_interval"`
	RecordDownloads bool   `yaml:"record_downloads"`
	QueueSize       int    `yaml:"queue_size"`
	Mode            string `yaml:"mode,omitempty"` // overrides the profile's capture mode
}

// ArchiveConfig configures the optional session history database.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Driver  string `yaml:"driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Profile:     ProfileConfigTracker,
		Target:      filepath.Join("training", "index.html"),
		Destination: "training",

		Browser: BrowserConfig{
			Headless:          false,
			ViewportWidth:     1920,
			ViewportHeight:    1080,
			NavigationTimeout: "30s",
			IdleWindow:        "500ms",
		},

		Session: SessionConfig{
			PollInterval:    "500ms",
			RecordDownloads: true,
			QueueSize:       256,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},

		Archive: ArchiveConfig{
			Enabled: false,
			Path:    filepath.Join("training", "sessions.db"),
			Driver:  "sqlite",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONFIGTRACK_PROFILE"); v != "" {
		c.Profile = v
	}
	if v := os.Getenv("CONFIGTRACK_TARGET"); v != "" {
		c.Target = v
	}
	if v := os.Getenv("CONFIGTRACK_DEST"); v != "" {
		c.Destination = v
	}
	if v := os.Getenv("CONFIGTRACK_BROWSER_BIN"); v != "" {
		c.Browser.Bin = v
	}
	if v := os.Getenv("CONFIGTRACK_DEBUGGER_URL"); v != "" {
		c.Browser.DebuggerURL = v
	}
	if v := os.Getenv("CONFIGTRACK_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("CONFIGTRACK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// GetPollInterval returns the liveness poll interval.
func (c *Config) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.Session.PollInterval)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetNavigationTimeout returns the bound on navigation plus network idle.
func (c *Config) GetNavigationTimeout() time.Duration {
	d, err := time.ParseDuration(c.Browser.NavigationTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetIdleWindow returns the quiet period that counts as network idle.
func (c *Config) GetIdleWindow() time.Duration {
	d, err := time.ParseDuration(c.Browser.IdleWindow)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// GetProfile resolves the configured profile.
// session.mode, when set, replaces the profile's capture mode.
func (c *Config) GetProfile() (Profile, error) {
	p, err := LookupProfile(c.Profile)
	if err != nil {
		return Profile{}, err
	}
	if c.Session.Mode != "" {
		mode, ok := capture.ParseMode(c.Session.Mode)
		if !ok {
			return Profile{}, fmt.Errorf("unknown capture mode %q (classified, raw, mirror)", c.Session.Mode)
		}
		p.Mode = mode
	}
	return p, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.GetProfile(); err != nil {
		errs = append(errs, err)
	}
	if c.Target == "" {
		errs = append(errs, errors.New("target not configured (set target, CONFIGTRACK_TARGET or pass it to run)"))
	}
	if c.Destination == "" {
		errs = append(errs, errors.New("destination not configured"))
	}
	if c.Browser.ViewportWidth < 0 || c.Browser.ViewportHeight < 0 {
		errs = append(errs, fmt.Errorf("invalid viewport %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight))
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		errs = append(errs, errors.New("archive enabled without a path"))
	}
	switch c.Archive.Driver {
	case "", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("unknown archive driver %q", c.Archive.Driver))
	}
	return errors.Join(errs...)
}
