package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"configtrack/internal/capture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ProfileConfigTracker, cfg.Profile)
	assert.Equal(t, 1920, cfg.Browser.ViewportWidth)
	assert.Equal(t, 1080, cfg.Browser.ViewportHeight)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 500*time.Millisecond, cfg.GetPollInterval())
	assert.Equal(t, 30*time.Second, cfg.GetNavigationTimeout())
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Target, cfg.Target)
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configtrack.yaml")
	yml := `
profile: click-tracker
target: site/index.html
destination: out
browser:
  headless: true
  navigation_timeout: 5s
session:
  poll_interval: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProfileClickTracker, cfg.Profile)
	assert.Equal(t, "site/index.html", cfg.Target)
	assert.Equal(t, "out", cfg.Destination)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 5*time.Second, cfg.GetNavigationTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.GetPollInterval())
	// Untouched keys keep their defaults.
	assert.Equal(t, 1920, cfg.Browser.ViewportWidth)
	assert.True(t, cfg.Session.RecordDownloads)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profile: [unterminated"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configtrack.yaml")
	cfg := DefaultConfig()
	cfg.Profile = ProfileViewer
	cfg.Archive.Enabled = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProfileViewer, loaded.Profile)
	assert.True(t, loaded.Archive.Enabled)
}

func TestDurationFallbacks(t *testing.T) {
	cfg := &Config{}
	cfg.Session.PollInterval = "soon"
	cfg.Browser.NavigationTimeout = "-1s"
	assert.Equal(t, 500*time.Millisecond, cfg.GetPollInterval())
	assert.Equal(t, 30*time.Second, cfg.GetNavigationTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.GetIdleWindow())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unknown profile", mutate: func(c *Config) { c.Profile = "recorder" }, wantErr: "unknown profile"},
		{name: "no target", mutate: func(c *Config) { c.Target = "" }, wantErr: "target not configured"},
		{name: "no destination", mutate: func(c *Config) { c.Destination = "" }, wantErr: "destination not configured"},
		{name: "bad viewport", mutate: func(c *Config) { c.Browser.ViewportWidth = -1 }, wantErr: "invalid viewport"},
		{name: "archive without path", mutate: func(c *Config) { c.Archive = ArchiveConfig{Enabled: true} }, wantErr: "archive enabled"},
		{name: "archive driver", mutate: func(c *Config) { c.Archive.Driver = "postgres" }, wantErr: "unknown archive driver"},
		{name: "capture mode", mutate: func(c *Config) { c.Session.Mode = "verbose" }, wantErr: "unknown capture mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestGetProfile_ModeOverride(t *testing.T) {
	cfg := DefaultConfig()
	p, err := cfg.GetProfile()
	require.NoError(t, err)
	assert.Equal(t, capture.ModeClassified, p.Mode)

	cfg.Session.Mode = "RAW"
	p, err = cfg.GetProfile()
	require.NoError(t, err)
	assert.Equal(t, capture.ModeRaw, p.Mode)
	assert.Equal(t, "config_log", p.LogPrefix, "only the mode changes")

	base, err := LookupProfile(ProfileConfigTracker)
	require.NoError(t, err)
	assert.Equal(t, capture.ModeClassified, base.Mode, "built-in profiles are not mutated")
}

func TestProfiles(t *testing.T) {
	assert.Equal(t, []string{ProfileClickTracker, ProfileConfigTracker, ProfileViewer}, ProfileNames())

	p, err := LookupProfile(ProfileConfigTracker)
	require.NoError(t, err)
	assert.Equal(t, capture.ModeClassified, p.Mode)
	assert.True(t, p.Downloads)
	assert.Equal(t, "config_log", p.LogPrefix)

	p, err = LookupProfile(ProfileClickTracker)
	require.NoError(t, err)
	assert.Equal(t, capture.ModeRaw, p.Mode)
	assert.Equal(t, "click_log", p.LogPrefix)

	p, err = LookupProfile(ProfileViewer)
	require.NoError(t, err)
	assert.False(t, p.PersistLog)

	_, err = LookupProfile("")
	assert.Error(t, err)
}

func TestLoggingConfig_IsCategoryEnabled(t *testing.T) {
	c := LoggingConfig{}
	assert.True(t, c.IsCategoryEnabled("browser"))

	c.Categories = map[string]bool{"browser": false}
	assert.False(t, c.IsCategoryEnabled("browser"))
	assert.True(t, c.IsCategoryEnabled("capture"))
}
