package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Source     Source     `yaml:"source"`
	Processing Processing `yaml:"processing"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
}

type Source struct {
	ChannelID        string `yaml:"channel_id"`
	UploadPlaylistID string `yaml:"upload_playlist_id"`
	APIKeyEnv        string `yaml:"api_key_env"`
	BaseURL          string `yaml:"base_url"`
	PageSize         int    `yaml:"page_size"`
	BatchSize        int    `yaml:"batch_size"`
	RequestDelay     string `yaml:"request_delay"`
}

type Processing struct {
	Timezone       string   `yaml:"timezone"`
	StartDate      string   `yaml:"start_date"`
	SponsorMarkers []string `yaml:"sponsor_markers"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for nlstats.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "nlstats")
}

// DataDir returns the XDG data directory for nlstats.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "nlstats")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/nlstats/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'nlstats init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Source: Source{
			APIKeyEnv:    "YOUTUBE_API_KEY",
			BaseURL:      "https://youtube.googleapis.com/youtube/v3",
			PageSize:     50,
			BatchSize:    50,
			RequestDelay: "2s",
		},
		Processing: Processing{
			Timezone:       "America/New_York",
			StartDate:      "2010-11-08",
			SponsorMarkers: []string{"#ad"},
		},
		Server:  Server{Port: 8050},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if _, err := cfg.Source.Delay(); err != nil {
		return nil, err
	}
	if _, err := cfg.Processing.Location(); err != nil {
		return nil, err
	}
	if _, err := cfg.Processing.Since(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// APIKey reads the source API key from the configured environment variable.
func (s Source) APIKey() string {
	return os.Getenv(s.APIKeyEnv)
}

// Delay parses the inter-request delay. An empty value means no delay.
func (s Source) Delay() (time.Duration, error) {
	if s.RequestDelay == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.RequestDelay)
	if err != nil {
		return 0, fmt.Errorf("invalid source.request_delay %q: %w", s.RequestDelay, err)
	}
	return d, nil
}

// Location loads the reporting timezone.
func (p Processing) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid processing.timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// Since parses the start date; the zero time means no lower bound.
func (p Processing) Since() (time.Time, error) {
	if p.StartDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", p.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid processing.start_date %q: %w", p.StartDate, err)
	}
	return t, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
