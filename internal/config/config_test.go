package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Source.UploadPlaylistID == "" {
		t.Error("expected upload playlist to be populated")
	}
	if cfg.Source.BatchSize != 50 {
		t.Errorf("expected batch size 50, got %d", cfg.Source.BatchSize)
	}
	if cfg.Processing.Timezone != "America/New_York" {
		t.Errorf("expected timezone 'America/New_York', got %q", cfg.Processing.Timezone)
	}
	if len(cfg.Processing.SponsorMarkers) != 1 || cfg.Processing.SponsorMarkers[0] != "#ad" {
		t.Errorf("expected sponsor markers [#ad], got %v", cfg.Processing.SponsorMarkers)
	}
	if cfg.Server.Port != 8050 {
		t.Errorf("expected port 8050, got %d", cfg.Server.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
source:
  upload_playlist_id: UUabc
  request_delay: 500ms
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Source.UploadPlaylistID != "UUabc" {
		t.Errorf("expected playlist 'UUabc', got %q", cfg.Source.UploadPlaylistID)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	delay, _ := cfg.Source.Delay()
	if delay != 500*time.Millisecond {
		t.Errorf("expected 500ms delay, got %v", delay)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Source.APIKeyEnv != "YOUTUBE_API_KEY" {
		t.Errorf("expected default api_key_env, got %q", cfg.Source.APIKeyEnv)
	}
	if cfg.Processing.Timezone != "America/New_York" {
		t.Errorf("expected default timezone, got %q", cfg.Processing.Timezone)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"delay":    "source:\n  request_delay: soon\n",
		"timezone": "processing:\n  timezone: Mars/Olympus\n",
		"start":    "processing:\n  start_date: 11/08/2010\n",
	}
	for name, data := range cases {
		if _, err := parse([]byte(data)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSinceEmpty(t *testing.T) {
	p := Processing{}
	since, err := p.Since()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !since.IsZero() {
		t.Errorf("expected zero time, got %v", since)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Source.ChannelID == "" {
		t.Error("expected channel id to be populated from file")
	}
}

func TestResolveExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
