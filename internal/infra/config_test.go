package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ORACLE_CONFIG_FILE", "")
	t.Setenv("VIDEO_POLL_INTERVAL_SECONDS", "")
	t.Setenv("VIDEO_POLL_TIMEOUT_SECONDS", "")
	t.Setenv("CREDENTIALS_DB_PATH", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Video.PollInterval != 10*time.Second {
		t.Fatalf("PollInterval mismatch: got %v", cfg.Video.PollInterval)
	}
	if cfg.Video.PollTimeout != 15*time.Minute {
		t.Fatalf("PollTimeout mismatch: got %v", cfg.Video.PollTimeout)
	}
	if cfg.Pipeline.MaxSources != 5 || cfg.Pipeline.MaxExtracted != 2 {
		t.Fatalf("unexpected source limits: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.PerSourceChars != 2000 || cfg.Pipeline.MaxContextChars != 15000 {
		t.Fatalf("unexpected context limits: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.MaxExclusions != 15 {
		t.Fatalf("MaxExclusions mismatch: got %d", cfg.Pipeline.MaxExclusions)
	}
}

func TestLoadConfigStorageBaseURLInheritsPort(t *testing.T) {
	t.Setenv("ORACLE_CONFIG_FILE", "")
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_PATH", t.TempDir())
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigYAMLOverlayLosesToEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oracle.yaml")
	body := []byte("gemini:\n  text_model: from-file\n  video_model: veo-file\nvideo:\n  poll_interval_seconds: 3\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ORACLE_CONFIG_FILE", path)
	t.Setenv("GEMINI_TEXT_MODEL", "")
	t.Setenv("GEMINI_VIDEO_MODEL", "veo-env")
	t.Setenv("VIDEO_POLL_INTERVAL_SECONDS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Gemini.TextModel != "from-file" {
		t.Fatalf("TextModel mismatch: got %q", cfg.Gemini.TextModel)
	}
	if cfg.Gemini.VideoModel != "veo-env" {
		t.Fatalf("VideoModel mismatch: got %q", cfg.Gemini.VideoModel)
	}
	if cfg.Video.PollInterval != 3*time.Second {
		t.Fatalf("PollInterval mismatch: got %v", cfg.Video.PollInterval)
	}
	if cfg.Gemini.BaseURL == "" {
		t.Fatalf("expected default base url to survive the overlay")
	}
}

func TestLoadConfigRejectsZeroPollInterval(t *testing.T) {
	t.Setenv("ORACLE_CONFIG_FILE", "")
	t.Setenv("VIDEO_POLL_INTERVAL_SECONDS", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for zero poll interval")
	}
}

func TestLoadConfigCORSOriginsFromEnv(t *testing.T) {
	t.Setenv("ORACLE_CONFIG_FILE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example" || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSOrigins)
	}
}
