package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), "alpha")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Name != "alpha" {
		t.Fatalf("expected name %q, got %q", "alpha", cfg.Name)
	}
	if cfg.MaxFrameLen == 0 {
		t.Fatalf("expected default max_frame_len to survive")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.toml")
	doc := "cookie = \"s3cr3t\"\nheartbeat_interval = \"1s\"\nheartbeat_timeout = \"4s\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path, "alpha")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(cfg.Cookie) != "s3cr3t" {
		t.Fatalf("expected cookie override, got %q", cfg.Cookie)
	}
	if cfg.HeartbeatInterval.Seconds() != 1 {
		t.Fatalf("expected heartbeat_interval override, got %v", cfg.HeartbeatInterval)
	}
}

func TestLoadRejectsInvalidHeartbeatOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.toml")
	doc := "heartbeat_interval = \"5s\"\nheartbeat_timeout = \"1s\"\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := Load(path, "alpha"); err == nil {
		t.Fatalf("expected validation error for heartbeat_timeout <= heartbeat_interval")
	}
}
