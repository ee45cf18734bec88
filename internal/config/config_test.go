package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load with missing file: %v", err)
	}

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("expected default http_port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Storage.Type != "bolt" {
		t.Errorf("expected default storage type bolt, got %q", cfg.Storage.Type)
	}
	if cfg.Session.InitialMode != "lap" {
		t.Errorf("expected default initial_mode lap, got %q", cfg.Session.InitialMode)
	}
	if len(cfg.Session.Hands) != 4 {
		t.Fatalf("expected 4 default hands, got %d", len(cfg.Session.Hands))
	}
	if cfg.Session.Hands[1].Offset != 15 {
		t.Errorf("expected second hand offset 15, got %v", cfg.Session.Hands[1].Offset)
	}
	if cfg.Cache.Version != "pace-clock-v7" {
		t.Errorf("expected default cache version pace-clock-v7, got %q", cfg.Cache.Version)
	}
	if !cfg.Settings.Guard {
		t.Error("expected guard default true")
	}
	if cfg.Settings.TrackRest {
		t.Error("expected track_rest default false")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9000
session:
  initial_mode: rest
  guard_window: 750ms
cache:
  version: pace-clock-v8
storage:
  type: redis
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.HTTPPort != 9000 {
		t.Errorf("expected http_port 9000, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Session.InitialMode != "rest" {
		t.Errorf("expected initial_mode rest, got %q", cfg.Session.InitialMode)
	}
	if cfg.Session.GuardWindow != "750ms" {
		t.Errorf("expected guard_window 750ms, got %q", cfg.Session.GuardWindow)
	}
	if cfg.Cache.Version != "pace-clock-v8" {
		t.Errorf("expected cache version pace-clock-v8, got %q", cfg.Cache.Version)
	}
	if cfg.Storage.Type != "redis" {
		t.Errorf("expected storage type redis, got %q", cfg.Storage.Type)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad initial mode",
			yaml:    "session:\n  initial_mode: warmup\n",
			wantErr: "initial_mode",
		},
		{
			name:    "bad guard window",
			yaml:    "session:\n  guard_window: soon\n",
			wantErr: "guard_window",
		},
		{
			name:    "bad storage type",
			yaml:    "storage:\n  type: sqlite\n",
			wantErr: "storage.type",
		},
		{
			name:    "hand offset out of range",
			yaml:    "session:\n  hands:\n    - color: '#fff'\n      offset: 61\n",
			wantErr: "offset",
		},
		{
			name:    "relative manifest path",
			yaml:    "cache:\n  manifest:\n    - index.html\n",
			wantErr: "manifest",
		},
		{
			name:    "empty cache version",
			yaml:    "cache:\n  version: ''\n",
			wantErr: "cache.version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
