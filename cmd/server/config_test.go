package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/career-mentor/mentor-web-ui/internal/services"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Backend.URL != services.DefaultBackendURL {
		t.Errorf("Backend.URL = %q, want %q", cfg.Backend.URL, services.DefaultBackendURL)
	}
	if cfg.Backend.UploadTimeout != 60*time.Second || cfg.Backend.QueryTimeout != 180*time.Second {
		t.Errorf("timeouts = %v/%v, want 60s/180s", cfg.Backend.UploadTimeout, cfg.Backend.QueryTimeout)
	}
	if cfg.Backend.AnswerMarker != "Your Answer:" {
		t.Errorf("AnswerMarker = %q", cfg.Backend.AnswerMarker)
	}
	if cfg.Store.Kind != storeMemory {
		t.Errorf("Store.Kind = %q, want memory", cfg.Store.Kind)
	}
}

func TestLoadConfigRequiredMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), true); err == nil {
		t.Error("loadConfig() should fail when an explicit config file is missing")
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())

	path := writeConfig(t, `
port: "9000"
sessionTTL: 2h
backend:
  url: http://localhost:7860
  queryTimeout: 5m
  disableAnswerTrim: true
store:
  kind: bolt
  path: /tmp/mentor/sessions.db
log:
  level: debug
  format: json
`)

	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Port != "9000" || cfg.SessionTTL != 2*time.Hour {
		t.Errorf("Port/SessionTTL = %q/%v", cfg.Port, cfg.SessionTTL)
	}
	if cfg.Backend.URL != "http://localhost:7860" || cfg.Backend.QueryTimeout != 5*time.Minute {
		t.Errorf("Backend = %+v", cfg.Backend)
	}
	if cfg.Backend.UploadTimeout != 60*time.Second {
		t.Errorf("UploadTimeout = %v, want default 60s", cfg.Backend.UploadTimeout)
	}
	if !cfg.Backend.DisableAnswerTrim || cfg.Backend.AnswerMarker != services.DefaultAnswerMarker {
		t.Errorf("Backend trim = %v/%q, want disabled with default marker",
			cfg.Backend.DisableAnswerTrim, cfg.Backend.AnswerMarker)
	}
	if cfg.Store.Kind != storeBolt || cfg.Store.Path != "/tmp/mentor/sessions.db" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())

	path := writeConfig(t, "port: \"9000\"\n")
	t.Setenv("MENTOR_PORT", "9100")
	t.Setenv("MENTOR_BACKEND_URL", "http://backend:7860")
	t.Setenv("MENTOR_BACKEND_QUERY_TIMEOUT", "30s")
	t.Setenv("MENTOR_STORE_KIND", "redis")
	t.Setenv("MENTOR_STORE_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Port != "9100" {
		t.Errorf("Port = %q, want 9100", cfg.Port)
	}
	if cfg.Backend.URL != "http://backend:7860" || cfg.Backend.QueryTimeout != 30*time.Second {
		t.Errorf("Backend = %+v", cfg.Backend)
	}
	if cfg.Store.Kind != storeRedis || cfg.Store.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("Store = %+v", cfg.Store)
	}
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MENTOR_PORT=9200\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("MENTOR_PORT") })

	cfg, err := loadConfig(filepath.Join(dir, "missing.yaml"), false)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Port != "9200" {
		t.Errorf("Port = %q, want 9200 from .env", cfg.Port)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*config) {},
		},
		{
			name:    "unknown store",
			mutate:  func(c *config) { c.Store.Kind = "sqlite" },
			wantErr: "unknown store kind",
		},
		{
			name:    "redis without url",
			mutate:  func(c *config) { c.Store.Kind = storeRedis },
			wantErr: "redisURL is required",
		},
		{
			name:    "bolt without path",
			mutate:  func(c *config) { c.Store.Kind = storeBolt; c.Store.Path = "" },
			wantErr: "path is required",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *config) { c.Backend.QueryTimeout = -time.Second },
			wantErr: "must not be negative",
		},
		{
			name:    "empty backend url",
			mutate:  func(c *config) { c.Backend.URL = "" },
			wantErr: "backend url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestStoreOpenBolt(t *testing.T) {
	s := storeConfig{Kind: storeBolt, Path: filepath.Join(t.TempDir(), "nested", "sessions.db")}

	store, closer, err := s.open(t.Context(), time.Hour)
	if err != nil {
		t.Fatalf("open() error = %v", err)
	}
	defer closer.Close()

	if _, err := store.Session(t.Context(), "x"); err != nil {
		t.Errorf("Session() error = %v", err)
	}
}
