package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncer.yaml")
	content := `database:
  driver: postgres
  path: postgres://localhost/syncer?sslmode=disable
platform:
  url: http://platform.local
  timeout: 5s
sync:
  update_delay: 30s
  page_size: 10
  refresh_interval: 2h
log_level: warn
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := DefaultConfig()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.DBDriver != "postgres" {
		t.Errorf("DBDriver = %q, want postgres", cfg.DBDriver)
	}
	if cfg.PlatformURL != "http://platform.local" {
		t.Errorf("PlatformURL = %q", cfg.PlatformURL)
	}
	if cfg.UpstreamTimeout != 5*time.Second {
		t.Errorf("UpstreamTimeout = %v, want 5s", cfg.UpstreamTimeout)
	}
	if cfg.UpdateDelay != 30*time.Second {
		t.Errorf("UpdateDelay = %v, want 30s", cfg.UpdateDelay)
	}
	if cfg.PageSize != 10 {
		t.Errorf("PageSize = %d, want 10", cfg.PageSize)
	}
	if cfg.RefreshInterval != 2*time.Hour {
		t.Errorf("RefreshInterval = %v, want 2h", cfg.RefreshInterval)
	}
	if cfg.LogLevel != zerolog.WarnLevel {
		t.Errorf("LogLevel = %v, want warn", cfg.LogLevel)
	}
	// Untouched settings keep their defaults.
	if cfg.ServerPort != DefaultServerPort {
		t.Errorf("ServerPort = %d, want default %d", cfg.ServerPort, DefaultServerPort)
	}
}

func TestLoadFileInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncer.yaml")
	if err := os.WriteFile(path, []byte("sync:\n  update_delay: soon\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := DefaultConfig().LoadFile(path); err == nil {
		t.Fatal("LoadFile() expected error for invalid duration")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SYNCER_UPDATE_DELAY", "15")
	t.Setenv("SYNCER_REFRESH_INTERVAL", "90")
	t.Setenv("SYNCER_REQUEST_RPS", "0.5")
	t.Setenv("SYNCER_PAGE_SIZE", "not-a-number")

	cfg := DefaultConfig()
	cfg.ApplyEnv()

	if cfg.UpdateDelay != 15*time.Second {
		t.Errorf("UpdateDelay = %v, want 15s", cfg.UpdateDelay)
	}
	if cfg.RefreshInterval != 90*time.Minute {
		t.Errorf("RefreshInterval = %v, want 90m", cfg.RefreshInterval)
	}
	if cfg.RequestRPS != 0.5 {
		t.Errorf("RequestRPS = %v, want 0.5", cfg.RequestRPS)
	}
	if cfg.PageSize != DefaultPageSize {
		t.Errorf("PageSize = %d, want default on parse failure", cfg.PageSize)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"zero page size", func(c *Config) { c.PageSize = 0 }, true},
		{"negative delay", func(c *Config) { c.UpdateDelay = -time.Second }, true},
		{"bad timezone", func(c *Config) { c.Timezone = "Nowhere/Special" }, true},
		{"utc", func(c *Config) { c.Timezone = "UTC" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
