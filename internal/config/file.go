package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// fileSettings mirrors the YAML configuration file. Zero values leave the
// current setting untouched. Durations are written as Go duration strings.
type fileSettings struct {
	Database struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"database"`
	Server struct {
		Host   string `yaml:"host"`
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"server"`
	Platform struct {
		URL        string  `yaml:"url"`
		Timeout    string  `yaml:"timeout"`
		RequestRPS float64 `yaml:"request_rps"`
	} `yaml:"platform"`
	Sync struct {
		UpdateDelay     string `yaml:"update_delay"`
		PageSize        int    `yaml:"page_size"`
		RetryBackoff    string `yaml:"retry_backoff"`
		BadRequestDelay string `yaml:"bad_request_delay"`
		CandidateLimit  int    `yaml:"account_candidates"`
		RefreshInterval string `yaml:"refresh_interval"`
		Timezone        string `yaml:"timezone"`
	} `yaml:"sync"`
	LogLevel string `yaml:"log_level"`
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var s fileSettings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}

	setString(&c.DBDriver, s.Database.Driver)
	setString(&c.DBPath, s.Database.Path)
	setString(&c.ServerHost, s.Server.Host)
	setInt(&c.ServerPort, s.Server.Port)
	setString(&c.APIKey, s.Server.APIKey)
	setString(&c.PlatformURL, s.Platform.URL)
	if s.Platform.RequestRPS > 0 {
		c.RequestRPS = s.Platform.RequestRPS
	}
	setInt(&c.PageSize, s.Sync.PageSize)
	setInt(&c.CandidateLimit, s.Sync.CandidateLimit)
	setString(&c.Timezone, s.Sync.Timezone)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"platform.timeout", s.Platform.Timeout, &c.UpstreamTimeout},
		{"sync.update_delay", s.Sync.UpdateDelay, &c.UpdateDelay},
		{"sync.retry_backoff", s.Sync.RetryBackoff, &c.RetryBackoff},
		{"sync.bad_request_delay", s.Sync.BadRequestDelay, &c.BadRequestDelay},
		{"sync.refresh_interval", s.Sync.RefreshInterval, &c.RefreshInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		val, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", d.name, err)
		}
		*d.dst = val
	}

	if s.LogLevel != "" {
		level, err := zerolog.ParseLevel(s.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log_level: %w", err)
		}
		c.LogLevel = level
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
