package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
)

// Config holds all configuration for the application
type Config struct {
	// Storage settings
	DBDriver string
	DBPath   string // SQLite file path, or a PostgreSQL DSN when DBDriver is "postgres"

	// Server settings
	ServerHost string
	ServerPort int
	APIKey     string

	// Upstream platform settings
	PlatformURL     string
	UpstreamTimeout time.Duration
	RequestRPS      float64

	// Sync settings
	UpdateDelay     time.Duration
	PageSize        int
	RetryBackoff    time.Duration
	BadRequestDelay time.Duration
	CandidateLimit  int
	RefreshInterval time.Duration
	Timezone        string

	// Log settings
	LogLevel zerolog.Level
}

// DefaultConfig returns an initial configuration with hardcoded defaults.
func DefaultConfig() *Config {
	logLevel, _ := zerolog.ParseLevel(DefaultLogLevel)

	return &Config{
		DBDriver:        DefaultDBDriver,
		DBPath:          DefaultDBPath,
		ServerHost:      DefaultServerHost,
		ServerPort:      DefaultServerPort,
		PlatformURL:     DefaultPlatformURL,
		UpstreamTimeout: time.Duration(DefaultUpstreamTimeout) * time.Second,
		RequestRPS:      DefaultRequestRPS,
		UpdateDelay:     time.Duration(DefaultUpdateDelay) * time.Second,
		PageSize:        DefaultPageSize,
		RetryBackoff:    time.Duration(DefaultRetryBackoff) * time.Second,
		BadRequestDelay: time.Duration(DefaultBadRequestDelay) * time.Second,
		CandidateLimit:  DefaultCandidateLimit,
		RefreshInterval: time.Duration(DefaultRefreshInterval) * time.Minute,
		Timezone:        DefaultTimezone,
		LogLevel:        logLevel,
	}
}

// ApplyEnv overrides fields with any SYNCER_* environment variables that are set.
func (c *Config) ApplyEnv() {
	c.DBDriver = GetEnvString("SYNCER_DB_DRIVER", c.DBDriver)
	c.DBPath = GetEnvString("SYNCER_DB_PATH", c.DBPath)
	c.ServerHost = GetEnvString("SYNCER_HOST", c.ServerHost)
	c.ServerPort = GetEnvInt("SYNCER_PORT", c.ServerPort)
	c.APIKey = GetEnvString("SYNCER_API_KEY", c.APIKey)
	c.PlatformURL = GetEnvString("SYNCER_PLATFORM_URL", c.PlatformURL)
	c.UpstreamTimeout = GetEnvSeconds("SYNCER_UPSTREAM_TIMEOUT", c.UpstreamTimeout)
	c.RequestRPS = GetEnvFloat("SYNCER_REQUEST_RPS", c.RequestRPS)
	c.UpdateDelay = GetEnvSeconds("SYNCER_UPDATE_DELAY", c.UpdateDelay)
	c.PageSize = GetEnvInt("SYNCER_PAGE_SIZE", c.PageSize)
	c.RetryBackoff = GetEnvSeconds("SYNCER_RETRY_BACKOFF", c.RetryBackoff)
	c.BadRequestDelay = GetEnvSeconds("SYNCER_BAD_REQUEST_DELAY", c.BadRequestDelay)
	c.CandidateLimit = GetEnvInt("SYNCER_ACCOUNT_CANDIDATES", c.CandidateLimit)
	c.RefreshInterval = GetEnvDuration("SYNCER_REFRESH_INTERVAL", c.RefreshInterval)
	c.Timezone = GetEnvString("SYNCER_TIMEZONE", c.Timezone)
	c.LogLevel = GetEnvLogLevel("SYNCER_LOG_LEVEL", c.LogLevel)
}

// Validate reports settings the sync engine cannot run with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	if c.PlatformURL == "" {
		return fmt.Errorf("platform URL is required")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.UpdateDelay < 0 || c.RetryBackoff < 0 || c.BadRequestDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the reference timezone used for day-scoped account blocks.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ListenAddr returns the formatted listen address for the HTTP server.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
