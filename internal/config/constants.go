package config

// Constants defining default values for application configuration
const (
	DefaultConfigPath = ""
	DefaultDBDriver   = "sqlite3"
	DefaultDBPath     = "./syncer.db"

	DefaultServerPort = 4000
	DefaultServerHost = "" // Empty string means all interfaces

	DefaultPlatformURL     = "https://weread.111965.xyz"
	DefaultUpstreamTimeout = 20 // Seconds per upstream call
	DefaultRequestRPS      = 0  // 0 means no client-side rate limit

	DefaultUpdateDelay     = 60  // Seconds between paced requests
	DefaultPageSize        = 20  // Articles in a full upstream page
	DefaultRetryBackoff    = 2   // Seconds, multiplied by the attempt number
	DefaultBadRequestDelay = 10  // Seconds to hold a malformed call before surfacing it
	DefaultCandidateLimit  = 10  // Accounts considered per selection
	DefaultRefreshInterval = 720 // Minutes between scheduled bulk refreshes, 0 disables

	DefaultTimezone = "Asia/Shanghai"
	DefaultLogLevel = "info"
)
