package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "Pipeline Review"
	AppVersion = "1.0.0"

	// Environment prefix for envconfig
	EnvPrefix = "REVIEW"

	// Default data sources
	DefaultSummaryFile = "Company_Pipeline_Summary.csv"
	DefaultTrialsFile  = "Enriched_Clinical_Trials.csv"

	// DefaultWatchInterval is how often the sources are checked for changes
	DefaultWatchInterval = 5 * time.Second

	// Session defaults
	SessionCookieName  = "review_session"
	DefaultSessionTTL  = 12 * time.Hour
	DefaultMaxSessions = 10000
)
