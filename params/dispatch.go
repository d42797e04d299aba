package params

import "time"

type DispatcherConfig struct {
	// Timeout bounds one HTTP round trip.
	Timeout time.Duration

	// SessionField is the form field name for the session identifier.
	SessionField string

	// MetricsLogInterval is how often dispatch rates get logged. Zero disables the log line.
	MetricsLogInterval time.Duration
}

func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		Timeout:            DefaultHTTPTimeout,
		SessionField:       SessionFieldName,
		MetricsLogInterval: 5 * time.Minute,
	}
}

// TokenCacheTTL is how long a token read from a cookie jar is reused before re-reading.
var TokenCacheTTL = 5 * time.Minute
