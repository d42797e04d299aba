package params

import "time"

type ShareConfig struct {
	// BaseURL is the web app root; the share path is appended to it.
	BaseURL string
	Timeout time.Duration
}

func DefaultShareConfig() *ShareConfig {
	return &ShareConfig{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultHTTPTimeout,
	}
}
