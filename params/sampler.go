package params

import "time"

// SamplerOptions mirror the options a browser geolocation API takes.
// They are applied uniformly to one-shot requests and to watches.
type SamplerOptions struct {
	EnableHighAccuracy bool
	// Timeout bounds every acquisition. A request that takes longer fails with a timeout.
	Timeout time.Duration
	// MaximumAge is how old a cached position may be. Zero means never use a cached position.
	MaximumAge time.Duration
}

func DefaultSamplerOptions() SamplerOptions {
	return SamplerOptions{
		EnableHighAccuracy: true,
		Timeout:            10 * time.Second,
		MaximumAge:         0,
	}
}
