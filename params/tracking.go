package params

import (
	"github.com/rotblauer/triptrack/types/fault"
	"github.com/rotblauer/triptrack/types/sample"
	"time"
)

type TrackingConfig struct {
	// UpdateInterval is the fixed polling cadence. Each tick samples then dispatches.
	UpdateInterval time.Duration

	// EndpointURL receives the updates. If empty, it is derived from
	// DefaultBaseURL and the session ID when the session starts.
	EndpointURL string

	// CredentialToken is a fixed anti-forgery token.
	// If empty, the dispatcher's token source is consulted on every dispatch.
	CredentialToken string

	// SignificantMovementMeters gates the event-driven stream path.
	// The polling path ignores it.
	SignificantMovementMeters float64

	// OnUpdate is called with every sample that becomes the last known sample,
	// before it is dispatched.
	OnUpdate func(s sample.Sample) `json:"-"`

	// OnError is called for acquisition and dispatch failures.
	// Tracking continues after it returns, unless the failure was the bootstrap sample.
	OnError func(kind fault.Kind, detail string) `json:"-"`
}

func DefaultTrackingConfig() *TrackingConfig {
	return &TrackingConfig{
		UpdateInterval:            30 * time.Second,
		SignificantMovementMeters: 10,
	}
}

// WithDefaults returns a copy of c with zero values replaced by defaults.
// Nil callbacks become no-ops so call sites never nil-check.
func (c *TrackingConfig) WithDefaults() *TrackingConfig {
	d := DefaultTrackingConfig()
	if c == nil {
		c = d
	}
	out := *c
	if out.UpdateInterval <= 0 {
		out.UpdateInterval = d.UpdateInterval
	}
	if out.SignificantMovementMeters <= 0 {
		out.SignificantMovementMeters = d.SignificantMovementMeters
	}
	if out.OnUpdate == nil {
		out.OnUpdate = func(sample.Sample) {}
	}
	if out.OnError == nil {
		out.OnError = func(fault.Kind, string) {}
	}
	return &out
}
