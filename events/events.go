package events

import (
	"github.com/rotblauer/triptrack/conceptual"
	"github.com/rotblauer/triptrack/dispatch"
	"github.com/rotblauer/triptrack/types/sample"
	"time"
)

// LocationUpdated is emitted after a sample was dispatched and the server acknowledged it.
// Each tracking session owns its own feed of these; there is no process-wide feed.
type LocationUpdated struct {
	SessionID conceptual.SessionID `json:"session_id"`
	Sample    sample.Sample        `json:"sample"`
	Ack       dispatch.Ack         `json:"ack"`

	// Path is which mechanism produced the sample: "bootstrap", "tick" or "stream".
	Path string    `json:"path"`
	At   time.Time `json:"at"`
}

// DispatchFailed is emitted when a dispatch produced anything but Success.
type DispatchFailed struct {
	SessionID conceptual.SessionID `json:"session_id"`
	Sample    sample.Sample        `json:"sample"`
	Outcome   string               `json:"outcome"`
	Kind      string               `json:"kind"`
	Path      string               `json:"path"`
	At        time.Time            `json:"at"`
}
