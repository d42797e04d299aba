package dispatch

import (
	"fmt"
	"github.com/rotblauer/triptrack/types/fault"
	"github.com/tidwall/gjson"
	"net/http"
)

// Outcome is the result of one dispatch. It is one of
// Success, Rejected, TransportFailure or MissingCredential.
type Outcome interface {
	// Err is nil for Success, else a *fault.Error of the matching kind.
	Err() error
	String() string
	outcome()
}

// Ack is the server's acknowledgement body: {"status": "ok"|"error", "message": "..."}.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Raw     []byte `json:"-"`
}

// ParseAck reads an acknowledgement. Bodies that aren't JSON objects are an error;
// a missing status is not (only an explicit "error" status means rejection).
func ParseAck(body []byte) (Ack, error) {
	if !gjson.ValidBytes(body) {
		return Ack{}, fmt.Errorf("invalid ack: not JSON (%d bytes)", len(body))
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return Ack{}, fmt.Errorf("invalid ack: not an object")
	}
	return Ack{
		Status:  res.Get("status").String(),
		Message: res.Get("message").String(),
		Raw:     body,
	}, nil
}

func (a Ack) IsError() bool {
	return a.Status == "error"
}

type Success struct {
	Ack Ack
}

type Rejected struct {
	StatusCode int
	Reason     string
}

type TransportFailure struct {
	Cause error
}

// MissingCredential means no request was made: there was no token to send.
type MissingCredential struct{}

func (Success) outcome()           {}
func (Rejected) outcome()          {}
func (TransportFailure) outcome()  {}
func (MissingCredential) outcome() {}

func (Success) Err() error {
	return nil
}

func (r Rejected) Err() error {
	return fault.New(fault.Rejected, r.String())
}

func (t TransportFailure) Err() error {
	return fault.Wrap(fault.TransportFailure, t.Cause)
}

func (MissingCredential) Err() error {
	return fault.New(fault.MissingCredential, "no credential token available")
}

func (s Success) String() string {
	if s.Ack.Message != "" {
		return "ok: " + s.Ack.Message
	}
	return "ok"
}

func (r Rejected) String() string {
	if r.Reason == "" {
		return fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode))
	}
	return fmt.Sprintf("%d %s", r.StatusCode, r.Reason)
}

func (t TransportFailure) String() string {
	if t.Cause == nil {
		return "transport failure"
	}
	return t.Cause.Error()
}

func (MissingCredential) String() string {
	return "missing credential"
}

// Kind returns the fault kind for o, and ok=false for Success.
func Kind(o Outcome) (kind fault.Kind, ok bool) {
	switch o.(type) {
	case Success:
		return 0, false
	case Rejected:
		return fault.Rejected, true
	case TransportFailure:
		return fault.TransportFailure, true
	case MissingCredential:
		return fault.MissingCredential, true
	}
	return fault.Unknown, true
}
