// Package dispatch sends position samples to the server.
// Sending never fails in the Go sense: every result, good or bad, is an Outcome,
// so a bad update can't break whatever loop is doing the sending.
package dispatch

import (
	"context"
	"github.com/rotblauer/triptrack/conceptual"
	"github.com/rotblauer/triptrack/params"
	"github.com/rotblauer/triptrack/types/sample"
	"github.com/shopspring/decimal"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
)

// maxAckBytes caps how much of a response body we read.
const maxAckBytes = 1 << 20

type Dispatcher struct {
	client *http.Client
	tokens TokenSource
	config *params.DispatcherConfig
	meter  *meter
	logger *slog.Logger
}

// New returns a dispatcher. A nil client gets one with the configured timeout.
// A nil token source means there is never a token.
func New(client *http.Client, tokens TokenSource, config *params.DispatcherConfig) *Dispatcher {
	if config == nil {
		config = params.DefaultDispatcherConfig()
	}
	cfg := *config
	if cfg.SessionField == "" {
		cfg.SessionField = params.SessionFieldName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = params.DefaultHTTPTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	logger := slog.With("c", "dispatch")
	return &Dispatcher{
		client: client,
		tokens: tokens,
		config: &cfg,
		meter:  newMeter(cfg.MetricsLogInterval, logger),
		logger: logger,
	}
}

// WithTokens returns a dispatcher sharing d's client and metrics but using another token source.
func (d *Dispatcher) WithTokens(tokens TokenSource) *Dispatcher {
	cp := *d
	cp.tokens = tokens
	return &cp
}

// Payload is the form the server expects. Absent accuracy and unknown motion are sent as 0.
func Payload(s sample.Sample, sessionID conceptual.SessionID, sessionField string) url.Values {
	s = s.Normalized()
	v := url.Values{}
	v.Set("latitude", FormatFloat(s.Latitude))
	v.Set("longitude", FormatFloat(s.Longitude))
	v.Set("accuracy", FormatFloat(s.AccuracyOrZero()))
	v.Set("speed", FormatFloat(s.Speed))
	v.Set("heading", FormatFloat(s.Heading))
	if sessionField != "" {
		v.Set(sessionField, sessionID.String())
	}
	return v
}

// FormatFloat writes the shortest exact decimal, never exponent notation.
// NaN and infinities, which decimal can't represent, are written as 0.
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	return decimal.NewFromFloat(f).String()
}

// Send posts s for sessionID to endpointURL.
// Sending the same sample twice is fine; the server dedupes, we don't.
func (d *Dispatcher) Send(ctx context.Context, s sample.Sample, sessionID conceptual.SessionID, endpointURL string) Outcome {
	token, ok := d.tokens.Token()
	if !ok || token == "" {
		out := MissingCredential{}
		d.meter.mark(out, 0)
		d.logger.Warn("No credential token, not sending", "session", sessionID)
		return out
	}
	// A position the server can't store is refused here, unsent.
	if err := s.Validate(); err != nil {
		out := Rejected{Reason: "invalid sample: " + err.Error()}
		d.meter.rejected.Inc(1)
		d.logger.Warn("Invalid sample, not sending", "session", sessionID, "error", err)
		return out
	}

	body := Payload(s, sessionID, d.config.SessionField).Encode()
	out := d.post(ctx, endpointURL, token, body)
	d.meter.mark(out, len(body))

	switch o := out.(type) {
	case Success:
		d.logger.Debug("Location update sent", "session", sessionID, "sample", s, "ack", string(o.Ack.Raw))
	default:
		d.logger.Warn("Location update failed", "session", sessionID, "outcome", out.String())
	}
	return out
}

func (d *Dispatcher) post(ctx context.Context, endpointURL, token, body string) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(body))
	if err != nil {
		return TransportFailure{Cause: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(params.CSRFHeaderName, token)
	// The server checks the header against the cookie. A jar sends its own.
	if d.client.Jar == nil {
		req.AddCookie(&http.Cookie{Name: params.CSRFCookieName, Value: token})
	}
	// Servers checking CSRF over https want a same-origin referer.
	if u, err := url.Parse(endpointURL); err == nil && u.Scheme == "https" {
		req.Header.Set("Referer", u.Scheme+"://"+u.Host+"/")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return TransportFailure{Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAckBytes))
	if err != nil {
		return TransportFailure{Cause: err}
	}
	ack, ackErr := ParseAck(data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := http.StatusText(resp.StatusCode)
		if ackErr == nil && ack.Message != "" {
			reason = ack.Message
		}
		return Rejected{StatusCode: resp.StatusCode, Reason: reason}
	}
	if ackErr != nil {
		return TransportFailure{Cause: ackErr}
	}
	if ack.IsError() {
		return Rejected{StatusCode: resp.StatusCode, Reason: ack.Message}
	}
	return Success{Ack: ack}
}

// Stats returns cumulative counts since the dispatcher was created.
func (d *Dispatcher) Stats() Stats {
	return d.meter.stats()
}

// Close stops the periodic metrics log.
func (d *Dispatcher) Close() {
	d.meter.stop()
}
