// Package share is the one-shot "share my current location" action for a rental booking.
// Unlike tracking, it submits like a page form: the server answers with a redirect
// to wherever the user should land next, not with JSON.
package share

import (
	"context"
	"errors"
	"fmt"
	"github.com/rotblauer/triptrack/conceptual"
	"github.com/rotblauer/triptrack/dispatch"
	"github.com/rotblauer/triptrack/geo/sampler"
	"github.com/rotblauer/triptrack/params"
	"github.com/rotblauer/triptrack/types/fault"
	"github.com/rotblauer/triptrack/types/sample"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

var (
	ErrInFlight       = errors.New("a location share is already in progress")
	ErrMissingBooking = errors.New("missing booking id")
)

// Messages shown to the user when a share fails.
const (
	MessageUnavailable = "Location services are not available. Please try again later."
	MessageLocation    = "Unable to share your location. Please check your location permissions and try again."
	MessageSubmit      = "Failed to share location. Please try again."
	MessageInFlight    = "Your location is already being shared."
)

// Navigation is where the submission landed after redirects.
type Navigation struct {
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	Sample     sample.Sample `json:"sample"`
}

type Action struct {
	sampler  *sampler.Sampler
	client   *http.Client
	tokens   dispatch.TokenSource
	config   *params.ShareConfig
	inFlight atomic.Bool
	logger   *slog.Logger
}

// NewAction returns a share action. A nil client gets one with the configured timeout;
// it follows redirects, as a browser would after a form post.
func NewAction(s *sampler.Sampler, client *http.Client, tokens dispatch.TokenSource, config *params.ShareConfig) *Action {
	if config == nil {
		config = params.DefaultShareConfig()
	}
	cfg := *config
	if cfg.BaseURL == "" {
		cfg.BaseURL = params.DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = params.DefaultHTTPTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if tokens == nil {
		tokens = dispatch.StaticToken("")
	}
	return &Action{
		sampler: s,
		client:  client,
		tokens:  tokens,
		config:  &cfg,
		logger:  slog.With("c", "share"),
	}
}

// InFlight reports whether an Execute is running.
func (a *Action) InFlight() bool {
	return a.inFlight.Load()
}

// Execute samples once and submits the position for bookingID.
// While one Execute runs, others fail fast with ErrInFlight.
// Failures are *fault.Error (except the two sentinels above) and leave the action usable.
func (a *Action) Execute(ctx context.Context, bookingID conceptual.BookingID) (*Navigation, error) {
	if !a.inFlight.CompareAndSwap(false, true) {
		return nil, ErrInFlight
	}
	defer a.inFlight.Store(false)

	if bookingID.Empty() {
		return nil, ErrMissingBooking
	}
	logger := a.logger.With("booking", bookingID)

	smp, err := a.sampler.SampleOnce(ctx)
	if err != nil {
		logger.Error("Location sharing error", "error", err)
		return nil, err
	}
	token, ok := a.tokens.Token()
	if !ok || token == "" {
		logger.Error("No credential token, not sharing")
		return nil, fault.New(fault.MissingCredential, "no "+params.CSRFCookieName+" token")
	}

	target := params.JoinURL(a.config.BaseURL, params.ShareLocationPath(bookingID.String()))
	nav, err := a.submit(ctx, target, token, smp)
	if err != nil {
		logger.Error("Error submitting location", "url", target, "error", err)
		return nil, err
	}
	logger.Info("Location shared", "sample", smp, "landed", nav.URL, "status", nav.StatusCode)
	return nav, nil
}

func (a *Action) submit(ctx context.Context, target, token string, smp sample.Sample) (*Navigation, error) {
	form := url.Values{}
	form.Set(params.CSRFFormField, token)
	form.Set("latitude", dispatch.FormatFloat(smp.Latitude))
	form.Set("longitude", dispatch.FormatFloat(smp.Longitude))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fault.Wrap(fault.TransportFailure, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	if u, err := url.Parse(target); err == nil && u.Scheme == "https" {
		req.Header.Set("Referer", u.Scheme+"://"+u.Host+"/")
	}
	if a.client.Jar == nil {
		req.AddCookie(&http.Cookie{Name: params.CSRFCookieName, Value: token})
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.TransportFailure, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 400 {
		return nil, fault.New(fault.Rejected, fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}
	return &Navigation{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Sample:     smp,
	}, nil
}

// UserMessage is the actionable text to show for an Execute error. Nil gives "".
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrInFlight) {
		return MessageInFlight
	}
	var fe *fault.Error
	if !errors.As(err, &fe) {
		return MessageSubmit
	}
	if fe == sampler.ErrUnsupported {
		return MessageUnavailable
	}
	if fe.Kind.Acquisition() {
		return MessageLocation
	}
	return MessageSubmit
}
