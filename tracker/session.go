// Package tracker runs a live trip tracking session.
//
// A session reports position two ways at once. A fixed-interval ticker samples and
// dispatches no matter what, so updates keep flowing even if the device's position
// stream degrades. A position stream dispatches between ticks, but only when the
// position moved significantly from the last known sample. Both paths may dispatch
// the same position close together; delivery is at-least-once and the server dedupes.
package tracker

import (
	"context"
	"errors"
	"github.com/ethereum/go-ethereum/event"
	"github.com/rotblauer/triptrack/conceptual"
	"github.com/rotblauer/triptrack/dispatch"
	"github.com/rotblauer/triptrack/events"
	"github.com/rotblauer/triptrack/geo/movement"
	"github.com/rotblauer/triptrack/geo/sampler"
	"github.com/rotblauer/triptrack/params"
	"github.com/rotblauer/triptrack/types/fault"
	"github.com/rotblauer/triptrack/types/sample"
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Idle State = iota
	// Starting is the window while the bootstrap sample is being acquired.
	// A session in it is not active, but can't be started again either.
	Starting
	Active
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Active:
		return "active"
	default:
		return "idle"
	}
}

// Path names which mechanism produced a sample.
const (
	PathBootstrap = "bootstrap"
	PathTick      = "tick"
	PathStream    = "stream"
)

// ErrStoppedDuringStart is returned by Start when Stop won the race against the bootstrap sample.
var ErrStoppedDuringStart = errors.New("tracking stopped before it started")

// Dispatcher sends one sample. *dispatch.Dispatcher is the real one.
type Dispatcher interface {
	Send(ctx context.Context, s sample.Sample, sessionID conceptual.SessionID, endpointURL string) dispatch.Outcome
}

// Session is one tracking lifecycle. It is created idle and is reusable:
// Stop then Start begins a new lifecycle, possibly for another trip.
// All methods are safe for concurrent use.
//
// OnUpdate and OnError callbacks may be called from different goroutines
// (the ticker, the device stream, finished dispatches). They must not block for long.
type Session struct {
	sampler    *sampler.Sampler
	dispatcher Dispatcher
	config     *params.TrackingConfig
	filter     movement.Filter
	logger     *slog.Logger

	mu sync.Mutex
	// gen increments on every Start and Stop. Anything asynchronous captures the gen
	// it was started under and drops its result if gen has moved on.
	gen        uint64
	state      State
	sessionID  conceptual.SessionID
	endpoint   string
	lastSample *sample.Sample
	cancel     context.CancelFunc
	stopTicker func()
	sub        *sampler.Subscription
	stats      Stats
	latency    *latencies

	// inflight counts the tick loop and dispatch goroutines, for Close.
	inflight sync.WaitGroup

	updatedFeed event.FeedOf[events.LocationUpdated]
	failedFeed  event.FeedOf[events.DispatchFailed]

	// newTicker is swapped out in tests.
	newTicker func(d time.Duration) (ticks <-chan time.Time, stop func())
}

// Stats are counters over the current (or last) lifecycle.
type Stats struct {
	StartedAt     time.Time  `json:"started_at"`
	Ticks         int        `json:"ticks"`
	StreamSamples int        `json:"stream_samples"`
	Suppressed    int        `json:"suppressed"`
	Dispatched    int        `json:"dispatched"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorKind fault.Kind `json:"last_error_kind,omitempty"`
	LastErrorAt   time.Time  `json:"last_error_at,omitempty"`
}

// Status is a point-in-time report of a session.
type Status struct {
	SessionID  conceptual.SessionID `json:"session_id"`
	State      string               `json:"state"`
	Active     bool                 `json:"active"`
	Endpoint   string               `json:"endpoint"`
	Interval   string               `json:"interval"`
	LastSample *sample.Sample       `json:"last_sample,omitempty"`
	Latency    Latency              `json:"latency"`
	Stats
}

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// New returns an idle session. Config defaults are applied here, once.
// If config carries a CredentialToken and d is a *dispatch.Dispatcher,
// the token is bound to a copy of d; the original dispatcher is untouched.
func New(s *sampler.Sampler, d Dispatcher, config *params.TrackingConfig) *Session {
	cfg := config.WithDefaults()
	if cfg.CredentialToken != "" {
		if dd, ok := d.(*dispatch.Dispatcher); ok {
			d = dd.WithTokens(dispatch.StaticToken(cfg.CredentialToken))
		}
	}
	return &Session{
		sampler:    s,
		dispatcher: d,
		config:     cfg,
		filter:     movement.Filter{ThresholdMeters: cfg.SignificantMovementMeters},
		logger:     slog.With("c", "tracker"),
		latency:    newLatencies(),
		newTicker:  realTicker,
	}
}

// Start begins tracking sessionID.
//
// It returns false, nil if the session is already active (or starting); nothing is duplicated.
// Otherwise it blocks for one bootstrap sample. If that fails, OnError is called once,
// the session stays idle, and the classified error is returned. If it succeeds the sample
// is dispatched, the ticker and position stream are armed, and Start returns true.
// A failure to open the position stream is reported through OnError but is not fatal;
// the ticker alone keeps updates flowing.
func (s *Session) Start(ctx context.Context, sessionID conceptual.SessionID) (bool, error) {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		s.logger.Warn("Tracking is already active", "session", s.SessionID(), "requested", sessionID)
		return false, nil
	}
	s.gen++
	gen := s.gen
	s.state = Starting
	s.sessionID = sessionID
	s.endpoint = s.config.EndpointURL
	if s.endpoint == "" {
		s.endpoint = params.JoinURL(params.DefaultBaseURL, params.TripUpdatePath(sessionID.String()))
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.stats = Stats{}
	s.latency = newLatencies()
	s.mu.Unlock()

	logger := s.logger.With("session", sessionID)

	// The bootstrap sample is abandoned if either the caller gives up or Stop is called.
	bootCtx, bootCancel := context.WithCancel(ctx)
	unhook := context.AfterFunc(runCtx, bootCancel)
	first, err := s.sampler.SampleOnce(bootCtx)
	unhook()
	bootCancel()

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		logger.Info("Tracking stopped during bootstrap")
		return false, ErrStoppedDuringStart
	}
	if err != nil {
		fe := fault.Classify(err)
		s.gen++
		s.state = Idle
		s.cancel = nil
		s.recordErrorLocked(fe.Kind, fe.Detail)
		s.mu.Unlock()
		cancel()
		logger.Error("Error starting tracking", "kind", fe.Kind, "error", fe)
		s.config.OnError(fe.Kind, fe.Detail)
		return false, fe
	}
	s.state = Active
	s.stats.StartedAt = time.Now()
	s.lastSample = &first
	ticks, stopTicker := s.newTicker(s.config.UpdateInterval)
	s.stopTicker = stopTicker
	s.inflight.Add(1)
	s.mu.Unlock()

	s.config.OnUpdate(first)
	s.dispatch(gen, first, PathBootstrap)

	go s.loop(runCtx, gen, ticks)

	// Subscribe outside the lock: devices may deliver the first sample synchronously.
	sub, err := s.sampler.Subscribe(
		func(smp sample.Sample) { s.accept(gen, smp, PathStream) },
		func(fe *fault.Error) { s.reportAcquisitionError(gen, fe, PathStream) },
	)
	if err != nil {
		fe := fault.Classify(err)
		logger.Warn("Error watching position, continuing on interval only", "error", fe)
		s.reportAcquisitionError(gen, fe, PathStream)
	} else {
		s.mu.Lock()
		if s.gen == gen {
			s.sub = sub
			sub = nil
		}
		s.mu.Unlock()
		// Stopped while subscribing.
		sub.Unsubscribe()
	}

	logger.Info("Trip tracking started", "interval", s.config.UpdateInterval, "endpoint", s.Endpoint(), "first", first)
	return true, nil
}

// Stop ends tracking. It returns false if the session was idle.
// The ticker and stream are released before Stop returns. Samples and dispatches
// already in flight may still finish, but their results are dropped.
func (s *Session) Stop() bool {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return false
	}
	s.gen++
	s.state = Idle
	cancel, stopTicker, sub := s.cancel, s.stopTicker, s.sub
	s.cancel, s.stopTicker, s.sub = nil, nil, nil
	id := s.sessionID
	s.mu.Unlock()

	if stopTicker != nil {
		stopTicker()
	}
	sub.Unsubscribe()
	if cancel != nil {
		cancel()
	}
	s.logger.Info("Trip tracking stopped", "session", id)
	return true
}

// Close stops the session and waits for in-flight work to finish.
// Subscribers to the session's feeds must keep draining their channels until Close returns.
func (s *Session) Close() {
	s.Stop()
	s.inflight.Wait()
}

func (s *Session) IsTrackingActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Active
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SessionID() conceptual.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// LastSample returns the last known sample, which survives Stop.
func (s *Session) LastSample() (sample.Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSample == nil {
		return sample.Sample{}, false
	}
	return *s.lastSample, true
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		SessionID: s.sessionID,
		State:     s.state.String(),
		Active:    s.state == Active,
		Endpoint:  s.endpoint,
		Interval:  s.config.UpdateInterval.String(),
		Latency:   s.latency.summary(),
		Stats:     s.stats,
	}
	if s.lastSample != nil {
		cp := *s.lastSample
		st.LastSample = &cp
	}
	return st
}

// SubscribeLocationUpdated delivers an event after every acknowledged dispatch.
// Sends block until every subscriber has received, so keep ch drained.
func (s *Session) SubscribeLocationUpdated(ch chan<- events.LocationUpdated) event.Subscription {
	return s.updatedFeed.Subscribe(ch)
}

// SubscribeDispatchFailed delivers an event after every failed dispatch.
func (s *Session) SubscribeDispatchFailed(ch chan<- events.DispatchFailed) event.Subscription {
	return s.failedFeed.Subscribe(ch)
}

// currentLocked reports whether gen is still the live, active lifecycle. Callers hold mu.
func (s *Session) currentLocked(gen uint64) bool {
	return s.gen == gen && s.state == Active
}

func (s *Session) recordErrorLocked(kind fault.Kind, detail string) {
	s.stats.LastErrorKind = kind
	s.stats.LastError = detail
	s.stats.LastErrorAt = time.Now()
}

// loop runs the polling ticker until the lifecycle's context is canceled.
func (s *Session) loop(ctx context.Context, gen uint64, ticks <-chan time.Time) {
	defer s.inflight.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			s.tick(ctx, gen)
		}
	}
}

// tick samples then dispatches. Failures are reported and swallowed;
// the next tick comes regardless.
func (s *Session) tick(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		return
	}
	s.stats.Ticks++
	s.mu.Unlock()

	smp, err := s.sampler.SampleOnce(ctx)
	if err != nil {
		s.reportAcquisitionError(gen, fault.Classify(err), PathTick)
		return
	}
	s.accept(gen, smp, PathTick)
}

// accept makes smp the last known sample and dispatches it.
// Stream samples must move significantly from the last known sample; tick samples always pass.
func (s *Session) accept(gen uint64, smp sample.Sample, path string) {
	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		return
	}
	if path == PathStream {
		s.stats.StreamSamples++
		if !s.filter.IsSignificant(s.lastSample, smp) {
			s.stats.Suppressed++
			s.mu.Unlock()
			return
		}
	}
	cp := smp
	s.lastSample = &cp
	s.mu.Unlock()

	s.config.OnUpdate(smp)
	s.dispatch(gen, smp, path)
}

func (s *Session) reportAcquisitionError(gen uint64, fe *fault.Error, path string) {
	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		return
	}
	s.recordErrorLocked(fe.Kind, fe.Detail)
	id := s.sessionID
	s.mu.Unlock()

	s.logger.Warn("Error getting position", "session", id, "path", path, "kind", fe.Kind, "error", fe)
	s.config.OnError(fe.Kind, fe.Detail)
}

// dispatch sends smp in the background. The request is not canceled by Stop,
// since it may already be on the wire; its outcome is dropped if the lifecycle is over.
func (s *Session) dispatch(gen uint64, smp sample.Sample, path string) {
	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		return
	}
	id, endpoint := s.sessionID, s.endpoint
	s.stats.Dispatched++
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		began := time.Now()
		out := s.dispatcher.Send(context.Background(), smp, id, endpoint)
		s.handleOutcome(gen, id, smp, path, out, time.Since(began))
	}()
}

func (s *Session) handleOutcome(gen uint64, id conceptual.SessionID, smp sample.Sample, path string, out dispatch.Outcome, took time.Duration) {
	kind, failed := dispatch.Kind(out)

	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		s.logger.Debug("Dropping dispatch outcome of a stopped session", "session", id, "outcome", out.String())
		return
	}
	// Only requests that went out are timed.
	if _, missing := out.(dispatch.MissingCredential); !missing {
		s.latency.observe(took)
	}
	if failed {
		s.stats.Failed++
		s.recordErrorLocked(kind, out.String())
	} else {
		s.stats.Succeeded++
	}
	s.mu.Unlock()

	if !failed {
		ack := out.(dispatch.Success).Ack
		s.logger.Info("Location update sent", "session", id, "path", path, "sample", smp, "status", ack.Status)
		s.updatedFeed.Send(events.LocationUpdated{
			SessionID: id,
			Sample:    smp,
			Ack:       ack,
			Path:      path,
			At:        time.Now(),
		})
		return
	}

	s.logger.Warn("Error updating location", "session", id, "path", path, "kind", kind, "outcome", out.String())
	s.config.OnError(kind, out.String())
	s.failedFeed.Send(events.DispatchFailed{
		SessionID: id,
		Sample:    smp,
		Outcome:   out.String(),
		Kind:      kind.String(),
		Path:      path,
		At:        time.Now(),
	})
}
