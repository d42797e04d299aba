// Package sampler wraps a location device behind a bounded, classified API.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"github.com/rotblauer/triptrack/params"
	"github.com/rotblauer/triptrack/types/fault"
	"github.com/rotblauer/triptrack/types/sample"
	"log/slog"
	"sync"
)

// WatchID is the device's handle for a running watch.
type WatchID int64

// Device is the platform location capability.
// Implementations should honor ctx and opts.Timeout, but Sampler does not rely on it.
// Errors should be *fault.Error where the device knows the kind;
// anything else is classified as Unknown (or Timeout for deadline errors).
type Device interface {
	RequestOnce(ctx context.Context, opts params.SamplerOptions) (sample.Sample, error)
	Watch(opts params.SamplerOptions, onSample func(sample.Sample), onError func(error)) (WatchID, error)
	ClearWatch(id WatchID)
}

// ErrUnsupported is returned when there is no device at all.
var ErrUnsupported = fault.New(fault.Unknown, "geolocation is not supported")

type Sampler struct {
	device Device
	opts   params.SamplerOptions
	logger *slog.Logger
}

// New returns a sampler over device. A nil device is allowed;
// every call on it fails with ErrUnsupported.
func New(device Device, opts params.SamplerOptions) *Sampler {
	if opts.Timeout <= 0 {
		opts = params.DefaultSamplerOptions()
	}
	return &Sampler{
		device: device,
		opts:   opts,
		logger: slog.With("c", "sampler"),
	}
}

type onceResult struct {
	sample sample.Sample
	err    error
}

// SampleOnce blocks until the device reports a position, fails, or the
// configured timeout elapses, whichever comes first.
// Returned errors are always *fault.Error.
func (s *Sampler) SampleOnce(ctx context.Context) (sample.Sample, error) {
	if s == nil || s.device == nil {
		return sample.Sample{}, ErrUnsupported
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	// Buffered so a device that answers after we gave up doesn't leak the goroutine.
	results := make(chan onceResult, 1)
	go func() {
		smp, err := s.device.RequestOnce(ctx, s.opts)
		results <- onceResult{smp, err}
	}()

	select {
	case r := <-results:
		if r.err != nil {
			return sample.Sample{}, classify(r.err)
		}
		if err := r.sample.Validate(); err != nil {
			return sample.Sample{}, fault.Wrap(fault.PositionUnavailable, err)
		}
		return r.sample.Normalized(), nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return sample.Sample{}, fault.New(fault.Timeout, fmt.Sprintf("no position within %s", s.opts.Timeout))
		}
		return sample.Sample{}, fault.Wrap(fault.Unknown, ctx.Err())
	}
}

func classify(err error) *fault.Error {
	fe := fault.Classify(err)
	if !fe.Kind.Acquisition() {
		// Devices only fail with acquisition kinds.
		return fault.Wrap(fault.Unknown, err)
	}
	return fe
}

// Subscription is a running position stream. Its zero value is not usable;
// get one from Sampler.Subscribe.
type Subscription struct {
	id     WatchID
	device Device
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// Unsubscribe releases the device watch. Safe to call more than once, and on nil.
// Callbacks the device fires after this point are dropped.
func (sub *Subscription) Unsubscribe() {
	if sub == nil {
		return
	}
	sub.once.Do(func() {
		sub.mu.Lock()
		sub.closed = true
		sub.mu.Unlock()
		sub.device.ClearWatch(sub.id)
	})
}

func (sub *Subscription) active() bool {
	sub.mu.RLock()
	defer sub.mu.RUnlock()
	return !sub.closed
}

// Subscribe starts a continuous position stream.
// Every sample invokes onSample; every failure invokes onError with a *fault.Error.
// Failures do not end the stream; only Unsubscribe does.
func (s *Sampler) Subscribe(onSample func(sample.Sample), onError func(*fault.Error)) (*Subscription, error) {
	if s == nil || s.device == nil {
		return nil, ErrUnsupported
	}
	if onSample == nil {
		onSample = func(sample.Sample) {}
	}
	if onError == nil {
		onError = func(*fault.Error) {}
	}
	sub := &Subscription{device: s.device}
	id, err := s.device.Watch(s.opts,
		func(smp sample.Sample) {
			if !sub.active() {
				return
			}
			if err := smp.Validate(); err != nil {
				onError(fault.Wrap(fault.PositionUnavailable, err))
				return
			}
			onSample(smp.Normalized())
		},
		func(err error) {
			if !sub.active() {
				return
			}
			onError(classify(err))
		})
	if err != nil {
		return nil, classify(err)
	}
	sub.id = id
	s.logger.Debug("Subscribed", "watch", id)
	return sub, nil
}

// Unsubscribe is Subscription.Unsubscribe, for symmetry with Subscribe.
func (s *Sampler) Unsubscribe(sub *Subscription) {
	sub.Unsubscribe()
}
