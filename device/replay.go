package device

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/triptrack/geo/movement"
	"github.com/rotblauer/triptrack/geo/sampler"
	"github.com/rotblauer/triptrack/params"
	"github.com/rotblauer/triptrack/stream"
	"github.com/rotblauer/triptrack/types/fault"
	"github.com/rotblauer/triptrack/types/sample"
	"github.com/tidwall/gjson"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Replay plays back a recorded track as if it were a live device.
// Position is a function of wall time since the replay started:
// every Interval the next recorded sample becomes current.
// Samples are re-stamped with the current time, since servers reject stale positions.
type Replay struct {
	samples  []sample.Sample
	interval time.Duration
	loop     bool

	mu      sync.Mutex
	started time.Time

	watches watches
	now     func() time.Time
}

func NewReplay(samples []sample.Sample, interval time.Duration, loop bool) (*Replay, error) {
	if len(samples) == 0 {
		return nil, errors.New("replay: no samples")
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Replay{
		samples:  samples,
		interval: interval,
		loop:     loop,
		now:      time.Now,
	}, nil
}

// Len is the number of recorded samples.
func (r *Replay) Len() int {
	return len(r.samples)
}

// current returns the sample for the current time. ok is false
// once a non-looping replay has run out.
func (r *Replay) current() (sample.Sample, bool) {
	r.mu.Lock()
	now := r.now()
	if r.started.IsZero() {
		r.started = now
	}
	i := int(now.Sub(r.started) / r.interval)
	r.mu.Unlock()

	if i >= len(r.samples) {
		if !r.loop {
			return sample.Sample{}, false
		}
		i %= len(r.samples)
	}
	s := r.samples[i]
	s.CapturedAt = now
	return s, true
}

var errReplayDone = fault.New(fault.PositionUnavailable, "replay finished")

func (r *Replay) RequestOnce(ctx context.Context, opts params.SamplerOptions) (sample.Sample, error) {
	if err := ctx.Err(); err != nil {
		return sample.Sample{}, err
	}
	s, ok := r.current()
	if !ok {
		return sample.Sample{}, errReplayDone
	}
	return s, nil
}

func (r *Replay) Watch(opts params.SamplerOptions, onSample func(sample.Sample), onError func(error)) (sampler.WatchID, error) {
	id, ctx := r.watches.add(context.Background())
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s, ok := r.current()
				if !ok {
					onError(errReplayDone)
					continue
				}
				onSample(s)
			}
		}
	}()
	return id, nil
}

func (r *Replay) ClearWatch(id sampler.WatchID) {
	r.watches.clear(id)
}

// ReadTrackFile reads recorded samples from path.
// Accepted formats, optionally gzipped (.gz):
//   - a GeoJSON FeatureCollection of points
//   - newline-delimited GeoJSON point features (cat tracks)
//   - newline-delimited sample objects ({"latitude":..,"longitude":..})
//
// Entries that decode but aren't valid samples, or that go back in time,
// are logged and skipped. Malformed JSON ends the read with an error.
func ReadTrackFile(ctx context.Context, path string) ([]sample.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rd io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gzr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gzr.Close()
		rd = gzr
	}
	return ReadTrack(ctx, rd)
}

// ReadTrack is ReadTrackFile for a reader.
func ReadTrack(ctx context.Context, rd io.Reader) ([]sample.Sample, error) {
	logger := slog.With("c", "replay")
	skip := func(err error) {
		logger.Warn("Skipping track entry", "error", err)
	}

	buf := bufio.NewReader(rd)
	peek, _ := buf.Peek(512)
	var decoded <-chan sample.Sample
	var errs <-chan error
	if gjson.GetBytes(peek, "type").String() == "FeatureCollection" ||
		bytes.Contains(peek, []byte(`"FeatureCollection"`)) {
		data, err := io.ReadAll(buf)
		if err != nil {
			return nil, err
		}
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, err
		}
		decoded = stream.TransformErr(ctx, sample.FromFeature, skip, stream.Slice(ctx, fc.Features))
	} else {
		var raws <-chan json.RawMessage
		raws, errs = stream.NDJSON[json.RawMessage](ctx, buf)
		decoded = stream.TransformErr(ctx, decodeTrackLine, skip, raws)
	}

	samples := stream.Collect(ctx, stream.Filter(ctx, inOrder(logger), decoded))
	if errs != nil {
		if err := <-errs; err != nil {
			return nil, err
		}
	}
	if len(samples) == 0 {
		return nil, errors.New("no samples in track")
	}
	return fillMotion(samples), nil
}

// inOrder passes samples captured strictly after the last one it passed.
func inOrder(logger *slog.Logger) func(sample.Sample) bool {
	var last time.Time
	return func(s sample.Sample) bool {
		if !s.CapturedAt.After(last) {
			logger.Warn("Skipping out of order track entry", "sample", s, "last", last)
			return false
		}
		last = s.CapturedAt
		return true
	}
}

func decodeTrackLine(raw json.RawMessage) (sample.Sample, error) {
	if gjson.GetBytes(raw, "type").String() == "Feature" {
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return sample.Sample{}, err
		}
		return sample.FromFeature(f)
	}
	var s sample.Sample
	if err := json.Unmarshal(raw, &s); err != nil {
		return sample.Sample{}, err
	}
	return s, s.Validate()
}

// fillMotion derives speed and heading from consecutive positions
// where the recording didn't have them.
func fillMotion(samples []sample.Sample) []sample.Sample {
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], &samples[i]
		if cur.Heading == 0 && !prev.Point().Equal(cur.Point()) {
			b := geo.Bearing(prev.Point(), cur.Point())
			if b < 0 {
				b += 360
			}
			cur.Heading = b
		}
		if cur.Speed == 0 {
			dt := cur.CapturedAt.Sub(prev.CapturedAt).Seconds()
			if dt > 0 {
				cur.Speed = movement.Distance(prev, *cur) / dt
			}
		}
	}
	return samples
}
