// Package device has location devices for running the tracker off-browser:
// a fixed position and a replayed track file.
package device

import (
	"context"
	"github.com/rotblauer/triptrack/geo/sampler"
	"github.com/rotblauer/triptrack/params"
	"github.com/rotblauer/triptrack/types/sample"
	"time"
)

// Static reports the same coordinate every time, stamped with the current time.
// If Err is set, every request and every watch tick fails with it instead.
type Static struct {
	Sample sample.Sample
	Err    error

	// Interval is the watch cadence. Defaults to one second.
	Interval time.Duration

	watches watches
}

func NewStatic(lat, lng float64) *Static {
	return &Static{Sample: sample.New(lat, lng, time.Time{})}
}

func (d *Static) now() sample.Sample {
	s := d.Sample
	s.CapturedAt = time.Now()
	return s
}

func (d *Static) RequestOnce(ctx context.Context, opts params.SamplerOptions) (sample.Sample, error) {
	if err := ctx.Err(); err != nil {
		return sample.Sample{}, err
	}
	if d.Err != nil {
		return sample.Sample{}, d.Err
	}
	return d.now(), nil
}

func (d *Static) Watch(opts params.SamplerOptions, onSample func(sample.Sample), onError func(error)) (sampler.WatchID, error) {
	interval := d.Interval
	if interval <= 0 {
		interval = time.Second
	}
	id, ctx := d.watches.add(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if d.Err != nil {
					onError(d.Err)
					continue
				}
				onSample(d.now())
			}
		}
	}()
	return id, nil
}

func (d *Static) ClearWatch(id sampler.WatchID) {
	d.watches.clear(id)
}

// Watching is the number of live watches.
func (d *Static) Watching() int {
	return d.watches.len()
}
