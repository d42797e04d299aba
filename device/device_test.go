package device

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"github.com/rotblauer/triptrack/params"
	"github.com/rotblauer/triptrack/types/fault"
	"github.com/rotblauer/triptrack/types/sample"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const trackFC = `{"type":"FeatureCollection","features":[
{"type":"Feature","geometry":{"type":"Point","coordinates":[20,10]},"properties":{"Time":"2024-12-16T22:00:00Z"}},
{"type":"Feature","geometry":{"type":"Point","coordinates":[20.001,10]},"properties":{"Time":"2024-12-16T22:00:10Z"}},
{"type":"Feature","geometry":{"type":"Point","coordinates":[20.001,10.001]},"properties":{"Time":"2024-12-16T22:00:20Z","Speed":4,"Heading":1}}
]}`

const trackNDJSON = `{"type":"Feature","geometry":{"type":"Point","coordinates":[20,10]},"properties":{"UnixTime":1734386400}}
not json at all
{"latitude":10,"longitude":20.001,"captured_at":"2024-12-16T22:00:10Z"}
{"latitude":95,"longitude":20,"captured_at":"2024-12-16T22:00:20Z"}
`

func TestReadTrack_FeatureCollection(t *testing.T) {
	samples, err := ReadTrack(context.Background(), strings.NewReader(trackFC))
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	// Due east, about 110m in 10s.
	if h := samples[1].Heading; h < 89 || h > 91 {
		t.Errorf("expected derived heading ~90, got %v", h)
	}
	if v := samples[1].Speed; v < 10 || v > 12 {
		t.Errorf("expected derived speed ~11 m/s, got %v", v)
	}
	// Recorded motion wins.
	if samples[2].Speed != 4 || samples[2].Heading != 1 {
		t.Errorf("recorded motion overwritten: %+v", samples[2])
	}
}

func TestReadTrack_NDJSON(t *testing.T) {
	// Malformed JSON ends the read.
	if _, err := ReadTrack(context.Background(), strings.NewReader(trackNDJSON)); err == nil {
		t.Error("expected decode error")
	}

	clean := strings.Replace(trackNDJSON, "not json at all\n", "", 1)
	samples, err := ReadTrack(context.Background(), strings.NewReader(clean))
	if err != nil {
		t.Fatal(err)
	}
	// The out-of-range line is skipped.
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[1].Longitude != 20.001 {
		t.Errorf("unexpected sample %v", samples[1])
	}
}

func TestReadTrack_Skips(t *testing.T) {
	fc := `{"type":"FeatureCollection","features":[
{"type":"Feature","geometry":{"type":"Point","coordinates":[20,10]},"properties":{"Time":"2024-12-16T22:00:10Z"}},
{"type":"Feature","geometry":{"type":"Point","coordinates":[20,10]},"properties":{"Time":"2024-12-16T22:00:00Z"}},
{"type":"Feature","geometry":{"type":"LineString","coordinates":[[20,10],[21,11]]},"properties":{}},
{"type":"Feature","geometry":{"type":"Point","coordinates":[20,10.001]},"properties":{"Time":"2024-12-16T22:00:20Z"}}
]}`
	samples, err := ReadTrack(context.Background(), strings.NewReader(fc))
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[1].Latitude != 10.001 {
		t.Errorf("unexpected sample %v", samples[1])
	}
}

func TestReadTrackFile_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(trackFC)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "track.json.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
	samples, err := ReadTrackFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 3 {
		t.Errorf("expected 3 samples, got %d", len(samples))
	}
}

func TestReplay_Cursor(t *testing.T) {
	samples := []sample.Sample{
		sample.New(1, 1, time.Unix(0, 0)),
		sample.New(2, 2, time.Unix(1, 0)),
	}
	r, err := NewReplay(samples, time.Second, false)
	if err != nil {
		t.Fatal(err)
	}
	clock := time.Now()
	r.now = func() time.Time { return clock }

	ctx := context.Background()
	opts := params.DefaultSamplerOptions()
	s, err := r.RequestOnce(ctx, opts)
	if err != nil || s.Latitude != 1 {
		t.Fatalf("unexpected first sample %v %v", s, err)
	}
	if !s.CapturedAt.Equal(clock) {
		t.Error("sample not restamped")
	}

	clock = clock.Add(1500 * time.Millisecond)
	if s, _ = r.RequestOnce(ctx, opts); s.Latitude != 2 {
		t.Errorf("expected second sample, got %v", s)
	}

	clock = clock.Add(time.Second)
	if _, err = r.RequestOnce(ctx, opts); !errors.Is(err, fault.ErrPositionUnavailable) {
		t.Errorf("expected replay done, got %v", err)
	}

	r.loop = true
	if s, err = r.RequestOnce(ctx, opts); err != nil || s.Latitude != 1 {
		t.Errorf("expected loop back to first sample, got %v %v", s, err)
	}
}

func TestReplay_Empty(t *testing.T) {
	if _, err := NewReplay(nil, time.Second, false); err == nil {
		t.Error("expected error")
	}
}

func TestStatic_Watch(t *testing.T) {
	d := NewStatic(10, 20)
	d.Interval = 10 * time.Millisecond
	got := make(chan sample.Sample, 8)
	id, err := d.Watch(params.DefaultSamplerOptions(), func(s sample.Sample) {
		select {
		case got <- s:
		default:
		}
	}, func(error) {})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case s := <-got:
		if s.Latitude != 10 || s.CapturedAt.IsZero() {
			t.Errorf("unexpected sample %v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("no sample")
	}
	if d.Watching() != 1 {
		t.Errorf("expected 1 watch, got %d", d.Watching())
	}
	d.ClearWatch(id)
	d.ClearWatch(id)
	if d.Watching() != 0 {
		t.Errorf("expected 0 watches, got %d", d.Watching())
	}
}

func TestStatic_Err(t *testing.T) {
	d := NewStatic(10, 20)
	d.Err = fault.New(fault.PermissionDenied, "denied")
	if _, err := d.RequestOnce(context.Background(), params.DefaultSamplerOptions()); !errors.Is(err, fault.ErrPermissionDenied) {
		t.Errorf("expected permission denied, got %v", err)
	}
}
