package sample

import (
	"errors"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"math"
	"time"
)

// Sample is a single reported geographic position.
// It is a value type; once produced by a device it is not mutated,
// only copied (eg. into a session as the last known sample).
type Sample struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// Accuracy is the horizontal accuracy radius in meters, if the device reported one.
	Accuracy *float64 `json:"accuracy,omitempty"`

	// Speed in m/s. Devices that don't know report 0.
	Speed float64 `json:"speed"`

	// Heading in degrees clockwise from true north. Devices that don't know report 0.
	Heading float64 `json:"heading"`

	CapturedAt time.Time `json:"captured_at"`
}

// New returns a sample without accuracy captured at t.
func New(lat, lng float64, t time.Time) Sample {
	return Sample{Latitude: lat, Longitude: lng, CapturedAt: t}
}

// WithAccuracy returns a copy of s with the accuracy set.
func (s Sample) WithAccuracy(meters float64) Sample {
	s.Accuracy = &meters
	return s
}

// AccuracyOrZero is what gets sent over the wire when accuracy is absent.
func (s Sample) AccuracyOrZero() float64 {
	if s.Accuracy == nil {
		return 0
	}
	return *s.Accuracy
}

// Point returns the orb point. Note orb's x,y order is lng,lat.
func (s Sample) Point() orb.Point {
	return orb.Point{s.Longitude, s.Latitude}
}

func (s Sample) IsZero() bool {
	return s.Latitude == 0 && s.Longitude == 0 && s.CapturedAt.IsZero()
}

func (s Sample) String() string {
	return fmt.Sprintf("(%.6f,%.6f)@%s", s.Latitude, s.Longitude, s.CapturedAt.Format(time.RFC3339))
}

// Validate checks coordinate ranges and the capture time.
// Speed and heading are not checked; see Normalized.
func (s Sample) Validate() error {
	if !finite(s.Latitude) || s.Latitude < -90 || s.Latitude > 90 {
		return fmt.Errorf("invalid coordinate: lat=%.14f", s.Latitude)
	}
	if !finite(s.Longitude) || s.Longitude < -180 || s.Longitude > 180 {
		return fmt.Errorf("invalid coordinate: lng=%.14f", s.Longitude)
	}
	if s.CapturedAt.IsZero() {
		return errors.New("zero time")
	}
	if s.Accuracy != nil && (!finite(*s.Accuracy) || *s.Accuracy < 0) {
		return fmt.Errorf("invalid accuracy: %f", *s.Accuracy)
	}
	return nil
}

// Normalized returns a copy of s with unknown motion zeroed.
// Browsers report a NaN heading when standing still, and some clients send -1.
func (s Sample) Normalized() Sample {
	if !finite(s.Speed) || s.Speed < 0 {
		s.Speed = 0
	}
	if !finite(s.Heading) || s.Heading < 0 {
		s.Heading = 0
	}
	return s
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Feature returns the sample as a GeoJSON point feature,
// using the same property names cat tracks use.
func (s Sample) Feature() *geojson.Feature {
	f := geojson.NewFeature(s.Point())
	f.Properties["Time"] = s.CapturedAt.UTC().Format(time.RFC3339Nano)
	f.Properties["UnixTime"] = s.CapturedAt.Unix()
	f.Properties["Speed"] = s.Speed
	f.Properties["Heading"] = s.Heading
	if s.Accuracy != nil {
		f.Properties["Accuracy"] = *s.Accuracy
	}
	return f
}

// FromFeature decodes a GeoJSON point feature into a sample.
// Time prefers the RFC3339 Time property, falling back to UnixTime.
func FromFeature(f *geojson.Feature) (Sample, error) {
	if f == nil || f.Geometry == nil {
		return Sample{}, errors.New("nil geometry")
	}
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return Sample{}, fmt.Errorf("not a point: %s", f.Geometry.GeoJSONType())
	}
	s := Sample{
		Latitude:  pt.Lat(),
		Longitude: pt.Lon(),
		Speed:     f.Properties.MustFloat64("Speed", 0),
		Heading:   f.Properties.MustFloat64("Heading", 0),
	}.Normalized()
	if acc, ok := f.Properties["Accuracy"].(float64); ok {
		s.Accuracy = &acc
	}
	t, err := featureTime(f.Properties)
	if err != nil {
		return Sample{}, err
	}
	s.CapturedAt = t
	return s, s.Validate()
}

func featureTime(props geojson.Properties) (time.Time, error) {
	if ts, ok := props["Time"].(string); ok {
		return time.Parse(time.RFC3339, ts)
	}
	switch v := props["UnixTime"].(type) {
	case float64:
		return time.Unix(int64(v), 0), nil
	case int64:
		return time.Unix(v, 0), nil
	}
	return time.Time{}, errors.New("missing Time property")
}
