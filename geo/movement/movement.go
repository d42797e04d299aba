// Package movement decides whether a position change is worth reporting.
package movement

import (
	"github.com/golang/geo/s2"
	"github.com/rotblauer/triptrack/types/sample"
)

// EarthRadiusMeters is the spherical-Earth radius used for great-circle distances.
// orb uses the WGS84 equatorial radius; servers we talk to use the mean radius, so we do too.
const EarthRadiusMeters = 6_371_000.0

// Distance returns the haversine great-circle distance between two samples in meters.
// There is no altitude term.
func Distance(a, b sample.Sample) float64 {
	return DistanceLatLng(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// DistanceLatLng is Distance for bare coordinates in degrees.
func DistanceLatLng(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	// LatLng.Distance is the haversine central angle.
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// IsSignificant reports whether current moved strictly more than thresholdMeters from previous.
// A missing previous sample is always significant; that's how tracking bootstraps.
func IsSignificant(previous *sample.Sample, current sample.Sample, thresholdMeters float64) bool {
	if previous == nil {
		return true
	}
	return Distance(*previous, current) > thresholdMeters
}

// Filter binds a threshold, for callers that pass the predicate around.
type Filter struct {
	ThresholdMeters float64
}

func (f Filter) IsSignificant(previous *sample.Sample, current sample.Sample) bool {
	return IsSignificant(previous, current, f.ThresholdMeters)
}
