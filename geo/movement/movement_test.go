package movement

import (
	"github.com/rotblauer/triptrack/types/sample"
	"math"
	"testing"
	"time"
)

func TestDistance_OneDegreeLongitudeAtEquator(t *testing.T) {
	d := DistanceLatLng(0, 0, 0, 1)
	want := 111_195.0
	if math.Abs(d-want)/want > 0.01 {
		t.Errorf("expected ~%v m, got %v", want, d)
	}
}

func TestIsSignificant(t *testing.T) {
	now := time.Now()
	prev := sample.New(10, 20, now)

	cases := []struct {
		name      string
		previous  *sample.Sample
		current   sample.Sample
		threshold float64
		want      bool
	}{
		{"no previous", nil, sample.New(10, 20, now), 10, true},
		{"no previous zero threshold", nil, sample.New(-33, 151, now), 0, true},
		{"same coordinates", &prev, sample.New(10, 20, now.Add(time.Minute)), 10, false},
		{"same coordinates zero threshold", &prev, sample.New(10, 20, now), 0, false},
		{"about 55m", &prev, sample.New(10, 20.0005, now), 10, true},
		{"about 10cm", &prev, sample.New(10, 20.000001, now), 10, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsSignificant(c.previous, c.current, c.threshold); got != c.want {
				t.Errorf("got %v, want %v (distance %v)", got, c.want, distanceOrNaN(c.previous, c.current))
			}
		})
	}
}

func TestFilter_Strict(t *testing.T) {
	a := sample.New(10, 20, time.Now())
	b := sample.New(10, 20.0005, time.Now())
	d := Distance(a, b)
	if (Filter{ThresholdMeters: d}).IsSignificant(&a, b) {
		t.Error("distance equal to threshold should not be significant")
	}
	if !(Filter{ThresholdMeters: d - 0.01}).IsSignificant(&a, b) {
		t.Error("distance over threshold should be significant")
	}
}

func distanceOrNaN(prev *sample.Sample, cur sample.Sample) float64 {
	if prev == nil {
		return math.NaN()
	}
	return Distance(*prev, cur)
}
