package tracker

import (
	"github.com/montanaflynn/stats"
	"github.com/rotblauer/triptrack/common"
	"math"
	"time"
)

// latencyWindow is how many recent dispatch round trips the summary covers.
const latencyWindow = 64

// Latency summarizes recent dispatch round trips, in milliseconds.
type Latency struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean_ms"`
	Median float64 `json:"median_ms"`
	P95    float64 `json:"p95_ms"`
	Max    float64 `json:"max_ms"`
}

type latencies struct {
	ring *common.RingBuffer[float64]
}

func newLatencies() *latencies {
	return &latencies{ring: common.NewRingBuffer[float64](latencyWindow)}
}

func (l *latencies) observe(d time.Duration) {
	l.ring.Add(float64(d.Microseconds()) / 1000)
}

func (l *latencies) summary() Latency {
	data := stats.Float64Data(l.ring.Get())
	if data.Len() == 0 {
		return Latency{}
	}
	must := func(fn func() (float64, error)) float64 {
		v, err := fn()
		if err != nil || math.IsNaN(v) {
			return 0
		}
		return math.Round(v*10) / 10
	}
	return Latency{
		N:      data.Len(),
		Mean:   must(data.Mean),
		Median: must(data.Median),
		P95:    must(func() (float64, error) { return stats.Percentile(data, 95) }),
		Max:    must(data.Max),
	}
}
