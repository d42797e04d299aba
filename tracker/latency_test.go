package tracker

import (
	"testing"
	"time"
)

func TestLatencies(t *testing.T) {
	l := newLatencies()
	if got := l.summary(); got.N != 0 || got.Max != 0 {
		t.Errorf("empty summary should be zero, got %+v", got)
	}
	for i := 1; i <= 100; i++ {
		l.observe(time.Duration(i) * time.Millisecond)
	}
	got := l.summary()
	if got.N != latencyWindow {
		t.Errorf("expected window of %d, got %d", latencyWindow, got.N)
	}
	// The window holds 37..100ms.
	if got.Max != 100 {
		t.Errorf("unexpected max %v", got.Max)
	}
	if got.Median < 60 || got.Median > 75 {
		t.Errorf("unexpected median %v", got.Median)
	}
	if got.P95 < got.Median || got.P95 > got.Max {
		t.Errorf("unexpected p95 %v", got.P95)
	}
}
