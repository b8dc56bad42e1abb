package core

import (
	"math"
	"testing"
)

func TestMetricsAverageNeedsFullWindow(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < AVG_COUNT-1; i++ {
		m.Update(0.010)
	}
	if got := m.FrameTime(); got != 0 {
		t.Fatalf("FrameTime() = %v before the window filled, want 0", got)
	}
	m.Update(0.010)
	if got := m.FrameTime(); math.Abs(got-10) > 1e-9 {
		t.Fatalf("FrameTime() = %v, want 10", got)
	}
}

func TestMetricsRollingWindow(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.010)
	}
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.020)
	}
	if got := m.FrameTime(); math.Abs(got-20) > 1e-9 {
		t.Fatalf("FrameTime() = %v, want 20", got)
	}
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	// 101 frames of 10ms crosses the one second mark on the last update.
	for i := 0; i < 101; i++ {
		m.Update(0.010)
	}
	fps, _ := m.Frame()
	if fps != 100 {
		t.Fatalf("FPS = %v, want 100", fps)
	}
}
