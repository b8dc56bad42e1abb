package core

import (
	"sync"

	"github.com/spaghettifunk/framering/engine/containers"
)

const AVG_COUNT = 30

// Metrics keeps a rolling average of frame times and the frames counted
// over the last full second.
type Metrics struct {
	mu                 sync.Mutex
	msTimes            *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewMetrics() *Metrics {
	return &Metrics{
		msTimes: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

// Update records one frame that took frameElapsedTime seconds.
func (m *Metrics) Update(frameElapsedTime float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Calculate frame ms average
	frameMS := frameElapsedTime * 1000.0
	m.msTimes.Push(frameMS)
	if m.msTimes.IsFull() {
		sum := 0.0
		m.msTimes.Each(func(v float64) { sum += v })
		m.msAvg = sum / float64(m.msTimes.Len())
	}

	// Calculate Frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	// Count all Frames.
	m.frames++
}

func (m *Metrics) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps
}

// FrameTime is the average frame time in milliseconds over the last
// AVG_COUNT frames; zero until that many frames were recorded.
func (m *Metrics) FrameTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.msAvg
}

func (m *Metrics) Frame() (float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fps, m.msAvg
}
