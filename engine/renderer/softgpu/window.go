package softgpu

import (
	"sync"

	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

// Window is a headless gpu.Window. Input is injected with Press and Close.
type Window struct {
	mu     sync.Mutex
	extent gpu.Extent2D
	closed bool
	keys   []gpu.Key
	polls  uint64
}

func NewWindow(extent gpu.Extent2D) *Window {
	return &Window{extent: extent}
}

func (w *Window) PollEvents() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.polls++
}

func (w *Window) ShouldClose() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Window) KeyPresses() []gpu.Key {
	w.mu.Lock()
	defer w.mu.Unlock()
	keys := w.keys
	w.keys = nil
	return keys
}

func (w *Window) Extent() gpu.Extent2D {
	return w.extent
}

// Press queues a key press for the next KeyPresses call.
func (w *Window) Press(k gpu.Key) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keys = append(w.keys, k)
}

// Close makes ShouldClose report true.
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

// Polls is the number of PollEvents calls.
func (w *Window) Polls() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.polls
}
