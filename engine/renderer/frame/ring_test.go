package frame

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/renderer/deletion"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
	"github.com/spaghettifunk/framering/engine/renderer/softgpu"
)

func newRing(t *testing.T, latency time.Duration) (*softgpu.Backend, *Ring, *deletion.Queue) {
	t.Helper()
	opts := softgpu.DefaultOptions()
	opts.SubmitLatency = latency
	b, err := softgpu.NewBackend(opts)
	if err != nil {
		t.Fatal(err)
	}
	queue := deletion.New()
	ring, err := NewRing(b.Device(), 2, queue)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	return b, ring, queue
}

func shutdown(t *testing.T, b *softgpu.Backend, ring *Ring, queue *deletion.Queue) {
	t.Helper()
	if err := ring.WaitAll(time.Second); err != nil {
		t.Fatalf("WaitAll: %v", err)
	}
	queue.Flush(b.SoftDevice())
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

// drawFrame runs one iteration of the frame protocol on ring.
func drawFrame(t *testing.T, b *softgpu.Backend, ring *Ring, frameNumber uint64) {
	t.Helper()
	dev := b.Device()
	slot := ring.Slot(frameNumber)
	if err := slot.Wait(dev, time.Second); err != nil {
		t.Fatalf("frame %d: Wait: %v", frameNumber, err)
	}
	if err := slot.Reset(dev); err != nil {
		t.Fatalf("frame %d: Reset: %v", frameNumber, err)
	}
	idx, r := b.Swapchain().AcquireNextImage(slot.PresentSemaphore)
	if err := gpu.Check(r, "acquire"); err != nil {
		t.Fatal(err)
	}
	if err := slot.Begin(dev); err != nil {
		t.Fatalf("frame %d: Begin: %v", frameNumber, err)
	}
	if err := slot.Submit(dev); err != nil {
		t.Fatalf("frame %d: Submit: %v", frameNumber, err)
	}
	if err := gpu.Check(b.Swapchain().Present(slot.RenderSemaphore, idx), "present"); err != nil {
		t.Fatal(err)
	}
}

func TestRingBoundsFramesInFlight(t *testing.T) {
	b, ring, queue := newRing(t, 5*time.Millisecond)

	for f := uint64(0); f < 12; f++ {
		if got, want := ring.Index(f), int(f%2); got != want {
			t.Fatalf("Index(%d) = %d, want %d", f, got, want)
		}
		drawFrame(t, b, ring, f)
	}
	s := b.Stats()
	if s.MaxInFlight > 2 {
		t.Fatalf("MaxInFlight = %d, want at most 2", s.MaxInFlight)
	}
	if s.MaxInFlight != 2 {
		t.Fatalf("MaxInFlight = %d, frames did not overlap", s.MaxInFlight)
	}
	if s.Violations() != 0 {
		t.Fatalf("violations: %+v", s)
	}
	if rs := ring.Stats(); rs.Waits != 12 || rs.Timeouts != 0 {
		t.Fatalf("ring stats = %+v", rs)
	}
	shutdown(t, b, ring, queue)
}

func TestSlotTransitions(t *testing.T) {
	b, ring, queue := newRing(t, 0)
	dev := b.Device()
	slot := ring.Slot(0)

	if slot.State() != StateIdle {
		t.Fatalf("new slot is %s", slot.State())
	}
	if err := slot.Reset(dev); !errors.Is(err, ErrSlotState) {
		t.Fatalf("Reset before Wait = %v, want ErrSlotState", err)
	}
	if err := slot.Wait(dev, time.Second); err != nil {
		t.Fatal(err)
	}
	if err := slot.Begin(dev); !errors.Is(err, ErrSlotState) {
		t.Fatalf("Begin before Reset = %v, want ErrSlotState", err)
	}
	if err := slot.Submit(dev); !errors.Is(err, ErrSlotState) {
		t.Fatalf("Submit before Begin = %v, want ErrSlotState", err)
	}
	if err := slot.Reset(dev); err != nil {
		t.Fatal(err)
	}
	if err := slot.Reset(dev); !errors.Is(err, ErrSlotState) {
		t.Fatalf("second Reset = %v, want ErrSlotState", err)
	}
	if err := slot.Begin(dev); err != nil {
		t.Fatal(err)
	}
	if slot.State() != StateRecording {
		t.Fatalf("state after Begin = %s", slot.State())
	}
	if err := slot.Wait(dev, time.Second); !errors.Is(err, ErrSlotState) {
		t.Fatalf("Wait while recording = %v, want ErrSlotState", err)
	}
	// Submit waits on the present semaphore, so something must signal it.
	if _, r := b.Swapchain().AcquireNextImage(slot.PresentSemaphore); !r.IsSuccess() {
		t.Fatal(r)
	}
	if err := slot.Submit(dev); err != nil {
		t.Fatal(err)
	}
	if slot.State() != StateSubmitted {
		t.Fatalf("state after Submit = %s", slot.State())
	}
	// Presenting consumes the render semaphore and returns the image.
	dev.WaitIdle()
	if r := b.Swapchain().Present(slot.RenderSemaphore, 0); !r.IsSuccess() {
		t.Fatal(r)
	}
	shutdown(t, b, ring, queue)
}

func TestFenceTimeoutIsCountedAndFatal(t *testing.T) {
	b, ring, queue := newRing(t, 0)
	dev := b.Device()
	slot := ring.Slot(1)

	if err := slot.Wait(dev, time.Second); err != nil {
		t.Fatal(err)
	}
	if err := slot.Reset(dev); err != nil {
		t.Fatal(err)
	}
	// The fence is unsignaled and nothing was submitted.
	err := slot.Wait(dev, 10*time.Millisecond)
	if !errors.Is(err, ErrFenceTimeout) || !gpu.IsFatal(err) {
		t.Fatalf("Wait = %v, want a fatal fence timeout", err)
	}
	if s := ring.Stats(); s.Timeouts != 1 || s.Waits != 2 {
		t.Fatalf("ring stats = %+v", s)
	}
	shutdown(t, b, ring, queue)
}
