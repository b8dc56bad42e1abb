package softgpu

import (
	"bytes"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

func newTestBackend(t *testing.T, latency time.Duration) *Backend {
	t.Helper()
	opts := DefaultOptions()
	opts.SubmitLatency = latency
	b, err := NewBackend(opts)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	return b
}

func mustOK(t *testing.T, r gpu.Result, op string) {
	t.Helper()
	if !r.IsSuccess() {
		t.Fatalf("%s = %s", op, r)
	}
}

// recordCopy records a copy of size bytes from src to dst into a fresh
// command buffer and returns it ready for submission.
func recordCopy(t *testing.T, d *Device, src, dst gpu.AllocatedBuffer, size uint64) (gpu.CommandPool, gpu.CommandBuffer) {
	t.Helper()
	pool, r := d.CreateCommandPool()
	mustOK(t, r, "CreateCommandPool")
	cmd, r := d.AllocateCommandBuffer(pool)
	mustOK(t, r, "AllocateCommandBuffer")
	mustOK(t, d.BeginCommandBuffer(cmd, true), "BeginCommandBuffer")
	d.CmdCopyBuffer(cmd, src.Buffer, dst.Buffer, []gpu.BufferCopy{{Size: size}})
	mustOK(t, d.EndCommandBuffer(cmd), "EndCommandBuffer")
	return pool, cmd
}

func newCopyPair(t *testing.T, d *Device, payload []byte) (gpu.AllocatedBuffer, gpu.AllocatedBuffer) {
	t.Helper()
	size := uint64(len(payload))
	src, r := d.CreateBuffer(size, gpu.BufferUsageTransferSrc, gpu.MemoryUsageCPUOnly)
	mustOK(t, r, "CreateBuffer(staging)")
	dst, r := d.CreateBuffer(size, gpu.BufferUsageTransferDst|gpu.BufferUsageVertexBuffer, gpu.MemoryUsageGPUOnly)
	mustOK(t, r, "CreateBuffer(vertex)")
	mapped, r := d.MapMemory(src.Allocation)
	mustOK(t, r, "MapMemory")
	copy(mapped, payload)
	d.UnmapMemory(src.Allocation)
	return src, dst
}

func TestSubmitExecutesAsynchronously(t *testing.T) {
	b := newTestBackend(t, 20*time.Millisecond)
	d := b.SoftDevice()

	payload := []byte("frame in flight")
	src, dst := newCopyPair(t, d, payload)
	pool, cmd := recordCopy(t, d, src, dst, uint64(len(payload)))
	f, r := d.CreateFence(false)
	mustOK(t, r, "CreateFence")

	mustOK(t, d.Submit(gpu.SubmitInfo{CommandBuffers: []gpu.CommandBuffer{cmd}}, f), "Submit")
	if r := d.WaitForFence(f, 0); r != gpu.Timeout {
		t.Fatalf("WaitForFence right after Submit = %s, want timeout", r)
	}
	mustOK(t, d.WaitForFence(f, time.Second), "WaitForFence")

	got, ok := d.ReadBuffer(dst.Buffer)
	if !ok || !bytes.Equal(got, payload) {
		t.Fatalf("destination = %q, want %q", got, payload)
	}

	d.DestroyFence(f)
	d.DestroyCommandPool(pool)
	d.DestroyBuffer(src)
	d.DestroyBuffer(dst)
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if s := b.Stats(); s.Violations() != 0 || s.CopiedBytes != uint64(len(payload)) {
		t.Fatalf("stats = %+v", s)
	}
}

func TestPendingWorkIsProtected(t *testing.T) {
	b := newTestBackend(t, 50*time.Millisecond)
	d := b.SoftDevice()

	src, dst := newCopyPair(t, d, make([]byte, 64))
	pool, cmd := recordCopy(t, d, src, dst, 64)
	f, _ := d.CreateFence(false)
	mustOK(t, d.Submit(gpu.SubmitInfo{CommandBuffers: []gpu.CommandBuffer{cmd}}, f), "Submit")

	if r := d.ResetFence(f); r != gpu.ErrorValidationFailed {
		t.Errorf("ResetFence while pending = %s", r)
	}
	if r := d.ResetCommandBuffer(cmd); r != gpu.ErrorValidationFailed {
		t.Errorf("ResetCommandBuffer while pending = %s", r)
	}
	if r := d.ResetCommandPool(pool); r != gpu.ErrorValidationFailed {
		t.Errorf("ResetCommandPool while pending = %s", r)
	}
	d.DestroyBuffer(src)

	mustOK(t, d.WaitForFence(f, time.Second), "WaitForFence")
	s := d.Stats()
	if s.ResetWhilePending != 3 {
		t.Errorf("ResetWhilePending = %d, want 3", s.ResetWhilePending)
	}
	// One for the destroy, one for the copy executing without its source.
	if s.UseAfterDestroy != 2 {
		t.Errorf("UseAfterDestroy = %d, want 2", s.UseAfterDestroy)
	}

	d.DestroyFence(f)
	d.DestroyCommandPool(pool)
	d.DestroyBuffer(dst)
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestHostWritesIntoPendingReads(t *testing.T) {
	b := newTestBackend(t, 200*time.Millisecond)
	d := b.SoftDevice()

	src, dst := newCopyPair(t, d, make([]byte, 128))
	pool, cmd := recordCopy(t, d, src, dst, 64)
	f, _ := d.CreateFence(false)
	mustOK(t, d.Submit(gpu.SubmitInfo{CommandBuffers: []gpu.CommandBuffer{cmd}}, f), "Submit")

	tests := []struct {
		name    string
		offset  int
		hazards uint64
	}{
		{"outside the copied range", 64, 0},
		{"inside the copied range", 0, 1},
	}
	for _, tt := range tests {
		mapped, r := d.MapMemory(src.Allocation)
		mustOK(t, r, "MapMemory")
		copy(mapped[tt.offset:], "host")
		d.UnmapMemory(src.Allocation)
		if got := d.Stats().HostWriteHazards; got != tt.hazards {
			t.Fatalf("%s: HostWriteHazards = %d, want %d", tt.name, got, tt.hazards)
		}
	}

	mustOK(t, d.WaitForFence(f, time.Second), "WaitForFence")
	got, _ := d.ReadBuffer(dst.Buffer)
	if !bytes.Equal(got[:64], make([]byte, 64)) {
		t.Fatalf("copy saw the racing host write: %q", got[:4])
	}
	staged, _ := d.ReadBuffer(src.Buffer)
	if string(staged[64:68]) != "host" {
		t.Fatalf("write outside the pending range was lost: %q", staged[64:68])
	}

	// Once the fence signaled the range is free again.
	mapped, _ := d.MapMemory(src.Allocation)
	copy(mapped, "next")
	d.UnmapMemory(src.Allocation)
	if s := d.Stats(); s.HostWriteHazards != 1 || s.Violations() != 1 {
		t.Fatalf("stats after the fence = %+v", s)
	}

	d.DestroyFence(f)
	d.DestroyCommandPool(pool)
	d.DestroyBuffer(src)
	d.DestroyBuffer(dst)
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestWaitOnUnsignaledSemaphore(t *testing.T) {
	b := newTestBackend(t, 0)
	d := b.SoftDevice()

	sem, _ := d.CreateSemaphore()
	pool, _ := d.CreateCommandPool()
	cmd, _ := d.AllocateCommandBuffer(pool)
	mustOK(t, d.BeginCommandBuffer(cmd, true), "BeginCommandBuffer")
	mustOK(t, d.EndCommandBuffer(cmd), "EndCommandBuffer")

	r := d.Submit(gpu.SubmitInfo{
		CommandBuffers: []gpu.CommandBuffer{cmd},
		WaitSemaphores: []gpu.Semaphore{sem},
		WaitStages:     []gpu.PipelineStage{gpu.PipelineStageColorAttachmentOutput},
	}, 0)
	if r != gpu.ErrorValidationFailed {
		t.Fatalf("Submit = %s, want validation failure", r)
	}
	if got := d.Stats().UnsignaledWaits; got != 1 {
		t.Fatalf("UnsignaledWaits = %d, want 1", got)
	}

	d.DestroyCommandPool(pool)
	d.DestroySemaphore(sem)
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestFenceTimeout(t *testing.T) {
	b := newTestBackend(t, 0)
	d := b.SoftDevice()
	f, _ := d.CreateFence(false)
	if r := d.WaitForFence(f, 10*time.Millisecond); r != gpu.Timeout {
		t.Fatalf("WaitForFence on an unsubmitted fence = %s, want timeout", r)
	}
	signaled, _ := d.CreateFence(true)
	mustOK(t, d.WaitForFence(signaled, 0), "WaitForFence(signaled)")
	d.DestroyFence(f)
	d.DestroyFence(signaled)
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestShutdownReportsLeaks(t *testing.T) {
	b := newTestBackend(t, 0)
	if _, r := b.SoftDevice().CreateBuffer(16, gpu.BufferUsageUniformBuffer, gpu.MemoryUsageCPUToGPU); !r.IsSuccess() {
		t.Fatalf("CreateBuffer = %s", r)
	}
	err := b.Shutdown()
	if !errors.Is(err, ErrLeakedObjects) {
		t.Fatalf("Shutdown = %v, want ErrLeakedObjects", err)
	}
}

func TestShaderModuleNeedsSpirv(t *testing.T) {
	b := newTestBackend(t, 0)
	d := b.SoftDevice()
	if _, r := d.CreateShaderModule([]uint32{0xdeadbeef, 0, 0, 0, 0}); r.IsSuccess() {
		t.Fatal("CreateShaderModule accepted a module without the SPIR-V magic")
	}
	m, r := d.CreateShaderModule([]uint32{SpirvMagic, 0x00010000, 0, 1, 0})
	mustOK(t, r, "CreateShaderModule")
	d.DestroyShaderModule(m)
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestSwapchainCycle(t *testing.T) {
	b := newTestBackend(t, time.Millisecond)
	d := b.SoftDevice()
	sc := b.Swapchain()

	acquired, _ := d.CreateSemaphore()
	rendered, _ := d.CreateSemaphore()
	pool, _ := d.CreateCommandPool()
	cmd, _ := d.AllocateCommandBuffer(pool)
	f, _ := d.CreateFence(true)

	for frame := 0; frame < 7; frame++ {
		mustOK(t, d.WaitForFence(f, time.Second), "WaitForFence")
		mustOK(t, d.ResetFence(f), "ResetFence")
		idx, r := sc.AcquireNextImage(acquired)
		mustOK(t, r, "AcquireNextImage")
		if want := uint32(frame % len(sc.ImageViews())); idx != want {
			t.Fatalf("frame %d acquired image %d, want %d", frame, idx, want)
		}
		mustOK(t, d.ResetCommandBuffer(cmd), "ResetCommandBuffer")
		mustOK(t, d.BeginCommandBuffer(cmd, true), "BeginCommandBuffer")
		mustOK(t, d.EndCommandBuffer(cmd), "EndCommandBuffer")
		mustOK(t, d.Submit(gpu.SubmitInfo{
			CommandBuffers:   []gpu.CommandBuffer{cmd},
			WaitSemaphores:   []gpu.Semaphore{acquired},
			WaitStages:       []gpu.PipelineStage{gpu.PipelineStageColorAttachmentOutput},
			SignalSemaphores: []gpu.Semaphore{rendered},
		}, f), "Submit")
		mustOK(t, sc.Present(rendered, idx), "Present")
	}
	d.WaitIdle()

	s := d.Stats()
	if s.Presents != 7 || s.Acquires != 7 || s.Violations() != 0 {
		t.Fatalf("stats = %+v", s)
	}
	if s.MaxInFlight != 1 {
		t.Fatalf("MaxInFlight = %d, want 1", s.MaxInFlight)
	}

	d.DestroyFence(f)
	d.DestroyCommandPool(pool)
	d.DestroySemaphore(acquired)
	d.DestroySemaphore(rendered)
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
