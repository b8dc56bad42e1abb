package frame

import (
	"bytes"
	"testing"
	"time"

	"github.com/spaghettifunk/framering/engine/renderer/deletion"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
	"github.com/spaghettifunk/framering/engine/renderer/softgpu"
)

func TestImmediateSubmitIsSynchronous(t *testing.T) {
	opts := softgpu.DefaultOptions()
	opts.SubmitLatency = 25 * time.Millisecond
	b, err := softgpu.NewBackend(opts)
	if err != nil {
		t.Fatal(err)
	}
	dev := b.SoftDevice()
	queue := deletion.New()

	upload, err := NewUploadContext(dev, time.Second, queue)
	if err != nil {
		t.Fatalf("NewUploadContext: %v", err)
	}

	payload := bytes.Repeat([]byte("vertex"), 1000)
	size := uint64(len(payload))
	staging, _ := dev.CreateBuffer(size, gpu.BufferUsageTransferSrc, gpu.MemoryUsageCPUOnly)
	dst, _ := dev.CreateBuffer(size, gpu.BufferUsageTransferDst|gpu.BufferUsageVertexBuffer, gpu.MemoryUsageGPUOnly)
	queue.PushBuffer(dst, "destination")
	if err := WriteBuffer(dev, staging, 0, payload); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		err := upload.ImmediateSubmit(func(cmd gpu.CommandBuffer) {
			dev.CmdCopyBuffer(cmd, staging.Buffer, dst.Buffer, []gpu.BufferCopy{{Size: size}})
		})
		if err != nil {
			t.Fatalf("ImmediateSubmit #%d: %v", i, err)
		}
		got, _ := dev.ReadBuffer(dst.Buffer)
		if !bytes.Equal(got, payload) {
			t.Fatalf("ImmediateSubmit #%d returned before the copy landed", i)
		}
	}
	dev.DestroyBuffer(staging)

	if s := dev.Stats(); s.Violations() != 0 || s.InFlight != 0 {
		t.Fatalf("stats = %+v", s)
	}
	if upload.Uploads() != 2 {
		t.Fatalf("Uploads() = %d, want 2", upload.Uploads())
	}
	queue.Flush(dev)
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestImmediateSubmitTimeoutIsFatal(t *testing.T) {
	opts := softgpu.DefaultOptions()
	opts.SubmitLatency = 200 * time.Millisecond
	b, err := softgpu.NewBackend(opts)
	if err != nil {
		t.Fatal(err)
	}
	dev := b.SoftDevice()
	queue := deletion.New()
	upload, err := NewUploadContext(dev, 10*time.Millisecond, queue)
	if err != nil {
		t.Fatal(err)
	}

	err = upload.ImmediateSubmit(func(gpu.CommandBuffer) {})
	if !gpu.IsFatal(err) {
		t.Fatalf("ImmediateSubmit = %v, want a fatal error", err)
	}
	dev.WaitIdle()
	queue.Flush(dev)
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
