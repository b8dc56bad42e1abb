package frame

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/deletion"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

var ErrUploadTimeout = errors.New("upload fence wait timed out")

// UploadContext runs one-shot transfer command buffers and blocks until the
// GPU executed them. It belongs to the frame thread like the rest of the
// renderer and is not safe for concurrent use.
type UploadContext struct {
	dev     gpu.Device
	pool    gpu.CommandPool
	cmd     gpu.CommandBuffer
	fence   gpu.Fence
	timeout time.Duration
	uploads uint64
}

func NewUploadContext(dev gpu.Device, timeout time.Duration, queue *deletion.Queue) (*UploadContext, error) {
	fence, r := dev.CreateFence(false)
	if err := gpu.Check(r, "vkCreateFence"); err != nil {
		return nil, err
	}
	queue.PushFence(fence, "upload")

	pool, r := dev.CreateCommandPool()
	if err := gpu.Check(r, "vkCreateCommandPool"); err != nil {
		return nil, err
	}
	queue.PushCommandPool(pool, "upload")

	cmd, r := dev.AllocateCommandBuffer(pool)
	if err := gpu.Check(r, "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}

	return &UploadContext{
		dev:     dev,
		pool:    pool,
		cmd:     cmd,
		fence:   fence,
		timeout: timeout,
	}, nil
}

// ImmediateSubmit records the commands issued by record, submits them and
// waits for completion. When it returns without error every command record
// issued has executed, so source buffers may be destroyed or rewritten.
func (u *UploadContext) ImmediateSubmit(record func(cmd gpu.CommandBuffer)) error {
	if err := gpu.Check(u.dev.BeginCommandBuffer(u.cmd, true), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	record(u.cmd)
	if err := gpu.Check(u.dev.EndCommandBuffer(u.cmd), "vkEndCommandBuffer"); err != nil {
		return err
	}

	info := gpu.SubmitInfo{CommandBuffers: []gpu.CommandBuffer{u.cmd}}
	if err := gpu.Check(u.dev.Submit(info, u.fence), "vkQueueSubmit"); err != nil {
		return err
	}

	r := u.dev.WaitForFence(u.fence, u.timeout)
	if r == gpu.Timeout {
		core.LogError("upload did not complete within %s", u.timeout)
		return errors.Mark(errors.Wrapf(ErrUploadTimeout, "after %s", u.timeout), gpu.ErrFatal)
	}
	if err := gpu.Check(r, "vkWaitForFences"); err != nil {
		return err
	}
	if err := gpu.Check(u.dev.ResetFence(u.fence), "vkResetFences"); err != nil {
		return err
	}
	if err := gpu.Check(u.dev.ResetCommandPool(u.pool), "vkResetCommandPool"); err != nil {
		return err
	}
	u.uploads++
	return nil
}

// Uploads is the number of completed ImmediateSubmit calls.
func (u *UploadContext) Uploads() uint64 {
	return u.uploads
}
