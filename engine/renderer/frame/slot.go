// Package frame holds the per-frame GPU resources that let the CPU record
// one frame while the GPU still executes the previous one.
package frame

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/deletion"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

var (
	// ErrFenceTimeout is returned, marked fatal, when a slot fence does not
	// signal within the configured timeout.
	ErrFenceTimeout = errors.New("frame fence wait timed out")
	// ErrSlotState is returned when a slot transition is attempted out of
	// order. It always indicates a bug in the caller.
	ErrSlotState = errors.New("invalid frame slot transition")
)

type State int

const (
	// StateIdle means the fence is signaled or about to be awaited.
	StateIdle State = iota
	StateRecording
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Slot is one set of per-frame resources. Its command buffer and the
// uniform memory it points at may only be touched after Wait returned.
type Slot struct {
	Index int

	CommandPool   gpu.CommandPool
	CommandBuffer gpu.CommandBuffer

	RenderFence gpu.Fence
	// PresentSemaphore is signaled when the acquired image may be drawn.
	PresentSemaphore gpu.Semaphore
	// RenderSemaphore is signaled when rendering finished and the image may
	// be presented.
	RenderSemaphore gpu.Semaphore

	// Filled by variants that use descriptors.
	CameraBuffer     gpu.AllocatedBuffer
	ObjectBuffer     gpu.AllocatedBuffer
	GlobalDescriptor gpu.DescriptorSet
	ObjectDescriptor gpu.DescriptorSet

	state    State
	observed bool
	resetOK  bool

	waits    uint64
	timeouts uint64
}

// NewSlot creates the command and synchronization objects of a slot and
// registers their release with queue. The fence starts signaled so the
// first Wait returns immediately.
func NewSlot(dev gpu.Device, index int, queue *deletion.Queue) (*Slot, error) {
	s := &Slot{Index: index}
	label := fmt.Sprintf("frame %d", index)

	pool, r := dev.CreateCommandPool()
	if err := gpu.Check(r, "vkCreateCommandPool"); err != nil {
		return nil, err
	}
	queue.PushCommandPool(pool, label)
	s.CommandPool = pool

	cmd, r := dev.AllocateCommandBuffer(pool)
	if err := gpu.Check(r, "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	s.CommandBuffer = cmd

	fence, r := dev.CreateFence(true)
	if err := gpu.Check(r, "vkCreateFence"); err != nil {
		return nil, err
	}
	queue.PushFence(fence, label)
	s.RenderFence = fence

	present, r := dev.CreateSemaphore()
	if err := gpu.Check(r, "vkCreateSemaphore"); err != nil {
		return nil, err
	}
	queue.PushSemaphore(present, label+" present")
	s.PresentSemaphore = present

	render, r := dev.CreateSemaphore()
	if err := gpu.Check(r, "vkCreateSemaphore"); err != nil {
		return nil, err
	}
	queue.PushSemaphore(render, label+" render")
	s.RenderSemaphore = render

	return s, nil
}

func (s *Slot) State() State {
	return s.state
}

// Wait blocks until the previous submission of this slot finished on the
// GPU. A timeout is counted and returned as a fatal error.
func (s *Slot) Wait(dev gpu.Device, timeout time.Duration) error {
	if s.state == StateRecording {
		return errors.Wrapf(ErrSlotState, "wait on slot %d while %s", s.Index, s.state)
	}
	s.waits++
	r := dev.WaitForFence(s.RenderFence, timeout)
	if r == gpu.Timeout {
		s.timeouts++
		core.LogError("frame slot %d fence did not signal within %s", s.Index, timeout)
		return errors.Mark(errors.Wrapf(ErrFenceTimeout, "slot %d after %s", s.Index, timeout), gpu.ErrFatal)
	}
	if err := gpu.Check(r, "vkWaitForFences"); err != nil {
		return err
	}
	s.state = StateIdle
	s.observed = true
	return nil
}

// Reset unsignals the fence and resets the command buffer. It refuses to
// run unless Wait observed the fence signaled since the last submission.
func (s *Slot) Reset(dev gpu.Device) error {
	if s.state != StateIdle || !s.observed {
		return errors.Wrapf(ErrSlotState, "reset of slot %d before its fence was observed", s.Index)
	}
	if err := gpu.Check(dev.ResetFence(s.RenderFence), "vkResetFences"); err != nil {
		return err
	}
	if err := gpu.Check(dev.ResetCommandBuffer(s.CommandBuffer), "vkResetCommandBuffer"); err != nil {
		return err
	}
	s.observed = false
	s.resetOK = true
	return nil
}

// Begin starts recording the slot's command buffer.
func (s *Slot) Begin(dev gpu.Device) error {
	if s.state != StateIdle || !s.resetOK {
		return errors.Wrapf(ErrSlotState, "begin on slot %d in state %s", s.Index, s.state)
	}
	if err := gpu.Check(dev.BeginCommandBuffer(s.CommandBuffer, true), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	s.state = StateRecording
	return nil
}

// Submit ends recording and queues the command buffer. Execution waits on
// PresentSemaphore at the color attachment output stage and signals both
// RenderSemaphore and the fence.
func (s *Slot) Submit(dev gpu.Device) error {
	if s.state != StateRecording {
		return errors.Wrapf(ErrSlotState, "submit of slot %d in state %s", s.Index, s.state)
	}
	if err := gpu.Check(dev.EndCommandBuffer(s.CommandBuffer), "vkEndCommandBuffer"); err != nil {
		return err
	}
	info := gpu.SubmitInfo{
		CommandBuffers:   []gpu.CommandBuffer{s.CommandBuffer},
		WaitSemaphores:   []gpu.Semaphore{s.PresentSemaphore},
		WaitStages:       []gpu.PipelineStage{gpu.PipelineStageColorAttachmentOutput},
		SignalSemaphores: []gpu.Semaphore{s.RenderSemaphore},
	}
	if err := gpu.Check(dev.Submit(info, s.RenderFence), "vkQueueSubmit"); err != nil {
		return err
	}
	s.state = StateSubmitted
	s.resetOK = false
	return nil
}
