package vulkan

import (
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

func (d *Device) CreateFence(signaled bool) (gpu.Fence, gpu.Result) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	// Make sure to signal the fence if required.
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if res := vk.CreateFence(d.LogicalDevice, &fenceCreateInfo, nil, &fence); res != vk.Success {
		return 0, check(res, "vkCreateFence")
	}
	return gpu.Fence(d.fences.Acquire(fence)), gpu.Success
}

func (d *Device) DestroyFence(id gpu.Fence) {
	if fence, ok := release(d.fences, uint64(id), "fence"); ok {
		vk.DestroyFence(d.LogicalDevice, fence, nil)
	}
}

func timeoutNanos(timeout time.Duration) uint64 {
	if timeout < 0 {
		return vk.MaxUint64
	}
	return uint64(timeout.Nanoseconds())
}

func (d *Device) WaitForFence(id gpu.Fence, timeout time.Duration) gpu.Result {
	fence, ok := lookup(d.fences, uint64(id), "fence")
	if !ok {
		return gpu.ErrorValidationFailed
	}
	res := vk.WaitForFences(d.LogicalDevice, 1, []vk.Fence{fence}, vk.True, timeoutNanos(timeout))
	switch res {
	case vk.Success:
	case vk.Timeout:
		core.LogWarn("vkWaitForFences - Timed out")
	case vk.ErrorDeviceLost:
		core.LogError("vkWaitForFences - VK_ERROR_DEVICE_LOST.")
	case vk.ErrorOutOfHostMemory:
		core.LogError("vkWaitForFences - VK_ERROR_OUT_OF_HOST_MEMORY.")
	case vk.ErrorOutOfDeviceMemory:
		core.LogError("vkWaitForFences - VK_ERROR_OUT_OF_DEVICE_MEMORY.")
	default:
		core.LogError("vkWaitForFences - An unknown error has occurred.")
	}
	return result(res)
}

func (d *Device) ResetFence(id gpu.Fence) gpu.Result {
	fence, ok := lookup(d.fences, uint64(id), "fence")
	if !ok {
		return gpu.ErrorValidationFailed
	}
	return check(vk.ResetFences(d.LogicalDevice, 1, []vk.Fence{fence}), "vkResetFences")
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, gpu.Result) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(d.LogicalDevice, &info, nil, &semaphore); res != vk.Success {
		return 0, check(res, "vkCreateSemaphore")
	}
	return gpu.Semaphore(d.semaphores.Acquire(semaphore)), gpu.Success
}

func (d *Device) DestroySemaphore(id gpu.Semaphore) {
	if semaphore, ok := release(d.semaphores, uint64(id), "semaphore"); ok {
		vk.DestroySemaphore(d.LogicalDevice, semaphore, nil)
	}
}

func (d *Device) semaphoreList(ids []gpu.Semaphore) ([]vk.Semaphore, bool) {
	out := make([]vk.Semaphore, len(ids))
	for i, id := range ids {
		s, ok := lookup(d.semaphores, uint64(id), "semaphore")
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

// Submit queues the command buffers on the graphics queue. signal may be
// zero for submissions nobody waits on.
func (d *Device) Submit(info gpu.SubmitInfo, signal gpu.Fence) gpu.Result {
	if len(info.WaitStages) != len(info.WaitSemaphores) {
		core.LogError("submit with %d wait semaphores and %d wait stages", len(info.WaitSemaphores), len(info.WaitStages))
		return gpu.ErrorValidationFailed
	}
	commandBuffers := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, id := range info.CommandBuffers {
		cb, ok := lookup(d.commandBuffers, uint64(id), "command buffer")
		if !ok {
			return gpu.ErrorValidationFailed
		}
		commandBuffers[i] = cb.handle
	}
	wait, ok := d.semaphoreList(info.WaitSemaphores)
	if !ok {
		return gpu.ErrorValidationFailed
	}
	signalSemaphores, ok := d.semaphoreList(info.SignalSemaphores)
	if !ok {
		return gpu.ErrorValidationFailed
	}
	stages := make([]vk.PipelineStageFlags, len(info.WaitStages))
	for i, s := range info.WaitStages {
		stages[i] = vk.PipelineStageFlags(s)
	}

	fence := vk.NullFence
	if signal != 0 {
		f, ok := lookup(d.fences, uint64(signal), "fence")
		if !ok {
			return gpu.ErrorValidationFailed
		}
		fence = f
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(commandBuffers)),
		PCommandBuffers:      commandBuffers,
		SignalSemaphoreCount: uint32(len(signalSemaphores)),
		PSignalSemaphores:    signalSemaphores,
	}

	var res vk.Result
	d.locks.SafeCall(QueueManagement, func() {
		res = vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence)
	})
	return check(res, "vkQueueSubmit")
}
