package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

// CreateCommandPool creates a resettable pool on the graphics queue family.
func (d *Device) CreateCommandPool() (gpu.CommandPool, gpu.Result) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(d.LogicalDevice, &info, nil, &pool); res != vk.Success {
		return 0, check(res, "vkCreateCommandPool")
	}
	return gpu.CommandPool(d.commandPools.Acquire(&commandPool{handle: pool})), gpu.Success
}

func (d *Device) ResetCommandPool(id gpu.CommandPool) gpu.Result {
	pool, ok := lookup(d.commandPools, uint64(id), "command pool")
	if !ok {
		return gpu.ErrorValidationFailed
	}
	var res vk.Result
	d.locks.SafeCall(CommandPoolManagement, func() {
		res = vk.ResetCommandPool(d.LogicalDevice, pool.handle, 0)
	})
	return check(res, "vkResetCommandPool")
}

// DestroyCommandPool destroys the pool and frees every buffer allocated
// from it.
func (d *Device) DestroyCommandPool(id gpu.CommandPool) {
	pool, ok := release(d.commandPools, uint64(id), "command pool")
	if !ok {
		return
	}
	d.locks.SafeCall(CommandPoolManagement, func() {
		for _, cb := range pool.buffers {
			_, _ = d.commandBuffers.Release(uint64(cb))
		}
		vk.DestroyCommandPool(d.LogicalDevice, pool.handle, nil)
	})
}

func (d *Device) AllocateCommandBuffer(id gpu.CommandPool) (gpu.CommandBuffer, gpu.Result) {
	pool, ok := lookup(d.commandPools, uint64(id), "command pool")
	if !ok {
		return 0, gpu.ErrorValidationFailed
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool.handle,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	var cmd gpu.CommandBuffer
	var res vk.Result
	d.locks.SafeCall(CommandPoolManagement, func() {
		buffers := make([]vk.CommandBuffer, 1)
		res = vk.AllocateCommandBuffers(d.LogicalDevice, &allocateInfo, buffers)
		if res != vk.Success {
			return
		}
		cmd = gpu.CommandBuffer(d.commandBuffers.Acquire(&commandBuffer{handle: buffers[0], pool: id}))
		pool.buffers = append(pool.buffers, cmd)
	})
	if res != vk.Success {
		return 0, check(res, "vkAllocateCommandBuffers")
	}
	return cmd, gpu.Success
}

func (d *Device) commandBuffer(id gpu.CommandBuffer) (vk.CommandBuffer, bool) {
	cb, ok := lookup(d.commandBuffers, uint64(id), "command buffer")
	if !ok {
		return nil, false
	}
	return cb.handle, true
}

func (d *Device) ResetCommandBuffer(id gpu.CommandBuffer) gpu.Result {
	cmd, ok := d.commandBuffer(id)
	if !ok {
		return gpu.ErrorValidationFailed
	}
	return check(vk.ResetCommandBuffer(cmd, 0), "vkResetCommandBuffer")
}

func (d *Device) BeginCommandBuffer(id gpu.CommandBuffer, oneTimeSubmit bool) gpu.Result {
	cmd, ok := d.commandBuffer(id)
	if !ok {
		return gpu.ErrorValidationFailed
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return check(vk.BeginCommandBuffer(cmd, &beginInfo), "vkBeginCommandBuffer")
}

func (d *Device) EndCommandBuffer(id gpu.CommandBuffer) gpu.Result {
	cmd, ok := d.commandBuffer(id)
	if !ok {
		return gpu.ErrorValidationFailed
	}
	return check(vk.EndCommandBuffer(cmd), "vkEndCommandBuffer")
}

func (d *Device) CmdBeginRenderPass(id gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	cmd, ok := d.commandBuffer(id)
	if !ok {
		return
	}
	pass, ok := lookup(d.renderPasses, uint64(begin.RenderPass), "render pass")
	if !ok {
		return
	}
	framebuffer, ok := lookup(d.framebuffers, uint64(begin.Framebuffer), "framebuffer")
	if !ok {
		return
	}

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(begin.ClearColor[:])
	clearValues[1].SetDepthStencil(begin.ClearDepth, 0)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: begin.Extent.Width, Height: begin.Extent.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(cmd, &beginInfo, vk.SubpassContentsInline)
}

func (d *Device) CmdEndRenderPass(id gpu.CommandBuffer) {
	if cmd, ok := d.commandBuffer(id); ok {
		vk.CmdEndRenderPass(cmd)
	}
}

func (d *Device) CmdBindPipeline(id gpu.CommandBuffer, pipeline gpu.Pipeline) {
	cmd, ok := d.commandBuffer(id)
	if !ok {
		return
	}
	if p, ok := lookup(d.pipelines, uint64(pipeline), "pipeline"); ok {
		vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, p)
	}
}

func (d *Device) CmdBindDescriptorSets(id gpu.CommandBuffer, layout gpu.PipelineLayout, firstSet uint32, sets []gpu.DescriptorSet, dynamicOffsets []uint32) {
	cmd, ok := d.commandBuffer(id)
	if !ok {
		return
	}
	l, ok := lookup(d.pipelineLayouts, uint64(layout), "pipeline layout")
	if !ok {
		return
	}
	handles := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		set, ok := lookup(d.descriptorSets, uint64(s), "descriptor set")
		if !ok {
			return
		}
		handles[i] = set.handle
	}
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, l.handle, firstSet,
		uint32(len(handles)), handles, uint32(len(dynamicOffsets)), dynamicOffsets)
}

func (d *Device) CmdBindVertexBuffer(id gpu.CommandBuffer, buffer gpu.Buffer, offset uint64) {
	cmd, ok := d.commandBuffer(id)
	if !ok {
		return
	}
	if b, ok := lookup(d.buffers, uint64(buffer), "buffer"); ok {
		vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{b}, []vk.DeviceSize{vk.DeviceSize(offset)})
	}
}

func (d *Device) CmdPushConstants(id gpu.CommandBuffer, layout gpu.PipelineLayout, stages gpu.ShaderStage, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	cmd, ok := d.commandBuffer(id)
	if !ok {
		return
	}
	l, ok := lookup(d.pipelineLayouts, uint64(layout), "pipeline layout")
	if !ok {
		return
	}
	if uint32(len(data))+offset > d.limits.MaxPushConstantsSize {
		core.LogError("push constant range %d+%d exceeds the device limit", offset, len(data))
		return
	}
	vk.CmdPushConstants(cmd, l.handle, vk.ShaderStageFlags(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (d *Device) CmdDraw(id gpu.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if cmd, ok := d.commandBuffer(id); ok {
		vk.CmdDraw(cmd, vertexCount, instanceCount, firstVertex, firstInstance)
	}
}

func (d *Device) CmdCopyBuffer(id gpu.CommandBuffer, src, dst gpu.Buffer, regions []gpu.BufferCopy) {
	cmd, ok := d.commandBuffer(id)
	if !ok {
		return
	}
	s, ok := lookup(d.buffers, uint64(src), "buffer")
	if !ok {
		return
	}
	t, ok := lookup(d.buffers, uint64(dst), "buffer")
	if !ok {
		return
	}
	copies := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		copies[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(cmd, s, t, uint32(len(copies)), copies)
}
