package gpu

import "time"

// WaitForever is passed to waits that must not time out.
const WaitForever time.Duration = -1

// Allocator owns device memory for buffers and images.
type Allocator interface {
	CreateBuffer(size uint64, usage BufferUsage, memory MemoryUsage) (AllocatedBuffer, Result)
	DestroyBuffer(buffer AllocatedBuffer)
	// MapMemory returns a host view of the whole allocation. The slice is
	// only valid until UnmapMemory.
	MapMemory(allocation Allocation) ([]byte, Result)
	UnmapMemory(allocation Allocation)

	CreateImage(info ImageInfo) (AllocatedImage, Result)
	DestroyImage(image AllocatedImage)
}

// Recorder records commands into a command buffer in the recording state.
type Recorder interface {
	CmdBeginRenderPass(cmd CommandBuffer, begin RenderPassBegin)
	CmdEndRenderPass(cmd CommandBuffer)
	CmdBindPipeline(cmd CommandBuffer, pipeline Pipeline)
	CmdBindDescriptorSets(cmd CommandBuffer, layout PipelineLayout, firstSet uint32, sets []DescriptorSet, dynamicOffsets []uint32)
	CmdBindVertexBuffer(cmd CommandBuffer, buffer Buffer, offset uint64)
	CmdPushConstants(cmd CommandBuffer, layout PipelineLayout, stages ShaderStage, offset uint32, data []byte)
	CmdDraw(cmd CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdCopyBuffer(cmd CommandBuffer, src, dst Buffer, regions []BufferCopy)
}

// Device is the logical device plus its single graphics queue.
type Device interface {
	Allocator
	Recorder

	Limits() Limits
	DepthFormat() Format

	CreateFence(signaled bool) (Fence, Result)
	// WaitForFence blocks until the fence signals or timeout elapses, in
	// which case it returns Timeout. WaitForever disables the timeout.
	WaitForFence(fence Fence, timeout time.Duration) Result
	ResetFence(fence Fence) Result
	DestroyFence(fence Fence)

	CreateSemaphore() (Semaphore, Result)
	DestroySemaphore(semaphore Semaphore)

	CreateCommandPool() (CommandPool, Result)
	ResetCommandPool(pool CommandPool) Result
	DestroyCommandPool(pool CommandPool)
	AllocateCommandBuffer(pool CommandPool) (CommandBuffer, Result)
	ResetCommandBuffer(cmd CommandBuffer) Result
	BeginCommandBuffer(cmd CommandBuffer, oneTimeSubmit bool) Result
	EndCommandBuffer(cmd CommandBuffer) Result

	// Submit queues work on the graphics queue; signal may be zero.
	Submit(info SubmitInfo, signal Fence) Result
	WaitIdle() Result

	CreateImageView(image Image, format Format, aspect ImageAspect) (ImageView, Result)
	DestroyImageView(view ImageView)
	CreateRenderPass(info RenderPassInfo) (RenderPass, Result)
	DestroyRenderPass(pass RenderPass)
	CreateFramebuffer(info FramebufferInfo) (Framebuffer, Result)
	DestroyFramebuffer(framebuffer Framebuffer)

	CreateShaderModule(code []uint32) (ShaderModule, Result)
	DestroyShaderModule(module ShaderModule)
	CreatePipelineLayout(info PipelineLayoutInfo) (PipelineLayout, Result)
	DestroyPipelineLayout(layout PipelineLayout)
	CreateGraphicsPipeline(info PipelineInfo) (Pipeline, Result)
	DestroyPipeline(pipeline Pipeline)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, Result)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, Result)
	DestroyDescriptorPool(pool DescriptorPool)
	// Descriptor sets are released with their pool.
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, Result)
	UpdateDescriptorSets(writes []DescriptorWrite)
}

// Swapchain hands out presentable images.
type Swapchain interface {
	Format() Format
	Extent() Extent2D
	ImageViews() []ImageView
	// AcquireNextImage blocks without a timeout until an image is
	// available; signal is signaled when the image may be rendered to.
	AcquireNextImage(signal Semaphore) (uint32, Result)
	// Present queues the image for presentation after wait signals.
	Present(wait Semaphore, imageIndex uint32) Result
}

// Key identifies the keys the engine reacts to.
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeySpace
)

// Window is the quit signal and input source of a backend.
type Window interface {
	PollEvents()
	ShouldClose() bool
	// KeyPresses drains the keys pressed since the previous call.
	KeyPresses() []Key
	Extent() Extent2D
}

// Backend bundles everything a device bootstrap produces.
type Backend interface {
	Device() Device
	Swapchain() Swapchain
	Window() Window
	// Shutdown releases the swapchain, device, surface and window. Every
	// object created through Device must be destroyed before.
	Shutdown() error
}
