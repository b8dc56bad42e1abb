package gpu

// Opaque object handles. The zero value of every handle is the null handle.
type (
	Buffer              uint64
	Image               uint64
	ImageView           uint64
	Allocation          uint64
	Fence               uint64
	Semaphore           uint64
	CommandPool         uint64
	CommandBuffer       uint64
	RenderPass          uint64
	Framebuffer         uint64
	ShaderModule        uint64
	PipelineLayout      uint64
	Pipeline            uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
)

// AllocatedBuffer pairs a buffer with the memory backing it.
type AllocatedBuffer struct {
	Buffer     Buffer
	Allocation Allocation
	Size       uint64
}

// IsNull reports whether the buffer was never created or already released.
func (b AllocatedBuffer) IsNull() bool {
	return b.Buffer == 0
}

// AllocatedImage pairs an image with the memory backing it.
type AllocatedImage struct {
	Image      Image
	Allocation Allocation
	Size       uint64
}

func (i AllocatedImage) IsNull() bool {
	return i.Image == 0
}
