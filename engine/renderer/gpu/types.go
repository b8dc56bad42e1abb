package gpu

// Extent2D is a size in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Aspect returns width over height, or 1 for a degenerate extent.
func (e Extent2D) Aspect() float32 {
	if e.Height == 0 {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

// Limits are the device properties the engine consumes.
type Limits struct {
	MinUniformBufferOffsetAlignment uint64
	MaxPushConstantsSize            uint32
}

type Format uint32

// Values match VkFormat.
const (
	FormatUndefined       Format = 0
	FormatB8g8r8a8Unorm   Format = 44
	FormatB8g8r8a8Srgb    Format = 50
	FormatR32g32Sfloat    Format = 103
	FormatR32g32b32Sfloat Format = 106
	FormatD32Sfloat       Format = 126
)

type BufferUsage uint32

// Values match VkBufferUsageFlagBits.
const (
	BufferUsageTransferSrc   BufferUsage = 0x00000001
	BufferUsageTransferDst   BufferUsage = 0x00000002
	BufferUsageUniformBuffer BufferUsage = 0x00000010
	BufferUsageStorageBuffer BufferUsage = 0x00000020
	BufferUsageVertexBuffer  BufferUsage = 0x00000080
)

type ImageUsage uint32

// Values match VkImageUsageFlagBits.
const (
	ImageUsageTransferSrc            ImageUsage = 0x00000001
	ImageUsageColorAttachment        ImageUsage = 0x00000010
	ImageUsageDepthStencilAttachment ImageUsage = 0x00000020
)

type ImageAspect uint32

const (
	ImageAspectColor ImageAspect = 0x00000001
	ImageAspectDepth ImageAspect = 0x00000002
)

// MemoryUsage selects where an allocation lives.
type MemoryUsage int

const (
	// MemoryUsageGPUOnly is device local and never mapped.
	MemoryUsageGPUOnly MemoryUsage = iota
	// MemoryUsageCPUOnly is host visible and coherent; used for staging.
	MemoryUsageCPUOnly
	// MemoryUsageCPUToGPU is host visible memory read by the device every
	// frame (uniform and storage buffers).
	MemoryUsageCPUToGPU
)

func (m MemoryUsage) String() string {
	switch m {
	case MemoryUsageGPUOnly:
		return "gpu-only"
	case MemoryUsageCPUOnly:
		return "cpu-only"
	case MemoryUsageCPUToGPU:
		return "cpu-to-gpu"
	default:
		return "unknown"
	}
}

// Mappable reports whether memory of this usage can be mapped by the host.
func (m MemoryUsage) Mappable() bool {
	return m == MemoryUsageCPUOnly || m == MemoryUsageCPUToGPU
}

type ShaderStage uint32

// Values match VkShaderStageFlagBits.
const (
	ShaderStageVertex   ShaderStage = 0x00000001
	ShaderStageFragment ShaderStage = 0x00000010
)

type PipelineStage uint32

// Values match VkPipelineStageFlagBits.
const (
	PipelineStageTopOfPipe             PipelineStage = 0x00000001
	PipelineStageColorAttachmentOutput PipelineStage = 0x00000400
	PipelineStageTransfer              PipelineStage = 0x00001000
)

type DescriptorType uint32

// Values match VkDescriptorType.
const (
	DescriptorTypeUniformBuffer        DescriptorType = 6
	DescriptorTypeStorageBuffer        DescriptorType = 7
	DescriptorTypeUniformBufferDynamic DescriptorType = 8
)

// IsDynamic reports whether bindings of this type consume a dynamic offset.
func (t DescriptorType) IsDynamic() bool {
	return t == DescriptorTypeUniformBufferDynamic
}

type Topology uint32

// Values match VkPrimitiveTopology.
const (
	TopologyPointList    Topology = 0
	TopologyTriangleList Topology = 3
)

type PolygonMode uint32

// Values match VkPolygonMode.
const (
	PolygonModeFill  PolygonMode = 0
	PolygonModeLine  PolygonMode = 1
	PolygonModePoint PolygonMode = 2
)

type CompareOp uint32

// Values match VkCompareOp.
const (
	CompareOpLess        CompareOp = 1
	CompareOpLessOrEqual CompareOp = 3
)

// ImageInfo describes a 2D image to allocate.
type ImageInfo struct {
	Format Format
	Extent Extent2D
	Usage  ImageUsage
}

// BufferCopy is one region of a buffer to buffer copy.
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// SubmitInfo describes one queue submission.
type SubmitInfo struct {
	CommandBuffers   []CommandBuffer
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	SignalSemaphores []Semaphore
}

// DescriptorBinding is one binding of a descriptor set layout.
type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
}

// DescriptorPoolSize bounds how many descriptors of a type a pool holds.
type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorWrite points one binding of a set at a buffer range.
type DescriptorWrite struct {
	Set     DescriptorSet
	Binding uint32
	Type    DescriptorType
	Buffer  Buffer
	Offset  uint64
	Range   uint64
}

// PushConstantRange is a range of push constant memory visible to stages.
type PushConstantRange struct {
	Stages ShaderStage
	Offset uint32
	Size   uint32
}

// PipelineLayoutInfo describes the resources a pipeline can address.
type PipelineLayoutInfo struct {
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
}

// ShaderStageInfo binds a module to a stage; the entry point is always main.
type ShaderStageInfo struct {
	Stage  ShaderStage
	Module ShaderModule
}

// VertexBinding describes one vertex buffer binding.
type VertexBinding struct {
	Binding uint32
	Stride  uint32
}

// VertexAttribute describes one attribute fetched from a binding.
type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

// VertexInputDescription is the vertex layout a pipeline consumes.
type VertexInputDescription struct {
	Bindings   []VertexBinding
	Attributes []VertexAttribute
}

// PipelineInfo is the fixed function state of a graphics pipeline.
type PipelineInfo struct {
	Stages       []ShaderStageInfo
	VertexInput  VertexInputDescription
	Topology     Topology
	PolygonMode  PolygonMode
	Extent       Extent2D
	DepthTest    bool
	DepthWrite   bool
	DepthCompare CompareOp
	Layout       PipelineLayout
	RenderPass   RenderPass
}

// RenderPassInfo describes a single subpass pass with one color and an
// optional depth attachment.
type RenderPassInfo struct {
	ColorFormat Format
	DepthFormat Format
}

// FramebufferInfo describes a framebuffer for a render pass.
type FramebufferInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent2D
}

// RenderPassBegin is the state needed to begin a render pass instance.
type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent2D
	ClearColor  [4]float32
	ClearDepth  float32
}
