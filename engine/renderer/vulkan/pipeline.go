package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

// maxPushConstantRanges is the number of ranges a layout may declare; the
// guaranteed 128 bytes with 4-byte alignment never need more.
const maxPushConstantRanges = 32

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, gpu.Result) {
	if len(code) == 0 {
		return 0, gpu.ErrorValidationFailed
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(d.LogicalDevice, &createInfo, nil, &module); res != vk.Success {
		return 0, check(res, "vkCreateShaderModule")
	}
	return gpu.ShaderModule(d.shaderModules.Acquire(module)), gpu.Success
}

func (d *Device) DestroyShaderModule(id gpu.ShaderModule) {
	if module, ok := release(d.shaderModules, uint64(id), "shader module"); ok {
		vk.DestroyShaderModule(d.LogicalDevice, module, nil)
	}
}

func (d *Device) CreatePipelineLayout(info gpu.PipelineLayoutInfo) (gpu.PipelineLayout, gpu.Result) {
	if len(info.PushConstants) > maxPushConstantRanges {
		core.LogError("cannot have more than %d push constant ranges. Passed count: %d", maxPushConstantRanges, len(info.PushConstants))
		return 0, gpu.ErrorValidationFailed
	}

	setLayouts := make([]vk.DescriptorSetLayout, len(info.SetLayouts))
	for i, id := range info.SetLayouts {
		l, ok := lookup(d.setLayouts, uint64(id), "descriptor set layout")
		if !ok {
			return 0, gpu.ErrorValidationFailed
		}
		setLayouts[i] = l
	}

	ranges := make([]vk.PushConstantRange, len(info.PushConstants))
	for i, r := range info.PushConstants {
		if r.Offset+r.Size > d.limits.MaxPushConstantsSize {
			core.LogError("push constant range %d+%d exceeds the device limit of %d", r.Offset, r.Size, d.limits.MaxPushConstantsSize)
			return 0, gpu.ErrorValidationFailed
		}
		ranges[i] = vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}

	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(d.LogicalDevice, &pipelineLayoutCreateInfo, nil, &layout); res != vk.Success {
		return 0, check(res, "vkCreatePipelineLayout")
	}
	return gpu.PipelineLayout(d.pipelineLayouts.Acquire(&pipelineLayout{handle: layout, info: info})), gpu.Success
}

func (d *Device) DestroyPipelineLayout(id gpu.PipelineLayout) {
	if layout, ok := release(d.pipelineLayouts, uint64(id), "pipeline layout"); ok {
		vk.DestroyPipelineLayout(d.LogicalDevice, layout.handle, nil)
	}
}

// CreateGraphicsPipeline bakes viewport and scissor from info.Extent. The
// window is not resizable so there is no dynamic state.
func (d *Device) CreateGraphicsPipeline(info gpu.PipelineInfo) (gpu.Pipeline, gpu.Result) {
	layout, ok := lookup(d.pipelineLayouts, uint64(info.Layout), "pipeline layout")
	if !ok {
		return 0, gpu.ErrorValidationFailed
	}
	pass, ok := lookup(d.renderPasses, uint64(info.RenderPass), "render pass")
	if !ok {
		return 0, gpu.ErrorValidationFailed
	}

	stages := make([]vk.PipelineShaderStageCreateInfo, len(info.Stages))
	for i, s := range info.Stages {
		module, ok := lookup(d.shaderModules, uint64(s.Module), "shader module")
		if !ok {
			return 0, gpu.ErrorValidationFailed
		}
		stages[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(s.Stage),
			Module: module,
			PName:  VulkanSafeString("main"),
		}
	}

	// Viewport state
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports: []vk.Viewport{{
			X:        0,
			Y:        0,
			Width:    float32(info.Extent.Width),
			Height:   float32(info.Extent.Height),
			MinDepth: 0.0,
			MaxDepth: 1.0,
		}},
		ScissorCount: 1,
		PScissors: []vk.Rect2D{{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		}},
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonMode(info.PolygonMode),
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		DepthCompareOp:    vk.CompareOpAlways,
		StencilTestEnable: vk.False,
		MinDepthBounds:    0.0,
		MaxDepthBounds:    1.0,
	}
	if info.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOp(info.DepthCompare)
	}
	if info.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Vertex input
	bindings := make([]vk.VertexInputBindingDescription, len(info.VertexInput.Bindings))
	for i, b := range info.VertexInput.Bindings {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   b.Binding,
			Stride:    b.Stride,
			InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
		}
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(info.VertexInput.Attributes))
	for i, a := range info.VertexInput.Attributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopology(info.Topology),
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		Layout:              layout.handle,
		RenderPass:          pass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(d.LogicalDevice, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, nil, pipelines); res != vk.Success {
		return 0, check(res, "vkCreateGraphicsPipelines")
	}

	core.LogDebug("Graphics pipeline created!")
	return gpu.Pipeline(d.pipelines.Acquire(pipelines[0])), gpu.Success
}

func (d *Device) DestroyPipeline(id gpu.Pipeline) {
	if pipeline, ok := release(d.pipelines, uint64(id), "pipeline"); ok {
		vk.DestroyPipeline(d.LogicalDevice, pipeline, nil)
	}
}
