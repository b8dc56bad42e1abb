package renderer

import (
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

// PipelineBuilder collects the fixed function state of a graphics pipeline.
// The zero value after NewPipelineBuilder draws filled triangles with depth
// testing over the whole extent.
type PipelineBuilder struct {
	info gpu.PipelineInfo
}

func NewPipelineBuilder(extent gpu.Extent2D, layout gpu.PipelineLayout) *PipelineBuilder {
	return &PipelineBuilder{info: gpu.PipelineInfo{
		Topology:     gpu.TopologyTriangleList,
		PolygonMode:  gpu.PolygonModeFill,
		Extent:       extent,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: gpu.CompareOpLessOrEqual,
		Layout:       layout,
	}}
}

func (pb *PipelineBuilder) Shaders(vertex, fragment gpu.ShaderModule) *PipelineBuilder {
	pb.info.Stages = []gpu.ShaderStageInfo{
		{Stage: gpu.ShaderStageVertex, Module: vertex},
		{Stage: gpu.ShaderStageFragment, Module: fragment},
	}
	return pb
}

func (pb *PipelineBuilder) VertexInput(desc gpu.VertexInputDescription) *PipelineBuilder {
	pb.info.VertexInput = desc
	return pb
}

func (pb *PipelineBuilder) Topology(t gpu.Topology) *PipelineBuilder {
	pb.info.Topology = t
	return pb
}

func (pb *PipelineBuilder) PolygonMode(m gpu.PolygonMode) *PipelineBuilder {
	pb.info.PolygonMode = m
	return pb
}

func (pb *PipelineBuilder) Depth(test, write bool) *PipelineBuilder {
	pb.info.DepthTest = test
	pb.info.DepthWrite = write
	return pb
}

// Build creates the pipeline for pass.
func (pb *PipelineBuilder) Build(dev gpu.Device, pass gpu.RenderPass) (gpu.Pipeline, error) {
	info := pb.info
	info.RenderPass = pass
	p, r := dev.CreateGraphicsPipeline(info)
	if err := gpu.Check(r, "vkCreateGraphicsPipelines"); err != nil {
		return 0, err
	}
	return p, nil
}
