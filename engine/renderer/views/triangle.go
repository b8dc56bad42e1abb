package views

import (
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

// TriangleView draws a single hard coded triangle. The vertices live in the
// vertex shaders, so there is no vertex buffer and no descriptor. Space
// toggles between the flat and the colored pipeline.
type TriangleView struct {
	layout    gpu.PipelineLayout
	pipelines []gpu.Pipeline
	names     []string
}

func (v *TriangleView) Name() string {
	return "triangle"
}

func (v *TriangleView) InitDescriptors(rc *renderer.RenderContext) error {
	return nil
}

func (v *TriangleView) InitPipelines(rc *renderer.RenderContext) error {
	layout, r := rc.Device.CreatePipelineLayout(gpu.PipelineLayoutInfo{})
	if err := gpu.Check(r, "vkCreatePipelineLayout"); err != nil {
		return err
	}
	rc.Deletion.PushPipelineLayout(layout, "triangle")
	v.layout = layout

	shaders := []struct{ name, vert, frag string }{
		{"triangle", "triangle.vert.spv", "triangle.frag.spv"},
		{"colored_triangle", "tri_rgb.vert.spv", "tri_rgb.frag.spv"},
	}
	for _, s := range shaders {
		pb := renderer.NewPipelineBuilder(rc.Extent, layout)
		pipeline, ok, err := buildPipeline(rc, s.name, s.vert, s.frag, pb)
		if err != nil {
			return err
		}
		if ok {
			v.pipelines = append(v.pipelines, pipeline)
			v.names = append(v.names, s.name)
		}
	}
	if len(v.pipelines) == 0 {
		core.LogWarn("no triangle pipeline could be built, frames will only be cleared")
	}
	return nil
}

func (v *TriangleView) InitMaterials(rc *renderer.RenderContext) error {
	for i, name := range v.names {
		if _, err := rc.Materials.Create(name, v.pipelines[i], v.layout); err != nil {
			return err
		}
	}
	return nil
}

func (v *TriangleView) LoadMeshes(rc *renderer.RenderContext) error {
	return nil
}

func (v *TriangleView) InitScene(rc *renderer.RenderContext) error {
	return nil
}

func (v *TriangleView) Update(rc *renderer.RenderContext) error {
	return nil
}

// Selected returns the material drawn for the given shader selection.
func (v *TriangleView) Selected(selection int) string {
	if len(v.names) == 0 {
		return ""
	}
	return v.names[selection%len(v.names)]
}

func (v *TriangleView) RenderPass(rc *renderer.RenderContext, cmd gpu.CommandBuffer) (renderer.DrawStats, error) {
	var stats renderer.DrawStats
	name := v.Selected(rc.SelectedShader)
	if name == "" {
		return stats, nil
	}
	m := rc.Materials.Get(name)
	rc.Device.CmdBindPipeline(cmd, m.Pipeline)
	rc.Device.CmdDraw(cmd, 3, 1, 0, 0)
	stats.PipelineBinds++
	stats.Draws++
	stats.Vertices += 3
	return stats, nil
}
