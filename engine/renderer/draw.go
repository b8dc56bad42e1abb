package renderer

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/framering/engine/renderer/gpu"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

// DrawStats counts the commands DrawObjects recorded.
type DrawStats struct {
	Draws             int
	Vertices          uint64
	PipelineBinds     int
	DescriptorBinds   int
	VertexBufferBinds int
	PushConstants     int
}

func (s *DrawStats) Add(o DrawStats) {
	s.Draws += o.Draws
	s.Vertices += o.Vertices
	s.PipelineBinds += o.PipelineBinds
	s.DescriptorBinds += o.DescriptorBinds
	s.VertexBufferBinds += o.VertexBufferBinds
	s.PushConstants += o.PushConstants
}

// FrameBindings are the per frame descriptor sets and matrices shared by
// every object of a draw list. A zero GlobalSet disables descriptor binds.
type FrameBindings struct {
	GlobalSet   gpu.DescriptorSet
	ObjectSet   gpu.DescriptorSet
	SceneOffset uint32
	ViewProj    mgl32.Mat4
}

// DrawObjects records one draw per object. Pipelines and descriptor sets
// are only rebound when the material changes and vertex buffers only when
// the mesh changes, so sorting objects by material then mesh minimizes
// binds. Object i reads entry i of the object buffer through its first
// instance index.
func DrawObjects(rec gpu.Recorder, cmd gpu.CommandBuffer, objects []metadata.RenderObject, b FrameBindings) DrawStats {
	var (
		stats        DrawStats
		lastMaterial *metadata.Material
		lastMesh     *metadata.Mesh
	)
	for i := range objects {
		obj := &objects[i]

		if obj.Material != lastMaterial {
			rec.CmdBindPipeline(cmd, obj.Material.Pipeline)
			stats.PipelineBinds++
			lastMaterial = obj.Material

			if b.GlobalSet != 0 {
				rec.CmdBindDescriptorSets(cmd, obj.Material.Layout, 0, []gpu.DescriptorSet{b.GlobalSet}, []uint32{b.SceneOffset})
				rec.CmdBindDescriptorSets(cmd, obj.Material.Layout, 1, []gpu.DescriptorSet{b.ObjectSet}, nil)
				stats.DescriptorBinds += 2
			}
		}

		constants := metadata.MeshPushConstants{RenderMatrix: b.ViewProj.Mul4(obj.Transform)}
		rec.CmdPushConstants(cmd, obj.Material.Layout, gpu.ShaderStageVertex, 0, constants.Bytes())
		stats.PushConstants++

		if obj.Mesh != lastMesh {
			rec.CmdBindVertexBuffer(cmd, obj.Mesh.VertexBuffer.Buffer, 0)
			stats.VertexBufferBinds++
			lastMesh = obj.Mesh
		}

		count := obj.Mesh.VertexCount()
		rec.CmdDraw(cmd, count, 1, 0, uint32(i))
		stats.Draws++
		stats.Vertices += uint64(count)
	}
	return stats
}
