package metadata

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

/**
 * @brief Vertex data and the buffers it lives in. The mesh table owns both
 * buffers; Staging stays allocated only for dynamic meshes.
 */
type Mesh struct {
	Name         string
	Vertices     []Vertex
	VertexBuffer gpu.AllocatedBuffer
	Staging      gpu.AllocatedBuffer
	Dynamic      bool
}

func (m *Mesh) VertexCount() uint32 {
	return uint32(len(m.Vertices))
}

func (m *Mesh) ByteSize() uint64 {
	return uint64(len(m.Vertices)) * VertexSize
}

/** @brief A pipeline and the layout its descriptor sets and push constants use. */
type Material struct {
	Name     string
	Pipeline gpu.Pipeline
	Layout   gpu.PipelineLayout
}

/** @brief One draw: a mesh drawn with a material at a transform. */
type RenderObject struct {
	Mesh      *Mesh
	Material  *Material
	Transform mgl32.Mat4
}
