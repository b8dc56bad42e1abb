package metadata

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

/** @brief The size in bytes of one encoded vertex. */
const VertexSize = 36

/** @brief A vertex as consumed by the mesh and point pipelines. */
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Color    mgl32.Vec3
}

// VertexDescription is the layout of Vertex in binding 0.
func VertexDescription() gpu.VertexInputDescription {
	return gpu.VertexInputDescription{
		Bindings: []gpu.VertexBinding{
			{Binding: 0, Stride: VertexSize},
		},
		Attributes: []gpu.VertexAttribute{
			{Location: 0, Binding: 0, Format: gpu.FormatR32g32b32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: gpu.FormatR32g32b32Sfloat, Offset: 12},
			{Location: 2, Binding: 0, Format: gpu.FormatR32g32b32Sfloat, Offset: 24},
		},
	}
}

// EncodeVertices writes vertices into dst, which must hold
// len(vertices)*VertexSize bytes.
func EncodeVertices(dst []byte, vertices []Vertex) {
	w := writer{buf: dst}
	for i := range vertices {
		w.vec3(vertices[i].Position)
		w.vec3(vertices[i].Normal)
		w.vec3(vertices[i].Color)
	}
}

// DecodeVertex reads the vertex at index i of an encoded buffer.
func DecodeVertex(src []byte, i int) Vertex {
	r := reader{buf: src, off: i * VertexSize}
	return Vertex{Position: r.vec3(), Normal: r.vec3(), Color: r.vec3()}
}
