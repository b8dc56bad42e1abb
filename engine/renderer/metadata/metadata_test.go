package metadata

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestEncodeVertices(t *testing.T) {
	verts := []Vertex{
		{Position: mgl32.Vec3{1, 1, 0}, Color: mgl32.Vec3{1, 0, 0}},
		{Position: mgl32.Vec3{-1, 1, 0}, Normal: mgl32.Vec3{0, 0, 1}},
	}
	buf := make([]byte, len(verts)*VertexSize)
	EncodeVertices(buf, verts)
	for i, v := range verts {
		if got := DecodeVertex(buf, i); got != v {
			t.Fatalf("vertex %d = %+v, want %+v", i, got, v)
		}
	}
	attrs := VertexDescription().Attributes
	if attrs[2].Offset != 24 || VertexDescription().Bindings[0].Stride != VertexSize {
		t.Fatalf("vertex description = %+v", VertexDescription())
	}
}

func TestStructSizes(t *testing.T) {
	if n := len(GPUCameraData{}.Bytes()); n != GPUCameraDataSize {
		t.Errorf("camera data is %d bytes", n)
	}
	if n := len(DefaultSceneData().Bytes()); n != GPUSceneDataSize {
		t.Errorf("scene data is %d bytes", n)
	}
	if n := len(MeshPushConstants{}.Bytes()); n != 80 {
		t.Errorf("push constants are %d bytes, want 80", n)
	}
}

func TestMat4IsColumnMajor(t *testing.T) {
	p := MeshPushConstants{RenderMatrix: mgl32.Translate3D(7, 8, 9)}
	b := p.Bytes()
	// The translation is the fourth column, floats 12..14 of the matrix.
	off := 16 + 12*4
	x := math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
	if x != 7 {
		t.Fatalf("translation x = %v, want 7", x)
	}
}
