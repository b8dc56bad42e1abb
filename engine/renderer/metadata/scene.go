package metadata

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

/** @brief Maximum number of objects in the per frame object buffer. */
const MaxObjects = 10000

/** @brief Camera matrices, bound at set 0 binding 0. */
type GPUCameraData struct {
	View     mgl32.Mat4
	Proj     mgl32.Mat4
	ViewProj mgl32.Mat4
}

const GPUCameraDataSize = 3 * 64

func (c GPUCameraData) Bytes() []byte {
	w := writer{buf: make([]byte, GPUCameraDataSize)}
	w.mat4(c.View)
	w.mat4(c.Proj)
	w.mat4(c.ViewProj)
	return w.buf
}

/** @brief Frame global scene parameters, bound at set 0 binding 1 with a dynamic offset. */
type GPUSceneData struct {
	FogColor mgl32.Vec4
	/** @brief x is the fog start, y the fog end. */
	FogDistances      mgl32.Vec4
	AmbientColor      mgl32.Vec4
	SunlightDirection mgl32.Vec4
	SunlightColor     mgl32.Vec4
}

const GPUSceneDataSize = 5 * 16

// DefaultSceneData is the fog and ambient setup of every scene.
func DefaultSceneData() GPUSceneData {
	return GPUSceneData{
		FogColor:     mgl32.Vec4{0.2, 0.15, 0.5, 1},
		FogDistances: mgl32.Vec4{0.986, 0.994, 0, 0},
		AmbientColor: mgl32.Vec4{0, 0, 0, 1},
	}
}

func (s GPUSceneData) Bytes() []byte {
	w := writer{buf: make([]byte, GPUSceneDataSize)}
	w.vec4(s.FogColor)
	w.vec4(s.FogDistances)
	w.vec4(s.AmbientColor)
	w.vec4(s.SunlightDirection)
	w.vec4(s.SunlightColor)
	return w.buf
}

/** @brief One entry of the object storage buffer at set 1 binding 0. */
type GPUObjectData struct {
	ModelMatrix mgl32.Mat4
}

const GPUObjectDataSize = 64

// EncodeObjects writes the model matrix of every object into dst.
func EncodeObjects(dst []byte, objects []RenderObject) {
	w := writer{buf: dst}
	for i := range objects {
		w.mat4(objects[i].Transform)
	}
}

/** @brief Push constants of the mesh pipelines. */
type MeshPushConstants struct {
	Data         mgl32.Vec4
	RenderMatrix mgl32.Mat4
}

const MeshPushConstantsSize = 16 + 64

func (p MeshPushConstants) Bytes() []byte {
	w := writer{buf: make([]byte, MeshPushConstantsSize)}
	w.vec4(p.Data)
	w.mat4(p.RenderMatrix)
	return w.buf
}

// MeshPushConstantRange is the push constant range of the mesh pipeline layouts.
func MeshPushConstantRange() gpu.PushConstantRange {
	return gpu.PushConstantRange{Stages: gpu.ShaderStageVertex, Offset: 0, Size: MeshPushConstantsSize}
}
