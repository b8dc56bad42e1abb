package metadata

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// writer lays out float data little endian without padding. Every std140
// struct in this package is made of vec4 and mat4 members only, so the
// packed and std140 layouts coincide.
type writer struct {
	buf []byte
	off int
}

func (w *writer) f32(v float32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], math.Float32bits(v))
	w.off += 4
}

func (w *writer) vec3(v mgl32.Vec3) {
	w.f32(v[0])
	w.f32(v[1])
	w.f32(v[2])
}

func (w *writer) vec4(v mgl32.Vec4) {
	for _, f := range v {
		w.f32(f)
	}
}

// mat4 writes column major, matching both mgl32 and GLSL.
func (w *writer) mat4(m mgl32.Mat4) {
	for _, f := range m {
		w.f32(f)
	}
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) f32() float32 {
	v := math.Float32frombits(binary.LittleEndian.Uint32(r.buf[r.off:]))
	r.off += 4
	return v
}

func (r *reader) vec3() mgl32.Vec3 {
	return mgl32.Vec3{r.f32(), r.f32(), r.f32()}
}
