package math

import (
	m "math"

	"github.com/go-gl/mathgl/mgl32"
)

/** @brief A perspective camera looking at a fixed target. */
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	/** @brief Vertical field of view in degrees. */
	FovY float32
	Near float32
	Far  float32
}

// OrbitCamera bobs up and down over the scene as frames advance.
func OrbitCamera(frameNumber uint64) Camera {
	f := float64(frameNumber)
	return Camera{
		Position: mgl32.Vec3{0, float32(6 * (0.95 + m.Cos(f/200.0))), -10},
		Target:   mgl32.Vec3{0, 4, 0},
		Up:       mgl32.Vec3{0, 1, 0},
		FovY:     70,
		Near:     0.1,
		Far:      200,
	}
}

func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, c.Up)
}

// Projection returns a perspective projection with Y pointing down in clip
// space, as Vulkan expects.
func (c Camera) Projection(aspect float32) mgl32.Mat4 {
	p := mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
	p[5] *= -1
	return p
}
