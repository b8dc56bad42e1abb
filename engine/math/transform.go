package math

import (
	m "math"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/rand"
)

// Spin rotates an object 0.8 degrees per frame around Y after lifting it
// five units and scaling it by five.
func Spin(frameNumber uint64) mgl32.Mat4 {
	angle := mgl32.DegToRad(0.8 * float32(frameNumber))
	return mgl32.HomogRotate3DY(angle).
		Mul4(mgl32.Translate3D(0, 5, 0)).
		Mul4(mgl32.Scale3D(5, 5, 5))
}

// FacingOrigin places a half scale object at pos, oriented towards the
// origin.
func FacingOrigin(pos mgl32.Vec3) mgl32.Mat4 {
	look := mgl32.LookAtV(pos.Mul(-1), mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	return mgl32.Translate3D(pos.X(), pos.Y(), pos.Z()).
		Mul4(mgl32.Scale3D(0.5, 0.5, 0.5)).
		Mul4(look)
}

// FlashColor is a clear color fading between red and blue every 120*pi
// frames.
func FlashColor(frameNumber uint64) [4]float32 {
	flash := float32(m.Abs(m.Sin(float64(frameNumber) / 120.0)))
	return [4]float32{1 - flash, 0, flash, 1}
}

// RandomInRange returns a uniform value in [min, max).
func RandomInRange(rng *rand.Rand, min, max float32) float32 {
	return min + rng.Float32()*(max-min)
}
