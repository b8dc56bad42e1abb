package math

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/rand"
)

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 0, 3) != 2 {
		t.Fatal("Clamp")
	}
	if Clamp(1.5, 0.0, 1.0) != 1.0 {
		t.Fatal("Clamp float")
	}
}

func TestProjectionFlipsY(t *testing.T) {
	c := OrbitCamera(0)
	flipped := c.Projection(16.0 / 9.0)
	plain := mgl32.Perspective(mgl32.DegToRad(70), 16.0/9.0, 0.1, 200)
	if flipped[5] != -plain[5] || flipped[0] != plain[0] {
		t.Fatalf("projection = %v, want the Y scale of %v negated", flipped, plain)
	}
	if c.Position.Y() != float32(6*(0.95+1)) {
		t.Fatalf("camera height at frame 0 = %v", c.Position.Y())
	}
}

func TestSpin(t *testing.T) {
	origin := Spin(0).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !origin.ApproxEqual(mgl32.Vec4{0, 5, 0, 1}) {
		t.Fatalf("Spin(0) moves the origin to %v", origin)
	}
	tip := Spin(0).Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !tip.ApproxEqual(mgl32.Vec4{5, 5, 0, 1}) {
		t.Fatalf("Spin(0) moves (1,0,0) to %v", tip)
	}
}

func TestFlashColor(t *testing.T) {
	c := FlashColor(0)
	if c != [4]float32{1, 0, 0, 1} {
		t.Fatalf("FlashColor(0) = %v", c)
	}
	for f := uint64(0); f < 2000; f += 37 {
		c := FlashColor(f)
		if c[0]+c[2] < 0.9999 || c[0]+c[2] > 1.0001 {
			t.Fatalf("FlashColor(%d) = %v does not blend red and blue", f, c)
		}
	}
}

func TestRandomInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		v := RandomInRange(rng, -2, 3)
		if v < -2 || v >= 3 {
			t.Fatalf("RandomInRange = %v", v)
		}
	}
}
