package loaders

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/framering/engine/renderer/metadata"
	"github.com/spaghettifunk/framering/engine/renderer/softgpu"
	"github.com/spaghettifunk/framering/engine/systems"
)

func spirv(words ...uint32) []byte {
	code := append([]uint32{spirvMagic, 0x00010000, 0, 8, 0}, words...)
	out := make([]byte, 4*len(code))
	for i, w := range code {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

func TestDecodeSPIRV(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"valid", spirv(1, 2, 3), false},
		{"empty", nil, true},
		{"short", spirv()[:16], true},
		{"unaligned", append(spirv(), 0), true},
		{"bad magic", append([]byte{1, 2, 3, 4}, spirv()[4:]...), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := DecodeSPIRV(tt.data)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidShader) {
					t.Fatalf("err = %v, want ErrInvalidShader", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if code[0] != spirvMagic || len(code) != len(tt.data)/4 {
				t.Fatalf("code = %x", code)
			}
		})
	}
}

func TestLoadShaderModule(t *testing.T) {
	b, err := softgpu.NewBackend(softgpu.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	good := filepath.Join(dir, "good.vert.spv")
	bad := filepath.Join(dir, "bad.vert.spv")
	os.WriteFile(good, spirv(7), 0o644)
	os.WriteFile(bad, []byte("not a shader"), 0o644)

	module, ok := LoadShaderModule(b.Device(), good)
	if !ok || module == 0 {
		t.Fatalf("LoadShaderModule(good) = %d, %v", module, ok)
	}
	if _, ok := LoadShaderModule(b.Device(), bad); ok {
		t.Fatal("malformed shader loaded")
	}
	if _, ok := LoadShaderModule(b.Device(), filepath.Join(dir, "missing.spv")); ok {
		t.Fatal("missing shader loaded")
	}

	b.Device().DestroyShaderModule(module)
	if err := b.Shutdown(); err != nil {
		t.Fatal(err)
	}
}

const quadOBJ = `
# a unit quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vn 0 0 1
f 1//1 2//1 3//1 4//1
f -4/1/1 -3/1/1 -2/1/1
`

func TestParseOBJ(t *testing.T) {
	verts, err := ParseOBJ(strings.NewReader(quadOBJ))
	if err != nil {
		t.Fatal(err)
	}
	// The quad becomes a fan of two triangles, plus one more triangle.
	if len(verts) != 9 {
		t.Fatalf("got %d vertices, want 9", len(verts))
	}
	want := []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0, 0, 0}, {1, 0, 0}, {1, 1, 0}}
	for i, v := range verts {
		if v.Position != want[i] {
			t.Errorf("vertex %d at %v, want %v", i, v.Position, want[i])
		}
		if v.Normal != (mgl32.Vec3{0, 0, 1}) || v.Color != v.Normal {
			t.Errorf("vertex %d normal %v color %v", i, v.Normal, v.Color)
		}
	}
}

func TestParseOBJMalformed(t *testing.T) {
	tests := map[string]string{
		"no faces":       "v 0 0 0\n",
		"short vertex":   "v 0 0\n",
		"bad number":     "v 0 x 0\n",
		"index range":    "v 0 0 0\nf 1 2 3\n",
		"two corners":    "v 0 0 0\nv 1 0 0\nf 1 2\n",
		"normal missing": "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1//1 2//1 3//1\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseOBJ(strings.NewReader(src)); !errors.Is(err, ErrMalformedModel) {
				t.Fatalf("err = %v, want ErrMalformedModel", err)
			}
		})
	}
}

func TestTriangle(t *testing.T) {
	tri := Triangle()
	if len(tri) != 3 {
		t.Fatalf("%d vertices", len(tri))
	}
	if tri[2].Position != (mgl32.Vec3{0, -1, 0}) {
		t.Fatalf("third vertex %v", tri[2].Position)
	}
}

func TestGeneratePointCloudIsDeterministic(t *testing.T) {
	js, err := systems.NewJobSystem(4, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()

	a := make([]metadata.Vertex, 1000)
	b := make([]metadata.Vertex, 1000)
	if err := GeneratePointCloud(js, a, 42, 10); err != nil {
		t.Fatal(err)
	}
	if err := GeneratePointCloud(js, b, 42, 10); err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs between runs", i)
		}
		for _, c := range a[i].Position {
			if c < -10 || c >= 10 {
				t.Fatalf("point %d at %v outside the cloud", i, a[i].Position)
			}
		}
	}
	if err := GeneratePointCloud(js, nil, 1, 1); err != nil {
		t.Fatalf("empty cloud: %v", err)
	}
}

func TestBitmapFrames(t *testing.T) {
	const w, h = 16, 2
	data := make([]byte, 2*w*h/8)
	// Frame 0: pixel (0,0) and (9,1). Frame 1: pixel (15,0).
	data[0] = 0x80
	data[2+1] = 0x40
	data[4+1] = 0x01

	frames, err := NewBitmapFrames(data, w, h)
	if err != nil {
		t.Fatal(err)
	}
	if frames.Count() != 2 || frames.FrameSize() != 4 {
		t.Fatalf("count %d size %d", frames.Count(), frames.FrameSize())
	}
	if !frames.Pixel(0, 0, 0) || !frames.Pixel(0, 9, 1) || frames.Pixel(0, 1, 0) {
		t.Fatal("frame 0 pixels")
	}
	if !frames.Pixel(1, 15, 0) || frames.Pixel(1, 0, 0) {
		t.Fatal("frame 1 pixels")
	}

	dst := make([]metadata.Vertex, 4)
	dst[3].Color = mgl32.Vec3{1, 1, 1}
	if n := frames.FramePoints(0, dst, 16); n != 2 {
		t.Fatalf("FramePoints = %d, want 2", n)
	}
	if dst[0].Position != (mgl32.Vec3{-8, 1, 0}) {
		t.Fatalf("first point at %v", dst[0].Position)
	}
	if dst[3] != (metadata.Vertex{}) {
		t.Fatalf("unused point %v not cleared", dst[3])
	}

	if got := frames.FrameAt(1500*time.Millisecond, 1); got != 1 {
		t.Fatalf("FrameAt(1.5s) = %d", got)
	}
	if got := frames.FrameAt(2*time.Second, 1); got != 0 {
		t.Fatalf("FrameAt(2s) = %d, want the animation to loop", got)
	}

	if _, err := NewBitmapFrames(data[:3], w, h); err == nil {
		t.Fatal("partial frame accepted")
	}
	if _, err := NewBitmapFrames(data, 12, h); err == nil {
		t.Fatal("width not a multiple of 8 accepted")
	}
}
