package frame

import (
	"bytes"
	"testing"

	"github.com/spaghettifunk/framering/engine/renderer/deletion"
	"github.com/spaghettifunk/framering/engine/renderer/softgpu"
)

func TestPad(t *testing.T) {
	for _, align := range []uint64{0, 1, 4, 64, 256} {
		a := UniformAllocator{Alignment: align}
		for s := uint64(0); s <= 1024; s++ {
			p := a.Pad(s)
			if p < s {
				t.Fatalf("align %d: Pad(%d) = %d is smaller than the input", align, s, p)
			}
			if a.Pad(p) != p {
				t.Fatalf("align %d: Pad(Pad(%d)) = %d, want %d", align, s, a.Pad(p), p)
			}
			if align > 0 && p%align != 0 {
				t.Fatalf("align %d: Pad(%d) = %d is not aligned", align, s, p)
			}
			if align == 0 && p != s {
				t.Fatalf("zero alignment changed %d to %d", s, p)
			}
			if s > 0 && p < a.Pad(s-1) {
				t.Fatalf("align %d: Pad is not monotonic at %d", align, s)
			}
		}
	}
}

func TestRegionSlicesDoNotOverlap(t *testing.T) {
	tests := []struct {
		align, size uint64
	}{
		{256, 80},
		{64, 80},
		{0, 80},
		{256, 256},
		{16, 1},
	}
	for _, tt := range tests {
		r := UniformAllocator{Alignment: tt.align}.Region(tt.size, 2)
		s0, e0 := r.Range(0)
		s1, e1 := r.Range(1)
		if s0 != 0 || e0 != tt.size {
			t.Errorf("align %d size %d: slice 0 = [%d, %d)", tt.align, tt.size, s0, e0)
		}
		if s1 != r.Stride || e1 != r.Stride+tt.size {
			t.Errorf("align %d size %d: slice 1 = [%d, %d), stride %d", tt.align, tt.size, s1, e1, r.Stride)
		}
		if e0 > s1 {
			t.Errorf("align %d size %d: slices overlap", tt.align, tt.size)
		}
		if r.Size() != 2*r.Stride || e1 > r.Size() {
			t.Errorf("align %d size %d: Size() = %d", tt.align, tt.size, r.Size())
		}
	}
}

func TestSceneUniformsWrite(t *testing.T) {
	b, err := softgpu.NewBackend(softgpu.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	dev := b.SoftDevice()
	queue := deletion.New()

	alloc := UniformAllocator{Alignment: dev.Limits().MinUniformBufferOffsetAlignment}
	scene, err := NewSceneUniforms(dev, alloc, 80, 2, queue)
	if err != nil {
		t.Fatalf("NewSceneUniforms: %v", err)
	}
	if scene.Buffer.Size != 512 {
		t.Fatalf("buffer size = %d, want 512", scene.Buffer.Size)
	}

	first := bytes.Repeat([]byte{1}, 80)
	second := bytes.Repeat([]byte{2}, 80)
	off0, err := scene.Write(dev, 0, first)
	if err != nil || off0 != 0 {
		t.Fatalf("Write(0) = %d, %v", off0, err)
	}
	off1, err := scene.Write(dev, 1, second)
	if err != nil || off1 != 256 {
		t.Fatalf("Write(1) = %d, %v", off1, err)
	}

	mem, _ := dev.ReadBuffer(scene.Buffer.Buffer)
	if !bytes.Equal(mem[0:80], first) || !bytes.Equal(mem[256:336], second) {
		t.Fatal("slices were not written at their offsets")
	}
	if !bytes.Equal(mem[80:256], make([]byte, 176)) {
		t.Fatal("padding between slices was written")
	}

	if _, err := scene.Write(dev, 2, first); err == nil {
		t.Fatal("Write past the last slice succeeded")
	}

	queue.Flush(dev)
	if err := b.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
