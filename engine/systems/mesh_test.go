package systems

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/framering/engine/renderer/deletion"
	"github.com/spaghettifunk/framering/engine/renderer/frame"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
	"github.com/spaghettifunk/framering/engine/renderer/softgpu"
)

type fixture struct {
	backend *softgpu.Backend
	queue   *deletion.Queue
	meshes  *MeshSystem
}

func newFixture(t *testing.T, latency time.Duration) *fixture {
	t.Helper()
	opts := softgpu.DefaultOptions()
	opts.SubmitLatency = latency
	b, err := softgpu.NewBackend(opts)
	if err != nil {
		t.Fatal(err)
	}
	queue := deletion.New()
	upload, err := frame.NewUploadContext(b.Device(), 10*time.Second, queue)
	if err != nil {
		t.Fatal(err)
	}
	meshes, err := NewMeshSystem(&MeshSystemConfig{MaxMeshCount: 16}, b.Device(), upload, queue)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{backend: b, queue: queue, meshes: meshes}
}

func (f *fixture) close(t *testing.T) {
	t.Helper()
	f.queue.Flush(f.backend.SoftDevice())
	if err := f.backend.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if v := f.backend.Stats().Violations(); v != 0 {
		t.Fatalf("%d API violations", v)
	}
}

func grid(n int) []metadata.Vertex {
	verts := make([]metadata.Vertex, n)
	for i := range verts {
		x := float32(i % 1000)
		y := float32(i / 1000)
		verts[i] = metadata.Vertex{
			Position: mgl32.Vec3{x, y, float32(i)},
			Color:    mgl32.Vec3{x / 1000, y / 1000, 1},
		}
	}
	return verts
}

func TestGetUnknownMeshPanics(t *testing.T) {
	f := newFixture(t, 0)
	defer f.close(t)

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.IsAssertionFailure(err) {
			t.Fatalf("recovered %v, want an assertion failure", r)
		}
	}()
	f.meshes.Get("nonexistent")
	t.Fatal("Get did not panic")
}

func TestLookupUnknownMesh(t *testing.T) {
	f := newFixture(t, 0)
	defer f.close(t)
	if m, ok := f.meshes.Lookup("nonexistent"); ok || m != nil {
		t.Fatalf("Lookup = %v, %v", m, ok)
	}
}

func TestLargeUploadSurvivesStagingRelease(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	defer f.close(t)

	const n = 1_000_000
	verts := grid(n)
	mesh, err := f.meshes.Create("points", verts, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !mesh.Staging.IsNull() {
		t.Fatal("static mesh kept its staging buffer")
	}

	dev := f.backend.SoftDevice()
	if live := dev.LiveObjects()["buffer"]; live != 1 {
		t.Fatalf("%d buffers alive, want only the vertex buffer", live)
	}
	mem, ok := dev.ReadBuffer(mesh.VertexBuffer.Buffer)
	if !ok || uint64(len(mem)) != n*metadata.VertexSize {
		t.Fatalf("vertex buffer holds %d bytes", len(mem))
	}
	for _, i := range []int{0, 1, 999, 1000, 123456, n - 1} {
		if got := metadata.DecodeVertex(mem, i); got != verts[i] {
			t.Fatalf("vertex %d = %+v, want %+v", i, got, verts[i])
		}
	}
}

func TestDynamicMeshRefresh(t *testing.T) {
	f := newFixture(t, time.Millisecond)
	defer f.close(t)

	verts := grid(64)
	mesh, err := f.meshes.Create("cloud", verts, true)
	if err != nil {
		t.Fatal(err)
	}
	if mesh.Staging.IsNull() {
		t.Fatal("dynamic mesh has no staging buffer")
	}

	next := grid(64)
	for i := range next {
		next[i].Position = next[i].Position.Mul(2)
	}
	if err := f.meshes.Refresh("cloud", next); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	mem, _ := f.backend.SoftDevice().ReadBuffer(mesh.VertexBuffer.Buffer)
	if got := metadata.DecodeVertex(mem, 63); got != next[63] {
		t.Fatalf("vertex 63 = %+v after refresh, want %+v", got, next[63])
	}
	if err := f.meshes.Refresh("cloud", grid(10)); err == nil {
		t.Fatal("Refresh with a different vertex count succeeded")
	}

	if _, err := f.meshes.Create("static", grid(3), false); err != nil {
		t.Fatal(err)
	}
	if err := f.meshes.Refresh("static", grid(3)); !errors.Is(err, ErrStaticMesh) {
		t.Fatalf("Refresh of a static mesh = %v, want ErrStaticMesh", err)
	}
}

func TestCreateRejectsDuplicatesAndEmpty(t *testing.T) {
	f := newFixture(t, 0)
	defer f.close(t)

	if _, err := f.meshes.Create("triangle", grid(3), false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.meshes.Create("triangle", grid(3), false); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("duplicate Create = %v", err)
	}
	if _, err := f.meshes.Create("empty", nil, false); !errors.Is(err, ErrEmptyMesh) {
		t.Fatalf("empty Create = %v", err)
	}
	a, err := f.meshes.CreateAnonymous(grid(3), false)
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.meshes.CreateAnonymous(grid(3), false)
	if err != nil {
		t.Fatal(err)
	}
	if a.Name == b.Name {
		t.Fatalf("anonymous meshes share the name %s", a.Name)
	}
	if f.meshes.Len() != 3 || f.meshes.Get(a.Name) != a {
		t.Fatalf("table holds %v", f.meshes.Names())
	}
}
