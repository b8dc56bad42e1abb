package engine

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/config"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
	"github.com/spaghettifunk/framering/engine/renderer/softgpu"
	"github.com/spaghettifunk/framering/engine/renderer/views"
)

var shaderNames = []string{
	"triangle.vert.spv", "triangle.frag.spv",
	"tri_rgb.vert.spv", "tri_rgb.frag.spv",
	"tri_mesh.vert.spv", "default_lit.frag.spv",
	"point.vert.spv", "point.frag.spv",
}

const quadOBJ = `v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vn 0 0 1
f 1//1 2//1 3//1 4//1
`

func spirv() []byte {
	code := []uint32{softgpu.SpirvMagic, 0x00010000, 0, 8, 0}
	out := make([]byte, 4*len(code))
	for i, w := range code {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// newAssets lays out an asset root with every shader and a quad model.
func newAssets(t *testing.T, shaders []string) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range shaders {
		writeFile(t, filepath.Join(root, "shaders", name), spirv())
	}
	writeFile(t, filepath.Join(root, "models", "quad.obj"), []byte(quadOBJ))
	return root
}

func testConfig(root, variant string) *config.Config {
	cfg := config.Default()
	cfg.Renderer.Backend = config.BackendSoft
	cfg.Renderer.Variant = variant
	cfg.Renderer.SceneRadius = 2
	cfg.Renderer.MaxObjects = 64
	cfg.Assets.Root = root
	cfg.Assets.Model = "models/quad.obj"
	cfg.PointCloud.Points = 500
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config) (*Engine, *softgpu.Backend) {
	t.Helper()
	return newEngineWithLatency(t, cfg, time.Millisecond)
}

func newEngineWithLatency(t *testing.T, cfg *config.Config, latency time.Duration) (*Engine, *softgpu.Backend) {
	t.Helper()
	opts := softgpu.DefaultOptions()
	opts.SubmitLatency = latency
	b, err := softgpu.NewBackend(opts)
	if err != nil {
		t.Fatal(err)
	}
	v, err := views.New(cfg.Renderer.Variant)
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(cfg, b, v)
	if err != nil {
		t.Fatal(err)
	}
	return e, b
}

// finish cleans up and checks the device saw no misuse and no leak.
func finish(t *testing.T, e *Engine, b *softgpu.Backend) softgpu.Stats {
	t.Helper()
	if err := e.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	stats := b.Stats()
	if stats.Violations() != 0 {
		t.Fatalf("%d API violations: %+v", stats.Violations(), stats)
	}
	s := e.Stats()
	if s.Flushed != s.Registered {
		t.Fatalf("flushed %d of %d registered objects", s.Flushed, s.Registered)
	}
	return stats
}

func TestVariantsRunToCompletion(t *testing.T) {
	tests := []struct {
		variant   string
		wantDraws uint64
	}{
		// one hard coded triangle per frame
		{config.VariantTriangle, 5},
		// the model plus the 13 triangles of a disk of radius 2
		{config.VariantMesh, 5 * 14},
		{config.VariantPointCloud, 5},
	}
	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			cfg := testConfig(newAssets(t, shaderNames), tt.variant)
			cfg.Renderer.MaxFrames = 5
			e, b := newEngine(t, cfg)

			if err := e.Initialize(); err != nil {
				t.Fatal(err)
			}
			if err := e.Run(context.Background()); err != nil {
				t.Fatal(err)
			}
			s := e.Stats()
			if s.FrameNumber != 5 {
				t.Fatalf("FrameNumber = %d, want 5", s.FrameNumber)
			}
			if s.FenceTimeouts != 0 {
				t.Fatalf("%d fence timeouts", s.FenceTimeouts)
			}
			if s.Stage != EngineStageInitialized {
				t.Fatalf("stage after run = %s", s.Stage)
			}

			stats := finish(t, e, b)
			if stats.Draws != tt.wantDraws {
				t.Fatalf("Draws = %d, want %d", stats.Draws, tt.wantDraws)
			}
			if stats.Submissions < 5 || stats.Presents != 5 {
				t.Fatalf("submissions = %d, presents = %d", stats.Submissions, stats.Presents)
			}
			if stats.MaxInFlight > config.FramesInFlight {
				t.Fatalf("MaxInFlight = %d, want at most %d", stats.MaxInFlight, config.FramesInFlight)
			}
			if stats.LiveObjects != 0 {
				t.Fatalf("%d objects alive after cleanup", stats.LiveObjects)
			}
		})
	}
}

func TestPointCloudRefreshesEveryFrame(t *testing.T) {
	cfg := testConfig(newAssets(t, shaderNames), config.VariantPointCloud)
	cfg.Renderer.MaxFrames = 4
	e, b := newEngine(t, cfg)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	initial := e.Stats().Uploads
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := e.Stats().Uploads - initial; got != 4 {
		t.Fatalf("%d uploads while running, want 4", got)
	}
	stats := finish(t, e, b)
	if stats.Vertices != 4*500 {
		t.Fatalf("Vertices = %d, want %d", stats.Vertices, 4*500)
	}
}

// With a slow queue the previous frame is still executing while the next
// one writes its camera, scene and object data. Those writes must only touch
// the slot whose fence was waited on.
func TestFrameWritesAvoidInFlightSlot(t *testing.T) {
	for _, variant := range []string{config.VariantMesh, config.VariantPointCloud} {
		t.Run(variant, func(t *testing.T) {
			cfg := testConfig(newAssets(t, shaderNames), variant)
			cfg.Renderer.MaxFrames = 6
			e, b := newEngineWithLatency(t, cfg, 25*time.Millisecond)
			if err := e.Initialize(); err != nil {
				t.Fatal(err)
			}
			if err := e.Run(context.Background()); err != nil {
				t.Fatal(err)
			}
			mid := b.Stats()
			if mid.MaxInFlight != config.FramesInFlight {
				t.Fatalf("MaxInFlight = %d, frames never overlapped", mid.MaxInFlight)
			}
			if mid.HostWriteHazards != 0 {
				t.Fatalf("%d host writes into memory read by a frame in flight", mid.HostWriteHazards)
			}
			finish(t, e, b)
		})
	}
}

func TestSpaceTogglesTrianglePipeline(t *testing.T) {
	cfg := testConfig(newAssets(t, shaderNames), config.VariantTriangle)
	e, b := newEngine(t, cfg)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	rc := e.Context()
	b.Headless().Press(gpu.KeySpace)
	if quit := e.handleKeys(b.Headless().KeyPresses()); quit {
		t.Fatal("space must not quit")
	}
	if rc.SelectedShader != 1 {
		t.Fatalf("SelectedShader = %d, want 1", rc.SelectedShader)
	}
	e.handleKeys([]gpu.Key{gpu.KeySpace})
	if rc.SelectedShader != 0 {
		t.Fatalf("SelectedShader = %d, want 0", rc.SelectedShader)
	}
	finish(t, e, b)
}

func TestRunStops(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *softgpu.Backend, cancel context.CancelFunc)
	}{
		{"escape", func(b *softgpu.Backend, _ context.CancelFunc) { b.Headless().Press(gpu.KeyEscape) }},
		{"window closed", func(b *softgpu.Backend, _ context.CancelFunc) { b.Headless().Close() }},
		{"context cancelled", func(_ *softgpu.Backend, cancel context.CancelFunc) { cancel() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(newAssets(t, shaderNames), config.VariantTriangle)
			e, b := newEngine(t, cfg)
			if err := e.Initialize(); err != nil {
				t.Fatal(err)
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			tt.setup(b, cancel)

			done := make(chan error, 1)
			go func() { done <- e.Run(ctx) }()
			select {
			case err := <-done:
				if err != nil {
					t.Fatal(err)
				}
			case <-time.After(10 * time.Second):
				t.Fatal("run did not stop")
			}
			if n := e.Stats().FrameNumber; n != 0 {
				t.Fatalf("drew %d frames", n)
			}
			finish(t, e, b)
		})
	}
}

func TestMissingModelFallsBackToTriangle(t *testing.T) {
	cfg := testConfig(newAssets(t, shaderNames), config.VariantMesh)
	cfg.Assets.Model = "models/missing.obj"
	cfg.Renderer.MaxFrames = 2
	e, b := newEngine(t, cfg)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if n := e.Context().Meshes.Get("monkey").VertexCount(); n != 3 {
		t.Fatalf("fallback model has %d vertices, want 3", n)
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	finish(t, e, b)
}

func TestMissingShadersLeaveAnEmptyScene(t *testing.T) {
	for _, variant := range []string{config.VariantTriangle, config.VariantMesh, config.VariantPointCloud} {
		t.Run(variant, func(t *testing.T) {
			cfg := testConfig(newAssets(t, nil), variant)
			cfg.Renderer.MaxFrames = 3
			e, b := newEngine(t, cfg)
			if err := e.Initialize(); err != nil {
				t.Fatal(err)
			}
			if n := e.Context().Materials.Len(); n != 0 {
				t.Fatalf("%d materials without shaders", n)
			}
			if err := e.Run(context.Background()); err != nil {
				t.Fatal(err)
			}
			stats := finish(t, e, b)
			if stats.Draws != 0 || stats.Presents != 3 {
				t.Fatalf("draws = %d, presents = %d", stats.Draws, stats.Presents)
			}
		})
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	cfg := testConfig(newAssets(t, shaderNames), config.VariantMesh)
	e, b := newEngine(t, cfg)
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.DrawFrame(); err != nil {
		t.Fatal(err)
	}
	finish(t, e, b)
	pushed := e.Stats().Registered
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if s := e.Stats(); s.Flushed != pushed || s.Stage != EngineStageShutdown {
		t.Fatalf("second cleanup changed stats: %+v", s)
	}
}

func TestCleanupAfterFailedInitialize(t *testing.T) {
	cfg := testConfig(newAssets(t, shaderNames), config.VariantMesh)
	e, b := newEngine(t, cfg)
	e.variant = failingScene{renderer.Variant(&views.MeshView{})}
	err := e.Initialize()
	if !errors.Is(err, errScene) {
		t.Fatalf("err = %v, want errScene", err)
	}
	finish(t, e, b)
}

func TestCleanupBeforeInitialize(t *testing.T) {
	cfg := testConfig(newAssets(t, shaderNames), config.VariantTriangle)
	e, b := newEngine(t, cfg)

	done := make(chan error, 1)
	go func() { done <- e.Cleanup() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("cleanup: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Cleanup before Initialize did not return")
	}
	if s := e.Stats(); s.Stage != EngineStageUninitialized || s.Flushed != 0 {
		t.Fatalf("cleanup before initialize changed state: %+v", s)
	}

	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize after an early cleanup: %v", err)
	}
	if err := e.DrawFrame(); err != nil {
		t.Fatal(err)
	}
	finish(t, e, b)
}

var errScene = errors.New("scene failed")

type failingScene struct {
	renderer.Variant
}

func (f failingScene) InitScene(*renderer.RenderContext) error {
	return errScene
}

func TestStageGuards(t *testing.T) {
	cfg := testConfig(newAssets(t, shaderNames), config.VariantTriangle)
	e, b := newEngine(t, cfg)
	if err := e.Run(context.Background()); !errors.Is(err, core.ErrNotInitialized) {
		t.Fatalf("run before initialize: %v", err)
	}
	if err := e.DrawFrame(); !errors.Is(err, core.ErrNotInitialized) {
		t.Fatalf("draw before initialize: %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); !errors.Is(err, core.ErrAlreadyRunning) {
		t.Fatalf("second initialize: %v", err)
	}
	finish(t, e, b)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t.TempDir(), config.VariantMesh)
	cfg.Renderer.FramesInFlight = 3
	b, err := softgpu.NewBackend(softgpu.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Shutdown()
	if _, err := New(cfg, b, &views.MeshView{}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}
