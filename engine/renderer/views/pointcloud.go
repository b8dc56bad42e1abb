package views

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/framering/engine/assets"
	"github.com/spaghettifunk/framering/engine/assets/loaders"
	"github.com/spaghettifunk/framering/engine/core"
	emath "github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

const (
	pointsMaterial = "points"
	cloudMesh      = "cloud"
)

// PointCloudView draws one dynamic mesh of points whose vertices are
// regenerated every frame and pushed to the GPU through the staging path.
// The points are either a random cloud or the frames of a 1 bit animation.
type PointCloudView struct {
	desc     *sceneDescriptors
	layout   gpu.PipelineLayout
	pipeline gpu.Pipeline
	objects  []metadata.RenderObject

	points []metadata.Vertex
	frames *loaders.BitmapFrames
	start  time.Time
	shown  int
}

func (v *PointCloudView) Name() string {
	return "pointcloud"
}

func (v *PointCloudView) InitDescriptors(rc *renderer.RenderContext) error {
	desc, err := newSceneDescriptors(rc)
	if err != nil {
		return err
	}
	v.desc = desc
	return nil
}

func (v *PointCloudView) InitPipelines(rc *renderer.RenderContext) error {
	layout, err := meshLayout(rc, v.desc, "points")
	if err != nil {
		return err
	}
	v.layout = layout

	pb := renderer.NewPipelineBuilder(rc.Extent, layout).
		VertexInput(metadata.VertexDescription()).
		Topology(gpu.TopologyPointList).
		PolygonMode(gpu.PolygonModePoint)
	pipeline, ok, err := buildPipeline(rc, "points", "point.vert.spv", "point.frag.spv", pb)
	if err != nil {
		return err
	}
	if ok {
		v.pipeline = pipeline
	}
	return nil
}

func (v *PointCloudView) InitMaterials(rc *renderer.RenderContext) error {
	if v.pipeline == 0 {
		return nil
	}
	_, err := rc.Materials.Create(pointsMaterial, v.pipeline, v.layout)
	return err
}

func (v *PointCloudView) LoadMeshes(rc *renderer.RenderContext) error {
	cfg := rc.Config.PointCloud
	if cfg.Frames != "" {
		v.frames = loadFrames(rc)
	}
	v.points = make([]metadata.Vertex, cfg.Points)
	v.start = time.Now()
	v.shown = -1
	if _, err := v.fill(rc); err != nil {
		return err
	}
	mesh, err := rc.Meshes.Create(cloudMesh, v.points, true)
	if err != nil {
		return err
	}
	core.LogInfo("point cloud has %d points, %.1f MB", len(v.points), float64(mesh.ByteSize())/1e6)
	return nil
}

func loadFrames(rc *renderer.RenderContext) *loaders.BitmapFrames {
	cfg := rc.Config.PointCloud
	p, err := rc.Assets.Resolve(assets.KindFrames, cfg.Frames)
	if err == nil {
		var frames *loaders.BitmapFrames
		if frames, err = loaders.LoadBitmapFrames(p, int(cfg.FrameWidth), int(cfg.FrameHeight)); err == nil {
			core.LogInfo("animation %s loaded (%d frames)", cfg.Frames, frames.Count())
			return frames
		}
	}
	core.LogWarn("could not load animation %s, using a random cloud: %s", cfg.Frames, err)
	return nil
}

// fill regenerates the points for the current frame. It reports whether
// they changed.
func (v *PointCloudView) fill(rc *renderer.RenderContext) (bool, error) {
	cfg := rc.Config.PointCloud
	if v.frames != nil {
		i := v.frames.FrameAt(time.Since(v.start), cfg.FPS)
		if i == v.shown {
			return false, nil
		}
		v.shown = i
		v.frames.FramePoints(i, v.points, 2*cfg.Radius)
		return true, nil
	}
	if err := loaders.GeneratePointCloud(rc.Jobs, v.points, cfg.Seed+rc.FrameNumber, cfg.Radius); err != nil {
		return false, err
	}
	return true, nil
}

func (v *PointCloudView) InitScene(rc *renderer.RenderContext) error {
	if _, ok := rc.Materials.Lookup(pointsMaterial); !ok {
		core.LogWarn("material %s is missing, the scene is empty", pointsMaterial)
		return nil
	}
	v.objects = []metadata.RenderObject{{
		Mesh:      rc.Meshes.Get(cloudMesh),
		Material:  rc.Materials.Get(pointsMaterial),
		Transform: mgl32.Ident4(),
	}}
	return nil
}

// Update runs after the slot fence was waited on, outside of any render
// pass, so the blocking upload can record its own copy.
func (v *PointCloudView) Update(rc *renderer.RenderContext) error {
	changed, err := v.fill(rc)
	if err != nil || !changed {
		return err
	}
	return rc.Meshes.Refresh(cloudMesh, v.points)
}

func (v *PointCloudView) RenderPass(rc *renderer.RenderContext, cmd gpu.CommandBuffer) (renderer.DrawStats, error) {
	if len(v.objects) == 0 {
		return renderer.DrawStats{}, nil
	}
	b, err := v.desc.write(rc, v.objects, emath.OrbitCamera(rc.FrameNumber))
	if err != nil {
		return renderer.DrawStats{}, err
	}
	return renderer.DrawObjects(rc.Device, cmd, v.objects, b), nil
}
