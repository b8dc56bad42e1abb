package views

import (
	"path"

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
	meshMaterial = "mesh"
	modelMesh    = "monkey"
	triangleMesh = "tri"
)

// MeshView draws a spinning model surrounded by a disk of small triangles
// turned towards the origin.
type MeshView struct {
	desc     *sceneDescriptors
	layout   gpu.PipelineLayout
	pipeline gpu.Pipeline
	objects  []metadata.RenderObject
}

func (v *MeshView) Name() string {
	return "mesh"
}

func (v *MeshView) InitDescriptors(rc *renderer.RenderContext) error {
	desc, err := newSceneDescriptors(rc)
	if err != nil {
		return err
	}
	v.desc = desc
	return nil
}

func (v *MeshView) InitPipelines(rc *renderer.RenderContext) error {
	layout, err := meshLayout(rc, v.desc, "mesh")
	if err != nil {
		return err
	}
	v.layout = layout

	pb := renderer.NewPipelineBuilder(rc.Extent, layout).
		VertexInput(metadata.VertexDescription())
	pipeline, ok, err := buildPipeline(rc, "mesh", "tri_mesh.vert.spv", "default_lit.frag.spv", pb)
	if err != nil {
		return err
	}
	if ok {
		v.pipeline = pipeline
	}
	return nil
}

// meshLayout creates a layout over both descriptor sets with the mesh push
// constant range.
func meshLayout(rc *renderer.RenderContext, desc *sceneDescriptors, label string) (gpu.PipelineLayout, error) {
	layout, r := rc.Device.CreatePipelineLayout(gpu.PipelineLayoutInfo{
		SetLayouts:    desc.layouts(),
		PushConstants: []gpu.PushConstantRange{metadata.MeshPushConstantRange()},
	})
	if err := gpu.Check(r, "vkCreatePipelineLayout"); err != nil {
		return 0, err
	}
	rc.Deletion.PushPipelineLayout(layout, label)
	return layout, nil
}

func (v *MeshView) InitMaterials(rc *renderer.RenderContext) error {
	if v.pipeline == 0 {
		return nil
	}
	_, err := rc.Materials.Create(meshMaterial, v.pipeline, v.layout)
	return err
}

func (v *MeshView) LoadMeshes(rc *renderer.RenderContext) error {
	if _, err := rc.Meshes.Create(triangleMesh, loaders.Triangle(), false); err != nil {
		return err
	}
	_, err := rc.Meshes.Create(modelMesh, loadModel(rc), false)
	return err
}

// loadModel reads the configured model, falling back to a triangle when it
// is missing or malformed.
func loadModel(rc *renderer.RenderContext) []metadata.Vertex {
	name := rc.Config.Assets.Model
	p, err := rc.Assets.Resolve(assets.KindModel, path.Clean(name))
	if err == nil {
		var vertices []metadata.Vertex
		if vertices, err = loaders.LoadOBJ(p); err == nil {
			core.LogInfo("model %s loaded (%d vertices)", name, len(vertices))
			return vertices
		}
	}
	core.LogWarn("could not load model %s, using a triangle: %s", name, err)
	return loaders.Triangle()
}

func (v *MeshView) InitScene(rc *renderer.RenderContext) error {
	if _, ok := rc.Materials.Lookup(meshMaterial); !ok {
		core.LogWarn("material %s is missing, the scene is empty", meshMaterial)
		return nil
	}
	mat := rc.Materials.Get(meshMaterial)
	model := rc.Meshes.Get(modelMesh)
	tri := rc.Meshes.Get(triangleMesh)

	v.objects = append(v.objects, metadata.RenderObject{Mesh: model, Material: mat, Transform: mgl32.Ident4()})

	radius := rc.Config.Renderer.SceneRadius
	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			if x*x+z*z > radius*radius {
				continue
			}
			if len(v.objects) == v.desc.maxObjects {
				core.LogWarn("scene truncated to %d objects", v.desc.maxObjects)
				return nil
			}
			pos := mgl32.Vec3{float32(x), 0, float32(z)}
			v.objects = append(v.objects, metadata.RenderObject{Mesh: tri, Material: mat, Transform: emath.FacingOrigin(pos)})
		}
	}
	core.LogInfo("scene holds %d objects", len(v.objects))
	return nil
}

// Objects returns the draw list.
func (v *MeshView) Objects() []metadata.RenderObject {
	return v.objects
}

func (v *MeshView) Update(rc *renderer.RenderContext) error {
	if len(v.objects) > 0 {
		v.objects[0].Transform = emath.Spin(rc.FrameNumber)
	}
	return nil
}

func (v *MeshView) RenderPass(rc *renderer.RenderContext, cmd gpu.CommandBuffer) (renderer.DrawStats, error) {
	if len(v.objects) == 0 {
		return renderer.DrawStats{}, nil
	}
	b, err := v.desc.write(rc, v.objects, emath.OrbitCamera(rc.FrameNumber))
	if err != nil {
		return renderer.DrawStats{}, err
	}
	return renderer.DrawObjects(rc.Device, cmd, v.objects, b), nil
}
