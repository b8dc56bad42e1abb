// Package views holds the renderer variants the engine can run.
package views

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/config"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

var ErrUnknownVariant = errors.New("unknown renderer variant")

// New returns the variant registered under name.
func New(name string) (renderer.Variant, error) {
	switch name {
	case config.VariantTriangle:
		return &TriangleView{}, nil
	case config.VariantMesh:
		return &MeshView{}, nil
	case config.VariantPointCloud:
		return &PointCloudView{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownVariant, "%q", name)
	}
}

// buildPipeline loads a vertex and a fragment shader, builds a pipeline
// from them and releases both modules. A missing shader is not fatal: it is
// logged and reported through ok.
func buildPipeline(rc *renderer.RenderContext, label, vert, frag string, pb *renderer.PipelineBuilder) (gpu.Pipeline, bool, error) {
	vs, vok := rc.LoadShader(vert)
	fs, fok := rc.LoadShader(frag)
	defer func() {
		if vok {
			rc.Device.DestroyShaderModule(vs)
		}
		if fok {
			rc.Device.DestroyShaderModule(fs)
		}
	}()
	if !vok || !fok {
		core.LogWarn("pipeline %s skipped, shaders %s and %s are not both available", label, vert, frag)
		return 0, false, nil
	}

	pipeline, err := pb.Shaders(vs, fs).Build(rc.Device, rc.RenderPass)
	if err != nil {
		return 0, false, errors.Wrapf(err, "pipeline %s", label)
	}
	rc.Deletion.PushPipeline(pipeline, label)
	core.LogDebug("pipeline %s built", label)
	return pipeline, true, nil
}
