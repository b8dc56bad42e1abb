package renderer

import (
	"path"

	"github.com/spaghettifunk/framering/engine/assets"
	"github.com/spaghettifunk/framering/engine/assets/loaders"
	"github.com/spaghettifunk/framering/engine/config"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/deletion"
	"github.com/spaghettifunk/framering/engine/renderer/frame"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
	"github.com/spaghettifunk/framering/engine/systems"
)

// RenderContext is everything a variant may touch. It is owned by the
// engine and passed to every hook; nothing in it is global.
type RenderContext struct {
	Device    gpu.Device
	Swapchain gpu.Swapchain
	Limits    gpu.Limits
	Extent    gpu.Extent2D

	RenderPass  gpu.RenderPass
	DepthFormat gpu.Format

	Deletion *deletion.Queue
	Upload   *frame.UploadContext
	Frames   *frame.Ring

	Meshes    *systems.MeshSystem
	Materials *systems.MaterialSystem
	Jobs      *systems.JobSystem
	Assets    *assets.AssetManager

	Config *config.Config

	// FrameNumber counts the frames submitted so far.
	FrameNumber uint64
	// SelectedShader is toggled by the space bar; variants with more than
	// one pipeline pick by it.
	SelectedShader int
}

// FrameIndex is the frame slot the current frame uses.
func (rc *RenderContext) FrameIndex() int {
	return rc.Frames.Index(rc.FrameNumber)
}

func (rc *RenderContext) CurrentSlot() *frame.Slot {
	return rc.Frames.Slot(rc.FrameNumber)
}

// Uniforms returns the allocator for the device uniform alignment.
func (rc *RenderContext) Uniforms() frame.UniformAllocator {
	return frame.UniformAllocator{Alignment: rc.Limits.MinUniformBufferOffsetAlignment}
}

// LoadShader creates the module of a compiled shader found in the shader
// directory. Failures are logged and reported through ok.
func (rc *RenderContext) LoadShader(name string) (gpu.ShaderModule, bool) {
	p, err := rc.Assets.Resolve(assets.KindShader, path.Join(rc.Config.Assets.ShaderDir, name))
	if err != nil {
		core.LogWarn("could not load shader module %s: %s", name, err)
		return 0, false
	}
	return loaders.LoadShaderModule(rc.Device, p)
}

// Variant is one renderer flavour. The engine calls the Init hooks once,
// in declaration order, then Update and RenderPass every frame.
type Variant interface {
	Name() string
	InitDescriptors(rc *RenderContext) error
	InitPipelines(rc *RenderContext) error
	InitMaterials(rc *RenderContext) error
	LoadMeshes(rc *RenderContext) error
	InitScene(rc *RenderContext) error
	// Update runs after the frame slot fence was waited on and before
	// recording starts.
	Update(rc *RenderContext) error
	// RenderPass records the body of the render pass into cmd.
	RenderPass(rc *RenderContext, cmd gpu.CommandBuffer) (DrawStats, error)
}
