package engine

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/assets"
	"github.com/spaghettifunk/framering/engine/config"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/deletion"
	"github.com/spaghettifunk/framering/engine/renderer/frame"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
	"github.com/spaghettifunk/framering/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Every resource was released
	EngineStageShutdown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	case EngineStageShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// statsInterval is how many frames pass between two frame rate logs.
const statsInterval = 1000

// Stats is a snapshot of the engine counters.
type Stats struct {
	Stage       Stage
	FrameNumber uint64
	// Registered and Flushed count the teardown actions pushed to and run
	// by the deletion queue.
	Registered    int
	Flushed       int
	FenceWaits    uint64
	FenceTimeouts uint64
	Uploads       uint64
	// LastFrame is what the variant recorded in the most recent frame.
	LastFrame renderer.DrawStats
	FPS       float64
	FrameTime float64
}

// Engine owns the device objects shared by every variant and drives the
// frame loop.
type Engine struct {
	currentStage Stage
	config       *config.Config
	backend      gpu.Backend
	variant      renderer.Variant

	deletion      *deletion.Queue
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	rc            *renderer.RenderContext

	depthImage   gpu.AllocatedImage
	depthView    gpu.ImageView
	framebuffers []gpu.Framebuffer

	clock     *core.Clock
	metrics   *core.Metrics
	lastTime  float64
	lastFrame renderer.DrawStats
}

func New(cfg *config.Config, backend gpu.Backend, variant renderer.Variant) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil || variant == nil {
		return nil, errors.AssertionFailedf("engine needs a backend and a variant")
	}
	am, err := assets.NewAssetManager(cfg.Assets.Root)
	if err != nil {
		return nil, err
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		backend:      backend,
		variant:      variant,
		deletion:     deletion.New(),
		assetManager: am,
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// Context returns the render context, nil before Initialize.
func (e *Engine) Context() *renderer.RenderContext {
	return e.rc
}

// Initialize creates the frame ring, the upload context, the render pass
// with its depth buffer and framebuffers, then runs the variant init hooks
// in order. Every object registers its release with the deletion queue as
// soon as it exists, so a failure part way leaves Cleanup able to release
// what was created.
func (e *Engine) Initialize() error {
	if e.currentStage != EngineStageUninitialized {
		return errors.Wrapf(core.ErrAlreadyRunning, "initialize in stage %s", e.currentStage)
	}
	e.currentStage = EngineStageInitializing

	if err := e.assetManager.Initialize(); err != nil {
		return err
	}

	dev := e.backend.Device()
	swapchain := e.backend.Swapchain()
	e.rc = &renderer.RenderContext{
		Device:      dev,
		Swapchain:   swapchain,
		Limits:      dev.Limits(),
		Extent:      swapchain.Extent(),
		DepthFormat: dev.DepthFormat(),
		Deletion:    e.deletion,
		Assets:      e.assetManager,
		Config:      e.config,
	}
	core.LogInfo("swapchain %dx%d with %d images, uniform alignment %d",
		e.rc.Extent.Width, e.rc.Extent.Height, len(swapchain.ImageViews()), e.rc.Limits.MinUniformBufferOffsetAlignment)

	steps := []struct {
		name string
		fn   func() error
	}{
		{"commands", e.initCommands},
		{"default render pass", e.initDefaultRenderPass},
		{"framebuffers", e.initFramebuffers},
		{"systems", e.initSystems},
		{"descriptors", func() error { return e.variant.InitDescriptors(e.rc) }},
		{"pipelines", func() error { return e.variant.InitPipelines(e.rc) }},
		{"materials", func() error { return e.variant.InitMaterials(e.rc) }},
		{"meshes", func() error { return e.variant.LoadMeshes(e.rc) }},
		{"scene", func() error { return e.variant.InitScene(e.rc) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			core.LogError("initialization of %s failed: %s", step.name, err)
			return errors.Wrapf(err, "could not initialize %s", step.name)
		}
		core.LogDebug("%s initialized", step.name)
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("engine initialized with the %s variant, %d teardown actions registered", e.variant.Name(), e.deletion.Len())
	return nil
}

// initCommands creates the frame slots with their command buffers and sync
// objects, plus the upload context.
func (e *Engine) initCommands() error {
	ring, err := frame.NewRing(e.rc.Device, e.config.Renderer.FramesInFlight, e.deletion)
	if err != nil {
		return err
	}
	e.rc.Frames = ring

	upload, err := frame.NewUploadContext(e.rc.Device, e.config.UploadTimeout(), e.deletion)
	if err != nil {
		return err
	}
	e.rc.Upload = upload
	return nil
}

func (e *Engine) initDefaultRenderPass() error {
	dev := e.rc.Device
	pass, r := dev.CreateRenderPass(gpu.RenderPassInfo{
		ColorFormat: e.rc.Swapchain.Format(),
		DepthFormat: e.rc.DepthFormat,
	})
	if err := gpu.Check(r, "vkCreateRenderPass"); err != nil {
		return err
	}
	e.deletion.PushRenderPass(pass, "default")
	e.rc.RenderPass = pass
	return nil
}

// initFramebuffers creates the depth buffer and one framebuffer per
// swapchain image.
func (e *Engine) initFramebuffers() error {
	dev := e.rc.Device
	depth, r := dev.CreateImage(gpu.ImageInfo{
		Format: e.rc.DepthFormat,
		Extent: e.rc.Extent,
		Usage:  gpu.ImageUsageDepthStencilAttachment,
	})
	if err := gpu.Check(r, "vmaCreateImage"); err != nil {
		return err
	}
	e.deletion.PushImage(depth, "depth")
	e.depthImage = depth

	view, r := dev.CreateImageView(depth.Image, e.rc.DepthFormat, gpu.ImageAspectDepth)
	if err := gpu.Check(r, "vkCreateImageView"); err != nil {
		return err
	}
	e.deletion.PushImageView(view, "depth")
	e.depthView = view

	views := e.rc.Swapchain.ImageViews()
	e.framebuffers = make([]gpu.Framebuffer, len(views))
	for i, v := range views {
		fb, r := dev.CreateFramebuffer(gpu.FramebufferInfo{
			RenderPass:  e.rc.RenderPass,
			Attachments: []gpu.ImageView{v, view},
			Extent:      e.rc.Extent,
		})
		if err := gpu.Check(r, "vkCreateFramebuffer"); err != nil {
			return err
		}
		e.deletion.PushFramebuffer(fb, "swapchain")
		e.framebuffers[i] = fb
	}
	return nil
}

func (e *Engine) initSystems() error {
	sm, err := systems.NewSystemManager(e.rc.Device, e.rc.Upload, e.deletion)
	if err != nil {
		return err
	}
	e.systemManager = sm
	e.rc.Meshes = sm.MeshSystem
	e.rc.Materials = sm.MaterialSystem
	e.rc.Jobs = sm.JobSystem
	return nil
}

// Run draws frames until ctx is done, the window closes, escape is pressed
// or the configured frame count is reached. A frame error stops the loop
// and is returned.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return errors.Wrapf(core.ErrNotInitialized, "run in stage %s", e.currentStage)
	}
	e.currentStage = EngineStageRunning
	defer func() {
		if e.currentStage == EngineStageRunning {
			e.currentStage = EngineStageInitialized
		}
	}()

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	window := e.backend.Window()
	for {
		select {
		case <-ctx.Done():
			core.LogInfo("run cancelled after %d frames", e.rc.FrameNumber)
			return nil
		default:
		}

		window.PollEvents()
		if window.ShouldClose() {
			core.LogInfo("window closed after %d frames", e.rc.FrameNumber)
			return nil
		}
		if quit := e.handleKeys(window.KeyPresses()); quit {
			core.LogInfo("escape pressed after %d frames", e.rc.FrameNumber)
			return nil
		}
		e.drainAssetEvents()

		if err := e.DrawFrame(); err != nil {
			core.LogError("frame %d failed: %s", e.rc.FrameNumber, err)
			return err
		}

		e.clock.Update()
		now := e.clock.Elapsed()
		e.metrics.Update(now - e.lastTime)
		e.lastTime = now

		if e.rc.FrameNumber%statsInterval == 0 {
			fps, ms := e.metrics.Frame()
			core.LogInfo("frame %d: %.0f fps, %.2f ms", e.rc.FrameNumber, fps, ms)
		}
		if max := e.config.Renderer.MaxFrames; max > 0 && e.rc.FrameNumber >= max {
			core.LogInfo("drew the configured %d frames", max)
			return nil
		}
	}
}

func (e *Engine) handleKeys(keys []gpu.Key) bool {
	for _, k := range keys {
		switch k {
		case gpu.KeyEscape:
			return true
		case gpu.KeySpace:
			e.rc.SelectedShader = 1 - e.rc.SelectedShader
			core.LogDebug("selected shader %d", e.rc.SelectedShader)
		}
	}
	return false
}

// drainAssetEvents reports asset changes. Loaded assets are not replaced
// while running.
func (e *Engine) drainAssetEvents() {
	for {
		select {
		case ev, ok := <-e.assetManager.Events():
			if !ok {
				return
			}
			if ev.Removed {
				core.LogInfo("%s %s was removed", ev.Kind, ev.Name)
			} else {
				core.LogInfo("%s %s changed, restart to pick it up", ev.Kind, ev.Name)
			}
		default:
			return
		}
	}
}

// DrawFrame records and submits one frame on the slot of the current frame
// number, then presents it. The slot is only reset once its fence showed
// that the GPU finished the frame that used it last.
func (e *Engine) DrawFrame() error {
	if e.currentStage != EngineStageInitialized && e.currentStage != EngineStageRunning {
		return errors.Wrapf(core.ErrNotInitialized, "draw in stage %s", e.currentStage)
	}
	rc := e.rc
	dev := rc.Device
	slot := rc.CurrentSlot()

	if err := slot.Wait(dev, e.config.FenceTimeout()); err != nil {
		return err
	}
	if err := e.variant.Update(rc); err != nil {
		return errors.Wrapf(err, "update of frame %d", rc.FrameNumber)
	}
	if err := slot.Reset(dev); err != nil {
		return err
	}

	imageIndex, r := rc.Swapchain.AcquireNextImage(slot.PresentSemaphore)
	if err := gpu.Check(r, "vkAcquireNextImageKHR"); err != nil {
		return err
	}
	if int(imageIndex) >= len(e.framebuffers) {
		return errors.AssertionFailedf("swapchain returned image %d of %d", imageIndex, len(e.framebuffers))
	}

	if err := slot.Begin(dev); err != nil {
		return err
	}
	cmd := slot.CommandBuffer
	dev.CmdBeginRenderPass(cmd, gpu.RenderPassBegin{
		RenderPass:  rc.RenderPass,
		Framebuffer: e.framebuffers[imageIndex],
		Extent:      rc.Extent,
		ClearColor:  math.FlashColor(rc.FrameNumber),
		ClearDepth:  1,
	})
	stats, err := e.variant.RenderPass(rc, cmd)
	dev.CmdEndRenderPass(cmd)
	if err != nil {
		return errors.Wrapf(err, "render pass of frame %d", rc.FrameNumber)
	}
	if err := slot.Submit(dev); err != nil {
		return err
	}

	if err := gpu.Check(rc.Swapchain.Present(slot.RenderSemaphore, imageIndex), "vkQueuePresentKHR"); err != nil {
		return err
	}

	e.lastFrame = stats
	rc.FrameNumber++
	return nil
}

// Cleanup waits for the GPU, releases every registered object newest first
// and shuts the backend down. It is safe to call more than once and after a
// failed Initialize. Before Initialize it does nothing.
func (e *Engine) Cleanup() error {
	if e.currentStage == EngineStageUninitialized || e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	var errs error
	dev := e.backend.Device()
	if e.rc != nil && e.rc.Frames != nil {
		if err := e.rc.Frames.WaitAll(e.config.FenceTimeout()); err != nil {
			core.LogError("waiting for in flight frames: %s", err)
			errs = errors.CombineErrors(errs, err)
		}
	}
	if err := gpu.Check(dev.WaitIdle(), "vkDeviceWaitIdle"); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if e.systemManager != nil {
		if err := e.systemManager.Shutdown(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}

	n := e.deletion.Flush(dev)
	core.LogInfo("released %d objects", n)

	if err := e.assetManager.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	if err := e.backend.Shutdown(); err != nil {
		errs = errors.CombineErrors(errs, err)
	}
	e.currentStage = EngineStageShutdown
	return errs
}

func (e *Engine) Stats() Stats {
	s := Stats{
		Stage:      e.currentStage,
		Registered: e.deletion.Pushed(),
		Flushed:    e.deletion.Flushed(),
		LastFrame:  e.lastFrame,
	}
	s.FPS, s.FrameTime = e.metrics.Frame()
	if e.rc != nil {
		s.FrameNumber = e.rc.FrameNumber
		if e.rc.Frames != nil {
			fs := e.rc.Frames.Stats()
			s.FenceWaits = fs.Waits
			s.FenceTimeouts = fs.Timeouts
		}
		if e.rc.Upload != nil {
			s.Uploads = e.rc.Upload.Uploads()
		}
	}
	return s
}
