package platform

import (
	"runtime"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

var _ gpu.Window = (*Platform)(nil)

// Platform is the glfw window the vulkan backend presents to.
type Platform struct {
	Window *glfw.Window

	mu   sync.Mutex
	keys []gpu.Key
}

func New() (*Platform, error) {
	return &Platform{
		Window: nil,
	}, nil
}

// Startup opens a fixed size window without a client API.
func (p *Platform) Startup(applicationName string, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return errors.Wrap(err, "could not initialize glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw reports no vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		core.LogError("failed to create window: %s", err)
		return errors.Wrap(err, "could not create window")
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.Show()

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	return nil
}

// RequiredExtensions are the instance extensions glfw needs to create a
// surface.
func (p *Platform) RequiredExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateSurface creates the presentation surface for instance.
func (p *Platform) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surfacePtr, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "could not create window surface")
	}
	return vk.SurfaceFromPointer(surfacePtr), nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

func (p *Platform) PollEvents() {
	glfw.PollEvents()
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

func (p *Platform) KeyPresses() []gpu.Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := p.keys
	p.keys = nil
	return keys
}

func (p *Platform) Extent() gpu.Extent2D {
	w, h := p.Window.GetFramebufferSize()
	return gpu.Extent2D{Width: uint32(w), Height: uint32(h)}
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	var k gpu.Key
	switch key {
	case glfw.KeyEscape:
		k = gpu.KeyEscape
	case glfw.KeySpace:
		k = gpu.KeySpace
	default:
		return
	}
	p.mu.Lock()
	p.keys = append(p.keys, k)
	p.mu.Unlock()
}
