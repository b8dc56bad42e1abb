package softgpu

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

var (
	_ gpu.Backend   = (*Backend)(nil)
	_ gpu.Device    = (*Device)(nil)
	_ gpu.Swapchain = (*Swapchain)(nil)
	_ gpu.Window    = (*Window)(nil)
)

// Backend bundles a software device, swapchain and headless window.
type Backend struct {
	dev       *Device
	swapchain *Swapchain
	window    *Window
	shutdown  bool
}

func NewBackend(opts Options) (*Backend, error) {
	if opts.ImageCount < 2 {
		return nil, errors.Newf("softgpu needs at least 2 swapchain images, got %d", opts.ImageCount)
	}
	if opts.Extent.Width == 0 || opts.Extent.Height == 0 {
		return nil, errors.Newf("softgpu extent %dx%d is empty", opts.Extent.Width, opts.Extent.Height)
	}
	dev := NewDevice(opts)
	core.LogInfo("software device created (%dx%d, %d images, latency %s)",
		opts.Extent.Width, opts.Extent.Height, opts.ImageCount, opts.SubmitLatency)
	return &Backend{
		dev:       dev,
		swapchain: newSwapchain(dev, opts.Extent, opts.ImageCount),
		window:    NewWindow(opts.Extent),
	}, nil
}

func (b *Backend) Device() gpu.Device {
	return b.dev
}

func (b *Backend) Swapchain() gpu.Swapchain {
	return b.swapchain
}

func (b *Backend) Window() gpu.Window {
	return b.window
}

// Headless returns the concrete window so callers can inject input.
func (b *Backend) Headless() *Window {
	return b.window
}

// SoftDevice returns the concrete device for inspection.
func (b *Backend) SoftDevice() *Device {
	return b.dev
}

func (b *Backend) Stats() Stats {
	return b.dev.Stats()
}

// Shutdown drains the queue, releases the swapchain and fails with
// ErrLeakedObjects if any other object is still alive.
func (b *Backend) Shutdown() error {
	if b.shutdown {
		return nil
	}
	b.shutdown = true
	b.dev.WaitIdle()
	b.swapchain.destroy()
	if err := b.dev.Close(); err != nil {
		return err
	}
	core.LogInfo("software device destroyed")
	return nil
}
