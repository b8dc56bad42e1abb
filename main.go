/*
framering renders one of the demo scenes (triangle, mesh or pointcloud)
with a fixed ring of two frames in flight, on vulkan or on the software
device.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine"
	"github.com/spaghettifunk/framering/engine/config"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
	"github.com/spaghettifunk/framering/engine/renderer/softgpu"
	"github.com/spaghettifunk/framering/engine/renderer/views"
	"github.com/spaghettifunk/framering/engine/renderer/vulkan"
)

func main() {
	configPath := flag.String("config", "", "path of a TOML config file")
	backendName := flag.String("backend", "", "vulkan or soft; overrides renderer.backend")
	variantName := flag.String("variant", "", "triangle, mesh or pointcloud; overrides renderer.variant")
	frames := flag.Uint64("frames", 0, "stop after this many frames; overrides renderer.max_frames")
	flag.Parse()

	if err := run(*configPath, *backendName, *variantName, *frames); err != nil {
		core.LogError("%+v", err)
		os.Exit(1)
	}
}

func run(configPath, backendName, variantName string, frames uint64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if backendName != "" {
		cfg.Renderer.Backend = backendName
	}
	if variantName != "" {
		cfg.Renderer.Variant = variantName
	}
	if frames != 0 {
		cfg.Renderer.MaxFrames = frames
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := core.SetLogLevel(cfg.Application.LogLevel); err != nil {
		return err
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	variant, err := views.New(cfg.Renderer.Variant)
	if err != nil {
		return err
	}

	e, err := engine.New(cfg, backend, variant)
	if err != nil {
		_ = backend.Shutdown()
		return err
	}

	// signal context to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	if err := e.Initialize(); err != nil {
		core.LogError("initialization failed: %s", err)
		return errors.CombineErrors(err, e.Cleanup())
	}
	runErr := e.Run(ctx)
	return errors.CombineErrors(runErr, e.Cleanup())
}

func newBackend(cfg *config.Config) (gpu.Backend, error) {
	extent := gpu.Extent2D{Width: cfg.Application.Width, Height: cfg.Application.Height}
	switch cfg.Renderer.Backend {
	case config.BackendSoft:
		opts := softgpu.DefaultOptions()
		opts.SubmitLatency = cfg.SubmitLatency()
		opts.Extent = extent
		return softgpu.NewBackend(opts)
	default:
		return vulkan.New(vulkan.Options{
			Name:       cfg.Application.Name,
			Width:      extent.Width,
			Height:     extent.Height,
			Validation: cfg.Renderer.Validation,
		})
	}
}
