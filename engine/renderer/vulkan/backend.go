package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/platform"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

var _ gpu.Backend = (*Backend)(nil)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// Options configure the window and instance of a Backend.
type Options struct {
	Name       string
	Width      uint32
	Height     uint32
	Validation bool
}

// Backend brings up a glfw window, a vulkan instance with its surface, a
// device and a swapchain.
type Backend struct {
	platform *platform.Platform

	instance       vk.Instance
	debugMessenger vk.DebugReportCallback
	surface        vk.Surface
	device         *Device
	swapchain      *Swapchain
}

// New brings the backend up. Anything created before a failing step is torn
// down again.
func New(opts Options) (_ *Backend, err error) {
	p, err := platform.New()
	if err != nil {
		return nil, err
	}
	if err := p.Startup(opts.Name, opts.Width, opts.Height); err != nil {
		return nil, err
	}
	b := &Backend{platform: p}
	defer func() {
		if err != nil {
			err = errors.CombineErrors(err, b.Shutdown())
		}
	}()

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, errors.Wrap(err, "could not initialize vulkan")
	}

	if err := b.createInstance(opts); err != nil {
		return nil, err
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := p.CreateSurface(b.instance)
	if err != nil {
		return nil, err
	}
	b.surface = surface
	core.LogDebug("Vulkan surface created.")

	device, err := DeviceCreate(b.instance, b.surface)
	if err != nil {
		return nil, errors.Wrap(err, "could not create device")
	}
	b.device = device

	extent := p.Extent()
	swapchain, err := SwapchainCreate(device, b.surface, extent.Width, extent.Height)
	if err != nil {
		return nil, errors.Wrap(err, "could not create swapchain")
	}
	b.swapchain = swapchain

	core.LogInfo("Vulkan backend initialized successfully.")
	return b, nil
}

func (b *Backend) createInstance(opts Options) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(opts.Name),
		PEngineName:        VulkanSafeString("framering"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := append([]string{}, b.platform.RequiredExtensions()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if opts.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	core.LogDebug("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	var layers []string
	if opts.Validation {
		ok, err := layerAvailable(validationLayer)
		if err != nil {
			return err
		}
		if ok {
			layers = append(layers, validationLayer)
			core.LogInfo("Validation layers enabled.")
		} else {
			core.LogWarn("Validation layer %s is missing, continuing without it.", validationLayer)
		}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return gpu.Check(check(res, "vkCreateInstance"), "create instance")
	}
	b.instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return errors.Wrap(err, "could not load instance functions")
	}
	core.LogInfo("Vulkan Instance created.")

	if len(layers) > 0 {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(instance, &debugCreateInfo, nil, &dbg)); err != nil {
			return errors.Wrap(err, "vkCreateDebugReportCallbackEXT failed")
		}
		b.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}
	return nil
}

func layerAvailable(name string) (bool, error) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false, gpu.Check(result(res), "vkEnumerateInstanceLayerProperties")
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return false, gpu.Check(result(res), "vkEnumerateInstanceLayerProperties")
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].LayerName[:]) == name {
			return true, nil
		}
	}
	return false, nil
}

func (b *Backend) Device() gpu.Device {
	return b.device
}

func (b *Backend) Swapchain() gpu.Swapchain {
	return b.swapchain
}

func (b *Backend) Window() gpu.Window {
	return b.platform
}

// Shutdown destroys everything in reverse creation order. It is safe on a
// partially created backend.
func (b *Backend) Shutdown() error {
	if b.device != nil && b.device.LogicalDevice != nil {
		b.device.WaitIdle()
	}
	if b.swapchain != nil {
		b.swapchain.Destroy()
		b.swapchain = nil
	}
	if b.device != nil {
		b.device.Destroy()
		b.device = nil
	}
	if b.surface != vk.NullSurface {
		vk.DestroySurface(b.instance, b.surface, nil)
		b.surface = vk.NullSurface
	}
	if b.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(b.instance, b.debugMessenger, nil)
		b.debugMessenger = vk.NullDebugReportCallback
	}
	if b.instance != nil {
		vk.DestroyInstance(b.instance, nil)
		b.instance = nil
	}
	if b.platform != nil {
		err := b.platform.Shutdown()
		b.platform = nil
		return err
	}
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
