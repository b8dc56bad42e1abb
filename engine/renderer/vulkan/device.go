package vulkan

import (
	"runtime"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framering/engine/containers"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

var _ gpu.Device = (*Device)(nil)

type allocation struct {
	memory     vk.DeviceMemory
	size       uint64
	hostMapped bool
	mapped     bool
}

type commandBuffer struct {
	handle vk.CommandBuffer
	pool   gpu.CommandPool
}

type commandPool struct {
	handle  vk.CommandPool
	buffers []gpu.CommandBuffer
}

type descriptorPool struct {
	handle vk.DescriptorPool
	sets   []gpu.DescriptorSet
}

type descriptorSet struct {
	handle vk.DescriptorSet
	pool   gpu.DescriptorPool
}

type pipelineLayout struct {
	handle vk.PipelineLayout
	info   gpu.PipelineLayoutInfo
}

// Device is a logical vulkan device with a single graphics queue. Vulkan
// objects live in handle tables so the engine only ever sees gpu handles.
type Device struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   SwapchainSupportInfo
	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties

	depthFormat vk.Format
	limits      gpu.Limits
	locks       *VulkanLockPool

	buffers         *containers.HandleTable[vk.Buffer]
	allocations     *containers.HandleTable[*allocation]
	images          *containers.HandleTable[vk.Image]
	imageViews      *containers.HandleTable[vk.ImageView]
	fences          *containers.HandleTable[vk.Fence]
	semaphores      *containers.HandleTable[vk.Semaphore]
	commandPools    *containers.HandleTable[*commandPool]
	commandBuffers  *containers.HandleTable[*commandBuffer]
	renderPasses    *containers.HandleTable[vk.RenderPass]
	framebuffers    *containers.HandleTable[vk.Framebuffer]
	shaderModules   *containers.HandleTable[vk.ShaderModule]
	pipelineLayouts *containers.HandleTable[*pipelineLayout]
	pipelines       *containers.HandleTable[vk.Pipeline]
	setLayouts      *containers.HandleTable[vk.DescriptorSetLayout]
	descriptorPools *containers.HandleTable[*descriptorPool]
	descriptorSets  *containers.HandleTable[*descriptorSet]
}

type PhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
	DiscreteGPU          bool
}

type PhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int
	PresentFamilyIndex  int
}

func newDevice() *Device {
	return &Device{
		locks:           NewVulkanLockPool(),
		buffers:         containers.NewHandleTable[vk.Buffer](),
		allocations:     containers.NewHandleTable[*allocation](),
		images:          containers.NewHandleTable[vk.Image](),
		imageViews:      containers.NewHandleTable[vk.ImageView](),
		fences:          containers.NewHandleTable[vk.Fence](),
		semaphores:      containers.NewHandleTable[vk.Semaphore](),
		commandPools:    containers.NewHandleTable[*commandPool](),
		commandBuffers:  containers.NewHandleTable[*commandBuffer](),
		renderPasses:    containers.NewHandleTable[vk.RenderPass](),
		framebuffers:    containers.NewHandleTable[vk.Framebuffer](),
		shaderModules:   containers.NewHandleTable[vk.ShaderModule](),
		pipelineLayouts: containers.NewHandleTable[*pipelineLayout](),
		pipelines:       containers.NewHandleTable[vk.Pipeline](),
		setLayouts:      containers.NewHandleTable[vk.DescriptorSetLayout](),
		descriptorPools: containers.NewHandleTable[*descriptorPool](),
		descriptorSets:  containers.NewHandleTable[*descriptorSet](),
	}
}

// lookup returns the object behind id, logging unknown ids.
func lookup[T any](table *containers.HandleTable[T], id uint64, kind string) (T, bool) {
	obj, ok := table.Get(id)
	if !ok {
		core.LogError("use of unknown %s %d", kind, id)
	}
	return obj, ok
}

// release removes id from table, logging unknown ids.
func release[T any](table *containers.HandleTable[T], id uint64, kind string) (T, bool) {
	obj, err := table.Release(id)
	if err != nil {
		core.LogError("destroy of %s: %s", kind, err)
		return obj, false
	}
	return obj, true
}

// DeviceCreate selects a physical device able to present to surface and
// creates the logical device with its queues.
func DeviceCreate(instance vk.Instance, surface vk.Surface) (*Device, error) {
	d := newDevice()
	if err := d.selectPhysicalDevice(instance, surface); err != nil {
		return nil, err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{d.GraphicsQueueIndex}
	if d.PresentQueueIndex != d.GraphicsQueueIndex {
		indices = append(indices, d.PresentQueueIndex)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if d.hasExtension("VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	// Large point clouds are drawn as points.
	deviceFeatures := vk.PhysicalDeviceFeatures{
		FillModeNonSolid: vk.True,
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logical vk.Device
	if err := gpu.Check(result(vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, nil, &logical)), "vkCreateDevice"); err != nil {
		return nil, err
	}
	d.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	var graphics, present vk.Queue
	vk.GetDeviceQueue(d.LogicalDevice, d.GraphicsQueueIndex, 0, &graphics)
	vk.GetDeviceQueue(d.LogicalDevice, d.PresentQueueIndex, 0, &present)
	d.GraphicsQueue = graphics
	d.PresentQueue = present
	core.LogInfo("Queues obtained.")

	if !d.detectDepthFormat() {
		d.Destroy()
		return nil, errors.New("no supported depth format")
	}
	return d, nil
}

// Destroy releases the logical device. Every object created through it must
// be destroyed before.
func (d *Device) Destroy() {
	if d.LogicalDevice == nil {
		return
	}
	for kind, n := range d.liveObjects() {
		core.LogWarn("%d %s objects still alive at device destruction", n, kind)
	}
	core.LogInfo("Destroying logical device...")
	vk.DestroyDevice(d.LogicalDevice, nil)
	d.LogicalDevice = nil
	d.GraphicsQueue = nil
	d.PresentQueue = nil
	d.PhysicalDevice = nil
}

func (d *Device) liveObjects() map[string]int {
	live := map[string]int{
		"buffer":                d.buffers.Len(),
		"image":                 d.images.Len(),
		"image view":            d.imageViews.Len(),
		"fence":                 d.fences.Len(),
		"semaphore":             d.semaphores.Len(),
		"command pool":          d.commandPools.Len(),
		"render pass":           d.renderPasses.Len(),
		"framebuffer":           d.framebuffers.Len(),
		"shader module":         d.shaderModules.Len(),
		"pipeline layout":       d.pipelineLayouts.Len(),
		"pipeline":              d.pipelines.Len(),
		"descriptor set layout": d.setLayouts.Len(),
		"descriptor pool":       d.descriptorPools.Len(),
	}
	for kind, n := range live {
		if n == 0 {
			delete(live, kind)
		}
	}
	return live
}

func (d *Device) Limits() gpu.Limits {
	return d.limits
}

func (d *Device) DepthFormat() gpu.Format {
	return gpu.Format(d.depthFormat)
}

func (d *Device) WaitIdle() gpu.Result {
	var r vk.Result
	d.locks.SafeCall(QueueManagement, func() {
		r = vk.DeviceWaitIdle(d.LogicalDevice)
	})
	return check(r, "vkDeviceWaitIdle")
}

func (d *Device) hasExtension(name string) bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(d.PhysicalDevice, "", &count, nil); res != vk.Success || count == 0 {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(d.PhysicalDevice, "", &count, available); res != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func (d *Device) detectDepthFormat() bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			d.depthFormat = candidate
			return true
		}
	}
	return false
}

func (d *Device) selectPhysicalDevice(instance vk.Instance, surface vk.Surface) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(instance, &physicalDeviceCount, nil); res != vk.Success {
		return gpu.Check(result(res), "vkEnumeratePhysicalDevices")
	}
	if physicalDeviceCount == 0 {
		return errors.New("no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return gpu.Check(result(res), "vkEnumeratePhysicalDevices")
	}

	requirements := PhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		DiscreteGPU:          runtime.GOOS != "darwin",
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}

	// A discrete GPU is preferred; fall back to any device in a second pass.
	for pass := 0; pass < 2; pass++ {
		for _, pd := range physicalDevices {
			var properties vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(pd, &properties)
			properties.Deref()
			properties.Limits.Deref()

			queueInfo, ok := physicalDeviceMeetsRequirements(pd, surface, &properties, &requirements, &d.SwapchainSupport)
			if !ok {
				continue
			}

			var memory vk.PhysicalDeviceMemoryProperties
			vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
			memory.Deref()

			d.PhysicalDevice = pd
			d.GraphicsQueueIndex = uint32(queueInfo.GraphicsFamilyIndex)
			d.PresentQueueIndex = uint32(queueInfo.PresentFamilyIndex)
			d.Properties = properties
			d.Memory = memory
			d.limits = gpu.Limits{
				MinUniformBufferOffsetAlignment: uint64(properties.Limits.MinUniformBufferOffsetAlignment),
				MaxPushConstantsSize:            properties.Limits.MaxPushConstantsSize,
			}
			logDevice(&properties, &memory)
			return nil
		}
		requirements.DiscreteGPU = false
	}
	return errors.New("no physical devices were found which meet the requirements")
}

func logDevice(properties *vk.PhysicalDeviceProperties, memory *vk.PhysicalDeviceMemoryProperties) {
	core.LogInfo("Selected device: '%s'.", cString(properties.DeviceName[:]))
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch(),
	)
	for j := 0; j < int(memory.MemoryHeapCount); j++ {
		memory.MemoryHeaps[j].Deref()
		sizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", sizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", sizeGib)
		}
	}
	core.LogInfo("Uniform buffer offset alignment: %d", properties.Limits.MinUniformBufferOffsetAlignment)
}

func physicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, requirements *PhysicalDeviceRequirements, outSwapchainSupport *SwapchainSupportInfo) (PhysicalDeviceQueueFamilyInfo, bool) {
	queueInfo := PhysicalDeviceQueueFamilyInfo{GraphicsFamilyIndex: -1, PresentFamilyIndex: -1}
	name := cString(properties.DeviceName[:])

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogDebug("Device %s is not a discrete GPU, and one is required. Skipping.", name)
		return queueInfo, false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		if queueInfo.GraphicsFamilyIndex < 0 && vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			queueInfo.GraphicsFamilyIndex = i
		}
		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return queueInfo, false
		}
		if supportsPresent == vk.True {
			// Prefer a family that does both.
			if queueInfo.PresentFamilyIndex < 0 || queueInfo.GraphicsFamilyIndex == i {
				queueInfo.PresentFamilyIndex = i
			}
		}
	}

	if (requirements.Graphics && queueInfo.GraphicsFamilyIndex < 0) || (requirements.Present && queueInfo.PresentFamilyIndex < 0) {
		core.LogDebug("Device %s lacks a graphics or present queue. Skipping.", name)
		return queueInfo, false
	}
	core.LogDebug("Graphics Family Index: %d", queueInfo.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", queueInfo.PresentFamilyIndex)

	if err := QuerySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		core.LogDebug("Could not query swapchain support of %s: %s", name, err)
		return queueInfo, false
	}
	if len(outSwapchainSupport.Formats) == 0 || len(outSwapchainSupport.PresentModes) == 0 {
		core.LogDebug("Required swapchain support not present, skipping device %s.", name)
		return queueInfo, false
	}

	var availableExtensionCount uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, nil); res != vk.Success {
		return queueInfo, false
	}
	availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, availableExtensions); res != vk.Success {
		return queueInfo, false
	}
	for _, required := range requirements.DeviceExtensionNames {
		found := false
		for j := range availableExtensions {
			availableExtensions[j].Deref()
			if cString(availableExtensions[j].ExtensionName[:]) == required {
				found = true
				break
			}
		}
		if !found {
			core.LogDebug("Required extension not found: '%s', skipping device %s.", required, name)
			return queueInfo, false
		}
	}
	return queueInfo, true
}
