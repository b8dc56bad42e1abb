package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framering/engine/core"
	emath "github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

var _ gpu.Swapchain = (*Swapchain)(nil)

type SwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// QuerySwapchainSupport fills out with what surface supports on device.
func QuerySwapchainSupport(device vk.PhysicalDevice, surface vk.Surface, out *SwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(device, surface, &out.Capabilities); res != vk.Success {
		return gpu.Check(result(res), "vkGetPhysicalDeviceSurfaceCapabilitiesKHR")
	}
	out.Capabilities.Deref()
	out.Capabilities.CurrentExtent.Deref()
	out.Capabilities.MinImageExtent.Deref()
	out.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil); res != vk.Success {
		return gpu.Check(result(res), "vkGetPhysicalDeviceSurfaceFormatsKHR")
	}
	out.Formats = make([]vk.SurfaceFormat, formatCount)
	if formatCount > 0 {
		if res := vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, out.Formats); res != vk.Success {
			return gpu.Check(result(res), "vkGetPhysicalDeviceSurfaceFormatsKHR")
		}
		for i := range out.Formats {
			out.Formats[i].Deref()
		}
	}

	var presentModeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &presentModeCount, nil); res != vk.Success {
		return gpu.Check(result(res), "vkGetPhysicalDeviceSurfacePresentModesKHR")
	}
	out.PresentModes = make([]vk.PresentMode, presentModeCount)
	if presentModeCount > 0 {
		if res := vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &presentModeCount, out.PresentModes); res != vk.Success {
			return gpu.Check(result(res), "vkGetPhysicalDeviceSurfacePresentModesKHR")
		}
	}
	return nil
}

// Swapchain owns its images and their views. The views are registered with
// the device so framebuffers can reference them, but only the swapchain
// destroys them.
type Swapchain struct {
	device *Device

	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	extent      gpu.Extent2D
	Images      []vk.Image
	views       []gpu.ImageView
}

// SwapchainCreate creates a swapchain of width by height, clamped to what the
// surface allows.
func SwapchainCreate(device *Device, surface vk.Surface, width, height uint32) (*Swapchain, error) {
	support := &device.SwapchainSupport
	if err := QuerySwapchainSupport(device.PhysicalDevice, surface, support); err != nil {
		return nil, err
	}
	if len(support.Formats) == 0 {
		return nil, errors.New("surface reports no formats")
	}

	swapchain := &Swapchain{device: device}

	// Choose a swap surface format.
	swapchain.ImageFormat = support.Formats[0]
	for _, format := range support.Formats {
		// Preferred formats
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			swapchain.ImageFormat = format
			break
		}
	}

	presentMode := vk.PresentModeFifo
	for _, mode := range support.PresentModes {
		if mode == vk.PresentModeMailbox {
			presentMode = mode
			break
		}
	}

	swapchainExtent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		swapchainExtent = support.Capabilities.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	lo := support.Capabilities.MinImageExtent
	hi := support.Capabilities.MaxImageExtent
	swapchainExtent.Width = emath.Clamp(swapchainExtent.Width, lo.Width, hi.Width)
	swapchainExtent.Height = emath.Clamp(swapchainExtent.Height, lo.Height, hi.Height)

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	// Setup the queue family indices
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{device.GraphicsQueueIndex, device.PresentQueueIndex}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, nil, &handle); res != vk.Success {
		return nil, gpu.Check(check(res, "vkCreateSwapchainKHR"), "create swapchain")
	}
	swapchain.Handle = handle
	swapchain.extent = gpu.Extent2D{Width: swapchainExtent.Width, Height: swapchainExtent.Height}

	// Images
	var count uint32
	if res := vk.GetSwapchainImages(device.LogicalDevice, handle, &count, nil); res != vk.Success {
		swapchain.Destroy()
		return nil, gpu.Check(result(res), "vkGetSwapchainImagesKHR")
	}
	swapchain.Images = make([]vk.Image, count)
	if res := vk.GetSwapchainImages(device.LogicalDevice, handle, &count, swapchain.Images); res != vk.Success {
		swapchain.Destroy()
		return nil, gpu.Check(result(res), "vkGetSwapchainImagesKHR")
	}

	// Views
	for _, image := range swapchain.Images {
		view, res := device.createImageView(image, swapchain.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if res != vk.Success {
			swapchain.Destroy()
			return nil, gpu.Check(check(res, "vkCreateImageView"), "create swapchain image view")
		}
		swapchain.views = append(swapchain.views, gpu.ImageView(device.imageViews.Acquire(view)))
	}

	core.LogInfo("Swapchain created successfully: %d images of %dx%d.", count, swapchainExtent.Width, swapchainExtent.Height)
	return swapchain, nil
}

// Destroy releases the views and the swapchain. Images are owned by the
// swapchain and go with it.
func (s *Swapchain) Destroy() {
	for _, id := range s.views {
		s.device.DestroyImageView(id)
	}
	s.views = nil
	s.Images = nil
	if s.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(s.device.LogicalDevice, s.Handle, nil)
		s.Handle = vk.NullSwapchain
	}
}

func (s *Swapchain) Format() gpu.Format {
	return gpu.Format(s.ImageFormat.Format)
}

func (s *Swapchain) Extent() gpu.Extent2D {
	return s.extent
}

func (s *Swapchain) ImageViews() []gpu.ImageView {
	return s.views
}

func (s *Swapchain) AcquireNextImage(signal gpu.Semaphore) (uint32, gpu.Result) {
	semaphore, ok := lookup(s.device.semaphores, uint64(signal), "semaphore")
	if !ok {
		return 0, gpu.ErrorValidationFailed
	}
	var index uint32
	res := vk.AcquireNextImage(s.device.LogicalDevice, s.Handle, vk.MaxUint64, semaphore, vk.NullFence, &index)
	return index, check(res, "vkAcquireNextImageKHR")
}

func (s *Swapchain) Present(wait gpu.Semaphore, imageIndex uint32) gpu.Result {
	semaphore, ok := lookup(s.device.semaphores, uint64(wait), "semaphore")
	if !ok {
		return gpu.ErrorValidationFailed
	}
	// Return the image to the swapchain for presentation.
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{semaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	var res vk.Result
	s.device.locks.SafeCall(QueueManagement, func() {
		res = vk.QueuePresent(s.device.PresentQueue, &presentInfo)
	})
	return check(res, "vkQueuePresentKHR")
}
