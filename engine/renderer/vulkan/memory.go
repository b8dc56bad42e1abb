package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

func memoryProperties(usage gpu.MemoryUsage) vk.MemoryPropertyFlagBits {
	if usage.Mappable() {
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	return vk.MemoryPropertyDeviceLocalBit
}

// findMemoryIndex returns the first memory type allowed by typeFilter that
// has all propertyFlags, or -1.
func (d *Device) findMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlagBits) int32 {
	for i := uint32(0); i < d.Memory.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		d.Memory.MemoryTypes[i].Deref()
		flags := vk.MemoryPropertyFlagBits(d.Memory.MemoryTypes[i].PropertyFlags)
		if typeFilter&(1<<i) != 0 && flags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

func (d *Device) allocate(reqs vk.MemoryRequirements, usage gpu.MemoryUsage) (vk.DeviceMemory, vk.Result) {
	index := d.findMemoryIndex(reqs.MemoryTypeBits, memoryProperties(usage))
	if index < 0 {
		return vk.NullDeviceMemory, vk.ErrorOutOfDeviceMemory
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: uint32(index),
	}
	var memory vk.DeviceMemory
	var res vk.Result
	d.locks.SafeCall(MemoryManagement, func() {
		res = vk.AllocateMemory(d.LogicalDevice, &info, nil, &memory)
	})
	return memory, res
}

func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsage, memory gpu.MemoryUsage) (gpu.AllocatedBuffer, gpu.Result) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if res := vk.CreateBuffer(d.LogicalDevice, &info, nil, &buffer); res != vk.Success {
		return gpu.AllocatedBuffer{}, check(res, "vkCreateBuffer")
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.LogicalDevice, buffer, &reqs)
	reqs.Deref()

	mem, res := d.allocate(reqs, memory)
	if res != vk.Success {
		vk.DestroyBuffer(d.LogicalDevice, buffer, nil)
		return gpu.AllocatedBuffer{}, check(res, "vkAllocateMemory")
	}
	if res := vk.BindBufferMemory(d.LogicalDevice, buffer, mem, 0); res != vk.Success {
		vk.FreeMemory(d.LogicalDevice, mem, nil)
		vk.DestroyBuffer(d.LogicalDevice, buffer, nil)
		return gpu.AllocatedBuffer{}, check(res, "vkBindBufferMemory")
	}

	return gpu.AllocatedBuffer{
		Buffer: gpu.Buffer(d.buffers.Acquire(buffer)),
		Allocation: gpu.Allocation(d.allocations.Acquire(&allocation{
			memory:     mem,
			size:       uint64(reqs.Size),
			hostMapped: memory.Mappable(),
		})),
		Size: size,
	}, gpu.Success
}

func (d *Device) DestroyBuffer(buffer gpu.AllocatedBuffer) {
	if b, ok := release(d.buffers, uint64(buffer.Buffer), "buffer"); ok {
		vk.DestroyBuffer(d.LogicalDevice, b, nil)
	}
	d.free(buffer.Allocation)
}

func (d *Device) free(id gpu.Allocation) {
	a, ok := release(d.allocations, uint64(id), "allocation")
	if !ok {
		return
	}
	d.locks.SafeCall(MemoryManagement, func() {
		if a.mapped {
			vk.UnmapMemory(d.LogicalDevice, a.memory)
		}
		vk.FreeMemory(d.LogicalDevice, a.memory, nil)
	})
}

func (d *Device) MapMemory(id gpu.Allocation) ([]byte, gpu.Result) {
	a, ok := lookup(d.allocations, uint64(id), "allocation")
	if !ok || !a.hostMapped || a.mapped {
		return nil, gpu.ErrorMemoryMapFailed
	}
	var ptr unsafe.Pointer
	var res vk.Result
	d.locks.SafeCall(MemoryManagement, func() {
		res = vk.MapMemory(d.LogicalDevice, a.memory, 0, vk.DeviceSize(a.size), 0, &ptr)
		if res == vk.Success {
			a.mapped = true
		}
	})
	if res != vk.Success {
		return nil, check(res, "vkMapMemory")
	}
	return unsafe.Slice((*byte)(ptr), a.size), gpu.Success
}

func (d *Device) UnmapMemory(id gpu.Allocation) {
	a, ok := lookup(d.allocations, uint64(id), "allocation")
	if !ok {
		return
	}
	d.locks.SafeCall(MemoryManagement, func() {
		if a.mapped {
			vk.UnmapMemory(d.LogicalDevice, a.memory)
			a.mapped = false
		}
	})
}

func (d *Device) CreateImage(info gpu.ImageInfo) (gpu.AllocatedImage, gpu.Result) {
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(info.Format),
		Extent: vk.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(info.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if res := vk.CreateImage(d.LogicalDevice, &createInfo, nil, &image); res != vk.Success {
		return gpu.AllocatedImage{}, check(res, "vkCreateImage")
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.LogicalDevice, image, &reqs)
	reqs.Deref()

	mem, res := d.allocate(reqs, gpu.MemoryUsageGPUOnly)
	if res != vk.Success {
		vk.DestroyImage(d.LogicalDevice, image, nil)
		return gpu.AllocatedImage{}, check(res, "vkAllocateMemory")
	}
	if res := vk.BindImageMemory(d.LogicalDevice, image, mem, 0); res != vk.Success {
		vk.FreeMemory(d.LogicalDevice, mem, nil)
		vk.DestroyImage(d.LogicalDevice, image, nil)
		return gpu.AllocatedImage{}, check(res, "vkBindImageMemory")
	}

	return gpu.AllocatedImage{
		Image:      gpu.Image(d.images.Acquire(image)),
		Allocation: gpu.Allocation(d.allocations.Acquire(&allocation{memory: mem, size: uint64(reqs.Size)})),
		Size:       uint64(reqs.Size),
	}, gpu.Success
}

func (d *Device) DestroyImage(image gpu.AllocatedImage) {
	if img, ok := release(d.images, uint64(image.Image), "image"); ok {
		vk.DestroyImage(d.LogicalDevice, img, nil)
	}
	d.free(image.Allocation)
}
