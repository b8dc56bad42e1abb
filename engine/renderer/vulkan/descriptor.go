package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, gpu.Result) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(d.LogicalDevice, &layoutInfo, nil, &layout); res != vk.Success {
		return 0, check(res, "vkCreateDescriptorSetLayout")
	}
	return gpu.DescriptorSetLayout(d.setLayouts.Acquire(layout)), gpu.Success
}

func (d *Device) DestroyDescriptorSetLayout(id gpu.DescriptorSetLayout) {
	if layout, ok := release(d.setLayouts, uint64(id), "descriptor set layout"); ok {
		vk.DestroyDescriptorSetLayout(d.LogicalDevice, layout, nil)
	}
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, gpu.Result) {
	poolSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		poolSizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.LogicalDevice, &poolInfo, nil, &pool); res != vk.Success {
		return 0, check(res, "vkCreateDescriptorPool")
	}
	return gpu.DescriptorPool(d.descriptorPools.Acquire(&descriptorPool{handle: pool})), gpu.Success
}

// DestroyDescriptorPool destroys the pool together with its sets.
func (d *Device) DestroyDescriptorPool(id gpu.DescriptorPool) {
	pool, ok := release(d.descriptorPools, uint64(id), "descriptor pool")
	if !ok {
		return
	}
	d.locks.SafeCall(DescriptorManagement, func() {
		for _, set := range pool.sets {
			_, _ = d.descriptorSets.Release(uint64(set))
		}
		vk.DestroyDescriptorPool(d.LogicalDevice, pool.handle, nil)
	})
}

func (d *Device) AllocateDescriptorSet(poolID gpu.DescriptorPool, layoutID gpu.DescriptorSetLayout) (gpu.DescriptorSet, gpu.Result) {
	pool, ok := lookup(d.descriptorPools, uint64(poolID), "descriptor pool")
	if !ok {
		return 0, gpu.ErrorValidationFailed
	}
	layout, ok := lookup(d.setLayouts, uint64(layoutID), "descriptor set layout")
	if !ok {
		return 0, gpu.ErrorValidationFailed
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.handle,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}

	var id gpu.DescriptorSet
	var res vk.Result
	d.locks.SafeCall(DescriptorManagement, func() {
		sets := make([]vk.DescriptorSet, 1)
		res = vk.AllocateDescriptorSets(d.LogicalDevice, &allocInfo, &sets[0])
		if res != vk.Success {
			return
		}
		id = gpu.DescriptorSet(d.descriptorSets.Acquire(&descriptorSet{handle: sets[0], pool: poolID}))
		pool.sets = append(pool.sets, id)
	})
	if res != vk.Success {
		return 0, check(res, "vkAllocateDescriptorSets")
	}
	return id, gpu.Success
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		set, ok := lookup(d.descriptorSets, uint64(w.Set), "descriptor set")
		if !ok {
			continue
		}
		buffer, ok := lookup(d.buffers, uint64(w.Buffer), "buffer")
		if !ok {
			continue
		}
		vkWrites = append(vkWrites, vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set.handle,
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorType(w.Type),
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: buffer,
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(w.Range),
			}},
		})
	}
	if len(vkWrites) != len(writes) {
		core.LogWarn("skipped %d descriptor writes with unknown handles", len(writes)-len(vkWrites))
	}
	if len(vkWrites) == 0 {
		return
	}
	d.locks.SafeCall(DescriptorManagement, func() {
		vk.UpdateDescriptorSets(d.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
	})
}
