package vulkan

import "sync"

type LockGroup string

const (
	// QueueManagement guards the graphics queue; vkQueueSubmit,
	// vkQueuePresentKHR and vkQueueWaitIdle need external synchronization.
	QueueManagement LockGroup = "queue_management"
	// CommandPoolManagement guards command pools and the buffers allocated
	// from them.
	CommandPoolManagement LockGroup = "command_pool_management"
	// DescriptorManagement guards descriptor pools and the sets allocated
	// from them.
	DescriptorManagement LockGroup = "descriptor_management"
	MemoryManagement     LockGroup = "memory_management"
)

// VulkanLockPool hands out one mutex per lock group.
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the locks map
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks: make(map[LockGroup]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.locks[group]; !exists {
		vs.locks[group] = &sync.Mutex{}
	}
	return vs.locks[group]
}

// SafeCall runs fn holding the mutex of group.
func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func()) {
	l := vs.lock(group)
	l.Lock()
	defer l.Unlock()
	fn()
}
