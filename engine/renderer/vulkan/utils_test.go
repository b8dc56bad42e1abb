package vulkan

import (
	"testing"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

func TestVulkanSafeString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "\x00"},
		{"VK_KHR_surface", "VK_KHR_surface\x00"},
		{"main\x00", "main\x00"},
	}
	for _, tt := range tests {
		if got := VulkanSafeString(tt.in); got != tt.want {
			t.Errorf("VulkanSafeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	in := []string{"a", "b\x00"}
	out := VulkanSafeStrings(in)
	if out[0] != "a\x00" || out[1] != "b\x00" {
		t.Errorf("VulkanSafeStrings = %q", out)
	}
	if in[0] != "a" {
		t.Errorf("VulkanSafeStrings modified its input: %q", in)
	}
}

func TestCString(t *testing.T) {
	var name [16]byte
	copy(name[:], "Intel GPU")
	if got := cString(name[:]); got != "Intel GPU" {
		t.Errorf("cString = %q", got)
	}

	full := []byte("abcd")
	if got := FindFirstZeroInByteArray(full); got != len(full) {
		t.Errorf("FindFirstZeroInByteArray without NUL = %d, want %d", got, len(full))
	}
	if got := cString(full); got != "abcd" {
		t.Errorf("cString without NUL = %q", got)
	}
}

func TestTimeoutNanos(t *testing.T) {
	if got := timeoutNanos(gpu.WaitForever); got != vk.MaxUint64 {
		t.Errorf("timeoutNanos(WaitForever) = %d", got)
	}
	if got := timeoutNanos(time.Second); got != 1_000_000_000 {
		t.Errorf("timeoutNanos(1s) = %d", got)
	}
	if got := timeoutNanos(0); got != 0 {
		t.Errorf("timeoutNanos(0) = %d", got)
	}
}

func TestMemoryProperties(t *testing.T) {
	tests := []struct {
		usage gpu.MemoryUsage
		want  vk.MemoryPropertyFlagBits
	}{
		{gpu.MemoryUsageGPUOnly, vk.MemoryPropertyDeviceLocalBit},
		{gpu.MemoryUsageCPUOnly, vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit},
		{gpu.MemoryUsageCPUToGPU, vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit},
	}
	for _, tt := range tests {
		if got := memoryProperties(tt.usage); got != tt.want {
			t.Errorf("memoryProperties(%s) = %#x, want %#x", tt.usage, got, tt.want)
		}
	}
}

func TestResultMatchesVulkan(t *testing.T) {
	pairs := map[vk.Result]gpu.Result{
		vk.Success:                gpu.Success,
		vk.Timeout:                gpu.Timeout,
		vk.Suboptimal:             gpu.Suboptimal,
		vk.ErrorOutOfDate:         gpu.ErrorOutOfDate,
		vk.ErrorDeviceLost:        gpu.ErrorDeviceLost,
		vk.ErrorOutOfDeviceMemory: gpu.ErrorOutOfDeviceMemory,
	}
	for in, want := range pairs {
		if got := result(in); got != want {
			t.Errorf("result(%d) = %s, want %s", in, got, want)
		}
	}
}

func TestLockPoolReusesGroupMutex(t *testing.T) {
	pool := NewVulkanLockPool()
	if pool.lock(QueueManagement) != pool.lock(QueueManagement) {
		t.Fatal("lock returned different mutexes for one group")
	}
	if pool.lock(QueueManagement) == pool.lock(DescriptorManagement) {
		t.Fatal("lock shared a mutex between groups")
	}
	calls := 0
	pool.SafeCall(MemoryManagement, func() { calls++ })
	if calls != 1 {
		t.Fatalf("SafeCall ran fn %d times", calls)
	}
}
