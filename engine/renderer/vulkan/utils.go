package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

// result converts a vulkan result. gpu.Result uses the VkResult values.
func result(r vk.Result) gpu.Result {
	return gpu.Result(r)
}

// check logs a failed call and converts its result.
func check(r vk.Result, op string) gpu.Result {
	res := result(r)
	if !res.IsSuccess() {
		core.LogError("%s failed with %s", op, res)
	}
	return res
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}

// FindFirstZeroInByteArray returns the index of the first NUL byte, or the
// length of arr when there is none.
func FindFirstZeroInByteArray(arr []byte) int {
	for i, b := range arr {
		if b == 0 {
			return i
		}
	}
	return len(arr)
}

// cString converts a fixed size vulkan name array.
func cString(arr []byte) string {
	return string(arr[:FindFirstZeroInByteArray(arr)])
}
