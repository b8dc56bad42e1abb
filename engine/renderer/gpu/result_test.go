package gpu

import (
	"strings"
	"testing"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		r     Result
		fatal bool
	}{
		{Success, false},
		{Suboptimal, false},
		{ErrorOutOfDate, true},
		{Timeout, true},
		{NotReady, true},
		{ErrorDeviceLost, true},
		{ErrorOutOfDeviceMemory, true},
	}
	for _, tt := range tests {
		err := Check(tt.r, "vkQueueSubmit")
		if (err != nil) != tt.fatal {
			t.Errorf("Check(%s) = %v, want fatal=%v", tt.r, err, tt.fatal)
			continue
		}
		if err == nil {
			continue
		}
		if !IsFatal(err) {
			t.Errorf("Check(%s) is not marked fatal", tt.r)
		}
		if !strings.Contains(err.Error(), "vkQueueSubmit") || !strings.Contains(err.Error(), tt.r.String()) {
			t.Errorf("Check(%s) message %q lacks the call or the result", tt.r, err)
		}
	}
}

func TestResultString(t *testing.T) {
	if got := ErrorOutOfDate.String(); got != "VK_ERROR_OUT_OF_DATE_KHR" {
		t.Errorf("String() = %q", got)
	}
	if got := Result(42).String(); got != "VkResult(42)" {
		t.Errorf("String() = %q", got)
	}
}

func TestTypeHelpers(t *testing.T) {
	if (Extent2D{Width: 1700, Height: 0}).Aspect() != 1 {
		t.Error("Aspect() of a zero height extent is not 1")
	}
	if !MemoryUsageCPUToGPU.Mappable() || MemoryUsageGPUOnly.Mappable() {
		t.Error("Mappable() is wrong")
	}
}
