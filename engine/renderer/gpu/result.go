package gpu

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Result is the status returned by every GPU call. The numeric values are
// the ones Vulkan uses so backends can convert without a lookup table.
type Result int32

const (
	Success                   Result = 0
	NotReady                  Result = 1
	Timeout                   Result = 2
	Incomplete                Result = 5
	Suboptimal                Result = 1000001003
	ErrorOutOfHostMemory      Result = -1
	ErrorOutOfDeviceMemory    Result = -2
	ErrorInitializationFailed Result = -3
	ErrorDeviceLost           Result = -4
	ErrorMemoryMapFailed      Result = -5
	ErrorLayerNotPresent      Result = -6
	ErrorExtensionNotPresent  Result = -7
	ErrorFeatureNotPresent    Result = -8
	ErrorTooManyObjects       Result = -10
	ErrorFormatNotSupported   Result = -11
	ErrorUnknown              Result = -13
	ErrorOutOfPoolMemory      Result = -1000069000
	ErrorSurfaceLost          Result = -1000000000
	ErrorOutOfDate            Result = -1000001004
	// ErrorValidationFailed is reported by backends that validate API usage
	// themselves (the software device) for calls that would be undefined
	// behaviour on a real driver.
	ErrorValidationFailed Result = -1000011001
)

// ErrFatal marks every error produced from a failed GPU call. Nothing in the
// engine retries an operation carrying this mark.
var ErrFatal = errors.New("fatal gpu error")

func (r Result) String() string {
	switch r {
	case Success:
		return "VK_SUCCESS"
	case NotReady:
		return "VK_NOT_READY"
	case Timeout:
		return "VK_TIMEOUT"
	case Incomplete:
		return "VK_INCOMPLETE"
	case Suboptimal:
		return "VK_SUBOPTIMAL_KHR"
	case ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED"
	case ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT"
	case ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT"
	case ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS"
	case ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED"
	case ErrorUnknown:
		return "VK_ERROR_UNKNOWN"
	case ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY"
	case ErrorSurfaceLost:
		return "VK_ERROR_SURFACE_LOST_KHR"
	case ErrorOutOfDate:
		return "VK_ERROR_OUT_OF_DATE_KHR"
	case ErrorValidationFailed:
		return "VK_ERROR_VALIDATION_FAILED_EXT"
	default:
		return fmt.Sprintf("VkResult(%d)", int32(r))
	}
}

// IsSuccess reports whether r is a success code. Suboptimal still counts as
// success: the image was acquired or presented.
func (r Result) IsSuccess() bool {
	return r == Success || r == Suboptimal
}

// Check maps a non-success result onto the fatal error path. op names the
// call that produced r.
func Check(r Result, op string) error {
	if r.IsSuccess() {
		return nil
	}
	return errors.Mark(errors.Newf("%s failed with %s", op, r), ErrFatal)
}

// IsFatal reports whether err came out of Check.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
