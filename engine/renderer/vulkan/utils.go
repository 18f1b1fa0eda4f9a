package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/core"
)

var resultNames = map[vk.Result][2]string{
	vk.Success:                    {"VK_SUCCESS", "Command successfully completed"},
	vk.NotReady:                   {"VK_NOT_READY", "A fence or query has not yet completed"},
	vk.Timeout:                    {"VK_TIMEOUT", "A wait operation has not completed in the specified time"},
	vk.EventSet:                   {"VK_EVENT_SET", "An event is signaled"},
	vk.EventReset:                 {"VK_EVENT_RESET", "An event is unsignaled"},
	vk.Incomplete:                 {"VK_INCOMPLETE", "A return array was too small for the result"},
	vk.Suboptimal:                 {"VK_SUBOPTIMAL_KHR", "A swapchain no longer matches the surface properties exactly"},
	vk.PipelineCompileRequired:    {"VK_PIPELINE_COMPILE_REQUIRED_EXT", "A requested pipeline creation would have required compilation"},
	vk.ErrorOutOfHostMemory:       {"VK_ERROR_OUT_OF_HOST_MEMORY", "A host memory allocation has failed"},
	vk.ErrorOutOfDeviceMemory:     {"VK_ERROR_OUT_OF_DEVICE_MEMORY", "A device memory allocation has failed"},
	vk.ErrorInitializationFailed:  {"VK_ERROR_INITIALIZATION_FAILED", "Initialization of an object could not be completed"},
	vk.ErrorDeviceLost:            {"VK_ERROR_DEVICE_LOST", "The logical or physical device has been lost"},
	vk.ErrorMemoryMapFailed:       {"VK_ERROR_MEMORY_MAP_FAILED", "Mapping of a memory object has failed"},
	vk.ErrorLayerNotPresent:       {"VK_ERROR_LAYER_NOT_PRESENT", "A requested layer is not present or could not be loaded"},
	vk.ErrorExtensionNotPresent:   {"VK_ERROR_EXTENSION_NOT_PRESENT", "A requested extension is not supported"},
	vk.ErrorFeatureNotPresent:     {"VK_ERROR_FEATURE_NOT_PRESENT", "A requested feature is not supported"},
	vk.ErrorIncompatibleDriver:    {"VK_ERROR_INCOMPATIBLE_DRIVER", "The requested version of Vulkan is not supported by the driver"},
	vk.ErrorTooManyObjects:        {"VK_ERROR_TOO_MANY_OBJECTS", "Too many objects of the type have already been created"},
	vk.ErrorFormatNotSupported:    {"VK_ERROR_FORMAT_NOT_SUPPORTED", "A requested format is not supported on this device"},
	vk.ErrorFragmentedPool:        {"VK_ERROR_FRAGMENTED_POOL", "A pool allocation has failed due to fragmentation of the pool's memory"},
	vk.ErrorSurfaceLost:           {"VK_ERROR_SURFACE_LOST_KHR", "A surface is no longer available"},
	vk.ErrorNativeWindowInUse:     {"VK_ERROR_NATIVE_WINDOW_IN_USE_KHR", "The requested window is already in use"},
	vk.ErrorOutOfDate:             {"VK_ERROR_OUT_OF_DATE_KHR", "A surface has changed and is no longer compatible with the swapchain"},
	vk.ErrorIncompatibleDisplay:   {"VK_ERROR_INCOMPATIBLE_DISPLAY_KHR", "The display used by a swapchain is incompatible"},
	vk.ErrorOutOfPoolMemory:       {"VK_ERROR_OUT_OF_POOL_MEMORY", "A pool memory allocation has failed"},
	vk.ErrorInvalidExternalHandle: {"VK_ERROR_INVALID_EXTERNAL_HANDLE", "An external handle is not a valid handle of the specified type"},
	vk.ErrorFragmentation:         {"VK_ERROR_FRAGMENTATION", "A descriptor pool creation has failed due to fragmentation"},
	vk.ErrorUnknown:               {"VK_ERROR_UNKNOWN", "An unknown error has occurred"},
}

func VulkanResultString(result vk.Result, getExtended bool) string {
	names, ok := resultNames[result]
	if !ok {
		return fmt.Sprintf("VkResult(%d)", int32(result))
	}
	if getExtended {
		return names[0] + " " + names[1]
	}
	return names[0]
}

// VulkanResultIsSuccess reports whether result is one of the success codes.
func VulkanResultIsSuccess(result vk.Result) bool {
	return result >= vk.Success
}

// check turns a failed result into a fatal error naming the call.
func check(result vk.Result, call string) error {
	if VulkanResultIsSuccess(result) {
		return nil
	}
	return core.Fatalf("%s failed with %s", call, VulkanResultString(result, true))
}

const end = "\x00"

func VulkanSafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
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

// FindFirstZeroInByteArray returns the length of a NUL terminated C string.
func FindFirstZeroInByteArray(arr []byte) int {
	for i, b := range arr {
		if b == 0 {
			return i
		}
	}
	return len(arr)
}

func cString(arr []byte) string {
	return string(arr[:FindFirstZeroInByteArray(arr)])
}
