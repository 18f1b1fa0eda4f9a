package vulkan

import (
	"fmt"
	"runtime"
	"slices"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

const portabilitySubsetExtension = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32
	TransferQueueIndex int32
	ComputeQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
	// Sample count of the main pass color and depth attachments.
	MSAASamples vk.SampleCountFlagBits
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Compute              bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	ComputeFamilyIndex  int32
	TransferFamilyIndex int32
}

// Info identifies the selected GPU and driver.
func (d *VulkanDevice) Info() metadata.DeviceInfo {
	return metadata.DeviceInfo{
		Name:              cString(d.Properties.DeviceName[:]),
		VendorID:          d.Properties.VendorID,
		DeviceID:          d.Properties.DeviceID,
		DriverVersion:     d.Properties.DriverVersion,
		PipelineCacheUUID: d.Properties.PipelineCacheUUID,
	}
}

func DeviceCreate(context *VulkanContext, settings core.EngineSettings) error {
	if err := SelectPhysicalDevice(context, settings.GPUIndex); err != nil {
		return err
	}
	context.Device.MSAASamples = selectSampleCount(&context.Device.Properties, settings.MSAALevel)
	core.LogInfo("MSAA samples: %d", context.Device.MSAASamples)

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{uint32(context.Device.GraphicsQueueIndex)}
	for _, index := range []int32{context.Device.PresentQueueIndex, context.Device.TransferQueueIndex} {
		if !slices.Contains(indices, uint32(index)) {
			indices = append(indices, uint32(index))
		}
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
		GeometryShader:    context.Device.Features.GeometryShader,
		SampleRateShading: context.Device.Features.SampleRateShading,
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(context.Device.PhysicalDevice)
	if err != nil {
		return err
	}
	if slices.Contains(available, portabilitySubsetExtension) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
		extensionNames = append(extensionNames, portabilitySubsetExtension)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var logicalDevice vk.Device
	if err := check(vk.CreateDevice(context.Device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logicalDevice), "vkCreateDevice"); err != nil {
		return err
	}
	context.Device.LogicalDevice = logicalDevice
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(logicalDevice, uint32(context.Device.GraphicsQueueIndex), 0, &queue)
	context.Device.GraphicsQueue = queue
	vk.GetDeviceQueue(logicalDevice, uint32(context.Device.PresentQueueIndex), 0, &queue)
	context.Device.PresentQueue = queue
	vk.GetDeviceQueue(logicalDevice, uint32(context.Device.TransferQueueIndex), 0, &queue)
	context.Device.TransferQueue = queue
	core.LogInfo("Queues obtained.")

	// Frame command buffers are reset individually.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := check(vk.CreateCommandPool(logicalDevice, &poolCreateInfo, context.Allocator, &pool), "vkCreateCommandPool"); err != nil {
		return err
	}
	context.Device.GraphicsCommandPool = pool

	transferPoolInfo := poolCreateInfo
	transferPoolInfo.Flags = vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit)
	if err := check(vk.CreateCommandPool(logicalDevice, &transferPoolInfo, context.Allocator, &pool), "vkCreateCommandPool"); err != nil {
		return err
	}
	context.TransferCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	return nil
}

func DeviceDestroy(context *VulkanContext) {
	if context.Device == nil || context.Device.LogicalDevice == nil {
		return
	}
	context.Device.GraphicsQueue = nil
	context.Device.PresentQueue = nil
	context.Device.TransferQueue = nil

	core.LogInfo("Destroying command pools...")
	if context.TransferCommandPool != nil {
		vk.DestroyCommandPool(context.Device.LogicalDevice, context.TransferCommandPool, context.Allocator)
		context.TransferCommandPool = nil
	}
	if context.Device.GraphicsCommandPool != nil {
		vk.DestroyCommandPool(context.Device.LogicalDevice, context.Device.GraphicsCommandPool, context.Allocator)
		context.Device.GraphicsCommandPool = nil
	}

	core.LogInfo("Destroying logical device...")
	vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
	context.Device.LogicalDevice = nil

	// Physical devices are not destroyed.
	context.Device.PhysicalDevice = nil
	context.Device.SwapchainSupport = VulkanSwapchainSupportInfo{}
	context.Device.GraphicsQueueIndex = -1
	context.Device.PresentQueueIndex = -1
	context.Device.TransferQueueIndex = -1
	context.Device.ComputeQueueIndex = -1
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities), "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		return err
	}
	supportInfo.Capabilities.Deref()
	supportInfo.Capabilities.CurrentExtent.Deref()
	supportInfo.Capabilities.MinImageExtent.Deref()
	supportInfo.Capabilities.MaxImageExtent.Deref()

	if err := check(vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, nil), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return err
	}
	if supportInfo.FormatCount != 0 {
		supportInfo.Formats = make([]vk.SurfaceFormat, supportInfo.FormatCount)
		if err := check(vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, supportInfo.Formats), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
			return err
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, nil), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return err
	}
	if supportInfo.PresentModeCount != 0 {
		supportInfo.PresentModes = make([]vk.PresentMode, supportInfo.PresentModeCount)
		if err := check(vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, supportInfo.PresentModes), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
			return err
		}
	}
	return nil
}

func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit | vk.FormatFeatureSampledImageBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

// selectSampleCount picks the highest count supported by both color and
// depth attachments, capped by level when it is not core.BestIndex.
func selectSampleCount(properties *vk.PhysicalDeviceProperties, level int) vk.SampleCountFlagBits {
	properties.Limits.Deref()
	counts := properties.Limits.FramebufferColorSampleCounts & properties.Limits.FramebufferDepthSampleCounts
	for _, c := range []vk.SampleCountFlagBits{
		vk.SampleCount64Bit, vk.SampleCount32Bit, vk.SampleCount16Bit,
		vk.SampleCount8Bit, vk.SampleCount4Bit, vk.SampleCount2Bit,
	} {
		if level != core.BestIndex && int(c) > level {
			continue
		}
		if counts&vk.SampleCountFlags(c) != 0 {
			return c
		}
	}
	return vk.SampleCount1Bit
}

func deviceExtensions(device vk.PhysicalDevice) ([]string, error) {
	var count uint32
	if err := check(vk.EnumerateDeviceExtensionProperties(device, "", &count, nil), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	properties := make([]vk.ExtensionProperties, count)
	if err := check(vk.EnumerateDeviceExtensionProperties(device, "", &count, properties), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := range properties {
		properties[i].Deref()
		names = append(names, cString(properties[i].ExtensionName[:]))
	}
	return names, nil
}

// SelectPhysicalDevice picks the device at gpuIndex, or the first suitable
// one when gpuIndex is core.BestIndex. Discrete GPUs are preferred.
func SelectPhysicalDevice(context *VulkanContext, gpuIndex int) error {
	var physicalDeviceCount uint32
	if err := check(vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if physicalDeviceCount == 0 {
		return core.Fatalf("no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := check(vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if gpuIndex != core.BestIndex && gpuIndex >= len(physicalDevices) {
		return core.Fatalf("gpu index %d out of range, %d devices found", gpuIndex, len(physicalDevices))
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		SamplerAnisotropy:    true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}

	// Discrete GPUs first, unless a specific one was asked for.
	passes := []bool{true, false}
	if gpuIndex != core.BestIndex || runtime.GOOS == "darwin" {
		passes = []bool{false}
	}
	for _, discrete := range passes {
		requirements.DiscreteGPU = discrete
		for i := range physicalDevices {
			if gpuIndex != core.BestIndex && i != gpuIndex {
				continue
			}
			var properties vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(physicalDevices[i], &properties)
			properties.Deref()
			var features vk.PhysicalDeviceFeatures
			vk.GetPhysicalDeviceFeatures(physicalDevices[i], &features)
			features.Deref()
			var memory vk.PhysicalDeviceMemoryProperties
			vk.GetPhysicalDeviceMemoryProperties(physicalDevices[i], &memory)
			memory.Deref()

			queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{}
			support := VulkanSwapchainSupportInfo{}
			if !PhysicalDeviceMeetsRequirements(physicalDevices[i], context.Surface, &properties, &features, &requirements, &queueInfo, &support) {
				continue
			}

			logDevice(&properties, &memory)
			context.Device.PhysicalDevice = physicalDevices[i]
			context.Device.SwapchainSupport = support
			context.Device.GraphicsQueueIndex = queueInfo.GraphicsFamilyIndex
			context.Device.PresentQueueIndex = queueInfo.PresentFamilyIndex
			context.Device.TransferQueueIndex = queueInfo.TransferFamilyIndex
			context.Device.ComputeQueueIndex = queueInfo.ComputeFamilyIndex
			context.Device.Properties = properties
			context.Device.Features = features
			context.Device.Memory = memory
			core.LogInfo("Physical device selected.")
			return nil
		}
	}
	return core.Fatalf("no physical devices were found which meet the requirements")
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
	core.LogInfo("GPU Driver version: %s", versionString(properties.DriverVersion))
	core.LogInfo("Vulkan API version: %s", versionString(properties.ApiVersion))

	for j := uint32(0); j < memory.MemoryHeapCount; j++ {
		memory.MemoryHeaps[j].Deref()
		memorySizeGib := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
		if memory.MemoryHeaps[j].Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
}

func versionString(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", v>>22, (v>>12)&0x3ff, v&0xfff)
}

func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, features *vk.PhysicalDeviceFeatures, requirements *VulkanPhysicalDeviceRequirements, outQueueInfo *VulkanPhysicalDeviceQueueFamilyInfo, outSwapchainSupport *VulkanSwapchainSupportInfo) bool {
	outQueueInfo.GraphicsFamilyIndex = -1
	outQueueInfo.PresentFamilyIndex = -1
	outQueueInfo.ComputeFamilyIndex = -1
	outQueueInfo.TransferFamilyIndex = -1

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	minTransferScore := 255
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := queueFamilies[i].QueueFlags
		currentTransferScore := 0

		if flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			if outQueueInfo.GraphicsFamilyIndex < 0 {
				outQueueInfo.GraphicsFamilyIndex = int32(i)
			}
			currentTransferScore++
		}
		if flags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			if outQueueInfo.ComputeFamilyIndex < 0 {
				outQueueInfo.ComputeFamilyIndex = int32(i)
			}
			currentTransferScore++
		}
		// Take the lowest scoring transfer family, likely a dedicated one.
		if flags&vk.QueueFlags(vk.QueueTransferBit) != 0 && currentTransferScore <= minTransferScore {
			minTransferScore = currentTransferScore
			outQueueInfo.TransferFamilyIndex = int32(i)
		}

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return false
		}
		// Prefer presenting from the graphics family.
		if supportsPresent == vk.True && (outQueueInfo.PresentFamilyIndex < 0 || outQueueInfo.GraphicsFamilyIndex == int32(i)) {
			outQueueInfo.PresentFamilyIndex = int32(i)
		}
	}

	core.LogDebug("Graphics %d | Present %d | Compute %d | Transfer %d | %s",
		outQueueInfo.GraphicsFamilyIndex,
		outQueueInfo.PresentFamilyIndex,
		outQueueInfo.ComputeFamilyIndex,
		outQueueInfo.TransferFamilyIndex,
		cString(properties.DeviceName[:]))

	if (requirements.Graphics && outQueueInfo.GraphicsFamilyIndex < 0) ||
		(requirements.Present && outQueueInfo.PresentFamilyIndex < 0) ||
		(requirements.Compute && outQueueInfo.ComputeFamilyIndex < 0) ||
		(requirements.Transfer && outQueueInfo.TransferFamilyIndex < 0) {
		return false
	}

	if err := DeviceQuerySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		return false
	}
	if outSwapchainSupport.FormatCount < 1 || outSwapchainSupport.PresentModeCount < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return false
	}

	available, err := deviceExtensions(device)
	if err != nil {
		return false
	}
	for _, name := range requirements.DeviceExtensionNames {
		if !slices.Contains(available, name) {
			core.LogInfo("Required extension not found: '%s', skipping device.", name)
			return false
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return false
	}
	return true
}
