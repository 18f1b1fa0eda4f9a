package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device    *VulkanDevice
	Swapchain *VulkanSwapchain

	// One render pass per pass type, built once and kept across swapchain recreation.
	RenderPasses map[metadata.CommandsType]*VulkanRenderpass
	// Offscreen attachments and framebuffers, rebuilt with the swapchain.
	PassTargets map[metadata.CommandsType]*passTarget

	// The main pass renders into this when MSAA is on and resolves into the swapchain image.
	MultisampleColor *VulkanImage

	// Single use command buffers for uploads come from this pool.
	TransferCommandPool vk.CommandPool

	RecreatingSwapchain bool
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (memoryProperties.MemoryTypes[i].PropertyFlags&propertyFlags) == propertyFlags {
			return i, nil
		}
	}
	return 0, core.Fatalf("unable to find suitable memory type for filter %#x", typeFilter)
}
