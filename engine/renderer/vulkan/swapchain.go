package vulkan

import (
	"math"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/core"
	mathutils "github.com/spaghettifunk/chewman/engine/math"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	PresentMode vk.PresentMode
	Handle      vk.Swapchain
	ImageCount  uint32
	Extent      vk.Extent2D
	Images      []vk.Image
	Views       []vk.ImageView

	DepthAttachment *VulkanImage

	// framebuffers used for on-screen rendering.
	Framebuffers []*VulkanFramebuffer
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

var presentModes = map[core.PresentMode][]vk.PresentMode{
	core.PresentModeFIFO:          {vk.PresentModeFifo},
	core.PresentModeMailbox:       {vk.PresentModeMailbox, vk.PresentModeFifo},
	core.PresentModeImmediate:     {vk.PresentModeImmediate, vk.PresentModeFifo},
	core.PresentModeBestAvailable: {vk.PresentModeMailbox, vk.PresentModeImmediate, vk.PresentModeFifo},
}

// choosePresentMode returns the first preferred mode the surface supports.
// FIFO is always available.
func choosePresentMode(requested core.PresentMode, supported []vk.PresentMode) vk.PresentMode {
	for _, mode := range presentModes[requested] {
		for _, s := range supported {
			if s == mode {
				return mode
			}
		}
	}
	return vk.PresentModeFifo
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// SwapchainCreate asks for imageCount images, clamped to what the surface allows.
func SwapchainCreate(context *VulkanContext, width, height, imageCount uint32, mode core.PresentMode) (_ *VulkanSwapchain, err error) {
	support := &context.Device.SwapchainSupport
	swapchain := &VulkanSwapchain{
		ImageFormat: chooseSurfaceFormat(support.Formats),
		PresentMode: choosePresentMode(mode, support.PresentModes),
	}
	defer func() {
		if err != nil {
			swapchain.SwapchainDestroy(context)
		}
	}()

	extent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		extent = support.Capabilities.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	minExtent := support.Capabilities.MinImageExtent
	maxExtent := support.Capabilities.MaxImageExtent
	extent.Width = mathutils.Clamp(extent.Width, minExtent.Width, maxExtent.Width)
	extent.Height = mathutils.Clamp(extent.Height, minExtent.Height, maxExtent.Height)
	swapchain.Extent = extent

	if imageCount < support.Capabilities.MinImageCount {
		imageCount = support.Capabilities.MinImageCount
	}
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      swapchain.PresentMode,
		Clipped:          vk.True,
	}

	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	if err := check(vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &handle), "vkCreateSwapchainKHR"); err != nil {
		return nil, err
	}
	swapchain.Handle = handle

	if err := check(vk.GetSwapchainImages(context.Device.LogicalDevice, handle, &swapchain.ImageCount, nil), "vkGetSwapchainImagesKHR"); err != nil {
		return nil, err
	}
	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	if err := check(vk.GetSwapchainImages(context.Device.LogicalDevice, handle, &swapchain.ImageCount, swapchain.Images), "vkGetSwapchainImagesKHR"); err != nil {
		return nil, err
	}

	swapchain.Views = make([]vk.ImageView, 0, swapchain.ImageCount)
	for i := range swapchain.Images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    swapchain.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   swapchain.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		var view vk.ImageView
		if err := check(vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &view), "vkCreateImageView"); err != nil {
			return nil, err
		}
		swapchain.Views = append(swapchain.Views, view)
	}

	// Depth resources
	if !DeviceDetectDepthFormat(context.Device) {
		context.Device.DepthFormat = vk.FormatUndefined
		return nil, core.Fatalf("failed to find a supported depth format")
	}

	swapchain.DepthAttachment, err = ImageCreate(context, VulkanImageConfig{
		Width:      extent.Width,
		Height:     extent.Height,
		Format:     context.Device.DepthFormat,
		Usage:      vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		Samples:    context.Device.MSAASamples,
		Aspect:     vk.ImageAspectFlags(vk.ImageAspectDepthBit),
		CreateView: true,
	})
	if err != nil {
		return nil, err
	}

	core.LogInfo("Swapchain created: %d images, %dx%d, present mode %d.", swapchain.ImageCount, extent.Width, extent.Height, swapchain.PresentMode)
	return swapchain, nil
}

// AcquireNextImage returns core.ErrSwapchainOutOfDate when the swapchain must be recreated.
func (vs *VulkanSwapchain) AcquireNextImage(context *VulkanContext, timeout time.Duration, imageAvailableSemaphore vk.Semaphore) (uint32, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, uint64(timeout.Nanoseconds()), imageAvailableSemaphore, vk.NullFence, &imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, core.ErrSwapchainOutOfDate
	case vk.Timeout, vk.NotReady:
		return 0, core.ErrTimeout
	}
	return 0, check(result, "vkAcquireNextImageKHR")
}

// Present returns core.ErrSwapchainOutOfDate when the image was presented
// to a stale swapchain.
func (vs *VulkanSwapchain) Present(context *VulkanContext, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}

	var result vk.Result
	_ = lockPool.SafeQueueCall(uint32(context.Device.PresentQueueIndex), func() error {
		result = vk.QueuePresent(context.Device.PresentQueue, &presentInfo)
		return nil
	})
	switch result {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return core.ErrSwapchainOutOfDate
	}
	return check(result, "vkQueuePresentKHR")
}

func (vs *VulkanSwapchain) SwapchainDestroy(context *VulkanContext) {
	vs.DepthAttachment.ImageDestroy(context)
	vs.DepthAttachment = nil

	// Only destroy the views, not the images, since those are owned by the swapchain and are thus
	// destroyed when it is.
	for _, view := range vs.Views {
		vk.DestroyImageView(context.Device.LogicalDevice, view, context.Allocator)
	}
	vs.Views = nil
	vs.Images = nil

	if vs.Handle != nil {
		vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
		vs.Handle = nil
	}
}
