package vulkan

import (
	"math/bits"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Aspect vk.ImageAspectFlags
	Width  uint32
	Height uint32
	Layers uint32
	// Mip levels, at least one.
	MipLevels uint32
}

/** @brief Parameters of ImageCreate. */
type VulkanImageConfig struct {
	Width      uint32
	Height     uint32
	Layers     uint32
	MipLevels  uint32
	Format     vk.Format
	Usage      vk.ImageUsageFlags
	Samples    vk.SampleCountFlagBits
	Aspect     vk.ImageAspectFlags
	IsCubemap  bool
	CreateView bool
}

func ImageCreate(context *VulkanContext, config VulkanImageConfig) (_ *VulkanImage, err error) {
	if config.Layers == 0 {
		config.Layers = 1
	}
	if config.Samples == 0 {
		config.Samples = vk.SampleCount1Bit
	}
	outImage := &VulkanImage{
		Format:    config.Format,
		Aspect:    config.Aspect,
		Width:     config.Width,
		Height:    config.Height,
		Layers:    config.Layers,
		MipLevels: max(config.MipLevels, 1),
	}
	defer func() {
		if err != nil {
			outImage.ImageDestroy(context)
		}
	}()

	imageCreateInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        config.Format,
		Extent:        vk.Extent3D{Width: config.Width, Height: config.Height, Depth: 1},
		MipLevels:     outImage.MipLevels,
		ArrayLayers:   config.Layers,
		Samples:       config.Samples,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         config.Usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if config.IsCubemap {
		imageCreateInfo.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	var handle vk.Image
	if err := check(vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &handle), "vkCreateImage"); err != nil {
		return nil, err
	}
	outImage.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType, err := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}
	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if err := check(vk.AllocateMemory(context.Device.LogicalDevice, &memoryAllocateInfo, context.Allocator, &memory), "vkAllocateMemory"); err != nil {
		return nil, err
	}
	outImage.Memory = memory

	// TODO: configurable memory offset.
	if err := check(vk.BindImageMemory(context.Device.LogicalDevice, handle, memory, 0), "vkBindImageMemory"); err != nil {
		return nil, err
	}

	if config.CreateView {
		viewType := vk.ImageViewType2d
		switch {
		case config.IsCubemap:
			viewType = vk.ImageViewTypeCube
		case config.Layers > 1:
			viewType = vk.ImageViewType2dArray
		}
		if err := outImage.ImageViewCreate(context, viewType); err != nil {
			return nil, err
		}
	}
	return outImage, nil
}

func (vi *VulkanImage) ImageViewCreate(context *VulkanContext, viewType vk.ImageViewType) error {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vi.Handle,
		ViewType: viewType,
		Format:   vi.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vi.Aspect,
			LevelCount: max(vi.MipLevels, 1),
			LayerCount: vi.Layers,
		},
	}
	var view vk.ImageView
	if err := check(vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view), "vkCreateImageView"); err != nil {
		return err
	}
	vi.View = view
	return nil
}

// TransitionLayout records a layout change of every layer and level of the
// image.
func (vi *VulkanImage) TransitionLayout(commandBuffer *VulkanCommandBuffer, oldLayout, newLayout vk.ImageLayout) error {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vi.Aspect,
			LevelCount: max(vi.MipLevels, 1),
			LayerCount: vi.Layers,
		},
	}

	var sourceStage, destStage vk.PipelineStageFlags
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		sourceStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		destStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		sourceStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		destStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	default:
		return core.Fatalf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}

	vk.CmdPipelineBarrier(commandBuffer.Handle, sourceStage, destStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return nil
}

// CopyFromBuffer records a copy of tightly packed layers into the image.
func (vi *VulkanImage) CopyFromBuffer(buffer vk.Buffer, commandBuffer *VulkanCommandBuffer) {
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vi.Aspect,
			LayerCount: vi.Layers,
		},
		ImageExtent: vk.Extent3D{Width: vi.Width, Height: vi.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(commandBuffer.Handle, buffer, vi.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

// MipLevelCount is the length of the full mip chain of a width x height image.
func MipLevelCount(width, height uint32) uint32 {
	return uint32(bits.Len32(max(width, height, 1)))
}

// SupportsLinearBlit reports whether format can be downsampled with
// vkCmdBlitImage and a linear filter.
func SupportsLinearBlit(context *VulkanContext, format vk.Format) bool {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(context.Device.PhysicalDevice, format, &properties)
	properties.Deref()
	return properties.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit) != 0
}

// GenerateMipmaps fills every level below the first by blitting from the one
// above it. Every level must be in TransferDstOptimal with level 0 uploaded.
// All levels end up shader readable.
func (vi *VulkanImage) GenerateMipmaps(commandBuffer *VulkanCommandBuffer) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vi.Aspect,
			LevelCount: 1,
			LayerCount: vi.Layers,
		},
	}
	transfer := vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	fragment := vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	pipelineBarrier := func(src, dst vk.PipelineStageFlags) {
		vk.CmdPipelineBarrier(commandBuffer.Handle, src, dst, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	}

	width, height := int32(vi.Width), int32(vi.Height)
	for level := uint32(1); level < vi.MipLevels; level++ {
		barrier.SubresourceRange.BaseMipLevel = level - 1
		barrier.OldLayout = vk.ImageLayoutTransferDstOptimal
		barrier.NewLayout = vk.ImageLayoutTransferSrcOptimal
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferReadBit)
		pipelineBarrier(transfer, transfer)

		nextWidth, nextHeight := max(width/2, 1), max(height/2, 1)
		blit := vk.ImageBlit{
			SrcSubresource: vk.ImageSubresourceLayers{AspectMask: vi.Aspect, MipLevel: level - 1, LayerCount: vi.Layers},
			SrcOffsets:     [2]vk.Offset3D{{}, {X: width, Y: height, Z: 1}},
			DstSubresource: vk.ImageSubresourceLayers{AspectMask: vi.Aspect, MipLevel: level, LayerCount: vi.Layers},
			DstOffsets:     [2]vk.Offset3D{{}, {X: nextWidth, Y: nextHeight, Z: 1}},
		}
		vk.CmdBlitImage(commandBuffer.Handle, vi.Handle, vk.ImageLayoutTransferSrcOptimal, vi.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{blit}, vk.FilterLinear)

		barrier.OldLayout = vk.ImageLayoutTransferSrcOptimal
		barrier.NewLayout = vk.ImageLayoutShaderReadOnlyOptimal
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferReadBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		pipelineBarrier(transfer, fragment)
		width, height = nextWidth, nextHeight
	}

	barrier.SubresourceRange.BaseMipLevel = vi.MipLevels - 1
	barrier.OldLayout = vk.ImageLayoutTransferDstOptimal
	barrier.NewLayout = vk.ImageLayoutShaderReadOnlyOptimal
	barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
	barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
	pipelineBarrier(transfer, fragment)
}

func (vi *VulkanImage) ImageDestroy(context *VulkanContext) {
	if vi == nil {
		return
	}
	if vi.View != nil {
		vk.DestroyImageView(context.Device.LogicalDevice, vi.View, context.Allocator)
		vi.View = nil
	}
	if vi.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, vi.Memory, context.Allocator)
		vi.Memory = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(context.Device.LogicalDevice, vi.Handle, context.Allocator)
		vi.Handle = nil
	}
}

/** @brief Backend data of a metadata.Texture. */
type VulkanTexture struct {
	Image   *VulkanImage
	Sampler vk.Sampler
	// Pass textures are owned by their pass target.
	owned bool
}

var addressModes = map[metadata.TextureAddressMode]vk.SamplerAddressMode{
	metadata.AddressRepeat:            vk.SamplerAddressModeRepeat,
	metadata.AddressMirroredRepeat:    vk.SamplerAddressModeMirroredRepeat,
	metadata.AddressClampToEdge:       vk.SamplerAddressModeClampToEdge,
	metadata.AddressClampToBorder:     vk.SamplerAddressModeClampToBorder,
	metadata.AddressMirrorClampToEdge: vk.SamplerAddressModeMirrorClampToEdge,
}

var borderColors = map[metadata.TextureBorderColor]vk.BorderColor{
	metadata.BorderTransparentBlack: vk.BorderColorFloatTransparentBlack,
	metadata.BorderSolidBlack:       vk.BorderColorFloatOpaqueBlack,
	metadata.BorderSolidWhite:       vk.BorderColorFloatOpaqueWhite,
}

func SamplerCreate(context *VulkanContext, addressMode metadata.TextureAddressMode, borderColor metadata.TextureBorderColor, compare bool, mipLevels uint32) (vk.Sampler, error) {
	mode := addressModes[addressMode]
	samplerInfo := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        vk.FilterLinear,
		MinFilter:        vk.FilterLinear,
		AddressModeU:     mode,
		AddressModeV:     mode,
		AddressModeW:     mode,
		AnisotropyEnable: vk.True,
		MaxAnisotropy:    16,
		BorderColor:      borderColors[borderColor],
		CompareOp:        vk.CompareOpAlways,
		MipmapMode:       vk.SamplerMipmapModeLinear,
		MaxLod:           float32(max(mipLevels, 1)),
	}
	if compare {
		samplerInfo.CompareEnable = vk.True
		samplerInfo.CompareOp = vk.CompareOpLessOrEqual
	}
	var sampler vk.Sampler
	if err := check(vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler), "vkCreateSampler"); err != nil {
		return nil, err
	}
	return sampler, nil
}

func (vt *VulkanTexture) Destroy(context *VulkanContext) {
	if vt.Sampler != nil {
		vk.DestroySampler(context.Device.LogicalDevice, vt.Sampler, context.Allocator)
		vt.Sampler = nil
	}
	if vt.owned {
		vt.Image.ImageDestroy(context)
	}
}
