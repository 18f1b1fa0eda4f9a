package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

/** @brief Attachment layout of a render pass. */
type VulkanRenderpassConfig struct {
	ColorFormats []vk.Format
	/** @brief vk.FormatUndefined for passes without depth. */
	DepthFormat vk.Format
	Samples     vk.SampleCountFlagBits
	/** @brief Color attachments resolve into an extra single sampled attachment. */
	Resolve bool
	/** @brief The color and depth results are sampled by later passes. */
	Sampled bool
	/** @brief The final color attachment is presented. */
	Present    bool
	ClearColor [4]float32
}

type VulkanRenderpass struct {
	Handle vk.RenderPass
	Config VulkanRenderpassConfig
	Depth  float32
}

func (c *VulkanRenderpassConfig) attachmentCount() int {
	n := len(c.ColorFormats)
	if c.DepthFormat != vk.FormatUndefined {
		n++
	}
	if c.Resolve {
		n += len(c.ColorFormats)
	}
	return n
}

func RenderpassCreate(context *VulkanContext, config VulkanRenderpassConfig) (*VulkanRenderpass, error) {
	if config.Samples == 0 {
		config.Samples = vk.SampleCount1Bit
	}
	outRenderpass := &VulkanRenderpass{Config: config, Depth: 1.0}

	attachmentDescriptions := make([]vk.AttachmentDescription, 0, config.attachmentCount())
	colorReferences := make([]vk.AttachmentReference, 0, len(config.ColorFormats))
	resolveReferences := make([]vk.AttachmentReference, 0, len(config.ColorFormats))

	finalColorLayout := vk.ImageLayoutColorAttachmentOptimal
	switch {
	case config.Present && !config.Resolve:
		finalColorLayout = vk.ImageLayoutPresentSrc
	case config.Sampled && !config.Resolve:
		finalColorLayout = vk.ImageLayoutShaderReadOnlyOptimal
	}
	for _, format := range config.ColorFormats {
		colorReferences = append(colorReferences, vk.AttachmentReference{
			Attachment: uint32(len(attachmentDescriptions)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		storeOp := vk.AttachmentStoreOpStore
		if config.Resolve {
			storeOp = vk.AttachmentStoreOpDontCare
		}
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         format,
			Samples:        config.Samples,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        storeOp,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined, // Do not expect any particular layout before render pass starts.
			FinalLayout:    finalColorLayout,
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorReferences)),
		PColorAttachments:    colorReferences,
	}

	if config.DepthFormat != vk.FormatUndefined {
		depthReference := vk.AttachmentReference{
			Attachment: uint32(len(attachmentDescriptions)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		depthAttachment := vk.AttachmentDescription{
			Format:         config.DepthFormat,
			Samples:        config.Samples,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
		if config.Sampled {
			depthAttachment.StoreOp = vk.AttachmentStoreOpStore
			depthAttachment.FinalLayout = vk.ImageLayoutDepthStencilReadOnlyOptimal
		}
		attachmentDescriptions = append(attachmentDescriptions, depthAttachment)
		subpass.PDepthStencilAttachment = &depthReference
	}

	if config.Resolve {
		resolveLayout := vk.ImageLayoutShaderReadOnlyOptimal
		if config.Present {
			resolveLayout = vk.ImageLayoutPresentSrc
		}
		for _, format := range config.ColorFormats {
			resolveReferences = append(resolveReferences, vk.AttachmentReference{
				Attachment: uint32(len(attachmentDescriptions)),
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			})
			attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
				Format:         format,
				Samples:        vk.SampleCount1Bit,
				LoadOp:         vk.AttachmentLoadOpDontCare,
				StoreOp:        vk.AttachmentStoreOpStore,
				StencilLoadOp:  vk.AttachmentLoadOpDontCare,
				StencilStoreOp: vk.AttachmentStoreOpDontCare,
				InitialLayout:  vk.ImageLayoutUndefined,
				FinalLayout:    resolveLayout,
			})
		}
		subpass.PResolveAttachments = resolveReferences
	}

	dependencies := []vk.SubpassDependency{{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}}
	if config.Sampled {
		// Later passes read the results in their fragment shaders.
		dependencies = append(dependencies, vk.SubpassDependency{
			SrcSubpass:      0,
			DstSubpass:      vk.SubpassExternal,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageLateFragmentTestsBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessShaderReadBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		})
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var pRenderPass vk.RenderPass
	if err := check(vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &pRenderPass), "vkCreateRenderPass"); err != nil {
		return nil, err
	}
	outRenderpass.Handle = pRenderPass
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) RenderpassDestroy(context *VulkanContext) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = nil
	}
}

// RenderpassBegin also sets the viewport and scissor to the framebuffer size.
func (vr *VulkanRenderpass) RenderpassBegin(commandBuffer *VulkanCommandBuffer, framebuffer *VulkanFramebuffer) {
	extent := vk.Extent2D{Width: framebuffer.Width, Height: framebuffer.Height}
	clearValues := make([]vk.ClearValue, vr.Config.attachmentCount())
	for i := range vr.Config.ColorFormats {
		clearValues[i].SetColor(vr.Config.ClearColor[:])
	}
	if vr.Config.DepthFormat != vk.FormatUndefined {
		clearValues[len(vr.Config.ColorFormats)].SetDepthStencil(vr.Depth, 0)
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      vr.Handle,
		Framebuffer:     framebuffer.Handle,
		RenderArea:      vk.Rect2D{Extent: extent},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = metadata.COMMAND_BUFFER_STATE_IN_RENDER_PASS

	// Flipped viewport so clip space Y points up.
	viewport := vk.Viewport{
		Y:        float32(extent.Height),
		Width:    float32(extent.Width),
		Height:   -float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	vk.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{{Extent: extent}})
}

func (vr *VulkanRenderpass) RenderpassEnd(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = metadata.COMMAND_BUFFER_STATE_RECORDING
}

/** @brief How an offscreen pass target is sized and which textures it exposes. */
type passTargetDesc struct {
	Pass metadata.CommandsType
	/** @brief One sampled color attachment per entry. */
	Colors []metadata.TextureType
	/** @brief Sampled depth, or TextureImageFile when depth is only tested. */
	DepthTexture metadata.TextureType
	HasDepth     bool
	/** @brief Fixed square size. Zero follows the swapchain extent. */
	Size uint32
	/** @brief Divides the swapchain extent. */
	Divisor uint32
	Layers  uint32
}

const (
	shadowMapSize      = 2048
	pointShadowMapSize = 1024
)

// passTargetDescs lists every pass that owns a render target. Compute passes
// record without one.
func passTargetDescs(settings core.EngineSettings) []passTargetDesc {
	directLayers := uint32(1)
	if settings.UseCascadeShadowMap {
		directLayers = 5
	}
	return []passTargetDesc{
		{Pass: metadata.ShadowPassDirectLight, DepthTexture: metadata.TextureShadowMapDirect, HasDepth: true, Size: shadowMapSize, Layers: directLayers},
		{Pass: metadata.ShadowPassPointLights, DepthTexture: metadata.TextureShadowMapPoint, HasDepth: true, Size: pointShadowMapSize, Layers: 6},
		{Pass: metadata.ReflectionPass, Colors: []metadata.TextureType{metadata.TextureReflection}, HasDepth: true, Divisor: 2},
		{Pass: metadata.RefractionPass, Colors: []metadata.TextureType{metadata.TextureRefraction}, HasDepth: true, Divisor: 2},
		{Pass: metadata.ScreenQuadDepthPass, DepthTexture: metadata.TextureScreenQuadDepth, HasDepth: true},
		{Pass: metadata.ScreenQuadPass, Colors: []metadata.TextureType{metadata.TextureScreenQuad}, HasDepth: true},
		{Pass: metadata.ScreenQuadMRTPass, Colors: []metadata.TextureType{metadata.TextureLastEffect}, HasDepth: true},
		{Pass: metadata.ScreenQuadLatePass, Colors: []metadata.TextureType{metadata.TextureScreenQuadSecond}, HasDepth: true},
	}
}

func (s passTargetDesc) extent(width, height uint32) (uint32, uint32) {
	if s.Size > 0 {
		return s.Size, s.Size
	}
	if s.Divisor > 1 {
		return max(width/s.Divisor, 1), max(height/s.Divisor, 1)
	}
	return width, height
}

// passTarget holds the attachments and framebuffer of one offscreen pass.
type passTarget struct {
	desc        passTargetDesc
	colors      []*VulkanImage
	depth       *VulkanImage
	framebuffer *VulkanFramebuffer
	textures    map[metadata.TextureType]*metadata.Texture
}

const offscreenColorFormat = vk.FormatR8g8b8a8Unorm

func passRenderpassConfig(context *VulkanContext, desc passTargetDesc) VulkanRenderpassConfig {
	config := VulkanRenderpassConfig{
		Samples: vk.SampleCount1Bit,
		Sampled: true,
	}
	for range desc.Colors {
		config.ColorFormats = append(config.ColorFormats, offscreenColorFormat)
	}
	if desc.HasDepth {
		config.DepthFormat = context.Device.DepthFormat
	}
	return config
}

func passTargetCreate(context *VulkanContext, renderpass *VulkanRenderpass, desc passTargetDesc, width, height uint32) (_ *passTarget, err error) {
	w, h := desc.extent(width, height)
	target := &passTarget{desc: desc, textures: make(map[metadata.TextureType]*metadata.Texture)}
	defer func() {
		if err != nil {
			target.destroy(context)
		}
	}()

	var views []vk.ImageView
	for _, textureType := range desc.Colors {
		image, err := ImageCreate(context, VulkanImageConfig{
			Width:      w,
			Height:     h,
			Layers:     desc.Layers,
			Format:     offscreenColorFormat,
			Usage:      vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit),
			Aspect:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			CreateView: true,
		})
		if err != nil {
			return nil, err
		}
		target.colors = append(target.colors, image)
		views = append(views, image.View)
		if err := target.expose(context, textureType, image, false); err != nil {
			return nil, err
		}
	}
	if desc.HasDepth {
		usage := vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
		if desc.DepthTexture != metadata.TextureImageFile {
			usage |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
		}
		target.depth, err = ImageCreate(context, VulkanImageConfig{
			Width:      w,
			Height:     h,
			Layers:     desc.Layers,
			Format:     context.Device.DepthFormat,
			Usage:      usage,
			Aspect:     vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			CreateView: true,
		})
		if err != nil {
			return nil, err
		}
		views = append(views, target.depth.View)
		if desc.DepthTexture != metadata.TextureImageFile {
			if err := target.expose(context, desc.DepthTexture, target.depth, desc.Pass.IsShadow()); err != nil {
				return nil, err
			}
		}
	}

	target.framebuffer, err = FramebufferCreate(context, renderpass, w, h, max(desc.Layers, 1), views)
	if err != nil {
		return nil, err
	}
	return target, nil
}

func (pt *passTarget) expose(context *VulkanContext, textureType metadata.TextureType, image *VulkanImage, compare bool) error {
	sampler, err := SamplerCreate(context, metadata.AddressClampToBorder, metadata.BorderSolidWhite, compare, 1)
	if err != nil {
		return err
	}
	pt.textures[textureType] = &metadata.Texture{
		Name:         textureType.String(),
		Width:        image.Width,
		Height:       image.Height,
		MipLevels:    1,
		Type:         textureType,
		InternalData: &VulkanTexture{Image: image, Sampler: sampler},
	}
	return nil
}

func (pt *passTarget) destroy(context *VulkanContext) {
	for _, texture := range pt.textures {
		texture.InternalData.(*VulkanTexture).Destroy(context)
	}
	pt.textures = nil
	if pt.framebuffer != nil {
		pt.framebuffer.Destroy(context)
		pt.framebuffer = nil
	}
	for _, image := range pt.colors {
		image.ImageDestroy(context)
	}
	pt.colors = nil
	pt.depth.ImageDestroy(context)
	pt.depth = nil
}
