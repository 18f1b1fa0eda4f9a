package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

/**
 * @brief Holds a Vulkan pipeline and the bind point it is used with.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle    vk.Pipeline
	BindPoint vk.PipelineBindPoint
}

var blendFactors = map[metadata.BlendFactor]vk.BlendFactor{
	metadata.BlendSrcAlpha:         vk.BlendFactorSrcAlpha,
	metadata.BlendDstAlpha:         vk.BlendFactorDstAlpha,
	metadata.BlendOneMinusSrcAlpha: vk.BlendFactorOneMinusSrcAlpha,
	metadata.BlendOneMinusDstAlpha: vk.BlendFactorOneMinusDstAlpha,
	metadata.BlendOne:              vk.BlendFactorOne,
	metadata.BlendZero:             vk.BlendFactorZero,
}

func cullMode(face metadata.MaterialCullFace) vk.CullModeFlags {
	switch face {
	case metadata.CullBackFace:
		return vk.CullModeFlags(vk.CullModeBackBit)
	case metadata.CullNone:
		return vk.CullModeFlags(vk.CullModeNone)
	default:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	}
}

func vertexFormat(components uint32) vk.Format {
	switch components {
	case 1:
		return vk.FormatR32Sfloat
	case 2:
		return vk.FormatR32g32Sfloat
	case 3:
		return vk.FormatR32g32b32Sfloat
	default:
		return vk.FormatR32g32b32a32Sfloat
	}
}

// vertexInput describes the interleaved layout, or one binding per
// attribute when the layout asks for separate bindings.
func vertexInput(info metadata.VertexInfo) ([]vk.VertexInputBindingDescription, []vk.VertexInputAttributeDescription) {
	var bindings []vk.VertexInputBindingDescription
	var attributes []vk.VertexInputAttributeDescription
	offset := uint32(0)
	for _, flag := range metadata.VertexAttributeOrder {
		if !info.Has(flag) {
			continue
		}
		components := info.Components(flag)
		location := uint32(len(attributes))
		// Custom attributes take one location per vec4.
		for remaining := components; remaining > 0; {
			n := min(remaining, 4)
			attribute := vk.VertexInputAttributeDescription{
				Location: location,
				Format:   vertexFormat(n),
				Offset:   offset,
			}
			if info.SeparateBinding {
				attribute.Binding = uint32(len(bindings))
				attribute.Offset = 0
				bindings = append(bindings, vk.VertexInputBindingDescription{
					Binding:   attribute.Binding,
					Stride:    n * 4,
					InputRate: vk.VertexInputRateVertex,
				})
			}
			attributes = append(attributes, attribute)
			offset += n * 4
			remaining -= n
			location++
		}
	}
	if !info.SeparateBinding {
		bindings = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    info.Stride(),
			InputRate: vk.VertexInputRateVertex,
		}}
	}
	return bindings, attributes
}

func PipelineLayoutCreate(context *VulkanContext, setLayouts []vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	var layout vk.PipelineLayout
	if err := lockPool.SafeCall(PipelineManagement, func() error {
		return check(vk.CreatePipelineLayout(context.Device.LogicalDevice, &pipelineLayoutCreateInfo, context.Allocator, &layout), "vkCreatePipelineLayout")
	}); err != nil {
		return nil, err
	}
	return layout, nil
}

func NewGraphicsPipeline(context *VulkanContext, config *metadata.PipelineConfig, layout vk.PipelineLayout, renderpass *VulkanRenderpass, cache vk.PipelineCache) (*VulkanPipeline, error) {
	settings := config.Material
	outPipeline := &VulkanPipeline{BindPoint: vk.PipelineBindPointGraphics}

	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(config.Stages))
	for _, stage := range config.Stages {
		module, ok := stage.InternalData.(*VulkanShaderModule)
		if !ok {
			return nil, core.Fatalf("pipeline %s: shader %s has no device module", config.Name, stage.Name)
		}
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  module.Stage,
			Module: module.Handle,
			PName:  VulkanSafeString(stage.EntryPoint),
		})
	}

	// Viewport and scissor are dynamic, set when the render pass begins.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		LineWidth:   1.0,
		CullMode:    cullMode(settings.CullFace),
		FrontFace:   vk.FrontFaceCounterClockwise,
	}
	if settings.UseDepthBias {
		rasterizerCreateInfo.DepthBiasEnable = vk.True
	}

	samples := renderpass.Config.Samples
	if !settings.UseMultisampling && !renderpass.Config.Resolve {
		samples = vk.SampleCount1Bit
	}
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: samples,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.False,
		DepthWriteEnable: vk.False,
		DepthCompareOp:   vk.CompareOpLessOrEqual,
	}
	if settings.UseDepthTest {
		depthStencil.DepthTestEnable = vk.True
	}
	if settings.UseDepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	colorAttachments := make([]vk.PipelineColorBlendAttachmentState, len(renderpass.Config.ColorFormats))
	for i := range colorAttachments {
		colorAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vk.False,
			SrcColorBlendFactor: blendFactors[settings.SrcBlendFactor],
			DstColorBlendFactor: blendFactors[settings.DstBlendFactor],
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: blendFactors[settings.SrcBlendFactor],
			DstAlphaBlendFactor: blendFactors[settings.DstBlendFactor],
			AlphaBlendOp:        vk.BlendOpAdd,
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
				vk.ColorComponentBBit | vk.ColorComponentABit),
		}
		if settings.UseAlphaBlending {
			colorAttachments[i].BlendEnable = vk.True
		}
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(colorAttachments)),
		PAttachments:    colorAttachments,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	bindings, attributes := vertexInput(config.Vertex)
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              layout,
		RenderPass:          renderpass.Handle,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := lockPool.SafeCall(PipelineManagement, func() error {
		return check(vk.CreateGraphicsPipelines(context.Device.LogicalDevice, cache, 1, []vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, context.Allocator, pPipelines), "vkCreateGraphicsPipelines "+config.Name)
	}); err != nil {
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline %s created for %s.", config.Name, config.Pass)
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	if pipeline.Handle == nil {
		return
	}
	_ = lockPool.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(context.Device.LogicalDevice, pipeline.Handle, context.Allocator)
		pipeline.Handle = nil
		return nil
	})
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer) {
	vk.CmdBindPipeline(commandBuffer.Handle, pipeline.BindPoint, pipeline.Handle)
}

// PipelineCacheCreate seeds the driver cache with data from a previous run.
// The driver validates the blob header and ignores data it cannot use.
func PipelineCacheCreate(context *VulkanContext, initialData []byte) (vk.PipelineCache, error) {
	createInfo := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}
	if len(initialData) > 0 {
		createInfo.InitialDataSize = uint64(len(initialData))
		createInfo.PInitialData = unsafe.Pointer(&initialData[0])
	}
	var cache vk.PipelineCache
	if err := check(vk.CreatePipelineCache(context.Device.LogicalDevice, &createInfo, context.Allocator, &cache), "vkCreatePipelineCache"); err != nil {
		return nil, err
	}
	return cache, nil
}

func PipelineCacheData(context *VulkanContext, cache vk.PipelineCache) ([]byte, error) {
	var size uint64
	if err := check(vk.GetPipelineCacheData(context.Device.LogicalDevice, cache, &size, nil), "vkGetPipelineCacheData"); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	data := make([]byte, size)
	if err := check(vk.GetPipelineCacheData(context.Device.LogicalDevice, cache, &size, unsafe.Pointer(&data[0])), "vkGetPipelineCacheData"); err != nil {
		return nil, err
	}
	return data[:size], nil
}
