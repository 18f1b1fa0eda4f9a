package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

var descriptorTypes = map[metadata.DescriptorType]vk.DescriptorType{
	metadata.DescriptorUniformBuffer:        vk.DescriptorTypeUniformBuffer,
	metadata.DescriptorCombinedImageSampler: vk.DescriptorTypeCombinedImageSampler,
	metadata.DescriptorStorageBuffer:        vk.DescriptorTypeStorageBuffer,
}

func shaderStageFlags(stage metadata.ShaderType) vk.ShaderStageFlags {
	switch stage {
	case metadata.FragmentShader:
		return vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	case metadata.GeometryShader:
		return vk.ShaderStageFlags(vk.ShaderStageGeometryBit)
	case metadata.ComputeShader:
		return vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	default:
		return vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	}
}

func DescriptorSetLayoutCreate(context *VulkanContext, bindings []metadata.DescriptorBinding) (vk.DescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  descriptorTypes[b.Type],
			DescriptorCount: b.Count,
			StageFlags:      shaderStageFlags(b.Stage),
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	var layout vk.DescriptorSetLayout
	if err := check(vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout), "vkCreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	return layout, nil
}

func DescriptorPoolCreate(context *VulkanContext, sizes metadata.DescriptorPoolSizes) (vk.DescriptorPool, error) {
	var poolSizes []vk.DescriptorPoolSize
	if sizes.UniformBuffers > 0 {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: sizes.UniformBuffers})
	}
	if sizes.ImageSamplers > 0 {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: sizes.ImageSamplers})
	}
	if sizes.StorageBuffers > 0 {
		poolSizes = append(poolSizes, vk.DescriptorPoolSize{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: sizes.StorageBuffers})
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       sizes.MaxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if err := check(vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool), "vkCreateDescriptorPool"); err != nil {
		return nil, err
	}
	return pool, nil
}

func DescriptorSetsAllocate(context *VulkanContext, pool vk.DescriptorPool, layout vk.DescriptorSetLayout, count uint32) ([]vk.DescriptorSet, error) {
	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout
	}
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	}
	sets := make([]vk.DescriptorSet, count)
	if err := lockPool.SafeCall(DescriptorManagement, func() error {
		return check(vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocateInfo, &sets[0]), "vkAllocateDescriptorSets")
	}); err != nil {
		return nil, err
	}
	return sets, nil
}

// DescriptorSetUpdate writes every binding of set in a single call.
func DescriptorSetUpdate(context *VulkanContext, set vk.DescriptorSet, writes []metadata.DescriptorWrite) error {
	descriptorWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			SType:          vk.StructureTypeWriteDescriptorSet,
			DstSet:         set,
			DstBinding:     w.Binding,
			DescriptorType: descriptorTypes[w.Type],
		}
		switch w.Type {
		case metadata.DescriptorCombinedImageSampler:
			images := make([]vk.DescriptorImageInfo, len(w.Textures))
			for i, t := range w.Textures {
				vt, ok := t.InternalData.(*VulkanTexture)
				if !ok {
					return core.Fatalf("texture %s has no device data", t.Name)
				}
				layout := vk.ImageLayoutShaderReadOnlyOptimal
				if vt.Image.Aspect&vk.ImageAspectFlags(vk.ImageAspectDepthBit) != 0 {
					layout = vk.ImageLayoutDepthStencilReadOnlyOptimal
				}
				images[i] = vk.DescriptorImageInfo{
					Sampler:     vt.Sampler,
					ImageView:   vt.Image.View,
					ImageLayout: layout,
				}
			}
			write.DescriptorCount = uint32(len(images))
			write.PImageInfo = images
		default:
			vb, ok := w.Buffer.InternalData.(*VulkanBuffer)
			if !ok {
				return core.Fatalf("binding %d: buffer has no device data", w.Binding)
			}
			write.DescriptorCount = 1
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: vb.Handle,
				Range:  vk.DeviceSize(w.Range),
			}}
		}
		descriptorWrites = append(descriptorWrites, write)
	}
	return lockPool.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(descriptorWrites)), descriptorWrites, 0, nil)
		return nil
	})
}
