package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/assets/loaders"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

type VulkanShaderModule struct {
	Handle vk.ShaderModule
	Stage  vk.ShaderStageFlagBits
}

// NewShaderModule builds a module from little endian SPIR-V words.
func NewShaderModule(context *VulkanContext, name string, stage metadata.ShaderType, code []byte) (*VulkanShaderModule, error) {
	if _, err := loaders.LoadSPIRV(name, code); err != nil {
		return nil, core.AsFatal(err)
	}
	words := loaders.Bytecode(code)

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}
	var handle vk.ShaderModule
	if err := check(vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle), "vkCreateShaderModule "+name); err != nil {
		return nil, err
	}
	return &VulkanShaderModule{Handle: handle, Stage: vk.ShaderStageFlagBits(shaderStageFlags(stage))}, nil
}

func (sm *VulkanShaderModule) Destroy(context *VulkanContext) {
	if sm.Handle != nil {
		vk.DestroyShaderModule(context.Device.LogicalDevice, sm.Handle, context.Allocator)
		sm.Handle = nil
	}
}
