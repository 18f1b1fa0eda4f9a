package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	Usage  vk.BufferUsageFlags
	// Host visible buffers are written through a mapping, the rest through staging.
	HostVisible bool
}

func usageFlags(usage metadata.BufferUsage) (vk.BufferUsageFlags, bool) {
	switch usage {
	case metadata.BufferUsageUniform:
		return vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), true
	case metadata.BufferUsageStorage:
		return vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit | vk.BufferUsageVertexBufferBit), true
	case metadata.BufferUsageVertex:
		return vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit), false
	default:
		return vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit), false
	}
}

func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, hostVisible bool) (_ *VulkanBuffer, err error) {
	outBuffer := &VulkanBuffer{Size: size, Usage: usage, HostVisible: hostVisible}
	defer func() {
		if err != nil {
			outBuffer.Destroy(context)
		}
	}()

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := check(vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle), "vkCreateBuffer"); err != nil {
		return nil, err
	}
	outBuffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	properties := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if hostVisible {
		properties = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	memoryType, err := context.FindMemoryIndex(requirements.MemoryTypeBits, properties)
	if err != nil {
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if err := check(vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory), "vkAllocateMemory"); err != nil {
		return nil, err
	}
	outBuffer.Memory = memory

	if err := check(vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0), "vkBindBufferMemory"); err != nil {
		return nil, err
	}
	return outBuffer, nil
}

// Write maps the buffer, copies data at offset and unmaps it.
func (vb *VulkanBuffer) Write(context *VulkanContext, offset uint64, data []byte) error {
	if offset+uint64(len(data)) > vb.Size {
		return core.Fatalf("buffer write of %d bytes at %d exceeds size %d", len(data), offset, vb.Size)
	}
	if !vb.HostVisible {
		return vb.upload(context, offset, data)
	}
	return lockPool.SafeCall(MemoryManagement, func() error {
		var mapped unsafe.Pointer
		if err := check(vk.MapMemory(context.Device.LogicalDevice, vb.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &mapped), "vkMapMemory"); err != nil {
			return err
		}
		vk.Memcopy(mapped, data)
		vk.UnmapMemory(context.Device.LogicalDevice, vb.Memory)
		return nil
	})
}

// upload goes through a host visible staging buffer and waits for the copy.
func (vb *VulkanBuffer) upload(context *VulkanContext, offset uint64, data []byte) error {
	staging, err := BufferCreate(context, uint64(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), true)
	if err != nil {
		return err
	}
	defer staging.Destroy(context)
	if err := staging.Write(context, 0, data); err != nil {
		return err
	}
	return SingleUseCommands(context, func(cb *VulkanCommandBuffer) error {
		region := vk.BufferCopy{DstOffset: vk.DeviceSize(offset), Size: vk.DeviceSize(len(data))}
		vk.CmdCopyBuffer(cb.Handle, staging.Handle, vb.Handle, 1, []vk.BufferCopy{region})
		return nil
	})
}

func (vb *VulkanBuffer) Destroy(context *VulkanContext) {
	if vb.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, vb.Memory, context.Allocator)
		vb.Memory = nil
	}
	if vb.Handle != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, vb.Handle, context.Allocator)
		vb.Handle = nil
	}
	vb.Size = 0
}
