package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/core"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State metadata.CommandBufferState
}

func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool, isPrimary bool) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: metadata.COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	level := vk.CommandBufferLevelPrimary
	if !isPrimary {
		level = vk.CommandBufferLevelSecondary
	}

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, 1)
	if err := lockPool.SafeCall(CommandBufferManagement, func() error {
		return check(vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles), "vkAllocateCommandBuffers")
	}); err != nil {
		return nil, err
	}
	vCommandBuffer.Handle = handles[0]
	vCommandBuffer.State = metadata.COMMAND_BUFFER_STATE_READY

	return vCommandBuffer, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if v.Handle == nil {
		return
	}
	_ = lockPool.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
		return nil
	})
	v.Handle = nil
	v.State = metadata.COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if err := check(vk.BeginCommandBuffer(v.Handle, &beginInfo), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	v.State = metadata.COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := check(vk.EndCommandBuffer(v.Handle), "vkEndCommandBuffer"); err != nil {
		return err
	}
	v.State = metadata.COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = metadata.COMMAND_BUFFER_STATE_SUBMITTED
}

func (v *VulkanCommandBuffer) Reset() error {
	if err := check(vk.ResetCommandBuffer(v.Handle, 0), "vkResetCommandBuffer"); err != nil {
		return err
	}
	v.State = metadata.COMMAND_BUFFER_STATE_READY
	return nil
}

// SingleUseCommands records fn into a one time command buffer, submits it to
// the graphics queue and waits for the queue to drain.
func SingleUseCommands(context *VulkanContext, fn func(cb *VulkanCommandBuffer) error) error {
	cb, err := NewVulkanCommandBuffer(context, context.TransferCommandPool, true)
	if err != nil {
		return err
	}
	defer cb.Free(context, context.TransferCommandPool)

	if err := cb.Begin(true, false, false); err != nil {
		return err
	}
	if err := fn(cb); err != nil {
		return err
	}
	if err := cb.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}
	queue := context.Device.GraphicsQueue
	return lockPool.SafeQueueCall(uint32(context.Device.GraphicsQueueIndex), func() error {
		if err := check(vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence), "vkQueueSubmit"); err != nil {
			return err
		}
		return check(vk.QueueWaitIdle(queue), "vkQueueWaitIdle")
	})
}

// commandBufferOf unwraps the backend data of a metadata.CommandBuffer.
func commandBufferOf(cb *metadata.CommandBuffer) (*VulkanCommandBuffer, error) {
	vcb, ok := cb.InternalData.(*VulkanCommandBuffer)
	if !ok || vcb.Handle == nil {
		return nil, core.Fatalf("command buffer %d is not allocated", cb.Index)
	}
	return vcb, nil
}
