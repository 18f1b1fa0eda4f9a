package vulkan

import (
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/chewman/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if err := check(vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &pFence), "vkCreateFence"); err != nil {
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// FenceWait returns core.ErrTimeout when the fence did not signal within timeout.
func (vf *VulkanFence) FenceWait(context *VulkanContext, timeout time.Duration) error {
	if vf.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, uint64(timeout.Nanoseconds()))
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		return core.ErrTimeout
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
	}
	return check(result, "vkWaitForFences")
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if vf.IsSignaled {
		if err := check(vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}), "vkResetFences"); err != nil {
			return err
		}
		vf.IsSignaled = false
	}
	return nil
}

type VulkanSemaphore struct {
	Handle vk.Semaphore
	Name   string
}

func NewSemaphore(context *VulkanContext, name string) (*VulkanSemaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var handle vk.Semaphore
	if err := check(vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &handle), "vkCreateSemaphore "+name); err != nil {
		return nil, err
	}
	return &VulkanSemaphore{Handle: handle, Name: name}, nil
}

func (vs *VulkanSemaphore) Destroy(context *VulkanContext) {
	if vs.Handle != vk.NullSemaphore {
		vk.DestroySemaphore(context.Device.LogicalDevice, vs.Handle, context.Allocator)
		vs.Handle = vk.NullSemaphore
	}
}
