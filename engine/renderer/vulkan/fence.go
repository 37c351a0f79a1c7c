package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

type VulkanSemaphore struct {
	Handle vk.Semaphore
}

func (vd *VulkanDevice) CreateFence(signaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: signaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	err := vd.locks.SafeCall(SynchronizationManagement, func() error {
		var pFence vk.Fence
		if res := vk.CreateFence(vd.LogicalDevice, &fenceCreateInfo, vd.Allocator, &pFence); res != vk.Success {
			return newCreationError("fence", res)
		}
		fence.Handle = pFence
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fence, nil
}

func (vd *VulkanDevice) DestroyFence(fence *VulkanFence) {
	if fence == nil {
		return
	}
	if fence.Handle != vk.NullFence {
		_ = vd.locks.SafeCall(SynchronizationManagement, func() error {
			vk.DestroyFence(vd.LogicalDevice, fence.Handle, vd.Allocator)
			fence.Handle = vk.NullFence
			return nil
		})
	}
	fence.IsSignaled = false
}

// WaitForFence returns immediately for a fence known to be signaled.
func (vd *VulkanDevice) WaitForFence(fence *VulkanFence, timeout uint64) (bool, error) {
	if fence.IsSignaled {
		return true, nil
	}
	result := vk.WaitForFences(vd.LogicalDevice, 1, []vk.Fence{fence.Handle}, vk.True, timeout)
	switch result {
	case vk.Success:
		fence.IsSignaled = true
		return true, nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return false, nil
	default:
		err := fmt.Errorf("vk_fence_wait - %s", VulkanResultString(result, true))
		logError(err)
		return false, err
	}
}

func (vd *VulkanDevice) ResetFence(fence *VulkanFence) error {
	if !fence.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(vd.LogicalDevice, 1, []vk.Fence{fence.Handle}); res != vk.Success {
		err := fmt.Errorf("failed to reset fence: %s", VulkanResultString(res, true))
		logError(err)
		return err
	}
	fence.IsSignaled = false
	return nil
}

func (vd *VulkanDevice) CreateSemaphore() (*VulkanSemaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	out := &VulkanSemaphore{}
	err := vd.locks.SafeCall(SynchronizationManagement, func() error {
		var semaphore vk.Semaphore
		if res := vk.CreateSemaphore(vd.LogicalDevice, &semaphoreCreateInfo, vd.Allocator, &semaphore); res != vk.Success {
			return newCreationError("semaphore", res)
		}
		out.Handle = semaphore
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (vd *VulkanDevice) DestroySemaphore(semaphore *VulkanSemaphore) {
	if semaphore == nil || semaphore.Handle == vk.NullSemaphore {
		return
	}
	_ = vd.locks.SafeCall(SynchronizationManagement, func() error {
		vk.DestroySemaphore(vd.LogicalDevice, semaphore.Handle, vd.Allocator)
		semaphore.Handle = vk.NullSemaphore
		return nil
	})
}
