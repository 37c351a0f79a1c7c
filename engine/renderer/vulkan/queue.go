package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// AcquireNextImage asks the presentation engine for the next image, signaling
// signal when it is ready to be rendered into.
func (vd *VulkanDevice) AcquireNextImage(chain *VulkanPresentChain, timeout uint64, signal *VulkanSemaphore) (uint32, SurfaceStatus, error) {
	var imageIndex uint32
	var result vk.Result
	_ = vd.locks.SafeCall(SwapchainManagement, func() error {
		result = vk.AcquireNextImage(vd.LogicalDevice, chain.Handle, timeout, signal.Handle, vk.NullFence, &imageIndex)
		return nil
	})
	status, err := surfaceStatusFromResult("vkAcquireNextImageKHR", result)
	if err != nil {
		return 0, status, err
	}
	return imageIndex, status, nil
}

func (vd *VulkanDevice) QueueSubmit(queue *VulkanQueue, submit *SubmitInfo) error {
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{submit.CommandBuffer.Handle},
	}
	if submit.WaitSemaphore != nil {
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{submit.WaitSemaphore.Handle}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{submit.WaitStage}
	}
	if submit.SignalSemaphore != nil {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{submit.SignalSemaphore.Handle}
	}
	fence := vk.NullFence
	if submit.Fence != nil {
		fence = submit.Fence.Handle
	}

	err := vd.locks.SafeQueueCall(queue.FamilyIndex, func() error {
		if res := vk.QueueSubmit(queue.Handle, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
			return fmt.Errorf("vkQueueSubmit on %s queue failed with %s", queue.Name, VulkanResultString(res, true))
		}
		return nil
	})
	if err != nil {
		logError(err)
		return err
	}
	if submit.Fence != nil {
		submit.Fence.IsSignaled = false
	}
	submit.CommandBuffer.State = COMMAND_BUFFER_STATE_SUBMITTED
	return nil
}

// QueuePresent returns the image to the presentation engine once wait is signaled.
func (vd *VulkanDevice) QueuePresent(queue *VulkanQueue, chain *VulkanPresentChain, imageIndex uint32, wait *VulkanSemaphore) (SurfaceStatus, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.Handle},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{chain.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	var result vk.Result
	_ = vd.locks.SafeQueueCall(queue.FamilyIndex, func() error {
		result = vk.QueuePresent(queue.Handle, &presentInfo)
		return nil
	})
	return surfaceStatusFromResult("vkQueuePresentKHR", result)
}
