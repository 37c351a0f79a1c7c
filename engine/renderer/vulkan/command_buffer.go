package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State VulkanCommandBufferState
	// Set when recorded with the simultaneous-use flag, so it may be
	// resubmitted while a previous submission is still pending.
	SimultaneousUse bool
}

type VulkanCommandPool struct {
	Handle           vk.CommandPool
	QueueFamilyIndex uint32
}

func (vd *VulkanDevice) CreateCommandPool(queueFamilyIndex uint32) (*VulkanCommandPool, error) {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamilyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	out := &VulkanCommandPool{QueueFamilyIndex: queueFamilyIndex}
	err := vd.locks.SafeCall(CommandPoolManagement, func() error {
		var pool vk.CommandPool
		if res := vk.CreateCommandPool(vd.LogicalDevice, &poolCreateInfo, vd.Allocator, &pool); res != vk.Success {
			return newCreationError("command pool", res)
		}
		out.Handle = pool
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (vd *VulkanDevice) DestroyCommandPool(pool *VulkanCommandPool) {
	if pool == nil || pool.Handle == vk.NullCommandPool {
		return
	}
	_ = vd.locks.SafeCall(CommandPoolManagement, func() error {
		vk.DestroyCommandPool(vd.LogicalDevice, pool.Handle, vd.Allocator)
		pool.Handle = vk.NullCommandPool
		return nil
	})
}

// AllocateCommandBuffers allocates count primary command buffers from pool.
func (vd *VulkanDevice) AllocateCommandBuffers(pool *VulkanCommandPool, count uint32) ([]*VulkanCommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool.Handle,
		CommandBufferCount: count,
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, count)
	err := vd.locks.SafeCall(CommandBufferManagement, func() error {
		if res := vk.AllocateCommandBuffers(vd.LogicalDevice, &allocateInfo, handles); res != vk.Success {
			return newCreationError("command buffers", res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]*VulkanCommandBuffer, count)
	for i := range handles {
		out[i] = &VulkanCommandBuffer{
			Handle: handles[i],
			State:  COMMAND_BUFFER_STATE_READY,
		}
	}
	return out, nil
}

func (vd *VulkanDevice) FreeCommandBuffers(pool *VulkanCommandPool, buffers []*VulkanCommandBuffer) {
	handles := make([]vk.CommandBuffer, 0, len(buffers))
	for _, cb := range buffers {
		if cb == nil || cb.Handle == nil {
			continue
		}
		handles = append(handles, cb.Handle)
		cb.Handle = nil
		cb.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
	}
	if len(handles) == 0 {
		return
	}
	_ = vd.locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(vd.LogicalDevice, pool.Handle, uint32(len(handles)), handles)
		return nil
	})
}

func (vd *VulkanDevice) BeginCommandBuffer(cb *VulkanCommandBuffer, singleUse, renderpassContinue, simultaneousUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: 0,
	}
	if singleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if renderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if simultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if res := vk.BeginCommandBuffer(cb.Handle, &beginInfo); res != vk.Success {
		err := fmt.Errorf("failed to begin command buffer: %s", VulkanResultString(res, true))
		logError(err)
		return err
	}
	cb.State = COMMAND_BUFFER_STATE_RECORDING
	cb.SimultaneousUse = simultaneousUse
	return nil
}

func (vd *VulkanDevice) EndCommandBuffer(cb *VulkanCommandBuffer) error {
	if res := vk.EndCommandBuffer(cb.Handle); res != vk.Success {
		err := fmt.Errorf("failed to end command buffer: %s", VulkanResultString(res, true))
		logError(err)
		return err
	}
	cb.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (vd *VulkanDevice) ResetCommandBuffer(cb *VulkanCommandBuffer) error {
	if res := vk.ResetCommandBuffer(cb.Handle, 0); res != vk.Success {
		err := fmt.Errorf("failed to reset command buffer: %s", VulkanResultString(res, true))
		logError(err)
		return err
	}
	cb.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (vd *VulkanDevice) CmdSetViewport(cb *VulkanCommandBuffer, viewport vk.Viewport) {
	vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{viewport})
}

func (vd *VulkanDevice) CmdSetScissor(cb *VulkanCommandBuffer, scissor vk.Rect2D) {
	vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{scissor})
}

func (vd *VulkanDevice) CmdBindVertexBuffer(cb *VulkanCommandBuffer, buffer *VulkanBuffer) {
	vk.CmdBindVertexBuffers(cb.Handle, 0, 1, []vk.Buffer{buffer.Handle}, []vk.DeviceSize{0})
}

func (vd *VulkanDevice) CmdBindIndexBuffer(cb *VulkanCommandBuffer, buffer *VulkanBuffer) {
	vk.CmdBindIndexBuffer(cb.Handle, buffer.Handle, 0, vk.IndexTypeUint32)
}

func (vd *VulkanDevice) CmdDrawIndexed(cb *VulkanCommandBuffer, indexCount uint32) {
	vk.CmdDrawIndexed(cb.Handle, indexCount, 1, 0, 0, 0)
}

// singleUseCommands records fn into a one-time command buffer from the upload
// pool, submits it to the graphics queue and waits for the queue to go idle.
func (vd *VulkanDevice) singleUseCommands(fn func(cb *VulkanCommandBuffer) error) error {
	buffers, err := vd.AllocateCommandBuffers(vd.uploadPool, 1)
	if err != nil {
		return err
	}
	cb := buffers[0]
	defer vd.FreeCommandBuffers(vd.uploadPool, buffers)

	if err := vd.BeginCommandBuffer(cb, true, false, false); err != nil {
		return err
	}
	if err := fn(cb); err != nil {
		return err
	}
	if err := vd.EndCommandBuffer(cb); err != nil {
		return err
	}

	queue := vd.graphicsQueue
	return vd.locks.SafeQueueCall(queue.FamilyIndex, func() error {
		submitInfo := vk.SubmitInfo{
			SType:              vk.StructureTypeSubmitInfo,
			CommandBufferCount: 1,
			PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
		}
		if res := vk.QueueSubmit(queue.Handle, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence); res != vk.Success {
			err := fmt.Errorf("failed submit info to queue: %s", VulkanResultString(res, true))
			logError(err)
			return err
		}
		cb.State = COMMAND_BUFFER_STATE_SUBMITTED

		// Wait for it to finish
		if res := vk.QueueWaitIdle(queue.Handle); res != vk.Success {
			err := fmt.Errorf("queue failed to wait in idle mode: %s", VulkanResultString(res, true))
			logError(err)
			return err
		}
		return nil
	})
}
