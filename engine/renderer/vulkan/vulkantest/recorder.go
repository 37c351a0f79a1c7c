package vulkantest

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
)

func (d *Device) BeginCommandBuffer(cb *vulkan.VulkanCommandBuffer, singleUse, renderpassContinue, simultaneousUse bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.objects[cb]; !ok {
		return fmt.Errorf("begin of unallocated command buffer %p", cb)
	}
	if d.pendingCBs[cb] > 0 {
		return fmt.Errorf("begin of command buffer %p while a submission is pending", cb)
	}
	if cb.State == vulkan.COMMAND_BUFFER_STATE_RECORDING || cb.State == vulkan.COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return fmt.Errorf("begin of command buffer %p that is already recording", cb)
	}
	d.recordings++
	cb.State = vulkan.COMMAND_BUFFER_STATE_RECORDING
	cb.SimultaneousUse = simultaneousUse
	return nil
}

func (d *Device) EndCommandBuffer(cb *vulkan.VulkanCommandBuffer) error {
	if cb.State != vulkan.COMMAND_BUFFER_STATE_RECORDING {
		return fmt.Errorf("end of command buffer %p in state %d", cb, cb.State)
	}
	cb.State = vulkan.COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (d *Device) ResetCommandBuffer(cb *vulkan.VulkanCommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pendingCBs[cb] > 0 {
		return fmt.Errorf("reset of command buffer %p while a submission is pending", cb)
	}
	cb.State = vulkan.COMMAND_BUFFER_STATE_READY
	return nil
}

func (d *Device) CmdBeginRenderpass(cb *vulkan.VulkanCommandBuffer, renderpass *vulkan.VulkanRenderpass, framebuffer *vulkan.VulkanFramebuffer) {
	if framebuffer.Renderpass != renderpass {
		d.addMisuse(fmt.Errorf("framebuffer %p was created for another renderpass", framebuffer))
	}
	cb.State = vulkan.COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (d *Device) CmdEndRenderpass(cb *vulkan.VulkanCommandBuffer) {
	cb.State = vulkan.COMMAND_BUFFER_STATE_RECORDING
}

func (d *Device) CmdSetViewport(cb *vulkan.VulkanCommandBuffer, viewport vk.Viewport) {}

func (d *Device) CmdSetScissor(cb *vulkan.VulkanCommandBuffer, scissor vk.Rect2D) {}

func (d *Device) CmdBindPipeline(cb *vulkan.VulkanCommandBuffer, pipeline *vulkan.VulkanPipeline) {}

func (d *Device) CmdBindVertexBuffer(cb *vulkan.VulkanCommandBuffer, buffer *vulkan.VulkanBuffer) {}

func (d *Device) CmdBindIndexBuffer(cb *vulkan.VulkanCommandBuffer, buffer *vulkan.VulkanBuffer) {}

func (d *Device) CmdBindDescriptorSet(cb *vulkan.VulkanCommandBuffer, pipeline *vulkan.VulkanPipeline, set *vulkan.VulkanDescriptorSet) {
}

func (d *Device) CmdDrawIndexed(cb *vulkan.VulkanCommandBuffer, indexCount uint32) {
	if cb.State != vulkan.COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		d.addMisuse(fmt.Errorf("draw outside a renderpass on %p", cb))
		return
	}
	d.mu.Lock()
	d.draws++
	d.mu.Unlock()
}

func (d *Device) addMisuse(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.misuse = append(d.misuse, err)
}
