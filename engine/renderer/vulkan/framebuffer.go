package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []*VulkanImage
	Renderpass  *VulkanRenderpass
	Width       uint32
	Height      uint32
}

// CreateFramebuffer binds the attachment views, in renderpass attachment order.
func (vd *VulkanDevice) CreateFramebuffer(renderpass *VulkanRenderpass, width, height uint32, attachments []*VulkanImage) (*VulkanFramebuffer, error) {
	out := &VulkanFramebuffer{
		Attachments: append([]*VulkanImage(nil), attachments...),
		Renderpass:  renderpass,
		Width:       width,
		Height:      height,
	}

	views := make([]vk.ImageView, len(attachments))
	for i, a := range attachments {
		views[i] = a.View
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	err := vd.locks.SafeCall(RenderpassManagement, func() error {
		var pFramebuffer vk.Framebuffer
		if res := vk.CreateFramebuffer(vd.LogicalDevice, &framebufferCreateInfo, vd.Allocator, &pFramebuffer); res != vk.Success {
			return newCreationError("framebuffer", res)
		}
		out.Handle = pFramebuffer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (vd *VulkanDevice) DestroyFramebuffer(framebuffer *VulkanFramebuffer) {
	if framebuffer == nil {
		return
	}
	if framebuffer.Handle != vk.NullFramebuffer {
		_ = vd.locks.SafeCall(RenderpassManagement, func() error {
			vk.DestroyFramebuffer(vd.LogicalDevice, framebuffer.Handle, vd.Allocator)
			return nil
		})
	}
	framebuffer.Handle = vk.NullFramebuffer
	framebuffer.Attachments = nil
	framebuffer.Renderpass = nil
}
