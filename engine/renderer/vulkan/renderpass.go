package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanRenderpass struct {
	Handle     vk.RenderPass
	X, Y, W, H float32
	R, G, B, A float32
	Depth      float32
	Stencil    uint32

	ColorFormat vk.Format
	DepthFormat vk.Format
	Samples     vk.SampleCountFlagBits
	// With more than one sample the color attachment is transient and
	// resolves into a third, single-sampled attachment that gets presented.
	HasResolve bool
}

type RenderpassConfig struct {
	ColorFormat vk.Format
	DepthFormat vk.Format
	Samples     vk.SampleCountFlagBits
	Width       uint32
	Height      uint32
	ClearColor  [4]float32
	Depth       float32
	Stencil     uint32
}

func (vd *VulkanDevice) CreateRenderpass(config *RenderpassConfig) (*VulkanRenderpass, error) {
	samples := config.Samples
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}
	outRenderpass := &VulkanRenderpass{
		W:           float32(config.Width),
		H:           float32(config.Height),
		R:           config.ClearColor[0],
		G:           config.ClearColor[1],
		B:           config.ClearColor[2],
		A:           config.ClearColor[3],
		Depth:       config.Depth,
		Stencil:     config.Stencil,
		ColorFormat: config.ColorFormat,
		DepthFormat: config.DepthFormat,
		Samples:     samples,
		HasResolve:  samples != vk.SampleCount1Bit,
	}

	// Main subpass
	subpass := vk.SubpassDescription{
		PipelineBindPoint: vk.PipelineBindPointGraphics,
	}

	// Color attachment
	colorAttachment := vk.AttachmentDescription{
		Format:         config.ColorFormat,
		Samples:        samples,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,  // Do not expect any particular layout before render pass starts.
		FinalLayout:    vk.ImageLayoutPresentSrc, // Transitioned to after the render pass
	}
	if outRenderpass.HasResolve {
		// The multisampled image is never presented.
		colorAttachment.StoreOp = vk.AttachmentStoreOpDontCare
		colorAttachment.FinalLayout = vk.ImageLayoutColorAttachmentOptimal
	}

	colorAttachmentReference := []vk.AttachmentReference{
		{
			Attachment: 0, // Attachment description array index
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
	}
	subpass.ColorAttachmentCount = 1
	subpass.PColorAttachments = colorAttachmentReference

	depthAttachment := vk.AttachmentDescription{
		Format:         config.DepthFormat,
		Samples:        samples,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	depthAttachmentReference := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	subpass.PDepthStencilAttachment = &depthAttachmentReference

	attachmentDescriptions := []vk.AttachmentDescription{colorAttachment, depthAttachment}

	if outRenderpass.HasResolve {
		resolveAttachment := vk.AttachmentDescription{
			Format:         config.ColorFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpDontCare,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		}
		attachmentDescriptions = append(attachmentDescriptions, resolveAttachment)
		subpass.PResolveAttachments = []vk.AttachmentReference{
			{
				Attachment: 2,
				Layout:     vk.ImageLayoutColorAttachmentOptimal,
			},
		}
	}

	// Render pass dependencies.
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	err := vd.locks.SafeCall(RenderpassManagement, func() error {
		var pRenderPass vk.RenderPass
		if res := vk.CreateRenderPass(vd.LogicalDevice, &renderpassCreateInfo, vd.Allocator, &pRenderPass); res != vk.Success {
			return newCreationError("render pass", res)
		}
		outRenderpass.Handle = pRenderPass
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outRenderpass, nil
}

func (vd *VulkanDevice) DestroyRenderpass(renderpass *VulkanRenderpass) {
	if renderpass == nil || renderpass.Handle == vk.NullRenderPass {
		return
	}
	_ = vd.locks.SafeCall(RenderpassManagement, func() error {
		vk.DestroyRenderPass(vd.LogicalDevice, renderpass.Handle, vd.Allocator)
		renderpass.Handle = vk.NullRenderPass
		return nil
	})
}

func (vd *VulkanDevice) CmdBeginRenderpass(cb *VulkanCommandBuffer, renderpass *VulkanRenderpass, framebuffer *VulkanFramebuffer) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderpass.Handle,
		Framebuffer: framebuffer.Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{
				X: int32(renderpass.X),
				Y: int32(renderpass.Y),
			},
			Extent: vk.Extent2D{
				Width:  uint32(renderpass.W),
				Height: uint32(renderpass.H),
			},
		},
	}

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor([]float32{renderpass.R, renderpass.G, renderpass.B, renderpass.A})
	clearValues[1].SetDepthStencil(renderpass.Depth, renderpass.Stencil)

	beginInfo.ClearValueCount = uint32(len(clearValues))
	beginInfo.PClearValues = clearValues

	vk.CmdBeginRenderPass(cb.Handle, &beginInfo, vk.SubpassContentsInline)
	cb.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vd *VulkanDevice) CmdEndRenderpass(cb *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(cb.Handle)
	cb.State = COMMAND_BUFFER_STATE_RECORDING
}
