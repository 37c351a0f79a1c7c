package vulkan

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/core"
)

type SwapchainState int

const (
	SwapchainBuilding SwapchainState = iota
	SwapchainReady
	SwapchainStale
	SwapchainDestroyed
)

func (s SwapchainState) String() string {
	switch s {
	case SwapchainBuilding:
		return "building"
	case SwapchainReady:
		return "ready"
	case SwapchainStale:
		return "stale"
	case SwapchainDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// RecordMode selects when the per-image command buffers are recorded.
type RecordMode int

const (
	// Recorded once at build time and resubmitted every frame.
	RecordStatic RecordMode = iota
	// Reset and re-recorded for the acquired image before each submission.
	RecordDynamic
)

func ParseRecordMode(s string) (RecordMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "static":
		return RecordStatic, nil
	case "dynamic":
		return RecordDynamic, nil
	}
	return RecordStatic, fmt.Errorf("unknown record mode %q", s)
}

func (m RecordMode) String() string {
	if m == RecordDynamic {
		return "dynamic"
	}
	return "static"
}

func (m *RecordMode) UnmarshalText(text []byte) error {
	mode, err := ParseRecordMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

type SwapchainConfig struct {
	// Drawable size of the surface, in pixels.
	Width, Height     uint32
	MaxFramesInFlight uint32
	// Requested MSAA sample count, lowered to what the device supports.
	Samples    uint32
	VSync      bool
	RecordMode RecordMode
	// Nanoseconds; zero waits forever.
	FenceTimeout uint64
	ClearColor   [4]float32

	VertexShader   []byte
	FragmentShader []byte

	Scene    *core.Registry[*Drawable]
	Uniforms UniformSource
}

// VulkanSwapchain is the frame resource set: the present chain and everything
// sized or counted by it. It is built as a whole and rebuilt as a whole.
type VulkanSwapchain struct {
	device Device
	config SwapchainConfig

	chain *VulkanPresentChain

	// Multisampled color target, nil when rendering with a single sample.
	ColorAttachment *VulkanImage
	DepthAttachment *VulkanImage
	DepthFormat     vk.Format
	Samples         vk.SampleCountFlagBits

	Renderpass          *VulkanRenderpass
	DescriptorSetLayout *VulkanDescriptorSetLayout
	Pipeline            *VulkanPipeline

	// One per presentable image.
	Framebuffers   []*VulkanFramebuffer
	UniformBuffers []*VulkanBuffer
	CommandBuffers []*VulkanCommandBuffer

	DescriptorPool *VulkanDescriptorPool
	// Indexed by image, then by drawable.
	DescriptorSets [][]*VulkanDescriptorSet
	drawables      []*Drawable

	CommandPool *VulkanCommandPool

	sync *SyncPool
	// Fence of the slot that last submitted work for each image.
	imagesInFlight []*VulkanFence

	CurrentFrame uint32
	state        SwapchainState
}

// SwapchainCreate builds a complete frame resource set for the current
// surface. On failure everything created so far is released.
func SwapchainCreate(device Device, config *SwapchainConfig) (*VulkanSwapchain, error) {
	cfg := *config
	if cfg.MaxFramesInFlight == 0 {
		cfg.MaxFramesInFlight = DefaultMaxFramesInFlight
	}
	if cfg.Samples == 0 {
		cfg.Samples = 1
	}
	if cfg.FenceTimeout == 0 {
		cfg.FenceTimeout = WaitForever
	}

	vs := &VulkanSwapchain{
		device: device,
		config: cfg,
		state:  SwapchainBuilding,
	}
	if err := vs.build(); err != nil {
		vs.release()
		vs.state = SwapchainDestroyed
		return nil, err
	}
	vs.state = SwapchainReady

	core.LogInfo("Frame resources ready: %dx%d, %d images, %d frames in flight, %d samples, %s recording",
		vs.chain.Extent.Width, vs.chain.Extent.Height, len(vs.chain.Images), vs.sync.Len(), vs.Samples, vs.config.RecordMode)
	return vs, nil
}

func (vs *VulkanSwapchain) build() error {
	if vs.config.Width == 0 || vs.config.Height == 0 {
		return &SurfaceOutOfDateError{Op: "swapchain create"}
	}
	steps := []func() error{
		vs.createPresentChain,
		vs.createAttachments,
		vs.createRenderpass,
		vs.createPipeline,
		vs.createFramebuffers,
		vs.createUniformBuffers,
		vs.createDescriptorSets,
		vs.createCommandBuffers,
		vs.createSyncObjects,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (vs *VulkanSwapchain) createPresentChain() error {
	support, err := vs.device.QuerySwapchainSupport()
	if err != nil {
		return err
	}
	format, err := ChooseSurfaceFormat(support.Formats)
	if err != nil {
		return err
	}
	extent := ChooseExtent(support.Capabilities, vs.config.Width, vs.config.Height)
	if extent.Width == 0 || extent.Height == 0 {
		return &SurfaceOutOfDateError{Op: "swapchain create"}
	}

	chain, err := vs.device.CreatePresentChain(&PresentChainConfig{
		Format:       format,
		PresentMode:  ChoosePresentMode(support.PresentModes, vs.config.VSync),
		Extent:       extent,
		ImageCount:   ChooseImageCount(support.Capabilities),
		PreTransform: support.Capabilities.CurrentTransform,
	})
	if err != nil {
		return err
	}
	vs.chain = chain
	vs.imagesInFlight = make([]*VulkanFence, len(chain.Images))
	return nil
}

func (vs *VulkanSwapchain) createAttachments() error {
	extent := vs.chain.Extent
	vs.Samples = ChooseSampleCount(vs.device.MaxUsableSampleCount(), vs.config.Samples)

	if vs.Samples != vk.SampleCount1Bit {
		color, err := vs.device.CreateImage(&ImageConfig{
			Width:       extent.Width,
			Height:      extent.Height,
			Format:      vs.chain.Format.Format,
			Tiling:      vk.ImageTilingOptimal,
			Usage:       vk.ImageUsageFlags(vk.ImageUsageTransientAttachmentBit | vk.ImageUsageColorAttachmentBit),
			MemoryFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
			Samples:     vs.Samples,
			ViewAspect:  vk.ImageAspectFlags(vk.ImageAspectColorBit),
		})
		if err != nil {
			return err
		}
		vs.ColorAttachment = color
	}

	depthFormat, err := DetectDepthFormat(vs.device)
	if err != nil {
		return err
	}
	vs.DepthFormat = depthFormat

	depth, err := vs.device.CreateImage(&ImageConfig{
		Width:       extent.Width,
		Height:      extent.Height,
		Format:      depthFormat,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		MemoryFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		Samples:     vs.Samples,
		ViewAspect:  formatAspect(depthFormat),
	})
	if err != nil {
		return err
	}
	vs.DepthAttachment = depth
	return nil
}

func (vs *VulkanSwapchain) createRenderpass() error {
	rp, err := vs.device.CreateRenderpass(&RenderpassConfig{
		ColorFormat: vs.chain.Format.Format,
		DepthFormat: vs.DepthFormat,
		Samples:     vs.Samples,
		Width:       vs.chain.Extent.Width,
		Height:      vs.chain.Extent.Height,
		ClearColor:  vs.config.ClearColor,
		Depth:       1.0,
		Stencil:     0,
	})
	if err != nil {
		return err
	}
	vs.Renderpass = rp
	return nil
}

func (vs *VulkanSwapchain) createPipeline() error {
	layout, err := vs.device.CreateDescriptorSetLayout(DefaultDescriptorBindings())
	if err != nil {
		return err
	}
	vs.DescriptorSetLayout = layout

	vert, err := vs.device.CreateShaderModule(vk.ShaderStageVertexBit, vs.config.VertexShader)
	if err != nil {
		return err
	}
	// Modules are only needed until the pipeline exists.
	defer vs.device.DestroyShaderModule(vert)

	frag, err := vs.device.CreateShaderModule(vk.ShaderStageFragmentBit, vs.config.FragmentShader)
	if err != nil {
		return err
	}
	defer vs.device.DestroyShaderModule(frag)

	extent := vs.chain.Extent
	pipeline, err := vs.device.CreateGraphicsPipeline(&VulkanPipelineConfig{
		Renderpass:           vs.Renderpass,
		Stride:               VertexStride,
		Attributes:           VertexAttributes(),
		DescriptorSetLayouts: []*VulkanDescriptorSetLayout{layout},
		Stages:               []*VulkanShaderStage{vert, frag},
		Viewport:             vs.viewport(),
		Scissor:              vk.Rect2D{Extent: extent},
		CullMode:             FaceCullModeBack,
		DepthTest:            true,
		DepthWrite:           true,
		Samples:              vs.Samples,
	})
	if err != nil {
		return err
	}
	vs.Pipeline = pipeline
	return nil
}

// Framebuffer attachments follow the renderpass: color, depth and, with
// multisampling, the presentable image as the resolve target.
func (vs *VulkanSwapchain) createFramebuffers() error {
	extent := vs.chain.Extent
	vs.Framebuffers = make([]*VulkanFramebuffer, 0, len(vs.chain.Images))
	for _, image := range vs.chain.Images {
		attachments := []*VulkanImage{image, vs.DepthAttachment}
		if vs.ColorAttachment != nil {
			attachments = []*VulkanImage{vs.ColorAttachment, vs.DepthAttachment, image}
		}
		fb, err := vs.device.CreateFramebuffer(vs.Renderpass, extent.Width, extent.Height, attachments)
		if err != nil {
			return err
		}
		vs.Framebuffers = append(vs.Framebuffers, fb)
	}
	return nil
}

func (vs *VulkanSwapchain) createUniformBuffers() error {
	vs.UniformBuffers = make([]*VulkanBuffer, 0, len(vs.chain.Images))
	for range vs.chain.Images {
		buf, err := vs.device.CreateBuffer(
			UniformBufferObjectSize,
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		)
		if err != nil {
			return err
		}
		vs.UniformBuffers = append(vs.UniformBuffers, buf)
	}
	return nil
}

func (vs *VulkanSwapchain) createDescriptorSets() error {
	if vs.config.Scene != nil {
		vs.drawables = vs.config.Scene.Snapshot()
	}
	imageCount := uint32(len(vs.chain.Images))
	vs.DescriptorSets = make([][]*VulkanDescriptorSet, imageCount)
	if len(vs.drawables) == 0 {
		return nil
	}

	maxSets := imageCount * uint32(len(vs.drawables))
	pool, err := vs.device.CreateDescriptorPool(maxSets, []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeUniformBuffer, DescriptorCount: maxSets},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: maxSets},
	})
	if err != nil {
		return err
	}
	vs.DescriptorPool = pool

	for i := uint32(0); i < imageCount; i++ {
		sets, err := vs.device.AllocateDescriptorSets(pool, vs.DescriptorSetLayout, uint32(len(vs.drawables)))
		if err != nil {
			return err
		}
		for j, d := range vs.drawables {
			vs.device.UpdateDescriptorSet(sets[j], vs.UniformBuffers[i], d.Texture, d.Sampler)
		}
		vs.DescriptorSets[i] = sets
	}
	return nil
}

func (vs *VulkanSwapchain) createCommandBuffers() error {
	pool, err := vs.device.CreateCommandPool(vs.device.GraphicsQueue().FamilyIndex)
	if err != nil {
		return err
	}
	vs.CommandPool = pool

	buffers, err := vs.device.AllocateCommandBuffers(pool, uint32(len(vs.chain.Images)))
	if err != nil {
		return err
	}
	vs.CommandBuffers = buffers

	if vs.config.RecordMode == RecordStatic {
		for i := range vs.CommandBuffers {
			if err := vs.recordCommandBuffer(uint32(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (vs *VulkanSwapchain) createSyncObjects() error {
	pool, err := NewSyncPool(vs.device, vs.config.MaxFramesInFlight, vs.config.FenceTimeout)
	if err != nil {
		return err
	}
	vs.sync = pool
	return nil
}

func (vs *VulkanSwapchain) viewport() vk.Viewport {
	extent := vs.chain.Extent
	return vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
}

// recordCommandBuffer records the whole frame for one presentable image.
func (vs *VulkanSwapchain) recordCommandBuffer(imageIndex uint32) error {
	cb := vs.CommandBuffers[imageIndex]
	// Statically recorded buffers are resubmitted while a previous submission
	// of the same buffer may still be pending.
	simultaneous := vs.config.RecordMode == RecordStatic
	if err := vs.device.BeginCommandBuffer(cb, false, false, simultaneous); err != nil {
		return err
	}

	vs.device.CmdBeginRenderpass(cb, vs.Renderpass, vs.Framebuffers[imageIndex])
	vs.device.CmdSetViewport(cb, vs.viewport())
	vs.device.CmdSetScissor(cb, vk.Rect2D{Extent: vs.chain.Extent})
	vs.device.CmdBindPipeline(cb, vs.Pipeline)
	for j, d := range vs.drawables {
		vs.device.CmdBindVertexBuffer(cb, d.VertexBuffer)
		vs.device.CmdBindIndexBuffer(cb, d.IndexBuffer)
		vs.device.CmdBindDescriptorSet(cb, vs.Pipeline, vs.DescriptorSets[imageIndex][j])
		vs.device.CmdDrawIndexed(cb, d.IndexCount)
	}
	vs.device.CmdEndRenderpass(cb)

	return vs.device.EndCommandBuffer(cb)
}

// SubmitFrame renders and presents one frame. It returns false without an
// error when the surface went stale; the set must then be rebuilt before the
// next frame.
func (vs *VulkanSwapchain) SubmitFrame(graphicsQueue, presentQueue *VulkanQueue) (bool, error) {
	switch vs.state {
	case SwapchainDestroyed:
		return false, ErrSwapchainDestroyed
	case SwapchainStale:
		return false, nil
	}

	slot := vs.CurrentFrame
	pair := vs.sync.Pair(slot)

	// Wait for the GPU to finish the previous use of this slot.
	if err := vs.sync.Wait(vs.device, slot); err != nil {
		return false, err
	}

	imageIndex, status, err := vs.device.AcquireNextImage(vs.chain, vs.config.FenceTimeout, pair.ImageAvailable)
	if err != nil {
		return false, err
	}
	if status == SurfaceOutOfDate {
		core.LogDebug("Acquire reported %s, frame resources are stale", status)
		vs.state = SwapchainStale
		return false, nil
	}
	suboptimal := status == SurfaceSuboptimal

	// The image may still be in use by a frame submitted from another slot.
	if inFlight := vs.imagesInFlight[imageIndex]; inFlight != nil && inFlight != pair.InFlight {
		ok, err := vs.device.WaitForFence(inFlight, vs.config.FenceTimeout)
		if err != nil {
			return false, vs.abandon(err)
		}
		if !ok {
			err := &SynchronizationTimeoutError{Slot: slot, Timeout: vs.config.FenceTimeout}
			logError(err)
			return false, vs.abandon(err)
		}
	}

	cb := vs.CommandBuffers[imageIndex]
	if vs.config.RecordMode == RecordDynamic {
		if err := vs.device.ResetCommandBuffer(cb); err != nil {
			return false, vs.abandon(err)
		}
		if err := vs.recordCommandBuffer(imageIndex); err != nil {
			return false, vs.abandon(err)
		}
	}

	if vs.config.Uniforms != nil {
		ubo := vs.config.Uniforms.Uniforms(vs.chain.Extent)
		if err := vs.device.LoadBuffer(vs.UniformBuffers[imageIndex], 0, ubo.Bytes()); err != nil {
			return false, vs.abandon(err)
		}
	}

	// Reset only right before the submission that signals the fence again, so
	// every earlier exit leaves it signaled.
	if err := vs.sync.Reset(vs.device, slot); err != nil {
		return false, vs.abandon(err)
	}
	vs.imagesInFlight[imageIndex] = pair.InFlight

	err = vs.device.QueueSubmit(graphicsQueue, &SubmitInfo{
		CommandBuffer:   cb,
		WaitSemaphore:   pair.ImageAvailable,
		WaitStage:       vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SignalSemaphore: pair.RenderFinished,
		Fence:           pair.InFlight,
	})
	if err != nil {
		return false, vs.abandon(err)
	}

	presentStatus, err := vs.device.QueuePresent(presentQueue, vs.chain, imageIndex, pair.RenderFinished)
	// The slot's fence now guards submitted work, so move on regardless.
	vs.CurrentFrame = (slot + 1) % vs.sync.Len()
	if err != nil {
		return false, err
	}
	if presentStatus.Stale() || suboptimal {
		core.LogDebug("Present reported %s (acquire %s), frame resources are stale", presentStatus, status)
		vs.state = SwapchainStale
		return false, nil
	}
	return true, nil
}

// abandon marks the set stale after a failure between acquire and submit.
// The slot's image-available semaphore is left signaled with no waiter, so
// the set cannot be used again and must be rebuilt.
func (vs *VulkanSwapchain) abandon(err error) error {
	vs.state = SwapchainStale
	return err
}

// Destroy waits for the device to go idle and releases every resource in
// reverse creation order. Calling it again is a no-op.
func (vs *VulkanSwapchain) Destroy() {
	if vs.state == SwapchainDestroyed {
		return
	}
	if err := vs.device.WaitIdle(); err != nil {
		core.LogWarn("device idle wait before teardown failed: %s", err)
	}
	vs.release()
	vs.state = SwapchainDestroyed
}

func (vs *VulkanSwapchain) release() {
	d := vs.device
	if vs.sync != nil {
		vs.sync.Destroy(d)
		vs.sync = nil
	}
	if vs.CommandPool != nil {
		d.FreeCommandBuffers(vs.CommandPool, vs.CommandBuffers)
		d.DestroyCommandPool(vs.CommandPool)
		vs.CommandPool = nil
	}
	vs.CommandBuffers = nil
	if vs.DescriptorPool != nil {
		d.DestroyDescriptorPool(vs.DescriptorPool)
		vs.DescriptorPool = nil
	}
	vs.DescriptorSets = nil
	vs.drawables = nil
	for _, buf := range vs.UniformBuffers {
		d.DestroyBuffer(buf)
	}
	vs.UniformBuffers = nil
	for _, fb := range vs.Framebuffers {
		d.DestroyFramebuffer(fb)
	}
	vs.Framebuffers = nil
	if vs.Pipeline != nil {
		d.DestroyPipeline(vs.Pipeline)
		vs.Pipeline = nil
	}
	if vs.DescriptorSetLayout != nil {
		d.DestroyDescriptorSetLayout(vs.DescriptorSetLayout)
		vs.DescriptorSetLayout = nil
	}
	if vs.Renderpass != nil {
		d.DestroyRenderpass(vs.Renderpass)
		vs.Renderpass = nil
	}
	if vs.DepthAttachment != nil {
		d.DestroyImage(vs.DepthAttachment)
		vs.DepthAttachment = nil
	}
	if vs.ColorAttachment != nil {
		d.DestroyImage(vs.ColorAttachment)
		vs.ColorAttachment = nil
	}
	if vs.chain != nil {
		d.DestroyPresentChain(vs.chain)
		vs.chain = nil
	}
	vs.imagesInFlight = nil
}

// Invalidate marks a ready set stale so the owner rebuilds it.
func (vs *VulkanSwapchain) Invalidate() {
	if vs.state == SwapchainReady {
		vs.state = SwapchainStale
	}
}

func (vs *VulkanSwapchain) State() SwapchainState {
	return vs.state
}

func (vs *VulkanSwapchain) Extent() vk.Extent2D {
	if vs.chain == nil {
		return vk.Extent2D{}
	}
	return vs.chain.Extent
}

func (vs *VulkanSwapchain) ImageCount() uint32 {
	if vs.chain == nil {
		return 0
	}
	return uint32(len(vs.chain.Images))
}

func (vs *VulkanSwapchain) ImageFormat() vk.SurfaceFormat {
	if vs.chain == nil {
		return vk.SurfaceFormat{}
	}
	return vs.chain.Format
}

func (vs *VulkanSwapchain) PresentMode() vk.PresentMode {
	if vs.chain == nil {
		return vk.PresentModeFifo
	}
	return vs.chain.PresentMode
}

// SyncPair returns the synchronization objects of a frame slot.
func (vs *VulkanSwapchain) SyncPair(slot uint32) SyncPair {
	return vs.sync.Pair(slot)
}

func (vs *VulkanSwapchain) MaxFramesInFlight() uint32 {
	return vs.config.MaxFramesInFlight
}
