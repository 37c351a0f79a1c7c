package vulkantest

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
)

func (d *Device) QuerySwapchainSupport() (*vulkan.VulkanSwapchainSupportInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	support := d.Support
	support.Formats = append([]vk.SurfaceFormat(nil), d.Support.Formats...)
	support.PresentModes = append([]vk.PresentMode(nil), d.Support.PresentModes...)
	return &support, nil
}

func (d *Device) FormatProperties(format vk.Format) vk.FormatProperties {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Formats[format]
}

func (d *Device) MaxUsableSampleCount() vk.SampleCountFlagBits {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.MaxSamples
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitIdleCalls++
	for !d.pending.IsEmpty() {
		d.completeNext()
	}
	return nil
}

// CreatePresentChain returns exactly the requested number of images.
func (d *Device) CreatePresentChain(config *vulkan.PresentChainConfig) (*vulkan.VulkanPresentChain, error) {
	if config.Extent.Width == 0 || config.Extent.Height == 0 {
		return nil, &vulkan.ResourceCreationError{Resource: KindPresentChain, Result: vk.ErrorInitializationFailed, Err: fmt.Errorf("zero extent")}
	}
	chain := &vulkan.VulkanPresentChain{
		Format:      config.Format,
		Extent:      config.Extent,
		PresentMode: config.PresentMode,
	}
	if err := d.create(chain, KindPresentChain); err != nil {
		return nil, err
	}
	for i := uint32(0); i < config.ImageCount; i++ {
		chain.Images = append(chain.Images, &vulkan.VulkanImage{
			Width:   config.Extent.Width,
			Height:  config.Extent.Height,
			Format:  config.Format.Format,
			Samples: vk.SampleCount1Bit,
		})
	}
	d.mu.Lock()
	d.nextImage = 0
	d.mu.Unlock()
	return chain, nil
}

func (d *Device) DestroyPresentChain(chain *vulkan.VulkanPresentChain) {
	if chain == nil {
		return
	}
	d.destroy(chain, KindPresentChain)
	chain.Images = nil
}

func (d *Device) CreateImage(config *vulkan.ImageConfig) (*vulkan.VulkanImage, error) {
	samples := config.Samples
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}
	image := &vulkan.VulkanImage{
		Width:   config.Width,
		Height:  config.Height,
		Format:  config.Format,
		Samples: samples,
	}
	if err := d.create(image, KindImage); err != nil {
		return nil, err
	}
	return image, nil
}

func (d *Device) DestroyImage(image *vulkan.VulkanImage) {
	if image == nil {
		return
	}
	d.destroy(image, KindImage)
}

func (d *Device) CreateSampler(config *vulkan.SamplerConfig) (*vulkan.VulkanSampler, error) {
	sampler := &vulkan.VulkanSampler{}
	if err := d.create(sampler, KindSampler); err != nil {
		return nil, err
	}
	return sampler, nil
}

func (d *Device) DestroySampler(sampler *vulkan.VulkanSampler) {
	if sampler == nil {
		return
	}
	d.destroy(sampler, KindSampler)
}

func (d *Device) CreateBuffer(size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (*vulkan.VulkanBuffer, error) {
	buffer := &vulkan.VulkanBuffer{Size: size, Usage: usage, MemoryFlags: properties}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.track(buffer, KindBuffer); err != nil {
		return nil, err
	}
	d.buffers[buffer] = make([]byte, size)
	return buffer, nil
}

func (d *Device) DestroyBuffer(buffer *vulkan.VulkanBuffer) {
	if buffer == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(buffer, KindBuffer) {
		delete(d.buffers, buffer)
	}
}

func (d *Device) LoadBuffer(buffer *vulkan.VulkanBuffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.LoadErrors) > 0 {
		err := d.LoadErrors[0]
		d.LoadErrors = d.LoadErrors[1:]
		if err != nil {
			return err
		}
	}
	contents, ok := d.buffers[buffer]
	if !ok {
		return fmt.Errorf("write to unknown buffer")
	}
	if buffer.MemoryFlags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) == 0 {
		return fmt.Errorf("buffer memory is not host visible")
	}
	if offset+uint64(len(data)) > uint64(len(contents)) {
		return fmt.Errorf("buffer write of %d bytes at offset %d overflows buffer of %d bytes", len(data), offset, len(contents))
	}
	copy(contents[offset:], data)
	return nil
}

func (d *Device) UploadBuffer(usage vk.BufferUsageFlags, data []byte) (*vulkan.VulkanBuffer, error) {
	buffer, err := d.CreateBuffer(uint64(len(data)),
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	copy(d.buffers[buffer], data)
	d.mu.Unlock()
	return buffer, nil
}

func (d *Device) UploadTexture(width, height uint32, format vk.Format, pixels []byte) (*vulkan.VulkanImage, error) {
	if uint64(len(pixels)) < uint64(width)*uint64(height)*4 {
		return nil, fmt.Errorf("texture of %dx%d needs %d bytes, got %d", width, height, width*height*4, len(pixels))
	}
	return d.CreateImage(&vulkan.ImageConfig{
		Width:      width,
		Height:     height,
		Format:     format,
		Tiling:     vk.ImageTilingOptimal,
		Usage:      vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		Samples:    vk.SampleCount1Bit,
		ViewAspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	})
}

func (d *Device) CreateRenderpass(config *vulkan.RenderpassConfig) (*vulkan.VulkanRenderpass, error) {
	samples := config.Samples
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}
	rp := &vulkan.VulkanRenderpass{
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
	if err := d.create(rp, KindRenderpass); err != nil {
		return nil, err
	}
	return rp, nil
}

func (d *Device) DestroyRenderpass(renderpass *vulkan.VulkanRenderpass) {
	if renderpass == nil {
		return
	}
	d.destroy(renderpass, KindRenderpass)
}

// CreateFramebuffer checks the attachments against the renderpass layout.
func (d *Device) CreateFramebuffer(renderpass *vulkan.VulkanRenderpass, width, height uint32, attachments []*vulkan.VulkanImage) (*vulkan.VulkanFramebuffer, error) {
	want := 2
	if renderpass.HasResolve {
		want = 3
	}
	if len(attachments) != want {
		return nil, &vulkan.ResourceCreationError{
			Resource: KindFramebuffer,
			Result:   vk.ErrorInitializationFailed,
			Err:      fmt.Errorf("renderpass takes %d attachments, got %d", want, len(attachments)),
		}
	}
	if attachments[0].Samples != renderpass.Samples || attachments[1].Samples != renderpass.Samples {
		return nil, &vulkan.ResourceCreationError{
			Resource: KindFramebuffer,
			Result:   vk.ErrorInitializationFailed,
			Err:      fmt.Errorf("attachment sample counts do not match the renderpass"),
		}
	}
	fb := &vulkan.VulkanFramebuffer{
		Attachments: append([]*vulkan.VulkanImage(nil), attachments...),
		Renderpass:  renderpass,
		Width:       width,
		Height:      height,
	}
	if err := d.create(fb, KindFramebuffer); err != nil {
		return nil, err
	}
	return fb, nil
}

func (d *Device) DestroyFramebuffer(framebuffer *vulkan.VulkanFramebuffer) {
	if framebuffer == nil {
		return
	}
	d.destroy(framebuffer, KindFramebuffer)
	framebuffer.Attachments = nil
	framebuffer.Renderpass = nil
}

func (d *Device) CreateShaderModule(stage vk.ShaderStageFlagBits, code []byte) (*vulkan.VulkanShaderStage, error) {
	if _, err := vulkan.SPIRVWords(code); err != nil {
		return nil, &vulkan.ResourceCreationError{Resource: KindShaderModule, Result: vk.ErrorInvalidShaderNv, Err: err}
	}
	module := &vulkan.VulkanShaderStage{Stage: stage}
	if err := d.create(module, KindShaderModule); err != nil {
		return nil, err
	}
	return module, nil
}

func (d *Device) DestroyShaderModule(stage *vulkan.VulkanShaderStage) {
	if stage == nil {
		return
	}
	d.destroy(stage, KindShaderModule)
}

func (d *Device) CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (*vulkan.VulkanDescriptorSetLayout, error) {
	layout := &vulkan.VulkanDescriptorSetLayout{Bindings: bindings}
	if err := d.create(layout, KindDescriptorSetLayout); err != nil {
		return nil, err
	}
	return layout, nil
}

func (d *Device) DestroyDescriptorSetLayout(layout *vulkan.VulkanDescriptorSetLayout) {
	if layout == nil {
		return
	}
	d.destroy(layout, KindDescriptorSetLayout)
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize) (*vulkan.VulkanDescriptorPool, error) {
	pool := &vulkan.VulkanDescriptorPool{MaxSets: maxSets}
	if err := d.create(pool, KindDescriptorPool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (d *Device) DestroyDescriptorPool(pool *vulkan.VulkanDescriptorPool) {
	if pool == nil {
		return
	}
	d.destroy(pool, KindDescriptorPool)
}

// AllocateDescriptorSets draws from the pool's MaxSets budget.
func (d *Device) AllocateDescriptorSets(pool *vulkan.VulkanDescriptorPool, layout *vulkan.VulkanDescriptorSetLayout, count uint32) ([]*vulkan.VulkanDescriptorSet, error) {
	if count > pool.MaxSets {
		return nil, &vulkan.ResourceCreationError{Resource: "descriptor set", Result: vk.ErrorOutOfPoolMemory}
	}
	pool.MaxSets -= count
	sets := make([]*vulkan.VulkanDescriptorSet, count)
	for i := range sets {
		sets[i] = &vulkan.VulkanDescriptorSet{}
	}
	return sets, nil
}

func (d *Device) UpdateDescriptorSet(set *vulkan.VulkanDescriptorSet, uniform *vulkan.VulkanBuffer, texture *vulkan.VulkanImage, sampler *vulkan.VulkanSampler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, obj := range []interface{}{uniform, texture, sampler} {
		if _, ok := d.objects[obj]; !ok {
			d.misuse = append(d.misuse, fmt.Errorf("descriptor set update references a destroyed %T", obj))
		}
	}
}

func (d *Device) CreateGraphicsPipeline(config *vulkan.VulkanPipelineConfig) (*vulkan.VulkanPipeline, error) {
	d.mu.Lock()
	for _, stage := range config.Stages {
		if _, ok := d.objects[stage]; !ok {
			d.mu.Unlock()
			return nil, &vulkan.ResourceCreationError{Resource: KindPipeline, Result: vk.ErrorInitializationFailed, Err: fmt.Errorf("shader stage already destroyed")}
		}
	}
	d.mu.Unlock()
	if config.Samples != 0 && config.Renderpass != nil && config.Samples != config.Renderpass.Samples {
		return nil, &vulkan.ResourceCreationError{Resource: KindPipeline, Result: vk.ErrorInitializationFailed, Err: fmt.Errorf("pipeline samples do not match the renderpass")}
	}
	pipeline := &vulkan.VulkanPipeline{}
	if err := d.create(pipeline, KindPipeline); err != nil {
		return nil, err
	}
	return pipeline, nil
}

func (d *Device) DestroyPipeline(pipeline *vulkan.VulkanPipeline) {
	if pipeline == nil {
		return
	}
	d.destroy(pipeline, KindPipeline)
}

func (d *Device) CreateCommandPool(queueFamilyIndex uint32) (*vulkan.VulkanCommandPool, error) {
	pool := &vulkan.VulkanCommandPool{QueueFamilyIndex: queueFamilyIndex}
	if err := d.create(pool, KindCommandPool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (d *Device) DestroyCommandPool(pool *vulkan.VulkanCommandPool) {
	if pool == nil {
		return
	}
	d.destroy(pool, KindCommandPool)
}

func (d *Device) AllocateCommandBuffers(pool *vulkan.VulkanCommandPool, count uint32) ([]*vulkan.VulkanCommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*vulkan.VulkanCommandBuffer, 0, count)
	for i := uint32(0); i < count; i++ {
		cb := &vulkan.VulkanCommandBuffer{State: vulkan.COMMAND_BUFFER_STATE_READY}
		if err := d.track(cb, KindCommandBuffer); err != nil {
			for _, allocated := range out {
				d.release(allocated, KindCommandBuffer)
			}
			return nil, err
		}
		out = append(out, cb)
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(pool *vulkan.VulkanCommandPool, buffers []*vulkan.VulkanCommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, cb := range buffers {
		if cb == nil {
			continue
		}
		if d.pendingCBs[cb] > 0 {
			d.misuse = append(d.misuse, fmt.Errorf("free of pending command buffer %p", cb))
		}
		d.release(cb, KindCommandBuffer)
		cb.State = vulkan.COMMAND_BUFFER_STATE_NOT_ALLOCATED
	}
}

func (d *Device) CreateSemaphore() (*vulkan.VulkanSemaphore, error) {
	semaphore := &vulkan.VulkanSemaphore{}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.track(semaphore, KindSemaphore); err != nil {
		return nil, err
	}
	d.semaphores[semaphore] = false
	return semaphore, nil
}

func (d *Device) DestroySemaphore(semaphore *vulkan.VulkanSemaphore) {
	if semaphore == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.release(semaphore, KindSemaphore) {
		delete(d.semaphores, semaphore)
	}
}

func (d *Device) CreateFence(signaled bool) (*vulkan.VulkanFence, error) {
	fence := &vulkan.VulkanFence{IsSignaled: signaled}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.track(fence, KindFence); err != nil {
		return nil, err
	}
	d.fences[fence] = signaled
	return fence, nil
}

func (d *Device) DestroyFence(fence *vulkan.VulkanFence) {
	if fence == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isPendingFence(fence) {
		d.misuse = append(d.misuse, fmt.Errorf("destroy of pending fence %p", fence))
	}
	if d.release(fence, KindFence) {
		delete(d.fences, fence)
	}
	fence.IsSignaled = false
}
