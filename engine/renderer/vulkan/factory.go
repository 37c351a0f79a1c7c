package vulkan

import (
	vk "github.com/goki/vulkan"
)

// SurfaceStatus is what acquire and present report about the surface. Only a
// broken device is an error; staleness is an expected condition.
type SurfaceStatus int

const (
	SurfaceOptimal SurfaceStatus = iota
	SurfaceSuboptimal
	SurfaceOutOfDate
)

func (s SurfaceStatus) String() string {
	switch s {
	case SurfaceOptimal:
		return "optimal"
	case SurfaceSuboptimal:
		return "suboptimal"
	case SurfaceOutOfDate:
		return "out-of-date"
	}
	return "unknown"
}

// Stale reports whether the frame resource set must be rebuilt.
func (s SurfaceStatus) Stale() bool {
	return s != SurfaceOptimal
}

// ResourceFactory creates and destroys GPU objects. It keeps no reference to
// anything it hands out: the caller owns the returned wrapper and gives it back
// to the factory to release it.
type ResourceFactory interface {
	QuerySwapchainSupport() (*VulkanSwapchainSupportInfo, error)
	FormatProperties(format vk.Format) vk.FormatProperties
	MaxUsableSampleCount() vk.SampleCountFlagBits

	CreatePresentChain(config *PresentChainConfig) (*VulkanPresentChain, error)
	DestroyPresentChain(chain *VulkanPresentChain)

	CreateImage(config *ImageConfig) (*VulkanImage, error)
	DestroyImage(image *VulkanImage)
	CreateSampler(config *SamplerConfig) (*VulkanSampler, error)
	DestroySampler(sampler *VulkanSampler)

	CreateBuffer(size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (*VulkanBuffer, error)
	DestroyBuffer(buffer *VulkanBuffer)
	LoadBuffer(buffer *VulkanBuffer, offset uint64, data []byte) error
	UploadBuffer(usage vk.BufferUsageFlags, data []byte) (*VulkanBuffer, error)
	UploadTexture(width, height uint32, format vk.Format, pixels []byte) (*VulkanImage, error)

	CreateRenderpass(config *RenderpassConfig) (*VulkanRenderpass, error)
	DestroyRenderpass(renderpass *VulkanRenderpass)
	CreateFramebuffer(renderpass *VulkanRenderpass, width, height uint32, attachments []*VulkanImage) (*VulkanFramebuffer, error)
	DestroyFramebuffer(framebuffer *VulkanFramebuffer)

	CreateShaderModule(stage vk.ShaderStageFlagBits, code []byte) (*VulkanShaderStage, error)
	DestroyShaderModule(stage *VulkanShaderStage)
	CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (*VulkanDescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout *VulkanDescriptorSetLayout)
	CreateDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize) (*VulkanDescriptorPool, error)
	DestroyDescriptorPool(pool *VulkanDescriptorPool)
	AllocateDescriptorSets(pool *VulkanDescriptorPool, layout *VulkanDescriptorSetLayout, count uint32) ([]*VulkanDescriptorSet, error)
	UpdateDescriptorSet(set *VulkanDescriptorSet, uniform *VulkanBuffer, texture *VulkanImage, sampler *VulkanSampler)
	CreateGraphicsPipeline(config *VulkanPipelineConfig) (*VulkanPipeline, error)
	DestroyPipeline(pipeline *VulkanPipeline)

	CreateCommandPool(queueFamilyIndex uint32) (*VulkanCommandPool, error)
	DestroyCommandPool(pool *VulkanCommandPool)
	AllocateCommandBuffers(pool *VulkanCommandPool, count uint32) ([]*VulkanCommandBuffer, error)
	FreeCommandBuffers(pool *VulkanCommandPool, buffers []*VulkanCommandBuffer)

	CreateSemaphore() (*VulkanSemaphore, error)
	DestroySemaphore(semaphore *VulkanSemaphore)
	CreateFence(signaled bool) (*VulkanFence, error)
	DestroyFence(fence *VulkanFence)

	// WaitIdle blocks until every submitted batch completed. Teardown only.
	WaitIdle() error
}

// CommandRecorder records into command buffers owned by the caller.
type CommandRecorder interface {
	BeginCommandBuffer(cb *VulkanCommandBuffer, singleUse, renderpassContinue, simultaneousUse bool) error
	EndCommandBuffer(cb *VulkanCommandBuffer) error
	ResetCommandBuffer(cb *VulkanCommandBuffer) error
	CmdBeginRenderpass(cb *VulkanCommandBuffer, renderpass *VulkanRenderpass, framebuffer *VulkanFramebuffer)
	CmdEndRenderpass(cb *VulkanCommandBuffer)
	CmdSetViewport(cb *VulkanCommandBuffer, viewport vk.Viewport)
	CmdSetScissor(cb *VulkanCommandBuffer, scissor vk.Rect2D)
	CmdBindPipeline(cb *VulkanCommandBuffer, pipeline *VulkanPipeline)
	CmdBindVertexBuffer(cb *VulkanCommandBuffer, buffer *VulkanBuffer)
	CmdBindIndexBuffer(cb *VulkanCommandBuffer, buffer *VulkanBuffer)
	CmdBindDescriptorSet(cb *VulkanCommandBuffer, pipeline *VulkanPipeline, set *VulkanDescriptorSet)
	CmdDrawIndexed(cb *VulkanCommandBuffer, indexCount uint32)
}

// QueueOperator covers the steady-state frame path.
type QueueOperator interface {
	GraphicsQueue() *VulkanQueue
	PresentQueue() *VulkanQueue

	// WaitForFence returns false when the timeout elapsed first.
	WaitForFence(fence *VulkanFence, timeout uint64) (bool, error)
	ResetFence(fence *VulkanFence) error
	AcquireNextImage(chain *VulkanPresentChain, timeout uint64, signal *VulkanSemaphore) (uint32, SurfaceStatus, error)
	QueueSubmit(queue *VulkanQueue, submit *SubmitInfo) error
	QueuePresent(queue *VulkanQueue, chain *VulkanPresentChain, imageIndex uint32, wait *VulkanSemaphore) (SurfaceStatus, error)
}

type Device interface {
	ResourceFactory
	CommandRecorder
	QueueOperator
}

type VulkanQueue struct {
	Handle      vk.Queue
	FamilyIndex uint32
	Name        string
}

// SubmitInfo describes one batch: a single command buffer gated by one wait
// semaphore, signaling one semaphore and an optional fence.
type SubmitInfo struct {
	CommandBuffer   *VulkanCommandBuffer
	WaitSemaphore   *VulkanSemaphore
	WaitStage       vk.PipelineStageFlags
	SignalSemaphore *VulkanSemaphore
	Fence           *VulkanFence
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}
