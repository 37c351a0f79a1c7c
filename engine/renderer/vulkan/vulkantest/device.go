// Package vulkantest provides an in-memory vulkan.Device that models fence,
// semaphore and command buffer lifetimes without a GPU.
package vulkantest

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/containers"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
)

// Resource kinds used by Live, Created and FailCreate.
const (
	KindPresentChain        = "present_chain"
	KindImage               = "image"
	KindSampler             = "sampler"
	KindBuffer              = "buffer"
	KindRenderpass          = "renderpass"
	KindFramebuffer         = "framebuffer"
	KindShaderModule        = "shader_module"
	KindDescriptorSetLayout = "descriptor_set_layout"
	KindDescriptorPool      = "descriptor_pool"
	KindPipeline            = "pipeline"
	KindCommandPool         = "command_pool"
	KindCommandBuffer       = "command_buffer"
	KindSemaphore           = "semaphore"
	KindFence               = "fence"
)

type OpKind int

const (
	OpAcquire OpKind = iota
	OpSubmit
	OpPresent
)

func (k OpKind) String() string {
	switch k {
	case OpAcquire:
		return "acquire"
	case OpSubmit:
		return "submit"
	case OpPresent:
		return "present"
	}
	return "unknown"
}

// Op is one queue-level operation. Acquire fills Signal, present fills Wait,
// submit fills both plus Fence.
type Op struct {
	Kind   OpKind
	Image  uint32
	Wait   *vulkan.VulkanSemaphore
	Signal *vulkan.VulkanSemaphore
	Fence  *vulkan.VulkanFence
	Status vulkan.SurfaceStatus
}

type submission struct {
	index uint64
	fence *vulkan.VulkanFence
	cb    *vulkan.VulkanCommandBuffer
}

// Device implements vulkan.Device in memory. Submitted work completes only when
// a fence wait or WaitIdle asks for it, in submission order.
type Device struct {
	mu sync.Mutex

	Support    vulkan.VulkanSwapchainSupportInfo
	Formats    map[vk.Format]vk.FormatProperties
	MaxSamples vk.SampleCountFlagBits

	// Statuses returned by the next acquires and presents, consumed in order.
	// Optimal once empty.
	AcquireStatuses []vulkan.SurfaceStatus
	PresentStatuses []vulkan.SurfaceStatus

	// Errors returned by the next buffer loads, consumed in order. A nil
	// entry lets that load through.
	LoadErrors []error

	graphics *vulkan.VulkanQueue
	present  *vulkan.VulkanQueue

	objects  map[interface{}]string
	live     map[string]int
	created  map[string]int
	failures map[string]int

	fences     map[*vulkan.VulkanFence]bool
	semaphores map[*vulkan.VulkanSemaphore]bool
	buffers    map[*vulkan.VulkanBuffer][]byte
	pendingCBs map[*vulkan.VulkanCommandBuffer]int

	pending        *containers.RingQueue[*submission]
	submits        uint64
	maxOutstanding int
	waitDistances  []uint64
	nextImage      uint32
	ops            []Op
	draws          int
	recordings     int
	waitIdleCalls  int
	misuse         []error
}

var _ vulkan.Device = (*Device)(nil)

// Submissions beyond this many uncompleted ones fail.
const maxPending = 64

// NewDevice returns a device whose surface allows 64x64 to 4096x4096, two to
// three images, B8G8R8A8Unorm/SrgbNonlinear and Fifo or Mailbox.
func NewDevice() *Device {
	d := &Device{
		Support: vulkan.VulkanSwapchainSupportInfo{
			Capabilities: vk.SurfaceCapabilities{
				MinImageCount:       2,
				MaxImageCount:       3,
				CurrentExtent:       vk.Extent2D{Width: vk.MaxUint32, Height: vk.MaxUint32},
				MinImageExtent:      vk.Extent2D{Width: 64, Height: 64},
				MaxImageExtent:      vk.Extent2D{Width: 4096, Height: 4096},
				MaxImageArrayLayers: 1,
				CurrentTransform:    vk.SurfaceTransformIdentityBit,
			},
			Formats:      []vk.SurfaceFormat{vulkan.PreferredSurfaceFormat},
			PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		},
		Formats:    make(map[vk.Format]vk.FormatProperties),
		MaxSamples: vk.SampleCount8Bit,
		pending:    containers.NewRingQueue[*submission](maxPending),
		graphics:   &vulkan.VulkanQueue{FamilyIndex: 0, Name: "graphics"},
		present:    &vulkan.VulkanQueue{FamilyIndex: 0, Name: "present"},
		objects:    make(map[interface{}]string),
		live:       make(map[string]int),
		created:    make(map[string]int),
		failures:   make(map[string]int),
		fences:     make(map[*vulkan.VulkanFence]bool),
		semaphores: make(map[*vulkan.VulkanSemaphore]bool),
		buffers:    make(map[*vulkan.VulkanBuffer][]byte),
		pendingCBs: make(map[*vulkan.VulkanCommandBuffer]int),
	}
	depth := vk.FormatProperties{
		OptimalTilingFeatures: vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit),
	}
	for _, f := range vulkan.DepthFormatCandidates {
		d.Formats[f] = depth
	}
	d.Formats[vk.FormatB8g8r8a8Unorm] = vk.FormatProperties{
		OptimalTilingFeatures: vk.FormatFeatureFlags(vk.FormatFeatureColorAttachmentBit | vk.FormatFeatureSampledImageBit),
	}
	return d
}

// FailCreate makes the creation of kind fail after `after` more successes.
func (d *Device) FailCreate(kind string, after int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[kind] = after
}

// Live returns how many objects of kind exist. An empty kind counts all of them.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if kind == "" {
		return len(d.objects)
	}
	return d.live[kind]
}

func (d *Device) Created(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

func (d *Device) Submits() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submits
}

// Outstanding is the number of submissions the device has not completed yet.
func (d *Device) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.Len()
}

func (d *Device) MaxOutstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOutstanding
}

// WaitDistances lists, for every fence wait that had to complete work, how many
// submissions had been issued since the one that signaled the fence, inclusive.
func (d *Device) WaitDistances() []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]uint64(nil), d.waitDistances...)
}

func (d *Device) Ops() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Op(nil), d.ops...)
}

func (d *Device) Draws() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draws
}

// Recordings counts BeginCommandBuffer calls.
func (d *Device) Recordings() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recordings
}

func (d *Device) WaitIdleCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waitIdleCalls
}

// Misuse returns API misuse that could not be reported through a return value,
// such as destroying an object twice.
func (d *Device) Misuse() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.misuse...)
}

func (d *Device) BufferContents(buffer *vulkan.VulkanBuffer) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.buffers[buffer]...)
}

// track registers obj, or fails if a failure was scheduled for kind.
func (d *Device) track(obj interface{}, kind string) error {
	if remaining, ok := d.failures[kind]; ok {
		if remaining == 0 {
			delete(d.failures, kind)
			return &vulkan.ResourceCreationError{Resource: kind, Result: vk.ErrorOutOfDeviceMemory}
		}
		d.failures[kind] = remaining - 1
	}
	d.objects[obj] = kind
	d.live[kind]++
	d.created[kind]++
	return nil
}

func (d *Device) release(obj interface{}, kind string) bool {
	got, ok := d.objects[obj]
	if !ok || got != kind {
		d.misuse = append(d.misuse, fmt.Errorf("destroy of unknown %s %p", kind, obj))
		return false
	}
	delete(d.objects, obj)
	d.live[kind]--
	return true
}

func (d *Device) create(obj interface{}, kind string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.track(obj, kind)
}

func (d *Device) destroy(obj interface{}, kind string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(obj, kind)
}
