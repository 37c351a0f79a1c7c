package vulkan

import (
	"fmt"
)

// SyncPair is the set of primitives owned by one frame slot.
type SyncPair struct {
	ImageAvailable *VulkanSemaphore
	RenderFinished *VulkanSemaphore
	InFlight       *VulkanFence
}

// SyncFactory creates and releases synchronization primitives.
type SyncFactory interface {
	CreateSemaphore() (*VulkanSemaphore, error)
	DestroySemaphore(semaphore *VulkanSemaphore)
	CreateFence(signaled bool) (*VulkanFence, error)
	DestroyFence(fence *VulkanFence)
}

// FenceWaiter waits on and resets fences.
type FenceWaiter interface {
	WaitForFence(fence *VulkanFence, timeout uint64) (bool, error)
	ResetFence(fence *VulkanFence) error
}

// SyncPool holds one SyncPair per frame slot. Its size is fixed for its lifetime.
type SyncPool struct {
	pairs   []SyncPair
	timeout uint64
}

// NewSyncPool creates count pairs. Fences start signaled so the first wait on
// each slot returns immediately.
func NewSyncPool(factory SyncFactory, count uint32, timeout uint64) (*SyncPool, error) {
	if count == 0 {
		return nil, fmt.Errorf("sync pool needs at least one frame slot")
	}
	if timeout == 0 {
		timeout = WaitForever
	}
	pool := &SyncPool{
		pairs:   make([]SyncPair, 0, count),
		timeout: timeout,
	}
	for i := uint32(0); i < count; i++ {
		imageAvailable, err := factory.CreateSemaphore()
		if err != nil {
			pool.Destroy(factory)
			return nil, err
		}
		renderFinished, err := factory.CreateSemaphore()
		if err != nil {
			factory.DestroySemaphore(imageAvailable)
			pool.Destroy(factory)
			return nil, err
		}
		inFlight, err := factory.CreateFence(true)
		if err != nil {
			factory.DestroySemaphore(imageAvailable)
			factory.DestroySemaphore(renderFinished)
			pool.Destroy(factory)
			return nil, err
		}
		pool.pairs = append(pool.pairs, SyncPair{
			ImageAvailable: imageAvailable,
			RenderFinished: renderFinished,
			InFlight:       inFlight,
		})
	}
	return pool, nil
}

func (p *SyncPool) Len() uint32 {
	return uint32(len(p.pairs))
}

func (p *SyncPool) Pair(slot uint32) SyncPair {
	return p.pairs[slot]
}

// Wait blocks until the slot's fence is signaled.
func (p *SyncPool) Wait(device FenceWaiter, slot uint32) error {
	ok, err := device.WaitForFence(p.pairs[slot].InFlight, p.timeout)
	if err != nil {
		return err
	}
	if !ok {
		err := &SynchronizationTimeoutError{Slot: slot, Timeout: p.timeout}
		logError(err)
		return err
	}
	return nil
}

func (p *SyncPool) Reset(device FenceWaiter, slot uint32) error {
	return device.ResetFence(p.pairs[slot].InFlight)
}

// WaitAndReset is the pool's combined wait+reset for a slot. SubmitFrame does
// not use it: it waits first and resets only once the acquire succeeded.
func (p *SyncPool) WaitAndReset(device FenceWaiter, slot uint32) error {
	if err := p.Wait(device, slot); err != nil {
		return err
	}
	return p.Reset(device, slot)
}

// Destroy releases every pair. The caller must have waited for the device to go idle.
func (p *SyncPool) Destroy(factory SyncFactory) {
	for i := range p.pairs {
		factory.DestroySemaphore(p.pairs[i].ImageAvailable)
		factory.DestroySemaphore(p.pairs[i].RenderFinished)
		factory.DestroyFence(p.pairs[i].InFlight)
	}
	p.pairs = nil
}
