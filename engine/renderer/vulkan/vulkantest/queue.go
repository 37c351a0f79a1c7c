package vulkantest

import (
	"fmt"

	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
)

func (d *Device) GraphicsQueue() *vulkan.VulkanQueue { return d.graphics }

func (d *Device) PresentQueue() *vulkan.VulkanQueue { return d.present }

// completeNext retires the oldest pending submission.
func (d *Device) completeNext() *submission {
	sub, err := d.pending.Dequeue()
	if err != nil {
		return nil
	}
	if sub.fence != nil {
		d.fences[sub.fence] = true
		sub.fence.IsSignaled = true
	}
	if d.pendingCBs[sub.cb]--; d.pendingCBs[sub.cb] <= 0 {
		delete(d.pendingCBs, sub.cb)
	}
	return sub
}

func (d *Device) isPendingFence(fence *vulkan.VulkanFence) bool {
	for i := 0; i < d.pending.Len(); i++ {
		sub, _ := d.pending.Dequeue()
		_ = d.pending.Enqueue(sub)
		if sub.fence == fence {
			// Keep rotating so the queue order is restored.
			for j := i + 1; j < d.pending.Len(); j++ {
				s, _ := d.pending.Dequeue()
				_ = d.pending.Enqueue(s)
			}
			return true
		}
	}
	return false
}

// WaitForFence completes pending submissions in order up to the one that
// signals fence. A fence no submission will ever signal times out.
func (d *Device) WaitForFence(fence *vulkan.VulkanFence, timeout uint64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	signaled, ok := d.fences[fence]
	if !ok {
		return false, fmt.Errorf("wait on unknown fence %p", fence)
	}
	if signaled {
		fence.IsSignaled = true
		return true, nil
	}
	if !d.isPendingFence(fence) {
		return false, nil
	}
	for {
		sub := d.completeNext()
		if sub.fence == fence {
			d.waitDistances = append(d.waitDistances, d.submits-sub.index)
			return true, nil
		}
	}
}

func (d *Device) ResetFence(fence *vulkan.VulkanFence) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fences[fence]; !ok {
		return fmt.Errorf("reset of unknown fence %p", fence)
	}
	if d.isPendingFence(fence) {
		return fmt.Errorf("reset of fence %p still in use by a submission", fence)
	}
	d.fences[fence] = false
	fence.IsSignaled = false
	return nil
}

func (d *Device) AcquireNextImage(chain *vulkan.VulkanPresentChain, timeout uint64, signal *vulkan.VulkanSemaphore) (uint32, vulkan.SurfaceStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if kind, ok := d.objects[chain]; !ok || kind != KindPresentChain {
		return 0, vulkan.SurfaceOutOfDate, fmt.Errorf("acquire from destroyed present chain")
	}
	status := vulkan.SurfaceOptimal
	if len(d.AcquireStatuses) > 0 {
		status = d.AcquireStatuses[0]
		d.AcquireStatuses = d.AcquireStatuses[1:]
	}
	if status == vulkan.SurfaceOutOfDate {
		d.ops = append(d.ops, Op{Kind: OpAcquire, Status: status})
		return 0, status, nil
	}
	if d.semaphores[signal] {
		return 0, status, fmt.Errorf("acquire would signal semaphore %p which is already signaled", signal)
	}
	d.semaphores[signal] = true
	image := d.nextImage % uint32(len(chain.Images))
	d.nextImage++
	d.ops = append(d.ops, Op{Kind: OpAcquire, Image: image, Signal: signal, Status: status})
	return image, status, nil
}

func (d *Device) QueueSubmit(queue *vulkan.VulkanQueue, submit *vulkan.SubmitInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb := submit.CommandBuffer
	if cb.State != vulkan.COMMAND_BUFFER_STATE_RECORDING_ENDED && cb.State != vulkan.COMMAND_BUFFER_STATE_SUBMITTED {
		return fmt.Errorf("submit of command buffer %p that is not executable (state %d)", cb, cb.State)
	}
	if d.pendingCBs[cb] > 0 && !cb.SimultaneousUse {
		return fmt.Errorf("resubmit of pending command buffer %p without simultaneous use", cb)
	}
	if submit.Fence != nil {
		if d.fences[submit.Fence] {
			return fmt.Errorf("submit with fence %p that is still signaled", submit.Fence)
		}
		if d.isPendingFence(submit.Fence) {
			return fmt.Errorf("submit with fence %p already in use", submit.Fence)
		}
	}
	if submit.WaitSemaphore != nil && !d.semaphores[submit.WaitSemaphore] {
		return fmt.Errorf("submit waits on semaphore %p that nothing signaled", submit.WaitSemaphore)
	}
	if submit.SignalSemaphore != nil && d.semaphores[submit.SignalSemaphore] {
		return fmt.Errorf("submit signals semaphore %p that is already signaled", submit.SignalSemaphore)
	}

	sub := &submission{index: d.submits, fence: submit.Fence, cb: cb}
	if err := d.pending.Enqueue(sub); err != nil {
		return fmt.Errorf("too many outstanding submissions: %w", err)
	}
	d.submits++
	if n := d.pending.Len(); n > d.maxOutstanding {
		d.maxOutstanding = n
	}
	d.pendingCBs[cb]++

	if submit.WaitSemaphore != nil {
		d.semaphores[submit.WaitSemaphore] = false
	}
	if submit.SignalSemaphore != nil {
		d.semaphores[submit.SignalSemaphore] = true
	}
	if submit.Fence != nil {
		submit.Fence.IsSignaled = false
	}
	cb.State = vulkan.COMMAND_BUFFER_STATE_SUBMITTED
	d.ops = append(d.ops, Op{Kind: OpSubmit, Wait: submit.WaitSemaphore, Signal: submit.SignalSemaphore, Fence: submit.Fence})
	return nil
}

// QueuePresent consumes wait whatever status it reports.
func (d *Device) QueuePresent(queue *vulkan.VulkanQueue, chain *vulkan.VulkanPresentChain, imageIndex uint32, wait *vulkan.VulkanSemaphore) (vulkan.SurfaceStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if kind, ok := d.objects[chain]; !ok || kind != KindPresentChain {
		return vulkan.SurfaceOutOfDate, fmt.Errorf("present to destroyed present chain")
	}
	if imageIndex >= uint32(len(chain.Images)) {
		return vulkan.SurfaceOutOfDate, fmt.Errorf("present of image %d out of %d", imageIndex, len(chain.Images))
	}
	if !d.semaphores[wait] {
		return vulkan.SurfaceOutOfDate, fmt.Errorf("present waits on semaphore %p that nothing signaled", wait)
	}
	d.semaphores[wait] = false

	status := vulkan.SurfaceOptimal
	if len(d.PresentStatuses) > 0 {
		status = d.PresentStatuses[0]
		d.PresentStatuses = d.PresentStatuses[1:]
	}
	d.ops = append(d.ops, Op{Kind: OpPresent, Image: imageIndex, Wait: wait, Status: status})
	return status, nil
}
