package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
)

var (
	ErrResourceCreation       = errors.New("vulkan: resource creation failed")
	ErrSurfaceOutOfDate       = errors.New("vulkan: surface out of date")
	ErrUnsupportedFormat      = errors.New("vulkan: no supported format")
	ErrSynchronizationTimeout = errors.New("vulkan: synchronization wait timed out")
	ErrSwapchainDestroyed     = errors.New("vulkan: swapchain already destroyed")
)

// ResourceCreationError reports a failed factory call. It is fatal to the
// build attempt that issued it and is never retried by the factory.
type ResourceCreationError struct {
	Resource string
	Result   vk.Result
	Err      error
}

func (e *ResourceCreationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to create %s: %s", e.Resource, e.Err)
	}
	return fmt.Sprintf("failed to create %s: %s", e.Resource, VulkanResultString(e.Result, false))
}

func (e *ResourceCreationError) Unwrap() error { return e.Err }

func (e *ResourceCreationError) Is(target error) bool { return target == ErrResourceCreation }

// SurfaceOutOfDateError means the surface no longer matches the swapchain, or
// has no drawable area. The caller rebuilds once the surface is usable again.
type SurfaceOutOfDateError struct {
	Op string
}

func (e *SurfaceOutOfDateError) Error() string {
	return fmt.Sprintf("surface out of date during %s", e.Op)
}

func (e *SurfaceOutOfDateError) Is(target error) bool { return target == ErrSurfaceOutOfDate }

// UnsupportedFormatError means none of the candidates has the required features.
type UnsupportedFormatError struct {
	Candidates []vk.Format
	Features   vk.FormatFeatureFlags
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("none of the %d candidate formats %v supports features 0x%x", len(e.Candidates), e.Candidates, uint32(e.Features))
}

func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// SynchronizationTimeoutError is returned when a fence wait exceeds its timeout.
type SynchronizationTimeoutError struct {
	Slot    uint32
	Timeout uint64
}

func (e *SynchronizationTimeoutError) Error() string {
	return fmt.Sprintf("fence wait for frame slot %d exceeded %dns", e.Slot, e.Timeout)
}

func (e *SynchronizationTimeoutError) Is(target error) bool {
	return target == ErrSynchronizationTimeout
}

// newCreationError logs and returns a ResourceCreationError for a failed vk call.
func newCreationError(resource string, result vk.Result) error {
	err := &ResourceCreationError{Resource: resource, Result: result}
	logError(err)
	return err
}
