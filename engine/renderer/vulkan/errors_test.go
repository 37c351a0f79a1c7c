package vulkan

import (
	"errors"
	"fmt"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomyMatchesSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{&ResourceCreationError{Resource: "fence", Result: vk.ErrorOutOfHostMemory}, ErrResourceCreation},
		{&SurfaceOutOfDateError{Op: "acquire"}, ErrSurfaceOutOfDate},
		{&UnsupportedFormatError{Candidates: DepthFormatCandidates}, ErrUnsupportedFormat},
		{&SynchronizationTimeoutError{Slot: 1, Timeout: 10}, ErrSynchronizationTimeout},
	}
	for _, c := range cases {
		wrapped := fmt.Errorf("frame: %w", c.err)
		assert.ErrorIs(t, wrapped, c.sentinel, c.err.Error())
		for _, other := range cases {
			if other.sentinel != c.sentinel {
				assert.False(t, errors.Is(wrapped, other.sentinel))
			}
		}
	}
}

func TestResourceCreationErrorMessage(t *testing.T) {
	err := &ResourceCreationError{Resource: "swapchain", Result: vk.ErrorSurfaceLost}
	assert.Equal(t, "failed to create swapchain: VK_ERROR_SURFACE_LOST_KHR", err.Error())

	cause := errors.New("bad magic")
	err = &ResourceCreationError{Resource: "shader module", Result: vk.ErrorInvalidShaderNv, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bad magic")

	var target *ResourceCreationError
	assert.True(t, errors.As(fmt.Errorf("build: %w", err), &target))
	assert.Equal(t, "shader module", target.Resource)
}

func TestSynchronizationTimeoutErrorMessage(t *testing.T) {
	err := &SynchronizationTimeoutError{Slot: 1, Timeout: 1000}
	assert.Equal(t, "fence wait for frame slot 1 exceeded 1000ns", err.Error())
}
