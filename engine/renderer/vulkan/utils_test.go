package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSurfaceStatusFromResult(t *testing.T) {
	status, err := surfaceStatusFromResult("acquire", vk.Success)
	require.NoError(t, err)
	assert.Equal(t, SurfaceOptimal, status)
	assert.False(t, status.Stale())

	status, err = surfaceStatusFromResult("acquire", vk.Suboptimal)
	require.NoError(t, err)
	assert.Equal(t, SurfaceSuboptimal, status)
	assert.True(t, status.Stale())

	status, err = surfaceStatusFromResult("present", vk.ErrorOutOfDate)
	require.NoError(t, err)
	assert.Equal(t, SurfaceOutOfDate, status)

	_, err = surfaceStatusFromResult("present", vk.ErrorDeviceLost)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VK_ERROR_DEVICE_LOST")
}

func TestSPIRVWords(t *testing.T) {
	words, err := SPIRVWords([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []uint32{0x07230203, 0x00010000}, words)

	_, err = SPIRVWords(nil)
	assert.Error(t, err)

	_, err = SPIRVWords([]byte{0x03, 0x02, 0x23})
	assert.Error(t, err)

	_, err = SPIRVWords([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.ErrorContains(t, err, "magic")
}

func TestMathClamp(t *testing.T) {
	assert.Equal(t, uint32(64), MathClamp(uint32(10), 64, 4096))
	assert.Equal(t, uint32(4096), MathClamp(uint32(5000), 64, 4096))
	assert.Equal(t, uint32(800), MathClamp(uint32(800), 64, 4096))
	assert.Equal(t, float32(1), MathClamp(float32(0.5), 1, 16))
}

func TestVulkanSafeString(t *testing.T) {
	assert.Equal(t, "\x00", VulkanSafeString(""))
	assert.Equal(t, "main\x00", VulkanSafeString("main"))
	assert.Equal(t, "main\x00", VulkanSafeString("main\x00"))
	assert.Equal(t, []string{"a\x00", "b\x00"}, VulkanSafeStrings([]string{"a", "b\x00"}))
}

func TestVulkanResultIsSuccess(t *testing.T) {
	assert.True(t, VulkanResultIsSuccess(vk.Success))
	assert.True(t, VulkanResultIsSuccess(vk.Suboptimal))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorOutOfDate))
	assert.False(t, VulkanResultIsSuccess(vk.ErrorOutOfDeviceMemory))
}

func TestFormatAspect(t *testing.T) {
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit), formatAspect(vk.FormatD32Sfloat))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectDepthBit|vk.ImageAspectStencilBit), formatAspect(vk.FormatD24UnormS8Uint))
	assert.Equal(t, vk.ImageAspectFlags(vk.ImageAspectColorBit), formatAspect(vk.FormatB8g8r8a8Unorm))
}

func TestLockPoolSerializesQueueFamilies(t *testing.T) {
	pool := NewVulkanLockPool()
	calls := 0
	// Unregistered families still get a mutex.
	require.NoError(t, pool.SafeQueueCall(7, func() error {
		calls++
		return nil
	}))
	pool.SetQueueFamily(0)
	require.NoError(t, pool.SafeCall(PipelineManagement, func() error {
		// Nested calls on other groups do not deadlock.
		return pool.SafeQueueCall(0, func() error {
			calls++
			return nil
		})
	}))
	assert.Equal(t, 2, calls)
}
