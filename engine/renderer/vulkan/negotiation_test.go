package vulkan_test

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan/vulkantest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCapabilities() vk.SurfaceCapabilities {
	return vulkantest.NewDevice().Support.Capabilities
}

func TestChooseExtentClampsToSurfaceLimits(t *testing.T) {
	caps := testCapabilities()

	assert.Equal(t, vk.Extent2D{Width: 64, Height: 64}, vulkan.ChooseExtent(caps, 10, 10))
	assert.Equal(t, vk.Extent2D{Width: 4096, Height: 4096}, vulkan.ChooseExtent(caps, 5000, 5000))
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 4096}, vulkan.ChooseExtent(caps, 800, 9000))
}

func TestChooseExtentUsesFixedCurrentExtent(t *testing.T) {
	caps := testCapabilities()
	caps.CurrentExtent = vk.Extent2D{Width: 1024, Height: 768}

	assert.Equal(t, vk.Extent2D{Width: 1024, Height: 768}, vulkan.ChooseExtent(caps, 10, 10))
}

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	got, err := vulkan.ChooseSurfaceFormat([]vk.SurfaceFormat{{Format: vk.FormatUndefined, ColorSpace: vk.ColorSpaceSrgbNonlinear}})
	require.NoError(t, err)
	assert.Equal(t, preferred, got)

	got, err = vulkan.ChooseSurfaceFormat([]vk.SurfaceFormat{
		{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		preferred,
	})
	require.NoError(t, err)
	assert.Equal(t, preferred, got)

	other := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	got, err = vulkan.ChooseSurfaceFormat([]vk.SurfaceFormat{other})
	require.NoError(t, err)
	assert.Equal(t, other, got)

	_, err = vulkan.ChooseSurfaceFormat(nil)
	assert.ErrorIs(t, err, vulkan.ErrUnsupportedFormat)
}

func TestChoosePresentMode(t *testing.T) {
	all := []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeImmediate, vk.PresentModeMailbox}

	assert.Equal(t, vk.PresentModeMailbox, vulkan.ChoosePresentMode(all, false))
	assert.Equal(t, vk.PresentModeImmediate, vulkan.ChoosePresentMode(all[:2], false))
	assert.Equal(t, vk.PresentModeFifo, vulkan.ChoosePresentMode(all[:1], false))
	assert.Equal(t, vk.PresentModeFifo, vulkan.ChoosePresentMode(all, true))
}

func TestChooseImageCount(t *testing.T) {
	caps := testCapabilities()
	assert.Equal(t, uint32(3), vulkan.ChooseImageCount(caps))

	caps.MaxImageCount = 2
	assert.Equal(t, uint32(2), vulkan.ChooseImageCount(caps))

	// Zero means unbounded.
	caps.MaxImageCount = 0
	caps.MinImageCount = 4
	assert.Equal(t, uint32(5), vulkan.ChooseImageCount(caps))
}

func TestChooseSampleCount(t *testing.T) {
	assert.Equal(t, vk.SampleCount4Bit, vulkan.ChooseSampleCount(vk.SampleCount8Bit, 4))
	assert.Equal(t, vk.SampleCount8Bit, vulkan.ChooseSampleCount(vk.SampleCount8Bit, 64))
	assert.Equal(t, vk.SampleCount4Bit, vulkan.ChooseSampleCount(vk.SampleCount8Bit, 6))
	assert.Equal(t, vk.SampleCount1Bit, vulkan.ChooseSampleCount(vk.SampleCount8Bit, 1))
	assert.Equal(t, vk.SampleCount1Bit, vulkan.ChooseSampleCount(vk.SampleCount1Bit, 8))
}

func TestDetectDepthFormat(t *testing.T) {
	dev := vulkantest.NewDevice()

	format, err := vulkan.DetectDepthFormat(dev)
	require.NoError(t, err)
	assert.Equal(t, vk.FormatD32Sfloat, format)

	// Falls through to the next candidate.
	delete(dev.Formats, vk.FormatD32Sfloat)
	format, err = vulkan.DetectDepthFormat(dev)
	require.NoError(t, err)
	assert.Equal(t, vk.FormatD32SfloatS8Uint, format)
}

func TestFindSupportedFormatHonorsTiling(t *testing.T) {
	dev := vulkantest.NewDevice()
	features := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)

	_, err := vulkan.FindSupportedFormat(dev, vulkan.DepthFormatCandidates, vk.ImageTilingLinear, features)
	require.Error(t, err)

	var unsupported *vulkan.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, vulkan.DepthFormatCandidates, unsupported.Candidates)
	assert.Equal(t, features, unsupported.Features)
}
