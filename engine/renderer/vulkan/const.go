package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"
)

// DefaultMaxFramesInFlight bounds how many submissions may be outstanding at once.
const DefaultMaxFramesInFlight uint32 = 2

// WaitForever is the fence/acquire timeout used when none is configured.
const WaitForever uint64 = math.MaxUint64

// Preferred surface format when the surface leaves the choice to us.
var PreferredSurfaceFormat = vk.SurfaceFormat{
	Format:     vk.FormatB8g8r8a8Unorm,
	ColorSpace: vk.ColorSpaceSrgbNonlinear,
}

// DepthFormatCandidates are tried in order by DetectDepthFormat.
var DepthFormatCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

// Uniform binding slots shared by the descriptor layout and the shaders.
const (
	UniformBinding uint32 = 0
	SamplerBinding uint32 = 1
)
