package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/core"
)

// FormatQuerier is the slice of the factory that format negotiation needs.
type FormatQuerier interface {
	FormatProperties(format vk.Format) vk.FormatProperties
}

// FindSupportedFormat returns the first candidate whose feature set for the
// given tiling includes every requested feature.
func FindSupportedFormat(device FormatQuerier, candidates []vk.Format, tiling vk.ImageTiling, features vk.FormatFeatureFlags) (vk.Format, error) {
	for _, format := range candidates {
		props := device.FormatProperties(format)
		switch tiling {
		case vk.ImageTilingLinear:
			if props.LinearTilingFeatures&features == features {
				return format, nil
			}
		case vk.ImageTilingOptimal:
			if props.OptimalTilingFeatures&features == features {
				return format, nil
			}
		}
	}
	err := &UnsupportedFormatError{Candidates: candidates, Features: features}
	logError(err)
	return vk.FormatUndefined, err
}

func DetectDepthFormat(device FormatQuerier) (vk.Format, error) {
	return FindSupportedFormat(device, DepthFormatCandidates, vk.ImageTilingOptimal,
		vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit))
}

// ChooseSurfaceFormat picks the preferred format. A lone Undefined entry means
// the surface has no preference.
func ChooseSurfaceFormat(formats []vk.SurfaceFormat) (vk.SurfaceFormat, error) {
	if len(formats) == 0 {
		err := &UnsupportedFormatError{}
		logError(err)
		return vk.SurfaceFormat{}, err
	}
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return PreferredSurfaceFormat, nil
	}
	for _, f := range formats {
		if f.Format == PreferredSurfaceFormat.Format && f.ColorSpace == PreferredSurfaceFormat.ColorSpace {
			return f, nil
		}
	}
	return formats[0], nil
}

// ChoosePresentMode prefers Mailbox, then Immediate. Fifo is always available
// and is the only choice when vsync is requested.
func ChoosePresentMode(modes []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	best := vk.PresentModeFifo
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
		if mode == vk.PresentModeImmediate {
			best = mode
		}
	}
	return best
}

// ChooseExtent uses the surface's current extent when it is fixed, otherwise
// clamps the drawable size into the supported range.
func ChooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  MathClamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: MathClamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum. A zero maximum
// means there is no upper limit.
func ChooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}
	return imageCount
}

var sampleCounts = []vk.SampleCountFlagBits{
	vk.SampleCount64Bit,
	vk.SampleCount32Bit,
	vk.SampleCount16Bit,
	vk.SampleCount8Bit,
	vk.SampleCount4Bit,
	vk.SampleCount2Bit,
}

// ChooseSampleCount returns the highest power of two not above either limit.
func ChooseSampleCount(max vk.SampleCountFlagBits, requested uint32) vk.SampleCountFlagBits {
	for _, c := range sampleCounts {
		if uint32(c) <= requested && c <= max {
			return c
		}
	}
	if requested > 1 {
		core.LogWarn("%d samples requested but the device supports none above 1", requested)
	}
	return vk.SampleCount1Bit
}
