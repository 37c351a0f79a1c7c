package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/core"
)

// VulkanImage is an image, its view and, unless the image belongs to a
// present chain, its backing memory.
type VulkanImage struct {
	Handle  vk.Image
	Memory  vk.DeviceMemory
	View    vk.ImageView
	Width   uint32
	Height  uint32
	Format  vk.Format
	Samples vk.SampleCountFlagBits
}

type ImageConfig struct {
	Width, Height uint32
	Format        vk.Format
	Tiling        vk.ImageTiling
	Usage         vk.ImageUsageFlags
	MemoryFlags   vk.MemoryPropertyFlags
	Samples       vk.SampleCountFlagBits
	// Zero means no view is created.
	ViewAspect vk.ImageAspectFlags
}

type VulkanSampler struct {
	Handle vk.Sampler
}

type SamplerConfig struct {
	Filter      vk.Filter
	AddressMode vk.SamplerAddressMode
	Anisotropy  float32
}

func (vd *VulkanDevice) CreateImage(config *ImageConfig) (*VulkanImage, error) {
	samples := config.Samples
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}
	out := &VulkanImage{
		Width:   config.Width,
		Height:  config.Height,
		Format:  config.Format,
		Samples: samples,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  config.Width,
			Height: config.Height,
			Depth:  1, // TODO: Support configurable depth.
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        config.Format,
		Tiling:        config.Tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         config.Usage,
		Samples:       samples,
		SharingMode:   vk.SharingModeExclusive,
	}

	err := vd.locks.SafeCall(ImageManagement, func() error {
		var image vk.Image
		if res := vk.CreateImage(vd.LogicalDevice, &imageCreateInfo, vd.Allocator, &image); res != vk.Success {
			return newCreationError("image", res)
		}
		out.Handle = image

		var memoryRequirements vk.MemoryRequirements
		vk.GetImageMemoryRequirements(vd.LogicalDevice, image, &memoryRequirements)
		memoryRequirements.Deref()

		memoryType, err := vd.findMemoryIndex(memoryRequirements.MemoryTypeBits, config.MemoryFlags)
		if err != nil {
			vk.DestroyImage(vd.LogicalDevice, image, vd.Allocator)
			return &ResourceCreationError{Resource: "image memory", Result: vk.ErrorOutOfDeviceMemory, Err: err}
		}

		allocateInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  memoryRequirements.Size,
			MemoryTypeIndex: memoryType,
		}
		var memory vk.DeviceMemory
		if res := vk.AllocateMemory(vd.LogicalDevice, &allocateInfo, vd.Allocator, &memory); res != vk.Success {
			vk.DestroyImage(vd.LogicalDevice, image, vd.Allocator)
			return newCreationError("image memory", res)
		}
		out.Memory = memory

		// TODO: configurable memory offset.
		if res := vk.BindImageMemory(vd.LogicalDevice, image, memory, 0); res != vk.Success {
			vk.FreeMemory(vd.LogicalDevice, memory, vd.Allocator)
			vk.DestroyImage(vd.LogicalDevice, image, vd.Allocator)
			return newCreationError("image memory binding", res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if config.ViewAspect != 0 {
		view, err := vd.createImageView(out.Handle, config.Format, config.ViewAspect)
		if err != nil {
			vd.DestroyImage(out)
			return nil, err
		}
		out.View = view
	}
	core.LogDebug("Image created: %s", imageDescription(out))
	return out, nil
}

func (vd *VulkanDevice) createImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	err := vd.locks.SafeCall(ImageManagement, func() error {
		if res := vk.CreateImageView(vd.LogicalDevice, &viewCreateInfo, vd.Allocator, &view); res != vk.Success {
			return newCreationError("image view", res)
		}
		return nil
	})
	return view, err
}

func (vd *VulkanDevice) DestroyImage(image *VulkanImage) {
	if image == nil {
		return
	}
	_ = vd.locks.SafeCall(ImageManagement, func() error {
		if image.View != vk.NullImageView {
			vk.DestroyImageView(vd.LogicalDevice, image.View, vd.Allocator)
			image.View = vk.NullImageView
		}
		if image.Memory != vk.NullDeviceMemory {
			vk.FreeMemory(vd.LogicalDevice, image.Memory, vd.Allocator)
			image.Memory = vk.NullDeviceMemory
		}
		if image.Handle != vk.NullImage {
			vk.DestroyImage(vd.LogicalDevice, image.Handle, vd.Allocator)
			image.Handle = vk.NullImage
		}
		return nil
	})
}

func (vd *VulkanDevice) CreateSampler(config *SamplerConfig) (*VulkanSampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               config.Filter,
		MinFilter:               config.Filter,
		AddressModeU:            config.AddressMode,
		AddressModeV:            config.AddressMode,
		AddressModeW:            config.AddressMode,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if config.Anisotropy > 1 && vd.Features.SamplerAnisotropy == vk.True {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = MathClamp(config.Anisotropy, 1, vd.Properties.Limits.MaxSamplerAnisotropy)
	}

	out := &VulkanSampler{}
	err := vd.locks.SafeCall(SamplerManagement, func() error {
		var sampler vk.Sampler
		if res := vk.CreateSampler(vd.LogicalDevice, &samplerInfo, vd.Allocator, &sampler); res != vk.Success {
			return newCreationError("sampler", res)
		}
		out.Handle = sampler
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (vd *VulkanDevice) DestroySampler(sampler *VulkanSampler) {
	if sampler == nil || sampler.Handle == nil {
		return
	}
	_ = vd.locks.SafeCall(SamplerManagement, func() error {
		vk.DestroySampler(vd.LogicalDevice, sampler.Handle, vd.Allocator)
		sampler.Handle = nil
		return nil
	})
}

// UploadTexture copies pixels into a new device-local sampled image and leaves
// it in shader read-only layout.
func (vd *VulkanDevice) UploadTexture(width, height uint32, format vk.Format, pixels []byte) (*VulkanImage, error) {
	staging, err := vd.createStagingBuffer(pixels)
	if err != nil {
		return nil, err
	}
	defer vd.DestroyBuffer(staging)

	image, err := vd.CreateImage(&ImageConfig{
		Width:       width,
		Height:      height,
		Format:      format,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		MemoryFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		Samples:     vk.SampleCount1Bit,
		ViewAspect:  vk.ImageAspectFlags(vk.ImageAspectColorBit),
	})
	if err != nil {
		return nil, err
	}

	err = vd.singleUseCommands(func(cb *VulkanCommandBuffer) error {
		transitionImageLayout(cb, image, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
		region := vk.BufferImageCopy{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
		}
		vk.CmdCopyBufferToImage(cb.Handle, staging.Handle, image.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
		transitionImageLayout(cb, image, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
		return nil
	})
	if err != nil {
		vd.DestroyImage(image)
		return nil, err
	}
	return image, nil
}

func transitionImageLayout(cb *VulkanCommandBuffer, image *VulkanImage, oldLayout, newLayout vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var sourceStage, destStage vk.PipelineStageFlags
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		// Don't care about the old layout, transition to optimal layout for the copy.
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		sourceStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		destStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		// Transition from a transfer destination layout to a shader-readonly layout.
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		sourceStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		destStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	default:
		core.LogError("unsupported layout transition %d -> %d", oldLayout, newLayout)
		return
	}

	vk.CmdPipelineBarrier(cb.Handle, sourceStage, destStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func formatAspect(format vk.Format) vk.ImageAspectFlags {
	switch format {
	case vk.FormatD32SfloatS8Uint, vk.FormatD24UnormS8Uint, vk.FormatD16UnormS8Uint:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	case vk.FormatD32Sfloat, vk.FormatD16Unorm, vk.FormatX8D24UnormPack32:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func imageDescription(image *VulkanImage) string {
	return fmt.Sprintf("%dx%d format=%d samples=%d", image.Width, image.Height, image.Format, image.Samples)
}
