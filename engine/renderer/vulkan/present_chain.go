package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/core"
)

// VulkanPresentChain is the presentation engine's swapchain and the views onto
// its images. The images are owned by the chain and released with it.
type VulkanPresentChain struct {
	Handle      vk.Swapchain
	Images      []*VulkanImage
	Format      vk.SurfaceFormat
	Extent      vk.Extent2D
	PresentMode vk.PresentMode
}

type PresentChainConfig struct {
	Format       vk.SurfaceFormat
	PresentMode  vk.PresentMode
	Extent       vk.Extent2D
	ImageCount   uint32
	PreTransform vk.SurfaceTransformFlagBits
}

func (vd *VulkanDevice) CreatePresentChain(config *PresentChainConfig) (*VulkanPresentChain, error) {
	chain := &VulkanPresentChain{
		Format:      config.Format,
		Extent:      config.Extent,
		PresentMode: config.PresentMode,
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          vd.Surface,
		MinImageCount:    config.ImageCount,
		ImageFormat:      config.Format.Format,
		ImageColorSpace:  config.Format.ColorSpace,
		ImageExtent:      config.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     config.PreTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      config.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	// Setup the queue family indices
	if vd.GraphicsQueueIndex != vd.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{vd.GraphicsQueueIndex, vd.PresentQueueIndex}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	err := vd.locks.SafeCall(SwapchainManagement, func() error {
		var swapchainHandle vk.Swapchain
		if res := vk.CreateSwapchain(vd.LogicalDevice, &swapchainCreateInfo, vd.Allocator, &swapchainHandle); res != vk.Success {
			return newCreationError("swapchain", res)
		}
		chain.Handle = swapchainHandle
		return nil
	})
	if err != nil {
		return nil, err
	}

	images, err := vd.swapchainImages(chain.Handle)
	if err != nil {
		vd.DestroyPresentChain(chain)
		return nil, err
	}

	// Views
	chain.Images = make([]*VulkanImage, 0, len(images))
	for _, img := range images {
		view, err := vd.createImageView(img, config.Format.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			vd.DestroyPresentChain(chain)
			return nil, err
		}
		chain.Images = append(chain.Images, &VulkanImage{
			Handle:  img,
			View:    view,
			Width:   config.Extent.Width,
			Height:  config.Extent.Height,
			Format:  config.Format.Format,
			Samples: vk.SampleCount1Bit,
		})
	}

	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d", chain.Extent.Width, chain.Extent.Height, len(chain.Images), chain.PresentMode)
	return chain, nil
}

func (vd *VulkanDevice) swapchainImages(handle vk.Swapchain) ([]vk.Image, error) {
	var imageCount uint32
	if res := vk.GetSwapchainImages(vd.LogicalDevice, handle, &imageCount, nil); res != vk.Success {
		return nil, newCreationError("swapchain images", res)
	}
	images := make([]vk.Image, imageCount)
	if res := vk.GetSwapchainImages(vd.LogicalDevice, handle, &imageCount, images); res != vk.Success {
		return nil, newCreationError("swapchain images", res)
	}
	if imageCount == 0 {
		err := &ResourceCreationError{Resource: "swapchain images", Result: vk.ErrorInitializationFailed, Err: fmt.Errorf("swapchain returned no images")}
		logError(err)
		return nil, err
	}
	return images[:imageCount], nil
}

// DestroyPresentChain destroys the views, then the swapchain which owns the images.
func (vd *VulkanDevice) DestroyPresentChain(chain *VulkanPresentChain) {
	if chain == nil {
		return
	}
	_ = vd.locks.SafeCall(ImageManagement, func() error {
		for _, img := range chain.Images {
			if img.View != vk.NullImageView {
				vk.DestroyImageView(vd.LogicalDevice, img.View, vd.Allocator)
				img.View = vk.NullImageView
			}
			img.Handle = vk.NullImage
		}
		return nil
	})
	chain.Images = nil
	if chain.Handle == vk.NullSwapchain {
		return
	}
	_ = vd.locks.SafeCall(SwapchainManagement, func() error {
		vk.DestroySwapchain(vd.LogicalDevice, chain.Handle, vd.Allocator)
		chain.Handle = vk.NullSwapchain
		return nil
	})
}
