package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/core"
)

type VulkanBuffer struct {
	Handle      vk.Buffer
	Memory      vk.DeviceMemory
	Size        uint64
	Usage       vk.BufferUsageFlags
	MemoryFlags vk.MemoryPropertyFlags
}

func (vd *VulkanDevice) CreateBuffer(size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	out := &VulkanBuffer{
		Size:        size,
		Usage:       usage,
		MemoryFlags: properties,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive, // NOTE: Only used in one queue.
	}

	err := vd.locks.SafeCall(BufferManagement, func() error {
		var buffer vk.Buffer
		if res := vk.CreateBuffer(vd.LogicalDevice, &bufferInfo, vd.Allocator, &buffer); res != vk.Success {
			return newCreationError("buffer", res)
		}

		var requirements vk.MemoryRequirements
		vk.GetBufferMemoryRequirements(vd.LogicalDevice, buffer, &requirements)
		requirements.Deref()

		memoryIndex, err := vd.findMemoryIndex(requirements.MemoryTypeBits, properties)
		if err != nil {
			vk.DestroyBuffer(vd.LogicalDevice, buffer, vd.Allocator)
			return &ResourceCreationError{Resource: "buffer memory", Result: vk.ErrorOutOfDeviceMemory, Err: err}
		}

		allocateInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  requirements.Size,
			MemoryTypeIndex: memoryIndex,
		}
		var memory vk.DeviceMemory
		if res := vk.AllocateMemory(vd.LogicalDevice, &allocateInfo, vd.Allocator, &memory); res != vk.Success {
			vk.DestroyBuffer(vd.LogicalDevice, buffer, vd.Allocator)
			return newCreationError("buffer memory", res)
		}
		if res := vk.BindBufferMemory(vd.LogicalDevice, buffer, memory, 0); res != vk.Success {
			vk.FreeMemory(vd.LogicalDevice, memory, vd.Allocator)
			vk.DestroyBuffer(vd.LogicalDevice, buffer, vd.Allocator)
			return newCreationError("buffer memory binding", res)
		}

		out.Handle = buffer
		out.Memory = memory
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (vd *VulkanDevice) DestroyBuffer(buffer *VulkanBuffer) {
	if buffer == nil {
		return
	}
	_ = vd.locks.SafeCall(BufferManagement, func() error {
		if buffer.Memory != vk.NullDeviceMemory {
			vk.FreeMemory(vd.LogicalDevice, buffer.Memory, vd.Allocator)
			buffer.Memory = vk.NullDeviceMemory
		}
		if buffer.Handle != vk.NullBuffer {
			vk.DestroyBuffer(vd.LogicalDevice, buffer.Handle, vd.Allocator)
			buffer.Handle = vk.NullBuffer
		}
		return nil
	})
}

// LoadBuffer writes data into a host-visible buffer at offset.
func (vd *VulkanDevice) LoadBuffer(buffer *VulkanBuffer, offset uint64, data []byte) error {
	if offset+uint64(len(data)) > buffer.Size {
		err := fmt.Errorf("buffer write of %d bytes at offset %d overflows buffer of %d bytes", len(data), offset, buffer.Size)
		logError(err)
		return err
	}
	if buffer.MemoryFlags&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) == 0 {
		err := fmt.Errorf("buffer memory is not host visible")
		logError(err)
		return err
	}
	return vd.locks.SafeCall(MemoryManagement, func() error {
		var pData unsafe.Pointer
		if res := vk.MapMemory(vd.LogicalDevice, buffer.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &pData); res != vk.Success {
			err := fmt.Errorf("failed to map buffer memory: %s", VulkanResultString(res, true))
			logError(err)
			return err
		}
		n := vk.Memcopy(pData, data)
		vk.UnmapMemory(vd.LogicalDevice, buffer.Memory)
		if n != len(data) {
			err := fmt.Errorf("failed to copy buffer data, %d != %d", n, len(data))
			logError(err)
			return err
		}
		return nil
	})
}

func (vd *VulkanDevice) createStagingBuffer(data []byte) (*VulkanBuffer, error) {
	staging, err := vd.CreateBuffer(
		uint64(len(data)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
	)
	if err != nil {
		return nil, err
	}
	if err := vd.LoadBuffer(staging, 0, data); err != nil {
		vd.DestroyBuffer(staging)
		return nil, err
	}
	return staging, nil
}

// UploadBuffer creates a device-local buffer holding data, copied through a
// staging buffer on the graphics queue. Blocks until the copy finished.
func (vd *VulkanDevice) UploadBuffer(usage vk.BufferUsageFlags, data []byte) (*VulkanBuffer, error) {
	if len(data) == 0 {
		err := fmt.Errorf("cannot upload an empty buffer")
		logError(err)
		return nil, err
	}
	staging, err := vd.createStagingBuffer(data)
	if err != nil {
		return nil, err
	}
	defer vd.DestroyBuffer(staging)

	buffer, err := vd.CreateBuffer(
		uint64(len(data)),
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	)
	if err != nil {
		return nil, err
	}

	err = vd.singleUseCommands(func(cb *VulkanCommandBuffer) error {
		region := vk.BufferCopy{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      vk.DeviceSize(len(data)),
		}
		vk.CmdCopyBuffer(cb.Handle, staging.Handle, buffer.Handle, 1, []vk.BufferCopy{region})
		return nil
	})
	if err != nil {
		vd.DestroyBuffer(buffer)
		return nil, err
	}
	core.LogDebug("uploaded %d bytes to device-local buffer", len(data))
	return buffer, nil
}
