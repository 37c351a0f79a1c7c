package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/core"
)

// VulkanDevice is the GPU-backed Device. It owns the instance, surface,
// logical device and queues; everything created through it belongs to the caller.
type VulkanDevice struct {
	Instance      vk.Instance
	Allocator     *vk.AllocationCallbacks
	Surface       vk.Surface
	debugCallback vk.DebugReportCallback

	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32
	TransferQueueIndex uint32

	graphicsQueue *VulkanQueue
	presentQueue  *VulkanQueue
	transferQueue *VulkanQueue

	// Used by UploadBuffer and UploadTexture for single-use transfer commands.
	uploadPool *VulkanCommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	locks *VulkanLockPool
}

var _ Device = (*VulkanDevice)(nil)

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Compute              bool
	Transfer             bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	ComputeFamilyIndex  int32
	TransferFamilyIndex int32
}

func (vd *VulkanDevice) GraphicsQueue() *VulkanQueue { return vd.graphicsQueue }

func (vd *VulkanDevice) PresentQueue() *VulkanQueue { return vd.presentQueue }

func (vd *VulkanDevice) createLogicalDevice() error {
	if err := vd.selectPhysicalDevice(); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{vd.GraphicsQueueIndex}
	if vd.PresentQueueIndex != vd.GraphicsQueueIndex {
		indices = append(indices, vd.PresentQueueIndex)
	}
	if vd.TransferQueueIndex != vd.GraphicsQueueIndex && vd.TransferQueueIndex != vd.PresentQueueIndex {
		indices = append(indices, vd.TransferQueueIndex)
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(vd.PhysicalDevice)
	if err != nil {
		return err
	}
	if _, ok := available["VK_KHR_portability_subset"]; ok {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var device vk.Device
	if res := vk.CreateDevice(vd.PhysicalDevice, &deviceCreateInfo, vd.Allocator, &device); res != vk.Success {
		return newCreationError("logical device", res)
	}
	vd.LogicalDevice = device
	core.LogInfo("Logical device created.")

	vd.graphicsQueue = vd.getQueue("graphics", vd.GraphicsQueueIndex)
	vd.presentQueue = vd.getQueue("present", vd.PresentQueueIndex)
	vd.transferQueue = vd.getQueue("transfer", vd.TransferQueueIndex)
	for _, idx := range indices {
		vd.locks.SetQueueFamily(idx)
	}
	core.LogInfo("Queues obtained.")

	pool, err := vd.CreateCommandPool(vd.GraphicsQueueIndex)
	if err != nil {
		return err
	}
	vd.uploadPool = pool
	core.LogInfo("Upload command pool created.")

	return nil
}

func (vd *VulkanDevice) getQueue(name string, family uint32) *VulkanQueue {
	var queue vk.Queue
	vk.GetDeviceQueue(vd.LogicalDevice, family, 0, &queue)
	return &VulkanQueue{Handle: queue, FamilyIndex: family, Name: name}
}

func (vd *VulkanDevice) destroyLogicalDevice() {
	if vd.uploadPool != nil {
		core.LogInfo("Destroying command pools...")
		vd.DestroyCommandPool(vd.uploadPool)
		vd.uploadPool = nil
	}

	vd.graphicsQueue = nil
	vd.presentQueue = nil
	vd.transferQueue = nil

	core.LogInfo("Destroying logical device...")
	if vd.LogicalDevice != nil {
		vk.DestroyDevice(vd.LogicalDevice, vd.Allocator)
		vd.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	core.LogInfo("Releasing physical device resources...")
	vd.PhysicalDevice = nil
}

// QuerySwapchainSupport refreshes the surface capabilities, formats and present modes.
func (vd *VulkanDevice) QuerySwapchainSupport() (*VulkanSwapchainSupportInfo, error) {
	return querySwapchainSupport(vd.PhysicalDevice, vd.Surface)
}

func querySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (*VulkanSwapchainSupportInfo, error) {
	info := &VulkanSwapchainSupportInfo{}

	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &info.Capabilities); res != vk.Success {
		err := fmt.Errorf("failed to get surface capabilities: %s", VulkanResultString(res, true))
		logError(err)
		return nil, err
	}
	info.Capabilities.Deref()
	info.Capabilities.CurrentExtent.Deref()
	info.Capabilities.MinImageExtent.Deref()
	info.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil); res != vk.Success {
		err := fmt.Errorf("failed to get surface formats: %s", VulkanResultString(res, true))
		logError(err)
		return nil, err
	}
	if formatCount != 0 {
		info.Formats = make([]vk.SurfaceFormat, formatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, info.Formats); res != vk.Success {
			err := fmt.Errorf("failed to get surface formats: %s", VulkanResultString(res, true))
			logError(err)
			return nil, err
		}
		for i := range info.Formats {
			info.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, nil); res != vk.Success {
		err := fmt.Errorf("failed to get physical device surface present modes: %s", VulkanResultString(res, true))
		logError(err)
		return nil, err
	}
	if modeCount != 0 {
		info.PresentModes = make([]vk.PresentMode, modeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, info.PresentModes); res != vk.Success {
			err := fmt.Errorf("failed to get physical device surface present modes: %s", VulkanResultString(res, true))
			logError(err)
			return nil, err
		}
	}
	return info, nil
}

func (vd *VulkanDevice) FormatProperties(format vk.Format) vk.FormatProperties {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(vd.PhysicalDevice, format, &properties)
	properties.Deref()
	return properties
}

// MaxUsableSampleCount is the highest sample count both color and depth
// framebuffers support.
func (vd *VulkanDevice) MaxUsableSampleCount() vk.SampleCountFlagBits {
	limits := vd.Properties.Limits
	counts := vk.SampleCountFlagBits(limits.FramebufferColorSampleCounts & limits.FramebufferDepthSampleCounts)
	for _, c := range []vk.SampleCountFlagBits{
		vk.SampleCount64Bit, vk.SampleCount32Bit, vk.SampleCount16Bit,
		vk.SampleCount8Bit, vk.SampleCount4Bit, vk.SampleCount2Bit,
	} {
		if counts&c != 0 {
			return c
		}
	}
	return vk.SampleCount1Bit
}

func (vd *VulkanDevice) findMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < vd.Memory.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryType := vd.Memory.MemoryTypes[i]
		memoryType.Deref()
		if (typeFilter&(1<<i)) != 0 && (memoryType.PropertyFlags&propertyFlags) == propertyFlags {
			return i, nil
		}
	}
	err := fmt.Errorf("unable to find suitable memory type for flags 0x%x", uint32(propertyFlags))
	core.LogWarn(err.Error())
	return 0, err
}

func (vd *VulkanDevice) WaitIdle() error {
	return vd.locks.SafeCall(DeviceManagement, func() error {
		if res := vk.DeviceWaitIdle(vd.LogicalDevice); !VulkanResultIsSuccess(res) {
			err := fmt.Errorf("vkDeviceWaitIdle failed with %s", VulkanResultString(res, true))
			logError(err)
			return err
		}
		return nil
	})
}

func (vd *VulkanDevice) selectPhysicalDevice() error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(vd.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return newCreationError("physical device list", res)
	}
	if physicalDeviceCount == 0 {
		err := fmt.Errorf("no devices which support Vulkan were found")
		logError(err)
		return err
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(vd.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return newCreationError("physical device list", res)
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		SamplerAnisotropy:    true,
		DiscreteGPU:          true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}
	if runtime.GOOS == "darwin" {
		requirements.DiscreteGPU = false
	}

	// A second pass drops the discrete requirement so laptops with only an
	// integrated GPU still run.
	for pass := 0; pass < 2; pass++ {
		for _, candidate := range physicalDevices {
			var properties vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(candidate, &properties)
			properties.Deref()
			properties.Limits.Deref()

			var features vk.PhysicalDeviceFeatures
			vk.GetPhysicalDeviceFeatures(candidate, &features)
			features.Deref()

			var memory vk.PhysicalDeviceMemoryProperties
			vk.GetPhysicalDeviceMemoryProperties(candidate, &memory)
			memory.Deref()

			queueInfo, ok := PhysicalDeviceMeetsRequirements(candidate, vd.Surface, &properties, &features, &requirements)
			if !ok {
				continue
			}

			logPhysicalDevice(&properties, &memory)

			vd.PhysicalDevice = candidate
			vd.GraphicsQueueIndex = uint32(queueInfo.GraphicsFamilyIndex)
			vd.PresentQueueIndex = uint32(queueInfo.PresentFamilyIndex)
			vd.TransferQueueIndex = uint32(queueInfo.TransferFamilyIndex)

			// Keep a copy of properties, features and memory info for later use.
			vd.Properties = properties
			vd.Features = features
			vd.Memory = memory

			core.LogInfo("Physical device selected.")
			return nil
		}
		if !requirements.DiscreteGPU {
			break
		}
		requirements.DiscreteGPU = false
	}

	err := fmt.Errorf("no physical devices were found which meet the requirements")
	logError(err)
	return err
}

func logPhysicalDevice(properties *vk.PhysicalDeviceProperties, memory *vk.PhysicalDeviceMemoryProperties) {
	core.LogInfo("Selected device: '%s'.", deviceName(properties))
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}

	core.LogInfo(
		"GPU Driver version: %d.%d.%d",
		vk.Version(properties.DriverVersion).Major(),
		vk.Version(properties.DriverVersion).Minor(),
		vk.Version(properties.DriverVersion).Patch(),
	)
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch(),
	)

	for j := uint32(0); j < memory.MemoryHeapCount; j++ {
		heap := memory.MemoryHeaps[j]
		heap.Deref()
		memorySizeGib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(heap.Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", memorySizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", memorySizeGib)
		}
	}
}

func deviceName(properties *vk.PhysicalDeviceProperties) string {
	return vk.ToString(properties.DeviceName[:])
}

func deviceExtensions(device vk.PhysicalDevice) (map[string]struct{}, error) {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		err := fmt.Errorf("error in EnumerateDeviceExtensionProperties: %s", VulkanResultString(res, true))
		logError(err)
		return nil, err
	}
	out := make(map[string]struct{}, count)
	if count == 0 {
		return out, nil
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		err := fmt.Errorf("error in EnumerateDeviceExtensionProperties: %s", VulkanResultString(res, true))
		logError(err)
		return nil, err
	}
	for i := range available {
		available[i].Deref()
		out[vk.ToString(available[i].ExtensionName[:])] = struct{}{}
	}
	return out, nil
}

// PhysicalDeviceMeetsRequirements checks queues, surface support, extensions and
// features, returning the queue family layout of a suitable device.
func PhysicalDeviceMeetsRequirements(
	device vk.PhysicalDevice,
	surface vk.Surface,
	properties *vk.PhysicalDeviceProperties,
	features *vk.PhysicalDeviceFeatures,
	requirements *VulkanPhysicalDeviceRequirements,
) (*VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	queueInfo := &VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: -1,
		PresentFamilyIndex:  -1,
		ComputeFamilyIndex:  -1,
		TransferFamilyIndex: -1,
	}

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return nil, false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	minTransferScore := 255
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := vk.QueueFlagBits(queueFamilies[i].QueueFlags)
		currentTransferScore := 0

		if flags&vk.QueueGraphicsBit != 0 && queueInfo.GraphicsFamilyIndex < 0 {
			queueInfo.GraphicsFamilyIndex = int32(i)
			currentTransferScore++
		}
		if flags&vk.QueueComputeBit != 0 && queueInfo.ComputeFamilyIndex < 0 {
			queueInfo.ComputeFamilyIndex = int32(i)
			currentTransferScore++
		}
		// Prefer the family doing the least other work, likely a dedicated transfer queue.
		if flags&vk.QueueTransferBit != 0 && currentTransferScore <= minTransferScore {
			minTransferScore = currentTransferScore
			queueInfo.TransferFamilyIndex = int32(i)
		}

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return nil, false
		}
		// Prefer presenting from the graphics family.
		if supportsPresent == vk.True && (queueInfo.PresentFamilyIndex < 0 || int32(i) == queueInfo.GraphicsFamilyIndex) {
			queueInfo.PresentFamilyIndex = int32(i)
		}
	}

	core.LogInfo("Graphics | Present | Compute | Transfer | Name")
	core.LogInfo("       %t |       %t |       %t |        %t | %s",
		queueInfo.GraphicsFamilyIndex >= 0,
		queueInfo.PresentFamilyIndex >= 0,
		queueInfo.ComputeFamilyIndex >= 0,
		queueInfo.TransferFamilyIndex >= 0,
		deviceName(properties))

	if (requirements.Graphics && queueInfo.GraphicsFamilyIndex < 0) ||
		(requirements.Present && queueInfo.PresentFamilyIndex < 0) ||
		(requirements.Compute && queueInfo.ComputeFamilyIndex < 0) ||
		(requirements.Transfer && queueInfo.TransferFamilyIndex < 0) {
		return nil, false
	}
	core.LogInfo("Device meets queue requirements.")
	core.LogDebug("Graphics Family Index: %d", queueInfo.GraphicsFamilyIndex)
	core.LogDebug("Present Family Index:  %d", queueInfo.PresentFamilyIndex)
	core.LogDebug("Transfer Family Index: %d", queueInfo.TransferFamilyIndex)
	core.LogDebug("Compute Family Index:  %d", queueInfo.ComputeFamilyIndex)

	support, err := querySwapchainSupport(device, surface)
	if err != nil || len(support.Formats) < 1 || len(support.PresentModes) < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return nil, false
	}

	if len(requirements.DeviceExtensionNames) > 0 {
		available, err := deviceExtensions(device)
		if err != nil {
			return nil, false
		}
		for _, name := range requirements.DeviceExtensionNames {
			if _, ok := available[name]; !ok {
				core.LogInfo("Required extension not found: '%s', skipping device.", name)
				return nil, false
			}
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return nil, false
	}
	return queueInfo, true
}
