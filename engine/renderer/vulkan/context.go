package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/core"
)

// SurfaceProvider is the window side of device creation.
type SurfaceProvider interface {
	RequiredInstanceExtensions() []string
	InstanceProcAddress() unsafe.Pointer
	CreateSurface(instance interface{}) (uintptr, error)
}

type DeviceConfig struct {
	ApplicationName string
	// Enables VK_LAYER_KHRONOS_validation and routes its reports to the logger.
	Validation bool
}

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// NewVulkanDevice creates the instance, the optional debug callback, the
// window surface, and then selects a GPU and creates the logical device.
func NewVulkanDevice(surface SurfaceProvider, config *DeviceConfig) (*VulkanDevice, error) {
	procAddr := surface.InstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		logError(err)
		return nil, err
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		err = fmt.Errorf("failed to initialize vk: %w", err)
		logError(err)
		return nil, err
	}

	vd := &VulkanDevice{
		Allocator: nil,
		locks:     NewVulkanLockPool(),
	}

	if err := vd.createInstance(surface, config); err != nil {
		return nil, err
	}

	if config.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vd.Instance, &debugCreateInfo, vd.Allocator, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			vd.Destroy()
			return nil, err
		}
		vd.debugCallback = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	core.LogDebug("Creating Vulkan surface...")
	handle, err := surface.CreateSurface(vd.Instance)
	if err != nil {
		vd.Destroy()
		return nil, &ResourceCreationError{Resource: "surface", Result: vk.ErrorInitializationFailed, Err: err}
	}
	vd.Surface = vk.SurfaceFromPointer(handle)
	core.LogDebug("Vulkan surface created.")

	if err := vd.createLogicalDevice(); err != nil {
		vd.Destroy()
		return nil, err
	}

	core.LogInfo("Vulkan device initialized successfully.")
	return vd, nil
}

func (vd *VulkanDevice) createInstance(surface SurfaceProvider, config *DeviceConfig) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(config.ApplicationName),
		PEngineName:        VulkanSafeString("Framechain"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := appendUnique([]string{"VK_KHR_surface"}, surface.RequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = appendUnique(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if config.Validation {
		requiredExtensions = appendUnique(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	core.LogDebug("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	var layers []string
	if config.Validation {
		core.LogInfo("Validation layers enabled. Enumerating...")
		if err := checkValidationLayers([]string{validationLayerName}); err != nil {
			return err
		}
		layers = []string{validationLayerName}
		core.LogInfo("All required validation layers are present.")
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, vd.Allocator, &instance); res != vk.Success {
		return newCreationError("instance", res)
	}
	if err := vk.InitInstance(instance); err != nil {
		logError(err)
		vk.DestroyInstance(instance, vd.Allocator)
		return err
	}
	vd.Instance = instance
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func checkValidationLayers(required []string) error {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return newCreationError("layer list", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return newCreationError("layer list", res)
	}
	for _, name := range required {
		core.LogDebug("Searching for layer: %s...", name)
		found := false
		for j := range available {
			available[j].Deref()
			if vk.ToString(available[j].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			err := fmt.Errorf("required validation layer is missing: %s", name)
			logError(err)
			return err
		}
	}
	return nil
}

func appendUnique(list []string, names ...string) []string {
	for _, n := range names {
		dup := false
		for _, have := range list {
			if have == n {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, n)
		}
	}
	return list
}

// Destroy releases the device, surface, debug callback and instance, in that order.
// Every resource created through the device must already be destroyed.
func (vd *VulkanDevice) Destroy() {
	if vd.LogicalDevice != nil {
		core.LogDebug("Destroying Vulkan device...")
		vd.destroyLogicalDevice()
	}

	if vd.Surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(vd.Instance, vd.Surface, vd.Allocator)
		vd.Surface = vk.NullSurface
	}

	if vd.debugCallback != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vd.Instance, vd.debugCallback, vd.Allocator)
		vd.debugCallback = vk.NullDebugReportCallback
	}

	if vd.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vd.Instance, vd.Allocator)
		vd.Instance = nil
	}
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
