package vulkan

import (
	vk "github.com/goki/vulkan"
)

// VulkanShaderStage is a shader module and the stage it is bound to.
type VulkanShaderStage struct {
	Handle vk.ShaderModule
	Stage  vk.ShaderStageFlagBits
}

// CreateShaderModule validates the SPIR-V blob and creates a module from it.
func (vd *VulkanDevice) CreateShaderModule(stage vk.ShaderStageFlagBits, code []byte) (*VulkanShaderStage, error) {
	words, err := SPIRVWords(code)
	if err != nil {
		return nil, &ResourceCreationError{Resource: "shader module", Result: vk.ErrorInvalidShaderNv, Err: err}
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}

	out := &VulkanShaderStage{Stage: stage}
	err = vd.locks.SafeCall(ShaderManagement, func() error {
		var module vk.ShaderModule
		if res := vk.CreateShaderModule(vd.LogicalDevice, &createInfo, vd.Allocator, &module); res != vk.Success {
			return newCreationError("shader module", res)
		}
		out.Handle = module
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (vd *VulkanDevice) DestroyShaderModule(stage *VulkanShaderStage) {
	if stage == nil || stage.Handle == vk.NullShaderModule {
		return
	}
	_ = vd.locks.SafeCall(ShaderManagement, func() error {
		vk.DestroyShaderModule(vd.LogicalDevice, stage.Handle, vd.Allocator)
		stage.Handle = vk.NullShaderModule
		return nil
	})
}

func (s *VulkanShaderStage) createInfo() vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  s.Stage,
		Module: s.Handle,
		PName:  VulkanSafeString("main"),
	}
}
