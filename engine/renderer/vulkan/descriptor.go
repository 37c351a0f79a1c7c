package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanDescriptorSetLayout struct {
	Handle   vk.DescriptorSetLayout
	Bindings []vk.DescriptorSetLayoutBinding
}

type VulkanDescriptorPool struct {
	Handle  vk.DescriptorPool
	MaxSets uint32
}

type VulkanDescriptorSet struct {
	Handle vk.DescriptorSet
}

// DefaultDescriptorBindings is the per-draw layout: the image's uniform buffer
// for the vertex stage and a combined image sampler for the fragment stage.
func DefaultDescriptorBindings() []vk.DescriptorSetLayoutBinding {
	return []vk.DescriptorSetLayoutBinding{
		{
			Binding:         UniformBinding,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		},
		{
			Binding:         SamplerBinding,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
}

func (vd *VulkanDevice) CreateDescriptorSetLayout(bindings []vk.DescriptorSetLayoutBinding) (*VulkanDescriptorSetLayout, error) {
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	out := &VulkanDescriptorSetLayout{Bindings: bindings}
	err := vd.locks.SafeCall(DescriptorManagement, func() error {
		var layout vk.DescriptorSetLayout
		if res := vk.CreateDescriptorSetLayout(vd.LogicalDevice, &layoutInfo, vd.Allocator, &layout); res != vk.Success {
			return newCreationError("descriptor set layout", res)
		}
		out.Handle = layout
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (vd *VulkanDevice) DestroyDescriptorSetLayout(layout *VulkanDescriptorSetLayout) {
	if layout == nil || layout.Handle == vk.NullDescriptorSetLayout {
		return
	}
	_ = vd.locks.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorSetLayout(vd.LogicalDevice, layout.Handle, vd.Allocator)
		layout.Handle = vk.NullDescriptorSetLayout
		return nil
	})
}

func (vd *VulkanDevice) CreateDescriptorPool(maxSets uint32, sizes []vk.DescriptorPoolSize) (*VulkanDescriptorPool, error) {
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
		MaxSets:       maxSets,
	}
	out := &VulkanDescriptorPool{MaxSets: maxSets}
	err := vd.locks.SafeCall(DescriptorManagement, func() error {
		var pool vk.DescriptorPool
		if res := vk.CreateDescriptorPool(vd.LogicalDevice, &poolInfo, vd.Allocator, &pool); res != vk.Success {
			return newCreationError("descriptor pool", res)
		}
		out.Handle = pool
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DestroyDescriptorPool also frees every set allocated from it.
func (vd *VulkanDevice) DestroyDescriptorPool(pool *VulkanDescriptorPool) {
	if pool == nil || pool.Handle == vk.NullDescriptorPool {
		return
	}
	_ = vd.locks.SafeCall(DescriptorManagement, func() error {
		vk.DestroyDescriptorPool(vd.LogicalDevice, pool.Handle, vd.Allocator)
		pool.Handle = vk.NullDescriptorPool
		return nil
	})
}

func (vd *VulkanDevice) AllocateDescriptorSets(pool *VulkanDescriptorPool, layout *VulkanDescriptorSetLayout, count uint32) ([]*VulkanDescriptorSet, error) {
	out := make([]*VulkanDescriptorSet, 0, count)
	err := vd.locks.SafeCall(DescriptorManagement, func() error {
		for i := uint32(0); i < count; i++ {
			allocInfo := vk.DescriptorSetAllocateInfo{
				SType:              vk.StructureTypeDescriptorSetAllocateInfo,
				DescriptorPool:     pool.Handle,
				DescriptorSetCount: 1,
				PSetLayouts:        []vk.DescriptorSetLayout{layout.Handle},
			}
			var set vk.DescriptorSet
			if res := vk.AllocateDescriptorSets(vd.LogicalDevice, &allocInfo, &set); res != vk.Success {
				return newCreationError("descriptor set", res)
			}
			out = append(out, &VulkanDescriptorSet{Handle: set})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDescriptorSet points the uniform binding at the whole uniform buffer
// and the sampler binding at texture.
func (vd *VulkanDevice) UpdateDescriptorSet(set *VulkanDescriptorSet, uniform *VulkanBuffer, texture *VulkanImage, sampler *VulkanSampler) {
	writes := []vk.WriteDescriptorSet{
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set.Handle,
			DstBinding:      UniformBinding,
			DstArrayElement: 0,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: uniform.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(uniform.Size),
			}},
		},
		{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set.Handle,
			DstBinding:      SamplerBinding,
			DstArrayElement: 0,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			PImageInfo: []vk.DescriptorImageInfo{{
				ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
				ImageView:   texture.View,
				Sampler:     sampler.Handle,
			}},
		},
	}
	_ = vd.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(vd.LogicalDevice, uint32(len(writes)), writes, 0, nil)
		return nil
	})
}

func (vd *VulkanDevice) CmdBindDescriptorSet(cb *VulkanCommandBuffer, pipeline *VulkanPipeline, set *VulkanDescriptorSet) {
	vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, pipeline.PipelineLayout, 0, 1, []vk.DescriptorSet{set.Handle}, 0, nil)
}
