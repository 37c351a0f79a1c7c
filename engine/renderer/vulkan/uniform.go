package vulkan

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
)

// UniformBufferObject matches the std140 block bound at UniformBinding.
type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

const UniformBufferObjectSize = uint64(unsafe.Sizeof(UniformBufferObject{}))

// Bytes returns a copy of the object's memory, ready to be written to a buffer.
func (u *UniformBufferObject) Bytes() []byte {
	out := make([]byte, UniformBufferObjectSize)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(u)), UniformBufferObjectSize))
	return out
}

// UniformSource produces the uniforms for the next frame at the given extent.
type UniformSource interface {
	Uniforms(extent vk.Extent2D) UniformBufferObject
}
