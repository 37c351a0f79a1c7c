package vulkan

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
)

type Vertex struct {
	Pos      mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

const VertexStride = uint32(unsafe.Sizeof(Vertex{}))

// VertexAttributes describes Vertex for binding 0: position, color, texcoord.
func VertexAttributes() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   vk.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Color)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   vk.FormatR32g32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.TexCoord)),
		},
	}
}

func vertexBytes(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	size := len(vertices) * int(VertexStride)
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), size))
	return out
}

func indexBytes(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}

// DrawableFactory is what a Drawable needs to upload and release its resources.
type DrawableFactory interface {
	UploadBuffer(usage vk.BufferUsageFlags, data []byte) (*VulkanBuffer, error)
	UploadTexture(width, height uint32, format vk.Format, pixels []byte) (*VulkanImage, error)
	CreateSampler(config *SamplerConfig) (*VulkanSampler, error)
	DestroyBuffer(buffer *VulkanBuffer)
	DestroyImage(image *VulkanImage)
	DestroySampler(sampler *VulkanSampler)
}

// Drawable is one indexed, textured mesh in device-local memory.
type Drawable struct {
	VertexBuffer *VulkanBuffer
	IndexBuffer  *VulkanBuffer
	IndexCount   uint32
	Texture      *VulkanImage
	Sampler      *VulkanSampler
}

// NewDrawable uploads the mesh and an RGBA8 texture of width x height pixels.
func NewDrawable(factory DrawableFactory, vertices []Vertex, indices []uint32, width, height uint32, pixels []byte) (*Drawable, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("drawable needs vertices and indices, got %d and %d", len(vertices), len(indices))
	}
	if uint64(len(pixels)) != uint64(width)*uint64(height)*4 {
		return nil, fmt.Errorf("texture of %dx%d needs %d bytes, got %d", width, height, width*height*4, len(pixels))
	}

	d := &Drawable{}
	var err error
	if d.VertexBuffer, err = factory.UploadBuffer(vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit), vertexBytes(vertices)); err != nil {
		return nil, err
	}
	if d.IndexBuffer, err = factory.UploadBuffer(vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit), indexBytes(indices)); err != nil {
		d.Destroy(factory)
		return nil, err
	}
	d.IndexCount = uint32(d.IndexBuffer.Size / 4)

	if d.Texture, err = factory.UploadTexture(width, height, vk.FormatR8g8b8a8Unorm, pixels); err != nil {
		d.Destroy(factory)
		return nil, err
	}
	if d.Sampler, err = factory.CreateSampler(&SamplerConfig{
		Filter:      vk.FilterLinear,
		AddressMode: vk.SamplerAddressModeRepeat,
		Anisotropy:  16,
	}); err != nil {
		d.Destroy(factory)
		return nil, err
	}
	return d, nil
}

func (d *Drawable) Destroy(factory DrawableFactory) {
	if d.Sampler != nil {
		factory.DestroySampler(d.Sampler)
		d.Sampler = nil
	}
	if d.Texture != nil {
		factory.DestroyImage(d.Texture)
		d.Texture = nil
	}
	if d.IndexBuffer != nil {
		factory.DestroyBuffer(d.IndexBuffer)
		d.IndexBuffer = nil
	}
	if d.VertexBuffer != nil {
		factory.DestroyBuffer(d.VertexBuffer)
		d.VertexBuffer = nil
	}
	d.IndexCount = 0
}
