package vulkan_test

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan/vulkantest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVertexLayout(t *testing.T) {
	assert.Equal(t, uint32(32), vulkan.VertexStride)

	attrs := vulkan.VertexAttributes()
	require.Len(t, attrs, 3)
	assert.Equal(t, uint32(0), attrs[0].Offset)
	assert.Equal(t, uint32(12), attrs[1].Offset)
	assert.Equal(t, uint32(24), attrs[2].Offset)
	assert.Equal(t, vk.FormatR32g32Sfloat, attrs[2].Format)
	for i, a := range attrs {
		assert.Equal(t, uint32(i), a.Location)
	}
}

func TestNewDrawableUploadsMesh(t *testing.T) {
	dev := vulkantest.NewDevice()
	quad := newQuad(t, dev)

	assert.Equal(t, uint32(len(quadIndices)), quad.IndexCount)
	assert.Equal(t, uint64(len(quadVertices))*uint64(vulkan.VertexStride), quad.VertexBuffer.Size)
	assert.NotZero(t, quad.VertexBuffer.Usage&vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))

	indices := dev.BufferContents(quad.IndexBuffer)
	require.Len(t, indices, len(quadIndices)*4)
	for i, want := range quadIndices {
		assert.Equal(t, want, binary.LittleEndian.Uint32(indices[i*4:]))
	}

	vertices := dev.BufferContents(quad.VertexBuffer)
	first := *(*vulkan.Vertex)(unsafe.Pointer(&vertices[0]))
	assert.Equal(t, mgl32.Vec3{-0.5, -0.5, 0}, first.Pos)

	assert.Equal(t, vk.FormatR8g8b8a8Unorm, quad.Texture.Format)
	assert.Equal(t, 4, dev.Live(""))

	quad.Destroy(dev)
	assert.Equal(t, 0, dev.Live(""))
	assert.Empty(t, dev.Misuse())
}

func TestNewDrawableValidatesInput(t *testing.T) {
	dev := vulkantest.NewDevice()

	_, err := vulkan.NewDrawable(dev, nil, quadIndices, 1, 1, make([]byte, 4))
	assert.Error(t, err)

	_, err = vulkan.NewDrawable(dev, quadVertices, quadIndices, 2, 2, make([]byte, 4))
	assert.Error(t, err)
	assert.Equal(t, 0, dev.Live(""))
}

func TestNewDrawableReleasesOnFailure(t *testing.T) {
	dev := vulkantest.NewDevice()
	dev.FailCreate(vulkantest.KindSampler, 0)

	_, err := vulkan.NewDrawable(dev, quadVertices, quadIndices, 1, 1, make([]byte, 4))
	require.ErrorIs(t, err, vulkan.ErrResourceCreation)
	assert.Equal(t, 0, dev.Live(""))
}

func TestUniformBufferObjectBytes(t *testing.T) {
	ubo := vulkan.UniformBufferObject{
		Model: mgl32.Translate3D(1, 2, 3),
		View:  mgl32.Ident4(),
		Proj:  mgl32.Ident4(),
	}
	assert.Equal(t, uint64(3*16*4), vulkan.UniformBufferObjectSize)

	b := ubo.Bytes()
	require.Len(t, b, int(vulkan.UniformBufferObjectSize))
	// Column-major: the translation sits in elements 12..14 of the model.
	assert.Equal(t, float32(3), *(*float32)(unsafe.Pointer(&b[14*4])))

	b[0] = 0xff
	assert.Equal(t, float32(1), ubo.Model[0])
}
