package vulkan_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/core"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan/vulkantest"
	"github.com/stretchr/testify/require"
)

// Smallest blob that passes SPIR-V validation: the magic and one word.
var testShader = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x00, 0x00}

var quadVertices = []vulkan.Vertex{
	{Pos: mgl32.Vec3{-0.5, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}, TexCoord: mgl32.Vec2{1, 0}},
	{Pos: mgl32.Vec3{0.5, -0.5, 0}, Color: mgl32.Vec3{0, 1, 0}, TexCoord: mgl32.Vec2{0, 0}},
	{Pos: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}, TexCoord: mgl32.Vec2{0, 1}},
	{Pos: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{1, 1, 1}, TexCoord: mgl32.Vec2{1, 1}},
}

var quadIndices = []uint32{0, 1, 2, 2, 3, 0}

func newQuad(t *testing.T, dev *vulkantest.Device) *vulkan.Drawable {
	t.Helper()
	pixels := make([]byte, 2*2*4)
	for i := range pixels {
		pixels[i] = 0xff
	}
	quad, err := vulkan.NewDrawable(dev, quadVertices, quadIndices, 2, 2, pixels)
	require.NoError(t, err)
	return quad
}

// fixedUniforms returns the same matrices every frame, with the extent folded
// into the model so tests can see which extent was used.
type fixedUniforms struct {
	calls int
}

func (u *fixedUniforms) Uniforms(extent vk.Extent2D) vulkan.UniformBufferObject {
	u.calls++
	return vulkan.UniformBufferObject{
		Model: mgl32.Scale3D(float32(extent.Width), float32(extent.Height), 1),
		View:  mgl32.Ident4(),
		Proj:  mgl32.Ident4(),
	}
}

func testConfig(t *testing.T, dev *vulkantest.Device) *vulkan.SwapchainConfig {
	t.Helper()
	scene := core.NewRegistry[*vulkan.Drawable]()
	quad := newQuad(t, dev)
	scene.Add(quad)
	t.Cleanup(func() { quad.Destroy(dev) })
	return &vulkan.SwapchainConfig{
		Width:          800,
		Height:         600,
		VertexShader:   testShader,
		FragmentShader: testShader,
		Scene:          scene,
		Uniforms:       &fixedUniforms{},
	}
}
