package components

import (
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/core"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
)

/**
 * @brief A look-at camera that also spins the model around the up axis.
 * It is the uniform source for the frame resource set.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
	/** @brief Vertical field of view, in degrees. */
	FovY      float32
	Near, Far float32
	/** @brief Model rotation speed, in degrees per second. */
	SpinSpeed float32

	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty    bool
	ViewMatrix mgl32.Mat4

	clock *core.Clock
}

var _ vulkan.UniformSource = (*Camera)(nil)

func NewCamera(clock *core.Clock) *Camera {
	camera := &Camera{clock: clock}
	camera.Reset()
	return camera
}

// Reset puts the camera at (2, 2, 2) looking at the origin with Z up.
func (c *Camera) Reset() {
	c.Position = mgl32.Vec3{2, 2, 2}
	c.Target = mgl32.Vec3{0, 0, 0}
	c.Up = mgl32.Vec3{0, 0, 1}
	c.FovY = 45
	c.Near = 0.1
	c.Far = 10
	c.SpinSpeed = 90
	c.IsDirty = true
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) SetTarget(target mgl32.Vec3) {
	c.Target = target
	c.IsDirty = true
}

func (c *Camera) View() mgl32.Mat4 {
	if c.IsDirty {
		c.ViewMatrix = mgl32.LookAtV(c.Position, c.Target, c.Up)
		c.IsDirty = false
	}
	return c.ViewMatrix
}

// Projection is a perspective projection for Vulkan clip space, where Y
// points down.
func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
	proj[5] *= -1
	return proj
}

// Yaw orbits the camera around the target by amount radians.
func (c *Camera) Yaw(amount float32) {
	rotation := mgl32.HomogRotate3D(amount, c.Up.Normalize())
	offset := c.Position.Sub(c.Target)
	c.Position = c.Target.Add(mgl32.TransformCoordinate(offset, rotation))
	c.IsDirty = true
}

// Uniforms spins the model by the time elapsed on the camera clock.
func (c *Camera) Uniforms(extent vk.Extent2D) vulkan.UniformBufferObject {
	var elapsed float32
	if c.clock != nil {
		c.clock.Update()
		elapsed = float32(c.clock.Elapsed())
	}
	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	return vulkan.UniformBufferObject{
		Model: mgl32.HomogRotate3D(mgl32.DegToRad(elapsed*c.SpinSpeed), c.Up.Normalize()),
		View:  c.View(),
		Proj:  c.Projection(aspect),
	}
}
