package components

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/core"
	"github.com/stretchr/testify/assert"
)

func TestCameraViewIsCachedUntilMoved(t *testing.T) {
	camera := NewCamera(nil)

	view := camera.View()
	assert.False(t, camera.IsDirty)
	assert.Equal(t, mgl32.LookAtV(mgl32.Vec3{2, 2, 2}, mgl32.Vec3{}, mgl32.Vec3{0, 0, 1}), view)

	camera.SetPosition(mgl32.Vec3{0, -3, 0})
	assert.True(t, camera.IsDirty)
	assert.NotEqual(t, view, camera.View())
}

func TestCameraProjectionFlipsY(t *testing.T) {
	camera := NewCamera(nil)
	proj := camera.Projection(16.0 / 9.0)
	gl := mgl32.Perspective(mgl32.DegToRad(45), 16.0/9.0, 0.1, 10)

	assert.Equal(t, -gl[5], proj[5])
	assert.Equal(t, gl[0], proj[0])
}

func TestCameraYawKeepsDistance(t *testing.T) {
	camera := NewCamera(nil)
	before := camera.Position.Sub(camera.Target).Len()

	camera.Yaw(mgl32.DegToRad(90))

	assert.InDelta(t, before, camera.Position.Sub(camera.Target).Len(), 1e-5)
	assert.InDelta(t, -2, camera.Position.X(), 1e-5)
	assert.InDelta(t, 2, camera.Position.Y(), 1e-5)
	assert.InDelta(t, 2, camera.Position.Z(), 1e-5)
}

func TestCameraUniformsSpinWithClock(t *testing.T) {
	now := time.Unix(0, 0)
	clock := core.NewClockWithSource(func() time.Time { return now })
	clock.Start()
	camera := NewCamera(clock)

	ubo := camera.Uniforms(vk.Extent2D{Width: 800, Height: 400})
	assert.Equal(t, mgl32.Ident4(), ubo.Model)
	assert.Equal(t, camera.Projection(2), ubo.Proj)

	// 90 degrees per second for one second.
	now = now.Add(time.Second)
	ubo = camera.Uniforms(vk.Extent2D{Width: 800, Height: 400})
	assert.True(t, ubo.Model.ApproxEqualThreshold(mgl32.HomogRotate3DZ(mgl32.DegToRad(90)), 1e-5))
}

func TestCameraUniformsWithZeroHeight(t *testing.T) {
	camera := NewCamera(nil)
	ubo := camera.Uniforms(vk.Extent2D{Width: 800})
	assert.Equal(t, camera.Projection(1), ubo.Proj)
}
