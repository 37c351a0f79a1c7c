package testbed

import (
	"testing"

	"github.com/google/uuid"
	"github.com/spaghettifunk/framechain/engine"
	"github.com/spaghettifunk/framechain/engine/core"
	"github.com/spaghettifunk/framechain/engine/renderer/components"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan/vulkantest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInitializedGame(t *testing.T) (*TestGame, *vulkantest.Device) {
	t.Helper()
	dev := vulkantest.NewDevice()
	g := NewTestGame(engine.DefaultApplicationConfig())
	g.Device = dev
	g.Scene = core.NewRegistry[*vulkan.Drawable]()
	g.RemoveDrawable = func(id uuid.UUID) (*vulkan.Drawable, error) {
		d, err := g.Scene.Get(id)
		if err != nil {
			return nil, err
		}
		return d, g.Scene.Remove(id)
	}
	g.Camera = components.NewCamera(nil)
	g.Events = core.NewEventBus(0)
	require.NoError(t, g.FnBoot())
	require.NoError(t, g.FnInitialize())
	return g, dev
}

func TestCheckerboard(t *testing.T) {
	pixels := Checkerboard(2, 2)
	require.Len(t, pixels, 16)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, pixels[0:4])
	assert.Equal(t, []byte{0x40, 0x40, 0x40, 0xff}, pixels[4:8])
	assert.Equal(t, []byte{0x40, 0x40, 0x40, 0xff}, pixels[8:12])
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, pixels[12:16])
}

func TestInitializeAddsQuadAndShutdownReleasesIt(t *testing.T) {
	g, dev := newInitializedGame(t)
	assert.Equal(t, 1, g.Scene.Len())
	assert.Equal(t, 2, dev.Live("buffer"))

	require.NoError(t, g.FnShutdown())
	assert.Equal(t, 0, g.Scene.Len())
	assert.Equal(t, 0, dev.Live("buffer"))
	assert.Equal(t, 0, dev.Live("image"))
	assert.Equal(t, 0, dev.Live("sampler"))

	// A second shutdown is a no-op.
	require.NoError(t, g.FnShutdown())
}

func TestArrowKeysOrbitCamera(t *testing.T) {
	g, _ := newInitializedGame(t)
	start := g.Camera.Position

	require.NoError(t, g.FnUpdate(1))
	assert.Equal(t, start, g.Camera.Position)

	g.Events.Fire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_LEFT}})
	require.NoError(t, g.FnUpdate(0.5))
	assert.NotEqual(t, start, g.Camera.Position)
	// Orbiting keeps the height and the distance to the target.
	assert.InDelta(t, start.Z(), g.Camera.Position.Z(), 1e-5)
	assert.InDelta(t, start.Len(), g.Camera.Position.Len(), 1e-5)

	g.Events.Fire(core.EventContext{Type: core.EVENT_CODE_KEY_RELEASED, Data: &core.KeyEvent{KeyCode: core.KEY_LEFT}})
	moved := g.Camera.Position
	require.NoError(t, g.FnUpdate(0.5))
	assert.Equal(t, moved, g.Camera.Position)

	g.Events.Fire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_SPACE}})
	assert.Equal(t, start, g.Camera.Position)
}
