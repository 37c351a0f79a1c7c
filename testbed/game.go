package testbed

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/spaghettifunk/framechain/engine"
	"github.com/spaghettifunk/framechain/engine/core"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
)

// Radians per second the camera orbits while the arrow keys are held.
const orbitSpeed = 1.5

type TestGame struct {
	*engine.Game
}

type gameState struct {
	quad   *vulkan.Drawable
	quadID uuid.UUID

	orbit  float32
	width  uint32
	height uint32
}

// Vertex winding and texture coordinates of a unit quad in the XY plane.
var quadVertices = []vulkan.Vertex{
	{Pos: mgl32.Vec3{-0.5, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}, TexCoord: mgl32.Vec2{1, 0}},
	{Pos: mgl32.Vec3{0.5, -0.5, 0}, Color: mgl32.Vec3{0, 1, 0}, TexCoord: mgl32.Vec2{0, 0}},
	{Pos: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}, TexCoord: mgl32.Vec2{0, 1}},
	{Pos: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{1, 1, 1}, TexCoord: mgl32.Vec2{1, 1}},
}

var quadIndices = []uint32{0, 1, 2, 2, 3, 0}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State:             &gameState{},
		},
	}

	tg.FnBoot = tg.Boot
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Boot() error {
	core.LogInfo("booting testbed...")
	return nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	quad, err := vulkan.NewDrawable(g.Device, quadVertices, quadIndices, 8, 8, Checkerboard(8, 8))
	if err != nil {
		core.LogError("failed to upload the test quad")
		return err
	}
	st := g.state()
	st.quad = quad
	st.quadID = g.Scene.Add(quad)

	g.Events.Register(core.EVENT_CODE_KEY_PRESSED, g.onKey)
	g.Events.Register(core.EVENT_CODE_KEY_RELEASED, g.onKey)
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	st := g.state()
	if st.orbit != 0 {
		g.Camera.Yaw(st.orbit * float32(deltaTime))
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	st := g.state()
	st.width = width
	st.height = height
	core.LogDebug("testbed drawable is now %dx%d", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	st := g.state()
	if st.quad == nil {
		return nil
	}
	if _, err := g.RemoveDrawable(st.quadID); err != nil {
		return err
	}
	st.quad.Destroy(g.Device)
	st.quad = nil
	return nil
}

func (g *TestGame) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		return false
	}
	st := g.state()
	pressed := context.Type == core.EVENT_CODE_KEY_PRESSED
	switch ke.KeyCode {
	case core.KEY_LEFT:
		st.orbit = 0
		if pressed {
			st.orbit = orbitSpeed
		}
	case core.KEY_RIGHT:
		st.orbit = 0
		if pressed {
			st.orbit = -orbitSpeed
		}
	case core.KEY_SPACE:
		if pressed {
			g.Camera.Reset()
		}
	default:
		return false
	}
	return true
}

// Checkerboard returns width x height RGBA8 pixels alternating white and grey.
func Checkerboard(width, height uint32) []byte {
	pixels := make([]byte, width*height*4)
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			v := byte(0xff)
			if (x+y)%2 == 1 {
				v = 0x40
			}
			i := (y*width + x) * 4
			pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = v, v, v, 0xff
		}
	}
	return pixels
}
