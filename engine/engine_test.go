package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/framechain/engine/assets"
	"github.com/spaghettifunk/framechain/engine/core"
	"github.com/spaghettifunk/framechain/engine/renderer"
	"github.com/spaghettifunk/framechain/engine/renderer/components"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan/vulkantest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testShader = []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x00, 0x00}

type fakeWindow struct {
	width, height uint32
}

func (w *fakeWindow) DrawableSize() (uint32, uint32) { return w.width, w.height }

func (w *fakeWindow) WaitEvents() {}

// newTestEngine wires everything but the platform and the real device.
func newTestEngine(t *testing.T, g *Game) (*Engine, *vulkantest.Device) {
	t.Helper()
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = DefaultApplicationConfig()
	}
	dir := t.TempDir()
	g.ApplicationConfig.Assets.ShaderDir = dir
	for _, stage := range []string{"vert", "frag"} {
		path := filepath.Join(dir, g.ApplicationConfig.Assets.Shader+"."+stage+assets.ShaderExtension)
		require.NoError(t, os.WriteFile(path, testShader, 0o644))
	}

	dev := vulkantest.NewDevice()
	events := core.NewEventBus(16)
	clock := core.NewClock()
	e := &Engine{
		currentStage: EngineStageInitialized,
		gameInstance: g,
		isRunning:    true,
		events:       events,
		shaders:      assets.NewShaderLibrary(dir, events),
		scene:        core.NewRegistry[*vulkan.Drawable](),
		camera:       components.NewCamera(clock),
		clock:        clock,
		metrics:      core.NewFrameMetrics(),
	}
	e.registerEvents()

	config := g.ApplicationConfig.SwapchainConfig()
	config.VertexShader = testShader
	config.FragmentShader = testShader
	config.Scene = e.scene
	config.Uniforms = e.camera
	driver, err := renderer.NewFrameDriver(dev, &fakeWindow{width: 800, height: 600}, config)
	require.NoError(t, err)
	e.driver = driver
	t.Cleanup(driver.Shutdown)

	e.clock.Start()
	return e, dev
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	config := DefaultApplicationConfig()
	config.Renderer.Samples = 3
	_, err := New(&Game{ApplicationConfig: config})
	assert.Error(t, err)
}

func TestNewUsesDefaultConfig(t *testing.T) {
	g := &Game{}
	e, err := New(g)
	require.NoError(t, err)
	assert.Equal(t, DefaultApplicationConfig(), g.ApplicationConfig)
	assert.Equal(t, EngineStageUninitialized, e.currentStage)
}

func TestRunRequiresInitialize(t *testing.T) {
	e, err := New(&Game{})
	require.NoError(t, err)
	assert.Error(t, e.Run())
}

func TestFrameUpdatesGameAndPresents(t *testing.T) {
	updates := 0
	e, dev := newTestEngine(t, &Game{
		FnUpdate: func(deltaTime float64) error {
			assert.GreaterOrEqual(t, deltaTime, 0.0)
			updates++
			return nil
		},
	})

	for i := 0; i < 5; i++ {
		require.NoError(t, e.frame())
	}
	assert.Equal(t, 5, updates)
	assert.Equal(t, uint64(5), e.driver.Presented())
	assert.Equal(t, uint64(5), e.metrics.TotalFrames)
	assert.Empty(t, dev.Misuse())

	width, height := e.GetFramebufferSize()
	assert.Equal(t, uint32(800), width)
	assert.Equal(t, uint32(600), height)
}

func TestFrameStopsOnUpdateError(t *testing.T) {
	boom := errors.New("boom")
	e, _ := newTestEngine(t, &Game{
		FnUpdate: func(float64) error { return boom },
	})
	assert.ErrorIs(t, e.frame(), boom)
	assert.Equal(t, uint64(0), e.driver.Presented())
}

func TestEscapeQuits(t *testing.T) {
	e, _ := newTestEngine(t, &Game{})

	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_KEY_RELEASED, Data: &core.KeyEvent{KeyCode: core.KEY_ESCAPE}})
	assert.True(t, e.isRunning)

	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_ESCAPE}})
	assert.False(t, e.isRunning)
}

func TestQuitFromAnotherGoroutine(t *testing.T) {
	e, _ := newTestEngine(t, &Game{})

	done := make(chan struct{})
	go func() {
		e.Quit()
		close(done)
	}()
	<-done
	assert.True(t, e.isRunning)

	require.NoError(t, e.frame())
	assert.False(t, e.isRunning)
}

func TestRebuildKey(t *testing.T) {
	e, dev := newTestEngine(t, &Game{})
	require.NoError(t, e.frame())

	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_R}})
	require.NoError(t, e.frame())
	require.NoError(t, e.frame())

	assert.Equal(t, uint64(1), e.driver.RebuildCount())
	assert.Empty(t, dev.Misuse())
}

func TestShaderReloadRebuildsPipeline(t *testing.T) {
	e, _ := newTestEngine(t, &Game{})
	require.NoError(t, e.frame())

	e.events.Post(core.EventContext{
		Type: core.EVENT_CODE_SHADER_RELOADED,
		Data: &core.AssetEvent{Name: "shader.frag"},
	})
	require.NoError(t, e.frame())
	assert.False(t, e.shadersChanged)
	assert.Equal(t, uint64(1), e.driver.RebuildCount())
}

func TestBrokenShaderReloadKeepsPipeline(t *testing.T) {
	e, _ := newTestEngine(t, &Game{})
	require.NoError(t, e.frame())

	path := filepath.Join(e.shaders.Dir(), "shader.frag"+assets.ShaderExtension)
	require.NoError(t, os.WriteFile(path, []byte("not spir-v"), 0o644))
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_SHADER_RELOADED})
	require.NoError(t, e.frame())

	assert.False(t, e.shadersChanged)
	assert.Equal(t, uint64(0), e.driver.RebuildCount())
	assert.Equal(t, uint64(2), e.driver.Presented())
}

func TestResizeEventNotifiesGame(t *testing.T) {
	var sizes [][2]uint32
	e, _ := newTestEngine(t, &Game{
		FnOnResize: func(width, height uint32) error {
			sizes = append(sizes, [2]uint32{width, height})
			return nil
		},
	})

	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 0, WindowHeight: 0}})
	e.events.Fire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 1024, WindowHeight: 768}})

	assert.Equal(t, [][2]uint32{{1024, 768}}, sizes)
}

func TestRemoveDrawableGoesThroughDriver(t *testing.T) {
	e, dev := newTestEngine(t, &Game{})
	quad, err := vulkan.NewDrawable(dev, []vulkan.Vertex{{}, {}, {}}, []uint32{0, 1, 2}, 1, 1, []byte{0, 0, 0, 0xff})
	require.NoError(t, err)
	id := e.scene.Add(quad)

	require.NoError(t, e.frame())
	assert.Equal(t, uint64(1), e.driver.RebuildCount())

	removed, err := e.RemoveDrawable(id)
	require.NoError(t, err)
	assert.Same(t, quad, removed)
	assert.Nil(t, e.driver.Swapchain())
	removed.Destroy(dev)

	require.NoError(t, e.frame())
	assert.Equal(t, uint64(2), e.driver.RebuildCount())
	assert.Equal(t, 0, e.scene.Len())
	assert.Empty(t, dev.Misuse())
}
