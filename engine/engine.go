package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/framechain/engine/assets"
	"github.com/spaghettifunk/framechain/engine/core"
	"github.com/spaghettifunk/framechain/engine/platform"
	"github.com/spaghettifunk/framechain/engine/renderer"
	"github.com/spaghettifunk/framechain/engine/renderer/components"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// Frames between two FPS log lines.
const metricsLogInterval = 300

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool

	events   *core.EventBus
	platform *platform.Platform
	device   *vulkan.VulkanDevice
	driver   *renderer.FrameDriver
	shaders  *assets.ShaderLibrary
	scene    *core.Registry[*vulkan.Drawable]
	camera   *components.Camera

	clock    *core.Clock
	metrics  *core.FrameMetrics
	lastTime float64

	// Set from the event bus, consumed once per frame.
	shadersChanged bool
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = DefaultApplicationConfig()
	}
	if err := g.ApplicationConfig.Validate(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	core.SetLogLevel(g.ApplicationConfig.LogLevel)

	events := core.NewEventBus(0)
	clock := core.NewClock()
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		isRunning:    true,
		events:       events,
		platform:     platform.New(events),
		scene:        core.NewRegistry[*vulkan.Drawable](),
		camera:       components.NewCamera(clock),
		clock:        clock,
		metrics:      core.NewFrameMetrics(),
	}, nil
}

func (e *Engine) Initialize() error {
	config := e.gameInstance.ApplicationConfig

	e.currentStage = EngineStageBooting
	if e.gameInstance.FnBoot != nil {
		if err := e.gameInstance.FnBoot(); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageBootComplete

	e.currentStage = EngineStageInitializing
	e.registerEvents()

	if err := e.platform.Startup(config.Name, config.StartPosX, config.StartPosY, config.StartWidth, config.StartHeight); err != nil {
		return err
	}

	device, err := vulkan.NewVulkanDevice(e.platform, &vulkan.DeviceConfig{
		ApplicationName: config.Name,
		Validation:      config.Renderer.Validation,
	})
	if err != nil {
		return err
	}
	e.device = device

	e.shaders = assets.NewShaderLibrary(config.Assets.ShaderDir, e.events)
	vertex, fragment, err := e.shaders.LoadStages(config.Assets.Shader)
	if err != nil {
		return err
	}
	if config.Assets.HotReload {
		if err := e.shaders.Watch(); err != nil {
			core.LogWarn("shader hot reload disabled: %s", err)
		}
	}

	e.gameInstance.Device = device
	e.gameInstance.Scene = e.scene
	e.gameInstance.RemoveDrawable = e.RemoveDrawable
	e.gameInstance.Camera = e.camera
	e.gameInstance.Events = e.events
	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}

	swapchainConfig := config.SwapchainConfig()
	swapchainConfig.VertexShader = vertex
	swapchainConfig.FragmentShader = fragment
	swapchainConfig.Scene = e.scene
	swapchainConfig.Uniforms = e.camera

	driver, err := renderer.NewFrameDriver(device, e.platform, swapchainConfig)
	if err != nil {
		return err
	}
	e.driver = driver

	width, height := e.platform.DrawableSize()
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) registerEvents() {
	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	e.events.Register(core.EVENT_CODE_KEY_RELEASED, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e.onResized)
	e.events.Register(core.EVENT_CODE_SHADER_RELOADED, e.onShaderReloaded)
}

func (e *Engine) Run() error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine must be initialized before running, stage is %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		if !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}
		if err := e.frame(); err != nil {
			e.isRunning = false
			return err
		}
	}
	return nil
}

// frame runs one iteration of the loop after the OS messages were pumped.
func (e *Engine) frame() error {
	e.events.ProcessPending()
	if e.platform != nil && e.platform.ConsumeResized() {
		e.driver.Resize()
	}
	e.reloadShaders()

	e.clock.Update()
	currentTime := e.clock.Elapsed()
	delta := currentTime - e.lastTime
	e.lastTime = currentTime

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down: %s", err)
			return err
		}
	}

	presented, err := e.driver.DrawFrame()
	if err != nil {
		core.LogError("Frame failed, shutting down: %s", err)
		return err
	}
	if presented {
		e.metrics.Update(delta)
		if e.metrics.TotalFrames%metricsLogInterval == 0 {
			fps, frameTime := e.metrics.Frame()
			core.LogInfo("FPS: %5.1f (%4.1fms), rebuilds: %d", fps, frameTime, e.driver.RebuildCount())
		}
	}
	return nil
}

// reloadShaders swaps in the changed SPIR-V. A broken binary keeps the
// current pipeline.
func (e *Engine) reloadShaders() {
	if !e.shadersChanged {
		return
	}
	e.shadersChanged = false
	vertex, fragment, err := e.shaders.LoadStages(e.gameInstance.ApplicationConfig.Assets.Shader)
	if err != nil {
		core.LogWarn("keeping current shaders: %s", err)
		return
	}
	core.LogInfo("Shaders reloaded, rebuilding frame resources.")
	e.driver.SetShaders(vertex, fragment)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error

	if e.device != nil {
		if err := e.device.WaitIdle(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.driver != nil {
		e.driver.Shutdown()
	}
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.shaders != nil {
		if err := e.shaders.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.device != nil {
		e.device.Destroy()
		e.device = nil
	}
	if err := e.platform.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	e.events.Shutdown()
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	if e.driver == nil {
		return 0, 0
	}
	extent := e.driver.Extent()
	return extent.Width, extent.Height
}

// RemoveDrawable takes id out of the scene. Before the frame driver exists,
// or after it shut down, nothing on the GPU references the drawable.
func (e *Engine) RemoveDrawable(id uuid.UUID) (*vulkan.Drawable, error) {
	if e.driver != nil && e.currentStage != EngineStageShuttingDown {
		return e.driver.RemoveDrawable(id)
	}
	d, err := e.scene.Get(id)
	if err != nil {
		return nil, err
	}
	return d, e.scene.Remove(id)
}

// Quit asks the frame loop to stop. It is safe to call from any goroutine.
func (e *Engine) Quit() {
	e.events.Post(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

func (e *Engine) onEvent(context core.EventContext) bool {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(context core.EventContext) bool {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}

	if context.Type != core.EVENT_CODE_KEY_PRESSED {
		return false
	}
	switch ke.KeyCode {
	case core.KEY_ESCAPE:
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		e.events.Fire(core.EventContext{
			Type: core.EVENT_CODE_APPLICATION_QUIT,
		})
		// Block anything else from processing this.
		return true
	case core.KEY_R:
		core.LogInfo("Rebuild requested.")
		e.driver.Invalidate()
		return true
	}
	return false
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	core.LogDebug("Window resize: %d, %d", se.WindowWidth, se.WindowHeight)
	if se.WindowWidth == 0 || se.WindowHeight == 0 {
		core.LogInfo("Window minimized, frames are skipped until it is restored.")
		return false
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(se.WindowWidth, se.WindowHeight); err != nil {
			core.LogError(err.Error())
		}
	}
	// Not handled: other listeners may care too.
	return false
}

func (e *Engine) onShaderReloaded(context core.EventContext) bool {
	if ae, ok := context.Data.(*core.AssetEvent); ok {
		core.LogDebug("Shader %s changed at %s", ae.Name, ae.Path)
	}
	e.shadersChanged = true
	return true
}
