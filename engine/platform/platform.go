package platform

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/framechain/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the window. Resize notifications are edge triggered: the flag
// raised by the framebuffer callback is cleared by ConsumeResized.
type Platform struct {
	Window *glfw.Window

	events  *core.EventBus
	resized bool
	closed  bool
}

func New(events *core.EventBus) *Platform {
	return &Platform{
		Window: nil,
		events: events,
	}
}

func (p *Platform) Startup(applicationName string, x uint32, y uint32, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		err = fmt.Errorf("failed to initialize glfw: %w", err)
		core.LogError(err.Error())
		return err
	}

	if !glfw.VulkanSupported() {
		err := fmt.Errorf("glfw reports no Vulkan loader on this system")
		core.LogError(err.Error())
		return err
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		err = fmt.Errorf("failed to create window: %w", err)
		core.LogError(err.Error())
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// PumpMessages polls the OS queue. It returns false once the window was asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.closed && !p.Window.ShouldClose()
}

// WaitEvents blocks until the OS delivers at least one event, used while minimized.
func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

// DrawableSize returns the framebuffer size in pixels.
func (p *Platform) DrawableSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return uint32(w), uint32(h)
}

// ConsumeResized reports whether a resize happened since the previous call.
func (p *Platform) ConsumeResized() bool {
	r := p.resized
	p.resized = false
	return r
}

func (p *Platform) GetAbsoluteTime() float64 {
	return glfw.GetTime()
}

// RequiredInstanceExtensions lists the instance extensions glfw needs for surfaces.
func (p *Platform) RequiredInstanceExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// InstanceProcAddress is the loader entry point handed to the Vulkan bindings.
func (p *Platform) InstanceProcAddress() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// CreateSurface creates a VkSurfaceKHR for the window and returns its raw handle.
func (p *Platform) CreateSurface(instance interface{}) (uintptr, error) {
	surface, err := p.Window.CreateWindowSurface(instance, nil)
	if err != nil {
		err = fmt.Errorf("vulkan surface creation failed: %w", err)
		core.LogError(err.Error())
		return 0, err
	}
	return surface, nil
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if p.events == nil {
		return
	}
	code := core.EVENT_CODE_KEY_PRESSED
	switch action {
	case glfw.Press:
	case glfw.Release:
		code = core.EVENT_CODE_KEY_RELEASED
	default:
		return
	}
	var kc core.KeyCode
	switch key {
	case glfw.KeyEscape:
		kc = core.KEY_ESCAPE
	case glfw.KeyR:
		kc = core.KEY_R
	case glfw.KeySpace:
		kc = core.KEY_SPACE
	case glfw.KeyLeft:
		kc = core.KEY_LEFT
	case glfw.KeyRight:
		kc = core.KEY_RIGHT
	default:
		kc = core.KeyCode(key)
	}
	p.events.Fire(core.EventContext{Type: code, Data: &core.KeyEvent{KeyCode: kc}})
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.resized = true
	if p.events == nil {
		return
	}
	p.events.Fire(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.SystemEvent{WindowWidth: uint32(max(width, 0)), WindowHeight: uint32(max(height, 0))},
	})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.closed = true
	if p.events != nil {
		p.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
	}
}
