package renderer

import (
	"errors"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"
	"github.com/spaghettifunk/framechain/engine/core"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
)

// Window is the part of the platform layer the driver depends on.
type Window interface {
	DrawableSize() (uint32, uint32)
	// WaitEvents blocks until the window has something to report.
	WaitEvents()
}

// FrameDriver owns the frame resource set and decides when it is rebuilt:
// on a resize, when a frame reports a stale surface, when the scene registry
// changes, or when invalidated.
type FrameDriver struct {
	device vulkan.Device
	window Window
	config vulkan.SwapchainConfig

	swapchain *vulkan.VulkanSwapchain

	// A counter which indicates when the framebuffer size has been updated.
	framebufferSizeGeneration     uint64
	framebufferSizeLastGeneration uint64
	invalidated                   bool
	// Scene generation the current set was recorded from.
	sceneGeneration uint64

	builds    uint64
	presented uint64
}

// NewFrameDriver builds the first frame resource set. A window with no
// drawable area defers the build to the first frame that has one.
func NewFrameDriver(device vulkan.Device, window Window, config *vulkan.SwapchainConfig) (*FrameDriver, error) {
	fd := &FrameDriver{
		device: device,
		window: window,
		config: *config,
	}
	if _, err := fd.rebuild(); err != nil {
		return nil, err
	}
	return fd, nil
}

// DrawFrame renders one frame. It returns false when no frame was presented:
// the window has no drawable area, or the surface went stale and the frame
// resources will be rebuilt on the next call.
func (fd *FrameDriver) DrawFrame() (bool, error) {
	if fd.needsRebuild() {
		built, err := fd.rebuild()
		if err != nil {
			return false, err
		}
		if !built {
			// Minimized: block until the window changes instead of spinning.
			fd.window.WaitEvents()
			return false, nil
		}
	}

	ok, err := fd.swapchain.SubmitFrame(fd.device.GraphicsQueue(), fd.device.PresentQueue())
	if err != nil {
		core.LogError("frame submission failed: %s", err)
		return false, err
	}
	if !ok {
		core.LogDebug("Frame resources stale after %d presented frames, rebuilding on next frame.", fd.presented)
		return false, nil
	}
	fd.presented++
	return true, nil
}

func (fd *FrameDriver) needsRebuild() bool {
	return fd.swapchain == nil ||
		fd.invalidated ||
		fd.swapchain.State() != vulkan.SwapchainReady ||
		fd.framebufferSizeGeneration != fd.framebufferSizeLastGeneration ||
		(fd.config.Scene != nil && fd.config.Scene.Generation() != fd.sceneGeneration)
}

// rebuild tears down the current set and builds one at the drawable size. It
// reports false when the window has no drawable area.
func (fd *FrameDriver) rebuild() (bool, error) {
	width, height := fd.window.DrawableSize()
	if width == 0 || height == 0 {
		core.LogDebug("Drawable size is %dx%d, deferring frame resources.", width, height)
		return false, nil
	}

	if fd.swapchain != nil {
		fd.swapchain.Destroy()
		fd.swapchain = nil
	}

	cfg := fd.config
	var sceneGeneration uint64
	if cfg.Scene != nil {
		// Read before the build snapshots the scene, so a concurrent Add
		// triggers another rebuild rather than being missed.
		sceneGeneration = cfg.Scene.Generation()
	}
	cfg.Width = width
	cfg.Height = height
	sc, err := vulkan.SwapchainCreate(fd.device, &cfg)
	if errors.Is(err, vulkan.ErrSurfaceOutOfDate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	fd.swapchain = sc
	fd.builds++
	fd.invalidated = false
	fd.framebufferSizeLastGeneration = fd.framebufferSizeGeneration
	fd.sceneGeneration = sceneGeneration
	if fd.builds > 1 {
		core.LogInfo("Frame resources rebuilt (%d): %dx%d", fd.builds-1, sc.Extent().Width, sc.Extent().Height)
	}
	return true, nil
}

// Resize records that the drawable size changed. The new size is read from the
// window at the next rebuild.
func (fd *FrameDriver) Resize() {
	fd.framebufferSizeGeneration++
	core.LogDebug("Resized, generation %d", fd.framebufferSizeGeneration)
}

// RemoveDrawable takes id out of the scene once the GPU no longer uses it.
// The recorded frame set still references the drawable, so it is torn down
// here and rebuilt on the next frame; the caller may then Destroy the
// returned drawable.
func (fd *FrameDriver) RemoveDrawable(id uuid.UUID) (*vulkan.Drawable, error) {
	if fd.config.Scene == nil {
		return nil, errors.New("frame driver has no scene")
	}
	d, err := fd.config.Scene.Get(id)
	if err != nil {
		return nil, err
	}
	if fd.swapchain != nil {
		fd.swapchain.Destroy()
		fd.swapchain = nil
	}
	if err := fd.config.Scene.Remove(id); err != nil {
		return nil, err
	}
	return d, nil
}

// Invalidate forces a rebuild before the next frame.
func (fd *FrameDriver) Invalidate() {
	fd.invalidated = true
}

// SetShaders replaces the SPIR-V used by the pipeline and invalidates the set.
func (fd *FrameDriver) SetShaders(vertex, fragment []byte) {
	fd.config.VertexShader = vertex
	fd.config.FragmentShader = fragment
	fd.Invalidate()
}

func (fd *FrameDriver) Extent() vk.Extent2D {
	if fd.swapchain == nil {
		return vk.Extent2D{}
	}
	return fd.swapchain.Extent()
}

// RebuildCount is the number of builds after the first one.
func (fd *FrameDriver) RebuildCount() uint64 {
	if fd.builds == 0 {
		return 0
	}
	return fd.builds - 1
}

func (fd *FrameDriver) Presented() uint64 {
	return fd.presented
}

func (fd *FrameDriver) Swapchain() *vulkan.VulkanSwapchain {
	return fd.swapchain
}

func (fd *FrameDriver) Shutdown() {
	if fd.swapchain != nil {
		fd.swapchain.Destroy()
		fd.swapchain = nil
	}
}
