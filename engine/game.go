package engine

import (
	"github.com/google/uuid"
	"github.com/spaghettifunk/framechain/engine/core"
	"github.com/spaghettifunk/framechain/engine/renderer/components"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
)

// Game is the application plugged into the engine. Device, Scene, Camera and
// Events are set by the engine before FnInitialize is called.
type Game struct {
	ApplicationConfig *ApplicationConfig
	Device            vulkan.Device
	// Adding to Scene is picked up by the next frame. Removing must go through
	// RemoveDrawable while frames are in flight.
	Scene *core.Registry[*vulkan.Drawable]
	// RemoveDrawable takes a drawable out of Scene once the GPU is done with
	// it. The returned drawable can then be destroyed.
	RemoveDrawable func(id uuid.UUID) (*vulkan.Drawable, error)
	Camera         *components.Camera
	Events         *core.EventBus
	State          interface{}
	FnBoot         Boot
	FnInitialize   Initialize
	FnUpdate       Update
	FnOnResize     OnResize
	FnShutdown     Shutdown
}

type Boot func() error
type Initialize func() error
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
