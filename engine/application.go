package engine

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/framechain/engine/core"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
)

// Environment variable overriding the config file location.
const ConfigEnv = "FRAMECHAIN_CONFIG"

const DefaultConfigPath = "framechain.toml"

// Largest fence timeout, in milliseconds, that still fits a time.Duration.
const MaxFenceTimeoutMS = uint64(math.MaxInt64 / int64(time.Millisecond))

type ApplicationConfig struct {
	// Window starting position x axis, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	// Window starting position y axis, if applicable.
	StartPosY uint32 `toml:"start_pos_y"`
	// Window starting width, if applicable.
	StartWidth uint32 `toml:"start_width"`
	// Window starting height, if applicable.
	StartHeight uint32 `toml:"start_height"`
	// The application name used in windowing, if applicable.
	Name     string        `toml:"name"`
	LogLevel core.LogLevel `toml:"log_level"`

	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
}

type RendererConfig struct {
	MaxFramesInFlight uint32            `toml:"max_frames_in_flight"`
	Samples           uint32            `toml:"samples"`
	VSync             bool              `toml:"vsync"`
	RecordMode        vulkan.RecordMode `toml:"record_mode"`
	// Zero waits forever.
	FenceTimeoutMS uint64     `toml:"fence_timeout_ms"`
	ClearColor     [4]float32 `toml:"clear_color"`
	Validation     bool       `toml:"validation"`
}

type AssetsConfig struct {
	ShaderDir string `toml:"shader_dir"`
	// Base name of the <name>.vert.spv / <name>.frag.spv pair.
	Shader    string `toml:"shader"`
	HotReload bool   `toml:"hot_reload"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		StartPosX:   100,
		StartPosY:   100,
		StartWidth:  1280,
		StartHeight: 720,
		Name:        "Framechain",
		LogLevel:    core.InfoLevel,
		Renderer: RendererConfig{
			MaxFramesInFlight: vulkan.DefaultMaxFramesInFlight,
			Samples:           1,
			RecordMode:        vulkan.RecordStatic,
			ClearColor:        [4]float32{0, 0, 0, 1},
		},
		Assets: AssetsConfig{
			ShaderDir: "assets/shaders",
			Shader:    "shader",
			HotReload: true,
		},
	}
}

// LoadApplicationConfig reads path, or $FRAMECHAIN_CONFIG, or framechain.toml,
// on top of the defaults. Only an explicitly named file has to exist.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	explicit := true
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path == "" {
		path, explicit = DefaultConfigPath, false
	}

	config := DefaultApplicationConfig()
	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			core.LogDebug("No %s found, using the default configuration", path)
			return config, config.Validate()
		}
		err = fmt.Errorf("failed to open config %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	defer f.Close()

	if err := config.decode(f); err != nil {
		err = fmt.Errorf("failed to parse config %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	if err := config.Validate(); err != nil {
		err = fmt.Errorf("invalid config %s: %w", path, err)
		core.LogError(err.Error())
		return nil, err
	}
	core.LogInfo("Loaded configuration from %s", path)
	return config, nil
}

func (c *ApplicationConfig) decode(r io.Reader) error {
	decoder := toml.NewDecoder(r)
	decoder.DisallowUnknownFields()
	return decoder.Decode(c)
}

func (c *ApplicationConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if c.StartWidth == 0 || c.StartHeight == 0 {
		return fmt.Errorf("window size %dx%d must not be zero", c.StartWidth, c.StartHeight)
	}
	r := c.Renderer
	if r.MaxFramesInFlight == 0 || r.MaxFramesInFlight > 8 {
		return fmt.Errorf("renderer.max_frames_in_flight must be between 1 and 8, got %d", r.MaxFramesInFlight)
	}
	if r.Samples == 0 || r.Samples > 64 || bits.OnesCount32(r.Samples) != 1 {
		return fmt.Errorf("renderer.samples must be a power of two between 1 and 64, got %d", r.Samples)
	}
	if r.FenceTimeoutMS > MaxFenceTimeoutMS {
		return fmt.Errorf("renderer.fence_timeout_ms must be at most %d, got %d", MaxFenceTimeoutMS, r.FenceTimeoutMS)
	}
	for i, v := range r.ClearColor {
		if v < 0 || v > 1 {
			return fmt.Errorf("renderer.clear_color[%d] = %g is outside [0, 1]", i, v)
		}
	}
	if c.Assets.ShaderDir == "" || c.Assets.Shader == "" {
		return fmt.Errorf("assets.shader_dir and assets.shader must be set")
	}
	return nil
}

func (c *ApplicationConfig) FenceTimeout() time.Duration {
	return time.Duration(c.Renderer.FenceTimeoutMS) * time.Millisecond
}

// SwapchainConfig maps the renderer section onto the frame resource settings.
// Size, shaders and scene are filled in by the engine.
func (c *ApplicationConfig) SwapchainConfig() *vulkan.SwapchainConfig {
	return &vulkan.SwapchainConfig{
		Width:             c.StartWidth,
		Height:            c.StartHeight,
		MaxFramesInFlight: c.Renderer.MaxFramesInFlight,
		Samples:           c.Renderer.Samples,
		VSync:             c.Renderer.VSync,
		RecordMode:        c.Renderer.RecordMode,
		FenceTimeout:      uint64(c.FenceTimeout().Nanoseconds()),
		ClearColor:        c.Renderer.ClearColor,
	}
}
