package vulkan_test

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan/vulkantest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSwapchain(t *testing.T, dev *vulkantest.Device, config *vulkan.SwapchainConfig) *vulkan.VulkanSwapchain {
	t.Helper()
	sc, err := vulkan.SwapchainCreate(dev, config)
	require.NoError(t, err)
	require.Equal(t, vulkan.SwapchainReady, sc.State())
	t.Cleanup(sc.Destroy)
	return sc
}

func submitFrames(t *testing.T, dev *vulkantest.Device, sc *vulkan.VulkanSwapchain, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		ok, err := sc.SubmitFrame(dev.GraphicsQueue(), dev.PresentQueue())
		require.NoError(t, err, "frame %d", i)
		require.True(t, ok, "frame %d", i)
	}
}

func TestSwapchainCreateNegotiatesSurface(t *testing.T) {
	dev := vulkantest.NewDevice()
	sc := newSwapchain(t, dev, testConfig(t, dev))

	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, sc.Extent())
	assert.Equal(t, uint32(3), sc.ImageCount())
	assert.Equal(t, vulkan.PreferredSurfaceFormat, sc.ImageFormat())
	assert.Equal(t, vk.PresentModeMailbox, sc.PresentMode())
	assert.Equal(t, vulkan.DefaultMaxFramesInFlight, sc.MaxFramesInFlight())
	assert.Equal(t, vk.FormatD32Sfloat, sc.DepthFormat)
	assert.Equal(t, vk.SampleCount1Bit, sc.Samples)
	assert.Nil(t, sc.ColorAttachment)

	// Per-image resources follow the image count.
	assert.Len(t, sc.Framebuffers, 3)
	assert.Len(t, sc.UniformBuffers, 3)
	assert.Len(t, sc.CommandBuffers, 3)
	assert.Len(t, sc.DescriptorSets, 3)
	// Shader modules do not outlive the pipeline build.
	assert.Equal(t, 0, dev.Live(vulkantest.KindShaderModule))
	assert.Equal(t, 2, dev.Live(vulkantest.KindFence))
	assert.Equal(t, 4, dev.Live(vulkantest.KindSemaphore))
}

func TestSwapchainVSyncForcesFifo(t *testing.T) {
	dev := vulkantest.NewDevice()
	config := testConfig(t, dev)
	config.VSync = true

	sc := newSwapchain(t, dev, config)
	assert.Equal(t, vk.PresentModeFifo, sc.PresentMode())
}

func TestSwapchainClampsExtent(t *testing.T) {
	dev := vulkantest.NewDevice()
	config := testConfig(t, dev)
	config.Width, config.Height = 10, 5000

	sc := newSwapchain(t, dev, config)
	assert.Equal(t, vk.Extent2D{Width: 64, Height: 4096}, sc.Extent())
	for _, fb := range sc.Framebuffers {
		assert.Equal(t, uint32(64), fb.Width)
		assert.Equal(t, uint32(4096), fb.Height)
	}
}

func TestSwapchainUndefinedSurfaceFormat(t *testing.T) {
	dev := vulkantest.NewDevice()
	dev.Support.Formats = []vk.SurfaceFormat{{Format: vk.FormatUndefined, ColorSpace: vk.ColorSpaceSrgbNonlinear}}

	sc := newSwapchain(t, dev, testConfig(t, dev))
	assert.Equal(t, vulkan.PreferredSurfaceFormat, sc.ImageFormat())
}

func TestSwapchainRebuildIsDeterministic(t *testing.T) {
	dev := vulkantest.NewDevice()
	config := testConfig(t, dev)

	first, err := vulkan.SwapchainCreate(dev, config)
	require.NoError(t, err)
	extent, count, format, mode := first.Extent(), first.ImageCount(), first.ImageFormat(), first.PresentMode()
	first.Destroy()

	second := newSwapchain(t, dev, config)
	assert.Equal(t, extent, second.Extent())
	assert.Equal(t, count, second.ImageCount())
	assert.Equal(t, format, second.ImageFormat())
	assert.Equal(t, mode, second.PresentMode())
}

func TestSwapchainSteadyState(t *testing.T) {
	dev := vulkantest.NewDevice()
	sc := newSwapchain(t, dev, testConfig(t, dev))

	submitFrames(t, dev, sc, 50)

	assert.Equal(t, uint64(50), dev.Submits())
	assert.Equal(t, vulkan.SwapchainReady, sc.State())
	// Static recording happens once per image at build time.
	assert.Equal(t, 3, dev.Recordings())
	assert.Equal(t, 3, dev.Draws())
	assert.Empty(t, dev.Misuse())
}

func TestSwapchainBoundsFramesInFlight(t *testing.T) {
	for _, frames := range []uint32{1, 2, 3} {
		dev := vulkantest.NewDevice()
		config := testConfig(t, dev)
		config.MaxFramesInFlight = frames
		sc := newSwapchain(t, dev, config)

		submitFrames(t, dev, sc, 40)

		assert.LessOrEqual(t, dev.MaxOutstanding(), int(frames))
		assert.NotEmpty(t, dev.WaitDistances())
		for _, d := range dev.WaitDistances() {
			assert.LessOrEqual(t, d, uint64(frames))
		}
		assert.Empty(t, dev.Misuse())
	}
}

func TestSwapchainWaitsForImageStillInFlight(t *testing.T) {
	dev := vulkantest.NewDevice()
	dev.Support.Capabilities.MaxImageCount = 2
	config := testConfig(t, dev)
	config.MaxFramesInFlight = 3
	sc := newSwapchain(t, dev, config)
	require.Equal(t, uint32(2), sc.ImageCount())

	submitFrames(t, dev, sc, 30)

	// More slots than images: the image fence bounds outstanding work instead.
	assert.LessOrEqual(t, dev.MaxOutstanding(), 2)
	assert.Empty(t, dev.Misuse())
}

func TestSwapchainPairsSemaphores(t *testing.T) {
	dev := vulkantest.NewDevice()
	sc := newSwapchain(t, dev, testConfig(t, dev))

	submitFrames(t, dev, sc, 12)

	var acquire, submit *vulkantest.Op
	acquires := 0
	ops := dev.Ops()
	for i := range ops {
		op := &ops[i]
		switch op.Kind {
		case vulkantest.OpAcquire:
			require.NotNil(t, op.Signal)
			if acquire != nil {
				// Consecutive frames use different slots.
				assert.NotSame(t, acquire.Signal, op.Signal)
			}
			acquire, submit = op, nil
			acquires++
		case vulkantest.OpSubmit:
			require.NotNil(t, acquire, "submit without acquire")
			assert.Same(t, acquire.Signal, op.Wait)
			require.NotNil(t, op.Signal)
			assert.NotSame(t, op.Wait, op.Signal)
			require.NotNil(t, op.Fence)
			submit = op
		case vulkantest.OpPresent:
			require.NotNil(t, submit, "present without submit")
			assert.Same(t, submit.Signal, op.Wait)
			assert.Equal(t, acquire.Image, op.Image)
			acquire, submit = nil, nil
		}
	}
	assert.Equal(t, 12, acquires)
}

func TestSwapchainDynamicRecording(t *testing.T) {
	dev := vulkantest.NewDevice()
	config := testConfig(t, dev)
	config.RecordMode = vulkan.RecordDynamic
	sc := newSwapchain(t, dev, config)

	assert.Equal(t, 0, dev.Recordings())
	submitFrames(t, dev, sc, 10)

	assert.Equal(t, 10, dev.Recordings())
	assert.Equal(t, 10, dev.Draws())
	for _, cb := range sc.CommandBuffers {
		assert.False(t, cb.SimultaneousUse)
	}
	assert.Empty(t, dev.Misuse())
}

func TestSwapchainWritesUniforms(t *testing.T) {
	dev := vulkantest.NewDevice()
	config := testConfig(t, dev)
	uniforms := config.Uniforms.(*fixedUniforms)
	sc := newSwapchain(t, dev, config)

	submitFrames(t, dev, sc, 1)

	want := vulkan.UniformBufferObject{
		Model: mgl32.Scale3D(800, 600, 1),
		View:  mgl32.Ident4(),
		Proj:  mgl32.Ident4(),
	}
	assert.Equal(t, want.Bytes(), dev.BufferContents(sc.UniformBuffers[0]))
	assert.Equal(t, 1, uniforms.calls)
	// Images not presented yet keep zeroed uniforms.
	assert.Equal(t, make([]byte, vulkan.UniformBufferObjectSize), dev.BufferContents(sc.UniformBuffers[1]))
}

func TestSwapchainWithoutDrawables(t *testing.T) {
	dev := vulkantest.NewDevice()
	config := testConfig(t, dev)
	config.Scene = nil
	config.Uniforms = nil
	sc := newSwapchain(t, dev, config)

	assert.Nil(t, sc.DescriptorPool)
	submitFrames(t, dev, sc, 5)
	assert.Equal(t, 0, dev.Draws())
}

func TestSwapchainMultisampling(t *testing.T) {
	dev := vulkantest.NewDevice()
	config := testConfig(t, dev)
	config.Samples = 4
	sc := newSwapchain(t, dev, config)

	assert.Equal(t, vk.SampleCount4Bit, sc.Samples)
	require.NotNil(t, sc.ColorAttachment)
	assert.Equal(t, vk.SampleCount4Bit, sc.ColorAttachment.Samples)
	assert.Equal(t, vk.SampleCount4Bit, sc.DepthAttachment.Samples)
	for _, fb := range sc.Framebuffers {
		require.Len(t, fb.Attachments, 3)
		assert.Same(t, sc.ColorAttachment, fb.Attachments[0])
		assert.Equal(t, vk.SampleCount1Bit, fb.Attachments[2].Samples)
	}
	submitFrames(t, dev, sc, 5)
	assert.Empty(t, dev.Misuse())
}

func TestSwapchainMultisamplingFallsBack(t *testing.T) {
	dev := vulkantest.NewDevice()
	dev.MaxSamples = vk.SampleCount1Bit
	config := testConfig(t, dev)
	config.Samples = 8
	sc := newSwapchain(t, dev, config)

	assert.Equal(t, vk.SampleCount1Bit, sc.Samples)
	assert.Nil(t, sc.ColorAttachment)
	assert.Len(t, sc.Framebuffers[0].Attachments, 2)
}

func TestSwapchainZeroExtent(t *testing.T) {
	dev := vulkantest.NewDevice()
	config := testConfig(t, dev)
	baseline := dev.Live("")
	config.Width = 0

	_, err := vulkan.SwapchainCreate(dev, config)
	require.ErrorIs(t, err, vulkan.ErrSurfaceOutOfDate)
	assert.Equal(t, baseline, dev.Live(""))
}

func TestSwapchainUnsupportedDepthFormat(t *testing.T) {
	dev := vulkantest.NewDevice()
	config := testConfig(t, dev)
	baseline := dev.Live("")
	for _, f := range vulkan.DepthFormatCandidates {
		delete(dev.Formats, f)
	}

	_, err := vulkan.SwapchainCreate(dev, config)
	require.ErrorIs(t, err, vulkan.ErrUnsupportedFormat)
	assert.Equal(t, baseline, dev.Live(""))
	assert.Empty(t, dev.Misuse())
}

func TestSwapchainInvalidShader(t *testing.T) {
	dev := vulkantest.NewDevice()
	config := testConfig(t, dev)
	baseline := dev.Live("")
	config.FragmentShader = []byte{1, 2, 3, 4}

	_, err := vulkan.SwapchainCreate(dev, config)
	require.ErrorIs(t, err, vulkan.ErrResourceCreation)
	assert.Equal(t, baseline, dev.Live(""))
}

func TestSwapchainCreateReleasesOnFailure(t *testing.T) {
	cases := []struct {
		kind  string
		after int
	}{
		{vulkantest.KindPresentChain, 0},
		{vulkantest.KindImage, 0},
		{vulkantest.KindRenderpass, 0},
		{vulkantest.KindDescriptorSetLayout, 0},
		{vulkantest.KindShaderModule, 1},
		{vulkantest.KindPipeline, 0},
		{vulkantest.KindFramebuffer, 2},
		{vulkantest.KindBuffer, 1},
		{vulkantest.KindDescriptorPool, 0},
		{vulkantest.KindCommandPool, 0},
		{vulkantest.KindCommandBuffer, 1},
		{vulkantest.KindSemaphore, 3},
		{vulkantest.KindFence, 1},
	}
	for _, c := range cases {
		t.Run(c.kind, func(t *testing.T) {
			dev := vulkantest.NewDevice()
			config := testConfig(t, dev)
			baseline := dev.Live("")
			dev.FailCreate(c.kind, c.after)

			sc, err := vulkan.SwapchainCreate(dev, config)
			require.ErrorIs(t, err, vulkan.ErrResourceCreation)
			assert.Nil(t, sc)
			assert.Equal(t, baseline, dev.Live(""))
			assert.Empty(t, dev.Misuse())
		})
	}
}

func TestSwapchainDestroyReleasesEverything(t *testing.T) {
	dev := vulkantest.NewDevice()
	config := testConfig(t, dev)
	baseline := dev.Live("")

	sc, err := vulkan.SwapchainCreate(dev, config)
	require.NoError(t, err)
	submitFrames(t, dev, sc, 7)

	sc.Destroy()
	assert.Equal(t, vulkan.SwapchainDestroyed, sc.State())
	assert.Equal(t, baseline, dev.Live(""))
	assert.Equal(t, 0, dev.Outstanding())
	assert.Equal(t, 1, dev.WaitIdleCalls())

	sc.Destroy()
	assert.Equal(t, 1, dev.WaitIdleCalls())
	assert.Empty(t, dev.Misuse())

	ok, err := sc.SubmitFrame(dev.GraphicsQueue(), dev.PresentQueue())
	assert.False(t, ok)
	assert.ErrorIs(t, err, vulkan.ErrSwapchainDestroyed)
}

func TestSwapchainOutOfDateAcquire(t *testing.T) {
	dev := vulkantest.NewDevice()
	sc := newSwapchain(t, dev, testConfig(t, dev))
	submitFrames(t, dev, sc, 2)
	dev.AcquireStatuses = []vulkan.SurfaceStatus{vulkan.SurfaceOutOfDate}

	ok, err := sc.SubmitFrame(dev.GraphicsQueue(), dev.PresentQueue())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, vulkan.SwapchainStale, sc.State())
	assert.Equal(t, uint64(2), dev.Submits())

	// A stale set does not touch the device again.
	opCount := len(dev.Ops())
	ok, err = sc.SubmitFrame(dev.GraphicsQueue(), dev.PresentQueue())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, dev.Ops(), opCount)
	assert.Empty(t, dev.Misuse())
}

func TestSwapchainSuboptimalAcquireStillPresents(t *testing.T) {
	dev := vulkantest.NewDevice()
	sc := newSwapchain(t, dev, testConfig(t, dev))
	dev.AcquireStatuses = []vulkan.SurfaceStatus{vulkan.SurfaceSuboptimal}

	ok, err := sc.SubmitFrame(dev.GraphicsQueue(), dev.PresentQueue())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, vulkan.SwapchainStale, sc.State())

	ops := dev.Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, vulkantest.OpPresent, ops[2].Kind)
	assert.Equal(t, uint32(1), sc.CurrentFrame)
}

func TestSwapchainStalePresent(t *testing.T) {
	for _, status := range []vulkan.SurfaceStatus{vulkan.SurfaceSuboptimal, vulkan.SurfaceOutOfDate} {
		t.Run(status.String(), func(t *testing.T) {
			dev := vulkantest.NewDevice()
			sc := newSwapchain(t, dev, testConfig(t, dev))
			dev.PresentStatuses = []vulkan.SurfaceStatus{status}

			ok, err := sc.SubmitFrame(dev.GraphicsQueue(), dev.PresentQueue())
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, vulkan.SwapchainStale, sc.State())
		})
	}
}

func TestSwapchainFailedFrameKeepsSlotFenceSignaled(t *testing.T) {
	dev := vulkantest.NewDevice()
	config := testConfig(t, dev)
	config.FenceTimeout = 1_000_000
	sc := newSwapchain(t, dev, config)
	boom := errors.New("mapping lost")
	dev.LoadErrors = []error{boom}

	ok, err := sc.SubmitFrame(dev.GraphicsQueue(), dev.PresentQueue())
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), dev.Submits())
	assert.Equal(t, uint32(0), sc.CurrentFrame)
	// Nothing was submitted, so the slot's fence must still be waitable.
	assert.True(t, sc.SyncPair(0).InFlight.IsSignaled)
	ok, err = dev.WaitForFence(sc.SyncPair(0).InFlight, config.FenceTimeout)
	require.NoError(t, err)
	assert.True(t, ok)

	// The acquired image semaphore has no waiter, so the set is retired.
	assert.Equal(t, vulkan.SwapchainStale, sc.State())
	ok, err = sc.SubmitFrame(dev.GraphicsQueue(), dev.PresentQueue())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, dev.Misuse())
}

func TestSwapchainInvalidate(t *testing.T) {
	dev := vulkantest.NewDevice()
	sc := newSwapchain(t, dev, testConfig(t, dev))

	sc.Invalidate()
	assert.Equal(t, vulkan.SwapchainStale, sc.State())

	ok, err := sc.SubmitFrame(dev.GraphicsQueue(), dev.PresentQueue())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), dev.Submits())
}

func TestRecordModeParsing(t *testing.T) {
	for in, want := range map[string]vulkan.RecordMode{
		"":         vulkan.RecordStatic,
		"static":   vulkan.RecordStatic,
		" Dynamic": vulkan.RecordDynamic,
	} {
		got, err := vulkan.ParseRecordMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := vulkan.ParseRecordMode("lazy")
	assert.Error(t, err)

	var mode vulkan.RecordMode
	require.NoError(t, mode.UnmarshalText([]byte("dynamic")))
	assert.Equal(t, vulkan.RecordDynamic, mode)
	assert.Equal(t, "dynamic", mode.String())
}

func TestSwapchainStateString(t *testing.T) {
	assert.Equal(t, "building", vulkan.SwapchainBuilding.String())
	assert.Equal(t, "ready", vulkan.SwapchainReady.String())
	assert.Equal(t, "stale", vulkan.SwapchainStale.String())
	assert.Equal(t, "destroyed", vulkan.SwapchainDestroyed.String())
}
