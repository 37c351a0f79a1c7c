package vulkan_test

import (
	"testing"

	"github.com/spaghettifunk/framechain/engine/renderer/vulkan"
	"github.com/spaghettifunk/framechain/engine/renderer/vulkan/vulkantest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncPoolCreatesSignaledFences(t *testing.T) {
	dev := vulkantest.NewDevice()

	pool, err := vulkan.NewSyncPool(dev, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), pool.Len())
	assert.Equal(t, 6, dev.Live(vulkantest.KindSemaphore))
	assert.Equal(t, 3, dev.Live(vulkantest.KindFence))

	for slot := uint32(0); slot < pool.Len(); slot++ {
		pair := pool.Pair(slot)
		assert.True(t, pair.InFlight.IsSignaled)
		assert.NotSame(t, pair.ImageAvailable, pair.RenderFinished)
		// First wait on every slot returns at once.
		require.NoError(t, pool.WaitAndReset(dev, slot))
		assert.False(t, pair.InFlight.IsSignaled)
	}

	pool.Destroy(dev)
	assert.Equal(t, 0, dev.Live(""))
	assert.Empty(t, dev.Misuse())
}

func TestSyncPoolRejectsZeroSlots(t *testing.T) {
	dev := vulkantest.NewDevice()

	_, err := vulkan.NewSyncPool(dev, 0, 0)
	assert.Error(t, err)
	assert.Equal(t, 0, dev.Live(""))
}

func TestSyncPoolCleansUpPartialCreation(t *testing.T) {
	for _, kind := range []string{vulkantest.KindSemaphore, vulkantest.KindFence} {
		t.Run(kind, func(t *testing.T) {
			dev := vulkantest.NewDevice()
			dev.FailCreate(kind, 2)

			_, err := vulkan.NewSyncPool(dev, 3, 0)
			require.ErrorIs(t, err, vulkan.ErrResourceCreation)
			assert.Equal(t, 0, dev.Live(""))
			assert.Empty(t, dev.Misuse())
		})
	}
}

func TestSyncPoolWaitTimesOutOnUnsubmittedFence(t *testing.T) {
	dev := vulkantest.NewDevice()
	pool, err := vulkan.NewSyncPool(dev, 2, 1000)
	require.NoError(t, err)
	defer pool.Destroy(dev)

	require.NoError(t, pool.Reset(dev, 1))

	// Nothing will ever signal the fence.
	err = pool.Wait(dev, 1)
	require.ErrorIs(t, err, vulkan.ErrSynchronizationTimeout)

	var timeout *vulkan.SynchronizationTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, uint32(1), timeout.Slot)
	assert.Equal(t, uint64(1000), timeout.Timeout)

	// The other slot is untouched.
	assert.NoError(t, pool.Wait(dev, 0))
}
