package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBusFireStopsWhenHandled(t *testing.T) {
	bus := NewEventBus(4)
	var calls []string
	bus.Register(EVENT_CODE_RESIZED, func(ctx EventContext) bool {
		calls = append(calls, "first")
		return true
	})
	bus.Register(EVENT_CODE_RESIZED, func(ctx EventContext) bool {
		calls = append(calls, "second")
		return false
	})

	handled := bus.Fire(EventContext{Type: EVENT_CODE_RESIZED, Data: &SystemEvent{WindowWidth: 1, WindowHeight: 2}})
	assert.True(t, handled)
	assert.Equal(t, []string{"first"}, calls)
}

func TestEventBusUnregister(t *testing.T) {
	bus := NewEventBus(4)
	count := 0
	token := bus.Register(EVENT_CODE_APPLICATION_QUIT, func(EventContext) bool {
		count++
		return false
	})
	bus.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT})
	assert.True(t, bus.Unregister(EVENT_CODE_APPLICATION_QUIT, token))
	assert.False(t, bus.Unregister(EVENT_CODE_APPLICATION_QUIT, token))
	bus.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT})
	assert.Equal(t, 1, count)
}

func TestEventBusPostIsDeliveredOnProcess(t *testing.T) {
	bus := NewEventBus(1)
	var got *AssetEvent
	bus.Register(EVENT_CODE_SHADER_RELOADED, func(ctx EventContext) bool {
		got = ctx.Data.(*AssetEvent)
		return true
	})

	assert.True(t, bus.Post(EventContext{Type: EVENT_CODE_SHADER_RELOADED, Data: &AssetEvent{Name: "vert"}}))
	// queue of one: the second post is dropped
	assert.False(t, bus.Post(EventContext{Type: EVENT_CODE_SHADER_RELOADED}))
	assert.Nil(t, got)

	assert.Equal(t, 1, bus.ProcessPending())
	if assert.NotNil(t, got) {
		assert.Equal(t, "vert", got.Name)
	}
	assert.Equal(t, 0, bus.ProcessPending())
}
