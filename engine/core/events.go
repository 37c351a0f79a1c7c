package core

import (
	"sync"
)

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Keyboard key pressed. Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED SystemEventCode = 0x02

	// Keyboard key released. Data: *KeyEvent
	EVENT_CODE_KEY_RELEASED SystemEventCode = 0x03

	// Resized/resolution changed from the OS. Data: *SystemEvent
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// A shader binary changed on disk. Data: *AssetEvent
	EVENT_CODE_SHADER_RELOADED SystemEventCode = 0x09

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

type KeyCode uint16

const (
	KEY_ESCAPE KeyCode = 0x1B
	KEY_SPACE  KeyCode = 0x20
	KEY_LEFT   KeyCode = 0x25
	KEY_RIGHT  KeyCode = 0x27
	KEY_R      KeyCode = 0x52
)

type EventContext struct {
	Type SystemEventCode
	Data interface{}
}

type KeyEvent struct {
	KeyCode KeyCode
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type AssetEvent struct {
	Name string
	Path string
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

type registeredEvent struct {
	id       uint64
	callback FnOnEvent
}

// EventBus dispatches engine events to registered listeners. Fire delivers
// synchronously on the calling goroutine; Post may be called from any goroutine
// and is delivered by the next ProcessPending on the frame loop.
type EventBus struct {
	mu         sync.RWMutex
	registered map[SystemEventCode][]*registeredEvent
	nextID     uint64
	pending    chan EventContext
}

func NewEventBus(queueSize int) *EventBus {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &EventBus{
		registered: make(map[SystemEventCode][]*registeredEvent),
		pending:    make(chan EventContext, queueSize),
	}
}

// Register listens for code and returns a token for Unregister.
func (eb *EventBus) Register(code SystemEventCode, onEvent FnOnEvent) uint64 {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	eb.registered[code] = append(eb.registered[code], &registeredEvent{
		id:       eb.nextID,
		callback: onEvent,
	})
	return eb.nextID
}

// Unregister returns false when the token was not registered for code.
func (eb *EventBus) Unregister(code SystemEventCode, token uint64) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	events := eb.registered[code]
	for i, e := range events {
		if e.id == token {
			eb.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

// Fire delivers the event to the listeners of its code in registration order
// until one reports it handled.
func (eb *EventBus) Fire(context EventContext) bool {
	eb.mu.RLock()
	events := make([]*registeredEvent, len(eb.registered[context.Type]))
	copy(events, eb.registered[context.Type])
	eb.mu.RUnlock()

	for _, e := range events {
		if e.callback(context) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}

// Post queues the event. It never blocks: when the queue is full the event is dropped.
func (eb *EventBus) Post(context EventContext) bool {
	select {
	case eb.pending <- context:
		return true
	default:
		LogWarn("event queue full, dropping event code %d", context.Type)
		return false
	}
}

// ProcessPending fires every queued event and returns how many were delivered.
func (eb *EventBus) ProcessPending() int {
	n := 0
	for {
		select {
		case ctx := <-eb.pending:
			eb.Fire(ctx)
			n++
		default:
			return n
		}
	}
}

func (eb *EventBus) Shutdown() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.registered = make(map[SystemEventCode][]*registeredEvent)
}
