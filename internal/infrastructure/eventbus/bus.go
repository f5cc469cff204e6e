package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is the publishable unit carried by the bus.
type Event interface {
	Type() string
	Timestamp() time.Time
	Payload() any
}

// BaseEvent is the minimal Event implementation.
type BaseEvent struct {
	EventType      string
	EventTimestamp time.Time
	EventPayload   any
}

// Type returns the event type.
func (e *BaseEvent) Type() string {
	return e.EventType
}

// Timestamp returns when the event was created.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTimestamp
}

// Payload returns the event's payload.
func (e *BaseEvent) Payload() any {
	return e.EventPayload
}

// NewEvent constructs a BaseEvent.
func NewEvent(eventType string, payload any) *BaseEvent {
	return &BaseEvent{
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   payload,
	}
}

// Handler processes one published event.
type Handler func(ctx context.Context, event Event)

// Bus is the publish/subscribe contract the runtime's AgentEvent stream
// is adapted onto (see bridgeEvents in cmd/agentcore).
type Bus interface {
	// Publish delivers event to every handler subscribed to its type.
	Publish(ctx context.Context, event Event)
	// Subscribe registers handler for eventType ("*" matches everything).
	Subscribe(eventType string, handler Handler)
	// Unsubscribe removes a previously registered handler.
	Unsubscribe(eventType string, handler Handler)
	// Close stops dispatch and waits for in-flight handlers to return.
	Close()
}

// InMemoryBus is a buffered, non-blocking, fan-out Bus: Publish drops the
// event rather than stalling the caller when the buffer is full.
type InMemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]Handler
	eventChan chan eventWrapper
	closed    bool
	logger    *zap.Logger
	wg        sync.WaitGroup
}

type eventWrapper struct {
	ctx   context.Context
	event Event
}

// NewInMemoryBus starts the dispatch goroutine and returns a ready bus.
func NewInMemoryBus(logger *zap.Logger, bufferSize int) *InMemoryBus {
	bus := &InMemoryBus{
		handlers:  make(map[string][]Handler),
		eventChan: make(chan eventWrapper, bufferSize),
		logger:    logger,
	}

	// start the dispatch goroutine
	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Publish implements Bus.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	b.mu.RUnlock()

	// non-blocking send
	select {
	case b.eventChan <- eventWrapper{ctx: ctx, event: event}:
		b.logger.Debug("Event published",
			zap.String("type", event.Type()),
		)
	default:
		b.logger.Warn("Event buffer full, dropping event",
			zap.String("type", event.Type()),
		)
	}
}

// Subscribe implements Bus.
func (b *InMemoryBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make([]Handler, 0)
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", eventType),
	)
}

// Unsubscribe implements Bus, removing the most-recently-registered handler
// for eventType (Go has no function-pointer equality, so it can't remove a
// specific one — last-in-first-out is the safe default).
func (b *InMemoryBus) Unsubscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	if len(handlers) == 0 {
		return
	}

	// walk back-to-front and drop the first (most recent) handler
	newHandlers := make([]Handler, 0, len(handlers))
	removed := false
	for i := len(handlers) - 1; i >= 0; i-- {
		// skip (remove) the most recently registered handler only
		if !removed {
			removed = true
			continue
		}
		newHandlers = append([]Handler{handlers[i]}, newHandlers...)
	}
	if !removed {
		return
	}

	if len(newHandlers) == 0 {
		delete(b.handlers, eventType)
	} else {
		b.handlers[eventType] = newHandlers
	}
}

// Close implements Bus.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	b.closed = true
	close(b.eventChan)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("Event bus closed")
}

// dispatch is the bus's single fan-out loop.
func (b *InMemoryBus) dispatch() {
	defer b.wg.Done()

	for wrapper := range b.eventChan {
		b.dispatchEvent(wrapper.ctx, wrapper.event)
	}
}

// dispatchEvent runs every matching handler for one event concurrently.
func (b *InMemoryBus) dispatchEvent(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0)

	// type-specific handlers
	if h, ok := b.handlers[event.Type()]; ok {
		handlers = append(handlers, h...)
	}

	// wildcard handlers
	if h, ok := b.handlers["*"]; ok {
		handlers = append(handlers, h...)
	}
	b.mu.RUnlock()

	// run handlers concurrently, isolating panics per-handler
	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("Handler panicked",
						zap.String("event_type", event.Type()),
						zap.Any("panic", r),
					)
				}
			}()
			h(ctx, event)
		}(handler)
	}
	wg.Wait()
}

// Predefined event types.
const (
	EventTypeStateChange     = "state_change"
	EventTypeToolExecution   = "tool_execution"
	EventTypeModelRequest    = "model_request"
	EventTypeModelResponse   = "model_response"
	EventTypeError           = "error"
	EventTypeSessionCreated  = "session_created"
	EventTypeSessionEnded    = "session_ended"
	EventTypeApprovalRequest = "approval_request"
)

// StateChangePayload is the payload for EventTypeStateChange.
type StateChangePayload struct {
	SessionID string
	FromState string
	ToState   string
	Trigger   string
	Metadata  map[string]any
}

// ToolExecutionPayload is the payload for EventTypeToolExecution.
type ToolExecutionPayload struct {
	SessionID  string
	ToolName   string
	ToolCallID string
	Arguments  map[string]any
	Result     any
	Duration   time.Duration
	Success    bool
}

// ModelRequestPayload is the payload for EventTypeModelRequest.
type ModelRequestPayload struct {
	SessionID string
	Model     string
	Messages  int
	HasTools  bool
}

// ModelResponsePayload is the payload for EventTypeModelResponse.
type ModelResponsePayload struct {
	SessionID  string
	Model      string
	TokensUsed int
	HasTools   bool
	Duration   time.Duration
}

// ErrorPayload is the payload for EventTypeError.
type ErrorPayload struct {
	SessionID string
	Component string
	Error     string
	Stack     string
}
