package webrtcapp

import "sync"

// eventBus is a single-subscriber, mutex-serialized, synchronous-delivery
// fan-out: a simpler cousin of a websocket hub's register/broadcast shape,
// collapsed to one callback slot since this application needs at most one
// subscriber rather than a room of listeners.
type eventBus struct {
	mu         sync.Mutex
	subscriber EventCallback
	userCtx    interface{}
}

func newEventBus() *eventBus {
	return &eventBus{}
}

// Register atomically installs or clears the single subscriber.
func (b *eventBus) Register(cb EventCallback, userCtx interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriber = cb
	b.userCtx = userCtx
}

// Raise delivers ev synchronously with its cause, on the calling goroutine.
// Calling back into Init/Terminate from inside the subscriber self-deadlocks;
// that is a documented caller contract, not something this bus can enforce.
func (b *eventBus) Raise(ev Event) {
	b.mu.Lock()
	cb := b.subscriber
	userCtx := b.userCtx
	b.mu.Unlock()
	if cb != nil {
		cb(ev, userCtx)
	}
}
