package eventbus

import (
	"sync"

	"github.com/cskr/pubsub/v2"
)

// nilEventHandler represents a disabled event handler.
type nilEventHandler struct{}

// defaultEventHandler represents an internal event handler.
type defaultEventHandler struct {
	*pubsub.PubSub[uint, any]
}

// EventPublisher represents an interface that provides an event publisher.
type EventPublisher interface {
	// Publish publishes an event to the event stream.
	Publish(id uint, name string, data any)
}

// EventSubscriber represents an interface that provides an event subscriber.
type EventSubscriber interface {
	// Subscribe subscribes to an event from the event stream.
	Subscribe(id uint, name string) SubscriberID
}

// EventHandler represents an interface that provides an event publisher and subscriber.
type EventHandler interface {
	EventPublisher
	EventSubscriber
}

// Emitter dispatches session events to the registered handlers.
type Emitter struct {
	p EventPublisher
	s EventSubscriber

	closer func()

	mu sync.RWMutex
}

// New returns an emitter that dispatches events through the default handler.
func New() *Emitter {
	e := &Emitter{}

	h := DefaultHandler()
	e.RegisterEventHandler(h)
	e.closer = h.Shutdown

	return e
}

// Disabled returns an emitter that drops every event.
func Disabled() *Emitter {
	e := &Emitter{}
	e.DisableEvents()

	return e
}

// RegisterEventHandler registers the event handler interface.
func (e *Emitter) RegisterEventHandler(eh EventHandler) {
	if eh == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.p = eh
	e.s = eh
}

// DisableEvents unregisters the event handler.
func (e *Emitter) DisableEvents() {
	e.RegisterEventHandler(NilHandler())
}

// Publish calls the registered publisher handler.
func (e *Emitter) Publish(id EventID, data any) {
	if e == nil || id == nil {
		return
	}

	e.mu.RLock()
	p := e.p
	e.mu.RUnlock()

	if p == nil {
		return
	}

	p.Publish(id.Value(), id.String(), data)
}

// Subscribe calls the registered subscriber handler.
func (e *Emitter) Subscribe(id EventID) SubscriberID {
	if e == nil || id == nil {
		return NilHandler().Subscribe(0, "")
	}

	e.mu.RLock()
	s := e.s
	e.mu.RUnlock()

	if s == nil {
		return NilHandler().Subscribe(0, "")
	}

	return s.Subscribe(id.Value(), id.String())
}

// Close shuts down the default handler, if the emitter owns one.
// All subscriber channels are closed.
func (e *Emitter) Close() {
	e.mu.Lock()
	closer := e.closer
	e.closer = nil
	e.mu.Unlock()

	if closer != nil {
		closer()
	}
}

// DefaultHandler returns the default event handler.
func DefaultHandler() *defaultEventHandler {
	return &defaultEventHandler{PubSub: pubsub.New[uint, any](10)}
}

// NilHandler returns a disabled event handler.
func NilHandler() *nilEventHandler {
	return &nilEventHandler{}
}

// Publish publishes an event to the event stream.
func (d *defaultEventHandler) Publish(id uint, name string, data any) {
	d.TryPub(data, id)
}

// Subscribe subscribes to an event from the event stream.
func (d *defaultEventHandler) Subscribe(id uint, name string) SubscriberID {
	ch := d.Sub(id)
	return SubscriberID{
		C:      ch,
		active: true,
		unsub: func() {
			go d.Unsub(ch, id)
		},
	}
}

// Publish does not do anything.
func (n *nilEventHandler) Publish(uint, string, any) {
}

// Subscribe does not do anything.
func (n *nilEventHandler) Subscribe(uint, string) SubscriberID {
	ch := make(chan any)
	close(ch)
	return SubscriberID{C: ch}
}
