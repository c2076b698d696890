package event

import (
	"sync"

	"github.com/hession/memochat/internal/logger"
)

// Handler receives a published event.
type Handler func(Event)

// Bus is a typed publish/subscribe channel for in-process notifications.
//
// Dispatch rules:
//  1. Handlers run synchronously in subscription order.
//  2. A panicking handler is logged and does not stop the others.
//  3. A nil Bus is safe to use; all methods are no-ops.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Type][]subscription
	log    *logger.Named
}

type subscription struct {
	id      int
	handler Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Type][]subscription),
		log:  logger.For("event"),
	}
}

// Subscribe registers h for events of type t and returns a function that
// removes the subscription.
func (b *Bus) Subscribe(t Type, h Handler) func() {
	if b == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[t]
		for i, s := range list {
			if s.id == id {
				b.subs[t] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish dispatches ev to every handler subscribed to its type.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	// copy so handlers may subscribe or unsubscribe while running
	handlers := make([]subscription, len(b.subs[ev.Type]))
	copy(handlers, b.subs[ev.Type])
	b.mu.RUnlock()

	for _, s := range handlers {
		b.dispatch(s.handler, ev)
	}
}

func (b *Bus) dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("Handler for %s panicked: %v", ev.Type, r)
		}
	}()
	h(ev)
}
