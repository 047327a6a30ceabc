package eventbus

import "sync"

// registration ties a handler to one subscribe call, so unsubscribing
// removes exactly that instance even when the same handler object was
// subscribed more than once.
type registration struct {
	handler Handler
}

// Subscription is the handle returned by Subscribe and SubscribeToAll.
type Subscription struct {
	registry  *HandlerRegistry
	eventType string // empty for global subscriptions
	reg       *registration
	once      sync.Once
}

// Unsubscribe removes the registration. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.registry.remove(s.eventType, s.reg)
	})
}

// HandlerRegistry maps event types to subscribed handlers. Each bus
// instance owns its own registry; nothing here is shared globally.
type HandlerRegistry struct {
	mu     sync.RWMutex
	typed  map[string][]*registration
	global []*registration
}

// NewHandlerRegistry constructs an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{typed: make(map[string][]*registration)}
}

// Subscribe registers a handler for one event type.
func (r *HandlerRegistry) Subscribe(eventType string, handler Handler) *Subscription {
	reg := &registration{handler: handler}
	r.mu.Lock()
	r.typed[eventType] = append(r.typed[eventType], reg)
	r.mu.Unlock()
	return &Subscription{registry: r, eventType: eventType, reg: reg}
}

// SubscribeToAll registers a handler for every event type.
func (r *HandlerRegistry) SubscribeToAll(handler Handler) *Subscription {
	reg := &registration{handler: handler}
	r.mu.Lock()
	r.global = append(r.global, reg)
	r.mu.Unlock()
	return &Subscription{registry: r, reg: reg}
}

// Matching returns the handlers interested in eventType: type-specific
// subscribers first, then global ones, each group in subscription
// order. The result is a copy, so subscribing or unsubscribing midway
// through a pass does not affect a dispatch already in flight.
func (r *HandlerRegistry) Matching(eventType string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := make([]Handler, 0, len(r.typed[eventType])+len(r.global))
	for _, reg := range r.typed[eventType] {
		handlers = append(handlers, reg.handler)
	}
	for _, reg := range r.global {
		handlers = append(handlers, reg.handler)
	}
	return handlers
}

func (r *HandlerRegistry) remove(eventType string, reg *registration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if eventType == "" {
		r.global = removeRegistration(r.global, reg)
		return
	}

	r.typed[eventType] = removeRegistration(r.typed[eventType], reg)
	if len(r.typed[eventType]) == 0 {
		delete(r.typed, eventType)
	}
}

func removeRegistration(regs []*registration, target *registration) []*registration {
	for i, reg := range regs {
		if reg == target {
			return append(regs[:i], regs[i+1:]...)
		}
	}
	return regs
}
