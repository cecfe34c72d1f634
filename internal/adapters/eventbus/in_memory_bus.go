package eventbus

import (
	"MicroStudioLink/internal/core/ports"
	"context"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// subscriber is one entry of a topic's handler list.
type subscriber struct {
	id          ports.SubscriptionID
	handler     ports.EventHandler
	fingerprint uintptr // code pointer of the handler the caller passed in
	owner       interface{}
	weight      int
	removed     atomic.Bool
}

// inMemoryEventBus implements the ports.EventBus interface
type inMemoryEventBus struct {
	log          zerolog.Logger
	maxListeners int // 0 means unlimited
	mu           sync.RWMutex
	topics       map[string][]*subscriber
}

var _ ports.EventBus = (*inMemoryEventBus)(nil)

// Option configures the bus.
type Option func(*inMemoryEventBus)

// WithMaxListeners sets the per-topic listener ceiling. Reaching it only logs
// a warning; registration still succeeds.
func WithMaxListeners(n int) Option {
	return func(b *inMemoryEventBus) {
		if n > 0 {
			b.maxListeners = n
		}
	}
}

// NewInMemoryEventBus creates a new, empty event bus
func NewInMemoryEventBus(baseLogger *zerolog.Logger, opts ...Option) ports.EventBus {
	b := &inMemoryEventBus{
		log:    baseLogger.With().Str("component", "in_memory_bus").Logger(),
		topics: make(map[string][]*subscriber),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for a specific topic
func (b *inMemoryEventBus) Subscribe(topic string, handler ports.EventHandler, opts ...ports.SubscribeOption) (ports.SubscriptionID, error) {
	if handler == nil {
		return uuid.Nil, ports.ErrNilHandler
	}
	id := uuid.New()
	b.add(topic, id, handler, fingerprintOf(handler), ports.ApplySubscribeOptions(opts...))
	return id, nil
}

// SubscribeOnce wraps the handler so it unsubscribes itself on the first
// delivery, before the handler runs.
func (b *inMemoryEventBus) SubscribeOnce(topic string, handler ports.EventHandler, opts ...ports.SubscribeOption) (ports.SubscriptionID, error) {
	if handler == nil {
		return uuid.Nil, ports.ErrNilHandler
	}
	id := uuid.New()
	var fired atomic.Bool
	wrapped := func(ctx context.Context, event ports.Event) error {
		if !fired.CompareAndSwap(false, true) {
			return nil
		}
		b.Unsubscribe(topic, id)
		return handler(ctx, event)
	}
	b.add(topic, id, wrapped, fingerprintOf(handler), ports.ApplySubscribeOptions(opts...))
	return id, nil
}

func (b *inMemoryEventBus) add(topic string, id ports.SubscriptionID, handler ports.EventHandler, fp uintptr, o ports.SubscribeOptions) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, known := b.topics[topic]
	if known {
		if b.maxListeners > 0 && len(subs) >= b.maxListeners {
			b.log.Warn().
				Str("topic", topic).
				Int("max_listeners", b.maxListeners).
				Msg("Max listeners for topic reached")
		}
		if hasDuplicate(subs, fp, o.Owner) {
			b.log.Warn().Str("topic", topic).Msg("Topic already has this handler")
		}
	}

	next := make([]*subscriber, 0, len(subs)+1)
	next = append(next, subs...)
	next = append(next, &subscriber{
		id:          id,
		handler:     handler,
		fingerprint: fp,
		owner:       o.Owner,
		weight:      o.Weight,
	})
	sort.SliceStable(next, func(i, j int) bool { return next[i].weight > next[j].weight })
	b.topics[topic] = next

	b.log.Debug().Str("topic", topic).Int("weight", o.Weight).Msg("New handler subscribed to topic")
}

// Unsubscribe removes subscriptions, or the whole topic when ids is empty.
func (b *inMemoryEventBus) Unsubscribe(topic string, ids ...ports.SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		return
	}

	if len(ids) == 0 {
		for _, s := range subs {
			s.removed.Store(true)
		}
		delete(b.topics, topic)
		return
	}

	drop := make(map[ports.SubscriptionID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := make([]*subscriber, 0, len(subs))
	for _, s := range subs {
		if _, ok := drop[s.id]; ok {
			s.removed.Store(true)
			continue
		}
		kept = append(kept, s)
	}
	b.topics[topic] = kept
}

// Publish runs every handler of the topic on the caller's goroutine. Handlers
// run against a snapshot taken before the first call, so handlers may
// subscribe or unsubscribe freely; entries removed mid-publish are skipped.
func (b *inMemoryEventBus) Publish(ctx context.Context, topic string, data interface{}) error {
	b.mu.RLock()
	snapshot := append([]*subscriber(nil), b.topics[topic]...)
	b.mu.RUnlock()

	if len(snapshot) == 0 {
		b.log.Debug().Str("topic", topic).Msg("Published event with no subscribers")
		return nil
	}

	var errs error
	for _, s := range snapshot {
		if s.removed.Load() {
			continue
		}
		event := ports.Event{Topic: topic, Data: data, Owner: s.owner}
		if err := s.handler(ctx, event); err != nil {
			b.log.Error().Err(err).Str("topic", topic).Msg("Event handler failed")
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Clear drops every topic and handler.
func (b *inMemoryEventBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, subs := range b.topics {
		for _, s := range subs {
			s.removed.Store(true)
		}
	}
	b.topics = make(map[string][]*subscriber)
}

// ListenerCount returns (0, false) for a topic that was never registered or
// was removed by a bare Unsubscribe.
func (b *inMemoryEventBus) ListenerCount(topic string) (int, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs, ok := b.topics[topic]
	return len(subs), ok
}

func fingerprintOf(handler ports.EventHandler) uintptr {
	return reflect.ValueOf(handler).Pointer()
}

// hasDuplicate matches on the handler's code pointer, so two closures built
// from the same literal count as duplicates. It only drives a warning.
func hasDuplicate(subs []*subscriber, fp uintptr, owner interface{}) bool {
	for _, s := range subs {
		if s.fingerprint == fp && sameOwner(s.owner, owner) {
			return true
		}
	}
	return false
}

func sameOwner(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	// Value.Comparable also inspects dynamic values held in interface fields.
	if !reflect.ValueOf(a).Comparable() || !reflect.ValueOf(b).Comparable() {
		return false
	}
	return a == b
}
