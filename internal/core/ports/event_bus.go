package ports

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNilHandler is returned when subscribing a nil handler.
var ErrNilHandler = errors.New("event handler is not callable")

// Event is a generic wrapper for any event payload
type Event struct {
	Topic string
	Data  interface{}
	// Owner is the value bound at subscribe time (see WithOwner), nil if none.
	Owner interface{}
}

// EventHandler is a function that can handle a specific event
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID identifies one registered handler. It is the only way to
// remove a single handler, since Go funcs are not comparable.
type SubscriptionID = uuid.UUID

// SubscribeOptions holds the optional parameters of a subscription.
type SubscribeOptions struct {
	Weight int
	Owner  interface{}
}

// SubscribeOption mutates SubscribeOptions.
type SubscribeOption func(*SubscribeOptions)

// DefaultWeight is the weight of a subscription without WithWeight.
const DefaultWeight = 1

// WithWeight sets the invocation priority. Higher runs first.
func WithWeight(weight int) SubscribeOption {
	return func(o *SubscribeOptions) { o.Weight = weight }
}

// WithOwner binds a value to the subscription. Owners that are not comparable
// are never treated as duplicates.
func WithOwner(owner interface{}) SubscribeOption {
	return func(o *SubscribeOptions) { o.Owner = owner }
}

// ApplySubscribeOptions resolves opts on top of the defaults.
func ApplySubscribeOptions(opts ...SubscribeOption) SubscribeOptions {
	o := SubscribeOptions{Weight: DefaultWeight}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// EventBus defines the interface for our in-process pub/sub system
type EventBus interface {
	// Publish synchronously runs every handler of a topic, highest weight first.
	// Publishing a topic nobody listens to is a no-op.
	Publish(ctx context.Context, topic string, data interface{}) error

	// Subscribe registers a handler for a specific topic
	Subscribe(topic string, handler EventHandler, opts ...SubscribeOption) (SubscriptionID, error)

	// SubscribeOnce registers a handler that removes itself before its first run.
	SubscribeOnce(topic string, handler EventHandler, opts ...SubscribeOption) (SubscriptionID, error)

	// Unsubscribe removes the given subscriptions from a topic. With no ids
	// the topic and all of its handlers are dropped.
	Unsubscribe(topic string, ids ...SubscriptionID)

	// Clear drops every topic.
	Clear()

	// ListenerCount reports the number of handlers of a topic. The boolean is
	// false when the topic is unknown.
	ListenerCount(topic string) (int, bool)
}
