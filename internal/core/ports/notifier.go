package ports

import "context"

// EventSource is the subscription half of a StudioClient.
type EventSource interface {
	On(topic string, handler EventHandler, opts ...SubscribeOption) (SubscriptionID, error)
	Off(topic string, ids ...SubscriptionID)
}

// PushNotifier forwards unsolicited service pushes somewhere a human sees them.
type PushNotifier interface {
	// Attach subscribes to the pushes of source.
	Attach(source EventSource) error
	// Detach drops every subscription made by Attach.
	Detach()
	// Run delivers queued notifications until ctx is done.
	Run(ctx context.Context) error
}
