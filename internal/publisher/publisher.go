// Package publisher announces finished catalogs to downstream consumers.
package publisher

import "context"

// Publisher sends one JSON-encoded event and returns the broker's message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// NoOp drops every event. It is used when no topic is configured.
type NoOp struct{}

// Publish implements Publisher.
func (NoOp) Publish(context.Context, string, any) (string, error) { return "", nil }
