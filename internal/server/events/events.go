// Package events publishes domain events such as user.created to a message
// bus. Delivery is best effort: one attempt, no outbox.
package events

import (
	"context"

	"github.com/dmitrijs2005/usersvc/internal/logging"
)

const UserCreated = "user.created"

// Publisher publishes payload under routingKey. accepted reports whether the
// bus took the message; false with a nil error means it was refused.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) (accepted bool, err error)
	Close() error
}

// Discard accepts and drops every event. Used when no bus is configured.
type Discard struct {
	log logging.Logger
}

func NewDiscard(log logging.Logger) *Discard {
	return &Discard{log: log}
}

func (d *Discard) Publish(ctx context.Context, routingKey string, payload []byte) (bool, error) {
	d.log.Debug(ctx, "event_discarded", "routing_key", routingKey, "bytes", len(payload))
	return true, nil
}

func (d *Discard) Close() error { return nil }
