package broker

import (
	"context"
	"time"

	"github.com/zllovesuki/subtext/subscriber"
)

// ActivationEvent signals that a payment collaborator (card processor
// webhook, PayPal, manual deposit approval) changed a subscriber's
// subscription status. Consumers flip the subscriber row; already-queued
// pending messages become dispatch-eligible without being re-created.
type ActivationEvent struct {
	SubscriberID uint              `json:"subscriberId"`
	Status       subscriber.Status `json:"status"`
	Provider     string            `json:"provider"` // stripe, paypal, crypto, admin
	Reference    string            `json:"reference"`
	OccurredAt   time.Time         `json:"occurredAt"`
}

// Producer defines a producer publishing activation events via message broker
type Producer interface {
	Close()
	PublishActivation(e *ActivationEvent) error
}

// Consumer defines a consumer receiving activation events via message broker
type Consumer interface {
	Close()
	ReceiveActivations(ctx context.Context) (<-chan *ActivationEvent, error)
}
