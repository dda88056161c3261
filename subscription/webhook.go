package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/zllovesuki/subtext/broker"
	resp "github.com/zllovesuki/subtext/response"
	"github.com/zllovesuki/subtext/subscriber"

	"github.com/go-chi/chi"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"
)

const maxWebhookBody = 65536

// WebhookOptions contains the configuration for the payment webhook router
type WebhookOptions struct {
	Producer            broker.Producer
	SubscriptionManager *Manager
	Logger              *zap.Logger

	// StripeEndpointSecret verifies the webhook signature. Empty disables
	// verification and is only acceptable in development.
	StripeEndpointSecret string
}

// Webhook translates payment provider callbacks into activation events on
// the broker. The status flip itself happens in the background task consuming
// those events, so a webhook retry storm cannot hammer the database directly.
type Webhook struct {
	WebhookOptions
}

// NewWebhook will create the payment webhook router
func NewWebhook(option WebhookOptions) (*Webhook, error) {
	if option.Producer == nil {
		return nil, fmt.Errorf("nil Producer is invalid")
	}
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Webhook{
		WebhookOptions: option,
	}, nil
}

// statusFromStripe maps a provider subscription status onto ours
func statusFromStripe(status stripe.SubscriptionStatus) subscriber.Status {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return subscriber.StatusActive
	case stripe.SubscriptionStatusPastDue:
		return subscriber.StatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		return subscriber.StatusCanceled
	default:
		return subscriber.StatusPending
	}
}

func (h *Webhook) handleStripe(w http.ResponseWriter, r *http.Request) {
	payload, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Unable to read payload"))
		return
	}

	var event stripe.Event
	if len(h.StripeEndpointSecret) > 0 {
		event, err = webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.StripeEndpointSecret)
		if err != nil {
			resp.WriteError(w, r, resp.ErrBadRequest().AddMessages("Invalid signature"))
			return
		}
	} else if err := json.Unmarshal(payload, &event); err != nil {
		resp.WriteError(w, r, resp.ErrInvalidJson())
		return
	}

	switch event.Type {
	case "customer.subscription.updated", "customer.subscription.deleted":
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			resp.WriteError(w, r, resp.ErrInvalidJson())
			return
		}
		if err := h.publishActivation(r.Context(), &stripeSub); err != nil {
			h.Logger.Error("Unable to publish activation event",
				zap.String("StripeSubscriptionID", stripeSub.ID),
				zap.Error(err),
			)
			resp.WriteError(w, r, resp.ErrUnexpected())
			return
		}
	default:
		// unhandled event types are acknowledged so the provider stops retrying
	}

	resp.WriteResponse(w, r, true)
}

func (h *Webhook) publishActivation(ctx context.Context, stripeSub *stripe.Subscription) error {
	subscriberID, err := h.SubscriptionManager.SubscriberIDForStripeSubscription(ctx, stripeSub.ID)
	if err != nil {
		return err
	}

	status := statusFromStripe(stripeSub.Status)
	h.Logger.Info("Publishing activation event",
		zap.Uint("SubscriberID", subscriberID),
		zap.String("Status", string(status)),
	)
	return h.Producer.PublishActivation(&broker.ActivationEvent{
		SubscriberID: subscriberID,
		Status:       status,
		Provider:     "stripe",
		Reference:    stripeSub.ID,
		OccurredAt:   time.Now().UTC(),
	})
}

// Router returns the payment webhook routes
func (h *Webhook) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/stripe", h.handleStripe)

	return r
}
