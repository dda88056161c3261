package notify

import (
	"context"
	"fmt"

	"github.com/zllovesuki/subtext/dispatch"
	"github.com/zllovesuki/subtext/subscriber"
)

// RouterOptions provides initialization parameters for the Router
type RouterOptions struct {
	SMS      dispatch.Sender
	Telegram dispatch.Sender
}

// Router picks a delivery channel per subscriber: Telegram when the
// subscriber has linked a chat, the carrier SMS gateway otherwise.
type Router struct {
	RouterOptions
}

// NewRouter returns a channel-routing Sender
func NewRouter(option RouterOptions) (*Router, error) {
	if option.SMS == nil {
		return nil, fmt.Errorf("nil SMS sender is invalid")
	}
	return &Router{
		RouterOptions: option,
	}, nil
}

// Send delivers the message over the subscriber's preferred channel
func (r *Router) Send(ctx context.Context, sub *subscriber.Subscriber, message string) error {
	if r.Telegram != nil && sub.TelegramUserID != "" {
		return r.Telegram.Send(ctx, sub, message)
	}
	return r.SMS.Send(ctx, sub, message)
}
