package telegram

import (
	"context"
	"fmt"

	"github.com/zllovesuki/subtext/subscriber"

	"go.uber.org/zap"
)

// SenderOptions provides initialization parameters for the Telegram Sender
type SenderOptions struct {
	Client *Client
	Logger *zap.Logger
}

// Sender delivers scheduled messages over Telegram
type Sender struct {
	SenderOptions
}

// NewSender returns a Sender backed by the Telegram Bot API
func NewSender(option SenderOptions) (*Sender, error) {
	if option.Client == nil {
		return nil, fmt.Errorf("nil Client is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Sender{
		SenderOptions: option,
	}, nil
}

// Send delivers the message to the subscriber's Telegram chat
func (s *Sender) Send(ctx context.Context, sub *subscriber.Subscriber, message string) error {
	if sub.TelegramUserID == "" {
		return fmt.Errorf("subscriber %d has no Telegram chat", sub.ID)
	}
	if err := s.Client.SendMessage(ctx, sub.TelegramUserID, message); err != nil {
		return err
	}
	s.Logger.Debug("Delivered message via Telegram",
		zap.Uint("SubscriberID", sub.ID),
	)
	return nil
}
