package gateway

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/zllovesuki/subtext/subscriber"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// SenderOptions contains the SMTP configuration for relaying messages
type SenderOptions struct {
	SMTPAuth smtp.Auth
	From     string
	Hostname string // host:port of the SMTP relay
	Logger   *zap.Logger
}

// Sender delivers messages to subscribers over their carrier's email-to-SMS
// gateway
type Sender struct {
	SenderOptions
}

// NewSender will return a Sender relaying via SMTP
func NewSender(option SenderOptions) (*Sender, error) {
	if option.SMTPAuth == nil {
		return nil, fmt.Errorf("nil SMTPAuth is invalid")
	}
	if len(option.From) == 0 {
		return nil, fmt.Errorf("empty From is invalid")
	}
	if len(option.Hostname) == 0 {
		return nil, fmt.Errorf("empty Hostname is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Sender{
		SenderOptions: option,
	}, nil
}

// Send relays the message body to the subscriber's email-to-SMS address. The
// subject stays empty: gateways forward the body only, and a subject would
// waste SMS length.
func (s *Sender) Send(ctx context.Context, sub *subscriber.Subscriber, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := sub.SMSEmail
	if len(to) == 0 {
		derived, err := SMSAddress(sub.PhoneNumber, sub.Carrier)
		if err != nil {
			return extErrors.Wrap(err, "Cannot derive SMS address for subscriber")
		}
		to = derived
	}

	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: \r\n\r\n%s\r\n", s.From, to, message)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(s.Hostname, s.SMTPAuth, s.From, []string{to}, []byte(body))
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			s.Logger.Error("SMTP relay returned error",
				zap.Uint("SubscriberID", sub.ID),
				zap.Error(err),
			)
			return extErrors.Wrap(err, "Cannot relay message via SMTP")
		}
	}
	return nil
}
