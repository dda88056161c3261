package auth

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/johnsto/go-passwordless"
)

func (a *Auth) getTransport() string {
	if a.Environment == EnvProduction {
		return "SMS"
	}
	return "Log"
}

// Request will deliver a login code to the recipient. The recipient is the
// carrier email-to-SMS address of the subscriber's phone number.
func (a *Auth) Request(ctx context.Context, uid, recipient string) error {
	return a.pw.RequestToken(ctx, a.getTransport(), uid, recipient)
}

// Verify checks if the login code is valid and corresponds to the user
func (a *Auth) Verify(ctx context.Context, uid, token string) (bool, error) {
	valid, err := a.pw.VerifyToken(ctx, uid, token)
	switch err {
	case passwordless.ErrNoResponseWriter, passwordless.ErrNoStore, passwordless.ErrNoTransport, passwordless.ErrNotValidForContext:
		return valid, err
	default:
		return valid, nil
	}
}

// smsTransport delivers login codes through a carrier email-to-SMS gateway.
// SMS bodies have a hard length ceiling, so the message stays terse.
type smsTransport struct {
	hostname string
	from     string
	auth     smtp.Auth
	name     string
}

func (t *smsTransport) Send(ctx context.Context, token, user, recipient string) error {
	body := fmt.Sprintf("To: %s\r\nSubject: \r\n\r\n%s login code: %s (expires in 10 minutes)\r\n",
		recipient,
		t.name,
		token,
	)
	return smtp.SendMail(t.hostname, t.auth, t.from, []string{recipient}, []byte(body))
}
