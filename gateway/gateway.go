// Package gateway implements the email-to-SMS send capability: each carrier
// exposes an email domain that relays mail bodies as text messages to
// [10-digit-number]@[gateway-domain].
package gateway

import (
	"fmt"
	"strings"
)

// emailSMSGateways maps normalized carrier keys to their email-to-SMS domain
var emailSMSGateways = map[string]string{
	// Major US carriers
	"att":        "txt.att.net",
	"verizon":    "vtext.com",
	"t-mobile":   "tmomail.net",
	"tmobile":    "tmomail.net",
	"sprint":     "messaging.sprintpcs.com",
	"boost":      "myboostmobile.com",
	"cricket":    "sms.cricketwireless.net",
	"metropcs":   "mymetropcs.com",
	"tracfone":   "mmst5.tracfone.com",
	"uscellular": "email.uscc.net",
	"virgin":     "vmobl.com",
	"xfinity":    "vtext.com",

	// MVNOs and others
	"googlefi":         "msg.fi.google.com",
	"projectfi":        "msg.fi.google.com",
	"republic":         "text.republicwireless.com",
	"visible":          "vtext.com",
	"mint":             "tmomail.net",
	"ting":             "message.ting.com",
	"consumercellular": "mailmymobile.net",
	"straighttalk":     "vtext.com",
	"ultra":            "mymetropcs.com",
	"lycamobile":       "lycamobile.us",
}

// NormalizeCarrier canonicalizes free-text carrier input for lookup
func NormalizeCarrier(carrier string) string {
	return strings.ToLower(strings.TrimSpace(carrier))
}

// SupportedCarrier reports whether a gateway domain is known for the carrier
func SupportedCarrier(carrier string) bool {
	_, ok := emailSMSGateways[NormalizeCarrier(carrier)]
	return ok
}

// SMSAddress derives the email-to-SMS address for a phone number on a
// carrier. The phone number keeps only its digits; a leading US country code
// is dropped to produce the 10-digit local form the gateways expect.
func SMSAddress(phoneNumber, carrier string) (string, error) {
	domain, ok := emailSMSGateways[NormalizeCarrier(carrier)]
	if !ok {
		return "", fmt.Errorf("no email-to-SMS gateway known for carrier %q", carrier)
	}
	digits := digitsOnly(phoneNumber)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", fmt.Errorf("phone number %q does not normalize to 10 digits", phoneNumber)
	}
	return fmt.Sprintf("%s@%s", digits, domain), nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
