package subscription

import (
	"time"

	"github.com/zllovesuki/subtext/subscriber"
)

// Subscription is the payment record behind a subscriber. The provider
// protocols themselves (card processor, PayPal, crypto deposits) live with
// external collaborators; this record only tracks their outcome.
type Subscription struct {
	ID           uint                  `json:"id" gorm:"primaryKey"`
	SubscriberID uint                  `json:"subscriberId" gorm:"index;not null"`
	Subscriber   subscriber.Subscriber `json:"-" gorm:"constraint:OnDelete:CASCADE"`

	PaymentMethod string `json:"paymentMethod" gorm:"default:stripe"` // stripe, paypal, crypto

	StripeSubscriptionID string `json:"-" gorm:"index"`
	StripeCustomerID     string `json:"-"`

	PayPalSubscriptionID string `json:"-"`
	CryptoPaymentID      string `json:"-"`
	CryptoCurrency       string `json:"cryptoCurrency"`

	Status             subscriber.Status `json:"status"`
	CurrentPeriodStart *time.Time        `json:"currentPeriodStart"`
	CurrentPeriodEnd   *time.Time        `json:"currentPeriodEnd"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
