package subscriber

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the custom type to define the current subscription status of a Subscriber
type Status string

// Defining different subscription statuses. Only StatusActive subscribers
// receive dispatched messages.
const (
	StatusInactive Status = "inactive"
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
	StatusPastDue  Status = "past_due"
)

// DeliveryPreference is the custom type to define how a Subscriber wants
// scheduled messages delivered
type DeliveryPreference string

// Defining the delivery preferences. Timezone-adjusted delivery applies only
// when the preference is PreferScheduledTimezone and UseTimezoneMatching is set.
const (
	PreferOnDemand          DeliveryPreference = "on_demand"
	PreferScheduled         DeliveryPreference = "scheduled"
	PreferScheduledTimezone DeliveryPreference = "scheduled_timezone"
)

// Subscriber describes a person receiving scheduled text messages
type Subscriber struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	PhoneNumber string `json:"phoneNumber" gorm:"uniqueIndex;not null"`
	Carrier     string `json:"carrier"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	SMSEmail    string `json:"smsEmail"` // Derived email-to-SMS gateway address for the carrier

	TelegramUserID   string `json:"telegramUserId"`
	TelegramUsername string `json:"telegramUsername"`

	TimezoneOffsetMinutes int    `json:"timezoneOffsetMinutes"` // Minutes east of UTC
	TimezoneLabel         string `json:"timezoneLabel" gorm:"default:UTC"`

	MessageDeliveryPreference DeliveryPreference `json:"messageDeliveryPreference" gorm:"default:scheduled"`
	UseTimezoneMatching       bool               `json:"useTimezoneMatching"`

	GroupID *uint `json:"groupId" gorm:"index"`
	PlanID  *uint `json:"planId"`

	PaymentMethod      string `json:"paymentMethod" gorm:"default:stripe"` // stripe, paypal, crypto
	StripeCustomerID   string `json:"-"`
	SubscriptionStatus Status `json:"subscriptionStatus" gorm:"default:inactive;index"`

	DiscountCodeID *uint            `json:"discountCodeId"`
	FinalPrice     *decimal.Decimal `json:"finalPrice" gorm:"type:numeric(10,2)"` // Price snapshot after discount
	IsTrial        bool             `json:"isTrial"`
	TrialStartDate *time.Time       `json:"trialStartDate"`
	TrialEndDate   *time.Time       `json:"trialEndDate"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TimezoneMatched reports whether scheduled occurrences should be interpreted
// in the subscriber's local zone rather than UTC
func (s *Subscriber) TimezoneMatched() bool {
	return s.UseTimezoneMatching && s.MessageDeliveryPreference == PreferScheduledTimezone
}
