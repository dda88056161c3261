package schedule

import (
	"time"

	"github.com/zllovesuki/subtext/subscriber"
)

// ScheduledMessage is one due message in the scheduling store. ScheduledTime
// is the canonical dispatch trigger and is always a naive UTC instant. The
// timezone offset and label are snapshots taken at creation time, not a live
// reference: if the subscriber's timezone later changes, already-scheduled
// messages keep the offset that was in effect when they were scheduled, which
// keeps historical schedule audits stable.
type ScheduledMessage struct {
	ID           uint                  `json:"id" gorm:"primaryKey"`
	SubscriberID uint                  `json:"subscriberId" gorm:"index;not null"`
	Subscriber   subscriber.Subscriber `json:"-" gorm:"constraint:OnDelete:CASCADE"`

	Message       string    `json:"message" gorm:"not null"`
	ScheduledTime time.Time `json:"scheduledTime" gorm:"index;not null"`

	Sent   bool       `json:"sent" gorm:"default:false;index"`
	SentAt *time.Time `json:"sentAt"` // Set once, on first successful send

	TimezoneOffsetMinutes int    `json:"timezoneOffsetMinutes"`
	TimezoneLabel         string `json:"timezoneLabel" gorm:"default:UTC"`

	BatchID string `json:"batchId" gorm:"index"` // Groups messages created by one planner invocation

	CreatedAt time.Time `json:"createdAt"`
}
