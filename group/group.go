package group

import (
	"encoding/json"
	"time"
)

// DefaultClock is the local wall clock time used when a group has no explicit
// mapping for a message type
const DefaultClock = "08:00"

// ServiceGroup describes one service hosted on the platform. Subscribers
// belong to at most one group; the group's recurrence configuration drives
// the recurring daily messages.
type ServiceGroup struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	Description string `json:"description"`

	StartMessage string `json:"startMessage"` // Greeting shown when a subscriber first registers

	SupportTelegramUsername string `json:"supportTelegramUsername"`
	SupportEmail            string `json:"supportEmail"`

	IsActive      bool  `json:"isActive" gorm:"default:true"`
	DefaultPlanID *uint `json:"defaultPlanId"`

	// JSON object mapping message-type keys to local clock times,
	// e.g. {"morning": "08:00", "noon": "12:00", "evening": "18:00"}.
	// The key set is open, not fixed to those three.
	ScheduledTimes string `json:"-" gorm:"column:scheduled_times"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ScheduledTimeMap decodes the recurrence configuration. A missing or
// malformed column yields an empty map.
func (g *ServiceGroup) ScheduledTimeMap() map[string]string {
	times := make(map[string]string)
	if len(g.ScheduledTimes) == 0 {
		return times
	}
	if err := json.Unmarshal([]byte(g.ScheduledTimes), &times); err != nil {
		return map[string]string{}
	}
	return times
}

// ClockFor returns the configured "HH:MM" local clock time for a message
// type, falling back to DefaultClock
func (g *ServiceGroup) ClockFor(messageType string) string {
	if clock, ok := g.ScheduledTimeMap()[messageType]; ok && len(clock) > 0 {
		return clock
	}
	return DefaultClock
}

// SetScheduledTimes encodes and stores the recurrence configuration
func (g *ServiceGroup) SetScheduledTimes(times map[string]string) error {
	encoded, err := json.Marshal(times)
	if err != nil {
		return err
	}
	g.ScheduledTimes = string(encoded)
	return nil
}
