package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/zllovesuki/subtext/subscriber"
	"github.com/zllovesuki/subtext/util"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrSubscriberNotFound is returned when scheduling against an unknown subscriber
var ErrSubscriberNotFound = errors.New("subscriber not found")

// Manager handles the database operations relating to ScheduledMessages
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewManager returns a new Manager for the scheduling store
func NewManager(logger *zap.Logger, db *gorm.DB) (*Manager, error) {
	if err := db.AutoMigrate(&ScheduledMessage{}); err != nil {
		return nil, extErrors.Wrap(err, "Cannot initialize schedule.Manager")
	}
	return &Manager{
		db:     db,
		logger: logger,
	}, nil
}

// ScheduleInput describes one scheduling request. At carries the requested
// instant; AtIsAbsolute tells whether the caller's input had explicit
// UTC/offset information (an absolute instant, already normalized to UTC by
// the caller) or was a bare wall-clock value.
type ScheduleInput struct {
	SubscriberID uint
	Message      string
	At           time.Time
	AtIsAbsolute bool
}

// Schedule creates one entry in the scheduling store, snapshotting the
// subscriber's current timezone offset and label.
//
// An absolute input is persisted as-is (normalized to UTC). A bare wall-clock
// input is interpreted in the subscriber's local zone and converted to UTC
// when the subscriber's preference enables timezone matching; otherwise it is
// treated as already being UTC and persisted unchanged. The asymmetry lets
// the same entry point serve both "send at this exact UTC moment" and "send
// at this moment in the recipient's local time", distinguished only by the
// subscriber's stored preference flags.
func (m *Manager) Schedule(ctx context.Context, input ScheduleInput) (*ScheduledMessage, error) {
	var sub subscriber.Subscriber
	lookup := m.db.WithContext(ctx).First(&sub, "id = ?", input.SubscriberID)
	if errors.Is(lookup.Error, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriberNotFound
	}
	if lookup.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(lookup.Error),
		)
		return nil, extErrors.Wrap(lookup.Error, "Cannot look up subscriber for scheduling")
	}

	var scheduledUTC time.Time
	switch {
	case input.AtIsAbsolute:
		scheduledUTC = input.At.UTC()
	case sub.TimezoneMatched():
		scheduledUTC = util.LocalToUTC(input.At, sub.TimezoneOffsetMinutes)
	default:
		scheduledUTC = input.At
	}

	msg := &ScheduledMessage{
		SubscriberID:          sub.ID,
		Message:               input.Message,
		ScheduledTime:         scheduledUTC,
		TimezoneOffsetMinutes: sub.TimezoneOffsetMinutes,
		TimezoneLabel:         sub.TimezoneLabel,
	}
	result := m.db.WithContext(ctx).Create(msg)
	if result.Error != nil {
		m.logger.Error("Unable to create scheduled message in database",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot schedule message")
	}
	return msg, nil
}

// CreateBatch persists all entries of one planner invocation in a single
// transaction: either every entry persists or none do.
func (m *Manager) CreateBatch(ctx context.Context, msgs []ScheduledMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for k := range msgs {
			if result := tx.Create(&msgs[k]); result.Error != nil {
				return result.Error
			}
		}
		return nil
	})
	if err != nil {
		m.logger.Error("Unable to create scheduled message batch in database",
			zap.Error(err),
		)
		return extErrors.Wrap(err, "Cannot create scheduled message batch")
	}
	return nil
}

// Due returns all unsent messages whose trigger instant has passed
func (m *Manager) Due(ctx context.Context, now time.Time) ([]ScheduledMessage, error) {
	results := make([]ScheduledMessage, 0, 8)
	result := m.db.WithContext(ctx).
		Where("sent = ?", false).
		Where("scheduled_time <= ?", now).
		Order("scheduled_time asc").
		Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot query due messages")
	}
	return results, nil
}

// Claim marks a message as sent if and only if it has not been claimed yet.
// The conditional update is what keeps concurrent pollers from double-sending:
// exactly one caller observes true. A claim whose subsequent send fails must
// be handed back via Release.
func (m *Manager) Claim(ctx context.Context, id uint, now time.Time) (bool, error) {
	result := m.db.WithContext(ctx).
		Model(&ScheduledMessage{}).
		Where("id = ?", id).
		Where("sent = ?", false).
		Updates(map[string]interface{}{
			"sent":    true,
			"sent_at": now,
		})
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return false, extErrors.Wrap(result.Error, "Cannot claim scheduled message")
	}
	return result.RowsAffected > 0, nil
}

// Release returns a claimed message to the pending state so the next poll
// cycle reconsiders it
func (m *Manager) Release(ctx context.Context, id uint) error {
	result := m.db.WithContext(ctx).
		Model(&ScheduledMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sent":    false,
			"sent_at": nil,
		})
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return extErrors.Wrap(result.Error, "Cannot release scheduled message")
	}
	return nil
}

// ListBySubscriber returns a subscriber's scheduled messages, soonest first
func (m *Manager) ListBySubscriber(ctx context.Context, subscriberID uint, pendingOnly bool) ([]ScheduledMessage, error) {
	results := make([]ScheduledMessage, 0, 8)
	baseQuery := m.db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("scheduled_time asc")
	if pendingOnly {
		baseQuery = baseQuery.Where("sent = ?", false)
	}
	result := baseQuery.Find(&results)
	if result.Error != nil {
		m.logger.Error("Database returned error",
			zap.Error(result.Error),
		)
		return nil, extErrors.Wrap(result.Error, "Cannot list scheduled messages")
	}
	return results, nil
}
