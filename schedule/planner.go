package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/zllovesuki/subtext/group"
	"github.com/zllovesuki/subtext/subscriber"
	"github.com/zllovesuki/subtext/util"

	"github.com/lithammer/shortuuid/v3"
	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// DailyMessageTypes are the message types expanded by ExpandDaily
var DailyMessageTypes = []string{"morning", "noon", "evening"}

var defaultGreetings = map[string]string{
	"morning": "Good morning! 🌅",
	"noon":    "Good noon! ☀️",
	"evening": "Good evening! 🌆",
}

func greetingFor(messageType string) string {
	if greeting, ok := defaultGreetings[messageType]; ok {
		return greeting
	}
	return fmt.Sprintf("Good %s!", messageType)
}

// PlannerOptions contains the dependencies for the recurrence Planner
type PlannerOptions struct {
	ScheduleManager   *Manager
	GroupManager      *group.Manager
	SubscriberManager *subscriber.Manager
	Logger            *zap.Logger
}

// Planner expands a group's recurring daily pattern into one concrete
// scheduling store entry per active subscriber per occurrence
type Planner struct {
	PlannerOptions
}

// NewPlanner will return a recurrence Planner for service groups
func NewPlanner(option PlannerOptions) (*Planner, error) {
	if option.ScheduleManager == nil {
		return nil, fmt.Errorf("nil ScheduleManager is invalid")
	}
	if option.GroupManager == nil {
		return nil, fmt.Errorf("nil GroupManager is invalid")
	}
	if option.SubscriberManager == nil {
		return nil, fmt.Errorf("nil SubscriberManager is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Planner{
		PlannerOptions: option,
	}, nil
}

// ExpandOption carries the optional parameters for one expansion
type ExpandOption struct {
	Text string    // Overrides the type-specific canned greeting when set
	Date time.Time // Target date; zero value means today (UTC)
}

// ExpandResult summarizes one expansion
type ExpandResult struct {
	Scheduled          int    `json:"scheduled"`
	TimezoneMatched    int    `json:"timezoneMatched"`
	NonTimezoneMatched int    `json:"nonTimezoneMatched"`
	MessageType        string `json:"messageType"`
	Date               string `json:"date"`
	BatchID            string `json:"batchId,omitempty"`
	Error              string `json:"error,omitempty"`
}

// Expand creates one scheduling store entry per active subscriber of the
// group for the given message type and date. Subscribers in any status other
// than active are skipped entirely. All entries of one invocation are
// committed as a single atomic batch.
//
// A subscriber with timezone matching in effect has the group's local clock
// time interpreted in their own zone and converted to UTC; every other
// subscriber fires at the identical UTC wall-clock moment regardless of their
// real local time.
func (p *Planner) Expand(ctx context.Context, groupID uint, messageType string, opt ExpandOption) (*ExpandResult, error) {
	g, err := p.GroupManager.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, group.ErrNotFound
	}

	clock := g.ClockFor(messageType)
	hour, minute, err := util.ParseClock(clock)
	if err != nil {
		return nil, extErrors.Wrapf(err, "Group %d has an invalid clock for %q", groupID, messageType)
	}

	date := opt.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	subscribers, err := p.SubscriberManager.ListActiveByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	text := opt.Text
	if len(text) == 0 {
		text = greetingFor(messageType)
	}

	result := &ExpandResult{
		MessageType: messageType,
		Date:        date.Format("2006-01-02"),
		BatchID:     shortuuid.New(),
	}

	msgs := make([]ScheduledMessage, 0, len(subscribers))
	for _, sub := range subscribers {
		occurrence := util.CombineDateClock(date, hour, minute)

		var scheduledUTC time.Time
		if sub.TimezoneMatched() {
			scheduledUTC = util.LocalToUTC(occurrence, sub.TimezoneOffsetMinutes)
			result.TimezoneMatched++
		} else {
			scheduledUTC = occurrence
			result.NonTimezoneMatched++
		}

		msgs = append(msgs, ScheduledMessage{
			SubscriberID:          sub.ID,
			Message:               text,
			ScheduledTime:         scheduledUTC,
			TimezoneOffsetMinutes: sub.TimezoneOffsetMinutes,
			TimezoneLabel:         sub.TimezoneLabel,
			BatchID:               result.BatchID,
		})
	}

	if err := p.ScheduleManager.CreateBatch(ctx, msgs); err != nil {
		return nil, err
	}
	result.Scheduled = len(msgs)

	p.Logger.Info("Expanded group recurrence",
		zap.Uint("GroupID", groupID),
		zap.String("MessageType", messageType),
		zap.String("Date", result.Date),
		zap.Int("Scheduled", result.Scheduled),
		zap.Int("TimezoneMatched", result.TimezoneMatched),
	)

	return result, nil
}

// ExpandDaily runs Expand for the three fixed daily message types. The calls
// are independent: a failing type is reported in its result entry and does
// not prevent the remaining types from attempting.
func (p *Planner) ExpandDaily(ctx context.Context, groupID uint, date time.Time) map[string]*ExpandResult {
	results := make(map[string]*ExpandResult, len(DailyMessageTypes))
	for _, messageType := range DailyMessageTypes {
		result, err := p.Expand(ctx, groupID, messageType, ExpandOption{Date: date})
		if err != nil {
			p.Logger.Error("Unable to expand group recurrence",
				zap.Uint("GroupID", groupID),
				zap.String("MessageType", messageType),
				zap.Error(err),
			)
			results[messageType] = &ExpandResult{
				MessageType: messageType,
				Error:       err.Error(),
			}
			continue
		}
		results[messageType] = result
	}
	return results
}

// ExpandWeekly runs ExpandDaily once per day for 7 consecutive days starting
// at startDate (today when zero), keyed by date
func (p *Planner) ExpandWeekly(ctx context.Context, groupID uint, startDate time.Time) map[string]map[string]*ExpandResult {
	if startDate.IsZero() {
		startDate = time.Now().UTC()
	}
	results := make(map[string]map[string]*ExpandResult, 7)
	for day := 0; day < 7; day++ {
		date := startDate.AddDate(0, 0, day)
		results[date.Format("2006-01-02")] = p.ExpandDaily(ctx, groupID, date)
	}
	return results
}
