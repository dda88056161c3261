package schedule

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/zllovesuki/subtext/group"
	"github.com/zllovesuki/subtext/subscriber"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPlanner(t *testing.T, f *fixtures) *Planner {
	p, err := NewPlanner(PlannerOptions{
		ScheduleManager:   f.schedules,
		GroupManager:      f.groups,
		SubscriberManager: f.subscribers,
		Logger:            zap.NewNop(),
	})
	require.NoError(t, err)
	return p
}

func TestExpandOnlyActiveSubscribers(t *testing.T) {
	f := testFixtures(t)
	p := testPlanner(t, f)
	ctx := context.Background()

	g := &group.ServiceGroup{Name: "daily-fives", IsActive: true}
	require.NoError(t, f.groups.Create(ctx, g))

	statuses := []subscriber.Status{
		subscriber.StatusActive,
		subscriber.StatusPending,
		subscriber.StatusActive,
		subscriber.StatusCanceled,
		subscriber.StatusActive,
	}
	for i, status := range statuses {
		f.newSubscriber(t, fmt.Sprintf("1555100000%d", i), func(s *subscriber.Subscriber) {
			s.GroupID = &g.ID
			s.SubscriptionStatus = status
		})
	}

	result, err := p.Expand(ctx, g.ID, "morning", ExpandOption{
		Date: time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Scheduled)
	assert.Equal(t, 0, result.TimezoneMatched)
	assert.Equal(t, 3, result.NonTimezoneMatched)
	assert.Equal(t, "2021-06-15", result.Date)
	assert.NotEmpty(t, result.BatchID)

	due, err := f.schedules.Due(ctx, time.Date(2021, 6, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, due, 3)
	for _, msg := range due {
		assert.Equal(t, result.BatchID, msg.BatchID)
		assert.Equal(t, "Good morning! 🌅", msg.Message)
	}
}

func TestExpandTimezoneMatching(t *testing.T) {
	f := testFixtures(t)
	p := testPlanner(t, f)
	ctx := context.Background()

	g := &group.ServiceGroup{Name: "tz-group", IsActive: true}
	require.NoError(t, g.SetScheduledTimes(map[string]string{"morning": "08:00"}))
	require.NoError(t, f.groups.Create(ctx, g))

	matched := f.newSubscriber(t, "15551000101", func(s *subscriber.Subscriber) {
		s.GroupID = &g.ID
		s.TimezoneOffsetMinutes = 330
		s.MessageDeliveryPreference = subscriber.PreferScheduledTimezone
		s.UseTimezoneMatching = true
	})
	unmatched := f.newSubscriber(t, "15551000102", func(s *subscriber.Subscriber) {
		s.GroupID = &g.ID
		s.TimezoneOffsetMinutes = 330
	})

	date := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	result, err := p.Expand(ctx, g.ID, "morning", ExpandOption{Date: date})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scheduled)
	assert.Equal(t, 1, result.TimezoneMatched)
	assert.Equal(t, 1, result.NonTimezoneMatched)

	byID := make(map[uint]ScheduledMessage)
	msgs, err := f.schedules.Due(ctx, date.AddDate(0, 0, 1))
	require.NoError(t, err)
	for _, msg := range msgs {
		byID[msg.SubscriberID] = msg
	}

	// 08:00 at UTC+05:30 is 02:30 UTC; the unmatched subscriber fires at
	// 08:00 UTC regardless of their stored offset
	assert.Equal(t, time.Date(2021, 6, 15, 2, 30, 0, 0, time.UTC), byID[matched.ID].ScheduledTime.UTC())
	assert.Equal(t, time.Date(2021, 6, 15, 8, 0, 0, 0, time.UTC), byID[unmatched.ID].ScheduledTime.UTC())
}

func TestExpandTextAndClockFallback(t *testing.T) {
	f := testFixtures(t)
	p := testPlanner(t, f)
	ctx := context.Background()

	g := &group.ServiceGroup{Name: "fallback-group", IsActive: true}
	require.NoError(t, f.groups.Create(ctx, g))
	f.newSubscriber(t, "15551000201", func(s *subscriber.Subscriber) {
		s.GroupID = &g.ID
	})

	date := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	result, err := p.Expand(ctx, g.ID, "checkin", ExpandOption{
		Text: "How was your day?",
		Date: date,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Scheduled)

	msgs, err := f.schedules.Due(ctx, date.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "How was your day?", msgs[0].Message)
	// unconfigured type falls back to the 08:00 default clock
	assert.Equal(t, time.Date(2021, 6, 15, 8, 0, 0, 0, time.UTC), msgs[0].ScheduledTime.UTC())
}

func TestExpandUnknownGroup(t *testing.T) {
	f := testFixtures(t)
	p := testPlanner(t, f)

	_, err := p.Expand(context.Background(), 99999, "morning", ExpandOption{})
	assert.Equal(t, group.ErrNotFound, err)
}

func TestExpandDaily(t *testing.T) {
	f := testFixtures(t)
	p := testPlanner(t, f)
	ctx := context.Background()

	g := &group.ServiceGroup{Name: "daily-group", IsActive: true}
	require.NoError(t, f.groups.Create(ctx, g))
	sub := f.newSubscriber(t, "15551000301", func(s *subscriber.Subscriber) {
		s.GroupID = &g.ID
	})

	date := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	results := p.ExpandDaily(ctx, g.ID, date)
	require.Len(t, results, len(DailyMessageTypes))
	for _, messageType := range DailyMessageTypes {
		result, ok := results[messageType]
		require.True(t, ok)
		assert.Empty(t, result.Error)
		assert.Equal(t, 1, result.Scheduled)
	}

	msgs, err := f.schedules.ListBySubscriber(ctx, sub.ID, true)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func TestExpandWeekly(t *testing.T) {
	f := testFixtures(t)
	p := testPlanner(t, f)
	ctx := context.Background()

	g := &group.ServiceGroup{Name: "weekly-group", IsActive: true}
	require.NoError(t, f.groups.Create(ctx, g))
	sub := f.newSubscriber(t, "15551000401", func(s *subscriber.Subscriber) {
		s.GroupID = &g.ID
	})

	start := time.Date(2021, 6, 15, 0, 0, 0, 0, time.UTC)
	results := p.ExpandWeekly(ctx, g.ID, start)
	require.Len(t, results, 7)
	for day := 0; day < 7; day++ {
		key := start.AddDate(0, 0, day).Format("2006-01-02")
		daily, ok := results[key]
		require.True(t, ok, "missing day %s", key)
		assert.Len(t, daily, len(DailyMessageTypes))
	}

	msgs, err := f.schedules.ListBySubscriber(ctx, sub.ID, true)
	require.NoError(t, err)
	assert.Len(t, msgs, 7*len(DailyMessageTypes))
}
