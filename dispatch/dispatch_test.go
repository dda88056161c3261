package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zllovesuki/subtext/schedule"
	"github.com/zllovesuki/subtext/subscriber"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []string
	failures map[uint]error
}

func (f *fakeSender) Send(ctx context.Context, sub *subscriber.Subscriber, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[sub.ID]; ok {
		return err
	}
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeSender) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type taskFixtures struct {
	db          *gorm.DB
	subscribers *subscriber.Manager
	schedules   *schedule.Manager
	sender      *fakeSender
	task        *Task
}

func testTask(t *testing.T) *taskFixtures {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared&_foreign_keys=on"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	logger := zap.NewNop()
	subscribers, err := subscriber.NewManager(logger, db)
	require.NoError(t, err)
	schedules, err := schedule.NewManager(logger, db)
	require.NoError(t, err)

	sender := &fakeSender{failures: make(map[uint]error)}
	task, err := NewTask(TaskOptions{
		ScheduleManager:   schedules,
		SubscriberManager: subscribers,
		Sender:            sender,
		Logger:            logger,
	})
	require.NoError(t, err)

	return &taskFixtures{
		db:          db,
		subscribers: subscribers,
		schedules:   schedules,
		sender:      sender,
		task:        task,
	}
}

func (f *taskFixtures) newSubscriber(t *testing.T, phone string, status subscriber.Status) *subscriber.Subscriber {
	sub := &subscriber.Subscriber{
		PhoneNumber:        phone,
		SubscriptionStatus: status,
	}
	require.NoError(t, f.subscribers.Create(context.Background(), sub))
	return sub
}

func (f *taskFixtures) dueMessage(t *testing.T, sub *subscriber.Subscriber, text string) *schedule.ScheduledMessage {
	msg, err := f.schedules.Schedule(context.Background(), schedule.ScheduleInput{
		SubscriberID: sub.ID,
		Message:      text,
		At:           time.Now().UTC().Add(-time.Minute),
		AtIsAbsolute: true,
	})
	require.NoError(t, err)
	return msg
}

func TestNewTaskValidation(t *testing.T) {
	f := testTask(t)

	_, err := NewTask(TaskOptions{
		ScheduleManager:   f.schedules,
		SubscriberManager: f.subscribers,
		Sender:            f.sender,
		Logger:            zap.NewNop(),
		PollInterval:      time.Minute * 2,
	})
	assert.Error(t, err)
}

func TestPollOnceDelivers(t *testing.T) {
	f := testTask(t)
	ctx := context.Background()

	sub := f.newSubscriber(t, "15552000001", subscriber.StatusActive)
	f.dueMessage(t, sub, "hello there")

	f.task.PollOnce(ctx)
	assert.Equal(t, []string{"hello there"}, f.sender.sentMessages())

	// the message is claimed; a second cycle must not send again
	f.task.PollOnce(ctx)
	assert.Len(t, f.sender.sentMessages(), 1)

	pending, err := f.schedules.ListBySubscriber(ctx, sub.ID, true)
	require.NoError(t, err)
	assert.Len(t, pending, 0)
}

func TestPollOnceSkipsNonActive(t *testing.T) {
	f := testTask(t)
	ctx := context.Background()

	pendingSub := f.newSubscriber(t, "15552000010", subscriber.StatusPending)
	canceledSub := f.newSubscriber(t, "15552000011", subscriber.StatusCanceled)
	f.dueMessage(t, pendingSub, "too early")
	f.dueMessage(t, canceledSub, "too late")

	f.task.PollOnce(ctx)
	f.task.PollOnce(ctx)
	assert.Len(t, f.sender.sentMessages(), 0)

	// messages stay pending for when the subscriber becomes active
	pending, err := f.schedules.ListBySubscriber(ctx, pendingSub.ID, true)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, f.subscribers.UpdateStatus(ctx, pendingSub.ID, subscriber.StatusActive))
	f.task.PollOnce(ctx)
	assert.Equal(t, []string{"too early"}, f.sender.sentMessages())
}

func TestPollOnceReleasesOnFailure(t *testing.T) {
	f := testTask(t)
	ctx := context.Background()

	sub := f.newSubscriber(t, "15552000020", subscriber.StatusActive)
	f.dueMessage(t, sub, "flaky delivery")
	f.sender.failures[sub.ID] = errors.New("gateway unavailable")

	f.task.PollOnce(ctx)
	assert.Len(t, f.sender.sentMessages(), 0)

	// claim was released, so the next cycle retries and succeeds
	delete(f.sender.failures, sub.ID)
	f.task.PollOnce(ctx)
	assert.Equal(t, []string{"flaky delivery"}, f.sender.sentMessages())
}

func TestPollOnceLogsSubscriberLookupFailure(t *testing.T) {
	f := testTask(t)
	ctx := context.Background()

	sub := f.newSubscriber(t, "15552000040", subscriber.StatusActive)
	f.dueMessage(t, sub, "never delivered")

	core, logs := observer.New(zap.ErrorLevel)
	task, err := NewTask(TaskOptions{
		ScheduleManager:   f.schedules,
		SubscriberManager: f.subscribers,
		Sender:            f.sender,
		Logger:            zap.New(core),
	})
	require.NoError(t, err)

	// break subscriber lookups while keeping the due query intact
	require.NoError(t, f.db.Exec("PRAGMA foreign_keys=off").Error)
	require.NoError(t, f.db.Migrator().DropTable(&subscriber.Subscriber{}))

	task.PollOnce(ctx)
	assert.Len(t, f.sender.sentMessages(), 0)
	assert.Equal(t, 1, logs.FilterMessage("Unable to look up subscriber for due message").Len())
}

func TestPollOnceIgnoresFutureMessages(t *testing.T) {
	f := testTask(t)
	ctx := context.Background()

	sub := f.newSubscriber(t, "15552000030", subscriber.StatusActive)
	_, err := f.schedules.Schedule(ctx, schedule.ScheduleInput{
		SubscriberID: sub.ID,
		Message:      "tomorrow",
		At:           time.Now().UTC().Add(24 * time.Hour),
		AtIsAbsolute: true,
	})
	require.NoError(t, err)

	f.task.PollOnce(ctx)
	assert.Len(t, f.sender.sentMessages(), 0)
}
