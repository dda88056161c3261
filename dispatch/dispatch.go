package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zllovesuki/subtext/schedule"
	"github.com/zllovesuki/subtext/subscriber"

	"go.uber.org/zap"
)

// Sender is the external send capability (SMS gateway, telegram, etc). A
// returned error is ordinary, not exceptional: the message stays pending and
// is retried on a later poll cycle.
type Sender interface {
	Send(ctx context.Context, sub *subscriber.Subscriber, message string) error
}

const (
	defaultPollInterval = time.Second * 30
	defaultSendTimeout  = time.Second * 15
	defaultConcurrency  = 4
)

// TaskOptions contains the dependencies and tuning for the dispatch Task
type TaskOptions struct {
	ScheduleManager   *schedule.Manager
	SubscriberManager *subscriber.Manager
	Sender            Sender
	Logger            *zap.Logger

	// PollInterval must stay fixed and at most a minute to bound delivery
	// latency. Zero means the default of 30s.
	PollInterval time.Duration
	// SendTimeout bounds each send so a hung provider cannot stall the cycle
	SendTimeout time.Duration
	// Concurrency bounds the number of in-flight sends per cycle
	Concurrency int
}

// Task polls the scheduling store and delivers due messages
type Task struct {
	TaskOptions
}

// NewTask will return a dispatch Task for scheduled messages
func NewTask(option TaskOptions) (*Task, error) {
	if option.ScheduleManager == nil {
		return nil, fmt.Errorf("nil ScheduleManager is invalid")
	}
	if option.SubscriberManager == nil {
		return nil, fmt.Errorf("nil SubscriberManager is invalid")
	}
	if option.Sender == nil {
		return nil, fmt.Errorf("nil Sender is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.PollInterval <= 0 {
		option.PollInterval = defaultPollInterval
	}
	if option.PollInterval > time.Minute {
		return nil, fmt.Errorf("PollInterval above one minute is invalid")
	}
	if option.SendTimeout <= 0 {
		option.SendTimeout = defaultSendTimeout
	}
	if option.Concurrency <= 0 {
		option.Concurrency = defaultConcurrency
	}
	return &Task{
		TaskOptions: option,
	}, nil
}

// Start runs the poll loop until ctx is cancelled
func (t *Task) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.PollOnce(ctx)
			}
		}
	}()
}

// PollOnce performs one dispatch cycle: query due unsent messages, claim each
// eligible one, and send with bounded concurrency. Per-message state is
// committed individually, so a crash mid-cycle loses at most the in-flight
// message's confirmation.
//
// Delivery is at-least-once-when-eligible: a message whose subscriber is not
// active is left pending and reconsidered every cycle until the subscriber
// becomes active or is deleted. A failed send releases the claim so the next
// cycle retries; there is no cap on retry attempts.
func (t *Task) PollOnce(ctx context.Context) {
	now := time.Now().UTC()
	due, err := t.ScheduleManager.Due(ctx, now)
	if err != nil {
		t.Logger.Error("Unable to query due messages",
			zap.Error(err),
		)
		return
	}
	if len(due) == 0 {
		return
	}

	sem := make(chan struct{}, t.Concurrency)
	var wg sync.WaitGroup
	for k := range due {
		msg := due[k]

		sub, err := t.SubscriberManager.GetByID(ctx, msg.SubscriberID)
		if err != nil {
			t.Logger.Error("Unable to look up subscriber for due message",
				zap.Uint("MessageID", msg.ID),
				zap.Uint("SubscriberID", msg.SubscriberID),
				zap.Error(err),
			)
			continue
		}
		if sub == nil || sub.SubscriptionStatus != subscriber.StatusActive {
			// not eligible: leave pending for a later cycle
			continue
		}

		claimed, err := t.ScheduleManager.Claim(ctx, msg.ID, time.Now().UTC())
		if err != nil || !claimed {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(msg schedule.ScheduledMessage, sub *subscriber.Subscriber) {
			defer wg.Done()
			defer func() { <-sem }()
			t.deliver(ctx, msg, sub)
		}(msg, sub)
	}
	wg.Wait()
}

func (t *Task) deliver(ctx context.Context, msg schedule.ScheduledMessage, sub *subscriber.Subscriber) {
	logger := t.Logger.With(
		zap.Uint("MessageID", msg.ID),
		zap.Uint("SubscriberID", sub.ID),
	)

	sendCtx, cancel := context.WithTimeout(ctx, t.SendTimeout)
	defer cancel()

	if err := t.Sender.Send(sendCtx, sub, msg.Message); err != nil {
		logger.Error("Unable to deliver scheduled message, releasing claim",
			zap.Error(err),
		)
		if releaseErr := t.ScheduleManager.Release(ctx, msg.ID); releaseErr != nil {
			logger.Error("Unable to release claimed message",
				zap.Error(releaseErr),
			)
		}
		return
	}

	logger.Info("Delivered scheduled message")
}
