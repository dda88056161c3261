package subscription

import (
	"context"
	"fmt"

	"github.com/zllovesuki/subtext/broker"

	extErrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

type TaskOptions struct {
	SubscriptionManager *Manager
	Consumer            broker.Consumer
	Logger              *zap.Logger
}

type Task struct {
	TaskOptions
}

func NewTask(option TaskOptions) (*Task, error) {
	if option.SubscriptionManager == nil {
		return nil, fmt.Errorf("nil SubscriptionManager is invalid")
	}
	if option.Consumer == nil {
		return nil, fmt.Errorf("nil Consumer is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	return &Task{
		TaskOptions: option,
	}, nil
}

func (t *Task) handleActivation(ctx context.Context, event *broker.ActivationEvent) {
	if event == nil {
		t.Logger.Error("Received nil ActivationEvent when processing activation")
		return
	}
	if event.SubscriberID == 0 {
		t.Logger.Error("Received empty SubscriberID when processing activation")
		return
	}
	logger := t.Logger.With(
		zap.Uint("SubscriberID", event.SubscriberID),
		zap.String("Provider", event.Provider),
	)
	if err := t.SubscriptionManager.Activate(ctx, event.SubscriberID, event.Status, event.Provider, event.Reference); err != nil {
		logger.Error("Cannot apply activation event",
			zap.Error(err),
		)
	}
}

// HandleActivations processes status change events from payment providers in
// the background until ctx is canceled.
func (t *Task) HandleActivations(ctx context.Context) error {
	aChan, err := t.Consumer.ReceiveActivations(ctx)
	if err != nil {
		return extErrors.Wrap(err, "Cannot get activation channel")
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-aChan:
				t.handleActivation(ctx, event)
			}
		}
	}()
	return nil
}
