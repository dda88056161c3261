package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPumpActivationsStopsOnClosedChannel(t *testing.T) {
	b := &AMQPBroker{logger: zap.NewNop()}

	body, err := json.Marshal(&ActivationEvent{SubscriberID: 7})
	require.NoError(t, err)

	msgChan := make(chan amqp.Delivery, 1)
	msgChan <- amqp.Delivery{Body: body}
	close(msgChan)

	rChan := make(chan *ActivationEvent, 1)
	done := make(chan struct{})
	go func() {
		b.pumpActivations(context.Background(), msgChan, rChan)
		close(done)
	}()

	event := <-rChan
	require.NotNil(t, event)
	assert.Equal(t, uint(7), event.SubscriberID)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump kept running after the delivery channel closed")
	}
}

func TestPumpActivationsStopsOnContextCancel(t *testing.T) {
	b := &AMQPBroker{logger: zap.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	msgChan := make(chan amqp.Delivery)
	rChan := make(chan *ActivationEvent)

	done := make(chan struct{})
	go func() {
		b.pumpActivations(ctx, msgChan, rChan)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump kept running after cancellation")
	}
}
