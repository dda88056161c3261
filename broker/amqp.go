package broker

import (
	"context"
	"encoding/json"

	extErrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var _ Producer = &AMQPBroker{}
var _ Consumer = &AMQPBroker{}

const (
	activationExchange string = "subscriber_activation"
	activationQueue           = "subscriber_activation_events"
	activationKey             = "activation"
)

// AMQPBroker carries activation events via RabbitMQ
type AMQPBroker struct {
	logger     *zap.Logger
	connection *amqp.Connection
	channel    *amqp.Channel
}

// NewAMQPBroker returns an activation event broker over RabbitMQ
func NewAMQPBroker(logger *zap.Logger, amqpURI string) (*AMQPBroker, error) {
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	broker := &AMQPBroker{
		logger:     logger,
		connection: amqpConn,
		channel:    amqpChan,
	}
	if err := broker.setupActivationExchange(); err != nil {
		return nil, extErrors.Wrap(err, "Cannot declare exchange for activation events")
	}

	return broker, nil
}

func (a *AMQPBroker) setupActivationExchange() error {
	return a.channel.ExchangeDeclare(
		activationExchange, // name
		"direct",           // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // arguments
	)
}

// Close will close the channel and connection to release resources
func (a *AMQPBroker) Close() {
	a.channel.Close()
	a.connection.Close()
}

// PublishActivation will publish one activation event for status consumers
func (a *AMQPBroker) PublishActivation(e *ActivationEvent) error {
	body, err := json.Marshal(e)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode event into bytes")
	}
	if err := a.channel.Publish(
		activationExchange,
		activationKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		return extErrors.Wrap(err, "Cannot publish activation event")
	}
	return nil
}

func (a *AMQPBroker) setupQueue(qName string) error {
	_, err := a.channel.QueueDeclare(
		qName,
		true,
		false,
		false,
		false,
		nil,
	)
	return err
}

// ReceiveActivations will setup the queue binding and return a channel of
// decoded activation events. Undecodable deliveries are rejected without
// requeue.
func (a *AMQPBroker) ReceiveActivations(ctx context.Context) (<-chan *ActivationEvent, error) {
	if err := a.setupQueue(activationQueue); err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup queue")
	}
	if err := a.channel.QueueBind(
		activationQueue,
		activationKey,
		activationExchange,
		false,
		nil,
	); err != nil {
		return nil, extErrors.Wrap(err, "Cannot bind queue")
	}
	msgChan, err := a.channel.Consume(
		activationQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup consumer")
	}
	rChan := make(chan *ActivationEvent)
	go a.pumpActivations(ctx, msgChan, rChan)
	return rChan, nil
}

func (a *AMQPBroker) pumpActivations(ctx context.Context, msgChan <-chan amqp.Delivery, rChan chan<- *ActivationEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgChan:
			if !ok {
				// delivery channel closed on connection loss
				a.logger.Error("Activation delivery channel closed")
				return
			}
			var event ActivationEvent
			if err := json.Unmarshal(d.Body, &event); err != nil {
				a.logger.Error("Cannot decode activation event",
					zap.Error(err),
				)
				d.Nack(false, false)
				continue
			}
			rChan <- &event
			d.Ack(false)
		}
	}
}
