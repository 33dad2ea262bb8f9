package nativepulsar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/sirupsen/logrus"

	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
)

const (
	redeliverySubscription = "demo-subscription"
	defaultMaxRedeliveries = 5
	nackRedeliveryDelay    = time.Second
)

// redeliveryConsumer negatively acknowledges every message so that the
// broker redelivers it until the dead letter policy moves it away.
type redeliveryConsumer struct {
	settings config.Settings

	deadLetterTopic string
	maxRedeliveries int

	client   pulsar.Client
	consumer pulsar.Consumer
}

// RedeliveryConsumer demonstrates negative acknowledgement with a dead
// letter topic.
func RedeliveryConsumer(settings config.Settings) harness.Program {
	r := &redeliveryConsumer{settings: settings}
	return harness.Program{
		APIType: APIType,
		Name:    "RedeliveryConsumer",
		Short:   "Nack every message until it is moved to a dead letter topic",
		Hooks: harness.Hooks{
			Register:  r.register,
			Validate:  r.validate,
			Execute:   r.execute,
			Terminate: r.terminate,
		},
	}
}

func (r *redeliveryConsumer) register(app *harness.App) error {
	if err := app.AddRequiredOption(optDLT, "deadLetterTopic", true,
		"Pulsar dead letter topic where messages go if redelivery fails."); err != nil {
		return err
	}
	return app.AddOptionalOption(optMaxRedeliv, "maxRedeliver", true,
		fmt.Sprintf("Deliveries before a message is sent to the dead letter topic (default %d).", defaultMaxRedeliveries))
}

func (r *redeliveryConsumer) validate(app *harness.App) error {
	if err := requireTopic(app); err != nil {
		return err
	}
	args := app.Args()

	dlt, err := args.String(optDLT, "")
	if err != nil {
		return err
	}
	if dlt == app.Topic() {
		return harness.InvalidParam(optDLT, "Dead letter topic must differ from the consumed topic!")
	}
	r.deadLetterTopic = dlt

	maxDeliveries, err := args.Int(optMaxRedeliv, defaultMaxRedeliveries)
	if err != nil {
		return err
	}
	if maxDeliveries <= 0 {
		return harness.InvalidParam(optMaxRedeliv, "Maximum redelivery count must be a positive integer!")
	}
	r.maxRedeliveries = maxDeliveries
	return nil
}

func (r *redeliveryConsumer) consumerOptions(topic string) pulsar.ConsumerOptions {
	return pulsar.ConsumerOptions{
		Topic:               topic,
		SubscriptionName:    redeliverySubscription,
		Type:                pulsar.Shared,
		NackRedeliveryDelay: nackRedeliveryDelay,
		DLQ: &pulsar.DLQPolicy{
			MaxDeliveries:   uint32(r.maxRedeliveries),
			DeadLetterTopic: r.deadLetterTopic,
		},
	}
}

func (r *redeliveryConsumer) execute(ctx context.Context, app *harness.App) error {
	log := app.Logger()

	client, err := newClient(app, r.settings)
	if err != nil {
		return harness.RuntimeFailure(err, "Unexpected error when creating Pulsar client")
	}
	r.client = client

	consumer, err := client.Subscribe(r.consumerOptions(app.Topic()))
	if err != nil {
		return harness.RuntimeFailure(err, "Failed to create Pulsar consumer")
	}
	r.consumer = consumer

	log.WithFields(logrus.Fields{
		"topic":           app.Topic(),
		"deadLetterTopic": r.deadLetterTopic,
		"maxDeliveries":   r.maxRedeliveries,
	}).Info("negatively acknowledging every message")

	received := 0
	for received < limit(app.NumMsg()) {
		rctx, cancel := receiveContext(ctx, r.settings)
		msg, err := consumer.Receive(rctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer interrupted")
				break
			}
			if errors.Is(err, context.DeadlineExceeded) {
				log.Info("no message within receive timeout, stopping")
				break
			}
			return harness.RuntimeFailure(err, "Unexpected error when consuming Pulsar messages")
		}

		fields := messageFields(msg)
		fields["redeliveryCount"] = msg.RedeliveryCount()
		fields["value"] = string(msg.Payload())
		log.WithFields(fields).Info("Received message, sending negative acknowledgement")

		consumer.Nack(msg)
		received++
	}
	return nil
}

func (r *redeliveryConsumer) terminate(app *harness.App) error {
	if r.consumer != nil {
		r.consumer.Close()
		r.consumer = nil
	}
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
	return nil
}
