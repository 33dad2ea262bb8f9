package nativepulsar

import (
	"context"
	"errors"

	"github.com/apache/pulsar-client-go/pulsar"

	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
	"petermann-digital.de/pulsar-workshop/internal/sensor"
)

// sensorConsumer reads sensor readings through a subscription and
// acknowledges each one.
type sensorConsumer struct {
	settings config.Settings
	avro     bool

	subscriptionName string
	subscriptionType pulsar.SubscriptionType
	initialPosition  pulsar.SubscriptionInitialPosition

	client   pulsar.Client
	consumer pulsar.Consumer
}

// IoTSensorConsumer consumes raw payloads.
func IoTSensorConsumer(settings config.Settings) harness.Program {
	c := &sensorConsumer{settings: settings}
	return harness.Program{
		APIType: APIType,
		Name:    "IoTSensorConsumer",
		Short:   "Consume messages from a Pulsar topic using a subscription",
		Hooks:   c.hooks(),
	}
}

// IoTSensorConsumerAvro consumes readings decoded with the Avro schema.
func IoTSensorConsumerAvro(settings config.Settings) harness.Program {
	c := &sensorConsumer{settings: settings, avro: true}
	return harness.Program{
		APIType: APIType,
		Name:    "IoTSensorConsumerAvro",
		Short:   "Consume IoT sensor readings from a Pulsar topic using an Avro schema",
		Hooks:   c.hooks(),
	}
}

func (c *sensorConsumer) hooks() harness.Hooks {
	return harness.Hooks{
		Register:  c.register,
		Validate:  c.validate,
		Execute:   c.execute,
		Terminate: c.terminate,
	}
}

func (c *sensorConsumer) register(app *harness.App) error {
	if err := app.AddOptionalOption(optSubType, "subType", true,
		"Pulsar subscription type: exclusive (default), shared, failover or key_shared."); err != nil {
		return err
	}
	if err := app.AddRequiredOption(optSubName, "subName", true, "Pulsar subscription name."); err != nil {
		return err
	}
	if c.avro {
		return nil
	}
	return app.AddOptionalOption(optSubInitPos, "subInitPos", true,
		"Initial position for a new subscription: earliest or latest (default).")
}

func (c *sensorConsumer) validate(app *harness.App) error {
	if err := requireTopic(app); err != nil {
		return err
	}
	args := app.Args()

	name, err := args.String(optSubName, "")
	if err != nil {
		return err
	}
	if name == "" {
		return harness.InvalidParam(optSubName, "Must provide a subscription name for a consumer!")
	}
	c.subscriptionName = name

	subType, err := args.String(optSubType, "exclusive")
	if err != nil {
		return err
	}
	if c.subscriptionType, err = parseSubscriptionType(subType); err != nil {
		return err
	}

	c.initialPosition = pulsar.SubscriptionPositionLatest
	if !c.avro {
		pos, err := args.String(optSubInitPos, "latest")
		if err != nil {
			return err
		}
		if c.initialPosition, err = parseInitialPosition(optSubInitPos, pos); err != nil {
			return err
		}
	}
	return nil
}

func (c *sensorConsumer) execute(ctx context.Context, app *harness.App) error {
	log := app.Logger()

	client, err := newClient(app, c.settings)
	if err != nil {
		return harness.RuntimeFailure(err, "Unexpected error when creating Pulsar client")
	}
	c.client = client

	opts := pulsar.ConsumerOptions{
		Topic:                       app.Topic(),
		SubscriptionName:            c.subscriptionName,
		Type:                        c.subscriptionType,
		SubscriptionInitialPosition: c.initialPosition,
	}
	if c.avro {
		opts.Schema = pulsar.NewAvroSchema(sensor.AvroSchema, nil)
	}
	consumer, err := client.Subscribe(opts)
	if err != nil {
		return harness.RuntimeFailure(err, "Failed to create Pulsar consumer")
	}
	c.consumer = consumer

	log.Infof("Consuming from topic %s with subscription %s ...", app.Topic(), c.subscriptionName)

	received := 0
	for received < limit(app.NumMsg()) {
		rctx, cancel := receiveContext(ctx, c.settings)
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
		fields["consumer"] = consumer.Name()
		if c.avro {
			var reading sensor.Reading
			if err := msg.GetSchemaValue(&reading); err != nil {
				return harness.RuntimeFailure(err, "Failed to decode Avro sensor reading")
			}
			fields["value"] = reading.String()
		} else {
			fields["value"] = string(msg.Payload())
		}

		if err := consumer.Ack(msg); err != nil {
			return harness.RuntimeFailure(err, "Failed to acknowledge message %s", msg.ID())
		}
		received++
		log.WithFields(fields).Info("Message received and acknowledged")
	}

	log.WithField("count", received).Info("consumer finished")
	return nil
}

func (c *sensorConsumer) terminate(app *harness.App) error {
	if c.consumer != nil {
		c.consumer.Close()
		c.consumer = nil
	}
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
	return nil
}
