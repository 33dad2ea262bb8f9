package s4k

import (
	"context"
	"errors"
	"math"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
)

// groupReader is the part of *kafka.Reader the consumer loop uses.
type groupReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaConsumer struct {
	settings config.Settings
	groupID  string

	reader groupReader
}

// IoTSensorKafkaConsumer reads sensor readings as a member of a consumer
// group and commits every message it logs.
func IoTSensorKafkaConsumer(settings config.Settings) harness.Program {
	c := &kafkaConsumer{settings: settings}
	return harness.Program{
		APIType: APIType,
		Name:    "IoTSensorKafkaConsumer",
		Short:   "Consume IoT sensor readings through the Kafka compatible endpoint",
		Hooks: harness.Hooks{
			Register:  c.register,
			Validate:  c.validate,
			Execute:   c.execute,
			Terminate: c.terminate,
		},
	}
}

func (c *kafkaConsumer) register(app *harness.App) error {
	return app.AddRequiredOption(optGroupID, "group.id", true, "Kafka consumer group id.")
}

func (c *kafkaConsumer) validate(app *harness.App) error {
	if err := requireTopic(app); err != nil {
		return err
	}
	groupID, err := app.Args().String(optGroupID, "")
	if err != nil {
		return err
	}
	c.groupID = groupID
	return nil
}

func (c *kafkaConsumer) execute(ctx context.Context, app *harness.App) error {
	conn, err := connect(app, c.settings)
	if err != nil {
		return err
	}
	c.reader = conn.NewReader(app.Topic(), c.groupID)
	return c.consume(ctx, app)
}

// consume fetches and commits until numMsg messages were handled, the
// context is cancelled or the receive timeout elapses.
func (c *kafkaConsumer) consume(ctx context.Context, app *harness.App) error {
	log := app.Logger()
	log.Infof("Consuming from topic %s as group %s ...", app.Topic(), c.groupID)

	bound := app.NumMsg()
	if bound == harness.InfiniteMessages {
		bound = math.MaxInt
	}

	received := 0
	for received < bound {
		fctx, cancel := ctx, context.CancelFunc(func() {})
		if d := c.settings.ReceiveTimeout(); d > 0 {
			fctx, cancel = context.WithTimeout(ctx, d)
		}
		msg, err := c.reader.FetchMessage(fctx)
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
			return harness.RuntimeFailure(err, "Unexpected error when consuming Kafka messages")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				log.WithField("offset", msg.Offset).Info("consumer interrupted before commit")
				break
			}
			return harness.RuntimeFailure(err, "Failed to commit offset %d", msg.Offset)
		}
		received++

		log.WithFields(fields(msg)).Info("Message received and committed")
	}

	log.WithField("count", received).Info("consumer finished")
	return nil
}

func fields(msg kafka.Message) logrus.Fields {
	f := logrus.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
		"value":     string(msg.Value),
	}
	if len(msg.Key) > 0 {
		f["key"] = string(msg.Key)
	}
	for _, h := range msg.Headers {
		f["header."+h.Key] = string(h.Value)
	}
	return f
}

func (c *kafkaConsumer) terminate(app *harness.App) error {
	if c.reader == nil {
		return nil
	}
	err := c.reader.Close()
	c.reader = nil
	return err
}
