package nativepulsar

import (
	"context"
	"errors"
	"fmt"

	"github.com/apache/pulsar-client-go/pulsar"

	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
)

// topicReader streams messages without a subscription and writes the
// payloads to stdout.
type topicReader struct {
	settings config.Settings
	start    pulsar.MessageID

	client pulsar.Client
	reader pulsar.Reader
}

// TopicReader reads a topic from the earliest or latest position.
func TopicReader(settings config.Settings) harness.Program {
	r := &topicReader{settings: settings}
	return harness.Program{
		APIType: APIType,
		Name:    "TopicReader",
		Short:   "Read messages from a Pulsar topic without a subscription",
		Hooks: harness.Hooks{
			Register:  r.register,
			Validate:  r.validate,
			Execute:   r.execute,
			Terminate: r.terminate,
		},
	}
}

func (r *topicReader) register(app *harness.App) error {
	return app.AddOptionalOption(optStartPos, "startPos", true, "Where to start reading: earliest or latest (default).")
}

func (r *topicReader) validate(app *harness.App) error {
	if err := requireTopic(app); err != nil {
		return err
	}
	pos, err := app.Args().String(optStartPos, "latest")
	if err != nil {
		return err
	}
	initial, err := parseInitialPosition(optStartPos, pos)
	if err != nil {
		return err
	}
	if initial == pulsar.SubscriptionPositionEarliest {
		r.start = pulsar.EarliestMessageID()
	} else {
		r.start = pulsar.LatestMessageID()
	}
	return nil
}

func (r *topicReader) execute(ctx context.Context, app *harness.App) error {
	log := app.Logger()

	client, err := newClient(app, r.settings)
	if err != nil {
		return harness.RuntimeFailure(err, "Unexpected error when creating Pulsar client")
	}
	r.client = client

	reader, err := client.CreateReader(pulsar.ReaderOptions{
		Topic:          app.Topic(),
		StartMessageID: r.start,
	})
	if err != nil {
		return harness.RuntimeFailure(err, "Failed to create Pulsar reader")
	}
	r.reader = reader

	log.Infof("Reading from topic %s ...", app.Topic())

	read := 0
	for read < limit(app.NumMsg()) {
		rctx, cancel := receiveContext(ctx, r.settings)
		msg, err := reader.Next(rctx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				log.Info("reader interrupted")
				break
			}
			if errors.Is(err, context.DeadlineExceeded) {
				log.Info("no message within receive timeout, stopping")
				break
			}
			return harness.RuntimeFailure(err, "Unexpected error when reading Pulsar messages")
		}
		read++
		log.WithFields(messageFields(msg)).Info("received message")
		if _, err := fmt.Fprintln(app.Stdout(), string(msg.Payload())); err != nil {
			return harness.RuntimeFailure(err, "Failed to write payload")
		}
	}
	return nil
}

func (r *topicReader) terminate(app *harness.App) error {
	if r.reader != nil {
		r.reader.Close()
		r.reader = nil
	}
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
	return nil
}
