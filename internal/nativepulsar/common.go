// Package nativepulsar contains the demos that talk to Pulsar through the
// native Go client.
package nativepulsar

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/sirupsen/logrus"

	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
	"petermann-digital.de/pulsar-workshop/internal/pulsarclient"
)

// APIType prefixes the log file names of the native demos.
const APIType = "nativeapi"

const (
	optCSVFile    = "csv"
	optSubName    = "sbn"
	optSubType    = "sbt"
	optSubInitPos = "sip"
	optDLT        = "dlt"
	optMaxRedeliv = "mrc"
	optStartPos   = "pos"
)

// Programs returns every native demo.
func Programs(settings config.Settings) []harness.Program {
	return []harness.Program{
		IoTSensorProducer(settings),
		IoTSensorProducerAvro(settings),
		IoTSensorConsumer(settings),
		IoTSensorConsumerAvro(settings),
		RedeliveryConsumer(settings),
		TopicReader(settings),
	}
}

// requireTopic fails validation when -t was not given.
func requireTopic(app *harness.App) error {
	if app.Topic() == "" {
		return harness.InvalidParam(harness.OptTopic, "Must provide a topic name!")
	}
	return nil
}

// limit converts a message count to a loop bound; infinite mode becomes
// math.MaxInt.
func limit(numMsg int) int {
	if numMsg == harness.InfiniteMessages {
		return math.MaxInt
	}
	return numMsg
}

func newClient(app *harness.App, settings config.Settings) (pulsar.Client, error) {
	return pulsarclient.New(app.ConnConfig(), app.Hosted(), settings.OperationTimeout())
}

// receiveContext bounds one receive call when a receive timeout is set.
func receiveContext(ctx context.Context, settings config.Settings) (context.Context, context.CancelFunc) {
	if d := settings.ReceiveTimeout(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func parseSubscriptionType(subscriptionType string) (pulsar.SubscriptionType, error) {
	switch strings.ToLower(strings.ReplaceAll(subscriptionType, "-", "_")) {
	case "exclusive":
		return pulsar.Exclusive, nil
	case "shared":
		return pulsar.Shared, nil
	case "failover":
		return pulsar.Failover, nil
	case "key_shared", "keyshared":
		return pulsar.KeyShared, nil
	default:
		return pulsar.Exclusive, harness.InvalidParam(optSubType,
			"Invalid subscription type %q (expected exclusive, shared, failover or key_shared)", subscriptionType)
	}
}

func parseInitialPosition(option, position string) (pulsar.SubscriptionInitialPosition, error) {
	switch strings.ToLower(position) {
	case "earliest":
		return pulsar.SubscriptionPositionEarliest, nil
	case "latest":
		return pulsar.SubscriptionPositionLatest, nil
	default:
		return pulsar.SubscriptionPositionLatest, harness.InvalidParam(option,
			"Invalid initial position %q (expected earliest or latest)", position)
	}
}

func messageFields(msg pulsar.Message) logrus.Fields {
	fields := logrus.Fields{
		"topic":     msg.Topic(),
		"msgID":     msg.ID().String(),
		"publishAt": msg.PublishTime().Format(time.RFC3339Nano),
	}
	if key := msg.Key(); key != "" {
		fields["key"] = key
	}
	if props := msg.Properties(); len(props) > 0 {
		fields["properties"] = props
	}
	return fields
}
