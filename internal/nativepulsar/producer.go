package nativepulsar

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"time"

	"github.com/apache/pulsar-client-go/pulsar"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
	"petermann-digital.de/pulsar-workshop/internal/sensor"
)

// sensorProducer publishes IoT sensor readings, either as JSON payloads or
// through the Avro schema.
type sensorProducer struct {
	settings config.Settings
	avro     bool
	csvPath  string

	client   pulsar.Client
	producer pulsar.Producer
	source   sensor.Source
}

// IoTSensorProducer sends sensor readings as JSON.
func IoTSensorProducer(settings config.Settings) harness.Program {
	p := &sensorProducer{settings: settings}
	return harness.Program{
		APIType: APIType,
		Name:    "IoTSensorProducer",
		Short:   "Produce IoT sensor readings (JSON) to a Pulsar topic",
		Hooks:   p.hooks(),
	}
}

// IoTSensorProducerAvro sends sensor readings with the Avro schema.
func IoTSensorProducerAvro(settings config.Settings) harness.Program {
	p := &sensorProducer{settings: settings, avro: true}
	return harness.Program{
		APIType: APIType,
		Name:    "IoTSensorProducerAvro",
		Short:   "Produce IoT sensor readings to a Pulsar topic using an Avro schema",
		Hooks:   p.hooks(),
	}
}

func (p *sensorProducer) hooks() harness.Hooks {
	return harness.Hooks{
		Register:  p.register,
		Validate:  p.validate,
		Execute:   p.execute,
		Terminate: p.terminate,
	}
}

func (p *sensorProducer) register(app *harness.App) error {
	return app.AddOptionalOption(optCSVFile, "csvFile", true,
		"IoT sensor data CSV file. Synthetic readings are generated when omitted.")
}

func (p *sensorProducer) validate(app *harness.App) error {
	if err := requireTopic(app); err != nil {
		return err
	}

	path, err := app.Args().FilePath(optCSVFile)
	if err != nil {
		return err
	}
	if path != "" {
		if _, statErr := os.Stat(path); statErr != nil {
			return harness.InvalidParamCause(optCSVFile, statErr, "Cannot read sensor data file")
		}
	}
	p.csvPath = path
	return nil
}

func (p *sensorProducer) openSource() (sensor.Source, error) {
	if p.csvPath != "" {
		return sensor.OpenCSV(p.csvPath)
	}
	return sensor.NewSynthetic(float64(time.Now().Unix())), nil
}

func (p *sensorProducer) execute(ctx context.Context, app *harness.App) error {
	log := app.Logger()

	client, err := newClient(app, p.settings)
	if err != nil {
		return harness.RuntimeFailure(err, "Unexpected error when creating Pulsar client")
	}
	p.client = client

	opts := pulsar.ProducerOptions{Topic: app.Topic()}
	if p.avro {
		opts.Schema = pulsar.NewAvroSchema(sensor.AvroSchema, nil)
	}
	producer, err := client.CreateProducer(opts)
	if err != nil {
		return harness.RuntimeFailure(err, "Failed to create Pulsar producer")
	}
	p.producer = producer

	source, err := p.openSource()
	if err != nil {
		return harness.RuntimeFailure(err, "Failed to open sensor data")
	}
	p.source = source

	sent := 0
	for sent < limit(app.NumMsg()) {
		reading, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return harness.RuntimeFailure(err, "Failed to read sensor data")
		}

		msg, err := p.message(reading)
		if err != nil {
			return harness.RuntimeFailure(err, "Failed to encode sensor reading")
		}
		msgID, err := producer.Send(ctx, msg)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("producer interrupted")
				break
			}
			return harness.RuntimeFailure(err, "Unexpected error when producing Pulsar messages")
		}
		sent++

		log.WithFields(logrus.Fields{
			"topic":      app.Topic(),
			"msgID":      msgID.String(),
			"key":        msg.Key,
			"properties": msg.Properties,
			"avro":       p.avro,
		}).Info("sent message")
	}

	log.WithField("count", sent).Info("producer finished")
	return nil
}

func (p *sensorProducer) message(reading sensor.Reading) (*pulsar.ProducerMessage, error) {
	sec, frac := math.Modf(reading.TS)
	msg := &pulsar.ProducerMessage{
		Key:        reading.Key(),
		EventTime:  time.Unix(int64(sec), int64(frac*float64(time.Second))),
		Properties: map[string]string{"msgId": uuid.NewString()},
	}
	if p.avro {
		msg.Value = &reading
		return msg, nil
	}
	payload, err := reading.JSON()
	if err != nil {
		return nil, err
	}
	msg.Payload = payload
	return msg, nil
}

func (p *sensorProducer) terminate(app *harness.App) error {
	var err error
	if p.source != nil {
		err = p.source.Close()
		p.source = nil
	}
	if p.producer != nil {
		p.producer.Close()
		p.producer = nil
	}
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	return err
}
