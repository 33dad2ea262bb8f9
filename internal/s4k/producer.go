package s4k

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
	"petermann-digital.de/pulsar-workshop/internal/sensor"
)

type kafkaProducer struct {
	settings config.Settings
	csvPath  string

	writer *kafka.Writer
	source sensor.Source
}

// IoTSensorKafkaProducer sends sensor readings through the Kafka protocol.
func IoTSensorKafkaProducer(settings config.Settings) harness.Program {
	p := &kafkaProducer{settings: settings}
	return harness.Program{
		APIType: APIType,
		Name:    "IoTSensorKafkaProducer",
		Short:   "Produce IoT sensor readings through the Kafka compatible endpoint",
		Hooks: harness.Hooks{
			Register:  p.register,
			Validate:  p.validate,
			Execute:   p.execute,
			Terminate: p.terminate,
		},
	}
}

func (p *kafkaProducer) register(app *harness.App) error {
	return app.AddOptionalOption(optCSVFile, "csvFile", true,
		"IoT sensor data CSV file. Synthetic readings are generated when omitted.")
}

func (p *kafkaProducer) validate(app *harness.App) error {
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

func (p *kafkaProducer) execute(ctx context.Context, app *harness.App) error {
	log := app.Logger()

	conn, err := connect(app, p.settings)
	if err != nil {
		return err
	}
	p.writer = conn.NewWriter(app.Topic())

	if p.csvPath != "" {
		p.source, err = sensor.OpenCSV(p.csvPath)
		if err != nil {
			return harness.RuntimeFailure(err, "Failed to open sensor data")
		}
	} else {
		p.source = sensor.NewSynthetic(float64(time.Now().Unix()))
	}

	bound := app.NumMsg()
	if bound == harness.InfiniteMessages {
		bound = math.MaxInt
	}

	sent := 0
	for sent < bound {
		reading, err := p.source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return harness.RuntimeFailure(err, "Failed to read sensor data")
		}

		msg, err := record(reading)
		if err != nil {
			return harness.RuntimeFailure(err, "Failed to encode sensor reading")
		}
		if err := p.writer.WriteMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				log.Info("producer interrupted")
				break
			}
			return harness.RuntimeFailure(err, "Unexpected error when producing Kafka messages")
		}
		sent++

		log.WithFields(logrus.Fields{
			"topic": app.Topic(),
			"key":   string(msg.Key),
			"msgId": string(msg.Headers[0].Value),
		}).Info("sent message")
	}

	log.WithField("count", sent).Info("producer finished")
	return nil
}

// record turns a reading into a Kafka message keyed by device with a msgId
// header.
func record(reading sensor.Reading) (kafka.Message, error) {
	payload, err := reading.JSON()
	if err != nil {
		return kafka.Message{}, err
	}
	sec, frac := math.Modf(reading.TS)
	return kafka.Message{
		Key:     []byte(reading.Key()),
		Value:   payload,
		Headers: []kafka.Header{{Key: "msgId", Value: []byte(uuid.NewString())}},
		Time:    time.Unix(int64(sec), int64(frac*float64(time.Second))),
	}, nil
}

func (p *kafkaProducer) terminate(app *harness.App) error {
	var errs []error
	if p.source != nil {
		errs = append(errs, p.source.Close())
		p.source = nil
	}
	if p.writer != nil {
		errs = append(errs, p.writer.Close())
		p.writer = nil
	}
	return errors.Join(errs...)
}
