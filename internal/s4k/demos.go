package s4k

import (
	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
)

// APIType prefixes the log file names of the Kafka compatible demos.
const APIType = "s4k"

const (
	optCSVFile = "csv"
	optGroupID = "cg"
)

// Programs returns every Kafka compatible demo.
func Programs(settings config.Settings) []harness.Program {
	return []harness.Program{
		IoTSensorKafkaProducer(settings),
		IoTSensorKafkaConsumer(settings),
	}
}

func requireTopic(app *harness.App) error {
	if app.Topic() == "" {
		return harness.InvalidParam(harness.OptTopic, "Must provide a topic name!")
	}
	return nil
}

func connect(app *harness.App, settings config.Settings) (Settings, error) {
	s, err := Resolve(app.ConnConfig(), app.Hosted(), settings.OperationTimeout())
	if err != nil {
		return Settings{}, harness.RuntimeFailure(err, "Invalid Kafka connection settings")
	}
	return s, nil
}
