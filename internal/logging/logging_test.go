package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"petermann-digital.de/pulsar-workshop/internal/config"
)

func TestNewWritesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	settings := config.NewSettings()
	settings.SetLogDir(dir)
	settings.SetLogFormat("json")

	console := &bytes.Buffer{}
	logger, closeFn, err := NewTo(settings, "nativeapi-IoTSensorProducer", console)
	require.NoError(t, err)

	logger.WithField("topic", "persistent://public/default/t1").Info("sent message")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(filepath.Join(dir, "nativeapi-IoTSensorProducer.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"sent message"`)
	require.Contains(t, console.String(), "persistent://public/default/t1")
}

func TestNewConsoleOnly(t *testing.T) {
	settings := config.NewSettings()
	settings.SetLogLevel("warn")

	console := &bytes.Buffer{}
	logger, closeFn, err := NewTo(settings, "s4k-IoTSensorKafkaConsumer", console)
	require.NoError(t, err)
	require.NoError(t, closeFn())

	require.Equal(t, logrus.WarnLevel, logger.GetLevel())
	logger.Info("hidden")
	require.Empty(t, console.String())
	logger.Warn("shown")
	require.Contains(t, console.String(), "shown")
}
