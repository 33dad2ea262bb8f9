package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	settings := config.NewSettings()
	settings.SetLogLevel("error")

	cmd := NewRootCmd(settings)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func exitCode(t *testing.T, err error) harness.ExitCode {
	t.Helper()
	if err == nil {
		return harness.ExitOK
	}
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr), err)
	return exitErr.Code
}

func TestProgramsHaveUniqueNames(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Programs(config.NewSettings()) {
		require.False(t, seen[p.Name], p.Name)
		seen[p.Name] = true
	}
	require.Len(t, seen, 9)
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "API"))
	require.Contains(t, out, "IoTSensorProducer")
	require.Contains(t, out, "RoundtripVerifier")
	require.Contains(t, out, "s4k")
}

func TestProgramHelp(t *testing.T) {
	out, err := execute(t, "IoTSensorConsumer", "-h")
	require.Equal(t, harness.ExitHelp, exitCode(t, err))
	require.True(t, strings.HasPrefix(out, "usage: IoTSensorConsumer [-h] -n <arg>"), out)
	require.Contains(t, out, "-sbn,--subName <arg>")
}

func TestProgramMissingRequiredOption(t *testing.T) {
	out, err := execute(t, "TopicReader", "-n", "5")
	require.Equal(t, harness.ExitInvalidParam, exitCode(t, err))
	require.Contains(t, out, "[ERROR] Invalid input value(s) detected!")
	require.Contains(t, out, "Missing required option: c")
}

func TestProgramInvalidConnectionFile(t *testing.T) {
	conn := filepath.Join(t.TempDir(), "client.conf")
	require.NoError(t, os.WriteFile(conn, []byte("authPlugin=none\n"), 0o600))

	out, err := execute(t, "IoTSensorKafkaConsumer", "-n", "1", "-c", conn, "-t", "iot", "-cg", "g")
	require.Equal(t, harness.ExitInvalidParam, exitCode(t, err))
	require.Contains(t, out, "Invalid connection file for param 'c'")
}

func TestUnknownProgram(t *testing.T) {
	_, err := execute(t, "NoSuchDemo")
	require.Error(t, err)
	var exitErr *ExitError
	require.False(t, errors.As(err, &exitErr))
}

func TestExitError(t *testing.T) {
	require.Equal(t, "exit status 2", (&ExitError{Code: harness.ExitInvalidParam}).Error())
}
