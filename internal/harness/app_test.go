package harness

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	executed    int
	terminated  int
	validated   int
	topic       string
	numMsg      int
	executeErr  error
	terminateFn func() error
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		Validate: func(app *App) error {
			r.validated++
			return nil
		},
		Execute: func(ctx context.Context, app *App) error {
			r.executed++
			r.topic = app.Topic()
			r.numMsg = app.NumMsg()
			return r.executeErr
		},
		Terminate: func(app *App) error {
			r.terminated++
			if r.terminateFn != nil {
				return r.terminateFn()
			}
			return nil
		},
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func writeConnFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.conf")
	content := "# test connection\nbrokerServiceUrl = pulsar://localhost:6650\nauthPlugin=\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestApp(args []string, out io.Writer) *App {
	return New(Config{APIType: "nativeapi", AppName: "TestApp", Args: args, Stdout: out, Logger: quietLogger()})
}

func TestRunHelpShortCircuits(t *testing.T) {
	out := &bytes.Buffer{}
	rec := &recorder{}
	app := newTestApp([]string{"-h", "-n", "1", "-c", "/tmp/c.conf"}, out)

	code := app.Run(context.Background(), rec.hooks())

	require.Equal(t, ExitHelp, code)
	require.Zero(t, rec.executed)
	require.Zero(t, rec.validated)
	require.Equal(t, 1, rec.terminated)
	require.Contains(t, out.String(), "usage: TestApp")
	require.Contains(t, out.String(), "Command Line Options:")
	require.Equal(t, PhaseTerminated, app.Phase())
}

func TestRunHelpWithIncompleteOption(t *testing.T) {
	out := &bytes.Buffer{}
	rec := &recorder{}
	app := newTestApp([]string{"-h", "-n"}, out)

	code := app.Run(context.Background(), rec.hooks())

	require.Equal(t, ExitHelp, code)
	require.Contains(t, out.String(), "usage: TestApp")
	require.NotContains(t, out.String(), "[ERROR]")
}

func TestRunMissingRequiredOption(t *testing.T) {
	out := &bytes.Buffer{}
	rec := &recorder{}
	app := newTestApp([]string{"-n", "10"}, out)

	code := app.Run(context.Background(), rec.hooks())

	require.Equal(t, ExitInvalidParam, code)
	require.Contains(t, out.String(), "Invalid input value(s) detected!")
	require.Contains(t, out.String(), "Missing required option: c")
	require.Zero(t, rec.executed)
	require.Equal(t, 1, rec.terminated)
}

func TestRunInvalidMessageCount(t *testing.T) {
	for _, n := range []string{"0", "-2"} {
		t.Run(n, func(t *testing.T) {
			out := &bytes.Buffer{}
			rec := &recorder{}
			app := newTestApp([]string{"-n", n, "-c", "/tmp/c.conf"}, out)

			code := app.Run(context.Background(), rec.hooks())

			require.Equal(t, ExitInvalidParam, code)
			require.Contains(t, out.String(), "Message number must be a positive integer or -1")
			require.Zero(t, rec.executed)
			require.Equal(t, 1, rec.terminated)
		})
	}
}

func TestRunInfiniteMode(t *testing.T) {
	out := &bytes.Buffer{}
	rec := &recorder{}
	conn := writeConnFile(t)
	app := newTestApp([]string{"-n", "-1", "-c", conn, "-t", "demo"}, out)

	code := app.Run(context.Background(), rec.hooks())

	require.Equal(t, ExitOK, code)
	require.Equal(t, 1, rec.validated)
	require.Equal(t, 1, rec.executed)
	require.Equal(t, 1, rec.terminated)
	require.Equal(t, "demo", rec.topic)
	require.Equal(t, InfiniteMessages, rec.numMsg)
	require.Equal(t, "pulsar://localhost:6650", app.ConnConfig().ServiceURL())
	require.Equal(t, conn, app.ConnFile())
	require.False(t, app.Hosted())
	require.Empty(t, out.String())
}

func TestRunExecuteFailure(t *testing.T) {
	out := &bytes.Buffer{}
	rec := &recorder{executeErr: RuntimeFailure(errors.New("broker unavailable"), "consume failed")}
	app := newTestApp([]string{"-n", "3", "-c", writeConnFile(t)}, out)

	code := app.Run(context.Background(), rec.hooks())

	require.Equal(t, ExitRuntime, code)
	require.Contains(t, out.String(), "Unexpected runtime error detected!")
	require.Contains(t, out.String(), "broker unavailable")
	require.Equal(t, 1, rec.terminated)
}

func TestRunPlainErrorIsRuntime(t *testing.T) {
	rec := &recorder{executeErr: errors.New("boom")}
	app := newTestApp([]string{"-n", "3", "-c", writeConnFile(t)}, io.Discard)

	require.Equal(t, ExitRuntime, app.Run(context.Background(), rec.hooks()))
}

func TestRunExecutePanicIsRuntime(t *testing.T) {
	out := &bytes.Buffer{}
	terminated := 0
	app := newTestApp([]string{"-n", "3", "-c", writeConnFile(t)}, out)

	code := app.Run(context.Background(), Hooks{
		Execute:   func(ctx context.Context, app *App) error { panic("nil consumer") },
		Terminate: func(app *App) error { terminated++; return nil },
	})

	require.Equal(t, ExitRuntime, code)
	require.Equal(t, 1, terminated)
	require.Contains(t, out.String(), "nil consumer")
}

func TestRunTerminateFailureKeepsExitCode(t *testing.T) {
	out := &bytes.Buffer{}
	rec := &recorder{terminateFn: func() error { return errors.New("close failed") }}
	app := newTestApp([]string{"-n", "3", "-c", writeConnFile(t)}, out)

	code := app.Run(context.Background(), rec.hooks())

	require.Equal(t, ExitOK, code)
	require.Contains(t, out.String(), "close failed")
}

func TestRunTerminatePanicKeepsExitCode(t *testing.T) {
	app := newTestApp([]string{"-n", "10"}, io.Discard)
	code := app.Run(context.Background(), Hooks{
		Terminate: func(app *App) error { panic("double close") },
	})
	require.Equal(t, ExitInvalidParam, code)
	require.Equal(t, PhaseTerminated, app.Phase())
}

func TestRunTerminatesOnce(t *testing.T) {
	rec := &recorder{}
	app := newTestApp([]string{"-n", "1", "-c", writeConnFile(t)}, io.Discard)

	require.Equal(t, ExitOK, app.Run(context.Background(), rec.hooks()))
	app.terminate(rec.hooks())
	require.Equal(t, 1, rec.terminated)
}

func TestRunMissingConnFile(t *testing.T) {
	out := &bytes.Buffer{}
	missing := filepath.Join(t.TempDir(), "absent.conf")
	app := newTestApp([]string{"-n", "1", "-c", missing}, out)

	code := app.Run(context.Background(), Hooks{})

	require.Equal(t, ExitInvalidParam, code)
	require.Contains(t, out.String(), "Invalid connection file for param 'c'")
}

func TestRunHostedFlag(t *testing.T) {
	app := newTestApp([]string{"-n", "1", "-c", writeConnFile(t), "-a"}, io.Discard)
	var hosted bool
	code := app.Run(context.Background(), Hooks{
		Execute: func(ctx context.Context, app *App) error { hosted = app.Hosted(); return nil },
	})
	require.Equal(t, ExitOK, code)
	require.True(t, hosted)
}

func TestRunExtendedOptions(t *testing.T) {
	var retries int
	var group string
	app := newTestApp([]string{"-n", "1", "-c", writeConnFile(t), "--retries=abc", "-cg", "g1"}, io.Discard)

	code := app.Run(context.Background(), Hooks{
		Register: func(app *App) error {
			if err := app.AddRequiredOption("cg", "group.id", true, "Consumer group ID."); err != nil {
				return err
			}
			return app.AddOptionalOption("r", "retries", true, "Retry count.")
		},
		Validate: func(app *App) error {
			var err error
			if group, err = app.Args().String("cg", ""); err != nil {
				return err
			}
			retries, err = app.Args().Int("r", 5)
			return err
		},
	})

	require.Equal(t, ExitOK, code)
	require.Equal(t, 5, retries)
	require.Equal(t, "g1", group)
}

func TestRunExtendedValidationFailure(t *testing.T) {
	out := &bytes.Buffer{}
	executed := false
	app := newTestApp([]string{"-n", "1", "-c", writeConnFile(t)}, out)

	code := app.Run(context.Background(), Hooks{
		Validate: func(app *App) error {
			return InvalidParam("t", "Must provide a topic name!")
		},
		Execute: func(ctx context.Context, app *App) error { executed = true; return nil },
	})

	require.Equal(t, ExitInvalidParam, code)
	require.False(t, executed)
	require.Contains(t, out.String(), "Must provide a topic name!")
}

func TestRunDuplicateRegistrationIsRuntime(t *testing.T) {
	app := newTestApp([]string{"-n", "1", "-c", writeConnFile(t)}, io.Discard)
	code := app.Run(context.Background(), Hooks{
		Register: func(app *App) error {
			return app.AddOptionalOption("t", "topicName", true, "clashes with -t")
		},
	})
	require.Equal(t, ExitRuntime, code)
}

func TestParseIsMemoized(t *testing.T) {
	raw := []string{"-n", "4", "-c", "x.conf"}
	app := newTestApp(raw, io.Discard)

	first, err := app.Parse()
	require.NoError(t, err)
	require.Equal(t, PhaseParsed, app.Phase())

	raw[1] = "99"
	second, err := app.Parse()
	require.NoError(t, err)
	require.Same(t, first, second)
	v, _ := second.Raw("n")
	require.Equal(t, "4", v)
}

func TestExitCodeOf(t *testing.T) {
	require.Equal(t, ExitOK, ExitCodeOf(nil))
	require.Equal(t, ExitInvalidParam, ExitCodeOf(InvalidParam("n", "bad")))
	require.Equal(t, ExitRuntime, ExitCodeOf(RuntimeFailure(nil, "bad")))
	require.Equal(t, ExitRuntime, ExitCodeOf(programmingError("bad")))
	require.Equal(t, ExitRuntime, ExitCodeOf(errors.New("bad")))
}

func TestLogFileName(t *testing.T) {
	require.Equal(t, "s4k-IoTSensorKafkaConsumer", LogFileName("s4k", "IoTSensorKafkaConsumer"))
}
