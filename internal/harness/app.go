// Package harness is the command line skeleton shared by every workshop demo.
//
// An App owns the option registry, parses the raw argument vector once,
// validates the options common to all demos and then drives the demo's hooks
// through a fixed sequence: Register, parse, common validation, Validate,
// Execute, Terminate. The driver is the only place where failures are mapped
// to process exit codes.
package harness

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"petermann-digital.de/pulsar-workshop/internal/connconf"
)

// Keys of the options registered for every demo.
const (
	OptHelp     = "h"
	OptNumMsg   = "n"
	OptTopic    = "t"
	OptConnFile = "c"
	OptAstra    = "a"
)

// InfiniteMessages is the message count meaning "process indefinitely".
const InfiniteMessages = -1

// ExitCode is the process exit status of one run.
type ExitCode int

const (
	ExitOK           ExitCode = 0
	ExitHelp         ExitCode = 1
	ExitInvalidParam ExitCode = 2
	ExitRuntime      ExitCode = 3
)

// Phase is the lifecycle state of an App.
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseParsed
	PhaseValidated
	PhaseExecuting
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseParsed:
		return "parsed"
	case PhaseValidated:
		return "validated"
	case PhaseExecuting:
		return "executing"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Outcome is the result of input validation that is not an error.
type Outcome int

const (
	OutcomeProceed Outcome = iota
	OutcomeHelp
)

// Hooks are the extension points a demo fills in. Any of them may be nil.
//
// Register adds demo specific options before the command line is parsed.
// Validate runs after the common options are validated. Execute is the
// produce or consume body. Terminate releases whatever Execute opened; it runs
// exactly once per run and must tolerate resources that were never opened.
type Hooks struct {
	Register  func(app *App) error
	Validate  func(app *App) error
	Execute   func(ctx context.Context, app *App) error
	Terminate func(app *App) error
}

// Program bundles a demo so that a launcher can list and start it.
type Program struct {
	APIType string
	Name    string
	Short   string
	Hooks   Hooks
}

// Config configures a new App.
type Config struct {
	APIType string
	AppName string
	Args    []string
	// Stdout receives usage text and error banners. Defaults to os.Stdout.
	Stdout io.Writer
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// App is one invocation of a demo program.
type App struct {
	name    string
	apiType string
	rawArgs []string

	options  *Options
	args     *Args
	parsed   bool
	parseErr error

	numMsg   int
	topic    string
	connFile string
	hosted   bool
	conn     *connconf.Config

	phase      Phase
	terminated bool

	out io.Writer
	log logrus.FieldLogger
}

// New creates an App with the common options registered.
func New(cfg Config) *App {
	out := cfg.Stdout
	if out == nil {
		out = os.Stdout
	}
	var logger logrus.FieldLogger = cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	a := &App{
		name:    cfg.AppName,
		apiType: cfg.APIType,
		rawArgs: cfg.Args,
		options: NewOptions(),
		out:     out,
		log:     logger.WithFields(logrus.Fields{"app": cfg.AppName, "apiType": cfg.APIType}),
	}

	common := []struct {
		required bool
		opt      Option
	}{
		{false, Option{Short: OptHelp, Long: "help", Description: "Displays the usage method."}},
		{true, Option{Short: OptNumMsg, Long: "numMsg", HasArg: true, Description: "Number of messages to process (-1 for all available)."}},
		{false, Option{Short: OptTopic, Long: "topic", HasArg: true, Description: "Pulsar topic name."}},
		{true, Option{Short: OptConnFile, Long: "connFile", HasArg: true, Description: "\"client.conf\" file path."}},
		{false, Option{Short: OptAstra, Long: "astra", Description: "Whether to use Astra streaming."}},
	}
	for _, c := range common {
		var err error
		if c.required {
			err = a.options.AddRequired(c.opt.Short, c.opt.Long, c.opt.HasArg, c.opt.Description)
		} else {
			err = a.options.AddOptional(c.opt.Short, c.opt.Long, c.opt.HasArg, c.opt.Description)
		}
		if err != nil {
			panic(err)
		}
	}
	return a
}

// LogFileName composes the log file base name for a demo.
func LogFileName(apiType, appName string) string {
	return apiType + "-" + appName
}

func (a *App) Name() string               { return a.name }
func (a *App) APIType() string            { return a.apiType }
func (a *App) Options() *Options          { return a.options }
func (a *App) Phase() Phase               { return a.phase }
func (a *App) Logger() logrus.FieldLogger { return a.log }
func (a *App) Stdout() io.Writer          { return a.out }

// NumMsg is the validated message count; InfiniteMessages means unbounded.
func (a *App) NumMsg() int { return a.numMsg }

// Topic is the value of -t, empty when not given.
func (a *App) Topic() string { return a.topic }

// ConnFile is the absolute path of the connection file.
func (a *App) ConnFile() string { return a.connFile }

// ConnConfig is the loaded connection file.
func (a *App) ConnConfig() *connconf.Config { return a.conn }

// Hosted reports whether hosted streaming mode (-a) was requested.
func (a *App) Hosted() bool { return a.hosted }

// Args returns the parsed arguments, nil before parsing.
func (a *App) Args() *Args { return a.args }

// AddRequiredOption registers a demo option that must be given.
func (a *App) AddRequiredOption(short, long string, hasArg bool, description string) error {
	return a.options.AddRequired(short, long, hasArg, description)
}

// AddOptionalOption registers a demo option that may be omitted.
func (a *App) AddOptionalOption(short, long string, hasArg bool, description string) error {
	return a.options.AddOptional(short, long, hasArg, description)
}

// Parse matches the raw arguments against the registry. Only the first call
// does any work; later calls return the memoized result.
func (a *App) Parse() (*Args, error) {
	if a.parsed {
		return a.args, a.parseErr
	}
	a.parsed = true
	a.options.freeze()

	args, err := parseArgs(a.options, a.rawArgs, OptHelp)
	if err != nil {
		a.parseErr = err
		return nil, err
	}
	a.args = args
	a.phase = PhaseParsed
	return args, nil
}

// Usage writes the help text to the app's stdout.
func (a *App) Usage() {
	writeUsage(a.out, a.name, a.options)
}

// Run drives one invocation and returns its exit code.
func (a *App) Run(ctx context.Context, hooks Hooks) (code ExitCode) {
	a.log.Infof("Starting application: %q ...", a.name)
	defer func() {
		a.terminate(hooks)
	}()

	outcome, err := a.processInputParams(hooks)
	if err != nil {
		return a.report(err)
	}
	if outcome == OutcomeHelp {
		a.Usage()
		return ExitHelp
	}

	a.phase = PhaseExecuting
	if hooks.Execute != nil {
		err = guard("execute", func() error { return hooks.Execute(ctx, a) })
	}
	return a.report(err)
}

// processInputParams parses the command line and validates the common
// options followed by the demo's own.
func (a *App) processInputParams(hooks Hooks) (Outcome, error) {
	if hooks.Register != nil {
		if err := guard("register", func() error { return hooks.Register(a) }); err != nil {
			return OutcomeProceed, err
		}
	}

	args, err := a.Parse()
	if err != nil {
		return OutcomeProceed, err
	}
	if args.Has(OptHelp) {
		return OutcomeHelp, nil
	}

	numMsg, err := args.Int(OptNumMsg, 0)
	if err != nil {
		return OutcomeProceed, err
	}
	if numMsg <= 0 && numMsg != InfiniteMessages {
		return OutcomeProceed, InvalidParam(OptNumMsg, "Message number must be a positive integer or -1 (all available raw input)!")
	}
	a.numMsg = numMsg

	if a.topic, err = args.String(OptTopic, ""); err != nil {
		return OutcomeProceed, err
	}

	if a.connFile, err = args.FilePath(OptConnFile); err != nil {
		return OutcomeProceed, err
	}
	if a.connFile != "" {
		conn, loadErr := connconf.Load(a.connFile)
		if loadErr != nil {
			return OutcomeProceed, InvalidParamCause(OptConnFile, loadErr, "Invalid connection file for param '%s'", OptConnFile)
		}
		a.conn = conn
	}

	if a.hosted, err = args.Bool(OptAstra, false); err != nil {
		return OutcomeProceed, err
	}

	if hooks.Validate != nil {
		if err := guard("validate", func() error { return hooks.Validate(a) }); err != nil {
			return OutcomeProceed, err
		}
	}

	a.phase = PhaseValidated
	return OutcomeProceed, nil
}

// report prints the banner matching err and returns its exit code.
func (a *App) report(err error) ExitCode {
	code := ExitCodeOf(err)
	switch code {
	case ExitInvalidParam:
		fmt.Fprintln(a.out, "\n[ERROR] Invalid input value(s) detected!")
		fmt.Fprintf(a.out, "%+v\n", err)
		a.log.WithError(err).Error("invalid input")
	case ExitRuntime:
		fmt.Fprintln(a.out, "\n[ERROR] Unexpected runtime error detected!")
		fmt.Fprintf(a.out, "%+v\n", err)
		a.log.WithError(err).Error("runtime failure")
	}
	return code
}

func (a *App) terminate(hooks Hooks) {
	if a.terminated {
		return
	}
	a.terminated = true

	if hooks.Terminate != nil {
		if err := guard("terminate", func() error { return hooks.Terminate(a) }); err != nil {
			fmt.Fprintf(a.out, "\n[WARN] Failed to terminate application cleanly: %v\n", err)
			a.log.WithError(err).Warn("terminate failed")
		}
	}
	a.phase = PhaseTerminated
	a.log.Infof("Terminating application: %q ...", a.name)
}

// ExitCodeOf maps a run failure to its exit code; nil maps to ExitOK.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ExitOK
	}
	if IsInvalidParam(err) {
		return ExitInvalidParam
	}
	return ExitRuntime
}

// guard runs fn and turns a panic into a RuntimeError.
func guard(phase string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = RuntimeFailure(e, "%s panicked", phase)
				return
			}
			err = RuntimeFailure(errors.Errorf("%v", r), "%s panicked", phase)
		}
	}()
	return fn()
}
