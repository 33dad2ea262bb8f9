package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
	"petermann-digital.de/pulsar-workshop/internal/logging"
)

// ExitError carries a non-zero demo exit code up to main.
type ExitError struct {
	Code harness.ExitCode
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// programCmd hands the raw arguments to the harness, which owns option
// parsing and help output for every demo.
func programCmd(settings config.Settings, prog harness.Program) *cobra.Command {
	return &cobra.Command{
		Use:                prog.Name + " [options]",
		Short:              prog.Short,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := logging.NewTo(settings, harness.LogFileName(prog.APIType, prog.Name), cmd.ErrOrStderr())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "set up logging: %v\n", err)
				return &ExitError{Code: harness.ExitRuntime}
			}
			defer func() {
				if err := closeLog(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "close log file: %v\n", err)
				}
			}()

			app := harness.New(harness.Config{
				APIType: prog.APIType,
				AppName: prog.Name,
				Args:    args,
				Stdout:  cmd.OutOrStdout(),
				Logger:  logger,
			})
			if code := app.Run(cmd.Context(), prog.Hooks); code != harness.ExitOK {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
}
