package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"petermann-digital.de/pulsar-workshop/internal/config"
	"petermann-digital.de/pulsar-workshop/internal/harness"
	"petermann-digital.de/pulsar-workshop/internal/nativepulsar"
	"petermann-digital.de/pulsar-workshop/internal/roundtrip"
	"petermann-digital.de/pulsar-workshop/internal/s4k"
)

// Programs returns every demo the launcher knows, native demos first.
func Programs(settings config.Settings) []harness.Program {
	programs := nativepulsar.Programs(settings)
	programs = append(programs, roundtrip.RoundtripVerifier(settings))
	return append(programs, s4k.Programs(settings)...)
}

// NewRootCmd builds the top-level command with one subcommand per demo.
func NewRootCmd(settings config.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pulsar-workshop",
		Short:         "Pulsar workshop demo programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	programs := Programs(settings)
	for _, prog := range programs {
		rootCmd.AddCommand(programCmd(settings, prog))
	}
	rootCmd.AddCommand(listCmd(programs))

	return rootCmd
}

// listCmd prints the available demos grouped by API type.
func listCmd(programs []harness.Program) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available demo programs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "API\tPROGRAM\tDESCRIPTION")
			for _, p := range programs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.APIType, p.Name, p.Short)
			}
			return w.Flush()
		},
	}
}
