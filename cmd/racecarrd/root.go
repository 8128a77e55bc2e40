package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "racecarrd",
		Short:         "F1 release automation daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newSeasonCommand())
	rootCmd.AddCommand(newTickCommand())

	return rootCmd
}
