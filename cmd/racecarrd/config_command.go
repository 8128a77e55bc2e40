package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/racecarr/racecarr/internal/config"
)

// newConfigCommand groups configuration utilities, grounded on
// five82-spindle's cmd/spindle/config_commands.go "config" command group
// (there two subcommands, init and validate; racecarrd has no sample file
// to scaffold since every setting has a built-in default, so only validate
// applies).
func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigValidateCommand())
	return configCmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load configuration and report where it resolved",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "F1 API base URL: %s\n", cfg.F1APIBaseURL)
			fmt.Fprintf(out, "Server port: %s\n", cfg.ServerPort)
			fmt.Fprintf(out, "Database file: %s\n", cfg.DatabaseFile)
			fmt.Fprintf(out, "Log file: %s\n", cfg.LogFile)
			fmt.Fprintf(out, "Log level: %s\n", cfg.LogLevel)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
