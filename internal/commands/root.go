package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/statementd/statementd/internal/buildinfo"
	"github.com/statementd/statementd/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "statementd",
		Short:   "Customer account statements from accounting feeds",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.FileName, "path to config file")

	rootCmd.AddCommand(
		newInitCommand(),
		newRefreshCommand(&configPath),
		newStatusCommand(&configPath),
		newCustomersCommand(&configPath),
		newStatementCommand(&configPath),
		newServeCommand(&configPath),
	)

	return rootCmd
}
