package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show feed freshness and the last refresh attempt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			return runStatus(cmd.Context(), cmd.OutOrStdout(), a)
		},
	}
}

func runStatus(ctx context.Context, out io.Writer, a *app) error {
	fresh, err := a.statements.IsFresh(ctx)
	if err != nil {
		return err
	}
	last, err := a.statements.LastRefresh(ctx)
	if err != nil {
		return err
	}

	lastStr := last.String()
	if lastStr == "" {
		lastStr = "never"
	}
	fmt.Fprintf(out, "Data dir:     %s (%s)\n", a.cfg.DataDir, a.cfg.Store)
	fmt.Fprintf(out, "Last refresh: %s\n", lastStr)
	fmt.Fprintf(out, "Fresh:        %t\n", fresh)

	entry, ok, err := a.refreshLog.Last()
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(out, "Last attempt: %s %s", entry.Timestamp.Format("2006-01-02 15:04:05Z07:00"), entry.Outcome)
		if entry.Feed != "" {
			fmt.Fprintf(out, " (%s)", entry.Feed)
		}
		fmt.Fprintln(out)
	}
	return nil
}
