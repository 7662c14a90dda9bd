package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/statementd/statementd/internal/freshness"
	"github.com/statementd/statementd/internal/model"
)

func newRefreshCommand(configPath *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Pull the four feeds from the accounting API if stale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			return runRefresh(cmd.Context(), cmd.OutOrStdout(), a, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "refresh even if already refreshed today")

	return cmd
}

func runRefresh(ctx context.Context, out io.Writer, a *app, force bool) error {
	var (
		res freshness.Result
		err error
	)
	if force {
		res, err = a.statements.Refresh(ctx)
	} else {
		res, err = a.statements.EnsureFresh(ctx)
	}
	if err != nil {
		return err
	}

	if res.Skipped {
		fmt.Fprintf(out, "Feeds already refreshed today (%s)\n", a.statements.Today())
		return nil
	}
	fmt.Fprintf(out, "Refreshed feeds on %s\n", res.RefreshedOn)
	for _, feed := range model.AllFeeds {
		fmt.Fprintf(out, "  %-13s %d\n", feed, res.Counts[feed])
	}
	return nil
}
