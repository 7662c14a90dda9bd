package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newCustomersCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "customers",
		Short: "List customers in the local snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			return runCustomers(cmd.Context(), cmd.OutOrStdout(), a)
		},
	}
}

func runCustomers(ctx context.Context, out io.Writer, a *app) error {
	list, err := a.statements.Customers(ctx)
	if err != nil {
		return err
	}
	for _, c := range list {
		fmt.Fprintf(out, "%d\t%s\n", c.ID, c.Name)
	}
	return nil
}
