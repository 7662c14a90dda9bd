package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/statementd/statementd/internal/statement"
)

type statementOptions struct {
	from   string
	to     string
	out    string
	format string
}

func newStatementCommand(configPath *string) *cobra.Command {
	var opts statementOptions

	cmd := &cobra.Command{
		Use:   "statement <customer-id>",
		Short: "Build a customer's account statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("customer id must be an integer: %q", args[0])
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			return runStatement(cmd.Context(), cmd.OutOrStdout(), a, id, opts)
		},
	}

	cmd.Flags().StringVar(&opts.from, "from", "", "period start, YYYY-MM-DD (default upstream.from_date)")
	cmd.Flags().StringVar(&opts.to, "to", "", "period end, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&opts.out, "out", "", `output file, "-" for stdout (default <data_dir>/statements/<customer>.<format>)`)
	cmd.Flags().StringVar(&opts.format, "format", "", "html, pdf or json (default render.format)")

	return cmd
}

func runStatement(ctx context.Context, out io.Writer, a *app, id int64, opts statementOptions) error {
	period, err := statement.ResolvePeriod(opts.from, opts.to, a.cfg.FromDate(), a.statements.Today())
	if err != nil {
		return err
	}

	format := opts.format
	if format == "" {
		format = a.cfg.Render.Format
	}

	var (
		data []byte
		doc  *statement.Document
	)
	if format == statement.FormatJSON {
		doc, err = a.statements.BuildStatement(ctx, id, period)
		if err == nil {
			data, err = json.MarshalIndent(doc, "", "  ")
		}
	} else {
		r, ok := a.renderers[format]
		if !ok {
			return fmt.Errorf("unknown format %q, want html, pdf or json", format)
		}
		data, doc, err = a.statements.Render(ctx, r, id, period)
	}
	if err != nil {
		return err
	}

	if opts.out == "-" {
		_, err := out.Write(data)
		return err
	}

	path := opts.out
	if path == "" {
		path = filepath.Join(a.cfg.DataDir, "statements", statement.FileName(doc, "."+format))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing statement: %w", err)
	}

	fmt.Fprintf(out, "Statement for %s (%d rows, closing balance %s) written to %s\n",
		doc.CustomerName, len(doc.Rows), doc.ClosingBalance, path)
	if doc.SkippedRecords > 0 {
		fmt.Fprintf(out, "Warning: %d malformed source records were skipped\n", doc.SkippedRecords)
	}
	return nil
}
