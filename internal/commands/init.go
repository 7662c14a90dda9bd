package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/statementd/statementd/internal/config"
)

func newInitCommand() *cobra.Command {
	var store string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a statementd working directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir, store)
		},
	}

	cmd.Flags().StringVar(&store, "store", config.StoreCSV, "feed store backend (csv or sqlite)")

	return cmd
}

func runInit(out io.Writer, dir, store string) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	cfg := config.Default()
	cfg.Store = store
	if err := cfg.Validate(); err != nil {
		return err
	}

	for _, d := range []string{cfg.DataDir, filepath.Join(cfg.DataDir, "statements")} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// The API key belongs in .env, never in statementd.yaml.
	envExample := config.EnvAPIKey + "=\n"
	if err := os.WriteFile(filepath.Join(dir, ".env.example"), []byte(envExample), 0o644); err != nil {
		return fmt.Errorf("writing .env.example: %w", err)
	}

	gitignore := ".env\n" + cfg.DataDir + "/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	fmt.Fprintf(out, "Initialized statementd at %s\n", dir)
	return nil
}
