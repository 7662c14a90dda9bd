package main

import (
	"os"

	"github.com/statementd/statementd/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
