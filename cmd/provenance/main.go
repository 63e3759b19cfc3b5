// Command provenance is the CLI surface of spec.md §6: it ingests
// revisions and origins from CSV, runs the directory flattener, and answers
// content_find_first / content_find_all queries against a configured
// storage backend. Grounded on the teacher's cmd/bd/main.go shape (a single
// root cobra.Command wiring signal-based cancellation around subcommands).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "provenance",
		Short:         "Provenance index over a Merkle DAG of software-source artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to provenance.toml (defaults omitted keys)")

	root.AddCommand(
		newRevisionCmd(),
		newOriginCmd(),
		newDirectoryCmd(),
		newFindFirstCmd(),
		newFindAllCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
