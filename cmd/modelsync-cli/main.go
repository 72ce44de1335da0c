// Command modelsync-cli is an interactive shell for driving an in-process
// Dispatcher against a demo tree, the way the teacher's qubicdb-cli drives
// a remote brain server over HTTP — adapted here from an HTTP admin client
// to a same-process REPL, since the engine this CLI demonstrates has no
// wire protocol of its own (spec.md explicitly scopes networking out; this
// CLI is a local exerciser, not a client for a server).
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelsync/modelsync/pkg/dispatch"
)

func main() {
	var gcSeconds int

	rootCmd := &cobra.Command{
		Use:   "modelsync-cli",
		Short: "modelsync-cli — interactive exerciser for the model consistency engine",
		Long:  "A command-line shell for subscribing, publishing, and pausing/resuming against an in-process modelsync Dispatcher, similar in spirit to redis-cli but entirely local.",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := dispatch.New(dispatch.Immediate(), dispatch.Config{
				GCInterval: time.Duration(gcSeconds) * time.Second,
				Logger:     slog.Default(),
			})
			defer d.Close()
			runREPL(d)
			return nil
		},
	}

	rootCmd.Flags().IntVar(&gcSeconds, "gc-interval", 300, "Background clean_memory interval in seconds (0 disables it)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
