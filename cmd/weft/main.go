package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-preview"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "weft",
		Short: "Weft - a cooperative fiber runtime for Go",
		Long: `Weft multiplexes many lightweight fibers onto a small set of scheduler
instances, with pluggable scheduling algorithms, fiber-aware synchronization
primitives, futures and channels. This CLI runs demos, benchmarks, a live
scheduler monitor and a fiber-powered websocket server.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	}

	rootCmd.AddCommand(newDemoCommand())
	rootCmd.AddCommand(newBenchCommand())
	rootCmd.AddCommand(newMonitorCommand())
	rootCmd.AddCommand(newServeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
