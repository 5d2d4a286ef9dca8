// Package cmd provides the command-line interface of rocache.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// NewRootCmd creates the base command with all its subcommands.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rocache",
		Short: "rocache replays byte loads through a read-only cache model.",
		Long: `rocache replays byte loads through a read-only, set-associative ` +
			`cache model that sits in front of a memory image, and reports ` +
			`the hits, misses and evictions.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newReportCmd())

	return rootCmd
}

// Execute runs the root command and exits. Exit handlers, such as the ones
// that flush recordings, run before the process ends.
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
