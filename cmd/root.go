// Package cmd defines the CLI commands for the audiovault executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audiovault",
		Short: "HTTP service that extracts and catalogs audio from remote media URLs.",
		Long: `audiovault orchestrates audio extraction: it resolves a media URL to a
stable content identifier, runs the external extraction tooling on a bounded
worker pool, tracks per-job progress, and maintains a catalog of completed
downloads served over HTTP.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; env vars with AUDIOVAULT_ prefix override)")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
