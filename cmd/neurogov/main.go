// Package main is the entry point for the neurogov binary.
// Without a subcommand it prints the eco-governance summary of the telemetry
// shard; "serve" runs the governance admin server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultLogLevel = "info"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for neurogov
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "neurogov",
		Short: "Neurorights governance and safety kernel",
		Long: `Neurogov combines stakeholder consensus on neurorights decisions with a
safety kernel that bounds neural-interface actions.

Run without a subcommand to summarise the Phoenix telemetry shard:
  neurogov

Run the admin server:
  neurogov serve --config neurogov.yaml`,
		SilenceUsage: true,
		RunE:         runReport,
	}

	rootCmd.PersistentFlags().StringP("log-level", "l", defaultLogLevel, "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd())
	return rootCmd
}
