package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/polisai/neurogov/pkg/ecometrics"
	"github.com/polisai/neurogov/pkg/ecoshard"
	"github.com/polisai/neurogov/pkg/logging"
)

var errNoRecords = errors.New("no telemetry records loaded")

// runReport is the main entry point for the root command
func runReport(cmd *cobra.Command, _ []string) error {
	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return fmt.Errorf("failed to get log-level flag: %w", err)
	}

	logger := logging.NewLogger(logging.Config{
		Level:  logLevel,
		Pretty: true,
	})
	slog.SetDefault(logger)

	return writeShardReport(cmd.Context(), ecoshard.DefaultPath, cmd.OutOrStdout(), logger)
}

// writeShardReport loads the shard at path and prints its summary to w.
func writeShardReport(ctx context.Context, path string, w io.Writer, logger *slog.Logger) error {
	result, err := ecoshard.LoadFile(ctx, path, logger)
	if err != nil {
		return err
	}
	if len(result.Nodes) == 0 {
		return fmt.Errorf("%w from %s", errNoRecords, path)
	}
	if result.Skipped > 0 {
		logger.Info("Skipped malformed shard rows", "path", path, "skipped", result.Skipped)
	}

	return ecometrics.WriteReport(w, ecometrics.Compute(result.Nodes))
}
