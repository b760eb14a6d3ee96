package cmd

import (
	"fmt"
	"log/slog"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func qualityCmd(use, short string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Info("running", "task", use)
			err := run()
			if err != nil {
				return fmt.Errorf("%s failed: %w", use, err)
			}
			return nil
		},
	}
}

// TestCmd runs the unit tests; they use the sim driver and need no hardware.
func TestCmd() *cobra.Command {
	return qualityCmd("test", "Run unit tests", test.Test)
}

func LintCmd() *cobra.Command {
	return qualityCmd("lint", "Run linting", test.Lint)
}

// IntegrationTestCmd runs tests against a real magnetometer on the host bus.
func IntegrationTestCmd() *cobra.Command {
	return qualityCmd("integration-test", "Run integration testing against attached hardware", test.Integ)
}
