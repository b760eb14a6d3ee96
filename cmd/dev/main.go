package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/mklimuk/magnetometer/cmd/dev/cmd"
)

func newLogger(debug bool) *slog.Logger {
	charm := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "dev",
	})
	charm.SetColorProfile(termenv.ANSI256)
	charm.SetLevel(log.InfoLevel)
	if debug {
		charm.SetLevel(log.DebugLevel)
		charm.SetReportCaller(true)
	}
	return slog.New(charm)
}

func main() {
	var debug bool
	root := &cobra.Command{
		Use:           "dev",
		Short:         "Developer tasks for the hmc5883l magnetometer tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(debug))
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(
		cmd.BuildCmd(),
		cmd.TestCmd(),
		cmd.LintCmd(),
		cmd.IntegrationTestCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("dev task failed", "error", err)
		os.Exit(1)
	}
}
