package cmd

import (
	"github.com/grovetools/peersync/cli"
	"github.com/grovetools/peersync/pkg/profiling"
	"github.com/grovetools/peersync/version"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the peersync command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := cli.NewStandardCommand(
		"peersync",
		"Keep local snapshot changes in sync with a peer hub",
	)
	rootCmd.Long = `Keep local snapshot changes in sync with a peer hub.

The daemon collects change signals, debounces them into snapshot builds,
pushes each snapshot to the hub and keeps a persisted list of notifications.

Examples:
  peersync daemon start
  peersync signal pet 0x1f2e
  peersync notifications list`

	rootCmd.AddCommand(NewDaemonCmd())
	rootCmd.AddCommand(NewNotificationsCmd())
	rootCmd.AddCommand(NewSignalCmd())
	rootCmd.AddCommand(NewHaltCmd())
	rootCmd.AddCommand(NewRetryCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewLogsCmd())
	rootCmd.AddCommand(NewPathsCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("peersync"))

	profiling.NewCobraProfiler().Attach(rootCmd)
	cli.SetVersionTemplate(rootCmd, version.GetInfo())
	cli.ApplyStyledHelpRecursive(rootCmd)
	return rootCmd
}
