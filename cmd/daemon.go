package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/peersync/cli"
	"github.com/grovetools/peersync/config"
	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/internal/daemon/engine"
	"github.com/grovetools/peersync/internal/daemon/pidfile"
	"github.com/grovetools/peersync/internal/daemon/server"
	"github.com/grovetools/peersync/internal/daemon/source"
	"github.com/grovetools/peersync/logging"
	"github.com/grovetools/peersync/pkg/bus"
	"github.com/grovetools/peersync/pkg/daemon"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/grovetools/peersync/pkg/paths"
	"github.com/grovetools/peersync/pkg/process"
	"github.com/spf13/cobra"
)

// NewDaemonCmd returns the daemon command with subcommands.
func NewDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and control the peersync daemon",
		Long:  "The daemon collects local change signals, builds snapshots and keeps them synced with the hub.",
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var (
		readStdin bool
		toasts    bool
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon",
		Long: `Start the peersync daemon in foreground mode.

Examples:
  # Run with the discovered config file
  peersync daemon start

  # Feed "kind handle" lines from another process
  detector | peersync daemon start --stdin --toasts`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.GetLogger(cmd, "peersyncd")
			cfg, cfgPath, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to create peersync directories: %w", err)
			}

			pidPath := paths.PidFilePath()
			sockPath := paths.SocketPath()

			if err := pidfile.Acquire(pidPath); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer func() {
				if err := pidfile.Release(pidPath); err != nil {
					logger.Errorf("Failed to release pidfile: %v", err)
				}
			}()

			var extra []source.Source
			if readStdin {
				extra = append(extra, source.NewLineSource(os.Stdin, logger.WithField("component", "stdin")))
			}

			eng, err := engine.New(engine.Options{
				Config:  cfg,
				Sources: extra,
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if toasts {
				pretty := logging.NewPrettyLogger().WithWriter(logging.SyncWriter(cmd.ErrOrStderr()))
				bus.SubscribeFunc(ctx, eng.Bus(), func(t models.Toast) {
					pretty.Toast(t)
				})
			}

			if cfg.Daemon.ConfigWatchEnabled() {
				watcher, err := daemon.NewConfigWatcher(cfgPath, cfg.Daemon.ConfigDebounceMs,
					daemon.PushEndpoint(eng),
					func(_ *config.Config, file string) { eng.Store().BroadcastConfigReload(file) },
				)
				if err != nil {
					logger.WithError(err).Warn("Config watching disabled")
				} else {
					go watcher.Start(ctx)
				}
			}

			srv := server.New(eng, logger.WithField("component", "server"))
			serveErr := make(chan error, 1)
			go func() { serveErr <- srv.ListenAndServe(sockPath) }()

			engineDone := make(chan error, 1)
			go func() { engineDone <- eng.Start(ctx) }()

			logger.WithField("pid", os.Getpid()).Info("Starting daemon")

			select {
			case <-ctx.Done():
				logger.Info("Received stop signal")
			case err := <-serveErr:
				cancel()
				<-engineDone
				return fmt.Errorf("server error: %w", err)
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Errorf("Server shutdown error: %v", err)
			}
			return <-engineDone
		},
	}
	cmd.Flags().BoolVar(&readStdin, "stdin", false, "Read \"kind handle\" change signals from stdin")
	cmd.Flags().BoolVar(&toasts, "toasts", false, "Print notification toasts to stderr")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}

			gone, err := process.Terminate(pid, timeout)
			if err != nil {
				return fmt.Errorf("failed to send stop signal: %w", err)
			}
			if !gone {
				return errors.New(errors.ErrCodeInternal, fmt.Sprintf("daemon (PID %d) did not exit within %s", pid, timeout))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped daemon (PID %d)\n", pid)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the daemon to exit")
	return cmd
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, pid, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				os.Exit(1) // Non-zero for scripts
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running (PID: %d)\nSocket: %s\n", pid, paths.SocketPath())

			client := daemon.NewRemoteClient(paths.SocketPath())
			defer client.Close()
			state, err := client.GetState(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(out, state)
			}

			pretty := logging.NewPrettyLogger().WithWriter(out)
			pretty.Field("Connection", state.Connection)
			if state.Endpoint != "" {
				pretty.Field("Endpoint", state.Endpoint)
			}
			if state.Session != nil && state.Session.Alias != "" {
				pretty.Field("Session", state.Session.Alias)
			}
			pretty.Field("Halted", state.Halted)
			pretty.Field("Notifications", state.Notifications)
			if state.Snapshot != nil {
				pretty.Field("Last snapshot", fmt.Sprintf("%s (%s)", state.Snapshot.PassID, state.Snapshot.BuiltAt.Local().Format(time.Kitchen)))
			}
			if state.LastBuildError != nil {
				pretty.ErrorPretty("Last build failed", fmt.Errorf("%s", state.LastBuildError.Reason))
			}
			return nil
		},
	}
}
