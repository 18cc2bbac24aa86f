package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/grovetools/peersync/cli"
	"github.com/grovetools/peersync/errors"
	"github.com/grovetools/peersync/logging"
	"github.com/grovetools/peersync/pkg/daemon"
	"github.com/grovetools/peersync/pkg/models"
	"github.com/spf13/cobra"
)

// newClient returns the daemon client for cmd, falling back to persisted
// state when the daemon is not running.
func newClient(cmd *cobra.Command) (daemon.Client, error) {
	cfg, _, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return daemon.New(cfg), nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// NewNotificationsCmd returns the notifications command group.
func NewNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif"},
		Short:   "List and dismiss stored notifications",
	}
	cmd.AddCommand(newNotificationsListCmd())
	cmd.AddCommand(newNotificationsDismissCmd())
	return cmd
}

func newNotificationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored notifications, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			entries, err := client.Notifications(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				if entries == nil {
					entries = []models.NotificationEntry{}
				}
				return printJSON(out, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No notifications")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tID\tCREATED\tTITLE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Category, e.ID, e.CreatedAt.Local().Format(time.DateTime), e.Title)
			}
			return tw.Flush()
		},
	}
}

func newNotificationsDismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <category> <id>",
		Short: "Remove one notification",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := models.ParseCategory(args[0])
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid category")
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			removed, err := client.Dismiss(cmd.Context(), category, args[1])
			if err != nil {
				return err
			}
			pretty := logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout())
			if removed {
				pretty.Success(fmt.Sprintf("Dismissed %s/%s", category, args[1]))
			} else {
				pretty.InfoPretty(fmt.Sprintf("No notification %s/%s", category, args[1]))
			}
			return nil
		},
	}
}

// NewSignalCmd returns the command that injects a change signal.
func NewSignalCmd() *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "signal <kind> <handle>",
		Short: "Send a change signal to the running daemon",
		Long: `Send a change signal to the running daemon.

Kinds: player, minion_or_mount, pet, companion.

Examples:
  peersync signal pet 0x1f2e
  peersync signal mount 0x44 --delay 2s`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := models.ParseChangeKind(args[0]); err != nil {
				return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid kind")
			}

			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			return client.Signal(cmd.Context(), daemon.SignalRequest{
				Kind:    args[0],
				Handle:  args[1],
				DelayMs: int(delay / time.Millisecond),
			})
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", 0, "Debounce window for this signal (default: configured window)")
	return cmd
}

// NewHaltCmd returns the command that suspends or resumes build passes.
func NewHaltCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "halt <on|off|status>",
		Short:     "Suspend or resume snapshot builds",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			switch strings.ToLower(args[0]) {
			case "on", "off":
				if err := client.SetHalt(cmd.Context(), strings.EqualFold(args[0], "on")); err != nil {
					return err
				}
			case "status":
			default:
				return errors.New(errors.ErrCodeInvalidInput, "expected on, off or status")
			}

			state, err := client.GetState(cmd.Context())
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), daemon.HaltRequest{Halted: state.Halted})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "halted: %s\n", strconv.FormatBool(state.Halted))
			return nil
		},
	}
}

// NewRetryCmd returns the retry command group.
func NewRetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Control hub reconnection",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reconnect now and restart the retry schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.ResetRetry(cmd.Context()); err != nil {
				return err
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success("Retry schedule reset")
			return nil
		},
	})
	return cmd
}
