package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/peersync/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput lists the directories and files peersync uses.
type PathsOutput struct {
	ConfigDir string `json:"config_dir"`
	StateDir  string `json:"state_dir"`
	CacheDir  string `json:"cache_dir"`
	LogDir    string `json:"log_dir"`
	Socket    string `json:"socket"`
	PidFile   string `json:"pid_file"`
	Ledger    string `json:"ledger"`
}

// NewPathsCmd prints the resolved peersync paths.
func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the paths used by peersync",
		Long: `Print the paths used by peersync as JSON.

PEERSYNC_HOME relocates all of them under a single directory; otherwise
the XDG base directories are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := PathsOutput{
				ConfigDir: paths.ConfigDir(),
				StateDir:  paths.StateDir(),
				CacheDir:  paths.CacheDir(),
				LogDir:    paths.LogDir(),
				Socket:    paths.SocketPath(),
				PidFile:   paths.PidFilePath(),
				Ledger:    paths.LedgerPath("json"),
			}

			jsonData, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
			return nil
		},
	}
}
