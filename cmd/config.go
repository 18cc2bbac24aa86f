package cmd

import (
	"fmt"

	"github.com/grovetools/peersync/cli"
	"github.com/grovetools/peersync/config"
	"github.com/grovetools/peersync/errors"
	"github.com/spf13/cobra"
)

// NewConfigCmd returns the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect peersync configuration",
	}
	cmd.AddCommand(newConfigSchemaCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of peersync.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with defaults applied",
		Long: `Print the effective configuration with defaults applied.

Examples:
  peersync config show
  peersync config show --format toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				format = "json"
			}

			var data []byte
			switch format {
			case "json":
				data, err = cfg.JSON()
			case "yaml", "toml":
				data, err = cfg.Marshal(config.Format(format))
			default:
				return errors.New(errors.ErrCodeInvalidInput, "format must be yaml, toml or json")
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if path != "" && format != "json" {
				fmt.Fprintf(out, "# Source: %s\n", path)
			}
			fmt.Fprintln(out, string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "Output format: yaml, toml, or json")
	return cmd
}
