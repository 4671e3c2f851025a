package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the --config file and SIGMAP_*
environment variables are applied, validated against the schema.

Examples:
  sigmap config
  SIGMAP_MERGE_TYPE=Median sigmap config --config sigmap.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			out := rootOpts.formatter(cmd)
			if rootOpts.Format == "json" {
				return out.Success(cfg)
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			return out.Success(strings.TrimSuffix(string(data), "\n"))
		},
	}
}
