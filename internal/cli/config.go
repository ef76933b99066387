package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/khanglvm/pattern-hub-mcp/internal/config"
	"github.com/khanglvm/pattern-hub-mcp/internal/logging"
)

// NewConfigCmd creates the 'config' command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show the settings file",
		Long: `Manage ~/.pattern-hub-mcp.yaml.

Settings are resolved from flags, PATTERN_HUB_* environment variables,
the settings file and built-in defaults, in that order.`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the resolved settings to the settings file",
		Example: `  pattern-hub-mcp config init
  pattern-hub-mcp config init --patterns-dir ~/patterns --force
  pattern-hub-mcp config init --config ./pattern-hub.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			if path == "" {
				p, err := config.GetDefaultConfigPath()
				if err != nil {
					return err
				}
				path = p
			}

			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("settings file %s already exists (use --force to overwrite)", path)
			}

			settings, err := config.LoadSettings(cmd.Flags(), "")
			if err != nil {
				return err
			}
			if err := config.Save(settings, path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Settings written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing settings file (a .bak copy is kept)")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			settings, err := config.LoadSettings(cmd.Flags(), path)
			if err != nil {
				return err
			}
			settings.Storage.JournalDSN = logging.SanitizeDSN(settings.Storage.JournalDSN)

			data, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("failed to marshal settings: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
