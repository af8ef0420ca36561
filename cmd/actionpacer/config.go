package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"actionpacer/pkg/config"
	"actionpacer/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage actionpacer configuration.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (ACTIONPACER_*)
  - .env files
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configFile
		if path == "" {
			path = ".actionpacer.yaml"
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s", path)
		}

		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration written to " + path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after merging every source. Proxy credentials are masked.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, globalFlags())
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(configFile, globalFlags()); err != nil {
			return err
		}
		ui.PrintSuccess("Configuration is valid")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}
