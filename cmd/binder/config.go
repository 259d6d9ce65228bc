package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/config"
	"github.com/jackzampolin/binder/internal/emit"
	"github.com/jackzampolin/binder/internal/home"
)

var (
	configForce      bool
	configShowFormat string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage binder configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Long: `Write the default configuration to the binder home directory.

Examples:
  binder config init
  binder config init --home /tmp/binder --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if h.ConfigExists() && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", h.ConfigPath())
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", h.ConfigPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after applying the config file and
BINDER_ environment overrides.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := emit.ParseFormat(configShowFormat)
		if err != nil {
			return err
		}
		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		return emit.Fprint(os.Stdout, format, mgr.Get())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configShowCmd.Flags().StringVar(&configShowFormat, "format", "yaml", "Output format: yaml or json")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
