package main

import (
	"fmt"

	"github.com/hyperengineering/stride"
	"github.com/spf13/cobra"
)

var (
	cfgDBPath  string
	cfgFile    string
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Stride - fitness behavior analytics CLI",
	Long: `Stride mines workout history into behavior patterns and turns them
into personalized recommendations.

Ratings on recommendations reinforce learned preferences, and users with
similar training behavior can be grouped into clusters.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if isTTY() {
			fmt.Fprintln(cmd.OutOrStdout(), renderBannerWithTagline())
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDBPath, "db", "", "Path to the SQLite database (default: ~/.stride/stride.db)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output as JSON")
}

// loadConfig reads the config file and STRIDE_* environment, then applies
// flag overrides.
func loadConfig() (stride.Config, error) {
	cfg, err := stride.LoadConfig(cfgFile)
	if err != nil {
		return stride.Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfgDBPath != "" {
		cfg.DBPath = cfgDBPath
	}
	return cfg, nil
}

// openEngine opens an engine from the loaded configuration. Callers must
// Close it.
func openEngine() (*stride.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	engine, err := stride.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	return engine, nil
}
