package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/stride"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	Long:  `Display record counts of the local database and the tuning in effect.`,
	Example: `  stride stats
  stride stats --json`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

// StatsOutput for JSON output.
type StatsOutput struct {
	Path   string             `json:"path"`
	Store  *stride.StoreStats `json:"store"`
	Tuning stride.Tuning      `json:"tuning"`
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	st := engine.Store()
	stats, err := st.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	if outputJSON {
		return outputAsJSON(cmd, StatsOutput{Path: st.Path(), Store: stats, Tuning: engine.Tuning()})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Database:         %s\n", st.Path())
	fmt.Fprintf(&sb, "Schema version:   %s\n", stats.SchemaVersion)
	fmt.Fprintf(&sb, "Users:            %d\n", stats.Users)
	fmt.Fprintf(&sb, "Workouts:         %d\n", stats.Workouts)
	fmt.Fprintf(&sb, "Patterns:         %d\n", stats.Patterns)
	fmt.Fprintf(&sb, "Recommendations:  %d active\n", stats.ActiveRecommendations)
	fmt.Fprintf(&sb, "Feedback:         %d\n", stats.Feedback)
	fmt.Fprintf(&sb, "Preferences:      %d\n", stats.Preferences)
	fmt.Fprintf(&sb, "Clusters:         %d", stats.Clusters)

	fmt.Fprintln(cmd.OutOrStdout(), renderPanel("Store Statistics", sb.String()))
	return nil
}
