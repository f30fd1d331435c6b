package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperengineering/stride"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <user-id>",
	Short: "Generate recommendations from a user's patterns",
	Long: `Synthesize recommendations from the user's stored patterns, analyzing
first when none exist. Wearable readiness is consulted unless
--readiness=false; --peers adds workout types popular with similar users.

With --active, stored active recommendations are listed instead. Their
R1, R2, ... references are what "stride feedback" accepts.`,
	Example: `  stride recommend u1
  stride recommend u1 --peers
  stride recommend u1 --active --limit 5`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

var (
	recommendReadiness bool
	recommendPeers     bool
	recommendActive    bool
	recommendLimit     int
)

func init() {
	recommendCmd.Flags().BoolVar(&recommendReadiness, "readiness", true, "Consult wearable readiness")
	recommendCmd.Flags().BoolVar(&recommendPeers, "peers", false, "Include workout types popular with similar users")
	recommendCmd.Flags().BoolVar(&recommendActive, "active", false, "List stored active recommendations")
	recommendCmd.Flags().IntVar(&recommendLimit, "limit", 0, "Maximum recommendations listed with --active (0 = all)")
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	var set *stride.RecommendationSet
	if recommendActive {
		set, err = engine.ActiveRecommendations(cmd.Context(), args[0], recommendLimit)
	} else {
		set, err = engine.GenerateRecommendations(cmd.Context(), args[0], stride.SynthesisOptions{
			IncludeReadiness: recommendReadiness,
			IncludePeers:     recommendPeers,
		})
	}
	if err != nil {
		return err
	}
	return outputRecommendations(cmd, set)
}
