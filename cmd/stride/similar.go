package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperengineering/stride"
)

var similarCmd = &cobra.Command{
	Use:   "similar <user-id>",
	Short: "Find users with similar training behavior",
	Long: `Score every other user against this one by shared patterns, profile
and learned preferences, and list the best matches.`,
	Example: `  stride similar u1
  stride similar u1 --min 0.5 -k 3`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

var clusterCmd = &cobra.Command{
	Use:   "cluster <user-id>",
	Short: "Group a user with similar users",
	Long: `Build and store the cluster of a user and their similar users, and
report the patterns most members share.`,
	Example: `  stride cluster u1`,
	Args:    cobra.ExactArgs(1),
	RunE:    runCluster,
}

var (
	similarMin float64
	similarK   int
)

func init() {
	similarCmd.Flags().Float64Var(&similarMin, "min", 0, "Minimum similarity 0.0-1.0 (default: configured threshold)")
	similarCmd.Flags().IntVarP(&similarK, "k", "k", 0, "Maximum number of matches (default: configured limit)")
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(clusterCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	res, err := engine.FindSimilarUsers(cmd.Context(), args[0], stride.SimilarityQuery{
		MinSimilarity: similarMin,
		MaxK:          similarK,
	})
	if err != nil {
		return err
	}
	return outputSimilar(cmd, res)
}

func runCluster(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	c, err := engine.BuildCluster(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return outputCluster(cmd, c)
}
