package main

import (
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <user-id>",
	Short: "Mine a user's history into behavior patterns",
	Long: `Run every pattern extractor over a user's recent activity and store
the patterns found. Pattern types without enough history are listed as
skipped.

With --background, workout preference and timing are analyzed right
away and the remaining types are handed to background workers, which
finish before the command exits.`,
	Example: `  stride analyze u1
  stride analyze u1 --background --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var analyzeBackground bool

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeBackground, "background", false, "Queue slower extractors on background workers")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	analyze := engine.AnalyzeAll
	if analyzeBackground {
		analyze = engine.AnalyzeWorkoutPatterns
	}
	report, err := analyze(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return outputAnalysis(cmd, report)
}
