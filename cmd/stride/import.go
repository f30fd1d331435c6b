package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/stride"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import activity history from a JSON export",
	Long: `Import profiles, workouts, exercise logs, moods and wearable summaries
from an activity document. Use "-" to read from stdin.

Records are upserted by ID, so re-importing the same file is safe.
Records that fail validation are skipped and listed. Derived data
(patterns, recommendations, preferences) is rebuilt by analysis and
ignored on import.`,
	Example: `  stride import history.json
  stride import history.json --dry-run
  cat history.json | stride import -`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var importDryRun bool

func init() {
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Validate records without writing them")
	rootCmd.AddCommand(importCmd)
}

// ImportResultOutput for JSON output.
type ImportResultOutput struct {
	InputFile  string   `json:"input_file"`
	DryRun     bool     `json:"dry_run"`
	Total      int      `json:"total"`
	Created    int      `json:"created"`
	Skipped    int      `json:"skipped"`
	ErrorCount int      `json:"error_count"`
	Errors     []string `json:"errors,omitempty"`
	Duration   string   `json:"duration"`
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	out := cmd.OutOrStdout()

	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("input file not found: %s", path)
			}
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	if !outputJSON {
		if importDryRun {
			printInfo(out, "Previewing import from %s...", path)
		} else {
			printInfo(out, "Importing from %s...", path)
		}
	}

	start := time.Now()
	result, err := engine.Store().ImportActivityJSON(cmd.Context(), r, importDryRun)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	duration := time.Since(start)

	if outputJSON {
		return outputAsJSON(cmd, ImportResultOutput{
			InputFile:  path,
			DryRun:     importDryRun,
			Total:      result.Total,
			Created:    result.Created,
			Skipped:    result.Skipped,
			ErrorCount: len(result.Errors),
			Errors:     result.Errors,
			Duration:   duration.Round(time.Millisecond).String(),
		})
	}

	outputImportSummary(out, result)
	fmt.Fprintln(out)
	if importDryRun {
		printMuted(out, "Dry-run complete. No changes made.")
	} else {
		printSuccess(out, "Import complete.")
	}
	return nil
}

func outputImportSummary(out io.Writer, result *stride.ImportResult) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Total records: %d\n", result.Total)
	if importDryRun {
		fmt.Fprintf(out, "  Would write: %d\n", result.Created)
	} else {
		fmt.Fprintf(out, "  Written: %d\n", result.Created)
	}
	fmt.Fprintf(out, "  Skipped: %d\n", result.Skipped)

	if len(result.Errors) > 0 {
		fmt.Fprintln(out)
		printWarning(out, "Errors encountered:")
		const maxErrors = 10
		for i, e := range result.Errors {
			if i >= maxErrors {
				fmt.Fprintf(out, "  ... and %d more errors\n", len(result.Errors)-maxErrors)
				break
			}
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
}
