package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/stride"
)

var exportCmd = &cobra.Command{
	Use:   "export [user-id]",
	Short: "Export a user's data or back up the database",
	Long: `Export writes one user's activity and derived data as a JSON
activity document, which "stride import" accepts.

With --format sqlite the whole database is copied to the output path
and no user ID is needed.`,
	Example: `  stride export u1 -o u1.json
  stride export --format sqlite -o backup.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

var (
	exportOutputPath string
	exportFormat     string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutputPath, "output", "o", "", "Output file path (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json, sqlite")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}

// ExportResult for JSON output.
type ExportResult struct {
	UserID   string `json:"user_id,omitempty"`
	Format   string `json:"format"`
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	Duration string `json:"duration"`
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	format := strings.ToLower(exportFormat)
	var userID string
	switch format {
	case "json":
		if len(args) != 1 {
			return fmt.Errorf("json export needs a user ID")
		}
		userID = args[0]
	case "sqlite":
	default:
		return fmt.Errorf("invalid format %q: must be 'json' or 'sqlite'", exportFormat)
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	start := time.Now()
	switch format {
	case "json":
		err = exportJSON(ctx, engine.Store(), userID)
	case "sqlite":
		err = engine.Store().ExportSQLite(ctx, exportOutputPath)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	duration := time.Since(start)

	var fileSize int64
	if fi, statErr := os.Stat(exportOutputPath); statErr == nil {
		fileSize = fi.Size()
	}

	if outputJSON {
		return outputAsJSON(cmd, ExportResult{
			UserID:   userID,
			Format:   format,
			FilePath: exportOutputPath,
			FileSize: fileSize,
			Duration: duration.Round(time.Millisecond).String(),
		})
	}

	var summary strings.Builder
	if userID != "" {
		fmt.Fprintf(&summary, "User:      %s\n", userID)
	}
	fmt.Fprintf(&summary, "Format:    %s\n", strings.ToUpper(format))
	fmt.Fprintf(&summary, "File size: %s\n", formatBytes(fileSize))
	fmt.Fprintf(&summary, "Duration:  %s\n", duration.Round(time.Millisecond))
	fmt.Fprintf(&summary, "Output:    %s", exportOutputPath)

	fmt.Fprintln(out, renderPanel("Export Summary", summary.String()))
	printSuccess(out, "Export complete")
	return nil
}

func exportJSON(ctx context.Context, s *stride.Store, userID string) (err error) {
	f, err := os.Create(exportOutputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close output file: %w", cerr)
		}
	}()

	return s.ExportUserJSON(ctx, userID, f)
}

// formatBytes formats a byte count in binary units.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
