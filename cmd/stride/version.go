package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/stride"
	stridemcp "github.com/hyperengineering/stride/mcp"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type versionInfo struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	Date          string `json:"date"`
	ExportVersion string `json:"export_version"`
	MCPVersion    string `json:"mcp_version"`
	Go            string `json:"go"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the build, the activity document and MCP server versions, and runtime information.`,
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func currentVersion() versionInfo {
	return versionInfo{
		Version:       version,
		Commit:        commit,
		Date:          date,
		ExportVersion: stride.ExportVersion,
		MCPVersion:    stridemcp.Version,
		Go:            runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := currentVersion()
	if outputJSON {
		return outputAsJSON(cmd, info)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "stride %s\n", info.Version)
	printLabel(out, "  commit:", info.Commit)
	printLabel(out, "  built: ", info.Date)
	printLabel(out, "  export:", info.ExportVersion)
	printLabel(out, "  mcp:   ", info.MCPVersion)
	printLabel(out, "  go:    ", info.Go)
	printLabel(out, "  os:    ", info.OS+"/"+info.Arch)
	return nil
}
