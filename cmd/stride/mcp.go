package main

import (
	"github.com/spf13/cobra"

	stridemcp "github.com/hyperengineering/stride/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for agent integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio.

Coding and coaching agents can then analyze users, generate
recommendations and submit feedback through Stride tools.

Example client configuration:

  {
    "mcpServers": {
      "stride": {
        "command": "stride",
        "args": ["mcp"],
        "env": {
          "STRIDE_DB_PATH": "/path/to/stride.db"
        }
      }
    }
  }

Environment variables:
  STRIDE_DB_PATH     Path to the SQLite database
  STRIDE_WORKERS     Background analysis workers (default: 4)
  STRIDE_LOG_LEVEL   debug, info, warn or error (logs go to stderr)`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	// The engine persists for the server lifetime.
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	server := stridemcp.NewServer(engine, engine.Logger().Named("mcp"))
	return server.Run()
}
