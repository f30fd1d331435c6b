package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hyperengineering/stride"
)

// Version is reported to MCP clients during initialization.
const Version = "1.0.0"

// Server exposes a Stride engine as MCP tools.
type Server struct {
	engine    *stride.Engine
	mcpServer *server.MCPServer
	titles    *titleIndex
	logger    *zap.Logger
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

type toolHandler func(ctx context.Context, args map[string]any) (*ToolResult, error)

// NewServer creates an MCP server with the Stride tools registered.
// A nil logger disables logging.
func NewServer(engine *stride.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: engine,
		titles: newTitleIndex(),
		logger: logger,
	}

	s.mcpServer = server.NewMCPServer(
		"stride",
		Version,
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Run serves MCP over stdin and stdout until the client disconnects.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return []ToolInfo{
		{Name: "stride_analyze", Description: "Mine a user's activity history into behavior patterns"},
		{Name: "stride_recommend", Description: "Generate recommendations from a user's patterns"},
		{Name: "stride_feedback", Description: "Rate a recommendation from 1 to 5"},
		{Name: "stride_similar", Description: "Find users with similar training behavior"},
		{Name: "stride_cluster", Description: "Group a user with similar users and report shared patterns"},
		{Name: "stride_stats", Description: "Report store and worker statistics"},
	}
}

func (s *Server) handlers() map[string]toolHandler {
	return map[string]toolHandler{
		"stride_analyze":   s.handleAnalyze,
		"stride_recommend": s.handleRecommend,
		"stride_feedback":  s.handleFeedback,
		"stride_similar":   s.handleSimilar,
		"stride_cluster":   s.handleCluster,
		"stride_stats":     s.handleStats,
	}
}

// CallTool executes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	h, ok := s.handlers()[name]
	if !ok {
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
	return h(ctx, args)
}

func (s *Server) registerTools() {
	userID := mcp.WithString("user_id",
		mcp.Description("The user to operate on"),
		mcp.Required(),
	)
	h := s.handlers()

	s.mcpServer.AddTool(mcp.NewTool("stride_analyze",
		mcp.WithDescription("Mine a user's workouts, exercise logs, moods and wearable data into behavior patterns. Pattern types without enough history are reported as skipped."),
		userID,
		mcp.WithBoolean("background",
			mcp.Description("Analyze preference and timing now and queue the rest (default: false)"),
		),
	), wrap(h["stride_analyze"]))

	s.mcpServer.AddTool(mcp.NewTool("stride_recommend",
		mcp.WithDescription("Generate recommendations for a user. Returns session references (R1, R2, ...) that stride_feedback accepts."),
		userID,
		mcp.WithBoolean("include_readiness",
			mcp.Description("Consult wearable readiness (default: true)"),
		),
		mcp.WithBoolean("include_peers",
			mcp.Description("Suggest workout types popular with similar users (default: false)"),
		),
		mcp.WithBoolean("active_only",
			mcp.Description("List stored active recommendations instead of generating new ones"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum recommendations listed with active_only (default: all)"),
		),
	), wrap(h["stride_recommend"]))

	s.mcpServer.AddTool(mcp.NewTool("stride_feedback",
		mcp.WithDescription("Rate a recommendation from 1 (poor) to 5 (great). Ratings adjust the recommendation's confidence and the user's learned preferences."),
		userID,
		mcp.WithString("recommendation",
			mcp.Description("Session reference (R1), recommendation ID or a fragment of its title"),
			mcp.Required(),
		),
		mcp.WithNumber("rating",
			mcp.Description("Rating from 1 to 5"),
			mcp.Required(),
		),
		mcp.WithString("comment",
			mcp.Description("Optional free-text comment"),
		),
	), wrap(h["stride_feedback"]))

	s.mcpServer.AddTool(mcp.NewTool("stride_similar",
		mcp.WithDescription("Find users with similar patterns, profiles and preferences."),
		userID,
		mcp.WithNumber("min_similarity",
			mcp.Description("Minimum similarity 0.0-1.0 (default: 0.7)"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of matches (default: 10)"),
		),
	), wrap(h["stride_similar"]))

	s.mcpServer.AddTool(mcp.NewTool("stride_cluster",
		mcp.WithDescription("Group a user with similar users, store the cluster and report the patterns most members share."),
		userID,
	), wrap(h["stride_cluster"]))

	s.mcpServer.AddTool(mcp.NewTool("stride_stats",
		mcp.WithDescription("Report record counts of the local store and background worker activity."),
	), wrap(h["stride_stats"]))
}

func wrap(h toolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}

func errorResult(format string, args ...any) *ToolResult {
	return &ToolResult{Content: fmt.Sprintf(format, args...), IsError: true}
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func numberArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func boolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}
