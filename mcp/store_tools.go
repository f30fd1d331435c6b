package mcp

import (
	"context"
	"fmt"
	"strings"
)

// handleStats handles the stride_stats tool call.
func (s *Server) handleStats(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	var sb strings.Builder

	if st := s.engine.Store(); st != nil {
		stats, err := st.Stats(ctx)
		if err != nil {
			return errorResult("stats failed: %v", err), nil
		}
		fmt.Fprintf(&sb, "Store: %s (schema %s)\n", st.Path(), stats.SchemaVersion)
		fmt.Fprintf(&sb, "  Users: %d\n", stats.Users)
		fmt.Fprintf(&sb, "  Workouts: %d\n", stats.Workouts)
		fmt.Fprintf(&sb, "  Patterns: %d\n", stats.Patterns)
		fmt.Fprintf(&sb, "  Active recommendations: %d\n", stats.ActiveRecommendations)
		fmt.Fprintf(&sb, "  Feedback: %d\n", stats.Feedback)
		fmt.Fprintf(&sb, "  Preferences: %d\n", stats.Preferences)
		fmt.Fprintf(&sb, "  Clusters: %d\n", stats.Clusters)
	} else {
		sb.WriteString("Store: not managed by this engine\n")
	}

	ps := s.engine.PoolStats()
	sb.WriteString("Background analysis:\n")
	fmt.Fprintf(&sb, "  Pending: %d | Running: %d\n", ps.Pending, ps.Running)
	fmt.Fprintf(&sb, "  Completed: %d | Failed: %d | Dropped: %d\n", ps.Completed, ps.Failed, ps.Dropped)
	fmt.Fprintf(&sb, "Session refs: %d\n", s.engine.Session().Count())
	return &ToolResult{Content: sb.String()}, nil
}
