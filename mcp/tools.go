package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperengineering/stride"
)

func (s *Server) handleAnalyze(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID := stringArg(args, "user_id")
	if userID == "" {
		return errorResult("user_id is required"), nil
	}

	analyze := s.engine.AnalyzeAll
	if boolArg(args, "background", false) {
		analyze = s.engine.AnalyzeWorkoutPatterns
	}
	report, err := analyze(ctx, userID)
	if err != nil {
		return errorResult("analysis failed: %v", err), nil
	}
	return &ToolResult{Content: formatAnalysisReport(report)}, nil
}

func (s *Server) handleRecommend(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID := stringArg(args, "user_id")
	if userID == "" {
		return errorResult("user_id is required"), nil
	}

	var (
		set *stride.RecommendationSet
		err error
	)
	if boolArg(args, "active_only", false) {
		limit, _ := numberArg(args, "limit")
		set, err = s.engine.ActiveRecommendations(ctx, userID, int(limit))
	} else {
		set, err = s.engine.GenerateRecommendations(ctx, userID, stride.SynthesisOptions{
			IncludeReadiness: boolArg(args, "include_readiness", true),
			IncludePeers:     boolArg(args, "include_peers", false),
		})
	}
	if err != nil {
		return errorResult("recommend failed: %v", err), nil
	}

	s.titles.remember(set.Recommendations)
	return &ToolResult{Content: formatRecommendationSet(set)}, nil
}

func (s *Server) handleFeedback(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID := stringArg(args, "user_id")
	if userID == "" {
		return errorResult("user_id is required"), nil
	}
	ref := strings.TrimSpace(stringArg(args, "recommendation"))
	if ref == "" {
		return errorResult("recommendation is required"), nil
	}
	rating, ok := numberArg(args, "rating")
	if !ok {
		return errorResult("rating is required"), nil
	}
	if rating != math.Trunc(rating) {
		return errorResult("rating must be a whole number between %d and %d", stride.RatingMin, stride.RatingMax), nil
	}

	// Session refs are resolved by the engine; anything else may be an ID
	// or a title fragment of a recommendation shown in this session.
	id := ref
	if !stride.IsSessionRef(ref) {
		if matched, ok := s.engine.Session().FuzzyMatch(ref, s.titles.lookup); ok {
			id = matched
		}
	}

	res, err := s.engine.SubmitFeedback(ctx, stride.FeedbackInput{
		UserID:           userID,
		RecommendationID: id,
		Rating:           int(rating),
		Text:             stringArg(args, "comment"),
	})
	switch {
	case errors.Is(err, stride.ErrSessionRefNotFound), errors.Is(err, stride.ErrNotFound):
		return errorResult("recommendation not found: %s\nUse stride_recommend to list recommendations with session refs.", ref), nil
	case errors.Is(err, stride.ErrInvalidRating):
		return errorResult("rating must be between %d and %d", stride.RatingMin, stride.RatingMax), nil
	case err != nil:
		return errorResult("feedback failed: %v", err), nil
	}

	s.logger.Debug("feedback recorded via mcp",
		zap.String("user_id", userID),
		zap.String("recommendation_id", res.Recommendation.ID),
	)
	return &ToolResult{Content: formatFeedbackResult(ref, res)}, nil
}

func (s *Server) handleSimilar(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID := stringArg(args, "user_id")
	if userID == "" {
		return errorResult("user_id is required"), nil
	}

	var q stride.SimilarityQuery
	if v, ok := numberArg(args, "min_similarity"); ok {
		q.MinSimilarity = v
	}
	if v, ok := numberArg(args, "k"); ok {
		q.MaxK = int(v)
	}

	res, err := s.engine.FindSimilarUsers(ctx, userID, q)
	if err != nil {
		return errorResult("similarity search failed: %v", err), nil
	}
	return &ToolResult{Content: formatSimilarityResult(res)}, nil
}

func (s *Server) handleCluster(ctx context.Context, args map[string]any) (*ToolResult, error) {
	userID := stringArg(args, "user_id")
	if userID == "" {
		return errorResult("user_id is required"), nil
	}

	c, err := s.engine.BuildCluster(ctx, userID)
	if err != nil {
		return errorResult("cluster failed: %v", err), nil
	}
	return &ToolResult{Content: formatCluster(c)}, nil
}

// Formatting functions

func formatAnalysisReport(r *stride.AnalysisReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analysis for %s:\n", r.UserID)

	if len(r.Patterns) == 0 {
		sb.WriteString("  No patterns found.\n")
	}
	for _, p := range r.Patterns {
		fmt.Fprintf(&sb, "  %s (confidence %.0f)\n", p.Type, p.Confidence)
	}

	if len(r.Skipped) > 0 {
		sb.WriteString("Skipped (not enough history):\n")
		for _, t := range sortedKeys(r.Skipped) {
			fmt.Fprintf(&sb, "  %s: %s\n", t, r.Skipped[t])
		}
	}
	if failed := r.FailureMessages(); len(failed) > 0 {
		sb.WriteString("Failed:\n")
		for _, t := range sortedKeys(failed) {
			fmt.Fprintf(&sb, "  %s: %s\n", t, failed[t])
		}
	}
	if len(r.Queued) > 0 {
		fmt.Fprintf(&sb, "Queued for background analysis: %d\n", len(r.Queued))
	}
	return sb.String()
}

func formatRecommendationSet(set *stride.RecommendationSet) string {
	if len(set.Recommendations) == 0 {
		return fmt.Sprintf("No recommendations for %s yet. Record more activity and analyze again.", set.UserID)
	}

	refs := make(map[string]string, len(set.SessionRefs))
	for ref, id := range set.SessionRefs {
		refs[id] = ref
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d recommendations for %s:\n\n", len(set.Recommendations), set.UserID)
	for _, r := range set.Recommendations {
		fmt.Fprintf(&sb, "[%s] %s (%s, confidence %.0f)\n", refs[r.ID], r.Title, r.Type, r.Confidence)
		fmt.Fprintf(&sb, "    %s\n", r.Description)
		if r.Reasoning != "" {
			fmt.Fprintf(&sb, "    Why: %s\n", r.Reasoning)
		}
		sb.WriteString("\n")
	}
	if set.Readiness != nil {
		fmt.Fprintf(&sb, "Readiness: score %.0f, ready=%t\n", set.Readiness.RecoveryScore, set.Readiness.Ready)
	}

	sb.WriteString("Use stride_feedback with session refs (R1, R2, ...) to rate recommendations.")
	return sb.String()
}

func formatFeedbackResult(ref string, res *stride.FeedbackResult) string {
	var sb strings.Builder
	rec := res.Recommendation
	fmt.Fprintf(&sb, "Feedback recorded for %s (%s):\n", ref, rec.Title)
	fmt.Fprintf(&sb, "  Rating: %d (%s)\n", res.Feedback.Rating, stride.Sentiment(res.Feedback.Rating))
	fmt.Fprintf(&sb, "  Confidence: %.2f\n", rec.Confidence)
	fmt.Fprintf(&sb, "  Positive ratio: %.2f over %d ratings\n", rec.PositiveFeedbackRatio, rec.FeedbackCount)
	if !rec.IsActive {
		sb.WriteString("  Recommendation retired.\n")
	}
	for _, p := range res.Preferences {
		fmt.Fprintf(&sb, "  Preference %s=%s: %.0f\n", p.Type, p.Value, p.Strength)
	}
	return sb.String()
}

func formatSimilarityResult(res *stride.SimilarityResult) string {
	var sb strings.Builder
	if len(res.Matches) == 0 {
		fmt.Fprintf(&sb, "No similar users found for %s (%d candidates scored).\n", res.UserID, res.Scored)
	} else {
		fmt.Fprintf(&sb, "Users similar to %s:\n", res.UserID)
		for _, m := range res.Matches {
			fmt.Fprintf(&sb, "  %s: %.2f (patterns %.2f, profile %.2f, preferences %.2f)\n",
				m.UserID, m.Score, m.Pattern, m.Profile, m.Preference)
		}
	}
	if res.Skipped > 0 {
		fmt.Fprintf(&sb, "Skipped %d candidates that could not be read.\n", res.Skipped)
	}
	if res.Partial {
		fmt.Fprintf(&sb, "Partial result: scored %d of %d candidates before the deadline.\n", res.Scored, res.Candidates)
	}
	return sb.String()
}

func formatCluster(c *stride.Cluster) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Cluster %s (%d members): %s\n", c.Name, len(c.UserIDs), strings.Join(c.UserIDs, ", "))
	if len(c.CommonPatterns) == 0 {
		sb.WriteString("  No patterns shared by most members.\n")
	}
	for _, cp := range c.CommonPatterns {
		fmt.Fprintf(&sb, "  %s: %s (%d of %d members)\n", cp.Type, cp.Value, cp.Members, cp.Holders)
	}
	return sb.String()
}

func sortedKeys[V any](m map[stride.PatternType]V) []stride.PatternType {
	keys := make([]stride.PatternType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
