package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/stride"
)

// outputAsJSON writes any value as formatted JSON to the command's stdout.
func outputAsJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError prints an error to w.
func outputError(w io.Writer, err error) {
	printError(w, "Error: %s", err)
	var ve *stride.ValidationError
	if errors.As(err, &ve) && ve.Field == "user_id" {
		printMuted(w, "User IDs are 1-128 letters, digits or '-', '_', '.', '@'.")
	}
}

func outputAnalysis(cmd *cobra.Command, r *stride.AnalysisReport) error {
	if outputJSON {
		return outputAsJSON(cmd, analysisJSON{
			AnalysisReport: r,
			Failed:         r.FailureMessages(),
		})
	}

	out := cmd.OutOrStdout()
	if len(r.Patterns) == 0 {
		printWarning(out, "No patterns found for %s.", r.UserID)
	} else {
		printInfo(out, "Patterns for %s (%d):", r.UserID, len(r.Patterns))
		rows := make([][]string, 0, len(r.Patterns))
		for _, p := range r.Patterns {
			rows = append(rows, []string{string(p.Type), fmt.Sprintf("%.0f", p.Confidence), summarizePattern(p)})
		}
		fmt.Fprintln(out, renderTable([]string{"PATTERN", "CONFIDENCE", "SUMMARY"}, rows))
	}

	if len(r.Skipped) > 0 {
		fmt.Fprintln(out)
		printMuted(out, "Not enough history:")
		for _, t := range sortedTypes(r.Skipped) {
			printMuted(out, "  %s: %s", t, r.Skipped[t])
		}
	}
	if failed := r.FailureMessages(); len(failed) > 0 {
		fmt.Fprintln(out)
		printWarning(out, "Failed:")
		for _, t := range sortedTypes(failed) {
			fmt.Fprintf(out, "  %s: %s\n", t, failed[t])
		}
	}
	if len(r.Queued) > 0 {
		fmt.Fprintln(out)
		printInfo(out, "Queued for background analysis: %d", len(r.Queued))
	}
	return nil
}

// analysisJSON replaces the report's error values with their messages.
type analysisJSON struct {
	*stride.AnalysisReport
	Failed map[stride.PatternType]string `json:"failed,omitempty"`
}

// summarizePattern names the headline finding of a pattern.
func summarizePattern(p stride.Pattern) string {
	switch d := p.Data.(type) {
	case stride.WorkoutPreferenceData:
		if top, ok := d.Top(); ok {
			return fmt.Sprintf("prefers %s (%.0f%%)", top.Value, top.Percentage)
		}
	case stride.TimingData:
		return fmt.Sprintf("trains in the %s, %.1f sessions/week", d.PreferredDayPart, d.WeeklyFrequency)
	case stride.IntensityResponseData:
		return fmt.Sprintf("responds best to %s intensity", d.OptimalIntensity)
	case stride.ProgressionData:
		return fmt.Sprintf("%d progressing, %d stagnant, %d regressing", d.Progressing, d.Stagnant, d.Regressing)
	case stride.StagnationData:
		return fmt.Sprintf("%d exercises stalled", len(d.Exercises))
	case stride.MoodCorrelationData:
		if d.BestType != "" {
			return fmt.Sprintf("%s lifts mood most (%+.1f)", d.BestType, d.BestChange)
		}
	case stride.RecoveryPatternData:
		return string(d.Status)
	}
	return ""
}

func outputRecommendations(cmd *cobra.Command, set *stride.RecommendationSet) error {
	if outputJSON {
		return outputAsJSON(cmd, set)
	}

	out := cmd.OutOrStdout()
	if len(set.Recommendations) == 0 {
		printWarning(out, "No recommendations for %s yet.", set.UserID)
		printMuted(out, "Import more activity, then run: stride analyze %s", set.UserID)
		return nil
	}

	refs := make(map[string]string, len(set.SessionRefs))
	for ref, id := range set.SessionRefs {
		refs[id] = ref
	}

	var md strings.Builder
	fmt.Fprintf(&md, "## Recommendations for %s\n\n", set.UserID)
	for _, r := range set.Recommendations {
		fmt.Fprintf(&md, "- **%s** %s (%s, confidence %.0f)\n", refs[r.ID], r.Title, r.Type, r.Confidence)
		fmt.Fprintf(&md, "  %s\n", r.Description)
		if r.Reasoning != "" {
			fmt.Fprintf(&md, "  _Why:_ %s\n", r.Reasoning)
		}
		fmt.Fprintf(&md, "  ID: `%s`\n", r.ID)
	}
	fmt.Fprintln(out, renderMarkdown(md.String()))

	if set.Readiness != nil {
		fmt.Fprintln(out)
		state := "ready to train"
		if !set.Readiness.Ready {
			state = "recovery advised"
		}
		printLabel(out, "Readiness:", fmt.Sprintf("%.0f (%s)", set.Readiness.RecoveryScore, state))
	}
	if len(set.Peers) > 0 {
		fmt.Fprintln(out)
		printInfo(out, "Popular with similar users:")
		for _, p := range set.Peers {
			fmt.Fprintf(out, "  %s (%d peers, %.0f%%)\n", p.WorkoutType, p.PeerCount, p.PopularityRatio*100)
		}
	}
	return nil
}

func outputFeedback(cmd *cobra.Command, ref string, res *stride.FeedbackResult) error {
	if outputJSON {
		return outputAsJSON(cmd, res)
	}

	out := cmd.OutOrStdout()
	rec := res.Recommendation
	printSuccess(out, "Feedback recorded for %s", ref)
	printLabel(out, "  Title:", rec.Title)
	printLabel(out, "  Rating:", fmt.Sprintf("%d (%s)", res.Feedback.Rating, stride.Sentiment(res.Feedback.Rating)))
	printLabel(out, "  Confidence:", fmt.Sprintf("%.2f", rec.Confidence))
	printLabel(out, "  Positive ratio:", fmt.Sprintf("%.2f over %d ratings", rec.PositiveFeedbackRatio, rec.FeedbackCount))
	for _, p := range res.Preferences {
		printLabel(out, "  Preference:", fmt.Sprintf("%s=%s %.0f", p.Type, p.Value, p.Strength))
	}
	if !rec.IsActive {
		printWarning(out, "Recommendation retired.")
	}
	return nil
}

func outputSimilar(cmd *cobra.Command, res *stride.SimilarityResult) error {
	if outputJSON {
		return outputAsJSON(cmd, res)
	}

	out := cmd.OutOrStdout()
	if len(res.Matches) == 0 {
		printWarning(out, "No similar users found for %s (%d candidates scored).", res.UserID, res.Scored)
	} else {
		printInfo(out, "Users similar to %s:", res.UserID)
		rows := make([][]string, 0, len(res.Matches))
		for _, m := range res.Matches {
			rows = append(rows, []string{
				m.UserID,
				fmt.Sprintf("%.2f", m.Score),
				fmt.Sprintf("%.2f", m.Pattern),
				fmt.Sprintf("%.2f", m.Profile),
				fmt.Sprintf("%.2f", m.Preference),
			})
		}
		fmt.Fprintln(out, renderTable([]string{"USER", "SCORE", "PATTERNS", "PROFILE", "PREFERENCES"}, rows))
	}
	if res.Skipped > 0 {
		printMuted(out, "Skipped %d candidates that could not be read.", res.Skipped)
	}
	if res.Partial {
		printWarning(out, "Partial result: scored %d of %d candidates before the deadline.", res.Scored, res.Candidates)
	}
	return nil
}

func outputCluster(cmd *cobra.Command, c *stride.Cluster) error {
	if outputJSON {
		return outputAsJSON(cmd, c)
	}

	out := cmd.OutOrStdout()
	printSuccess(out, "Cluster %s (%d members)", c.Name, len(c.UserIDs))
	printLabel(out, "  Members:", strings.Join(c.UserIDs, ", "))
	if len(c.CommonPatterns) == 0 {
		printMuted(out, "No patterns shared by most members.")
		return nil
	}
	rows := make([][]string, 0, len(c.CommonPatterns))
	for _, cp := range c.CommonPatterns {
		rows = append(rows, []string{string(cp.Type), cp.Value, fmt.Sprintf("%d of %d", cp.Members, cp.Holders)})
	}
	fmt.Fprintln(out, renderTable([]string{"PATTERN", "VALUE", "MEMBERS"}, rows))
	return nil
}

func sortedTypes[V any](m map[stride.PatternType]V) []stride.PatternType {
	keys := make([]stride.PatternType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
