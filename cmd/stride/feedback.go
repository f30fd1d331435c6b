package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/stride"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <user-id> <recommendation> <rating>",
	Short: "Rate a recommendation from 1 to 5",
	Long: `Rate a recommendation. The rating adjusts its confidence and reinforces
the user's learned preferences:
  4-5  positive: confidence up, preferences strengthened
  3    neutral:  no change
  1-2  negative: confidence down, preferences weakened

The recommendation may be named by its ID, by its position in
"stride recommend --active" (R1, R2, ...), or by a fragment of its title.`,
	Example: `  stride feedback u1 R1 5
  stride feedback u1 "cardio momentum" 4 --comment "loved it"`,
	Args: cobra.ExactArgs(3),
	RunE: runFeedback,
}

var feedbackComment string

func init() {
	feedbackCmd.Flags().StringVar(&feedbackComment, "comment", "", "Optional free-text comment")
	rootCmd.AddCommand(feedbackCmd)
}

func runFeedback(cmd *cobra.Command, args []string) error {
	userID, ref := args[0], args[1]
	rating, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("rating must be a number between %d and %d", stride.RatingMin, stride.RatingMax)
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	id, err := resolveRecommendation(cmd, engine, userID, ref)
	if err != nil {
		return err
	}

	res, err := engine.SubmitFeedback(cmd.Context(), stride.FeedbackInput{
		UserID:           userID,
		RecommendationID: id,
		Rating:           rating,
		Text:             feedbackComment,
	})
	switch {
	case errors.Is(err, stride.ErrNotFound):
		return fmt.Errorf("recommendation not found: %s", ref)
	case errors.Is(err, stride.ErrInvalidRating):
		return fmt.Errorf("rating must be between %d and %d", stride.RatingMin, stride.RatingMax)
	case err != nil:
		return err
	}
	return outputFeedback(cmd, ref, res)
}

// resolveRecommendation maps ref to a recommendation ID. Session refs and
// title fragments are resolved against the user's active recommendations in
// the order "recommend --active" lists them.
func resolveRecommendation(cmd *cobra.Command, engine *stride.Engine, userID, ref string) (string, error) {
	set, err := engine.ActiveRecommendations(cmd.Context(), userID, 0)
	if err != nil {
		return "", err
	}

	titles := make(map[string]string, len(set.Recommendations))
	for _, r := range set.Recommendations {
		titles[r.ID] = r.Title
	}
	if id, ok := engine.Session().FuzzyMatch(ref, func(id string) string { return titles[id] }); ok {
		return id, nil
	}
	if stride.IsSessionRef(ref) {
		return "", fmt.Errorf("recommendation not found: %s (see: stride recommend %s --active)", ref, userID)
	}
	// Retired recommendations can still be rated by ID.
	return ref, nil
}
