package stride_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hyperengineering/stride"
	"github.com/hyperengineering/stride/internal/logging"
	"github.com/hyperengineering/stride/internal/metrics"
)

func seedRecommendation(fs *fakeStore, id string, conf float64, data stride.RecommendationData) {
	now := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	_ = fs.InsertRecommendations(context.Background(), []stride.Recommendation{{
		ID:         id,
		UserID:     "u1",
		Title:      "Evening strength",
		Type:       data.RecommendationType(),
		Data:       data,
		Confidence: conf,
		IsActive:   true,
		Source:     stride.SourcePatterns,
		CreatedAt:  now,
		UpdatedAt:  now,
	}})
}

var eveningStrength = stride.WorkoutData{
	WorkoutType: "strength",
	Intensity:   stride.IntensityHigh,
	TimeOfDay:   stride.DayPart("evening"),
}

func newLoop(fs *fakeStore, logger *zap.Logger, m *metrics.Metrics) *stride.FeedbackLoop {
	return stride.NewFeedbackLoop(fs, fs, fs, stride.DefaultTuning(), logger, m)
}

func rate(t *testing.T, loop *stride.FeedbackLoop, recID string, rating int) *stride.FeedbackResult {
	t.Helper()
	res, err := loop.Submit(context.Background(), stride.FeedbackInput{UserID: "u1", RecommendationID: recID, Rating: rating})
	require.NoError(t, err)
	return res
}

func TestFeedback_PositiveRating(t *testing.T) {
	fs := newFakeStore()
	seedRecommendation(fs, "r1", 60, eveningStrength)
	m := metrics.New()

	res := rate(t, newLoop(fs, nil, m), "r1", 5)

	assert.Equal(t, 65.0, res.Recommendation.Confidence)
	assert.True(t, res.Recommendation.IsActive)
	assert.Equal(t, 1, res.Recommendation.FeedbackCount)
	assert.Equal(t, 1.0, res.Recommendation.PositiveFeedbackRatio)
	assert.Equal(t, res.Recommendation.Confidence, fs.recommendation("r1").Confidence)
	assert.NotEmpty(t, res.Feedback.ID)

	require.Len(t, res.Preferences, 3)
	for _, attr := range []struct {
		typ   stride.PreferenceType
		value string
	}{
		{stride.PreferenceExerciseType, "strength"},
		{stride.PreferenceIntensityLevel, "high"},
		{stride.PreferenceTimeOfDay, "evening"},
	} {
		p, ok := fs.preference("u1", attr.typ, attr.value)
		require.True(t, ok, "%s=%s", attr.typ, attr.value)
		assert.Equal(t, 55.0, p.Strength)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Feedback.WithLabelValues(stride.SentimentPositive)))
}

func TestFeedback_NegativeRatingRetires(t *testing.T) {
	fs := newFakeStore()
	seedRecommendation(fs, "r1", 60, eveningStrength)

	res := rate(t, newLoop(fs, nil, nil), "r1", 1)

	assert.Equal(t, 50.0, res.Recommendation.Confidence)
	assert.False(t, res.Recommendation.IsActive)
	assert.False(t, fs.recommendation("r1").IsActive)
	assert.Zero(t, res.Recommendation.PositiveFeedbackRatio)

	p, ok := fs.preference("u1", stride.PreferenceExerciseType, "strength")
	require.True(t, ok)
	assert.Equal(t, 45.0, p.Strength)
}

func TestFeedback_NeutralRatingLeavesPreferences(t *testing.T) {
	fs := newFakeStore()
	seedRecommendation(fs, "r1", 60, eveningStrength)

	res := rate(t, newLoop(fs, nil, nil), "r1", 3)

	assert.True(t, res.Recommendation.IsActive)
	assert.Equal(t, 50.0, res.Recommendation.Confidence, "a ratio of 0 still takes the penalty")
	assert.Empty(t, res.Preferences)
	assert.Zero(t, fs.callCount("AdjustPreference"))
}

func TestFeedback_RetirementIsSticky(t *testing.T) {
	fs := newFakeStore()
	seedRecommendation(fs, "r1", 60, eveningStrength)
	loop := newLoop(fs, nil, nil)

	rate(t, loop, "r1", 2)
	res := rate(t, loop, "r1", 5)

	assert.False(t, res.Recommendation.IsActive)
	assert.Equal(t, 2, res.Recommendation.FeedbackCount)
	assert.Equal(t, 0.5, res.Recommendation.PositiveFeedbackRatio)
}

func TestFeedback_RecomputesFromFullHistory(t *testing.T) {
	fs := newFakeStore()
	seedRecommendation(fs, "r1", 60, eveningStrength)
	loop := newLoop(fs, nil, nil)

	assert.Equal(t, 65.0, rate(t, loop, "r1", 5).Recommendation.Confidence)
	assert.Equal(t, 70.0, rate(t, loop, "r1", 4).Recommendation.Confidence)

	res := rate(t, loop, "r1", 1)
	assert.Equal(t, 3, res.Recommendation.FeedbackCount)
	assert.Equal(t, 0.67, res.Recommendation.PositiveFeedbackRatio)
	assert.Equal(t, 70.0, res.Recommendation.Confidence, "a mixed ratio leaves confidence alone")
	assert.False(t, res.Recommendation.IsActive)
}

func TestFeedback_RatioThresholdsUseExactRatio(t *testing.T) {
	tests := []struct {
		name      string
		positive  int
		neutral   int
		rating    int
		wantRatio float64
	}{
		{"39 of 49 stays under the boost", 38, 10, 5, 0.8},
		{"10 of 49 stays over the penalty", 10, 38, 3, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStore()
			seedRecommendation(fs, "r1", 50, eveningStrength)
			for i := 0; i < tt.positive+tt.neutral; i++ {
				rating := 3
				if i < tt.positive {
					rating = 5
				}
				require.NoError(t, fs.AppendFeedback(context.Background(), stride.Feedback{
					ID:               fmt.Sprintf("fb%02d", i),
					UserID:           "u1",
					RecommendationID: "r1",
					Rating:           rating,
				}))
			}

			res := rate(t, newLoop(fs, nil, nil), "r1", tt.rating)

			assert.Equal(t, 49, res.Recommendation.FeedbackCount)
			assert.Equal(t, tt.wantRatio, res.Recommendation.PositiveFeedbackRatio)
			assert.Equal(t, 50.0, res.Recommendation.Confidence)
		})
	}
}

func TestFeedback_ConfidenceBounds(t *testing.T) {
	tests := []struct {
		name   string
		start  float64
		rating int
		want   float64
	}{
		{"boost capped at 100", 98, 5, 100},
		{"penalty floored at 10", 15, 1, 10},
		{"already below floor", 8, 1, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStore()
			seedRecommendation(fs, "r1", tt.start, eveningStrength)
			res := rate(t, newLoop(fs, nil, nil), "r1", tt.rating)
			assert.Equal(t, tt.want, res.Recommendation.Confidence)
		})
	}
}

func TestFeedback_ZeroFloorAndBoost(t *testing.T) {
	tu := stride.DefaultTuning()
	tu.ConfidenceFloor = 0
	tu.ConfidenceBoost = 0

	fs := newFakeStore()
	seedRecommendation(fs, "r1", 6, eveningStrength)
	loop := stride.NewFeedbackLoop(fs, fs, fs, tu, nil, nil)
	assert.Equal(t, 0.0, rate(t, loop, "r1", 1).Recommendation.Confidence)

	fs = newFakeStore()
	seedRecommendation(fs, "r1", 60, eveningStrength)
	loop = stride.NewFeedbackLoop(fs, fs, fs, tu, nil, nil)
	assert.Equal(t, 60.0, rate(t, loop, "r1", 5).Recommendation.Confidence)
}

func TestFeedback_InvalidRating(t *testing.T) {
	fs := newFakeStore()
	seedRecommendation(fs, "r1", 60, eveningStrength)
	loop := newLoop(fs, nil, nil)

	for _, rating := range []int{0, 6, -1} {
		_, err := loop.Submit(context.Background(), stride.FeedbackInput{UserID: "u1", RecommendationID: "r1", Rating: rating})
		assert.ErrorIs(t, err, stride.ErrInvalidRating, "rating %d", rating)
	}
	assert.Zero(t, fs.callCount("AppendFeedback"))
}

func TestFeedback_InvalidInput(t *testing.T) {
	fs := newFakeStore()
	seedRecommendation(fs, "r1", 60, eveningStrength)
	loop := newLoop(fs, nil, nil)

	tests := []struct {
		name  string
		in    stride.FeedbackInput
		field string
	}{
		{"missing user", stride.FeedbackInput{RecommendationID: "r1", Rating: 4}, "FeedbackInput.UserID"},
		{"missing recommendation", stride.FeedbackInput{UserID: "u1", Rating: 4}, "FeedbackInput.RecommendationID"},
		{"text too long", stride.FeedbackInput{UserID: "u1", RecommendationID: "r1", Rating: 4, Text: strings.Repeat("x", 2001)}, "FeedbackInput.Text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loop.Submit(context.Background(), tt.in)
			var ve *stride.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestFeedback_ForeignOrUnknownRecommendation(t *testing.T) {
	fs := newFakeStore()
	seedRecommendation(fs, "r1", 60, eveningStrength)
	loop := newLoop(fs, nil, nil)

	_, err := loop.Submit(context.Background(), stride.FeedbackInput{UserID: "u2", RecommendationID: "r1", Rating: 5})
	assert.ErrorIs(t, err, stride.ErrNotFound)

	_, err = loop.Submit(context.Background(), stride.FeedbackInput{UserID: "u1", RecommendationID: "missing", Rating: 5})
	assert.ErrorIs(t, err, stride.ErrNotFound)

	assert.Zero(t, fs.callCount("AppendFeedback"))
}

func TestFeedback_AppendFailure(t *testing.T) {
	fs := newFakeStore()
	seedRecommendation(fs, "r1", 60, eveningStrength)
	fs.fail("AppendFeedback", "")

	_, err := newLoop(fs, nil, nil).Submit(context.Background(), stride.FeedbackInput{UserID: "u1", RecommendationID: "r1", Rating: 5})
	require.ErrorIs(t, err, stride.ErrPersistence)
	assert.Equal(t, 60.0, fs.recommendation("r1").Confidence)
	assert.Zero(t, fs.callCount("UpdateRecommendation"))
}

func TestFeedback_ReinforcementFailureIsIsolated(t *testing.T) {
	fs := newFakeStore()
	seedRecommendation(fs, "r1", 60, eveningStrength)
	fs.fail("AdjustPreference", "u1")
	logger, logs := logging.NewObserved()
	loop := newLoop(fs, logger, nil)

	res, err := loop.Submit(context.Background(), stride.FeedbackInput{UserID: "u1", RecommendationID: "r1", Rating: 5})
	require.NoError(t, err)
	assert.Empty(t, res.Preferences)
	assert.Equal(t, 65.0, fs.recommendation("r1").Confidence)
	assert.Equal(t, 1, fs.recommendation("r1").FeedbackCount)
	assert.Equal(t, 3, fs.callCount("AdjustPreference"), "every attribute is attempted")

	warns := logs.FilterLevelExact(zapcore.WarnLevel).FilterMessage("preference reinforcement incomplete")
	require.Equal(t, 1, warns.Len())
	assert.Equal(t, "u1", warns.All()[0].ContextMap()["user_id"])

	// Retrying once the store recovers applies the delta.
	fs.mu.Lock()
	delete(fs.errs, "AdjustPreference:u1")
	fs.mu.Unlock()

	prefs, err := loop.ReinforcePreferences(context.Background(), "u1", eveningStrength, 5)
	require.NoError(t, err)
	assert.Len(t, prefs, 3)
	for _, p := range prefs {
		assert.Equal(t, 55.0, p.Strength)
	}
}

func TestFeedback_ReinforcementIsMonotonicAndClamped(t *testing.T) {
	fs := newFakeStore()
	seedRecommendation(fs, "r1", 60, stride.WorkoutData{WorkoutType: "yoga"})
	loop := newLoop(fs, nil, nil)

	last := 0.0
	for range 15 {
		rate(t, loop, "r1", 5)
		p, ok := fs.preference("u1", stride.PreferenceExerciseType, "yoga")
		require.True(t, ok)
		assert.GreaterOrEqual(t, p.Strength, last)
		last = p.Strength
	}
	assert.Equal(t, 100.0, last)
}

func TestFeedback_NegativeClampsAtZero(t *testing.T) {
	fs := newFakeStore()
	fs.putPreference(stride.Preference{UserID: "u1", Type: stride.PreferenceRecoveryNeed, Value: stride.RecoveryRest, Strength: 3})
	loop := newLoop(fs, nil, nil)

	prefs, err := loop.ReinforcePreferences(context.Background(), "u1", stride.RecoveryData{RecoveryType: stride.RecoveryRest}, 1)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Zero(t, prefs[0].Strength)
}

func TestFeedback_PlanHasNoSalientAttributes(t *testing.T) {
	fs := newFakeStore()
	seedRecommendation(fs, "r1", 60, stride.PlanData{TrainingDays: 3})

	res := rate(t, newLoop(fs, nil, nil), "r1", 5)
	assert.Empty(t, res.Preferences)
	assert.Zero(t, fs.callCount("AdjustPreference"))
}

func TestSentiment(t *testing.T) {
	assert.Equal(t, stride.SentimentNegative, stride.Sentiment(1))
	assert.Equal(t, stride.SentimentNegative, stride.Sentiment(2))
	assert.Equal(t, stride.SentimentNeutral, stride.Sentiment(3))
	assert.Equal(t, stride.SentimentPositive, stride.Sentiment(4))
	assert.Equal(t, stride.SentimentPositive, stride.Sentiment(5))
}
