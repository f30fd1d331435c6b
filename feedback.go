package stride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hyperengineering/stride/internal/metrics"
)

// FeedbackInput is one rating submitted for a recommendation.
type FeedbackInput struct {
	UserID           string `json:"user_id" validate:"required"`
	RecommendationID string `json:"recommendation_id" validate:"required"`
	Rating           int    `json:"rating"`
	Text             string `json:"text,omitempty" validate:"max=2000"`
}

// FeedbackResult is the state after a rating was applied.
type FeedbackResult struct {
	Feedback       Feedback       `json:"feedback"`
	Recommendation Recommendation `json:"recommendation"`
	// Preferences holds every preference the rating reinforced. Reinforcement
	// is best effort: preferences whose write failed are absent.
	Preferences []Preference `json:"preferences,omitempty"`
}

// Feedback sentiments.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// positiveRating is the lowest rating counted as positive.
const positiveRating = 4

// Sentiment classifies a rating.
func Sentiment(rating int) string {
	switch {
	case rating >= positiveRating:
		return SentimentPositive
	case rating == RatingNeutral:
		return SentimentNeutral
	default:
		return SentimentNegative
	}
}

// FeedbackLoop applies ratings to recommendations and reinforces the
// preferences behind them.
type FeedbackLoop struct {
	recs    RecommendationStore
	log     FeedbackLog
	prefs   PreferenceStore
	tuning  Tuning
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewFeedbackLoop creates a feedback loop. logger and m may be nil.
func NewFeedbackLoop(recs RecommendationStore, log FeedbackLog, prefs PreferenceStore, t Tuning, logger *zap.Logger, m *metrics.Metrics) *FeedbackLoop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackLoop{
		recs:    recs,
		log:     log,
		prefs:   prefs,
		tuning:  t.WithDefaults(),
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Submit records a rating, recomputes the recommendation's aggregate
// statistics from its full feedback history, adjusts its confidence, retires
// it on a low rating and reinforces the preferences it speaks to.
//
// The recommendation must belong to in.UserID, otherwise ErrNotFound is
// returned. Once the rating and the recommendation update are stored, a
// failed preference write is logged and never returned; call
// ReinforcePreferences to retry it.
func (l *FeedbackLoop) Submit(ctx context.Context, in FeedbackInput) (*FeedbackResult, error) {
	if in.Rating < RatingMin || in.Rating > RatingMax {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRating, in.Rating)
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	rec, err := l.recs.Recommendation(ctx, in.RecommendationID)
	if err != nil {
		return nil, fmt.Errorf("recommendation %s: %w", in.RecommendationID, err)
	}
	if rec.UserID != in.UserID {
		return nil, fmt.Errorf("recommendation %s: %w", in.RecommendationID, ErrNotFound)
	}

	fb := Feedback{
		ID:               ulid.Make().String(),
		UserID:           in.UserID,
		RecommendationID: in.RecommendationID,
		Rating:           in.Rating,
		Text:             in.Text,
		CreatedAt:        l.now().UTC(),
	}
	if err := l.log.AppendFeedback(ctx, fb); err != nil {
		return nil, persistence("append feedback", err)
	}
	l.metrics.ObserveFeedback(Sentiment(in.Rating))

	history, err := l.log.FeedbackFor(ctx, rec.ID)
	if err != nil {
		return nil, upstream("feedback history", in.UserID, err)
	}
	update := l.aggregate(rec, history, in.Rating)
	if err := l.recs.UpdateRecommendation(ctx, rec.ID, update); err != nil {
		return nil, persistence("update recommendation", err)
	}
	rec.Confidence = update.Confidence
	rec.IsActive = update.IsActive
	rec.FeedbackCount = update.FeedbackCount
	rec.PositiveFeedbackRatio = update.PositiveFeedbackRatio

	logger := l.logger.With(zap.String("user_id", in.UserID), zap.String("recommendation_id", rec.ID))
	logger.Debug("feedback applied",
		zap.Int("rating", in.Rating),
		zap.Int("feedback_count", update.FeedbackCount),
		zap.Float64("positive_ratio", update.PositiveFeedbackRatio),
		zap.Float64("confidence", update.Confidence),
		zap.Bool("active", update.IsActive),
	)

	prefs, err := l.ReinforcePreferences(ctx, in.UserID, rec.Data, in.Rating)
	if err != nil {
		logger.Warn("preference reinforcement incomplete", zap.Error(err))
	}

	return &FeedbackResult{Feedback: fb, Recommendation: rec, Preferences: prefs}, nil
}

// aggregate derives the recommendation update from the complete history.
// The same history always yields the same counts and ratio.
func (l *FeedbackLoop) aggregate(rec Recommendation, history []Feedback, rating int) RecommendationUpdate {
	positive := 0
	for _, fb := range history {
		if fb.Rating >= positiveRating {
			positive++
		}
	}
	// Thresholds compare against the exact ratio; only the stored value is rounded.
	var ratio float64
	if len(history) > 0 {
		ratio = float64(positive) / float64(len(history))
	}

	conf := rec.Confidence
	switch {
	case len(history) == 0:
	case ratio >= l.tuning.PositiveRatioBoost:
		conf = min(conf+l.tuning.ConfidenceBoost, 100)
	case ratio <= l.tuning.NegativeRatioPenalty && conf > l.tuning.ConfidenceFloor:
		conf = max(conf-l.tuning.ConfidencePenalty, l.tuning.ConfidenceFloor)
	}

	return RecommendationUpdate{
		Confidence:            round2(conf),
		IsActive:              rec.IsActive && rating >= l.tuning.RetireBelowRating,
		FeedbackCount:         len(history),
		PositiveFeedbackRatio: round2(ratio),
	}
}

// ReinforcePreferences nudges every salient attribute of data by
// +PreferenceDelta for a positive rating or -PreferenceDelta for a negative
// one. A neutral rating changes nothing. Each write is an upsert by key, so
// the call is safe to repeat after a failure; it attempts every attribute
// and returns the preferences it wrote together with the joined errors.
func (l *FeedbackLoop) ReinforcePreferences(ctx context.Context, userID string, data RecommendationData, rating int) ([]Preference, error) {
	if data == nil || rating == RatingNeutral {
		return nil, nil
	}
	delta := l.tuning.PreferenceDelta
	if rating < RatingNeutral {
		delta = -delta
	}

	var (
		out  []Preference
		errs []error
	)
	for _, attr := range data.Salient() {
		key := PreferenceKey{UserID: userID, Type: attr.Type, Value: attr.Value}
		p, err := l.prefs.AdjustPreference(ctx, key, delta, l.tuning.PreferenceInitial)
		if err != nil {
			errs = append(errs, persistence(fmt.Sprintf("preference %s=%s", attr.Type, attr.Value), err))
			continue
		}
		out = append(out, p)
	}
	return out, errors.Join(errs...)
}
