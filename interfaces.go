package stride

import "context"

// ActivitySource reads a user's time-stamped activity history.
type ActivitySource interface {
	Workouts(ctx context.Context, userID string, q ActivityQuery) ([]Workout, error)
	ExerciseLogs(ctx context.Context, userID string, q ActivityQuery) ([]ExerciseLog, error)
	Moods(ctx context.Context, userID string, q ActivityQuery) ([]MoodEntry, error)
	// WearableSummaries returns up to limit summaries, most recent first.
	WearableSummaries(ctx context.Context, userID string, limit int) ([]WearableSummary, error)
}

// ProfileSource reads externally managed profile attributes.
// A user without a profile yields ErrNotFound.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (Profile, error)
}

// FeedbackLog is the append-only feedback history.
type FeedbackLog interface {
	AppendFeedback(ctx context.Context, fb Feedback) error
	// FeedbackFor returns every rating of one recommendation, oldest first.
	FeedbackFor(ctx context.Context, recommendationID string) ([]Feedback, error)
}

// ReadinessProvider is an optional training-readiness signal.
type ReadinessProvider interface {
	IsReadyToTrain(ctx context.Context, userID string) (Readiness, error)
}

// PatternStore persists the current Pattern per (user, pattern type).
type PatternStore interface {
	// UpsertPattern atomically replaces the user's pattern of p.Type and
	// returns the stored row. The pattern id is stable across replacements.
	UpsertPattern(ctx context.Context, p Pattern) (Pattern, error)
	// Patterns returns the user's patterns, all types when types is empty.
	Patterns(ctx context.Context, userID string, types ...PatternType) ([]Pattern, error)
	// PatternUsers lists every user holding at least one pattern.
	PatternUsers(ctx context.Context) ([]string, error)
}

// PreferenceStore persists learned preference weights.
type PreferenceStore interface {
	// AdjustPreference adds delta to the strength of key, creating it at
	// initial+delta when absent. Strength stays within [0, 100].
	AdjustPreference(ctx context.Context, key PreferenceKey, delta, initial float64) (Preference, error)
	Preferences(ctx context.Context, userID string) ([]Preference, error)
}

// RecommendationStore persists recommendations.
type RecommendationStore interface {
	// InsertRecommendations stores every recommendation or none of them.
	InsertRecommendations(ctx context.Context, recs []Recommendation) error
	Recommendation(ctx context.Context, id string) (Recommendation, error)
	UpdateRecommendation(ctx context.Context, id string, u RecommendationUpdate) error
	Recommendations(ctx context.Context, userID string, f RecommendationFilter) ([]Recommendation, error)
}

// ClusterStore persists cluster snapshots keyed by name.
type ClusterStore interface {
	UpsertCluster(ctx context.Context, c Cluster) (Cluster, error)
	Cluster(ctx context.Context, name string) (Cluster, error)
}
