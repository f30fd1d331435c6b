package stride

import "time"

// PatternType names the behavioral axis a Pattern summarizes.
type PatternType string

const (
	PatternWorkoutPreference PatternType = "workout_preference"
	PatternTiming            PatternType = "timing"
	PatternIntensityResponse PatternType = "intensity_response"
	PatternProgression       PatternType = "progression"
	PatternStagnation        PatternType = "stagnation"
	PatternMoodCorrelation   PatternType = "mood_correlation"
	PatternRecovery          PatternType = "recovery_pattern"
)

// ValidPatternTypes returns all pattern types in extraction order.
func ValidPatternTypes() []PatternType {
	return []PatternType{
		PatternWorkoutPreference,
		PatternTiming,
		PatternIntensityResponse,
		PatternProgression,
		PatternStagnation,
		PatternMoodCorrelation,
		PatternRecovery,
	}
}

// IsValid checks if the pattern type is known.
func (t PatternType) IsValid() bool {
	for _, valid := range ValidPatternTypes() {
		if t == valid {
			return true
		}
	}
	return false
}

// Pattern is the current statistical summary of one user along one axis.
// There is at most one Pattern per (UserID, Type); recomputation replaces it.
type Pattern struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Type        PatternType `json:"pattern_type"`
	Data        PatternData `json:"pattern_data"`
	Confidence  float64     `json:"confidence"`
	LastUpdated time.Time   `json:"last_updated"`
}

// PreferenceType is the axis a learned Preference weighs.
type PreferenceType string

const (
	PreferenceExerciseType   PreferenceType = "exercise_type"
	PreferenceIntensityLevel PreferenceType = "intensity_level"
	PreferenceTimeOfDay      PreferenceType = "time_of_day"
	PreferenceRecoveryNeed   PreferenceType = "recovery_need"
)

// PreferenceKey identifies one (user, type, value) triple.
type PreferenceKey struct {
	UserID string         `json:"user_id"`
	Type   PreferenceType `json:"preference_type"`
	Value  string         `json:"preference_value"`
}

// Preference is a learned weight in [0, 100] for one attribute value.
type Preference struct {
	UserID    string         `json:"user_id"`
	Type      PreferenceType `json:"preference_type"`
	Value     string         `json:"preference_value"`
	Strength  float64        `json:"strength"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Key returns the preference's unique key.
func (p Preference) Key() PreferenceKey {
	return PreferenceKey{UserID: p.UserID, Type: p.Type, Value: p.Value}
}

// RecommendationType classifies a Recommendation.
type RecommendationType string

const (
	RecommendationWorkout   RecommendationType = "workout"
	RecommendationNutrition RecommendationType = "nutrition"
	RecommendationRecovery  RecommendationType = "recovery"
	RecommendationHabit     RecommendationType = "habit"
	RecommendationPlan      RecommendationType = "plan"
	RecommendationExercise  RecommendationType = "exercise"
)

// IsValid checks if the recommendation type is known.
func (t RecommendationType) IsValid() bool {
	switch t {
	case RecommendationWorkout, RecommendationNutrition, RecommendationRecovery,
		RecommendationHabit, RecommendationPlan, RecommendationExercise:
		return true
	}
	return false
}

// Recommendation provenance.
const (
	SourcePatterns     = "patterns"
	SourceReadiness    = "readiness"
	SourceSimilarUsers = "similar_users"
)

// Recommendation is a synthesized, explained suggestion. Title, Description,
// Reasoning and Data never change after creation; only the feedback loop
// mutates Confidence, IsActive, FeedbackCount and PositiveFeedbackRatio.
type Recommendation struct {
	ID                    string             `json:"id"`
	UserID                string             `json:"user_id"`
	Title                 string             `json:"title"`
	Description           string             `json:"description"`
	Type                  RecommendationType `json:"recommendation_type"`
	Data                  RecommendationData `json:"recommendation_data"`
	Confidence            float64            `json:"confidence"`
	Reasoning             string             `json:"reasoning"`
	PatternsUsed          []string           `json:"patterns_used"`
	Source                string             `json:"source"`
	IsActive              bool               `json:"is_active"`
	FeedbackCount         int                `json:"feedback_count"`
	PositiveFeedbackRatio float64            `json:"positive_feedback_ratio"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// RecommendationUpdate carries the fields the feedback loop may change.
type RecommendationUpdate struct {
	Confidence            float64
	IsActive              bool
	FeedbackCount         int
	PositiveFeedbackRatio float64
}

// RecommendationFilter narrows GetRecommendations.
type RecommendationFilter struct {
	ActiveOnly bool
	Type       RecommendationType
	Limit      int
}

// Feedback is one immutable rating of a Recommendation.
type Feedback struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RecommendationID string    `json:"recommendation_id"`
	Rating           int       `json:"rating"`
	Text             string    `json:"text,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Rating bounds and the scale's neutral midpoint.
const (
	RatingMin     = 1
	RatingMax     = 5
	RatingNeutral = 3
)

// CommonPattern is a top value shared by enough members of a Cluster.
type CommonPattern struct {
	Type    PatternType `json:"pattern_type"`
	Value   string      `json:"value"`
	Members int         `json:"members"`
	Holders int         `json:"holders"`
	Share   float64     `json:"share"`
}

// Cluster is a point-in-time group of similar users and their shared patterns.
type Cluster struct {
	ID             string          `json:"id"`
	Name           string          `json:"cluster_name"`
	UserIDs        []string        `json:"user_ids"`
	CommonPatterns []CommonPattern `json:"common_patterns"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Workout is one recorded training session.
// Intensity, PerformanceScore, RecoveryHours and MoodImpact are optional.
type Workout struct {
	ID               string         `json:"id" validate:"required"`
	UserID           string         `json:"user_id" validate:"required"`
	Type             string         `json:"type" validate:"required"`
	StartedAt        time.Time      `json:"started_at" validate:"required"`
	DurationMinutes  int            `json:"duration_minutes" validate:"gte=0"`
	Intensity        IntensityLevel `json:"intensity,omitempty"`
	PerformanceScore *float64       `json:"performance_score,omitempty" validate:"omitempty,gte=0,lte=10"`
	RecoveryHours    *float64       `json:"recovery_hours,omitempty" validate:"omitempty,gte=0"`
	MoodImpact       *float64       `json:"mood_impact,omitempty" validate:"omitempty,gte=-5,lte=5"`
}

// ExerciseLog is one weighted exercise performance.
type ExerciseLog struct {
	ID          string    `json:"id" validate:"required"`
	UserID      string    `json:"user_id" validate:"required"`
	WorkoutID   string    `json:"workout_id,omitempty"`
	Exercise    string    `json:"exercise" validate:"required"`
	Weight      float64   `json:"weight" validate:"gte=0"`
	Reps        int       `json:"reps" validate:"gte=0"`
	PerformedAt time.Time `json:"performed_at" validate:"required"`
}

// Volume returns weight × reps.
func (e ExerciseLog) Volume() float64 {
	return e.Weight * float64(e.Reps)
}

// MoodEntry is one self-reported mood score (1-10).
type MoodEntry struct {
	ID       string    `json:"id" validate:"required"`
	UserID   string    `json:"user_id" validate:"required"`
	Score    float64   `json:"score" validate:"gte=1,lte=10"`
	LoggedAt time.Time `json:"logged_at" validate:"required"`
}

// WearableSummary is one day of wearable-device aggregates.
type WearableSummary struct {
	UserID           string    `json:"user_id" validate:"required"`
	Date             time.Time `json:"date" validate:"required"`
	SleepMinutes     float64   `json:"sleep_minutes" validate:"gte=0"`
	RestingHeartRate float64   `json:"resting_heart_rate" validate:"gte=0"`
	HRV              float64   `json:"hrv" validate:"gte=0"`
	Steps            int       `json:"steps" validate:"gte=0"`
}

// Profile holds the externally managed attributes used for peer matching.
type Profile struct {
	UserID string `json:"user_id" validate:"required"`
	Level  string `json:"level,omitempty"`
	Goal   string `json:"goal,omitempty"`
}

// ActivityQuery covers the limit/order/filter arguments of history reads.
type ActivityQuery struct {
	// Limit caps the number of records; 0 means no limit.
	Limit int
	// Newest returns the most recent records first; otherwise oldest first.
	Newest bool
	// Since excludes records before this instant when non-zero.
	Since time.Time
}

// Readiness is the answer of a ReadinessProvider.
type Readiness struct {
	Ready           bool     `json:"ready"`
	RecoveryScore   float64  `json:"recovery_score"`
	Recommendations []string `json:"recommendations,omitempty"`
	// AvgSleepMinutes is the recent average sleep duration, 0 when unknown.
	AvgSleepMinutes float64 `json:"avg_sleep_minutes,omitempty"`
}

// PeerRecommendation is a workout type popular among similar users.
type PeerRecommendation struct {
	WorkoutType     string  `json:"workout_type"`
	PeerCount       int     `json:"peer_count"`
	PopularityRatio float64 `json:"popularity_ratio"`
}

// StoreStats contains statistics about the local store.
type StoreStats struct {
	Users                 int    `json:"users"`
	Workouts              int    `json:"workouts"`
	Patterns              int    `json:"patterns"`
	ActiveRecommendations int    `json:"active_recommendations"`
	Feedback              int    `json:"feedback"`
	Preferences           int    `json:"preferences"`
	Clusters              int    `json:"clusters"`
	SchemaVersion         string `json:"schema_version"`
}
