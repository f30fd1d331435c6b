package stride

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// PatternData is the closed set of pattern payloads. Each variant belongs to
// exactly one PatternType.
type PatternData interface {
	PatternType() PatternType
}

// Share is one bucket of a distribution.
type Share struct {
	Value      string  `json:"value"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// WorkoutPreferenceData ranks workout types by share of recent workouts.
// Preferences are sorted by count descending, ties by value.
type WorkoutPreferenceData struct {
	Preferences []Share `json:"preferences"`
	SampleSize  int     `json:"sample_size"`
}

func (WorkoutPreferenceData) PatternType() PatternType { return PatternWorkoutPreference }

// Top returns the highest-share workout type.
func (d WorkoutPreferenceData) Top() (Share, bool) {
	if len(d.Preferences) == 0 {
		return Share{}, false
	}
	return d.Preferences[0], true
}

// TimingData holds day-part and weekday distributions plus training frequency.
type TimingData struct {
	DayParts         []Share `json:"day_parts"`
	Weekdays         []Share `json:"weekdays"`
	PreferredDayPart DayPart `json:"preferred_day_part"`
	PreferredWeekday string  `json:"preferred_weekday"`
	WeeklyFrequency  float64 `json:"weekly_frequency"`
	AverageGapDays   float64 `json:"average_gap_days"`
	SampleSize       int     `json:"sample_size"`
}

func (TimingData) PatternType() PatternType { return PatternTiming }

// TopDayPart returns the highest-share day part.
func (d TimingData) TopDayPart() (Share, bool) {
	if len(d.DayParts) == 0 {
		return Share{}, false
	}
	return d.DayParts[0], true
}

// TopWeekday returns the highest-share weekday.
func (d TimingData) TopWeekday() (Share, bool) {
	if len(d.Weekdays) == 0 {
		return Share{}, false
	}
	return d.Weekdays[0], true
}

// IntensityStats are the averaged outcomes of one intensity level.
type IntensityStats struct {
	Level            IntensityLevel `json:"level"`
	Samples          int            `json:"samples"`
	AvgPerformance   float64        `json:"avg_performance"`
	AvgRecoveryHours float64        `json:"avg_recovery_hours"`
	AvgMoodImpact    float64        `json:"avg_mood_impact"`
	WeightedScore    float64        `json:"weighted_score"`
}

// Optimal-intensity selection methods.
const (
	MethodWeightedScore       = "weighted_score"
	MethodPerformanceFallback = "performance_fallback"
)

// IntensityResponseData summarizes how a user responds to each intensity level.
type IntensityResponseData struct {
	Levels           []IntensityStats `json:"levels"`
	OptimalIntensity IntensityLevel   `json:"optimal_intensity"`
	Method           string           `json:"method"`
	SampleSize       int              `json:"sample_size"`
}

func (IntensityResponseData) PatternType() PatternType { return PatternIntensityResponse }

// Optimal returns the stats of the optimal level.
func (d IntensityResponseData) Optimal() (IntensityStats, bool) {
	for _, l := range d.Levels {
		if l.Level == d.OptimalIntensity {
			return l, true
		}
	}
	return IntensityStats{}, false
}

// ProgressionStatus classifies an exercise's weekly volume trend.
type ProgressionStatus string

const (
	StatusProgressing ProgressionStatus = "progressing"
	StatusStagnant    ProgressionStatus = "stagnant"
	StatusRegressing  ProgressionStatus = "regressing"
)

// ExerciseProgress is the volume trend of one exercise.
type ExerciseProgress struct {
	Exercise            string            `json:"exercise"`
	Sessions            int               `json:"sessions"`
	FirstVolume         float64           `json:"first_volume"`
	LastVolume          float64           `json:"last_volume"`
	WeeklyRate          float64           `json:"weekly_rate"`
	Status              ProgressionStatus `json:"status"`
	LastProgressionDate *time.Time        `json:"last_progression_date,omitempty"`
}

// ProgressionData lists the trend of every qualifying exercise, sorted by name.
type ProgressionData struct {
	Exercises   []ExerciseProgress `json:"exercises"`
	Progressing int                `json:"progressing"`
	Stagnant    int                `json:"stagnant"`
	Regressing  int                `json:"regressing"`
}

func (ProgressionData) PatternType() PatternType { return PatternProgression }

// StagnationData lists stagnant or regressing exercises, slowest first.
type StagnationData struct {
	Exercises []ExerciseProgress `json:"exercises"`
}

func (StagnationData) PatternType() PatternType { return PatternStagnation }

// MoodImpact is the mood shift around one workout type.
type MoodImpact struct {
	WorkoutType string  `json:"workout_type"`
	Pairs       int     `json:"pairs"`
	AvgBefore   float64 `json:"avg_before"`
	AvgAfter    float64 `json:"avg_after"`
	MoodChange  float64 `json:"mood_change"`
}

// MoodCorrelationData relates workout types to mood changes.
type MoodCorrelationData struct {
	ByType      []MoodImpact `json:"by_type"`
	BestType    string       `json:"best_type"`
	BestChange  float64      `json:"best_change"`
	WorstType   string       `json:"worst_type"`
	WorstChange float64      `json:"worst_change"`
	SampleSize  int          `json:"sample_size"`
}

func (MoodCorrelationData) PatternType() PatternType { return PatternMoodCorrelation }

// RecoveryStatus classifies recent wearable recovery markers.
type RecoveryStatus string

const (
	RecoveryWell     RecoveryStatus = "well_recovered"
	RecoveryAdequate RecoveryStatus = "adequate"
	RecoveryStrained RecoveryStatus = "strained"
)

// RecoveryPatternData summarizes recent sleep and heart-rate markers.
type RecoveryPatternData struct {
	AvgSleepMinutes     float64        `json:"avg_sleep_minutes"`
	AvgRestingHeartRate float64        `json:"avg_resting_heart_rate"`
	AvgHRV              float64        `json:"avg_hrv"`
	RestingHRTrend      float64        `json:"resting_hr_trend"`
	Status              RecoveryStatus `json:"recovery_status"`
	SampleSize          int            `json:"sample_size"`
}

func (RecoveryPatternData) PatternType() PatternType { return PatternRecovery }

// DecodePatternData decodes a stored payload into the variant for t.
func DecodePatternData(t PatternType, raw []byte) (PatternData, error) {
	var (
		data PatternData
		err  error
	)
	switch t {
	case PatternWorkoutPreference:
		var d WorkoutPreferenceData
		err = json.Unmarshal(raw, &d)
		data = d
	case PatternTiming:
		var d TimingData
		err = json.Unmarshal(raw, &d)
		data = d
	case PatternIntensityResponse:
		var d IntensityResponseData
		err = json.Unmarshal(raw, &d)
		data = d
	case PatternProgression:
		var d ProgressionData
		err = json.Unmarshal(raw, &d)
		data = d
	case PatternStagnation:
		var d StagnationData
		err = json.Unmarshal(raw, &d)
		data = d
	case PatternMoodCorrelation:
		var d MoodCorrelationData
		err = json.Unmarshal(raw, &d)
		data = d
	case PatternRecovery:
		var d RecoveryPatternData
		err = json.Unmarshal(raw, &d)
		data = d
	default:
		return nil, fmt.Errorf("decode pattern data: unknown pattern type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s data: %w", t, err)
	}
	return data, nil
}

// UnmarshalJSON decodes Data according to the pattern type.
func (p *Pattern) UnmarshalJSON(b []byte) error {
	type plain Pattern
	var aux struct {
		plain
		Data json.RawMessage `json:"pattern_data"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*p = Pattern(aux.plain)
	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		p.Data = nil
		return nil
	}
	data, err := DecodePatternData(p.Type, aux.Data)
	if err != nil {
		return err
	}
	p.Data = data
	return nil
}

// RecommendationData is the closed set of recommendation payloads.
type RecommendationData interface {
	RecommendationType() RecommendationType
	// Salient returns the attributes reinforced by feedback on the recommendation.
	Salient() []SalientAttribute
}

// SalientAttribute is one preference axis a recommendation speaks to.
type SalientAttribute struct {
	Type  PreferenceType
	Value string
}

// WorkoutData suggests a concrete session.
type WorkoutData struct {
	WorkoutType     string         `json:"workout_type,omitempty"`
	Intensity       IntensityLevel `json:"intensity,omitempty"`
	DurationMinutes int            `json:"duration_minutes,omitempty"`
	TimeOfDay       DayPart        `json:"time_of_day,omitempty"`
	ReadinessScore  *float64       `json:"readiness_score,omitempty"`
	PeerCount       int            `json:"peer_count,omitempty"`
	PopularityRatio float64        `json:"popularity_ratio,omitempty"`
}

func (WorkoutData) RecommendationType() RecommendationType { return RecommendationWorkout }

func (d WorkoutData) Salient() []SalientAttribute {
	var attrs []SalientAttribute
	if d.WorkoutType != "" {
		attrs = append(attrs, SalientAttribute{PreferenceExerciseType, d.WorkoutType})
	}
	if d.Intensity != "" {
		attrs = append(attrs, SalientAttribute{PreferenceIntensityLevel, string(d.Intensity)})
	}
	if d.TimeOfDay != "" {
		attrs = append(attrs, SalientAttribute{PreferenceTimeOfDay, string(d.TimeOfDay)})
	}
	return attrs
}

// Habit kinds.
const (
	HabitSchedule    = "schedule"
	HabitFrequency   = "frequency"
	HabitSleep       = "sleep"
	HabitMoodBooster = "mood_booster"
)

// HabitData suggests a behavior change.
type HabitData struct {
	Habit            string   `json:"habit"`
	TimeOfDay        DayPart  `json:"time_of_day,omitempty"`
	Window           string   `json:"window,omitempty"`
	CurrentFrequency float64  `json:"current_frequency,omitempty"`
	TargetFrequency  float64  `json:"target_frequency,omitempty"`
	WorkoutType      string   `json:"workout_type,omitempty"`
	Tips             []string `json:"tips,omitempty"`
}

func (HabitData) RecommendationType() RecommendationType { return RecommendationHabit }

func (d HabitData) Salient() []SalientAttribute {
	var attrs []SalientAttribute
	if d.TimeOfDay != "" {
		attrs = append(attrs, SalientAttribute{PreferenceTimeOfDay, string(d.TimeOfDay)})
	}
	if d.WorkoutType != "" {
		attrs = append(attrs, SalientAttribute{PreferenceExerciseType, d.WorkoutType})
	}
	return attrs
}

// Recovery kinds.
const (
	RecoveryRestDays = "rest_days"
	RecoveryRest     = "rest"
	RecoveryDeload   = "deload"
	RecoveryActive   = "active_recovery"
)

// RecoveryData suggests rest or lighter training.
type RecoveryData struct {
	RecoveryType     string   `json:"recovery_type"`
	ReadinessScore   *float64 `json:"readiness_score,omitempty"`
	CurrentFrequency float64  `json:"current_frequency,omitempty"`
	Tips             []string `json:"tips,omitempty"`
}

func (RecoveryData) RecommendationType() RecommendationType { return RecommendationRecovery }

func (d RecoveryData) Salient() []SalientAttribute {
	if d.RecoveryType == "" {
		return nil
	}
	return []SalientAttribute{{PreferenceRecoveryNeed, d.RecoveryType}}
}

// PlanDay is one day of a weekly plan.
type PlanDay struct {
	Weekday  string  `json:"weekday"`
	Activity string  `json:"activity"`
	Share    float64 `json:"share"`
	Note     string  `json:"note"`
}

// Plan day activities.
const (
	ActivityTrain = "train"
	ActivityRest  = "rest"
)

// PlanData is a seven-day schedule, Monday first.
type PlanData struct {
	Days         []PlanDay `json:"days"`
	TrainingDays int       `json:"training_days"`
}

func (PlanData) RecommendationType() RecommendationType { return RecommendationPlan }

func (PlanData) Salient() []SalientAttribute { return nil }

// ExerciseData suggests a change to one exercise.
type ExerciseData struct {
	Exercise    string            `json:"exercise"`
	MuscleGroup string            `json:"muscle_group"`
	Status      ProgressionStatus `json:"status"`
	WeeklyRate  float64           `json:"weekly_rate"`
	Suggestion  string            `json:"suggestion"`
}

func (ExerciseData) RecommendationType() RecommendationType { return RecommendationExercise }

func (d ExerciseData) Salient() []SalientAttribute {
	if d.Suggestion != RecoveryDeload {
		return nil
	}
	return []SalientAttribute{{PreferenceRecoveryNeed, RecoveryDeload}}
}

// DecodeRecommendationData decodes a stored payload into the variant for t.
// Nutrition recommendations carry no payload.
func DecodeRecommendationData(t RecommendationType, raw []byte) (RecommendationData, error) {
	var (
		data RecommendationData
		err  error
	)
	switch t {
	case RecommendationWorkout:
		var d WorkoutData
		err = json.Unmarshal(raw, &d)
		data = d
	case RecommendationHabit:
		var d HabitData
		err = json.Unmarshal(raw, &d)
		data = d
	case RecommendationRecovery:
		var d RecoveryData
		err = json.Unmarshal(raw, &d)
		data = d
	case RecommendationPlan:
		var d PlanData
		err = json.Unmarshal(raw, &d)
		data = d
	case RecommendationExercise:
		var d ExerciseData
		err = json.Unmarshal(raw, &d)
		data = d
	case RecommendationNutrition:
		return nil, nil
	default:
		return nil, fmt.Errorf("decode recommendation data: unknown type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s data: %w", t, err)
	}
	return data, nil
}

// UnmarshalJSON decodes Data according to the recommendation type.
func (r *Recommendation) UnmarshalJSON(b []byte) error {
	type plain Recommendation
	var aux struct {
		plain
		Data json.RawMessage `json:"recommendation_data"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Recommendation(aux.plain)
	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		r.Data = nil
		return nil
	}
	data, err := DecodeRecommendationData(r.Type, aux.Data)
	if err != nil {
		return err
	}
	r.Data = data
	return nil
}

func encodeData(v any) (string, error) {
	if v == nil {
		return "null", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
