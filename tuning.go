package stride

import "fmt"

// Tuning holds every hand-tuned heuristic of the engine. The defaults are
// empirical; override them rather than re-deriving them. Only the zero Tuning
// means "use the defaults": to change a few fields start from DefaultTuning,
// so any field, including one set to 0, is taken as given.
type Tuning struct {
	// Extraction.
	PreferenceWindow int `koanf:"preference_window" json:"preference_window"`
	// HistoryLimit caps how many recent records the other extractors read.
	HistoryLimit int `koanf:"history_limit" json:"history_limit"`
	MinSamples   int `koanf:"min_samples" json:"min_samples"`

	PreferenceConfidencePerSample  float64 `koanf:"preference_confidence_per_sample" json:"preference_confidence_per_sample"`
	PreferenceConfidenceCap        float64 `koanf:"preference_confidence_cap" json:"preference_confidence_cap"`
	TimingConfidencePerSample      float64 `koanf:"timing_confidence_per_sample" json:"timing_confidence_per_sample"`
	TimingConfidenceCap            float64 `koanf:"timing_confidence_cap" json:"timing_confidence_cap"`
	IntensityConfidencePerSample   float64 `koanf:"intensity_confidence_per_sample" json:"intensity_confidence_per_sample"`
	IntensityConfidenceCap         float64 `koanf:"intensity_confidence_cap" json:"intensity_confidence_cap"`
	ProgressionConfidencePerSample float64 `koanf:"progression_confidence_per_sample" json:"progression_confidence_per_sample"`
	ProgressionConfidenceCap       float64 `koanf:"progression_confidence_cap" json:"progression_confidence_cap"`
	MoodConfidencePerSample        float64 `koanf:"mood_confidence_per_sample" json:"mood_confidence_per_sample"`
	MoodConfidenceCap              float64 `koanf:"mood_confidence_cap" json:"mood_confidence_cap"`
	RecoveryConfidencePerSample    float64 `koanf:"recovery_confidence_per_sample" json:"recovery_confidence_per_sample"`
	RecoveryConfidenceCap          float64 `koanf:"recovery_confidence_cap" json:"recovery_confidence_cap"`

	IntensityPerformanceWeight float64 `koanf:"intensity_performance_weight" json:"intensity_performance_weight"`
	IntensityRecoveryWeight    float64 `koanf:"intensity_recovery_weight" json:"intensity_recovery_weight"`
	IntensityMoodWeight        float64 `koanf:"intensity_mood_weight" json:"intensity_mood_weight"`

	// ProgressionRateThreshold is the weekly percent change separating
	// progressing and regressing from stagnant.
	ProgressionRateThreshold float64 `koanf:"progression_rate_threshold" json:"progression_rate_threshold"`
	RecoveryWindow           int     `koanf:"recovery_window" json:"recovery_window"`
	// Strain markers: average sleep below StrainedSleepMinutes or a resting
	// heart rate climbing by more than StrainedHRTrend beats between the two
	// halves of the recovery window.
	StrainedSleepMinutes float64 `koanf:"strained_sleep_minutes" json:"strained_sleep_minutes"`
	StrainedHRTrend      float64 `koanf:"strained_hr_trend" json:"strained_hr_trend"`

	// Synthesis.
	DayPartShareThreshold    float64 `koanf:"day_part_share_threshold" json:"day_part_share_threshold"`
	WeekdayShareThreshold    float64 `koanf:"weekday_share_threshold" json:"weekday_share_threshold"`
	MinWeeklyFrequency       float64 `koanf:"min_weekly_frequency" json:"min_weekly_frequency"`
	MaxWeeklyFrequency       float64 `koanf:"max_weekly_frequency" json:"max_weekly_frequency"`
	TargetWeeklyFrequency    float64 `koanf:"target_weekly_frequency" json:"target_weekly_frequency"`
	CombinedConfidenceFactor float64 `koanf:"combined_confidence_factor" json:"combined_confidence_factor"`
	SleepMinutesThreshold    float64 `koanf:"sleep_minutes_threshold" json:"sleep_minutes_threshold"`
	SleepHabitConfidence     float64 `koanf:"sleep_habit_confidence" json:"sleep_habit_confidence"`
	PeerConfidenceCap        float64 `koanf:"peer_confidence_cap" json:"peer_confidence_cap"`
	MaxStagnationRecs        int     `koanf:"max_stagnation_recs" json:"max_stagnation_recs"`
	// Readiness score bands: high intensity at or above HighIntensityReadiness,
	// full rest below RestBelowReadiness.
	HighIntensityReadiness float64 `koanf:"high_intensity_readiness" json:"high_intensity_readiness"`
	RestBelowReadiness     float64 `koanf:"rest_below_readiness" json:"rest_below_readiness"`

	// Wearable readiness.
	ReadinessDays        int     `koanf:"readiness_days" json:"readiness_days"`
	ReadinessSleepTarget float64 `koanf:"readiness_sleep_target" json:"readiness_sleep_target"` // minutes for a full sleep score
	ReadinessHRVTarget   float64 `koanf:"readiness_hrv_target" json:"readiness_hrv_target"`     // ms for a full HRV score
	ReadinessSleepWeight float64 `koanf:"readiness_sleep_weight" json:"readiness_sleep_weight"`
	ReadinessHRVWeight   float64 `koanf:"readiness_hrv_weight" json:"readiness_hrv_weight"`
	ReadinessThreshold   float64 `koanf:"readiness_threshold" json:"readiness_threshold"`

	// Feedback.
	PositiveRatioBoost   float64 `koanf:"positive_ratio_boost" json:"positive_ratio_boost"`
	NegativeRatioPenalty float64 `koanf:"negative_ratio_penalty" json:"negative_ratio_penalty"`
	ConfidenceBoost      float64 `koanf:"confidence_boost" json:"confidence_boost"`
	ConfidencePenalty    float64 `koanf:"confidence_penalty" json:"confidence_penalty"`
	ConfidenceFloor      float64 `koanf:"confidence_floor" json:"confidence_floor"`
	RetireBelowRating    int     `koanf:"retire_below_rating" json:"retire_below_rating"`
	PreferenceDelta      float64 `koanf:"preference_delta" json:"preference_delta"`
	PreferenceInitial    float64 `koanf:"preference_initial" json:"preference_initial"`

	// Similarity.
	SimilarityPatternWeight    float64 `koanf:"similarity_pattern_weight" json:"similarity_pattern_weight"`
	SimilarityProfileWeight    float64 `koanf:"similarity_profile_weight" json:"similarity_profile_weight"`
	SimilarityPreferenceWeight float64 `koanf:"similarity_preference_weight" json:"similarity_preference_weight"`
	// Pattern component terms, each earned when both users hold the pattern.
	SimilarityTopTypeTerm        float64 `koanf:"similarity_top_type_term" json:"similarity_top_type_term"`
	SimilarityDayPartTerm        float64 `koanf:"similarity_day_part_term" json:"similarity_day_part_term"`
	SimilarityFrequencyCloseTerm float64 `koanf:"similarity_frequency_close_term" json:"similarity_frequency_close_term"` // |Δ weekly frequency| <= 1
	SimilarityFrequencyNearTerm  float64 `koanf:"similarity_frequency_near_term" json:"similarity_frequency_near_term"`   // |Δ weekly frequency| <= 2
	SimilarityIntensityTerm      float64 `koanf:"similarity_intensity_term" json:"similarity_intensity_term"`
	SimilarityThreshold        float64 `koanf:"similarity_threshold" json:"similarity_threshold"`
	SimilarityMaxK             int     `koanf:"similarity_max_k" json:"similarity_max_k"`
	CommonPatternShare         float64 `koanf:"common_pattern_share" json:"common_pattern_share"`
}

// DefaultTuning returns the stock heuristics.
func DefaultTuning() Tuning {
	return Tuning{
		PreferenceWindow: 20,
		HistoryLimit:     100,
		MinSamples:       3,

		PreferenceConfidencePerSample:  5,
		PreferenceConfidenceCap:        90,
		TimingConfidencePerSample:      5,
		TimingConfidenceCap:            85,
		IntensityConfidencePerSample:   5,
		IntensityConfidenceCap:         85,
		ProgressionConfidencePerSample: 5,
		ProgressionConfidenceCap:       85,
		MoodConfidencePerSample:        5,
		MoodConfidenceCap:              80,
		RecoveryConfidencePerSample:    5,
		RecoveryConfidenceCap:          80,

		IntensityPerformanceWeight: 0.5,
		IntensityRecoveryWeight:    0.3,
		IntensityMoodWeight:        0.2,

		ProgressionRateThreshold: 1.0,
		RecoveryWindow:           14,
		StrainedSleepMinutes:     360,
		StrainedHRTrend:          3,

		DayPartShareThreshold:    40,
		WeekdayShareThreshold:    30,
		MinWeeklyFrequency:       3,
		MaxWeeklyFrequency:       5,
		TargetWeeklyFrequency:    3,
		CombinedConfidenceFactor: 0.9,
		SleepMinutesThreshold:    420,
		SleepHabitConfidence:     70,
		PeerConfidenceCap:        85,
		MaxStagnationRecs:        3,
		HighIntensityReadiness:   80,
		RestBelowReadiness:       40,

		ReadinessDays:        3,
		ReadinessSleepTarget: 480,
		ReadinessHRVTarget:   80,
		ReadinessSleepWeight: 0.6,
		ReadinessHRVWeight:   0.4,
		ReadinessThreshold:   60,

		PositiveRatioBoost:   0.8,
		NegativeRatioPenalty: 0.2,
		ConfidenceBoost:      5,
		ConfidencePenalty:    10,
		ConfidenceFloor:      10,
		RetireBelowRating:    3,
		PreferenceDelta:      5,
		PreferenceInitial:    50,

		SimilarityPatternWeight:    0.5,
		SimilarityProfileWeight:    0.3,
		SimilarityPreferenceWeight: 0.2,

		SimilarityTopTypeTerm:        0.3,
		SimilarityDayPartTerm:        0.2,
		SimilarityFrequencyCloseTerm: 0.2,
		SimilarityFrequencyNearTerm:  0.1,
		SimilarityIntensityTerm:      0.3,

		SimilarityThreshold:        0.7,
		SimilarityMaxK:             10,
		CommonPatternShare:         0.5,
	}
}

// WithDefaults returns DefaultTuning for the zero Tuning and t otherwise.
func (t Tuning) WithDefaults() Tuning {
	if t == (Tuning{}) {
		return DefaultTuning()
	}
	return t
}

// Validate checks that every heuristic is within its meaningful range.
// Returns *ValidationError naming the first offending field.
func (t Tuning) Validate() error {
	if t.PreferenceWindow < 1 {
		return tuningErr("PreferenceWindow", "must be at least 1")
	}
	if t.HistoryLimit < t.PreferenceWindow {
		return tuningErr("HistoryLimit", "must be at least PreferenceWindow")
	}
	if t.MinSamples < 1 {
		return tuningErr("MinSamples", "must be at least 1")
	}
	if t.RecoveryWindow < t.MinSamples {
		return tuningErr("RecoveryWindow", "must be at least MinSamples")
	}
	caps := []struct {
		name string
		v    float64
	}{
		{"PreferenceConfidenceCap", t.PreferenceConfidenceCap},
		{"TimingConfidenceCap", t.TimingConfidenceCap},
		{"IntensityConfidenceCap", t.IntensityConfidenceCap},
		{"ProgressionConfidenceCap", t.ProgressionConfidenceCap},
		{"MoodConfidenceCap", t.MoodConfidenceCap},
		{"RecoveryConfidenceCap", t.RecoveryConfidenceCap},
		{"PeerConfidenceCap", t.PeerConfidenceCap},
		{"SleepHabitConfidence", t.SleepHabitConfidence},
		{"ConfidenceFloor", t.ConfidenceFloor},
		{"DayPartShareThreshold", t.DayPartShareThreshold},
		{"WeekdayShareThreshold", t.WeekdayShareThreshold},
		{"PreferenceInitial", t.PreferenceInitial},
		{"HighIntensityReadiness", t.HighIntensityReadiness},
		{"RestBelowReadiness", t.RestBelowReadiness},
		{"ReadinessThreshold", t.ReadinessThreshold},
	}
	for _, c := range caps {
		if c.v < 0 || c.v > 100 {
			return tuningErr(c.name, "must be between 0 and 100")
		}
	}
	unit := []struct {
		name string
		v    float64
	}{
		{"CombinedConfidenceFactor", t.CombinedConfidenceFactor},
		{"PositiveRatioBoost", t.PositiveRatioBoost},
		{"NegativeRatioPenalty", t.NegativeRatioPenalty},
		{"SimilarityThreshold", t.SimilarityThreshold},
		{"CommonPatternShare", t.CommonPatternShare},
		{"ReadinessSleepWeight", t.ReadinessSleepWeight},
		{"ReadinessHRVWeight", t.ReadinessHRVWeight},
		{"SimilarityTopTypeTerm", t.SimilarityTopTypeTerm},
		{"SimilarityDayPartTerm", t.SimilarityDayPartTerm},
		{"SimilarityFrequencyCloseTerm", t.SimilarityFrequencyCloseTerm},
		{"SimilarityFrequencyNearTerm", t.SimilarityFrequencyNearTerm},
		{"SimilarityIntensityTerm", t.SimilarityIntensityTerm},
	}
	for _, u := range unit {
		if u.v < 0 || u.v > 1 {
			return tuningErr(u.name, "must be between 0 and 1")
		}
	}
	if t.NegativeRatioPenalty >= t.PositiveRatioBoost {
		return tuningErr("NegativeRatioPenalty", "must be below PositiveRatioBoost")
	}
	if sum := t.SimilarityPatternWeight + t.SimilarityProfileWeight + t.SimilarityPreferenceWeight; sum < 0.999 || sum > 1.001 {
		return tuningErr("SimilarityPatternWeight", fmt.Sprintf("similarity weights must sum to 1, got %.3f", sum))
	}
	if top := t.SimilarityTopTypeTerm + t.SimilarityDayPartTerm + t.SimilarityFrequencyCloseTerm + t.SimilarityIntensityTerm; top > 1.001 {
		return tuningErr("SimilarityTopTypeTerm", fmt.Sprintf("pattern terms must sum to at most 1, got %.3f", top))
	}
	if t.SimilarityFrequencyNearTerm > t.SimilarityFrequencyCloseTerm {
		return tuningErr("SimilarityFrequencyNearTerm", "must not exceed SimilarityFrequencyCloseTerm")
	}
	if sum := t.ReadinessSleepWeight + t.ReadinessHRVWeight; sum < 0.999 || sum > 1.001 {
		return tuningErr("ReadinessSleepWeight", fmt.Sprintf("readiness weights must sum to 1, got %.3f", sum))
	}
	if t.RestBelowReadiness > t.ReadinessThreshold || t.ReadinessThreshold > t.HighIntensityReadiness {
		return tuningErr("ReadinessThreshold", "must lie between RestBelowReadiness and HighIntensityReadiness")
	}
	if t.ReadinessDays < 1 {
		return tuningErr("ReadinessDays", "must be at least 1")
	}
	if t.ReadinessSleepTarget <= 0 || t.ReadinessHRVTarget <= 0 {
		return tuningErr("ReadinessSleepTarget", "readiness targets must be positive")
	}
	if t.StrainedSleepMinutes < 0 || t.StrainedSleepMinutes > t.SleepMinutesThreshold {
		return tuningErr("StrainedSleepMinutes", "must be between 0 and SleepMinutesThreshold")
	}
	if t.MinWeeklyFrequency > t.MaxWeeklyFrequency {
		return tuningErr("MinWeeklyFrequency", "must not exceed MaxWeeklyFrequency")
	}
	if t.TargetWeeklyFrequency <= 0 || t.TargetWeeklyFrequency > 7 {
		return tuningErr("TargetWeeklyFrequency", "must be between 0 and 7")
	}
	if t.RetireBelowRating < RatingMin || t.RetireBelowRating > RatingMax {
		return tuningErr("RetireBelowRating", "must be a valid rating")
	}
	if t.SimilarityMaxK < 1 {
		return tuningErr("SimilarityMaxK", "must be at least 1")
	}
	if t.PreferenceDelta < 0 || t.ConfidenceBoost < 0 || t.ConfidencePenalty < 0 {
		return tuningErr("PreferenceDelta", "deltas must be non-negative")
	}
	return nil
}

func tuningErr(field, msg string) error {
	return &ValidationError{Field: "Tuning." + field, Message: msg}
}

// confidence returns min(samples*perSample, ceiling) clamped to [0, 100].
func confidence(samples int, perSample, ceiling float64) float64 {
	return clamp(float64(samples)*perSample, 0, min(ceiling, 100))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
