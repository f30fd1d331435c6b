package stride

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SynthesisInput is everything one synthesis run may consult.
type SynthesisInput struct {
	UserID   string
	Patterns []Pattern
	// Readiness is the optional external readiness signal.
	Readiness *Readiness
	// Peers are workout types popular among similar users.
	Peers []PeerRecommendation
}

// Synthesize applies every recommendation rule to the input. Rules fire
// independently; a missing pattern means its rules do not fire. The result
// is sorted by confidence, highest first, keeping rule order among equals.
// Each recommendation is new, active and stamped with now.
func Synthesize(in SynthesisInput, t Tuning, now time.Time) []Recommendation {
	s := synthesis{in: in, t: t, now: now, patterns: make(map[PatternType]Pattern)}
	for _, p := range in.Patterns {
		if p.Data != nil {
			s.patterns[p.Type] = p
		}
	}

	s.preferenceRule()
	s.dayPartRule()
	s.frequencyRule()
	s.combinedRule()
	s.readinessRule()
	s.peerRule()
	s.stagnationRule()
	s.intensityRule()
	s.moodRule()
	s.recoveryRule()

	sort.SliceStable(s.out, func(i, j int) bool {
		return s.out[i].Confidence > s.out[j].Confidence
	})
	return s.out
}

type synthesis struct {
	in       SynthesisInput
	t        Tuning
	now      time.Time
	patterns map[PatternType]Pattern
	out      []Recommendation
}

func (s *synthesis) emit(title, description, reasoning string, data RecommendationData, conf float64, source string, used ...Pattern) {
	ids := make([]string, 0, len(used))
	for _, p := range used {
		ids = append(ids, p.ID)
	}
	s.out = append(s.out, Recommendation{
		ID:           ulid.Make().String(),
		UserID:       s.in.UserID,
		Title:        title,
		Description:  description,
		Type:         data.RecommendationType(),
		Data:         data,
		Confidence:   round2(clamp(conf, 0, 100)),
		Reasoning:    reasoning,
		PatternsUsed: ids,
		Source:       source,
		IsActive:     true,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	})
}

func (s *synthesis) preference() (Pattern, WorkoutPreferenceData, Share, bool) {
	p, ok := s.patterns[PatternWorkoutPreference]
	if !ok {
		return Pattern{}, WorkoutPreferenceData{}, Share{}, false
	}
	data, ok := p.Data.(WorkoutPreferenceData)
	if !ok {
		return Pattern{}, WorkoutPreferenceData{}, Share{}, false
	}
	top, ok := data.Top()
	return p, data, top, ok
}

func (s *synthesis) timing() (Pattern, TimingData, bool) {
	p, ok := s.patterns[PatternTiming]
	if !ok {
		return Pattern{}, TimingData{}, false
	}
	data, ok := p.Data.(TimingData)
	return p, data, ok
}

// Rule 1: the favourite workout type.
func (s *synthesis) preferenceRule() {
	p, data, top, ok := s.preference()
	if !ok {
		return
	}
	s.emit(
		fmt.Sprintf("Keep your %s momentum", top.Value),
		fmt.Sprintf("Schedule your next %s session; it is the training you stick with most.", top.Value),
		fmt.Sprintf("%s makes up %.0f%% of your last %d workouts.", top.Value, top.Percentage, data.SampleSize),
		WorkoutData{WorkoutType: top.Value},
		p.Confidence,
		SourcePatterns,
		p,
	)
}

// Rule 2: a dominant day part becomes a scheduling habit.
func (s *synthesis) dayPartRule() {
	p, data, ok := s.timing()
	if !ok {
		return
	}
	top, ok := data.TopDayPart()
	if !ok || top.Percentage <= s.t.DayPartShareThreshold {
		return
	}
	part := DayPart(top.Value)
	s.emit(
		fmt.Sprintf("Train in the %s", part),
		fmt.Sprintf("Block %s in your calendar for training.", part.Window()),
		fmt.Sprintf("%.0f%% of your workouts start in the %s (%s).", top.Percentage, part, part.Window()),
		HabitData{Habit: HabitSchedule, TimeOfDay: part, Window: part.Window()},
		math.Min(top.Percentage, p.Confidence),
		SourcePatterns,
		p,
	)
}

// Rule 3: too few sessions, too many, or a weekly plan.
func (s *synthesis) frequencyRule() {
	p, data, ok := s.timing()
	if !ok {
		return
	}
	freq := data.WeeklyFrequency

	switch {
	case freq < s.t.MinWeeklyFrequency:
		s.emit(
			fmt.Sprintf("Work up to %.0f sessions a week", s.t.TargetWeeklyFrequency),
			"Add one short session per week until you reach the target.",
			fmt.Sprintf("You train %.1f times per week on average, below the %.0f sessions that sustain progress.",
				freq, s.t.MinWeeklyFrequency),
			HabitData{Habit: HabitFrequency, CurrentFrequency: freq, TargetFrequency: s.t.TargetWeeklyFrequency},
			p.Confidence,
			SourcePatterns,
			p,
		)
	case freq > s.t.MaxWeeklyFrequency:
		s.emit(
			"Schedule rest days",
			"Your training volume carries overtraining risk. Plan at least two full rest days each week.",
			fmt.Sprintf("You train %.1f times per week on average, above the %.0f sessions your body can absorb.",
				freq, s.t.MaxWeeklyFrequency),
			RecoveryData{
				RecoveryType:     RecoveryRestDays,
				CurrentFrequency: freq,
				Tips: []string{
					"Take at least two full rest days per week",
					"Swap one hard session for light mobility work",
					"Sleep 7-9 hours on training days",
					"Watch for persistent soreness or a rising resting heart rate",
				},
			},
			p.Confidence,
			SourcePatterns,
			p,
		)
	default:
		top, ok := data.TopWeekday()
		if !ok || top.Percentage <= s.t.WeekdayShareThreshold {
			return
		}
		plan := weeklyPlan(data, int(math.Round(freq)))
		s.emit(
			fmt.Sprintf("Your %d-day training week", plan.TrainingDays),
			"A seven-day schedule built around the days you already train.",
			fmt.Sprintf("You train %.1f times per week and %.0f%% of sessions fall on %s.",
				freq, top.Percentage, top.Value),
			plan,
			p.Confidence,
			SourcePatterns,
			p,
		)
	}
}

// weeklyPlan marks the n highest-share weekdays as training days.
func weeklyPlan(data TimingData, n int) PlanData {
	n = min(n, len(data.Weekdays))
	train := make(map[string]Share, n)
	for _, share := range data.Weekdays[:n] {
		train[share.Value] = share
	}

	plan := PlanData{TrainingDays: n}
	for _, d := range Weekdays() {
		name := weekdayName(d)
		if share, ok := train[name]; ok {
			plan.Days = append(plan.Days, PlanDay{
				Weekday:  name,
				Activity: ActivityTrain,
				Share:    share.Percentage,
				Note:     fmt.Sprintf("%.0f%% of your sessions fall on %s", share.Percentage, name),
			})
			continue
		}
		plan.Days = append(plan.Days, PlanDay{
			Weekday:  name,
			Activity: ActivityRest,
			Note:     "rest day: recover between training days",
		})
	}
	return plan
}

// Rule 4: favourite type at the favourite time.
func (s *synthesis) combinedRule() {
	pp, _, top, ok := s.preference()
	if !ok {
		return
	}
	tp, data, ok := s.timing()
	if !ok {
		return
	}
	part, ok := data.TopDayPart()
	if !ok {
		return
	}

	dayPart := DayPart(part.Value)
	intensity := intensityForDayPart[dayPart]
	duration := durationForDayPart[dayPart]
	s.emit(
		fmt.Sprintf("%s %s session", capitalize(string(dayPart)), top.Value),
		fmt.Sprintf("A %d-minute %s-intensity %s session in the %s.", duration, intensity, top.Value, dayPart),
		fmt.Sprintf("%s is your top workout (%.0f%%) and the %s is your most common training time (%.0f%%).",
			top.Value, top.Percentage, dayPart, part.Percentage),
		WorkoutData{
			WorkoutType:     top.Value,
			Intensity:       intensity,
			DurationMinutes: duration,
			TimeOfDay:       dayPart,
		},
		math.Min(pp.Confidence, tp.Confidence)*s.t.CombinedConfidenceFactor,
		SourcePatterns,
		pp, tp,
	)
}

// Rule 5: train or recover according to the readiness signal.
func (s *synthesis) readinessRule() {
	r := s.in.Readiness
	if r == nil {
		return
	}
	score := round2(r.RecoveryScore)

	if r.Ready {
		data := WorkoutData{Intensity: IntensityModerate, ReadinessScore: &score}
		var used []Pattern
		if p, _, top, ok := s.preference(); ok {
			data.WorkoutType = top.Value
			used = append(used, p)
		}
		if score >= s.t.HighIntensityReadiness {
			data.Intensity = IntensityHigh
		}
		s.emit(
			"You're ready to train",
			fmt.Sprintf("Your body has recovered; a %s-intensity session fits today.", data.Intensity),
			fmt.Sprintf("Your readiness score is %.0f/100.", score),
			data,
			score,
			SourceReadiness,
			used...,
		)
	} else {
		kind := RecoveryActive
		if score < s.t.RestBelowReadiness {
			kind = RecoveryRest
		}
		s.emit(
			"Take it easy today",
			"Recovery is incomplete; favour rest or light movement over hard training.",
			fmt.Sprintf("Your readiness score is %.0f/100, below what a hard session needs.", score),
			RecoveryData{RecoveryType: kind, ReadinessScore: &score, Tips: r.Recommendations},
			100-score,
			SourceReadiness,
		)
	}

	if r.AvgSleepMinutes > 0 && r.AvgSleepMinutes < s.t.SleepMinutesThreshold {
		s.emit(
			"Protect your sleep",
			"More sleep is the cheapest recovery tool you have.",
			fmt.Sprintf("You averaged %.0f minutes of sleep recently, under the %.0f minutes recovery needs.",
				r.AvgSleepMinutes, s.t.SleepMinutesThreshold),
			HabitData{
				Habit: HabitSleep,
				Tips: []string{
					"Keep the same bedtime and wake time every day",
					"Stop screens 60 minutes before bed",
					"Keep the bedroom dark, quiet and cool",
					"Avoid caffeine after 2 pm",
				},
			},
			s.t.SleepHabitConfidence,
			SourceReadiness,
		)
	}
}

// Rule 6: what similar users do.
func (s *synthesis) peerRule() {
	var used []Pattern
	if p, ok := s.patterns[PatternWorkoutPreference]; ok {
		used = append(used, p)
	}
	for _, peer := range s.in.Peers {
		s.emit(
			fmt.Sprintf("Try %s", peer.WorkoutType),
			fmt.Sprintf("People who train like you also enjoy %s.", peer.WorkoutType),
			fmt.Sprintf("%d similar users (%.0f%% of your peers) favour %s.",
				peer.PeerCount, peer.PopularityRatio*100, peer.WorkoutType),
			WorkoutData{
				WorkoutType:     peer.WorkoutType,
				PeerCount:       peer.PeerCount,
				PopularityRatio: peer.PopularityRatio,
			},
			math.Min(peer.PopularityRatio*100, s.t.PeerConfidenceCap),
			SourceSimilarUsers,
			used...,
		)
	}
}

// Rule 7: stalled exercises.
func (s *synthesis) stagnationRule() {
	p, ok := s.patterns[PatternStagnation]
	if !ok {
		return
	}
	data, ok := p.Data.(StagnationData)
	if !ok {
		return
	}
	for i, ex := range data.Exercises {
		if i == s.t.MaxStagnationRecs {
			break
		}
		suggestion, advice := "rep_scheme", "Change the rep scheme: drop to 5 heavier reps or move to 12 lighter ones for three weeks."
		if ex.Status == StatusRegressing {
			suggestion, advice = RecoveryDeload, "Deload for a week at 60% of your usual volume, then rebuild."
		}
		s.emit(
			fmt.Sprintf("Break through on %s", ex.Exercise),
			advice,
			fmt.Sprintf("%s volume is %s at %.1f%% per week over %d sessions.",
				ex.Exercise, ex.Status, ex.WeeklyRate, ex.Sessions),
			ExerciseData{
				Exercise:    ex.Exercise,
				MuscleGroup: MuscleGroupOf(ex.Exercise),
				Status:      ex.Status,
				WeeklyRate:  ex.WeeklyRate,
				Suggestion:  suggestion,
			},
			p.Confidence,
			SourcePatterns,
			p,
		)
	}
}

// Rule 8: train at the intensity that suits you best.
func (s *synthesis) intensityRule() {
	p, ok := s.patterns[PatternIntensityResponse]
	if !ok {
		return
	}
	data, ok := p.Data.(IntensityResponseData)
	if !ok {
		return
	}
	best, ok := data.Optimal()
	if !ok {
		return
	}

	reason := fmt.Sprintf("%s intensity has your best weighted score (%.2f) across performance, recovery and mood.",
		best.Level, best.WeightedScore)
	if data.Method == MethodPerformanceFallback {
		reason = fmt.Sprintf("%s intensity gives your highest average performance (%.1f/10).",
			best.Level, best.AvgPerformance)
	}
	s.emit(
		fmt.Sprintf("Favour %s-intensity sessions", best.Level),
		fmt.Sprintf("Build most of your week around %s-intensity work.", best.Level),
		reason,
		WorkoutData{Intensity: best.Level},
		p.Confidence,
		SourcePatterns,
		p,
	)
}

// Rule 9: the workout that lifts your mood.
func (s *synthesis) moodRule() {
	p, ok := s.patterns[PatternMoodCorrelation]
	if !ok {
		return
	}
	data, ok := p.Data.(MoodCorrelationData)
	if !ok || data.BestType == "" || data.BestChange <= 0 {
		return
	}
	s.emit(
		fmt.Sprintf("Use %s as a mood booster", data.BestType),
		fmt.Sprintf("On low days, reach for a %s session.", data.BestType),
		fmt.Sprintf("Your mood rises by %.1f points on average after %s.", data.BestChange, data.BestType),
		HabitData{Habit: HabitMoodBooster, WorkoutType: data.BestType},
		p.Confidence,
		SourcePatterns,
		p,
	)
}

// Rule 10: strained recovery markers.
func (s *synthesis) recoveryRule() {
	p, ok := s.patterns[PatternRecovery]
	if !ok {
		return
	}
	data, ok := p.Data.(RecoveryPatternData)
	if !ok || data.Status != RecoveryStrained {
		return
	}
	s.emit(
		"Prioritise recovery this week",
		"Replace one hard session with walking or mobility work and aim for an earlier bedtime.",
		fmt.Sprintf("Over %d days you averaged %.0f minutes of sleep and your resting heart rate moved %+.1f bpm.",
			data.SampleSize, data.AvgSleepMinutes, data.RestingHRTrend),
		RecoveryData{
			RecoveryType: RecoveryActive,
			Tips: []string{
				"Swap one intense session for a 30-minute walk",
				"Add 10 minutes of mobility work after waking",
				"Go to bed 30 minutes earlier",
			},
		},
		p.Confidence,
		SourcePatterns,
		p,
	)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
