package stride

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Every extractor is a pure function of a history slice and the tuning. It
// returns a Pattern with Type, Data and Confidence set, or an
// *InsufficientDataError when its sample threshold is unmet.

// ExtractWorkoutPreference ranks workout types over the most recent
// PreferenceWindow workouts.
func ExtractWorkoutPreference(workouts []Workout, t Tuning) (Pattern, error) {
	recent := newestFirst(workouts)
	if len(recent) > t.PreferenceWindow {
		recent = recent[:t.PreferenceWindow]
	}
	if len(recent) < t.MinSamples {
		return Pattern{}, insufficient(PatternWorkoutPreference, len(recent), t.MinSamples)
	}

	counts := make(map[string]int)
	for _, w := range recent {
		counts[NormalizeWorkoutType(w.Type)]++
	}

	data := WorkoutPreferenceData{
		Preferences: shares(counts, len(recent), nil),
		SampleSize:  len(recent),
	}
	return Pattern{
		Type:       PatternWorkoutPreference,
		Data:       data,
		Confidence: confidence(len(recent), t.PreferenceConfidencePerSample, t.PreferenceConfidenceCap),
	}, nil
}

// ExtractTiming computes day-part and weekday shares and weekly frequency.
func ExtractTiming(workouts []Workout, t Tuning) (Pattern, error) {
	if len(workouts) < t.MinSamples {
		return Pattern{}, insufficient(PatternTiming, len(workouts), t.MinSamples)
	}

	parts := make(map[string]int)
	days := make(map[string]int)
	for _, w := range workouts {
		parts[string(DayPartOf(w.StartedAt))]++
		days[weekdayName(w.StartedAt.Weekday())]++
	}

	partOrder := make(map[string]int)
	for i, p := range DayParts() {
		partOrder[string(p)] = i
	}
	dayOrder := make(map[string]int)
	for i, d := range Weekdays() {
		dayOrder[weekdayName(d)] = i
	}

	data := TimingData{
		DayParts:   shares(parts, len(workouts), partOrder),
		Weekdays:   shares(days, len(workouts), dayOrder),
		SampleSize: len(workouts),
	}
	data.PreferredDayPart = DayPart(data.DayParts[0].Value)
	data.PreferredWeekday = data.Weekdays[0].Value

	chrono := oldestFirst(workouts)
	var totalGap float64
	for i := 1; i < len(chrono); i++ {
		totalGap += chrono[i].StartedAt.Sub(chrono[i-1].StartedAt).Hours() / 24
	}
	if gaps := len(chrono) - 1; gaps > 0 {
		mean := totalGap / float64(gaps)
		data.AverageGapDays = round2(mean)
		if mean > 0 {
			data.WeeklyFrequency = round2(7 / mean)
		}
	}

	return Pattern{
		Type:       PatternTiming,
		Data:       data,
		Confidence: confidence(len(workouts), t.TimingConfidencePerSample, t.TimingConfidenceCap),
	}, nil
}

// ExtractIntensityResponse finds the intensity level with the best combined
// performance, recovery and mood outcome. Only workouts recording all three
// outcomes at a canonical intensity count as samples.
func ExtractIntensityResponse(workouts []Workout, t Tuning) (Pattern, error) {
	type acc struct {
		n                    int
		perf, recovery, mood float64
	}
	byLevel := make(map[IntensityLevel]*acc)
	total := 0
	for _, w := range workouts {
		level, ok := NormalizeIntensity(string(w.Intensity))
		if !ok || w.PerformanceScore == nil || w.RecoveryHours == nil || w.MoodImpact == nil {
			continue
		}
		a := byLevel[level]
		if a == nil {
			a = &acc{}
			byLevel[level] = a
		}
		a.n++
		a.perf += *w.PerformanceScore
		a.recovery += *w.RecoveryHours
		a.mood += *w.MoodImpact
		total++
	}
	if total < t.MinSamples {
		return Pattern{}, insufficient(PatternIntensityResponse, total, t.MinSamples)
	}

	data := IntensityResponseData{SampleSize: total}
	for _, level := range IntensityLevels() {
		a, ok := byLevel[level]
		if !ok {
			continue
		}
		n := float64(a.n)
		stats := IntensityStats{
			Level:            level,
			Samples:          a.n,
			AvgPerformance:   a.perf / n,
			AvgRecoveryHours: a.recovery / n,
			AvgMoodImpact:    a.mood / n,
		}
		stats.WeightedScore = intensityScore(stats, t)
		data.Levels = append(data.Levels, stats)
	}

	// Levels are in canonical order, so strict comparison keeps the first
	// of equally scored levels.
	best := data.Levels[0]
	if len(data.Levels) == len(IntensityLevels()) {
		data.Method = MethodWeightedScore
		for _, l := range data.Levels[1:] {
			if l.WeightedScore > best.WeightedScore {
				best = l
			}
		}
	} else {
		data.Method = MethodPerformanceFallback
		for _, l := range data.Levels[1:] {
			if l.AvgPerformance > best.AvgPerformance {
				best = l
			}
		}
	}
	data.OptimalIntensity = best.Level

	for i := range data.Levels {
		l := &data.Levels[i]
		l.AvgPerformance = round2(l.AvgPerformance)
		l.AvgRecoveryHours = round2(l.AvgRecoveryHours)
		l.AvgMoodImpact = round2(l.AvgMoodImpact)
		l.WeightedScore = round2(l.WeightedScore)
	}

	return Pattern{
		Type:       PatternIntensityResponse,
		Data:       data,
		Confidence: confidence(total, t.IntensityConfidencePerSample, t.IntensityConfidenceCap),
	}, nil
}

// intensityScore is w_p*performance + w_r*inverse recovery + w_m*mood, with
// recovery and mood rescaled onto the 0-10 performance scale.
func intensityScore(s IntensityStats, t Tuning) float64 {
	inverseRecovery := clamp((24-s.AvgRecoveryHours)/24*10, 0, 10)
	mood := clamp((s.AvgMoodImpact+5)/10*10, 0, 10)
	return t.IntensityPerformanceWeight*s.AvgPerformance +
		t.IntensityRecoveryWeight*inverseRecovery +
		t.IntensityMoodWeight*mood
}

type exerciseSession struct {
	at     time.Time
	volume float64
}

// exerciseProgress computes the trend of every exercise with at least
// MinSamples weighted sessions, sorted by exercise name. The second result
// is the largest session count seen, for insufficient-data reporting.
func exerciseProgress(logs []ExerciseLog, t Tuning) ([]ExerciseProgress, int) {
	type key struct{ exercise, session string }
	sessions := make(map[key]*exerciseSession)
	for _, l := range logs {
		if l.Weight <= 0 || l.Reps <= 0 {
			continue
		}
		k := key{exercise: NormalizeExercise(l.Exercise), session: l.WorkoutID}
		if k.session == "" {
			k.session = l.PerformedAt.Format("2006-01-02")
		}
		s := sessions[k]
		if s == nil {
			s = &exerciseSession{at: l.PerformedAt}
			sessions[k] = s
		}
		if l.PerformedAt.Before(s.at) {
			s.at = l.PerformedAt
		}
		s.volume += l.Volume()
	}

	byExercise := make(map[string][]exerciseSession)
	for k, s := range sessions {
		byExercise[k.exercise] = append(byExercise[k.exercise], *s)
	}

	names := make([]string, 0, len(byExercise))
	for name := range byExercise {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		result  []ExerciseProgress
		longest int
	)
	for _, name := range names {
		list := byExercise[name]
		longest = max(longest, len(list))
		if len(list) < t.MinSamples {
			continue
		}
		sort.Slice(list, func(i, j int) bool {
			if !list[i].at.Equal(list[j].at) {
				return list[i].at.Before(list[j].at)
			}
			return list[i].volume < list[j].volume
		})

		first, last := list[0], list[len(list)-1]
		if first.volume <= 0 {
			continue
		}
		weeks := math.Max(last.at.Sub(first.at).Hours()/(24*7), 1)
		rate := (last.volume - first.volume) / first.volume * 100 / weeks

		p := ExerciseProgress{
			Exercise:    name,
			Sessions:    len(list),
			FirstVolume: round2(first.volume),
			LastVolume:  round2(last.volume),
			WeeklyRate:  round2(rate),
			Status:      progressionStatus(rate, t.ProgressionRateThreshold),
		}
		for i := len(list) - 1; i > 0; i-- {
			if list[i].volume > list[i-1].volume {
				at := list[i].at
				p.LastProgressionDate = &at
				break
			}
		}
		result = append(result, p)
	}
	return result, longest
}

func progressionStatus(rate, threshold float64) ProgressionStatus {
	switch {
	case rate > threshold:
		return StatusProgressing
	case rate < -threshold:
		return StatusRegressing
	default:
		return StatusStagnant
	}
}

// ExtractProgression reports the weekly volume trend of each exercise.
func ExtractProgression(logs []ExerciseLog, t Tuning) (Pattern, error) {
	progress, longest := exerciseProgress(logs, t)
	if len(progress) == 0 {
		return Pattern{}, insufficient(PatternProgression, longest, t.MinSamples)
	}

	data := ProgressionData{Exercises: progress}
	sessions := 0
	for _, p := range progress {
		sessions += p.Sessions
		switch p.Status {
		case StatusProgressing:
			data.Progressing++
		case StatusStagnant:
			data.Stagnant++
		case StatusRegressing:
			data.Regressing++
		}
	}

	return Pattern{
		Type:       PatternProgression,
		Data:       data,
		Confidence: confidence(sessions, t.ProgressionConfidencePerSample, t.ProgressionConfidenceCap),
	}, nil
}

// ExtractStagnation lists stagnant and regressing exercises, slowest first.
func ExtractStagnation(logs []ExerciseLog, t Tuning) (Pattern, error) {
	progress, longest := exerciseProgress(logs, t)
	if len(progress) == 0 {
		return Pattern{}, insufficient(PatternStagnation, longest, t.MinSamples)
	}

	var (
		stalled  []ExerciseProgress
		sessions int
	)
	for _, p := range progress {
		if p.Status == StatusProgressing {
			continue
		}
		stalled = append(stalled, p)
		sessions += p.Sessions
	}
	if len(stalled) == 0 {
		return Pattern{}, insufficient(PatternStagnation, 0, 1)
	}
	sort.SliceStable(stalled, func(i, j int) bool {
		return stalled[i].WeeklyRate < stalled[j].WeeklyRate
	})

	return Pattern{
		Type:       PatternStagnation,
		Data:       StagnationData{Exercises: stalled},
		Confidence: confidence(sessions, t.ProgressionConfidencePerSample, t.ProgressionConfidenceCap),
	}, nil
}

// ExtractMoodCorrelation relates each workout type to the change between the
// nearest mood logged in the day before a workout and the nearest in the day
// after it.
func ExtractMoodCorrelation(workouts []Workout, moods []MoodEntry, t Tuning) (Pattern, error) {
	if len(moods) < t.MinSamples {
		return Pattern{}, insufficient(PatternMoodCorrelation, len(moods), t.MinSamples)
	}
	if len(workouts) < t.MinSamples {
		return Pattern{}, insufficient(PatternMoodCorrelation, len(workouts), t.MinSamples)
	}

	type acc struct {
		pairs         int
		before, after float64
	}
	byType := make(map[string]*acc)
	pairs := 0
	for _, w := range workouts {
		before, okBefore := nearestMood(moods, w.StartedAt.Add(-24*time.Hour), w.StartedAt, true, w.StartedAt)
		after, okAfter := nearestMood(moods, w.StartedAt, w.StartedAt.Add(24*time.Hour), false, w.StartedAt)
		if !okBefore || !okAfter {
			continue
		}
		kind := NormalizeWorkoutType(w.Type)
		a := byType[kind]
		if a == nil {
			a = &acc{}
			byType[kind] = a
		}
		a.pairs++
		a.before += before
		a.after += after
		pairs++
	}
	if pairs == 0 {
		return Pattern{}, insufficient(PatternMoodCorrelation, 0, 1)
	}

	data := MoodCorrelationData{SampleSize: pairs}
	for workoutType, a := range byType {
		n := float64(a.pairs)
		avgBefore, avgAfter := a.before/n, a.after/n
		data.ByType = append(data.ByType, MoodImpact{
			WorkoutType: workoutType,
			Pairs:       a.pairs,
			AvgBefore:   round2(avgBefore),
			AvgAfter:    round2(avgAfter),
			MoodChange:  round2(avgAfter - avgBefore),
		})
	}
	sort.Slice(data.ByType, func(i, j int) bool {
		a, b := data.ByType[i], data.ByType[j]
		if a.MoodChange != b.MoodChange {
			return a.MoodChange > b.MoodChange
		}
		return a.WorkoutType < b.WorkoutType
	})

	best := data.ByType[0]
	worst := data.ByType[len(data.ByType)-1]
	for _, m := range data.ByType {
		// Equal lowest changes resolve to the alphabetically first type.
		if m.MoodChange == worst.MoodChange && m.WorkoutType < worst.WorkoutType {
			worst = m
		}
	}
	data.BestType, data.BestChange = best.WorkoutType, best.MoodChange
	data.WorstType, data.WorstChange = worst.WorkoutType, worst.MoodChange

	return Pattern{
		Type:       PatternMoodCorrelation,
		Data:       data,
		Confidence: confidence(pairs, t.MoodConfidencePerSample, t.MoodConfidenceCap),
	}, nil
}

// nearestMood returns the score of the mood closest to anchor within the
// window. The window includes from when inclusiveFrom is set, and always
// includes to.
func nearestMood(moods []MoodEntry, from, to time.Time, inclusiveFrom bool, anchor time.Time) (float64, bool) {
	var (
		best     MoodEntry
		bestDist time.Duration = -1
	)
	for _, m := range moods {
		if m.LoggedAt.After(to) || m.LoggedAt.Before(from) {
			continue
		}
		if !inclusiveFrom && m.LoggedAt.Equal(from) {
			continue
		}
		dist := m.LoggedAt.Sub(anchor)
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && m.ID < best.ID) {
			best, bestDist = m, dist
		}
	}
	return best.Score, bestDist >= 0
}

// ExtractRecovery summarizes the most recent RecoveryWindow wearable days.
func ExtractRecovery(summaries []WearableSummary, t Tuning) (Pattern, error) {
	recent := make([]WearableSummary, len(summaries))
	copy(recent, summaries)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Date.After(recent[j].Date) })
	if len(recent) > t.RecoveryWindow {
		recent = recent[:t.RecoveryWindow]
	}
	if len(recent) < t.MinSamples {
		return Pattern{}, insufficient(PatternRecovery, len(recent), t.MinSamples)
	}

	var sleep float64
	var hr, hrv []float64
	// Walk oldest to newest so the trend halves are chronological.
	for i := len(recent) - 1; i >= 0; i-- {
		s := recent[i]
		sleep += s.SleepMinutes
		if s.RestingHeartRate > 0 {
			hr = append(hr, s.RestingHeartRate)
		}
		if s.HRV > 0 {
			hrv = append(hrv, s.HRV)
		}
	}

	data := RecoveryPatternData{
		AvgSleepMinutes:     round2(sleep / float64(len(recent))),
		AvgRestingHeartRate: round2(mean(hr)),
		AvgHRV:              round2(mean(hrv)),
		SampleSize:          len(recent),
	}
	if len(hr) >= 2 {
		half := len(hr) / 2
		data.RestingHRTrend = round2(mean(hr[half:]) - mean(hr[:half]))
	}

	switch {
	case data.AvgSleepMinutes >= t.SleepMinutesThreshold && data.RestingHRTrend <= 0:
		data.Status = RecoveryWell
	case data.AvgSleepMinutes < t.StrainedSleepMinutes || data.RestingHRTrend > t.StrainedHRTrend:
		data.Status = RecoveryStrained
	default:
		data.Status = RecoveryAdequate
	}

	return Pattern{
		Type:       PatternRecovery,
		Data:       data,
		Confidence: confidence(len(recent), t.RecoveryConfidencePerSample, t.RecoveryConfidenceCap),
	}, nil
}

// shares turns bucket counts into percentages sorted by count descending.
// Ties follow order when given, otherwise the value.
func shares(counts map[string]int, total int, order map[string]int) []Share {
	result := make([]Share, 0, len(counts))
	for value, n := range counts {
		result = append(result, Share{
			Value:      value,
			Count:      n,
			Percentage: round2(float64(n) / float64(total) * 100),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if order != nil {
			return order[a.Value] < order[b.Value]
		}
		return a.Value < b.Value
	})
	return result
}

func weekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

func newestFirst(workouts []Workout) []Workout {
	out := make([]Workout, len(workouts))
	copy(out, workouts)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func oldestFirst(workouts []Workout) []Workout {
	out := make([]Workout, len(workouts))
	copy(out, workouts)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
