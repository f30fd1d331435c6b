package stride_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperengineering/stride"
)

var day0 = time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC) // a Monday

func f64(v float64) *float64 { return &v }

func workoutsOfTypes(types ...string) []stride.Workout {
	ws := make([]stride.Workout, len(types))
	for i, typ := range types {
		ws[i] = stride.Workout{
			ID:        fmt.Sprintf("w%02d", i),
			UserID:    "u1",
			Type:      typ,
			StartedAt: day0.AddDate(0, 0, i),
		}
	}
	return ws
}

func TestExtractWorkoutPreference_Shares(t *testing.T) {
	p, err := stride.ExtractWorkoutPreference(workoutsOfTypes("cardio", "cardio", "strength", "cardio"), stride.DefaultTuning())
	require.NoError(t, err)

	data := p.Data.(stride.WorkoutPreferenceData)
	require.Len(t, data.Preferences, 2)
	assert.Equal(t, "cardio", data.Preferences[0].Value)
	assert.Equal(t, 75.0, data.Preferences[0].Percentage)
	assert.Equal(t, "strength", data.Preferences[1].Value)
	assert.Equal(t, 25.0, data.Preferences[1].Percentage)
	assert.Equal(t, 4, data.SampleSize)
	assert.Equal(t, 20.0, p.Confidence)
	assert.Equal(t, stride.PatternWorkoutPreference, p.Type)
}

func TestExtractWorkoutPreference_InsufficientData(t *testing.T) {
	_, err := stride.ExtractWorkoutPreference(workoutsOfTypes("cardio", "yoga"), stride.DefaultTuning())
	require.Error(t, err)
	assert.True(t, stride.IsInsufficientData(err))

	var ide *stride.InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 2, ide.Have)
	assert.Equal(t, 3, ide.Need)
}

func TestExtractWorkoutPreference_WindowAndCap(t *testing.T) {
	types := make([]string, 25)
	for i := range types {
		types[i] = "strength"
		if i < 5 {
			types[i] = "yoga" // oldest five fall outside the window
		}
	}
	p, err := stride.ExtractWorkoutPreference(workoutsOfTypes(types...), stride.DefaultTuning())
	require.NoError(t, err)

	data := p.Data.(stride.WorkoutPreferenceData)
	assert.Equal(t, 20, data.SampleSize)
	require.Len(t, data.Preferences, 1)
	assert.Equal(t, "strength", data.Preferences[0].Value)
	assert.Equal(t, 90.0, p.Confidence)
}

func TestExtractWorkoutPreference_CanonicalLabels(t *testing.T) {
	p, err := stride.ExtractWorkoutPreference(workoutsOfTypes("running", "Cardio", "cardio", "strength"), stride.DefaultTuning())
	require.NoError(t, err)

	data := p.Data.(stride.WorkoutPreferenceData)
	require.Len(t, data.Preferences, 2)
	assert.Equal(t, stride.Share{Value: "cardio", Count: 3, Percentage: 75}, data.Preferences[0])
	assert.Equal(t, stride.Share{Value: "strength", Count: 1, Percentage: 25}, data.Preferences[1])
}

func TestExtractWorkoutPreference_TiesByValue(t *testing.T) {
	p, err := stride.ExtractWorkoutPreference(workoutsOfTypes("yoga", "cardio", "yoga", "cardio"), stride.DefaultTuning())
	require.NoError(t, err)

	data := p.Data.(stride.WorkoutPreferenceData)
	assert.Equal(t, "cardio", data.Preferences[0].Value)
	assert.Equal(t, "yoga", data.Preferences[1].Value)
}

func TestExtractTiming_WeeklyFrequency(t *testing.T) {
	ws := []stride.Workout{
		{ID: "a", Type: "cardio", StartedAt: day0},
		{ID: "b", Type: "cardio", StartedAt: day0.AddDate(0, 0, 2)},
		{ID: "c", Type: "cardio", StartedAt: day0.AddDate(0, 0, 4)},
		{ID: "d", Type: "cardio", StartedAt: day0.AddDate(0, 0, 7)},
	}
	p, err := stride.ExtractTiming(ws, stride.DefaultTuning())
	require.NoError(t, err)

	data := p.Data.(stride.TimingData)
	assert.Equal(t, 2.33, data.AverageGapDays)
	assert.InDelta(t, 3.0, data.WeeklyFrequency, 0.01)
	assert.Equal(t, stride.DayPartMorning, data.PreferredDayPart)
	assert.Equal(t, 100.0, data.DayParts[0].Percentage)
	assert.Equal(t, "monday", data.PreferredWeekday)
	assert.Equal(t, 50.0, data.Weekdays[0].Percentage)
	assert.Equal(t, 20.0, p.Confidence)
}

func TestExtractTiming_DayPartsAndTies(t *testing.T) {
	at := func(hour int) time.Time { return time.Date(2026, 3, 3, hour, 0, 0, 0, time.UTC) }
	ws := []stride.Workout{
		{ID: "a", StartedAt: at(19)},
		{ID: "b", StartedAt: at(6).AddDate(0, 0, 1)},
		{ID: "c", StartedAt: at(20).AddDate(0, 0, 2)},
		{ID: "d", StartedAt: at(11).AddDate(0, 0, 3)},
		{ID: "e", StartedAt: at(23).AddDate(0, 0, 4)},
	}
	p, err := stride.ExtractTiming(ws, stride.DefaultTuning())
	require.NoError(t, err)

	data := p.Data.(stride.TimingData)
	require.Len(t, data.DayParts, 3)
	// morning and evening tie at two each; morning comes first in the day.
	assert.Equal(t, "morning", data.DayParts[0].Value)
	assert.Equal(t, "evening", data.DayParts[1].Value)
	assert.Equal(t, "night", data.DayParts[2].Value)
	assert.Equal(t, 40.0, data.DayParts[0].Percentage)
}

func TestExtractTiming_SameInstantHasNoFrequency(t *testing.T) {
	ws := []stride.Workout{
		{ID: "a", StartedAt: day0},
		{ID: "b", StartedAt: day0},
		{ID: "c", StartedAt: day0},
	}
	p, err := stride.ExtractTiming(ws, stride.DefaultTuning())
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Data.(stride.TimingData).WeeklyFrequency)
}

func TestExtractTiming_Idempotent(t *testing.T) {
	ws := workoutsOfTypes("cardio", "yoga", "cardio", "hiit", "cardio")
	first, err := stride.ExtractTiming(ws, stride.DefaultTuning())
	require.NoError(t, err)
	second, err := stride.ExtractTiming(ws, stride.DefaultTuning())
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, first.Confidence, second.Confidence)
}

func intensityWorkout(id string, level stride.IntensityLevel, perf, recovery, mood float64) stride.Workout {
	return stride.Workout{
		ID:               id,
		Type:             "strength",
		StartedAt:        day0,
		Intensity:        level,
		PerformanceScore: f64(perf),
		RecoveryHours:    f64(recovery),
		MoodImpact:       f64(mood),
	}
}

func TestExtractIntensityResponse_ModerateOptimal(t *testing.T) {
	ws := []stride.Workout{
		intensityWorkout("a", stride.IntensityLow, 6, 12, 1),
		intensityWorkout("b", stride.IntensityModerate, 8, 12, 1),
		intensityWorkout("c", stride.IntensityHigh, 7, 12, 1),
	}
	p, err := stride.ExtractIntensityResponse(ws, stride.DefaultTuning())
	require.NoError(t, err)

	data := p.Data.(stride.IntensityResponseData)
	assert.Equal(t, stride.IntensityModerate, data.OptimalIntensity)
	assert.Equal(t, stride.MethodWeightedScore, data.Method)
	require.Len(t, data.Levels, 3)
	// 0.5*8 + 0.3*5 + 0.2*6
	assert.InDelta(t, 6.7, data.Levels[1].WeightedScore, 0.001)
	assert.Equal(t, 15.0, p.Confidence)
}

func TestExtractIntensityResponse_RecoveryCanOutweighPerformance(t *testing.T) {
	ws := []stride.Workout{
		intensityWorkout("a", stride.IntensityLow, 7, 4, 3),
		intensityWorkout("b", stride.IntensityModerate, 7.5, 20, -2),
		intensityWorkout("c", stride.IntensityHigh, 8, 24, -4),
	}
	p, err := stride.ExtractIntensityResponse(ws, stride.DefaultTuning())
	require.NoError(t, err)
	assert.Equal(t, stride.IntensityLow, p.Data.(stride.IntensityResponseData).OptimalIntensity)
}

func TestExtractIntensityResponse_FallbackWhenLevelMissing(t *testing.T) {
	ws := []stride.Workout{
		intensityWorkout("a", stride.IntensityLow, 9, 24, -5),
		intensityWorkout("b", stride.IntensityHigh, 6, 0, 5),
		intensityWorkout("c", stride.IntensityHigh, 6, 0, 5),
	}
	p, err := stride.ExtractIntensityResponse(ws, stride.DefaultTuning())
	require.NoError(t, err)

	data := p.Data.(stride.IntensityResponseData)
	assert.Equal(t, stride.MethodPerformanceFallback, data.Method)
	assert.Equal(t, stride.IntensityLow, data.OptimalIntensity)
}

func TestExtractIntensityResponse_IgnoresIncompleteSamples(t *testing.T) {
	ws := []stride.Workout{
		intensityWorkout("a", stride.IntensityLow, 6, 12, 1),
		intensityWorkout("b", stride.IntensityModerate, 8, 12, 1),
		{ID: "c", Intensity: stride.IntensityHigh, PerformanceScore: f64(9)},
		intensityWorkout("d", "", 7, 12, 1),
	}
	_, err := stride.ExtractIntensityResponse(ws, stride.DefaultTuning())
	assert.True(t, stride.IsInsufficientData(err))
}

func exerciseLogs(exercise string, start time.Time, stepDays int, volumes ...float64) []stride.ExerciseLog {
	logs := make([]stride.ExerciseLog, len(volumes))
	for i, v := range volumes {
		logs[i] = stride.ExerciseLog{
			ID:          fmt.Sprintf("%s-%d", exercise, i),
			Exercise:    exercise,
			Weight:      v / 10,
			Reps:        10,
			PerformedAt: start.AddDate(0, 0, i*stepDays),
		}
	}
	return logs
}

func TestExtractProgression_Classifies(t *testing.T) {
	var logs []stride.ExerciseLog
	// bench: 1000 -> 1200 over two weeks = 10%/week
	logs = append(logs, exerciseLogs("Bench Press", day0, 7, 1000, 1100, 1200)...)
	// squat: flat
	logs = append(logs, exerciseLogs("squat", day0, 7, 2000, 2010, 2000)...)
	// deadlift: 3000 -> 2400 over two weeks = -10%/week
	logs = append(logs, exerciseLogs("deadlift", day0, 7, 3000, 2700, 2400)...)
	// row: only two sessions
	logs = append(logs, exerciseLogs("row", day0, 7, 500, 600)...)

	p, err := stride.ExtractProgression(logs, stride.DefaultTuning())
	require.NoError(t, err)

	data := p.Data.(stride.ProgressionData)
	require.Len(t, data.Exercises, 3)
	byName := map[string]stride.ExerciseProgress{}
	for _, e := range data.Exercises {
		byName[e.Exercise] = e
	}

	bench := byName["bench press"]
	assert.Equal(t, stride.StatusProgressing, bench.Status)
	assert.InDelta(t, 10.0, bench.WeeklyRate, 0.01)
	require.NotNil(t, bench.LastProgressionDate)
	assert.True(t, bench.LastProgressionDate.Equal(day0.AddDate(0, 0, 14)))

	squat := byName["squat"]
	assert.Equal(t, stride.StatusStagnant, squat.Status)
	require.NotNil(t, squat.LastProgressionDate)
	assert.True(t, squat.LastProgressionDate.Equal(day0.AddDate(0, 0, 7)))

	dead := byName["deadlift"]
	assert.Equal(t, stride.StatusRegressing, dead.Status)
	assert.Nil(t, dead.LastProgressionDate)

	assert.Equal(t, 1, data.Progressing)
	assert.Equal(t, 1, data.Stagnant)
	assert.Equal(t, 1, data.Regressing)
	assert.Equal(t, 45.0, p.Confidence)
}

func TestExtractProgression_WeeksFloorAndSessionVolume(t *testing.T) {
	// Three sessions within three days; two sets in the first session.
	logs := []stride.ExerciseLog{
		{ID: "1", Exercise: "squat", Weight: 100, Reps: 5, PerformedAt: day0},
		{ID: "2", Exercise: "squat", Weight: 100, Reps: 5, PerformedAt: day0.Add(10 * time.Minute)},
		{ID: "3", Exercise: "squat", Weight: 100, Reps: 10, PerformedAt: day0.AddDate(0, 0, 1)},
		{ID: "4", Exercise: "squat", Weight: 110, Reps: 10, PerformedAt: day0.AddDate(0, 0, 2)},
		{ID: "5", Exercise: "squat", Weight: 0, Reps: 10, PerformedAt: day0.AddDate(0, 0, 3)},
	}
	p, err := stride.ExtractProgression(logs, stride.DefaultTuning())
	require.NoError(t, err)

	ex := p.Data.(stride.ProgressionData).Exercises[0]
	assert.Equal(t, 3, ex.Sessions)
	assert.Equal(t, 1000.0, ex.FirstVolume)
	assert.Equal(t, 1100.0, ex.LastVolume)
	// Elapsed time is under a week, so the change is not scaled up.
	assert.InDelta(t, 10.0, ex.WeeklyRate, 0.01)
}

func TestExtractProgression_InsufficientData(t *testing.T) {
	_, err := stride.ExtractProgression(exerciseLogs("row", day0, 7, 500, 600), stride.DefaultTuning())
	var ide *stride.InsufficientDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 2, ide.Have)
}

func TestExtractStagnation(t *testing.T) {
	var logs []stride.ExerciseLog
	logs = append(logs, exerciseLogs("bench press", day0, 7, 1000, 1100, 1200)...)
	logs = append(logs, exerciseLogs("squat", day0, 7, 2000, 2010, 2000)...)
	logs = append(logs, exerciseLogs("deadlift", day0, 7, 3000, 2700, 2400)...)

	p, err := stride.ExtractStagnation(logs, stride.DefaultTuning())
	require.NoError(t, err)

	data := p.Data.(stride.StagnationData)
	require.Len(t, data.Exercises, 2)
	assert.Equal(t, "deadlift", data.Exercises[0].Exercise)
	assert.Equal(t, "squat", data.Exercises[1].Exercise)
	assert.Equal(t, 30.0, p.Confidence)
}

func TestExtractStagnation_AllProgressing(t *testing.T) {
	_, err := stride.ExtractStagnation(exerciseLogs("bench press", day0, 7, 1000, 1100, 1200), stride.DefaultTuning())
	assert.True(t, stride.IsInsufficientData(err))
}

func TestExtractMoodCorrelation(t *testing.T) {
	ws := []stride.Workout{
		{ID: "w1", Type: "Running", StartedAt: day0},
		{ID: "w2", Type: "cardio", StartedAt: day0.AddDate(0, 0, 2)},
		{ID: "w3", Type: "weight-lifting", StartedAt: day0.AddDate(0, 0, 4)},
	}
	moods := []stride.MoodEntry{
		{ID: "m1", Score: 5, LoggedAt: day0.Add(-2 * time.Hour)},
		{ID: "m0", Score: 1, LoggedAt: day0.Add(-20 * time.Hour)}, // farther away
		{ID: "m2", Score: 8, LoggedAt: day0.Add(3 * time.Hour)},
		{ID: "m3", Score: 6, LoggedAt: day0.AddDate(0, 0, 2).Add(-time.Hour)},
		{ID: "m4", Score: 8, LoggedAt: day0.AddDate(0, 0, 2).Add(time.Hour)},
		{ID: "m5", Score: 6, LoggedAt: day0.AddDate(0, 0, 4).Add(-time.Hour)},
		{ID: "m6", Score: 5, LoggedAt: day0.AddDate(0, 0, 4).Add(2 * time.Hour)},
	}

	p, err := stride.ExtractMoodCorrelation(ws, moods, stride.DefaultTuning())
	require.NoError(t, err)

	data := p.Data.(stride.MoodCorrelationData)
	require.Len(t, data.ByType, 2)
	assert.Equal(t, "cardio", data.BestType)
	assert.InDelta(t, 2.5, data.BestChange, 0.001) // (3 + 2) / 2
	assert.Equal(t, "strength", data.WorstType)
	assert.InDelta(t, -1.0, data.WorstChange, 0.001)
	assert.Equal(t, 3, data.SampleSize)
	assert.Equal(t, 15.0, p.Confidence)
}

func TestExtractMoodCorrelation_Thresholds(t *testing.T) {
	ws := workoutsOfTypes("cardio", "cardio", "cardio")
	twoMoods := []stride.MoodEntry{
		{ID: "m1", Score: 5, LoggedAt: day0},
		{ID: "m2", Score: 6, LoggedAt: day0.Add(time.Hour)},
	}
	_, err := stride.ExtractMoodCorrelation(ws, twoMoods, stride.DefaultTuning())
	assert.True(t, stride.IsInsufficientData(err))

	farMoods := []stride.MoodEntry{
		{ID: "m1", Score: 5, LoggedAt: day0.AddDate(0, 1, 0)},
		{ID: "m2", Score: 6, LoggedAt: day0.AddDate(0, 1, 1)},
		{ID: "m3", Score: 6, LoggedAt: day0.AddDate(0, 1, 2)},
	}
	_, err = stride.ExtractMoodCorrelation(ws, farMoods, stride.DefaultTuning())
	assert.True(t, stride.IsInsufficientData(err))
}

func wearables(sleep []float64, hr []float64) []stride.WearableSummary {
	out := make([]stride.WearableSummary, len(sleep))
	for i := range sleep {
		out[i] = stride.WearableSummary{
			UserID:           "u1",
			Date:             day0.AddDate(0, 0, i),
			SleepMinutes:     sleep[i],
			RestingHeartRate: hr[i],
			HRV:              60,
		}
	}
	return out
}

func TestExtractRecovery_Statuses(t *testing.T) {
	tests := []struct {
		name  string
		sleep []float64
		hr    []float64
		want  stride.RecoveryStatus
	}{
		{"well recovered", []float64{450, 460, 440, 470}, []float64{60, 60, 58, 58}, stride.RecoveryWell},
		{"short sleep", []float64{300, 340, 320, 350}, []float64{60, 60, 60, 60}, stride.RecoveryStrained},
		{"rising heart rate", []float64{430, 430, 430, 430}, []float64{55, 55, 60, 61}, stride.RecoveryStrained},
		{"adequate", []float64{400, 400, 400, 400}, []float64{60, 60, 61, 61}, stride.RecoveryAdequate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := stride.ExtractRecovery(wearables(tt.sleep, tt.hr), stride.DefaultTuning())
			require.NoError(t, err)
			data := p.Data.(stride.RecoveryPatternData)
			assert.Equal(t, tt.want, data.Status)
			assert.Equal(t, 4, data.SampleSize)
			assert.Equal(t, 60.0, data.AvgHRV)
			assert.Equal(t, 20.0, p.Confidence)
		})
	}
}

func TestExtractRecovery_TunedStrainMarkers(t *testing.T) {
	tu := stride.DefaultTuning()
	tu.StrainedSleepMinutes = 300
	tu.StrainedHRTrend = 10

	p, err := stride.ExtractRecovery(wearables([]float64{300, 340, 320, 350}, []float64{55, 55, 60, 61}), tu)
	require.NoError(t, err)
	assert.Equal(t, stride.RecoveryAdequate, p.Data.(stride.RecoveryPatternData).Status)
}

func TestExtractRecovery_WindowUsesMostRecent(t *testing.T) {
	sleep := make([]float64, 20)
	hr := make([]float64, 20)
	for i := range sleep {
		sleep[i], hr[i] = 300, 60
		if i >= 6 {
			sleep[i] = 480
		}
	}
	p, err := stride.ExtractRecovery(wearables(sleep, hr), stride.DefaultTuning())
	require.NoError(t, err)

	data := p.Data.(stride.RecoveryPatternData)
	assert.Equal(t, 14, data.SampleSize)
	assert.Equal(t, 480.0, data.AvgSleepMinutes)
	assert.Equal(t, 70.0, p.Confidence)
}

func TestExtractors_BelowMinimumNeverSucceed(t *testing.T) {
	tu := stride.DefaultTuning()
	two := workoutsOfTypes("a", "b")

	_, err := stride.ExtractWorkoutPreference(two, tu)
	assert.True(t, stride.IsInsufficientData(err))
	_, err = stride.ExtractTiming(two, tu)
	assert.True(t, stride.IsInsufficientData(err))
	_, err = stride.ExtractIntensityResponse(two, tu)
	assert.True(t, stride.IsInsufficientData(err))
	_, err = stride.ExtractProgression(nil, tu)
	assert.True(t, stride.IsInsufficientData(err))
	_, err = stride.ExtractStagnation(nil, tu)
	assert.True(t, stride.IsInsufficientData(err))
	_, err = stride.ExtractMoodCorrelation(two, nil, tu)
	assert.True(t, stride.IsInsufficientData(err))
	_, err = stride.ExtractRecovery(nil, tu)
	assert.True(t, stride.IsInsufficientData(err))
}
