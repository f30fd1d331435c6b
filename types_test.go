package stride_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hyperengineering/stride"
)

func TestPatternType_IsValid(t *testing.T) {
	for _, pt := range stride.ValidPatternTypes() {
		if !pt.IsValid() {
			t.Errorf("PatternType(%q).IsValid() = false, want true", pt)
		}
	}
	if stride.PatternType("sleep_quality").IsValid() {
		t.Error(`PatternType("sleep_quality").IsValid() = true, want false`)
	}
}

func TestValidPatternTypes_ReturnsAll7(t *testing.T) {
	types := stride.ValidPatternTypes()
	if len(types) != 7 {
		t.Fatalf("len(ValidPatternTypes()) = %d, want 7", len(types))
	}
	if types[0] != stride.PatternWorkoutPreference || types[1] != stride.PatternTiming {
		t.Errorf("extraction order starts with %v, want workout_preference then timing", types[:2])
	}
}

func TestRecommendationType_IsValid(t *testing.T) {
	valid := []stride.RecommendationType{
		stride.RecommendationWorkout,
		stride.RecommendationNutrition,
		stride.RecommendationRecovery,
		stride.RecommendationHabit,
		stride.RecommendationPlan,
		stride.RecommendationExercise,
	}
	for _, rt := range valid {
		if !rt.IsValid() {
			t.Errorf("RecommendationType(%q).IsValid() = false, want true", rt)
		}
	}
	if stride.RecommendationType("meditation").IsValid() {
		t.Error(`RecommendationType("meditation").IsValid() = true, want false`)
	}
}

func TestPattern_JSONDecodesDataByType(t *testing.T) {
	in := stride.Pattern{
		ID:     "p1",
		UserID: "u1",
		Type:   stride.PatternTiming,
		Data: stride.TimingData{
			PreferredDayPart: stride.DayPartMorning,
			WeeklyFrequency:  3.5,
			SampleSize:       12,
		},
		Confidence:  60,
		LastUpdated: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out stride.Pattern
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	data, ok := out.Data.(stride.TimingData)
	if !ok {
		t.Fatalf("Data is %T, want stride.TimingData", out.Data)
	}
	if data.PreferredDayPart != stride.DayPartMorning || data.WeeklyFrequency != 3.5 {
		t.Errorf("Data = %+v, want morning at 3.5/week", data)
	}
	if out.Confidence != 60 || !out.LastUpdated.Equal(in.LastUpdated) {
		t.Errorf("Pattern = %+v, fields not preserved", out)
	}
}

func TestPattern_JSONNullData(t *testing.T) {
	var p stride.Pattern
	if err := json.Unmarshal([]byte(`{"id":"p1","pattern_type":"timing","pattern_data":null}`), &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.Data != nil {
		t.Errorf("Data = %v, want nil", p.Data)
	}
}

func TestDecodePatternData_UnknownType(t *testing.T) {
	if _, err := stride.DecodePatternData("sleep_quality", []byte(`{}`)); err == nil {
		t.Error("DecodePatternData() with unknown type returned nil error")
	}
}

func TestRecommendation_JSONDecodesDataByType(t *testing.T) {
	raw := `{
		"id": "r1",
		"user_id": "u1",
		"title": "Stretch after runs",
		"recommendation_type": "recovery",
		"recommendation_data": {"recovery_type": "active", "tips": ["walk"]},
		"confidence": 55,
		"is_active": true
	}`

	var rec stride.Recommendation
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	data, ok := rec.Data.(stride.RecoveryData)
	if !ok {
		t.Fatalf("Data is %T, want stride.RecoveryData", rec.Data)
	}
	if data.RecoveryType != "active" || len(data.Tips) != 1 {
		t.Errorf("Data = %+v", data)
	}
}

func TestPreference_Key(t *testing.T) {
	p := stride.Preference{UserID: "u1", Type: stride.PreferenceTimeOfDay, Value: "morning", Strength: 70}
	want := stride.PreferenceKey{UserID: "u1", Type: stride.PreferenceTimeOfDay, Value: "morning"}
	if p.Key() != want {
		t.Errorf("Key() = %+v, want %+v", p.Key(), want)
	}
}

func TestDayPartOf(t *testing.T) {
	tests := []struct {
		hour int
		want stride.DayPart
	}{
		{4, stride.DayPartNight},
		{5, stride.DayPartMorning},
		{11, stride.DayPartMorning},
		{12, stride.DayPartAfternoon},
		{18, stride.DayPartEvening},
		{21, stride.DayPartEvening},
		{22, stride.DayPartNight},
	}
	for _, tt := range tests {
		at := time.Date(2026, 3, 2, tt.hour, 30, 0, 0, time.UTC)
		if got := stride.DayPartOf(at); got != tt.want {
			t.Errorf("DayPartOf(%02d:30) = %q, want %q", tt.hour, got, tt.want)
		}
	}
	if got := stride.DayPartNight.Window(); got != "22:00-05:00" {
		t.Errorf("night Window() = %q", got)
	}
}

func TestNormalizeLabels(t *testing.T) {
	if got, ok := stride.NormalizeIntensity(" Very-High "); !ok || got != stride.IntensityHigh {
		t.Errorf("NormalizeIntensity(very-high) = %q, %v", got, ok)
	}
	if _, ok := stride.NormalizeIntensity("sideways"); ok {
		t.Error("NormalizeIntensity(sideways) ok = true, want false")
	}

	workouts := map[string]string{
		"Running":        "cardio",
		"weight lifting": "strength",
		"Yoga":           "yoga",
		"Trail Run":      "trail_run",
	}
	for raw, want := range workouts {
		if got := stride.NormalizeWorkoutType(raw); got != want {
			t.Errorf("NormalizeWorkoutType(%q) = %q, want %q", raw, got, want)
		}
	}

	if got := stride.MuscleGroupOf("Pull-Ups"); got != "back" {
		t.Errorf("MuscleGroupOf(Pull-Ups) = %q, want back", got)
	}
	if got := stride.MuscleGroupOf("kettlebell swing"); got != "general" {
		t.Errorf("MuscleGroupOf(kettlebell swing) = %q, want general", got)
	}
}
