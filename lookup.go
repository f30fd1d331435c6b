package stride

import (
	"strings"
	"time"
)

// IntensityLevel is a canonical workout intensity bucket.
type IntensityLevel string

const (
	IntensityLow      IntensityLevel = "low"
	IntensityModerate IntensityLevel = "moderate"
	IntensityHigh     IntensityLevel = "high"
)

// IntensityLevels returns the canonical levels in ascending order.
// This order also breaks ties between equally scored levels.
func IntensityLevels() []IntensityLevel {
	return []IntensityLevel{IntensityLow, IntensityModerate, IntensityHigh}
}

// DayPart is a canonical time-of-day bucket.
type DayPart string

const (
	DayPartMorning   DayPart = "morning"
	DayPartAfternoon DayPart = "afternoon"
	DayPartEvening   DayPart = "evening"
	DayPartNight     DayPart = "night"
)

// DayParts returns the day parts in chronological order starting at 05:00.
func DayParts() []DayPart {
	return []DayPart{DayPartMorning, DayPartAfternoon, DayPartEvening, DayPartNight}
}

// Weekdays returns the weekdays Monday first.
func Weekdays() []time.Weekday {
	return []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
}

// DayPartOf classifies t in its own location:
// morning [05,12), afternoon [12,18), evening [18,22), night otherwise.
func DayPartOf(t time.Time) DayPart {
	h := t.Hour()
	switch {
	case h >= 5 && h < 12:
		return DayPartMorning
	case h >= 12 && h < 18:
		return DayPartAfternoon
	case h >= 18 && h < 22:
		return DayPartEvening
	default:
		return DayPartNight
	}
}

// dayPartWindows holds the human-readable clock window of each day part.
var dayPartWindows = map[DayPart]string{
	DayPartMorning:   "05:00-12:00",
	DayPartAfternoon: "12:00-18:00",
	DayPartEvening:   "18:00-22:00",
	DayPartNight:     "22:00-05:00",
}

// Window returns the clock window of the day part, e.g. "05:00-12:00".
func (d DayPart) Window() string {
	return dayPartWindows[d]
}

// intensityAliases maps raw intensity labels to canonical buckets.
var intensityAliases = map[string]IntensityLevel{
	"low":       IntensityLow,
	"light":     IntensityLow,
	"easy":      IntensityLow,
	"recovery":  IntensityLow,
	"moderate":  IntensityModerate,
	"medium":    IntensityModerate,
	"mid":       IntensityModerate,
	"steady":    IntensityModerate,
	"high":      IntensityHigh,
	"hard":      IntensityHigh,
	"intense":   IntensityHigh,
	"vigorous":  IntensityHigh,
	"max":       IntensityHigh,
	"maximal":   IntensityHigh,
	"very_high": IntensityHigh,
}

// workoutTypeAliases maps raw workout labels to canonical workout types.
// Labels not listed keep their normalized spelling.
var workoutTypeAliases = map[string]string{
	"run":            "cardio",
	"running":        "cardio",
	"jog":            "cardio",
	"jogging":        "cardio",
	"cycling":        "cardio",
	"bike":           "cardio",
	"rowing":         "cardio",
	"swimming":       "cardio",
	"weights":        "strength",
	"weightlifting":  "strength",
	"weight_lifting": "strength",
	"lifting":        "strength",
	"resistance":     "strength",
	"powerlifting":   "strength",
	"interval":       "hiit",
	"intervals":      "hiit",
	"circuit":        "hiit",
	"stretching":     "flexibility",
	"mobility":       "flexibility",
	"pilates":        "flexibility",
	"walk":           "walking",
	"hike":           "walking",
	"hiking":         "walking",
}

// muscleGroups maps exercise names to the muscle group they load most.
var muscleGroups = map[string]string{
	"bench press":       "chest",
	"incline press":     "chest",
	"push up":           "chest",
	"dumbbell fly":      "chest",
	"squat":             "legs",
	"back squat":        "legs",
	"front squat":       "legs",
	"leg press":         "legs",
	"lunge":             "legs",
	"deadlift":          "back",
	"romanian deadlift": "legs",
	"row":               "back",
	"barbell row":       "back",
	"pull up":           "back",
	"lat pulldown":      "back",
	"overhead press":    "shoulders",
	"shoulder press":    "shoulders",
	"lateral raise":     "shoulders",
	"bicep curl":        "arms",
	"tricep extension":  "arms",
	"dip":               "arms",
	"plank":             "core",
	"crunch":            "core",
}

// normalizeLabel lowercases, trims and collapses separators to single spaces.
func normalizeLabel(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeIntensity maps a raw intensity label to its canonical level.
// The second result is false for unknown or empty labels.
func NormalizeIntensity(raw string) (IntensityLevel, bool) {
	key := strings.ReplaceAll(normalizeLabel(raw), " ", "_")
	level, ok := intensityAliases[key]
	return level, ok
}

// NormalizeWorkoutType maps a raw workout label to its canonical type.
func NormalizeWorkoutType(raw string) string {
	key := normalizeLabel(raw)
	if canonical, ok := workoutTypeAliases[strings.ReplaceAll(key, " ", "_")]; ok {
		return canonical
	}
	return strings.ReplaceAll(key, " ", "_")
}

// NormalizeExercise returns the canonical spelling of an exercise name.
func NormalizeExercise(raw string) string {
	key := normalizeLabel(raw)
	// Plurals such as "squats" or "pull ups" share the singular bucket.
	if _, ok := muscleGroups[key]; !ok {
		if trimmed := strings.TrimSuffix(key, "s"); trimmed != key {
			if _, ok := muscleGroups[trimmed]; ok {
				return trimmed
			}
		}
	}
	return key
}

// MuscleGroupOf returns the muscle group for an exercise, or "general".
func MuscleGroupOf(exercise string) string {
	if group, ok := muscleGroups[NormalizeExercise(exercise)]; ok {
		return group
	}
	return "general"
}

// intensityForDayPart is the session intensity suggested for a day part.
var intensityForDayPart = map[DayPart]IntensityLevel{
	DayPartMorning:   IntensityModerate,
	DayPartAfternoon: IntensityModerate,
	DayPartEvening:   IntensityHigh,
	DayPartNight:     IntensityModerate,
}

// durationForDayPart is the session length in minutes suggested for a day part.
var durationForDayPart = map[DayPart]int{
	DayPartMorning:   30,
	DayPartAfternoon: 45,
	DayPartEvening:   45,
	DayPartNight:     45,
}
