package stride

import (
	"context"
	"fmt"
	"math"
)

// WearableReadiness derives training readiness from recent wearable summaries.
type WearableReadiness struct {
	source ActivitySource
	tuning Tuning
}

var _ ReadinessProvider = (*WearableReadiness)(nil)

// NewWearableReadiness returns a readiness provider over source.
func NewWearableReadiness(source ActivitySource, t Tuning) *WearableReadiness {
	return &WearableReadiness{source: source, tuning: t.WithDefaults()}
}

// IsReadyToTrain scores the last ReadinessDays days as a weighted blend of
// sleep and HRV, or sleep alone when no HRV was recorded. A user without
// summaries is reported ready at the threshold score.
func (r *WearableReadiness) IsReadyToTrain(ctx context.Context, userID string) (Readiness, error) {
	t := r.tuning
	summaries, err := r.source.WearableSummaries(ctx, userID, t.ReadinessDays)
	if err != nil {
		return Readiness{}, upstream("wearable summaries", userID, err)
	}
	if len(summaries) == 0 {
		return Readiness{
			Ready:           true,
			RecoveryScore:   t.ReadinessThreshold,
			Recommendations: []string{"Sync a wearable to get a readiness score"},
		}, nil
	}

	var sleep float64
	var hrv []float64
	for _, s := range summaries {
		sleep += s.SleepMinutes
		if s.HRV > 0 {
			hrv = append(hrv, s.HRV)
		}
	}
	avgSleep := sleep / float64(len(summaries))

	sleepScore := math.Min(avgSleep/t.ReadinessSleepTarget, 1) * 100
	score := sleepScore
	if len(hrv) > 0 {
		hrvScore := math.Min(mean(hrv)/t.ReadinessHRVTarget, 1) * 100
		score = t.ReadinessSleepWeight*sleepScore + t.ReadinessHRVWeight*hrvScore
	}
	score = round2(score)

	result := Readiness{
		Ready:           score >= t.ReadinessThreshold,
		RecoveryScore:   score,
		AvgSleepMinutes: round2(avgSleep),
	}
	if avgSleep < t.SleepMinutesThreshold {
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("Aim for at least %.0f minutes of sleep tonight", t.SleepMinutesThreshold))
	}
	if !result.Ready {
		result.Recommendations = append(result.Recommendations,
			"Choose light movement such as walking or mobility work",
			"Hydrate well and keep caffeine moderate")
	}
	return result, nil
}
