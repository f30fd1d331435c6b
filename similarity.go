package stride

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperengineering/stride/internal/metrics"
)

// UserSignals is everything the similarity engine compares for one user.
type UserSignals struct {
	UserID      string
	Patterns    map[PatternType]Pattern
	Profile     *Profile
	Preferences []Preference
}

// Similarity is one scored candidate. Components are each in [0, 1];
// Score is their weighted sum.
type Similarity struct {
	UserID     string  `json:"user_id"`
	Score      float64 `json:"similarity"`
	Pattern    float64 `json:"pattern_component"`
	Profile    float64 `json:"profile_component"`
	Preference float64 `json:"preference_component"`

	Signals UserSignals `json:"-"`
}

const (
	simProfileAttrs    = 2
	similarityDecimals = 1e4
)

// ScoreSimilarity compares two users. Each pattern term contributes only
// when both users hold that pattern type; the profile component is the
// share of matching profile attributes; the preference component averages
// 1-|Δstrength|/100 over all of a's preference triples.
func ScoreSimilarity(a, b UserSignals, t Tuning) Similarity {
	s := Similarity{
		UserID:     b.UserID,
		Pattern:    roundSim(patternSimilarity(a, b, t)),
		Profile:    roundSim(profileSimilarity(a.Profile, b.Profile)),
		Preference: roundSim(preferenceSimilarity(a.Preferences, b.Preferences)),
		Signals:    b,
	}
	s.Score = roundSim(s.Pattern*t.SimilarityPatternWeight +
		s.Profile*t.SimilarityProfileWeight +
		s.Preference*t.SimilarityPreferenceWeight)
	return s
}

func patternSimilarity(a, b UserSignals, t Tuning) float64 {
	var score float64

	if av, ok := topValue(a.Patterns[PatternWorkoutPreference]); ok {
		if bv, ok := topValue(b.Patterns[PatternWorkoutPreference]); ok && av == bv {
			score += t.SimilarityTopTypeTerm
		}
	}

	at, aok := a.Patterns[PatternTiming].Data.(TimingData)
	bt, bok := b.Patterns[PatternTiming].Data.(TimingData)
	if aok && bok {
		ap, aHas := at.TopDayPart()
		bp, bHas := bt.TopDayPart()
		if aHas && bHas && ap.Value == bp.Value {
			score += t.SimilarityDayPartTerm
		}
		switch diff := math.Abs(at.WeeklyFrequency - bt.WeeklyFrequency); {
		case diff <= 1:
			score += t.SimilarityFrequencyCloseTerm
		case diff <= 2:
			score += t.SimilarityFrequencyNearTerm
		}
	}

	if av, ok := topValue(a.Patterns[PatternIntensityResponse]); ok {
		if bv, ok := topValue(b.Patterns[PatternIntensityResponse]); ok && av == bv {
			score += t.SimilarityIntensityTerm
		}
	}
	return score
}

func profileSimilarity(a, b *Profile) float64 {
	if a == nil || b == nil {
		return 0
	}
	matches := 0
	if a.Level != "" && strings.EqualFold(a.Level, b.Level) {
		matches++
	}
	if a.Goal != "" && strings.EqualFold(a.Goal, b.Goal) {
		matches++
	}
	return float64(matches) / simProfileAttrs
}

func preferenceSimilarity(a, b []Preference) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	strengths := make(map[PreferenceKey]float64, len(b))
	for _, p := range b {
		strengths[PreferenceKey{Type: p.Type, Value: p.Value}] = p.Strength
	}
	// Triples b does not hold score 0 but still count toward the average.
	var sum float64
	for _, p := range a {
		if other, ok := strengths[PreferenceKey{Type: p.Type, Value: p.Value}]; ok {
			sum += 1 - math.Abs(p.Strength-other)/100
		}
	}
	return sum / float64(len(a))
}

// topValue returns the value a pattern ranks first: the favourite workout
// type, the dominant day part or the optimal intensity.
func topValue(p Pattern) (string, bool) {
	switch d := p.Data.(type) {
	case WorkoutPreferenceData:
		top, ok := d.Top()
		return top.Value, ok
	case TimingData:
		top, ok := d.TopDayPart()
		return top.Value, ok
	case IntensityResponseData:
		return string(d.OptimalIntensity), d.OptimalIntensity != ""
	}
	return "", false
}

func roundSim(v float64) float64 {
	return math.Round(v*similarityDecimals) / similarityDecimals
}

// rankTopK keeps candidates scoring at least minScore, sorted by score
// descending and then user id, limited to k when k > 0.
func rankTopK(scored []Similarity, minScore float64, k int) []Similarity {
	kept := make([]Similarity, 0, len(scored))
	for _, s := range scored {
		if s.Score >= minScore {
			kept = append(kept, s)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].UserID < kept[j].UserID
	})

	if k > 0 && len(kept) > k {
		kept = kept[:k]
	}
	return kept
}

// commonPatternTypes are the pattern types with a comparable top value.
var commonPatternTypes = []PatternType{
	PatternWorkoutPreference,
	PatternTiming,
	PatternIntensityResponse,
}

// CommonPatterns finds, per comparable pattern type, the most frequent top
// value among the members holding that type. It is kept when at least
// CommonPatternShare of those holders share it. Ties go to the
// alphabetically first value.
func CommonPatterns(members []UserSignals, t Tuning) []CommonPattern {
	out := []CommonPattern{}
	for _, pt := range commonPatternTypes {
		counts := make(map[string]int)
		holders := 0
		for _, m := range members {
			v, ok := topValue(m.Patterns[pt])
			if !ok {
				continue
			}
			holders++
			counts[v]++
		}
		if holders == 0 {
			continue
		}

		var best string
		for v, n := range counts {
			if n > counts[best] || (n == counts[best] && v < best) {
				best = v
			}
		}
		share := float64(counts[best]) / float64(holders)
		if share < t.CommonPatternShare {
			continue
		}
		out = append(out, CommonPattern{
			Type:    pt,
			Value:   best,
			Members: counts[best],
			Holders: holders,
			Share:   round2(share),
		})
	}
	return out
}

// PeerRecommendations counts the favourite workout type of each peer that
// differs from the user's own favourite. Sorted by popularity ratio
// descending, then workout type.
func PeerRecommendations(self UserSignals, peers []UserSignals) []PeerRecommendation {
	if len(peers) == 0 {
		return nil
	}
	own, _ := topValue(self.Patterns[PatternWorkoutPreference])

	counts := make(map[string]int)
	for _, p := range peers {
		v, ok := topValue(p.Patterns[PatternWorkoutPreference])
		if !ok || v == own {
			continue
		}
		counts[v]++
	}

	out := make([]PeerRecommendation, 0, len(counts))
	for typ, n := range counts {
		out = append(out, PeerRecommendation{
			WorkoutType:     typ,
			PeerCount:       n,
			PopularityRatio: round2(float64(n) / float64(len(peers))),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PopularityRatio != out[j].PopularityRatio {
			return out[i].PopularityRatio > out[j].PopularityRatio
		}
		return out[i].WorkoutType < out[j].WorkoutType
	})
	return out
}

// SimilarityQuery bounds a similar-user search. Zero values take the
// tuning defaults.
type SimilarityQuery struct {
	MinSimilarity float64
	MaxK          int
}

// SimilarityResult is the outcome of one search.
type SimilarityResult struct {
	UserID  string       `json:"user_id"`
	Matches []Similarity `json:"matches"`
	// Candidates is the size of the population searched.
	Candidates int `json:"candidates"`
	Scored     int `json:"scored"`
	Skipped    int `json:"skipped"`
	// Partial is set when the search stopped early on cancellation; Matches
	// then covers only the candidates scored before it stopped.
	Partial bool `json:"partial"`

	Self UserSignals `json:"-"`
}

// SimilarityEngine scores a user against every other user holding patterns.
type SimilarityEngine struct {
	patterns PatternStore
	prefs    PreferenceStore
	profiles ProfileSource
	tuning   Tuning
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewSimilarityEngine creates a similarity engine. profiles, logger and m may be nil.
func NewSimilarityEngine(patterns PatternStore, prefs PreferenceStore, profiles ProfileSource, t Tuning, logger *zap.Logger, m *metrics.Metrics) *SimilarityEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimilarityEngine{
		patterns: patterns,
		prefs:    prefs,
		profiles: profiles,
		tuning:   t.WithDefaults(),
		logger:   logger,
		metrics:  m,
	}
}

// Signals loads the patterns, preferences and profile of one user. A
// missing profile is not an error.
func (e *SimilarityEngine) Signals(ctx context.Context, userID string) (UserSignals, error) {
	s := UserSignals{UserID: userID, Patterns: make(map[PatternType]Pattern)}

	patterns, err := e.patterns.Patterns(ctx, userID)
	if err != nil {
		return s, upstream("patterns", userID, err)
	}
	for _, p := range patterns {
		s.Patterns[p.Type] = p
	}

	if s.Preferences, err = e.prefs.Preferences(ctx, userID); err != nil {
		return s, upstream("preferences", userID, err)
	}

	if e.profiles != nil {
		p, err := e.profiles.Profile(ctx, userID)
		switch {
		case err == nil:
			s.Profile = &p
		case !errors.Is(err, ErrNotFound):
			return s, upstream("profile", userID, err)
		}
	}
	return s, nil
}

// FindSimilarUsers scores userID against every other user holding at least
// one pattern and returns the top matches. A candidate whose data cannot be
// read is logged and skipped. When ctx ends mid-search the candidates scored
// so far are ranked and returned with Partial set and a nil error.
func (e *SimilarityEngine) FindSimilarUsers(ctx context.Context, userID string, q SimilarityQuery) (*SimilarityResult, error) {
	if q.MinSimilarity <= 0 {
		q.MinSimilarity = e.tuning.SimilarityThreshold
	}
	if q.MaxK <= 0 {
		q.MaxK = e.tuning.SimilarityMaxK
	}
	logger := e.logger.With(zap.String("user_id", userID))

	self, err := e.Signals(ctx, userID)
	if err != nil {
		return nil, err
	}
	users, err := e.patterns.PatternUsers(ctx)
	if err != nil {
		return nil, upstream("pattern users", userID, err)
	}

	candidates := make([]string, 0, len(users))
	for _, u := range users {
		if u != userID {
			candidates = append(candidates, u)
		}
	}

	result := &SimilarityResult{UserID: userID, Candidates: len(candidates), Self: self}
	cancelled := func(remaining int) {
		for range remaining {
			e.metrics.ObserveCandidate(metrics.OutcomeCancelled)
		}
		result.Partial = true
		logger.Info("similarity search cancelled",
			zap.Int("scored", result.Scored),
			zap.Int("remaining", remaining),
			zap.Error(ctx.Err()),
		)
	}

	scored := make([]Similarity, 0, len(candidates))
	for i, candidate := range candidates {
		if ctx.Err() != nil {
			cancelled(len(candidates) - i)
			break
		}

		other, err := e.Signals(ctx, candidate)
		if err != nil {
			if ctx.Err() != nil {
				cancelled(len(candidates) - i)
				break
			}
			result.Skipped++
			e.metrics.ObserveCandidate(metrics.OutcomeSkipped)
			logger.Warn("similarity candidate skipped",
				zap.String("candidate", candidate),
				zap.Error(err),
			)
			continue
		}

		scored = append(scored, ScoreSimilarity(self, other, e.tuning))
		result.Scored++
		e.metrics.ObserveCandidate(metrics.OutcomeScored)
	}

	result.Matches = rankTopK(scored, q.MinSimilarity, q.MaxK)
	logger.Debug("similar users found",
		zap.Int("candidates", result.Candidates),
		zap.Int("matches", len(result.Matches)),
		zap.Bool("partial", result.Partial),
	)
	return result, nil
}
