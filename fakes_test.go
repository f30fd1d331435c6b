package stride_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hyperengineering/stride"
)

var errFake = errors.New("fake failure")

// fakeStore is an in-memory implementation of every collaborator interface.
// Errors are injected per operation, optionally scoped to one user:
// fail("Workouts", "") fails every call, fail("Workouts", "u2") only u2's.
type fakeStore struct {
	mu sync.Mutex

	workouts  map[string][]stride.Workout
	logs      map[string][]stride.ExerciseLog
	moods     map[string][]stride.MoodEntry
	wearables map[string][]stride.WearableSummary
	profiles  map[string]stride.Profile
	patterns  map[string]map[stride.PatternType]stride.Pattern
	prefs     map[stride.PreferenceKey]stride.Preference
	recs      map[string]stride.Recommendation
	feedback  []stride.Feedback
	clusters  map[string]stride.Cluster

	errs  map[string]error
	calls map[string]int
}

var (
	_ stride.ActivitySource      = (*fakeStore)(nil)
	_ stride.ProfileSource       = (*fakeStore)(nil)
	_ stride.FeedbackLog         = (*fakeStore)(nil)
	_ stride.PatternStore        = (*fakeStore)(nil)
	_ stride.PreferenceStore     = (*fakeStore)(nil)
	_ stride.RecommendationStore = (*fakeStore)(nil)
	_ stride.ClusterStore        = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		workouts:  map[string][]stride.Workout{},
		logs:      map[string][]stride.ExerciseLog{},
		moods:     map[string][]stride.MoodEntry{},
		wearables: map[string][]stride.WearableSummary{},
		profiles:  map[string]stride.Profile{},
		patterns:  map[string]map[stride.PatternType]stride.Pattern{},
		prefs:     map[stride.PreferenceKey]stride.Preference{},
		recs:      map[string]stride.Recommendation{},
		clusters:  map[string]stride.Cluster{},
		errs:      map[string]error{},
		calls:     map[string]int{},
	}
}

func (f *fakeStore) fail(op, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op
	if userID != "" {
		key = op + ":" + userID
	}
	f.errs[key] = errFake
}

// check records a call and returns the injected error, if any. Callers hold mu.
func (f *fakeStore) check(op, userID string) error {
	f.calls[op]++
	if err, ok := f.errs[op+":"+userID]; ok {
		return err
	}
	return f.errs[op]
}

func (f *fakeStore) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// --- activity ---

func (f *fakeStore) addWorkouts(ws ...stride.Workout) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range ws {
		f.workouts[w.UserID] = append(f.workouts[w.UserID], w)
	}
}

func (f *fakeStore) addLogs(ls ...stride.ExerciseLog) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range ls {
		f.logs[l.UserID] = append(f.logs[l.UserID], l)
	}
}

func (f *fakeStore) addMoods(ms ...stride.MoodEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range ms {
		f.moods[m.UserID] = append(f.moods[m.UserID], m)
	}
}

func (f *fakeStore) addWearables(ws ...stride.WearableSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range ws {
		f.wearables[w.UserID] = append(f.wearables[w.UserID], w)
	}
}

func (f *fakeStore) setProfile(p stride.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.UserID] = p
}

func window[T any](items []T, at func(T) time.Time, q stride.ActivityQuery) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !q.Since.IsZero() && at(it).Before(q.Since) {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.Newest {
			return at(out[i]).After(at(out[j]))
		}
		return at(out[i]).Before(at(out[j]))
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func (f *fakeStore) Workouts(_ context.Context, userID string, q stride.ActivityQuery) ([]stride.Workout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("Workouts", userID); err != nil {
		return nil, err
	}
	return window(f.workouts[userID], func(w stride.Workout) time.Time { return w.StartedAt }, q), nil
}

func (f *fakeStore) ExerciseLogs(_ context.Context, userID string, q stride.ActivityQuery) ([]stride.ExerciseLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("ExerciseLogs", userID); err != nil {
		return nil, err
	}
	return window(f.logs[userID], func(l stride.ExerciseLog) time.Time { return l.PerformedAt }, q), nil
}

func (f *fakeStore) Moods(_ context.Context, userID string, q stride.ActivityQuery) ([]stride.MoodEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("Moods", userID); err != nil {
		return nil, err
	}
	return window(f.moods[userID], func(m stride.MoodEntry) time.Time { return m.LoggedAt }, q), nil
}

func (f *fakeStore) WearableSummaries(_ context.Context, userID string, limit int) ([]stride.WearableSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("WearableSummaries", userID); err != nil {
		return nil, err
	}
	return window(f.wearables[userID], func(w stride.WearableSummary) time.Time { return w.Date },
		stride.ActivityQuery{Limit: limit, Newest: true}), nil
}

func (f *fakeStore) Profile(_ context.Context, userID string) (stride.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("Profile", userID); err != nil {
		return stride.Profile{}, err
	}
	p, ok := f.profiles[userID]
	if !ok {
		return stride.Profile{}, stride.ErrNotFound
	}
	return p, nil
}

// --- patterns ---

func (f *fakeStore) putPattern(p stride.Pattern) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.patterns[p.UserID] == nil {
		f.patterns[p.UserID] = map[stride.PatternType]stride.Pattern{}
	}
	f.patterns[p.UserID][p.Type] = p
}

func (f *fakeStore) UpsertPattern(_ context.Context, p stride.Pattern) (stride.Pattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("UpsertPattern", p.UserID); err != nil {
		return stride.Pattern{}, err
	}
	if f.patterns[p.UserID] == nil {
		f.patterns[p.UserID] = map[stride.PatternType]stride.Pattern{}
	}
	if old, ok := f.patterns[p.UserID][p.Type]; ok {
		p.ID = old.ID
	} else if p.ID == "" {
		p.ID = "pat-" + p.UserID + "-" + string(p.Type)
	}
	f.patterns[p.UserID][p.Type] = p
	return p, nil
}

func (f *fakeStore) Patterns(_ context.Context, userID string, types ...stride.PatternType) ([]stride.Pattern, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("Patterns", userID); err != nil {
		return nil, err
	}
	want := map[stride.PatternType]bool{}
	for _, t := range types {
		want[t] = true
	}
	var out []stride.Pattern
	for t, p := range f.patterns[userID] {
		if len(want) == 0 || want[t] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (f *fakeStore) PatternUsers(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("PatternUsers", ""); err != nil {
		return nil, err
	}
	var users []string
	for u, ps := range f.patterns {
		if len(ps) > 0 {
			users = append(users, u)
		}
	}
	sort.Strings(users)
	return users, nil
}

// --- preferences ---

func (f *fakeStore) putPreference(p stride.Preference) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefs[p.Key()] = p
}

func (f *fakeStore) AdjustPreference(_ context.Context, key stride.PreferenceKey, delta, initial float64) (stride.Preference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("AdjustPreference", key.UserID); err != nil {
		return stride.Preference{}, err
	}
	p, ok := f.prefs[key]
	if !ok {
		p = stride.Preference{UserID: key.UserID, Type: key.Type, Value: key.Value, Strength: initial}
	}
	p.Strength = min(max(p.Strength+delta, 0), 100)
	f.prefs[key] = p
	return p, nil
}

func (f *fakeStore) Preferences(_ context.Context, userID string) ([]stride.Preference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("Preferences", userID); err != nil {
		return nil, err
	}
	var out []stride.Preference
	for _, p := range f.prefs {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Value < out[j].Value
	})
	return out, nil
}

func (f *fakeStore) preference(userID string, t stride.PreferenceType, value string) (stride.Preference, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prefs[stride.PreferenceKey{UserID: userID, Type: t, Value: value}]
	return p, ok
}

// --- recommendations ---

func (f *fakeStore) InsertRecommendations(_ context.Context, recs []stride.Recommendation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID := ""
	if len(recs) > 0 {
		userID = recs[0].UserID
	}
	if err := f.check("InsertRecommendations", userID); err != nil {
		return err
	}
	for _, r := range recs {
		f.recs[r.ID] = r
	}
	return nil
}

func (f *fakeStore) Recommendation(_ context.Context, id string) (stride.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("Recommendation", ""); err != nil {
		return stride.Recommendation{}, err
	}
	r, ok := f.recs[id]
	if !ok {
		return stride.Recommendation{}, stride.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) UpdateRecommendation(_ context.Context, id string, u stride.RecommendationUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("UpdateRecommendation", ""); err != nil {
		return err
	}
	r, ok := f.recs[id]
	if !ok {
		return stride.ErrNotFound
	}
	r.Confidence = u.Confidence
	r.IsActive = u.IsActive
	r.FeedbackCount = u.FeedbackCount
	r.PositiveFeedbackRatio = u.PositiveFeedbackRatio
	f.recs[id] = r
	return nil
}

func (f *fakeStore) Recommendations(_ context.Context, userID string, filter stride.RecommendationFilter) ([]stride.Recommendation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("Recommendations", userID); err != nil {
		return nil, err
	}
	var out []stride.Recommendation
	for _, r := range f.recs {
		if r.UserID != userID || (filter.ActiveOnly && !r.IsActive) {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeStore) recommendation(id string) stride.Recommendation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recs[id]
}

// --- feedback ---

func (f *fakeStore) AppendFeedback(_ context.Context, fb stride.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("AppendFeedback", fb.UserID); err != nil {
		return err
	}
	f.feedback = append(f.feedback, fb)
	return nil
}

func (f *fakeStore) FeedbackFor(_ context.Context, recommendationID string) ([]stride.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("FeedbackFor", ""); err != nil {
		return nil, err
	}
	var out []stride.Feedback
	for _, fb := range f.feedback {
		if fb.RecommendationID == recommendationID {
			out = append(out, fb)
		}
	}
	return out, nil
}

// --- clusters ---

func (f *fakeStore) UpsertCluster(_ context.Context, c stride.Cluster) (stride.Cluster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("UpsertCluster", ""); err != nil {
		return stride.Cluster{}, err
	}
	if old, ok := f.clusters[c.Name]; ok {
		c.ID = old.ID
	} else if c.ID == "" {
		c.ID = "cluster-" + c.Name
	}
	f.clusters[c.Name] = c
	return c, nil
}

func (f *fakeStore) Cluster(_ context.Context, name string) (stride.Cluster, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("Cluster", ""); err != nil {
		return stride.Cluster{}, err
	}
	c, ok := f.clusters[name]
	if !ok {
		return stride.Cluster{}, stride.ErrNotFound
	}
	return c, nil
}

// fakeReadiness is a fixed ReadinessProvider.
type fakeReadiness struct {
	r   stride.Readiness
	err error
}

func (f fakeReadiness) IsReadyToTrain(context.Context, string) (stride.Readiness, error) {
	return f.r, f.err
}
