package stride

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperengineering/stride/internal/logging"
	"github.com/hyperengineering/stride/internal/metrics"
	"github.com/hyperengineering/stride/internal/pool"
	"github.com/hyperengineering/stride/internal/store"
)

// Deps are the collaborators an Engine reads from and writes to.
// Profiles, Readiness and Clusters are optional.
type Deps struct {
	Activity        ActivitySource
	Profiles        ProfileSource
	Feedback        FeedbackLog
	Readiness       ReadinessProvider
	Patterns        PatternStore
	Preferences     PreferenceStore
	Recommendations RecommendationStore
	Clusters        ClusterStore
}

// StoreDeps wires every collaborator to s, with wearable-based readiness.
func StoreDeps(s *Store, t Tuning) Deps {
	return Deps{
		Activity:        s,
		Profiles:        s,
		Feedback:        s,
		Readiness:       NewWearableReadiness(s, t),
		Patterns:        s,
		Preferences:     s,
		Recommendations: s,
		Clusters:        s,
	}
}

func (d Deps) validate() error {
	required := []struct {
		name string
		set  bool
	}{
		{"Activity", d.Activity != nil},
		{"Feedback", d.Feedback != nil},
		{"Patterns", d.Patterns != nil},
		{"Preferences", d.Preferences != nil},
		{"Recommendations", d.Recommendations != nil},
	}
	for _, r := range required {
		if !r.set {
			return &ValidationError{Field: "Deps." + r.name, Message: "is required"}
		}
	}
	return nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the parent logger. Components log through named children.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTuning replaces the default heuristics. The zero Tuning keeps the defaults.
func WithTuning(t Tuning) Option {
	return func(e *Engine) { e.tuning = t.WithDefaults() }
}

// WithPool sizes the background analysis pool.
func WithPool(cfg pool.Config) Option {
	return func(e *Engine) { e.poolCfg = cfg }
}

// WithClock sets the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSimilarityTimeout bounds each similarity scan. Zero disables it.
func WithSimilarityTimeout(d time.Duration) Option {
	return func(e *Engine) { e.similarityTimeout = d }
}

// Engine mines activity into patterns, turns patterns into recommendations
// and learns from feedback.
type Engine struct {
	deps              Deps
	tuning            Tuning
	logger            *zap.Logger
	metrics           *metrics.Metrics
	poolCfg           pool.Config
	now               func() time.Time
	similarityTimeout time.Duration

	pool       *pool.Pool
	session    *Session
	feedback   *FeedbackLoop
	similarity *SimilarityEngine

	store     *Store
	closer    io.Closer
	closeOnce sync.Once
	closeErr  error
}

// NewEngine creates an engine over deps.
func NewEngine(deps Deps, opts ...Option) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		deps:    deps,
		tuning:  DefaultTuning(),
		logger:  logging.NewNop(),
		poolCfg: pool.DefaultConfig(),
		now:     time.Now,
		session: NewSession(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.tuning.Validate(); err != nil {
		return nil, err
	}

	e.pool = pool.New(e.poolCfg, e.logger.Named("pool"), func(_, outcome string) {
		e.metrics.ObserveTask(outcome)
	})
	e.feedback = NewFeedbackLoop(deps.Recommendations, deps.Feedback, deps.Preferences, e.tuning, e.logger.Named("feedback"), e.metrics)
	e.feedback.now = e.now
	e.similarity = NewSimilarityEngine(deps.Patterns, deps.Preferences, deps.Profiles, e.tuning, e.logger.Named("similarity"), e.metrics)
	return e, nil
}

// Open creates an engine backed by the SQLite store at cfg.DBPath.
func Open(cfg Config) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	s, err := NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e, err := NewEngine(StoreDeps(s, cfg.Tuning),
		WithLogger(logger),
		WithMetrics(metrics.New()),
		WithTuning(cfg.Tuning),
		WithPool(pool.Config{Workers: cfg.Workers, QueueSize: cfg.QueueSize}),
		WithSimilarityTimeout(cfg.SimilarityTimeout),
	)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	e.store = s
	e.closer = s
	return e, nil
}

// Store returns the SQLite store when the engine was created by Open.
func (e *Engine) Store() *Store { return e.store }

// Session returns the session tracking surfaced recommendations.
func (e *Engine) Session() *Session { return e.session }

// Metrics returns the engine's metrics, or nil.
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// Logger returns the engine's parent logger.
func (e *Engine) Logger() *zap.Logger { return e.logger }

// Tuning returns the heuristics in effect.
func (e *Engine) Tuning() Tuning { return e.tuning }

// PoolStats reports background analysis activity.
func (e *Engine) PoolStats() pool.Stats { return e.pool.Stats() }

func checkUserID(userID string) error {
	if err := store.ValidateUserID(userID); err != nil {
		return &ValidationError{Field: "user_id", Message: err.Error()}
	}
	return nil
}

// AnalysisReport is the outcome of one analysis run.
type AnalysisReport struct {
	UserID   string                 `json:"user_id"`
	Patterns []Pattern              `json:"patterns"`
	Skipped  map[PatternType]string `json:"skipped,omitempty"`
	Failed   map[PatternType]error  `json:"-"`
	// Queued lists pattern types handed to background workers.
	Queued []PatternType `json:"queued,omitempty"`
}

func newAnalysisReport(userID string) *AnalysisReport {
	return &AnalysisReport{
		UserID:   userID,
		Patterns: []Pattern{},
		Skipped:  make(map[PatternType]string),
		Failed:   make(map[PatternType]error),
	}
}

// FailureMessages returns the failed pattern types with their error text.
func (r *AnalysisReport) FailureMessages() map[PatternType]string {
	out := make(map[PatternType]string, len(r.Failed))
	for t, err := range r.Failed {
		out[t] = err.Error()
	}
	return out
}

// AnalyzeAll runs every extractor for userID concurrently and stores each
// pattern it produces. Insufficient history is reported in Skipped; read
// and write failures are isolated per pattern type and reported in Failed.
func (e *Engine) AnalyzeAll(ctx context.Context, userID string) (*AnalysisReport, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	return e.analyzeSet(ctx, userID, ValidPatternTypes()), ctx.Err()
}

// primaryPatternTypes are analyzed synchronously by AnalyzeWorkoutPatterns.
var primaryPatternTypes = []PatternType{PatternWorkoutPreference, PatternTiming}

// AnalyzeWorkoutPatterns runs the workout-preference and timing analyses,
// then queues the remaining analyses as background tasks. Background
// failures are logged and counted; they never reach the caller.
func (e *Engine) AnalyzeWorkoutPatterns(ctx context.Context, userID string) (*AnalysisReport, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	report := e.analyzeSet(ctx, userID, primaryPatternTypes)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for _, t := range ValidPatternTypes() {
		if t == PatternWorkoutPreference || t == PatternTiming {
			continue
		}
		task := func(ctx context.Context) error {
			_, err := e.analyze(ctx, userID, t)
			if IsInsufficientData(err) {
				return nil
			}
			return err
		}
		if e.pool.Submit(fmt.Sprintf("analyze %s %s", t, userID), task) {
			report.Queued = append(report.Queued, t)
		}
	}
	return report, nil
}

func (e *Engine) analyzeSet(ctx context.Context, userID string, types []PatternType) *AnalysisReport {
	report := newAnalysisReport(userID)
	var mu sync.Mutex

	var g errgroup.Group
	for _, t := range types {
		g.Go(func() error {
			p, err := e.analyze(ctx, userID, t)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Patterns = append(report.Patterns, p)
			case IsInsufficientData(err):
				report.Skipped[t] = err.Error()
			default:
				report.Failed[t] = err
			}
			// Failures are isolated per pattern type.
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(report.Patterns, func(i, j int) bool {
		return report.Patterns[i].Type < report.Patterns[j].Type
	})
	return report
}

// analyze runs one extractor and stores its pattern.
func (e *Engine) analyze(ctx context.Context, userID string, t PatternType) (Pattern, error) {
	logger := e.logger.Named("extract").With(zap.String("user_id", userID), zap.String("pattern_type", string(t)))

	p, err := e.extract(ctx, userID, t)
	if err != nil {
		if IsInsufficientData(err) {
			e.metrics.ObserveExtractor(string(t), metrics.OutcomeInsufficient)
			logger.Debug("analysis skipped", zap.Error(err))
			return Pattern{}, err
		}
		e.metrics.ObserveExtractor(string(t), metrics.OutcomeError)
		logger.Warn("analysis failed", zap.Error(err))
		return Pattern{}, err
	}

	p.UserID = userID
	p.LastUpdated = e.now().UTC()
	stored, err := e.deps.Patterns.UpsertPattern(ctx, p)
	if err != nil {
		err = persistence("upsert pattern", err)
		e.metrics.ObserveExtractor(string(t), metrics.OutcomeError)
		logger.Warn("pattern not stored", zap.Error(err))
		return Pattern{}, err
	}

	e.metrics.ObserveExtractor(string(t), metrics.OutcomeOK)
	logger.Debug("pattern stored", zap.Float64("confidence", stored.Confidence))
	return stored, nil
}

// extract reads the history one pattern type needs and runs its extractor.
func (e *Engine) extract(ctx context.Context, userID string, t PatternType) (Pattern, error) {
	recent := ActivityQuery{Newest: true, Limit: e.tuning.HistoryLimit}

	switch t {
	case PatternWorkoutPreference, PatternTiming, PatternIntensityResponse:
		workouts, err := e.deps.Activity.Workouts(ctx, userID, recent)
		if err != nil {
			return Pattern{}, upstream("workouts", userID, err)
		}
		switch t {
		case PatternWorkoutPreference:
			return ExtractWorkoutPreference(workouts, e.tuning)
		case PatternTiming:
			return ExtractTiming(workouts, e.tuning)
		default:
			return ExtractIntensityResponse(workouts, e.tuning)
		}

	case PatternProgression, PatternStagnation:
		logs, err := e.deps.Activity.ExerciseLogs(ctx, userID, recent)
		if err != nil {
			return Pattern{}, upstream("exercise logs", userID, err)
		}
		if t == PatternProgression {
			return ExtractProgression(logs, e.tuning)
		}
		return ExtractStagnation(logs, e.tuning)

	case PatternMoodCorrelation:
		workouts, err := e.deps.Activity.Workouts(ctx, userID, recent)
		if err != nil {
			return Pattern{}, upstream("workouts", userID, err)
		}
		moods, err := e.deps.Activity.Moods(ctx, userID, recent)
		if err != nil {
			return Pattern{}, upstream("moods", userID, err)
		}
		return ExtractMoodCorrelation(workouts, moods, e.tuning)

	case PatternRecovery:
		summaries, err := e.deps.Activity.WearableSummaries(ctx, userID, e.tuning.RecoveryWindow)
		if err != nil {
			return Pattern{}, upstream("wearable summaries", userID, err)
		}
		return ExtractRecovery(summaries, e.tuning)
	}
	return Pattern{}, &ValidationError{Field: "pattern_type", Message: fmt.Sprintf("unknown pattern type %q", t)}
}

// SynthesisOptions selects the optional signals a synthesis run consults.
type SynthesisOptions struct {
	IncludeReadiness bool
	IncludePeers     bool
}

// RecommendationSet is a list of recommendations with their session refs.
type RecommendationSet struct {
	UserID          string           `json:"user_id"`
	Recommendations []Recommendation `json:"recommendations"`
	// SessionRefs maps R1, R2, ... to recommendation IDs.
	SessionRefs map[string]string    `json:"session_refs"`
	Readiness   *Readiness           `json:"readiness,omitempty"`
	Peers       []PeerRecommendation `json:"peers,omitempty"`
}

func (e *Engine) track(set *RecommendationSet) {
	set.SessionRefs = make(map[string]string, len(set.Recommendations))
	for _, r := range set.Recommendations {
		set.SessionRefs[e.session.Track(r.ID)] = r.ID
	}
}

// GenerateRecommendations synthesizes and stores new recommendations from
// the user's current patterns, deriving them first when the user has none.
// Readiness and peer signals are consulted when requested; a failure to
// read either is logged and the run continues without it. A user without
// enough history gets an empty set, not an error.
func (e *Engine) GenerateRecommendations(ctx context.Context, userID string, opts SynthesisOptions) (*RecommendationSet, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	start := time.Now()
	logger := e.logger.Named("synthesize").With(zap.String("user_id", userID))

	patterns, err := e.deps.Patterns.Patterns(ctx, userID)
	if err != nil {
		return nil, upstream("patterns", userID, err)
	}
	if len(patterns) == 0 {
		report, err := e.AnalyzeAll(ctx, userID)
		if err != nil {
			return nil, err
		}
		patterns = report.Patterns
	}

	in := SynthesisInput{UserID: userID, Patterns: patterns}
	set := &RecommendationSet{UserID: userID}

	if opts.IncludeReadiness && e.deps.Readiness != nil {
		r, err := e.deps.Readiness.IsReadyToTrain(ctx, userID)
		if err != nil {
			logger.Warn("readiness unavailable", zap.Error(err))
		} else {
			in.Readiness = &r
			set.Readiness = &r
		}
	}
	if opts.IncludePeers {
		peers, err := e.PeerRecommendations(ctx, userID)
		if err != nil {
			logger.Warn("peer recommendations unavailable", zap.Error(err))
		} else {
			in.Peers = peers
			set.Peers = peers
		}
	}

	recs := Synthesize(in, e.tuning, e.now().UTC())
	if len(recs) > 0 {
		if err := e.deps.Recommendations.InsertRecommendations(ctx, recs); err != nil {
			return nil, persistence("insert recommendations", err)
		}
	}
	for _, r := range recs {
		e.metrics.ObserveRecommendation(string(r.Type))
	}
	e.metrics.ObserveSynthesis(time.Since(start))
	logger.Info("recommendations generated",
		zap.Int("patterns", len(patterns)),
		zap.Int("recommendations", len(recs)),
	)

	set.Recommendations = recs
	if set.Recommendations == nil {
		set.Recommendations = []Recommendation{}
	}
	e.track(set)
	return set, nil
}

// ActiveRecommendations lists the user's active recommendations, newest
// first. limit <= 0 returns all of them.
func (e *Engine) ActiveRecommendations(ctx context.Context, userID string, limit int) (*RecommendationSet, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	recs, err := e.deps.Recommendations.Recommendations(ctx, userID, RecommendationFilter{ActiveOnly: true, Limit: limit})
	if err != nil {
		return nil, upstream("recommendations", userID, err)
	}
	if recs == nil {
		recs = []Recommendation{}
	}
	set := &RecommendationSet{UserID: userID, Recommendations: recs}
	e.track(set)
	return set, nil
}

// SubmitFeedback applies a rating. RecommendationID may be a session
// reference (R1, R2, ...) handed out by this engine.
func (e *Engine) SubmitFeedback(ctx context.Context, in FeedbackInput) (*FeedbackResult, error) {
	if IsSessionRef(in.RecommendationID) {
		id, ok := e.session.Resolve(in.RecommendationID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSessionRefNotFound, in.RecommendationID)
		}
		in.RecommendationID = id
	}
	return e.feedback.Submit(ctx, in)
}

// ReinforcePreferences retries the preference step of a rating.
func (e *Engine) ReinforcePreferences(ctx context.Context, userID string, data RecommendationData, rating int) ([]Preference, error) {
	return e.feedback.ReinforcePreferences(ctx, userID, data, rating)
}

// FindSimilarUsers searches for users similar to userID. With a similarity
// timeout configured, the scan stops at the deadline and returns a partial
// result.
func (e *Engine) FindSimilarUsers(ctx context.Context, userID string, q SimilarityQuery) (*SimilarityResult, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	if e.similarityTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.similarityTimeout)
		defer cancel()
	}
	return e.similarity.FindSimilarUsers(ctx, userID, q)
}

// PeerRecommendations suggests the favourite workout types of similar
// users that differ from the user's own.
func (e *Engine) PeerRecommendations(ctx context.Context, userID string) ([]PeerRecommendation, error) {
	res, err := e.FindSimilarUsers(ctx, userID, SimilarityQuery{})
	if err != nil {
		return nil, err
	}
	peers := make([]UserSignals, len(res.Matches))
	for i, m := range res.Matches {
		peers[i] = m.Signals
	}
	return PeerRecommendations(res.Self, peers), nil
}

// ClusterName is the name of the cluster built around userID.
func ClusterName(userID string) string {
	return "similar_to_" + userID
}

// BuildCluster groups userID with its similar users, finds their common
// patterns and stores the snapshot under ClusterName(userID), replacing any
// earlier one.
func (e *Engine) BuildCluster(ctx context.Context, userID string) (*Cluster, error) {
	res, err := e.FindSimilarUsers(ctx, userID, SimilarityQuery{})
	if err != nil {
		return nil, err
	}

	members := []UserSignals{res.Self}
	ids := []string{userID}
	for _, m := range res.Matches {
		members = append(members, m.Signals)
		ids = append(ids, m.UserID)
	}

	c := Cluster{
		Name:           ClusterName(userID),
		UserIDs:        ids,
		CommonPatterns: CommonPatterns(members, e.tuning),
		CreatedAt:      e.now().UTC(),
	}
	if e.deps.Clusters == nil {
		return &c, nil
	}
	stored, err := e.deps.Clusters.UpsertCluster(ctx, c)
	if err != nil {
		return nil, persistence("upsert cluster", err)
	}
	e.logger.Named("similarity").Info("cluster built",
		zap.String("user_id", userID),
		zap.String("cluster", stored.Name),
		zap.Int("members", len(stored.UserIDs)),
		zap.Int("common_patterns", len(stored.CommonPatterns)),
		zap.Bool("partial", res.Partial),
	)
	return &stored, nil
}

// Close drains background analyses and closes the store opened by Open.
// It is safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.pool.Close()
		if e.closer != nil {
			e.closeErr = e.closer.Close()
		}
		_ = e.logger.Sync()
	})
	if errors.Is(e.closeErr, ErrStoreClosed) {
		return nil
	}
	return e.closeErr
}
