package stride

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"
)

// UpsertPattern atomically replaces the pattern for (p.UserID, p.Type).
// The first write assigns the id; later writes keep it.
func (s *Store) UpsertPattern(ctx context.Context, p Pattern) (Pattern, error) {
	if !p.Type.IsValid() {
		return Pattern{}, &ValidationError{Field: "pattern_type", Message: fmt.Sprintf("unknown pattern type %q", p.Type)}
	}
	if p.Data != nil && p.Data.PatternType() != p.Type {
		return Pattern{}, &ValidationError{Field: "pattern_data", Message: fmt.Sprintf("payload is %s, pattern is %s", p.Data.PatternType(), p.Type)}
	}

	data, err := encodeData(p.Data)
	if err != nil {
		return Pattern{}, fmt.Errorf("store: encode pattern data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Pattern{}, ErrStoreClosed
	}

	if p.LastUpdated.IsZero() {
		p.LastUpdated = time.Now().UTC()
	}
	p.Confidence = clamp(p.Confidence, 0, 100)

	var id string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO patterns (id, user_id, pattern_type, pattern_data, confidence, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, pattern_type) DO UPDATE SET
			pattern_data = excluded.pattern_data,
			confidence = excluded.confidence,
			last_updated = excluded.last_updated
		RETURNING id
	`,
		ulid.Make().String(),
		p.UserID,
		string(p.Type),
		data,
		p.Confidence,
		formatTime(p.LastUpdated),
	).Scan(&id)
	if err != nil {
		return Pattern{}, persistence("upsert pattern", err)
	}
	p.ID = id
	return p, nil
}

// Patterns returns the user's current patterns ordered by pattern type.
func (s *Store) Patterns(ctx context.Context, userID string, types ...PatternType) ([]Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `SELECT id, user_id, pattern_type, pattern_data, confidence, last_updated
		FROM patterns WHERE user_id = ?`
	args := []any{userID}
	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " AND pattern_type IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY pattern_type"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query patterns: %w", err)
	}
	defer rows.Close()

	var result []Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// PatternUsers lists every user holding at least one pattern, sorted.
func (s *Store) PatternUsers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT user_id FROM patterns ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("store: query pattern users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan pattern user: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func scanPattern(sc scanner) (*Pattern, error) {
	var (
		p           Pattern
		patternType string
		data        string
		lastUpdated string
	)
	if err := sc.Scan(&p.ID, &p.UserID, &patternType, &data, &p.Confidence, &lastUpdated); err != nil {
		return nil, fmt.Errorf("store: scan pattern: %w", err)
	}
	p.Type = PatternType(patternType)
	p.LastUpdated = parseTime(lastUpdated)
	if data != "null" {
		decoded, err := DecodePatternData(p.Type, []byte(data))
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		p.Data = decoded
	}
	return &p, nil
}

// AdjustPreference adds delta to the preference's strength in a single
// statement, creating it at initial+delta. Strength is clamped to [0, 100].
func (s *Store) AdjustPreference(ctx context.Context, key PreferenceKey, delta, initial float64) (Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Preference{}, ErrStoreClosed
	}

	now := formatTime(time.Now().UTC())
	var (
		strength  float64
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO preferences (user_id, preference_type, preference_value, strength, updated_at)
		VALUES (?, ?, ?, MIN(MAX(? + ?, 0), 100), ?)
		ON CONFLICT(user_id, preference_type, preference_value) DO UPDATE SET
			strength = MIN(MAX(preferences.strength + ?, 0), 100),
			updated_at = excluded.updated_at
		RETURNING strength, updated_at
	`,
		key.UserID, string(key.Type), key.Value, initial, delta, now,
		delta,
	).Scan(&strength, &updatedAt)
	if err != nil {
		return Preference{}, persistence("adjust preference", err)
	}

	return Preference{
		UserID:    key.UserID,
		Type:      key.Type,
		Value:     key.Value,
		Strength:  strength,
		UpdatedAt: parseTime(updatedAt),
	}, nil
}

// Preferences returns the user's preferences ordered by type and value.
func (s *Store) Preferences(ctx context.Context, userID string) ([]Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, preference_type, preference_value, strength, updated_at
		FROM preferences WHERE user_id = ?
		ORDER BY preference_type, preference_value
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("store: query preferences: %w", err)
	}
	defer rows.Close()

	var result []Preference
	for rows.Next() {
		var (
			p         Preference
			prefType  string
			updatedAt string
		)
		if err := rows.Scan(&p.UserID, &prefType, &p.Value, &p.Strength, &updatedAt); err != nil {
			return nil, fmt.Errorf("store: scan preference: %w", err)
		}
		p.Type = PreferenceType(prefType)
		p.UpdatedAt = parseTime(updatedAt)
		result = append(result, p)
	}
	return result, rows.Err()
}

// InsertRecommendations stores all recommendations in one transaction.
func (s *Store) InsertRecommendations(ctx context.Context, recs []Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence("begin transaction", err)
	}
	defer tx.Rollback() // no-op if committed

	for _, r := range recs {
		data, err := encodeData(r.Data)
		if err != nil {
			return fmt.Errorf("store: encode recommendation data: %w", err)
		}
		used := r.PatternsUsed
		if used == nil {
			used = []string{}
		}
		usedJSON, err := json.Marshal(used)
		if err != nil {
			return fmt.Errorf("store: encode patterns used: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO recommendations (id, user_id, title, description, recommendation_type,
				recommendation_data, confidence, reasoning, patterns_used, source, is_active,
				feedback_count, positive_feedback_ratio, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.ID,
			r.UserID,
			r.Title,
			r.Description,
			string(r.Type),
			data,
			clamp(r.Confidence, 0, 100),
			r.Reasoning,
			string(usedJSON),
			r.Source,
			boolToInt(r.IsActive),
			r.FeedbackCount,
			r.PositiveFeedbackRatio,
			formatTime(r.CreatedAt),
			formatTime(r.UpdatedAt),
		)
		if err != nil {
			return persistence("insert recommendation", err)
		}
	}

	return persistence("commit recommendations", tx.Commit())
}

const recommendationColumns = `id, user_id, title, description, recommendation_type,
	recommendation_data, confidence, reasoning, patterns_used, source, is_active,
	feedback_count, positive_feedback_ratio, created_at, updated_at`

// Recommendation returns a recommendation by id or ErrNotFound.
func (s *Store) Recommendation(ctx context.Context, id string) (Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Recommendation{}, ErrStoreClosed
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+recommendationColumns+" FROM recommendations WHERE id = ?", id)
	r, err := scanRecommendation(row)
	if err != nil {
		return Recommendation{}, err
	}
	return *r, nil
}

// UpdateRecommendation writes the feedback-derived fields of a recommendation.
func (s *Store) UpdateRecommendation(ctx context.Context, id string, u RecommendationUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE recommendations
		SET confidence = ?, is_active = ?, feedback_count = ?, positive_feedback_ratio = ?, updated_at = ?
		WHERE id = ?
	`,
		clamp(u.Confidence, 0, 100),
		boolToInt(u.IsActive),
		u.FeedbackCount,
		u.PositiveFeedbackRatio,
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return persistence("update recommendation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Recommendations returns the user's recommendations, newest first and by
// confidence within one synthesis run.
func (s *Store) Recommendations(ctx context.Context, userID string, f RecommendationFilter) ([]Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := "SELECT " + recommendationColumns + " FROM recommendations WHERE user_id = ?"
	args := []any{userID}
	if f.ActiveOnly {
		query += " AND is_active = 1"
	}
	if f.Type != "" {
		query += " AND recommendation_type = ?"
		args = append(args, string(f.Type))
	}
	query += " ORDER BY created_at DESC, confidence DESC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query recommendations: %w", err)
	}
	defer rows.Close()

	var result []Recommendation
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// scanRecommendation returns ErrNotFound only for sql.ErrNoRows from *sql.Row.
func scanRecommendation(sc scanner) (*Recommendation, error) {
	var (
		r         Recommendation
		recType   string
		data      string
		used      string
		isActive  int
		createdAt string
		updatedAt string
	)
	err := sc.Scan(
		&r.ID,
		&r.UserID,
		&r.Title,
		&r.Description,
		&recType,
		&data,
		&r.Confidence,
		&r.Reasoning,
		&used,
		&r.Source,
		&isActive,
		&r.FeedbackCount,
		&r.PositiveFeedbackRatio,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan recommendation: %w", err)
	}

	r.Type = RecommendationType(recType)
	r.IsActive = isActive != 0
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(used), &r.PatternsUsed); err != nil {
		return nil, fmt.Errorf("store: decode patterns used: %w", err)
	}
	if data != "null" {
		decoded, err := DecodeRecommendationData(r.Type, []byte(data))
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		r.Data = decoded
	}
	return &r, nil
}

// AppendFeedback appends one immutable feedback record.
func (s *Store) AppendFeedback(ctx context.Context, fb Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, user_id, recommendation_id, rating, text, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fb.ID, fb.UserID, fb.RecommendationID, fb.Rating, nullString(fb.Text), formatTime(fb.CreatedAt))
	return persistence("append feedback", err)
}

// FeedbackFor returns every rating of the recommendation, oldest first.
func (s *Store) FeedbackFor(ctx context.Context, recommendationID string) ([]Feedback, error) {
	return s.queryFeedback(ctx, "recommendation_id = ?", recommendationID)
}

// UserFeedback returns every rating the user has submitted, oldest first.
func (s *Store) UserFeedback(ctx context.Context, userID string) ([]Feedback, error) {
	return s.queryFeedback(ctx, "user_id = ?", userID)
}

func (s *Store) queryFeedback(ctx context.Context, cond string, arg any) ([]Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, recommendation_id, rating, text, created_at
		FROM feedback WHERE `+cond+` ORDER BY created_at, id`, arg)
	if err != nil {
		return nil, fmt.Errorf("store: query feedback: %w", err)
	}
	defer rows.Close()

	var result []Feedback
	for rows.Next() {
		var (
			fb        Feedback
			text      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.RecommendationID, &fb.Rating, &text, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan feedback: %w", err)
		}
		fb.Text = text.String
		fb.CreatedAt = parseTime(createdAt)
		result = append(result, fb)
	}
	return result, rows.Err()
}

// UpsertCluster replaces the cluster snapshot with the same name.
func (s *Store) UpsertCluster(ctx context.Context, c Cluster) (Cluster, error) {
	userIDs, err := json.Marshal(c.UserIDs)
	if err != nil {
		return Cluster{}, fmt.Errorf("store: encode cluster users: %w", err)
	}
	common := c.CommonPatterns
	if common == nil {
		common = []CommonPattern{}
	}
	commonJSON, err := json.Marshal(common)
	if err != nil {
		return Cluster{}, fmt.Errorf("store: encode common patterns: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Cluster{}, ErrStoreClosed
	}

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	var id string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO clusters (id, cluster_name, user_ids, common_patterns, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cluster_name) DO UPDATE SET
			user_ids = excluded.user_ids,
			common_patterns = excluded.common_patterns,
			created_at = excluded.created_at
		RETURNING id
	`, ulid.Make().String(), c.Name, string(userIDs), string(commonJSON), formatTime(c.CreatedAt)).Scan(&id)
	if err != nil {
		return Cluster{}, persistence("upsert cluster", err)
	}
	c.ID = id
	return c, nil
}

// Cluster returns a cluster snapshot by name or ErrNotFound.
func (s *Store) Cluster(ctx context.Context, name string) (Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Cluster{}, ErrStoreClosed
	}

	var (
		c         Cluster
		userIDs   string
		common    string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, cluster_name, user_ids, common_patterns, created_at
		FROM clusters WHERE cluster_name = ?
	`, name).Scan(&c.ID, &c.Name, &userIDs, &common, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Cluster{}, ErrNotFound
	}
	if err != nil {
		return Cluster{}, fmt.Errorf("store: query cluster: %w", err)
	}
	if err := json.Unmarshal([]byte(userIDs), &c.UserIDs); err != nil {
		return Cluster{}, fmt.Errorf("store: decode cluster users: %w", err)
	}
	if err := json.Unmarshal([]byte(common), &c.CommonPatterns); err != nil {
		return Cluster{}, fmt.Errorf("store: decode common patterns: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}
