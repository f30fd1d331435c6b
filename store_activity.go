package stride

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

const wearableDateLayout = "2006-01-02"

// UpsertWorkout inserts or replaces a workout by id.
func (s *Store) UpsertWorkout(ctx context.Context, w Workout) (Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Workout{}, ErrStoreClosed
	}
	if w.ID == "" {
		w.ID = ulid.Make().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workouts (id, user_id, type, started_at, started_unix, duration_minutes,
			intensity, performance_score, recovery_hours, mood_impact)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			type = excluded.type,
			started_at = excluded.started_at,
			started_unix = excluded.started_unix,
			duration_minutes = excluded.duration_minutes,
			intensity = excluded.intensity,
			performance_score = excluded.performance_score,
			recovery_hours = excluded.recovery_hours,
			mood_impact = excluded.mood_impact
	`,
		w.ID,
		w.UserID,
		w.Type,
		formatTime(w.StartedAt),
		w.StartedAt.Unix(),
		w.DurationMinutes,
		nullString(string(w.Intensity)),
		w.PerformanceScore,
		w.RecoveryHours,
		w.MoodImpact,
	)
	if err != nil {
		return Workout{}, persistence("upsert workout", err)
	}
	return w, nil
}

// UpsertExerciseLog inserts or replaces an exercise log by id.
func (s *Store) UpsertExerciseLog(ctx context.Context, e ExerciseLog) (ExerciseLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ExerciseLog{}, ErrStoreClosed
	}
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exercise_logs (id, user_id, workout_id, exercise, weight, reps, performed_at, performed_unix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			workout_id = excluded.workout_id,
			exercise = excluded.exercise,
			weight = excluded.weight,
			reps = excluded.reps,
			performed_at = excluded.performed_at,
			performed_unix = excluded.performed_unix
	`,
		e.ID,
		e.UserID,
		nullString(e.WorkoutID),
		e.Exercise,
		e.Weight,
		e.Reps,
		formatTime(e.PerformedAt),
		e.PerformedAt.Unix(),
	)
	if err != nil {
		return ExerciseLog{}, persistence("upsert exercise log", err)
	}
	return e, nil
}

// UpsertMood inserts or replaces a mood entry by id.
func (s *Store) UpsertMood(ctx context.Context, m MoodEntry) (MoodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return MoodEntry{}, ErrStoreClosed
	}
	if m.ID == "" {
		m.ID = ulid.Make().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moods (id, user_id, score, logged_at, logged_unix)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			score = excluded.score,
			logged_at = excluded.logged_at,
			logged_unix = excluded.logged_unix
	`, m.ID, m.UserID, m.Score, formatTime(m.LoggedAt), m.LoggedAt.Unix())
	if err != nil {
		return MoodEntry{}, persistence("upsert mood", err)
	}
	return m, nil
}

// UpsertWearableSummary inserts or replaces the summary for (user, date).
func (s *Store) UpsertWearableSummary(ctx context.Context, w WearableSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wearable_summaries (user_id, date, sleep_minutes, resting_heart_rate, hrv, steps)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			sleep_minutes = excluded.sleep_minutes,
			resting_heart_rate = excluded.resting_heart_rate,
			hrv = excluded.hrv,
			steps = excluded.steps
	`, w.UserID, w.Date.Format(wearableDateLayout), w.SleepMinutes, w.RestingHeartRate, w.HRV, w.Steps)
	return persistence("upsert wearable summary", err)
}

// UpsertProfile inserts or replaces a user's profile.
func (s *Store) UpsertProfile(ctx context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, level, goal, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			level = excluded.level,
			goal = excluded.goal,
			updated_at = excluded.updated_at
	`, p.UserID, nullString(p.Level), nullString(p.Goal), formatTime(time.Now().UTC()))
	return persistence("upsert profile", err)
}

// Workouts returns the user's workouts ordered by start time.
func (s *Store) Workouts(ctx context.Context, userID string, q ActivityQuery) ([]Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	where, order, args := activityClauses(userID, "started_unix", q)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, started_at, duration_minutes, intensity,
			performance_score, recovery_hours, mood_impact
		FROM workouts`+where+order, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query workouts: %w", err)
	}
	defer rows.Close()

	var result []Workout
	for rows.Next() {
		var (
			w         Workout
			startedAt string
			intensity sql.NullString
			perf      sql.NullFloat64
			recovery  sql.NullFloat64
			mood      sql.NullFloat64
		)
		if err := rows.Scan(&w.ID, &w.UserID, &w.Type, &startedAt, &w.DurationMinutes,
			&intensity, &perf, &recovery, &mood); err != nil {
			return nil, fmt.Errorf("store: scan workout: %w", err)
		}
		w.StartedAt = parseTime(startedAt)
		w.Intensity = IntensityLevel(intensity.String)
		w.PerformanceScore = floatPtr(perf)
		w.RecoveryHours = floatPtr(recovery)
		w.MoodImpact = floatPtr(mood)
		result = append(result, w)
	}
	return result, rows.Err()
}

// ExerciseLogs returns the user's exercise logs ordered by time performed.
func (s *Store) ExerciseLogs(ctx context.Context, userID string, q ActivityQuery) ([]ExerciseLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	where, order, args := activityClauses(userID, "performed_unix", q)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, workout_id, exercise, weight, reps, performed_at
		FROM exercise_logs`+where+order, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query exercise logs: %w", err)
	}
	defer rows.Close()

	var result []ExerciseLog
	for rows.Next() {
		var (
			e           ExerciseLog
			workoutID   sql.NullString
			performedAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &workoutID, &e.Exercise, &e.Weight, &e.Reps, &performedAt); err != nil {
			return nil, fmt.Errorf("store: scan exercise log: %w", err)
		}
		e.WorkoutID = workoutID.String
		e.PerformedAt = parseTime(performedAt)
		result = append(result, e)
	}
	return result, rows.Err()
}

// Moods returns the user's mood entries ordered by time logged.
func (s *Store) Moods(ctx context.Context, userID string, q ActivityQuery) ([]MoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	where, order, args := activityClauses(userID, "logged_unix", q)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, score, logged_at FROM moods`+where+order, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query moods: %w", err)
	}
	defer rows.Close()

	var result []MoodEntry
	for rows.Next() {
		var (
			m        MoodEntry
			loggedAt string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Score, &loggedAt); err != nil {
			return nil, fmt.Errorf("store: scan mood: %w", err)
		}
		m.LoggedAt = parseTime(loggedAt)
		result = append(result, m)
	}
	return result, rows.Err()
}

// WearableSummaries returns up to limit summaries, most recent first.
// A non-positive limit returns every summary.
func (s *Store) WearableSummaries(ctx context.Context, userID string, limit int) ([]WearableSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT user_id, date, sleep_minutes, resting_heart_rate, hrv, steps
		FROM wearable_summaries WHERE user_id = ? ORDER BY date DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query wearable summaries: %w", err)
	}
	defer rows.Close()

	var result []WearableSummary
	for rows.Next() {
		var (
			w    WearableSummary
			date string
		)
		if err := rows.Scan(&w.UserID, &date, &w.SleepMinutes, &w.RestingHeartRate, &w.HRV, &w.Steps); err != nil {
			return nil, fmt.Errorf("store: scan wearable summary: %w", err)
		}
		w.Date, _ = time.Parse(wearableDateLayout, date)
		result = append(result, w)
	}
	return result, rows.Err()
}

// Profile returns the user's profile or ErrNotFound.
func (s *Store) Profile(ctx context.Context, userID string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Profile{}, ErrStoreClosed
	}

	var level, goal sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT level, goal FROM profiles WHERE user_id = ?", userID,
	).Scan(&level, &goal)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("store: query profile: %w", err)
	}
	return Profile{UserID: userID, Level: level.String, Goal: goal.String}, nil
}

func activityClauses(userID, unixCol string, q ActivityQuery) (where, order string, args []any) {
	where = " WHERE user_id = ?"
	args = []any{userID}
	if !q.Since.IsZero() {
		where += " AND " + unixCol + " >= ?"
		args = append(args, q.Since.Unix())
	}

	order = " ORDER BY " + unixCol + " ASC, id ASC"
	if q.Newest {
		order = " ORDER BY " + unixCol + " DESC, id DESC"
	}
	if q.Limit > 0 {
		order += " LIMIT ?"
		args = append(args, q.Limit)
	}
	return where, order, args
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
