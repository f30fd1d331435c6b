package stride

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// ExportVersion is the current version of the export format.
const ExportVersion = "1.0"

// ActivityDocument is the JSON interchange format. Imports read the
// activity sections; exports also carry everything the engine derived.
type ActivityDocument struct {
	Version      string            `json:"version"`
	ExportedAt   time.Time         `json:"exported_at,omitempty"`
	UserID       string            `json:"user_id,omitempty"`
	Profiles     []Profile         `json:"profiles,omitempty"`
	Workouts     []Workout         `json:"workouts,omitempty"`
	ExerciseLogs []ExerciseLog     `json:"exercise_logs,omitempty"`
	Moods        []MoodEntry       `json:"moods,omitempty"`
	Wearables    []WearableSummary `json:"wearables,omitempty"`

	Patterns        []Pattern        `json:"patterns,omitempty"`
	Preferences     []Preference     `json:"preferences,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Feedback        []Feedback       `json:"feedback,omitempty"`
}

// ImportResult summarizes an import operation.
type ImportResult struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// ExportUserJSON writes every record held for userID as one ActivityDocument.
func (s *Store) ExportUserJSON(ctx context.Context, userID string, w io.Writer) error {
	doc, err := s.exportUser(ctx, userID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

func (s *Store) exportUser(ctx context.Context, userID string) (*ActivityDocument, error) {
	doc := &ActivityDocument{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		UserID:     userID,
	}

	profile, err := s.Profile(ctx, userID)
	switch {
	case err == nil:
		doc.Profiles = []Profile{profile}
	case !errors.Is(err, ErrNotFound):
		return nil, fmt.Errorf("export profile: %w", err)
	}

	all := ActivityQuery{}
	if doc.Workouts, err = s.Workouts(ctx, userID, all); err != nil {
		return nil, fmt.Errorf("export workouts: %w", err)
	}
	if doc.ExerciseLogs, err = s.ExerciseLogs(ctx, userID, all); err != nil {
		return nil, fmt.Errorf("export exercise logs: %w", err)
	}
	if doc.Moods, err = s.Moods(ctx, userID, all); err != nil {
		return nil, fmt.Errorf("export moods: %w", err)
	}
	if doc.Wearables, err = s.WearableSummaries(ctx, userID, 0); err != nil {
		return nil, fmt.Errorf("export wearables: %w", err)
	}
	if doc.Patterns, err = s.Patterns(ctx, userID); err != nil {
		return nil, fmt.Errorf("export patterns: %w", err)
	}
	if doc.Preferences, err = s.Preferences(ctx, userID); err != nil {
		return nil, fmt.Errorf("export preferences: %w", err)
	}
	if doc.Recommendations, err = s.Recommendations(ctx, userID, RecommendationFilter{}); err != nil {
		return nil, fmt.Errorf("export recommendations: %w", err)
	}
	if doc.Feedback, err = s.UserFeedback(ctx, userID); err != nil {
		return nil, fmt.Errorf("export feedback: %w", err)
	}
	return doc, nil
}

// ExportSQLite copies the database to destPath after checkpointing the WAL.
func (s *Store) ExportSQLite(ctx context.Context, destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint WAL: %w", err)
	}

	src, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("copy database: %w", err)
	}
	return dst.Sync()
}
