package stride

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// importSection decodes and writes one record of a section.
type importSection func(ctx context.Context, dec *json.Decoder, dryRun bool) error

// ImportActivityJSON reads an ActivityDocument from r and upserts its
// profiles, workouts, exercise logs, moods and wearable summaries. Derived
// sections (patterns, recommendations, ...) are ignored; they are rebuilt
// by analysis.
//
// The document is streamed one record at a time. A record that fails to
// decode or validate is skipped and reported in Errors; a write failure
// aborts the import. With dryRun set, records are validated but not written.
func (s *Store) ImportActivityJSON(ctx context.Context, r io.Reader, dryRun bool) (*ImportResult, error) {
	dec := json.NewDecoder(r)
	result := &ImportResult{}

	token, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read opening token: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected opening brace, got %v", token)
	}

	sections := map[string]importSection{
		"profiles": importRecord(result, func(ctx context.Context, p Profile) error {
			return s.UpsertProfile(ctx, p)
		}),
		"workouts": importRecord(result, func(ctx context.Context, w Workout) error {
			_, err := s.UpsertWorkout(ctx, w)
			return err
		}),
		"exercise_logs": importRecord(result, func(ctx context.Context, e ExerciseLog) error {
			_, err := s.UpsertExerciseLog(ctx, e)
			return err
		}),
		"moods": importRecord(result, func(ctx context.Context, m MoodEntry) error {
			_, err := s.UpsertMood(ctx, m)
			return err
		}),
		"wearables": importRecord(result, func(ctx context.Context, w WearableSummary) error {
			return s.UpsertWearableSummary(ctx, w)
		}),
	}

	var version string
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		token, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read field name: %w", err)
		}
		field, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("expected field name, got %v", token)
		}

		if field == "version" {
			if err := dec.Decode(&version); err != nil {
				return nil, fmt.Errorf("decode version: %w", err)
			}
			if version != ExportVersion {
				return nil, fmt.Errorf("unsupported export version %q (expected %q)", version, ExportVersion)
			}
			continue
		}

		section, known := sections[field]
		if !known {
			var discard any
			if err := dec.Decode(&discard); err != nil {
				return nil, fmt.Errorf("decode %s: %w", field, err)
			}
			continue
		}
		if err := importArray(ctx, dec, field, section, dryRun); err != nil {
			return result, fmt.Errorf("import %s: %w", field, err)
		}
	}

	if version == "" {
		return nil, fmt.Errorf("missing version field in import file")
	}
	return result, nil
}

func importArray(ctx context.Context, dec *json.Decoder, field string, section importSection, dryRun bool) error {
	token, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read array start: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("expected %s array, got %v", field, token)
	}

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := section(ctx, dec, dryRun); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read array end: %w", err)
	}
	return nil
}

// importRecord builds a section that decodes one T, validates it and hands
// it to write.
func importRecord[T any](result *ImportResult, write func(context.Context, T) error) importSection {
	return func(ctx context.Context, dec *json.Decoder, dryRun bool) error {
		result.Total++

		// A malformed value leaves the stream unreadable; a well-formed
		// value of the wrong shape only costs its own record.
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode record %d: %w", result.Total, err)
		}

		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", result.Total, err))
			return nil
		}
		if err := validateStruct(rec); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", result.Total, err))
			return nil
		}

		if !dryRun {
			if err := write(ctx, rec); err != nil {
				return err
			}
		}
		result.Created++
		return nil
	}
}
