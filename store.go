package stride

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/hyperengineering/stride/internal/store/migrations"
)

const schemaVersion = "2"

// Store is the SQLite-backed implementation of every collaborator interface:
// activity history, profiles, feedback log and the pattern, preference,
// recommendation and cluster stores.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

var (
	_ ActivitySource      = (*Store)(nil)
	_ ProfileSource       = (*Store)(nil)
	_ FeedbackLog         = (*Store)(nil)
	_ PatternStore        = (*Store)(nil)
	_ PreferenceStore     = (*Store)(nil)
	_ RecommendationStore = (*Store)(nil)
	_ ClusterStore        = (*Store)(nil)
)

// NewStore opens or creates a store at path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, schemaVersion)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Stats returns store statistics.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	stats := &StoreStats{}
	counts := []struct {
		dest  *int
		query string
	}{
		{&stats.Users, `
			SELECT COUNT(*) FROM (
				SELECT user_id FROM profiles
				UNION SELECT user_id FROM workouts
				UNION SELECT user_id FROM patterns
			)`},
		{&stats.Workouts, "SELECT COUNT(*) FROM workouts"},
		{&stats.Patterns, "SELECT COUNT(*) FROM patterns"},
		{&stats.ActiveRecommendations, "SELECT COUNT(*) FROM recommendations WHERE is_active = 1"},
		{&stats.Feedback, "SELECT COUNT(*) FROM feedback"},
		{&stats.Preferences, "SELECT COUNT(*) FROM preferences"},
		{&stats.Clusters, "SELECT COUNT(*) FROM clusters"},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("store: stats: %w", err)
		}
	}

	var version sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	stats.SchemaVersion = version.String

	return stats, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
