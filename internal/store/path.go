package store

import (
	"os"
	"path/filepath"
)

// DBFileName is the file name of the tracker database inside the data root.
const DBFileName = "stride.db"

// DefaultDataRoot returns the directory holding the tracker database.
// Defaults to ~/.stride, falls back to ./.stride if home dir unavailable.
func DefaultDataRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, ".stride")
	}
	return filepath.Join(home, ".stride")
}

// DefaultDBPath returns the full path to the default database file.
// Example: ~/.stride/stride.db
func DefaultDBPath() string {
	return filepath.Join(DefaultDataRoot(), DBFileName)
}

// ResolveDBPath determines the database path based on priority chain.
// Priority: explicit > STRIDE_DB_PATH env > DefaultDBPath.
func ResolveDBPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("STRIDE_DB_PATH"); env != "" {
		return env
	}
	return DefaultDBPath()
}
