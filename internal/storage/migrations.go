package storage

import (
	"fmt"

	"go.uber.org/zap"
)

// migration represents a single schema migration.
type migration struct {
	version int
	name    string
	up      func() error
}

// runMigrations executes schema migrations in order.
func (s *SQLiteJournal) runMigrations() error {
	if s.db == nil {
		return nil
	}

	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	version, err := s.currentMigrationVersion()
	if err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "session_journal", up: s.migration001SessionJournal},
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		s.logger.Debug("running migration", zap.Int("version", m.version), zap.String("name", m.name))
		if err := m.up(); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if err := s.setMigrationVersion(m.version, m.name); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteJournal) createMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	return err
}

func (s *SQLiteJournal) currentMigrationVersion() (int, error) {
	var version int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *SQLiteJournal) setMigrationVersion(version int, name string) error {
	_, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", version, name)
	return err
}

// migration001SessionJournal creates the journal tables.
func (s *SQLiteJournal) migration001SessionJournal() error {
	statements := []struct {
		what string
		sql  string
	}{
		{"tool_calls table", `
			CREATE TABLE IF NOT EXISTS tool_calls (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				tool_name TEXT NOT NULL,
				arguments_hash TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				duration_ms INTEGER NOT NULL,
				is_error INTEGER NOT NULL
			)`},
		{"tool_calls index", `
			CREATE INDEX IF NOT EXISTS idx_tool_calls_tool ON tool_calls(tool_name)`},
		{"search_history table", `
			CREATE TABLE IF NOT EXISTS search_history (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				search_id TEXT NOT NULL UNIQUE,
				query_hash TEXT NOT NULL,
				framework TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				results_count INTEGER NOT NULL
			)`},
		{"patterns_served table", `
			CREATE TABLE IF NOT EXISTS patterns_served (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				pattern_id TEXT NOT NULL,
				source TEXT NOT NULL,
				timestamp TEXT NOT NULL
			)`},
		{"patterns_served index", `
			CREATE INDEX IF NOT EXISTS idx_patterns_served_pattern ON patterns_served(pattern_id)`},
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.what, err)
		}
	}
	return nil
}
