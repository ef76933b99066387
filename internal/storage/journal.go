/*
Package storage implements the session journal.

The journal records what the server did during one process lifetime: tool
calls, pattern searches and the patterns it served. It is backed by
modernc.org/sqlite (a pure Go, CGo-free implementation). The default DSN is
an in-memory database, so nothing survives a restart; pattern files on disk
remain the only durable state.

If the database cannot be opened the journal is disabled and every operation
becomes a no-op (graceful degradation).
*/
package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// Journal defines the session journal operations.
type Journal interface {
	// Init opens the database and runs migrations.
	Init() error

	// RecordToolCall records one tools/call invocation.
	RecordToolCall(call ToolCall) error

	// RecordSearch records a pattern search.
	RecordSearch(search SearchRecord) error

	// RecordPatternServed records that a pattern was returned to a caller.
	RecordPatternServed(served PatternServed) error

	// Summary aggregates everything recorded so far.
	Summary() (Summary, error)

	// Close closes the database connection.
	Close() error
}

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db       *sql.DB
	dsn      string
	enabled  bool
	logger   *zap.Logger
	mu       sync.Mutex
	initOnce sync.Once
}

// NewJournal creates a journal for dsn. An empty dsn selects MemoryDSN.
func NewJournal(dsn string, logger *zap.Logger) *SQLiteJournal {
	if dsn == "" {
		dsn = MemoryDSN
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteJournal{
		dsn:     dsn,
		enabled: true,
		logger:  logger,
	}
}

// Init initializes the database and runs migrations.
//
// If initialization fails, the journal is disabled and subsequent operations
// become no-ops.
func (s *SQLiteJournal) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		db, err := sql.Open("sqlite", s.dsn)
		if err != nil {
			initErr = fmt.Errorf("failed to open journal: %w", err)
			s.disable(initErr)
			return
		}
		// Every connection to :memory: is a separate database; pin one.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping journal: %w", err)
			s.disable(initErr)
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			s.disable(initErr)
			return
		}
	})

	return initErr
}

func (s *SQLiteJournal) disable(err error) {
	s.enabled = false
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	s.logger.Warn("session journal disabled", zap.Error(err))
}

// Enabled reports whether the journal is recording.
func (s *SQLiteJournal) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled && s.db != nil
}

// Close closes the database connection.
func (s *SQLiteJournal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	s.db = nil
	return nil
}

// HashQuery creates a SHA256 hash of a query string so the journal never
// stores raw queries.
func HashQuery(query string) string {
	if query == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(query))
	return hex.EncodeToString(hash[:])
}
