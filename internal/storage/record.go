package storage

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RecordToolCall records one tools/call invocation.
func (s *SQLiteJournal) RecordToolCall(call ToolCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return nil
	}

	isError := 0
	if call.IsError {
		isError = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO tool_calls (tool_name, arguments_hash, timestamp, duration_ms, is_error)
		VALUES (?, ?, ?, ?, ?)`,
		call.ToolName,
		call.ArgumentsHash,
		call.Timestamp.UTC().Format(time.RFC3339Nano),
		call.Duration.Milliseconds(),
		isError,
	)
	if err != nil {
		s.logger.Warn("failed to record tool call", zap.String("tool", call.ToolName), zap.Error(err))
		return fmt.Errorf("failed to record tool call: %w", err)
	}
	return nil
}

// RecordSearch records a pattern search.
func (s *SQLiteJournal) RecordSearch(search SearchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return nil
	}

	_, err := s.db.Exec(`
		INSERT INTO search_history (search_id, query_hash, framework, timestamp, results_count)
		VALUES (?, ?, ?, ?, ?)`,
		search.SearchID,
		search.QueryHash,
		search.Framework,
		search.Timestamp.UTC().Format(time.RFC3339Nano),
		search.ResultsCount,
	)
	if err != nil {
		s.logger.Warn("failed to record search", zap.String("search_id", search.SearchID), zap.Error(err))
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

// RecordPatternServed records that a pattern was returned to a caller.
func (s *SQLiteJournal) RecordPatternServed(served PatternServed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.db == nil {
		return nil
	}

	_, err := s.db.Exec(`
		INSERT INTO patterns_served (pattern_id, source, timestamp)
		VALUES (?, ?, ?)`,
		served.PatternID,
		served.Source,
		served.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		s.logger.Warn("failed to record served pattern", zap.String("pattern_id", served.PatternID), zap.Error(err))
		return fmt.Errorf("failed to record served pattern: %w", err)
	}
	return nil
}

// Summary aggregates everything recorded so far. A disabled journal returns
// a zero Summary.
func (s *SQLiteJournal) Summary() (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{CallsByTool: map[string]int{}}
	if !s.enabled || s.db == nil {
		return sum, nil
	}

	row := s.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM tool_calls),
			(SELECT COUNT(*) FROM tool_calls WHERE is_error = 1),
			(SELECT COUNT(*) FROM search_history),
			(SELECT COUNT(*) FROM patterns_served)`)
	if err := row.Scan(&sum.ToolCalls, &sum.FailedCalls, &sum.Searches, &sum.PatternsServed); err != nil {
		return sum, fmt.Errorf("failed to summarize journal: %w", err)
	}

	rows, err := s.db.Query("SELECT tool_name, COUNT(*) FROM tool_calls GROUP BY tool_name")
	if err != nil {
		return sum, fmt.Errorf("failed to summarize tool calls: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name  string
			count int
		)
		if err := rows.Scan(&name, &count); err != nil {
			return sum, fmt.Errorf("failed to scan tool call summary: %w", err)
		}
		sum.CallsByTool[name] = count
	}
	return sum, rows.Err()
}
