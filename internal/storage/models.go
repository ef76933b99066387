package storage

import "time"

// ToolCall is one tools/call invocation.
type ToolCall struct {
	// ToolName is the tool that was invoked.
	ToolName string `json:"tool_name"`

	// ArgumentsHash is the SHA256 hash of the raw arguments.
	ArgumentsHash string `json:"arguments_hash"`

	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`

	// IsError is set when the tool returned an error result.
	IsError bool `json:"is_error"`
}

// SearchRecord is one pattern search.
type SearchRecord struct {
	// SearchID is a unique identifier for this search (UUID).
	SearchID string `json:"search_id"`

	// QueryHash is the SHA256 hash of the search query.
	QueryHash string `json:"query_hash"`

	Framework    string    `json:"framework"`
	Timestamp    time.Time `json:"timestamp"`
	ResultsCount int       `json:"results_count"`
}

// PatternServed records that a pattern was included in a response.
type PatternServed struct {
	PatternID string `json:"pattern_id"`

	// Source names the operation that served it (briefing, get, search).
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary aggregates the journal.
type Summary struct {
	ToolCalls      int            `json:"tool_calls"`
	FailedCalls    int            `json:"failed_calls"`
	Searches       int            `json:"searches"`
	PatternsServed int            `json:"patterns_served"`
	CallsByTool    map[string]int `json:"calls_by_tool"`
}
