/*
Package learning records session activity in the background.

Protocol handlers call Track with an Event and return immediately; a single
goroutine batches events and writes them to the session journal, so journal
latency never delays a response.
*/
package learning

import (
	"time"

	"github.com/google/uuid"

	"github.com/khanglvm/pattern-hub-mcp/internal/storage"
)

// Event is something worth recording in the journal.
type Event interface {
	// Kind names the event for logging.
	Kind() string

	// Record writes the event to j.
	Record(j storage.Journal) error
}

// ToolCallEvent is one tools/call invocation.
type ToolCallEvent struct {
	ToolName      string
	ArgumentsHash string
	Timestamp     time.Time
	Duration      time.Duration
	IsError       bool
}

// NewToolCallEvent creates a tool call event; raw arguments are hashed.
func NewToolCallEvent(toolName string, arguments []byte, started time.Time, isError bool) ToolCallEvent {
	return ToolCallEvent{
		ToolName:      toolName,
		ArgumentsHash: storage.HashQuery(string(arguments)),
		Timestamp:     started,
		Duration:      time.Since(started),
		IsError:       isError,
	}
}

func (e ToolCallEvent) Kind() string { return "tool_call" }

func (e ToolCallEvent) Record(j storage.Journal) error {
	return j.RecordToolCall(storage.ToolCall{
		ToolName:      e.ToolName,
		ArgumentsHash: e.ArgumentsHash,
		Timestamp:     e.Timestamp,
		Duration:      e.Duration,
		IsError:       e.IsError,
	})
}

// SearchEvent is one pattern search.
type SearchEvent struct {
	SearchID     string
	QueryHash    string
	Framework    string
	ResultsCount int
	Timestamp    time.Time
}

// NewSearchEvent creates a search event with a fresh search id.
func NewSearchEvent(query, framework string, results int) SearchEvent {
	return SearchEvent{
		SearchID:     uuid.NewString(),
		QueryHash:    storage.HashQuery(query),
		Framework:    framework,
		ResultsCount: results,
		Timestamp:    time.Now(),
	}
}

func (e SearchEvent) Kind() string { return "search" }

func (e SearchEvent) Record(j storage.Journal) error {
	return j.RecordSearch(storage.SearchRecord{
		SearchID:     e.SearchID,
		QueryHash:    e.QueryHash,
		Framework:    e.Framework,
		Timestamp:    e.Timestamp,
		ResultsCount: e.ResultsCount,
	})
}

// PatternsServedEvent lists patterns returned by one operation.
type PatternsServedEvent struct {
	PatternIDs []string
	Source     string
	Timestamp  time.Time
}

// NewPatternsServedEvent creates a served-patterns event.
func NewPatternsServedEvent(source string, ids []string) PatternsServedEvent {
	return PatternsServedEvent{
		PatternIDs: append([]string(nil), ids...),
		Source:     source,
		Timestamp:  time.Now(),
	}
}

func (e PatternsServedEvent) Kind() string { return "patterns_served" }

func (e PatternsServedEvent) Record(j storage.Journal) error {
	for _, id := range e.PatternIDs {
		if err := j.RecordPatternServed(storage.PatternServed{
			PatternID: id,
			Source:    e.Source,
			Timestamp: e.Timestamp,
		}); err != nil {
			return err
		}
	}
	return nil
}
