/*
Package patterns implements the pattern knowledge store.

A Pattern is a curated best-practice snippet for one framework. The Store keeps
every loaded pattern in memory together with two secondary indices (by category
and by framework), scores patterns against search criteria and persists them
as one JSON file per framework:

	<dir>/<framework>-patterns.json
	{
	  "patterns": [ { "id": "...", "framework": "...", ... } ]
	}
*/
package patterns

import "time"

// Pattern is a single curated code pattern.
type Pattern struct {
	// ID is unique within a store and assigned by the caller.
	ID string `json:"id" yaml:"id"`

	// Category groups patterns by concern (e.g., "lifecycle").
	Category string `json:"category" yaml:"category"`

	// Framework is the framework tag (e.g., "blazor-server"). It also names the
	// file the pattern is persisted to.
	Framework string `json:"framework" yaml:"framework"`

	// Version is a free-form framework version.
	Version string `json:"version" yaml:"version"`

	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Code        string   `json:"code" yaml:"code"`
	Tags        []string `json:"tags" yaml:"tags"`

	// UsageCount only ever grows.
	UsageCount int `json:"usage_count" yaml:"usage_count"`

	// RelevanceScore is the author-assigned base quality in [0, 1].
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// clone returns a copy that shares no slices with p.
func (p Pattern) clone() Pattern {
	if p.Tags != nil {
		p.Tags = append([]string(nil), p.Tags...)
	}
	return p
}

// SearchCriteria describes a pattern query. Zero values mean "no filter".
type SearchCriteria struct {
	Query     string
	Framework string
	Category  string
	Tags      []string
	MinScore  float64
}

// ScoredPattern is a search hit.
type ScoredPattern struct {
	Pattern Pattern `json:"pattern"`
	Score   float64 `json:"score"`
}

// Statistics aggregates the store contents.
type Statistics struct {
	TotalPatterns    int      `json:"total_patterns"`
	TotalUsage       int      `json:"total_usage"`
	AverageRelevance float64  `json:"average_relevance"`
	Categories       []string `json:"categories"`
	Frameworks       []string `json:"frameworks"`
}

// LoadReport describes the outcome of a Load call.
type LoadReport struct {
	// Files is the number of pattern files read successfully.
	Files int

	// Loaded is the number of patterns now held by the store.
	Loaded int

	// Failed lists files that could not be read or decoded.
	Failed []FileError

	// Skipped lists individual records that were rejected.
	Skipped []RecordError
}

// FileError is a pattern file that failed to load.
type FileError struct {
	Path string
	Err  error
}

// RecordError is a single pattern record rejected during Load.
type RecordError struct {
	Path string
	ID   string
	Err  error
}
