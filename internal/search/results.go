/*
Package search keeps an in-memory keyword index over stored patterns.

The pattern store's own search is exact: a framework either has patterns or it
does not. This index answers the looser question "which patterns talk about
these words", which the briefing builder and search-patterns use when the exact
search comes back empty.
*/
package search

// Hit is a single keyword match.
type Hit struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Framework string  `json:"framework"`
	Category  string  `json:"category"`
	Score     float64 `json:"score"`
}

// patternDocument is a pattern as stored in the index.
type patternDocument struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Code        string   `json:"code"`
	Tags        []string `json:"tags"`
	Framework   string   `json:"framework"`
	Category    string   `json:"category"`
}
