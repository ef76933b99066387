package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultLimit is used when a caller passes a non-positive limit.
const DefaultLimit = 10

// ErrClosed is returned by searches on a closed index.
var ErrClosed = errors.New("keyword index is closed")

var hitFields = []string{"title", "framework", "category"}

// Related performs a BM25 keyword search over every pattern field.
func (i *Indexer) Related(text string, limit int) ([]Hit, error) {
	return i.search(bleve.NewMatchQuery(text), text, limit)
}

// RelatedInFramework restricts Related to one framework tag.
func (i *Indexer) RelatedInFramework(text, framework string, limit int) ([]Hit, error) {
	if framework == "" {
		return i.Related(text, limit)
	}
	frameworkQuery := bleve.NewTermQuery(framework)
	frameworkQuery.SetField("framework")

	conjunction := bleve.NewConjunctionQuery(bleve.NewMatchQuery(text), frameworkQuery)
	return i.search(conjunction, text, limit)
}

func (i *Indexer) search(q query.Query, text string, limit int) ([]Hit, error) {
	if strings.TrimSpace(text) == "" {
		return []Hit{}, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.bleveIndex == nil {
		return nil, ErrClosed
	}

	request := bleve.NewSearchRequestOptions(q, limit, 0, false)
	request.Fields = hitFields

	results, err := i.bleveIndex.Search(request)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	return convertBleveResults(results), nil
}

// convertBleveResults converts Bleve search results to Hits.
func convertBleveResults(results *bleve.SearchResult) []Hit {
	hits := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		title, _ := h.Fields["title"].(string)
		framework, _ := h.Fields["framework"].(string)
		category, _ := h.Fields["category"].(string)

		hits = append(hits, Hit{
			ID:        h.ID,
			Title:     title,
			Framework: framework,
			Category:  category,
			Score:     h.Score,
		})
	}
	return hits
}
