package search

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"

	"github.com/khanglvm/pattern-hub-mcp/internal/patterns"
)

// Indexer manages the keyword index for all patterns.
type Indexer struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewIndexer creates an empty in-memory index.
func NewIndexer(logger *zap.Logger) (*Indexer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	return &Indexer{
		bleveIndex: index,
		logger:     logger,
	}, nil
}

// buildIndexMapping creates the Bleve index mapping.
func buildIndexMapping() mapping.IndexMapping {
	patternMapping := bleve.NewDocumentMapping()

	for _, field := range []string{"title", "description", "code", "tags"} {
		patternMapping.AddFieldMappingsAt(field, bleve.NewTextFieldMapping())
	}

	// Framework and category are exact tags used for filtering.
	for _, field := range []string{"framework", "category"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		patternMapping.AddFieldMappingsAt(field, fm)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", patternMapping)
	return indexMapping
}

func toDocument(p patterns.Pattern) patternDocument {
	return patternDocument{
		Title:       p.Title,
		Description: p.Description,
		Code:        p.Code,
		Tags:        p.Tags,
		Framework:   p.Framework,
		Category:    p.Category,
	}
}

// Rebuild replaces the index contents with all.
func (i *Indexer) Rebuild(all []patterns.Pattern) error {
	fresh, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create bleve index: %w", err)
	}

	batch := fresh.NewBatch()
	for _, p := range all {
		if err := batch.Index(p.ID, toDocument(p)); err != nil {
			i.logger.Warn("failed to index pattern", zap.String("id", p.ID), zap.Error(err))
		}
	}
	if err := fresh.Batch(batch); err != nil {
		fresh.Close()
		return fmt.Errorf("failed to batch index patterns: %w", err)
	}

	i.mu.Lock()
	old := i.bleveIndex
	i.bleveIndex = fresh
	i.mu.Unlock()

	if old != nil {
		old.Close()
	}
	i.logger.Debug("rebuilt keyword index", zap.Int("patterns", len(all)))
	return nil
}

// IndexPattern adds or replaces a single pattern.
func (i *Indexer) IndexPattern(p patterns.Pattern) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.bleveIndex.Index(p.ID, toDocument(p)); err != nil {
		return fmt.Errorf("failed to index pattern %s: %w", p.ID, err)
	}
	return nil
}

// Count returns the total number of indexed patterns.
func (i *Indexer) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	docCount, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return docCount, nil
}

// Close closes the index and releases resources.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		err := i.bleveIndex.Close()
		i.bleveIndex = nil
		return err
	}
	return nil
}
