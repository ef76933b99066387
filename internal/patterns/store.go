package patterns

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store holds patterns in memory and persists them to a directory.
//
// All methods are safe for concurrent use. Reads share a lock; Load, Add and
// IncrementUsage take it exclusively so a reader never observes a half-built
// index.
type Store struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time

	mu             sync.RWMutex
	patterns       []Pattern
	byID           map[string]int
	categoryIndex  map[string][]int
	frameworkIndex map[string][]int

	// origins maps the id of every loaded pattern to the file it was read
	// from. Save uses it to clean up files a pattern no longer belongs to.
	origins map[string]string

	// saveMu serializes Save calls so two writers never race on a temp file.
	saveMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load/save diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for timestamps and recency.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty store backed by dir. Call Load to read existing
// pattern files.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:            dir,
		logger:         zap.NewNop(),
		now:            time.Now,
		byID:           make(map[string]int),
		categoryIndex:  make(map[string][]int),
		frameworkIndex: make(map[string][]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// patternFile is the on-disk layout of one framework file.
type patternFile struct {
	Patterns *[]Pattern `json:"patterns"`
}

// Load replaces the in-memory collection with the contents of every pattern
// file in the storage directory.
//
// A file that cannot be read or decoded is logged, recorded in the report and
// skipped. A missing directory leaves the store empty. Only a directory that
// exists but cannot be listed is returned as an error.
func (s *Store) Load() (*LoadReport, error) {
	report := &LoadReport{}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("pattern directory does not exist, starting empty", zap.String("dir", s.dir))
			s.replace(nil, nil)
			return report, nil
		}
		return nil, fmt.Errorf("failed to read pattern directory: %w", err)
	}

	var loaded []Pattern
	seen := make(map[string]int)
	origins := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() || !isPatternFile(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())

		records, err := readPatternFile(path)
		if err != nil {
			s.logger.Warn("skipping malformed pattern file", zap.String("path", path), zap.Error(err))
			report.Failed = append(report.Failed, FileError{Path: path, Err: err})
			continue
		}
		report.Files++

		for _, p := range records {
			if err := Validate(p); err != nil {
				s.logger.Warn("skipping invalid pattern", zap.String("path", path), zap.String("id", p.ID), zap.Error(err))
				report.Skipped = append(report.Skipped, RecordError{Path: path, ID: p.ID, Err: err})
				continue
			}
			if pos, dup := seen[p.ID]; dup {
				err := fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
				// The copy in the framework's own file wins. It is the one
				// Save last wrote.
				prev := origins[p.ID]
				if prev != FileName(loaded[pos].Framework) && entry.Name() == FileName(p.Framework) {
					s.logger.Warn("replacing stale duplicate pattern", zap.String("path", filepath.Join(s.dir, prev)), zap.String("id", p.ID))
					report.Skipped = append(report.Skipped, RecordError{Path: filepath.Join(s.dir, prev), ID: p.ID, Err: err})
					loaded[pos] = normalize(p)
					origins[p.ID] = entry.Name()
					continue
				}
				s.logger.Warn("skipping duplicate pattern", zap.String("path", path), zap.String("id", p.ID))
				report.Skipped = append(report.Skipped, RecordError{Path: path, ID: p.ID, Err: err})
				continue
			}
			seen[p.ID] = len(loaded)
			origins[p.ID] = entry.Name()
			loaded = append(loaded, normalize(p))
		}
	}

	s.replace(loaded, origins)
	report.Loaded = len(loaded)

	s.logger.Info("loaded patterns",
		zap.String("dir", s.dir),
		zap.Int("patterns", report.Loaded),
		zap.Int("files", report.Files),
		zap.Int("failed_files", len(report.Failed)),
	)
	return report, nil
}

func isPatternFile(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}

func readPatternFile(path string) ([]Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file: %w", err)
	}

	var file patternFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse pattern JSON: %w", err)
	}
	if file.Patterns == nil {
		return nil, errors.New(`missing top-level "patterns" array`)
	}
	return *file.Patterns, nil
}

// normalize repairs loaded records that violate the timestamp and counter
// invariants without being worth rejecting.
func normalize(p Pattern) Pattern {
	if p.UsageCount < 0 {
		p.UsageCount = 0
	}
	if p.UpdatedAt.Before(p.CreatedAt) {
		p.UpdatedAt = p.CreatedAt
	}
	return p.clone()
}

// replace swaps the collection and its file origins and rebuilds every index.
func (s *Store) replace(patterns []Pattern, origins map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.patterns = patterns
	s.origins = origins
	s.rebuildIndexes()
}

// rebuildIndexes must be called with mu held for writing.
func (s *Store) rebuildIndexes() {
	s.byID = make(map[string]int, len(s.patterns))
	s.categoryIndex = make(map[string][]int)
	s.frameworkIndex = make(map[string][]int)

	for pos := range s.patterns {
		s.indexPosition(pos)
	}
}

// indexPosition must be called with mu held for writing.
func (s *Store) indexPosition(pos int) {
	p := s.patterns[pos]
	s.byID[p.ID] = pos
	s.categoryIndex[p.Category] = append(s.categoryIndex[p.Category], pos)
	s.frameworkIndex[p.Framework] = append(s.frameworkIndex[p.Framework], pos)
}

// Add validates and inserts a new pattern, stamping its timestamps. It does
// not persist; call Save afterwards.
func (s *Store) Add(p Pattern) (Pattern, error) {
	p = p.clone()
	if err := Validate(p); err != nil {
		return Pattern{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[p.ID]; exists {
		return Pattern{}, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}

	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.UsageCount < 0 {
		p.UsageCount = 0
	}

	s.patterns = append(s.patterns, p)
	s.indexPosition(len(s.patterns) - 1)

	s.logger.Debug("added pattern", zap.String("id", p.ID), zap.String("framework", p.Framework))
	return p.clone(), nil
}

// IncrementUsage bumps the usage counter of a pattern by one.
func (s *Store) IncrementUsage(id string) (Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.byID[id]
	if !ok {
		return Pattern{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	p := &s.patterns[pos]
	p.UsageCount++
	p.UpdatedAt = s.now().UTC()
	return p.clone(), nil
}

// Get returns the pattern with the given id.
func (s *Store) Get(id string) (Pattern, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.byID[id]
	if !ok {
		return Pattern{}, false
	}
	return s.patterns[pos].clone(), true
}

// All returns a copy of every pattern in insertion order.
func (s *Store) All() []Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Pattern, len(s.patterns))
	for i, p := range s.patterns {
		out[i] = p.clone()
	}
	return out
}

// Len returns the number of patterns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

// Statistics aggregates counts over the whole store.
func (s *Store) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Statistics{
		TotalPatterns: len(s.patterns),
		Categories:    sortedKeys(s.categoryIndex),
		Frameworks:    sortedKeys(s.frameworkIndex),
	}

	var relevance float64
	for _, p := range s.patterns {
		stats.TotalUsage += p.UsageCount
		relevance += p.RelevanceScore
	}
	if len(s.patterns) > 0 {
		stats.AverageRelevance = relevance / float64(len(s.patterns))
	}
	return stats
}

func sortedKeys(index map[string][]int) []string {
	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
