/*
Package briefing builds the project briefing returned to the assistant.

Given a project.Project it detects the framework from the dependency list,
selects the most relevant stored patterns, runs a fixed set of rule checks and
renders everything as one markdown document.
*/
package briefing

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/pattern-hub-mcp/internal/patterns"
	"github.com/khanglvm/pattern-hub-mcp/internal/project"
	"github.com/khanglvm/pattern-hub-mcp/internal/search"
)

// DefaultMaxPatterns caps the patterns included in a briefing.
const DefaultMaxPatterns = 10

// RelatedFinder looks up patterns by free-text similarity.
type RelatedFinder interface {
	Related(query string, limit int) ([]search.Hit, error)
}

// Statistics summarizes the analyzed project.
type Statistics struct {
	project.Counts
	Dependencies    int    `json:"dependencies"`
	TargetFramework string `json:"target_framework,omitempty"`
}

// Analysis is the result of one briefing run.
type Analysis struct {
	Project   *project.Project         `json:"project"`
	Framework string                   `json:"framework"`
	Patterns  []patterns.ScoredPattern `json:"patterns"`

	// Related is set when Patterns came from the keyword fallback rather than
	// an exact framework match.
	Related bool `json:"related"`

	Suggestions []Suggestion `json:"suggestions"`
	Statistics  Statistics   `json:"statistics"`
	Briefing    string       `json:"briefing"`
}

// Builder produces Analyses from projects.
type Builder struct {
	store       *patterns.Store
	related     RelatedFinder
	maxPatterns int
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithRelatedFinder enables the keyword fallback for frameworks without
// stored patterns.
func WithRelatedFinder(r RelatedFinder) Option {
	return func(b *Builder) { b.related = r }
}

// WithMaxPatterns overrides DefaultMaxPatterns.
func WithMaxPatterns(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.maxPatterns = n
		}
	}
}

// WithLogger sets the builder's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock overrides the time source used to score related patterns.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBuilder creates a Builder reading from store.
func NewBuilder(store *patterns.Store, opts ...Option) *Builder {
	b := &Builder{
		store:       store,
		maxPatterns: DefaultMaxPatterns,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Analyze builds the full analysis for p. categoryHint, when non-empty,
// narrows pattern selection to one category.
func (b *Builder) Analyze(ctx context.Context, p *project.Project, categoryHint string) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	framework := DetectFramework(p)
	selected, related := b.RelevantPatterns(p, framework, categoryHint)

	a := &Analysis{
		Project:     p,
		Framework:   framework,
		Patterns:    selected,
		Related:     related,
		Suggestions: Suggestions(p, framework),
		Statistics: Statistics{
			Counts:          p.Counts(),
			Dependencies:    len(p.Dependencies),
			TargetFramework: p.Metadata.TargetFramework,
		},
	}
	a.Briefing = Render(a)

	b.logger.Debug("built briefing",
		zap.String("framework", framework),
		zap.Int("patterns", len(a.Patterns)),
		zap.Bool("related", related),
		zap.Int("suggestions", len(a.Suggestions)),
	)
	return a, nil
}

// RelevantPatterns returns up to maxPatterns stored patterns for framework.
// When none exist it falls back to keyword-related patterns and reports
// related=true.
func (b *Builder) RelevantPatterns(p *project.Project, framework, categoryHint string) (selected []patterns.ScoredPattern, related bool) {
	results := b.store.Search(patterns.SearchCriteria{
		Framework: framework,
		Category:  categoryHint,
	})
	if len(results) > b.maxPatterns {
		results = results[:b.maxPatterns]
	}
	if len(results) > 0 || b.related == nil {
		return results, false
	}

	query := relatedQuery(p, framework, categoryHint)
	if query == "" {
		return results, false
	}

	hits, err := b.related.Related(query, b.maxPatterns)
	if err != nil {
		b.logger.Warn("related pattern lookup failed", zap.Error(err))
		return results, false
	}

	now := b.now()
	for _, hit := range hits {
		pat, ok := b.store.Get(hit.ID)
		if !ok {
			continue
		}
		results = append(results, patterns.ScoredPattern{
			Pattern: pat,
			Score:   patterns.Score(pat, patterns.SearchCriteria{}, now),
		})
	}
	return results, len(results) > 0
}

func relatedQuery(p *project.Project, framework, categoryHint string) string {
	var terms []string
	if framework != UnknownFramework {
		terms = append(terms, framework)
	}
	if categoryHint != "" {
		terms = append(terms, categoryHint)
	}
	if p != nil {
		for _, d := range p.Dependencies {
			if !d.DevOnly {
				terms = append(terms, d.Name)
			}
		}
	}
	return strings.Join(terms, " ")
}
