package patterns

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSearchLifecycleScenario reproduces the documented scoring example.
func TestSearchLifecycleScenario(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	loadFixture(s, Pattern{
		ID:             "a1",
		Framework:      "blazor-server",
		Category:       "lifecycle",
		RelevanceScore: 0.90,
		UsageCount:     15,
		Tags:           []string{"lifecycle", "blazor"},
		Title:          "OnInitializedAsync Lifecycle",
		CreatedAt:      fixedNow.AddDate(0, 0, -40),
		UpdatedAt:      fixedNow.AddDate(0, 0, -10),
	})

	results := s.Search(SearchCriteria{
		Query:     "lifecycle",
		Framework: "blazor-server",
		Tags:      []string{"lifecycle", "blazor"},
	})

	require.Len(t, results, 1)
	assert.Equal(t, "a1", results[0].Pattern.ID)
	assert.Equal(t, 1.0, results[0].Score)
}

// loadFixture installs patterns verbatim, bypassing Add's timestamp stamping.
func loadFixture(s *Store, patterns ...Pattern) {
	s.replace(append([]Pattern(nil), patterns...), nil)
}

// TestScoreComponents checks each additive factor in isolation.
func TestScoreComponents(t *testing.T) {
	old := fixedNow.AddDate(0, -6, 0)
	base := Pattern{
		ID:             "p",
		RelevanceScore: 0.1,
		Title:          "Use Effect Cleanup",
		Description:    "Cleans up effects",
		Code:           "useEffect(() => () => cleanup())",
		Tags:           []string{"Hooks", "effects"},
		UpdatedAt:      old,
	}

	tests := []struct {
		name     string
		pattern  func(p Pattern) Pattern
		criteria SearchCriteria
		want     float64
	}{
		{"base only", nil, SearchCriteria{}, 0.1},
		{"usage 100", func(p Pattern) Pattern { p.UsageCount = 100; return p }, SearchCriteria{}, 0.2},
		{"usage zero counts as one", func(p Pattern) Pattern { p.UsageCount = 0; return p }, SearchCriteria{}, 0.1},
		{"title match", nil, SearchCriteria{Query: "CLEANUP"}, 0.1 + 0.30 + 0.05},
		{"description only", nil, SearchCriteria{Query: "cleans"}, 0.1 + 0.15},
		{"code only", nil, SearchCriteria{Query: "useeffect("}, 0.1 + 0.05},
		{"no match", nil, SearchCriteria{Query: "zzz"}, 0.1},
		{"half the tags", nil, SearchCriteria{Tags: []string{"hooks", "state"}}, 0.1 + 0.10},
		{"all tags", nil, SearchCriteria{Tags: []string{"HOOKS", "effects"}}, 0.1 + 0.20},
		{"recent", func(p Pattern) Pattern { p.UpdatedAt = fixedNow.AddDate(0, 0, -29); return p }, SearchCriteria{}, 0.15},
		{"clamped", func(p Pattern) Pattern { p.RelevanceScore = 0.95; return p }, SearchCriteria{Query: "cleanup"}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			if tt.pattern != nil {
				p = tt.pattern(p)
			}
			got := Score(p, tt.criteria, fixedNow)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

// TestSearchOrdering verifies score, usage and id tie-breaking with no filters.
func TestSearchOrdering(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	old := fixedNow.AddDate(-1, 0, 0)

	var fixtures []Pattern
	for i, rel := range []float64{0.2, 0.9, 0.5, 0.5, 0.5, 0.7} {
		fixtures = append(fixtures, Pattern{
			ID:             fmt.Sprintf("p%d", i),
			Framework:      []string{"react", "vue"}[i%2],
			Category:       "c",
			RelevanceScore: rel,
			UpdatedAt:      old,
		})
	}
	// p2, p3 and p4 tie on score and usage.
	fixtures[3].UsageCount = 1
	fixtures[4].UsageCount = 1
	fixtures[2].UsageCount = 1
	loadFixture(s, fixtures...)

	results := s.Search(SearchCriteria{})
	require.Len(t, results, 6)

	var ids []string
	for i, r := range results {
		ids = append(ids, r.Pattern.ID)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}
	assert.Equal(t, []string{"p1", "p5", "p2", "p3", "p4", "p0"}, ids)
}

// TestSearchUsageTieBreak verifies equal scores fall back to usage count.
func TestSearchUsageTieBreak(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	old := fixedNow.AddDate(-1, 0, 0)
	// Both scores clamp to 1 regardless of usage.
	loadFixture(s,
		Pattern{ID: "a", Framework: "f", RelevanceScore: 1, UsageCount: 1, UpdatedAt: old},
		Pattern{ID: "b", Framework: "f", RelevanceScore: 1, UsageCount: 50, UpdatedAt: old},
	)

	results := s.Search(SearchCriteria{Framework: "f"})
	require.Len(t, results, 2)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, 1.0, results[1].Score)
	assert.Equal(t, "b", results[0].Pattern.ID)
}

// TestSearchFilters covers framework, category and min score filters.
func TestSearchFilters(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	old := fixedNow.AddDate(-1, 0, 0)
	loadFixture(s,
		Pattern{ID: "r1", Framework: "react", Category: "hooks", RelevanceScore: 0.9, UpdatedAt: old},
		Pattern{ID: "r2", Framework: "react", Category: "state", RelevanceScore: 0.4, UpdatedAt: old},
		Pattern{ID: "v1", Framework: "vue", Category: "hooks", RelevanceScore: 0.8, UpdatedAt: old},
	)

	ids := func(results []ScoredPattern) []string {
		out := []string{}
		for _, r := range results {
			out = append(out, r.Pattern.ID)
		}
		return out
	}

	assert.Equal(t, []string{"r1", "r2"}, ids(s.Search(SearchCriteria{Framework: "react"})))
	assert.Equal(t, []string{"r1", "v1"}, ids(s.Search(SearchCriteria{Category: "hooks"})))
	assert.Equal(t, []string{"r1"}, ids(s.Search(SearchCriteria{Framework: "react", Category: "hooks"})))
	assert.Equal(t, []string{"r1", "v1"}, ids(s.Search(SearchCriteria{MinScore: 0.5})))
	assert.Equal(t, []string{}, ids(s.Search(SearchCriteria{Framework: "angular"})))
	assert.NotNil(t, s.Search(SearchCriteria{Category: "nope"}))
}

// TestSearchResultsAreCopies verifies callers cannot mutate stored tags.
func TestSearchResultsAreCopies(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	loadFixture(s, Pattern{ID: "a", Framework: "f", Tags: []string{"x"}, RelevanceScore: 0.5})

	results := s.Search(SearchCriteria{})
	require.Len(t, results, 1)
	results[0].Pattern.Tags[0] = "mutated"

	p, _ := s.Get("a")
	assert.Equal(t, "x", p.Tags[0])
	assert.False(t, math.IsNaN(results[0].Score))
}

// TestScoreNeverDecreasesWithUsage verifies recording a use never lowers a
// pattern's score for the same criteria, and raises it until the clamp.
func TestScoreNeverDecreasesWithUsage(t *testing.T) {
	criteria := SearchCriteria{Query: "cleanup", Tags: []string{"hooks", "effects"}}

	tests := []struct {
		name      string
		usage     int
		relevance float64
	}{
		{"from zero", 0, 0.3},
		{"from one", 1, 0.3},
		{"from nine", 9, 0.3},
		{"clamped", 9, 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, t.TempDir())
			loadFixture(s, Pattern{
				ID:             "p",
				Framework:      "react",
				Category:       "hooks",
				Title:          "Effect cleanup",
				Tags:           []string{"hooks"},
				UsageCount:     tt.usage,
				RelevanceScore: tt.relevance,
				CreatedAt:      fixedNow.AddDate(0, -1, 0),
				UpdatedAt:      fixedNow,
			})

			scoreOf := func() float64 {
				results := s.Search(criteria)
				require.Len(t, results, 1)
				return results[0].Score
			}

			before := scoreOf()
			for i := 0; i < 4; i++ {
				p, err := s.IncrementUsage("p")
				require.NoError(t, err)
				after := scoreOf()

				assert.GreaterOrEqual(t, after, before, "usage %d", p.UsageCount)
				if p.UsageCount > 1 && after < maxScore {
					assert.Greater(t, after, before, "usage %d", p.UsageCount)
				}
				before = after
			}
		})
	}
}
