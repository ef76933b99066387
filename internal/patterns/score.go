package patterns

import (
	"math"
	"sort"
	"strings"
	"time"
)

const (
	// usageWeight scales log10(usage_count).
	usageWeight = 0.05

	titleBoost       = 0.30
	descriptionBoost = 0.15
	codeBoost        = 0.05

	// tagWeight is the boost for matching every requested tag.
	tagWeight = 0.20

	recencyBoost  = 0.05
	recencyWindow = 30 * 24 * time.Hour

	maxScore = 1.0
)

// Score computes the relevance of p for the given criteria at time now:
//
//	min(1, base + usage + query + tags + recency)
//
// Filters (framework, category, min score) are not applied here.
func Score(p Pattern, c SearchCriteria, now time.Time) float64 {
	return score(p, strings.ToLower(strings.TrimSpace(c.Query)), normalizeTags(c.Tags), now)
}

func score(p Pattern, query string, tags []string, now time.Time) float64 {
	total := p.RelevanceScore

	usage := p.UsageCount
	if usage < 1 {
		usage = 1
	}
	total += math.Log10(float64(usage)) * usageWeight

	if query != "" {
		if strings.Contains(strings.ToLower(p.Title), query) {
			total += titleBoost
		}
		if strings.Contains(strings.ToLower(p.Description), query) {
			total += descriptionBoost
		}
		if strings.Contains(strings.ToLower(p.Code), query) {
			total += codeBoost
		}
	}

	if len(tags) > 0 {
		matched := 0
		for _, want := range tags {
			for _, have := range p.Tags {
				if strings.EqualFold(want, have) {
					matched++
					break
				}
			}
		}
		total += float64(matched) / float64(len(tags)) * tagWeight
	}

	if now.Sub(p.UpdatedAt) <= recencyWindow {
		total += recencyBoost
	}

	return math.Min(maxScore, total)
}

// normalizeTags lowercases, trims and de-duplicates requested tags.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Search scores every candidate matching the framework and category filters
// and returns those at or above MinScore, best first. Ties are broken by
// usage count (descending) and then id (ascending).
func (s *Store) Search(c SearchCriteria) []ScoredPattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.candidates(c)
	results := make([]ScoredPattern, 0, len(candidates))
	if len(candidates) == 0 {
		return results
	}

	query := strings.ToLower(strings.TrimSpace(c.Query))
	tags := normalizeTags(c.Tags)
	now := s.now()

	for _, pos := range candidates {
		p := s.patterns[pos]
		sc := score(p, query, tags, now)
		if sc < c.MinScore {
			continue
		}
		results = append(results, ScoredPattern{Pattern: p.clone(), Score: sc})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Pattern.UsageCount != b.Pattern.UsageCount {
			return a.Pattern.UsageCount > b.Pattern.UsageCount
		}
		return a.Pattern.ID < b.Pattern.ID
	})

	return results
}

// candidates must be called with mu held.
func (s *Store) candidates(c SearchCriteria) []int {
	var positions []int
	if c.Framework != "" {
		positions = s.frameworkIndex[c.Framework]
	} else {
		positions = make([]int, len(s.patterns))
		for i := range positions {
			positions[i] = i
		}
	}

	if c.Category == "" {
		return positions
	}

	inCategory := make(map[int]bool, len(s.categoryIndex[c.Category]))
	for _, pos := range s.categoryIndex[c.Category] {
		inCategory[pos] = true
	}

	filtered := make([]int, 0, len(positions))
	for _, pos := range positions {
		if inCategory[pos] {
			filtered = append(filtered, pos)
		}
	}
	return filtered
}
