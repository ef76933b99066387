package patterns

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	return NewStore(dir, WithLogger(zaptest.NewLogger(t)), WithClock(fixedClock))
}

func samplePattern(id, framework, category string) Pattern {
	return Pattern{
		ID:             id,
		Category:       category,
		Framework:      framework,
		Version:        "latest",
		Title:          "Pattern " + id,
		Description:    "Description of " + id,
		Code:           "// code for " + id,
		Tags:           []string{category},
		RelevanceScore: 0.8,
	}
}

// checkIndexes verifies that every position sits in exactly the buckets of its
// own category and framework.
func checkIndexes(t *testing.T, s *Store) {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()

	require.Len(t, s.byID, len(s.patterns))

	count := func(index map[string][]int) int {
		n := 0
		for _, positions := range index {
			n += len(positions)
		}
		return n
	}
	assert.Equal(t, len(s.patterns), count(s.categoryIndex))
	assert.Equal(t, len(s.patterns), count(s.frameworkIndex))

	for pos, p := range s.patterns {
		assert.Equal(t, pos, s.byID[p.ID])
		assert.Contains(t, s.categoryIndex[p.Category], pos)
		assert.Contains(t, s.frameworkIndex[p.Framework], pos)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// TestLoadMissingDirectory verifies a missing directory yields an empty store.
func TestLoadMissingDirectory(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "does-not-exist"))

	report, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, report.Loaded)
	assert.Equal(t, 0, s.Len())
}

// TestLoadSkipsMalformedFile verifies one broken file does not stop the rest.
func TestLoadSkipsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a-patterns.json"), `{"patterns":[{"id":"a1","framework":"a","category":"x","relevance_score":0.5}]}`)
	writeFile(t, filepath.Join(dir, "b-patterns.json"), `{"patterns": [`)
	writeFile(t, filepath.Join(dir, "c-patterns.json"), `{"items": []}`)
	writeFile(t, filepath.Join(dir, "notes.txt"), `not a pattern file`)
	writeFile(t, filepath.Join(dir, ".hidden.json"), `{"patterns":[{"id":"h1","framework":"h","relevance_score":0.5}]}`)

	core, logs := observer.New(zapcore.WarnLevel)
	s := NewStore(dir, WithLogger(zap.New(core)), WithClock(fixedClock))

	report, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Loaded)
	assert.Equal(t, 1, report.Files)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, filepath.Join(dir, "b-patterns.json"), report.Failed[0].Path)

	_, ok := s.Get("a1")
	assert.True(t, ok)
	_, ok = s.Get("h1")
	assert.False(t, ok)

	assert.Equal(t, 2, logs.FilterMessage("skipping malformed pattern file").Len())
	checkIndexes(t, s)
}

// TestLoadSkipsInvalidRecords verifies bad and duplicate records are reported.
func TestLoadSkipsInvalidRecords(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a-patterns.json"), `{"patterns":[
		{"id":"ok","framework":"a","category":"x","relevance_score":0.5},
		{"id":"","framework":"a","category":"x","relevance_score":0.5},
		{"id":"bad-score","framework":"a","category":"x","relevance_score":1.5},
		{"id":"bad-fw","framework":"../etc","category":"x","relevance_score":0.5}
	]}`)
	writeFile(t, filepath.Join(dir, "b-patterns.json"), `{"patterns":[
		{"id":"ok","framework":"b","category":"y","relevance_score":0.5}
	]}`)

	s := newTestStore(t, dir)
	report, err := s.Load()
	require.NoError(t, err)

	assert.Equal(t, 1, report.Loaded)
	require.Len(t, report.Skipped, 4)
	assert.True(t, errors.Is(report.Skipped[0].Err, ErrInvalidID))
	assert.True(t, errors.Is(report.Skipped[1].Err, ErrInvalidScore))
	assert.True(t, errors.Is(report.Skipped[2].Err, ErrInvalidFramework))
	assert.True(t, errors.Is(report.Skipped[3].Err, ErrDuplicateID))

	p, ok := s.Get("ok")
	require.True(t, ok)
	assert.Equal(t, "a", p.Framework)
}

// TestAddStampsTimestampsAndIndexes verifies Add validates, stamps and indexes.
func TestAddStampsTimestampsAndIndexes(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	added, err := s.Add(samplePattern("p1", "react", "hooks"))
	require.NoError(t, err)
	assert.Equal(t, fixedNow, added.CreatedAt)
	assert.Equal(t, fixedNow, added.UpdatedAt)

	_, err = s.Add(samplePattern("p2", "react", "state"))
	require.NoError(t, err)
	_, err = s.Add(samplePattern("p3", "vue", "hooks"))
	require.NoError(t, err)

	checkIndexes(t, s)
	assert.Equal(t, 3, s.Len())
}

// TestAddRejectsInvalid verifies nothing is mutated when validation fails.
func TestAddRejectsInvalid(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	_, err := s.Add(samplePattern("p1", "react", "hooks"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(p *Pattern)
		wantErr error
	}{
		{"duplicate id", func(p *Pattern) { p.ID = "p1" }, ErrDuplicateID},
		{"empty id", func(p *Pattern) { p.ID = "  " }, ErrInvalidID},
		{"long id", func(p *Pattern) { p.ID = string(make([]byte, MaxIDLength+1)) }, ErrInvalidID},
		{"score above one", func(p *Pattern) { p.RelevanceScore = 1.01 }, ErrInvalidScore},
		{"negative score", func(p *Pattern) { p.RelevanceScore = -0.1 }, ErrInvalidScore},
		{"nan score", func(p *Pattern) { p.RelevanceScore = math.NaN() }, ErrInvalidScore},
		{"separator framework", func(p *Pattern) { p.Framework = "a/b" }, ErrInvalidFramework},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := samplePattern("new", "react", "hooks")
			tt.mutate(&p)
			_, err := s.Add(p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, 1, s.Len())
		})
	}
}

// TestValidateFramework covers the path-safety rules.
func TestValidateFramework(t *testing.T) {
	long := make([]byte, MaxFrameworkLength+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		framework string
		valid     bool
	}{
		{"blazor-server", true},
		{"next.js", true},
		{"", false},
		{"../../etc/passwd", false},
		{"..", false},
		{"a/b", false},
		{`a\b`, false},
		{"C:evil", false},
		{"nul\x00byte", false},
		{".hidden", false},
		{string(long), false},
		{string(long[:MaxFrameworkLength]), true},
	}

	for _, tt := range tests {
		err := ValidateFramework(tt.framework)
		if tt.valid {
			assert.NoError(t, err, "framework %q", tt.framework)
		} else {
			assert.ErrorIs(t, err, ErrInvalidFramework, "framework %q", tt.framework)
		}
	}
}

// TestSaveRejectsTraversal verifies a traversal framework never escapes the directory.
func TestSaveRejectsTraversal(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "patterns")

	s := newTestStore(t, dir)
	_, err := s.Add(samplePattern("evil", "../../etc/passwd", "x"))
	require.ErrorIs(t, err, ErrInvalidFramework)

	// Force an invalid record past Add to exercise Save's own check.
	s.mu.Lock()
	s.patterns = append(s.patterns, samplePattern("evil", "../escape", "x"))
	s.rebuildIndexes()
	s.mu.Unlock()

	err = s.Save()
	require.ErrorIs(t, err, ErrInvalidFramework)

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, "patterns", e.Name(), "unexpected file outside storage dir")
	}
	_, err = os.Stat(filepath.Join(parent, "escape-patterns.json"))
	assert.True(t, os.IsNotExist(err))
}

// TestEnsureWithin checks the containment rule on already-joined paths.
func TestEnsureWithin(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "data", "patterns")

	assert.NoError(t, ensureWithin(root, filepath.Join(root, "react-patterns.json")))
	assert.ErrorIs(t, ensureWithin(root, filepath.Join(root, "..", "react-patterns.json")), ErrPathEscape)
	assert.ErrorIs(t, ensureWithin(root, filepath.Join(root, "sub", "x.json")), ErrPathEscape)
	assert.ErrorIs(t, ensureWithin(root, root), ErrPathEscape)
}

// TestSaveLoadRoundTrip verifies Save followed by Load reproduces the collection.
func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, dir)

	for i, fw := range []string{"react", "vue", "react", "blazor-server"} {
		p := samplePattern(fmt.Sprintf("p%d", i), fw, "cat")
		p.Tags = []string{"a", "b"}
		_, err := s.Add(p)
		require.NoError(t, err)
	}
	_, err := s.IncrementUsage("p2")
	require.NoError(t, err)
	require.NoError(t, s.Save())

	for _, name := range []string{"react-patterns.json", "vue-patterns.json", "blazor-server-patterns.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	reloaded := newTestStore(t, dir)
	report, err := reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, 4, report.Loaded)
	assert.Empty(t, report.Failed)

	for _, want := range s.All() {
		got, ok := reloaded.Get(want.ID)
		require.True(t, ok, want.ID)
		assert.Equal(t, want.Framework, got.Framework)
		assert.Equal(t, want.Category, got.Category)
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.Description, got.Description)
		assert.Equal(t, want.Code, got.Code)
		assert.Equal(t, want.Tags, got.Tags)
		assert.Equal(t, want.UsageCount, got.UsageCount)
		assert.Equal(t, want.RelevanceScore, got.RelevanceScore)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt))
	}
	checkIndexes(t, reloaded)

	// No temp files left behind.
	matches, err := filepath.Glob(filepath.Join(dir, ".patterns-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

// TestSaveMovesPatternOutOfForeignFile verifies a pattern loaded from a file
// other than its framework file survives an update and a reload.
func TestSaveMovesPatternOutOfForeignFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "aspnet.json"), `{"patterns":[
		{"id":"p1","framework":"react","category":"hooks","title":"Effect cleanup","relevance_score":0.5,"usage_count":0}
	]}`)

	s := newTestStore(t, dir)
	_, err := s.Load()
	require.NoError(t, err)
	_, err = s.IncrementUsage("p1")
	require.NoError(t, err)
	require.NoError(t, s.Save())

	_, err = os.Stat(filepath.Join(dir, "aspnet.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "foreign file should be removed once empty")

	reloaded := newTestStore(t, dir)
	report, err := reloaded.Load()
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)
	p, ok := reloaded.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 1, p.UsageCount)

	// A second update round-trips as well.
	_, err = reloaded.IncrementUsage("p1")
	require.NoError(t, err)
	require.NoError(t, reloaded.Save())
	again := newTestStore(t, dir)
	_, err = again.Load()
	require.NoError(t, err)
	p, ok = again.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 2, p.UsageCount)
}

// TestSaveKeepsUnrelatedRecordsInForeignFile verifies pruning only drops the
// records that now live in their framework file.
func TestSaveKeepsUnrelatedRecordsInForeignFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mixed.json"), `{"patterns":[
		{"id":"p1","framework":"react","category":"hooks","relevance_score":0.5},
		{"id":"broken","framework":"react","category":"hooks","relevance_score":7}
	]}`)

	s := newTestStore(t, dir)
	report, err := s.Load()
	require.NoError(t, err)
	require.Len(t, report.Skipped, 1)
	require.NoError(t, s.Save())

	records, err := readPatternFile(filepath.Join(dir, "mixed.json"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "broken", records[0].ID)

	records, err = readPatternFile(filepath.Join(dir, "react-patterns.json"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "p1", records[0].ID)
}

// TestLoadPrefersFrameworkFileOnDuplicate verifies the copy in the
// framework's own file wins over a stale copy that sorts earlier.
func TestLoadPrefersFrameworkFileOnDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "aspnet.json"), `{"patterns":[
		{"id":"p1","framework":"react","category":"hooks","relevance_score":0.5,"usage_count":0}
	]}`)
	writeFile(t, filepath.Join(dir, "react-patterns.json"), `{"patterns":[
		{"id":"p1","framework":"react","category":"hooks","relevance_score":0.5,"usage_count":4}
	]}`)

	s := newTestStore(t, dir)
	report, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Loaded)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, filepath.Join(dir, "aspnet.json"), report.Skipped[0].Path)
	assert.ErrorIs(t, report.Skipped[0].Err, ErrDuplicateID)

	p, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 4, p.UsageCount)
	checkIndexes(t, s)
}

// TestSaveThroughSymlinkedDirectory verifies the canonical directory is used.
func TestSaveThroughSymlinkedDirectory(t *testing.T) {
	real := t.TempDir()
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	s := newTestStore(t, link)
	_, err := s.Add(samplePattern("p1", "react", "hooks"))
	require.NoError(t, err)
	require.NoError(t, s.Save())

	_, err = os.Stat(filepath.Join(real, "react-patterns.json"))
	assert.NoError(t, err)
}

// TestIncrementUsage verifies usage grows by exactly one per call.
func TestIncrementUsage(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	_, err := s.Add(samplePattern("p1", "react", "hooks"))
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		p, err := s.IncrementUsage("p1")
		require.NoError(t, err)
		assert.Equal(t, i, p.UsageCount)
		assert.False(t, p.UpdatedAt.Before(p.CreatedAt))
	}

	_, err = s.IncrementUsage("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestConcurrentAccess exercises readers and writers together under -race.
func TestConcurrentAccess(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fw := []string{"react", "vue"}[i%2]
			_, err := s.Add(samplePattern(fmt.Sprintf("p%d", i), fw, "cat"))
			assert.NoError(t, err)
			_ = s.Search(SearchCriteria{Framework: fw})
			_ = s.Statistics()
			assert.NoError(t, s.Save())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, s.Len())
	checkIndexes(t, s)
}

// TestStatistics covers totals, the average and sorted distinct sets.
func TestStatistics(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	empty := s.Statistics()
	assert.Equal(t, 0, empty.TotalPatterns)
	assert.Equal(t, 0.0, empty.AverageRelevance)

	frameworks := []string{"vue", "react", "blazor-server"}
	categories := []string{"state", "hooks", "lifecycle"}
	for i := 0; i < 27; i++ {
		p := samplePattern(fmt.Sprintf("p%02d", i), frameworks[i%3], categories[(i/3)%3])
		p.RelevanceScore = 0.91
		p.UsageCount = i
		_, err := s.Add(p)
		require.NoError(t, err)
	}

	stats := s.Statistics()
	assert.Equal(t, 27, stats.TotalPatterns)
	assert.InDelta(t, 0.91, stats.AverageRelevance, 1e-9)
	assert.Equal(t, 351, stats.TotalUsage)
	assert.Equal(t, []string{"hooks", "lifecycle", "state"}, stats.Categories)
	assert.Equal(t, []string{"blazor-server", "react", "vue"}, stats.Frameworks)
}
