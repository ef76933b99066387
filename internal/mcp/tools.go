package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/pattern-hub-mcp/internal/learning"
	"github.com/khanglvm/pattern-hub-mcp/internal/patterns"
	"github.com/khanglvm/pattern-hub-mcp/internal/search"
	"github.com/khanglvm/pattern-hub-mcp/internal/storage"
)

// Tool names.
const (
	ToolAnalyzeProject = "analyze-project"
	ToolGetPatterns    = "get-patterns"
	ToolSearchPatterns = "search-patterns"
	ToolTrainPattern   = "train-pattern"
	ToolGetStatistics  = "get-statistics"
)

// DefaultRelevance is the base relevance of a trained pattern.
const DefaultRelevance = 0.8

// DefaultPatternVersion is the version of a trained pattern that names none.
const DefaultPatternVersion = "latest"

// Tool describes one tool in tools/list.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func stringArrayProp(description string) map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": description}
}

func numberProp(description string) map[string]any {
	return map[string]any{"type": "number", "description": description}
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var toolDefinitions = []Tool{
	{
		Name: ToolAnalyzeProject,
		Description: `Analyze a project directory (.NET, Rust, Node, Python, Go, Java, PHP) and get a briefing: detected framework, dependencies, counts, relevant patterns and suggestions.

WHEN TO USE: Call this first when starting work on a project.`,
		InputSchema: objectSchema(map[string]any{
			"project_path": stringProp("Absolute path to the project directory (containing .csproj, Cargo.toml, package.json, pyproject.toml, go.mod, pom.xml or composer.json)"),
			"path":         stringProp("Alias of project_path"),
			"category":     stringProp("Optional pattern category to focus on (e.g., 'lifecycle')"),
		}, "project_path"),
	},
	{
		Name:        ToolGetPatterns,
		Description: "Get code patterns for a framework, optionally narrowed to one category.",
		InputSchema: objectSchema(map[string]any{
			"framework": stringProp("Framework tag (e.g., 'blazor-server', 'aspnet-core')"),
			"category":  stringProp("Pattern category (e.g., 'lifecycle', 'dependency-injection')"),
		}, "framework"),
	},
	{
		Name: ToolSearchPatterns,
		Description: `Search patterns by text, framework, category, tags and minimum score.

Results are ordered by score, then usage count, then id. Query text is matched case-insensitively in title, description and code.`,
		InputSchema: objectSchema(map[string]any{
			"query":     stringProp("Text to look for in title, description and code"),
			"framework": stringProp("Filter by framework"),
			"category":  stringProp("Filter by category"),
			"tags":      stringArrayProp("Tags that boost matching patterns"),
			"min_score": numberProp("Minimum score (0.0 - 1.0)"),
			"limit":     numberProp("Maximum number of results"),
		}),
	},
	{
		Name:        ToolTrainPattern,
		Description: "Add a new code pattern to the store and save it to disk.",
		InputSchema: objectSchema(map[string]any{
			"id":              stringProp("Unique identifier for the pattern"),
			"category":        stringProp("Pattern category"),
			"framework":       stringProp("Target framework"),
			"version":         stringProp("Framework version (default 'latest')"),
			"title":           stringProp("Pattern title"),
			"description":     stringProp("Pattern description"),
			"code":            stringProp("Code example"),
			"tags":            stringArrayProp("Pattern tags"),
			"relevance_score": numberProp("Base relevance in [0, 1] (default 0.8)"),
		}, "id", "category", "framework", "title", "description", "code"),
	},
	{
		Name:        ToolGetStatistics,
		Description: "Get statistics about the pattern store and the current session.",
		InputSchema: objectSchema(map[string]any{}),
	},
}

// Content is one content block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the result of tools/call.
type ToolResult struct {
	Content           []Content `json:"content"`
	StructuredContent any       `json:"structuredContent,omitempty"`
	IsError           bool      `json:"isError"`
}

func textResult(text string) *ToolResult {
	return &ToolResult{Content: []Content{{Type: "text", Text: text}}}
}

func errorResult(format string, args ...any) *ToolResult {
	r := textResult(fmt.Sprintf(format, args...))
	r.IsError = true
	return r
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall handles tool execution requests.
func (s *Server) handleToolsCall(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	var params callParams
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, invalidParams("invalid params: missing tool name")
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, invalidParams("invalid params: %v", err)
	}
	if params.Name == "" {
		return nil, invalidParams("invalid params: missing tool name")
	}

	started := s.now()
	var (
		result *ToolResult
		rpcErr *RPCError
	)

	switch params.Name {
	case ToolAnalyzeProject:
		result, rpcErr = s.execAnalyzeProject(ctx, params.Arguments)
	case ToolGetPatterns:
		result, rpcErr = s.execGetPatterns(params.Arguments)
	case ToolSearchPatterns:
		result, rpcErr = s.execSearchPatterns(params.Arguments)
	case ToolTrainPattern:
		result, rpcErr = s.execTrainPattern(params.Arguments)
	case ToolGetStatistics:
		result, rpcErr = s.execGetStatistics()
	default:
		return nil, invalidParams("unknown tool: %s", params.Name)
	}

	failed := rpcErr != nil || (result != nil && result.IsError)
	s.track(learning.NewToolCallEvent(params.Name, params.Arguments, started, failed))
	s.logger.Debug("tool call",
		zap.String("tool", params.Name),
		zap.Duration("duration", time.Since(started)),
		zap.Bool("failed", failed),
	)

	if rpcErr != nil {
		return nil, rpcErr
	}
	return result, nil
}

// decodeArgs decodes tool arguments into v. Absent arguments leave v zero.
func decodeArgs(raw json.RawMessage, v any) *RPCError {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalidParams("invalid arguments: %v", err)
	}
	return nil
}

func requireArgs(pairs ...string) *RPCError {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return invalidParams("missing required argument: %s", pairs[i])
		}
	}
	return nil
}

type analyzeArgs struct {
	ProjectPath string `json:"project_path"`
	Path        string `json:"path"`
	Category    string `json:"category"`
}

func (s *Server) execAnalyzeProject(ctx context.Context, raw json.RawMessage) (*ToolResult, *RPCError) {
	var args analyzeArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	path := args.ProjectPath
	if path == "" {
		path = args.Path
	}
	if err := requireArgs("project_path", path); err != nil {
		return nil, err
	}

	if s.analyzer == nil {
		return errorResult("Project analysis is not available on this server."), nil
	}

	p, err := s.analyzer.Analyze(ctx, path)
	if err != nil {
		s.logger.Warn("project analysis failed", zap.String("path", path), zap.Error(err))
		return errorResult("Failed to analyze project: %v", err), nil
	}

	analysis, err := s.builder.Analyze(ctx, p, args.Category)
	if err != nil {
		return errorResult("Failed to build analysis: %v", err), nil
	}

	s.track(learning.NewPatternsServedEvent("briefing", scoredIDs(analysis.Patterns)))

	result := textResult(analysis.Briefing)
	result.StructuredContent = map[string]any{
		"framework":   analysis.Framework,
		"ecosystem":   p.Ecosystem,
		"related":     analysis.Related,
		"statistics":  analysis.Statistics,
		"suggestions": analysis.Suggestions,
		"patterns":    scoredIDs(analysis.Patterns),
	}
	return result, nil
}

type getPatternsArgs struct {
	Framework string `json:"framework"`
	Category  string `json:"category"`
}

func (s *Server) execGetPatterns(raw json.RawMessage) (*ToolResult, *RPCError) {
	var args getPatternsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := requireArgs("framework", args.Framework); err != nil {
		return nil, err
	}

	results := s.store.Search(patterns.SearchCriteria{
		Framework: args.Framework,
		Category:  args.Category,
	})
	s.track(learning.NewPatternsServedEvent("get", scoredIDs(results)))

	return textResult(formatPatternList(args.Framework, args.Category, results)), nil
}

type searchArgs struct {
	Query     string   `json:"query"`
	Framework string   `json:"framework"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	MinScore  *float64 `json:"min_score"`
	Limit     *int     `json:"limit"`
}

func (s *Server) execSearchPatterns(raw json.RawMessage) (*ToolResult, *RPCError) {
	var args searchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Limit != nil && *args.Limit < 0 {
		return nil, invalidParams("invalid arguments: limit must not be negative")
	}

	criteria := patterns.SearchCriteria{
		Query:     args.Query,
		Framework: args.Framework,
		Category:  args.Category,
		Tags:      args.Tags,
	}
	if args.MinScore != nil {
		criteria.MinScore = *args.MinScore
	}

	results := s.store.Search(criteria)
	related := false
	if len(results) == 0 && strings.TrimSpace(args.Query) != "" && s.index != nil {
		results = s.relatedPatterns(args.Query, limitOr(args.Limit, search.DefaultLimit))
		related = len(results) > 0
	}
	if args.Limit != nil && *args.Limit > 0 && len(results) > *args.Limit {
		results = results[:*args.Limit]
	}

	s.track(learning.NewSearchEvent(args.Query, args.Framework, len(results)))
	s.track(learning.NewPatternsServedEvent("search", scoredIDs(results)))

	return textResult(formatSearchResults(results, related)), nil
}

func limitOr(limit *int, def int) int {
	if limit != nil && *limit > 0 {
		return *limit
	}
	return def
}

// relatedPatterns resolves keyword hits to stored patterns.
func (s *Server) relatedPatterns(query string, limit int) []patterns.ScoredPattern {
	hits, err := s.index.Related(query, limit)
	if err != nil {
		s.logger.Warn("related pattern lookup failed", zap.Error(err))
		return []patterns.ScoredPattern{}
	}

	now := s.now()
	out := make([]patterns.ScoredPattern, 0, len(hits))
	for _, hit := range hits {
		p, ok := s.store.Get(hit.ID)
		if !ok {
			continue
		}
		out = append(out, patterns.ScoredPattern{
			Pattern: p,
			Score:   patterns.Score(p, patterns.SearchCriteria{Query: query}, now),
		})
	}
	return out
}

type trainArgs struct {
	ID             string   `json:"id"`
	Category       string   `json:"category"`
	Framework      string   `json:"framework"`
	Version        string   `json:"version"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Code           string   `json:"code"`
	Tags           []string `json:"tags"`
	RelevanceScore *float64 `json:"relevance_score"`
}

func (s *Server) execTrainPattern(raw json.RawMessage) (*ToolResult, *RPCError) {
	var args trainArgs
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if err := requireArgs(
		"id", args.ID,
		"category", args.Category,
		"framework", args.Framework,
		"title", args.Title,
		"description", args.Description,
		"code", args.Code,
	); err != nil {
		return nil, err
	}

	p := patterns.Pattern{
		ID:             args.ID,
		Category:       args.Category,
		Framework:      args.Framework,
		Version:        args.Version,
		Title:          args.Title,
		Description:    args.Description,
		Code:           args.Code,
		Tags:           args.Tags,
		RelevanceScore: DefaultRelevance,
	}
	if p.Version == "" {
		p.Version = DefaultPatternVersion
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if args.RelevanceScore != nil {
		p.RelevanceScore = *args.RelevanceScore
	}

	added, err := s.store.Add(p)
	if err != nil {
		s.logger.Info("rejected pattern", zap.String("id", p.ID), zap.Error(err))
		if isValidationError(err) {
			return errorResult("Invalid pattern: %v", err), nil
		}
		return errorResult("Failed to add pattern: %v", err), nil
	}

	if err := s.store.Save(); err != nil {
		s.logger.Error("failed to save patterns", zap.String("dir", s.store.Dir()), zap.Error(err))
		return errorResult("Pattern '%s' was added but saving failed: %v", added.ID, err), nil
	}

	if s.index != nil {
		if err := s.index.IndexPattern(added); err != nil {
			s.logger.Warn("failed to index pattern", zap.String("id", added.ID), zap.Error(err))
		}
	}

	text := fmt.Sprintf("✅ Pattern '%s' added successfully!\n\n**ID:** %s\n**Category:** %s\n**Framework:** %s\n**File:** %s",
		added.Title, added.ID, added.Category, added.Framework, patterns.FileName(added.Framework))
	return textResult(text), nil
}

// Statistics is the structured get-statistics payload.
type Statistics struct {
	patterns.Statistics
	Session *storage.Summary `json:"session,omitempty"`
}

func (s *Server) execGetStatistics() (*ToolResult, *RPCError) {
	stats := Statistics{Statistics: s.store.Statistics()}

	if s.tracker != nil {
		sum, err := s.tracker.Summary()
		if err != nil {
			s.logger.Warn("failed to read session summary", zap.Error(err))
		} else {
			stats.Session = &sum
		}
	}

	result := textResult(formatStatistics(stats))
	result.StructuredContent = stats
	return result, nil
}

func scoredIDs(results []patterns.ScoredPattern) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Pattern.ID)
	}
	return ids
}

// isValidationError reports whether err came from pattern validation.
func isValidationError(err error) bool {
	return errors.Is(err, patterns.ErrInvalidFramework) ||
		errors.Is(err, patterns.ErrInvalidID) ||
		errors.Is(err, patterns.ErrInvalidScore) ||
		errors.Is(err, patterns.ErrDuplicateID)
}
