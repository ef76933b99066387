package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/khanglvm/pattern-hub-mcp/internal/patterns"
)

// defaultImportRelevance is used for imported records without relevance_score.
const defaultImportRelevance = 0.8

// NewPatternsCmd creates the 'patterns' command group for maintaining the
// pattern directory without an MCP client.
func NewPatternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "patterns",
		Aliases: []string{"p"},
		Short:   "Inspect and maintain the pattern store",
		Long: `Inspect and maintain the pattern files in the patterns directory.

Commands:
  list    List patterns, optionally by framework and category
  search  Scored search, same ranking as the search-patterns tool
  stats   Store statistics
  use     Record one use of a pattern
  import  Import patterns from a YAML or JSON file`,
	}

	cmd.AddCommand(newPatternsListCmd())
	cmd.AddCommand(newPatternsSearchCmd())
	cmd.AddCommand(newPatternsStatsCmd())
	cmd.AddCommand(newPatternsUseCmd())
	cmd.AddCommand(newPatternsImportCmd())

	return cmd
}

func newPatternsListCmd() *cobra.Command {
	var (
		framework  string
		category   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored patterns",
		Example: `  pattern-hub-mcp patterns list
  pattern-hub-mcp patterns ls --framework blazor-server --category lifecycle
  pattern-hub-mcp patterns list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.close()
			if err := app.loadPatterns(); err != nil {
				return err
			}

			results := app.store.Search(patterns.SearchCriteria{Framework: framework, Category: category})
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, results)
			}

			if len(results) == 0 {
				fmt.Fprintln(out, "No patterns found.")
				fmt.Fprintf(out, "Patterns directory: %s\n", app.store.Dir())
				return nil
			}

			fmt.Fprintf(out, "Patterns (%d):\n\n", len(results))
			for _, r := range results {
				printPatternSummary(out, r)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&framework, "framework", "f", "", "Only this framework")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Only this category")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func newPatternsSearchCmd() *cobra.Command {
	var (
		criteria   patterns.SearchCriteria
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search patterns by text, filters and tags",
		Example: `  pattern-hub-mcp patterns search lifecycle --framework blazor-server
  pattern-hub-mcp patterns search --tag async --tag blazor --min-score 0.9`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return errors.New("--limit must not be negative")
			}
			if len(args) == 1 {
				criteria.Query = args[0]
			}

			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.close()
			if err := app.loadPatterns(); err != nil {
				return err
			}

			results := app.store.Search(criteria)
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, results)
			}
			fmt.Fprintf(out, "Found %d patterns\n\n", len(results))
			for _, r := range results {
				printPatternSummary(out, r)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&criteria.Framework, "framework", "f", "", "Filter by framework")
	cmd.Flags().StringVarP(&criteria.Category, "category", "c", "", "Filter by category")
	cmd.Flags().StringArrayVarP(&criteria.Tags, "tag", "t", nil, "Tag that boosts matching patterns (repeatable)")
	cmd.Flags().Float64Var(&criteria.MinScore, "min-score", 0, "Minimum score (0.0 - 1.0)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	return cmd
}

func newPatternsStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show pattern store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.close()
			if err := app.loadPatterns(); err != nil {
				return err
			}

			stats := app.store.Statistics()
			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, stats)
			}

			fmt.Fprintln(out, "Pattern Store Statistics")
			fmt.Fprintln(out, "========================")
			fmt.Fprintf(out, "Directory:         %s\n", app.store.Dir())
			fmt.Fprintf(out, "Total patterns:    %d\n", stats.TotalPatterns)
			fmt.Fprintf(out, "Total usage:       %d\n", stats.TotalUsage)
			fmt.Fprintf(out, "Average relevance: %.2f\n", stats.AverageRelevance)
			fmt.Fprintf(out, "Categories:        %s\n", joinOrNone(stats.Categories))
			fmt.Fprintf(out, "Frameworks:        %s\n", joinOrNone(stats.Frameworks))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

func newPatternsUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Record one use of a pattern and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.close()
			if err := app.loadPatterns(); err != nil {
				return err
			}

			p, err := app.store.IncrementUsage(args[0])
			if err != nil {
				return err
			}
			if err := app.store.Save(); err != nil {
				return fmt.Errorf("failed to save patterns: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s used %d times\n", p.ID, p.UsageCount)
			return nil
		},
	}
}

// importRecord is one pattern in an import file. Timestamps are always
// stamped by the store.
type importRecord struct {
	ID             string   `yaml:"id"`
	Category       string   `yaml:"category"`
	Framework      string   `yaml:"framework"`
	Version        string   `yaml:"version"`
	Title          string   `yaml:"title"`
	Description    string   `yaml:"description"`
	Code           string   `yaml:"code"`
	Tags           []string `yaml:"tags"`
	UsageCount     int      `yaml:"usage_count"`
	RelevanceScore *float64 `yaml:"relevance_score"`
}

func (r importRecord) pattern() patterns.Pattern {
	p := patterns.Pattern{
		ID:             r.ID,
		Category:       r.Category,
		Framework:      r.Framework,
		Version:        r.Version,
		Title:          r.Title,
		Description:    r.Description,
		Code:           r.Code,
		Tags:           r.Tags,
		UsageCount:     r.UsageCount,
		RelevanceScore: defaultImportRelevance,
	}
	if p.Version == "" {
		p.Version = "latest"
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if r.RelevanceScore != nil {
		p.RelevanceScore = *r.RelevanceScore
	}
	return p
}

// parseImportFile accepts either {"patterns": [...]} or a bare list, in YAML
// or JSON.
func parseImportFile(data []byte) ([]importRecord, error) {
	var wrapped struct {
		Patterns []importRecord `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err == nil {
		return wrapped.Patterns, nil
	}

	var list []importRecord
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("expected a list of patterns or a 'patterns' key: %w", err)
	}
	return list, nil
}

func newPatternsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import patterns from a YAML or JSON file",
		Long: `Import patterns from a YAML or JSON file and save them.

The file holds either a list of patterns or a "patterns" key with the list.
Records that fail validation or reuse an existing id are reported and skipped.`,
		Example: `  pattern-hub-mcp patterns import ./seed/blazor.yaml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}
			records, err := parseImportFile(data)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer app.close()
			if err := app.loadPatterns(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			imported := 0
			for _, r := range records {
				if _, err := app.store.Add(r.pattern()); err != nil {
					app.logger.Warn("skipping pattern", zap.String("id", r.ID), zap.Error(err))
					fmt.Fprintf(out, "✗ %s: %v\n", r.ID, err)
					continue
				}
				imported++
			}

			if imported > 0 {
				if err := app.store.Save(); err != nil {
					return fmt.Errorf("failed to save patterns: %w", err)
				}
			}

			fmt.Fprintf(out, "Imported %d of %d patterns into %s\n", imported, len(records), app.store.Dir())
			return nil
		},
	}
}

func printPatternSummary(out io.Writer, r patterns.ScoredPattern) {
	p := r.Pattern
	fmt.Fprintf(out, "  %s\n", p.ID)
	fmt.Fprintf(out, "    Title:     %s\n", p.Title)
	fmt.Fprintf(out, "    Framework: %s  Category: %s\n", p.Framework, p.Category)
	fmt.Fprintf(out, "    Score:     %.2f  Usage: %d\n", r.Score, p.UsageCount)
	if len(p.Tags) > 0 {
		fmt.Fprintf(out, "    Tags:      %s\n", strings.Join(p.Tags, ", "))
	}
	fmt.Fprintln(out)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
