package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/khanglvm/pattern-hub-mcp/internal/briefing"
	"github.com/khanglvm/pattern-hub-mcp/internal/search"
)

// NewAnalyzeCmd creates the 'analyze' command, which prints the same
// briefing the analyze-project tool returns.
func NewAnalyzeCmd() *cobra.Command {
	var (
		category   string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <path>",
		Short: "Analyze a project directory and print its briefing",
		Example: `  pattern-hub-mcp analyze ./src/MyBlazorApp
  pattern-hub-mcp analyze . --category lifecycle
  pattern-hub-mcp analyze . --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args[0], category, jsonOutput)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Focus on one pattern category")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output the full analysis as JSON")
	addAnalyzerFlags(cmd.Flags())

	return cmd
}

func runAnalyze(cmd *cobra.Command, path, category string, jsonOutput bool) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.loadPatterns(); err != nil {
		return err
	}

	projectAnalyzer, err := app.newAnalyzer()
	if err != nil {
		return err
	}
	p, err := projectAnalyzer.Analyze(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("failed to analyze project: %w", err)
	}

	opts := []briefing.Option{
		briefing.WithLogger(app.logger),
		briefing.WithMaxPatterns(app.settings.Briefing.MaxPatterns),
	}
	index, err := search.NewIndexer(app.logger)
	if err == nil {
		defer index.Close()
		if err := index.Rebuild(app.store.All()); err == nil {
			opts = append(opts, briefing.WithRelatedFinder(index))
		}
	}

	analysis, err := briefing.NewBuilder(app.store, opts...).Analyze(cmd.Context(), p, category)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(analysis)
	}
	fmt.Fprint(out, analysis.Briefing)
	return nil
}
