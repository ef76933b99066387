package cli

import (
	"github.com/spf13/cobra"

	"github.com/khanglvm/pattern-hub-mcp/internal/version"
)

// NewRootCmd assembles the pattern-hub-mcp command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pattern-hub-mcp",
		Short: "Code pattern knowledge base for AI coding assistants (MCP)",
		Long: `pattern-hub-mcp is a local MCP (Model Context Protocol) server that gives
AI coding assistants two things about the project they are working on:

  • Facts: ecosystem, framework, dependencies, classes and methods
  • Patterns: curated code snippets for the detected framework, scored
    by relevance, usage, query match, tags and recency

Patterns live as <framework>-patterns.json files in the patterns directory
and can be extended at runtime with the train-pattern tool.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	AddGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewAnalyzeCmd())
	rootCmd.AddCommand(NewPatternsCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}
