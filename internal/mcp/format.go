package mcp

import (
	"fmt"
	"strings"

	"github.com/khanglvm/pattern-hub-mcp/internal/briefing"
	"github.com/khanglvm/pattern-hub-mcp/internal/patterns"
)

func formatPatternList(framework, category string, results []patterns.ScoredPattern) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Patterns for %s", framework)
	if category != "" {
		fmt.Fprintf(&sb, " (%s)", category)
	}
	sb.WriteString("\n\n")

	if len(results) == 0 {
		sb.WriteString("No patterns found.\n")
		return sb.String()
	}

	for _, r := range results {
		p := r.Pattern
		fmt.Fprintf(&sb, "## %s\n\n", p.Title)
		fmt.Fprintf(&sb, "**Category:** %s\n", p.Category)
		fmt.Fprintf(&sb, "**ID:** %s\n", p.ID)
		fmt.Fprintf(&sb, "%s\n\n", p.Description)
		writeCode(&sb, p)
		fmt.Fprintf(&sb, "**Tags:** %s\n", strings.Join(p.Tags, ", "))
		fmt.Fprintf(&sb, "**Usage Count:** %d\n", p.UsageCount)
		fmt.Fprintf(&sb, "**Relevance:** %.2f\n\n", p.RelevanceScore)
		sb.WriteString("---\n\n")
	}
	return sb.String()
}

func formatSearchResults(results []patterns.ScoredPattern, related bool) string {
	var sb strings.Builder
	sb.WriteString("# Pattern Search Results\n\n")
	fmt.Fprintf(&sb, "Found %d patterns\n\n", len(results))
	if related {
		sb.WriteString("_No exact matches; showing keyword-related patterns._\n\n")
	}

	for _, r := range results {
		p := r.Pattern
		fmt.Fprintf(&sb, "## %s (Score: %.2f)\n\n", p.Title, r.Score)
		fmt.Fprintf(&sb, "**ID:** %s | **Framework:** %s | **Category:** %s\n", p.ID, p.Framework, p.Category)
		fmt.Fprintf(&sb, "%s\n\n", p.Description)
		writeCode(&sb, p)
		sb.WriteString("---\n\n")
	}
	return sb.String()
}

func formatStatistics(stats Statistics) string {
	var sb strings.Builder
	sb.WriteString("# Pattern Database Statistics\n\n")
	fmt.Fprintf(&sb, "**Total Patterns:** %d\n", stats.TotalPatterns)
	fmt.Fprintf(&sb, "**Total Usage:** %d\n", stats.TotalUsage)
	fmt.Fprintf(&sb, "**Average Relevance:** %.2f\n\n", stats.AverageRelevance)

	sb.WriteString("## Categories\n")
	writeList(&sb, stats.Categories)
	sb.WriteString("\n## Frameworks\n")
	writeList(&sb, stats.Frameworks)

	if stats.Session != nil {
		sb.WriteString("\n## Session\n")
		fmt.Fprintf(&sb, "- Tool calls: %d (%d failed)\n", stats.Session.ToolCalls, stats.Session.FailedCalls)
		fmt.Fprintf(&sb, "- Searches: %d\n", stats.Session.Searches)
		fmt.Fprintf(&sb, "- Patterns served: %d\n", stats.Session.PatternsServed)
	}
	return sb.String()
}

func writeCode(sb *strings.Builder, p patterns.Pattern) {
	sb.WriteString(briefing.CodeBlock(briefing.FenceLanguage(p.Framework), p.Code))
	sb.WriteString("\n")
}

func writeList(sb *strings.Builder, items []string) {
	if len(items) == 0 {
		sb.WriteString("_None._\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
}
