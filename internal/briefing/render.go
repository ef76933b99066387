package briefing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/khanglvm/pattern-hub-mcp/internal/project"
)

var fenceLanguages = map[project.Ecosystem]string{
	project.DotNet: "csharp",
	project.Rust:   "rust",
	project.Node:   "javascript",
	project.Python: "python",
	project.Go:     "go",
	project.Java:   "java",
	project.PHP:    "php",
}

var frameworkEcosystems = map[string]project.Ecosystem{
	"blazor-server":    project.DotNet,
	"aspnet-core":      project.DotNet,
	"entity-framework": project.DotNet,
	"laravel":          project.PHP,
	"symfony":          project.PHP,
	"nextjs":           project.Node,
	"nestjs":           project.Node,
	"angular":          project.Node,
	"react":            project.Node,
	"vue":              project.Node,
	"express":          project.Node,
	"django":           project.Python,
	"fastapi":          project.Python,
	"flask":            project.Python,
	"actix-web":        project.Rust,
	"axum":             project.Rust,
	"tokio":            project.Rust,
	"gin":              project.Go,
	"fiber":            project.Go,
	"echo":             project.Go,
	"spring":           project.Java,
}

// FenceLanguage returns the code fence language for a framework tag, or ""
// for frameworks it does not know.
func FenceLanguage(framework string) string {
	return fenceLanguages[frameworkEcosystems[strings.ToLower(framework)]]
}

// CodeBlock wraps code in a fenced block tagged with lang. The fence is one
// backtick longer than the longest backtick run inside code, and never
// shorter than three.
func CodeBlock(lang, code string) string {
	longest, run := 0, 0
	for _, r := range code {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	fence := strings.Repeat("`", max(3, longest+1))
	return fence + lang + "\n" + strings.TrimRight(code, "\n") + "\n" + fence + "\n"
}

// Render formats an analysis as markdown. Sections always appear in the same
// order: header, dependencies, statistics, patterns, suggestions.
func Render(a *Analysis) string {
	var sb strings.Builder
	p := a.Project
	if p == nil {
		p = &project.Project{Ecosystem: project.Unknown}
	}

	fmt.Fprintf(&sb, "# Project Analysis: %s\n\n", p.Name)
	fmt.Fprintf(&sb, "**Ecosystem:** %s\n", p.Ecosystem)
	fmt.Fprintf(&sb, "**Framework:** %s\n", a.Framework)
	if p.Path != "" {
		fmt.Fprintf(&sb, "**Path:** %s\n", p.Path)
	}
	writeField(&sb, "Version", p.Version)
	writeField(&sb, "Target Framework", p.Metadata.TargetFramework)
	writeField(&sb, "Language Version", p.Metadata.LanguageVersion)
	writeField(&sb, "Entry Point", p.Metadata.EntryPoint)
	writeField(&sb, "Build Command", p.Metadata.BuildCommand)
	if len(p.Metadata.Extra) > 0 {
		keys := make([]string, 0, len(p.Metadata.Extra))
		for k := range p.Metadata.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeField(&sb, k, p.Metadata.Extra[k])
		}
	}
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "## Dependencies (%d)\n\n", len(p.Dependencies))
	if len(p.Dependencies) == 0 {
		sb.WriteString("_None detected._\n")
	}
	for _, d := range p.Dependencies {
		fmt.Fprintf(&sb, "- %s (%s)", d.Name, d.Version)
		if d.DevOnly {
			sb.WriteString(" [dev]")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Project Statistics\n\n")
	fmt.Fprintf(&sb, "- Files: %d\n", a.Statistics.Files)
	fmt.Fprintf(&sb, "- Classes: %d\n", a.Statistics.Classes)
	fmt.Fprintf(&sb, "- Methods: %d\n", a.Statistics.Methods)
	fmt.Fprintf(&sb, "- Lines: %d\n", a.Statistics.Lines)
	fmt.Fprintf(&sb, "- Service registrations: %d\n\n", p.ServiceRegistrations)

	if a.Related {
		sb.WriteString("## Related Patterns\n\n")
		fmt.Fprintf(&sb, "_No patterns are stored for %s; showing keyword matches._\n\n", a.Framework)
	} else {
		sb.WriteString("## Relevant Patterns\n\n")
	}
	if len(a.Patterns) == 0 {
		sb.WriteString("_No patterns found._\n\n")
	}
	lang := fenceLanguages[p.Ecosystem]
	for _, sp := range a.Patterns {
		pat := sp.Pattern
		fmt.Fprintf(&sb, "### %s\n", pat.Title)
		fmt.Fprintf(&sb, "**Category:** %s | **Score:** %.2f\n\n", pat.Category, sp.Score)
		if pat.Description != "" {
			fmt.Fprintf(&sb, "%s\n\n", pat.Description)
		}
		sb.WriteString(CodeBlock(lang, pat.Code))
		if len(pat.Tags) > 0 {
			fmt.Fprintf(&sb, "**Tags:** %s\n", strings.Join(pat.Tags, ", "))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Suggestions\n\n")
	if len(a.Suggestions) == 0 {
		sb.WriteString("_No suggestions._\n")
	}
	for _, s := range a.Suggestions {
		fmt.Fprintf(&sb, "- [%s] **%s**: %s", strings.ToUpper(string(s.Severity)), s.Category, s.Message)
		if s.File != "" {
			fmt.Fprintf(&sb, " (`%s`)", s.File)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeField(sb *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(sb, "**%s:** %s\n", label, value)
	}
}
