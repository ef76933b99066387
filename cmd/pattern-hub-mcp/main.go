/*
Package main is the entry point for pattern-hub-mcp CLI.

pattern-hub-mcp is a local MCP server that analyzes source projects and serves
curated code patterns for the detected framework to AI coding assistants.

Usage:

	pattern-hub-mcp [command]

Available Commands:

	serve       Run the MCP server (stdio transport)
	analyze     Analyze a project directory and print its briefing
	patterns    Inspect and maintain the pattern store
	config      Create or show the settings file
	version     Show version information

Examples:

	# Run as MCP server
	pattern-hub-mcp serve

	# Print the briefing for a project
	pattern-hub-mcp analyze ./src/MyApp

	# Seed the pattern store
	pattern-hub-mcp patterns import ./seed/blazor.yaml
*/
package main

import (
	"fmt"
	"os"

	"github.com/khanglvm/pattern-hub-mcp/internal/cli"
	"github.com/khanglvm/pattern-hub-mcp/internal/version"
)

// Version information (set via ldflags during build)
var (
	buildVersion = "dev"
	commit       = "none"
	date         = "unknown"
)

func main() {
	version.Version = buildVersion
	version.Commit = commit
	version.Date = date

	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
