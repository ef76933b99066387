/*
Package cli implements the pattern-hub-mcp commands.

Every command resolves its settings the same way (flags, PATTERN_HUB_*
environment variables, the settings file, defaults) through loadApp, which
also builds the stderr logger and the pattern store.
*/
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/khanglvm/pattern-hub-mcp/internal/analyzer"
	"github.com/khanglvm/pattern-hub-mcp/internal/config"
	"github.com/khanglvm/pattern-hub-mcp/internal/logging"
	"github.com/khanglvm/pattern-hub-mcp/internal/patterns"
)

// AddGlobalFlags registers the flags shared by every command.
func AddGlobalFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Settings file (default ~/.pattern-hub-mcp.yaml)")
	fs.String("patterns-dir", "", "Directory holding <framework>-patterns.json files")
	fs.String("log-level", "", "Log level: debug, info, warn, error")
	fs.String("log-format", "", "Log format: console or json")
}

// addAnalyzerFlags registers the flags that bound project analysis.
func addAnalyzerFlags(fs *pflag.FlagSet) {
	fs.StringSlice("ignore", nil, "Glob patterns to skip, relative to the project root")
	fs.Int64("max-file-size", 0, "Skip source files larger than this many bytes")
	fs.Int("max-files", 0, "Maximum number of source files read per analysis")
	fs.Int("max-patterns", 0, "Maximum patterns included in a briefing")
}

// app is the wiring shared by the commands.
type app struct {
	settings *config.Settings
	logger   *zap.Logger
	store    *patterns.Store
}

// loadApp resolves settings for cmd and builds the logger and store. The
// store is not loaded yet.
func loadApp(cmd *cobra.Command) (*app, error) {
	configFile, _ := cmd.Flags().GetString("config")

	settings, err := config.LoadSettings(cmd.Flags(), configFile)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger, err := logging.New(settings.Log.Level, settings.Log.Format)
	if err != nil {
		return nil, err
	}

	store := patterns.NewStore(settings.Storage.PatternsDir, patterns.WithLogger(logger))
	return &app{settings: settings, logger: logger, store: store}, nil
}

// loadPatterns loads the store and logs a summary of skipped input.
func (a *app) loadPatterns() error {
	report, err := a.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load patterns: %w", err)
	}
	if len(report.Failed) > 0 || len(report.Skipped) > 0 {
		a.logger.Warn("some pattern input was skipped",
			zap.Int("failed_files", len(report.Failed)),
			zap.Int("skipped_records", len(report.Skipped)),
		)
	}
	return nil
}

func (a *app) newAnalyzer() (*analyzer.Analyzer, error) {
	return analyzer.New(analyzer.Options{
		IgnorePatterns: a.settings.Analyzer.IgnorePatterns,
		MaxFileSize:    a.settings.Analyzer.MaxFileSize,
		MaxFiles:       a.settings.Analyzer.MaxFiles,
	}, a.logger)
}

func (a *app) close() {
	_ = a.logger.Sync()
}
