package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanglvm/pattern-hub-mcp/internal/learning"
	"github.com/khanglvm/pattern-hub-mcp/internal/logging"
	"github.com/khanglvm/pattern-hub-mcp/internal/mcp"
	"github.com/khanglvm/pattern-hub-mcp/internal/search"
	"github.com/khanglvm/pattern-hub-mcp/internal/storage"
	"github.com/khanglvm/pattern-hub-mcp/internal/version"
)

// NewServeCmd creates the 'serve' command for running the MCP server.
//
// This is the main command that exposes the five pattern tools via stdio:
// analyze-project, get-patterns, search-patterns, train-pattern, get-statistics.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio transport)",
		Long: `Start the pattern-hub-mcp server using stdio transport.

This server exposes 5 tools to AI clients:
  • analyze-project - Analyze a project directory and get a briefing
  • get-patterns    - Get patterns for a framework
  • search-patterns - Scored pattern search
  • train-pattern   - Add a pattern and save it to disk
  • get-statistics  - Pattern store and session statistics

Frames are read from stdin and written to stdout; logs go to stderr.`,
		Example: `  # Run directly
  pattern-hub-mcp serve

  # Use a specific pattern directory
  pattern-hub-mcp serve --patterns-dir ./patterns

  # Add to Claude Code
  claude mcp add pattern-hub -- pattern-hub-mcp serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().String("journal-dsn", "", "SQLite DSN of the session journal (default in-memory)")
	cmd.Flags().Int("max-message-bytes", 0, "Largest accepted frame in bytes")
	cmd.Flags().String("server-name", "", "Server name reported in the initialize handshake")
	addAnalyzerFlags(cmd.Flags())

	return cmd
}

// runServe starts the MCP server with stdio transport and signal handling.
func runServe(cmd *cobra.Command) error {
	app, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()
	logger := app.logger

	if err := app.loadPatterns(); err != nil {
		return err
	}

	index, err := search.NewIndexer(logger)
	if err != nil {
		return fmt.Errorf("failed to create keyword index: %w", err)
	}
	defer index.Close()
	if err := index.Rebuild(app.store.All()); err != nil {
		logger.Warn("keyword index unavailable", zap.Error(err))
	}

	var journal storage.Journal
	if dsn := app.settings.Storage.JournalDSN; dsn != "" {
		j := storage.NewJournal(dsn, logger)
		defer j.Close()
		journal = j
		logger.Debug("session journal", zap.String("dsn", logging.SanitizeDSN(dsn)))
	}
	tracker := learning.NewTracker(journal, logger)
	defer tracker.Stop()

	projectAnalyzer, err := app.newAnalyzer()
	if err != nil {
		return err
	}

	serverVersion := app.settings.Server.Version
	if serverVersion == "" {
		serverVersion = version.Version
	}

	server := mcp.NewServer(app.store, projectAnalyzer,
		mcp.WithIndex(index),
		mcp.WithTracker(tracker),
		mcp.WithLogger(logger),
		mcp.WithServerInfo(app.settings.Server.Name, serverVersion),
		mcp.WithMaxPatterns(app.settings.Briefing.MaxPatterns),
		mcp.WithMaxMessageBytes(app.settings.Transport.MaxMessageBytes),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("serving on stdio",
		zap.String("name", app.settings.Server.Name),
		zap.String("version", serverVersion),
		zap.String("patterns_dir", app.store.Dir()),
		zap.Int("patterns", app.store.Len()),
	)

	// Run server in separate goroutine; a blocked stdin read must not delay shutdown.
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		return nil

	case err := <-errChan:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("input closed, shutting down")
		return nil
	}
}
