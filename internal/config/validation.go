package config

import (
	"errors"
	"fmt"

	"github.com/gobwas/glob"
	"go.uber.org/zap/zapcore"
)

// MinMessageBytes is the smallest accepted transport.max_message_bytes.
const MinMessageBytes = 1024

// ValidateSettings checks value ranges. It returns the first problem found.
func ValidateSettings(s *Settings) error {
	if s == nil {
		return errors.New("settings are nil")
	}

	if s.Server.Name == "" {
		return errors.New("server.name cannot be empty")
	}

	if s.Storage.PatternsDir == "" {
		return errors.New("storage.patterns_dir cannot be empty")
	}

	if s.Analyzer.MaxFileSize <= 0 {
		return errors.New("analyzer.max_file_size must be positive")
	}
	if s.Analyzer.MaxFiles <= 0 {
		return errors.New("analyzer.max_files must be positive")
	}
	for _, pattern := range s.Analyzer.IgnorePatterns {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("analyzer.ignore_patterns: invalid glob %q: %w", pattern, err)
		}
	}

	if s.Briefing.MaxPatterns < 1 || s.Briefing.MaxPatterns > 100 {
		return fmt.Errorf("briefing.max_patterns must be between 1 and 100, got %d", s.Briefing.MaxPatterns)
	}

	if _, err := zapcore.ParseLevel(s.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch s.Log.Format {
	case "console", "json":
	default:
		return errors.New("log.format must be 'console' or 'json', got: " + s.Log.Format)
	}

	if s.Transport.MaxMessageBytes < MinMessageBytes {
		return fmt.Errorf("transport.max_message_bytes must be at least %d", MinMessageBytes)
	}

	return nil
}
