/*
Package config handles loading, validating, and saving pattern-hub-mcp settings.

Settings are resolved in priority order: command-line flags, environment
variables (PATTERN_HUB_*), the settings file (~/.pattern-hub-mcp.yaml or the
file given with --config), then built-in defaults.

Settings file:

	server:
	  name: pattern-hub-mcp
	storage:
	  patterns_dir: ~/.pattern-hub-mcp/patterns
	  journal_dsn: ":memory:"
	analyzer:
	  ignore_patterns: ["bin/**", "obj/**"]
	  max_file_size: 1048576
	  max_files: 5000
	briefing:
	  max_patterns: 10
	log:
	  level: info
	  format: console
	transport:
	  max_message_bytes: 16777216
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigFile is the settings file name inside the home directory.
const DefaultConfigFile = ".pattern-hub-mcp.yaml"

// LegacyPatternsEnv names the patterns directory in older installations.
const LegacyPatternsEnv = "MCP_PATTERNS_PATH"

// Settings is the root configuration structure.
type Settings struct {
	Server    ServerSettings    `mapstructure:"server" yaml:"server"`
	Storage   StorageSettings   `mapstructure:"storage" yaml:"storage"`
	Analyzer  AnalyzerSettings  `mapstructure:"analyzer" yaml:"analyzer"`
	Briefing  BriefingSettings  `mapstructure:"briefing" yaml:"briefing"`
	Log       LogSettings       `mapstructure:"log" yaml:"log"`
	Transport TransportSettings `mapstructure:"transport" yaml:"transport"`
}

// ServerSettings identifies the server in the initialize handshake.
type ServerSettings struct {
	Name string `mapstructure:"name" yaml:"name"`

	// Version overrides the build version when set.
	Version string `mapstructure:"version" yaml:"version,omitempty"`
}

// StorageSettings locates the pattern files and the session journal.
type StorageSettings struct {
	// PatternsDir holds one <framework>-patterns.json file per framework.
	PatternsDir string `mapstructure:"patterns_dir" yaml:"patterns_dir"`

	// JournalDSN is the SQLite DSN of the session journal. Empty disables it.
	JournalDSN string `mapstructure:"journal_dsn" yaml:"journal_dsn"`
}

// AnalyzerSettings bounds project analysis.
type AnalyzerSettings struct {
	IgnorePatterns []string `mapstructure:"ignore_patterns" yaml:"ignore_patterns"`
	MaxFileSize    int64    `mapstructure:"max_file_size" yaml:"max_file_size"`
	MaxFiles       int      `mapstructure:"max_files" yaml:"max_files"`
}

// BriefingSettings shapes the project briefing.
type BriefingSettings struct {
	MaxPatterns int `mapstructure:"max_patterns" yaml:"max_patterns"`
}

// LogSettings configures the stderr logger.
type LogSettings struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TransportSettings bounds inbound frames.
type TransportSettings struct {
	MaxMessageBytes int `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Server: ServerSettings{
			Name: "pattern-hub-mcp",
		},
		Storage: StorageSettings{
			PatternsDir: defaultPatternsDir(),
			JournalDSN:  ":memory:",
		},
		Analyzer: AnalyzerSettings{
			IgnorePatterns: []string{"bin/**", "obj/**", "node_modules/**", ".git/**"},
			MaxFileSize:    1 << 20,
			MaxFiles:       5000,
		},
		Briefing: BriefingSettings{
			MaxPatterns: 10,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "console",
		},
		Transport: TransportSettings{
			MaxMessageBytes: 16 << 20,
		},
	}
}

// GetDefaultConfigPath returns the path to ~/.pattern-hub-mcp.yaml
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigFile), nil
}

func defaultPatternsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".pattern-hub-mcp", "patterns")
	}
	return filepath.Join(home, ".pattern-hub-mcp", "patterns")
}
