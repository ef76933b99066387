package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a fresh directory and clears settings variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, name := range []string{
		LegacyPatternsEnv,
		"PATTERN_HUB_STORAGE_PATTERNS_DIR",
		"PATTERN_HUB_LOG_LEVEL",
		"PATTERN_HUB_BRIEFING_MAX_PATTERNS",
		"PATTERN_HUB_ANALYZER_IGNORE_PATTERNS",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadSettingsDefaults(t *testing.T) {
	home := isolate(t)

	s, err := LoadSettings(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "pattern-hub-mcp", s.Server.Name)
	assert.Equal(t, filepath.Join(home, ".pattern-hub-mcp", "patterns"), s.Storage.PatternsDir)
	assert.Equal(t, ":memory:", s.Storage.JournalDSN)
	assert.Equal(t, int64(1<<20), s.Analyzer.MaxFileSize)
	assert.Equal(t, 5000, s.Analyzer.MaxFiles)
	assert.Equal(t, []string{"bin/**", "obj/**", "node_modules/**", ".git/**"}, s.Analyzer.IgnorePatterns)
	assert.Equal(t, 10, s.Briefing.MaxPatterns)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, "console", s.Log.Format)
	assert.NoError(t, ValidateSettings(s))
}

func TestLoadSettingsEnvVars(t *testing.T) {
	isolate(t)
	t.Setenv("PATTERN_HUB_LOG_LEVEL", "debug")
	t.Setenv("PATTERN_HUB_BRIEFING_MAX_PATTERNS", "5")
	t.Setenv("PATTERN_HUB_ANALYZER_IGNORE_PATTERNS", "gen/**, dist/**")

	s, err := LoadSettings(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, 5, s.Briefing.MaxPatterns)
	assert.Equal(t, []string{"gen/**", "dist/**"}, s.Analyzer.IgnorePatterns)
}

func TestLoadSettingsLegacyPatternsPath(t *testing.T) {
	isolate(t)
	legacy := filepath.Join(t.TempDir(), "patterns")
	t.Setenv(LegacyPatternsEnv, legacy)

	s, err := LoadSettings(nil, "")
	require.NoError(t, err)
	assert.Equal(t, legacy, s.Storage.PatternsDir)

	// The prefixed variable wins over the legacy one.
	current := filepath.Join(t.TempDir(), "current")
	t.Setenv("PATTERN_HUB_STORAGE_PATTERNS_DIR", current)

	s, err = LoadSettings(nil, "")
	require.NoError(t, err)
	assert.Equal(t, current, s.Storage.PatternsDir)
}

func TestLoadSettingsFlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PATTERN_HUB_LOG_LEVEL", "debug")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.Int("max-patterns", 10, "")
	flags.String("unrelated", "", "")
	require.NoError(t, flags.Parse([]string{"--log-level=warn"}))

	s, err := LoadSettings(flags, "")
	require.NoError(t, err)
	assert.Equal(t, "warn", s.Log.Level)

	// An unchanged flag does not mask the default.
	assert.Equal(t, 10, s.Briefing.MaxPatterns)
}

func TestLoadSettingsFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(t.TempDir(), "settings.yaml")
	writeFile(t, path, `
storage:
  patterns_dir: ~/team-patterns
log:
  format: json
briefing:
  max_patterns: 3
`)

	s, err := LoadSettings(nil, path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "team-patterns"), s.Storage.PatternsDir)
	assert.Equal(t, "json", s.Log.Format)
	assert.Equal(t, 3, s.Briefing.MaxPatterns)
	assert.Equal(t, "info", s.Log.Level)
}

func TestLoadSettingsDefaultFile(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, DefaultConfigFile), "log:\n  level: error\n")

	s, err := LoadSettings(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "error", s.Log.Level)
}

func TestLoadSettingsErrors(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		isolate(t)
		_, err := LoadSettings(nil, filepath.Join(t.TempDir(), "missing.yaml"))

		var notFound *ConfigNotFoundError
		require.True(t, errors.As(err, &notFound))
		assert.Contains(t, err.Error(), "config init")
	})

	t.Run("invalid yaml mentions backup", func(t *testing.T) {
		isolate(t)
		path := filepath.Join(t.TempDir(), "bad.yaml")
		writeFile(t, path, "log: [unterminated\n")

		_, err := LoadSettings(nil, path)
		var invalid *InvalidConfigError
		require.True(t, errors.As(err, &invalid))
		assert.Contains(t, err.Error(), ".bak")
	})

	t.Run("wrong value type", func(t *testing.T) {
		isolate(t)
		path := filepath.Join(t.TempDir(), "types.yaml")
		writeFile(t, path, "briefing:\n  max_patterns: many\n")

		_, err := LoadSettings(nil, path)
		var invalid *InvalidConfigError
		assert.True(t, errors.As(err, &invalid))
	})

	t.Run("unreadable file", func(t *testing.T) {
		if runtime.GOOS == "windows" || os.Geteuid() == 0 {
			t.Skip("permission bits are not enforced")
		}
		isolate(t)
		path := filepath.Join(t.TempDir(), "locked.yaml")
		writeFile(t, path, "log:\n  level: info\n")
		require.NoError(t, os.Chmod(path, 0000))
		defer os.Chmod(path, 0644)

		_, err := LoadSettings(nil, path)
		var perm *PermissionError
		require.True(t, errors.As(err, &perm))
		assert.Equal(t, "read", perm.Op)
		assert.Contains(t, err.Error(), "chmod")
	})
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{name: "defaults", mutate: func(s *Settings) {}},
		{name: "empty server name", mutate: func(s *Settings) { s.Server.Name = "" }, wantErr: "server.name"},
		{name: "empty patterns dir", mutate: func(s *Settings) { s.Storage.PatternsDir = "" }, wantErr: "patterns_dir"},
		{name: "zero file size", mutate: func(s *Settings) { s.Analyzer.MaxFileSize = 0 }, wantErr: "max_file_size"},
		{name: "negative max files", mutate: func(s *Settings) { s.Analyzer.MaxFiles = -1 }, wantErr: "max_files"},
		{name: "bad glob", mutate: func(s *Settings) { s.Analyzer.IgnorePatterns = []string{"[unclosed"} }, wantErr: "invalid glob"},
		{name: "too many patterns", mutate: func(s *Settings) { s.Briefing.MaxPatterns = 101 }, wantErr: "max_patterns"},
		{name: "bad level", mutate: func(s *Settings) { s.Log.Level = "loud" }, wantErr: "log.level"},
		{name: "bad format", mutate: func(s *Settings) { s.Log.Format = "xml" }, wantErr: "log.format"},
		{name: "tiny frames", mutate: func(s *Settings) { s.Transport.MaxMessageBytes = 10 }, wantErr: "max_message_bytes"},
		{name: "empty journal dsn is allowed", mutate: func(s *Settings) { s.Storage.JournalDSN = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.Error(t, ValidateSettings(nil))
}
