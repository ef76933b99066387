package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every settings environment variable.
const EnvPrefix = "PATTERN_HUB"

// flagKeys maps command-line flags to settings keys.
var flagKeys = map[string]string{
	"patterns-dir":      "storage.patterns_dir",
	"journal-dsn":       "storage.journal_dsn",
	"ignore":            "analyzer.ignore_patterns",
	"max-file-size":     "analyzer.max_file_size",
	"max-files":         "analyzer.max_files",
	"max-patterns":      "briefing.max_patterns",
	"log-level":         "log.level",
	"log-format":        "log.format",
	"max-message-bytes": "transport.max_message_bytes",
	"server-name":       "server.name",
}

// LoadSettings resolves settings from defaults, the settings file, the
// environment and flags (highest priority). An empty configFile means the
// default file, which may be absent. flags may be nil.
func LoadSettings(flags *pflag.FlagSet, configFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("storage.patterns_dir", EnvPrefix+"_STORAGE_PATTERNS_DIR", LegacyPatternsEnv)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	if err := readSettingsFile(v, configFile); err != nil {
		return nil, err
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, &InvalidConfigError{
			Path:    v.ConfigFileUsed(),
			Message: err.Error(),
			Hint:    "Check value types against 'pattern-hub-mcp config show'",
			Err:     err,
		}
	}

	settings.Storage.PatternsDir = expandHomeDir(settings.Storage.PatternsDir)
	settings.Analyzer.IgnorePatterns = splitList(settings.Analyzer.IgnorePatterns)

	return &settings, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultSettings()
	v.SetDefault("server.name", d.Server.Name)
	v.SetDefault("server.version", d.Server.Version)
	v.SetDefault("storage.patterns_dir", d.Storage.PatternsDir)
	v.SetDefault("storage.journal_dsn", d.Storage.JournalDSN)
	v.SetDefault("analyzer.ignore_patterns", d.Analyzer.IgnorePatterns)
	v.SetDefault("analyzer.max_file_size", d.Analyzer.MaxFileSize)
	v.SetDefault("analyzer.max_files", d.Analyzer.MaxFiles)
	v.SetDefault("briefing.max_patterns", d.Briefing.MaxPatterns)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("transport.max_message_bytes", d.Transport.MaxMessageBytes)
}

// readSettingsFile merges the YAML settings file into v.
func readSettingsFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		p, err := GetDefaultConfigPath()
		if err != nil {
			return nil
		}
		path = p
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if !explicit {
				return nil
			}
			return &ConfigNotFoundError{
				Path: path,
				Hint: "Run 'pattern-hub-mcp config init' to create a settings file",
			}
		}
		return fmt.Errorf("failed to access settings: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return &PermissionError{
				Path:    path,
				Op:      "read",
				Fix:     getReadPermissionFix(path),
				Details: getPermissionDetails(path),
				Err:     err,
			}
		}
		return fmt.Errorf("failed to read settings: %w", err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("YAML parse error: %v", err),
			Hint:    "Restore from .bak file if available",
			Err:     err,
		}
	}
	return nil
}

// getReadPermissionFix returns platform-specific fix command
func getReadPermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s → Properties → Security → Edit permissions", path)
	default: // unix-like
		return fmt.Sprintf("Run: chmod 644 %s", path)
	}
}

// getPermissionDetails reports the current mode bits.
func getPermissionDetails(path string) string {
	if runtime.GOOS == "windows" {
		return ""
	}

	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Current permissions: %04o", info.Mode().Perm())
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// splitList flattens comma-separated entries (as they arrive from the
// environment) and drops blanks.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
