package config

import "fmt"

// PermissionError reports a settings file that cannot be read or written.
type PermissionError struct {
	Path    string
	Op      string // "read" or "write"
	Fix     string // Suggested fix command
	Details string // Additional context
	Err     error
}

func (e *PermissionError) Error() string {
	msg := fmt.Sprintf("permission denied (cannot %s settings): %s\n", e.Op, e.Path)
	if e.Details != "" {
		msg += e.Details + "\n"
	}
	msg += "💡 Fix: " + e.Fix
	return msg
}

func (e *PermissionError) Unwrap() error { return e.Err }

// ConfigNotFoundError reports an explicitly requested settings file that does
// not exist. A missing default file is not an error.
type ConfigNotFoundError struct {
	Path string
	Hint string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("settings file not found: %s\n\n💡 %s", e.Path, e.Hint)
}

// InvalidConfigError reports a settings file that does not parse or holds
// values outside their allowed range.
type InvalidConfigError struct {
	Path    string
	Message string
	Hint    string
	Err     error
}

func (e *InvalidConfigError) Error() string {
	msg := fmt.Sprintf("invalid settings: %s\n", e.Path)
	if e.Message != "" {
		msg += e.Message + "\n"
	}
	if e.Hint != "" {
		msg += "💡 " + e.Hint
	}
	return msg
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }
