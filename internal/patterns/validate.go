package patterns

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxFrameworkLength bounds framework strings, which become file names.
	MaxFrameworkLength = 64

	// MaxIDLength bounds pattern identifiers.
	MaxIDLength = 128
)

var (
	// ErrInvalidFramework is returned for framework strings that cannot be
	// used as a file name component.
	ErrInvalidFramework = errors.New("invalid framework")

	// ErrInvalidID is returned for empty or oversized pattern ids.
	ErrInvalidID = errors.New("invalid pattern id")

	// ErrInvalidScore is returned when relevance_score is outside [0, 1].
	ErrInvalidScore = errors.New("invalid relevance score")

	// ErrDuplicateID is returned when adding a pattern whose id already exists.
	ErrDuplicateID = errors.New("duplicate pattern id")

	// ErrNotFound is returned when a pattern id does not exist.
	ErrNotFound = errors.New("pattern not found")

	// ErrPathEscape is returned when a computed pattern file path resolves
	// outside the storage directory.
	ErrPathEscape = errors.New("pattern file path escapes storage directory")
)

// ValidateFramework checks that a framework string is safe to use as a file
// name component.
func ValidateFramework(framework string) error {
	switch {
	case framework == "":
		return fmt.Errorf("%w: empty", ErrInvalidFramework)
	case len(framework) > MaxFrameworkLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidFramework, MaxFrameworkLength)
	case strings.ContainsAny(framework, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFramework, framework)
	case strings.HasPrefix(framework, "."):
		return fmt.Errorf("%w: %q would name a hidden file", ErrInvalidFramework, framework)
	case strings.Contains(framework, ".."):
		return fmt.Errorf("%w: %q contains a parent directory segment", ErrInvalidFramework, framework)
	case strings.Contains(framework, ":"):
		return fmt.Errorf("%w: %q contains a drive or volume designator", ErrInvalidFramework, framework)
	case strings.ContainsRune(framework, 0):
		return fmt.Errorf("%w: contains a NUL byte", ErrInvalidFramework)
	}
	return nil
}

// ValidateID checks a pattern identifier.
func ValidateID(id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return fmt.Errorf("%w: empty", ErrInvalidID)
	case len(id) > MaxIDLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidID, MaxIDLength)
	}
	return nil
}

// Validate checks every field rule a stored pattern must satisfy.
func Validate(p Pattern) error {
	if err := ValidateID(p.ID); err != nil {
		return err
	}
	if err := ValidateFramework(p.Framework); err != nil {
		return err
	}
	if !(p.RelevanceScore >= 0 && p.RelevanceScore <= 1) {
		return fmt.Errorf("%w: %v not in [0, 1]", ErrInvalidScore, p.RelevanceScore)
	}
	return nil
}
