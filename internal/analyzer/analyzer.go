/*
Package analyzer turns a directory on disk into a project.Project.

It detects the build ecosystem from marker files, reads the ecosystem's
manifest for name, version and dependencies, walks the source tree for the
ecosystem's file extensions and extracts C# type declarations with tree-sitter.
It never executes or compiles anything in the analyzed tree.
*/
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"go.uber.org/zap"

	"github.com/khanglvm/pattern-hub-mcp/internal/project"
)

const (
	// DefaultMaxFileSize skips source files larger than 1 MiB.
	DefaultMaxFileSize = 1 << 20

	// DefaultMaxFiles caps the number of source files read per analysis.
	DefaultMaxFiles = 5000
)

// ErrNotDirectory is returned when the analysis root is not a directory.
var ErrNotDirectory = errors.New("project path is not a directory")

// Options configures an Analyzer.
type Options struct {
	// IgnorePatterns are glob patterns matched against slash-separated paths
	// relative to the project root (e.g. "**/generated/**").
	IgnorePatterns []string
	MaxFileSize    int64
	MaxFiles       int
}

// Analyzer builds Project facts from directories.
type Analyzer struct {
	logger      *zap.Logger
	ignore      []glob.Glob
	maxFileSize int64
	maxFiles    int
	csharp      *CSharpParser
}

// New creates an analyzer. Invalid ignore patterns are reported as errors.
func New(opts Options, logger *zap.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Analyzer{
		logger:      logger,
		maxFileSize: opts.MaxFileSize,
		maxFiles:    opts.MaxFiles,
		csharp:      NewCSharpParser(),
	}
	if a.maxFileSize <= 0 {
		a.maxFileSize = DefaultMaxFileSize
	}
	if a.maxFiles <= 0 {
		a.maxFiles = DefaultMaxFiles
	}

	for _, pattern := range opts.IgnorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		a.ignore = append(a.ignore, g)
	}
	return a, nil
}

// Analyze inspects the directory at path.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*project.Project, error) {
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access project path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	eco := DetectEcosystem(root)
	a.logger.Debug("detected ecosystem", zap.String("path", root), zap.String("ecosystem", string(eco)))

	proj, err := parseManifest(eco, root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s manifest: %w", eco, err)
	}
	proj.Path = root
	proj.Ecosystem = eco

	files, registrations, err := a.scanSources(ctx, root, SourceExtensions(eco))
	if err != nil {
		return nil, err
	}
	proj.Files = files
	proj.ServiceRegistrations = registrations

	counts := proj.Counts()
	a.logger.Info("analyzed project",
		zap.String("name", proj.Name),
		zap.String("ecosystem", string(eco)),
		zap.Int("dependencies", len(proj.Dependencies)),
		zap.Int("files", counts.Files),
		zap.Int("classes", counts.Classes),
	)
	return proj, nil
}
