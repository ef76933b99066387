package analyzer

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/khanglvm/pattern-hub-mcp/internal/project"
)

// skippedDirs are never descended into.
var skippedDirs = map[string]bool{
	"node_modules": true,
	"target":       true,
	"bin":          true,
	"obj":          true,
	"__pycache__":  true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// registrationPatterns match dependency-injection registrations across the
// supported ecosystems.
var registrationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.Add(Scoped|Singleton|Transient|HostedService|DbContext|HttpClient)\s*[<(]`),
	regexp.MustCompile(`@(Service|Component|Repository|Bean|Injectable)\b`),
	regexp.MustCompile(`->(bind|singleton|scoped)\s*\(`),
	regexp.MustCompile(`\bservices\.Configure\s*<`),
}

// scanSources walks root collecting files with one of exts. It returns the
// files and the number of DI registrations found in them.
func (a *Analyzer) scanSources(ctx context.Context, root string, exts []string) ([]project.SourceFile, int, error) {
	if len(exts) == 0 {
		return nil, 0, nil
	}

	var (
		files         []project.SourceFile
		registrations int
	)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			a.logger.Debug("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || skippedDirs[name] || a.ignored(root, path)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !matchesExtension(name, exts) || a.ignored(root, path) {
			return nil
		}
		if len(files) >= a.maxFiles {
			a.logger.Warn("file limit reached, truncating analysis", zap.Int("max_files", a.maxFiles))
			return filepath.SkipAll
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		file := project.SourceFile{
			Path:      filepath.ToSlash(rel),
			Language:  languageOf(name),
			SizeBytes: info.Size(),
		}

		if info.Size() > a.maxFileSize {
			a.logger.Debug("skipping content of large file", zap.String("path", rel), zap.Int64("size", info.Size()))
			files = append(files, file)
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			a.logger.Warn("failed to read source file", zap.String("path", rel), zap.Error(err))
			return nil
		}
		file.Lines = countLines(content)
		registrations += countRegistrations(content)

		if file.Language == "csharp" {
			classes, err := a.csharp.Parse(content)
			if err != nil {
				a.logger.Warn("failed to parse C# file", zap.String("path", rel), zap.Error(err))
			} else {
				file.Classes = classes
			}
		}

		files = append(files, file)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return files, registrations, nil
}

func (a *Analyzer) ignored(root, path string) bool {
	if len(a.ignore) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, g := range a.ignore {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func matchesExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

var languages = map[string]string{
	".cs":     "csharp",
	".fs":     "fsharp",
	".vb":     "vb",
	".razor":  "razor",
	".rs":     "rust",
	".js":     "javascript",
	".mjs":    "javascript",
	".cjs":    "javascript",
	".jsx":    "javascript",
	".ts":     "typescript",
	".tsx":    "typescript",
	".vue":    "vue",
	".svelte": "svelte",
	".py":     "python",
	".pyi":    "python",
	".go":     "go",
	".java":   "java",
	".kt":     "kotlin",
	".kts":    "kotlin",
	".scala":  "scala",
	".php":    "php",
	".twig":   "twig",
}

func languageOf(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if lang, ok := languages[ext]; ok {
		return lang
	}
	return strings.TrimPrefix(ext, ".")
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

func countRegistrations(content []byte) int {
	n := 0
	for _, re := range registrationPatterns {
		n += len(re.FindAllIndex(content, -1))
	}
	return n
}
