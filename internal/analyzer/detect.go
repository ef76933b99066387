package analyzer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/khanglvm/pattern-hub-mcp/internal/project"
)

// DetectEcosystem inspects marker files directly inside dir. Markers are
// checked in priority order: .NET, Rust, PHP, Node, Python, Go, Java. PHP
// precedes Node because Laravel-style projects ship a package.json too.
func DetectEcosystem(dir string) project.Ecosystem {
	switch {
	case hasExtension(dir, ".csproj", ".fsproj", ".sln"):
		return project.DotNet
	case exists(dir, "Cargo.toml"):
		return project.Rust
	case exists(dir, "composer.json"):
		return project.PHP
	case exists(dir, "package.json"):
		return project.Node
	case exists(dir, "pyproject.toml", "setup.py", "requirements.txt"):
		return project.Python
	case exists(dir, "go.mod"):
		return project.Go
	case exists(dir, "pom.xml", "build.gradle", "build.gradle.kts"):
		return project.Java
	}
	return project.Unknown
}

// SourceExtensions lists the file suffixes analyzed for an ecosystem.
func SourceExtensions(eco project.Ecosystem) []string {
	switch eco {
	case project.DotNet:
		return []string{".cs", ".fs", ".vb", ".razor"}
	case project.Rust:
		return []string{".rs"}
	case project.Node:
		return []string{".js", ".ts", ".jsx", ".tsx", ".mjs", ".cjs", ".vue", ".svelte"}
	case project.Python:
		return []string{".py", ".pyi"}
	case project.Go:
		return []string{".go"}
	case project.Java:
		return []string{".java", ".kt", ".kts", ".scala"}
	case project.PHP:
		return []string{".php", ".twig", ".js", ".ts", ".vue"}
	}
	return nil
}

func exists(dir string, names ...string) bool {
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

func hasExtension(dir string, exts ...string) bool {
	return findByExtension(dir, exts...) != ""
}

// findByExtension returns the first file (by name) in dir with one of exts.
func findByExtension(dir string, exts ...string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == want {
				return filepath.Join(dir, e.Name())
			}
		}
	}
	return ""
}
