package analyzer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"

	"github.com/khanglvm/pattern-hub-mcp/internal/project"
)

// parseManifest reads name, version, dependencies and metadata for eco.
func parseManifest(eco project.Ecosystem, dir string) (*project.Project, error) {
	var (
		proj *project.Project
		err  error
	)

	switch eco {
	case project.DotNet:
		proj, err = parseDotNet(dir)
	case project.Rust:
		proj, err = parseCargo(dir)
	case project.Node:
		proj, err = parsePackageJSON(dir)
	case project.Python:
		proj, err = parsePython(dir)
	case project.Go:
		proj, err = parseGoMod(dir)
	case project.Java:
		proj, err = parseJava(dir)
	case project.PHP:
		proj, err = parseComposer(dir)
	default:
		proj = &project.Project{}
	}
	if err != nil {
		return nil, err
	}

	if proj.Name == "" {
		proj.Name = filepath.Base(dir)
	}
	return proj, nil
}

// ---------------------------------------------------------------------------
// .NET
// ---------------------------------------------------------------------------

type msbuildProject struct {
	Sdk            string `xml:"Sdk,attr"`
	PropertyGroups []struct {
		TargetFramework  string `xml:"TargetFramework"`
		TargetFrameworks string `xml:"TargetFrameworks"`
		LangVersion      string `xml:"LangVersion"`
		AssemblyName     string `xml:"AssemblyName"`
		Version          string `xml:"Version"`
	} `xml:"PropertyGroup"`
	ItemGroups []struct {
		PackageReferences []struct {
			Include     string `xml:"Include,attr"`
			Version     string `xml:"Version,attr"`
			VersionElem string `xml:"Version"`
		} `xml:"PackageReference"`
	} `xml:"ItemGroup"`
}

func parseDotNet(dir string) (*project.Project, error) {
	proj := &project.Project{
		Metadata: project.Metadata{
			EntryPoint:   "Program.cs",
			BuildCommand: "dotnet build",
		},
	}

	path := findByExtension(dir, ".csproj", ".fsproj")
	if path == "" {
		// Solution-only directory: nothing more to read.
		return proj, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var msb msbuildProject
	if err := xml.Unmarshal(data, &msb); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	proj.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, pg := range msb.PropertyGroups {
		if pg.AssemblyName != "" {
			proj.Name = pg.AssemblyName
		}
		if pg.Version != "" {
			proj.Version = pg.Version
		}
		if pg.TargetFramework != "" {
			proj.Metadata.TargetFramework = pg.TargetFramework
		} else if pg.TargetFrameworks != "" && proj.Metadata.TargetFramework == "" {
			proj.Metadata.TargetFramework = pg.TargetFrameworks
		}
		if pg.LangVersion != "" {
			proj.Metadata.LanguageVersion = pg.LangVersion
		}
	}
	if msb.Sdk != "" {
		proj.Metadata.SetExtra("sdk", msb.Sdk)
	}

	for _, ig := range msb.ItemGroups {
		for _, ref := range ig.PackageReferences {
			if ref.Include == "" {
				continue
			}
			version := firstNonEmpty(ref.Version, strings.TrimSpace(ref.VersionElem), "*")
			proj.Dependencies = append(proj.Dependencies, project.Dependency{Name: ref.Include, Version: version})
		}
	}
	return proj, nil
}

// ---------------------------------------------------------------------------
// Rust
// ---------------------------------------------------------------------------

type cargoManifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version any    `toml:"version"`
		Edition any    `toml:"edition"`
	} `toml:"package"`
	Dependencies    map[string]any `toml:"dependencies"`
	DevDependencies map[string]any `toml:"dev-dependencies"`
}

func parseCargo(dir string) (*project.Project, error) {
	data, err := os.ReadFile(filepath.Join(dir, "Cargo.toml"))
	if err != nil {
		return nil, err
	}
	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse Cargo.toml: %w", err)
	}

	proj := &project.Project{
		Name:    m.Package.Name,
		Version: tomlString(m.Package.Version),
		Metadata: project.Metadata{
			LanguageVersion: tomlString(m.Package.Edition),
			EntryPoint:      "src/main.rs",
			BuildCommand:    "cargo build",
		},
	}
	proj.Dependencies = append(proj.Dependencies, cargoDeps(m.Dependencies, false)...)
	proj.Dependencies = append(proj.Dependencies, cargoDeps(m.DevDependencies, true)...)
	return proj, nil
}

func cargoDeps(table map[string]any, dev bool) []project.Dependency {
	names := sortedNames(table)
	deps := make([]project.Dependency, 0, len(names))
	for _, name := range names {
		version := "*"
		switch v := table[name].(type) {
		case string:
			version = v
		case map[string]any:
			if s := tomlString(v["version"]); s != "" {
				version = s
			}
		}
		deps = append(deps, project.Dependency{Name: name, Version: version, DevOnly: dev})
	}
	return deps
}

// tomlString returns v when it is a plain string. Workspace-inherited values
// ({ workspace = true }) yield "".
func tomlString(v any) string {
	s, _ := v.(string)
	return s
}

// ---------------------------------------------------------------------------
// Node
// ---------------------------------------------------------------------------

type packageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Main            string            `json:"main"`
	Engines         map[string]string `json:"engines"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func readPackageJSON(path string) (*packageJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package.json: %w", err)
	}
	return &pkg, nil
}

func parsePackageJSON(dir string) (*project.Project, error) {
	pkg, err := readPackageJSON(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}

	proj := &project.Project{
		Name:    pkg.Name,
		Version: pkg.Version,
		Metadata: project.Metadata{
			EntryPoint:      pkg.Main,
			LanguageVersion: pkg.Engines["node"],
		},
	}
	if _, ok := pkg.Scripts["build"]; ok {
		proj.Metadata.BuildCommand = "npm run build"
	}

	proj.Dependencies = append(proj.Dependencies, stringMapDeps(pkg.Dependencies, false)...)
	proj.Dependencies = append(proj.Dependencies, stringMapDeps(pkg.DevDependencies, true)...)

	for _, fw := range []string{"react", "vue", "next"} {
		if _, ok := pkg.Dependencies[fw]; ok {
			proj.Metadata.SetExtra("framework", fw)
			break
		}
	}
	return proj, nil
}

// ---------------------------------------------------------------------------
// Python
// ---------------------------------------------------------------------------

type pyProject struct {
	Project struct {
		Name           string   `toml:"name"`
		Version        string   `toml:"version"`
		RequiresPython string   `toml:"requires-python"`
		Dependencies   []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name            string         `toml:"name"`
			Version         string         `toml:"version"`
			Dependencies    map[string]any `toml:"dependencies"`
			DevDependencies map[string]any `toml:"dev-dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func parsePython(dir string) (*project.Project, error) {
	proj := &project.Project{
		Metadata: project.Metadata{
			EntryPoint:   "main.py",
			BuildCommand: "python main.py",
		},
	}

	if data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml")); err == nil {
		var py pyProject
		if err := toml.Unmarshal(data, &py); err != nil {
			return nil, fmt.Errorf("failed to parse pyproject.toml: %w", err)
		}
		poetry := py.Tool.Poetry

		proj.Name = firstNonEmpty(py.Project.Name, poetry.Name)
		proj.Version = firstNonEmpty(py.Project.Version, poetry.Version)
		proj.Metadata.LanguageVersion = py.Project.RequiresPython

		for _, spec := range py.Project.Dependencies {
			if dep, ok := parseRequirement(spec); ok {
				proj.Dependencies = append(proj.Dependencies, dep)
			}
		}
		for _, name := range sortedNames(poetry.Dependencies) {
			version := tomlPoetryVersion(poetry.Dependencies[name])
			if strings.EqualFold(name, "python") {
				if proj.Metadata.LanguageVersion == "" {
					proj.Metadata.LanguageVersion = version
				}
				continue
			}
			proj.Dependencies = append(proj.Dependencies, project.Dependency{Name: name, Version: version})
		}
		for _, name := range sortedNames(poetry.DevDependencies) {
			version := tomlPoetryVersion(poetry.DevDependencies[name])
			proj.Dependencies = append(proj.Dependencies, project.Dependency{Name: name, Version: version, DevOnly: true})
		}
	}

	if f, err := os.Open(filepath.Join(dir, "requirements.txt")); err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
				continue
			}
			if dep, ok := parseRequirement(line); ok {
				proj.Dependencies = append(proj.Dependencies, dep)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read requirements.txt: %w", err)
		}
	}
	return proj, nil
}

func tomlPoetryVersion(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s := tomlString(t["version"]); s != "" {
			return s
		}
	}
	return "*"
}

// parseRequirement splits a PEP 508 requirement such as
// "fastapi[all]>=0.100; python_version>'3.8'" into name and version spec.
func parseRequirement(spec string) (project.Dependency, bool) {
	spec = strings.TrimSpace(spec)
	if i := strings.IndexByte(spec, ';'); i >= 0 {
		spec = strings.TrimSpace(spec[:i])
	}
	if i := strings.Index(spec, " #"); i >= 0 {
		spec = strings.TrimSpace(spec[:i])
	}

	end := strings.IndexAny(spec, "<>=!~[ (")
	if end < 0 {
		end = len(spec)
	}
	name := spec[:end]
	if name == "" {
		return project.Dependency{}, false
	}

	rest := strings.TrimSpace(spec[end:])
	if strings.HasPrefix(rest, "[") {
		if j := strings.IndexByte(rest, ']'); j >= 0 {
			rest = strings.TrimSpace(rest[j+1:])
		}
	}
	rest = strings.Trim(rest, "() ")
	rest = strings.TrimLeft(rest, "=")
	if rest == "" {
		rest = "*"
	}
	return project.Dependency{Name: name, Version: rest}, true
}

// ---------------------------------------------------------------------------
// Go
// ---------------------------------------------------------------------------

func parseGoMod(dir string) (*project.Project, error) {
	path := filepath.Join(dir, "go.mod")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := modfile.ParseLax(path, data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse go.mod: %w", err)
	}

	proj := &project.Project{
		Metadata: project.Metadata{
			EntryPoint:   "main.go",
			BuildCommand: "go build ./...",
		},
	}
	if f.Module != nil {
		proj.Name = f.Module.Mod.Path
	}
	if f.Go != nil {
		proj.Metadata.LanguageVersion = f.Go.Version
	}
	for _, req := range f.Require {
		if req.Indirect {
			continue
		}
		proj.Dependencies = append(proj.Dependencies, project.Dependency{
			Name:    req.Mod.Path,
			Version: req.Mod.Version,
		})
	}
	return proj, nil
}

// ---------------------------------------------------------------------------
// Java
// ---------------------------------------------------------------------------

type mavenPOM struct {
	GroupID      string `xml:"groupId"`
	ArtifactID   string `xml:"artifactId"`
	Version      string `xml:"version"`
	Dependencies []struct {
		GroupID    string `xml:"groupId"`
		ArtifactID string `xml:"artifactId"`
		Version    string `xml:"version"`
		Scope      string `xml:"scope"`
	} `xml:"dependencies>dependency"`
	Properties struct {
		JavaVersion string `xml:"java.version"`
	} `xml:"properties"`
}

var gradleDependency = regexp.MustCompile(
	`(?m)^\s*(implementation|api|compileOnly|runtimeOnly|testImplementation|testRuntimeOnly)\s*\(?\s*["']([^"':\s]+):([^"':\s]+)(?::([^"'\s]+))?["']`)

func parseJava(dir string) (*project.Project, error) {
	proj := &project.Project{}

	if data, err := os.ReadFile(filepath.Join(dir, "pom.xml")); err == nil {
		var pom mavenPOM
		if err := xml.Unmarshal(data, &pom); err != nil {
			return nil, fmt.Errorf("failed to parse pom.xml: %w", err)
		}
		proj.Name = pom.ArtifactID
		proj.Version = pom.Version
		proj.Metadata.LanguageVersion = pom.Properties.JavaVersion
		proj.Metadata.BuildCommand = "mvn package"
		for _, d := range pom.Dependencies {
			proj.Dependencies = append(proj.Dependencies, project.Dependency{
				Name:    d.GroupID + ":" + d.ArtifactID,
				Version: firstNonEmpty(d.Version, "*"),
				DevOnly: d.Scope == "test",
			})
		}
	}

	for _, name := range []string{"build.gradle", "build.gradle.kts"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		proj.Metadata.BuildCommand = "gradle build"
		for _, m := range gradleDependency.FindAllSubmatch(data, -1) {
			proj.Dependencies = append(proj.Dependencies, project.Dependency{
				Name:    string(m[2]) + ":" + string(m[3]),
				Version: firstNonEmpty(string(m[4]), "*"),
				DevOnly: bytes.HasPrefix(m[1], []byte("test")),
			})
		}
		break
	}
	return proj, nil
}

// ---------------------------------------------------------------------------
// PHP
// ---------------------------------------------------------------------------

type composerJSON struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Require    map[string]string `json:"require"`
	RequireDev map[string]string `json:"require-dev"`
}

func parseComposer(dir string) (*project.Project, error) {
	data, err := os.ReadFile(filepath.Join(dir, "composer.json"))
	if err != nil {
		return nil, err
	}
	var c composerJSON
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse composer.json: %w", err)
	}

	proj := &project.Project{Name: c.Name, Version: c.Version}

	if php, ok := c.Require["php"]; ok {
		proj.Metadata.LanguageVersion = php
		delete(c.Require, "php")
	}
	proj.Dependencies = append(proj.Dependencies, stringMapDeps(c.Require, false)...)
	proj.Dependencies = append(proj.Dependencies, stringMapDeps(c.RequireDev, true)...)

	framework := detectPHPFramework(proj.Dependencies, dir)
	if framework != "" {
		proj.Metadata.SetExtra("framework", framework)
	}

	switch framework {
	case "laravel":
		proj.Metadata.EntryPoint = "public/index.php"
		proj.Metadata.BuildCommand = "php artisan serve"
	case "symfony":
		proj.Metadata.EntryPoint = "public/index.php"
		proj.Metadata.BuildCommand = "symfony server:start"
	default:
		proj.Metadata.EntryPoint = "index.php"
		proj.Metadata.BuildCommand = "php -S localhost:8000"
	}

	// Frontend tooling shipped alongside the PHP app.
	if pkg, err := readPackageJSON(filepath.Join(dir, "package.json")); err == nil {
		has := func(name string) bool {
			_, dep := pkg.Dependencies[name]
			_, dev := pkg.DevDependencies[name]
			return dep || dev
		}
		if has("vue") {
			proj.Metadata.SetExtra("frontend", "vue")
		}
		if has("react") {
			proj.Metadata.SetExtra("frontend", "react")
		}
		if _, ok := pkg.DevDependencies["vite"]; ok {
			proj.Metadata.SetExtra("bundler", "vite")
		}
		if _, ok := pkg.DevDependencies["laravel-mix"]; ok {
			proj.Metadata.SetExtra("bundler", "laravel-mix")
		}
	}
	return proj, nil
}

func detectPHPFramework(deps []project.Dependency, dir string) string {
	has := func(match func(string) bool) bool {
		for _, d := range deps {
			if match(d.Name) {
				return true
			}
		}
		return false
	}
	is := func(name string) func(string) bool {
		return func(s string) bool { return s == name }
	}
	prefix := func(p string) func(string) bool {
		return func(s string) bool { return strings.HasPrefix(s, p) }
	}

	switch {
	case has(is("laravel/framework")), exists(dir, "artisan"):
		return "laravel"
	case has(is("symfony/framework-bundle")):
		return "symfony"
	case exists(dir, "wp-config.php", "wp-content"):
		return "wordpress"
	case has(is("codeigniter4/framework")):
		return "codeigniter"
	case has(prefix("yiisoft/")):
		return "yii"
	case has(is("cakephp/cakephp")):
		return "cakephp"
	case has(is("slim/slim")):
		return "slim"
	case has(is("drupal/core")):
		return "drupal"
	}
	return ""
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func stringMapDeps(m map[string]string, dev bool) []project.Dependency {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make([]project.Dependency, 0, len(names))
	for _, name := range names {
		deps = append(deps, project.Dependency{Name: name, Version: firstNonEmpty(m[name], "*"), DevOnly: dev})
	}
	return deps
}

func sortedNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
