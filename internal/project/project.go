// Package project defines the fact structure produced by the analyzer and
// consumed by the briefing builder.
package project

// Ecosystem identifies the build ecosystem of a project.
type Ecosystem string

const (
	DotNet  Ecosystem = "dotnet"
	Rust    Ecosystem = "rust"
	Node    Ecosystem = "node"
	Python  Ecosystem = "python"
	Go      Ecosystem = "go"
	Java    Ecosystem = "java"
	PHP     Ecosystem = "php"
	Unknown Ecosystem = "unknown"
)

// Project is a flat description of an analyzed source tree.
type Project struct {
	Path         string       `json:"path"`
	Name         string       `json:"name"`
	Ecosystem    Ecosystem    `json:"ecosystem"`
	Version      string       `json:"version,omitempty"`
	Dependencies []Dependency `json:"dependencies"`
	Files        []SourceFile `json:"files"`

	// ServiceRegistrations counts dependency-injection registrations found in
	// source (AddScoped, @Injectable, ...). Used by the DI convention check.
	ServiceRegistrations int `json:"service_registrations"`

	Metadata Metadata `json:"metadata"`
}

// Dependency is one declared package dependency.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	DevOnly bool   `json:"dev_only"`
}

// SourceFile is one analyzed source file.
type SourceFile struct {
	Path      string  `json:"path"`
	Language  string  `json:"language"`
	SizeBytes int64   `json:"size_bytes"`
	Lines     int     `json:"lines"`
	Classes   []Class `json:"classes,omitempty"`
}

// Class is a type declaration extracted from a source file.
type Class struct {
	Name       string     `json:"name"`
	BaseTypes  []string   `json:"base_types,omitempty"`
	Modifiers  []string   `json:"modifiers,omitempty"`
	Methods    []Method   `json:"methods,omitempty"`
	Properties []Property `json:"properties,omitempty"`
}

// Method is a member function of a Class.
type Method struct {
	Name       string   `json:"name"`
	ReturnType string   `json:"return_type"`
	Modifiers  []string `json:"modifiers,omitempty"`
	IsAsync    bool     `json:"is_async"`
}

// Property is a declared property of a Class.
type Property struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	HasGetter bool   `json:"has_getter"`
	HasSetter bool   `json:"has_setter"`
}

// Metadata holds ecosystem-specific facts.
type Metadata struct {
	TargetFramework string            `json:"target_framework,omitempty"`
	LanguageVersion string            `json:"language_version,omitempty"`
	EntryPoint      string            `json:"entry_point,omitempty"`
	BuildCommand    string            `json:"build_command,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// SetExtra records an extra metadata value, allocating the map on first use.
func (m *Metadata) SetExtra(key, value string) {
	if m.Extra == nil {
		m.Extra = make(map[string]string)
	}
	m.Extra[key] = value
}

// Counts are aggregate totals over a Project's files.
type Counts struct {
	Files   int `json:"files"`
	Classes int `json:"classes"`
	Methods int `json:"methods"`
	Lines   int `json:"lines"`
}

// Counts returns the file, class, method and line totals.
func (p *Project) Counts() Counts {
	c := Counts{Files: len(p.Files)}
	for _, f := range p.Files {
		c.Lines += f.Lines
		c.Classes += len(f.Classes)
		for _, cls := range f.Classes {
			c.Methods += len(cls.Methods)
		}
	}
	return c
}

// DependencyNames returns the names of all dependencies in declaration order.
func (p *Project) DependencyNames() []string {
	names := make([]string, 0, len(p.Dependencies))
	for _, d := range p.Dependencies {
		names = append(names, d.Name)
	}
	return names
}
