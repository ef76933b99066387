package briefing

import (
	"fmt"
	"strings"

	"github.com/khanglvm/pattern-hub-mcp/internal/project"
)

// Severity ranks a suggestion.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Suggestion is one finding from a rule check.
type Suggestion struct {
	Severity Severity `json:"severity"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`
}

// rule inspects a project and returns zero or more suggestions.
type rule func(p *project.Project, framework string) []Suggestion

// rules run in declaration order; their output is never reordered.
var rules = []rule{
	lifecycleRule,
	asyncVoidRule,
	dependencyInjectionRule,
}

// Suggestions runs every rule against p.
func Suggestions(p *project.Project, framework string) []Suggestion {
	out := []Suggestion{}
	if p == nil {
		return out
	}
	for _, r := range rules {
		out = append(out, r(p, framework)...)
	}
	return out
}

var lifecycleMethods = []string{"OnInitialized", "OnParametersSet", "OnAfterRender"}

// isComponentClass reports whether any base type is a *ComponentBase type
// (ComponentBase, LayoutComponentBase, OwningComponentBase<T>, ...).
func isComponentClass(c project.Class) bool {
	for _, base := range c.BaseTypes {
		name := base
		if i := strings.IndexByte(name, '<'); i >= 0 {
			name = name[:i]
		}
		if i := strings.LastIndexByte(name, '.'); i >= 0 {
			name = name[i+1:]
		}
		if strings.HasSuffix(strings.TrimSpace(name), "ComponentBase") {
			return true
		}
	}
	return false
}

func lifecycleRule(p *project.Project, _ string) []Suggestion {
	var out []Suggestion
	for _, f := range p.Files {
		for _, c := range f.Classes {
			if !isComponentClass(c) {
				continue
			}
			defined := make(map[string]bool, len(c.Methods))
			for _, m := range c.Methods {
				defined[m.Name] = true
			}
			for _, sync := range lifecycleMethods {
				async := sync + "Async"
				if defined[sync] && !defined[async] {
					out = append(out, Suggestion{
						Severity: SeverityMedium,
						Category: "lifecycle",
						Message: fmt.Sprintf("Component '%s' overrides %s() without %s(). Use %s() for initialization that awaits I/O.",
							c.Name, sync, async, async),
						File: f.Path,
					})
				}
			}
		}
	}
	return out
}

func asyncVoidRule(p *project.Project, _ string) []Suggestion {
	var out []Suggestion
	for _, f := range p.Files {
		for _, c := range f.Classes {
			for _, m := range c.Methods {
				if m.IsAsync && strings.TrimSpace(m.ReturnType) == "void" {
					out = append(out, Suggestion{
						Severity: SeverityMedium,
						Category: "async-patterns",
						Message: fmt.Sprintf("Method '%s' in class '%s' is async void. Return Task instead so callers can await it and observe exceptions.",
							m.Name, c.Name),
						File: f.Path,
					})
				}
			}
		}
	}
	return out
}

func dependencyInjectionRule(p *project.Project, framework string) []Suggestion {
	if !HasDIConventions(framework) || p.ServiceRegistrations > 0 {
		return nil
	}
	return []Suggestion{{
		Severity: SeverityLow,
		Category: "dependency-injection",
		Message: fmt.Sprintf("No service registrations were detected. %s projects conventionally register data access and external services with the dependency-injection container.",
			framework),
	}}
}
