package briefing

import (
	"strings"

	"github.com/khanglvm/pattern-hub-mcp/internal/project"
)

// UnknownFramework is returned when no signature matches.
const UnknownFramework = "unknown"

type signature struct {
	name   string
	prefix bool
}

func (s signature) matches(dep string) bool {
	dep = strings.ToLower(dep)
	want := strings.ToLower(s.name)
	if s.prefix {
		return strings.HasPrefix(dep, want)
	}
	return dep == want
}

func exact(name string) signature  { return signature{name: name} }
func prefix(name string) signature { return signature{name: name, prefix: true} }

// frameworkSignatures is ordered: the first entry matching any dependency
// wins, so more specific families precede the families they belong to.
var frameworkSignatures = []struct {
	framework  string
	signatures []signature
}{
	{"blazor-server", []signature{prefix("Microsoft.AspNetCore.Components")}},
	{"aspnet-core", []signature{prefix("Microsoft.AspNetCore")}},
	{"entity-framework", []signature{prefix("Microsoft.EntityFrameworkCore")}},
	{"laravel", []signature{exact("laravel/framework")}},
	{"symfony", []signature{exact("symfony/framework-bundle")}},
	{"nextjs", []signature{exact("next")}},
	{"nestjs", []signature{prefix("@nestjs/")}},
	{"angular", []signature{exact("@angular/core")}},
	{"react", []signature{exact("react")}},
	{"vue", []signature{exact("vue")}},
	{"express", []signature{exact("express")}},
	{"django", []signature{exact("django")}},
	{"fastapi", []signature{exact("fastapi")}},
	{"flask", []signature{exact("flask")}},
	{"actix-web", []signature{exact("actix-web")}},
	{"axum", []signature{exact("axum")}},
	{"tokio", []signature{exact("tokio")}},
	{"gin", []signature{exact("github.com/gin-gonic/gin")}},
	{"fiber", []signature{prefix("github.com/gofiber/fiber")}},
	{"echo", []signature{prefix("github.com/labstack/echo")}},
	{"spring", []signature{prefix("org.springframework")}},
}

// diFrameworks have a dependency-injection container by convention.
var diFrameworks = map[string]bool{
	"blazor-server":    true,
	"aspnet-core":      true,
	"entity-framework": true,
	"laravel":          true,
	"symfony":          true,
	"nestjs":           true,
	"angular":          true,
	"spring":           true,
}

// DetectFramework maps a project's dependencies to a framework tag.
func DetectFramework(p *project.Project) string {
	if p == nil {
		return UnknownFramework
	}
	for _, entry := range frameworkSignatures {
		for _, dep := range p.Dependencies {
			for _, sig := range entry.signatures {
				if sig.matches(dep.Name) {
					return entry.framework
				}
			}
		}
	}
	return UnknownFramework
}

// HasDIConventions reports whether framework registers services through a
// dependency-injection container.
func HasDIConventions(framework string) bool {
	return diFrameworks[framework]
}
