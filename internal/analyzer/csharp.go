package analyzer

import (
	"context"
	"errors"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"

	"github.com/khanglvm/pattern-hub-mcp/internal/project"
)

// CSharpParser extracts class declarations from C# source using tree-sitter.
type CSharpParser struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewCSharpParser creates a parser bound to the C# grammar.
func NewCSharpParser() *CSharpParser {
	p := sitter.NewParser()
	p.SetLanguage(csharp.GetLanguage())
	return &CSharpParser{parser: p}
}

// Parse returns every class declared in content, including nested classes.
// Syntax errors elsewhere in the file do not prevent extraction.
func (p *CSharpParser) Parse(content []byte) ([]project.Class, error) {
	p.mu.Lock()
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, errors.New("tree-sitter returned no tree")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return nil, errors.New("tree-sitter returned no root node")
	}

	var classes []project.Class
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "class_declaration" {
			classes = append(classes, parseClass(n, content))
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return classes, nil
}

func parseClass(n *sitter.Node, src []byte) project.Class {
	var cls project.Class

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "modifier":
			cls.Modifiers = append(cls.Modifiers, child.Content(src))
		case "identifier":
			if cls.Name == "" {
				cls.Name = child.Content(src)
			}
		case "base_list":
			cls.BaseTypes = parseBaseList(child, src)
		case "declaration_list":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				member := child.NamedChild(j)
				switch member.Type() {
				case "method_declaration":
					cls.Methods = append(cls.Methods, parseMethod(member, src))
				case "property_declaration":
					cls.Properties = append(cls.Properties, parseProperty(member, src))
				}
			}
		}
	}
	return cls
}

func parseBaseList(n *sitter.Node, src []byte) []string {
	var bases []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		// Primary-constructor bases wrap the type together with arguments.
		if child.Type() == "primary_constructor_base_type" && child.NamedChildCount() > 0 {
			child = child.NamedChild(0)
		}
		if text := strings.TrimSpace(child.Content(src)); text != "" {
			bases = append(bases, text)
		}
	}
	return bases
}

// declarationParts returns the return/declared type and name of a member,
// preferring grammar field names and falling back to child position for
// grammar versions that lack them.
func declarationParts(n *sitter.Node, src []byte, typeFields ...string) (typ, name string) {
	for _, field := range typeFields {
		if t := n.ChildByFieldName(field); t != nil {
			typ = t.Content(src)
			break
		}
	}
	if nm := n.ChildByFieldName("name"); nm != nil {
		name = nm.Content(src)
	}
	if typ != "" && name != "" {
		return typ, name
	}

	var parts []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "attribute_list", "modifier", "type_parameter_list", "parameter_list",
			"block", "arrow_expression_clause", "accessor_list", "type_parameter_constraints_clause":
			continue
		}
		parts = append(parts, child.Content(src))
		if len(parts) == 2 {
			break
		}
	}
	if typ == "" && len(parts) > 0 {
		typ = parts[0]
	}
	if name == "" && len(parts) > 1 {
		name = parts[1]
	}
	return typ, name
}

func parseMethod(n *sitter.Node, src []byte) project.Method {
	var m project.Method
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "modifier" {
			mod := child.Content(src)
			m.Modifiers = append(m.Modifiers, mod)
			if mod == "async" {
				m.IsAsync = true
			}
		}
	}
	m.ReturnType, m.Name = declarationParts(n, src, "returns", "type")
	return m
}

func parseProperty(n *sitter.Node, src []byte) project.Property {
	var prop project.Property
	prop.Type, prop.Name = declarationParts(n, src, "type")

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "accessor_list":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				text := child.NamedChild(j).Content(src)
				if strings.Contains(text, "get") {
					prop.HasGetter = true
				}
				if strings.Contains(text, "set") || strings.Contains(text, "init") {
					prop.HasSetter = true
				}
			}
		case "arrow_expression_clause":
			prop.HasGetter = true
		}
	}
	return prop
}
