package treesitter

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Identifiers returns every identifier-like token in the parsed source, in order.
// Node types ending in "identifier" cover identifier, type_identifier,
// field_identifier, property_identifier, package_identifier and simple_identifier.
func (p *Parser) Identifiers(ctx context.Context, content []byte, language string) ([]string, error) {
	tree, err := p.Parse(ctx, content, language)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var idents []string
	traverse(tree.RootNode(), func(n *sitter.Node) {
		if strings.HasSuffix(n.Type(), "identifier") {
			idents = append(idents, n.Content(content))
		}
	})
	return idents, nil
}

// Declaration is a top-level named construct of a source file.
type Declaration struct {
	Kind      string
	Name      string
	Content   string
	StartLine int
	EndLine   int
}

var declarationKinds = map[string]map[string]string{
	"go": {
		"function_declaration": "function",
		"method_declaration":   "method",
		"type_declaration":     "type",
	},
	"python": {
		"function_definition":  "function",
		"class_definition":     "class",
		"decorated_definition": "function",
	},
	"javascript": {
		"function_declaration": "function",
		"class_declaration":    "class",
	},
	"typescript": {
		"function_declaration":  "function",
		"class_declaration":     "class",
		"interface_declaration": "interface",
	},
	"java": {
		"class_declaration":     "class",
		"interface_declaration": "interface",
	},
	"kotlin": {
		"class_declaration":    "class",
		"function_declaration": "function",
		"object_declaration":   "object",
	},
}

func init() {
	declarationKinds["tsx"] = declarationKinds["typescript"]
}

// Declarations extracts top-level declarations. Exported JS/TS declarations are
// unwrapped from their export_statement.
func (p *Parser) Declarations(ctx context.Context, content []byte, language string) ([]Declaration, error) {
	tree, err := p.Parse(ctx, content, language)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	kinds := declarationKinds[language]
	root := tree.RootNode()

	var decls []Declaration
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := root.NamedChild(i)
		if node == nil {
			continue
		}
		if node.Type() == "export_statement" && node.NamedChildCount() > 0 {
			node = node.NamedChild(int(node.NamedChildCount()) - 1)
		}
		kind, ok := kinds[node.Type()]
		if !ok {
			continue
		}
		name := declarationName(node, content)
		if name == "" {
			continue
		}
		decls = append(decls, Declaration{
			Kind:      kind,
			Name:      name,
			Content:   node.Content(content),
			StartLine: int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
		})
	}
	return decls, nil
}

func declarationName(node *sitter.Node, content []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return n.Content(content)
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "type_spec", "function_definition", "class_definition":
			// go type_declaration, python decorated_definition
			if n := child.ChildByFieldName("name"); n != nil {
				return n.Content(content)
			}
		case "simple_identifier", "type_identifier":
			return child.Content(content)
		}
	}
	return ""
}

func traverse(node *sitter.Node, visit func(*sitter.Node)) {
	if node == nil {
		return
	}
	visit(node)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		traverse(node.NamedChild(i), visit)
	}
}
