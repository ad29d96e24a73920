package ctx

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
)

// treesitter finds enclosing scopes by parsing the file with a tree-sitter
// grammar. kinds maps the node types that count as scopes to their kind.
type treesitter struct {
	language string
	grammar  *sitter.Language
	kinds    map[string]string
}

func newGoAdapter() *treesitter {
	return &treesitter{
		language: "go",
		grammar:  golang.GetLanguage(),
		kinds: map[string]string{
			"function_declaration": "function",
			"method_declaration":   "method",
			"type_spec":            "type",
		},
	}
}

func newPythonAdapter() *treesitter {
	return &treesitter{
		language: "python",
		grammar:  python.GetLanguage(),
		kinds: map[string]string{
			"function_definition": "function",
			"class_definition":    "class",
		},
	}
}

func (t *treesitter) Language() string { return t.language }

func (t *treesitter) EnclosingScope(ctx context.Context, req *SourceRequest) (*Scope, error) {
	// Parsers are not safe for concurrent use
	parser := sitter.NewParser()
	parser.SetLanguage(t.grammar)

	tree, err := parser.ParseCtx(ctx, nil, req.Content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", req.FilePath, err)
	}
	defer tree.Close()

	lines := strings.Split(string(req.Content), "\n")
	if len(lines) == 0 || req.StartLine < 0 || req.StartLine >= len(lines) {
		return nil, nil
	}
	endLine := min(max(req.EndLine, req.StartLine), len(lines)-1)

	// Start past the indentation so a selection of a whole body is not
	// attributed to the construct that merely precedes it
	startCol := len(lines[req.StartLine]) - len(strings.TrimLeft(lines[req.StartLine], " \t"))
	start := sitter.Point{Row: uint32(req.StartLine), Column: uint32(startCol)}
	end := sitter.Point{Row: uint32(endLine), Column: uint32(len(lines[endLine]))}

	for n := tree.RootNode().NamedDescendantForPointRange(start, end); n != nil; n = n.Parent() {
		kind, ok := t.kinds[n.Type()]
		if !ok {
			continue
		}
		scope := &Scope{
			Kind:      kind,
			StartLine: int(n.StartPoint().Row),
			EndLine:   int(n.EndPoint().Row),
			Text:      n.Content(req.Content),
		}
		if name := n.ChildByFieldName("name"); name != nil {
			scope.Name = name.Content(req.Content)
		}
		return scope, nil
	}
	return nil, nil
}
