package parser

import (
	"errors"
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// SyntaxExtractor parses the file with the tree-sitter Python grammar and
// records the module of every import statement, wherever it appears.
// Relative references keep their leading dots.
type SyntaxExtractor struct {
	loader *GrammarLoader
}

func NewSyntaxExtractor(loader *GrammarLoader) *SyntaxExtractor {
	return &SyntaxExtractor{loader: loader}
}

func (e *SyntaxExtractor) Extract(path string, content []byte) ([]string, error) {
	grammar, ok := e.loader.Language("python")
	if !ok {
		return nil, errors.New("grammar not loaded: python")
	}

	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(grammar); err != nil {
		return nil, fmt.Errorf("set python grammar: %w", err)
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse %s: no tree", path)
	}
	defer tree.Close()

	var imports []string
	e.walk(tree.RootNode(), content, &imports)
	return imports, nil
}

func (e *SyntaxExtractor) walk(node *sitter.Node, source []byte, imports *[]string) {
	switch node.Kind() {
	case "import_statement":
		e.extractImport(node, source, imports)
		return
	case "import_from_statement":
		if module := node.ChildByFieldName("module_name"); module != nil {
			*imports = append(*imports, text(module, source))
		}
		return
	case "future_import_statement":
		*imports = append(*imports, "__future__")
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		e.walk(node.Child(i), source, imports)
	}
}

func (e *SyntaxExtractor) extractImport(node *sitter.Node, source []byte, imports *[]string) {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "dotted_name":
			*imports = append(*imports, text(child, source))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				*imports = append(*imports, text(name, source))
			}
		}
	}
}

func text(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
