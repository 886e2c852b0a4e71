package parser

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// GrammarLoader holds the compiled tree-sitter grammars the syntax
// extractor can use.
type GrammarLoader struct {
	languages map[string]*sitter.Language
}

func NewGrammarLoader() (*GrammarLoader, error) {
	python := sitter.NewLanguage(tree_sitter_python.Language())
	if python == nil {
		return nil, fmt.Errorf("load python grammar")
	}

	return &GrammarLoader{
		languages: map[string]*sitter.Language{"python": python},
	}, nil
}

func (l *GrammarLoader) Language(name string) (*sitter.Language, bool) {
	lang, ok := l.languages[name]
	return lang, ok
}
