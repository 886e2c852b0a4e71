// Package parser extracts raw import references from Python source.
package parser

import (
	"fmt"
	"strings"

	"marui/internal/errors"
)

const (
	ModeLexical = "lexical"
	ModeSyntax  = "syntax"
)

// Extractor returns the raw import references of one source file in the
// order they appear.
type Extractor interface {
	Extract(path string, content []byte) ([]string, error)
}

// NewExtractor returns the extractor for mode. An empty mode selects the
// lexical extractor.
func NewExtractor(mode string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeLexical:
		return &LexicalExtractor{}, nil
	case ModeSyntax:
		loader, err := NewGrammarLoader()
		if err != nil {
			return nil, err
		}
		return NewSyntaxExtractor(loader), nil
	default:
		return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("unknown parser mode %q", mode)).
			WithContext(errors.CtxField, "discovery.mode")
	}
}

// ModeOf names the mode of a built-in extractor, or "custom".
func ModeOf(e Extractor) string {
	switch e.(type) {
	case *LexicalExtractor:
		return ModeLexical
	case *SyntaxExtractor:
		return ModeSyntax
	default:
		return "custom"
	}
}
