package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyntaxExtractor(t *testing.T) {
	loader, err := NewGrammarLoader()
	require.NoError(t, err)
	e := NewSyntaxExtractor(loader)

	code := `
import os
import sys as system, pkg.util
from auth.utils import login as auth_login
from . import local_mod
from ..parent import parent_mod
from __future__ import annotations

def my_func(a):
    import json
    return os.path.join(a, "b")

if TYPE_CHECKING:
    from pkg.types import Thing
`
	got, err := e.Extract("test.py", []byte(code))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"os",
		"sys",
		"pkg.util",
		"auth.utils",
		".",
		"..parent",
		"__future__",
		"json",
		"pkg.types",
	}, got)
}

func TestSyntaxExtractor_NoImports(t *testing.T) {
	loader, err := NewGrammarLoader()
	require.NoError(t, err)

	got, err := NewSyntaxExtractor(loader).Extract("empty.py", []byte("x = 1\n"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
