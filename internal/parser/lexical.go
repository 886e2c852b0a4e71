package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// LexicalExtractor reads imports line by line. A line counts when it starts
// in the first column with the keyword "import" or "from"; the next
// whitespace-delimited field is the raw reference. Indented imports are
// not seen.
type LexicalExtractor struct{}

var utf8BOM = []byte("\xef\xbb\xbf")

func (e *LexicalExtractor) Extract(path string, content []byte) ([]string, error) {
	var imports []string

	scanner := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if ref, ok := importRef(scanner.Text()); ok {
			imports = append(imports, ref)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	return imports, nil
}

func importRef(line string) (string, bool) {
	if line == "" {
		return "", false
	}
	if r, _ := utf8.DecodeRuneInString(line); unicode.IsSpace(r) {
		return "", false
	}

	fields := strings.Fields(line)
	if len(fields) < 2 || (fields[0] != "import" && fields[0] != "from") {
		return "", false
	}

	ref := strings.TrimRight(fields[1], ",;")
	if ref == "" {
		return "", false
	}
	return ref, true
}
