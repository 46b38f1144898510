package symbols

import (
	"strconv"
	"strings"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codeindex/internal/parser"
)

// extractDocstring returns the docstring of a class or function: the first
// statement of its body when that statement is a plain string literal,
// possibly implicitly concatenated. Escapes are evaluated as Python does.
// F-strings and byte strings are not docstrings.
func extractDocstring(def *tree_sitter.Node, source []byte) (string, bool) {
	body := def.ChildByFieldName("body")
	if body == nil {
		return "", false
	}
	first := firstStatement(body)
	if first == nil || first.Kind() != "expression_statement" || first.NamedChildCount() != 1 {
		return "", false
	}
	lit := first.NamedChild(0)
	if lit == nil {
		return "", false
	}
	var parts []*tree_sitter.Node
	switch lit.Kind() {
	case "string":
		parts = append(parts, lit)
	case "concatenated_string":
		for i := uint(0); i < lit.NamedChildCount(); i++ {
			if c := lit.NamedChild(i); c != nil && c.Kind() == "string" {
				parts = append(parts, c)
			}
		}
	default:
		return "", false
	}

	var b strings.Builder
	for _, str := range parts {
		value, ok := stringValue(str, source)
		if !ok {
			return "", false
		}
		b.WriteString(value)
	}
	return cleanDocstring(b.String()), true
}

// stringValue evaluates one plain string literal.
func stringValue(str *tree_sitter.Node, source []byte) (string, bool) {
	for i := uint(0); i < str.NamedChildCount(); i++ {
		if c := str.NamedChild(i); c != nil && c.Kind() == "interpolation" {
			return "", false
		}
	}
	raw := parser.NodeText(str, source)
	prefix := stringPrefix(raw)
	if strings.ContainsAny(prefix, "bBfF") {
		return "", false
	}
	body := stripQuotes(raw[len(prefix):])
	if strings.ContainsAny(prefix, "rR") {
		return body, true
	}
	return unescape(body), true
}

// firstStatement skips comments, which tree-sitter reports as named children.
func firstStatement(block *tree_sitter.Node) *tree_sitter.Node {
	for i := uint(0); i < block.NamedChildCount(); i++ {
		c := block.NamedChild(i)
		if c != nil && c.Kind() != "comment" {
			return c
		}
	}
	return nil
}

func stringPrefix(s string) string {
	i := 0
	for i < len(s) && s[i] != '"' && s[i] != '\'' {
		i++
	}
	return s[:i]
}

func stripQuotes(s string) string {
	for _, delim := range []string{`"""`, `'''`} {
		if len(s) >= 6 && strings.HasPrefix(s, delim) && strings.HasSuffix(s, delim) {
			return s[3 : len(s)-3]
		}
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// unescape evaluates the backslash escapes of a non-raw literal. Unknown
// escapes, and \N{...} named characters, are kept as written.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		esc := s[i]
		switch {
		case esc == '\n':
			// line continuation
		case esc == '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case esc == '\\' || esc == '\'' || esc == '"':
			b.WriteByte(esc)
		case strings.IndexByte("abfnrtv", esc) >= 0:
			b.WriteByte("\a\b\f\n\r\t\v"[strings.IndexByte("abfnrtv", esc)])
		case esc >= '0' && esc <= '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 32)
			b.WriteRune(rune(v))
			i = j - 1
		case esc == 'x' || esc == 'u' || esc == 'U':
			n := 2
			switch esc {
			case 'u':
				n = 4
			case 'U':
				n = 8
			}
			if i+1+n <= len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+1+n], 16, 32); err == nil && utf8.ValidRune(rune(v)) {
					b.WriteRune(rune(v))
					i += n
					continue
				}
			}
			b.WriteByte('\\')
			b.WriteByte(esc)
		default:
			b.WriteByte('\\')
			b.WriteByte(esc)
		}
	}
	return b.String()
}

// expandTabs replaces tabs with spaces up to the next multiple of eight columns.
func expandTabs(line string) string {
	if !strings.Contains(line, "\t") {
		return line
	}
	var b strings.Builder
	col := 0
	for _, r := range line {
		if r == '\t' {
			n := 8 - col%8
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(r)
		col++
	}
	return b.String()
}

// cleanDocstring normalizes indentation the way Python tooling does: tabs
// expanded, the first line stripped, continuation lines dedented by their
// common indentation, and leading/trailing blank lines removed.
func cleanDocstring(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = expandTabs(lines[i])
	}
	minIndent := -1
	for _, line := range lines[1:] {
		trimmed := strings.TrimLeft(line, " ")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if minIndent < 0 || indent < minIndent {
			minIndent = indent
		}
	}
	lines[0] = strings.TrimSpace(lines[0])
	for i := 1; i < len(lines); i++ {
		if minIndent > 0 && len(lines[i]) >= minIndent {
			lines[i] = lines[i][minIndent:]
		}
		lines[i] = strings.TrimRight(lines[i], " \r")
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
