package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxSnippetLines caps how much of a block get_code_snippet returns.
const maxSnippetLines = 400

func (s *Server) handleGetCodeSnippet(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	qn := getStringArg(args, "qualified_name")
	if qn == "" {
		return errResult("qualified_name is required"), nil
	}
	p, err := s.resolveProject(getStringArg(args, "project"))
	if err != nil {
		return errResult(err.Error()), nil
	}
	defs, err := s.store.FindDefinitionsByQN(p.Name, qn)
	if err != nil {
		return errResult(err.Error()), nil
	}
	if len(defs) == 0 {
		return errResult(fmt.Sprintf("definition not found: %s", qn)), nil
	}

	type snippet struct {
		File      string `json:"file"`
		StartLine int    `json:"start_line"`
		EndLine   int    `json:"end_line"`
		Source    string `json:"source"`
	}
	out := make([]snippet, 0, len(defs))
	for _, d := range defs {
		abs := filepath.Join(p.RootPath, filepath.FromSlash(d.FilePath))
		src, end, err := readBlock(abs, d.Line, d.ColOffset)
		if err != nil {
			return errResult(fmt.Sprintf("read file: %v", err)), nil
		}
		out = append(out, snippet{File: d.FilePath, StartLine: d.Line, EndLine: end, Source: src})
	}
	return jsonResult(map[string]any{"qualified_name": qn, "project": p.Name, "snippets": out}), nil
}

// readBlock returns the numbered lines of the indented block whose header
// starts at startLine with the given indentation, and the last line read.
// The block ends before the first non-blank line indented at or left of
// the header.
func readBlock(path string, startLine, indent int) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	type line struct {
		num  int
		text string
	}
	var block []line
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		if lineNum < startLine {
			continue
		}
		text := sc.Text()
		if lineNum > startLine {
			trimmed := strings.TrimLeft(text, " \t")
			if trimmed != "" && len(text)-len(trimmed) <= indent {
				break
			}
			if lineNum-startLine >= maxSnippetLines {
				break
			}
		}
		block = append(block, line{lineNum, text})
	}
	if err := sc.Err(); err != nil {
		return "", 0, fmt.Errorf("scan: %w", err)
	}
	for len(block) > 1 && strings.TrimSpace(block[len(block)-1].text) == "" {
		block = block[:len(block)-1]
	}
	if len(block) == 0 {
		return "", 0, fmt.Errorf("line %d out of range (file has %d lines)", startLine, lineNum)
	}
	var sb strings.Builder
	for _, l := range block {
		fmt.Fprintf(&sb, "%4d | %s\n", l.num, l.text)
	}
	return sb.String(), block[len(block)-1].num, nil
}
