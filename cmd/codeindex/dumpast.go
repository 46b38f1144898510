package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/codeindex/internal/lang"
	"github.com/DeusData/codeindex/internal/parser"
	"github.com/DeusData/codeindex/internal/symbols"
)

func newDumpASTCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "dump-ast <file.py>",
		Short:  "Print the syntax tree or extracted symbols of one file",
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if syms, _ := cmd.Flags().GetBool("symbols"); syms {
				set, err := symbols.ExtractSource(src, symbols.DefaultOptions())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), set)
			}
			l := lang.ForPath(args[0])
			if !lang.Parseable(l) {
				l = lang.Python
			}
			tree, err := parser.Parse(l, src)
			if err != nil {
				return err
			}
			defer tree.Close()
			width, _ := cmd.Flags().GetInt("width")
			printAST(cmd.OutOrStdout(), tree.RootNode(), src, 0, width)
			return nil
		},
	}
	cmd.Flags().Bool("symbols", false, "Print extracted symbols as JSON instead of the tree")
	cmd.Flags().Int("width", 60, "Truncate node text to this many bytes")
	return cmd
}

func printAST(w io.Writer, node *tree_sitter.Node, source []byte, depth, width int) {
	if node == nil {
		return
	}
	text := parser.NodeText(node, source)
	if len(text) > width {
		text = text[:width] + "..."
	}
	fmt.Fprintf(w, "%s%s [%d:%d] %q\n", strings.Repeat("  ", depth), node.Kind(),
		parser.Line(node), parser.Column(node), text)
	for i := uint(0); i < node.ChildCount(); i++ {
		printAST(w, node.Child(i), source, depth+1, width)
	}
}
