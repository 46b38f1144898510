package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/DeusData/codeindex/internal/query"
	"github.com/DeusData/codeindex/internal/store"
)

var (
	accent = lipgloss.Color("#7C3AED")
	muted  = lipgloss.Color("#6B7280")
	warn   = lipgloss.Color("#F59E0B")

	titleStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(muted).Width(22)
	valueStyle = lipgloss.NewStyle().Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(warn)
	dimStyle   = lipgloss.NewStyle().Foreground(muted)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
)

func row(label string, value any) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(fmt.Sprint(value)))
}

func renderSummary(sum indexSummary) string {
	st := sum.Statistics
	lines := []string{
		titleStyle.Render("indexed " + sum.Project),
		row("root", sum.Root),
		row("files", st.TotalFiles),
		row("directories", st.TotalDirectories),
		row("size (bytes)", st.TotalSizeBytes),
		row("python symbols", st.TotalPythonSymbols),
		row("graph nodes / edges", fmt.Sprintf("%d / %d", st.GraphNodes, st.GraphEdges)),
		row("indexed symbols", st.IndexedSymbols),
		row("definitions / usages", fmt.Sprintf("%d / %d", st.IndexedDefinitions, st.IndexedUsages)),
		row("variables / imports", fmt.Sprintf("%d / %d", st.IndexedVariables, st.IndexedImports)),
	}
	if len(st.Languages) > 0 {
		lines = append(lines, row("languages", countList(st.Languages)))
	}
	if sum.Output != "" {
		lines = append(lines, row("snapshot", sum.Output))
	}
	if sum.Database != "" {
		lines = append(lines, row("database", sum.Database))
	}
	if sum.Neo4j != nil {
		lines = append(lines, row("neo4j nodes / edges", fmt.Sprintf("%d / %d", sum.Neo4j.Nodes, sum.Neo4j.Edges)))
	}
	out := boxStyle.Render(strings.Join(lines, "\n"))
	if len(sum.ParseErrors) > 0 {
		errs := []string{warnStyle.Render(fmt.Sprintf("%d file(s) failed to parse:", len(sum.ParseErrors)))}
		for _, pe := range sum.ParseErrors {
			errs = append(errs, dimStyle.Render("  "+pe.Path+": "+pe.Error))
		}
		out += "\n" + strings.Join(errs, "\n")
	}
	return out
}

// countList renders a count map as "a=3, b=1", largest first.
func countList(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, ", ")
}

func renderSearch(matches []query.SearchMatch) string {
	if len(matches) == 0 {
		return dimStyle.Render("no matches")
	}
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		locs := make([]string, 0, len(m.Definitions))
		for _, d := range m.Definitions {
			locs = append(locs, fmt.Sprintf("%s %s:%d", d.Kind, d.File, d.Line))
		}
		desc := dimStyle.Render(fmt.Sprintf("%d usage(s)", m.UsagesCount))
		if len(locs) > 0 {
			desc = dimStyle.Render(strings.Join(locs, "; ") + fmt.Sprintf(" | %d usage(s)", m.UsagesCount))
		}
		lines = append(lines, titleStyle.Render(m.Symbol)+"  "+desc)
	}
	return strings.Join(lines, "\n")
}

func renderDefinitions(out *store.SearchOutput) string {
	lines := make([]string, 0, len(out.Results)+1)
	for _, d := range out.Results {
		lines = append(lines, fmt.Sprintf("%s  %s",
			valueStyle.Render(d.QualifiedName),
			dimStyle.Render(fmt.Sprintf("%s %s:%d", d.Kind, d.FilePath, d.Line))))
	}
	lines = append(lines, dimStyle.Render(fmt.Sprintf("%d of %d", len(out.Results), out.Total)))
	return strings.Join(lines, "\n")
}

func renderProjects(st *store.Store, projects []*store.Project) string {
	if len(projects) == 0 {
		return dimStyle.Render("no projects indexed")
	}
	lines := make([]string, 0, len(projects))
	for _, p := range projects {
		nc, _ := st.CountNodes(p.Name)
		ec, _ := st.CountEdges(p.Name)
		lines = append(lines, fmt.Sprintf("%s  %s",
			titleStyle.Render(p.Name),
			dimStyle.Render(fmt.Sprintf("%s  indexed %s  %d nodes, %d edges", p.RootPath, p.IndexedAt, nc, ec))))
	}
	return strings.Join(lines, "\n")
}
