package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DeusData/codeindex/internal/index"
	"github.com/DeusData/codeindex/internal/pipeline"
	"github.com/DeusData/codeindex/internal/query"
	"github.com/DeusData/codeindex/internal/store"
	"github.com/DeusData/codeindex/internal/symbols"
)

// addSourceFlags registers the flags that pick which index a query reads.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("project", "", "Stored project to query (default: the only one)")
	cmd.Flags().String("snapshot", "", "Query a JSON snapshot written by `index -o` instead of the database")
}

// loadIndex returns the inverted index named by --snapshot or --project.
func loadIndex(cmd *cobra.Command) (*index.Index, error) {
	if path, _ := cmd.Flags().GetString("snapshot"); path != "" {
		snap, err := pipeline.ReadJSON(path)
		if err != nil {
			return nil, err
		}
		if snap.Index == nil {
			return nil, fmt.Errorf("%s has no inverted_index", path)
		}
		return snap.Index, nil
	}
	st, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	project, err := pickProject(cmd, st)
	if err != nil {
		return nil, err
	}
	return st.LoadIndex(project)
}

func pickProject(cmd *cobra.Command, st *store.Store) (string, error) {
	if name, _ := cmd.Flags().GetString("project"); name != "" {
		return name, nil
	}
	projects, err := st.ListProjects()
	if err != nil {
		return "", err
	}
	switch len(projects) {
	case 0:
		return "", errors.New("no projects indexed; run `codeindex index` first")
	case 1:
		return projects[0].Name, nil
	}
	names := make([]string, len(projects))
	for i, p := range projects {
		names[i] = p.Name
	}
	sort.Strings(names)
	return "", fmt.Errorf("several projects indexed (%s); pass --project", strings.Join(names, ", "))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newUsagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usages <symbol>",
		Short: "Show definitions and call sites of a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadIndex(cmd)
			if err != nil {
				return err
			}
			res, found := query.FindAllUsages(idx, args[0])
			if !found {
				return fmt.Errorf("symbol not indexed: %s", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	addSourceFlags(cmd)
	return cmd
}

func newQualifiedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qualified <qualified_name>",
		Short: "Find definitions by qualified name (e.g. Job.run)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadIndex(cmd)
			if err != nil {
				return err
			}
			matches := query.FindByQualifiedName(idx, args[0])
			if len(matches) == 0 {
				return fmt.Errorf("no definition named %s", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), matches)
		},
	}
	addSourceFlags(cmd)
	return cmd
}

func newVariableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variable <name>",
		Short: "Show assignments and reads of a variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := loadIndex(cmd)
			if err != nil {
				return err
			}
			res, found := query.FindVariableUsages(idx, args[0])
			if !found {
				return fmt.Errorf("variable not indexed: %s", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	addSourceFlags(cmd)
	return cmd
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Case-insensitive substring search over symbol names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			k := symbols.Kind(kind)
			if k != "" && k != symbols.KindFunction && k != symbols.KindClass {
				return fmt.Errorf("--kind must be %q or %q", symbols.KindFunction, symbols.KindClass)
			}
			idx, err := loadIndex(cmd)
			if err != nil {
				return err
			}
			matches := query.SearchSymbols(idx, args[0], k)
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				if matches == nil {
					matches = []query.SearchMatch{}
				}
				return writeJSON(cmd.OutOrStdout(), matches)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSearch(matches))
			return nil
		},
	}
	addSourceFlags(cmd)
	cmd.Flags().String("kind", "", "Only keep definitions of this kind: function|class")
	cmd.Flags().Bool("json", false, "Print matches as JSON")
	return cmd
}

func newDefinitionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definitions [name-glob]",
		Short: "Search stored definitions by name, kind and file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			project, err := pickProject(cmd, st)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			params := store.SearchParams{Project: project}
			if len(args) == 1 {
				params.NamePattern = args[0]
			}
			params.Kind, _ = f.GetString("kind")
			params.FilePattern, _ = f.GetString("file")
			params.Limit, _ = f.GetInt("limit")
			out, err := st.SearchDefinitions(params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDefinitions(out))
			return nil
		},
	}
	cmd.Flags().String("project", "", "Stored project to query (default: the only one)")
	cmd.Flags().String("kind", "", "function|class")
	cmd.Flags().String("file", "", "Glob for the file path")
	cmd.Flags().Int("limit", 50, "Max rows")
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show repository and index statistics for a stored project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			project, err := pickProject(cmd, st)
			if err != nil {
				return err
			}
			stats, err := st.LoadStatistics(project)
			if err != nil {
				return err
			}
			idx, err := st.LoadIndex(project)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"project":        project,
				"repository":     stats,
				"inverted_index": idx.Statistics,
			})
		},
	}
	cmd.Flags().String("project", "", "Stored project (default: the only one)")
	return cmd
}

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List or delete stored projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()
			if name, _ := cmd.Flags().GetString("delete"); name != "" {
				if _, err := st.GetProject(name); err != nil {
					return err
				}
				if err := st.DeleteProject(name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
				return nil
			}
			projects, err := st.ListProjects()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderProjects(st, projects))
			return nil
		},
	}
	cmd.Flags().String("delete", "", "Delete this project")
	return cmd
}
