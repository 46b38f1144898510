package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/DeusData/codeindex/internal/config"
	"github.com/DeusData/codeindex/internal/neo4jexport"
	"github.com/DeusData/codeindex/internal/pipeline"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a repository (default: current directory)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIndex,
	}
	f := cmd.Flags()
	f.String("project", "", "Project name (default: derived from the absolute path)")
	f.Bool("no-body", false, "Do not capture function bodies")
	f.Bool("no-docstrings", false, "Do not capture docstrings")
	f.StringSlice("ignore", nil, "Extra gitignore-style patterns to skip")
	f.String("ignore-file", "", "Read ignore patterns from this file instead of .codeindexignore")
	f.Bool("no-gitignore", false, "Do not honor the repository .gitignore")
	f.Int("workers", 0, "Concurrent extraction workers (default: GOMAXPROCS)")
	f.StringP("output", "o", "", "Write the JSON snapshot to this path")
	f.Bool("no-store", false, "Skip saving to the SQLite database")
	f.Bool("json", false, "Print the run summary as JSON")
	f.String("neo4j-uri", "", "Export the graph to this Neo4j instance (e.g. bolt://localhost:7687)")
	f.String("neo4j-user", "neo4j", "Neo4j user")
	f.String("neo4j-password", "", "Neo4j password (default: $NEO4J_PASSWORD)")
	f.String("neo4j-database", "", "Neo4j database (default: server default)")
	f.Bool("neo4j-clean", false, "Delete the project's previously exported nodes first")
	return cmd
}

// indexSummary is what `index` reports after a run.
type indexSummary struct {
	Project     string                `json:"project"`
	Root        string                `json:"root_path"`
	Statistics  pipeline.Statistics   `json:"statistics"`
	ParseErrors []pipeline.ParseError `json:"parse_errors"`
	Output      string                `json:"output,omitempty"`
	Database    string                `json:"database,omitempty"`
	Neo4j       *neo4jexport.Stats    `json:"neo4j,omitempty"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	repo := "."
	if len(args) == 1 {
		repo = args[0]
	}
	abs, err := filepath.Abs(repo)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	cfg, err := config.Load(abs)
	if err != nil {
		return err
	}
	opts, output := indexOptions(cmd, cfg)

	ctx := cmd.Context()
	snap, err := pipeline.Run(ctx, abs, opts)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	project, _ := f.GetString("project")
	if project == "" {
		project = pipeline.ProjectNameFromPath(abs)
	}
	sum := indexSummary{
		Project:     project,
		Root:        abs,
		Statistics:  snap.Statistics,
		ParseErrors: snap.Metadata.ParseErrors,
	}

	if output != "" {
		if err := pipeline.WriteJSON(output, snap); err != nil {
			return err
		}
		sum.Output = output
	}

	if noStore, _ := f.GetBool("no-store"); !noStore {
		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveSnapshot(project, snap); err != nil {
			return err
		}
		sum.Database = st.Path()
	}

	if uri, _ := f.GetString("neo4j-uri"); uri != "" {
		stats, err := exportNeo4j(cmd, uri, project, snap)
		if err != nil {
			return err
		}
		sum.Neo4j = &stats
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := f.GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	fmt.Fprintln(out, renderSummary(sum))
	return nil
}

// indexOptions layers command-line flags over the loaded config.
func indexOptions(cmd *cobra.Command, cfg *config.Config) (pipeline.Options, string) {
	f := cmd.Flags()
	if v, _ := f.GetBool("no-body"); v {
		cfg.DisableBody()
	}
	if v, _ := f.GetBool("no-docstrings"); v {
		cfg.DisableDocstrings()
	}
	if extra, _ := f.GetStringSlice("ignore"); len(extra) > 0 {
		cfg.Ignore = append(cfg.Ignore, extra...)
	}
	if file, _ := f.GetString("ignore-file"); file != "" {
		if abs, err := filepath.Abs(file); err == nil {
			file = abs
		}
		cfg.IgnoreFile = file
	}
	if w, _ := f.GetInt("workers"); w > 0 {
		cfg.Workers = w
	}
	opts := pipeline.OptionsFromConfig(cfg)
	opts.NoGitignore, _ = f.GetBool("no-gitignore")

	output := cfg.Output
	if o, _ := f.GetString("output"); o != "" {
		output = o
	}
	return opts, output
}

func exportNeo4j(cmd *cobra.Command, uri, project string, snap *pipeline.Snapshot) (neo4jexport.Stats, error) {
	f := cmd.Flags()
	user, _ := f.GetString("neo4j-user")
	pass, _ := f.GetString("neo4j-password")
	if pass == "" {
		pass = os.Getenv("NEO4J_PASSWORD")
	}
	db, _ := f.GetString("neo4j-database")
	clean, _ := f.GetBool("neo4j-clean")

	ctx := cmd.Context()
	exp, err := neo4jexport.Connect(ctx, neo4jexport.Config{URI: uri, User: user, Password: pass, Database: db})
	if err != nil {
		return neo4jexport.Stats{}, err
	}
	defer exp.Close(ctx)
	if clean {
		if err := exp.Clean(ctx, project); err != nil {
			return neo4jexport.Stats{}, fmt.Errorf("neo4j clean: %w", err)
		}
	}
	return exp.Export(ctx, project, snap.Graph)
}
