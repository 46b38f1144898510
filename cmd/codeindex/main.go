package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/DeusData/codeindex/internal/store"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "codeindex",
		Short: "Index Python repositories into a symbol index and code graph",
		Long: `codeindex extracts definitions, imports, call sites and variable
touches from Python sources, resolves calls across files, and builds an
inverted symbol index plus a typed code graph. Results are stored in a
local SQLite database, written as a JSON snapshot, or exported to Neo4j.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(cmd.ErrOrStderr(), verbose)
		},
	}
	root.PersistentFlags().String("db", "", "SQLite database path (default ~/.cache/codeindex/codeindex.db)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")

	root.AddCommand(
		newIndexCmd(),
		newUsagesCmd(),
		newQualifiedCmd(),
		newVariableCmd(),
		newSearchCmd(),
		newDefinitionsCmd(),
		newStatsCmd(),
		newProjectsCmd(),
		newServeCmd(),
		newDumpASTCmd(),
	)
	return root
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		return store.Open(store.DefaultDBName)
	}
	return store.OpenPath(path)
}
