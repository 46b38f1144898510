package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/codeindex/internal/config"
	"github.com/DeusData/codeindex/internal/discover"
	"github.com/DeusData/codeindex/internal/graph"
	"github.com/DeusData/codeindex/internal/index"
	"github.com/DeusData/codeindex/internal/lang"
	"github.com/DeusData/codeindex/internal/resolve"
	"github.com/DeusData/codeindex/internal/symbols"
)

var tracer = otel.Tracer("codeindex.pipeline")

// Options controls one indexing run.
type Options struct {
	IncludeBody       bool
	IncludeDocstrings bool
	Ignore            []string
	IgnoreFile        string // replaces the repository's .codeindexignore
	NoGitignore       bool
	Workers           int
	MaxFileSize       int64 // 0 = unlimited
	IndexVersion      string
	// Identifier overrides the repository_identifier metadata field.
	Identifier string
}

// DefaultOptions captures bodies and docstrings with one worker per CPU.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig maps a loaded config onto run options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		IncludeBody:       cfg.EffectiveIncludeBody(),
		IncludeDocstrings: cfg.EffectiveIncludeDocstrings(),
		Ignore:            cfg.Ignore,
		IgnoreFile:        cfg.IgnoreFile,
		Workers:           cfg.EffectiveWorkers(),
		MaxFileSize:       cfg.MaxFileSize,
		IndexVersion:      cfg.EffectiveIndexVersion(),
	}
}

// DiscoverOptions returns the file-selection part of the options.
func (o Options) DiscoverOptions() *discover.Options {
	return &discover.Options{Ignore: o.Ignore, IgnoreFile: o.IgnoreFile, NoGitignore: o.NoGitignore}
}

// Pipeline indexes one repository.
type Pipeline struct {
	ctx         context.Context
	RepoPath    string
	ProjectName string
	opts        Options
}

// New creates a new Pipeline.
func New(ctx context.Context, repoPath string, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = config.Default().EffectiveWorkers()
	}
	if opts.IndexVersion == "" {
		opts.IndexVersion = config.DefaultIndexVersion
	}
	if abs, err := filepath.Abs(repoPath); err == nil {
		repoPath = abs
	}
	return &Pipeline{
		ctx:         ctx,
		RepoPath:    repoPath,
		ProjectName: ProjectNameFromPath(repoPath),
		opts:        opts,
	}
}

// ProjectNameFromPath derives a unique project name from an absolute path
// by replacing path separators with dashes and trimming the leading dash.
func ProjectNameFromPath(absPath string) string {
	cleaned := filepath.ToSlash(filepath.Clean(absPath))
	name := strings.ReplaceAll(cleaned, "/", "-")
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return "root"
	}
	return name
}

// RepositoryIdentifier is "<parent>/<name>" of the repository directory,
// or just the name when there is no parent.
func RepositoryIdentifier(absPath string) string {
	cleaned := filepath.ToSlash(filepath.Clean(absPath))
	parts := strings.FieldsFunc(cleaned, func(r rune) bool { return r == '/' })
	switch len(parts) {
	case 0:
		return "unknown"
	case 1:
		return parts[0]
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}

// Run indexes the repository at repoPath.
func Run(ctx context.Context, repoPath string, opts Options) (*Snapshot, error) {
	return New(ctx, repoPath, opts).Run()
}

// Run discovers the repository's files and indexes them.
func (p *Pipeline) Run() (*Snapshot, error) {
	slog.Info("pipeline.start", "project", p.ProjectName, "path", p.RepoPath)
	if err := p.ctx.Err(); err != nil {
		return nil, err
	}

	t := time.Now()
	res, err := discover.Discover(p.ctx, p.RepoPath, p.opts.DiscoverOptions())
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("pass.timing", "pass", "discover", "files", len(res.Files), "elapsed", time.Since(t))
	return p.RunFiles(res)
}

// RunFiles indexes an already-materialized file list.
func (p *Pipeline) RunFiles(res *discover.Result) (*Snapshot, error) {
	ctx, span := tracer.Start(p.ctx, "pipeline.Run",
		trace.WithAttributes(attribute.String("project", p.ProjectName), attribute.Int("files", len(res.Files))))
	defer span.End()

	entries, parseErrors, err := p.passExtract(ctx, res.Files)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files := make([]symbols.FileSymbols, len(entries))
	for i, e := range entries {
		files[i] = symbols.FileSymbols{Path: e.RelPath, Symbols: e.Symbols}
	}
	r := resolve.New(files)

	g, err := p.passGraph(ctx, res.Files, files, r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, err := p.passIndex(ctx, files, r)
	if err != nil {
		return nil, err
	}

	snap := p.buildSnapshot(res, entries, g, idx, parseErrors)
	slog.Info("pipeline.done",
		"files", snap.Statistics.TotalFiles,
		"nodes", snap.Statistics.GraphNodes,
		"edges", snap.Statistics.GraphEdges,
		"symbols", snap.Statistics.IndexedSymbols,
		"parse_errors", len(parseErrors))
	span.SetAttributes(
		attribute.Int("graph.nodes", snap.Statistics.GraphNodes),
		attribute.Int("graph.edges", snap.Statistics.GraphEdges),
		attribute.Int("parse_errors", len(parseErrors)),
	)
	return snap, nil
}

type extractResult struct {
	Hash    string
	Symbols *symbols.SymbolSet
	Err     error
}

// passExtract hashes every file and extracts symbols from parseable ones on
// a bounded worker pool. Results land at the file's index, so order is stable.
func (p *Pipeline) passExtract(ctx context.Context, infos []discover.FileInfo) ([]FileEntry, []ParseError, error) {
	ctx, span := tracer.Start(ctx, "pipeline.passExtract")
	defer span.End()
	t := time.Now()

	results := make([]extractResult, len(infos))
	numWorkers := p.opts.Workers
	if numWorkers > len(infos) {
		numWorkers = len(infos)
	}
	opts := symbols.Options{IncludeBody: p.opts.IncludeBody, IncludeDocstrings: p.opts.IncludeDocstrings}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(numWorkers, 1))
	for i, f := range infos {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = p.extractFile(f, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	entries := make([]FileEntry, len(infos))
	parseErrors := []ParseError{}
	parsed := 0
	for i, f := range infos {
		r := results[i]
		entries[i] = FileEntry{FileInfo: f, Hash: r.Hash, Symbols: r.Symbols}
		if r.Err != nil {
			slog.Warn("extract.file.err", "path", f.RelPath, "err", r.Err)
			parseErrors = append(parseErrors, ParseError{Path: f.RelPath, Error: r.Err.Error()})
			continue
		}
		if r.Symbols != nil {
			parsed++
		}
	}
	span.SetAttributes(attribute.Int("files.parsed", parsed), attribute.Int("files.failed", len(parseErrors)))
	slog.Info("pass.timing", "pass", "extract", "parsed", parsed, "failed", len(parseErrors), "elapsed", time.Since(t))
	return entries, parseErrors, nil
}

// extractFile reads one file, hashes it and, for Python sources within the
// size limit, extracts its symbols.
func (p *Pipeline) extractFile(f discover.FileInfo, opts symbols.Options) extractResult {
	source, err := os.ReadFile(f.Path)
	if err != nil {
		return extractResult{Err: err}
	}
	res := extractResult{Hash: hashBytes(source)}
	if !lang.Parseable(f.Language) {
		return res
	}
	if p.opts.MaxFileSize > 0 && int64(len(source)) > p.opts.MaxFileSize {
		slog.Info("extract.file.skip", "path", f.RelPath, "size", len(source), "limit", p.opts.MaxFileSize)
		return res
	}
	set, err := symbols.ExtractSource(source, opts)
	if err != nil {
		res.Err = err
		return res
	}
	res.Symbols = set
	return res
}

func (p *Pipeline) passGraph(ctx context.Context, infos []discover.FileInfo, files []symbols.FileSymbols, r *resolve.Resolver) (*graph.CodeGraph, error) {
	_, span := tracer.Start(ctx, "pipeline.passGraph")
	defer span.End()
	t := time.Now()

	g, err := graph.Build(infos, files, r)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, graph.ErrNodeCollision) {
			slog.Error("graph.collision", "err", err)
		}
		return nil, fmt.Errorf("graph: %w", err)
	}
	span.SetAttributes(attribute.Int("nodes", len(g.Nodes)), attribute.Int("edges", len(g.Edges)))
	slog.Info("pass.timing", "pass", "graph", "nodes", len(g.Nodes), "edges", len(g.Edges), "elapsed", time.Since(t))
	p.logEdgeCounts(g)
	return g, nil
}

func (p *Pipeline) logEdgeCounts(g *graph.CodeGraph) {
	counts := map[string]int{}
	for _, e := range g.Edges {
		counts[e.Type]++
	}
	for _, typ := range g.Metadata.EdgeTypes {
		slog.Debug("pipeline.edges", "type", typ, "count", counts[typ])
	}
}

func (p *Pipeline) passIndex(ctx context.Context, files []symbols.FileSymbols, r *resolve.Resolver) (*index.Index, error) {
	_, span := tracer.Start(ctx, "pipeline.passIndex")
	defer span.End()
	t := time.Now()

	idx := index.Build(files, r)
	if err := checkIndex(idx); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("symbols", idx.Statistics.TotalSymbols),
		attribute.Int("usages", idx.Statistics.TotalUsages),
	)
	slog.Info("pass.timing", "pass", "index", "symbols", idx.Statistics.TotalSymbols, "elapsed", time.Since(t))
	return idx, nil
}

// checkIndex fails the run when the index statistics disagree with its maps.
func checkIndex(idx *index.Index) error {
	if err := idx.Validate(); err != nil {
		slog.Error("index.statistics", "err", err)
		return fmt.Errorf("index: %w", err)
	}
	return nil
}

func hashBytes(b []byte) string {
	h := xxh3.Hash128(b).Bytes()
	return hex.EncodeToString(h[:])
}

// FileHash returns the hex xxh3-128 digest of a file's content, the same
// digest recorded in snapshot file entries.
func FileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return hashBytes(data), nil
}
