// Package neo4jexport loads a code graph into Neo4j using batched UNWIND
// queries. Nodes are merged on (project, identifier) under a label derived
// from their type; relationships are merged between those nodes.
package neo4jexport

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/DeusData/codeindex/internal/graph"
)

// DefaultBatchSize is the number of rows sent per UNWIND statement.
const DefaultBatchSize = 1000

// labels maps graph node types to Neo4j labels. Labels cannot be query
// parameters, so only these fixed strings are ever interpolated.
var labels = map[string]string{
	graph.NodeFile:      "File",
	graph.NodeDirectory: "Directory",
	graph.NodeFunction:  "Function",
	graph.NodeClass:     "Class",
	graph.NodeImport:    "Import",
	graph.NodeCall:      "Call",
}

var relTypes = map[string]string{
	graph.EdgeContainedIn: "CONTAINED_IN",
	graph.EdgeDefinedIn:   "DEFINED_IN",
	graph.EdgeImportedIn:  "IMPORTED_IN",
	graph.EdgeImportsFrom: "IMPORTS_FROM",
	graph.EdgeCalledIn:    "CALLED_IN",
	graph.EdgeCalls:       "CALLS",
}

// Runner executes one Cypher statement.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) error
}

// Config holds Neo4j connection settings.
type Config struct {
	URI       string
	User      string
	Password  string
	Database  string // empty = server default
	BatchSize int
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r *driverRunner) Run(ctx context.Context, cypher string, params map[string]any) error {
	var opts []neo4j.ExecuteQueryConfigurationOption
	if r.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(r.database))
	}
	_, err := neo4j.ExecuteQuery(ctx, r.driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	return err
}

// Exporter writes graphs to Neo4j.
type Exporter struct {
	runner    Runner
	batchSize int
	close     func(context.Context) error
}

// Stats counts what an export sent.
type Stats struct {
	Nodes      int `json:"nodes"`
	Edges      int `json:"edges"`
	Statements int `json:"statements"`
	Skipped    int `json:"skipped"`
}

// Connect opens a driver and checks connectivity.
func Connect(ctx context.Context, cfg Config) (*Exporter, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	e := NewWithRunner(&driverRunner{driver: driver, database: cfg.Database}, cfg.BatchSize)
	e.close = driver.Close
	return e, nil
}

// NewWithRunner returns an exporter that sends statements to r.
func NewWithRunner(r Runner, batchSize int) *Exporter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Exporter{runner: r, batchSize: batchSize}
}

// Close releases the underlying driver, if any.
func (e *Exporter) Close(ctx context.Context) error {
	if e.close == nil {
		return nil
	}
	return e.close(ctx)
}

// CreateIndexes ensures a lookup index exists for every label.
func (e *Exporter) CreateIndexes(ctx context.Context) error {
	for _, label := range sortedValues(labels) {
		q := fmt.Sprintf("CREATE INDEX %s_key IF NOT EXISTS FOR (n:%s) ON (n.project, n.identifier)",
			strings.ToLower(label), label)
		if err := e.runner.Run(ctx, q, nil); err != nil {
			return fmt.Errorf("create index for %s: %w", label, err)
		}
	}
	return nil
}

// Clean removes every node previously exported for project.
func (e *Exporter) Clean(ctx context.Context, project string) error {
	return e.runner.Run(ctx, "MATCH (n {project: $project}) DETACH DELETE n", map[string]any{"project": project})
}

// Export merges every node and edge of g under project. Nodes and edges of
// unknown types are skipped.
func (e *Exporter) Export(ctx context.Context, project string, g *graph.CodeGraph) (Stats, error) {
	var st Stats
	if err := e.CreateIndexes(ctx); err != nil {
		return st, err
	}
	st.Statements = len(labels)

	byType := map[string][]map[string]any{}
	for _, n := range g.Nodes {
		if _, ok := labels[n.Type]; !ok {
			st.Skipped++
			continue
		}
		byType[n.Type] = append(byType[n.Type], map[string]any{
			"identifier": n.Identifier,
			"props":      nodeProps(project, n),
		})
	}
	for _, typ := range sortedKeys(byType) {
		q := fmt.Sprintf(`UNWIND $batch AS row
		 MERGE (n:%s {project: $project, identifier: row.identifier})
		 SET n += row.props`, labels[typ])
		sent, err := e.runBatches(ctx, q, project, byType[typ])
		if err != nil {
			return st, fmt.Errorf("export %s nodes: %w", typ, err)
		}
		st.Nodes += len(byType[typ])
		st.Statements += sent
	}

	nodeByID := make(map[int]graph.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		nodeByID[n.ID] = n
	}
	type relKey struct{ rel, src, dst string }
	byRel := map[relKey][]map[string]any{}
	for _, edge := range g.Edges {
		src, srcOK := nodeByID[edge.Source]
		dst, dstOK := nodeByID[edge.Target]
		rel, ok := relTypes[edge.Type]
		if !ok || !srcOK || !dstOK || labels[src.Type] == "" || labels[dst.Type] == "" {
			st.Skipped++
			continue
		}
		k := relKey{rel, labels[src.Type], labels[dst.Type]}
		byRel[k] = append(byRel[k], map[string]any{
			"source": src.Identifier,
			"target": dst.Identifier,
			"props":  edgeProps(edge.Properties),
		})
	}
	keys := make([]relKey, 0, len(byRel))
	for k := range byRel {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.rel != b.rel {
			return a.rel < b.rel
		}
		if a.src != b.src {
			return a.src < b.src
		}
		return a.dst < b.dst
	})
	for _, k := range keys {
		q := fmt.Sprintf(`UNWIND $batch AS row
		 MATCH (a:%s {project: $project, identifier: row.source})
		 MATCH (b:%s {project: $project, identifier: row.target})
		 MERGE (a)-[r:%s]->(b)
		 SET r += row.props`, k.src, k.dst, k.rel)
		sent, err := e.runBatches(ctx, q, project, byRel[k])
		if err != nil {
			return st, fmt.Errorf("export %s edges: %w", k.rel, err)
		}
		st.Edges += len(byRel[k])
		st.Statements += sent
	}

	slog.Info("neo4j.export", "project", project, "nodes", st.Nodes, "edges", st.Edges,
		"statements", st.Statements, "skipped", st.Skipped)
	return st, nil
}

func (e *Exporter) runBatches(ctx context.Context, cypher, project string, rows []map[string]any) (int, error) {
	sent := 0
	for i := 0; i < len(rows); i += e.batchSize {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		batch := rows[i:min(i+e.batchSize, len(rows))]
		if err := e.runner.Run(ctx, cypher, map[string]any{"project": project, "batch": batch}); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// nodeProps flattens a node into Neo4j-storable properties.
func nodeProps(project string, n graph.Node) map[string]any {
	props := make(map[string]any, len(n.Properties)+3)
	for k, v := range n.Properties {
		props[k] = v
	}
	props["project"] = project
	props["identifier"] = n.Identifier
	props["type"] = n.Type
	return props
}

func edgeProps(p graph.Properties) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
