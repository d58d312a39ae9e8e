package hcg

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c-daly/logos/internal/graph"
	"github.com/c-daly/logos/internal/observability"
	"github.com/c-daly/logos/internal/types"
)

// Cypher executed by the engine. Relationship types and node labels are
// interpolated only from closed enums, never from caller input; everything
// caller-supplied travels as a parameter.
const (
	queryGetEntityByID = `MATCH (n:Entity {id: $id})
OPTIONAL MATCH (n)-[:IS_A]->(c:Concept)
RETURN n.id AS id, n.name AS name, n.derivation AS derivation,
       n.created_at AS created_at, properties(n) AS props,
       collect(c.name) AS concepts`

	queryGetEntities = `MATCH (n:Entity)
OPTIONAL MATCH (n)-[:IS_A]->(c:Concept)
RETURN n.id AS id, n.name AS name, n.derivation AS derivation,
       n.created_at AS created_at, properties(n) AS props,
       collect(c.name) AS concepts
ORDER BY n.created_at
LIMIT $limit`

	queryGetEntitiesByConcept = `MATCH (n:Entity)-[:IS_A]->(filter:Concept {name: $concept})
OPTIONAL MATCH (n)-[:IS_A]->(c:Concept)
RETURN n.id AS id, n.name AS name, n.derivation AS derivation,
       n.created_at AS created_at, properties(n) AS props,
       collect(c.name) AS concepts
ORDER BY n.created_at
LIMIT $limit`

	queryGetConceptByName = `MATCH (c:Concept {name: $name})
RETURN c.id AS id, c.name AS name, c.created_at AS created_at`

	queryMergeEntity = `MERGE (n:Entity {id: $id})
ON CREATE SET n.created_at = $created_at
SET n.name = $name, n.derivation = $derivation, n += $props
RETURN n.id AS id`

	queryMergeConcept = `MERGE (c:Concept {name: $name})
ON CREATE SET c.id = $id, c.created_at = $created_at
RETURN c.id AS id`

	queryMergeState = `MERGE (s:State {id: $id})
ON CREATE SET s.timestamp = $timestamp, s.created_at = $created_at
SET s += $props
RETURN s.id AS id`

	queryMergeProcess = `MERGE (p:Process {id: $id})
ON CREATE SET p.created_at = $created_at
SET p.name = $name, p.start_time = $start_time, p.duration_ms = $duration_ms
RETURN p.id AS id`

	// queryMergeRelationship has the relationship type interpolated from the
	// closed vocabulary. An empty result means at least one endpoint is missing.
	queryMergeRelationship = `MATCH (a {id: $source})
MATCH (b {id: $target})
MERGE (a)-[r:%s]->(b)
RETURN type(r) AS type`

	// queryDetectCycle asks whether the target already reaches the source over
	// edges of the given type; adding source->target would then close a cycle.
	queryDetectCycle = `MATCH (b {id: $target})-[:%s*1..]->(a {id: $source})
RETURN count(*) AS paths`

	queryDeleteEntity = `MATCH (n:Entity {id: $id})
DETACH DELETE n
RETURN count(n) AS deleted`

	querySnapshotNodes = `MATCH (n)
WHERE n.id IS NOT NULL
RETURN n.id AS id, labels(n)[0] AS label, n.name AS name, properties(n) AS props
ORDER BY n.id
LIMIT $limit`

	querySnapshotNodesFiltered = `MATCH (n)
WHERE n.id IS NOT NULL AND $label IN labels(n)
RETURN n.id AS id, labels(n)[0] AS label, n.name AS name, properties(n) AS props
ORDER BY n.id
LIMIT $limit`

	querySnapshotEdges = `MATCH (a)-[r]->(b)
WHERE a.id IS NOT NULL AND b.id IS NOT NULL
RETURN a.id AS source, b.id AS target, type(r) AS type
ORDER BY source, target
LIMIT $limit`

	querySnapshotEdgesFiltered = `MATCH (a)-[r]->(b)
WHERE a.id IS NOT NULL AND b.id IS NOT NULL
  AND ($label IN labels(a) OR $label IN labels(b))
RETURN a.id AS source, b.id AS target, type(r) AS type
ORDER BY source, target
LIMIT $limit`

	queryHealthProbe = `RETURN 1 AS ok`
)

// snapshotNodeLimit bounds snapshot size; snapshots are a diagnostic surface,
// not a bulk export.
const snapshotNodeLimit = 5000

// Engine executes typed operations against the graph backend. Reads and edge
// writes are retried under the engine's policy; delta commits are left
// unretried so the gated writer can own retry sequencing and state reporting.
type Engine struct {
	client graph.Client
	retry  graph.RetryPolicy
	vocab  *Vocabulary
	log    *observability.Logger
}

// NewEngine builds an engine over a connected client.
func NewEngine(client graph.Client, retry graph.RetryPolicy, vocab *Vocabulary, log *observability.Logger) *Engine {
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &Engine{client: client, retry: retry, vocab: vocab, log: log}
}

// GetEntityByID fetches one entity with its IS_A concept memberships.
// Returns NODE_NOT_FOUND when no entity carries the id.
func (e *Engine) GetEntityByID(ctx context.Context, id types.ID) (types.Entity, error) {
	if err := id.Validate(types.KindEntity); err != nil {
		return types.Entity{}, err
	}

	var result graph.QueryResult
	err := e.retry.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = e.client.Read(ctx, queryGetEntityByID, map[string]any{"id": id.String()})
		return err
	})
	if err != nil {
		return types.Entity{}, err
	}
	if len(result.Records) == 0 {
		return types.Entity{}, types.NewError(types.NODE_NOT_FOUND,
			fmt.Sprintf("no entity with id %q", id))
	}
	return entityFromRecord(result.Records[0])
}

// GetEntities lists entities ordered by creation time, optionally filtered to
// members of the named concept. Limit caps the result; non-positive limits
// fall back to a page of 100.
func (e *Engine) GetEntities(ctx context.Context, conceptName string, limit int) ([]types.Entity, error) {
	if limit <= 0 {
		limit = 100
	}

	cypher := queryGetEntities
	params := map[string]any{"limit": limit}
	if conceptName != "" {
		cypher = queryGetEntitiesByConcept
		params["concept"] = conceptName
	}

	var result graph.QueryResult
	err := e.retry.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = e.client.Read(ctx, cypher, params)
		return err
	})
	if err != nil {
		return nil, err
	}

	entities := make([]types.Entity, 0, len(result.Records))
	for _, rec := range result.Records {
		entity, err := entityFromRecord(rec)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// GetConceptByName fetches a concept by its unique name.
func (e *Engine) GetConceptByName(ctx context.Context, name string) (types.Concept, error) {
	if name == "" {
		return types.Concept{}, types.NewError(types.INVALID_QUERY, "concept name cannot be empty")
	}

	var result graph.QueryResult
	err := e.retry.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = e.client.Read(ctx, queryGetConceptByName, map[string]any{"name": name})
		return err
	})
	if err != nil {
		return types.Concept{}, err
	}
	if len(result.Records) == 0 {
		return types.Concept{}, types.NewError(types.NODE_NOT_FOUND,
			fmt.Sprintf("no concept named %q", name))
	}

	rec := result.Records[0]
	return types.Concept{
		ID:        types.ID(stringValue(rec["id"])),
		Name:      stringValue(rec["name"]),
		CreatedAt: timeValue(rec["created_at"]),
	}, nil
}

// AddRelationship merges a typed edge between two existing nodes. The type
// must belong to the closed vocabulary; both endpoints must exist; edges of
// acyclic types are refused when they would close a cycle.
func (e *Engine) AddRelationship(ctx context.Context, edge types.CausalEdge) error {
	if !e.vocab.Contains(edge.Type) {
		return types.NewError(types.INVALID_RELATIONSHIP,
			fmt.Sprintf("relationship type %q is not in the vocabulary %v", edge.Type, e.vocab.Names()))
	}
	if err := edge.SourceID.Validate(""); err != nil {
		return err
	}
	if err := edge.TargetID.Validate(""); err != nil {
		return err
	}

	params := map[string]any{
		"source": edge.SourceID.String(),
		"target": edge.TargetID.String(),
	}

	if e.vocab.IsAcyclic(edge.Type) {
		cycleQuery := fmt.Sprintf(queryDetectCycle, edge.Type)
		var result graph.QueryResult
		err := e.retry.Execute(ctx, func(ctx context.Context) error {
			var err error
			result, err = e.client.Read(ctx, cycleQuery, params)
			return err
		})
		if err != nil {
			return err
		}
		if len(result.Records) > 0 && intValue(result.Records[0]["paths"]) > 0 {
			return types.NewError(types.INVALID_RELATIONSHIP,
				fmt.Sprintf("%s edge %s -> %s would create a cycle", edge.Type, edge.SourceID, edge.TargetID))
		}
	}

	mergeQuery := fmt.Sprintf(queryMergeRelationship, edge.Type)
	var result graph.QueryResult
	err := e.retry.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = e.client.Write(ctx, mergeQuery, params)
		return err
	})
	if err != nil {
		return err
	}
	if len(result.Records) == 0 {
		return types.NewError(types.NODE_NOT_FOUND,
			fmt.Sprintf("relationship endpoints %s, %s not both present", edge.SourceID, edge.TargetID))
	}

	e.log.Debug(ctx, "relationship merged",
		"type", edge.Type.String(), "source", edge.SourceID.String(), "target", edge.TargetID.String())
	return nil
}

// DeleteEntity removes an entity and all its edges. Missing entities yield
// NODE_NOT_FOUND rather than a silent no-op.
func (e *Engine) DeleteEntity(ctx context.Context, id types.ID) error {
	if err := id.Validate(types.KindEntity); err != nil {
		return err
	}

	var result graph.QueryResult
	err := e.retry.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = e.client.Write(ctx, queryDeleteEntity, map[string]any{"id": id.String()})
		return err
	})
	if err != nil {
		return err
	}
	if len(result.Records) == 0 || intValue(result.Records[0]["deleted"]) == 0 {
		return types.NewError(types.NODE_NOT_FOUND, fmt.Sprintf("no entity with id %q", id))
	}
	return nil
}

// GetGraphSnapshot returns a bounded view of the graph. A non-empty kind
// restricts nodes to that label, with edges touching at least one such node.
// Node and edge queries run concurrently on separate pooled sessions.
func (e *Engine) GetGraphSnapshot(ctx context.Context, kind types.NodeKind) (types.GraphSnapshot, error) {
	nodeQuery, edgeQuery := querySnapshotNodes, querySnapshotEdges
	params := map[string]any{"limit": snapshotNodeLimit}
	if kind != "" {
		if !kind.IsValid() {
			return types.GraphSnapshot{}, types.NewError(types.INVALID_QUERY,
				fmt.Sprintf("unknown node kind %q", kind))
		}
		nodeQuery, edgeQuery = querySnapshotNodesFiltered, querySnapshotEdgesFiltered
		params["label"] = kind.Label()
	}

	var nodeResult, edgeResult graph.QueryResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.retry.Execute(gctx, func(ctx context.Context) error {
			var err error
			nodeResult, err = e.client.Read(ctx, nodeQuery, params)
			return err
		})
	})
	g.Go(func() error {
		return e.retry.Execute(gctx, func(ctx context.Context) error {
			var err error
			edgeResult, err = e.client.Read(ctx, edgeQuery, params)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return types.GraphSnapshot{}, err
	}

	snapshot := types.GraphSnapshot{
		Nodes: make([]types.SnapshotNode, 0, len(nodeResult.Records)),
		Edges: make([]types.CausalEdge, 0, len(edgeResult.Records)),
	}
	for _, rec := range nodeResult.Records {
		snapshot.Nodes = append(snapshot.Nodes, types.SnapshotNode{
			ID:         types.ID(stringValue(rec["id"])),
			Label:      stringValue(rec["label"]),
			Name:       stringValue(rec["name"]),
			Properties: mapValue(rec["props"]),
		})
	}
	for _, rec := range edgeResult.Records {
		snapshot.Edges = append(snapshot.Edges, types.CausalEdge{
			SourceID: types.ID(stringValue(rec["source"])),
			TargetID: types.ID(stringValue(rec["target"])),
			Type:     types.RelationType(stringValue(rec["type"])),
		})
	}
	return snapshot, nil
}

// HealthCheck issues one unretried probe query plus the driver's own
// connectivity verdict. A failed probe is reported, never retried.
func (e *Engine) HealthCheck(ctx context.Context) types.HealthStatus {
	status := e.client.Health(ctx)
	if status.IsUnhealthy() {
		return status
	}

	if _, err := e.client.Read(ctx, queryHealthProbe, nil); err != nil {
		probe := types.Unhealthy(fmt.Sprintf("probe query failed: %v", err))
		probe.PoolUtilization = e.client.PoolUtilization()
		return probe
	}
	return status
}

// CommitDelta writes every node and edge of the delta inside one transaction
// and returns the graph's id for each node, in delta order. Ids must already
// be assigned, but the graph's answer wins: a concept merged onto an existing
// name reports the id that concept already carries, not the locally minted
// one. Edge statements require a matched row, so an edge naming a missing
// endpoint rolls the whole batch back. The commit is deliberately unretried
// here: the validation-gated writer wraps it with the retry policy so
// transient failures surface as Retrying transitions.
func (e *Engine) CommitDelta(ctx context.Context, delta *Delta) ([]types.ID, error) {
	stmts := make([]graph.Statement, 0, len(delta.Nodes)+len(delta.Edges))

	for _, n := range delta.Nodes {
		stmt, err := e.nodeStatement(n, delta.Derivation)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	for _, edge := range delta.Edges {
		if !e.vocab.Contains(edge.Type) {
			return nil, types.NewError(types.INVALID_RELATIONSHIP,
				fmt.Sprintf("relationship type %q is not in the vocabulary %v", edge.Type, e.vocab.Names()))
		}
		stmts = append(stmts, graph.Statement{
			Cypher: fmt.Sprintf(queryMergeRelationship, edge.Type),
			Params: map[string]any{
				"source": edge.SourceID.String(),
				"target": edge.TargetID.String(),
			},
			RequireRow: true,
		})
	}

	results, err := e.client.WriteBatch(ctx, stmts)
	if err != nil {
		return nil, err
	}

	ids := make([]types.ID, len(delta.Nodes))
	var nodesCreated, relsCreated int
	for i := range results {
		nodesCreated += results[i].Summary.NodesCreated
		relsCreated += results[i].Summary.RelationshipsCreated
		if i >= len(delta.Nodes) {
			continue
		}
		ids[i] = delta.Nodes[i].ID
		if len(results[i].Records) > 0 {
			if id := stringValue(results[i].Records[0]["id"]); id != "" {
				ids[i] = types.ID(id)
			}
		}
	}

	e.log.Info(ctx, "delta committed",
		"nodes", len(delta.Nodes),
		"edges", len(delta.Edges),
		"nodes_created", nodesCreated,
		"relationships_created", relsCreated)
	return ids, nil
}

// nodeStatement builds the MERGE statement for one node spec. MERGE keys on id
// (name for concepts) so a retried commit is idempotent.
func (e *Engine) nodeStatement(n NodeSpec, derivation types.Derivation) (graph.Statement, error) {
	if err := n.ID.Validate(n.Kind); err != nil {
		return graph.Statement{}, err
	}
	now := time.Now().UTC()

	switch n.Kind {
	case types.KindEntity:
		return graph.Statement{
			Cypher: queryMergeEntity,
			Params: map[string]any{
				"id":         n.ID.String(),
				"name":       n.Name,
				"derivation": string(derivation),
				"created_at": now,
				"props":      sanitizeProperties(n.Properties),
			},
		}, nil
	case types.KindConcept:
		if n.Name == "" {
			return graph.Statement{}, types.NewError(types.INVALID_QUERY,
				"concept requires a name")
		}
		return graph.Statement{
			Cypher: queryMergeConcept,
			Params: map[string]any{
				"id":         n.ID.String(),
				"name":       n.Name,
				"created_at": now,
			},
		}, nil
	case types.KindState:
		if n.Timestamp.IsZero() {
			return graph.Statement{}, types.NewError(types.INVALID_TIMESTAMP,
				fmt.Sprintf("state %s has no timestamp", n.ID))
		}
		return graph.Statement{
			Cypher: queryMergeState,
			Params: map[string]any{
				"id":         n.ID.String(),
				"timestamp":  n.Timestamp.UTC(),
				"created_at": now,
				"props":      sanitizeProperties(n.Properties),
			},
		}, nil
	case types.KindProcess:
		if n.StartTime.IsZero() {
			return graph.Statement{}, types.NewError(types.INVALID_TIMESTAMP,
				fmt.Sprintf("process %s has no start time", n.ID))
		}
		return graph.Statement{
			Cypher: queryMergeProcess,
			Params: map[string]any{
				"id":          n.ID.String(),
				"name":        n.Name,
				"start_time":  n.StartTime.UTC(),
				"duration_ms": n.Duration.Milliseconds(),
				"created_at":  now,
			},
		}, nil
	default:
		return graph.Statement{}, types.NewError(types.INVALID_QUERY,
			fmt.Sprintf("unknown node kind %q", n.Kind))
	}
}

// reservedKeys are node attributes managed by the engine; caller properties
// may not overwrite them.
var reservedKeys = map[string]struct{}{
	"id": {}, "name": {}, "derivation": {}, "created_at": {},
	"timestamp": {}, "start_time": {}, "duration_ms": {},
}

func sanitizeProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	return out
}

// entityFromRecord converts a projected entity row into a typed Entity.
func entityFromRecord(rec map[string]any) (types.Entity, error) {
	id := stringValue(rec["id"])
	if id == "" {
		return types.Entity{}, types.NewError(types.RESULT_PARSING,
			"entity record has no id column")
	}
	return types.Entity{
		ID:         types.ID(id),
		Name:       stringValue(rec["name"]),
		Derivation: types.Derivation(stringValue(rec["derivation"])),
		Concepts:   stringSlice(rec["concepts"]),
		Properties: sanitizeProperties(mapValue(rec["props"])),
		CreatedAt:  timeValue(rec["created_at"]),
	}, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func intValue(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// timeValue accepts the driver's native time.Time as well as RFC3339 strings.
func timeValue(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}

func mapValue(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		if s, ok := v.([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
