package store

import (
	"context"

	neo4j "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/openmemory/engine/internal/model"
)

// Neo4jStore layers a single-outgoing-edge waypoint graph, held in
// Neo4j, on top of a base Store that owns memories/vectors/embed_logs.
// Grounded on the teacher's src/memory/store/neo4j_store.go, with its
// UpsertGraph rewritten as UpsertWaypoint, from the multi-edge RELATED_TO
// fan-out (one MERGE per GraphEdge, all deleted and recreated per
// write) to a single MERGE that replaces at most one outgoing edge,
// and Neighborhood narrowed from a variable-length Cypher path query
// to the spec's exact 1-hop lookup.
type Neo4jStore struct {
	Store
	driver neo4jDriverAdapter
}

// neo4jDriverAdapter is satisfied by *neo4j.DriverWithContext.
type neo4jDriverAdapter interface {
	NewSession(ctx context.Context, config neo4j.SessionConfig) neo4j.SessionWithContext
}

// NewNeo4jStore wraps base with a Neo4j-backed waypoint graph.
func NewNeo4jStore(base Store, driver neo4jDriverAdapter) *Neo4jStore {
	return &Neo4jStore{Store: base, driver: driver}
}

func (n *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
}

// InsertMemory persists the memory and its vectors through the base
// Store, then routes the waypoint edge (if any) to Neo4j instead of
// the base Store's own waypoint table — the base Store only owns
// memories/vectors/embed_logs once wrapped by Neo4jStore.
func (n *Neo4jStore) InsertMemory(ctx context.Context, m *model.Memory, vectors []model.Vector, waypoint *model.Waypoint) error {
	if err := n.Store.InsertMemory(ctx, m, vectors, nil); err != nil {
		return err
	}
	if waypoint != nil {
		return n.UpsertWaypoint(ctx, m.ID, waypoint.DstID, waypoint.Weight)
	}
	return nil
}

func (n *Neo4jStore) UpsertWaypoint(ctx context.Context, src, dst int64, weight float64) error {
	sess := n.session(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s:Memory {id: $src})
			OPTIONAL MATCH (s)-[r:WAYPOINT]->()
			WITH s, r, coalesce(r.weight, -1.0) AS current
			WHERE current <= $weight
			FOREACH (_ IN CASE WHEN r IS NOT NULL THEN [1] ELSE [] END | DELETE r)
			MERGE (d:Memory {id: $dst})
			MERGE (s)-[nr:WAYPOINT]->(d)
			SET nr.weight = $weight
			RETURN s`,
			map[string]any{"src": src, "dst": dst, "weight": weight})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return model.ErrStoreFailed("neo4j upsert waypoint", err)
	}
	return nil
}

func (n *Neo4jStore) OutgoingWaypoint(ctx context.Context, id int64) (*model.Waypoint, bool, error) {
	return n.Neighborhood(ctx, id)
}

// Neighborhood implements the GraphStore contract: the memory's single
// outgoing waypoint, if any — used for the 1-hop expansion of §4.5
// step 5.
func (n *Neo4jStore) Neighborhood(ctx context.Context, id int64) (*model.Waypoint, bool, error) {
	sess := n.session(ctx)
	defer sess.Close(ctx)

	var wp *model.Waypoint
	_, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (s:Memory {id: $id})-[r:WAYPOINT]->(d:Memory)
			RETURN d.id AS dst, r.weight AS weight`,
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, nil // no outgoing edge
		}
		dst, _ := record.Get("dst")
		weight, _ := record.Get("weight")
		dstID, ok1 := toInt64(dst)
		w, ok2 := toFloat64(weight)
		if !ok1 || !ok2 {
			return nil, nil
		}
		wp = &model.Waypoint{SrcID: id, DstID: dstID, Weight: w}
		return nil, nil
	})
	if err != nil {
		return nil, false, model.ErrStoreFailed("neo4j neighborhood", err)
	}
	if wp == nil {
		return nil, false, nil
	}
	return wp, true, nil
}

func (n *Neo4jStore) DeleteWaypointsBelow(ctx context.Context, threshold float64) (int, error) {
	sess := n.session(ctx)
	defer sess.Close(ctx)

	var removed int
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH ()-[r:WAYPOINT]->() WHERE r.weight < $threshold
			WITH r, count(r) AS c
			DELETE r
			RETURN sum(c) AS removed`,
			map[string]any{"threshold": threshold})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, nil
		}
		if v, ok := record.Get("removed"); ok {
			if n64, ok := toInt64(v); ok {
				removed = int(n64)
			}
		}
		return nil, nil
	})
	if err != nil {
		return 0, model.ErrStoreFailed("neo4j prune waypoints", err)
	}
	return removed, nil
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
