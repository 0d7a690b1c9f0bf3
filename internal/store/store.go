// Package store persists memories, their per-sector vectors, the
// waypoint graph, and the embed log. Every backend implements the
// same Store interface so internal/engine never branches on which one
// is wired in.
package store

import (
	"context"

	"github.com/openmemory/engine/internal/embed"
	"github.com/openmemory/engine/internal/model"
)

// Candidate is one row returned by CandidatesBySector: enough to score
// a memory against a query vector without a second round trip.
type Candidate struct {
	MemoryID   int64
	Vec        []float32
	Salience   float64
	LastSeenAt int64 // epoch-millis, per §6 persisted state layout
}

// Filters narrows a List call.
type Filters struct {
	Sector model.Sector // zero value: no sector filter
	Tag    string       // zero value: no tag filter
}

// Page is one page of a List call.
type Page struct {
	Memories   []*model.Memory
	NextCursor string
}

// Store is the transactional persistence contract of §4.3. Every
// mutating method is atomic: either the whole operation is visible or
// none of it is.
type Store interface {
	embed.LogSink

	// InsertMemory persists m and its per-sector vectors, and
	// optionally one outgoing waypoint, as a single atomic unit.
	InsertMemory(ctx context.Context, m *model.Memory, vectors []model.Vector, waypoint *model.Waypoint) error

	// UpdateSalience sets a memory's salience and last_seen_at.
	UpdateSalience(ctx context.Context, id int64, newSalience float64, lastSeenAtMillis int64) error

	// ReplaceContent overwrites a memory's content (used for cold
	// fingerprinting) without touching its vectors.
	ReplaceContent(ctx context.Context, id int64, content string, cold bool) error

	// UpsertWaypoint enforces the single-outgoing-edge invariant: any
	// prior edge for src is replaced if the new weight is >= the
	// current one (§5 ordering guarantees).
	UpsertWaypoint(ctx context.Context, src, dst int64, weight float64) error

	// DeleteWaypointsBelow removes every edge with weight < threshold.
	DeleteWaypointsBelow(ctx context.Context, threshold float64) (int, error)

	// Get returns one memory by id, or a NotFound error.
	Get(ctx context.Context, id int64) (*model.Memory, error)

	// List returns a page of memories for userID matching filters.
	List(ctx context.Context, userID string, filters Filters, cursor string, limit int) (Page, error)

	// CandidatesBySector returns every vector row for (userID, sector),
	// for the Ranker's linear scan.
	CandidatesBySector(ctx context.Context, userID string, sector model.Sector) ([]Candidate, error)

	// OutgoingWaypoint returns the single outgoing edge for id, if any.
	OutgoingWaypoint(ctx context.Context, id int64) (*model.Waypoint, bool, error)

	// AllMemoryIDs returns every memory id, for the decay worker's
	// sharding pass.
	AllMemoryIDs(ctx context.Context) ([]int64, error)

	// Delete removes a memory, its vectors, and any waypoints that
	// reference it.
	Delete(ctx context.Context, id int64) error

	// Stats reports counts per sector and tier for the `stats` op.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any underlying resources.
	Close() error
}

// SchemaInitializer is implemented by backends that need an explicit
// provisioning step (e.g. CREATE TABLE, Qdrant collection creation).
type SchemaInitializer interface {
	CreateSchema(ctx context.Context) error
}

// GraphStore is implemented by backends whose waypoint graph lives in
// a different system than the vector/memory rows (e.g. Neo4j). When a
// Store does not implement GraphStore, Store's own waypoint methods
// are authoritative.
type GraphStore interface {
	// Neighborhood returns the 1-hop outgoing neighbor of id, if any —
	// the query-time waypoint expansion of §4.5 step 5.
	Neighborhood(ctx context.Context, id int64) (*model.Waypoint, bool, error)
}

// Stats is the result of the `stats` op (§6).
type Stats struct {
	BySector      map[model.Sector]int
	ByTier        map[model.Tier]int
	Total         int
	DecayLastRun  int64 // epoch-millis set by InMemoryStore.MarkDecayRun; 0 if not set. The decay worker does not set it, and the SQLite and Qdrant backends always report 0.
}
